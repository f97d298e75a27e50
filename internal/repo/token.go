package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/stone_shop/internal/models"
)

func (r *GormRepo) AddRefreshToken(ctx context.Context, t *models.RefreshToken) error {
	return r.DB.WithContext(ctx).Create(t).Error
}

func (r *GormRepo) refreshExpiredOrRevoked(db *gorm.DB, jti string) (*models.RefreshToken, bool, error) {
	var refresh models.RefreshToken
	if err := db.Where("jti = ?", jti).First(&refresh).Error; err != nil {
		return nil, false, err
	}
	if refresh.ExpiresAt < time.Now().Unix() || refresh.Revoked {
		return &refresh, true, nil
	}
	return &refresh, false, nil
}

func (r *GormRepo) markAsUsed(db *gorm.DB, jti string) error {
	return db.Model(&models.RefreshToken{}).
		Where("jti = ?", jti).
		Update("revoked", true).Error
}

// RotateRefreshToken revokes oldJTI and stores next in one transaction.
// It returns the revoked row so the caller can recover the owner.
func (r *GormRepo) RotateRefreshToken(ctx context.Context, oldJTI, oldHash string, next *models.RefreshToken) (*models.RefreshToken, error) {
	var old *models.RefreshToken
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, expired, err := r.refreshExpiredOrRevoked(tx, oldJTI)
		if err != nil {
			return err
		}
		if expired || found.Token != oldHash {
			return ErrTokenRevoked
		}

		if err := r.markAsUsed(tx, oldJTI); err != nil {
			return err
		}

		next.UserID = found.UserID
		next.Role = found.Role
		if err := tx.Create(next).Error; err != nil {
			return err
		}
		old = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return old, nil
}

func (r *GormRepo) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	return r.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token = ?", tokenHash).
		Update("revoked", true).Error
}
