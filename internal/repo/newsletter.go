package repo

import (
	"context"

	"github.com/Skotchmaster/stone_shop/internal/models"
)

func (r *GormRepo) Subscribed(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := r.DB.WithContext(ctx).Model(&models.NewsletterSubscription{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *GormRepo) Subscribe(ctx context.Context, email string) error {
	return r.DB.WithContext(ctx).Create(&models.NewsletterSubscription{Email: email}).Error
}
