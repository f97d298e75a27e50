package repo

import (
	"context"

	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/stone_shop/internal/models"
)

// UpsertReview relies on the (user_id, product_id) unique index so a second
// submission rewrites the existing review.
func (r *GormRepo) UpsertReview(ctx context.Context, rev *models.Review) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"text", "stars", "updated_at"}),
	}).Create(rev).Error
}

func (r *GormRepo) ReviewsForProduct(ctx context.Context, productID uint) ([]models.Review, error) {
	var reviews []models.Review
	if err := r.DB.WithContext(ctx).Where("product_id = ?", productID).Order("id ASC").Find(&reviews).Error; err != nil {
		return nil, err
	}
	if len(reviews) == 0 {
		return reviews, nil
	}

	ids := make([]uint, 0, len(reviews))
	for _, rev := range reviews {
		ids = append(ids, rev.UserID)
	}
	var users []models.User
	if err := r.DB.WithContext(ctx).Select("id", "name").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	names := make(map[uint]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}
	for i := range reviews {
		reviews[i].Author = names[reviews[i].UserID]
	}
	return reviews, nil
}

func (r *GormRepo) ReviewByUser(ctx context.Context, userID, productID uint) (*models.Review, error) {
	var rev models.Review
	if err := r.DB.WithContext(ctx).Where("user_id = ? AND product_id = ?", userID, productID).First(&rev).Error; err != nil {
		return nil, err
	}
	return &rev, nil
}

// DeleteReview reports whether a row was removed.
func (r *GormRepo) DeleteReview(ctx context.Context, id uint) (bool, error) {
	res := r.DB.WithContext(ctx).Delete(&models.Review{}, id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

type RatingStats struct {
	Avg   float64
	Count int64
}

func (r *GormRepo) RatingStats(ctx context.Context, productID uint) (RatingStats, error) {
	var stats RatingStats
	err := r.DB.WithContext(ctx).Model(&models.Review{}).
		Select("COALESCE(AVG(stars), 0) AS avg, COUNT(*) AS count").
		Where("product_id = ?", productID).
		Scan(&stats).Error
	return stats, err
}
