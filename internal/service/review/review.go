package review

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/Skotchmaster/stone_shop/internal/apperr"
	"github.com/Skotchmaster/stone_shop/internal/logging"
	"github.com/Skotchmaster/stone_shop/internal/models"
	"github.com/Skotchmaster/stone_shop/internal/mykafka"
	"github.com/Skotchmaster/stone_shop/internal/repo"
)

// NoRating is reported as the average of a product nobody has reviewed.
const NoRating = -1.0

const (
	MinStars = 1
	MaxStars = 5
)

type ReviewService struct {
	Repo   *repo.GormRepo
	Events mykafka.Publisher
}

// SubmitOrUpdate stores the user's review of a product, replacing any earlier one.
func (s *ReviewService) SubmitOrUpdate(ctx context.Context, userID, productID uint, text string, stars int) (*models.Review, error) {
	l := logging.FromContext(ctx).With("svc", "review.submit", "product_id", productID)

	if userID == 0 {
		return nil, fmt.Errorf("%w: log in to leave a review", apperr.ErrAuth)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: review text is required", apperr.ErrValidation)
	}
	if stars < MinStars || stars > MaxStars {
		return nil, fmt.Errorf("%w: rating must be between %d and %d stars", apperr.ErrValidation, MinStars, MaxStars)
	}

	ok, err := s.Repo.ProductExists(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: product %d", apperr.ErrNotFound, productID)
	}

	rev := &models.Review{UserID: userID, ProductID: productID, Text: text, Stars: stars}
	if err := s.Repo.UpsertReview(ctx, rev); err != nil {
		l.Error("review_submit_failed", "status", 500, "error", err)
		return nil, err
	}

	ev := mykafka.NewEvent("review_submitted")
	ev.UserID = userID
	ev.ProductID = productID
	ev.Quantity = stars
	mykafka.Publish(ctx, s.Events, mykafka.TopicProduct, ev)

	return s.Repo.ReviewByUser(ctx, userID, productID)
}

func (s *ReviewService) Delete(ctx context.Context, reviewID uint) error {
	deleted, err := s.Repo.DeleteReview(ctx, reviewID)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("%w: review %d", apperr.ErrNotFound, reviewID)
	}
	return nil
}

// AverageRating is the mean star count, or NoRating without reviews.
func (s *ReviewService) AverageRating(ctx context.Context, productID uint) (float64, error) {
	stats, err := s.Repo.RatingStats(ctx, productID)
	if err != nil {
		return 0, err
	}
	if stats.Count == 0 {
		return NoRating, nil
	}
	return stats.Avg, nil
}

func (s *ReviewService) ForProduct(ctx context.Context, productID uint) ([]models.Review, error) {
	return s.Repo.ReviewsForProduct(ctx, productID)
}

// ByUser returns the user's review of the product or nil when there is none.
func (s *ReviewService) ByUser(ctx context.Context, userID, productID uint) (*models.Review, error) {
	if userID == 0 {
		return nil, nil
	}
	rev, err := s.Repo.ReviewByUser(ctx, userID, productID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return rev, err
}

// Stars renders a rating the way the storefront shows it.
func Stars(n int) string {
	if n < 0 {
		n = 0
	}
	return strings.Repeat("⭐", n)
}
