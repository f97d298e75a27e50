package cart

import (
	"context"
	"fmt"
	"math"

	"github.com/Skotchmaster/stone_shop/internal/apperr"
	"github.com/Skotchmaster/stone_shop/internal/logging"
	"github.com/Skotchmaster/stone_shop/internal/mykafka"
	"github.com/Skotchmaster/stone_shop/internal/repo"
)

// MaxQuantity bounds a single add so one request cannot insert unbounded rows.
const MaxQuantity = 100

type CartService struct {
	Repo   *repo.GormRepo
	Events mykafka.Publisher
}

// Line is one product in a cart summary. Price is UnitPrice times Count.
type Line struct {
	ProductID uint    `json:"product_id"`
	Name      string  `json:"name"`
	Image     string  `json:"image"`
	Count     int64   `json:"count"`
	UnitPrice float64 `json:"unit_price"`
	Price     float64 `json:"price"`
}

type Summary struct {
	Lines []Line  `json:"lines"`
	Total float64 `json:"total"`
	Items int64   `json:"items"`
}

func (s *CartService) Add(ctx context.Context, userID, productID uint, quantity int) error {
	l := logging.FromContext(ctx).With("svc", "cart.add", "product_id", productID)

	if userID == 0 {
		return fmt.Errorf("%w: log in to add items to your cart", apperr.ErrAuth)
	}
	if quantity < 1 || quantity > MaxQuantity {
		return fmt.Errorf("%w: quantity must be between 1 and %d", apperr.ErrValidation, MaxQuantity)
	}
	ok, err := s.Repo.ProductExists(ctx, productID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: product %d", apperr.ErrNotFound, productID)
	}

	if err := s.Repo.AddCartItems(ctx, userID, productID, quantity); err != nil {
		l.Error("cart_add_failed", "status", 500, "error", err)
		return err
	}

	ev := mykafka.NewEvent("cart_items_added")
	ev.UserID = userID
	ev.ProductID = productID
	ev.Quantity = quantity
	mykafka.Publish(ctx, s.Events, mykafka.TopicCart, ev)
	return nil
}

// RemoveOne drops a single unit of the named product. Nothing happens when
// the cart holds none.
func (s *CartService) RemoveOne(ctx context.Context, userID uint, productName string) error {
	if userID == 0 {
		return fmt.Errorf("%w: log in to manage your cart", apperr.ErrAuth)
	}
	deleted, err := s.Repo.DeleteOneCartItem(ctx, userID, productName)
	if err != nil {
		return err
	}
	if deleted {
		ev := mykafka.NewEvent("cart_item_removed")
		ev.UserID = userID
		ev.Reference = productName
		ev.Quantity = 1
		mykafka.Publish(ctx, s.Events, mykafka.TopicCart, ev)
	}
	return nil
}

func (s *CartService) RemoveAll(ctx context.Context, userID uint, productName string) error {
	if userID == 0 {
		return fmt.Errorf("%w: log in to manage your cart", apperr.ErrAuth)
	}
	n, err := s.Repo.DeleteAllCartItems(ctx, userID, productName)
	if err != nil {
		return err
	}
	if n > 0 {
		ev := mykafka.NewEvent("cart_items_removed")
		ev.UserID = userID
		ev.Reference = productName
		ev.Quantity = int(n)
		mykafka.Publish(ctx, s.Events, mykafka.TopicCart, ev)
	}
	return nil
}

// Summarize groups the cart by product. Units of deleted products are left out.
func (s *CartService) Summarize(ctx context.Context, userID uint) (*Summary, error) {
	if userID == 0 {
		return &Summary{Lines: []Line{}}, nil
	}
	rows, err := s.Repo.CartRows(ctx, userID)
	if err != nil {
		return nil, err
	}

	sum := &Summary{Lines: make([]Line, 0, len(rows))}
	for _, r := range rows {
		line := Line{
			ProductID: r.ProductID,
			Name:      r.Name,
			Image:     r.MainImage,
			Count:     r.Count,
			UnitPrice: r.Price,
			Price:     roundCents(r.Price * float64(r.Count)),
		}
		sum.Lines = append(sum.Lines, line)
		sum.Total += line.Price
		sum.Items += line.Count
	}
	sum.Total = roundCents(sum.Total)
	return sum, nil
}

// ItemCount is the number of units the user holds, including units of deleted products.
func (s *CartService) ItemCount(ctx context.Context, userID uint) (int64, error) {
	if userID == 0 {
		return 0, nil
	}
	return s.Repo.CountCartItems(ctx, userID)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
