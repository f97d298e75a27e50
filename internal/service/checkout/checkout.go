package checkout

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/Skotchmaster/stone_shop/internal/apperr"
	"github.com/Skotchmaster/stone_shop/internal/logging"
	"github.com/Skotchmaster/stone_shop/internal/mykafka"
	"github.com/Skotchmaster/stone_shop/internal/payment"
	"github.com/Skotchmaster/stone_shop/internal/service/cart"
)

type CheckoutService struct {
	Cart      *cart.CartService
	Processor payment.Processor
	Currency  string
	Events    mykafka.Publisher
}

// MinorUnits converts a decimal price to the smallest currency unit, rounding to the nearest.
func MinorUnits(price float64) int64 {
	return int64(math.Round(price * 100))
}

// CreatePaymentSession prices the current cart and asks the processor for a
// hosted session. The cart is left as is.
func (s *CheckoutService) CreatePaymentSession(ctx context.Context, userID uint) (string, error) {
	l := logging.FromContext(ctx).With("svc", "checkout.session", "user_id", userID)

	if userID == 0 {
		return "", fmt.Errorf("%w: log in to check out", apperr.ErrAuth)
	}
	sum, err := s.Cart.Summarize(ctx, userID)
	if err != nil {
		return "", err
	}
	if len(sum.Lines) == 0 {
		return "", fmt.Errorf("%w: your cart is empty", apperr.ErrValidation)
	}

	items := make([]payment.LineItem, 0, len(sum.Lines))
	for _, line := range sum.Lines {
		items = append(items, payment.LineItem{
			Name:       line.Name,
			Currency:   s.Currency,
			UnitAmount: MinorUnits(line.UnitPrice),
			Quantity:   line.Count,
		})
	}

	id, err := s.Processor.CreateSession(ctx, items)
	if err != nil {
		var perr *apperr.PaymentError
		if !errors.As(err, &perr) {
			err = &apperr.PaymentError{Message: err.Error(), Err: err}
		}
		l.Warn("checkout_failed", "status", 403, "reason", "payment processor rejected session", "error", err)
		return "", err
	}

	ev := mykafka.NewEvent("checkout_session_created")
	ev.UserID = userID
	ev.Quantity = int(sum.Items)
	ev.Reference = id
	mykafka.Publish(ctx, s.Events, mykafka.TopicOrder, ev)

	l.Info("checkout_session_created", "session_id", id, "lines", len(items))
	return id, nil
}
