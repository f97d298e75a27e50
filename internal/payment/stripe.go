package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"

	"github.com/Skotchmaster/stone_shop/internal/apperr"
)

type Stripe struct {
	client     *session.Client
	successURL string
	cancelURL  string
}

func NewStripe(apiKey, successURL, cancelURL string) *Stripe {
	return NewStripeWithBackend(apiKey, stripe.GetBackend(stripe.APIBackend), successURL, cancelURL)
}

func NewStripeWithBackend(apiKey string, backend stripe.Backend, successURL, cancelURL string) *Stripe {
	return &Stripe{
		client:     &session.Client{B: backend, Key: apiKey},
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

func (s *Stripe) CreateSession(ctx context.Context, items []LineItem) (string, error) {
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:         stripe.String(s.successURL),
		CancelURL:          stripe.String(s.cancelURL),
	}
	params.Context = ctx
	for _, it := range items {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(it.Currency),
				UnitAmount: stripe.Int64(it.UnitAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(it.Name),
				},
			},
			Quantity: stripe.Int64(it.Quantity),
		})
	}

	sess, err := s.client.New(params)
	if err != nil {
		msg := err.Error()
		var serr *stripe.Error
		if errors.As(err, &serr) && serr.Msg != "" {
			msg = serr.Msg
		}
		return "", &apperr.PaymentError{Message: msg, Err: err}
	}
	if sess.ID == "" {
		return "", &apperr.PaymentError{Message: "payment processor returned no session", Err: fmt.Errorf("empty session id")}
	}
	return sess.ID, nil
}
