package payment

import "context"

// LineItem is one product of a checkout. UnitAmount is in minor currency units.
type LineItem struct {
	Name       string
	Currency   string
	UnitAmount int64
	Quantity   int64
}

// Processor opens a hosted payment session and returns its identifier.
type Processor interface {
	CreateSession(ctx context.Context, items []LineItem) (string, error)
}
