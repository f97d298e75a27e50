package apperr

import (
	"errors"
	"strings"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

var (
	ErrValidation = errors.New("validation") // 400, flash + redirect
	ErrConflict   = errors.New("conflict")   // duplicate unique key, treated as validation
	ErrAuth       = errors.New("unauthorized")
	ErrForbidden  = errors.New("forbidden")
	ErrNotFound   = errors.New("not found")
	ErrPayment    = errors.New("payment")
	ErrDelivery   = errors.New("delivery")
)

// PaymentError carries the processor's message verbatim.
type PaymentError struct {
	Message string
	Err     error
}

func (e *PaymentError) Error() string { return e.Message }

func (e *PaymentError) Unwrap() error { return e.Err }

func (e *PaymentError) Is(target error) bool { return target == ErrPayment }

type DeliveryError struct {
	Message string
	Err     error
}

func (e *DeliveryError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *DeliveryError) Unwrap() error { return e.Err }

func (e *DeliveryError) Is(target error) bool { return target == ErrDelivery }

// IsValidation reports whether err should be shown back to the user as a form error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrConflict)
}

// IsUniqueViolation recognises duplicate-key failures from both postgres and sqlite.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "sqlstate 23505")
}

var userFacing = []error{ErrValidation, ErrConflict, ErrAuth, ErrForbidden, ErrNotFound}

// Message is the text shown to a user: the wrapped detail without the sentinel prefix.
func Message(err error) string {
	var perr *PaymentError
	if errors.As(err, &perr) {
		return perr.Message
	}
	var derr *DeliveryError
	if errors.As(err, &derr) {
		return derr.Message
	}
	msg := err.Error()
	for _, s := range userFacing {
		if errors.Is(err, s) {
			if rest, ok := strings.CutPrefix(msg, s.Error()+": "); ok {
				return rest
			}
		}
	}
	return msg
}
