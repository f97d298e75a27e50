package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/stone_shop/internal/metrics"
	authmw "github.com/Skotchmaster/stone_shop/internal/middleware/auth"
	"github.com/Skotchmaster/stone_shop/internal/service/checkout"
)

type CheckoutHandler struct {
	Base
	Checkout *checkout.CheckoutService
	Metrics  *metrics.Metrics
}

// Create answers with the processor session id the browser redirects to.
func (h *CheckoutHandler) Create(c echo.Context) error {
	id, err := h.Checkout.CreatePaymentSession(c.Request().Context(), authmw.UserID(c))
	h.Metrics.CheckoutSessions.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id})
}

func (h *CheckoutHandler) Success(c echo.Context) error {
	return h.render(c, echo.Map{"status": "success", "message": "Thank you for your order!"})
}

func (h *CheckoutHandler) Cancel(c echo.Context) error {
	return h.render(c, echo.Map{"status": "cancelled", "message": "Your payment was cancelled. Your cart has been kept."})
}
