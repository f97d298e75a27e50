package handlers

import (
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/stone_shop/internal/apperr"
	"github.com/Skotchmaster/stone_shop/internal/flash"
	"github.com/Skotchmaster/stone_shop/internal/metrics"
	authmw "github.com/Skotchmaster/stone_shop/internal/middleware/auth"
	"github.com/Skotchmaster/stone_shop/internal/service/contact"
)

type ContactHandler struct {
	Base
	Contact *contact.ContactService
	Metrics *metrics.Metrics
}

func (h *ContactHandler) Page(c echo.Context) error {
	return h.render(c, echo.Map{"form": []string{"subject", "fname", "lname", "email", "message"}})
}

// Submit handles both forms on the contact page. The newsletter form is the
// one that carries news_email.
func (h *ContactHandler) Submit(c echo.Context) error {
	ctx := c.Request().Context()
	uid := authmw.UserID(c)
	flash.SetReturnTo(c, "/contact")

	if params, _ := c.FormParams(); params.Has("news_email") {
		if err := h.Contact.Subscribe(ctx, uid, params.Get("news_email")); err != nil {
			return err
		}
		h.Metrics.Subscriptions.Inc()
		flash.Set(c, "Thank you for subscribing to our newsletter!")
		return seeOther(c, "/contact")
	}

	err := h.Contact.SendMessage(ctx, uid, contact.Message{
		Subject:   c.FormValue("subject"),
		FirstName: c.FormValue("fname"),
		LastName:  c.FormValue("lname"),
		Email:     c.FormValue("email"),
		Body:      c.FormValue("message"),
	})
	if err == nil || errors.Is(err, apperr.ErrDelivery) {
		h.Metrics.ContactDeliveries.WithLabelValues(metrics.Result(err)).Inc()
	}
	if err != nil {
		return err
	}
	flash.Set(c, "Thank you, your message has been sent.")
	return seeOther(c, "/contact")
}
