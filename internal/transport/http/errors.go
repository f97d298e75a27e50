package httpserver

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/stone_shop/internal/apperr"
	"github.com/Skotchmaster/stone_shop/internal/flash"
	"github.com/Skotchmaster/stone_shop/internal/logging"
)

// ErrorHandler turns service errors into responses. Errors the user can fix
// become a flash message and a redirect back to a page.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	l := logging.FromContext(c.Request().Context())

	var he *echo.HTTPError
	var perr *apperr.PaymentError
	switch {
	case errors.As(err, &he):
		msg := he.Message
		if s, ok := msg.(string); ok {
			msg = echo.Map{"status": "error", "message": s}
		}
		respond(c, he.Code, msg)

	case errors.As(err, &perr):
		respond(c, http.StatusForbidden, echo.Map{"error": perr.Message})

	case errors.Is(err, apperr.ErrForbidden):
		respond(c, http.StatusForbidden, echo.Map{"status": "error", "message": apperr.Message(err)})

	case errors.Is(err, apperr.ErrNotFound):
		respond(c, http.StatusNotFound, echo.Map{"status": "error", "message": "not found"})

	case errors.Is(err, apperr.ErrAuth):
		flash.Set(c, apperr.Message(err))
		redirect(c, firstNonEmpty(flash.ReturnTo(c), "/login"))

	case apperr.IsValidation(err), errors.Is(err, apperr.ErrDelivery):
		flash.Set(c, apperr.Message(err))
		redirect(c, firstNonEmpty(flash.ReturnTo(c), refererPath(c.Request()), "/"))

	default:
		l.Error("unhandled_error", "status", 500, "error", err)
		respond(c, http.StatusInternalServerError, echo.Map{"status": "error", "message": "internal server error"})
	}
}

func respond(c echo.Context, code int, body any) {
	var err error
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, body)
	}
	if err != nil {
		logging.FromContext(c.Request().Context()).Error("error_response_failed", "error", err)
	}
}

func redirect(c echo.Context, path string) {
	if err := c.Redirect(http.StatusSeeOther, path); err != nil {
		logging.FromContext(c.Request().Context()).Error("error_redirect_failed", "error", err)
	}
}

// refererPath returns the Referer path when it points back at this host.
func refererPath(r *http.Request) string {
	ref := r.Header.Get("Referer")
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil || u.Host != r.Host || u.Path == "" {
		return ""
	}
	if u.RawQuery != "" {
		return u.Path + "?" + u.RawQuery
	}
	return u.Path
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
