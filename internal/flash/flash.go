package flash

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	cookieName  = "flash"
	returnToKey = "flash_return_to"
)

// Set stores a one-shot message for the next page the browser loads.
func Set(c echo.Context, msg string) {
	c.SetCookie(&http.Cookie{
		Name:     cookieName,
		Value:    base64.RawURLEncoding.EncodeToString([]byte(msg)),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   60,
	})
}

// Pop returns the pending message, if any, and clears it.
func Pop(c echo.Context) string {
	ck, err := c.Cookie(cookieName)
	if err != nil || ck.Value == "" {
		return ""
	}
	c.SetCookie(&http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	b, err := base64.RawURLEncoding.DecodeString(ck.Value)
	if err != nil {
		return ""
	}
	return string(b)
}

// SetReturnTo names the page a failed request should send the user back to.
func SetReturnTo(c echo.Context, path string) {
	c.Set(returnToKey, path)
}

func ReturnTo(c echo.Context) string {
	if v, ok := c.Get(returnToKey).(string); ok {
		return v
	}
	return ""
}
