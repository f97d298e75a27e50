package authmw

import (
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/stone_shop/internal/apperr"
	"github.com/Skotchmaster/stone_shop/internal/logging"
	"github.com/Skotchmaster/stone_shop/internal/models"
	authsvc "github.com/Skotchmaster/stone_shop/internal/service/auth"
	"github.com/Skotchmaster/stone_shop/internal/tokens"
)

const (
	userIDKey     = "user_id"
	roleKey       = "role"
	rotatedRefKey = "rotated_refresh_token"
)

type SessionMiddleware struct {
	Auth      *authsvc.AuthService
	JWTSecret []byte
	Secure    bool
}

// Session resolves the caller from the session cookies and never rejects a
// request. An expired access token is renewed from the refresh cookie.
func (m *SessionMiddleware) Session(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if ck, err := c.Cookie(tokens.AccessCookie); err == nil && ck.Value != "" {
			claims, err := tokens.AccessClaimsFromToken(ck.Value, m.JWTSecret)
			if err == nil {
				if id, err := authsvc.ParseSubject(claims.Subject); err == nil {
					setUser(c, id, claims.Role)
					return next(c)
				}
			}
		}

		rc, err := c.Cookie(tokens.RefreshCookie)
		if err != nil || rc.Value == "" {
			return next(c)
		}

		ctx := c.Request().Context()
		res, err := m.Auth.Refresh(ctx, rc.Value)
		if err != nil {
			logging.FromContext(ctx).Info("session_refresh_failed", "error", err)
			ClearSessionCookies(c, m.Secure)
			return next(c)
		}

		SetSessionCookies(c, res, m.Secure)
		c.Set(rotatedRefKey, res.RefreshToken)
		setUser(c, res.User.ID, res.User.Role)
		return next(c)
	}
}

func RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if UserID(c) == 0 {
			return fmt.Errorf("%w: You need to login or register to perform this action.", apperr.ErrAuth)
		}
		return next(c)
	}
}

// RequireAdmin rejects anonymous callers too, with the same forbidden error.
func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !IsAdmin(c) {
			return fmt.Errorf("%w: admin access required", apperr.ErrForbidden)
		}
		return next(c)
	}
}

func setUser(c echo.Context, id uint, role string) {
	c.Set(userIDKey, id)
	c.Set(roleKey, role)

	req := c.Request()
	l := logging.FromContext(req.Context()).With("user_id", id)
	c.SetRequest(req.WithContext(logging.IntoContext(req.Context(), l)))
}

// UserID is the signed-in user's id, or 0 for anonymous callers.
func UserID(c echo.Context) uint {
	id, _ := c.Get(userIDKey).(uint)
	return id
}

// RefreshTokens lists every refresh token that belongs to the current
// session: the cookie sent by the browser and, when the session was renewed
// during this request, the token issued in its place.
func RefreshTokens(c echo.Context) []string {
	var out []string
	if ck, err := c.Cookie(tokens.RefreshCookie); err == nil && ck.Value != "" {
		out = append(out, ck.Value)
	}
	if v, ok := c.Get(rotatedRefKey).(string); ok && v != "" {
		out = append(out, v)
	}
	return out
}

func IsAdmin(c echo.Context) bool {
	role, _ := c.Get(roleKey).(string)
	return UserID(c) != 0 && role == models.RoleAdmin
}
