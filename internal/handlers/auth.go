package handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/stone_shop/internal/flash"
	"github.com/Skotchmaster/stone_shop/internal/logging"
	"github.com/Skotchmaster/stone_shop/internal/metrics"
	authmw "github.com/Skotchmaster/stone_shop/internal/middleware/auth"
	authsvc "github.com/Skotchmaster/stone_shop/internal/service/auth"
)

type AuthHandler struct {
	Base
	Auth    *authsvc.AuthService
	Metrics *metrics.Metrics
	Secure  bool
}

func (h *AuthHandler) RegisterPage(c echo.Context) error {
	return h.render(c, echo.Map{"form": []string{"name", "email", "password", "confirm_password"}})
}

func (h *AuthHandler) Register(c echo.Context) error {
	flash.SetReturnTo(c, "/register")

	res, err := h.Auth.Register(c.Request().Context(), authsvc.RegisterInput{
		Name:     c.FormValue("name"),
		Email:    c.FormValue("email"),
		Password: c.FormValue("password"),
		Confirm:  c.FormValue("confirm_password"),
	})
	if err != nil {
		return err
	}
	h.Metrics.Registrations.Inc()
	authmw.SetSessionCookies(c, res, h.Secure)
	return seeOther(c, "/")
}

func (h *AuthHandler) LoginPage(c echo.Context) error {
	return h.render(c, echo.Map{"form": []string{"email", "password"}})
}

func (h *AuthHandler) Login(c echo.Context) error {
	flash.SetReturnTo(c, "/login")

	res, err := h.Auth.Login(c.Request().Context(), c.FormValue("email"), c.FormValue("password"))
	if err != nil {
		return err
	}
	authmw.SetSessionCookies(c, res, h.Secure)
	return seeOther(c, "/")
}

func (h *AuthHandler) LogOut(c echo.Context) error {
	for _, tok := range authmw.RefreshTokens(c) {
		if err := h.Auth.LogOut(c.Request().Context(), tok); err != nil {
			logging.FromContext(c.Request().Context()).Warn("logout_revoke_failed", "error", err)
		}
	}
	authmw.ClearSessionCookies(c, h.Secure)
	return seeOther(c, "/")
}
