package authmw

import (
	"github.com/labstack/echo/v4"

	authsvc "github.com/Skotchmaster/stone_shop/internal/service/auth"
	"github.com/Skotchmaster/stone_shop/internal/tokens"
)

func SetSessionCookies(c echo.Context, res *authsvc.LoginResult, secure bool) {
	c.SetCookie(tokens.CreateCookie(tokens.AccessCookie, res.AccessToken, "/", res.AccessExp, secure))
	c.SetCookie(tokens.CreateCookie(tokens.RefreshCookie, res.RefreshToken, "/", res.RefreshExp, secure))
}

func ClearSessionCookies(c echo.Context, secure bool) {
	c.SetCookie(tokens.DeleteCookie(tokens.AccessCookie, "/", secure))
	c.SetCookie(tokens.DeleteCookie(tokens.RefreshCookie, "/", secure))
}
