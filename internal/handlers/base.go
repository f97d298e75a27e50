package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/stone_shop/internal/apperr"
	"github.com/Skotchmaster/stone_shop/internal/flash"
	"github.com/Skotchmaster/stone_shop/internal/logging"
	authmw "github.com/Skotchmaster/stone_shop/internal/middleware/auth"
	"github.com/Skotchmaster/stone_shop/internal/middleware/csrf"
	cartsvc "github.com/Skotchmaster/stone_shop/internal/service/cart"
)

// Base carries what every page payload needs.
type Base struct {
	Cart *cartsvc.CartService
}

// page builds the common page document and merges data into it.
func (b *Base) page(c echo.Context, data echo.Map) echo.Map {
	uid := authmw.UserID(c)
	doc := echo.Map{
		"logged_in":  uid != 0,
		"is_admin":   authmw.IsAdmin(c),
		"item_num":   int64(0),
		"flash":      flash.Pop(c),
		"csrf_token": c.Get(csrf.ContextKey),
	}
	if b.Cart != nil && uid != 0 {
		n, err := b.Cart.ItemCount(c.Request().Context(), uid)
		if err != nil {
			logging.FromContext(c.Request().Context()).Warn("item_count_failed", "error", err)
		} else {
			doc["item_num"] = n
		}
	}
	for k, v := range data {
		doc[k] = v
	}
	return doc
}

func (b *Base) render(c echo.Context, data echo.Map) error {
	return c.JSON(http.StatusOK, b.page(c, data))
}

func seeOther(c echo.Context, path string) error {
	return c.Redirect(http.StatusSeeOther, path)
}

// paramID reads a numeric path parameter. Anything else cannot name a row.
func paramID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: %s %q", apperr.ErrNotFound, name, c.Param(name))
	}
	return uint(id), nil
}
