package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/stone_shop/internal/apperr"
	"github.com/Skotchmaster/stone_shop/internal/flash"
	"github.com/Skotchmaster/stone_shop/internal/metrics"
	authmw "github.com/Skotchmaster/stone_shop/internal/middleware/auth"
)

type CartHandler struct {
	Base
	Metrics *metrics.Metrics
}

// redirectTarget maps the page name in /cart-add/:id/:redirect/:n to a path.
func redirectTarget(name string, productID uint) string {
	switch name {
	case "product":
		return "/product"
	case "single":
		return fmt.Sprintf("/single/%d", productID)
	case "cart":
		return "/cart"
	case "contact":
		return "/contact"
	default:
		return "/"
	}
}

func (h *CartHandler) Add(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	back := redirectTarget(c.Param("redirect"), id)
	if authmw.UserID(c) != 0 {
		flash.SetReturnTo(c, back)
	}

	n, err := strconv.Atoi(c.Param("n"))
	if err != nil {
		return fmt.Errorf("%w: quantity must be a number", apperr.ErrValidation)
	}
	if err := h.Cart.Add(c.Request().Context(), authmw.UserID(c), id, n); err != nil {
		return err
	}
	h.Metrics.CartUnitsAdded.Add(float64(n))
	return seeOther(c, back)
}

func (h *CartHandler) Remove(c echo.Context) error {
	flash.SetReturnTo(c, "/cart")
	if err := h.Cart.RemoveOne(c.Request().Context(), authmw.UserID(c), c.Param("name")); err != nil {
		return err
	}
	return seeOther(c, "/cart")
}

func (h *CartHandler) RemoveAll(c echo.Context) error {
	flash.SetReturnTo(c, "/cart")
	if err := h.Cart.RemoveAll(c.Request().Context(), authmw.UserID(c), c.Param("name")); err != nil {
		return err
	}
	return seeOther(c, "/cart")
}

func (h *CartHandler) View(c echo.Context) error {
	sum, err := h.Cart.Summarize(c.Request().Context(), authmw.UserID(c))
	if err != nil {
		return err
	}
	doc := h.page(c, echo.Map{"cart": sum.Lines, "total": sum.Total})
	return c.JSON(http.StatusOK, doc)
}
