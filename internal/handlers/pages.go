package handlers

import "github.com/labstack/echo/v4"

type PageHandler struct {
	Base
}

func (h *PageHandler) About(c echo.Context) error {
	return h.render(c, echo.Map{"page": "about"})
}

func (h *PageHandler) Services(c echo.Context) error {
	return h.render(c, echo.Map{"page": "services"})
}
