package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/stone_shop/internal/handlers"
	"github.com/Skotchmaster/stone_shop/internal/metrics"
	authmw "github.com/Skotchmaster/stone_shop/internal/middleware/auth"
	"github.com/Skotchmaster/stone_shop/internal/middleware/csrf"
	loggingmw "github.com/Skotchmaster/stone_shop/internal/middleware/logging"
	"github.com/Skotchmaster/stone_shop/internal/repo"
	"github.com/Skotchmaster/stone_shop/internal/validate"
)

type Deps struct {
	Repo         *repo.GormRepo
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
	Session      *authmw.SessionMiddleware
	CookieSecure bool
	UploadDir    string

	AuthHandler     *handlers.AuthHandler
	ProductHandler  *handlers.ProductHandler
	CartHandler     *handlers.CartHandler
	CheckoutHandler *handlers.CheckoutHandler
	ContactHandler  *handlers.ContactHandler
	PageHandler     *handlers.PageHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.HTTPErrorHandler = ErrorHandler
	e.Validator = validate.Echo{}

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(
		middleware.Recover(),
		middleware.RequestID(),
		d.Metrics.Middleware(),
		loggingmw.RequestLogger(d.Logger),
		middleware.BodyLimit("16M"),
		csrf.Middleware(csrf.Config{
			Secure:       d.CookieSecure,
			SkipPrefixes: []string{"/create-checkout-session", "/metrics", "/health"},
		}),
		d.Session.Session,
	)

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := d.Repo.Ping(ctx); err != nil {
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	})
	e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))
	e.Static("/static/images", d.UploadDir)

	ph := d.ProductHandler
	e.GET("/", ph.Home)
	e.GET("/product", ph.Home)
	e.GET("/products", ph.List)
	e.POST("/search", ph.Search)
	e.GET("/single/:id", ph.Single)
	e.POST("/single/:id", ph.SubmitReview)

	ah := d.AuthHandler
	e.GET("/register", ah.RegisterPage)
	e.POST("/register", ah.Register)
	e.GET("/login", ah.LoginPage)
	e.POST("/login", ah.Login)
	e.GET("/logout", ah.LogOut)
	e.POST("/logout", ah.LogOut)

	admin := authmw.RequireAdmin
	e.GET("/add", ph.AddPage, admin)
	e.POST("/add", ph.Add, admin)
	e.GET("/edit/:id", ph.EditPage, admin)
	e.POST("/edit/:id", ph.Edit, admin)
	e.GET("/delete/:id", ph.Delete, admin)
	e.GET("/delete/:id/:review_id", ph.DeleteReview, admin)
	e.GET("/admin/products/export", ph.Export, admin)

	ch := d.CartHandler
	e.GET("/cart-add/:id/:redirect/:n", ch.Add)
	e.POST("/cart-add/:id/:redirect/:n", ch.Add)
	e.GET("/cart-delete/:name", ch.Remove)
	e.GET("/cart-delete-all/:name", ch.RemoveAll)
	e.GET("/cart", ch.View)

	co := d.CheckoutHandler
	e.POST("/create-checkout-session", co.Create, authmw.RequireAuth)
	e.GET("/success", co.Success, authmw.RequireAuth)
	e.GET("/cancel", co.Cancel, authmw.RequireAuth)

	e.GET("/contact", d.ContactHandler.Page)
	e.POST("/contact", d.ContactHandler.Submit)
	e.GET("/about", d.PageHandler.About)
	e.GET("/services", d.PageHandler.Services)
}
