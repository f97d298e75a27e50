package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/stone_shop/internal/config"
	"github.com/Skotchmaster/stone_shop/internal/es"
	"github.com/Skotchmaster/stone_shop/internal/handlers"
	"github.com/Skotchmaster/stone_shop/internal/logging"
	"github.com/Skotchmaster/stone_shop/internal/mail"
	"github.com/Skotchmaster/stone_shop/internal/metrics"
	authmw "github.com/Skotchmaster/stone_shop/internal/middleware/auth"
	"github.com/Skotchmaster/stone_shop/internal/mykafka"
	"github.com/Skotchmaster/stone_shop/internal/payment"
	"github.com/Skotchmaster/stone_shop/internal/repo"
	authsvc "github.com/Skotchmaster/stone_shop/internal/service/auth"
	cartsvc "github.com/Skotchmaster/stone_shop/internal/service/cart"
	"github.com/Skotchmaster/stone_shop/internal/service/catalog"
	"github.com/Skotchmaster/stone_shop/internal/service/checkout"
	"github.com/Skotchmaster/stone_shop/internal/service/contact"
	reviewsvc "github.com/Skotchmaster/stone_shop/internal/service/review"
	"github.com/Skotchmaster/stone_shop/internal/service/search"
	"github.com/Skotchmaster/stone_shop/internal/storage"
	httpserver "github.com/Skotchmaster/stone_shop/internal/transport/http"
)

func main() {
	cfg := config.Load()

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	config.MustNonEmptyBytes(cfg.JWTAccessSecret, "JWT_SECRET")
	config.MustNonEmptyBytes(cfg.JWTRefreshSecret, "JWT_REFRESH_SECRET")
	if cfg.StripeAPIKey == "" {
		logger.Warn("stripe_not_configured", "reason", "STRIPE_API_KEY is empty, checkout will fail")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := config.InitDB(ctx, cfg)
	cancel()
	if err != nil {
		log.Fatalf("db init: %v", err)
	}
	r := repo.New(db)

	images, err := storage.NewImageStore(cfg.UploadDir)
	if err != nil {
		log.Fatalf("image store: %v", err)
	}

	var events mykafka.Publisher = mykafka.Nop{}
	var producer *mykafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = mykafka.NewProducer(cfg.KafkaBrokers)
		events = producer
	} else {
		logger.Info("kafka_disabled", "reason", "KAFKA_BROKERS is empty")
	}

	var searcher search.Searcher = &search.DBSearcher{Repo: r}
	var indexer search.Indexer = search.NopIndexer{}
	if cfg.ESURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := es.NewClient(ctx, cfg)
		cancel()
		if err != nil {
			logger.Warn("es_unavailable", "reason", "falling back to database search", "error", err)
		} else {
			el := &search.Elastic{Client: client, Index: cfg.ESIndex, Repo: r}
			syncCtx, cancel := context.WithTimeout(logging.IntoContext(context.Background(), logger), 30*time.Second)
			err := el.Sync(syncCtx)
			cancel()
			if err != nil {
				logger.Warn("es_sync_failed", "reason", "falling back to database search", "error", err)
			} else {
				searcher, indexer = el, el
			}
		}
	}

	operator := cfg.MailTo
	if operator == "" {
		operator = cfg.SMTPUser
	}
	var sender mail.Sender
	switch cfg.MailDriver {
	case "resend":
		config.MustNonEmpty(cfg.ResendAPIKey, "RESEND_API_KEY")
		sender = mail.NewResend(cfg.ResendAPIKey, cfg.MailFrom)
	default:
		sender = mail.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom)
	}

	m := metrics.New(cfg.ServiceName)

	auth := &authsvc.AuthService{
		Repo:          r,
		JWTSecret:     cfg.JWTAccessSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		AdminEmail:    cfg.AdminEmail,
		Events:        events,
	}
	cart := &cartsvc.CartService{Repo: r, Events: events}
	base := handlers.Base{Cart: cart}

	e := echo.New()
	e.HideBanner = true

	httpserver.Register(e, &httpserver.Deps{
		Repo:         r,
		Logger:       logger,
		Metrics:      m,
		Session:      &authmw.SessionMiddleware{Auth: auth, JWTSecret: cfg.JWTAccessSecret, Secure: cfg.CookieSecure},
		CookieSecure: cfg.CookieSecure,
		UploadDir:    cfg.UploadDir,

		AuthHandler: &handlers.AuthHandler{Base: base, Auth: auth, Metrics: m, Secure: cfg.CookieSecure},
		ProductHandler: &handlers.ProductHandler{
			Base: base,
			Catalog: &catalog.CatalogService{
				Repo:     r,
				Images:   images,
				Searcher: searcher,
				Indexer:  indexer,
				Events:   events,
			},
			Reviews: &reviewsvc.ReviewService{Repo: r, Events: events},
		},
		CartHandler: &handlers.CartHandler{Base: base, Metrics: m},
		CheckoutHandler: &handlers.CheckoutHandler{
			Base: base,
			Checkout: &checkout.CheckoutService{
				Cart:      cart,
				Processor: payment.NewStripe(cfg.StripeAPIKey, cfg.SuccessURL, cfg.CancelURL),
				Currency:  cfg.Currency,
				Events:    events,
			},
			Metrics: m,
		},
		ContactHandler: &handlers.ContactHandler{
			Base: base,
			Contact: &contact.ContactService{
				Repo:                    r,
				Mail:                    sender,
				ShopName:                cfg.ShopName,
				Operator:                operator,
				NewsletterRequiresLogin: cfg.NewsletterRequiresLogin,
			},
			Metrics: m,
		},
		PageHandler: &handlers.PageHandler{Base: base},
	})

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.ServerPort),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server_listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting_down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_failed", "error", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("db_close_failed", "error", err)
		}
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error("kafka_close_failed", "error", err)
		}
	}

	logger.Info("shutdown_complete")
}
