package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so several instances can coexist in tests.
type Metrics struct {
	ServiceName string
	Registry    *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec

	Registrations     prometheus.Counter
	CartUnitsAdded    prometheus.Counter
	CheckoutSessions  *prometheus.CounterVec
	ContactDeliveries *prometheus.CounterVec
	Subscriptions     prometheus.Counter
}

func New(serviceName string) *Metrics {
	m := &Metrics{
		ServiceName: serviceName,
		Registry:    prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"service", "method", "path", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service", "method", "path", "status"},
		),
		Registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shop_registrations_total",
			Help: "Accounts created",
		}),
		CartUnitsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shop_cart_units_added_total",
			Help: "Product units put into carts",
		}),
		CheckoutSessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shop_checkout_sessions_total",
			Help: "Payment sessions requested, by result",
		}, []string{"result"}),
		ContactDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shop_contact_messages_total",
			Help: "Contact messages handed to the mail transport, by result",
		}, []string{"result"}),
		Subscriptions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shop_newsletter_subscriptions_total",
			Help: "Newsletter sign-ups",
		}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.duration,
		m.Registrations,
		m.CartUnitsAdded,
		m.CheckoutSessions,
		m.ContactDeliveries,
		m.Subscriptions,
	)
	return m
}

// Middleware records request count and latency per route.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			statusStr := strconv.Itoa(status)
			method := c.Request().Method
			path := c.Path()

			m.requests.WithLabelValues(m.ServiceName, method, path, statusStr).Inc()
			m.duration.WithLabelValues(m.ServiceName, method, path, statusStr).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Result turns an error into the "ok"/"error" label used by the domain counters.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
