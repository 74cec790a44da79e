package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/obedyakpa0-dev/VitalAndGreen/api/controllers"
	ordercontrollers "github.com/obedyakpa0-dev/VitalAndGreen/api/controllers/orders"
	webhookcontrollers "github.com/obedyakpa0-dev/VitalAndGreen/api/controllers/webhooks"
	"github.com/obedyakpa0-dev/VitalAndGreen/api/middleware"
	"github.com/obedyakpa0-dev/VitalAndGreen/api/responses"
	"github.com/obedyakpa0-dev/VitalAndGreen/internal/contact"
	"github.com/obedyakpa0-dev/VitalAndGreen/internal/orders"
	"github.com/obedyakpa0-dev/VitalAndGreen/internal/payments"
	"github.com/obedyakpa0-dev/VitalAndGreen/internal/products"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/config"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/db"
	pkgerrors "github.com/obedyakpa0-dev/VitalAndGreen/pkg/errors"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/logger"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/metrics"
)

// Params carries everything the router wires into handlers. Nil services
// answer with an internal error instead of panicking.
type Params struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             db.Pinger
	Redis          controllers.Pinger
	RateLimiter    middleware.RateLimitStore
	Gatherer       prometheus.Gatherer
	HTTPMetrics    *metrics.HTTPMetrics
	Products       products.Service
	Orders         orders.Service
	Payments       payments.Service
	PaystackEvents webhookcontrollers.PaystackWebhookService
	Contact        contact.Service
}

func NewRouter(p Params) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RealIP(cfg.RateLimit.TrustedProxyHops),
		middleware.RequestID(logg),
		middleware.Logging(logg, p.HTTPMetrics),
		middleware.CORS(cfg.CORS.Origins()),
	)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeNotFound, "route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeValidation, "method not allowed"))
	})

	limiter := p.RateLimiter
	window := cfg.RateLimit.Window
	apiLimit := middleware.RateLimit(middleware.NewRateLimitPolicy("api", window, cfg.RateLimit.APILimit), limiter, logg)
	ordersLimit := middleware.RateLimit(middleware.NewRateLimitPolicy("orders", window, cfg.RateLimit.OrdersLimit), limiter, logg)
	initializeLimit := middleware.RateLimit(middleware.NewRateLimitPolicy("payment_initialize", window, cfg.RateLimit.InitializeLimit), limiter, logg)
	verifyLimit := middleware.RateLimit(middleware.NewRateLimitPolicy("payment_verify", window, cfg.RateLimit.VerifyLimit), limiter, logg)
	contactLimit := middleware.RateLimit(middleware.NewRateLimitPolicy("contact", window, cfg.RateLimit.ContactLimit), limiter, logg)

	readiness := map[string]controllers.Pinger{}
	if p.DB != nil {
		readiness["postgres"] = p.DB
	}
	if p.Redis != nil {
		readiness["redis"] = p.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		// Provider callbacks are not browser traffic and stay outside the
		// shared per-IP budget.
		r.Post("/payment/webhook", webhookcontrollers.PaystackWebhook(p.PaystackEvents, logg))

		r.Group(func(r chi.Router) {
			r.Use(apiLimit)
			registerStorefront(r, p, ordersLimit, initializeLimit, verifyLimit, contactLimit)
		})
	})

	return r
}

func registerStorefront(r chi.Router, p Params, ordersLimit, initializeLimit, verifyLimit, contactLimit func(http.Handler) http.Handler) {
	logg := p.Logger

	r.Route("/products", func(r chi.Router) {
		r.Get("/", controllers.ProductList(p.Products, logg))
		r.Post("/", controllers.ProductCreate(p.Products, logg))
		r.Get("/{productId}", controllers.ProductDetail(p.Products, logg))
		r.Put("/{productId}", controllers.ProductUpdate(p.Products, logg))
		r.Delete("/{productId}", controllers.ProductDelete(p.Products, logg))
		r.Post("/{productId}/reviews", controllers.ProductAddReview(p.Products, logg))
		r.Post("/{productId}/restock", controllers.ProductRestock(p.Products, logg))
	})

	r.Route("/orders", func(r chi.Router) {
		r.Get("/", ordercontrollers.List(p.Orders, logg))
		r.Get("/number/{orderNumber}", ordercontrollers.ByNumber(p.Orders, logg))
		r.Get("/{orderId}", ordercontrollers.Detail(p.Orders, logg))
		r.With(ordersLimit).Put("/{orderId}/status", ordercontrollers.UpdateStatus(p.Orders, logg))
		r.With(ordersLimit).Post("/{orderId}/cancel", ordercontrollers.Cancel(p.Orders, logg))
	})

	r.With(initializeLimit).Post("/payment/initialize", controllers.PaymentInitialize(p.Payments, logg))
	r.With(verifyLimit).Get("/payment/verify", controllers.PaymentVerify(p.Payments, logg))

	r.With(contactLimit).Post("/contact", controllers.ContactSend(p.Contact, logg))
}
