package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/obedyakpa0-dev/VitalAndGreen/api"
	"github.com/obedyakpa0-dev/VitalAndGreen/api/routes"
	"github.com/obedyakpa0-dev/VitalAndGreen/internal/contact"
	"github.com/obedyakpa0-dev/VitalAndGreen/internal/gateway"
	"github.com/obedyakpa0-dev/VitalAndGreen/internal/inventory"
	"github.com/obedyakpa0-dev/VitalAndGreen/internal/materializer"
	"github.com/obedyakpa0-dev/VitalAndGreen/internal/orders"
	"github.com/obedyakpa0-dev/VitalAndGreen/internal/payments"
	"github.com/obedyakpa0-dev/VitalAndGreen/internal/paymentsessions"
	"github.com/obedyakpa0-dev/VitalAndGreen/internal/products"
	paystackwebhook "github.com/obedyakpa0-dev/VitalAndGreen/internal/webhooks/paystack"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/config"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/db"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/enums"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/logger"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/metrics"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/migrate"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/outbox"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/outbox/idempotency"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, redisClient.Close())
	}()

	if missing := cfg.Paystack.Missing(); len(missing) > 0 {
		logg.Warn(logg.WithField(ctx, "missing", missing), "paystack is not configured; checkout will be unavailable")
	}
	if !cfg.Mail.Configured() {
		logg.Warn(ctx, "mail is not configured; the contact form will be unavailable")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	paymentMetrics := metrics.NewPaymentMetrics(registry)

	conn := dbClient.DB()
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)

	ledger, err := inventory.NewService(inventory.NewRepository(conn), dbClient, emitter)
	if err != nil {
		return err
	}

	productService, err := products.NewService(products.NewRepository(conn), dbClient, ledger, logg)
	if err != nil {
		return err
	}
	if cfg.FeatureFlags.SeedCatalog {
		seeded, err := productService.SeedCatalog(ctx)
		if err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "seeded", seeded), "catalog seed checked")
	}

	ordersRepo := orders.NewRepository(conn)
	orderService, err := orders.NewService(ordersRepo, dbClient, emitter, ledger, logg)
	if err != nil {
		return err
	}

	sessions, err := paymentsessions.NewStore(paymentsessions.StoreParams{
		Repository:      paymentsessions.NewRepository(conn),
		TxRunner:        dbClient,
		Outbox:          emitter,
		Logger:          logg,
		ReferencePrefix: cfg.Paystack.ReferencePrefix,
	})
	if err != nil {
		return err
	}

	orderMaterializer, err := materializer.New(materializer.Params{
		Sessions:  sessions,
		Inventory: ledger,
		Orders:    ordersRepo,
		TxRunner:  dbClient,
		Outbox:    emitter,
		Logger:    logg,
		Metrics:   paymentMetrics,
	})
	if err != nil {
		return err
	}

	provider := gateway.New(gateway.Params{
		Config:  cfg.Paystack,
		Logger:  logg,
		Metrics: paymentMetrics,
	})

	paymentService, err := payments.NewService(payments.ServiceParams{
		Sessions:     sessions,
		Gateway:      provider,
		Materializer: orderMaterializer,
		Inventory:    ledger,
		Logger:       logg,
		Metrics:      paymentMetrics,
		Currency:     enums.Currency(cfg.Paystack.Currency),
	})
	if err != nil {
		return err
	}

	guard, err := idempotency.NewManager(redisClient, cfg.Eventing.WebhookIdempotencyTTL)
	if err != nil {
		return err
	}
	webhookService, err := paystackwebhook.NewService(paystackwebhook.ServiceParams{
		Verifier:     provider,
		Sessions:     sessions,
		Materializer: orderMaterializer,
		Guard:        guard,
		Logger:       logg,
		Metrics:      paymentMetrics,
	})
	if err != nil {
		return err
	}

	contactService := contact.NewService(cfg.Mail, nil, logg)

	server := api.NewServer(cfg, routes.NewRouter(routes.Params{
		Config:         cfg,
		Logger:         logg,
		DB:             dbClient,
		Redis:          redisClient,
		RateLimiter:    redisClient,
		Gatherer:       registry,
		HTTPMetrics:    metrics.NewHTTPMetrics(registry),
		Products:       productService,
		Orders:         orderService,
		Payments:       paymentService,
		PaystackEvents: webhookService,
		Contact:        contactService,
	}))

	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     server.Addr,
		"instance": id,
	})
	logg.Info(logCtx, "starting api server")

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
