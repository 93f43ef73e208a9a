package main

// POST /api/checkout - Reserve one unit and start a payment session
// POST /api/webhook - Payment provider callbacks
// GET /admin/products - List products
// PUT /admin/products/{id} - Create or replace a product
// DELETE /admin/products/{id} - Delete a product
// GET /healthz, GET /metrics

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"storefront-checkout/config"
	"storefront-checkout/dedup"
	"storefront-checkout/events"
	"storefront-checkout/handler"
	"storefront-checkout/logger"
	"storefront-checkout/metrics"
	"storefront-checkout/migrations"
	"storefront-checkout/payment"
	"storefront-checkout/service"
	"storefront-checkout/store"
	"storefront-checkout/telemetry"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("error loading .env: %v", err)
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lg, err := logger.New(logger.Config{Level: cfg.LogLevel, Env: cfg.Env})
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	tp, err := telemetry.InitTracer(ctx, "storefront-checkout", cfg.Env, cfg.Tracing.Endpoint)
	if err != nil {
		lg.Fatal("Error init tracer", zap.Error(err))
	}

	// --- Store ---
	st, err := openStore(ctx, cfg, lg)
	if err != nil {
		lg.Fatal("Error opening store", zap.Error(err))
	}
	defer st.Close()

	// --- Metrics ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// --- Payment provider ---
	provider := payment.NewBreakerProvider(payment.NewStripeProvider(cfg.Stripe.SecretKey, nil), lg)
	verifier := payment.NewStripeVerifier(cfg.Stripe.WebhookSecret, cfg.Stripe.WebhookTolerance)

	// --- Dedup and events ---
	var dd dedup.Deduper = dedup.Nop{}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer rdb.Close()
		dd = dedup.NewRedisDeduper(rdb, cfg.Redis.EventTTL)
	}

	var pub events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kp.Close()
		pub = kp
	}

	// --- Service ---
	shipping := service.ShippingConfig{
		AllowedCountries: cfg.Checkout.AllowedCountries,
		ShippingRate:     cfg.Checkout.ShippingRate,
	}
	initiator := service.NewInitiator(provider, st, m, shipping, cfg.Checkout.SessionTTL, lg)
	reconciler := service.NewReconciler(st, dd, pub, m, lg)
	svc := service.NewService(st, initiator, reconciler, m, lg)

	// --- Handlers ---
	h := handler.NewHandler(svc, verifier, lg, handler.Options{
		PublicBaseURL: cfg.HTTP.PublicBaseURL,
		AdminToken:    cfg.Admin.Token,
		Metrics:       m.Handler(),
	})

	// --- Router ---
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	// --- Server ---
	srv := &http.Server{
		Addr:         cfg.HTTP.Port,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("Server running", zap.String("addr", cfg.HTTP.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		lg.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			lg.Error("Error shutting down HTTP server", zap.Error(err))
		}
		if err := tp.Shutdown(shutdownCtx); err != nil {
			lg.Error("Error stopping telemetry", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		lg.Error("Server error", zap.Error(err))
	}
}

// openStore connects to Postgres and runs migrations, or falls back to the
// in-memory store when no database url is configured.
func openStore(ctx context.Context, cfg *config.Config, lg *zap.Logger) (store.Store, error) {
	if cfg.Postgres.URL == "" {
		lg.Warn("DB_URL not set, using in-memory store")
		return store.NewMemoryStore(), nil
	}

	pg, err := store.NewPostgresStore(ctx, cfg.Postgres.URL)
	if err != nil {
		return nil, err
	}
	pg.MaxTxAttempts = cfg.Postgres.MaxTxAttempts

	if err := migrations.Up(pg.DB); err != nil {
		pg.Close()
		return nil, err
	}
	lg.Info("Database migrations executed successfully")
	return pg, nil
}
