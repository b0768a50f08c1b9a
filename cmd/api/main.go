package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-mebel/internal/cart"
	"github.com/noah-isme/backend-mebel/internal/checkout"
	"github.com/noah-isme/backend-mebel/internal/common"
	"github.com/noah-isme/backend-mebel/internal/config"
	"github.com/noah-isme/backend-mebel/internal/events"
	"github.com/noah-isme/backend-mebel/internal/health"
	"github.com/noah-isme/backend-mebel/internal/lock"
	"github.com/noah-isme/backend-mebel/internal/obs"
	"github.com/noah-isme/backend-mebel/internal/order"
	"github.com/noah-isme/backend-mebel/internal/ratelimit"
	"github.com/noah-isme/backend-mebel/internal/resilience"
	"github.com/noah-isme/backend-mebel/internal/snapshot"
)

func main() {
	cfg := config.MustLoad()

	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	tracingEnabled := cfg.Obs.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   obs.ServiceName,
			Endpoint:      cfg.Obs.OTLPEndpoint,
			Exporter:      cfg.Obs.TracingExporter,
			SamplingRatio: cfg.Obs.SamplingRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	var (
		store       snapshot.Store
		sequence    order.Sequence
		redisClient *redis.Client
		locker      lock.Locker
	)
	probes := map[string]health.Pinger{}
	if cfg.RedisURL != "" {
		redisClient = mustRedis(cfg, logger, tracingEnabled)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
		redisStore := snapshot.NewRedisStore(redisClient, "", cfg.CartTTL)
		breaker := resilience.NewBreaker("snapshots", 5, 0.5, 15*time.Second).WithLogger(logger)
		if cfg.Obs.MetricsEnabled {
			breaker.WithMetrics(resilience.NewMetrics(cfg.Obs.MetricsNamespace, prometheus.DefaultRegisterer))
		}
		store = resilience.Store{Next: redisStore, Breaker: breaker}
		sequence = order.RedisSequence{Client: redisClient}
		locker = lock.Redis{Client: redisClient}
		probes["redis"] = redisStore
	} else {
		logger.Warn().Msg("REDIS_URL not set; carts and confirmations are kept in memory")
		memStore := snapshot.NewMemoryStore()
		store = memStore
		sequence = order.NewMemorySequence(0)
		locker = &lock.Local{}
		probes["snapshots"] = memStore
	}

	var (
		domainMetrics  *obs.DomainMetrics
		httpMetrics    *obs.HTTPMetrics
		metricsHandler http.Handler
	)
	if cfg.Obs.MetricsEnabled {
		domainMetrics = obs.NewDomainMetrics(cfg.Obs.MetricsNamespace, prometheus.DefaultRegisterer)
		httpMetrics = obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, obs.ParseBucketsCSV(cfg.Obs.MetricsBuckets), nil)
		metricsHandler = promhttp.Handler()
	}

	notifiers := []events.Notifier{events.LogNotifier{Logger: logger}}
	if domainMetrics != nil {
		notifiers = append(notifiers, domainMetrics)
	}
	deps := cart.Deps{
		Store:       store,
		Bus:         &events.Bus{Notifiers: notifiers},
		Logger:      logger,
		Metrics:     domainMetrics,
		SaveTimeout: cfg.SnapshotTimeout,
	}
	validator := common.NewValidator()

	checkoutSvc := &checkout.Service{
		Rates:         cfg.Rates,
		DefaultPolicy: cfg.Policy(),
		Durations:     cfg.InstallmentMonths,
		Fees:          cfg.FeeTable(),
		Sequence:      sequence,
		Confirmations: order.Confirmations{Store: store},
		NumberPrefix:  cfg.OrderNumberPrefix,
		Metrics:       domainMetrics,
		Logger:        logger,
	}

	lim, err := ratelimit.New(cfg.RateLimit, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Str("rate", cfg.RateLimit).Msg("initialise rate limiter")
	}

	cartHandler := &cart.Handler{Deps: deps, Validator: validator, Currency: cfg.CurrencyCode}
	checkoutHandler := &checkout.Handler{Svc: checkoutSvc, Deps: deps, Validator: validator, Currency: cfg.CurrencyCode}
	limitHandler := ratelimit.Handler{
		Limiter: lim,
		OnError: func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") },
	}

	router := newRouter(routes{
		Config:      cfg,
		Logger:      logger,
		Cart:        cartHandler,
		Checkout:    checkoutHandler,
		Health:      health.Handler{Probes: probes, Timeout: cfg.Obs.HealthRedisTimeout},
		Limiter:     limitHandler,
		Locker:      locker,
		HTTPMetrics: httpMetrics,
		Metrics:     metricsHandler,
		Tracing:     tracingEnabled,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown server")
		}
	}()

	logger.Info().
		Str("addr", srv.Addr).
		Str("policy", checkoutSvc.DefaultPolicy.Name()).
		Ints("durations", cfg.InstallmentMonths).
		Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
}

func mustRedis(cfg *config.Config, logger zerolog.Logger, tracing bool) *redis.Client {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	client := redis.NewClient(opts)
	if tracing {
		if err := redisotel.InstrumentTracing(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis tracing")
		}
	}
	if cfg.Obs.MetricsEnabled {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return client
}
