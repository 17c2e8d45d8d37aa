package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/PoiCatalog/pkg/auth"
	"github.com/utafrali/PoiCatalog/pkg/database"
	"github.com/utafrali/PoiCatalog/pkg/health"
	"github.com/utafrali/PoiCatalog/pkg/httpclient"
	pkgkafka "github.com/utafrali/PoiCatalog/pkg/kafka"
	"github.com/utafrali/PoiCatalog/pkg/middleware"
	"github.com/utafrali/PoiCatalog/pkg/tracing"
	"github.com/utafrali/PoiCatalog/services/poi/internal/cache"
	cacheredis "github.com/utafrali/PoiCatalog/services/poi/internal/cache/redis"
	"github.com/utafrali/PoiCatalog/services/poi/internal/config"
	"github.com/utafrali/PoiCatalog/services/poi/internal/event"
	handler "github.com/utafrali/PoiCatalog/services/poi/internal/handler/http"
	"github.com/utafrali/PoiCatalog/services/poi/internal/notify"
	"github.com/utafrali/PoiCatalog/services/poi/internal/repository/postgres"
	"github.com/utafrali/PoiCatalog/services/poi/internal/scheduler"
	"github.com/utafrali/PoiCatalog/services/poi/internal/score"
	"github.com/utafrali/PoiCatalog/services/poi/internal/service"
	"github.com/utafrali/PoiCatalog/services/poi/migrations"
)

const (
	serviceName   = "poi"
	jwtExpiry     = 24 * time.Hour
	limiterIdle   = 10 * time.Minute
	liveDedupeTTL = time.Hour
)

// App wires together all dependencies and runs the poi service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	dlq            *pkgkafka.DLQProducer
	publisher      *event.Publisher
	dispatcher     *notify.Dispatcher
	scheduler      *scheduler.Scheduler
	limiter        *middleware.Limiter
	consumers      []*pkgkafka.Consumer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing(serviceName))
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize PostgreSQL connection pool.
	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, serviceName); err != nil {
		logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}

	if cfg.RunMigrations {
		if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("database migrations completed")
	}

	if threshold := cfg.SlowQueryThreshold(); threshold > 0 {
		database.SetSlowQueryLogging(threshold, logger)
	}

	// Initialize Redis for the view cache and live-event deduplication.
	redisClient, err := database.NewRedisClient(ctx, cfg.Redis())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis", slog.String("host", cfg.RedisHost), slog.Int("port", cfg.RedisPort))

	// Initialize Kafka producer with connection validation and retry.
	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	if err := pingKafkaWithRetry(ctx, producer, logger); err != nil {
		logger.Warn("kafka producer ping failed after retries, continuing in degraded mode",
			slog.String("error", err.Error()),
		)
	} else {
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}
	dlq := pkgkafka.NewDLQProducer(cfg.KafkaBrokers, logger)

	// Live events reach the SSE hub either straight from the publisher or
	// back from Kafka, so every replica sees every change.
	hub := event.NewHub()
	var local event.Broadcaster
	var consumers []*pkgkafka.Consumer
	switch cfg.LiveEventSource {
	case config.LiveSourceKafka:
		consumers = liveConsumers(cfg, hub, redisClient, dlq, logger)
	default:
		local = hub
	}
	publisher := event.NewPublisher(producer, local, event.DefaultPublisherConfig(), logger)

	// Notifications.
	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if cfg.NotifyGatewayURL != "" {
		client := httpclient.NewCircuitBreakerClient(
			httpclient.New(httpclient.DefaultConfig()),
			httpclient.DefaultCircuitBreakerConfig("notification-gateway"),
			logger,
		)
		notifier = notify.NewGatewayNotifier(client, cfg.NotifyGatewayURL)
	}
	dispatcher := notify.NewDispatcher(notifier, notify.NewKafkaDeadLetters(dlq), notify.Config{
		Workers:   cfg.NotifyWorkers,
		QueueSize: cfg.NotifyQueueSize,
		Timeout:   cfg.NotifyTimeout,
		Attempts:  cfg.NotifyAttempts,
		Backoff:   cfg.NotifyBackoff,
	}, logger)

	// Build the dependency graph.
	engine, err := score.NewEngine(cfg.Score())
	if err != nil {
		_ = redisClient.Close()
		pool.Close()
		return nil, fmt.Errorf("score engine: %w", err)
	}
	poiRepo := postgres.NewPoiRepository(pool)
	reviewRepo := postgres.NewReviewRepository(pool)
	views := cache.NewPoiViews(cacheredis.New(redisClient), cfg.CacheTTL, cfg.CacheTimeout)

	poiService := service.NewPoiService(poiRepo, views, publisher, dispatcher, logger)
	recomputer := service.NewRecomputer(poiRepo, reviewRepo, engine, views, publisher, logger)
	reviewService := service.NewReviewService(reviewRepo, poiRepo, recomputer, publisher, logger)
	batch := scheduler.New(poiRepo, recomputer, cfg.ScoreRecomputeEvery, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.Register("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthHandler.Register("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})

	// HTTP router.
	limiter := middleware.NewLimiter(cfg.ReviewRateLimitRPS, cfg.ReviewRateLimitBurst, limiterIdle)
	router := handler.NewRouter(handler.RouterConfig{
		Pois:          poiService,
		Reviews:       reviewService,
		Batch:         batch,
		Hub:           hub,
		Health:        healthHandler,
		Tokens:        auth.NewJWTManager(cfg.JWTSecret, jwtExpiry).Validator(),
		ReviewLimiter: limiter,
		CORS: handler.CORSConfig{
			AllowedOrigins: cfg.CORSOrigins,
			Environment:    cfg.Environment,
		},
	}, logger)

	// WriteTimeout stays zero: the SSE stream clears its own deadline and
	// the batch endpoint can outlive any fixed budget.
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redis:          redisClient,
		producer:       producer,
		dlq:            dlq,
		publisher:      publisher,
		dispatcher:     dispatcher,
		scheduler:      batch,
		limiter:        limiter,
		consumers:      consumers,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// liveConsumers subscribes the hub to both domain topics. Each replica
// joins its own consumer group so it receives the full stream.
func liveConsumers(cfg *config.Config, hub *event.Hub, client *redis.Client, dlq *pkgkafka.DLQProducer, logger *slog.Logger) []*pkgkafka.Consumer {
	group := cfg.LiveGroupID
	if group == "" {
		host, err := os.Hostname()
		if err != nil {
			host = fmt.Sprintf("%d", os.Getpid())
		}
		group = "poi-live-" + host
	}

	store := pkgkafka.NewRedisIdempotencyStore(client, "poi:live:"+group+":", liveDedupeTTL)
	feed := pkgkafka.IdempotentHandler(store, event.HubFeed(hub), logger)

	consumers := make([]*pkgkafka.Consumer, 0, 2)
	for _, topic := range []string{event.TopicPois, event.TopicReviews} {
		consumers = append(consumers, pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
			Brokers:  cfg.KafkaBrokers,
			GroupID:  group,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6,
		}, feed, logger).WithDLQ(dlq))
	}
	return consumers
}

// Run starts the HTTP server, Kafka consumers, and background jobs, then blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1+len(a.consumers))

	a.dispatcher.Start()

	// Start HTTP server.
	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	for _, c := range a.consumers {
		go func(c *pkgkafka.Consumer) {
			if err := c.Start(ctx); err != nil {
				errCh <- fmt.Errorf("live event consumer: %w", err)
			}
		}(c)
	}

	if a.cfg.ScoreSchedulerEnabled {
		go a.scheduler.Run(ctx, service.TriggerScheduled)
		a.logger.Info("score scheduler started", slog.Duration("interval", a.scheduler.Interval()))
	}

	go a.sweepLimiter(ctx)

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// sweepLimiter periodically forgets idle rate limit buckets.
func (a *App) sweepLimiter(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.limiter.Sweep()
		}
	}
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka consumers
// 4. Notification dispatcher (drain queued deliveries)
// 5. Event publisher (flush queued events)
// 6. Kafka producers
// 7. Redis and PostgreSQL
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error
	record := func(what string, err error) {
		if err != nil {
			a.logger.Error(what+" shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 1. Drain in-flight HTTP requests.
	httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer httpCancel()
	record("http server", a.httpServer.Shutdown(httpCtx))

	// 2. Flush pending spans after HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		record("tracer", a.tracerShutdown(tracerCtx))
	}

	// 3. Close Kafka consumers.
	for _, c := range a.consumers {
		record("live event consumer", c.Close())
	}

	// 4. Let queued notifications finish.
	notifyCtx, notifyCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer notifyCancel()
	record("notification dispatcher", a.dispatcher.Stop(notifyCtx))

	// 5. Flush queued events.
	eventsCtx, eventsCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer eventsCancel()
	record("event publisher", a.publisher.Close(eventsCtx))

	// 6. Close Kafka producers.
	record("kafka producer", a.producer.Close())
	record("kafka dlq producer", a.dlq.Close())

	// 7. Close Redis and PostgreSQL.
	record("redis", a.redis.Close())
	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// pingKafkaWithRetry attempts to ping the Kafka producer with exponential
// backoff (3 attempts, 1s/2s/4s with ±25% jitter).
func pingKafkaWithRetry(ctx context.Context, producer *pkgkafka.Producer, logger *slog.Logger) error {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if err := producer.Ping(ctx); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if attempt < 2 {
			base := time.Duration(1<<uint(attempt)) * time.Second
			jitter := time.Duration(float64(base) * 0.25 * (2*rand.Float64() - 1)) // #nosec G404 -- non-cryptographic jitter for retry backoff
			wait := base + jitter
			logger.Warn("kafka producer ping failed, retrying",
				slog.Int("attempt", attempt+1),
				slog.Int("max_attempts", 3),
				slog.Duration("backoff", wait),
				slog.String("error", lastErr.Error()),
			)
			select {
			case <-ctx.Done():
				return fmt.Errorf("kafka ping: context canceled during retry: %w", ctx.Err())
			case <-time.After(wait):
			}
		}
	}
	return fmt.Errorf("kafka producer ping failed after 3 attempts: %w", lastErr)
}
