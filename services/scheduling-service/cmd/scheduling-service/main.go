package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/md-rashed-zaman/salonbook/libs/config"
	"github.com/md-rashed-zaman/salonbook/libs/db"
	"github.com/md-rashed-zaman/salonbook/libs/grpcx"
	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/salonbook/libs/otel"
	"github.com/md-rashed-zaman/salonbook/libs/runtime"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/changes"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/feed"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/handlers"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/outbox"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/quickcapture"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/seed"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/session"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/settings"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/storage"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/store"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/migrations"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}

	service := config.String("SERVICE_NAME", "scheduling-service")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}

	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	salon, err := settings.Load(config.String("SETTINGS_PATH", "data/settings.yaml"))
	if err != nil {
		logger.Error("settings load failed", "err", err)
		panic(err)
	}
	loc := salon.Location()
	wallClock := func() time.Time { return model.Naive(time.Now().In(loc)) }

	readyChecks := []runtime.ReadyCheck{
		{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	}

	var notifier changes.Notifier = changes.NewLocal()
	var rdb *redis.Client
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer rdb.Close()
		redisNotifier := changes.NewRedis(rdb, config.String("REDIS_CHANGES_PREFIX", ""), logger)
		go redisNotifier.Run(ctx)
		notifier = redisNotifier
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: redisNotifier.ReadyCheck})
	}

	var (
		st   store.Store
		pool *db.Pool
	)
	if dbURL := config.String("DATABASE_URL", ""); dbURL != "" {
		pool, err = db.Open(ctx, dbURL)
		if err != nil {
			logger.Error("db connection failed", "err", err)
			panic(err)
		}
		defer pool.Close()
		if err := migrations.Apply(ctx, pool); err != nil {
			logger.Error("db migration failed", "err", err)
			panic(err)
		}
		st = storage.NewPostgres(pool, notifier, logger)
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})
	} else {
		logger.Warn("DATABASE_URL not set; using in-memory store")
		st = store.NewMemory(notifier)
	}

	if config.Bool("SEED_DEMO_DATA", false) {
		seeded, err := seed.Load(ctx, st, wallClock(), true, logger)
		if err != nil {
			logger.Error("demo seed failed", "err", err)
		} else if seeded {
			logger.Info("demo data loaded")
		}
	}

	hub := feed.NewHub(st, logger)
	if err := hub.Start(ctx, config.String("RESYNC_CRON", "@every 5m")); err != nil {
		logger.Error("snapshot feed start failed", "err", err)
		panic(err)
	}
	defer hub.Stop()

	parser, closeParser := newParser(ctx, hub, wallClock, logger)
	defer closeParser()

	if grpcPort := config.String("CAPTURE_GRPC_PORT", ""); grpcPort != "" {
		if err := startCaptureServer(ctx, logger, grpcPort, quickcapture.NewKeywordParser(hub, wallClock)); err != nil {
			logger.Error("grpc server start failed", "err", err)
			panic(err)
		}
	}

	events := session.NewRecorder(config.Int("SESSION_EVENT_HISTORY", 100))
	registry := handlers.NewRegistry(hub, st, events, logger, wallClock)

	rateLimit := config.Int("RATE_LIMIT_PER_MINUTE", 300)
	localLimiter := httpx.NewRateLimiter(rateLimit, time.Minute)

	jobs := cron.New()
	idle := time.Duration(config.Int("SESSION_IDLE_MINUTES", 30)) * time.Minute
	if _, err := jobs.AddFunc("@every 1m", func() { registry.PurgeIdle(idle) }); err != nil {
		panic(err)
	}
	if _, err := jobs.AddFunc("@every 5m", func() { localLimiter.Sweep() }); err != nil {
		panic(err)
	}

	if pool != nil {
		publisher := outbox.NewPublisher(pool, outbox.NewRepository(), logger, outbox.PublisherConfig{
			Brokers:   config.String("KAFKA_BROKERS", ""),
			PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
			BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
			RetainFor: config.Duration("OUTBOX_RETAIN_FOR", 7*24*time.Hour),
		})
		go publisher.Run(ctx)
		if _, err := jobs.AddFunc(config.String("OUTBOX_PURGE_CRON", "@hourly"), func() { publisher.Purge(ctx) }); err != nil {
			logger.Error("invalid OUTBOX_PURGE_CRON", "err", err)
		}
	}
	jobs.Start()
	defer func() { <-jobs.Stop().Done() }()

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	handlers.NewCalendarHandler(hub, salon, logger, wallClock).Routes(mux)
	handlers.NewCatalogHandler(st, hub, logger).Routes(mux)
	handlers.NewSessionHandler(registry, hub, quickcapture.NewAdapter(parser, hub, logger), events, logger).Routes(mux)

	limiter := localLimiter.Middleware()
	if rdb != nil {
		limiter = httpx.NewRedisRateLimiter(rdb, rateLimit, time.Minute, "salonbook:rl").Middleware(logger, true)
	}

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "X-Request-Id"},
			MaxAge:         10 * time.Minute,
		}),
		limiter,
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(15*time.Second),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "scheduling")

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

// newParser dials the quick-capture service when CAPTURE_GRPC_ADDR is set and
// falls back to the local keyword parser otherwise or when the dial fails.
func newParser(ctx context.Context, source session.SnapshotSource, now func() time.Time, logger *slog.Logger) (quickcapture.Parser, func()) {
	fallback := quickcapture.NewKeywordParser(source, now)
	addr := strings.TrimSpace(config.String("CAPTURE_GRPC_ADDR", ""))
	if addr == "" {
		return fallback, func() {}
	}
	conn, err := grpcx.Dial(ctx, addr, grpcx.DialOptions{
		Timeout:     config.Duration("CAPTURE_DIAL_TIMEOUT", 3*time.Second),
		CallTimeout: config.Duration("CAPTURE_CALL_TIMEOUT", 5*time.Second),
	})
	if err != nil {
		logger.Error("quick capture dial failed; using keyword parser", "addr", addr, "err", err)
		return fallback, func() {}
	}
	return quickcapture.NewGRPCParser(conn), func() { _ = conn.Close() }
}
