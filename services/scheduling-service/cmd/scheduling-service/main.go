package main

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mediflow/scheduling/libs/config"
	"github.com/mediflow/scheduling/libs/db"
	"github.com/mediflow/scheduling/libs/httpx"
	"github.com/mediflow/scheduling/libs/kafkax"
	otelx "github.com/mediflow/scheduling/libs/otel"
	"github.com/mediflow/scheduling/libs/runtime"
	"github.com/mediflow/scheduling/services/scheduling-service/internal/consumer"
	"github.com/mediflow/scheduling/services/scheduling-service/internal/dispatch"
	"github.com/mediflow/scheduling/services/scheduling-service/internal/engine"
	"github.com/mediflow/scheduling/services/scheduling-service/internal/handlers"
	"github.com/mediflow/scheduling/services/scheduling-service/internal/inbox"
	"github.com/mediflow/scheduling/services/scheduling-service/internal/outbox"
	"github.com/mediflow/scheduling/services/scheduling-service/internal/profile"
	"github.com/mediflow/scheduling/services/scheduling-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "scheduling-service")
	port, err := config.Port("PORT", "8084")
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

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL, db.Options{
		MaxConns: int32(config.Int("DB_MAX_CONNS", 10)),
	})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	outboxRepo := outbox.NewRepository(pool)
	store := storage.NewAppointmentStore(pool, outboxRepo)

	profileRepo := profile.NewRepository(pool)
	profileClient, err := profile.NewClient(config.String("PROFILE_GRPC_ADDR", ""))
	if err != nil {
		logger.Error("profile client init failed; using read model only", "err", err)
		profileClient = nil
	}
	profiles := profile.NewSource(profileRepo, profileClient, logger)

	eng := engine.New(store, profiles, logger, engine.Config{
		LeadTime:        time.Duration(config.Int("BOOKING_LEAD_TIME_HOURS", 24)) * time.Hour,
		ReminderOffsets: config.MinuteDurations("REMINDER_OFFSETS_MINUTES", []time.Duration{24 * time.Hour, time.Hour}),
		SlotMinutes:     config.Int("DEFAULT_SLOT_MINUTES", 30),
		MaxSuggestions:  config.Int("MAX_SUGGESTED_SLOTS", 5),
	})

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	dispatchRepo := dispatch.NewRepository(pool)
	dispatchWorker := dispatch.NewWorker(pool, dispatchRepo, outboxRepo, logger, dispatch.WorkerConfig{
		Interval:  time.Duration(config.Int("DISPATCH_INTERVAL_SECONDS", 5)) * time.Second,
		BatchSize: config.Int("DISPATCH_BATCH_SIZE", 50),
	})
	go dispatchWorker.Run(ctx)

	inboxRepo := inbox.NewRepository(pool)
	startConsumer := func(topic string, handler consumer.Handler) {
		if topic == "" {
			return
		}
		c := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: config.String("KAFKA_BROKERS", ""),
			GroupID: config.String("KAFKA_GROUP_ID", "scheduling-service"),
			Topic:   topic,
		}, handler)
		go c.Run(ctx)
	}
	startConsumer(config.String("PROFILE_UPDATED_TOPIC", "profile.provider.updated.v1"),
		consumer.ProfileUpdatedHandler(profileRepo, logger))
	startConsumer(config.String("NOTIFICATION_DELIVERED_TOPIC", "notification.delivered.v1"),
		consumer.NotificationReceiptHandler(dispatchRepo, logger, true))
	startConsumer(config.String("NOTIFICATION_FAILED_TOPIC", "notification.failed.v1"),
		consumer.NotificationReceiptHandler(dispatchRepo, logger, false))

	schedulingHandler := handlers.NewSchedulingHandler(eng, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/api/v1/providers/availability", schedulingHandler.Availability)
	mux.HandleFunc("/api/v1/appointments", schedulingHandler.List)
	mux.HandleFunc("/api/v1/appointments/get", schedulingHandler.Get)
	mux.HandleFunc("/api/v1/appointments/book", schedulingHandler.Book)
	mux.HandleFunc("/api/v1/appointments/cancel", schedulingHandler.Cancel)
	mux.HandleFunc("/api/v1/appointments/reschedule", schedulingHandler.Reschedule)
	mux.HandleFunc("/api/v1/appointments/reschedule-day", schedulingHandler.BulkReschedule)
	mux.HandleFunc("/api/v1/appointments/confirm", schedulingHandler.Confirm)
	mux.HandleFunc("/api/v1/appointments/complete", schedulingHandler.Complete)
	mux.HandleFunc("/api/v1/appointments/no-show", schedulingHandler.NoShow)
	mux.HandleFunc("/api/v1/conflicts/check", schedulingHandler.CheckConflict)

	requestTimeout := 10 * time.Second
	if v := config.Int("REQUEST_TIMEOUT_SECONDS", 10); v > 0 {
		requestTimeout = time.Duration(v) * time.Second
	}

	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	var rateLimitMW httpx.Middleware
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()
		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		rateLimitMW = rl.Middleware(logger, isTruthy(config.String("RATE_LIMIT_FAIL_OPEN", "true")))
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	} else {
		rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
		rateLimitMW = rl.Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   parseList(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods:   parseList(config.String("CORS_ALLOWED_METHODS", "GET,POST,OPTIONS")),
			AllowedHeaders:   parseList(config.String("CORS_ALLOWED_HEADERS", "Content-Type,X-Request-Id,X-Caller-Id,X-Caller-Role")),
			AllowCredentials: isTruthy(config.String("CORS_ALLOW_CREDENTIALS", "false")),
			MaxAge:           time.Duration(corsMaxAgeSeconds()) * time.Second,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(requestTimeout),
		rateLimitMW,
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

func isTruthy(s string) bool {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func parseList(raw string) []string {
	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func corsMaxAgeSeconds() int {
	value := 600
	if v, err := strconv.Atoi(config.String("CORS_MAX_AGE_SECONDS", "600")); err == nil && v > 0 {
		value = v
	}
	return value
}
