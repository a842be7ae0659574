package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/slotbook/slotbook/libs/config"
	"github.com/slotbook/slotbook/libs/db"
	"github.com/slotbook/slotbook/libs/grpcx"
	"github.com/slotbook/slotbook/libs/httpx"
	"github.com/slotbook/slotbook/libs/kafkax"
	otelx "github.com/slotbook/slotbook/libs/otel"
	"github.com/slotbook/slotbook/libs/runtime"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/booking"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/calendar"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/consumer"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/handlers"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/impact"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/inbox"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/lifecycle"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/liveview"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/outbox"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/storage"
	"github.com/slotbook/slotbook/services/scheduling-service/migrations"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	_ = godotenv.Load()

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

	if err := db.Migrate(ctx, pool, migrations.Files, logger); err != nil {
		logger.Error("migrations failed", "err", err)
		panic(err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: config.String("REDIS_ADDR", "localhost:6379")})
	defer rdb.Close()

	calRepo := storage.NewCalendarRepository(pool)
	apptRepo := storage.NewAppointmentRepository(pool)
	closureRepo := storage.NewClosureRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	inboxRepo := inbox.NewRepository(pool)

	policy := lifecycle.Policy{
		CompleteAfterEnd: config.Bool("ENFORCE_COMPLETE_AFTER_END", false),
		NoShowAfterStart: config.Bool("ENFORCE_NO_SHOW_AFTER_START", false),
	}
	resolver := calendar.NewResolver(calRepo)
	trans := booking.NewTransactor(apptRepo, calRepo, resolver, outboxRepo, policy, logger)
	engine := impact.NewEngine(trans, apptRepo, closureRepo, calRepo, outboxRepo, logger)
	projector := liveview.NewProjector(apptRepo, calRepo, rdb, logger)

	brokers := config.String("KAFKA_BROKERS", "")
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go outboxPublisher.Run(ctx)

	if brokers != "" {
		closureConsumer := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", "scheduling-service"),
			Topic:   outbox.TopicClosureCreated,
		}, impact.ClosureCreatedHandler(engine, logger))
		go closureConsumer.Run(ctx)
	}

	// Sweep non-recurring closures whose end date has passed.
	go func() {
		ticker := time.NewTicker(config.Duration("CLOSURE_EXPIRE_INTERVAL", time.Hour))
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := closureRepo.ExpireDue(ctx, time.Now())
				if err != nil {
					logger.Error("closure expiry sweep failed", "err", err)
					continue
				}
				if n > 0 {
					logger.Info("closures expired", "count", n)
				}
			}
		}
	}()

	healthSrv := grpcx.NewHealthServer(logger)
	healthSrv.SetServing(true)
	go func() {
		if err := healthSrv.Run(ctx, ":"+config.String("GRPC_PORT", "9084")); err != nil {
			logger.Error("grpc health server error", "err", err)
		}
	}()

	slotHandler := handlers.NewSlotHandler(trans, logger)
	apptHandler := handlers.NewAppointmentHandler(trans, apptRepo, logger)
	closureHandler := handlers.NewClosureHandler(closureRepo, outboxRepo, engine, logger)
	liveHandler := handlers.NewLiveViewHandler(projector, logger)
	calHandler := handlers.NewCalendarHandler(calRepo, logger)

	checks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "redis", Check: httpx.ReadyCheckRedis(rdb)},
	}
	if brokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}
	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.HandleFunc("GET /api/v1/scheduling/slots", slotHandler.List)
	mux.HandleFunc("POST /api/v1/appointments", apptHandler.Create)
	mux.HandleFunc("GET /api/v1/appointments/{id}", apptHandler.Get)
	mux.HandleFunc("PATCH /api/v1/appointments/{id}", apptHandler.Update)
	mux.HandleFunc("POST /api/v1/appointments/{id}/status", apptHandler.Transition)
	mux.HandleFunc("POST /api/v1/appointments/batch/status", apptHandler.BatchStatus)
	mux.HandleFunc("POST /api/v1/appointments/batch/cancel", apptHandler.BatchCancel)
	mux.HandleFunc("POST /api/v1/closures", closureHandler.Create)
	mux.HandleFunc("POST /api/v1/closures/impact", closureHandler.Impact)
	mux.HandleFunc("POST /api/v1/closures/{id}/reschedule", closureHandler.Reschedule)
	mux.HandleFunc("POST /api/v1/closures/{id}/extend", closureHandler.Extend)
	mux.HandleFunc("POST /api/v1/closures/{id}/end", closureHandler.End)
	mux.HandleFunc("GET /api/v1/monitor/queue", liveHandler.MonitorQueue)
	mux.HandleFunc("GET /api/v1/me/appointments/current-hour", liveHandler.CurrentHour)
	mux.HandleFunc("GET /api/v1/me/appointments/next", liveHandler.Next)
	mux.HandleFunc("PUT /api/v1/calendar/hours", calHandler.PutWeeklyHours)
	mux.HandleFunc("PUT /api/v1/calendar/overrides", calHandler.PutDateOverride)
	mux.HandleFunc("DELETE /api/v1/calendar/overrides", calHandler.DeleteDateOverride)
	mux.HandleFunc("PUT /api/v1/calendar/staff/{id}/hours", calHandler.PutStaffHours)

	// The in-process limiter is exact for a single replica; the redis
	// window is shared across replicas and fails open.
	rateLimit := config.Int("RATE_LIMIT_PER_MINUTE", 300)
	var limit httpx.Middleware
	if config.Bool("RATE_LIMIT_LOCAL", false) {
		limit = httpx.NewRateLimiter(rateLimit, time.Minute).Middleware()
	} else {
		limit = httpx.NewRedisRateLimiter(rdb, rateLimit, time.Minute, service).Middleware(logger, true)
	}

	var corsOrigins []string
	if raw := config.String("CORS_ALLOWED_ORIGINS", ""); raw != "" {
		corsOrigins = strings.Split(raw, ",")
	}
	cors := httpx.WithCORS(httpx.CORSPolicy{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", "Idempotency-Key", handlers.HeaderBusinessID, handlers.HeaderUserID},
		MaxAge:         10 * time.Minute,
	})

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		cors,
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(30*time.Second),
		limit,
	)
	httpHandler = otelhttp.NewHandler(httpHandler, service)

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
	healthSrv.SetServing(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
