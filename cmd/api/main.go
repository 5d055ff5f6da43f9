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

	"github.com/wolfman30/clinic-booking/internal/api/router"
	"github.com/wolfman30/clinic-booking/internal/app/bootstrap"
	appconfig "github.com/wolfman30/clinic-booking/internal/config"
	"github.com/wolfman30/clinic-booking/internal/conversation"
	"github.com/wolfman30/clinic-booking/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/clinic-booking/internal/http/middleware"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.NewWithWriter(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting clinic-booking API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build runtime", "error", err)
		os.Exit(1)
	}
	defer rt.Close()

	handler, inline := newHandler(rt)
	if inline != nil {
		inline.Start(ctx)
		logger.Info("inline conversation workers started", "count", cfg.WorkerCount)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	cancel()
	if inline != nil {
		inline.Wait()
	}
	logger.Info("server stopped")
}

// newHandler wires the HTTP surface over the runtime. With the in-memory queue
// the API process also runs the workers, since no other process can drain it.
func newHandler(rt *bootstrap.Runtime) (http.Handler, *conversation.Worker) {
	cfg, logger := rt.Config, rt.Logger

	var publisher conversation.JobPublisher
	var inline *conversation.Worker
	if rt.Queue != nil {
		publisher = conversation.NewPublisher(rt.Queue, logger)
		if cfg.UseMemoryQueue {
			inline = conversation.NewWorker(rt.Engine, rt.Queue, conversation.NewLogMessenger(logger), logger,
				conversation.WithWorkerCount(cfg.WorkerCount),
				conversation.WithWorkerMetrics(rt.ConversationMetrics),
			)
		}
	}

	checks := map[string]handlers.HealthCheck{}
	if rt.Pool != nil {
		checks["postgres"] = rt.Pool.Ping
	}
	if rt.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return rt.Redis.Ping(ctx).Err() }
	}

	var limiter *httpmiddleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	return router.New(&router.Config{
		Logger:         logger,
		Conversation:   conversation.NewHandler(rt.Engine, publisher, logger),
		Scheduling:     handlers.NewSchedulingHandler(rt.Scheduling, logger),
		Health:         handlers.NewHealthHandler(checks),
		MetricsHandler: rt.MetricsHandler(),
		RateLimiter:    limiter,
	}), inline
}
