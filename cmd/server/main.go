package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/agentdesk/queue-scheduler/internal/api"
	"github.com/agentdesk/queue-scheduler/internal/capability"
	"github.com/agentdesk/queue-scheduler/internal/config"
	"github.com/agentdesk/queue-scheduler/internal/db"
	"github.com/agentdesk/queue-scheduler/internal/metrics"
	"github.com/agentdesk/queue-scheduler/internal/notify"
	"github.com/agentdesk/queue-scheduler/internal/ratelimiter"
	"github.com/agentdesk/queue-scheduler/internal/scheduler"
	"github.com/agentdesk/queue-scheduler/internal/service"
	"github.com/agentdesk/queue-scheduler/internal/store"
	"github.com/agentdesk/queue-scheduler/internal/worker"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ---- database ----
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	st := store.NewPgStore(pool)
	agent := capability.NewAgentCapability(
		cfg.AgentBaseURL, cfg.AgentTimeout,
		cfg.DefaultModel, cfg.DefaultSystemPrompt,
	)
	limiter := ratelimiter.New(cfg.AgentRateLimit)

	var notifier notify.Notifier
	if cfg.NotifyWebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.NotifyWebhookURL, cfg.NotifyTimeout)
	} else {
		notifier = notify.NewLogNotifier(logger)
	}

	onCompleted, onFailed := m.ExecutorHooks()
	executor := scheduler.NewExecutor(st, agent, limiter, scheduler.DetectFeedbackRequest, logger, onCompleted, onFailed)

	onRound, onLoopDelta := m.RunnerHooks()
	runner := scheduler.NewRunner(st, executor, notifier, cfg.RoundDelay, logger, scheduler.RunnerHooks{
		OnRound:     onRound,
		OnLoopDelta: onLoopDelta,
	})

	svc := service.NewQueueService(st, executor, runner, logger, m.ItemsEnqueued.Inc)

	// ---- background workers ----
	// Context for all background goroutines; cancelled on shutdown signal.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	runner.Start(workerCtx)

	dueW := worker.NewDueWorker(st, runner, cfg.DuePollInterval, logger)
	go dueW.Run(workerCtx)

	// ---- HTTP server ----
	router := api.NewRouter(svc, reg, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Signal running loops and workers to stop after their current round.
	cancelWorkers()

	// 3. Wait for in-flight loops to finish.
	runner.Wait()

	logger.Info("server stopped cleanly")
}
