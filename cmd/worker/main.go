package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kirillkom/whitepaper-qa/internal/bootstrap"
	"github.com/kirillkom/whitepaper-qa/internal/config"
	"github.com/kirillkom/whitepaper-qa/internal/core/domain"
	"github.com/kirillkom/whitepaper-qa/internal/observability/logging"
	"github.com/kirillkom/whitepaper-qa/internal/observability/metrics"
)

const serviceName = "worker"

// runTimeout bounds one ingestion run, archives included.
const runTimeout = 15 * time.Minute

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           metricsMux(workerMetrics),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject, "index", cfg.VectorIndex)
	err = app.Queue.SubscribeIngestion(ctx, func(handlerCtx context.Context, req domain.IngestionRequest) error {
		runCtx, cancel := context.WithTimeout(handlerCtx, runTimeout)
		defer cancel()

		if queued, err := app.Runs.GetRun(runCtx, req.RunID); err == nil {
			workerMetrics.ObserveQueueLag(serviceName, time.Since(queued.CreatedAt))
		}

		start := time.Now()
		workerMetrics.StartRun()
		processErr := app.ProcessUC.ProcessRun(runCtx, req)

		// The stored run carries the final status and per-document results.
		run, _ := app.Runs.GetRun(runCtx, req.RunID)
		workerMetrics.FinishRun(serviceName, time.Since(start), run, processErr)

		if processErr != nil {
			return processErr
		}
		if run != nil {
			logger.Info("ingestion_run_finished",
				"run_id", run.ID,
				"status", run.Status,
				"records", run.Records,
				"documents", len(run.Documents),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		}
		return nil
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}

func metricsMux(m *metrics.WorkerMetrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}
