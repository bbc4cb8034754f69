// flowgraph-api — HTTP API редактора flow: хранение flows, сессии симуляции,
// события по websocket и RabbitMQ.
//
// Настройки: файл из FLOWGRAPH_CONFIG (необязательный) и переменные окружения,
// см. internal/config.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/flowgraph/internal/api"
	"github.com/shaiso/flowgraph/internal/config"
	"github.com/shaiso/flowgraph/internal/engine"
	"github.com/shaiso/flowgraph/internal/mq"
	"github.com/shaiso/flowgraph/internal/nodes"
	"github.com/shaiso/flowgraph/internal/orchestrator"
	"github.com/shaiso/flowgraph/internal/storage"
	"github.com/shaiso/flowgraph/internal/telemetry"
)

var startTime = time.Now()

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting flowgraph-api")

	cfg, err := config.Load(os.Getenv("FLOWGRAPH_CONFIG"))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Хранилище flows и истории
	store, err := storage.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		logger.Error("failed to open storage", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("storage ready", "driver", cfg.Storage.Driver)

	hub := api.NewHub(logger)
	publishers := map[string]orchestrator.Publisher{"websocket": hub}

	// RabbitMQ необязателен: без mq.url события идут только в websocket
	if cfg.MQ.URL != "" {
		conn, err := mq.NewConnection(cfg.MQ.URL, logger)
		if err != nil {
			logger.Error("failed to connect to RabbitMQ", "error", err)
			os.Exit(1)
		}
		defer conn.Close()

		if err := mq.SetupTopology(ctx, conn); err != nil {
			logger.Error("failed to setup topology", "error", err)
			os.Exit(1)
		}
		logger.Info("rabbitmq ready", "topology", mq.TopologyInfo())

		publishers["amqp"] = mq.NewPublisher(conn, logger)
	}

	eval := engine.NewEvaluator(engine.WithMaxExpressionLength(cfg.Simulation.MaxExpressionLength))

	orch := orchestrator.New(orchestrator.Config{
		Registry: nodes.DefaultRegistry(nodes.Options{
			Evaluator: eval,
			MaxDelay:  cfg.Simulation.MaxDelay,
		}),
		StepInterval: cfg.Simulation.StepInterval,
		Publishers:   publishers,
		History:      store.Simulations,
		Logger:       logger,
	})
	defer orch.Shutdown()

	handler := api.NewHandler(api.Config{
		Flows:        store.Flows,
		Simulations:  store.Simulations,
		Orchestrator: orch,
		Evaluator:    eval,
		Hub:          hub,
		Logger:       logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s sessions=%d", time.Since(startTime).Round(time.Second), orch.Count())
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Сессии останавливаем до закрытия сервера
	orch.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
