package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/copyleftdev/stochopt/internal/config"
	apierrors "github.com/copyleftdev/stochopt/internal/errors"
	"github.com/copyleftdev/stochopt/internal/logging"
	"github.com/copyleftdev/stochopt/internal/metrics"
	"github.com/copyleftdev/stochopt/internal/server"
	"github.com/copyleftdev/stochopt/internal/store"
)

var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(&logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	serviceLogger := logger.WithFields(logging.Fields{
		"service": "stochopt",
		"version": version,
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder, err := metrics.NewRecorder(reg)
	if err != nil {
		serviceLogger.Fatal("Failed to register metrics", logging.Fields{"error": err.Error()})
	}

	opts := []server.Option{server.WithMetrics(recorder)}
	if cfg.Store.Enabled {
		st, err := store.NewFSStore(cfg.Store.Dir, serviceLogger.Zap())
		if err != nil {
			serviceLogger.Fatal("Failed to open run store", logging.Fields{"error": err.Error()})
		}
		opts = append(opts, server.WithStore(st))
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(serviceLogger))
	r.Use(apierrors.RecoveryMiddleware(serviceLogger))
	r.Use(apierrors.ErrorHandler(serviceLogger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		logging.FromContext(r.Context()).Debug("Health check")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := server.NewServer(cfg, serviceLogger, opts...)
	srv.RegisterRoutes(r)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		serviceLogger.Info("Starting server", logging.Fields{
			"address":     httpServer.Addr,
			"workers":     cfg.Optimization.WorkerCount,
			"store":       cfg.Store.Enabled,
			"environment": cfg.Environment,
		})

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serviceLogger.Fatal("Failed to start server", logging.Fields{"error": err.Error()})
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	serviceLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		serviceLogger.Error("Server forced to shutdown", logging.Fields{"error": err.Error()})
	}

	// Running optimizations are canceled and persisted as canceled.
	if err := srv.Close(); err != nil {
		serviceLogger.Error("error closing server resources", logging.Fields{"error": err.Error()})
	}

	serviceLogger.Info("server exited properly")
}
