package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gallery-engine/internal/catalog"
	"gallery-engine/internal/handlers"
	"gallery-engine/internal/logging"
	"gallery-engine/internal/middleware"
	"gallery-engine/internal/startup"
	"gallery-engine/internal/store"
)

func main() {
	config, err := startup.LoadConfig()
	if err != nil {
		logging.Fatal("Configuration error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbStart := time.Now()
	st, err := store.NewSQLite(ctx, config.DatabasePath)
	if err != nil {
		logging.Fatal("Failed to initialize engagement store: %v", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error("store close failed: %v", err)
		}
	}()
	logging.Info("Engagement store ready in %s", time.Since(dbStart).Round(time.Millisecond))

	source := catalog.NewManifestSource(config.CatalogManifest)
	urls := catalog.PrefixResolver{Base: config.MediaBaseURL}

	h := handlers.New(st, source, urls, config)

	router := mux.NewRouter()
	router.Use(middleware.Logging(middleware.LoggingConfig{LogHealthChecks: config.LogHealthChecks}))
	router.Use(middleware.Metrics())
	h.SetupRoutes(router)

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // websocket event feed stays open
		IdleTimeout:  120 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		mr := http.NewServeMux()
		mr.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: ":" + config.MetricsPort, Handler: mr}
		go func() {
			logging.Info("Metrics listening on :%s", config.MetricsPort)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	go func() {
		logging.Info("API listening on :%s", config.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	logging.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Close the viewer first so the final watch-time flush and
	// progress persist land before the store closes.
	h.Viewer().Close()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("Server shutdown error: %v", err)
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logging.Error("Metrics shutdown error: %v", err)
		}
	}
}
