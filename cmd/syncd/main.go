// Command syncd runs the knowledge sync daemon: it serves the local store's
// propagation loop and exposes metrics and health over HTTP.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/BrandvoiceRetail/idea-brand-coach-sub000/internal/config"
	"github.com/BrandvoiceRetail/idea-brand-coach-sub000/internal/di"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	watchConfig := flag.Bool("watch-config", false, "hot reload the configuration file")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, err := di.NewContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	// Hot reload currently adjusts the drain cadence; everything else
	// requires a restart.
	if *watchConfig {
		watcher, err := config.NewWatcher(*configPath, cfg, container.Logger)
		if err != nil {
			container.Logger.Fatal("Failed to watch configuration", zap.Error(err))
		}
		defer watcher.Stop()
		watcher.OnChange(func(next *config.Config) {
			container.Engine.SetDrainInterval(next.Sync.DrainInterval)
		})
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      newHandler(container),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		container.Logger.Info("Starting server",
			zap.String("address", srv.Addr),
			zap.String("environment", string(cfg.Environment)),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			container.Logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	container.Logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		container.Logger.Error("Server shutdown error", zap.Error(err))
	}
	if err := container.Shutdown(shutdownCtx); err != nil {
		container.Logger.Error("Container shutdown error", zap.Error(err))
	}

	log.Println("Daemon stopped")
}

func newHandler(container *di.Container) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", container.Metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		type readiness struct {
			Store  bool `json:"store"`
			Online bool `json:"online"`
		}
		status := readiness{
			Store:  container.Store.IsConnected(),
			Online: container.Engine.IsOnline(),
		}
		// Offline is a degraded but operable state; only a dead local
		// store makes the daemon unready.
		code := http.StatusOK
		if !status.Store {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(status)
	})
	return mux
}
