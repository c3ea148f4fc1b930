package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"gitlab.com/dirk.krummacker/contacts/internal/config"
	"gitlab.com/dirk.krummacker/contacts/internal/httpapi"
	"gitlab.com/dirk.krummacker/contacts/internal/logger"
	"gitlab.com/dirk.krummacker/contacts/internal/metrics"
	"gitlab.com/dirk.krummacker/contacts/internal/seed"
	"gitlab.com/dirk.krummacker/contacts/internal/service"
)

// Usage example on the command line:
// > PORT=8080 STORE_PATH=data/Database.sqlite GIN_MODE=release GIN_LOGGING=OFF go run main.go
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)
	if _, err := strconv.Atoi(cfg.Port); err != nil {
		log.Error("could not parse PORT env variable", "port", cfg.Port, "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	gw, err := service.Open(cfg.Store, service.WithLogger(log), service.WithMetrics(m))
	if err != nil {
		log.Error("could not open contacts store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer gw.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.SeedSamples {
		if _, err := seed.Seed(ctx, gw, log); err != nil {
			log.Error("could not seed sample contacts", "error", err)
		}
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpapi.SetupHttpRouter(gw, m, log, cfg.GinLogging),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("starting contacts service", "addr", srv.Addr, "driver", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	log.Info("contacts service stopped")
}
