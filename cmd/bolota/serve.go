package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/antoniostano/bolota/internal/app"
)

// ServeCmd starts the server.
type ServeCmd struct {
	Addr         string `short:"a" long:"addr" description:"listen address (overrides APP_BIND_ADDR)"`
	DatabaseURL  string `long:"database-url" description:"PostgreSQL URL for sessions and inventory (overrides DATABASE_URL)"`
	CSV          string `long:"csv" description:"medication CSV catalogue (overrides INVENTORY_CSV_PATH)"`
	MedsURL      string `long:"meds-url" description:"remote inventory endpoint (overrides MEDS_URL)"`
	IntentConfig string `long:"intent-config" description:"intent scoring YAML (overrides INTENT_CONFIG_PATH)"`
	NoWatch      bool   `long:"no-watch" description:"do not reload the CSV catalogue on change"`

	root *Options
}

func (s *ServeCmd) Execute(_ []string) error {
	cfg, logger, err := s.root.load()
	if err != nil {
		return err
	}
	overrideString(&cfg.BindAddr, s.Addr)
	overrideString(&cfg.DatabaseURL, s.DatabaseURL)
	overrideString(&cfg.InventoryCSVPath, s.CSV)
	overrideString(&cfg.MedsURL, s.MedsURL)
	overrideString(&cfg.IntentConfigPath, s.IntentConfig)
	if s.NoWatch {
		cfg.InventoryWatch = false
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	built, err := app.Build(runCtx, cfg, app.Options{Logger: logger})
	if err != nil {
		logger.Error("startup failed", "error", err)
		return err
	}
	defer func() {
		if err := built.Cleanup(); err != nil {
			logger.Warn("cleanup failed", "error", err)
		}
	}()

	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: built.API.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		logger.Info("shutdown signal received")
	case err, ok := <-errCh:
		if ok {
			logger.Error("listen error", "error", err)
			return err
		}
	}

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
		_ = httpServer.Close()
	}

	logger.Info("shutdown complete")
	return nil
}
