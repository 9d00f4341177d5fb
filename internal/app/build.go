package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/antoniostano/bolota/internal/agent"
	"github.com/antoniostano/bolota/internal/articles"
	"github.com/antoniostano/bolota/internal/config"
	"github.com/antoniostano/bolota/internal/extract"
	"github.com/antoniostano/bolota/internal/httpapi"
	"github.com/antoniostano/bolota/internal/intent"
	"github.com/antoniostano/bolota/internal/inventory"
	"github.com/antoniostano/bolota/internal/observability"
	"github.com/antoniostano/bolota/internal/session"
)

type BuildResult struct {
	Config    config.Config
	API       *httpapi.Server
	Agent     *agent.Orchestrator
	Sessions  session.Store
	Inventory *inventory.Backend
	Articles  *articles.PubMedClient
	Metrics   *observability.Metrics

	// Cleanup should be called on shutdown to release external resources
	// (database pools, file watchers).
	Cleanup func() error
}

// Options adjusts Build for callers other than the HTTP server.
type Options struct {
	Logger *slog.Logger
	// Metrics defaults to a set registered on the default registry.
	Metrics *observability.Metrics
}

// Build wires every component from cfg. The inventory watcher, when enabled,
// runs until ctx ends.
func Build(ctx context.Context, cfg config.Config, opts Options) (*BuildResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.NewMetrics(cfg.MetricsNamespace)
	}

	intents := intent.DefaultConfig()
	if path := strings.TrimSpace(cfg.IntentConfigPath); path != "" {
		loaded, err := intent.LoadConfig(path)
		if err != nil {
			return nil, fmt.Errorf("intent config: %w", err)
		}
		intents = loaded
		logger.Info("intent config loaded", "path", path)
	}

	sessions, err := session.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("session store init failed: %w", err)
	}
	sessionMode := "memory"
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		sessionMode = "postgres"
	}

	backend, err := inventory.Open(ctx, inventory.Config{
		RemoteURL:   cfg.MedsURL,
		DatabaseURL: cfg.DatabaseURL,
		CSVPath:     cfg.InventoryCSVPath,
		WatchCSV:    cfg.InventoryWatch,
		Timeout:     cfg.LookupTimeout,
		OnReload: func(_ int, err error) {
			metrics.ObserveInventoryReload(err)
		},
	}, logger)
	if err != nil {
		_ = sessions.Close()
		return nil, fmt.Errorf("inventory init failed: %w", err)
	}
	logger.Info("inventory ready", "mode", backend.Mode)

	pubmed := articles.NewPubMedClient(articles.PubMedConfig{
		BaseURL:    cfg.PubMedURL,
		MaxResults: cfg.PubMedMaxResults,
		Timeout:    cfg.LookupTimeout,
	})

	extractor := extract.New()
	orchestrator, err := agent.New(agent.Dependencies{
		Classifier:    intent.NewClassifier(intents, extractor),
		Extractor:     extractor,
		Sessions:      sessions,
		Articles:      pubmed,
		Inventory:     backend.Finder,
		Logger:        logger,
		Metrics:       metrics,
		LookupTimeout: cfg.LookupTimeout,
	})
	if err != nil {
		_ = backend.Close()
		_ = sessions.Close()
		return nil, err
	}

	api := httpapi.New(cfg, httpapi.Dependencies{
		Agent:         orchestrator,
		Sessions:      sessions,
		Articles:      pubmed,
		Inventory:     backend.Finder,
		InventoryMode: backend.Mode,
		SessionMode:   sessionMode,
		Metrics:       metrics,
		Logger:        logger,
	})

	cleanup := func() error {
		var errs []string
		if err := backend.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if err := sessions.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:    cfg,
		API:       api,
		Agent:     orchestrator,
		Sessions:  sessions,
		Inventory: backend,
		Articles:  pubmed,
		Metrics:   metrics,
		Cleanup:   cleanup,
	}, nil
}
