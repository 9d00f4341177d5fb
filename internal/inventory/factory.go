package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Config selects the catalogue backend. The first configured source wins:
// remote URL, then PostgreSQL, then the CSV file; with none set the
// catalogue starts empty.
type Config struct {
	RemoteURL   string
	DatabaseURL string
	CSVPath     string
	WatchCSV    bool
	Timeout     time.Duration
	OnReload    ReloadHook
}

// Backend is a ready catalogue and the resources it holds.
type Backend struct {
	Finder  Finder
	Service *Service // nil for the remote backend
	Mode    string
	closers []func() error
}

func (b *Backend) Close() error {
	var errs []string
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Open builds the configured backend. A CSV file is loaded eagerly and,
// with WatchCSV, reloaded on change until ctx ends.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if url := strings.TrimSpace(cfg.RemoteURL); url != "" {
		return &Backend{Finder: NewHTTPClient(url, cfg.Timeout), Mode: "http"}, nil
	}

	if dsn := strings.TrimSpace(cfg.DatabaseURL); dsn != "" {
		repo, err := NewPostgresRepository(ctx, dsn)
		if err != nil {
			return nil, err
		}
		svc := NewService(repo)
		return &Backend{Finder: svc, Service: svc, Mode: "postgres", closers: []func() error{repo.Close}}, nil
	}

	repo := NewMemoryRepository(nil)
	svc := NewService(repo)
	b := &Backend{Finder: svc, Service: svc, Mode: "memory", closers: []func() error{repo.Close}}

	path := strings.TrimSpace(cfg.CSVPath)
	if path == "" {
		return b, nil
	}
	items, err := LoadCSV(path)
	if err != nil {
		return nil, err
	}
	if err := repo.Replace(ctx, items); err != nil {
		return nil, err
	}
	b.Mode = "csv"
	logger.Info("inventory csv loaded", "path", path, "items", len(items))

	if cfg.WatchCSV {
		w, err := NewCSVWatcher(path, repo, logger, cfg.OnReload)
		if err != nil {
			return nil, err
		}
		if err := w.Start(ctx); err != nil {
			_ = w.Close()
			return nil, err
		}
		b.closers = append(b.closers, w.Close)
	}
	return b, nil
}
