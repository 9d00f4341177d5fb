package main

import (
	"context"
	"errors"
	"strings"

	"github.com/antoniostano/bolota/internal/inventory"
)

// SeedCmd replaces the PostgreSQL catalogue with the rows of a CSV file.
type SeedCmd struct {
	CSV         string `long:"csv" description:"medication CSV catalogue" required:"true"`
	DatabaseURL string `long:"database-url" description:"PostgreSQL URL (overrides DATABASE_URL)"`

	root *Options
}

func (s *SeedCmd) Execute(_ []string) error {
	cfg, logger, err := s.root.load()
	if err != nil {
		return err
	}
	overrideString(&cfg.DatabaseURL, s.DatabaseURL)
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		err := errors.New("seed needs DATABASE_URL or --database-url")
		logger.Error("seed failed", "error", err)
		return err
	}

	items, err := inventory.LoadCSV(s.CSV)
	if err != nil {
		logger.Error("seed failed", "path", s.CSV, "error", err)
		return err
	}

	ctx := context.Background()
	repo, err := inventory.NewPostgresRepository(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("seed failed", "error", err)
		return err
	}
	defer repo.Close()

	if err := repo.Replace(ctx, items); err != nil {
		logger.Error("seed failed", "error", err)
		return err
	}
	logger.Info("catalogue seeded", "path", s.CSV, "items", len(items))
	return nil
}
