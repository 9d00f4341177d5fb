package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/antoniostano/bolota/internal/config"
	"github.com/antoniostano/bolota/internal/logging"
)

// Options is the root command. Struct tags are read by
// github.com/jessevdk/go-flags; environment variables provide the defaults
// and flags override them.
type Options struct {
	LogLevel  string `long:"log-level" description:"debug|info|warn|error (overrides APP_LOG_LEVEL)"`
	LogFormat string `long:"log-format" description:"json|text (overrides APP_LOG_FORMAT)"`

	Serve *ServeCmd `command:"serve" description:"Start the HTTP, WebSocket and Connect server"`
	Seed  *SeedCmd  `command:"seed"  description:"Load a medication CSV into PostgreSQL, replacing the catalogue"`
	Chat  *ChatCmd  `command:"chat"  description:"Chat with the assistant from the terminal"`
}

// Init instantiates the sub-command named by the first argument so that the
// parser can populate its fields.
func (o *Options) Init(firstArg string) {
	switch firstArg {
	case "serve":
		o.Serve = &ServeCmd{root: o}
	case "seed":
		o.Seed = &SeedCmd{root: o}
	case "chat":
		o.Chat = &ChatCmd{root: o}
	}
}

// load reads the environment configuration and applies the global flags.
func (o *Options) load() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("config error: %w", err)
	}
	if v := strings.TrimSpace(o.LogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(o.LogFormat); v != "" {
		cfg.LogFormat = v
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return config.Config{}, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func overrideString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}
