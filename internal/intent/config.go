package intent

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed intents.yaml
var defaultConfigYAML []byte

// ErrInvalidConfig reports a scoring configuration that cannot be used.
var ErrInvalidConfig = errors.New("invalid intent config")

// Candidate is the keyword and stem configuration of one scored intent.
type Candidate struct {
	Intent   Intent   `yaml:"intent"`
	Keywords []string `yaml:"keywords"`
	Stems    []string `yaml:"stems"`
}

// Config lists the scored candidates in evaluation order.
type Config struct {
	Candidates []Candidate `yaml:"candidates"`
}

// DefaultConfig returns the built-in scoring configuration.
func DefaultConfig() Config {
	cfg, err := ParseConfig(defaultConfigYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded intents.yaml: %v", err))
	}
	return cfg
}

// LoadConfig reads a YAML scoring configuration from path. An empty path
// yields the built-in configuration.
func LoadConfig(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read intent config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes and validates a YAML scoring configuration.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects unknown or duplicated intents and empty candidates.
func (c Config) Validate() error {
	if len(c.Candidates) == 0 {
		return fmt.Errorf("%w: no candidates", ErrInvalidConfig)
	}
	seen := make(map[Intent]bool, len(c.Candidates))
	for _, cand := range c.Candidates {
		switch cand.Intent {
		case MedicineInfo, CheckAvailability:
		default:
			return fmt.Errorf("%w: %q cannot be scored", ErrInvalidConfig, cand.Intent)
		}
		if seen[cand.Intent] {
			return fmt.Errorf("%w: duplicate candidate %q", ErrInvalidConfig, cand.Intent)
		}
		seen[cand.Intent] = true
		if len(cand.Keywords) == 0 && len(cand.Stems) == 0 {
			return fmt.Errorf("%w: %q has neither keywords nor stems", ErrInvalidConfig, cand.Intent)
		}
	}
	return nil
}
