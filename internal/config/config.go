// Package config loads simulation run settings from JSON or YAML files.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"fwdpop/internal/popgen"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config describes one single-deme simulation run. Rates are per gamete per
// generation; positions are drawn on [0, 1).
type Config struct {
	RunID         string  `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Seed          int64   `json:"seed" yaml:"seed"`
	N             int     `json:"n" yaml:"n"`
	Generations   int     `json:"generations" yaml:"generations"`
	NeutralRate   float64 `json:"neutral_rate" yaml:"neutral_rate"`
	SelectedRate  float64 `json:"selected_rate" yaml:"selected_rate"`
	RecRate       float64 `json:"rec_rate" yaml:"rec_rate"`
	Selection     float64 `json:"selection" yaml:"selection"`
	Dominance     float64 `json:"dominance" yaml:"dominance"`
	Effects       string  `json:"effects" yaml:"effects"`
	Fitness       string  `json:"fitness" yaml:"fitness"`
	Scaling       float64 `json:"scaling" yaml:"scaling"`
	Recurrence    string  `json:"recurrence" yaml:"recurrence"`
	SnapshotEvery int     `json:"snapshot_every" yaml:"snapshot_every"`
	FromSnapshot  string  `json:"from_snapshot,omitempty" yaml:"from_snapshot,omitempty"`
	Store         Store   `json:"store" yaml:"store"`
	LogLevel      string  `json:"log_level" yaml:"log_level"`
}

type Store struct {
	Kind string `json:"kind" yaml:"kind"`
	DSN  string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// Effect distributions for selected mutations.
const (
	EffectsConstant    = "constant"
	EffectsExponential = "exponential"
)

func Default() Config {
	return Config{
		N:            1000,
		Generations:  100,
		NeutralRate:  0.005,
		SelectedRate: 0.001,
		RecRate:      0.01,
		Selection:    -0.01,
		Dominance:    0.5,
		Effects:      EffectsConstant,
		Fitness:      "multiplicative",
		Scaling:      2,
		Recurrence:   popgen.RecurrenceRedraw.String(),
		Store:        Store{Kind: "memory"},
		LogLevel:     "info",
	}
}

// Load reads path over the defaults and validates the result. The format
// follows the extension: .json, .yaml or .yml.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		return Config{}, fmt.Errorf("%w: unsupported config format %q", ErrInvalidConfig, ext)
	}
	if err != nil {
		return Config{}, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadOrDefault returns the defaults when path is empty.
func LoadOrDefault(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

func (c Config) Validate() error {
	if c.N <= 0 {
		return fmt.Errorf("%w: n must be > 0, got %d", ErrInvalidConfig, c.N)
	}
	if c.Generations < 0 {
		return fmt.Errorf("%w: generations must be >= 0, got %d", ErrInvalidConfig, c.Generations)
	}
	for name, v := range map[string]float64{"neutral_rate": c.NeutralRate, "selected_rate": c.SelectedRate, "rec_rate": c.RecRate} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be a finite value >= 0, got %v", ErrInvalidConfig, name, v)
		}
	}
	if math.IsNaN(c.Selection) || math.IsNaN(c.Dominance) || math.IsNaN(c.Scaling) {
		return fmt.Errorf("%w: selection, dominance and scaling must be numbers", ErrInvalidConfig)
	}
	switch c.Effects {
	case EffectsConstant, EffectsExponential:
	default:
		return fmt.Errorf("%w: unknown effect distribution %q", ErrInvalidConfig, c.Effects)
	}
	if _, err := popgen.NewFitnessModel(c.Fitness, c.Scaling); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := popgen.ParseRecurrencePolicy(c.Recurrence); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.SnapshotEvery < 0 {
		return fmt.Errorf("%w: snapshot_every must be >= 0, got %d", ErrInvalidConfig, c.SnapshotEvery)
	}
	switch c.Store.Kind {
	case "", "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: unsupported store backend %q", ErrInvalidConfig, c.Store.Kind)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLogLevel maps debug, info, warn and error to slog levels. An empty
// name means info.
func ParseLogLevel(name string) (slog.Level, error) {
	var level slog.Level
	if name == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("%w: log level %q", ErrInvalidConfig, name)
	}
	return level, nil
}
