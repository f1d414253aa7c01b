package main

import (
	"fmt"

	"fwdpop/internal/config"
)

// overrideFromFlags applies explicitly set flags on top of a loaded config.
func overrideFromFlags(cfg *config.Config, set map[string]bool, flagValue map[string]any) error {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "run-id":
			cfg.RunID = v.(string)
		case "seed":
			cfg.Seed = v.(int64)
		case "n":
			cfg.N = v.(int)
		case "gens":
			cfg.Generations = v.(int)
		case "neutral-rate":
			cfg.NeutralRate = v.(float64)
		case "selected-rate":
			cfg.SelectedRate = v.(float64)
		case "rec-rate":
			cfg.RecRate = v.(float64)
		case "selection":
			cfg.Selection = v.(float64)
		case "dominance":
			cfg.Dominance = v.(float64)
		case "effects":
			cfg.Effects = v.(string)
		case "fitness":
			cfg.Fitness = v.(string)
		case "scaling":
			cfg.Scaling = v.(float64)
		case "recurrence":
			cfg.Recurrence = v.(string)
		case "snapshot-every":
			cfg.SnapshotEvery = v.(int)
		case "from-snapshot":
			cfg.FromSnapshot = v.(string)
		default:
			return fmt.Errorf("unsupported override flag: %s", name)
		}
	}
	return cfg.Validate()
}
