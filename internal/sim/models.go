package sim

import (
	"math"

	"fwdpop/internal/config"
	"fwdpop/internal/popgen"
	"fwdpop/internal/rng"
)

// Models are the strategies a run plugs into the engine.
type Models struct {
	Mutation      popgen.InfiniteSites
	Recombination popgen.RecombinationModel
	Fitness       popgen.FitnessModel
}

// BuildModels turns cfg into engine strategies.
func BuildModels(cfg config.Config) (Models, error) {
	fit, err := popgen.NewFitnessModel(cfg.Fitness, cfg.Scaling)
	if err != nil {
		return Models{}, err
	}
	recurrence, err := popgen.ParseRecurrencePolicy(cfg.Recurrence)
	if err != nil {
		return Models{}, err
	}

	s, h := cfg.Selection, cfg.Dominance
	effect := func(rng.Source) float64 { return s }
	if cfg.Effects == config.EffectsExponential {
		effect = func(r rng.Source) float64 { return s * -math.Log(1-r.Uniform()) }
	}

	var rec popgen.RecombinationModel = popgen.NoRecombination{}
	if cfg.RecRate > 0 {
		rec = popgen.PoissonCrossover{Rate: cfg.RecRate, Min: 0, Max: 1}
	}

	return Models{
		Mutation: popgen.InfiniteSites{
			NeutralRate:  cfg.NeutralRate,
			SelectedRate: cfg.SelectedRate,
			Effect:       effect,
			Dominance:    func(rng.Source) float64 { return h },
			Recurrence:   recurrence,
		},
		Recombination: rec,
		Fitness:       fit,
	}, nil
}
