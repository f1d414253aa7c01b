// Package sim drives populations through generations and persists the
// results.
package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fwdpop/internal/config"
	"fwdpop/internal/model"
	"fwdpop/internal/popgen"
	"fwdpop/internal/rng"
	"fwdpop/internal/storage"
	"fwdpop/internal/telemetry"
)

var ErrSnapshotNotFound = errors.New("snapshot not found")

// createdAtLayout keeps every fractional digit so run timestamps sort as
// strings.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Options struct {
	Store   storage.Store
	Metrics *telemetry.Metrics
	Logger  *slog.Logger
	Now     func() time.Time
}

type Runner struct {
	store   storage.Store
	metrics *telemetry.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewRunner requires an initialized store. A nil logger discards output
// and nil metrics record nothing.
func NewRunner(opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Runner{
		store:   opts.Store,
		metrics: opts.Metrics,
		logger:  logger,
		now:     now,
	}
}

type Result struct {
	Run        model.RunRecord
	History    []model.GenerationStats
	Population *popgen.Population
}

// Run evolves a population for cfg.Generations generations. It starts from
// cfg.FromSnapshot when set and from a mutation-free population otherwise.
// Cancellation is honored between generations.
func (r *Runner) Run(ctx context.Context, cfg config.Config) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	models, err := BuildModels(cfg)
	if err != nil {
		return Result{}, err
	}
	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := r.logger.With("run_id", runID)

	pop := popgen.NewPopulation(cfg.N)
	if cfg.FromSnapshot != "" {
		pop, err = r.load(ctx, cfg.FromSnapshot)
		if err != nil {
			return Result{}, err
		}
	}
	if cfg.SnapshotEvery > 0 {
		if err := r.save(ctx, pop, snapshotID(runID, pop.Generation), runID); err != nil {
			return Result{}, err
		}
	}

	logger.Info("run started",
		"n", cfg.N,
		"generations", cfg.Generations,
		"seed", cfg.Seed,
		"start_generation", pop.Generation,
		"fitness", cfg.Fitness,
	)
	src := rng.New(cfg.Seed)
	mu := models.Mutation.Rate()
	history := make([]model.GenerationStats, 0, cfg.Generations)
	for g := 0; g < cfg.Generations; g++ {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("run %s stopped at generation %d: %w", runID, pop.Generation, err)
		}
		wbar, err := popgen.SampleDiploid(src, pop, cfg.N, mu, models.Mutation, models.Recombination, models.Fitness)
		if err != nil {
			return Result{}, fmt.Errorf("run %s generation %d: %w", runID, pop.Generation+1, err)
		}
		if err := pop.Update(); err != nil {
			return Result{}, fmt.Errorf("run %s generation %d: %w", runID, pop.Generation, err)
		}

		stats := Stats(pop, wbar)
		history = append(history, stats)
		r.metrics.ObserveGeneration(runID, stats)
		logger.Debug("generation",
			"generation", stats.Generation,
			"mean_fitness", stats.MeanFitness,
			"segregating", stats.Segregating,
			"gametes", stats.Gametes,
			"fixations", stats.Fixations,
		)

		if cfg.SnapshotEvery > 0 && (g+1)%cfg.SnapshotEvery == 0 {
			if err := r.save(ctx, pop, snapshotID(runID, pop.Generation), runID); err != nil {
				return Result{}, err
			}
		}
	}

	finalID := runID + "-final"
	if err := r.save(ctx, pop, finalID, runID); err != nil {
		return Result{}, err
	}
	if err := r.store.SaveHistory(ctx, runID, history); err != nil {
		return Result{}, err
	}

	run := model.RunRecord{
		ID:           runID,
		SnapshotID:   finalID,
		Seed:         cfg.Seed,
		N:            cfg.N,
		Generations:  cfg.Generations,
		NeutralRate:  cfg.NeutralRate,
		SelectedRate: cfg.SelectedRate,
		RecRate:      cfg.RecRate,
		Fitness:      cfg.Fitness,
		Fixations:    len(pop.Mutations.Fixations),
		CreatedAtUTC: r.now().UTC().Format(createdAtLayout),
	}
	if n := len(history); n > 0 {
		run.FinalWBar = history[n-1].MeanFitness
	}
	if err := r.store.SaveRun(ctx, run); err != nil {
		return Result{}, err
	}

	logger.Info("run finished",
		"generation", pop.Generation,
		"segregating", pop.Mutations.Segregating(),
		"fixations", run.Fixations,
		"final_wbar", run.FinalWBar,
	)
	return Result{Run: run, History: history, Population: pop}, nil
}

// Stats summarizes pop after bookkeeping.
func Stats(pop *popgen.Population, wbar float64) model.GenerationStats {
	return model.GenerationStats{
		Generation:  pop.Generation,
		MeanFitness: wbar,
		Segregating: pop.Mutations.Segregating(),
		Gametes:     pop.Gametes.Live(),
		Fixations:   len(pop.Mutations.Fixations),
	}
}

// NewPopulation stores a mutation-free population of n diploids under id.
func (r *Runner) NewPopulation(ctx context.Context, id string, n int) (model.PopulationSnapshot, error) {
	if n <= 0 {
		return model.PopulationSnapshot{}, fmt.Errorf("%w: n must be > 0, got %d", config.ErrInvalidConfig, n)
	}
	if id == "" {
		id = uuid.NewString()
	}
	pop := popgen.NewPopulation(n)
	if err := r.save(ctx, pop, id, ""); err != nil {
		return model.PopulationSnapshot{}, err
	}
	r.logger.Info("population created", "snapshot_id", id, "n", n)
	return pop.Snapshot(id), nil
}

type InjectRequest struct {
	SnapshotID string
	// OutID names the resulting snapshot; empty overwrites SnapshotID.
	OutID      string
	Diploids   []int
	Placements []popgen.Placement
	Pos        float64
	S          float64
	H          float64
}

// Inject places one new mutation into a stored population and saves the
// result. The mutation's origin is the population's current generation.
func (r *Runner) Inject(ctx context.Context, req InjectRequest) (model.PopulationSnapshot, error) {
	snapshot, ok, err := r.store.GetSnapshot(ctx, req.SnapshotID)
	if err != nil {
		return model.PopulationSnapshot{}, err
	}
	if !ok {
		return model.PopulationSnapshot{}, fmt.Errorf("%w: %s", ErrSnapshotNotFound, req.SnapshotID)
	}
	pop, err := popgen.RestorePopulation(snapshot)
	if err != nil {
		return model.PopulationSnapshot{}, err
	}
	key, err := popgen.AddMutationParams(pop, req.Diploids, req.Placements, req.Pos, req.S, req.H, pop.Generation)
	if err != nil {
		return model.PopulationSnapshot{}, fmt.Errorf("inject into %s: %w", req.SnapshotID, err)
	}

	outID := req.OutID
	if outID == "" {
		outID = req.SnapshotID
	}
	if err := r.save(ctx, pop, outID, snapshot.RunID); err != nil {
		return model.PopulationSnapshot{}, err
	}
	r.metrics.ObserveInjection(snapshot.RunID)
	r.logger.Info("mutation injected",
		"snapshot_id", outID,
		"pos", req.Pos,
		"s", req.S,
		"count", pop.Mutations.Counts[key],
	)
	out := pop.Snapshot(outID)
	out.RunID = snapshot.RunID
	return out, nil
}

func (r *Runner) load(ctx context.Context, id string) (*popgen.Population, error) {
	snapshot, ok, err := r.store.GetSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}
	return popgen.RestorePopulation(snapshot)
}

func (r *Runner) save(ctx context.Context, pop *popgen.Population, id, runID string) error {
	snapshot := pop.Snapshot(id)
	snapshot.RunID = runID
	if err := r.store.SaveSnapshot(ctx, snapshot); err != nil {
		return fmt.Errorf("save snapshot %s: %w", id, err)
	}
	return nil
}

func snapshotID(runID string, generation uint32) string {
	return fmt.Sprintf("%s-g%06d", runID, generation)
}
