// Package fwdpop is the programmatic entry point for running, inspecting and
// exporting forward-time population simulations.
package fwdpop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"fwdpop/internal/config"
	"fwdpop/internal/export"
	"fwdpop/internal/model"
	"fwdpop/internal/popgen"
	"fwdpop/internal/sim"
	"fwdpop/internal/storage"
	"fwdpop/internal/telemetry"
)

const (
	defaultExportsDir = "exports"
	defaultDBPath     = "fwdpop.db"
)

type Options struct {
	StoreKind  string
	DSN        string
	ExportsDir string
	Logger     *slog.Logger
	Metrics    *telemetry.Metrics
}

type Client struct {
	store  storage.Store
	runner *sim.Runner

	exportsDir string

	mu          sync.Mutex
	initialized bool
}

type RunSummary struct {
	RunID       string
	SnapshotID  string
	MeanFitness []float64
	FinalWBar   float64
	Segregating int
	Fixations   int
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string
	CreatedAtUTC string
	Seed         int64
	N            int
	Generations  int
	Fitness      string
	FinalWBar    float64
	Fixations    int
}

type InjectRequest struct {
	SnapshotID string
	OutID      string
	Diploids   []int
	Placements []popgen.Placement
	Pos        float64
	S          float64
	H          float64
}

type SnapshotRequest struct {
	SnapshotID string
	RunID      string
	Latest     bool
}

type HistoryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dsn := opts.DSN
	if dsn == "" && storeKind == "sqlite" {
		dsn = defaultDBPath
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(storeKind, dsn)
	if err != nil {
		return nil, err
	}

	return &Client{
		store: store,
		runner: sim.NewRunner(sim.Options{
			Store:   store,
			Metrics: opts.Metrics,
			Logger:  opts.Logger,
		}),
		exportsDir: exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.ensureInit(ctx)
}

// Run executes one simulation described by cfg and persists its snapshots,
// history and run record.
func (c *Client) Run(ctx context.Context, cfg config.Config) (RunSummary, error) {
	if err := c.ensureInit(ctx); err != nil {
		return RunSummary{}, err
	}
	result, err := c.runner.Run(ctx, cfg)
	if err != nil {
		return RunSummary{}, err
	}

	wbars := make([]float64, 0, len(result.History))
	for _, s := range result.History {
		wbars = append(wbars, s.MeanFitness)
	}
	return RunSummary{
		RunID:       result.Run.ID,
		SnapshotID:  result.Run.SnapshotID,
		MeanFitness: wbars,
		FinalWBar:   result.Run.FinalWBar,
		Segregating: result.Population.Mutations.Segregating(),
		Fixations:   result.Run.Fixations,
	}, nil
}

// Runs lists stored runs, newest first.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if err := c.ensureInit(ctx); err != nil {
		return nil, err
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]RunItem, 0, min(len(runs), req.Limit))
	for i := len(runs) - 1; i >= 0 && len(out) < req.Limit; i-- {
		r := runs[i]
		out = append(out, RunItem{
			RunID:        r.ID,
			CreatedAtUTC: r.CreatedAtUTC,
			Seed:         r.Seed,
			N:            r.N,
			Generations:  r.Generations,
			Fitness:      r.Fitness,
			FinalWBar:    r.FinalWBar,
			Fixations:    r.Fixations,
		})
	}
	return out, nil
}

// NewPopulation stores a mutation-free population of n diploids.
func (c *Client) NewPopulation(ctx context.Context, id string, n int) (model.PopulationSnapshot, error) {
	if err := c.ensureInit(ctx); err != nil {
		return model.PopulationSnapshot{}, err
	}
	return c.runner.NewPopulation(ctx, id, n)
}

func (c *Client) Inject(ctx context.Context, req InjectRequest) (model.PopulationSnapshot, error) {
	if req.SnapshotID == "" {
		return model.PopulationSnapshot{}, errors.New("inject requires snapshot id")
	}
	if err := c.ensureInit(ctx); err != nil {
		return model.PopulationSnapshot{}, err
	}
	return c.runner.Inject(ctx, sim.InjectRequest{
		SnapshotID: req.SnapshotID,
		OutID:      req.OutID,
		Diploids:   req.Diploids,
		Placements: req.Placements,
		Pos:        req.Pos,
		S:          req.S,
		H:          req.H,
	})
}

// Snapshot resolves a stored population by snapshot id, or by the final
// snapshot of a run.
func (c *Client) Snapshot(ctx context.Context, req SnapshotRequest) (model.PopulationSnapshot, error) {
	set := 0
	for _, v := range []bool{req.SnapshotID != "", req.RunID != "", req.Latest} {
		if v {
			set++
		}
	}
	if set > 1 {
		return model.PopulationSnapshot{}, errors.New("use one of snapshot id, run id or latest")
	}
	if set == 0 {
		return model.PopulationSnapshot{}, errors.New("snapshot requires snapshot id, run id or latest")
	}
	if err := c.ensureInit(ctx); err != nil {
		return model.PopulationSnapshot{}, err
	}

	id := req.SnapshotID
	if id == "" {
		run, err := c.resolveRun(ctx, req.RunID, req.Latest)
		if err != nil {
			return model.PopulationSnapshot{}, err
		}
		id = run.SnapshotID
	}
	snapshot, ok, err := c.store.GetSnapshot(ctx, id)
	if err != nil {
		return model.PopulationSnapshot{}, err
	}
	if !ok {
		return model.PopulationSnapshot{}, fmt.Errorf("%w: %s", sim.ErrSnapshotNotFound, id)
	}
	return snapshot, nil
}

// Snapshots lists snapshot ids for a run, or every snapshot when runID is
// empty.
func (c *Client) Snapshots(ctx context.Context, runID string) ([]string, error) {
	if err := c.ensureInit(ctx); err != nil {
		return nil, err
	}
	return c.store.ListSnapshots(ctx, runID)
}

func (c *Client) History(ctx context.Context, req HistoryRequest) ([]model.GenerationStats, error) {
	if req.RunID != "" && req.Latest {
		return nil, errors.New("use either run id or latest")
	}
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	if req.RunID == "" && !req.Latest {
		return nil, errors.New("history requires run id or latest")
	}
	if err := c.ensureInit(ctx); err != nil {
		return nil, err
	}

	run, err := c.resolveRun(ctx, req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetHistory(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("history not found for run id: %s", run.ID)
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return append([]model.GenerationStats(nil), history...), nil
}

func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID != "" && req.Latest {
		return ExportSummary{}, errors.New("use either run id or latest")
	}
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	if err := c.ensureInit(ctx); err != nil {
		return ExportSummary{}, err
	}

	run, err := c.resolveRun(ctx, req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}
	snapshot, ok, err := c.store.GetSnapshot(ctx, run.SnapshotID)
	if err != nil {
		return ExportSummary{}, err
	}
	if !ok {
		return ExportSummary{}, fmt.Errorf("%w: %s", sim.ErrSnapshotNotFound, run.SnapshotID)
	}
	history, _, err := c.store.GetHistory(ctx, run.ID)
	if err != nil {
		return ExportSummary{}, err
	}

	dir, err := export.WriteRun(req.OutDir, run, snapshot, history)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: run.ID, Directory: filepath.Clean(dir)}, nil
}

func (c *Client) resolveRun(ctx context.Context, runID string, latest bool) (model.RunRecord, error) {
	if latest {
		runs, err := c.store.ListRuns(ctx)
		if err != nil {
			return model.RunRecord{}, err
		}
		if len(runs) == 0 {
			return model.RunRecord{}, errors.New("no runs available")
		}
		return runs[len(runs)-1], nil
	}
	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return model.RunRecord{}, err
	}
	if !ok {
		return model.RunRecord{}, fmt.Errorf("run not found: %s", runID)
	}
	return run, nil
}

func (c *Client) ensureInit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}
