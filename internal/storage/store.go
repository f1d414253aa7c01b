package storage

import (
	"context"
	"errors"

	"fwdpop/internal/model"
)

func DefaultStoreKind() string {
	return "memory"
}

var ErrNotInitialized = errors.New("store is not initialized")

// Store defines the persistence operations for population snapshots, run
// records and per-generation run history.
type Store interface {
	Init(ctx context.Context) error
	SaveSnapshot(ctx context.Context, snapshot model.PopulationSnapshot) error
	GetSnapshot(ctx context.Context, id string) (model.PopulationSnapshot, bool, error)
	// ListSnapshots returns snapshot IDs ordered by generation. An empty
	// runID lists every snapshot.
	ListSnapshots(ctx context.Context, runID string) ([]string, error)
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveHistory(ctx context.Context, runID string, history []model.GenerationStats) error
	GetHistory(ctx context.Context, runID string) ([]model.GenerationStats, bool, error)
}
