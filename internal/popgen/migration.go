package popgen

import "fwdpop/internal/rng"

// MigrationModel picks the deme a parent of an offspring in deme is drawn from.
type MigrationModel interface {
	SourceDeme(r rng.Source, deme int) int
}

// MigrationFunc adapts a function to MigrationModel.
type MigrationFunc func(r rng.Source, deme int) int

func (f MigrationFunc) SourceDeme(r rng.Source, deme int) int {
	return f(r, deme)
}

// IslandMigration draws a parent from a uniformly chosen other deme with
// probability Rate and from the home deme otherwise.
type IslandMigration struct {
	Rate  float64
	Demes int
}

func (m IslandMigration) SourceDeme(r rng.Source, deme int) int {
	if m.Demes < 2 || r.Uniform() >= m.Rate {
		return deme
	}
	other := r.Intn(m.Demes - 1)
	if other >= deme {
		other++
	}
	return other
}
