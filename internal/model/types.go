package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Mutation is an immutable value stored in a mutation pool and referenced
// from gametes by its pool index. A zero ID marks a cleared slot.
type Mutation struct {
	ID      uint64  `json:"id"`
	Pos     float64 `json:"pos"`
	S       float64 `json:"s"`
	H       float64 `json:"h"`
	Origin  uint32  `json:"origin"`
	Neutral bool    `json:"neutral"`
}

// NewMutation builds a mutation value from raw parameters. A zero selection
// coefficient makes the mutation neutral.
func NewMutation(pos, s, h float64, origin uint32) Mutation {
	return Mutation{
		Pos:     pos,
		S:       s,
		H:       h,
		Origin:  origin,
		Neutral: s == 0,
	}
}

// Gamete is a haploid chromosome: two position-sorted lists of mutation
// indices and the number of chromosome slots currently pointing at it.
type Gamete struct {
	N        int   `json:"n"`
	Neutral  []int `json:"neutral"`
	Selected []int `json:"selected"`
}

// Move transfers the mutation lists and count to the returned gamete and
// leaves g empty.
func (g *Gamete) Move() Gamete {
	out := Gamete{N: g.N, Neutral: g.Neutral, Selected: g.Selected}
	g.N = 0
	g.Neutral = nil
	g.Selected = nil
	return out
}

// Clone returns a deep copy of g.
func (g Gamete) Clone() Gamete {
	out := Gamete{N: g.N}
	if len(g.Neutral) > 0 {
		out.Neutral = append([]int(nil), g.Neutral...)
	}
	if len(g.Selected) > 0 {
		out.Selected = append([]int(nil), g.Selected...)
	}
	return out
}

// Size returns the total number of mutations carried by g.
func (g Gamete) Size() int {
	return len(g.Neutral) + len(g.Selected)
}

// Diploid pairs two gamete indices.
type Diploid struct {
	First  int `json:"first"`
	Second int `json:"second"`
}

// PopulationSnapshot is the lossless persisted form of a single-deme population.
type PopulationSnapshot struct {
	VersionedRecord
	ID            string     `json:"id"`
	RunID         string     `json:"run_id,omitempty"`
	N             int        `json:"n"`
	Generation    uint32     `json:"generation"`
	NextID        uint64     `json:"next_id"`
	Mutations     []Mutation `json:"mutations"`
	MCounts       []int      `json:"mcounts"`
	Gametes       []Gamete   `json:"gametes"`
	Diploids      []Diploid  `json:"diploids"`
	Fixations     []Mutation `json:"fixations"`
	FixationTimes []uint32   `json:"fixation_times"`
}

// DemeSnapshot is the persisted form of one deme of a metapopulation.
type DemeSnapshot struct {
	N        int       `json:"n"`
	Gametes  []Gamete  `json:"gametes"`
	Diploids []Diploid `json:"diploids"`
}

// MetapopulationSnapshot is the persisted form of a multi-deme population.
type MetapopulationSnapshot struct {
	VersionedRecord
	ID            string         `json:"id"`
	Generation    uint32         `json:"generation"`
	NextID        uint64         `json:"next_id"`
	Mutations     []Mutation     `json:"mutations"`
	MCounts       []int          `json:"mcounts"`
	Demes         []DemeSnapshot `json:"demes"`
	Fixations     []Mutation     `json:"fixations"`
	FixationTimes []uint32       `json:"fixation_times"`
}

// GenerationStats summarizes one generational step of a run.
type GenerationStats struct {
	Generation  uint32  `json:"generation"`
	MeanFitness float64 `json:"mean_fitness"`
	Segregating int     `json:"segregating"`
	Gametes     int     `json:"gametes"`
	Fixations   int     `json:"fixations"`
}

// RunRecord describes a finished simulation run.
type RunRecord struct {
	VersionedRecord
	ID           string  `json:"id"`
	SnapshotID   string  `json:"snapshot_id"`
	Seed         int64   `json:"seed"`
	N            int     `json:"n"`
	Generations  int     `json:"generations"`
	NeutralRate  float64 `json:"neutral_rate"`
	SelectedRate float64 `json:"selected_rate"`
	RecRate      float64 `json:"rec_rate"`
	Fitness      string  `json:"fitness"`
	FinalWBar    float64 `json:"final_wbar"`
	Fixations    int     `json:"fixations"`
	CreatedAtUTC string  `json:"created_at_utc"`
}

// Clone returns a deep copy of s.
func (s PopulationSnapshot) Clone() PopulationSnapshot {
	out := s
	out.Mutations = append([]Mutation(nil), s.Mutations...)
	out.MCounts = append([]int(nil), s.MCounts...)
	out.Gametes = nil
	for _, g := range s.Gametes {
		out.Gametes = append(out.Gametes, g.Clone())
	}
	out.Diploids = append([]Diploid(nil), s.Diploids...)
	out.Fixations = append([]Mutation(nil), s.Fixations...)
	out.FixationTimes = append([]uint32(nil), s.FixationTimes...)
	return out
}
