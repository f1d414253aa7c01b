// Package export writes run artifacts as CSV and JSON files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"fwdpop/internal/model"
)

const (
	RunFile         = "run.json"
	HistoryFile     = "fitness_history.csv"
	FixationsFile   = "fixations.csv"
	FrequenciesFile = "frequencies.csv"
	SnapshotFile    = "snapshot.json"
)

// WriteRun writes every artifact of a run into outDir/<run id> and returns
// that directory.
func WriteRun(outDir string, run model.RunRecord, snapshot model.PopulationSnapshot, history []model.GenerationStats) (string, error) {
	if run.ID == "" {
		return "", fmt.Errorf("run id is required")
	}
	runDir := filepath.Join(outDir, run.ID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, RunFile), run); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, SnapshotFile), snapshot); err != nil {
		return "", err
	}
	if err := writeCSVFile(filepath.Join(runDir, HistoryFile), func(w io.Writer) error { return WriteHistory(w, history) }); err != nil {
		return "", err
	}
	if err := writeCSVFile(filepath.Join(runDir, FixationsFile), func(w io.Writer) error { return WriteFixations(w, snapshot) }); err != nil {
		return "", err
	}
	if err := writeCSVFile(filepath.Join(runDir, FrequenciesFile), func(w io.Writer) error { return WriteFrequencies(w, snapshot) }); err != nil {
		return "", err
	}
	return runDir, nil
}

func WriteHistory(w io.Writer, history []model.GenerationStats) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"generation", "mean_fitness", "segregating", "gametes", "fixations"}); err != nil {
		return err
	}
	for _, s := range history {
		if err := writer.Write([]string{
			strconv.FormatUint(uint64(s.Generation), 10),
			formatFloat(s.MeanFitness),
			strconv.Itoa(s.Segregating),
			strconv.Itoa(s.Gametes),
			strconv.Itoa(s.Fixations),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadHistory parses the output of WriteHistory.
func ReadHistory(r io.Reader) ([]model.GenerationStats, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []model.GenerationStats{}, nil
		}
		return nil, err
	}
	if len(header) < 5 {
		return nil, fmt.Errorf("history header must have 5 columns, got %d", len(header))
	}

	history := make([]model.GenerationStats, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		generation, err := strconv.ParseUint(record[0], 10, 32)
		if err != nil {
			return nil, err
		}
		wbar, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, err
		}
		var counts [3]int
		for i := range counts {
			if counts[i], err = strconv.Atoi(record[2+i]); err != nil {
				return nil, err
			}
		}
		history = append(history, model.GenerationStats{
			Generation:  uint32(generation),
			MeanFitness: wbar,
			Segregating: counts[0],
			Gametes:     counts[1],
			Fixations:   counts[2],
		})
	}
	return history, nil
}

// WriteFixations lists fixed mutations in the order they fixed.
func WriteFixations(w io.Writer, snapshot model.PopulationSnapshot) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"id", "pos", "s", "h", "origin", "fixed", "neutral"}); err != nil {
		return err
	}
	for i, m := range snapshot.Fixations {
		var fixed uint32
		if i < len(snapshot.FixationTimes) {
			fixed = snapshot.FixationTimes[i]
		}
		if err := writer.Write(append(mutationFields(m), strconv.FormatUint(uint64(fixed), 10), strconv.FormatBool(m.Neutral))); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteFrequencies lists live mutations by position with their counts and
// frequencies in the 2N chromosomes of the population.
func WriteFrequencies(w io.Writer, snapshot model.PopulationSnapshot) error {
	live := make([]int, 0, len(snapshot.Mutations))
	for i, m := range snapshot.Mutations {
		if m.ID != 0 && i < len(snapshot.MCounts) && snapshot.MCounts[i] > 0 {
			live = append(live, i)
		}
	}
	sort.SliceStable(live, func(a, b int) bool {
		return snapshot.Mutations[live[a]].Pos < snapshot.Mutations[live[b]].Pos
	})

	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"id", "pos", "s", "h", "origin", "count", "frequency"}); err != nil {
		return err
	}
	twoN := float64(2 * snapshot.N)
	for _, i := range live {
		count := snapshot.MCounts[i]
		freq := 0.0
		if twoN > 0 {
			freq = float64(count) / twoN
		}
		if err := writer.Write(append(mutationFields(snapshot.Mutations[i]), strconv.Itoa(count), formatFloat(freq))); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func mutationFields(m model.Mutation) []string {
	return []string{
		strconv.FormatUint(m.ID, 10),
		formatFloat(m.Pos),
		formatFloat(m.S),
		formatFloat(m.H),
		strconv.FormatUint(uint64(m.Origin), 10),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeCSVFile(path string, write func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := write(file); err != nil {
		return err
	}
	return file.Sync()
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
