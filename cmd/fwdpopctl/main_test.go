package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fwdpop/internal/config"
	"fwdpop/internal/popgen"
)

func captureStdout(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := stdout
	stdout = &buf
	t.Cleanup(func() {
		stdout = prev
	})
	return &buf
}

func TestRunUnknownCommand(t *testing.T) {
	if err := run(context.Background(), nil); err == nil || !strings.Contains(err.Error(), "missing command") {
		t.Fatalf("expected missing command error, got %v", err)
	}
	if err := run(context.Background(), []string{"bogus"}); err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestRunCommandWithFlags(t *testing.T) {
	out := captureStdout(t)
	err := run(context.Background(), []string{"run", "-run-id", "cli-run", "-n", "30", "-gens", "4", "-seed", "3", "-log-level", "error"})
	if err != nil {
		t.Fatalf("run command: %v", err)
	}
	if !strings.Contains(out.String(), "run_id=cli-run snapshot_id=cli-run-final generations=4") {
		t.Fatalf("unexpected output: %s", out.String())
	}
}

func TestRunCommandWithConfigAndJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	data := []byte("run_id: from-config\nn: 25\ngenerations: 3\nfitness: additive\nlog_level: error\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	out := captureStdout(t)
	if err := run(context.Background(), []string{"run", "-config", path, "-gens", "5", "-json"}); err != nil {
		t.Fatalf("run command: %v", err)
	}
	var summary struct {
		RunID       string
		MeanFitness []float64
	}
	if err := json.Unmarshal(out.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.RunID != "from-config" {
		t.Fatalf("expected run id from config, got %s", summary.RunID)
	}
	if len(summary.MeanFitness) != 5 {
		t.Fatalf("expected gens flag to override config, got %d generations", len(summary.MeanFitness))
	}
}

func TestRunCommandRejectsInvalidConfig(t *testing.T) {
	captureStdout(t)
	if err := run(context.Background(), []string{"run", "-n", "0", "-log-level", "error"}); err == nil {
		t.Fatal("expected invalid population size to fail")
	}
	if err := run(context.Background(), []string{"run", "-log-level", "loud"}); err == nil {
		t.Fatal("expected invalid log level to fail")
	}
}

func TestOverrideFromFlags(t *testing.T) {
	cfg := config.Default()
	set := map[string]bool{"n": true, "fitness": true, "json": true}
	values := map[string]any{"n": 12, "fitness": "neutral", "gens": 99}
	if err := overrideFromFlags(&cfg, set, values); err != nil {
		t.Fatalf("override: %v", err)
	}
	if cfg.N != 12 || cfg.Fitness != "neutral" {
		t.Fatalf("unexpected overrides: n=%d fitness=%s", cfg.N, cfg.Fitness)
	}
	if cfg.Generations != config.Default().Generations {
		t.Fatalf("unset flag must not override, got %d", cfg.Generations)
	}

	if err := overrideFromFlags(&cfg, map[string]bool{"fitness": true}, map[string]any{"fitness": "bogus"}); err == nil {
		t.Fatal("expected invalid fitness override to fail")
	}
}

func TestParsePlacements(t *testing.T) {
	got, err := parsePlacements("first, 1,both,0")
	if err != nil {
		t.Fatalf("parse placements: %v", err)
	}
	want := []popgen.Placement{popgen.PlaceFirst, popgen.PlaceSecond, popgen.PlaceBoth, popgen.PlaceFirst}
	if len(got) != len(want) {
		t.Fatalf("expected %d placements, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("placement %d: want %d got %d", i, want[i], got[i])
		}
	}
	if _, err := parsePlacements("middle"); err == nil {
		t.Fatal("expected unknown placement error")
	}
}

func TestParseIntList(t *testing.T) {
	got, err := parseIntList("0, 1,3")
	if err != nil {
		t.Fatalf("parse ints: %v", err)
	}
	if len(got) != 3 || got[2] != 3 {
		t.Fatalf("unexpected ints: %v", got)
	}
	empty, err := parseIntList(" ")
	if err != nil || empty != nil {
		t.Fatalf("expected empty list, got %v %v", empty, err)
	}
	if _, err := parseIntList("1,x"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestExportAndInjectArgumentErrors(t *testing.T) {
	ctx := context.Background()
	if err := run(ctx, []string{"export"}); err == nil {
		t.Fatal("expected export without run to fail")
	}
	if err := run(ctx, []string{"export", "-run-id", "x", "-latest"}); err == nil {
		t.Fatal("expected conflicting export flags to fail")
	}
	if err := run(ctx, []string{"inject"}); err == nil {
		t.Fatal("expected inject without snapshot to fail")
	}
	if err := run(ctx, []string{"inject", "-snapshot", "s", "-placements", "nowhere"}); err == nil {
		t.Fatal("expected bad placement to fail")
	}
}

func TestInitMemoryStore(t *testing.T) {
	out := captureStdout(t)
	if err := run(context.Background(), []string{"init", "-store", "memory"}); err != nil {
		t.Fatalf("init: %v", err)
	}
	if strings.TrimSpace(out.String()) != "initialized store=memory" {
		t.Fatalf("unexpected output: %q", out.String())
	}
}
