package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"fwdpop/internal/config"
	"fwdpop/internal/popgen"
	"fwdpop/internal/storage"
	"fwdpop/internal/telemetry"
	"fwdpop/pkg/fwdpop"
)

const exportsDir = "exports"

var stdout io.Writer = os.Stdout

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "new":
		return runNew(ctx, args[1:])
	case "inject":
		return runInject(ctx, args[1:])
	case "show":
		return runShow(ctx, args[1:])
	case "snapshots":
		return runSnapshots(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "history":
		return runHistory(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

// storeFlags registers the backend flags shared by every subcommand.
type storeFlags struct {
	kind     *string
	dsn      *string
	logLevel *string
}

func addStoreFlags(fs *flag.FlagSet) storeFlags {
	return storeFlags{
		kind:     fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite|postgres"),
		dsn:      fs.String("dsn", "", "sqlite database path or postgres connection string"),
		logLevel: fs.String("log-level", "info", "log level: debug|info|warn|error"),
	}
}

func (f storeFlags) open(metrics *telemetry.Metrics) (*fwdpop.Client, error) {
	logger, err := newLogger(*f.logLevel)
	if err != nil {
		return nil, err
	}
	return fwdpop.New(fwdpop.Options{
		StoreKind:  *f.kind,
		DSN:        *f.dsn,
		ExportsDir: exportsDir,
		Logger:     logger,
		Metrics:    metrics,
	})
}

func newLogger(level string) (*slog.Logger, error) {
	lvl, err := config.ParseLogLevel(level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := sf.open(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "initialized store=%s\n", *sf.kind)
	return nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional run config path (.json, .yaml or .yml)")
	defaults := config.Default()
	runID := fs.String("run-id", "", "explicit run id (optional)")
	seed := fs.Int64("seed", defaults.Seed, "rng seed")
	n := fs.Int("n", defaults.N, "number of diploids")
	generations := fs.Int("gens", defaults.Generations, "generation count")
	neutralRate := fs.Float64("neutral-rate", defaults.NeutralRate, "neutral mutation rate per gamete")
	selectedRate := fs.Float64("selected-rate", defaults.SelectedRate, "selected mutation rate per gamete")
	recRate := fs.Float64("rec-rate", defaults.RecRate, "mean crossovers per meiosis (0 disables recombination)")
	selection := fs.Float64("selection", defaults.Selection, "selection coefficient of selected mutations")
	dominance := fs.Float64("dominance", defaults.Dominance, "dominance of selected mutations")
	effects := fs.String("effects", defaults.Effects, "effect distribution: constant|exponential")
	fitness := fs.String("fitness", defaults.Fitness, "fitness model: multiplicative|additive|neutral")
	scaling := fs.Float64("scaling", defaults.Scaling, "fitness scaling of homozygous effects")
	recurrence := fs.String("recurrence", defaults.Recurrence, "repeated position policy: redraw|reject|allow")
	snapshotEvery := fs.Int("snapshot-every", 0, "persist a snapshot every N generations (0 keeps only the final one)")
	fromSnapshot := fs.String("from-snapshot", "", "continue from a stored snapshot id")
	metricsAddr := fs.String("metrics-addr", "", "serve prometheus metrics on this address while running")
	jsonOut := fs.Bool("json", false, "emit run summary as JSON")
	sf := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		return err
	}
	if *configPath != "" {
		if !setFlags["store"] && cfg.Store.Kind != "" {
			*sf.kind = cfg.Store.Kind
		}
		if !setFlags["dsn"] && cfg.Store.DSN != "" {
			*sf.dsn = cfg.Store.DSN
		}
		if !setFlags["log-level"] && cfg.LogLevel != "" {
			*sf.logLevel = cfg.LogLevel
		}
	} else {
		for _, name := range []string{"seed", "n", "gens", "neutral-rate", "selected-rate", "rec-rate", "selection", "dominance", "effects", "fitness", "scaling", "recurrence"} {
			setFlags[name] = true
		}
	}
	if err := overrideFromFlags(&cfg, setFlags, map[string]any{
		"run-id":         *runID,
		"seed":           *seed,
		"n":              *n,
		"gens":           *generations,
		"neutral-rate":   *neutralRate,
		"selected-rate":  *selectedRate,
		"rec-rate":       *recRate,
		"selection":      *selection,
		"dominance":      *dominance,
		"effects":        *effects,
		"fitness":        *fitness,
		"scaling":        *scaling,
		"recurrence":     *recurrence,
		"snapshot-every": *snapshotEvery,
		"from-snapshot":  *fromSnapshot,
	}); err != nil {
		return err
	}

	var metrics *telemetry.Metrics
	if *metricsAddr != "" {
		metrics = telemetry.New()
		shutdown, err := serveMetrics(*metricsAddr, metrics)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	client, err := sf.open(metrics)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Run(ctx, cfg)
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(summary)
	}
	fmt.Fprintf(stdout, "run_id=%s snapshot_id=%s generations=%d final_wbar=%.6f segregating=%d fixations=%d\n",
		summary.RunID,
		summary.SnapshotID,
		len(summary.MeanFitness),
		summary.FinalWBar,
		summary.Segregating,
		summary.Fixations,
	)
	return nil
}

func serveMetrics(addr string, metrics *telemetry.Metrics) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = server.Serve(ln)
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}, nil
}

func runNew(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("new", flag.ContinueOnError)
	id := fs.String("id", "", "snapshot id (generated when empty)")
	n := fs.Int("n", 1000, "number of diploids")
	sf := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := sf.open(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	snap, err := client.NewPopulation(ctx, *id, *n)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "created snapshot_id=%s n=%d\n", snap.ID, snap.N)
	return nil
}

func runInject(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("inject", flag.ContinueOnError)
	snapshotID := fs.String("snapshot", "", "snapshot id to inject into")
	outID := fs.String("out", "", "snapshot id for the result (defaults to overwriting -snapshot)")
	diploidList := fs.String("diploids", "", "comma-separated diploid indexes")
	placementList := fs.String("placements", "", "comma-separated placements per diploid: first|second|both or 0|1|2")
	pos := fs.Float64("pos", 0, "mutation position")
	s := fs.Float64("s", 0, "selection coefficient")
	h := fs.Float64("h", 0, "dominance")
	sf := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *snapshotID == "" {
		return errors.New("inject requires --snapshot")
	}
	diploids, err := parseIntList(*diploidList)
	if err != nil {
		return fmt.Errorf("parse diploids: %w", err)
	}
	placements, err := parsePlacements(*placementList)
	if err != nil {
		return err
	}

	client, err := sf.open(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	snap, err := client.Inject(ctx, fwdpop.InjectRequest{
		SnapshotID: *snapshotID,
		OutID:      *outID,
		Diploids:   diploids,
		Placements: placements,
		Pos:        *pos,
		S:          *s,
		H:          *h,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "injected snapshot_id=%s pos=%g gametes=%d\n", snap.ID, *pos, len(snap.Gametes))
	return nil
}

func runShow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	snapshotID := fs.String("snapshot", "", "snapshot id")
	runID := fs.String("run-id", "", "show the final snapshot of a run")
	latest := fs.Bool("latest", false, "show the final snapshot of the most recent run")
	jsonOut := fs.Bool("json", false, "emit the full snapshot as JSON")
	sf := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := sf.open(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	snap, err := client.Snapshot(ctx, fwdpop.SnapshotRequest{SnapshotID: *snapshotID, RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(snap)
	}

	pop, err := popgen.RestorePopulation(snap)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "snapshot_id=%s run_id=%s generation=%s n=%s\n",
		snap.ID, snap.RunID, humanize.Comma(int64(snap.Generation)), humanize.Comma(int64(snap.N)))
	fmt.Fprintf(stdout, "segregating=%s gametes=%s fixations=%s\n",
		humanize.Comma(int64(pop.Mutations.Segregating())),
		humanize.Comma(int64(pop.Gametes.Live())),
		humanize.Comma(int64(len(snap.Fixations))))
	return nil
}

func runSnapshots(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("snapshots", flag.ContinueOnError)
	runID := fs.String("run-id", "", "list snapshots of one run (all when empty)")
	sf := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := sf.open(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	ids, err := client.Snapshots(ctx, *runID)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Fprintln(stdout, "no snapshots found")
		return nil
	}
	for _, id := range ids {
		fmt.Fprintln(stdout, id)
	}
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	sf := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := sf.open(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, fwdpop.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(stdout, "no runs found")
		return nil
	}
	for _, r := range runs {
		created := r.CreatedAtUTC
		if ts, err := time.Parse(time.RFC3339Nano, r.CreatedAtUTC); err == nil {
			created = humanize.Time(ts)
		}
		fmt.Fprintf(stdout, "run_id=%s created=%q seed=%d n=%d gens=%d fitness=%s final_wbar=%.6f fixations=%d\n",
			r.RunID, created, r.Seed, r.N, r.Generations, r.Fitness, r.FinalWBar, r.Fixations)
	}
	return nil
}

func runHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	limit := fs.Int("limit", 0, "max generations to print (0 prints all)")
	sf := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := sf.open(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.History(ctx, fwdpop.HistoryRequest{RunID: *runID, Latest: *latest, Limit: *limit})
	if err != nil {
		return err
	}
	for _, s := range history {
		fmt.Fprintf(stdout, "generation=%d mean_fitness=%.6f segregating=%d gametes=%d fixations=%d\n",
			s.Generation, s.MeanFitness, s.Segregating, s.Gametes, s.Fixations)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run")
	outDir := fs.String("out", exportsDir, "export output directory")
	sf := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("export requires --run-id or --latest")
	}

	client, err := sf.open(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Export(ctx, fwdpop.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "exported run_id=%s to=%s\n", summary.RunID, summary.Directory)
	return nil
}

func parseIntList(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parsePlacements(s string) ([]popgen.Placement, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]popgen.Placement, 0, len(parts))
	for _, p := range parts {
		switch strings.ToLower(strings.TrimSpace(p)) {
		case "0", "first":
			out = append(out, popgen.PlaceFirst)
		case "1", "second":
			out = append(out, popgen.PlaceSecond)
		case "2", "both":
			out = append(out, popgen.PlaceBoth)
		default:
			return nil, fmt.Errorf("unknown placement %q", p)
		}
	}
	return out, nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: fwdpopctl <init|run|new|inject|show|snapshots|runs|history|export> [flags]", msg)
}
