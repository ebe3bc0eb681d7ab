package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"interceptor/internal/storage"
	api "interceptor/pkg/interceptor"
)

const (
	runsDir    = "runs"
	exportsDir = "exports"
)

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
	case "evaluate":
		return runEvaluate(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "fitness":
		return runFitness(ctx, args[1:])
	case "diagnostics":
		return runDiagnostics(ctx, args[1:])
	case "hitmiss":
		return runHitMiss(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

type storeFlags struct {
	kind    *string
	dbPath  *string
	verbose *bool
}

func addStoreFlags(fs *flag.FlagSet) storeFlags {
	return storeFlags{
		kind:    fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite"),
		dbPath:  fs.String("db-path", "interceptor.db", "sqlite database path"),
		verbose: fs.Bool("v", false, "log engine events to stderr"),
	}
}

func (f storeFlags) client() (*api.Client, error) {
	opts := api.Options{
		StoreKind:  *f.kind,
		DBPath:     *f.dbPath,
		RunsDir:    runsDir,
		ExportsDir: exportsDir,
	}
	if *f.verbose {
		opts.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return api.New(opts)
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := sf.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	fmt.Printf("initialized store=%s\n", *sf.kind)
	return nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional run config JSON path")
	continuePopID := fs.String("continue-pop-id", "", "continue from persisted population snapshot id")
	networksDir := fs.String("networks-dir", "", "seed the population from missile<ID>.ai files")
	population := fs.Int("pop", 30, "population size (even)")
	generations := fs.Int("gens", 100, "generation count")
	seed := fs.Int64("seed", 1, "rng seed")
	workers := fs.Int("workers", 4, "worker count")
	hidden := fs.String("hidden", "", "comma separated hidden layer sizes")
	samples := fs.Int("samples", 17, "sensor sample points (odd)")
	fov := fs.Float64("fov", 100, "sensor field of view in degrees")
	depth := fs.Float64("depth", 700, "sensor depth")
	targetSpeed := fs.Float64("target-speed", 1, "target speed per tick")
	maxTicks := fs.Int("max-ticks", 2000, "episode tick cap (0 disables)")
	guidance := fs.String("guidance", "neural", "guidance source: neural|instrumented")
	jsonOut := fs.Bool("json", false, "emit run summary as JSON")
	sf := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	hiddenLayers, err := parseLayers(*hidden)
	if err != nil {
		return err
	}
	flagValues := map[string]any{
		"continue-pop-id": *continuePopID,
		"networks-dir":    *networksDir,
		"pop":             *population,
		"gens":            *generations,
		"seed":            *seed,
		"workers":         *workers,
		"hidden":          hiddenLayers,
		"samples":         *samples,
		"fov":             *fov,
		"depth":           *depth,
		"target-speed":    *targetSpeed,
		"max-ticks":       *maxTicks,
		"guidance":        *guidance,
	}

	var req api.RunRequest
	if *configPath == "" {
		req = api.RunRequest{
			Population:    *population,
			Generations:   *generations,
			Seed:          *seed,
			Workers:       *workers,
			Hidden:        hiddenLayers,
			SensorSamples: *samples,
			FieldOfView:   *fov,
			SensorDepth:   *depth,
			TargetSpeed:   *targetSpeed,
			MaxTicks:      maxTicks,
			Guidance:      *guidance,
			ContinuePopID: *continuePopID,
			NetworksDir:   *networksDir,
		}
	} else {
		req, err = loadRunRequestFromConfig(*configPath)
		if err != nil {
			return err
		}
		overrideFromFlags(&req, setFlags, flagValues)
	}

	client, err := sf.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, runErr := client.Run(ctx, req)
	if runErr != nil && !summary.Interrupted {
		return runErr
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return err
		}
		return runErr
	}
	fmt.Printf("run_id=%s population_id=%s generations=%s..%s best=%.3f launched=%s hit=%s accuracy=%.2f%% mutate_half=%t\n",
		summary.RunID,
		summary.PopulationID,
		humanize.Comma(int64(summary.InitialGeneration)),
		humanize.Comma(int64(summary.FinalGeneration)),
		summary.FinalBestFitness,
		humanize.Comma(int64(summary.Launched)),
		humanize.Comma(int64(summary.TargetsHit)),
		summary.Accuracy*100,
		summary.MutateHalf,
	)
	fmt.Printf("artifacts=%s networks=%s\n", summary.ArtifactsDir, summary.NetworksDir)
	if summary.Interrupted {
		fmt.Println("run interrupted; completed generations were saved")
	}
	return runErr
}

func runEvaluate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "evaluate the most recent run from run index")
	networksDir := fs.String("networks-dir", "", "load missile<ID>.ai files from this directory")
	episodes := fs.Int("episodes", 10, "episodes to fly")
	population := fs.Int("pop", 30, "population size when no run is named")
	samples := fs.Int("samples", 17, "sensor sample points when no run is named")
	seed := fs.Int64("seed", 1, "rng seed for episodes past the training list")
	workers := fs.Int("workers", 4, "worker count")
	jsonOut := fs.Bool("json", false, "emit evaluation as JSON")
	sf := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest && *networksDir == "" {
		return errors.New("evaluate requires --run-id, --latest or --networks-dir")
	}

	client, err := sf.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Evaluate(ctx, api.EvaluateRequest{
		RunID:       *runID,
		Latest:      *latest,
		NetworksDir: *networksDir,
		Episodes:    *episodes,
		Run: api.RunRequest{
			Population:    *population,
			SensorSamples: *samples,
			Seed:          *seed,
			Workers:       *workers,
		},
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	fmt.Printf("source=%s episodes=%s launched=%s hit=%s accuracy=%.2f%%\n",
		summary.Source,
		humanize.Comma(int64(summary.Episodes)),
		humanize.Comma(int64(summary.Launched)),
		humanize.Comma(int64(summary.Hits)),
		summary.Accuracy*100,
	)
	reasons := make([]string, 0, len(summary.Reasons))
	for reason := range summary.Reasons {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		fmt.Printf("reason=%s count=%s\n", reason, humanize.Comma(int64(summary.Reasons[reason])))
	}
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := api.New(api.Options{StoreKind: storage.KindMemory, RunsDir: runsDir, ExportsDir: exportsDir})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	items, err := client.Runs(ctx, api.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	for _, item := range items {
		fmt.Printf("run_id=%s created_at=%s seed=%d pop=%d gens=%s final_gen=%s best=%.3f launched=%s hit=%s\n",
			item.RunID,
			item.CreatedAtUTC,
			item.Seed,
			item.Population,
			humanize.Comma(int64(item.Generations)),
			humanize.Comma(int64(item.FinalGeneration)),
			item.FinalBestFitness,
			humanize.Comma(int64(item.Launched)),
			humanize.Comma(int64(item.TargetsHit)),
		)
	}
	return nil
}

func runFitness(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fitness", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show fitness history for the most recent run from run index")
	limit := fs.Int("limit", 50, "max generations to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit fitness history as JSON")
	sf := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkRunSelector(*runID, *latest, "fitness"); err != nil {
		return err
	}
	if *limit < 0 {
		*limit = 0
	}

	client, err := sf.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.FitnessHistory(ctx, api.FitnessHistoryRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Println("no fitness history")
		return nil
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(history)
	}

	for i, best := range history {
		fmt.Printf("generation=%d best=%.3f\n", i+1, best)
	}
	return nil
}

func runDiagnostics(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("diagnostics", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show diagnostics for the most recent run from run index")
	limit := fs.Int("limit", 50, "max generations to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit diagnostics as JSON")
	sf := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkRunSelector(*runID, *latest, "diagnostics"); err != nil {
		return err
	}
	if *limit < 0 {
		*limit = 0
	}

	client, err := sf.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	diagnostics, err := client.Diagnostics(ctx, api.DiagnosticsRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	if len(diagnostics) == 0 {
		fmt.Println("no diagnostics")
		return nil
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(diagnostics)
	}

	for _, d := range diagnostics {
		fmt.Printf("generation=%s episode=%d mode=%s best=%.3f mean=%.3f min=%.3f stddev=%.3f hits=%d ticks=%d accuracy=%.4f fingerprints=%d preserved=%d overwritten=%d reinitialized=%t\n",
			humanize.Comma(int64(d.Generation)),
			d.Episode,
			d.Mode,
			d.BestFitness,
			d.MeanFitness,
			d.MinFitness,
			d.StdDevFitness,
			d.Hits,
			d.Ticks,
			d.Accuracy,
			d.FingerprintDiversity,
			d.Preserved,
			d.Overwritten,
			d.Reinitialized,
		)
	}
	return nil
}

func runHitMiss(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("hitmiss", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show the histogram for the most recent run from run index")
	sf := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkRunSelector(*runID, *latest, "hitmiss"); err != nil {
		return err
	}

	client, err := sf.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	buckets, err := client.HitMiss(ctx, api.HitMissRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	fmt.Println("xdist,count,result")
	for _, b := range buckets {
		fmt.Printf("%d,%d,%s\n", b.XDistance, b.Count, b.Result)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	outDir := fs.String("out", exportsDir, "export output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkRunSelector(*runID, *latest, "export"); err != nil {
		return err
	}

	client, err := api.New(api.Options{StoreKind: storage.KindMemory, RunsDir: runsDir, ExportsDir: exportsDir})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	exported, err := client.Export(ctx, api.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}

	fmt.Printf("exported run_id=%s to=%s\n", exported.RunID, exported.Directory)
	return nil
}

func checkRunSelector(runID string, latest bool, command string) error {
	if runID != "" && latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if runID == "" && !latest {
		return fmt.Errorf("%s requires --run-id or --latest", command)
	}
	return nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: interceptorctl <%s> [flags]", msg, strings.Join([]string{
		"init", "run", "evaluate", "runs", "fitness", "diagnostics", "hitmiss", "export",
	}, "|"))
}
