package interceptor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"interceptor/internal/agent"
	"interceptor/internal/evo"
	"interceptor/internal/model"
	"interceptor/internal/platform"
	"interceptor/internal/sensor"
	"interceptor/internal/stats"
	"interceptor/internal/storage"
)

const (
	defaultRunsDir    = "runs"
	defaultExportsDir = "exports"
	defaultDBPath     = "interceptor.db"
	defaultMaxTicks   = 2000

	// createdAtLayout sorts lexically in time order.
	createdAtLayout = "2006-01-02T15:04:05.000000000Z"
)

type Options struct {
	StoreKind  string
	DBPath     string
	RunsDir    string
	ExportsDir string
	Logger     *slog.Logger
}

type Client struct {
	store  storage.Store
	polis  *platform.Polis
	logger *slog.Logger

	runsDir    string
	exportsDir string
}

// RunRequest configures a training run. Zero values take the defaults: 30
// agents, a 17-sample sensor spanning 100 degrees, no hidden layers. A nil
// MaxTicks caps episodes at 2000 ticks; an explicit 0 removes the cap.
type RunRequest struct {
	Population    int     `json:"population"`
	Generations   int     `json:"generations"`
	Seed          int64   `json:"seed"`
	Workers       int     `json:"workers"`
	Hidden        []int   `json:"hidden,omitempty"`
	SensorSamples int     `json:"sensor_samples"`
	FieldOfView   float64 `json:"field_of_view"`
	SensorDepth   float64 `json:"sensor_depth"`
	TargetSpeed   float64 `json:"target_speed"`
	MaxTicks      *int    `json:"max_ticks,omitempty"`
	Guidance      string  `json:"guidance"`
	ContinuePopID string  `json:"continue_pop_id,omitempty"`
	NetworksDir   string  `json:"networks_dir,omitempty"`
}

type RunSummary struct {
	RunID             string
	PopulationID      string
	ArtifactsDir      string
	NetworksDir       string
	InitialGeneration int
	FinalGeneration   int
	BestByGeneration  []float64
	FinalBestFitness  float64
	Launched          int
	TargetsHit        int
	Accuracy          float64
	MutateHalf        bool
	Interrupted       bool
}

type EvaluateRequest struct {
	RunID       string
	Latest      bool
	NetworksDir string
	Episodes    int
	// Run configures the engine when no run is named.
	Run RunRequest
}

type EvaluateSummary struct {
	RunID     string
	Source    string
	Episodes  int
	Launched  int
	Hits      int
	Accuracy  float64
	Reasons   map[string]int
	HitsPerID []int
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID            string
	PopulationID     string
	CreatedAtUTC     string
	Seed             int64
	Population       int
	Generations      int
	FinalGeneration  int
	FinalBestFitness float64
	Launched         int
	TargetsHit       int
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

type FitnessHistoryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type DiagnosticsRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type HitMissRequest struct {
	RunID  string
	Latest bool
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	runsDir := opts.RunsDir
	if runsDir == "" {
		runsDir = defaultRunsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:      store,
		logger:     logger,
		runsDir:    runsDir,
		exportsDir: exportsDir,
	}, nil
}

func (c *Client) Close() error {
	if c.polis != nil {
		c.polis.Stop()
	}
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	_, err := c.ensurePolis(ctx)
	return err
}

// Run trains a population, writes its artifacts under the runs directory
// and indexes the run. A cancelled run still writes what it completed and
// returns its summary together with the context error.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	req = req.withDefaults()
	if req.Generations <= 0 {
		return RunSummary{}, errors.New("generations must be > 0")
	}
	cfg, err := req.engineConfig()
	if err != nil {
		return RunSummary{}, err
	}

	p, err := c.ensurePolis(ctx)
	if err != nil {
		return RunSummary{}, err
	}

	runID := uuid.NewString()
	result, runErr := p.RunTraining(ctx, platform.TrainingConfig{
		RunID:                runID,
		ContinuePopulationID: req.ContinuePopID,
		Generations:          req.Generations,
		NetworksDir:          req.NetworksDir,
		Engine:               cfg,
	})
	if runErr != nil && !evo.IsCancellation(runErr) {
		return RunSummary{}, runErr
	}

	runConfig := req.runConfig(runID)
	runConfig.PopulationSize = result.Population.Size()
	runConfig.Layers = result.Population.Layers()
	runConfig.InitialGeneration = result.InitialGeneration
	runDir, err := stats.WriteRunArtifacts(c.runsDir, stats.RunArtifacts{
		Config:                runConfig,
		BestByGeneration:      result.BestByGeneration,
		GenerationDiagnostics: result.GenerationDiagnostics,
		HitMiss:               result.HitMiss,
	})
	if err != nil {
		return RunSummary{}, err
	}
	networksDir := filepath.Join(runDir, stats.NetworksDir)
	if err := result.Population.SaveNetworks(networksDir); err != nil {
		return RunSummary{}, err
	}
	if err := stats.AppendRunIndex(c.runsDir, stats.RunIndexEntry{
		RunID:            runID,
		PopulationID:     result.PopulationID,
		PopulationSize:   result.Population.Size(),
		Generations:      len(result.BestByGeneration),
		FinalGeneration:  result.FinalGeneration,
		Seed:             req.Seed,
		Workers:          req.Workers,
		FinalBestFitness: result.BestFinalFitness,
		Launched:         result.Launched,
		TargetsHit:       result.TargetsHit,
		CreatedAtUTC:     time.Now().UTC().Format(createdAtLayout),
	}); err != nil {
		return RunSummary{}, err
	}

	summary := RunSummary{
		RunID:             runID,
		PopulationID:      result.PopulationID,
		ArtifactsDir:      runDir,
		NetworksDir:       networksDir,
		InitialGeneration: result.InitialGeneration,
		FinalGeneration:   result.FinalGeneration,
		BestByGeneration:  append([]float64(nil), result.BestByGeneration...),
		FinalBestFitness:  result.BestFinalFitness,
		Launched:          result.Launched,
		TargetsHit:        result.TargetsHit,
		MutateHalf:        result.MutateHalf,
		Interrupted:       result.Interrupted,
	}
	if summary.Launched > 0 {
		summary.Accuracy = float64(summary.TargetsHit) / float64(summary.Launched)
	}
	return summary, runErr
}

// Evaluate flies a trained population without evolving it. A named run is
// loaded from the store when present there, otherwise from the networks
// written into its artifacts directory.
func (c *Client) Evaluate(ctx context.Context, req EvaluateRequest) (EvaluateSummary, error) {
	if req.RunID != "" && req.Latest {
		return EvaluateSummary{}, errors.New("use either run id or latest")
	}
	if req.Episodes <= 0 {
		req.Episodes = 10
	}

	p, err := c.ensurePolis(ctx)
	if err != nil {
		return EvaluateSummary{}, err
	}

	runReq := req.Run.withDefaults()
	evalCfg := platform.EvaluationConfig{
		NetworksDir: req.NetworksDir,
		Episodes:    req.Episodes,
	}
	summary := EvaluateSummary{Source: "fresh"}
	if req.NetworksDir != "" {
		summary.Source = req.NetworksDir
	}

	if req.RunID != "" || req.Latest {
		runID, err := c.resolveRunID(req.RunID, req.Latest, "evaluate")
		if err != nil {
			return EvaluateSummary{}, err
		}
		runCfg, ok, err := stats.ReadRunConfig(c.runsDir, runID)
		if err != nil {
			return EvaluateSummary{}, err
		}
		if !ok {
			return EvaluateSummary{}, fmt.Errorf("run config not found for run id: %s", runID)
		}
		runReq = requestFromRunConfig(runCfg, runReq.Workers)
		summary.RunID = runID

		_, stored, err := c.store.GetPopulation(ctx, runCfg.PopulationID)
		if err != nil {
			return EvaluateSummary{}, err
		}
		if stored {
			evalCfg.PopulationID = runCfg.PopulationID
			summary.Source = "store:" + runCfg.PopulationID
		} else {
			evalCfg.NetworksDir = filepath.Join(stats.RunDir(c.runsDir, runID), stats.NetworksDir)
			summary.Source = evalCfg.NetworksDir
		}
	}

	cfg, err := runReq.engineConfig()
	if err != nil {
		return EvaluateSummary{}, err
	}
	evalCfg.Engine = cfg

	result, err := p.Evaluate(ctx, evalCfg)
	if err != nil {
		return EvaluateSummary{}, err
	}
	summary.Episodes = result.Episodes
	summary.Launched = result.Launched
	summary.Hits = result.Hits
	summary.Accuracy = result.Accuracy
	summary.Reasons = result.Reasons
	summary.HitsPerID = result.HitsPerID
	return summary, nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.runsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:            e.RunID,
			PopulationID:     e.PopulationID,
			CreatedAtUTC:     e.CreatedAtUTC,
			Seed:             e.Seed,
			Population:       e.PopulationSize,
			Generations:      e.Generations,
			FinalGeneration:  e.FinalGeneration,
			FinalBestFitness: e.FinalBestFitness,
			Launched:         e.Launched,
			TargetsHit:       e.TargetsHit,
		})
	}
	return out, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	runID, err := c.resolveRunID(req.RunID, req.Latest, "export")
	if err != nil {
		return ExportSummary{}, err
	}

	exportedDir, err := stats.ExportRunArtifacts(c.runsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

// FitnessHistory returns the best fitness per generation. Runs trained by
// another process with the memory store are read from their artifacts.
func (c *Client) FitnessHistory(ctx context.Context, req FitnessHistoryRequest) ([]float64, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "fitness history")
	if err != nil {
		return nil, err
	}

	if _, err := c.ensurePolis(ctx); err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetFitnessHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		history, ok, err = stats.ReadFitnessHistory(c.runsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("fitness history not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return append([]float64(nil), history...), nil
}

func (c *Client) Diagnostics(ctx context.Context, req DiagnosticsRequest) ([]model.GenerationDiagnostics, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "diagnostics")
	if err != nil {
		return nil, err
	}

	if _, err := c.ensurePolis(ctx); err != nil {
		return nil, err
	}
	diagnostics, ok, err := c.store.GetGenerationDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		diagnostics, ok, err = stats.ReadGenerationDiagnostics(c.runsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("diagnostics not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(diagnostics) > req.Limit {
		diagnostics = diagnostics[:req.Limit]
	}
	out := make([]model.GenerationDiagnostics, len(diagnostics))
	copy(out, diagnostics)
	return out, nil
}

func (c *Client) HitMiss(ctx context.Context, req HitMissRequest) ([]model.HitMissBucket, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest, "hitmiss")
	if err != nil {
		return nil, err
	}

	if _, err := c.ensurePolis(ctx); err != nil {
		return nil, err
	}
	buckets, ok, err := c.store.GetHitMiss(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		buckets, ok, err = stats.ReadHitMiss(c.runsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("hitmiss not found for run id: %s", runID)
	}
	return buckets, nil
}

func (c *Client) resolveRunID(runID string, latest bool, what string) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if latest {
		entries, err := stats.ListRunIndex(c.runsDir)
		if err != nil {
			return "", err
		}
		if len(entries) == 0 {
			return "", errors.New("no runs available")
		}
		return entries[0].RunID, nil
	}
	if runID == "" {
		return "", fmt.Errorf("%s requires run id or latest", what)
	}
	return runID, nil
}

func (c *Client) ensurePolis(ctx context.Context) (*platform.Polis, error) {
	if c.polis != nil {
		return c.polis, nil
	}
	p := platform.NewPolis(platform.Config{Store: c.store, Logger: c.logger})
	if err := p.Init(ctx); err != nil {
		return nil, err
	}
	c.polis = p
	return c.polis, nil
}

func (r RunRequest) withDefaults() RunRequest {
	if r.Population <= 0 {
		r.Population = 30
	}
	if r.Generations == 0 {
		r.Generations = 100
	}
	if r.Workers <= 0 {
		r.Workers = 4
	}
	if r.SensorSamples <= 0 {
		r.SensorSamples = 17
	}
	if r.FieldOfView <= 0 {
		r.FieldOfView = 100
	}
	if r.SensorDepth <= 0 {
		r.SensorDepth = 700
	}
	if r.TargetSpeed <= 0 {
		r.TargetSpeed = 1
	}
	if r.MaxTicks == nil || *r.MaxTicks < 0 {
		r.MaxTicks = IntPtr(defaultMaxTicks)
	}
	if r.Guidance == "" {
		r.Guidance = agent.NeuralNetwork.String()
	}
	return r
}

func (r RunRequest) layers() []int {
	layers := make([]int, 0, len(r.Hidden)+2)
	layers = append(layers, r.SensorSamples)
	layers = append(layers, r.Hidden...)
	return append(layers, 1)
}

func (r RunRequest) engineConfig() (evo.Config, error) {
	guidance, err := agent.ParseGuidanceSource(r.Guidance)
	if err != nil {
		return evo.Config{}, err
	}

	cfg := evo.DefaultConfig()
	cfg.PopulationSize = r.Population
	cfg.Layers = r.layers()
	cfg.Sensor = sensor.Config{
		SamplePoints:     r.SensorSamples,
		FieldOfViewStart: -r.FieldOfView / 2,
		FieldOfViewStop:  r.FieldOfView / 2,
		Depth:            r.SensorDepth,
	}
	cfg.Agent.MaxTicks = *r.MaxTicks
	cfg.Guidance = guidance
	cfg.TargetSpeed = r.TargetSpeed
	cfg.Workers = r.Workers
	cfg.Seed = r.Seed
	return cfg, nil
}

func (r RunRequest) runConfig(runID string) stats.RunConfig {
	cfg, _ := r.engineConfig()
	return stats.RunConfig{
		RunID:                runID,
		PopulationID:         runID,
		ContinuePopulationID: r.ContinuePopID,
		PopulationSize:       r.Population,
		Layers:               r.layers(),
		Generations:          r.Generations,
		Seed:                 r.Seed,
		Workers:              r.Workers,
		Guidance:             r.Guidance,
		TargetSpeed:          r.TargetSpeed,
		MaxTicks:             *r.MaxTicks,
		Sensor:               cfg.Sensor,
		DecayThreshold:       cfg.DecayThreshold,
		DecayPunishment:      cfg.DecayPunishment,
		MutateHalfUntil:      cfg.MutateHalfUntil,
		AccuracyWindow:       cfg.AccuracyWindow,
	}
}

func requestFromRunConfig(cfg stats.RunConfig, workers int) RunRequest {
	req := RunRequest{
		Population:    cfg.PopulationSize,
		Generations:   cfg.Generations,
		Seed:          cfg.Seed,
		Workers:       workers,
		SensorSamples: cfg.Sensor.SamplePoints,
		FieldOfView:   cfg.Sensor.FieldOfViewStop - cfg.Sensor.FieldOfViewStart,
		SensorDepth:   cfg.Sensor.Depth,
		TargetSpeed:   cfg.TargetSpeed,
		MaxTicks:      IntPtr(cfg.MaxTicks),
		Guidance:      cfg.Guidance,
	}
	if len(cfg.Layers) > 2 {
		req.Hidden = append([]int(nil), cfg.Layers[1:len(cfg.Layers)-1]...)
	}
	return req.withDefaults()
}

// IntPtr returns a pointer to n, for optional request fields.
func IntPtr(n int) *int {
	return &n
}
