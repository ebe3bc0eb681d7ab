package platform

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"interceptor/internal/evo"
	"interceptor/internal/model"
	"interceptor/internal/storage"
)

type Config struct {
	Store  storage.Store
	Logger *slog.Logger
}

type TrainingConfig struct {
	RunID string
	// ContinuePopulationID names a stored snapshot to resume from.
	ContinuePopulationID string
	Generations          int
	// NetworksDir, when set, seeds the population from missile<ID>.ai files
	// before training. Ignored when continuing a stored population.
	NetworksDir string
	Engine      evo.Config
}

type TrainingResult struct {
	RunID                 string
	PopulationID          string
	InitialGeneration     int
	FinalGeneration       int
	BestByGeneration      []float64
	GenerationDiagnostics []model.GenerationDiagnostics
	HitMiss               []model.HitMissBucket
	BestFinalFitness      float64
	Launched              int
	TargetsHit            int
	MutateHalf            bool
	Population            *evo.Population
	Interrupted           bool
}

type EvaluationConfig struct {
	// PopulationID names a stored snapshot; empty uses NetworksDir or a
	// freshly initialized population.
	PopulationID string
	NetworksDir  string
	Episodes     int
	Engine       evo.Config
}

// Polis owns the store and every training run executing against it.
type Polis struct {
	store  storage.Store
	logger *slog.Logger

	mu      sync.RWMutex
	started bool
	runs    map[string]context.CancelFunc
}

func NewPolis(cfg Config) *Polis {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Polis{
		store:  cfg.Store,
		logger: logger,
		runs:   make(map[string]context.CancelFunc),
	}
}

func (p *Polis) Init(ctx context.Context) error {
	if p.store == nil {
		return fmt.Errorf("store is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	if err := p.store.Init(ctx); err != nil {
		return err
	}
	p.started = true
	return nil
}

// Stop cancels every active run.
func (p *Polis) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for runID, cancel := range p.runs {
		cancel()
		p.logger.Info("run stopped", "run_id", runID)
	}
}

// RunTraining trains a population and persists its snapshot, fitness
// history, diagnostics, hit/miss histogram and run summary under the run id.
// A cancelled run still persists the generations it completed and returns
// them together with the context error.
func (p *Polis) RunTraining(ctx context.Context, cfg TrainingConfig) (TrainingResult, error) {
	if cfg.RunID == "" {
		return TrainingResult{}, fmt.Errorf("run id is required")
	}
	if cfg.Generations <= 0 {
		return TrainingResult{}, fmt.Errorf("generations must be > 0")
	}
	if !p.isStarted() {
		return TrainingResult{}, fmt.Errorf("polis is not initialized")
	}

	var snapshot *model.PopulationSnapshot
	if cfg.ContinuePopulationID != "" {
		stored, ok, err := p.store.GetPopulation(ctx, cfg.ContinuePopulationID)
		if err != nil {
			return TrainingResult{}, fmt.Errorf("load population %s: %w", cfg.ContinuePopulationID, err)
		}
		if !ok {
			return TrainingResult{}, fmt.Errorf("population not found: %s", cfg.ContinuePopulationID)
		}
		if len(stored.Networks) == 0 {
			return TrainingResult{}, fmt.Errorf("population %s has no networks", cfg.ContinuePopulationID)
		}
		snapshot = &stored
	}

	engineCfg := cfg.Engine
	if engineCfg.Logger == nil {
		engineCfg.Logger = p.logger.With("run_id", cfg.RunID)
	}
	if snapshot != nil {
		engineCfg.PopulationSize = len(snapshot.Networks)
		engineCfg.Layers = append([]int(nil), snapshot.Networks[0].Layers...)
	}
	engine, err := evo.NewEngine(engineCfg)
	if err != nil {
		return TrainingResult{}, err
	}
	if snapshot != nil {
		if err := engine.Restore(*snapshot); err != nil {
			return TrainingResult{}, fmt.Errorf("restore population %s: %w", snapshot.ID, err)
		}
	} else if cfg.NetworksDir != "" {
		if err := engine.Population().LoadNetworks(cfg.NetworksDir); err != nil {
			return TrainingResult{}, err
		}
	}
	initialGeneration := engine.Population().Generation

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := p.registerRun(cfg.RunID, cancel); err != nil {
		return TrainingResult{}, err
	}
	defer p.unregisterRun(cfg.RunID)

	p.logger.Info("training started",
		"run_id", cfg.RunID,
		"population", engine.Population().Size(),
		"generation", initialGeneration,
		"generations", cfg.Generations,
	)
	run, runErr := engine.Run(runCtx, cfg.Generations)
	if runErr != nil && !evo.IsCancellation(runErr) {
		return TrainingResult{}, runErr
	}

	pop := engine.Population()
	result := TrainingResult{
		RunID:                 cfg.RunID,
		PopulationID:          cfg.RunID,
		InitialGeneration:     initialGeneration,
		FinalGeneration:       pop.Generation,
		BestByGeneration:      run.BestByGeneration,
		GenerationDiagnostics: run.GenerationDiagnostics,
		HitMiss:               run.HitMiss,
		MutateHalf:            pop.MutateHalf,
		Population:            pop,
		Interrupted:           runErr != nil,
	}
	for _, diag := range run.GenerationDiagnostics {
		result.Launched += pop.Size()
		result.TargetsHit += diag.Hits
	}
	if n := len(run.BestByGeneration); n > 0 {
		result.BestFinalFitness = run.BestByGeneration[n-1]
	}

	// Persist even when the run was cancelled.
	if err := p.persist(context.WithoutCancel(ctx), engine, cfg, result); err != nil {
		return TrainingResult{}, err
	}
	p.logger.Info("training finished",
		"run_id", cfg.RunID,
		"generation", result.FinalGeneration,
		"best", result.BestFinalFitness,
		"hits", result.TargetsHit,
		"interrupted", result.Interrupted,
	)
	return result, runErr
}

func (p *Polis) persist(ctx context.Context, engine *evo.Engine, cfg TrainingConfig, result TrainingResult) error {
	snapshot := engine.Snapshot(result.PopulationID)
	snapshot.VersionedRecord = storage.Versioned()
	if err := p.store.SavePopulation(ctx, snapshot); err != nil {
		return err
	}
	if err := p.store.SaveFitnessHistory(ctx, result.RunID, result.BestByGeneration); err != nil {
		return err
	}
	if err := p.store.SaveGenerationDiagnostics(ctx, result.RunID, result.GenerationDiagnostics); err != nil {
		return err
	}
	if err := p.store.SaveHitMiss(ctx, result.RunID, result.HitMiss); err != nil {
		return err
	}
	return p.store.SaveRunSummary(ctx, model.RunSummary{
		VersionedRecord: storage.Versioned(),
		RunID:           result.RunID,
		PopulationID:    result.PopulationID,
		CreatedAt:       time.Now().UTC().Format(time.RFC3339Nano),
		PopulationSize:  result.Population.Size(),
		Layers:          result.Population.Layers(),
		Seed:            cfg.Engine.Seed,
		Generations:     len(result.BestByGeneration),
		FinalGen:        result.FinalGeneration,
		BestFitness:     result.BestFinalFitness,
		Launched:        result.Launched,
		TargetsHit:      result.TargetsHit,
		MutateHalf:      result.MutateHalf,
	})
}

// Evaluate flies a population without evolving it. A stored population
// overrides the configured population size and layers.
func (p *Polis) Evaluate(ctx context.Context, cfg EvaluationConfig) (evo.EvaluationResult, error) {
	if !p.isStarted() {
		return evo.EvaluationResult{}, fmt.Errorf("polis is not initialized")
	}

	engineCfg := cfg.Engine
	if engineCfg.Logger == nil {
		engineCfg.Logger = p.logger
	}
	var snapshot *model.PopulationSnapshot
	if cfg.PopulationID != "" {
		stored, ok, err := p.store.GetPopulation(ctx, cfg.PopulationID)
		if err != nil {
			return evo.EvaluationResult{}, fmt.Errorf("load population %s: %w", cfg.PopulationID, err)
		}
		if !ok {
			return evo.EvaluationResult{}, fmt.Errorf("population not found: %s", cfg.PopulationID)
		}
		if len(stored.Networks) == 0 {
			return evo.EvaluationResult{}, fmt.Errorf("population %s has no networks", cfg.PopulationID)
		}
		engineCfg.PopulationSize = len(stored.Networks)
		engineCfg.Layers = append([]int(nil), stored.Networks[0].Layers...)
		snapshot = &stored
	}

	engine, err := evo.NewEngine(engineCfg)
	if err != nil {
		return evo.EvaluationResult{}, err
	}
	switch {
	case snapshot != nil:
		if err := engine.Restore(*snapshot); err != nil {
			return evo.EvaluationResult{}, err
		}
	case cfg.NetworksDir != "":
		if err := engine.Population().LoadNetworks(cfg.NetworksDir); err != nil {
			return evo.EvaluationResult{}, err
		}
	}
	return engine.Evaluate(ctx, cfg.Episodes)
}

// StopRun cancels an active training run. The run persists what it
// completed before returning.
func (p *Polis) StopRun(runID string) error {
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	p.mu.RLock()
	cancel, ok := p.runs[runID]
	p.mu.RUnlock()
	if !ok {
		return fmt.Errorf("run not active: %s", runID)
	}
	cancel()
	return nil
}

func (p *Polis) ActiveRuns() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids := make([]string, 0, len(p.runs))
	for id := range p.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (p *Polis) isStarted() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.started
}

func (p *Polis) registerRun(runID string, cancel context.CancelFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.runs[runID]; exists {
		return fmt.Errorf("run already active: %s", runID)
	}
	p.runs[runID] = cancel
	return nil
}

func (p *Polis) unregisterRun(runID string) {
	p.mu.Lock()
	delete(p.runs, runID)
	p.mu.Unlock()
}
