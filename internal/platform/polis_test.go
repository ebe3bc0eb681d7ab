package platform

import (
	"context"
	"errors"
	"testing"

	"github.com/paulmach/orb"

	"interceptor/internal/agent"
	"interceptor/internal/evo"
	"interceptor/internal/sensor"
	"interceptor/internal/storage"
	"interceptor/internal/target"
)

func smallEngineConfig(seed int64) evo.Config {
	cfg := evo.DefaultConfig()
	cfg.PopulationSize = 4
	cfg.Layers = []int{3, 1}
	cfg.Sensor = sensor.Config{SamplePoints: 3, FieldOfViewStart: -10, FieldOfViewStop: 10, Depth: 700}
	cfg.Agent.Launch = orb.Point{128, 21}
	cfg.Agent.MaxTicks = 200
	cfg.TargetSpeed = 0
	cfg.Seed = seed
	cfg.Provider = target.NewFixedProvider(target.Trajectory{Start: orb.Point{128, 60}, End: orb.Point{128, 60}})
	return cfg
}

func newStartedPolis(t *testing.T) (*Polis, *storage.MemoryStore) {
	t.Helper()

	store := storage.NewMemoryStore()
	p := NewPolis(Config{Store: store})
	if err := p.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return p, store
}

type stopOnFirstTick struct {
	polis *Polis
	runID string
	err   error
	done  bool
}

func (s *stopOnFirstTick) ObserveTick(_, _ int, _ orb.Point, _ []agent.Frame) {
	if s.done {
		return
	}
	s.done = true
	s.err = s.polis.StopRun(s.runID)
}

func TestInitRequiresStore(t *testing.T) {
	if err := NewPolis(Config{}).Init(context.Background()); err == nil {
		t.Fatal("expected missing store error")
	}
}

func TestRunTrainingRequiresInit(t *testing.T) {
	p := NewPolis(Config{Store: storage.NewMemoryStore()})
	_, err := p.RunTraining(context.Background(), TrainingConfig{RunID: "r", Generations: 1, Engine: smallEngineConfig(1)})
	if err == nil {
		t.Fatal("expected uninitialized polis error")
	}
}

func TestRunTrainingValidation(t *testing.T) {
	p, _ := newStartedPolis(t)
	tests := []struct {
		name string
		cfg  TrainingConfig
	}{
		{name: "run id", cfg: TrainingConfig{Generations: 1, Engine: smallEngineConfig(1)}},
		{name: "generations", cfg: TrainingConfig{RunID: "r", Engine: smallEngineConfig(1)}},
		{name: "missing population", cfg: TrainingConfig{RunID: "r", Generations: 1, ContinuePopulationID: "absent", Engine: smallEngineConfig(1)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := p.RunTraining(context.Background(), tc.cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestRunTrainingPersistsArtifacts(t *testing.T) {
	ctx := context.Background()
	p, store := newStartedPolis(t)

	result, err := p.RunTraining(ctx, TrainingConfig{RunID: "run-1", Generations: 5, Engine: smallEngineConfig(3)})
	if err != nil {
		t.Fatalf("run training: %v", err)
	}
	if result.InitialGeneration != 1 || result.FinalGeneration != 6 {
		t.Fatalf("unexpected generations: initial=%d final=%d", result.InitialGeneration, result.FinalGeneration)
	}
	if result.Launched != 20 {
		t.Fatalf("launched got=%d want=20", result.Launched)
	}
	if result.Interrupted {
		t.Fatal("completed run reported as interrupted")
	}

	snapshot, ok, err := store.GetPopulation(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("get population: ok=%t err=%v", ok, err)
	}
	if snapshot.Generation != 6 || len(snapshot.Networks) != 4 {
		t.Fatalf("unexpected snapshot: generation=%d networks=%d", snapshot.Generation, len(snapshot.Networks))
	}
	if snapshot.SchemaVersion != storage.CurrentSchemaVersion {
		t.Fatalf("snapshot not versioned: %+v", snapshot.VersionedRecord)
	}

	history, ok, err := store.GetFitnessHistory(ctx, "run-1")
	if err != nil || !ok || len(history) != 5 {
		t.Fatalf("get history: %v ok=%t err=%v", history, ok, err)
	}
	diagnostics, ok, err := store.GetGenerationDiagnostics(ctx, "run-1")
	if err != nil || !ok || len(diagnostics) != 5 {
		t.Fatalf("get diagnostics: %d ok=%t err=%v", len(diagnostics), ok, err)
	}
	if _, ok, err := store.GetHitMiss(ctx, "run-1"); err != nil || !ok {
		t.Fatalf("get hitmiss: ok=%t err=%v", ok, err)
	}

	summary, ok, err := store.GetRunSummary(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("get run summary: ok=%t err=%v", ok, err)
	}
	if summary.FinalGen != 6 || summary.Generations != 5 || summary.PopulationSize != 4 || summary.Seed != 3 {
		t.Fatalf("unexpected run summary: %+v", summary)
	}
	if got := p.ActiveRuns(); len(got) != 0 {
		t.Fatalf("runs still active: %v", got)
	}
}

func TestRunTrainingContinuesStoredPopulation(t *testing.T) {
	ctx := context.Background()
	p, store := newStartedPolis(t)

	first, err := p.RunTraining(ctx, TrainingConfig{RunID: "run-1", Generations: 3, Engine: smallEngineConfig(5)})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}

	cfg := smallEngineConfig(6)
	cfg.PopulationSize = 8
	second, err := p.RunTraining(ctx, TrainingConfig{
		RunID:                "run-2",
		ContinuePopulationID: "run-1",
		Generations:          2,
		Engine:               cfg,
	})
	if err != nil {
		t.Fatalf("continued run: %v", err)
	}
	if second.InitialGeneration != first.FinalGeneration {
		t.Fatalf("initial generation got=%d want=%d", second.InitialGeneration, first.FinalGeneration)
	}
	if second.Population.Size() != 4 {
		t.Fatalf("stored size must win: got=%d want=4", second.Population.Size())
	}
	snapshot, ok, _ := store.GetPopulation(ctx, "run-2")
	if !ok || snapshot.Generation != first.FinalGeneration+2 {
		t.Fatalf("unexpected continued snapshot: ok=%t generation=%d", ok, snapshot.Generation)
	}
}

func TestRunTrainingCancelledStillPersists(t *testing.T) {
	p, store := newStartedPolis(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := p.RunTraining(ctx, TrainingConfig{RunID: "run-c", Generations: 3, Engine: smallEngineConfig(1)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if !result.Interrupted || len(result.BestByGeneration) != 0 {
		t.Fatalf("unexpected partial result: interrupted=%t generations=%d", result.Interrupted, len(result.BestByGeneration))
	}
	if _, ok, _ := store.GetPopulation(context.Background(), "run-c"); !ok {
		t.Fatal("cancelled run must still persist its population")
	}
}

func TestStopRunCancelsActiveRun(t *testing.T) {
	p, _ := newStartedPolis(t)
	if err := p.StopRun("absent"); err == nil {
		t.Fatal("expected inactive run error")
	}

	observer := &stopOnFirstTick{polis: p, runID: "run-s"}
	cfg := smallEngineConfig(2)
	cfg.Observer = observer
	result, err := p.RunTraining(context.Background(), TrainingConfig{RunID: "run-s", Generations: 10, Engine: cfg})
	if observer.err != nil {
		t.Fatalf("stop run: %v", observer.err)
	}
	if !evo.IsCancellation(err) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if len(result.BestByGeneration) != 0 {
		t.Fatalf("generation completed after stop: %d", len(result.BestByGeneration))
	}
}

func TestEvaluateStoredPopulation(t *testing.T) {
	ctx := context.Background()
	p, _ := newStartedPolis(t)

	if _, err := p.RunTraining(ctx, TrainingConfig{RunID: "run-e", Generations: 2, Engine: smallEngineConfig(4)}); err != nil {
		t.Fatalf("run training: %v", err)
	}

	cfg := smallEngineConfig(4)
	cfg.PopulationSize = 30
	result, err := p.Evaluate(ctx, EvaluationConfig{PopulationID: "run-e", Episodes: 3, Engine: cfg})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.Episodes != 3 || result.Launched != 12 || len(result.HitsPerID) != 4 {
		t.Fatalf("unexpected evaluation: %+v", result)
	}

	if _, err := p.Evaluate(ctx, EvaluationConfig{PopulationID: "absent", Episodes: 1, Engine: cfg}); err == nil {
		t.Fatal("expected missing population error")
	}
}
