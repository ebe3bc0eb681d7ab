package evo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/paulmach/orb"

	"interceptor/internal/agent"
	"interceptor/internal/model"
	"interceptor/internal/nn"
	"interceptor/internal/sensor"
	"interceptor/internal/target"
)

// Observer receives every agent's frame after each tick. It runs on the
// engine goroutine between ticks.
type Observer interface {
	ObserveTick(generation, tick int, target orb.Point, frames []agent.Frame)
}

// HitFunc is called once for each agent at the tick it hits.
type HitFunc func(generation int, a *agent.Agent)

type Config struct {
	PopulationSize int
	Layers         []int
	Sensor         sensor.Config
	Agent          agent.Config
	Guidance       agent.GuidanceSource
	TargetSpeed    float64
	Workers        int
	Seed           int64

	// DecayThreshold is the kill ratio above which misses erode it.
	DecayThreshold  float64
	DecayPunishment float64
	// MutateHalfUntil is the generation after which the first hit clears
	// the mutate-half flag.
	MutateHalfUntil int
	// AccuracyWindow resets the launch and hit counters every so many
	// generations; 0 never resets.
	AccuracyWindow  int
	HistogramBucket float64

	Provider *target.Provider
	Logger   *slog.Logger
	Observer Observer
	OnHit    HitFunc
}

func DefaultConfig() Config {
	return Config{
		PopulationSize:  30,
		Layers:          []int{17, 1},
		Sensor:          sensor.DefaultConfig(),
		Agent:           agent.DefaultConfig(),
		Guidance:        agent.NeuralNetwork,
		TargetSpeed:     target.DefaultSpeed,
		Workers:         1,
		Seed:            1,
		DecayThreshold:  10,
		DecayPunishment: 0.01,
		MutateHalfUntil: 500,
		AccuracyWindow:  100,
		HistogramBucket: 10,
	}
}

type RunResult struct {
	BestByGeneration      []float64
	GenerationDiagnostics []model.GenerationDiagnostics
	HitMiss               []model.HitMissBucket
}

type EvaluationResult struct {
	Episodes  int            `json:"episodes"`
	Launched  int            `json:"launched"`
	Hits      int            `json:"hits"`
	Accuracy  float64        `json:"accuracy"`
	Reasons   map[string]int `json:"reasons"`
	HitsPerID []int          `json:"hits_per_id"`
}

// Engine runs the generational training loop over one population.
type Engine struct {
	cfg      Config
	rng      *rand.Rand
	sensor   *sensor.Sensor
	pop      *Population
	provider *target.Provider
	logger   *slog.Logger

	lastHit    bool
	lastMode   Mode
	launched   int
	targetsHit int
	histogram  *histogram
}

func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Guidance == agent.StraightLine {
		return nil, fmt.Errorf("training requires neural guidance, got %s", cfg.Guidance)
	}
	if cfg.HistogramBucket <= 0 {
		return nil, fmt.Errorf("histogram bucket must be > 0")
	}
	if cfg.AccuracyWindow < 0 {
		return nil, fmt.Errorf("accuracy window must be >= 0")
	}
	if err := cfg.Agent.Validate(); err != nil {
		return nil, fmt.Errorf("agent config: %w", err)
	}
	s, err := sensor.New(cfg.Sensor)
	if err != nil {
		return nil, err
	}
	if len(cfg.Layers) > 0 && cfg.Layers[0] != s.Samples() {
		return nil, fmt.Errorf("%w: input layer %d, sensor samples %d", ErrTopologyMismatch, cfg.Layers[0], s.Samples())
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	pop, err := NewPopulation(cfg.PopulationSize, cfg.Layers, rng)
	if err != nil {
		return nil, err
	}
	provider := cfg.Provider
	if provider == nil {
		provider = target.NewProvider(cfg.Seed)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Engine{
		cfg:       cfg,
		rng:       rng,
		sensor:    s,
		pop:       pop,
		provider:  provider,
		logger:    logger,
		lastHit:   true,
		histogram: newHistogram(cfg.HistogramBucket),
	}, nil
}

func (e *Engine) Population() *Population {
	return e.pop
}

func (e *Engine) Provider() *target.Provider {
	return e.provider
}

// Accuracy reports launches and hits since the last window reset.
func (e *Engine) Accuracy() (launched, hits int) {
	return e.launched, e.targetsHit
}

func (e *Engine) HitMiss() []model.HitMissBucket {
	return e.histogram.buckets()
}

// Snapshot captures the population plus where the engine is in the
// episode sequence.
func (e *Engine) Snapshot(id string) model.PopulationSnapshot {
	s := e.pop.Snapshot(id)
	s.EpisodeIndex = e.provider.Index()
	s.LastHit = e.lastHit
	return s
}

// Restore replaces the population with a snapshot taken from an engine with
// the same population size and topology.
func (e *Engine) Restore(s model.PopulationSnapshot) error {
	pop, err := RestorePopulation(s)
	if err != nil {
		return err
	}
	if pop.Size() != e.pop.Size() {
		return fmt.Errorf("%w: snapshot size %d, engine size %d", ErrTopologyMismatch, pop.Size(), e.pop.Size())
	}
	if !nn.SameTopology(pop.Networks[0], e.pop.Networks[0]) {
		return fmt.Errorf("%w: snapshot layers %v, engine layers %v", ErrTopologyMismatch, pop.Layers(), e.pop.Layers())
	}
	e.pop = pop
	e.lastHit = s.LastHit
	e.provider.Resume(s.EpisodeIndex)
	e.logger.Info("population restored", "id", s.ID, "generation", s.Generation, "episode", s.EpisodeIndex)
	return nil
}

// Run executes generations in sequence. On cancellation the generations
// completed so far are returned together with the context error.
func (e *Engine) Run(ctx context.Context, generations int) (RunResult, error) {
	if generations <= 0 {
		return RunResult{}, fmt.Errorf("generations must be > 0")
	}
	result := RunResult{
		BestByGeneration:      make([]float64, 0, generations),
		GenerationDiagnostics: make([]model.GenerationDiagnostics, 0, generations),
	}
	for i := 0; i < generations; i++ {
		diag, err := e.RunGeneration(ctx)
		if err != nil {
			result.HitMiss = e.HitMiss()
			return result, err
		}
		result.BestByGeneration = append(result.BestByGeneration, diag.BestFitness)
		result.GenerationDiagnostics = append(result.GenerationDiagnostics, diag)
	}
	result.HitMiss = e.HitMiss()
	return result, nil
}

// RunGeneration flies one episode with the whole population, then scores,
// selects and mutates.
func (e *Engine) RunGeneration(ctx context.Context) (model.GenerationDiagnostics, error) {
	if err := ctx.Err(); err != nil {
		return model.GenerationDiagnostics{}, err
	}
	if e.cfg.AccuracyWindow > 0 && e.pop.Generation%e.cfg.AccuracyWindow == 0 {
		e.launched, e.targetsHit = 0, 0
	}

	trajectory := e.provider.Next(!e.lastHit)
	e.lastHit = false

	agents, err := e.launch()
	if err != nil {
		return model.GenerationDiagnostics{}, err
	}
	tg := target.New(trajectory, e.cfg.TargetSpeed)
	ticks, err := e.fly(ctx, e.pop.Generation, agents, tg)
	if err != nil {
		return model.GenerationDiagnostics{}, err
	}
	diag := e.evolve(agents, trajectory)
	diag.Ticks = ticks
	return diag, nil
}

// Evaluate flies the current networks against the first episodes of the
// provider without touching ratios, fitness or parameters.
func (e *Engine) Evaluate(ctx context.Context, episodes int) (EvaluationResult, error) {
	if episodes <= 0 {
		return EvaluationResult{}, fmt.Errorf("episodes must be > 0")
	}
	result := EvaluationResult{
		Reasons:   make(map[string]int),
		HitsPerID: make([]int, e.pop.Size()),
	}
	for i := 0; i < episodes; i++ {
		agents, err := e.launch()
		if err != nil {
			return EvaluationResult{}, err
		}
		tg := target.New(e.provider.At(i), e.cfg.TargetSpeed)
		if _, err := e.fly(ctx, 0, agents, tg); err != nil {
			return result, err
		}
		result.Episodes++
		for id, a := range agents {
			result.Launched++
			result.Reasons[a.Reason().String()]++
			if a.Reason() == agent.ReasonHit {
				result.Hits++
				result.HitsPerID[id]++
			}
		}
	}
	if result.Launched > 0 {
		result.Accuracy = float64(result.Hits) / float64(result.Launched)
	}
	return result, nil
}

func (e *Engine) launch() ([]*agent.Agent, error) {
	agents := make([]*agent.Agent, len(e.pop.Networks))
	for id, n := range e.pop.Networks {
		a, err := agent.New(id, e.cfg.Guidance, n, e.sensor, e.cfg.Agent)
		if err != nil {
			return nil, err
		}
		agents[id] = a
	}
	return agents, nil
}

// fly ticks until every agent has terminated. Each tick is a barrier: all
// flying agents step against the same target position before hits are
// applied and the target moves.
func (e *Engine) fly(ctx context.Context, generation int, agents []*agent.Agent, tg *target.Target) (int, error) {
	outcomes := make([]agent.TickOutcome, len(agents))
	flying := make([]int, 0, len(agents))
	tick := 0
	for {
		flying = flying[:0]
		for i, a := range agents {
			if a.Flying() {
				flying = append(flying, i)
			}
		}
		if len(flying) == 0 {
			return tick, nil
		}
		if err := ctx.Err(); err != nil {
			return tick, err
		}
		tick++

		pos := tg.Position()
		e.step(agents, flying, pos, outcomes)

		for _, i := range flying {
			if !outcomes[i].Hit() {
				continue
			}
			tg.Neutralize()
			if e.cfg.OnHit != nil {
				e.cfg.OnHit(generation, agents[i])
			}
		}
		if e.cfg.Observer != nil {
			frames := make([]agent.Frame, len(agents))
			for i, a := range agents {
				frames[i] = a.Frame(pos)
			}
			e.cfg.Observer.ObserveTick(generation, tick, pos, frames)
		}
		tg.Step()
	}
}

func (e *Engine) step(agents []*agent.Agent, flying []int, pos orb.Point, outcomes []agent.TickOutcome) {
	workers := min(e.cfg.Workers, len(flying))
	if workers <= 1 {
		for _, i := range flying {
			outcomes[i] = agents[i].Tick(pos)
		}
		return
	}

	chunk := (len(flying) + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < len(flying); start += chunk {
		part := flying[start:min(start+chunk, len(flying))]
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, i := range part {
				outcomes[i] = agents[i].Tick(pos)
			}
		}()
	}
	wg.Wait()
}

// evolve runs the sequential end-of-generation phase: ratios, fitness, the
// degenerate check, then selection.
func (e *Engine) evolve(agents []*agent.Agent, trajectory target.Trajectory) model.GenerationDiagnostics {
	e.pop.Generation++
	generation := e.pop.Generation
	ratios := e.pop.Ratios

	reasons := make(map[string]int)
	hits := 0
	for id, a := range agents {
		hit := a.Reason() == agent.ReasonHit
		ratios.Record(id, hit)
		e.histogram.record(trajectory.Start[0]-e.cfg.Agent.Launch[0], hit)
		reasons[a.Reason().String()]++
		if hit {
			hits++
		}
	}
	anyHit := hits > 0
	e.lastHit = anyHit
	e.launched += len(agents)
	e.targetsHit += hits

	for id, a := range agents {
		if a.Reason() != agent.ReasonHit {
			ratios.Decay(id, e.cfg.DecayThreshold, e.cfg.DecayPunishment)
		}
	}

	fitness := make([]float64, len(agents))
	positive := 0
	for id, a := range agents {
		f := AgentFitness(a, ratios.Kill[id])
		e.pop.Networks[id].Fitness = f
		fitness[id] = f
		if f > 0 {
			positive++
		}
	}

	diag := summarize(generation, fitness)
	diag.Episode = e.provider.Index()
	diag.Hits = hits
	diag.Reasons = reasons
	diag.Launched = e.launched
	diag.TargetsHit = e.targetsHit
	if e.launched > 0 {
		diag.Accuracy = float64(e.targetsHit) / float64(e.launched)
	}

	if e.pop.MutateHalf && generation > e.cfg.MutateHalfUntil && anyHit {
		e.pop.MutateHalf = false
		e.logger.Info("mutate-half cleared", "generation", generation)
	}

	if positive == 0 {
		e.pop.Reinitialize(e.rng)
		diag.Reinitialized = true
		diag.FingerprintDiversity = e.pop.Diversity()
		e.logger.Info("no positive fitness, population reinitialized", "generation", generation)
		return diag
	}

	ranked := append([]*nn.Network(nil), e.pop.Networks...)
	nn.SortByFitness(ranked)

	mode := ChooseMode(anyHit, e.pop.MutateHalf)
	if mode != e.lastMode {
		e.logger.Info("selection mode changed", "generation", generation, "from", e.lastMode.String(), "to", mode.String())
		e.lastMode = mode
	}
	res := SelectorFor(mode).Apply(e.rng, ranked, ratios, generation, anyHit)

	diag.Mode = res.Mode.String()
	diag.Preserved = res.Preserved
	diag.Overwritten = res.Overwritten
	diag.FingerprintDiversity = e.pop.Diversity()

	e.logger.Debug("generation complete",
		"generation", generation,
		"episode", diag.Episode,
		"mode", diag.Mode,
		"best", diag.BestFitness,
		"mean", diag.MeanFitness,
		"hits", hits,
		"diversity", diag.FingerprintDiversity,
	)
	return diag
}

// IsCancellation reports whether err came from context cancellation.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
