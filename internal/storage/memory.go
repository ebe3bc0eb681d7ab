package storage

import (
	"context"
	"maps"
	"sort"
	"sync"

	"interceptor/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunSummary
	populations map[string]model.PopulationSnapshot
	history     map[string][]float64
	diagnostics map[string][]model.GenerationDiagnostics
	hitMiss     map[string][]model.HitMissBucket
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunSummary)
	s.populations = make(map[string]model.PopulationSnapshot)
	s.history = make(map[string][]float64)
	s.diagnostics = make(map[string][]model.GenerationDiagnostics)
	s.hitMiss = make(map[string][]model.HitMissBucket)
	return nil
}

func (s *MemoryStore) SaveRunSummary(_ context.Context, summary model.RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary.Layers = append([]int(nil), summary.Layers...)
	s.runs[summary.RunID] = summary
	return nil
}

func (s *MemoryStore) GetRunSummary(_ context.Context, runID string) (model.RunSummary, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary, ok := s.runs[runID]
	if !ok {
		return model.RunSummary{}, false, nil
	}
	summary.Layers = append([]int(nil), summary.Layers...)
	return summary, true, nil
}

// ListRunSummaries returns every run ordered by creation time, oldest first.
func (s *MemoryStore) ListRunSummaries(_ context.Context) ([]model.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.RunSummary, 0, len(s.runs))
	for _, summary := range s.runs {
		summary.Layers = append([]int(nil), summary.Layers...)
		out = append(out, summary)
	}
	sortRunSummaries(out)
	return out, nil
}

func (s *MemoryStore) SavePopulation(_ context.Context, snapshot model.PopulationSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.populations[snapshot.ID] = cloneSnapshot(snapshot)
	return nil
}

func (s *MemoryStore) GetPopulation(_ context.Context, id string) (model.PopulationSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.populations[id]
	if !ok {
		return model.PopulationSnapshot{}, false, nil
	}
	return cloneSnapshot(snapshot), true, nil
}

func (s *MemoryStore) DeletePopulation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.populations, id)
	return nil
}

func (s *MemoryStore) SaveFitnessHistory(_ context.Context, runID string, history []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history[runID] = append([]float64(nil), history...)
	return nil
}

func (s *MemoryStore) GetFitnessHistory(_ context.Context, runID string) ([]float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.history[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]float64(nil), history...), true, nil
}

func (s *MemoryStore) SaveGenerationDiagnostics(_ context.Context, runID string, diagnostics []model.GenerationDiagnostics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.diagnostics[runID] = cloneDiagnostics(diagnostics)
	return nil
}

func (s *MemoryStore) GetGenerationDiagnostics(_ context.Context, runID string) ([]model.GenerationDiagnostics, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	diagnostics, ok := s.diagnostics[runID]
	if !ok {
		return nil, false, nil
	}
	return cloneDiagnostics(diagnostics), true, nil
}

func (s *MemoryStore) SaveHitMiss(_ context.Context, runID string, buckets []model.HitMissBucket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]model.HitMissBucket, len(buckets))
	copy(copied, buckets)
	s.hitMiss[runID] = copied
	return nil
}

func (s *MemoryStore) GetHitMiss(_ context.Context, runID string) ([]model.HitMissBucket, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buckets, ok := s.hitMiss[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.HitMissBucket, len(buckets))
	copy(copied, buckets)
	return copied, true, nil
}

func sortRunSummaries(runs []model.RunSummary) {
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].CreatedAt != runs[j].CreatedAt {
			return runs[i].CreatedAt < runs[j].CreatedAt
		}
		return runs[i].RunID < runs[j].RunID
	})
}

func cloneDiagnostics(in []model.GenerationDiagnostics) []model.GenerationDiagnostics {
	out := make([]model.GenerationDiagnostics, len(in))
	copy(out, in)
	for i := range out {
		if out[i].Reasons != nil {
			out[i].Reasons = maps.Clone(out[i].Reasons)
		}
	}
	return out
}

func cloneSnapshot(in model.PopulationSnapshot) model.PopulationSnapshot {
	out := in
	out.KillRatios = append([]float64(nil), in.KillRatios...)
	out.MissRatios = append([]float64(nil), in.MissRatios...)
	out.Networks = make([]model.NetworkRecord, len(in.Networks))
	for i, n := range in.Networks {
		rec := model.NetworkRecord{
			ID:      n.ID,
			Layers:  append([]int(nil), n.Layers...),
			Fitness: n.Fitness,
			Biases:  make([][]float64, len(n.Biases)),
			Weights: make([][][]float64, len(n.Weights)),
		}
		for l, b := range n.Biases {
			rec.Biases[l] = append([]float64(nil), b...)
		}
		for l, rows := range n.Weights {
			rec.Weights[l] = make([][]float64, len(rows))
			for j, row := range rows {
				rec.Weights[l][j] = append([]float64(nil), row...)
			}
		}
		out.Networks[i] = rec
	}
	return out
}
