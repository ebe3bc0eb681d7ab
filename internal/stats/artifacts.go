package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"interceptor/internal/model"
	"interceptor/internal/sensor"
)

const (
	runIndexFile       = "run_index.json"
	configFile         = "config.json"
	fitnessHistoryFile = "fitness_history.csv"
	diagnosticsFile    = "diagnostics.json"
	hitMissFile        = "hitmiss.csv"

	// NetworksDir holds one missile<ID>.ai file per network of the final
	// generation.
	NetworksDir = "networks"
)

type RunConfig struct {
	RunID                string        `json:"run_id"`
	PopulationID         string        `json:"population_id"`
	ContinuePopulationID string        `json:"continue_population_id,omitempty"`
	InitialGeneration    int           `json:"initial_generation"`
	PopulationSize       int           `json:"population_size"`
	Layers               []int         `json:"layers"`
	Generations          int           `json:"generations"`
	Seed                 int64         `json:"seed"`
	Workers              int           `json:"workers"`
	Guidance             string        `json:"guidance"`
	TargetSpeed          float64       `json:"target_speed"`
	MaxTicks             int           `json:"max_ticks"`
	Sensor               sensor.Config `json:"sensor"`
	DecayThreshold       float64       `json:"decay_threshold"`
	DecayPunishment      float64       `json:"decay_punishment"`
	MutateHalfUntil      int           `json:"mutate_half_until"`
	AccuracyWindow       int           `json:"accuracy_window"`
}

type RunArtifacts struct {
	Config                RunConfig                     `json:"config"`
	BestByGeneration      []float64                     `json:"best_by_generation"`
	GenerationDiagnostics []model.GenerationDiagnostics `json:"generation_diagnostics,omitempty"`
	HitMiss               []model.HitMissBucket         `json:"hitmiss,omitempty"`
}

type RunIndexEntry struct {
	RunID            string  `json:"run_id"`
	PopulationID     string  `json:"population_id"`
	PopulationSize   int     `json:"population_size"`
	Generations      int     `json:"generations"`
	FinalGeneration  int     `json:"final_generation"`
	Seed             int64   `json:"seed"`
	Workers          int     `json:"workers"`
	FinalBestFitness float64 `json:"final_best_fitness"`
	Launched         int     `json:"launched"`
	TargetsHit       int     `json:"targets_hit"`
	CreatedAtUTC     string  `json:"created_at_utc"`
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	if err := WriteFitnessHistory(filepath.Join(runDir, fitnessHistoryFile), artifacts.BestByGeneration); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, diagnosticsFile), artifacts.GenerationDiagnostics); err != nil {
		return "", err
	}
	if err := WriteHitMiss(filepath.Join(runDir, hitMissFile), artifacts.HitMiss); err != nil {
		return "", err
	}

	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns indexed runs newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// ExportRunArtifacts copies a run directory, networks included, into outDir.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range []string{configFile, fitnessHistoryFile, diagnosticsFile, hitMissFile} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}

	networks := filepath.Join(src, NetworksDir)
	if _, err := os.Stat(networks); err == nil {
		if err := copyDir(networks, filepath.Join(dst, NetworksDir)); err != nil {
			return "", err
		}
	} else if !os.IsNotExist(err) {
		return "", err
	}

	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, configFile), &cfg)
	return cfg, ok, err
}

func WriteRunConfig(baseDir, runID string, cfg RunConfig) error {
	if strings.TrimSpace(runID) == "" {
		return fmt.Errorf("run id is required")
	}
	if strings.TrimSpace(cfg.RunID) == "" {
		cfg.RunID = strings.TrimSpace(runID)
	}
	if cfg.RunID != strings.TrimSpace(runID) {
		return fmt.Errorf("run config run id mismatch: got=%s want=%s", cfg.RunID, strings.TrimSpace(runID))
	}
	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	return writeJSON(filepath.Join(runDir, configFile), cfg)
}

func ReadGenerationDiagnostics(baseDir, runID string) ([]model.GenerationDiagnostics, bool, error) {
	var diagnostics []model.GenerationDiagnostics
	ok, err := readJSON(filepath.Join(baseDir, runID, diagnosticsFile), &diagnostics)
	return diagnostics, ok, err
}

// RunDir is where WriteRunArtifacts places a run.
func RunDir(baseDir, runID string) string {
	return filepath.Join(baseDir, runID)
}

// WriteFitnessHistory writes one generation,best_fitness row per generation.
func WriteFitnessHistory(path string, bestByGeneration []float64) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"generation", "best_fitness"}); err != nil {
		return err
	}
	for i, best := range bestByGeneration {
		if err := writer.Write([]string{
			strconv.Itoa(i + 1),
			strconv.FormatFloat(best, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadFitnessHistory(baseDir, runID string) ([]float64, bool, error) {
	rows, ok, err := readCSV(filepath.Join(baseDir, runID, fitnessHistoryFile), 2)
	if err != nil || !ok {
		return nil, ok, err
	}

	series := make([]float64, 0, len(rows))
	for _, record := range rows {
		value, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, false, err
		}
		series = append(series, value)
	}
	return series, true, nil
}

// WriteHitMiss writes the histogram with the header xdist,count,result.
func WriteHitMiss(path string, buckets []model.HitMissBucket) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"xdist", "count", "result"}); err != nil {
		return err
	}
	for _, bucket := range buckets {
		if err := writer.Write([]string{
			strconv.Itoa(bucket.XDistance),
			strconv.Itoa(bucket.Count),
			bucket.Result,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadHitMiss(baseDir, runID string) ([]model.HitMissBucket, bool, error) {
	rows, ok, err := readCSV(filepath.Join(baseDir, runID, hitMissFile), 3)
	if err != nil || !ok {
		return nil, ok, err
	}

	buckets := make([]model.HitMissBucket, 0, len(rows))
	for _, record := range rows {
		xdist, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, false, err
		}
		count, err := strconv.Atoi(record[1])
		if err != nil {
			return nil, false, err
		}
		buckets = append(buckets, model.HitMissBucket{XDistance: xdist, Count: count, Result: record[2]})
	}
	return buckets, true, nil
}

// readCSV returns the rows after the header, each with at least columns fields.
func readCSV(path string, columns int) ([][]string, bool, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return [][]string{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < columns {
		return nil, false, fmt.Errorf("%s: header must have at least %d columns", filepath.Base(path), columns)
	}

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if len(record) < columns {
			return nil, false, fmt.Errorf("%s: row must have at least %d columns", filepath.Base(path), columns)
		}
		rows = append(rows, record)
	}
	return rows, true, nil
}

func readJSON(path string, value any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, value); err != nil {
		return false, err
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
