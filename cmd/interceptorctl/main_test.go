package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"interceptor/internal/nn"
	"interceptor/internal/stats"
)

func chdirTemp(t *testing.T) string {
	t.Helper()

	origWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	workdir := t.TempDir()
	if err := os.Chdir(workdir); err != nil {
		t.Fatalf("chdir tempdir: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(origWD)
	})
	return workdir
}

func TestRunCommandCreatesArtifacts(t *testing.T) {
	chdirTemp(t)
	ctx := context.Background()

	args := []string{
		"run",
		"--store", "memory",
		"--pop", "4",
		"--gens", "2",
		"--seed", "11",
		"--workers", "2",
		"--max-ticks", "300",
		"--hidden", "3",
	}
	if err := run(ctx, args); err != nil {
		t.Fatalf("run command: %v", err)
	}

	entries, err := stats.ListRunIndex(runsDir)
	if err != nil {
		t.Fatalf("list run index: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("indexed runs got=%d want=1", len(entries))
	}
	runID := entries[0].RunID
	if entries[0].PopulationSize != 4 || entries[0].Generations != 2 || entries[0].Seed != 11 {
		t.Fatalf("unexpected index entry: %+v", entries[0])
	}

	for _, file := range []string{"config.json", "fitness_history.csv", "diagnostics.json", "hitmiss.csv", filepath.Join("networks", nn.FileName(0))} {
		path := filepath.Join(runsDir, runID, file)
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected artifact %s: %v", path, err)
		}
	}
	cfg, ok, err := stats.ReadRunConfig(runsDir, runID)
	if err != nil || !ok {
		t.Fatalf("read run config: ok=%t err=%v", ok, err)
	}
	if got := cfg.Layers; len(got) != 3 || got[1] != 3 {
		t.Fatalf("layers got=%v want=[17 3 1]", got)
	}

	for _, cmd := range [][]string{
		{"runs", "--limit", "5"},
		{"fitness", "--latest"},
		{"diagnostics", "--run-id", runID, "--json"},
		{"hitmiss", "--latest"},
		{"evaluate", "--latest", "--episodes", "1"},
		{"export", "--run-id", runID},
	} {
		if err := run(ctx, cmd); err != nil {
			t.Fatalf("%s: %v", cmd[0], err)
		}
	}
	if _, err := os.Stat(filepath.Join(exportsDir, runID, "config.json")); err != nil {
		t.Fatalf("expected exported config: %v", err)
	}
}

func TestRunCommandConfigWithFlagOverrides(t *testing.T) {
	workdir := chdirTemp(t)
	configPath := filepath.Join(workdir, "run.json")
	config := `{"population": 6, "generations": 1, "seed": 3, "max_ticks": 200, "sensor_samples": 5}`
	if err := os.WriteFile(configPath, []byte(config), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	args := []string{"run", "--config", configPath, "--pop", "4", "--workers", "1"}
	if err := run(context.Background(), args); err != nil {
		t.Fatalf("run command: %v", err)
	}

	entries, err := stats.ListRunIndex(runsDir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("list run index: %v err=%v", entries, err)
	}
	cfg, ok, err := stats.ReadRunConfig(runsDir, entries[0].RunID)
	if err != nil || !ok {
		t.Fatalf("read run config: ok=%t err=%v", ok, err)
	}
	if cfg.PopulationSize != 4 || cfg.Seed != 3 || cfg.Sensor.SamplePoints != 5 || cfg.MaxTicks != 200 {
		t.Fatalf("unexpected run config: %+v", cfg)
	}
}

func TestRunCommandErrors(t *testing.T) {
	chdirTemp(t)
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "missing command", args: nil, want: "missing command"},
		{name: "unknown command", args: []string{"fly"}, want: "unknown command"},
		{name: "odd population", args: []string{"run", "--pop", "5", "--gens", "1"}, want: "even"},
		{name: "bad hidden", args: []string{"run", "--hidden", "4,x"}, want: "invalid hidden layer"},
		{name: "fitness selector", args: []string{"fitness"}, want: "requires --run-id or --latest"},
		{name: "export conflict", args: []string{"export", "--run-id", "x", "--latest"}, want: "not both"},
		{name: "evaluate source", args: []string{"evaluate"}, want: "requires --run-id"},
		{name: "runs limit", args: []string{"runs", "--limit", "0"}, want: "limit must be > 0"},
		{name: "no runs", args: []string{"diagnostics", "--latest"}, want: "no runs available"},
		{name: "unknown store", args: []string{"init", "--store", "bogus"}, want: "bogus"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := run(context.Background(), tc.args)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("got=%q want substring %q", err.Error(), tc.want)
			}
		})
	}
}
