package storage

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"interceptor/internal/model"
)

func TestDecodePopulationFixture(t *testing.T) {
	snapshot, err := DecodePopulation(readFixture(t, "population_snapshot_v1.json"))
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	if snapshot.ID != "pop-minimal-1" || snapshot.Generation != 42 || snapshot.EpisodeIndex != 40 {
		t.Fatalf("unexpected snapshot header: %+v", snapshot)
	}
	if len(snapshot.Networks) != 2 {
		t.Fatalf("unexpected network count: got=%d want=2", len(snapshot.Networks))
	}
	if got := snapshot.Networks[1].Weights[0][0][2]; got != -0.45 {
		t.Fatalf("unexpected weight: got=%f want=-0.45", got)
	}
	if !reflect.DeepEqual(snapshot.KillRatios, []float64{0, 3}) {
		t.Fatalf("unexpected kill ratios: %v", snapshot.KillRatios)
	}
}

func TestDecodeRunSummaryFixture(t *testing.T) {
	summary, err := DecodeRunSummary(readFixture(t, "run_summary_v1.json"))
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	if summary.RunID != "run-minimal-1" || summary.PopulationID != "pop-minimal-1" {
		t.Fatalf("unexpected summary ids: %+v", summary)
	}
	if summary.TargetsHit != 12 || summary.Launched != 80 {
		t.Fatalf("unexpected counters: launched=%d hit=%d", summary.Launched, summary.TargetsHit)
	}
}

func TestDecodeRunSummaryVersionMismatch(t *testing.T) {
	_, err := DecodeRunSummary(readFixture(t, "run_summary_v0.json"))
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
}

func TestDecodePopulationRejectsRatioMismatch(t *testing.T) {
	input := model.PopulationSnapshot{
		VersionedRecord: Versioned(),
		ID:              "p",
		KillRatios:      []float64{1},
		MissRatios:      []float64{1, 2},
		Networks:        []model.NetworkRecord{{ID: 0}, {ID: 1}},
	}
	data, err := EncodePopulation(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodePopulation(data); err == nil {
		t.Fatal("expected ratio length error")
	}
}

func TestDecodeMalformedPayloads(t *testing.T) {
	bad := []byte("{not json")
	if _, err := DecodePopulation(bad); err == nil {
		t.Fatal("expected population decode error")
	}
	if _, err := DecodeRunSummary(bad); err == nil {
		t.Fatal("expected run summary decode error")
	}
	if _, err := DecodeFitnessHistory(bad); err == nil {
		t.Fatal("expected fitness history decode error")
	}
	if _, err := DecodeGenerationDiagnostics(bad); err == nil {
		t.Fatal("expected diagnostics decode error")
	}
	if _, err := DecodeHitMiss(bad); err == nil {
		t.Fatal("expected hitmiss decode error")
	}
}

func TestHitMissCodecUsesShortKeys(t *testing.T) {
	data, err := EncodeHitMiss([]model.HitMissBucket{{XDistance: 20, Count: 3, Result: "hit"}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `[{"xdist":20,"count":3,"result":"hit"}]`
	if string(data) != want {
		t.Fatalf("got=%s want=%s", data, want)
	}
}

func readFixture(t *testing.T, name string) []byte {
	t.Helper()

	data, err := os.ReadFile(fixturePath(name))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return data
}

func fixturePath(name string) string {
	return filepath.Join("..", "..", "testdata", "fixtures", name)
}
