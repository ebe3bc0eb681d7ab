package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "run_config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadRunRequestFromConfig(t *testing.T) {
	path := writeConfig(t, `{
		"population": 12,
		"generations": 9,
		"seed": 77,
		"workers": 3,
		"hidden": [8, 4],
		"sensor_samples": 9,
		"field_of_view": 60,
		"sensor_depth": 500,
		"target_speed": 2,
		"max_ticks": 1500,
		"guidance": "instrumented",
		"continue_pop_id": "pop-1"
	}`)

	req, err := loadRunRequestFromConfig(path)
	if err != nil {
		t.Fatalf("load run request: %v", err)
	}
	if req.Population != 12 || req.Generations != 9 || req.Seed != 77 || req.Workers != 3 {
		t.Fatalf("unexpected base fields: %+v", req)
	}
	if !reflect.DeepEqual(req.Hidden, []int{8, 4}) {
		t.Fatalf("hidden got=%v want=[8 4]", req.Hidden)
	}
	if req.SensorSamples != 9 || req.FieldOfView != 60 || req.SensorDepth != 500 {
		t.Fatalf("unexpected sensor fields: %+v", req)
	}
	if req.TargetSpeed != 2 || req.MaxTicks == nil || *req.MaxTicks != 1500 || req.Guidance != "instrumented" || req.ContinuePopID != "pop-1" {
		t.Fatalf("unexpected episode fields: %+v", req)
	}
}

func TestLoadRunRequestFromConfigMaxTicks(t *testing.T) {
	req, err := loadRunRequestFromConfig(writeConfig(t, `{"max_ticks": 0}`))
	if err != nil {
		t.Fatalf("load run request: %v", err)
	}
	if req.MaxTicks == nil || *req.MaxTicks != 0 {
		t.Fatalf("explicit zero got=%v want=0", req.MaxTicks)
	}

	req, err = loadRunRequestFromConfig(writeConfig(t, `{"population": 4}`))
	if err != nil {
		t.Fatalf("load run request: %v", err)
	}
	if req.MaxTicks != nil {
		t.Fatalf("omitted max_ticks got=%d want=nil", *req.MaxTicks)
	}

	overrideFromFlags(&req, map[string]bool{"max-ticks": true}, map[string]any{"max-ticks": 0})
	if req.MaxTicks == nil || *req.MaxTicks != 0 {
		t.Fatalf("flag zero got=%v want=0", req.MaxTicks)
	}
}

func TestLoadRunRequestFromConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{name: "missing file", path: filepath.Join(t.TempDir(), "absent.json")},
		{name: "unknown field", path: writeConfig(t, `{"population": 4, "scape": "xor"}`)},
		{name: "malformed", path: writeConfig(t, `{"population": `)},
		{name: "wrong type", path: writeConfig(t, `{"population": "many"}`)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := loadRunRequestFromConfig(tc.path); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestOverrideFromFlagsOnlyAppliesSetFlags(t *testing.T) {
	req, err := loadRunRequestFromConfig(writeConfig(t, `{"population": 12, "seed": 5, "hidden": [6]}`))
	if err != nil {
		t.Fatalf("load run request: %v", err)
	}

	set := map[string]bool{"seed": true, "guidance": true, "unknown": true}
	values := map[string]any{
		"pop":      30,
		"seed":     int64(9),
		"hidden":   []int(nil),
		"guidance": "instrumented",
	}
	overrideFromFlags(&req, set, values)

	if req.Population != 12 {
		t.Fatalf("population got=%d want=12", req.Population)
	}
	if req.Seed != 9 || req.Guidance != "instrumented" {
		t.Fatalf("flags not applied: %+v", req)
	}
	if !reflect.DeepEqual(req.Hidden, []int{6}) {
		t.Fatalf("hidden got=%v want=[6]", req.Hidden)
	}
}

func TestParseLayers(t *testing.T) {
	tests := []struct {
		in      string
		want    []int
		wantErr bool
	}{
		{in: "", want: nil},
		{in: "8", want: []int{8}},
		{in: " 8, 4 ", want: []int{8, 4}},
		{in: "8,,4", wantErr: true},
		{in: "0", wantErr: true},
		{in: "-2", wantErr: true},
	}
	for _, tc := range tests {
		got, err := parseLayers(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("parseLayers(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseLayers(%q): %v", tc.in, err)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("parseLayers(%q) got=%v want=%v", tc.in, got, tc.want)
		}
	}
}
