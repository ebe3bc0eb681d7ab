package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	api "interceptor/pkg/interceptor"
)

// loadRunRequestFromConfig reads a run request from a JSON file using the
// RunRequest field names. Unknown keys are rejected.
func loadRunRequestFromConfig(path string) (api.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return api.RunRequest{}, fmt.Errorf("load config: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var req api.RunRequest
	if err := dec.Decode(&req); err != nil {
		return api.RunRequest{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	return req, nil
}

// overrideFromFlags applies explicitly set flags over a config-loaded request.
func overrideFromFlags(req *api.RunRequest, set map[string]bool, flagValue map[string]any) {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "continue-pop-id":
			req.ContinuePopID = v.(string)
		case "networks-dir":
			req.NetworksDir = v.(string)
		case "pop":
			req.Population = v.(int)
		case "gens":
			req.Generations = v.(int)
		case "seed":
			req.Seed = v.(int64)
		case "workers":
			req.Workers = v.(int)
		case "hidden":
			req.Hidden = v.([]int)
		case "samples":
			req.SensorSamples = v.(int)
		case "fov":
			req.FieldOfView = v.(float64)
		case "depth":
			req.SensorDepth = v.(float64)
		case "target-speed":
			req.TargetSpeed = v.(float64)
		case "max-ticks":
			req.MaxTicks = api.IntPtr(v.(int))
		case "guidance":
			req.Guidance = v.(string)
		}
	}
}

// parseLayers parses "8,4" into hidden layer sizes.
func parseLayers(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	layers := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid hidden layer %q: %w", part, err)
		}
		if n <= 0 {
			return nil, fmt.Errorf("hidden layer size must be > 0: %d", n)
		}
		layers = append(layers, n)
	}
	return layers, nil
}
