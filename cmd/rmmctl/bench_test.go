package main

import (
	"encoding/json"
	"strings"
	"testing"
)

func resetBenchFlags() {
	benchResource = "pool"
	benchSize = 2048
	benchCount = 200
	benchStreams = 3
	benchWindow = 8
	benchLimit = 0
	benchLog = false
	benchMmap = false
	benchSeed = 1
	jsonOut = false
	verbose = false
}

func TestBenchCommand(t *testing.T) {
	tests := []struct {
		name        string
		resource    string
		limit       int64
		wantErr     bool
		wantContain []string
	}{
		{name: "pool", resource: "pool", wantContain: []string{"resource:    pool", "allocations: 600 (0 rejected)", "current 0"}},
		{name: "arena", resource: "arena", wantContain: []string{"resource:    arena", "current 0"}},
		{name: "binning", resource: "binning", wantContain: []string{"resource:    binning"}},
		{name: "backing", resource: "backing", wantContain: []string{"resource:    backing"}},
		{name: "limited", resource: "pool", limit: 4096, wantContain: []string{"rejected)"}},
		{name: "unknown", resource: "slab", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetBenchFlags()
			benchResource = tt.resource
			benchLimit = tt.limit

			output, err := captureOutput(t, runBench)
			if (err != nil) != tt.wantErr {
				t.Fatalf("runBench() error = %v, wantErr %v", err, tt.wantErr)
			}
			for _, want := range tt.wantContain {
				if !strings.Contains(output, want) {
					t.Errorf("output missing %q:\n%s", want, output)
				}
			}
		})
	}
}

func TestBenchJSON(t *testing.T) {
	resetBenchFlags()
	jsonOut = true
	benchResource = "arena"

	output, err := captureOutput(t, runBench)
	if err != nil {
		t.Fatalf("runBench() error = %v", err)
	}

	var res BenchResult
	if err := json.Unmarshal([]byte(output), &res); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, output)
	}
	if res.Allocations != 600 {
		t.Errorf("Allocations = %d, want 600", res.Allocations)
	}
	if res.Stats.Allocations.Total != 600 {
		t.Errorf("Stats.Allocations.Total = %d, want 600", res.Stats.Allocations.Total)
	}
	if res.Stats.Bytes.Current != 0 {
		t.Errorf("Stats.Bytes.Current = %d, want 0", res.Stats.Bytes.Current)
	}
}

func TestBenchValidation(t *testing.T) {
	resetBenchFlags()
	benchStreams = 0
	if _, err := captureOutput(t, runBench); err == nil {
		t.Fatal("expected error for zero streams")
	}
}
