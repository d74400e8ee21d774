package sched

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"litmusrt/internal/rt"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	for _, path := range []string{"", filepath.Join(t.TempDir(), "missing.yml")} {
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%q) = %v", path, err)
		}
		if cfg.TickMS != 5 || cfg.Policy != "gsn-edf" || cfg.CPUs <= 0 || len(cfg.Tasks) != 0 {
			t.Errorf("Load(%q) = %+v", path, cfg)
		}
	}
}

func TestLoadTaskSet(t *testing.T) {
	path := writeConfig(t, `
tick_ms: -3
policy: psn-edf
cpus: 2
tasks:
  - name: ctl
    cpu: 1
    wcet_ms: 10
    period_ms: 100
    class: srt
    jobs: 5
  - wcet_ms: 1
    period_ms: 4
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TickMS != 5 {
		t.Errorf("tick_ms not clamped: %d", cfg.TickMS)
	}
	if p, err := cfg.PolicyValue(); err != nil || p != rt.PolicyPSNEDF {
		t.Errorf("PolicyValue() = %v, %v", p, err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}

	p, err := cfg.Tasks[0].Params()
	if err != nil {
		t.Fatal(err)
	}
	want := rt.Params{ExecCost: 10 * time.Millisecond, Period: 100 * time.Millisecond, CPU: 1, Class: rt.ClassSoft}
	if p != want {
		t.Errorf("Params() = %+v, want %+v", p, want)
	}
	if cfg.Tasks[1].Name != "task1" || cfg.Tasks[1].Class != "hrt" {
		t.Errorf("defaults not applied: %+v", cfg.Tasks[1])
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{"unknown class", "tasks: [{name: a, wcet_ms: 1, period_ms: 2, class: firm}]", rt.ErrUnknownClass},
		{"unknown policy", "policy: lottery", rt.ErrUnknownPolicy},
		{"cpu out of range", "cpus: 1\ntasks: [{name: a, cpu: 3, wcet_ms: 1, period_ms: 2}]", rt.ErrInvalidParams},
		{"cost above period", "tasks: [{name: a, wcet_ms: 5, period_ms: 2}]", rt.ErrInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.yaml))
			if err != nil {
				t.Fatal(err)
			}
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadMalformed(t *testing.T) {
	if _, err := Load(writeConfig(t, "tasks: [")); err == nil {
		t.Error("Load accepted malformed YAML")
	}
}

func TestConversionsReportErrors(t *testing.T) {
	cfg, err := Load(writeConfig(t, "policy: lottery\ntasks: [{name: a, wcet_ms: 5, period_ms: 2}, {name: b, wcet_ms: 1, period_ms: 2, class: firm}]"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cfg.PolicyValue(); !errors.Is(err, rt.ErrUnknownPolicy) {
		t.Errorf("PolicyValue() = %v, want %v", err, rt.ErrUnknownPolicy)
	}
	if p, err := cfg.Tasks[0].Params(); !errors.Is(err, rt.ErrInvalidParams) || p != (rt.Params{}) {
		t.Errorf("Params() = %+v, %v; want %v", p, err, rt.ErrInvalidParams)
	}
	if _, err := cfg.Tasks[1].Params(); !errors.Is(err, rt.ErrUnknownClass) {
		t.Errorf("Params() = %v, want %v", err, rt.ErrUnknownClass)
	}
}
