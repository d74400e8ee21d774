package sched

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	yaml "github.com/goccy/go-yaml"
	"github.com/shirou/gopsutil/v3/cpu"

	"litmusrt/internal/rt"
)

// TaskConfig describes one periodic task of a task set.
type TaskConfig struct {
	Name     string `yaml:"name"`
	CPU      int    `yaml:"cpu"`
	WCETMS   int    `yaml:"wcet_ms"`
	PeriodMS int    `yaml:"period_ms"`
	Class    string `yaml:"class"` // hrt, srt or be
	Jobs     int    `yaml:"jobs"`  // jobs to run before exiting
}

// Config mirrors config.yml.
type Config struct {
	TickMS     int          `yaml:"tick_ms"`     // 5 (by default)
	Policy     string       `yaml:"policy"`      // gsn-edf (by default)
	CPUs       int          `yaml:"cpus"`        // host cpu count (by default)
	LockMemory bool         `yaml:"lock_memory"` // pin task memory with mlockall
	Tasks      []TaskConfig `yaml:"tasks"`
}

// HostCPUs is the number of logical cpus of this machine.
func HostCPUs() int {
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

func defaultConfig() Config {
	return Config{
		TickMS: 5,
		Policy: "gsn-edf",
		CPUs:   HostCPUs(),
	}
}

// Load reads YAML and overrides defaults; empty path or a missing file
// means defaults only.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	// sanity clamps
	if cfg.TickMS <= 0 {
		cfg.TickMS = 5
	}
	if cfg.CPUs <= 0 {
		cfg.CPUs = HostCPUs()
	}
	for i := range cfg.Tasks {
		if cfg.Tasks[i].Class == "" {
			cfg.Tasks[i].Class = rt.ClassHard.String()
		}
		if cfg.Tasks[i].Name == "" {
			cfg.Tasks[i].Name = fmt.Sprintf("task%d", i)
		}
	}
	return cfg, nil
}

// Tick is the length of one simulated clock tick.
func (c Config) Tick() time.Duration { return time.Duration(c.TickMS) * time.Millisecond }

// PolicyValue resolves the configured policy key.
func (c Config) PolicyValue() (rt.Policy, error) { return rt.ParsePolicy(c.Policy) }

// Params converts the task entry into kernel parameters.
func (t TaskConfig) Params() (rt.Params, error) {
	class, err := rt.ParseClass(t.Class)
	if err != nil {
		return rt.Params{}, fmt.Errorf("task %s: %w", t.Name, err)
	}
	p := rt.Params{
		ExecCost: time.Duration(t.WCETMS) * time.Millisecond,
		Period:   time.Duration(t.PeriodMS) * time.Millisecond,
		CPU:      t.CPU,
		Class:    class,
	}
	if err := p.Validate(); err != nil {
		return rt.Params{}, fmt.Errorf("task %s: %w", t.Name, err)
	}
	return p, nil
}

// Validate checks the policy and every task entry.
func (c Config) Validate() error {
	if _, err := c.PolicyValue(); err != nil {
		return err
	}
	for _, t := range c.Tasks {
		p, err := t.Params()
		if err != nil {
			return err
		}
		if p.CPU >= c.CPUs {
			return fmt.Errorf("task %s: %w: cpu %d of %d", t.Name, rt.ErrInvalidParams, p.CPU, c.CPUs)
		}
		if t.Jobs < 0 {
			return fmt.Errorf("task %s: negative job count", t.Name)
		}
	}
	return nil
}
