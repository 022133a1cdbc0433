package tuning

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`
	AgentName       string `yaml:"agent_name"`

	SpacingMs      int `yaml:"spacing_ms"`
	SafetyBufferMs int `yaml:"safety_buffer_ms"`
	PollIntervalMs int `yaml:"poll_interval_ms"`
	RetryMs        int `yaml:"retry_ms"`

	HackFraction float64 `yaml:"hack_fraction"`
	Strategy     string  `yaml:"strategy"`

	RAMCosts RAMCosts `yaml:"ram_costs"`

	Workers []string `yaml:"workers"`
	Targets []string `yaml:"targets"`
}

type RAMCosts struct {
	HackGB   float64 `yaml:"hack_gb"`
	GrowGB   float64 `yaml:"grow_gb"`
	WeakenGB float64 `yaml:"weaken_gb"`
}

func Default() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		AgentName:       "hgwd",
		SpacingMs:       250,
		SafetyBufferMs:  100,
		PollIntervalMs:  500,
		RetryMs:         5000,
		HackFraction:    0.25,
		Strategy:        "conservative",
		RAMCosts:        RAMCosts{HackGB: 1.7, GrowGB: 1.75, WeakenGB: 1.75},
	}
}

func Load(path string) (Tuning, error) {
	t := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) validate() error {
	switch t.Strategy {
	case "conservative", "greedy":
	default:
		return fmt.Errorf("unknown strategy %q", t.Strategy)
	}
	if t.HackFraction <= 0 || t.HackFraction >= 1 {
		return fmt.Errorf("hack_fraction %v out of (0,1)", t.HackFraction)
	}
	if t.SpacingMs <= 0 {
		return fmt.Errorf("spacing_ms must be positive")
	}
	if t.RAMCosts.HackGB <= 0 || t.RAMCosts.GrowGB <= 0 || t.RAMCosts.WeakenGB <= 0 {
		return fmt.Errorf("ram costs must be positive")
	}
	return nil
}

func (t Tuning) Spacing() time.Duration      { return time.Duration(t.SpacingMs) * time.Millisecond }
func (t Tuning) SafetyBuffer() time.Duration { return time.Duration(t.SafetyBufferMs) * time.Millisecond }
func (t Tuning) PollInterval() time.Duration { return time.Duration(t.PollIntervalMs) * time.Millisecond }
func (t Tuning) Retry() time.Duration        { return time.Duration(t.RetryMs) * time.Millisecond }
