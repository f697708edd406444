package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/sphfluid/internal/fluid"
)

const (
	DefaultBackend       = "cpu"
	DefaultFrames        = 600
	DefaultProbeStrength = 5.0
	DefaultOutputDir     = "runs"
)

type Config struct {
	Preset        string        `yaml:"preset,omitempty"`
	Backend       string        `yaml:"backend"`
	Workers       int           `yaml:"workers"`
	Seed          int64         `yaml:"seed"`
	Frames        int           `yaml:"frames"`
	ProbeStrength float64       `yaml:"probe_strength"`
	OutputDir     string        `yaml:"output_dir"`
	Params        fluid.Params  `yaml:"params"`
	Log           LogConfig     `yaml:"log"`
	Metrics       MetricsConfig `yaml:"metrics"`
	Bench         BenchConfig   `yaml:"bench"`
}

type LogConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
	Output   string `yaml:"output"`
}

type MetricsConfig struct {
	// Addr enables the Prometheus endpoint when set, e.g. ":9090".
	Addr string `yaml:"addr"`
}

type BenchConfig struct {
	Start        int    `yaml:"start"`
	Step         int    `yaml:"step"`
	Max          int    `yaml:"max"`
	Frames       int    `yaml:"frames"`
	SettleFrames int    `yaml:"settle_frames"`
	Output       string `yaml:"output"`
}

func DefaultConfig() *Config {
	return &Config{
		Backend:       DefaultBackend,
		Frames:        DefaultFrames,
		ProbeStrength: DefaultProbeStrength,
		OutputDir:     DefaultOutputDir,
		Params:        fluid.DefaultParams(),
		Log: LogConfig{
			Level:    "info",
			Encoding: "console",
			Output:   "stderr",
		},
		Bench: BenchConfig{
			Start:        1024,
			Step:         1024,
			Max:          68000,
			Frames:       2000,
			SettleFrames: 100,
			Output:       "benchmark.log",
		},
	}
}

// Load reads a YAML config. Fields missing from the file keep their
// defaults; a preset named in the file replaces the default parameters
// before the file's own params are applied on top.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var head struct {
		Preset string `yaml:"preset"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg := DefaultConfig()
	if head.Preset != "" {
		p, ok := GetPreset(head.Preset)
		if !ok {
			return nil, fmt.Errorf("unknown preset %q (available: %v)", head.Preset, ListPresets())
		}
		cfg.Params = p
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the parameters and returns a copy of the config with
// clamped values.
func (c *Config) Validate() (*Config, error) {
	p, err := c.Params.Validate()
	if err != nil {
		return nil, err
	}
	out := *c
	out.Params = p
	if out.Frames <= 0 {
		out.Frames = DefaultFrames
	}
	if out.Backend == "" {
		out.Backend = DefaultBackend
	}
	return &out, nil
}
