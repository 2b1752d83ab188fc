package sodium

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the few ambient knobs a hosted SodiumCtx needs: none of
// them affect propagation semantics, only scheduling and observability.
type Config struct {
	GC struct {
		// ForceCollectEveryNTransactions, if positive, runs CollectCycles
		// unconditionally every N closed transactions in addition to the
		// normal allow-collect-counter gating, bounding worst-case memory
		// growth from cyclic garbage under bursty send patterns.
		ForceCollectEveryNTransactions int `yaml:"force_collect_every_n_transactions"`
	} `yaml:"gc"`
	Scheduler struct {
		// Mode is "sequential" (default, required for correctness) or
		// "parallel" (opt-in, see the scheduler package).
		Mode string `yaml:"mode"`
	} `yaml:"scheduler"`
	Telemetry struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"telemetry"`
}

// Default returns a Config with the engine's required-for-correctness
// defaults: sequential scheduling, telemetry off, no forced collection.
func Default() *Config {
	cfg := &Config{}
	cfg.Scheduler.Mode = "sequential"
	return cfg
}

// Load reads a yaml Config from path, falling back to Default's values for
// any field the file omits.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Scheduler.Mode == "" {
		cfg.Scheduler.Mode = "sequential"
	}
	return cfg, nil
}
