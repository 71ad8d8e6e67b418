// Package config loads optimizer tuning: compiled defaults, overridden by an
// optional YAML file. The resulting value is immutable and passed explicitly
// into the scheduler so concurrent plans cannot interfere.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"herdroute/internal/finance"
)

// Optimizer tunes the planning engine.
type Optimizer struct {
	TimeBudgetMS  int                 `yaml:"time_budget_ms" json:"time_budget_ms"`
	Restarts      int                 `yaml:"restarts" json:"restarts"`
	StagnantMax   int                 `yaml:"stagnant_rounds" json:"stagnant_rounds"`
	FuelCostBasis string              `yaml:"fuel_cost_basis" json:"fuel_cost_basis"`
	Rollover      bool                `yaml:"rollover_residual" json:"rollover_residual"`
	RunLogSize    int                 `yaml:"run_log_size" json:"run_log_size"`
	Bands         finance.WeightBands `yaml:"weight_bands" json:"weight_bands"`
}

// Default is the built-in tuning used when no config file is given.
func Default() Optimizer {
	return Optimizer{
		TimeBudgetMS:  2000,
		Restarts:      4,
		StagnantMax:   30,
		FuelCostBasis: string(finance.FuelLoadProrated),
		RunLogSize:    256,
		Bands:         finance.DefaultBands(),
	}
}

// Load reads path over the defaults; fields absent from the file keep their
// default. An empty path returns Default unchanged.
func Load(path string) (Optimizer, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read optimizer config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse optimizer config: %w", err)
	}
	if err := cfg.check(); err != nil {
		return cfg, fmt.Errorf("optimizer config %s: %w", path, err)
	}
	return cfg, nil
}

func (o Optimizer) check() error {
	if o.TimeBudgetMS < 1 || o.TimeBudgetMS > 30000 {
		return fmt.Errorf("time_budget_ms must be between 1 and 30000")
	}
	if o.Restarts < 1 {
		return fmt.Errorf("restarts must be >= 1")
	}
	if o.StagnantMax < 1 {
		return fmt.Errorf("stagnant_rounds must be >= 1")
	}
	switch finance.FuelBasis(o.FuelCostBasis) {
	case finance.FuelLoadProrated, finance.FuelFullDistance:
	default:
		return fmt.Errorf("fuel_cost_basis must be %q or %q", finance.FuelLoadProrated, finance.FuelFullDistance)
	}
	if o.RunLogSize < 1 {
		return fmt.Errorf("run_log_size must be >= 1")
	}
	b := o.Bands
	if b.IdealMin > b.IdealMax {
		return fmt.Errorf("weight_bands: ideal_min above ideal_max")
	}
	if b.ExtremeMin > b.IdealMin || b.ExtremeMax < b.IdealMax {
		return fmt.Errorf("weight_bands: extremes must enclose the ideal band")
	}
	if b.ModeratePenalty < 0 || b.ModeratePenalty > 1 || b.ExtremePenalty < 0 || b.ExtremePenalty > 1 {
		return fmt.Errorf("weight_bands: penalties must be within [0,1]")
	}
	return nil
}

// TimeBudget is the per-day solver budget as a duration.
func (o Optimizer) TimeBudget() time.Duration {
	return time.Duration(o.TimeBudgetMS) * time.Millisecond
}

// Basis is the default fuel charging mode.
func (o Optimizer) Basis() finance.FuelBasis {
	return finance.FuelBasis(o.FuelCostBasis)
}
