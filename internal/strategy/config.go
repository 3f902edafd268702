package strategy

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the pool parameter file, YAML on disk.
type Config struct {
	RebalanceWindow       time.Duration `yaml:"rebalance_window"`
	HaltThreshold         time.Duration `yaml:"halt_threshold"`
	OracleStaleAfter      time.Duration `yaml:"oracle_stale_after"`
	InterestRatePerSecond int64         `yaml:"interest_rate_per_second"` // rate scale 1e8
	MinCollateralRatio    int64         `yaml:"min_collateral_ratio"`     // ratio scale 1e6
	InitialCycleIndex     int64         `yaml:"initial_cycle_index"`
	InitialSettlePrice    int64         `yaml:"initial_settle_price"` // price scale 1e2
	AdminID               string        `yaml:"admin_id"`
}

// DefaultConfig returns conservative parameters for local runs.
func DefaultConfig() Config {
	return Config{
		RebalanceWindow:       30 * time.Minute,
		HaltThreshold:         6 * time.Hour,
		OracleStaleAfter:      5 * time.Minute,
		InterestRatePerSecond: 32,        // ~1%/year at 1e8 scale
		MinCollateralRatio:    200_000,   // 20%
		InitialCycleIndex:     1,
		InitialSettlePrice:    10_000, // 100.00
	}
}

// LoadConfig reads a YAML parameter file, applying defaults for absent
// fields.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.RebalanceWindow <= 0 {
		return fmt.Errorf("rebalance_window must be positive, got %v", c.RebalanceWindow)
	}
	if c.HaltThreshold <= 0 {
		return fmt.Errorf("halt_threshold must be positive, got %v", c.HaltThreshold)
	}
	if c.OracleStaleAfter <= 0 {
		return fmt.Errorf("oracle_stale_after must be positive, got %v", c.OracleStaleAfter)
	}
	if c.InterestRatePerSecond < 0 {
		return fmt.Errorf("interest_rate_per_second must not be negative, got %d", c.InterestRatePerSecond)
	}
	if c.MinCollateralRatio < 0 {
		return fmt.Errorf("min_collateral_ratio must not be negative, got %d", c.MinCollateralRatio)
	}
	if c.InitialSettlePrice <= 0 {
		return fmt.Errorf("initial_settle_price must be positive, got %d", c.InitialSettlePrice)
	}
	return nil
}

// Static is a Strategy backed by a fixed Config.
type Static struct {
	cfg Config
}

func NewStatic(cfg Config) *Static {
	return &Static{cfg: cfg}
}

func (s *Static) RebalanceWindow() time.Duration  { return s.cfg.RebalanceWindow }
func (s *Static) HaltThreshold() time.Duration    { return s.cfg.HaltThreshold }
func (s *Static) OracleStaleAfter() time.Duration { return s.cfg.OracleStaleAfter }
func (s *Static) InterestRatePerSecond() int64    { return s.cfg.InterestRatePerSecond }
func (s *Static) MinCollateralRatio() int64       { return s.cfg.MinCollateralRatio }
