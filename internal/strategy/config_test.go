package strategy_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"SynthPool/internal/strategy"
)

func TestDefaultConfigValidates(t *testing.T) {
	if err := strategy.DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pool.yaml")
	data := []byte(`
rebalance_window: 1h
halt_threshold: 12h
oracle_stale_after: 2m
interest_rate_per_second: 64
min_collateral_ratio: 150000
initial_cycle_index: 7
initial_settle_price: 25000
admin_id: "b7a3f1d2-1111-2222-3333-444455556666"
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := strategy.LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.RebalanceWindow != time.Hour {
		t.Errorf("rebalance_window = %v, want 1h", cfg.RebalanceWindow)
	}
	if cfg.HaltThreshold != 12*time.Hour {
		t.Errorf("halt_threshold = %v, want 12h", cfg.HaltThreshold)
	}
	if cfg.OracleStaleAfter != 2*time.Minute {
		t.Errorf("oracle_stale_after = %v, want 2m", cfg.OracleStaleAfter)
	}
	if cfg.InterestRatePerSecond != 64 {
		t.Errorf("interest_rate_per_second = %d, want 64", cfg.InterestRatePerSecond)
	}
	if cfg.MinCollateralRatio != 150_000 {
		t.Errorf("min_collateral_ratio = %d, want 150000", cfg.MinCollateralRatio)
	}
	if cfg.InitialCycleIndex != 7 {
		t.Errorf("initial_cycle_index = %d, want 7", cfg.InitialCycleIndex)
	}
	if cfg.InitialSettlePrice != 25_000 {
		t.Errorf("initial_settle_price = %d, want 25000", cfg.InitialSettlePrice)
	}
	if cfg.AdminID != "b7a3f1d2-1111-2222-3333-444455556666" {
		t.Errorf("admin_id = %q", cfg.AdminID)
	}
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pool.yaml")
	if err := os.WriteFile(path, []byte("interest_rate_per_second: 10\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := strategy.LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	def := strategy.DefaultConfig()
	if cfg.InterestRatePerSecond != 10 {
		t.Errorf("interest_rate_per_second = %d, want 10", cfg.InterestRatePerSecond)
	}
	if cfg.RebalanceWindow != def.RebalanceWindow {
		t.Errorf("rebalance_window = %v, want default %v", cfg.RebalanceWindow, def.RebalanceWindow)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := strategy.LoadConfig("/nonexistent/pool.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*strategy.Config)
	}{
		{"zero window", func(c *strategy.Config) { c.RebalanceWindow = 0 }},
		{"negative halt", func(c *strategy.Config) { c.HaltThreshold = -time.Hour }},
		{"zero staleness", func(c *strategy.Config) { c.OracleStaleAfter = 0 }},
		{"negative rate", func(c *strategy.Config) { c.InterestRatePerSecond = -1 }},
		{"negative ratio", func(c *strategy.Config) { c.MinCollateralRatio = -1 }},
		{"zero settle price", func(c *strategy.Config) { c.InitialSettlePrice = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := strategy.DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestStaticStrategy(t *testing.T) {
	cfg := strategy.DefaultConfig()
	cfg.InterestRatePerSecond = 99
	s := strategy.NewStatic(cfg)

	if s.RebalanceWindow() != cfg.RebalanceWindow {
		t.Errorf("RebalanceWindow = %v", s.RebalanceWindow())
	}
	if s.InterestRatePerSecond() != 99 {
		t.Errorf("InterestRatePerSecond = %d", s.InterestRatePerSecond())
	}
	if s.MinCollateralRatio() != cfg.MinCollateralRatio {
		t.Errorf("MinCollateralRatio = %d", s.MinCollateralRatio())
	}
}
