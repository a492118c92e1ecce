package presale_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xraph/presale"
	"github.com/xraph/presale/types"
)

func TestDefaultConfig(t *testing.T) {
	cfg := presale.DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(cfg.Stages) != presale.StageCount {
		t.Fatalf("stages = %d", len(cfg.Stages))
	}

	tests := []struct {
		stage      int
		allocation uint64
		price      string
	}{
		{0, 5_000_000, "0.0002"},
		{4, 25_000_000, "0.0006"},
		{9, 50_000_000, "0.0011"},
	}
	for _, tt := range tests {
		s := cfg.Stages[tt.stage]
		if !s.Allocation.Eq(types.Units(tt.allocation)) {
			t.Errorf("stage %d allocation = %s", tt.stage, types.Format(s.Allocation, types.Decimals))
		}
		if !s.Price.Eq(types.MustParse(tt.price, types.Decimals)) {
			t.Errorf("stage %d price = %s, want %s", tt.stage, types.Format(s.Price, types.Decimals), tt.price)
		}
	}
}

func TestConfigSettersDoNotMutate(t *testing.T) {
	base := presale.DefaultConfig()

	next, err := base.WithReferralBonusBps(250)
	if err != nil {
		t.Fatalf("WithReferralBonusBps: %v", err)
	}
	if next.ReferralBonusBps != 250 || base.ReferralBonusBps != presale.DefaultReferralBonusBps {
		t.Errorf("next %d base %d", next.ReferralBonusBps, base.ReferralBonusBps)
	}

	tests := []struct {
		name string
		fn   func() (presale.Config, error)
	}{
		{"referral above 100%", func() (presale.Config, error) { return base.WithReferralBonusBps(10_001) }},
		{"zero oracle age", func() (presale.Config, error) { return base.WithOracleMaxAge(0) }},
		{"zero leaderboard", func() (presale.Config, error) { return base.WithLeaderboardSize(0) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.fn()
			var ve presale.ValidationError
			if !errors.As(err, &ve) || !errors.Is(err, presale.ErrInvalidConfig) {
				t.Errorf("got %v, want a ValidationError", err)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "presale.yaml")
	body := `
referral_bonus_bps: 500
oracle_max_age: 1h
treasury: "0x00000000000000000000000000000000007ea5e1"
vesting:
  weeks: 10
  weekly_bps: 1000
  period: 24h
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PRESALE_TREASURY", "")
	t.Setenv("PRESALE_ORACLE_MAX_AGE", "")

	cfg, err := presale.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ReferralBonusBps != 500 || cfg.OracleMaxAge != time.Hour {
		t.Errorf("referral %d max age %s", cfg.ReferralBonusBps, cfg.OracleMaxAge)
	}
	if cfg.Treasury != treasury {
		t.Errorf("treasury = %s", cfg.Treasury.Hex())
	}
	if cfg.Vesting.Weeks != 10 || cfg.Vesting.Period != 24*time.Hour {
		t.Errorf("vesting = %+v", cfg.Vesting)
	}
	if len(cfg.Stages) != presale.StageCount {
		t.Errorf("unset stages were not defaulted: %d", len(cfg.Stages))
	}

	t.Run("environment overrides file", func(t *testing.T) {
		t.Setenv("PRESALE_ORACLE_MAX_AGE", "30m")
		cfg, err := presale.LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig: %v", err)
		}
		if cfg.OracleMaxAge != 30*time.Minute {
			t.Errorf("OracleMaxAge = %s, want 30m", cfg.OracleMaxAge)
		}
	})

	t.Run("bad treasury in environment", func(t *testing.T) {
		t.Setenv("PRESALE_TREASURY", "not-an-address")
		if _, err := presale.LoadConfig(path); !errors.Is(err, presale.ErrInvalidConfig) {
			t.Errorf("got %v, want ErrInvalidConfig", err)
		}
	})
}

func TestLoadConfigRejectsBadVesting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presale.yaml")
	if err := os.WriteFile(path, []byte("vesting:\n  weeks: 3\n  weekly_bps: 1000\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := presale.LoadConfig(path); !errors.Is(err, presale.ErrInvalidConfig) {
		t.Errorf("got %v, want ErrInvalidConfig", err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := presale.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadConfig on a missing file succeeded")
	}
}
