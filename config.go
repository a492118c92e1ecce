package presale

import (
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"

	"github.com/xraph/presale/bonus"
	"github.com/xraph/presale/leaderboard"
	"github.com/xraph/presale/oracle"
	"github.com/xraph/presale/stage"
	"github.com/xraph/presale/types"
	"github.com/xraph/presale/vesting"
)

const (
	// StageCount is the number of price stages.
	StageCount = 10
	// TierCount is the number of bonus tiers.
	TierCount = 4
	// DefaultReferralBonusBps credits sponsors 10% of referred tokens.
	DefaultReferralBonusBps = 1000
)

// StageConfig is the initial allocation and price of one stage. Price is
// USD per whole token, 18 decimals.
type StageConfig struct {
	Allocation *uint256.Int
	Price      *uint256.Int
}

// Config is the immutable engine configuration. Setters return a new,
// validated copy and never mutate the receiver.
type Config struct {
	Stages           []StageConfig
	BonusTiers       []bonus.Tier
	ReferralBonusBps uint64
	Vesting          vesting.Schedule
	OracleMaxAge     time.Duration
	LeaderboardSize  int
	Treasury         common.Address
	NativeSymbol     string
	NativeDecimals   uint8
}

// DefaultConfig returns ten stages of 5M..50M tokens priced 0.0002..0.0011
// USD, the four standard bonus tiers, 10% referral bonus and 20 weekly
// vesting steps of 5%.
func DefaultConfig() Config {
	stages := make([]StageConfig, StageCount)
	for i := range stages {
		stages[i] = StageConfig{
			Allocation: types.Units(uint64(i+1) * 5_000_000),
			Price:      new(uint256.Int).Mul(uint256.NewInt(uint64(i+2)), types.Pow10(types.Decimals-4)),
		}
	}
	return Config{
		Stages: stages,
		BonusTiers: []bonus.Tier{
			{MinUSD: types.Units(10_000), Bps: 1500},
			{MinUSD: types.Units(5_000), Bps: 1000},
			{MinUSD: types.Units(1_000), Bps: 500},
			{MinUSD: types.Units(500), Bps: 250},
		},
		ReferralBonusBps: DefaultReferralBonusBps,
		Vesting:          vesting.Default(),
		OracleMaxAge:     oracle.DefaultMaxAge,
		LeaderboardSize:  leaderboard.DefaultSize,
		NativeSymbol:     "ETH",
		NativeDecimals:   18,
	}
}

// Validate checks every field and returns the first ValidationError.
func (c Config) Validate() error {
	if len(c.Stages) != StageCount {
		return ValidationError{"stages", fmt.Sprintf("need %d stages, got %d", StageCount, len(c.Stages))}
	}
	for i, s := range c.Stages {
		if s.Allocation == nil || s.Price == nil || s.Price.IsZero() {
			return ValidationError{fmt.Sprintf("stages[%d]", i), "allocation and non-zero price required"}
		}
	}
	if len(c.BonusTiers) != TierCount {
		return ValidationError{"bonus_tiers", fmt.Sprintf("need %d tiers, got %d", TierCount, len(c.BonusTiers))}
	}
	for i, t := range c.BonusTiers {
		if t.MinUSD == nil {
			return ValidationError{fmt.Sprintf("bonus_tiers[%d]", i), "threshold required"}
		}
		if t.Bps > types.BpsDenominator {
			return ValidationError{fmt.Sprintf("bonus_tiers[%d]", i), "bps above 10000"}
		}
	}
	if !bonus.Descending(c.BonusTiers) {
		return ValidationError{"bonus_tiers", "thresholds must not increase"}
	}
	if c.ReferralBonusBps > types.BpsDenominator {
		return ValidationError{"referral_bonus_bps", "bps above 10000"}
	}
	if c.Vesting.Weeks == 0 || c.Vesting.Weeks*c.Vesting.WeeklyBps != types.BpsDenominator {
		return ValidationError{"vesting", "weeks * weekly_bps must equal 10000"}
	}
	if c.Vesting.Period <= 0 {
		return ValidationError{"vesting.period", "must be positive"}
	}
	if c.OracleMaxAge <= 0 {
		return ValidationError{"oracle_max_age", "must be positive"}
	}
	if c.LeaderboardSize <= 0 {
		return ValidationError{"leaderboard_size", "must be positive"}
	}
	if c.NativeSymbol == "" {
		return ValidationError{"native_symbol", "required"}
	}
	return nil
}

// Clone returns a deep copy.
func (c Config) Clone() Config {
	out := c
	out.Stages = make([]StageConfig, len(c.Stages))
	for i, s := range c.Stages {
		out.Stages[i] = StageConfig{Allocation: types.Clone(s.Allocation), Price: types.Clone(s.Price)}
	}
	out.BonusTiers = bonus.New(c.BonusTiers).Tiers()
	return out
}

func (c Config) with(mutate func(*Config)) (Config, error) {
	next := c.Clone()
	mutate(&next)
	if err := next.Validate(); err != nil {
		return c, err
	}
	return next, nil
}

// WithReferralBonusBps returns a copy with a new referral rate.
func (c Config) WithReferralBonusBps(bps uint64) (Config, error) {
	return c.with(func(n *Config) { n.ReferralBonusBps = bps })
}

// WithBonusTiers returns a copy with new bonus tiers.
func (c Config) WithBonusTiers(tiers []bonus.Tier) (Config, error) {
	return c.with(func(n *Config) { n.BonusTiers = bonus.New(tiers).Tiers() })
}

// WithVesting returns a copy with a new vesting schedule.
func (c Config) WithVesting(s vesting.Schedule) (Config, error) {
	return c.with(func(n *Config) { n.Vesting = s })
}

// WithOracleMaxAge returns a copy with a new freshness bound.
func (c Config) WithOracleMaxAge(d time.Duration) (Config, error) {
	return c.with(func(n *Config) { n.OracleMaxAge = d })
}

// WithTreasury returns a copy with a new treasury address.
func (c Config) WithTreasury(addr common.Address) (Config, error) {
	return c.with(func(n *Config) { n.Treasury = addr })
}

// WithLeaderboardSize returns a copy with a new leaderboard capacity.
func (c Config) WithLeaderboardSize(size int) (Config, error) {
	return c.with(func(n *Config) { n.LeaderboardSize = size })
}

func (c Config) ladderStages() []stage.Stage {
	out := make([]stage.Stage, len(c.Stages))
	for i, s := range c.Stages {
		out[i] = stage.Stage{Remaining: types.Clone(s.Allocation), Price: types.Clone(s.Price)}
	}
	return out
}

// ──────────────────────────────────────────────────
// File loading
// ──────────────────────────────────────────────────

type fileConfig struct {
	Stages []struct {
		Allocation string `yaml:"allocation"`
		Price      string `yaml:"price"`
	} `yaml:"stages"`
	BonusTiers []struct {
		MinUSD string `yaml:"min_usd"`
		Bps    uint64 `yaml:"bps"`
	} `yaml:"bonus_tiers"`
	ReferralBonusBps *uint64 `yaml:"referral_bonus_bps"`
	Vesting          *struct {
		Weeks     uint64 `yaml:"weeks"`
		WeeklyBps uint64 `yaml:"weekly_bps"`
		Period    string `yaml:"period"`
	} `yaml:"vesting"`
	OracleMaxAge    string `yaml:"oracle_max_age"`
	LeaderboardSize int    `yaml:"leaderboard_size"`
	Treasury        string `yaml:"treasury"`
	NativeSymbol    string `yaml:"native_symbol"`
	NativeDecimals  *uint8 `yaml:"native_decimals"`
}

// LoadConfig reads a YAML file over DefaultConfig. Amounts are human
// decimals ("5000000", "0.0002"). PRESALE_TREASURY and
// PRESALE_ORACLE_MAX_AGE override the file. An empty path loads defaults
// plus environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("presale: read config: %w", err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return cfg, fmt.Errorf("presale: parse config: %w", err)
		}
		if err := fc.apply(&cfg); err != nil {
			return cfg, err
		}
	}

	if v := os.Getenv("PRESALE_TREASURY"); v != "" {
		if !common.IsHexAddress(v) {
			return cfg, ValidationError{"treasury", fmt.Sprintf("%q is not an address", v)}
		}
		cfg.Treasury = common.HexToAddress(v)
	}
	if v := os.Getenv("PRESALE_ORACLE_MAX_AGE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, ValidationError{"oracle_max_age", err.Error()}
		}
		cfg.OracleMaxAge = d
	}

	return cfg, cfg.Validate()
}

func (fc *fileConfig) apply(cfg *Config) error {
	if len(fc.Stages) > 0 {
		cfg.Stages = make([]StageConfig, len(fc.Stages))
		for i, s := range fc.Stages {
			alloc, err := types.Parse(s.Allocation, types.Decimals)
			if err != nil {
				return ValidationError{fmt.Sprintf("stages[%d].allocation", i), err.Error()}
			}
			price, err := types.Parse(s.Price, types.Decimals)
			if err != nil {
				return ValidationError{fmt.Sprintf("stages[%d].price", i), err.Error()}
			}
			cfg.Stages[i] = StageConfig{Allocation: alloc, Price: price}
		}
	}
	if len(fc.BonusTiers) > 0 {
		cfg.BonusTiers = make([]bonus.Tier, len(fc.BonusTiers))
		for i, t := range fc.BonusTiers {
			threshold, err := types.Parse(t.MinUSD, types.Decimals)
			if err != nil {
				return ValidationError{fmt.Sprintf("bonus_tiers[%d].min_usd", i), err.Error()}
			}
			cfg.BonusTiers[i] = bonus.Tier{MinUSD: threshold, Bps: t.Bps}
		}
	}
	if fc.ReferralBonusBps != nil {
		cfg.ReferralBonusBps = *fc.ReferralBonusBps
	}
	if fc.Vesting != nil {
		cfg.Vesting.Weeks = fc.Vesting.Weeks
		cfg.Vesting.WeeklyBps = fc.Vesting.WeeklyBps
		if fc.Vesting.Period != "" {
			d, err := time.ParseDuration(fc.Vesting.Period)
			if err != nil {
				return ValidationError{"vesting.period", err.Error()}
			}
			cfg.Vesting.Period = d
		}
	}
	if fc.OracleMaxAge != "" {
		d, err := time.ParseDuration(fc.OracleMaxAge)
		if err != nil {
			return ValidationError{"oracle_max_age", err.Error()}
		}
		cfg.OracleMaxAge = d
	}
	if fc.LeaderboardSize > 0 {
		cfg.LeaderboardSize = fc.LeaderboardSize
	}
	if fc.Treasury != "" {
		if !common.IsHexAddress(fc.Treasury) {
			return ValidationError{"treasury", fmt.Sprintf("%q is not an address", fc.Treasury)}
		}
		cfg.Treasury = common.HexToAddress(fc.Treasury)
	}
	if fc.NativeSymbol != "" {
		cfg.NativeSymbol = fc.NativeSymbol
	}
	if fc.NativeDecimals != nil {
		cfg.NativeDecimals = *fc.NativeDecimals
	}
	return nil
}
