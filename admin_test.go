package presale_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/presale"
	"github.com/xraph/presale/types"
	"github.com/xraph/presale/vesting"
)

func TestOpenAndCloseSale(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if stats(t, f.engine).SaleOpen {
		t.Fatal("new engine starts with the sale open")
	}
	f.open(t)
	f.open(t) // no-op
	if err := f.engine.CloseSale(ctx); err != nil {
		t.Fatalf("CloseSale: %v", err)
	}
	if err := f.engine.CloseSale(ctx); err != nil {
		t.Fatalf("CloseSale again: %v", err)
	}
	if ev := f.events.snapshot(); len(ev.closed) != 1 || ev.closed[0] != "closed by admin" {
		t.Errorf("close events = %v, want one admin close", ev.closed)
	}

	saved, err := f.store.LoadState(ctx)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if saved.SaleOpen {
		t.Error("stored state still has the sale open")
	}
}

func TestSetStage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if err := f.engine.SetStage(ctx, 3); err != nil {
		t.Fatalf("SetStage(3): %v", err)
	}
	if got := stats(t, f.engine).ActiveStage; got != 3 {
		t.Errorf("ActiveStage = %d, want 3", got)
	}
	if want := types.MustParse("0.0005", types.Decimals); !currentPrice(t, f.engine).Eq(want) {
		t.Errorf("CurrentPrice = %s, want 0.0005", types.Format(currentPrice(t, f.engine), types.Decimals))
	}

	tests := []struct {
		stage int
		want  error
	}{
		{1, presale.ErrStageRegression},
		{presale.StageCount, presale.ErrUnknownStage},
		{-1, presale.ErrUnknownStage},
	}
	for _, tt := range tests {
		if err := f.engine.SetStage(ctx, tt.stage); !errors.Is(err, tt.want) {
			t.Errorf("SetStage(%d): got %v, want %v", tt.stage, err, tt.want)
		}
	}
	if got := stats(t, f.engine).ActiveStage; got != 3 {
		t.Errorf("ActiveStage after rejected moves = %d, want 3", got)
	}
}

func TestWithdrawFunds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.open(t)
	f.buy(t, alice, 700, "")

	tenth := types.MustParse("0.1", 18)
	if _, err := f.engine.BuyWithNative(ctx, bob, tenth, ""); err != nil {
		t.Fatalf("BuyWithNative: %v", err)
	}
	// The payment itself arrives with the call, outside the engine.
	f.eth.Mint(vault, tenth)

	got, err := f.engine.WithdrawFunds(ctx, "USDT")
	if err != nil {
		t.Fatalf("WithdrawFunds(USDT): %v", err)
	}
	if !got.Eq(usdt(700)) || !f.usdt.Balance(treasury).Eq(usdt(700)) {
		t.Errorf("withdrew %s, treasury holds %s", got.Dec(), f.usdt.Balance(treasury).Dec())
	}
	if _, err := f.engine.WithdrawFunds(ctx, "USDT"); !errors.Is(err, presale.ErrNoFunds) {
		t.Errorf("second WithdrawFunds(USDT): got %v, want ErrNoFunds", err)
	}

	got, err = f.engine.WithdrawFunds(ctx, "ETH")
	if err != nil {
		t.Fatalf("WithdrawFunds(ETH): %v", err)
	}
	if !got.Eq(tenth) || !f.eth.Balance(treasury).Eq(tenth) {
		t.Errorf("withdrew %s ETH, treasury holds %s", got.Dec(), f.eth.Balance(treasury).Dec())
	}

	if _, err := f.engine.WithdrawFunds(ctx, "DAI"); !errors.Is(err, presale.ErrUnsupportedCurrency) {
		t.Errorf("WithdrawFunds(DAI): got %v, want ErrUnsupportedCurrency", err)
	}
	if c := stats(t, f.engine).Collected; !c["USDT"].IsZero() || !c["ETH"].IsZero() {
		t.Errorf("collected after withdrawals = %v", c)
	}
}

func TestWithdrawFundsKeepsBalanceOnFailedTransfer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.open(t)
	if _, err := f.engine.BuyWithNative(ctx, bob, types.MustParse("0.1", 18), ""); err != nil {
		t.Fatalf("BuyWithNative: %v", err)
	}

	// Nothing was minted into the native wallet, so the transfer fails.
	if _, err := f.engine.WithdrawFunds(ctx, "ETH"); !errors.Is(err, presale.ErrTransferFailed) {
		t.Fatalf("WithdrawFunds: got %v, want ErrTransferFailed", err)
	}
	if c := stats(t, f.engine).Collected["ETH"]; c == nil || c.IsZero() {
		t.Error("collected balance lost after a failed transfer")
	}
}

func TestUpdateConfig(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.open(t)
	code := f.buy(t, alice, 10, "").ReferralCode

	next := f.engine.Config()
	next.ReferralBonusBps = 500
	if err := f.engine.UpdateConfig(ctx, next); err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}
	if got := f.engine.Config().ReferralBonusBps; got != 500 {
		t.Errorf("ReferralBonusBps = %d, want 500", got)
	}
	// 100 USDT buys 500k tokens; 5% of that is the sponsor's.
	r := f.buy(t, bob, 100, code)
	eqUnits(t, "referral credit at 5%", r.ReferralTokens, 25_000)

	bad := []struct {
		name   string
		mutate func(*presale.Config)
	}{
		{"leaderboard size", func(c *presale.Config) { c.LeaderboardSize = 10 }},
		{"referral above 100%", func(c *presale.Config) { c.ReferralBonusBps = 10_001 }},
		{"native symbol with funds collected", func(c *presale.Config) { c.NativeSymbol = "MATIC" }},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			if tt.name == "native symbol with funds collected" {
				if _, err := f.engine.BuyWithNative(ctx, carol, types.MustParse("0.01", 18), ""); err != nil {
					t.Fatalf("BuyWithNative: %v", err)
				}
			}
			c := f.engine.Config()
			tt.mutate(&c)
			if err := f.engine.UpdateConfig(ctx, c); !errors.Is(err, presale.ErrInvalidConfig) {
				t.Errorf("UpdateConfig: got %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestUpdateConfigFreezesVestingOnceClaimsOpen(t *testing.T) {
	ctx := context.Background()
	f := soldFixture(t)
	f.payout.Mint(vault, types.Units(3_875_000))
	if _, err := f.engine.OpenClaims(ctx); err != nil {
		t.Fatalf("OpenClaims: %v", err)
	}

	c := f.engine.Config()
	c.Vesting = vesting.Schedule{Weeks: 10, WeeklyBps: 1000, Period: vesting.Week}
	if err := f.engine.UpdateConfig(ctx, c); !errors.Is(err, presale.ErrInvalidConfig) {
		t.Errorf("UpdateConfig with new vesting: got %v, want ErrInvalidConfig", err)
	}
}
