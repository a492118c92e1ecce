package presale_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/xraph/presale/types"
	"github.com/xraph/presale/vesting"
)

// checkTotals compares the sale totals with the sum over every account
// and checks that nothing was claimed ahead of the vesting schedule.
func checkTotals(t *testing.T, f *fixture, step string) {
	t.Helper()
	st := stats(t, f.engine)
	accounts, err := f.engine.Accounts(t.Context())
	if err != nil {
		t.Fatalf("%s: Accounts: %v", step, err)
	}
	if len(accounts) != st.Accounts {
		t.Errorf("%s: %d accounts listed, stats report %d", step, len(accounts), st.Accounts)
	}

	buy, ref, bonus := types.Zero(), types.Zero(), types.Zero()
	claimed, usd := types.Zero(), types.Zero()
	weeks := f.cfg.Vesting.WeeksElapsed(st.ClaimStart, f.clock.Now())
	for _, a := range accounts {
		buy.Add(buy, a.TokensFromBuy)
		ref.Add(ref, a.TokensFromReferral)
		bonus.Add(bonus, a.TokensFromBonus)
		claimed.Add(claimed, a.TokensClaimed)
		usd.Add(usd, a.USDPaid)

		if !st.ClaimOpen {
			if !a.TokensClaimed.IsZero() {
				t.Errorf("%s: %s claimed %s before claims opened", step, a.Address.Hex(), a.TokensClaimed.Dec())
			}
		} else if unlocked := f.cfg.Vesting.Unlocked(a.TotalEntitled(), weeks); a.TokensClaimed.Gt(unlocked) {
			t.Errorf("%s: %s claimed %s, only %s unlocked", step, a.Address.Hex(), a.TokensClaimed.Dec(), unlocked.Dec())
		}

		first := pending(t, f.engine, a.Address)
		if second := pending(t, f.engine, a.Address); !first.Eq(second) {
			t.Errorf("%s: PendingClaim(%s) changed between reads: %s then %s", step, a.Address.Hex(), first.Dec(), second.Dec())
		}
	}

	sums := []struct {
		name      string
		got, want *uint256.Int
	}{
		{"SoldTokens", buy, st.Totals.SoldTokens},
		{"ReferralTokens", ref, st.Totals.ReferralTokens},
		{"BonusTokens", bonus, st.Totals.BonusTokens},
		{"ClaimableTokens", types.Sum(buy, ref, bonus), st.Totals.ClaimableTokens},
		{"ClaimedTokens", claimed, st.Totals.ClaimedTokens},
		{"FundsRaisedUSD", usd, st.Totals.FundsRaisedUSD},
	}
	for _, s := range sums {
		if !s.got.Eq(s.want) {
			t.Errorf("%s: account sum of %s = %s, totals say %s", step, s.name, s.got.Dec(), s.want.Dec())
		}
	}
}

func TestAccountSumsMatchTotals(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.open(t)

	codes := make(map[common.Address]string)
	buy := func(buyer common.Address, n uint64, sponsor *common.Address) func(*testing.T) {
		return func(t *testing.T) {
			code := ""
			if sponsor != nil {
				code = codes[*sponsor]
			}
			codes[buyer] = f.buy(t, buyer, n, code).ReferralCode
		}
	}
	claim := func(addr common.Address) func(*testing.T) {
		return func(t *testing.T) {
			if _, err := f.engine.Claim(ctx, addr); err != nil {
				t.Fatalf("Claim(%s): %v", addr.Hex(), err)
			}
		}
	}

	steps := []struct {
		name string
		run  func(*testing.T)
	}{
		{"alice buys", buy(alice, 100, nil)},
		{"bob buys with alice's code", buy(bob, 600, &alice)},
		{"carol exhausts stage 0 with bob's code", buy(carol, 300, &bob)},
		{"dave buys in stage 1 with carol's code", buy(dave, 2_000, &carol)},
		{"alice buys again", buy(alice, 700, nil)},
		{"close and open claims", func(t *testing.T) {
			if err := f.engine.CloseSale(ctx); err != nil {
				t.Fatalf("CloseSale: %v", err)
			}
			f.payout.Mint(vault, stats(t, f.engine).Totals.ClaimableTokens)
			if _, err := f.engine.OpenClaims(ctx); err != nil {
				t.Fatalf("OpenClaims: %v", err)
			}
		}},
		{"alice claims week 1", claim(alice)},
		{"bob claims week 1", claim(bob)},
		{"a week passes", func(*testing.T) { f.clock.Advance(vesting.Week) }},
		{"alice claims week 2", claim(alice)},
		{"dave claims week 2", claim(dave)},
	}
	for _, s := range steps {
		s.run(t)
		checkTotals(t, f, s.name)
	}

	st := stats(t, f.engine)
	if st.ActiveStage != 1 {
		t.Errorf("active stage = %d, want 1", st.ActiveStage)
	}
	if st.Accounts != 4 {
		t.Errorf("accounts = %d, want 4", st.Accounts)
	}
	tests := []struct {
		addr            common.Address
		bonus, referral bool
	}{
		{alice, true, true},
		{bob, true, true},
		{carol, false, true},
		{dave, true, false},
	}
	for _, tt := range tests {
		a, err := f.engine.Account(t.Context(), tt.addr)
		if err != nil {
			t.Fatalf("Account(%s): %v", tt.addr.Hex(), err)
		}
		if got := !a.TokensFromBonus.IsZero(); got != tt.bonus {
			t.Errorf("%s: bonus %s, want set=%v", tt.addr.Hex(), a.TokensFromBonus.Dec(), tt.bonus)
		}
		if got := !a.TokensFromReferral.IsZero(); got != tt.referral {
			t.Errorf("%s: referral %s, want set=%v", tt.addr.Hex(), a.TokensFromReferral.Dec(), tt.referral)
		}
	}
}
