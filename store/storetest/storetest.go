// Package storetest is a conformance suite for store.Store backends.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/xraph/presale"
	"github.com/xraph/presale/account"
	"github.com/xraph/presale/id"
	"github.com/xraph/presale/leaderboard"
	"github.com/xraph/presale/sale"
	"github.com/xraph/presale/stage"
	"github.com/xraph/presale/store"
	"github.com/xraph/presale/types"
)

// Run exercises a backend. open must return an empty, migrated store.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	t.Helper()
	t.Run("Accounts", func(t *testing.T) { testAccounts(t, open(t)) })
	t.Run("Deposits", func(t *testing.T) { testDeposits(t, open(t)) })
	t.Run("Withdrawals", func(t *testing.T) { testWithdrawals(t, open(t)) })
	t.Run("State", func(t *testing.T) { testState(t, open(t)) })
}

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol = common.HexToAddress("0x00000000000000000000000000000000000ca201")
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testAccounts(t *testing.T, s store.Store) {
	ctx := context.Background()

	if _, err := s.GetAccount(ctx, alice); !errors.Is(err, presale.ErrAccountNotFound) {
		t.Fatalf("GetAccount on empty store: got %v, want ErrAccountNotFound", err)
	}

	for i, addr := range []common.Address{alice, bob, carol} {
		a := account.New(addr, epoch.Add(time.Duration(i)*time.Minute))
		a.ReferralCode = "CODE" + string(rune('A'+i))
		a.USDPaid = types.Units(uint64(100 * (i + 1)))
		if err := s.SaveAccount(ctx, a); err != nil {
			t.Fatalf("SaveAccount(%d): %v", i, err)
		}
	}

	// Overwrite keeps position and replaces values.
	updated := account.New(alice, epoch)
	updated.ReferralCode = "CODEA"
	updated.USDPaid = types.Units(999)
	updated.ReferralCount = 2
	sponsor := bob
	updated.Sponsor = &sponsor
	updated.SponsorCode = "CODEB"
	if err := s.SaveAccount(ctx, updated); err != nil {
		t.Fatalf("SaveAccount(update): %v", err)
	}

	got, err := s.GetAccount(ctx, alice)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if !got.USDPaid.Eq(types.Units(999)) {
		t.Errorf("USDPaid = %s, want 999e18", got.USDPaid.Dec())
	}
	if got.ReferralCount != 2 {
		t.Errorf("ReferralCount = %d, want 2", got.ReferralCount)
	}
	if got.Sponsor == nil || *got.Sponsor != bob {
		t.Errorf("Sponsor = %v, want %s", got.Sponsor, bob.Hex())
	}

	all, err := s.ListAccounts(ctx, account.ListOpts{})
	if err != nil {
		t.Fatalf("ListAccounts: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListAccounts returned %d accounts, want 3", len(all))
	}
	want := []common.Address{alice, bob, carol}
	for i, a := range all {
		if a.Address != want[i] {
			t.Errorf("ListAccounts[%d] = %s, want %s", i, a.Address.Hex(), want[i].Hex())
		}
	}

	paged, err := s.ListAccounts(ctx, account.ListOpts{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("ListAccounts(paged): %v", err)
	}
	if len(paged) != 1 || paged[0].Address != bob {
		t.Errorf("ListAccounts(limit 1, offset 1) = %v, want [bob]", paged)
	}

	past, err := s.ListAccounts(ctx, account.ListOpts{Offset: 10})
	if err != nil {
		t.Fatalf("ListAccounts(offset past end): %v", err)
	}
	if len(past) != 0 {
		t.Errorf("ListAccounts(offset past end) returned %d accounts", len(past))
	}

	if err := s.DeleteAccount(ctx, bob); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}
	if _, err := s.GetAccount(ctx, bob); !errors.Is(err, presale.ErrAccountNotFound) {
		t.Errorf("GetAccount after delete: got %v, want ErrAccountNotFound", err)
	}
	if err := s.DeleteAccount(ctx, bob); !errors.Is(err, presale.ErrAccountNotFound) {
		t.Errorf("second DeleteAccount: got %v, want ErrAccountNotFound", err)
	}
	left, err := s.ListAccounts(ctx, account.ListOpts{})
	if err != nil {
		t.Fatalf("ListAccounts after delete: %v", err)
	}
	if len(left) != 2 || left[0].Address != alice || left[1].Address != carol {
		t.Errorf("ListAccounts after delete = %v, want [alice carol]", left)
	}
}

func testDeposits(t *testing.T, s store.Store) {
	ctx := context.Background()

	var ids []id.DepositID
	for i := range 3 {
		d := &account.Deposit{
			ID:        id.NewDepositID(),
			Account:   alice,
			Payer:     alice,
			Seq:       i,
			Currency:  "USDT",
			Amount:    types.Units(uint64(10 * (i + 1))),
			USD:       types.Units(uint64(10 * (i + 1))),
			Tokens:    types.Units(uint64(50_000 * (i + 1))),
			Stage:     0,
			Timestamp: epoch.Add(time.Duration(i) * time.Hour),
		}
		ids = append(ids, d.ID)
		if err := s.AppendDeposit(ctx, d); err != nil {
			t.Fatalf("AppendDeposit(%d): %v", i, err)
		}
	}

	dup := &account.Deposit{ID: ids[0], Account: alice, Amount: types.Zero(), USD: types.Zero(), Tokens: types.Zero()}
	if err := s.AppendDeposit(ctx, dup); !errors.Is(err, presale.ErrAlreadyExists) {
		t.Errorf("AppendDeposit(duplicate id): got %v, want ErrAlreadyExists", err)
	}

	got, err := s.ListDeposits(ctx, alice, account.ListOpts{})
	if err != nil {
		t.Fatalf("ListDeposits: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ListDeposits returned %d, want 3", len(got))
	}
	for i, d := range got {
		if d.ID.String() != ids[i].String() {
			t.Errorf("deposit %d id = %s, want %s", i, d.ID, ids[i])
		}
		if d.Seq != i {
			t.Errorf("deposit %d seq = %d", i, d.Seq)
		}
		if !d.Tokens.Eq(types.Units(uint64(50_000 * (i + 1)))) {
			t.Errorf("deposit %d tokens = %s", i, d.Tokens.Dec())
		}
		if !d.Timestamp.Equal(epoch.Add(time.Duration(i) * time.Hour)) {
			t.Errorf("deposit %d timestamp = %s", i, d.Timestamp)
		}
	}

	tail, err := s.ListDeposits(ctx, alice, account.ListOpts{Offset: 2})
	if err != nil {
		t.Fatalf("ListDeposits(offset): %v", err)
	}
	if len(tail) != 1 || tail[0].Seq != 2 {
		t.Errorf("ListDeposits(offset 2) = %d rows", len(tail))
	}

	none, err := s.ListDeposits(ctx, bob, account.ListOpts{})
	if err != nil {
		t.Fatalf("ListDeposits(other account): %v", err)
	}
	if len(none) != 0 {
		t.Errorf("ListDeposits(bob) = %d rows, want 0", len(none))
	}
}

func testWithdrawals(t *testing.T, s store.Store) {
	ctx := context.Background()

	for i := range 2 {
		w := &account.Withdrawal{
			ID:        id.NewWithdrawalID(),
			Account:   bob,
			Seq:       i,
			Amount:    types.Units(uint64(5 * (i + 1))),
			Timestamp: epoch.Add(time.Duration(i) * vestingWeek),
		}
		if err := s.AppendWithdrawal(ctx, w); err != nil {
			t.Fatalf("AppendWithdrawal(%d): %v", i, err)
		}
	}

	got, err := s.ListWithdrawals(ctx, bob, account.ListOpts{Limit: 5})
	if err != nil {
		t.Fatalf("ListWithdrawals: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListWithdrawals returned %d, want 2", len(got))
	}
	if !got[1].Amount.Eq(types.Units(10)) {
		t.Errorf("withdrawal 1 amount = %s, want 10e18", got[1].Amount.Dec())
	}
}

const vestingWeek = 7 * 24 * time.Hour

func testState(t *testing.T, s store.Store) {
	ctx := context.Background()

	if _, err := s.LoadState(ctx); !errors.Is(err, presale.ErrSaleStateNotFound) {
		t.Fatalf("LoadState on empty store: got %v, want ErrSaleStateNotFound", err)
	}

	totals := sale.NewTotals()
	totals.SoldTokens = types.Units(1_000_000)
	totals.ClaimableTokens = types.Units(1_150_000)
	st := &sale.State{
		Stages: []stage.Stage{
			{Remaining: types.Zero(), Price: types.MustParse("0.0002", types.Decimals)},
			{Remaining: types.Units(9_000_000), Price: types.MustParse("0.0003", types.Decimals)},
		},
		ActiveStage: 1,
		SaleOpen:    true,
		Totals:      totals,
		Leaderboard: []leaderboard.Entry{
			{Account: bob, Amount: types.Units(200)},
			{Account: alice, Amount: types.Units(500)},
		},
		Collected: map[string]*uint256.Int{"ETH": types.MustParse("1.5", types.Decimals)},
		UpdatedAt: epoch,
	}
	if err := s.SaveState(ctx, st); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	st.ActiveStage = 2
	st.Collected["ETH"] = types.Units(7)

	got, err := s.LoadState(ctx)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if got.ActiveStage != 1 {
		t.Errorf("ActiveStage = %d, want 1 (store must not alias the caller's value)", got.ActiveStage)
	}
	if !got.SaleOpen || got.ClaimOpen {
		t.Errorf("flags = sale %v claim %v", got.SaleOpen, got.ClaimOpen)
	}
	if len(got.Stages) != 2 || !got.Stages[1].Remaining.Eq(types.Units(9_000_000)) {
		t.Errorf("Stages = %+v", got.Stages)
	}
	if !got.Totals.ClaimableTokens.Eq(types.Units(1_150_000)) {
		t.Errorf("ClaimableTokens = %s", got.Totals.ClaimableTokens.Dec())
	}
	if len(got.Leaderboard) != 2 || got.Leaderboard[1].Account != alice {
		t.Errorf("Leaderboard = %+v", got.Leaderboard)
	}
	if eth := got.Collected["ETH"]; eth == nil || !eth.Eq(types.MustParse("1.5", types.Decimals)) {
		t.Errorf("Collected[ETH] = %v, want 1.5e18", eth)
	}

	st.ActiveStage = 3
	if err := s.SaveState(ctx, st); err != nil {
		t.Fatalf("SaveState(overwrite): %v", err)
	}
	got, err = s.LoadState(ctx)
	if err != nil {
		t.Fatalf("LoadState(after overwrite): %v", err)
	}
	if got.ActiveStage != 3 {
		t.Errorf("ActiveStage after overwrite = %d, want 3", got.ActiveStage)
	}
}
