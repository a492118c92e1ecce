package presale_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/xraph/presale"
	"github.com/xraph/presale/account"
	"github.com/xraph/presale/oracle"
	"github.com/xraph/presale/plugin"
	"github.com/xraph/presale/store"
	"github.com/xraph/presale/store/memory"
	"github.com/xraph/presale/token/memtoken"
	"github.com/xraph/presale/types"
)

var (
	alice    = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob      = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol    = common.HexToAddress("0x00000000000000000000000000000000000ca201")
	dave     = common.HexToAddress("0x000000000000000000000000000000000000da7e")
	vault    = common.HexToAddress("0x00000000000000000000000000000000000fa017")
	treasury = common.HexToAddress("0x00000000000000000000000000000000007ea5e1")
)

var genesis = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fixture is a started engine with one stablecoin (USDT, 6 decimals), a
// native wallet, an oracle at $2000 per ETH and a payout token.
type fixture struct {
	engine *presale.Engine
	store  *memory.Store
	clock  *clock
	cfg    presale.Config
	feed   *oracle.Static
	usdt   *memtoken.Ledger
	eth    *memtoken.Ledger
	payout *memtoken.Ledger
	events *recorder

	// wrap, when set, decorates the memory store handed to the engine.
	wrap func(*memory.Store) store.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, nil)
}

func newFixtureWith(t *testing.T, wrap func(*memory.Store) store.Store) *fixture {
	t.Helper()
	cfg, err := presale.DefaultConfig().WithTreasury(treasury)
	if err != nil {
		t.Fatalf("WithTreasury: %v", err)
	}
	f := &fixture{
		store:  memory.New(),
		clock:  &clock{now: genesis},
		cfg:    cfg,
		usdt:   memtoken.New("USDT", 6),
		eth:    memtoken.New("ETH", 18),
		payout: memtoken.New("PRE", 18),
		events: &recorder{},
		wrap:   wrap,
	}
	f.feed = oracle.NewStatic(oracle.Price{
		Value:     uint256.NewInt(2000_00000000),
		Decimals:  8,
		UpdatedAt: genesis,
	})
	f.engine = f.start(t)
	return f
}

// start builds and starts an engine over the fixture's store.
func (f *fixture) start(t *testing.T) *presale.Engine {
	t.Helper()
	var s store.Store = f.store
	if f.wrap != nil {
		s = f.wrap(f.store)
	}
	e, err := presale.New(s, f.cfg,
		presale.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		presale.WithClock(f.clock.Now),
		presale.WithOracle(f.feed),
		presale.WithNativeWallet(f.eth.Bind(vault)),
		presale.WithPaymentToken(presale.PaymentToken{Symbol: "USDT", Decimals: 6, Token: f.usdt.Bind(vault)}),
		presale.WithPayoutToken(f.payout.Bind(vault)),
		presale.WithPlugin(f.events),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return e
}

func (f *fixture) open(t *testing.T) {
	t.Helper()
	if err := f.engine.OpenSale(context.Background()); err != nil {
		t.Fatalf("OpenSale: %v", err)
	}
}

// fund mints and approves n whole USDT for buyer.
func (f *fixture) fund(buyer common.Address, n uint64) *uint256.Int {
	amount := usdt(n)
	f.usdt.Mint(buyer, amount)
	f.usdt.Approve(buyer, vault, amount)
	return amount
}

func (f *fixture) buy(t *testing.T, buyer common.Address, n uint64, sponsorCode string) *presale.Receipt {
	t.Helper()
	r, err := f.engine.BuyWithStable(context.Background(), buyer, "USDT", f.fund(buyer, n), sponsorCode)
	if err != nil {
		t.Fatalf("BuyWithStable(%s, %d): %v", buyer.Hex(), n, err)
	}
	return r
}

func stats(t *testing.T, e *presale.Engine) presale.Stats {
	t.Helper()
	st, err := e.Stats(t.Context())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	return st
}

func pending(t *testing.T, e *presale.Engine, addr common.Address) *uint256.Int {
	t.Helper()
	p, err := e.PendingClaim(t.Context(), addr)
	if err != nil {
		t.Fatalf("PendingClaim(%s): %v", addr.Hex(), err)
	}
	return p
}

func currentPrice(t *testing.T, e *presale.Engine) *uint256.Int {
	t.Helper()
	p, err := e.CurrentPrice(t.Context())
	if err != nil {
		t.Fatalf("CurrentPrice: %v", err)
	}
	return p
}

func usdt(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), types.Pow10(6))
}

func eqUnits(t *testing.T, what string, got *uint256.Int, whole uint64) {
	t.Helper()
	if want := types.Units(whole); !got.Eq(want) {
		t.Errorf("%s = %s, want %s", what, types.Format(got, types.Decimals), types.Format(want, types.Decimals))
	}
}

// recorder captures plugin events.
type recorder struct {
	mu       sync.Mutex
	purchase []account.Deposit
	failed   []error
	advances [][2]int
	closed   []string
	claims   int
}

var (
	_ plugin.OnPurchase       = (*recorder)(nil)
	_ plugin.OnPurchaseFailed = (*recorder)(nil)
	_ plugin.OnStageAdvanced  = (*recorder)(nil)
	_ plugin.OnSaleClosed     = (*recorder)(nil)
	_ plugin.OnClaim          = (*recorder)(nil)
)

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) OnPurchase(_ context.Context, d *account.Deposit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purchase = append(r.purchase, *d)
	return nil
}

func (r *recorder) OnPurchaseFailed(_ context.Context, _ common.Address, err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, err)
	return nil
}

func (r *recorder) OnStageAdvanced(_ context.Context, from, to int, _ bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advances = append(r.advances, [2]int{from, to})
	return nil
}

func (r *recorder) OnSaleClosed(_ context.Context, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = append(r.closed, reason)
	return nil
}

func (r *recorder) OnClaim(context.Context, *account.Withdrawal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.claims++
	return nil
}

func (r *recorder) snapshot() recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	return recorder{
		purchase: append([]account.Deposit(nil), r.purchase...),
		failed:   append([]error(nil), r.failed...),
		advances: append([][2]int(nil), r.advances...),
		closed:   append([]string(nil), r.closed...),
		claims:   r.claims,
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := presale.DefaultConfig()
	cfg.Stages = cfg.Stages[:3]
	if _, err := presale.New(memory.New(), cfg); !errors.Is(err, presale.ErrInvalidConfig) {
		t.Fatalf("New with 3 stages: got %v, want ErrInvalidConfig", err)
	}
}

func TestMutatorsRequireStart(t *testing.T) {
	e, err := presale.New(memory.New(), presale.DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := e.OpenSale(context.Background()); !errors.Is(err, presale.ErrNotStarted) {
		t.Errorf("OpenSale before Start: got %v, want ErrNotStarted", err)
	}
}

func TestRestartRestoresState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.open(t)

	first := f.buy(t, alice, 100, "")
	f.buy(t, bob, 600, first.ReferralCode)
	before := stats(t, f.engine)

	if err := f.engine.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	f.store.Reopen()
	restarted := f.start(t)

	after := stats(t, restarted)
	if after.ActiveStage != before.ActiveStage || after.SaleOpen != before.SaleOpen {
		t.Errorf("phase after restart = stage %d open %v, want stage %d open %v",
			after.ActiveStage, after.SaleOpen, before.ActiveStage, before.SaleOpen)
	}
	if !after.StageRemaining.Eq(before.StageRemaining) {
		t.Errorf("StageRemaining = %s, want %s", after.StageRemaining.Dec(), before.StageRemaining.Dec())
	}
	if !after.Totals.ClaimableTokens.Eq(before.Totals.ClaimableTokens) {
		t.Errorf("ClaimableTokens = %s, want %s", after.Totals.ClaimableTokens.Dec(), before.Totals.ClaimableTokens.Dec())
	}
	if after.Accounts != 2 || after.Ranked != 2 {
		t.Errorf("accounts %d ranked %d, want 2 and 2", after.Accounts, after.Ranked)
	}

	owner, err := restarted.ResolveReferralCode(t.Context(), first.ReferralCode)
	if err != nil || owner != alice {
		t.Errorf("ResolveReferralCode after restart = %s, %v", owner.Hex(), err)
	}
	deposits, err := restarted.BuyRange(t.Context(), bob, 0, 0)
	if err != nil {
		t.Fatalf("BuyRange after restart: %v", err)
	}
	eqUnits(t, "bob deposit tokens", deposits[0].Tokens, 3_000_000)

	// Restored referral edges keep crediting.
	r, err := restarted.BuyWithStable(ctx, bob, "USDT", f.fund(bob, 10), "")
	if err != nil {
		t.Fatalf("BuyWithStable after restart: %v", err)
	}
	if r.Sponsor == nil || *r.Sponsor != alice {
		t.Errorf("sponsor after restart = %v, want alice", r.Sponsor)
	}
}
