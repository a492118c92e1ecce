package presale

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/xraph/presale/account"
	"github.com/xraph/presale/bonus"
	"github.com/xraph/presale/leaderboard"
	"github.com/xraph/presale/oracle"
	"github.com/xraph/presale/plugin"
	"github.com/xraph/presale/referral"
	"github.com/xraph/presale/sale"
	"github.com/xraph/presale/stage"
	"github.com/xraph/presale/store"
	"github.com/xraph/presale/token"
	"github.com/xraph/presale/types"
)

// restorePage is the page size used when reloading accounts.
const restorePage = 500

// PaymentToken is a stablecoin accepted at one USD per whole unit.
type PaymentToken struct {
	Symbol   string
	Decimals uint8
	Token    token.Token
}

// Engine is the presale accounting core. All state lives in memory behind
// one mutex and is written through to the store after every mutation.
type Engine struct {
	mu sync.RWMutex

	// cfgMu guards cfg for Config. Writers also hold mu, so code under mu
	// reads cfg directly.
	cfgMu sync.RWMutex
	cfg   Config

	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	clock   func() time.Time

	oracle   oracle.Feed
	payout   token.Token
	native   token.Token
	payments map[string]PaymentToken

	started    bool
	ladder     *stage.Ladder
	bonus      *bonus.Table
	board      *leaderboard.Board
	referrals  *referral.Registry
	accounts   map[common.Address]*account.Account
	totals     sale.Totals
	saleOpen   bool
	claimOpen  bool
	claimStart time.Time
	collected  map[string]*uint256.Int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // duplicate names are logged by the registry caller
	}
}

// WithClock overrides time.Now.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithOracle sets the native/USD price feed used by BuyWithNative.
func WithOracle(f oracle.Feed) Option {
	return func(e *Engine) { e.oracle = f }
}

// WithPayoutToken sets the sale token paid out by claims.
func WithPayoutToken(t token.Token) Option {
	return func(e *Engine) { e.payout = t }
}

// WithPaymentToken accepts a stablecoin.
func WithPaymentToken(pt PaymentToken) Option {
	return func(e *Engine) { e.payments[pt.Symbol] = pt }
}

// WithNativeWallet sets the wallet holding native currency collected by
// BuyWithNative. WithdrawFunds pays native funds from it.
func WithNativeWallet(t token.Token) Option {
	return func(e *Engine) { e.native = t }
}

// New creates an engine over s. Call Start before any mutation.
func New(s store.Store, cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:      cfg.Clone(),
		store:    s,
		plugins:  plugin.NewRegistry(),
		logger:   slog.Default(),
		clock:    time.Now,
		payments: make(map[string]PaymentToken),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.reset(); err != nil {
		return nil, err
	}
	return e, nil
}

// reset builds fresh state from the configuration.
func (e *Engine) reset() error {
	ladder, err := stage.NewLadder(e.cfg.ladderStages())
	if err != nil {
		return fmt.Errorf("presale: build ladder: %w", err)
	}
	e.ladder = ladder
	e.bonus = bonus.New(e.cfg.BonusTiers)
	e.board = leaderboard.New(e.cfg.LeaderboardSize)
	e.referrals = referral.New()
	e.accounts = make(map[common.Address]*account.Account)
	e.totals = sale.NewTotals()
	e.saleOpen, e.claimOpen = false, false
	e.claimStart = time.Time{}
	e.collected = make(map[string]*uint256.Int)
	return nil
}

// Start migrates the store and restores state from it.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.store.Migrate(ctx); err != nil {
		return err
	}

	e.mu.Lock()
	err := e.restore(ctx)
	if err == nil {
		e.started = true
	}
	e.mu.Unlock()
	if err != nil {
		return err
	}

	e.plugins.EmitInit(ctx, e)

	e.logger.Info("presale started",
		"accounts", len(e.accounts),
		"active_stage", e.ladder.Active(),
		"sale_open", e.saleOpen,
		"claim_open", e.claimOpen,
	)
	return nil
}

// Stop shuts down the engine and closes the store.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	e.started = false
	e.mu.Unlock()

	e.plugins.EmitShutdown(ctx)
	return e.store.Close()
}

func (e *Engine) restore(ctx context.Context) error {
	if err := e.reset(); err != nil {
		return err
	}

	st, err := e.store.LoadState(ctx)
	switch {
	case errors.Is(err, ErrSaleStateNotFound):
		return e.store.SaveState(ctx, e.snapshot())
	case err != nil:
		return fmt.Errorf("presale: load sale state: %w", err)
	}

	ladder, err := stage.Restore(st.Stages, st.ActiveStage, st.Exhausted)
	if err != nil {
		return fmt.Errorf("presale: restore ladder: %w", err)
	}
	e.ladder = ladder
	e.board = leaderboard.Restore(e.cfg.LeaderboardSize, st.Leaderboard)
	e.totals = st.Totals.Clone()
	e.saleOpen = st.SaleOpen
	e.claimOpen = st.ClaimOpen
	e.claimStart = st.ClaimStart
	e.collected = sale.CloneCollected(st.Collected)

	for offset := 0; ; offset += restorePage {
		page, err := e.store.ListAccounts(ctx, account.ListOpts{Limit: restorePage, Offset: offset})
		if err != nil {
			return fmt.Errorf("presale: list accounts: %w", err)
		}
		for _, a := range page {
			if err := e.restoreAccount(ctx, a); err != nil {
				return err
			}
		}
		if len(page) < restorePage {
			break
		}
	}
	return nil
}

func (e *Engine) restoreAccount(ctx context.Context, a *account.Account) error {
	deposits, err := e.store.ListDeposits(ctx, a.Address, account.ListOpts{})
	if err != nil {
		return fmt.Errorf("presale: list deposits of %s: %w", a.Address.Hex(), err)
	}
	withdrawals, err := e.store.ListWithdrawals(ctx, a.Address, account.ListOpts{})
	if err != nil {
		return fmt.Errorf("presale: list withdrawals of %s: %w", a.Address.Hex(), err)
	}
	a = a.Summary()
	a.Deposits = make([]account.Deposit, len(deposits))
	for i, d := range deposits {
		a.Deposits[i] = *d
	}
	a.Withdrawals = make([]account.Withdrawal, len(withdrawals))
	for i, w := range withdrawals {
		a.Withdrawals[i] = *w
	}
	e.accounts[a.Address] = a
	e.referrals.Load(a.Address, a.ReferralCode, a.Sponsor)
	return nil
}

// snapshot returns the persistable sale state. Caller holds the lock.
func (e *Engine) snapshot() *sale.State {
	return &sale.State{
		Stages:      e.ladder.Stages(),
		ActiveStage: e.ladder.Active(),
		Exhausted:   e.ladder.Exhausted(),
		SaleOpen:    e.saleOpen,
		ClaimOpen:   e.claimOpen,
		ClaimStart:  e.claimStart,
		Totals:      e.totals.Clone(),
		Leaderboard: e.board.Entries(),
		Collected:   sale.CloneCollected(e.collected),
		UpdatedAt:   e.now(),
	}
}

func (e *Engine) now() time.Time { return e.clock().UTC() }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Store returns the underlying store.
func (e *Engine) Store() store.Store { return e.store }

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger { return e.logger }

// Config returns a copy of the active configuration.
func (e *Engine) Config() Config {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.cfg.Clone()
}

func addTo(dst **uint256.Int, x *uint256.Int) {
	*dst = new(uint256.Int).Add(types.Clone(*dst), x)
}
