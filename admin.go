package presale

import (
	"context"
	"fmt"
	"slices"

	"github.com/holiman/uint256"

	"github.com/xraph/presale/bonus"
	"github.com/xraph/presale/token"
	"github.com/xraph/presale/types"
)

// OpenSale starts accepting purchases. It is a no-op when the sale is
// already open and fails once claims are open or the ladder sold out.
func (e *Engine) OpenSale(ctx context.Context) error {
	if err := e.lock(ctx); err != nil {
		return err
	}
	opened, err := e.setSaleOpen(ctx, true)
	e.mu.Unlock()
	if err != nil || !opened {
		return err
	}
	e.plugins.EmitSaleOpened(ctx)
	e.logger.Info("sale opened")
	return nil
}

// CloseSale stops accepting purchases.
func (e *Engine) CloseSale(ctx context.Context) error {
	if err := e.lock(ctx); err != nil {
		return err
	}
	closed, err := e.setSaleOpen(ctx, false)
	e.mu.Unlock()
	if err != nil || !closed {
		return err
	}
	e.plugins.EmitSaleClosed(ctx, "closed by admin")
	e.logger.Info("sale closed")
	return nil
}

func (e *Engine) setSaleOpen(ctx context.Context, open bool) (bool, error) {
	if e.saleOpen == open {
		return false, nil
	}
	if open && (e.claimOpen || e.ladder.Exhausted()) {
		return false, ErrSaleFinalized
	}
	tx := e.begin()
	e.saleOpen = open
	tx.saveState = true
	if err := tx.commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// SetStage moves the ladder forward to stage i.
func (e *Engine) SetStage(ctx context.Context, i int) error {
	if err := e.lock(ctx); err != nil {
		return err
	}
	from := e.ladder.Active()
	err := e.setStageLocked(ctx, i)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	if from != i {
		e.plugins.EmitStageAdvanced(ctx, from, i, false)
		e.logger.Info("stage set", "from", from, "to", i)
	}
	return nil
}

func (e *Engine) setStageLocked(ctx context.Context, i int) error {
	tx := e.begin()
	if err := e.ladder.SetActive(i); err != nil {
		return err
	}
	tx.saveState = true
	return tx.commit(ctx)
}

// WithdrawFunds sends everything collected in currency to the treasury.
func (e *Engine) WithdrawFunds(ctx context.Context, currency string) (*uint256.Int, error) {
	if err := e.lock(ctx); err != nil {
		return nil, err
	}
	amount, err := e.withdrawLocked(ctx, currency)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	treasury := e.Config().Treasury
	e.plugins.EmitFundsWithdrawn(ctx, currency, treasury, amount)
	e.logger.Info("funds withdrawn", "currency", currency, "amount", amount.Dec(), "to", treasury.Hex())
	return amount, nil
}

func (e *Engine) withdrawLocked(ctx context.Context, currency string) (*uint256.Int, error) {
	wallet, err := e.wallet(currency)
	if err != nil {
		return nil, err
	}
	amount := types.Clone(e.collected[currency])
	if amount.IsZero() {
		return nil, fmt.Errorf("%w: %s", ErrNoFunds, currency)
	}

	tx := e.begin()
	e.collected[currency] = types.Zero()
	tx.saveState = true
	if err := wallet.Transfer(inPayout(ctx), e.cfg.Treasury, amount); err != nil {
		tx.rollback()
		return nil, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	if err := tx.persist(ctx); err != nil {
		// Funds already left; keep memory in step with the chain.
		e.logger.Error("presale: withdrawal not persisted", "currency", currency, "error", err)
	}
	return amount, nil
}

func (e *Engine) wallet(currency string) (token.Token, error) {
	if currency == e.cfg.NativeSymbol {
		if e.native == nil {
			return nil, fmt.Errorf("%w: no wallet for %s", ErrUnsupportedCurrency, currency)
		}
		return e.native, nil
	}
	pt, ok := e.payments[currency]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, currency)
	}
	return pt.Token, nil
}

// UpdateConfig swaps in a new configuration. Stages stay as they are;
// vesting and leaderboard size cannot change once they matter.
func (e *Engine) UpdateConfig(ctx context.Context, next Config) error {
	if isPayout(ctx) {
		return ErrReentrantCall
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	next = next.Clone()
	next.Stages = e.cfg.Clone().Stages
	if err := next.Validate(); err != nil {
		return err
	}
	if e.claimOpen && next.Vesting != e.cfg.Vesting {
		return ValidationError{"vesting", "frozen once claims are open"}
	}
	if next.LeaderboardSize != e.cfg.LeaderboardSize {
		return ValidationError{"leaderboard_size", "cannot change after construction"}
	}
	if next.NativeSymbol != e.cfg.NativeSymbol && e.collected[e.cfg.NativeSymbol] != nil &&
		!e.collected[e.cfg.NativeSymbol].IsZero() {
		return ValidationError{"native_symbol", "collected funds remain under the old symbol"}
	}

	changed := changedFields(e.cfg, next)
	e.cfgMu.Lock()
	e.cfg = next
	e.cfgMu.Unlock()
	e.bonus = bonus.New(next.BonusTiers)
	e.logger.Info("config updated", "fields", changed)
	return nil
}

func changedFields(prev, next Config) []string {
	var out []string
	if !slices.EqualFunc(prev.BonusTiers, next.BonusTiers, func(a, b bonus.Tier) bool {
		return a.Bps == b.Bps && a.MinUSD.Eq(b.MinUSD)
	}) {
		out = append(out, "bonus_tiers")
	}
	if prev.ReferralBonusBps != next.ReferralBonusBps {
		out = append(out, "referral_bonus_bps")
	}
	if prev.Vesting != next.Vesting {
		out = append(out, "vesting")
	}
	if prev.OracleMaxAge != next.OracleMaxAge {
		out = append(out, "oracle_max_age")
	}
	if prev.Treasury != next.Treasury {
		out = append(out, "treasury")
	}
	if prev.NativeSymbol != next.NativeSymbol || prev.NativeDecimals != next.NativeDecimals {
		out = append(out, "native")
	}
	return out
}
