package presale

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/xraph/presale/account"
	"github.com/xraph/presale/id"
	"github.com/xraph/presale/types"
)

// OpenClaims ends the sale for good and starts vesting. The payout token
// balance must cover every claimable token; any surplus goes to the
// treasury.
func (e *Engine) OpenClaims(ctx context.Context) (swept *uint256.Int, err error) {
	if err := e.lock(ctx); err != nil {
		return nil, err
	}
	var start time.Time
	swept, start, err = e.openClaimsLocked(ctx)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	e.plugins.EmitClaimsOpened(ctx, start, swept)
	e.logger.Info("claims opened", "start", start, "swept", types.Format(swept, types.Decimals))
	return swept, nil
}

func (e *Engine) openClaimsLocked(ctx context.Context) (*uint256.Int, time.Time, error) {
	switch {
	case e.claimOpen:
		return nil, time.Time{}, ErrClaimsAlreadyOpen
	case e.saleOpen:
		return nil, time.Time{}, ErrSaleStillOpen
	case e.payout == nil:
		return nil, time.Time{}, ErrNoPayoutToken
	}

	bal, err := e.payout.BalanceOf(ctx, e.payout.Holder())
	if err != nil {
		return nil, time.Time{}, err
	}
	owed := types.SubSaturating(e.totals.ClaimableTokens, e.totals.ClaimedTokens)
	if bal.Lt(owed) {
		return nil, time.Time{}, fmt.Errorf("%w: holding %s, owed %s",
			ErrInsufficientPayoutBalance, types.Format(bal, types.Decimals), types.Format(owed, types.Decimals))
	}

	tx := e.begin()
	e.claimOpen = true
	e.claimStart = e.now()
	tx.saveState = true

	surplus := new(uint256.Int).Sub(bal, owed)
	if !surplus.IsZero() {
		if err := e.payout.Transfer(inPayout(ctx), e.cfg.Treasury, surplus); err != nil {
			tx.rollback()
			return nil, time.Time{}, fmt.Errorf("%w: sweep: %w", ErrTransferFailed, err)
		}
	}
	if err := tx.commit(ctx); err != nil {
		return nil, time.Time{}, err
	}
	return surplus, e.claimStart, nil
}

// PendingClaim returns what addr could claim now. It is zero while claims
// are closed.
func (e *Engine) PendingClaim(ctx context.Context, addr common.Address) (*uint256.Int, error) {
	if err := e.rlock(ctx); err != nil {
		return nil, err
	}
	defer e.mu.RUnlock()
	a, ok := e.accounts[addr]
	if !ok {
		return types.Zero(), nil
	}
	return e.pending(a), nil
}

func (e *Engine) pending(a *account.Account) *uint256.Int {
	if !e.claimOpen {
		return types.Zero()
	}
	return e.cfg.Vesting.Pending(a.TotalEntitled(), a.TokensClaimed, e.claimStart, e.now())
}

// Claim pays out the vested, unclaimed tokens of addr. Bookkeeping is
// persisted before the transfer; a failed transfer undoes it.
func (e *Engine) Claim(ctx context.Context, addr common.Address) (*account.Withdrawal, error) {
	if err := e.lock(ctx); err != nil {
		return nil, err
	}
	w, err := e.claimLocked(ctx, addr)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	e.plugins.EmitClaim(ctx, w)
	e.logger.Debug("claim paid", "account", addr.Hex(), "amount", types.Format(w.Amount, types.Decimals))
	return w, nil
}

func (e *Engine) claimLocked(ctx context.Context, addr common.Address) (*account.Withdrawal, error) {
	if !e.claimOpen {
		return nil, ErrClaimsNotOpen
	}
	a, ok := e.accounts[addr]
	if !ok {
		return nil, ErrNothingToClaim
	}
	amount := e.pending(a)
	if amount.IsZero() {
		return nil, ErrNothingToClaim
	}
	if e.payout == nil {
		return nil, ErrNoPayoutToken
	}

	tx := e.begin()
	a = tx.account(addr)
	addTo(&a.TokensClaimed, amount)
	addTo(&e.totals.ClaimedTokens, amount)
	w := account.Withdrawal{
		ID:        id.NewWithdrawalID(),
		Account:   addr,
		Seq:       len(a.Withdrawals),
		Amount:    amount,
		Timestamp: e.now(),
	}
	a.Withdrawals = append(a.Withdrawals, w)
	tx.withdrawals = append(tx.withdrawals, &w)
	tx.saveState = true

	if err := tx.persist(ctx); err != nil {
		tx.abort(ctx)
		return nil, fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}
	if err := e.payout.Transfer(inPayout(ctx), addr, amount); err != nil {
		tx.abort(ctx)
		return nil, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	// The tokens have moved; a missing history row must not undo that.
	if err := tx.record(ctx); err != nil {
		e.logger.Error("presale: withdrawal history not stored", "account", addr.Hex(), "error", err)
	}
	return &w, nil
}
