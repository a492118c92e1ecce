package presale

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/xraph/presale/account"
	"github.com/xraph/presale/leaderboard"
	"github.com/xraph/presale/sale"
	"github.com/xraph/presale/stage"
	"github.com/xraph/presale/types"
)

// Queries take the read lock, so none of them may be called from inside a
// token transfer the engine started; they return ErrReentrantCall there.

// Stats is a consistent snapshot of the sale.
type Stats struct {
	ActiveStage    int
	CurrentPrice   *uint256.Int
	StageRemaining *uint256.Int
	Exhausted      bool
	SaleOpen       bool
	ClaimOpen      bool
	ClaimStart     time.Time
	Totals         sale.Totals
	Accounts       int
	Ranked         int
	Collected      map[string]*uint256.Int
}

// Stats returns the current sale figures.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	if err := e.rlock(ctx); err != nil {
		return Stats{}, err
	}
	defer e.mu.RUnlock()
	return Stats{
		ActiveStage:    e.ladder.Active(),
		CurrentPrice:   e.ladder.CurrentPrice(),
		StageRemaining: e.ladder.Remaining(),
		Exhausted:      e.ladder.Exhausted(),
		SaleOpen:       e.saleOpen,
		ClaimOpen:      e.claimOpen,
		ClaimStart:     e.claimStart,
		Totals:         e.totals.Clone(),
		Accounts:       len(e.accounts),
		Ranked:         e.board.Len(),
		Collected:      sale.CloneCollected(e.collected),
	}, nil
}

// Stages returns every stage with its remaining allocation.
func (e *Engine) Stages(ctx context.Context) ([]stage.Stage, error) {
	if err := e.rlock(ctx); err != nil {
		return nil, err
	}
	defer e.mu.RUnlock()
	return e.ladder.Stages(), nil
}

// CurrentPrice returns the active stage price, USD per whole token.
func (e *Engine) CurrentPrice(ctx context.Context) (*uint256.Int, error) {
	if err := e.rlock(ctx); err != nil {
		return nil, err
	}
	defer e.mu.RUnlock()
	return e.ladder.CurrentPrice(), nil
}

// Account returns a copy of addr's account including its histories.
func (e *Engine) Account(ctx context.Context, addr common.Address) (*account.Account, error) {
	if err := e.rlock(ctx); err != nil {
		return nil, err
	}
	defer e.mu.RUnlock()
	a, ok := e.accounts[addr]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return a.Clone(), nil
}

// Accounts returns copies of every account, histories included, in no
// particular order.
func (e *Engine) Accounts(ctx context.Context) ([]*account.Account, error) {
	if err := e.rlock(ctx); err != nil {
		return nil, err
	}
	defer e.mu.RUnlock()
	out := make([]*account.Account, 0, len(e.accounts))
	for _, a := range e.accounts {
		out = append(out, a.Clone())
	}
	return out, nil
}

// ReferralCode returns the code assigned to addr on its first purchase.
func (e *Engine) ReferralCode(ctx context.Context, addr common.Address) (string, error) {
	if err := e.rlock(ctx); err != nil {
		return "", err
	}
	defer e.mu.RUnlock()
	code, ok := e.referrals.CodeOf(addr)
	if !ok {
		return "", ErrAccountNotFound
	}
	return code, nil
}

// ResolveReferralCode returns the account owning code.
func (e *Engine) ResolveReferralCode(ctx context.Context, code string) (common.Address, error) {
	if err := e.rlock(ctx); err != nil {
		return common.Address{}, err
	}
	defer e.mu.RUnlock()
	addr, ok := e.referrals.Resolve(code)
	if !ok {
		return common.Address{}, ErrAccountNotFound
	}
	return addr, nil
}

// BuyRange returns deposits start..end inclusive.
func (e *Engine) BuyRange(ctx context.Context, addr common.Address, start, end int) ([]account.Deposit, error) {
	if err := e.rlock(ctx); err != nil {
		return nil, err
	}
	defer e.mu.RUnlock()
	var deposits []account.Deposit
	if a, ok := e.accounts[addr]; ok {
		deposits = a.Deposits
	}
	if err := types.CheckRange(start, end, len(deposits)); err != nil {
		return nil, err
	}
	out := make([]account.Deposit, end-start+1)
	copy(out, deposits[start:end+1])
	return out, nil
}

// WithdrawalRange returns withdrawals start..end inclusive.
func (e *Engine) WithdrawalRange(ctx context.Context, addr common.Address, start, end int) ([]account.Withdrawal, error) {
	if err := e.rlock(ctx); err != nil {
		return nil, err
	}
	defer e.mu.RUnlock()
	var withdrawals []account.Withdrawal
	if a, ok := e.accounts[addr]; ok {
		withdrawals = a.Withdrawals
	}
	if err := types.CheckRange(start, end, len(withdrawals)); err != nil {
		return nil, err
	}
	out := make([]account.Withdrawal, end-start+1)
	copy(out, withdrawals[start:end+1])
	return out, nil
}

// LeaderboardRange returns ranked entries start..end inclusive, lowest
// first.
func (e *Engine) LeaderboardRange(ctx context.Context, start, end int) ([]leaderboard.Entry, error) {
	if err := e.rlock(ctx); err != nil {
		return nil, err
	}
	defer e.mu.RUnlock()
	return e.board.Range(start, end)
}

// LeaderboardLen returns the number of ranked accounts.
func (e *Engine) LeaderboardLen(ctx context.Context) (int, error) {
	if err := e.rlock(ctx); err != nil {
		return 0, err
	}
	defer e.mu.RUnlock()
	return e.board.Len(), nil
}
