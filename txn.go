package presale

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/xraph/presale/account"
	"github.com/xraph/presale/leaderboard"
	"github.com/xraph/presale/sale"
	"github.com/xraph/presale/stage"
)

type accountUndo struct {
	created     bool
	summary     *account.Account
	deposits    int
	withdrawals int
}

// txn is the undo log of a single mutation. Everything a mutation may
// touch is snapshotted in begin or on first touch, and rollback restores
// the engine to exactly that snapshot.
type txn struct {
	e *Engine

	accounts   map[common.Address]accountUndo
	touched    []common.Address
	registered []common.Address

	ladder     *stage.Ladder
	board      *leaderboard.Board
	totals     sale.Totals
	saleOpen   bool
	claimOpen  bool
	claimStart time.Time
	collected  map[string]*uint256.Int

	deposits    []*account.Deposit
	withdrawals []*account.Withdrawal
	saveState   bool
}

func (e *Engine) begin() *txn {
	return &txn{
		e:          e,
		accounts:   make(map[common.Address]accountUndo),
		ladder:     e.ladder.Clone(),
		board:      e.board.Clone(),
		totals:     e.totals.Clone(),
		saleOpen:   e.saleOpen,
		claimOpen:  e.claimOpen,
		claimStart: e.claimStart,
		collected:  sale.CloneCollected(e.collected),
	}
}

// account returns the live account for addr, creating it when absent, and
// records its pre-image the first time it is touched.
func (t *txn) account(addr common.Address) *account.Account {
	a, ok := t.e.accounts[addr]
	if _, seen := t.accounts[addr]; !seen {
		u := accountUndo{created: !ok}
		if ok {
			u.summary = a.Summary()
			u.deposits = len(a.Deposits)
			u.withdrawals = len(a.Withdrawals)
		}
		t.accounts[addr] = u
		t.touched = append(t.touched, addr)
	}
	if !ok {
		a = account.New(addr, t.e.now())
		t.e.accounts[addr] = a
	}
	a.Touch(t.e.now())
	return a
}

// register assigns a referral code to addr within the transaction.
func (t *txn) register(addr common.Address) (string, error) {
	code, err := t.e.referrals.Register(addr)
	if err != nil {
		return "", err
	}
	t.registered = append(t.registered, addr)
	return code, nil
}

func (t *txn) rollback() {
	e := t.e
	for _, addr := range t.touched {
		u := t.accounts[addr]
		if u.created {
			delete(e.accounts, addr)
			continue
		}
		live := e.accounts[addr]
		restored := u.summary.Clone()
		restored.Deposits = live.Deposits[:u.deposits]
		restored.Withdrawals = live.Withdrawals[:u.withdrawals]
		e.accounts[addr] = restored
	}
	for _, addr := range t.registered {
		e.referrals.Forget(addr)
	}
	e.ladder = t.ladder
	e.board = t.board
	e.totals = t.totals
	e.saleOpen = t.saleOpen
	e.claimOpen = t.claimOpen
	e.claimStart = t.claimStart
	e.collected = t.collected
}

// persist writes touched account summaries and, when flagged, the sale
// state.
func (t *txn) persist(ctx context.Context) error {
	for _, addr := range t.touched {
		if err := t.e.store.SaveAccount(ctx, t.e.accounts[addr].Summary()); err != nil {
			return fmt.Errorf("save account %s: %w", addr.Hex(), err)
		}
	}
	if t.saveState {
		if err := t.e.store.SaveState(ctx, t.e.snapshot()); err != nil {
			return fmt.Errorf("save sale state: %w", err)
		}
	}
	return nil
}

// record appends the history rows created by the transaction.
func (t *txn) record(ctx context.Context) error {
	for _, d := range t.deposits {
		if err := t.e.store.AppendDeposit(ctx, d); err != nil {
			return fmt.Errorf("append deposit: %w", err)
		}
	}
	for _, w := range t.withdrawals {
		if err := t.e.store.AppendWithdrawal(ctx, w); err != nil {
			return fmt.Errorf("append withdrawal: %w", err)
		}
	}
	return nil
}

// commit persists and records. On failure the in-memory state is rolled
// back and the store is rewritten from the pre-images.
func (t *txn) commit(ctx context.Context) error {
	err := t.persist(ctx)
	if err == nil {
		err = t.record(ctx)
	}
	if err != nil {
		t.abort(ctx)
		return fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}
	return nil
}

// abort rolls back memory and restores whatever persist may already have
// written.
func (t *txn) abort(ctx context.Context) {
	t.rollback()
	var errs []error
	for _, addr := range t.touched {
		if t.accounts[addr].created {
			// persist may have written the new row before failing.
			err := t.e.store.DeleteAccount(ctx, addr)
			if err != nil && !errors.Is(err, ErrAccountNotFound) {
				errs = append(errs, err)
			}
			continue
		}
		if err := t.e.store.SaveAccount(ctx, t.e.accounts[addr].Summary()); err != nil {
			errs = append(errs, err)
		}
	}
	if t.saveState {
		if err := t.e.store.SaveState(ctx, t.e.snapshot()); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		t.e.logger.Error("presale: store restore after abort failed", "error", err)
	}
}
