// Package memory is an in-process store.Store for tests and development.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/presale"
	"github.com/xraph/presale/account"
	"github.com/xraph/presale/sale"
	"github.com/xraph/presale/store"
)

var _ store.Store = (*Store)(nil)

// Store keeps everything in maps guarded by one RWMutex. Values are
// copied on the way in and out.
type Store struct {
	mu sync.RWMutex

	// Accounts in first-save order
	accounts map[common.Address]*account.Account
	order    []common.Address

	// Histories per account, append-only
	deposits    map[common.Address][]account.Deposit
	withdrawals map[common.Address][]account.Withdrawal
	historyIDs  map[string]struct{}

	state  *sale.State
	closed bool
}

// New returns an empty store.
func New() *Store {
	return &Store{
		accounts:    make(map[common.Address]*account.Account),
		deposits:    make(map[common.Address][]account.Deposit),
		withdrawals: make(map[common.Address][]account.Withdrawal),
		historyIDs:  make(map[string]struct{}),
	}
}

// ──────────────────────────────────────────────────
// Accounts
// ──────────────────────────────────────────────────

func (s *Store) SaveAccount(_ context.Context, a *account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return presale.ErrStoreClosed
	}
	if _, ok := s.accounts[a.Address]; !ok {
		s.order = append(s.order, a.Address)
	}
	s.accounts[a.Address] = a.Summary()
	return nil
}

func (s *Store) GetAccount(_ context.Context, addr common.Address) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, presale.ErrStoreClosed
	}
	a, ok := s.accounts[addr]
	if !ok {
		return nil, presale.ErrAccountNotFound
	}
	return a.Summary(), nil
}

func (s *Store) DeleteAccount(_ context.Context, addr common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return presale.ErrStoreClosed
	}
	if _, ok := s.accounts[addr]; !ok {
		return presale.ErrAccountNotFound
	}
	delete(s.accounts, addr)
	s.order = slices.DeleteFunc(s.order, func(a common.Address) bool { return a == addr })
	return nil
}

func (s *Store) ListAccounts(_ context.Context, opts account.ListOpts) ([]*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, presale.ErrStoreClosed
	}
	addrs := page(s.order, opts)
	result := make([]*account.Account, len(addrs))
	for i, addr := range addrs {
		result[i] = s.accounts[addr].Summary()
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Histories
// ──────────────────────────────────────────────────

func (s *Store) AppendDeposit(_ context.Context, d *account.Deposit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return presale.ErrStoreClosed
	}
	if err := s.claimID(d.ID.String()); err != nil {
		return err
	}
	s.deposits[d.Account] = append(s.deposits[d.Account], *d)
	return nil
}

func (s *Store) ListDeposits(_ context.Context, addr common.Address, opts account.ListOpts) ([]*account.Deposit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, presale.ErrStoreClosed
	}
	rows := page(s.deposits[addr], opts)
	result := make([]*account.Deposit, len(rows))
	for i := range rows {
		d := rows[i]
		result[i] = &d
	}
	return result, nil
}

func (s *Store) AppendWithdrawal(_ context.Context, w *account.Withdrawal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return presale.ErrStoreClosed
	}
	if err := s.claimID(w.ID.String()); err != nil {
		return err
	}
	s.withdrawals[w.Account] = append(s.withdrawals[w.Account], *w)
	return nil
}

func (s *Store) ListWithdrawals(_ context.Context, addr common.Address, opts account.ListOpts) ([]*account.Withdrawal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, presale.ErrStoreClosed
	}
	rows := page(s.withdrawals[addr], opts)
	result := make([]*account.Withdrawal, len(rows))
	for i := range rows {
		w := rows[i]
		result[i] = &w
	}
	return result, nil
}

func (s *Store) claimID(key string) error {
	if _, dup := s.historyIDs[key]; dup {
		return fmt.Errorf("%w: %s", presale.ErrAlreadyExists, key)
	}
	s.historyIDs[key] = struct{}{}
	return nil
}

// ──────────────────────────────────────────────────
// Sale state
// ──────────────────────────────────────────────────

func (s *Store) SaveState(_ context.Context, st *sale.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return presale.ErrStoreClosed
	}
	s.state = st.Clone()
	return nil
}

func (s *Store) LoadState(_ context.Context) (*sale.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, presale.ErrStoreClosed
	}
	if s.state == nil {
		return nil, presale.ErrSaleStateNotFound
	}
	return s.state.Clone(), nil
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return presale.ErrStoreClosed
	}
	return nil
}

// Close marks the store closed. Reopen makes it usable again with its
// data intact, which lets tests simulate a process restart.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Reopen clears the closed flag.
func (s *Store) Reopen() {
	s.mu.Lock()
	s.closed = false
	s.mu.Unlock()
}

func page[T any](items []T, opts account.ListOpts) []T {
	start := min(max(opts.Offset, 0), len(items))
	end := len(items)
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}
	return items[start:end]
}
