// Package kv implements store.Store over any gokv key-value backend:
// sync.Map in memory, one file per key, or an embedded BadgerDB.
package kv

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/philippgille/gokv"
	"github.com/philippgille/gokv/badgerdb"
	"github.com/philippgille/gokv/encoding"
	"github.com/philippgille/gokv/file"
	"github.com/philippgille/gokv/syncmap"

	"github.com/xraph/presale"
	"github.com/xraph/presale/account"
	"github.com/xraph/presale/sale"
	presalestore "github.com/xraph/presale/store"
)

// Backend kinds accepted by Open.
const (
	KindSyncMap  = "syncmap"
	KindFile     = "file"
	KindBadgerDB = "badgerdb"
)

const schemaVersion = 1

// compile-time interface check
var _ presalestore.Store = (*Store)(nil)

// Store keeps one key per record plus small index keys for ordered
// listing. Index updates are serialized by mu.
type Store struct {
	mu sync.Mutex
	kv gokv.Store
}

// New wraps an open gokv store. Values must round-trip through JSON.
func New(kv gokv.Store) *Store {
	return &Store{kv: kv}
}

// Open creates a backend of the given kind. dir is ignored for syncmap.
func Open(kind, dir string) (*Store, error) {
	switch kind {
	case KindSyncMap:
		return New(syncmap.NewStore(syncmap.Options{Codec: encoding.JSON})), nil
	case KindFile:
		s, err := file.NewStore(file.Options{Directory: dir, Codec: encoding.JSON})
		if err != nil {
			return nil, fmt.Errorf("presale/kv: file.NewStore: %w", err)
		}
		return New(s), nil
	case KindBadgerDB:
		s, err := badgerdb.NewStore(badgerdb.Options{Dir: dir, Codec: encoding.JSON})
		if err != nil {
			return nil, fmt.Errorf("presale/kv: badgerdb.NewStore: %w", err)
		}
		return New(s), nil
	default:
		return nil, fmt.Errorf("presale/kv: unsupported backend %q", kind)
	}
}

// Keys avoid path separators so the file backend can use them as names.
func accountKey(addr common.Address) string { return "acct_" + addr.Hex() }

func depositKey(addr common.Address, n int) string {
	return fmt.Sprintf("dep_%s_%d", addr.Hex(), n)
}

func withdrawalKey(addr common.Address, n int) string {
	return fmt.Sprintf("wdr_%s_%d", addr.Hex(), n)
}

func depositCountKey(addr common.Address) string    { return "depn_" + addr.Hex() }
func withdrawalCountKey(addr common.Address) string { return "wdrn_" + addr.Hex() }
func historyIDKey(id string) string                 { return "hid_" + id }

const (
	accountIndexKey = "acct_index"
	stateKey        = "sale_state"
	schemaKey       = "schema_version"
)

// ==================== Lifecycle ====================

// Migrate records the schema version. Key-value backends need no DDL.
func (s *Store) Migrate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var v int
	found, err := s.kv.Get(schemaKey, &v)
	if err != nil {
		return fmt.Errorf("presale/kv: read schema version: %w", err)
	}
	if found && v > schemaVersion {
		return fmt.Errorf("presale/kv: schema version %d is newer than %d", v, schemaVersion)
	}
	return s.kv.Set(schemaKey, schemaVersion)
}

// Ping reads a key to check the backend is usable.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var v int
	_, err := s.kv.Get(schemaKey, &v)
	return err
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.kv.Close()
}

// ==================== Account Store ====================

func (s *Store) SaveAccount(ctx context.Context, a *account.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var existing account.Account
	found, err := s.kv.Get(accountKey(a.Address), &existing)
	if err != nil {
		return fmt.Errorf("presale/kv: get account: %w", err)
	}
	if !found {
		var index []common.Address
		if _, err := s.kv.Get(accountIndexKey, &index); err != nil {
			return fmt.Errorf("presale/kv: read account index: %w", err)
		}
		if err := s.kv.Set(accountIndexKey, append(index, a.Address)); err != nil {
			return fmt.Errorf("presale/kv: write account index: %w", err)
		}
	}
	if err := s.kv.Set(accountKey(a.Address), a.Summary()); err != nil {
		return fmt.Errorf("presale/kv: save account: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, addr common.Address) (*account.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a := new(account.Account)
	found, err := s.kv.Get(accountKey(addr), a)
	if err != nil {
		return nil, fmt.Errorf("presale/kv: get account: %w", err)
	}
	if !found {
		return nil, presale.ErrAccountNotFound
	}
	return a, nil
}

func (s *Store) DeleteAccount(ctx context.Context, addr common.Address) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var existing account.Account
	found, err := s.kv.Get(accountKey(addr), &existing)
	if err != nil {
		return fmt.Errorf("presale/kv: get account: %w", err)
	}
	if !found {
		return presale.ErrAccountNotFound
	}
	var index []common.Address
	if _, err := s.kv.Get(accountIndexKey, &index); err != nil {
		return fmt.Errorf("presale/kv: read account index: %w", err)
	}
	index = slices.DeleteFunc(index, func(a common.Address) bool { return a == addr })
	if err := s.kv.Set(accountIndexKey, index); err != nil {
		return fmt.Errorf("presale/kv: write account index: %w", err)
	}
	if err := s.kv.Delete(accountKey(addr)); err != nil {
		return fmt.Errorf("presale/kv: delete account: %w", err)
	}
	return nil
}

func (s *Store) ListAccounts(ctx context.Context, opts account.ListOpts) ([]*account.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	var index []common.Address
	_, err := s.kv.Get(accountIndexKey, &index)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("presale/kv: read account index: %w", err)
	}

	start, end := window(len(index), opts)
	result := make([]*account.Account, 0, end-start)
	for _, addr := range index[start:end] {
		a, err := s.GetAccount(ctx, addr)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, nil
}

// ==================== History Store ====================

func (s *Store) AppendDeposit(ctx context.Context, d *account.Deposit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendRecord(d.ID.String(), depositCountKey(d.Account), func(n int) string {
		return depositKey(d.Account, n)
	}, d)
}

func (s *Store) ListDeposits(ctx context.Context, addr common.Address, opts account.ListOpts) ([]*account.Deposit, error) {
	return listRecords[account.Deposit](ctx, s, depositCountKey(addr), func(n int) string {
		return depositKey(addr, n)
	}, opts)
}

func (s *Store) AppendWithdrawal(ctx context.Context, w *account.Withdrawal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendRecord(w.ID.String(), withdrawalCountKey(w.Account), func(n int) string {
		return withdrawalKey(w.Account, n)
	}, w)
}

func (s *Store) ListWithdrawals(ctx context.Context, addr common.Address, opts account.ListOpts) ([]*account.Withdrawal, error) {
	return listRecords[account.Withdrawal](ctx, s, withdrawalCountKey(addr), func(n int) string {
		return withdrawalKey(addr, n)
	}, opts)
}

// appendRecord writes v under the next slot and bumps the count. The count
// is written last so a torn append leaves the record invisible. Caller
// holds mu.
func (s *Store) appendRecord(recordID, countKey string, slot func(int) string, v any) error {
	var seen bool
	found, err := s.kv.Get(historyIDKey(recordID), &seen)
	if err != nil {
		return fmt.Errorf("presale/kv: check record id: %w", err)
	}
	if found {
		return fmt.Errorf("%w: %s", presale.ErrAlreadyExists, recordID)
	}

	var n int
	if _, err := s.kv.Get(countKey, &n); err != nil {
		return fmt.Errorf("presale/kv: read count: %w", err)
	}
	if err := s.kv.Set(slot(n), v); err != nil {
		return fmt.Errorf("presale/kv: write record: %w", err)
	}
	if err := s.kv.Set(historyIDKey(recordID), true); err != nil {
		return fmt.Errorf("presale/kv: write record id: %w", err)
	}
	if err := s.kv.Set(countKey, n+1); err != nil {
		return fmt.Errorf("presale/kv: write count: %w", err)
	}
	return nil
}

func listRecords[T any](ctx context.Context, s *Store, countKey string, slot func(int) string, opts account.ListOpts) ([]*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	if _, err := s.kv.Get(countKey, &n); err != nil {
		return nil, fmt.Errorf("presale/kv: read count: %w", err)
	}
	start, end := window(n, opts)
	result := make([]*T, 0, end-start)
	for i := start; i < end; i++ {
		v := new(T)
		found, err := s.kv.Get(slot(i), v)
		if err != nil {
			return nil, fmt.Errorf("presale/kv: read record %d: %w", i, err)
		}
		if !found {
			return nil, fmt.Errorf("presale/kv: record %d missing", i)
		}
		result = append(result, v)
	}
	return result, nil
}

// ==================== Sale State Store ====================

func (s *Store) SaveState(ctx context.Context, st *sale.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.kv.Set(stateKey, st); err != nil {
		return fmt.Errorf("presale/kv: save sale state: %w", err)
	}
	return nil
}

func (s *Store) LoadState(ctx context.Context) (*sale.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st := new(sale.State)
	found, err := s.kv.Get(stateKey, st)
	if err != nil {
		return nil, fmt.Errorf("presale/kv: load sale state: %w", err)
	}
	if !found {
		return nil, presale.ErrSaleStateNotFound
	}
	return st, nil
}

func window(n int, opts account.ListOpts) (int, int) {
	start := min(max(opts.Offset, 0), n)
	end := n
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}
	return start, end
}
