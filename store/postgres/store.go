package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/presale"
	"github.com/xraph/presale/account"
	"github.com/xraph/presale/sale"
	presalestore "github.com/xraph/presale/store"
)

// compile-time interface check
var _ presalestore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("presale/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("presale/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Account Store ====================

func (s *Store) SaveAccount(ctx context.Context, a *account.Account) error {
	m := toAccountModel(a)
	_, err := s.pg.NewInsert(m).
		OnConflict("(address) DO UPDATE").
		Set("usd_paid = EXCLUDED.usd_paid").
		Set("tokens_from_buy = EXCLUDED.tokens_from_buy").
		Set("tokens_from_referral = EXCLUDED.tokens_from_referral").
		Set("tokens_from_bonus = EXCLUDED.tokens_from_bonus").
		Set("tokens_claimed = EXCLUDED.tokens_claimed").
		Set("referral_count = EXCLUDED.referral_count").
		Set("referral_usd = EXCLUDED.referral_usd").
		Set("referral_code = EXCLUDED.referral_code").
		Set("sponsor_code = EXCLUDED.sponsor_code").
		Set("sponsor = EXCLUDED.sponsor").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("presale/postgres: save account: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, addr common.Address) (*account.Account, error) {
	m := new(accountModel)
	err := s.pg.NewSelect(m).
		Where("address = $1", addr.Hex()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, presale.ErrAccountNotFound
		}
		return nil, fmt.Errorf("presale/postgres: get account: %w", err)
	}
	return fromAccountModel(m)
}

func (s *Store) DeleteAccount(ctx context.Context, addr common.Address) error {
	res, err := s.pg.NewDelete((*accountModel)(nil)).
		Where("address = $1", addr.Hex()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("presale/postgres: delete account: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("presale/postgres: delete account: %w", err)
	}
	if rows == 0 {
		return presale.ErrAccountNotFound
	}
	return nil
}

func (s *Store) ListAccounts(ctx context.Context, opts account.ListOpts) ([]*account.Account, error) {
	var models []accountModel
	q := s.pg.NewSelect(&models).OrderExpr("created_at ASC, address ASC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("presale/postgres: list accounts: %w", err)
	}

	result := make([]*account.Account, len(models))
	for i := range models {
		a, err := fromAccountModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = a
	}
	return result, nil
}

// ==================== History Store ====================

func (s *Store) AppendDeposit(ctx context.Context, d *account.Deposit) error {
	_, err := s.pg.NewInsert(toDepositModel(d)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("presale/postgres: append deposit: %w", err)
	}
	return nil
}

func (s *Store) ListDeposits(ctx context.Context, addr common.Address, opts account.ListOpts) ([]*account.Deposit, error) {
	var models []depositModel
	q := s.pg.NewSelect(&models).
		Where("account = $1", addr.Hex()).
		OrderExpr("seq ASC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("presale/postgres: list deposits: %w", err)
	}

	result := make([]*account.Deposit, len(models))
	for i := range models {
		d, err := fromDepositModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = d
	}
	return result, nil
}

func (s *Store) AppendWithdrawal(ctx context.Context, w *account.Withdrawal) error {
	_, err := s.pg.NewInsert(toWithdrawalModel(w)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("presale/postgres: append withdrawal: %w", err)
	}
	return nil
}

func (s *Store) ListWithdrawals(ctx context.Context, addr common.Address, opts account.ListOpts) ([]*account.Withdrawal, error) {
	var models []withdrawalModel
	q := s.pg.NewSelect(&models).
		Where("account = $1", addr.Hex()).
		OrderExpr("seq ASC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("presale/postgres: list withdrawals: %w", err)
	}

	result := make([]*account.Withdrawal, len(models))
	for i := range models {
		w, err := fromWithdrawalModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = w
	}
	return result, nil
}

// ==================== Sale State Store ====================

func (s *Store) SaveState(ctx context.Context, st *sale.State) error {
	m, err := toStateModel(st)
	if err != nil {
		return fmt.Errorf("presale/postgres: encode sale state: %w", err)
	}
	_, err = s.pg.NewInsert(m).
		OnConflict("(id) DO UPDATE").
		Set("data = EXCLUDED.data").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("presale/postgres: save sale state: %w", err)
	}
	return nil
}

func (s *Store) LoadState(ctx context.Context) (*sale.State, error) {
	m := new(stateModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", stateRowID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, presale.ErrSaleStateNotFound
		}
		return nil, fmt.Errorf("presale/postgres: load sale state: %w", err)
	}
	return fromStateModel(m)
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
