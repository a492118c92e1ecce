package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/presale"
	"github.com/xraph/presale/account"
	"github.com/xraph/presale/sale"
	presalestore "github.com/xraph/presale/store"
)

// Collection name constants.
const (
	colAccounts    = "presale_accounts"
	colDeposits    = "presale_deposits"
	colWithdrawals = "presale_withdrawals"
	colState       = "presale_state"
)

// compile-time interface check
var _ presalestore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all presale collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		if _, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("presale/mongo: migrate %s indexes: %w", col, err)
		}
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
	_, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.Address}).
		SetUpdate(bson.M{
			"$set": bson.M{
				"usd_paid":             m.USDPaid,
				"tokens_from_buy":      m.TokensFromBuy,
				"tokens_from_referral": m.TokensFromReferral,
				"tokens_from_bonus":    m.TokensFromBonus,
				"tokens_claimed":       m.TokensClaimed,
				"referral_count":       m.ReferralCount,
				"referral_usd":         m.ReferralUSD,
				"referral_code":        m.ReferralCode,
				"sponsor_code":         m.SponsorCode,
				"sponsor":              m.Sponsor,
				"updated_at":           m.UpdatedAt,
			},
			"$setOnInsert": bson.M{"created_at": m.CreatedAt},
		}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("presale/mongo: save account: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, addr common.Address) (*account.Account, error) {
	var m accountModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": addr.Hex()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, presale.ErrAccountNotFound
		}
		return nil, fmt.Errorf("presale/mongo: get account: %w", err)
	}
	return fromAccountModel(&m)
}

func (s *Store) DeleteAccount(ctx context.Context, addr common.Address) error {
	res, err := s.mdb.NewDelete((*accountModel)(nil)).
		Filter(bson.M{"_id": addr.Hex()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("presale/mongo: delete account: %w", err)
	}
	if res.DeletedCount() == 0 {
		return presale.ErrAccountNotFound
	}
	return nil
}

func (s *Store) ListAccounts(ctx context.Context, opts account.ListOpts) ([]*account.Account, error) {
	var models []accountModel
	q := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("presale/mongo: list accounts: %w", err)
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
	if _, err := s.mdb.NewInsert(toDepositModel(d)).Exec(ctx); err != nil {
		return fmt.Errorf("presale/mongo: append deposit: %w", err)
	}
	return nil
}

func (s *Store) ListDeposits(ctx context.Context, addr common.Address, opts account.ListOpts) ([]*account.Deposit, error) {
	var models []depositModel
	q := s.mdb.NewFind(&models).
		Filter(bson.M{"account": addr.Hex()}).
		Sort(bson.D{{Key: "seq", Value: 1}})
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("presale/mongo: list deposits: %w", err)
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
	if _, err := s.mdb.NewInsert(toWithdrawalModel(w)).Exec(ctx); err != nil {
		return fmt.Errorf("presale/mongo: append withdrawal: %w", err)
	}
	return nil
}

func (s *Store) ListWithdrawals(ctx context.Context, addr common.Address, opts account.ListOpts) ([]*account.Withdrawal, error) {
	var models []withdrawalModel
	q := s.mdb.NewFind(&models).
		Filter(bson.M{"account": addr.Hex()}).
		Sort(bson.D{{Key: "seq", Value: 1}})
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("presale/mongo: list withdrawals: %w", err)
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
	m := toStateModel(st)
	_, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": stateDocID}).
		SetUpdate(bson.M{"$set": bson.M{
			"stages":       m.Stages,
			"active_stage": m.ActiveStage,
			"exhausted":    m.Exhausted,
			"sale_open":    m.SaleOpen,
			"claim_open":   m.ClaimOpen,
			"claim_start":  m.ClaimStart,
			"totals":       m.Totals,
			"leaderboard":  m.Leaderboard,
			"collected":    m.Collected,
			"updated_at":   m.UpdatedAt,
		}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("presale/mongo: save sale state: %w", err)
	}
	return nil
}

func (s *Store) LoadState(ctx context.Context) (*sale.State, error) {
	var m stateModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": stateDocID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, presale.ErrSaleStateNotFound
		}
		return nil, fmt.Errorf("presale/mongo: load sale state: %w", err)
	}
	return fromStateModel(&m)
}

// ==================== Helpers ====================

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all presale collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colAccounts: {
			{
				Keys:    bson.D{{Key: "referral_code", Value: 1}},
				Options: options.Index().SetUnique(true).SetSparse(true),
			},
			{Keys: bson.D{{Key: "created_at", Value: 1}}},
		},
		colDeposits: {
			{
				Keys:    bson.D{{Key: "account", Value: 1}, {Key: "seq", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colWithdrawals: {
			{
				Keys:    bson.D{{Key: "account", Value: 1}, {Key: "seq", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colState: {},
	}
}
