package mongo

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/xraph/grove"

	"github.com/xraph/presale/account"
	"github.com/xraph/presale/id"
	"github.com/xraph/presale/leaderboard"
	"github.com/xraph/presale/sale"
	"github.com/xraph/presale/stage"
	"github.com/xraph/presale/types"
)

// ==================== Account models ====================

type accountModel struct {
	grove.BaseModel `grove:"table:presale_accounts"`

	Address            string    `grove:"id,pk"                bson:"_id"`
	USDPaid            string    `grove:"usd_paid"             bson:"usd_paid"`
	TokensFromBuy      string    `grove:"tokens_from_buy"      bson:"tokens_from_buy"`
	TokensFromReferral string    `grove:"tokens_from_referral" bson:"tokens_from_referral"`
	TokensFromBonus    string    `grove:"tokens_from_bonus"    bson:"tokens_from_bonus"`
	TokensClaimed      string    `grove:"tokens_claimed"       bson:"tokens_claimed"`
	ReferralCount      int64     `grove:"referral_count"       bson:"referral_count"`
	ReferralUSD        string    `grove:"referral_usd"         bson:"referral_usd"`
	ReferralCode       string    `grove:"referral_code"        bson:"referral_code"`
	SponsorCode        string    `grove:"sponsor_code"         bson:"sponsor_code,omitempty"`
	Sponsor            string    `grove:"sponsor"              bson:"sponsor,omitempty"`
	CreatedAt          time.Time `grove:"created_at"           bson:"created_at"`
	UpdatedAt          time.Time `grove:"updated_at"           bson:"updated_at"`
}

func toAccountModel(a *account.Account) *accountModel {
	m := &accountModel{
		Address:            a.Address.Hex(),
		USDPaid:            dec(a.USDPaid),
		TokensFromBuy:      dec(a.TokensFromBuy),
		TokensFromReferral: dec(a.TokensFromReferral),
		TokensFromBonus:    dec(a.TokensFromBonus),
		TokensClaimed:      dec(a.TokensClaimed),
		ReferralCount:      int64(a.ReferralCount),
		ReferralUSD:        dec(a.ReferralUSD),
		ReferralCode:       a.ReferralCode,
		SponsorCode:        a.SponsorCode,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
	if a.Sponsor != nil {
		m.Sponsor = a.Sponsor.Hex()
	}
	return m
}

func fromAccountModel(m *accountModel) (*account.Account, error) {
	a := &account.Account{
		Entity:        types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		Address:       common.HexToAddress(m.Address),
		ReferralCount: uint64(m.ReferralCount),
		ReferralCode:  m.ReferralCode,
		SponsorCode:   m.SponsorCode,
	}
	if m.Sponsor != "" {
		s := common.HexToAddress(m.Sponsor)
		a.Sponsor = &s
	}
	amounts := map[**uint256.Int]string{
		&a.USDPaid:            m.USDPaid,
		&a.TokensFromBuy:      m.TokensFromBuy,
		&a.TokensFromReferral: m.TokensFromReferral,
		&a.TokensFromBonus:    m.TokensFromBonus,
		&a.TokensClaimed:      m.TokensClaimed,
		&a.ReferralUSD:        m.ReferralUSD,
	}
	for dst, src := range amounts {
		v, err := parseDec(src)
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", m.Address, err)
		}
		*dst = v
	}
	return a, nil
}

// ==================== History models ====================

type depositModel struct {
	grove.BaseModel `grove:"table:presale_deposits"`

	ID        string    `grove:"id,pk"     bson:"_id"`
	Account   string    `grove:"account"   bson:"account"`
	Payer     string    `grove:"payer"     bson:"payer"`
	Seq       int       `grove:"seq"       bson:"seq"`
	Currency  string    `grove:"currency"  bson:"currency"`
	Amount    string    `grove:"amount"    bson:"amount"`
	USD       string    `grove:"usd"       bson:"usd"`
	Tokens    string    `grove:"tokens"    bson:"tokens"`
	Stage     int       `grove:"stage"     bson:"stage"`
	Timestamp time.Time `grove:"timestamp" bson:"timestamp"`
}

func toDepositModel(d *account.Deposit) *depositModel {
	return &depositModel{
		ID:        d.ID.String(),
		Account:   d.Account.Hex(),
		Payer:     d.Payer.Hex(),
		Seq:       d.Seq,
		Currency:  d.Currency,
		Amount:    dec(d.Amount),
		USD:       dec(d.USD),
		Tokens:    dec(d.Tokens),
		Stage:     d.Stage,
		Timestamp: d.Timestamp,
	}
}

func fromDepositModel(m *depositModel) (*account.Deposit, error) {
	depID, err := id.ParseDepositID(m.ID)
	if err != nil {
		return nil, err
	}
	d := &account.Deposit{
		ID:        depID,
		Account:   common.HexToAddress(m.Account),
		Payer:     common.HexToAddress(m.Payer),
		Seq:       m.Seq,
		Currency:  m.Currency,
		Stage:     m.Stage,
		Timestamp: m.Timestamp,
	}
	if d.Amount, err = parseDec(m.Amount); err != nil {
		return nil, err
	}
	if d.USD, err = parseDec(m.USD); err != nil {
		return nil, err
	}
	if d.Tokens, err = parseDec(m.Tokens); err != nil {
		return nil, err
	}
	return d, nil
}

type withdrawalModel struct {
	grove.BaseModel `grove:"table:presale_withdrawals"`

	ID        string    `grove:"id,pk"     bson:"_id"`
	Account   string    `grove:"account"   bson:"account"`
	Seq       int       `grove:"seq"       bson:"seq"`
	Amount    string    `grove:"amount"    bson:"amount"`
	Timestamp time.Time `grove:"timestamp" bson:"timestamp"`
}

func toWithdrawalModel(w *account.Withdrawal) *withdrawalModel {
	return &withdrawalModel{
		ID:        w.ID.String(),
		Account:   w.Account.Hex(),
		Seq:       w.Seq,
		Amount:    dec(w.Amount),
		Timestamp: w.Timestamp,
	}
}

func fromWithdrawalModel(m *withdrawalModel) (*account.Withdrawal, error) {
	wID, err := id.ParseWithdrawalID(m.ID)
	if err != nil {
		return nil, err
	}
	amount, err := parseDec(m.Amount)
	if err != nil {
		return nil, err
	}
	return &account.Withdrawal{
		ID:        wID,
		Account:   common.HexToAddress(m.Account),
		Seq:       m.Seq,
		Amount:    amount,
		Timestamp: m.Timestamp,
	}, nil
}

// ==================== Sale state model ====================

const stateDocID = "sale"

type stageModel struct {
	Remaining string `bson:"remaining"`
	Price     string `bson:"price"`
}

type rankModel struct {
	Account string `bson:"account"`
	Amount  string `bson:"amount"`
}

type totalsModel struct {
	SoldTokens      string `bson:"sold_tokens"`
	ReferralTokens  string `bson:"referral_tokens"`
	BonusTokens     string `bson:"bonus_tokens"`
	ClaimableTokens string `bson:"claimable_tokens"`
	FundsRaisedUSD  string `bson:"funds_raised_usd"`
	ClaimedTokens   string `bson:"claimed_tokens"`
}

type stateModel struct {
	grove.BaseModel `grove:"table:presale_state"`

	ID          string            `grove:"id,pk"        bson:"_id"`
	Stages      []stageModel      `grove:"stages"       bson:"stages"`
	ActiveStage int               `grove:"active_stage" bson:"active_stage"`
	Exhausted   bool              `grove:"exhausted"    bson:"exhausted"`
	SaleOpen    bool              `grove:"sale_open"    bson:"sale_open"`
	ClaimOpen   bool              `grove:"claim_open"   bson:"claim_open"`
	ClaimStart  time.Time         `grove:"claim_start"  bson:"claim_start"`
	Totals      totalsModel       `grove:"totals"       bson:"totals"`
	Leaderboard []rankModel       `grove:"leaderboard"  bson:"leaderboard"`
	Collected   map[string]string `grove:"collected"    bson:"collected"`
	UpdatedAt   time.Time         `grove:"updated_at"   bson:"updated_at"`
}

func toStateModel(st *sale.State) *stateModel {
	m := &stateModel{
		ID:          stateDocID,
		ActiveStage: st.ActiveStage,
		Exhausted:   st.Exhausted,
		SaleOpen:    st.SaleOpen,
		ClaimOpen:   st.ClaimOpen,
		ClaimStart:  st.ClaimStart,
		Totals: totalsModel{
			SoldTokens:      dec(st.Totals.SoldTokens),
			ReferralTokens:  dec(st.Totals.ReferralTokens),
			BonusTokens:     dec(st.Totals.BonusTokens),
			ClaimableTokens: dec(st.Totals.ClaimableTokens),
			FundsRaisedUSD:  dec(st.Totals.FundsRaisedUSD),
			ClaimedTokens:   dec(st.Totals.ClaimedTokens),
		},
		Collected: make(map[string]string, len(st.Collected)),
		UpdatedAt: st.UpdatedAt,
	}
	for _, s := range st.Stages {
		m.Stages = append(m.Stages, stageModel{Remaining: dec(s.Remaining), Price: dec(s.Price)})
	}
	for _, e := range st.Leaderboard {
		m.Leaderboard = append(m.Leaderboard, rankModel{Account: e.Account.Hex(), Amount: dec(e.Amount)})
	}
	for k, v := range st.Collected {
		m.Collected[k] = dec(v)
	}
	return m
}

func fromStateModel(m *stateModel) (*sale.State, error) {
	st := &sale.State{
		ActiveStage: m.ActiveStage,
		Exhausted:   m.Exhausted,
		SaleOpen:    m.SaleOpen,
		ClaimOpen:   m.ClaimOpen,
		ClaimStart:  m.ClaimStart,
		Collected:   make(map[string]*uint256.Int, len(m.Collected)),
		UpdatedAt:   m.UpdatedAt,
	}
	var err error
	for _, s := range m.Stages {
		var row stage.Stage
		if row.Remaining, err = parseDec(s.Remaining); err != nil {
			return nil, err
		}
		if row.Price, err = parseDec(s.Price); err != nil {
			return nil, err
		}
		st.Stages = append(st.Stages, row)
	}
	for _, r := range m.Leaderboard {
		amount, err := parseDec(r.Amount)
		if err != nil {
			return nil, err
		}
		st.Leaderboard = append(st.Leaderboard, leaderboard.Entry{Account: common.HexToAddress(r.Account), Amount: amount})
	}
	for k, v := range m.Collected {
		if st.Collected[k], err = parseDec(v); err != nil {
			return nil, err
		}
	}
	t := m.Totals
	for dst, src := range map[**uint256.Int]string{
		&st.Totals.SoldTokens:      t.SoldTokens,
		&st.Totals.ReferralTokens:  t.ReferralTokens,
		&st.Totals.BonusTokens:     t.BonusTokens,
		&st.Totals.ClaimableTokens: t.ClaimableTokens,
		&st.Totals.FundsRaisedUSD:  t.FundsRaisedUSD,
		&st.Totals.ClaimedTokens:   t.ClaimedTokens,
	} {
		if *dst, err = parseDec(src); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// ==================== Helpers ====================

func dec(x *uint256.Int) string { return types.Clone(x).Dec() }

func parseDec(s string) (*uint256.Int, error) {
	if s == "" {
		return types.Zero(), nil
	}
	return uint256.FromDecimal(s)
}
