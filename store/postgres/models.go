package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/xraph/grove"

	"github.com/xraph/presale/account"
	"github.com/xraph/presale/id"
	"github.com/xraph/presale/sale"
	"github.com/xraph/presale/types"
)

// Amounts are stored as base-10 strings of the raw 256-bit integer.

// ==================== Account models ====================

type accountModel struct {
	grove.BaseModel `grove:"table:presale_accounts"`

	Address            string    `grove:"address,pk"`
	USDPaid            string    `grove:"usd_paid"`
	TokensFromBuy      string    `grove:"tokens_from_buy"`
	TokensFromReferral string    `grove:"tokens_from_referral"`
	TokensFromBonus    string    `grove:"tokens_from_bonus"`
	TokensClaimed      string    `grove:"tokens_claimed"`
	ReferralCount      int64     `grove:"referral_count"`
	ReferralUSD        string    `grove:"referral_usd"`
	ReferralCode       string    `grove:"referral_code"`
	SponsorCode        string    `grove:"sponsor_code"`
	Sponsor            string    `grove:"sponsor"`
	CreatedAt          time.Time `grove:"created_at"`
	UpdatedAt          time.Time `grove:"updated_at"`
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
	var err error
	for _, f := range []struct {
		dst **uint256.Int
		src string
	}{
		{&a.USDPaid, m.USDPaid},
		{&a.TokensFromBuy, m.TokensFromBuy},
		{&a.TokensFromReferral, m.TokensFromReferral},
		{&a.TokensFromBonus, m.TokensFromBonus},
		{&a.TokensClaimed, m.TokensClaimed},
		{&a.ReferralUSD, m.ReferralUSD},
	} {
		if *f.dst, err = parseDec(f.src); err != nil {
			return nil, fmt.Errorf("account %s: %w", m.Address, err)
		}
	}
	return a, nil
}

// ==================== History models ====================

type depositModel struct {
	grove.BaseModel `grove:"table:presale_deposits"`

	ID        string    `grove:"id,pk"`
	Account   string    `grove:"account"`
	Payer     string    `grove:"payer"`
	Seq       int       `grove:"seq"`
	Currency  string    `grove:"currency"`
	Amount    string    `grove:"amount"`
	USD       string    `grove:"usd"`
	Tokens    string    `grove:"tokens"`
	Stage     int       `grove:"stage"`
	Timestamp time.Time `grove:"timestamp"`
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
	amount, err := parseDec(m.Amount)
	if err != nil {
		return nil, err
	}
	usd, err := parseDec(m.USD)
	if err != nil {
		return nil, err
	}
	tokens, err := parseDec(m.Tokens)
	if err != nil {
		return nil, err
	}
	return &account.Deposit{
		ID:        depID,
		Account:   common.HexToAddress(m.Account),
		Payer:     common.HexToAddress(m.Payer),
		Seq:       m.Seq,
		Currency:  m.Currency,
		Amount:    amount,
		USD:       usd,
		Tokens:    tokens,
		Stage:     m.Stage,
		Timestamp: m.Timestamp,
	}, nil
}

type withdrawalModel struct {
	grove.BaseModel `grove:"table:presale_withdrawals"`

	ID        string    `grove:"id,pk"`
	Account   string    `grove:"account"`
	Seq       int       `grove:"seq"`
	Amount    string    `grove:"amount"`
	Timestamp time.Time `grove:"timestamp"`
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

// stateRowID is the key of the single sale state row.
const stateRowID = 1

type stateModel struct {
	grove.BaseModel `grove:"table:presale_state"`

	ID        int             `grove:"id,pk"`
	Data      json.RawMessage `grove:"data,type:jsonb"`
	UpdatedAt time.Time       `grove:"updated_at"`
}

func toStateModel(st *sale.State) (*stateModel, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return nil, err
	}
	return &stateModel{ID: stateRowID, Data: data, UpdatedAt: st.UpdatedAt}, nil
}

func fromStateModel(m *stateModel) (*sale.State, error) {
	var st sale.State
	if err := json.Unmarshal(m.Data, &st); err != nil {
		return nil, fmt.Errorf("decode sale state: %w", err)
	}
	return &st, nil
}

// ==================== Helpers ====================

func dec(x *uint256.Int) string { return types.Clone(x).Dec() }

func parseDec(s string) (*uint256.Int, error) {
	if s == "" {
		return types.Zero(), nil
	}
	return uint256.FromDecimal(s)
}
