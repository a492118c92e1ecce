// Package account holds per-buyer presale bookkeeping: running totals,
// referral attribution and the append-only deposit and withdrawal
// histories.
package account

import (
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/xraph/presale/id"
	"github.com/xraph/presale/types"
)

// Account is created on an address's first purchase and never deleted.
// ReferralCode, SponsorCode and Sponsor are write-once.
type Account struct {
	types.Entity

	Address            common.Address  `json:"address"`
	USDPaid            *uint256.Int    `json:"usd_paid"`
	TokensFromBuy      *uint256.Int    `json:"tokens_from_buy"`
	TokensFromReferral *uint256.Int    `json:"tokens_from_referral"`
	TokensFromBonus    *uint256.Int    `json:"tokens_from_bonus"`
	TokensClaimed      *uint256.Int    `json:"tokens_claimed"`
	ReferralCount      uint64          `json:"referral_count"`
	ReferralUSD        *uint256.Int    `json:"referral_usd"`
	ReferralCode       string          `json:"referral_code"`
	SponsorCode        string          `json:"sponsor_code,omitempty"`
	Sponsor            *common.Address `json:"sponsor,omitempty"`
	Deposits           []Deposit       `json:"deposits,omitempty"`
	Withdrawals        []Withdrawal    `json:"withdrawals,omitempty"`
}

// New returns a zeroed account for addr.
func New(addr common.Address, at time.Time) *Account {
	return &Account{
		Entity:             types.NewEntity(at),
		Address:            addr,
		USDPaid:            types.Zero(),
		TokensFromBuy:      types.Zero(),
		TokensFromReferral: types.Zero(),
		TokensFromBonus:    types.Zero(),
		TokensClaimed:      types.Zero(),
		ReferralUSD:        types.Zero(),
	}
}

// Registered reports whether the account has made a purchase.
func (a *Account) Registered() bool { return a.ReferralCode != "" }

// TotalEntitled is bought plus referral plus bonus tokens.
func (a *Account) TotalEntitled() *uint256.Int {
	return types.Sum(a.TokensFromBuy, a.TokensFromReferral, a.TokensFromBonus)
}

// Clone returns a deep copy. History records are immutable once appended,
// so their slices are copied but their amounts are shared.
func (a *Account) Clone() *Account {
	c := *a
	c.USDPaid = types.Clone(a.USDPaid)
	c.TokensFromBuy = types.Clone(a.TokensFromBuy)
	c.TokensFromReferral = types.Clone(a.TokensFromReferral)
	c.TokensFromBonus = types.Clone(a.TokensFromBonus)
	c.TokensClaimed = types.Clone(a.TokensClaimed)
	c.ReferralUSD = types.Clone(a.ReferralUSD)
	if a.Sponsor != nil {
		s := *a.Sponsor
		c.Sponsor = &s
	}
	c.Deposits = slices.Clone(a.Deposits)
	c.Withdrawals = slices.Clone(a.Withdrawals)
	return &c
}

// Summary drops the histories; stores persist those separately.
func (a *Account) Summary() *Account {
	h := *a
	h.Deposits, h.Withdrawals = nil, nil
	return h.Clone()
}

// Deposit records one purchase. Amount is the raw payment in the paying
// currency's own units.
type Deposit struct {
	ID        id.DepositID   `json:"id"`
	Account   common.Address `json:"account"`
	Payer     common.Address `json:"payer"`
	Seq       int            `json:"seq"`
	Currency  string         `json:"currency"`
	Amount    *uint256.Int   `json:"amount"`
	USD       *uint256.Int   `json:"usd"`
	Tokens    *uint256.Int   `json:"tokens"`
	Stage     int            `json:"stage"`
	Timestamp time.Time      `json:"timestamp"`
}

// Withdrawal records one vesting payout.
type Withdrawal struct {
	ID        id.WithdrawalID `json:"id"`
	Account   common.Address  `json:"account"`
	Seq       int             `json:"seq"`
	Amount    *uint256.Int    `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

// ListOpts pages through stored records in insertion order.
type ListOpts struct {
	Limit  int
	Offset int
}
