// Package sale holds the global presale state: the stage ladder snapshot,
// phase flags, aggregate totals and the leaderboard.
package sale

import (
	"maps"
	"time"

	"github.com/holiman/uint256"

	"github.com/xraph/presale/leaderboard"
	"github.com/xraph/presale/stage"
	"github.com/xraph/presale/types"
)

// Totals are the global counters. Each equals the sum of the matching
// per-account field.
type Totals struct {
	SoldTokens      *uint256.Int `json:"sold_tokens"`
	ReferralTokens  *uint256.Int `json:"referral_tokens"`
	BonusTokens     *uint256.Int `json:"bonus_tokens"`
	ClaimableTokens *uint256.Int `json:"claimable_tokens"`
	FundsRaisedUSD  *uint256.Int `json:"funds_raised_usd"`
	ClaimedTokens   *uint256.Int `json:"claimed_tokens"`
}

// NewTotals returns zeroed totals.
func NewTotals() Totals {
	return Totals{
		SoldTokens:      types.Zero(),
		ReferralTokens:  types.Zero(),
		BonusTokens:     types.Zero(),
		ClaimableTokens: types.Zero(),
		FundsRaisedUSD:  types.Zero(),
		ClaimedTokens:   types.Zero(),
	}
}

// Clone returns a deep copy.
func (t Totals) Clone() Totals {
	return Totals{
		SoldTokens:      types.Clone(t.SoldTokens),
		ReferralTokens:  types.Clone(t.ReferralTokens),
		BonusTokens:     types.Clone(t.BonusTokens),
		ClaimableTokens: types.Clone(t.ClaimableTokens),
		FundsRaisedUSD:  types.Clone(t.FundsRaisedUSD),
		ClaimedTokens:   types.Clone(t.ClaimedTokens),
	}
}

// State is the persisted snapshot of everything that is not per-account.
// SaleOpen and ClaimOpen are never both true, and ClaimOpen never reverts.
type State struct {
	Stages      []stage.Stage           `json:"stages"`
	ActiveStage int                     `json:"active_stage"`
	Exhausted   bool                    `json:"exhausted"`
	SaleOpen    bool                    `json:"sale_open"`
	ClaimOpen   bool                    `json:"claim_open"`
	ClaimStart  time.Time               `json:"claim_start"`
	Totals      Totals                  `json:"totals"`
	Leaderboard []leaderboard.Entry     `json:"leaderboard"`
	Collected   map[string]*uint256.Int `json:"collected"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

// CloneCollected deep-copies a per-currency balance map.
func CloneCollected(in map[string]*uint256.Int) map[string]*uint256.Int {
	out := maps.Clone(in)
	if out == nil {
		return make(map[string]*uint256.Int)
	}
	for k, v := range out {
		out[k] = types.Clone(v)
	}
	return out
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	c := *s
	c.Stages = make([]stage.Stage, len(s.Stages))
	for i, st := range s.Stages {
		c.Stages[i] = stage.Stage{Remaining: types.Clone(st.Remaining), Price: types.Clone(st.Price)}
	}
	c.Totals = s.Totals.Clone()
	c.Leaderboard = make([]leaderboard.Entry, len(s.Leaderboard))
	for i, e := range s.Leaderboard {
		c.Leaderboard[i] = leaderboard.Entry{Account: e.Account, Amount: types.Clone(e.Amount)}
	}
	c.Collected = CloneCollected(s.Collected)
	return &c
}
