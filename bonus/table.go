// Package bonus maps cumulative investment to a loyalty bonus rate.
package bonus

import (
	"github.com/holiman/uint256"
)

// Tier grants Bps basis points of bonus tokens once a buyer's cumulative
// USD reaches MinUSD.
type Tier struct {
	MinUSD *uint256.Int `json:"min_usd" yaml:"min_usd"`
	Bps    uint64       `json:"bps"     yaml:"bps"`
}

// Table checks tiers in the order given, largest threshold first. The
// first tier whose threshold is met wins.
type Table struct {
	tiers []Tier
}

// New builds a table. Tiers are copied and kept in the given order.
func New(tiers []Tier) *Table {
	t := &Table{tiers: make([]Tier, len(tiers))}
	for i, tier := range tiers {
		t.tiers[i] = Tier{MinUSD: tier.MinUSD.Clone(), Bps: tier.Bps}
	}
	return t
}

// BonusFor returns the bonus rate for a cumulative USD amount, or 0.
func (t *Table) BonusFor(cumulativeUSD *uint256.Int) uint64 {
	for _, tier := range t.tiers {
		if !tier.MinUSD.Gt(cumulativeUSD) {
			return tier.Bps
		}
	}
	return 0
}

// Tiers returns a copy of the tiers in check order.
func (t *Table) Tiers() []Tier {
	return New(t.tiers).tiers
}

// Descending reports whether thresholds never increase in check order.
func Descending(tiers []Tier) bool {
	for i := 1; i < len(tiers); i++ {
		if tiers[i].MinUSD.Gt(tiers[i-1].MinUSD) {
			return false
		}
	}
	return true
}
