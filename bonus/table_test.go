package bonus

import (
	"testing"

	"github.com/xraph/presale/types"
)

func defaultTiers() []Tier {
	return []Tier{
		{MinUSD: types.Units(10_000), Bps: 1500},
		{MinUSD: types.Units(5_000), Bps: 1000},
		{MinUSD: types.Units(1_000), Bps: 500},
		{MinUSD: types.Units(500), Bps: 250},
	}
}

func TestBonusFor(t *testing.T) {
	table := New(defaultTiers())

	tests := []struct {
		name string
		usd  uint64
		want uint64
	}{
		{"below every tier", 499, 0},
		{"exact lowest threshold", 500, 250},
		{"between tiers", 999, 250},
		{"third tier", 1_000, 500},
		{"second tier", 7_500, 1000},
		{"top tier", 10_000, 1500},
		{"far above top", 1_000_000, 1500},
		{"zero", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := table.BonusFor(types.Units(tt.usd)); got != tt.want {
				t.Errorf("BonusFor($%d) = %d, want %d", tt.usd, got, tt.want)
			}
		})
	}
}

func TestBonusForKeepsCheckOrder(t *testing.T) {
	// Unordered table: the first satisfied tier in check order wins even
	// though a later one is richer.
	table := New([]Tier{
		{MinUSD: types.Units(100), Bps: 100},
		{MinUSD: types.Units(1_000), Bps: 900},
	})
	if got := table.BonusFor(types.Units(5_000)); got != 100 {
		t.Errorf("BonusFor = %d, want 100 from the first matching tier", got)
	}
}

func TestDescending(t *testing.T) {
	if !Descending(defaultTiers()) {
		t.Error("default tiers should be descending")
	}
	tiers := defaultTiers()
	tiers[3].MinUSD = types.Units(20_000)
	if Descending(tiers) {
		t.Error("expected unordered tiers to be rejected")
	}
	equal := []Tier{{MinUSD: types.Units(5), Bps: 2}, {MinUSD: types.Units(5), Bps: 1}}
	if !Descending(equal) {
		t.Error("equal thresholds are non-increasing")
	}
}

func TestTiersIsCopy(t *testing.T) {
	table := New(defaultTiers())
	tiers := table.Tiers()
	tiers[0].MinUSD.SetUint64(0)
	if table.BonusFor(types.Units(1)) != 0 {
		t.Error("mutating Tiers() leaked into the table")
	}
}
