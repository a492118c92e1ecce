// Package leaderboard keeps a bounded ranking of the largest investors.
//
// The board is always sorted ascending by amount: index 0 is the current
// minimum and the eviction candidate, the last index is the maximum. Every
// mutation ends with a full iterative re-sort, which keeps the ranking
// identical whether an entry was appended, overwritten or replaced.
package leaderboard

import (
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/xraph/presale/types"
)

// DefaultSize is the number of ranked accounts.
const DefaultSize = 50

// ErrOutOfRange is returned by Range for bad bounds.
var ErrOutOfRange = types.ErrOutOfRange

// Entry ranks one account by cumulative USD invested.
type Entry struct {
	Account common.Address `json:"account"`
	Amount  *uint256.Int   `json:"amount"`
}

// Board is a top-K ranking. It is not safe for concurrent use.
type Board struct {
	size    int
	entries []Entry
}

// New creates an empty board holding at most size entries.
func New(size int) *Board {
	if size <= 0 {
		size = DefaultSize
	}
	return &Board{size: size, entries: make([]Entry, 0, size)}
}

// Restore rebuilds a board from persisted entries. Entries beyond size are
// dropped from the low end after sorting.
func Restore(size int, entries []Entry) *Board {
	b := New(size)
	for _, e := range entries {
		b.entries = append(b.entries, Entry{Account: e.Account, Amount: types.Clone(e.Amount)})
	}
	b.sort()
	if over := len(b.entries) - b.size; over > 0 {
		b.entries = b.entries[over:]
	}
	return b
}

// Upsert records an account's cumulative amount and reports whether the
// board changed.
func (b *Board) Upsert(account common.Address, amount *uint256.Int) bool {
	if i := b.index(account); i >= 0 {
		b.entries[i].Amount = amount.Clone()
		b.sort()
		return true
	}

	switch {
	case len(b.entries) < b.size:
		b.entries = append(b.entries, Entry{Account: account, Amount: amount.Clone()})
	case amount.Gt(b.entries[0].Amount):
		b.entries[0] = Entry{Account: account, Amount: amount.Clone()}
	default:
		return false
	}
	b.sort()
	return true
}

// Range returns the inclusive slice [start, end].
func (b *Board) Range(start, end int) ([]Entry, error) {
	if err := types.CheckRange(start, end, len(b.entries)); err != nil {
		return nil, err
	}
	return cloneEntries(b.entries[start : end+1]), nil
}

// Entries returns a copy of the whole board, ascending.
func (b *Board) Entries() []Entry { return cloneEntries(b.entries) }

// Len returns the number of ranked accounts.
func (b *Board) Len() int { return len(b.entries) }

// Size returns the board capacity.
func (b *Board) Size() int { return b.size }

// Min returns the current eviction candidate, if any.
func (b *Board) Min() (Entry, bool) {
	if len(b.entries) == 0 {
		return Entry{}, false
	}
	e := b.entries[0]
	return Entry{Account: e.Account, Amount: e.Amount.Clone()}, true
}

// Clone returns an independent copy.
func (b *Board) Clone() *Board {
	c := New(b.size)
	c.entries = append(c.entries, cloneEntries(b.entries)...)
	return c
}

func (b *Board) index(account common.Address) int {
	return slices.IndexFunc(b.entries, func(e Entry) bool { return e.Account == account })
}

func (b *Board) sort() {
	slices.SortStableFunc(b.entries, func(x, y Entry) int { return x.Amount.Cmp(y.Amount) })
}

func cloneEntries(in []Entry) []Entry {
	out := make([]Entry, len(in))
	for i, e := range in {
		out[i] = Entry{Account: e.Account, Amount: e.Amount.Clone()}
	}
	return out
}
