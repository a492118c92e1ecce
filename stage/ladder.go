// Package stage implements the presale price ladder: a fixed sequence of
// token tranches sold in order, each at its own price.
package stage

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/xraph/presale/types"
)

var (
	// ErrInsufficientAllocation is returned when a purchase asks for more
	// tokens than the active stage has left.
	ErrInsufficientAllocation = errors.New("insufficient stage allocation")

	// ErrRegression is returned when a manual stage move would go backwards.
	ErrRegression = errors.New("stage index cannot decrease")

	// ErrUnknownStage is returned for an index outside the ladder.
	ErrUnknownStage = errors.New("unknown stage index")
)

// Stage is one tranche of the ladder.
type Stage struct {
	Remaining *uint256.Int `json:"remaining"`
	Price     *uint256.Int `json:"price"`
}

// Advance describes what a consume did to the active stage.
type Advance struct {
	From      int  `json:"from"`
	To        int  `json:"to"`
	Exhausted bool `json:"exhausted"` // the last stage sold out
}

// Moved reports whether the consume changed the active stage or closed
// the ladder.
func (a Advance) Moved() bool { return a.From != a.To || a.Exhausted }

// Ladder holds the stages and the active index. It is not safe for
// concurrent use; the engine serializes access.
type Ladder struct {
	stages    []Stage
	active    int
	exhausted bool
	dust      *uint256.Int
}

// NewLadder builds a ladder starting at stage 0. Remaining allocations
// and prices are copied.
func NewLadder(stages []Stage) (*Ladder, error) {
	return Restore(stages, 0, false)
}

// Restore rebuilds a ladder from persisted state.
func Restore(stages []Stage, active int, exhausted bool) (*Ladder, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("stage: ladder needs at least one stage")
	}
	if active < 0 || active >= len(stages) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStage, active)
	}
	l := &Ladder{
		stages:    make([]Stage, len(stages)),
		active:    active,
		exhausted: exhausted,
		dust:      types.One(),
	}
	for i, s := range stages {
		if s.Price == nil || s.Price.IsZero() {
			return nil, fmt.Errorf("stage: stage %d has zero price", i)
		}
		l.stages[i] = Stage{Remaining: types.Clone(s.Remaining), Price: s.Price.Clone()}
	}
	return l, nil
}

// Active returns the active stage index.
func (l *Ladder) Active() int { return l.active }

// Exhausted reports whether the last stage has sold out.
func (l *Ladder) Exhausted() bool { return l.exhausted }

// Len returns the number of stages.
func (l *Ladder) Len() int { return len(l.stages) }

// CurrentPrice returns the price of the active stage.
func (l *Ladder) CurrentPrice() *uint256.Int {
	return l.stages[l.active].Price.Clone()
}

// Remaining returns the unsold allocation of the active stage.
func (l *Ladder) Remaining() *uint256.Int {
	return l.stages[l.active].Remaining.Clone()
}

// CanConsume checks the allocation precondition without mutating.
func (l *Ladder) CanConsume(tokens *uint256.Int) error {
	if tokens.Gt(l.stages[l.active].Remaining) {
		return fmt.Errorf("%w: stage %d has %s, requested %s",
			ErrInsufficientAllocation, l.active, l.stages[l.active].Remaining.Dec(), tokens.Dec())
	}
	return nil
}

// Consume removes tokens from the active stage. When less than one whole
// token remains the ladder advances; on the last stage it reports
// Exhausted instead.
func (l *Ladder) Consume(tokens *uint256.Int) (Advance, error) {
	adv := Advance{From: l.active, To: l.active}
	if err := l.CanConsume(tokens); err != nil {
		return adv, err
	}

	s := &l.stages[l.active]
	s.Remaining = new(uint256.Int).Sub(s.Remaining, tokens)
	if s.Remaining.Lt(l.dust) {
		if l.active == len(l.stages)-1 {
			l.exhausted = true
			adv.Exhausted = true
		} else {
			l.active++
			adv.To = l.active
		}
	}
	return adv, nil
}

// SetActive moves the ladder to stage i. Moving backwards is rejected.
func (l *Ladder) SetActive(i int) error {
	if i < 0 || i >= len(l.stages) {
		return fmt.Errorf("%w: %d", ErrUnknownStage, i)
	}
	if i < l.active {
		return fmt.Errorf("%w: %d -> %d", ErrRegression, l.active, i)
	}
	l.active = i
	return nil
}

// Stages returns a copy of every stage.
func (l *Ladder) Stages() []Stage {
	out := make([]Stage, len(l.stages))
	for i, s := range l.stages {
		out[i] = Stage{Remaining: s.Remaining.Clone(), Price: s.Price.Clone()}
	}
	return out
}

// Clone returns an independent copy.
func (l *Ladder) Clone() *Ladder {
	return &Ladder{
		stages:    l.Stages(),
		active:    l.active,
		exhausted: l.exhausted,
		dust:      l.dust,
	}
}
