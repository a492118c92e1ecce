package vesting

import (
	"testing"
	"time"

	"github.com/xraph/presale/types"
)

func TestWeeksElapsed(t *testing.T) {
	s := Default()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		now  time.Time
		want uint64
	}{
		{"at start", start, 1},
		{"before start", start.Add(-time.Hour), 1},
		{"just under a week", start.Add(Week - time.Second), 1},
		{"one week", start.Add(Week), 2},
		{"ten weeks minus one day", start.Add(10*Week - 24*time.Hour), 10},
		{"nineteen weeks", start.Add(19 * Week), 20},
		{"far future", start.Add(500 * Week), 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.WeeksElapsed(start, tt.now); got != tt.want {
				t.Errorf("WeeksElapsed = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPendingHalfway(t *testing.T) {
	s := Default()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	total := types.Units(1_000)

	// floor(9.x)+1 = 10 weeks -> 50%.
	now := start.Add(9*Week + time.Hour)
	got := s.Pending(total, types.Zero(), start, now)
	if !got.Eq(types.Units(500)) {
		t.Errorf("Pending = %s, want 500e18", got.Dec())
	}

	// Idempotent without a claim.
	if again := s.Pending(total, types.Zero(), start, now); !again.Eq(got) {
		t.Errorf("Pending not idempotent: %s vs %s", got.Dec(), again.Dec())
	}

	// After claiming 500, nothing until the next boundary.
	if rest := s.Pending(total, types.Units(500), start, now); !rest.IsZero() {
		t.Errorf("Pending after claim = %s, want 0", rest.Dec())
	}
}

func TestPendingFullyVested(t *testing.T) {
	s := Default()
	start := time.Unix(0, 0)
	total := types.Units(777)
	now := start.Add(40 * Week)

	if !s.FullyVested(start, now) {
		t.Fatal("expected full vesting")
	}
	if got := s.Pending(total, types.Zero(), start, now); !got.Eq(total) {
		t.Errorf("Pending = %s, want the full %s", got.Dec(), total.Dec())
	}
	if got := s.Pending(total, total, start, now); !got.IsZero() {
		t.Errorf("Pending after full claim = %s", got.Dec())
	}
}

func TestPendingSaturates(t *testing.T) {
	s := Default()
	start := time.Unix(0, 0)
	got := s.Pending(types.Units(100), types.Units(200), start, start)
	if !got.IsZero() {
		t.Errorf("Pending = %s, want 0 when claimed exceeds unlocked", got.Dec())
	}
	if got := s.Pending(types.Zero(), types.Zero(), start, start); !got.IsZero() {
		t.Error("nothing entitled should be nothing pending")
	}
}
