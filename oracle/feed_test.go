package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/holiman/uint256"
)

func TestCheckFresh(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		updated time.Time
		stale   bool
	}{
		{"just updated", now, false},
		{"exactly at bound", now.Add(-DefaultMaxAge), false},
		{"one second past bound", now.Add(-DefaultMaxAge - time.Second), true},
		{"a day old", now.Add(-24 * time.Hour), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckFresh(Price{Value: uint256.NewInt(1), UpdatedAt: tt.updated}, now, DefaultMaxAge)
			if got := errors.Is(err, ErrStale); got != tt.stale {
				t.Errorf("stale = %v, want %v (err=%v)", got, tt.stale, err)
			}
		})
	}
}

func TestStatic(t *testing.T) {
	s := NewStatic(Price{})
	if _, err := s.LatestPrice(context.Background()); err == nil {
		t.Error("expected error before a price is set")
	}
	at := time.Unix(100, 0)
	s.Set(Price{Value: uint256.NewInt(2500_00000000), Decimals: 8, UpdatedAt: at})
	p, err := s.LatestPrice(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if p.Value.Uint64() != 2500_00000000 || !p.UpdatedAt.Equal(at) {
		t.Errorf("price = %+v", p)
	}
}
