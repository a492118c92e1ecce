// Package oracle supplies the native-currency USD price used to value
// native payments.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/holiman/uint256"
)

// DefaultMaxAge is the freshness bound for price data.
const DefaultMaxAge = 3 * time.Hour

// ErrStale is returned when the latest price is older than the allowed age.
var ErrStale = errors.New("stale oracle data")

// Price is a USD quote with its own fixed-point precision.
type Price struct {
	Value     *uint256.Int
	Decimals  uint8
	UpdatedAt time.Time
}

// Feed reports the latest native/USD price.
type Feed interface {
	LatestPrice(ctx context.Context) (Price, error)
}

// CheckFresh rejects prices older than maxAge at now.
func CheckFresh(p Price, now time.Time, maxAge time.Duration) error {
	if age := now.Sub(p.UpdatedAt); age > maxAge {
		return fmt.Errorf("%w: last update %s ago exceeds %s", ErrStale, age.Truncate(time.Second), maxAge)
	}
	return nil
}

// Static is a settable in-process feed.
type Static struct {
	mu    sync.RWMutex
	price Price
}

// NewStatic creates a feed that always reports p until Set is called.
func NewStatic(p Price) *Static { return &Static{price: p} }

// Set replaces the reported price.
func (s *Static) Set(p Price) {
	s.mu.Lock()
	s.price = p
	s.mu.Unlock()
}

// LatestPrice implements Feed.
func (s *Static) LatestPrice(context.Context) (Price, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.price.Value == nil {
		return Price{}, errors.New("oracle: no price set")
	}
	return Price{Value: s.price.Value.Clone(), Decimals: s.price.Decimals, UpdatedAt: s.price.UpdatedAt}, nil
}
