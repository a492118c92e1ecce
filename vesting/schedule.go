// Package vesting computes linear, weekly-stepped token release.
package vesting

import (
	"time"

	"github.com/holiman/uint256"

	"github.com/xraph/presale/types"
)

// Week is the default vesting period.
const Week = 7 * 24 * time.Hour

// Schedule releases WeeklyBps of the entitlement per elapsed Period, for
// Weeks periods.
type Schedule struct {
	Weeks     uint64        `json:"weeks"      yaml:"weeks"`
	WeeklyBps uint64        `json:"weekly_bps" yaml:"weekly_bps"`
	Period    time.Duration `json:"period"     yaml:"period"`
}

// Default is 20 weeks at 500 bps.
func Default() Schedule {
	return Schedule{Weeks: 20, WeeklyBps: 500, Period: Week}
}

// WeeksElapsed returns floor((now-start)/Period)+1 clamped to [1, Weeks].
// The first period is unlocked as soon as claiming starts.
func (s Schedule) WeeksElapsed(start, now time.Time) uint64 {
	period := s.Period
	if period <= 0 {
		period = Week
	}
	if now.Before(start) {
		return 1
	}
	weeks := uint64(now.Sub(start)/period) + 1
	return min(max(weeks, 1), s.Weeks)
}

// Unlocked returns total * weeks * WeeklyBps / 10000.
func (s Schedule) Unlocked(total *uint256.Int, weeks uint64) *uint256.Int {
	z, err := types.ApplyBps(total, weeks*s.WeeklyBps)
	if err != nil {
		return types.Zero()
	}
	return z
}

// Pending returns the unlocked amount not yet claimed, never negative.
func (s Schedule) Pending(total, claimed *uint256.Int, start, now time.Time) *uint256.Int {
	if total.IsZero() {
		return types.Zero()
	}
	unlocked := s.Unlocked(total, s.WeeksElapsed(start, now))
	return types.SubSaturating(unlocked, claimed)
}

// FullyVested reports whether every period has elapsed.
func (s Schedule) FullyVested(start, now time.Time) bool {
	return s.WeeksElapsed(start, now) >= s.Weeks
}
