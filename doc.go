// Package presale is the accounting core of a staged token presale.
//
// Presale is a library, not a service. It keeps every ledger in memory
// behind a single writer lock, writes through to a pluggable store and
// reloads from it on Start. It provides:
//
//   - A ten-stage price ladder that advances automatically as stages sell out
//   - One-level referral codes with a fixed sponsor credit on every purchase
//   - Cumulative spend bonus tiers
//   - A bounded top-N leaderboard of payers by USD spent
//   - Linear weekly vesting with idempotent claims
//   - Oracle-priced native payments and pull-based stablecoin payments
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/presale"
//	    "github.com/xraph/presale/store/memory"
//	)
//
//	engine, err := presale.New(memory.New(), presale.DefaultConfig(),
//	    presale.WithOracle(feed),
//	    presale.WithPayoutToken(saleToken),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := engine.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Stop(ctx)
//
//	_ = engine.OpenSale(ctx)
//	receipt, err := engine.BuyWithNative(ctx, buyer, value, "")
//
// # Amounts
//
// Every amount is a *uint256.Int. USD values, prices and token amounts
// carry 18 decimals; raw payments keep the paying currency's precision.
// Intermediate products use a 512-bit multiply-divide so nothing
// overflows before the final division.
//
// # Atomicity
//
// Each mutating call snapshots what it may touch. A failed precondition
// returns before anything changes; a failure after that point, including
// a store or transfer failure, restores the snapshot. Plugin hooks run
// after the lock is released.
//
// # Phases
//
// The sale starts closed. OpenSale and CloseSale toggle it until either
// the last stage sells out or OpenClaims is called. OpenClaims is one-way:
// the sale never reopens and vesting starts at that instant.
//
// # Stores
//
// Backends live under store/: memory for tests, sqlite and postgres and
// mongo through grove, and kv over gokv (sync.Map, file or BadgerDB).
package presale
