// Package store defines the aggregate persistence interface for the
// presale engine. Backends live in the subpackages.
package store

import (
	"context"

	"github.com/xraph/presale/account"
	"github.com/xraph/presale/sale"
)

// Store is the persistence contract the engine needs. The engine keeps
// the authoritative state in memory and writes through to the store after
// every committed mutation; Start reloads from it.
type Store interface {
	account.Store
	sale.Store

	// Migrate prepares the backend schema.
	Migrate(ctx context.Context) error
	// Ping checks connectivity.
	Ping(ctx context.Context) error
	// Close releases resources.
	Close() error
}
