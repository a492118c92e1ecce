// Package plugin provides lifecycle and bookkeeping hooks for the presale
// engine. A plugin implements Plugin plus any subset of the hook
// interfaces below; the registry discovers them at registration time.
package plugin

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/xraph/presale/account"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called once the engine has restored its state.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine any) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Purchase hooks
// ──────────────────────────────────────────────────

// OnPurchase is called after a purchase commits.
type OnPurchase interface {
	Plugin
	OnPurchase(ctx context.Context, d *account.Deposit) error
}

// OnPurchaseFailed is called when a purchase is rejected or rolled back.
type OnPurchaseFailed interface {
	Plugin
	OnPurchaseFailed(ctx context.Context, buyer common.Address, err error) error
}

// OnReferralCredited is called when a sponsor earns referral tokens.
type OnReferralCredited interface {
	Plugin
	OnReferralCredited(ctx context.Context, sponsor, buyer common.Address, tokens *uint256.Int) error
}

// OnBonusCredited is called when a buyer earns tier bonus tokens.
type OnBonusCredited interface {
	Plugin
	OnBonusCredited(ctx context.Context, buyer common.Address, bps uint64, tokens *uint256.Int) error
}

// OnStageAdvanced is called when the active stage changes or the last
// stage sells out.
type OnStageAdvanced interface {
	Plugin
	OnStageAdvanced(ctx context.Context, from, to int, exhausted bool) error
}

// ──────────────────────────────────────────────────
// Phase hooks
// ──────────────────────────────────────────────────

// OnSaleOpened is called when the sale opens.
type OnSaleOpened interface {
	Plugin
	OnSaleOpened(ctx context.Context) error
}

// OnSaleClosed is called when the sale closes, manually or by selling out.
type OnSaleClosed interface {
	Plugin
	OnSaleClosed(ctx context.Context, reason string) error
}

// OnClaimsOpened is called when vesting starts.
type OnClaimsOpened interface {
	Plugin
	OnClaimsOpened(ctx context.Context, start time.Time, swept *uint256.Int) error
}

// OnClaim is called after a vesting payout.
type OnClaim interface {
	Plugin
	OnClaim(ctx context.Context, w *account.Withdrawal) error
}

// OnFundsWithdrawn is called after collected funds leave the engine.
type OnFundsWithdrawn interface {
	Plugin
	OnFundsWithdrawn(ctx context.Context, currency string, to common.Address, amount *uint256.Int) error
}
