package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/xraph/presale/account"
)

// DefaultTimeout bounds a single hook call.
const DefaultTimeout = 5 * time.Second

// Registry manages registered plugins. Hook implementations are cached per
// interface at registration so dispatch never type-asserts.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	onInit             []OnInit
	onShutdown         []OnShutdown
	onPurchase         []OnPurchase
	onPurchaseFailed   []OnPurchaseFailed
	onReferralCredited []OnReferralCredited
	onBonusCredited    []OnBonusCredited
	onStageAdvanced    []OnStageAdvanced
	onSaleOpened       []OnSaleOpened
	onSaleClosed       []OnSaleClosed
	onClaimsOpened     []OnClaimsOpened
	onClaim            []OnClaim
	onFundsWithdrawn   []OnFundsWithdrawn
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{logger: slog.Default(), timeout: DefaultTimeout}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook deadline.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	r.timeout = d
	return r
}

// Register adds a plugin and caches the hooks it implements.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}
	r.plugins = append(r.plugins, p)

	var hooks []string
	cache := func(name string, ok bool) {
		if ok {
			hooks = append(hooks, name)
		}
	}
	cache("OnInit", appendIf(&r.onInit, p))
	cache("OnShutdown", appendIf(&r.onShutdown, p))
	cache("OnPurchase", appendIf(&r.onPurchase, p))
	cache("OnPurchaseFailed", appendIf(&r.onPurchaseFailed, p))
	cache("OnReferralCredited", appendIf(&r.onReferralCredited, p))
	cache("OnBonusCredited", appendIf(&r.onBonusCredited, p))
	cache("OnStageAdvanced", appendIf(&r.onStageAdvanced, p))
	cache("OnSaleOpened", appendIf(&r.onSaleOpened, p))
	cache("OnSaleClosed", appendIf(&r.onSaleClosed, p))
	cache("OnClaimsOpened", appendIf(&r.onClaimsOpened, p))
	cache("OnClaim", appendIf(&r.onClaim, p))
	cache("OnFundsWithdrawn", appendIf(&r.onFundsWithdrawn, p))

	r.logger.Info("plugin registered", "name", p.Name(), "hooks", hooks)
	return nil
}

func appendIf[T Plugin](list *[]T, p Plugin) bool {
	v, ok := p.(T)
	if ok {
		*list = append(*list, v)
	}
	return ok
}

// Get returns a plugin by name, or nil.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission
// ──────────────────────────────────────────────────

// dispatch calls fn for every hook in list. Failures are logged and never
// propagate to the engine.
func dispatch[T Plugin](ctx context.Context, r *Registry, hook string, list *[]T, fn func(T) error) {
	r.mu.RLock()
	plugins := *list
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error { return fn(p) }); err != nil {
			r.logger.Warn("plugin "+hook+" failed", "plugin", p.Name(), "error", err)
		}
	}
}

func (r *Registry) EmitInit(ctx context.Context, engine any) {
	dispatch(ctx, r, "OnInit", &r.onInit, func(p OnInit) error { return p.OnInit(ctx, engine) })
}

func (r *Registry) EmitShutdown(ctx context.Context) {
	dispatch(ctx, r, "OnShutdown", &r.onShutdown, func(p OnShutdown) error { return p.OnShutdown(ctx) })
}

func (r *Registry) EmitPurchase(ctx context.Context, d *account.Deposit) {
	dispatch(ctx, r, "OnPurchase", &r.onPurchase, func(p OnPurchase) error { return p.OnPurchase(ctx, d) })
}

func (r *Registry) EmitPurchaseFailed(ctx context.Context, buyer common.Address, cause error) {
	dispatch(ctx, r, "OnPurchaseFailed", &r.onPurchaseFailed, func(p OnPurchaseFailed) error {
		return p.OnPurchaseFailed(ctx, buyer, cause)
	})
}

func (r *Registry) EmitReferralCredited(ctx context.Context, sponsor, buyer common.Address, tokens *uint256.Int) {
	dispatch(ctx, r, "OnReferralCredited", &r.onReferralCredited, func(p OnReferralCredited) error {
		return p.OnReferralCredited(ctx, sponsor, buyer, tokens)
	})
}

func (r *Registry) EmitBonusCredited(ctx context.Context, buyer common.Address, bps uint64, tokens *uint256.Int) {
	dispatch(ctx, r, "OnBonusCredited", &r.onBonusCredited, func(p OnBonusCredited) error {
		return p.OnBonusCredited(ctx, buyer, bps, tokens)
	})
}

func (r *Registry) EmitStageAdvanced(ctx context.Context, from, to int, exhausted bool) {
	dispatch(ctx, r, "OnStageAdvanced", &r.onStageAdvanced, func(p OnStageAdvanced) error {
		return p.OnStageAdvanced(ctx, from, to, exhausted)
	})
}

func (r *Registry) EmitSaleOpened(ctx context.Context) {
	dispatch(ctx, r, "OnSaleOpened", &r.onSaleOpened, func(p OnSaleOpened) error { return p.OnSaleOpened(ctx) })
}

func (r *Registry) EmitSaleClosed(ctx context.Context, reason string) {
	dispatch(ctx, r, "OnSaleClosed", &r.onSaleClosed, func(p OnSaleClosed) error { return p.OnSaleClosed(ctx, reason) })
}

func (r *Registry) EmitClaimsOpened(ctx context.Context, start time.Time, swept *uint256.Int) {
	dispatch(ctx, r, "OnClaimsOpened", &r.onClaimsOpened, func(p OnClaimsOpened) error {
		return p.OnClaimsOpened(ctx, start, swept)
	})
}

func (r *Registry) EmitClaim(ctx context.Context, w *account.Withdrawal) {
	dispatch(ctx, r, "OnClaim", &r.onClaim, func(p OnClaim) error { return p.OnClaim(ctx, w) })
}

func (r *Registry) EmitFundsWithdrawn(ctx context.Context, currency string, to common.Address, amount *uint256.Int) {
	dispatch(ctx, r, "OnFundsWithdrawn", &r.onFundsWithdrawn, func(p OnFundsWithdrawn) error {
		return p.OnFundsWithdrawn(ctx, currency, to, amount)
	})
}

// callWithTimeout runs fn with a deadline so a slow plugin never stalls the
// engine.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
