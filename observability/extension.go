// Package observability provides a metrics plugin for the presale engine
// that records event counts and amounts through a MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/xraph/presale/account"
	"github.com/xraph/presale/plugin"
	"github.com/xraph/presale/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin             = (*MetricsExtension)(nil)
	_ plugin.OnInit             = (*MetricsExtension)(nil)
	_ plugin.OnPurchase         = (*MetricsExtension)(nil)
	_ plugin.OnPurchaseFailed   = (*MetricsExtension)(nil)
	_ plugin.OnReferralCredited = (*MetricsExtension)(nil)
	_ plugin.OnBonusCredited    = (*MetricsExtension)(nil)
	_ plugin.OnStageAdvanced    = (*MetricsExtension)(nil)
	_ plugin.OnSaleOpened       = (*MetricsExtension)(nil)
	_ plugin.OnSaleClosed       = (*MetricsExtension)(nil)
	_ plugin.OnClaimsOpened     = (*MetricsExtension)(nil)
	_ plugin.OnClaim            = (*MetricsExtension)(nil)
	_ plugin.OnFundsWithdrawn   = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records presale metrics. Token and USD amounts are
// observed as float64 whole units.
type MetricsExtension struct {
	factory MetricFactory

	// Purchase metrics
	Purchases       Counter
	PurchaseFailed  Counter
	PurchaseUSD     Histogram
	PurchaseTokens  Histogram
	TokensSold      Counter
	ReferralCredits Counter
	ReferralTokens  Counter
	BonusCredits    Counter
	BonusTokens     Counter

	// Phase metrics
	StageAdvances Counter
	SaleOpened    Counter
	SaleClosed    Counter
	ClaimsOpened  Counter

	// Payout metrics
	Claims          Counter
	TokensClaimed   Counter
	FundsWithdrawn  Counter
	SweptTokens     Counter
	ClaimsOpenDelay Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided
// MetricFactory. Use NewPrometheusFactory outside of forge.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		Purchases:       factory.Counter("presale.purchase.count"),
		PurchaseFailed:  factory.Counter("presale.purchase.failed"),
		PurchaseUSD:     factory.Histogram("presale.purchase.usd"),
		PurchaseTokens:  factory.Histogram("presale.purchase.tokens"),
		TokensSold:      factory.Counter("presale.tokens.sold"),
		ReferralCredits: factory.Counter("presale.referral.credits"),
		ReferralTokens:  factory.Counter("presale.referral.tokens"),
		BonusCredits:    factory.Counter("presale.bonus.credits"),
		BonusTokens:     factory.Counter("presale.bonus.tokens"),

		StageAdvances: factory.Counter("presale.stage.advances"),
		SaleOpened:    factory.Counter("presale.sale.opened"),
		SaleClosed:    factory.Counter("presale.sale.closed"),
		ClaimsOpened:  factory.Counter("presale.claims.opened"),

		Claims:          factory.Counter("presale.claim.count"),
		TokensClaimed:   factory.Counter("presale.tokens.claimed"),
		FundsWithdrawn:  factory.Counter("presale.funds.withdrawn"),
		SweptTokens:     factory.Counter("presale.tokens.swept"),
		ClaimsOpenDelay: factory.Histogram("presale.claims.open_delay_seconds"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(context.Context, any) error { return nil }

// OnPurchase implements plugin.OnPurchase.
func (m *MetricsExtension) OnPurchase(_ context.Context, d *account.Deposit) error {
	tokens := whole(d.Tokens)
	m.Purchases.Inc()
	m.PurchaseUSD.Observe(whole(d.USD))
	m.PurchaseTokens.Observe(tokens)
	m.TokensSold.Add(tokens)
	return nil
}

// OnPurchaseFailed implements plugin.OnPurchaseFailed.
func (m *MetricsExtension) OnPurchaseFailed(context.Context, common.Address, error) error {
	m.PurchaseFailed.Inc()
	return nil
}

// OnReferralCredited implements plugin.OnReferralCredited.
func (m *MetricsExtension) OnReferralCredited(_ context.Context, _, _ common.Address, tokens *uint256.Int) error {
	m.ReferralCredits.Inc()
	m.ReferralTokens.Add(whole(tokens))
	return nil
}

// OnBonusCredited implements plugin.OnBonusCredited.
func (m *MetricsExtension) OnBonusCredited(_ context.Context, _ common.Address, _ uint64, tokens *uint256.Int) error {
	m.BonusCredits.Inc()
	m.BonusTokens.Add(whole(tokens))
	return nil
}

// OnStageAdvanced implements plugin.OnStageAdvanced.
func (m *MetricsExtension) OnStageAdvanced(context.Context, int, int, bool) error {
	m.StageAdvances.Inc()
	return nil
}

// OnSaleOpened implements plugin.OnSaleOpened.
func (m *MetricsExtension) OnSaleOpened(context.Context) error {
	m.SaleOpened.Inc()
	return nil
}

// OnSaleClosed implements plugin.OnSaleClosed.
func (m *MetricsExtension) OnSaleClosed(context.Context, string) error {
	m.SaleClosed.Inc()
	return nil
}

// OnClaimsOpened implements plugin.OnClaimsOpened.
func (m *MetricsExtension) OnClaimsOpened(_ context.Context, start time.Time, swept *uint256.Int) error {
	m.ClaimsOpened.Inc()
	m.SweptTokens.Add(whole(swept))
	m.ClaimsOpenDelay.Observe(time.Since(start).Seconds())
	return nil
}

// OnClaim implements plugin.OnClaim.
func (m *MetricsExtension) OnClaim(_ context.Context, w *account.Withdrawal) error {
	m.Claims.Inc()
	m.TokensClaimed.Add(whole(w.Amount))
	return nil
}

// OnFundsWithdrawn implements plugin.OnFundsWithdrawn.
func (m *MetricsExtension) OnFundsWithdrawn(context.Context, string, common.Address, *uint256.Int) error {
	m.FundsWithdrawn.Inc()
	return nil
}

// whole converts an 18-decimal amount to a float of whole units.
func whole(x *uint256.Int) float64 {
	if x == nil {
		return 0
	}
	q := new(uint256.Int).Div(x, types.One())
	r := new(uint256.Int).Mod(x, types.One())
	return q.Float64() + r.Float64()/1e18
}
