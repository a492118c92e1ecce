// Package audithook bridges presale events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on
// any particular audit system. Callers inject a RecorderFunc adapter at
// wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/xraph/presale"
	"github.com/xraph/presale/account"
	"github.com/xraph/presale/plugin"
	"github.com/xraph/presale/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin             = (*Extension)(nil)
	_ plugin.OnPurchase         = (*Extension)(nil)
	_ plugin.OnPurchaseFailed   = (*Extension)(nil)
	_ plugin.OnReferralCredited = (*Extension)(nil)
	_ plugin.OnBonusCredited    = (*Extension)(nil)
	_ plugin.OnStageAdvanced    = (*Extension)(nil)
	_ plugin.OnSaleOpened       = (*Extension)(nil)
	_ plugin.OnSaleClosed       = (*Extension)(nil)
	_ plugin.OnClaimsOpened     = (*Extension)(nil)
	_ plugin.OnClaim            = (*Extension)(nil)
	_ plugin.OnFundsWithdrawn   = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one audit trail entry. Amounts in Metadata are decimal
// strings with 18 fractional digits.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension records presale events through a Recorder.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through r.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Purchase hooks
// ──────────────────────────────────────────────────

// OnPurchase implements plugin.OnPurchase.
func (e *Extension) OnPurchase(ctx context.Context, d *account.Deposit) error {
	return e.record(ctx, ActionPurchaseRecorded, SeverityInfo, OutcomeSuccess,
		ResourceDeposit, d.ID.String(), CategoryPurchase, nil,
		"account", d.Account.Hex(),
		"payer", d.Payer.Hex(),
		"currency", d.Currency,
		"amount", d.Amount.Dec(),
		"usd", amount(d.USD),
		"tokens", amount(d.Tokens),
		"stage", d.Stage,
	)
}

// OnPurchaseFailed implements plugin.OnPurchaseFailed. Rejected orders
// are warnings; store and transfer failures are errors.
func (e *Extension) OnPurchaseFailed(ctx context.Context, buyer common.Address, cause error) error {
	severity := SeverityWarning
	if !presale.IsPrecondition(cause) {
		severity = SeverityError
	}
	return e.record(ctx, ActionPurchaseFailed, severity, OutcomeFailure,
		ResourceAccount, buyer.Hex(), CategoryPurchase, cause,
	)
}

// OnReferralCredited implements plugin.OnReferralCredited.
func (e *Extension) OnReferralCredited(ctx context.Context, sponsor, buyer common.Address, tokens *uint256.Int) error {
	return e.record(ctx, ActionReferralCredited, SeverityInfo, OutcomeSuccess,
		ResourceAccount, sponsor.Hex(), CategoryReward, nil,
		"buyer", buyer.Hex(),
		"tokens", amount(tokens),
	)
}

// OnBonusCredited implements plugin.OnBonusCredited.
func (e *Extension) OnBonusCredited(ctx context.Context, buyer common.Address, bps uint64, tokens *uint256.Int) error {
	return e.record(ctx, ActionBonusCredited, SeverityInfo, OutcomeSuccess,
		ResourceAccount, buyer.Hex(), CategoryReward, nil,
		"bps", bps,
		"tokens", amount(tokens),
	)
}

// ──────────────────────────────────────────────────
// Phase hooks
// ──────────────────────────────────────────────────

// OnStageAdvanced implements plugin.OnStageAdvanced.
func (e *Extension) OnStageAdvanced(ctx context.Context, from, to int, exhausted bool) error {
	return e.record(ctx, ActionStageAdvanced, SeverityInfo, OutcomeSuccess,
		ResourceStage, strconv.Itoa(to), CategoryAdmin, nil,
		"from", from,
		"to", to,
		"exhausted", exhausted,
	)
}

// OnSaleOpened implements plugin.OnSaleOpened.
func (e *Extension) OnSaleOpened(ctx context.Context) error {
	return e.record(ctx, ActionSaleOpened, SeverityInfo, OutcomeSuccess,
		ResourceSale, "", CategoryAdmin, nil,
	)
}

// OnSaleClosed implements plugin.OnSaleClosed.
func (e *Extension) OnSaleClosed(ctx context.Context, reason string) error {
	return e.record(ctx, ActionSaleClosed, SeverityInfo, OutcomeSuccess,
		ResourceSale, "", CategoryAdmin, nil,
		"reason", reason,
	)
}

// OnClaimsOpened implements plugin.OnClaimsOpened.
func (e *Extension) OnClaimsOpened(ctx context.Context, start time.Time, swept *uint256.Int) error {
	return e.record(ctx, ActionClaimsOpened, SeverityWarning, OutcomeSuccess,
		ResourceSale, "", CategoryAdmin, nil,
		"claim_start", start.Format(time.RFC3339),
		"swept", amount(swept),
	)
}

// OnFundsWithdrawn implements plugin.OnFundsWithdrawn.
func (e *Extension) OnFundsWithdrawn(ctx context.Context, currency string, to common.Address, value *uint256.Int) error {
	return e.record(ctx, ActionFundsWithdrawn, SeverityWarning, OutcomeSuccess,
		ResourceTreasury, to.Hex(), CategoryAdmin, nil,
		"currency", currency,
		"amount", value.Dec(),
	)
}

// ──────────────────────────────────────────────────
// Vesting hooks
// ──────────────────────────────────────────────────

// OnClaim implements plugin.OnClaim.
func (e *Extension) OnClaim(ctx context.Context, w *account.Withdrawal) error {
	return e.record(ctx, ActionClaimPaid, SeverityInfo, OutcomeSuccess,
		ResourceWithdraw, w.ID.String(), CategoryPayout, nil,
		"account", w.Account.Hex(),
		"seq", w.Seq,
		"tokens", amount(w.Amount),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

func amount(x *uint256.Int) string { return types.Format(x, types.Decimals) }

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
