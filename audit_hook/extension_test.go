package audithook

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/presale"
	"github.com/xraph/presale/account"
	"github.com/xraph/presale/id"
	"github.com/xraph/presale/types"
)

type captured struct{ events []*AuditEvent }

func (c *captured) recorder() Recorder {
	return RecorderFunc(func(_ context.Context, evt *AuditEvent) error {
		c.events = append(c.events, evt)
		return nil
	})
}

var buyer = common.HexToAddress("0x00000000000000000000000000000000000a11ce")

func TestOnPurchaseRecordsDeposit(t *testing.T) {
	var c captured
	ext := New(c.recorder())

	d := &account.Deposit{
		ID:       id.NewDepositID(),
		Account:  buyer,
		Payer:    buyer,
		Currency: "USDT",
		Amount:   types.Pow10(8),
		USD:      types.Units(100),
		Tokens:   types.Units(500_000),
	}
	if err := ext.OnPurchase(context.Background(), d); err != nil {
		t.Fatalf("OnPurchase: %v", err)
	}
	if len(c.events) != 1 {
		t.Fatalf("recorded %d events, want 1", len(c.events))
	}
	evt := c.events[0]
	if evt.Action != ActionPurchaseRecorded || evt.ResourceID != d.ID.String() {
		t.Errorf("event = %s %s", evt.Action, evt.ResourceID)
	}
	if got := evt.Metadata["tokens"]; got != "500000" {
		t.Errorf("tokens metadata = %v, want 500000", got)
	}
	if got := evt.Metadata["usd"]; got != "100" {
		t.Errorf("usd metadata = %v, want 100", got)
	}
}

func TestOnPurchaseFailedSeverity(t *testing.T) {
	tests := []struct {
		name     string
		cause    error
		severity string
	}{
		{"rejected order", presale.ErrSaleNotOpen, SeverityWarning},
		{"wrapped rejection", fmt.Errorf("buy: %w", presale.ErrSelfReferral), SeverityWarning},
		{"store failure", fmt.Errorf("%w: disk full", presale.ErrTransactionFailed), SeverityError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c captured
			if err := New(c.recorder()).OnPurchaseFailed(context.Background(), buyer, tt.cause); err != nil {
				t.Fatalf("OnPurchaseFailed: %v", err)
			}
			evt := c.events[0]
			if evt.Severity != tt.severity || evt.Outcome != OutcomeFailure {
				t.Errorf("severity %s outcome %s, want %s failure", evt.Severity, evt.Outcome, tt.severity)
			}
			if evt.Reason != tt.cause.Error() {
				t.Errorf("reason = %q", evt.Reason)
			}
		})
	}
}

func TestActionFilters(t *testing.T) {
	ctx := context.Background()

	var only captured
	ext := New(only.recorder(), WithEnabledActions(ActionSaleOpened))
	_ = ext.OnSaleOpened(ctx)
	_ = ext.OnSaleClosed(ctx, "closed by admin")
	if len(only.events) != 1 || only.events[0].Action != ActionSaleOpened {
		t.Errorf("enabled filter recorded %d events", len(only.events))
	}

	var skip captured
	ext = New(skip.recorder(), WithDisabledActions(ActionStageAdvanced))
	_ = ext.OnStageAdvanced(ctx, 0, 1, false)
	_ = ext.OnClaimsOpened(ctx, time.Now(), types.Zero())
	if len(skip.events) != 1 || skip.events[0].Action != ActionClaimsOpened {
		t.Errorf("disabled filter recorded %v", skip.events)
	}
}

func TestRecorderFailureIsSwallowed(t *testing.T) {
	ext := New(RecorderFunc(func(context.Context, *AuditEvent) error {
		return errors.New("backend down")
	}))
	if err := ext.OnSaleOpened(context.Background()); err != nil {
		t.Errorf("OnSaleOpened returned %v, want nil", err)
	}
}
