package audithook

// Action constants for audit events.
const (
	// Sale phase actions
	ActionSaleOpened     = "sale.opened"
	ActionSaleClosed     = "sale.closed"
	ActionStageAdvanced  = "stage.advanced"
	ActionClaimsOpened   = "claims.opened"
	ActionFundsWithdrawn = "funds.withdrawn"

	// Purchase actions
	ActionPurchaseRecorded = "purchase.recorded"
	ActionPurchaseFailed   = "purchase.failed"
	ActionReferralCredited = "referral.credited"
	ActionBonusCredited    = "bonus.credited"

	// Vesting actions
	ActionClaimPaid = "claim.paid"
)

// Resource constants for audit events.
const (
	ResourceSale     = "sale"
	ResourceStage    = "stage"
	ResourceAccount  = "account"
	ResourceDeposit  = "deposit"
	ResourceWithdraw = "withdrawal"
	ResourceTreasury = "treasury"
)

// Category constants for audit events.
const (
	CategoryAdmin    = "admin"
	CategoryPurchase = "purchase"
	CategoryReward   = "reward"
	CategoryPayout   = "payout"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
