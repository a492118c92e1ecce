package presale

import (
	"errors"
	"fmt"

	"github.com/xraph/presale/oracle"
	"github.com/xraph/presale/referral"
	"github.com/xraph/presale/stage"
	"github.com/xraph/presale/types"
)

// Sentinel errors. Leaf packages own some of them; they are re-exported
// here so callers only import this package.
var (
	// Phase errors
	ErrSaleNotOpen       = errors.New("presale: sale not open")
	ErrSaleStillOpen     = errors.New("presale: sale still open")
	ErrSaleFinalized     = errors.New("presale: sale cannot reopen once claims are open")
	ErrClaimsNotOpen     = errors.New("presale: claims not open")
	ErrClaimsAlreadyOpen = errors.New("presale: claims already open")

	// Purchase errors
	ErrZeroTokenAmount                = errors.New("presale: zero token amount")
	ErrInsufficientStageAllocation    = stage.ErrInsufficientAllocation
	ErrStageRegression                = stage.ErrRegression
	ErrUnknownStage                   = stage.ErrUnknownStage
	ErrSelfReferral                   = referral.ErrSelfReferral
	ErrStaleOracleData                = oracle.ErrStale
	ErrInsufficientBalanceOrAllowance = errors.New("presale: insufficient balance or allowance")
	ErrUnsupportedCurrency            = errors.New("presale: unsupported currency")

	// Claim and payout errors
	ErrNothingToClaim            = errors.New("presale: nothing to claim")
	ErrInsufficientPayoutBalance = errors.New("presale: payout balance below claimable tokens")
	ErrNoFunds                   = errors.New("presale: no collected funds")
	ErrNoPayoutToken             = errors.New("presale: payout token not configured")
	ErrReentrantCall             = errors.New("presale: reentrant call")
	ErrTransferFailed            = errors.New("presale: token transfer failed")

	// Query errors
	ErrOutOfRange      = types.ErrOutOfRange
	ErrAccountNotFound = errors.New("presale: account not found")

	// Store errors
	ErrSaleStateNotFound = errors.New("presale: sale state not found")
	ErrAlreadyExists     = errors.New("presale: already exists")
	ErrStoreClosed       = errors.New("presale: store is closed")
	ErrTransactionFailed = errors.New("presale: transaction failed")

	// Configuration errors
	ErrInvalidConfig = errors.New("presale: invalid configuration")
	ErrNotStarted    = errors.New("presale: engine not started")
)

// ValidationError reports an invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("presale: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidConfig.
func (e ValidationError) Unwrap() error { return ErrInvalidConfig }

var preconditions = []error{
	ErrSaleNotOpen, ErrSaleStillOpen, ErrSaleFinalized, ErrClaimsNotOpen, ErrClaimsAlreadyOpen,
	ErrZeroTokenAmount, ErrInsufficientStageAllocation, ErrStageRegression, ErrUnknownStage,
	ErrSelfReferral, ErrStaleOracleData, ErrInsufficientBalanceOrAllowance, ErrUnsupportedCurrency,
	ErrNothingToClaim, ErrInsufficientPayoutBalance, ErrNoFunds, ErrOutOfRange,
	ErrReentrantCall, ErrInvalidConfig,
}

// IsPrecondition reports whether err is a caller-side rejection rather
// than an infrastructure failure. Such calls left state unchanged.
func IsPrecondition(err error) bool {
	for _, target := range preconditions {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsNotFound reports whether err is a lookup miss.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) || errors.Is(err, ErrSaleStateNotFound)
}
