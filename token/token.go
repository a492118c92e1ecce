// Package token defines the ERC-20 surface the presale engine consumes:
// stable-value payment tokens it pulls funds from, and the payout token it
// disburses vested tokens with.
package token

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	// ErrInsufficientBalance is returned when a transfer exceeds the
	// sender's balance.
	ErrInsufficientBalance = errors.New("token: insufficient balance")

	// ErrInsufficientAllowance is returned when transferFrom exceeds the
	// approved amount.
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
)

// Token is an ERC-20 client bound to a holder address. Transfer moves
// funds out of the holder; TransferFrom spends an allowance granted to the
// holder.
//
// A transfer is all or nothing: a non-nil error means no balance or
// allowance changed, as when an on-chain call reverts. The engine relies
// on this to undo its own bookkeeping. Implementations must pass ctx
// through to any receiver callback.
type Token interface {
	Holder() common.Address
	BalanceOf(ctx context.Context, owner common.Address) (*uint256.Int, error)
	Allowance(ctx context.Context, owner, spender common.Address) (*uint256.Int, error)
	Transfer(ctx context.Context, to common.Address, amount *uint256.Int) error
	TransferFrom(ctx context.Context, from, to common.Address, amount *uint256.Int) error
}
