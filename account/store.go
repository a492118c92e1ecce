package account

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Store persists accounts and their histories. Accounts are saved as
// summaries without histories; histories are append-only.
type Store interface {
	SaveAccount(ctx context.Context, a *Account) error
	GetAccount(ctx context.Context, addr common.Address) (*Account, error)
	// DeleteAccount removes an account summary. It is only used to undo
	// an account created by a failed purchase, so the account never has
	// history rows. Returns ErrAccountNotFound when absent.
	DeleteAccount(ctx context.Context, addr common.Address) error
	ListAccounts(ctx context.Context, opts ListOpts) ([]*Account, error)
	AppendDeposit(ctx context.Context, d *Deposit) error
	ListDeposits(ctx context.Context, addr common.Address, opts ListOpts) ([]*Deposit, error)
	AppendWithdrawal(ctx context.Context, w *Withdrawal) error
	ListWithdrawals(ctx context.Context, addr common.Address, opts ListOpts) ([]*Withdrawal, error)
}
