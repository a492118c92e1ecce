// Package memtoken is an in-memory ERC-20 ledger. It backs tests and
// local simulations of stable-coin payments and vested payouts.
package memtoken

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/xraph/presale/token"
	"github.com/xraph/presale/types"
)

// TransferHook runs after the balances move, outside the ledger lock, like
// a receiver callback. Returning an error reverts the transfer and the
// caller sees the error.
type TransferHook func(ctx context.Context, from, to common.Address, amount *uint256.Int) error

type allowanceKey struct{ owner, spender common.Address }

// Ledger holds balances and allowances for one token.
type Ledger struct {
	mu         sync.Mutex
	symbol     string
	decimals   uint8
	balances   map[common.Address]*uint256.Int
	allowances map[allowanceKey]*uint256.Int
	hook       TransferHook
}

// New creates an empty token ledger.
func New(symbol string, decimals uint8) *Ledger {
	return &Ledger{
		symbol:     symbol,
		decimals:   decimals,
		balances:   make(map[common.Address]*uint256.Int),
		allowances: make(map[allowanceKey]*uint256.Int),
	}
}

// Symbol returns the token symbol.
func (l *Ledger) Symbol() string { return l.symbol }

// Decimals returns the token precision.
func (l *Ledger) Decimals() uint8 { return l.decimals }

// OnTransfer installs a hook called after each successful transfer.
func (l *Ledger) OnTransfer(h TransferHook) {
	l.mu.Lock()
	l.hook = h
	l.mu.Unlock()
}

// Mint credits amount to owner.
func (l *Ledger) Mint(owner common.Address, amount *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[owner] = new(uint256.Int).Add(l.balance(owner), amount)
}

// Approve sets spender's allowance over owner's funds.
func (l *Ledger) Approve(owner, spender common.Address, amount *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowances[allowanceKey{owner, spender}] = amount.Clone()
}

// Balance returns owner's balance.
func (l *Ledger) Balance(owner common.Address) *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance(owner).Clone()
}

// Bind returns a token client acting as holder.
func (l *Ledger) Bind(holder common.Address) token.Token {
	return &client{ledger: l, holder: holder}
}

func (l *Ledger) balance(owner common.Address) *uint256.Int {
	if b, ok := l.balances[owner]; ok {
		return b
	}
	return types.Zero()
}

func (l *Ledger) move(ctx context.Context, from, to common.Address, amount *uint256.Int, spender *common.Address) error {
	l.mu.Lock()
	bal := l.balance(from)
	if bal.Lt(amount) {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s has %s %s, needs %s", token.ErrInsufficientBalance,
			from.Hex(), types.Format(bal, l.decimals), l.symbol, types.Format(amount, l.decimals))
	}
	if spender != nil {
		key := allowanceKey{from, *spender}
		allowed, ok := l.allowances[key]
		if !ok || allowed.Lt(amount) {
			l.mu.Unlock()
			return fmt.Errorf("%w: %s approved for %s", token.ErrInsufficientAllowance, spender.Hex(), from.Hex())
		}
		l.allowances[key] = new(uint256.Int).Sub(allowed, amount)
	}
	l.balances[from] = new(uint256.Int).Sub(bal, amount)
	l.balances[to] = new(uint256.Int).Add(l.balance(to), amount)
	hook := l.hook
	l.mu.Unlock()

	if hook == nil {
		return nil
	}
	if err := hook(ctx, from, to, amount); err != nil {
		if rerr := l.revert(from, to, amount, spender); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}
	return nil
}

// revert undoes a move whose hook failed. It fails only if the receiver
// spent the funds from inside the hook.
func (l *Ledger) revert(from, to common.Address, amount *uint256.Int, spender *common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	got := l.balance(to)
	if got.Lt(amount) {
		return fmt.Errorf("memtoken: cannot revert %s %s to %s: receiver holds %s",
			types.Format(amount, l.decimals), l.symbol, from.Hex(), types.Format(got, l.decimals))
	}
	l.balances[to] = new(uint256.Int).Sub(got, amount)
	l.balances[from] = new(uint256.Int).Add(l.balance(from), amount)
	if spender != nil {
		key := allowanceKey{from, *spender}
		l.allowances[key] = new(uint256.Int).Add(l.allowanceOf(key), amount)
	}
	return nil
}

func (l *Ledger) allowanceOf(key allowanceKey) *uint256.Int {
	if a, ok := l.allowances[key]; ok {
		return a
	}
	return types.Zero()
}

type client struct {
	ledger *Ledger
	holder common.Address
}

func (c *client) Holder() common.Address { return c.holder }

func (c *client) BalanceOf(_ context.Context, owner common.Address) (*uint256.Int, error) {
	return c.ledger.Balance(owner), nil
}

func (c *client) Allowance(_ context.Context, owner, spender common.Address) (*uint256.Int, error) {
	c.ledger.mu.Lock()
	defer c.ledger.mu.Unlock()
	if a, ok := c.ledger.allowances[allowanceKey{owner, spender}]; ok {
		return a.Clone(), nil
	}
	return types.Zero(), nil
}

func (c *client) Transfer(ctx context.Context, to common.Address, amount *uint256.Int) error {
	return c.ledger.move(ctx, c.holder, to, amount, nil)
}

func (c *client) TransferFrom(ctx context.Context, from, to common.Address, amount *uint256.Int) error {
	return c.ledger.move(ctx, from, to, amount, &c.holder)
}
