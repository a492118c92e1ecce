package memtoken

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/xraph/presale/token"
	"github.com/xraph/presale/types"
)

var (
	owner   = common.HexToAddress("0x1111")
	spender = common.HexToAddress("0x2222")
	sink    = common.HexToAddress("0x3333")
)

func TestTransfer(t *testing.T) {
	ctx := context.Background()
	l := New("USDT", 6)
	l.Mint(owner, uint256.NewInt(1_000_000))

	tok := l.Bind(owner)
	if err := tok.Transfer(ctx, sink, uint256.NewInt(400_000)); err != nil {
		t.Fatal(err)
	}
	if got := l.Balance(sink); got.Uint64() != 400_000 {
		t.Errorf("sink balance = %d", got.Uint64())
	}
	if got, _ := tok.BalanceOf(ctx, owner); got.Uint64() != 600_000 {
		t.Errorf("owner balance = %d", got.Uint64())
	}

	err := tok.Transfer(ctx, sink, uint256.NewInt(700_000))
	if !errors.Is(err, token.ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestTransferFromSpendsAllowance(t *testing.T) {
	ctx := context.Background()
	l := New("USDC", 6)
	l.Mint(owner, uint256.NewInt(500))
	l.Approve(owner, spender, uint256.NewInt(300))

	tok := l.Bind(spender)
	if err := tok.TransferFrom(ctx, owner, sink, uint256.NewInt(200)); err != nil {
		t.Fatal(err)
	}
	left, _ := tok.Allowance(ctx, owner, spender)
	if left.Uint64() != 100 {
		t.Errorf("allowance = %d, want 100", left.Uint64())
	}

	err := tok.TransferFrom(ctx, owner, sink, uint256.NewInt(200))
	if !errors.Is(err, token.ErrInsufficientAllowance) {
		t.Errorf("expected ErrInsufficientAllowance, got %v", err)
	}
	if got := l.Balance(owner); got.Uint64() != 300 {
		t.Errorf("failed transferFrom moved funds: owner has %d", got.Uint64())
	}
}

func TestTransferHook(t *testing.T) {
	l := New("PRE", types.Decimals)
	l.Mint(owner, types.Units(10))

	var seen *uint256.Int
	l.OnTransfer(func(_ context.Context, from, to common.Address, amount *uint256.Int) error {
		if from != owner || to != sink {
			t.Errorf("hook saw %s -> %s", from.Hex(), to.Hex())
		}
		seen = amount
		return nil
	})

	if err := l.Bind(owner).Transfer(context.Background(), sink, types.Units(3)); err != nil {
		t.Fatal(err)
	}
	if seen == nil || !seen.Eq(types.Units(3)) {
		t.Errorf("hook amount = %v", seen)
	}
}

func TestHookErrorRevertsTransfer(t *testing.T) {
	ctx := context.Background()
	errPaused := errors.New("paused")

	tests := []struct {
		name     string
		transfer func(l *Ledger) error
	}{
		{"transfer", func(l *Ledger) error {
			return l.Bind(owner).Transfer(ctx, sink, uint256.NewInt(400))
		}},
		{"transferFrom", func(l *Ledger) error {
			return l.Bind(spender).TransferFrom(ctx, owner, sink, uint256.NewInt(400))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New("USDT", 6)
			l.Mint(owner, uint256.NewInt(1_000))
			l.Approve(owner, spender, uint256.NewInt(600))
			l.OnTransfer(func(context.Context, common.Address, common.Address, *uint256.Int) error {
				return errPaused
			})

			if err := tt.transfer(l); !errors.Is(err, errPaused) {
				t.Fatalf("expected hook error, got %v", err)
			}
			if got := l.Balance(owner); got.Uint64() != 1_000 {
				t.Errorf("owner balance = %d, want 1000", got.Uint64())
			}
			if got := l.Balance(sink); !got.IsZero() {
				t.Errorf("sink balance = %d, want 0", got.Uint64())
			}
			left, _ := l.Bind(spender).Allowance(ctx, owner, spender)
			if left.Uint64() != 600 {
				t.Errorf("allowance = %d, want 600", left.Uint64())
			}

			l.OnTransfer(nil)
			if err := tt.transfer(l); err != nil {
				t.Fatalf("retry: %v", err)
			}
			if got := l.Balance(sink); got.Uint64() != 400 {
				t.Errorf("sink balance after retry = %d, want 400", got.Uint64())
			}
		})
	}
}

func TestHookSpendingReceivedFundsBlocksRevert(t *testing.T) {
	ctx := context.Background()
	l := New("PRE", 0)
	l.Mint(owner, uint256.NewInt(10))
	errLate := errors.New("late failure")
	l.OnTransfer(func(ctx context.Context, from, to common.Address, amount *uint256.Int) error {
		if to != sink {
			return nil
		}
		if err := l.Bind(sink).Transfer(ctx, spender, amount); err != nil {
			return err
		}
		return errLate
	})

	err := l.Bind(owner).Transfer(ctx, sink, uint256.NewInt(10))
	if !errors.Is(err, errLate) {
		t.Fatalf("expected hook error, got %v", err)
	}
	if got := l.Balance(spender); got.Uint64() != 10 {
		t.Errorf("spender balance = %d, want 10", got.Uint64())
	}
}
