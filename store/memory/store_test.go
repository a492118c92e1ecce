package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/presale"
	"github.com/xraph/presale/account"
	"github.com/xraph/presale/store"
	"github.com/xraph/presale/store/memory"
	"github.com/xraph/presale/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return memory.New() })
}

func TestCloseAndReopen(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	if err := s.SaveAccount(ctx, account.New(addr, time.Now())); err != nil {
		t.Fatalf("SaveAccount: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Ping(ctx); !errors.Is(err, presale.ErrStoreClosed) {
		t.Errorf("Ping after Close: got %v, want ErrStoreClosed", err)
	}
	if _, err := s.GetAccount(ctx, addr); !errors.Is(err, presale.ErrStoreClosed) {
		t.Errorf("GetAccount after Close: got %v, want ErrStoreClosed", err)
	}

	s.Reopen()
	if _, err := s.GetAccount(ctx, addr); err != nil {
		t.Errorf("GetAccount after Reopen: %v", err)
	}
}

func TestSaveAccountDropsHistories(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	addr := common.HexToAddress("0x2222222222222222222222222222222222222222")
	a := account.New(addr, time.Now())
	a.Deposits = []account.Deposit{{Account: addr}}
	if err := s.SaveAccount(ctx, a); err != nil {
		t.Fatalf("SaveAccount: %v", err)
	}
	got, err := s.GetAccount(ctx, addr)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if len(got.Deposits) != 0 {
		t.Errorf("stored account kept %d deposits, want 0", len(got.Deposits))
	}
}
