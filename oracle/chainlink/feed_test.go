package chainlink

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/presale/oracle"
)

type fakeAggregator struct {
	parsed    abi.ABI
	answer    *big.Int
	updatedAt int64
	calls     int
}

func newFakeAggregator(t *testing.T, answer int64, updatedAt time.Time) *fakeAggregator {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(AggregatorABI))
	if err != nil {
		t.Fatal(err)
	}
	return &fakeAggregator{parsed: parsed, answer: big.NewInt(answer), updatedAt: updatedAt.Unix()}
}

func (f *fakeAggregator) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls++
	decimals := f.parsed.Methods["decimals"]
	round := f.parsed.Methods["latestRoundData"]
	switch {
	case bytes.Equal(call.Data[:4], decimals.ID):
		return decimals.Outputs.Pack(uint8(8))
	case bytes.Equal(call.Data[:4], round.ID):
		ts := big.NewInt(f.updatedAt)
		return round.Outputs.Pack(big.NewInt(7), f.answer, ts, ts, big.NewInt(7))
	default:
		return nil, errors.New("unknown selector")
	}
}

func TestLatestPrice(t *testing.T) {
	updated := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	agg := newFakeAggregator(t, 3_000_00000000, updated)

	feed, err := New(context.Background(), agg, common.HexToAddress("0xfeed"))
	if err != nil {
		t.Fatal(err)
	}
	if feed.Decimals() != 8 {
		t.Errorf("decimals = %d, want 8", feed.Decimals())
	}

	p, err := feed.LatestPrice(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if p.Value.Uint64() != 3_000_00000000 || p.Decimals != 8 {
		t.Errorf("price = %s (%d decimals)", p.Value.Dec(), p.Decimals)
	}
	if !p.UpdatedAt.Equal(updated) {
		t.Errorf("updatedAt = %v, want %v", p.UpdatedAt, updated)
	}

	if err := oracle.CheckFresh(p, updated.Add(4*time.Hour), oracle.DefaultMaxAge); !errors.Is(err, oracle.ErrStale) {
		t.Errorf("expected stale after 4h, got %v", err)
	}
}

func TestLatestPriceRejectsNegative(t *testing.T) {
	agg := newFakeAggregator(t, -1, time.Now())
	feed, err := New(context.Background(), agg, common.HexToAddress("0xfeed"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := feed.LatestPrice(context.Background()); err == nil {
		t.Error("expected error for negative answer")
	}
}
