// Package chainlink reads prices from a Chainlink aggregator contract over
// JSON-RPC.
package chainlink

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"

	"github.com/xraph/presale/oracle"
)

// AggregatorABI is the subset of AggregatorV3Interface the feed calls.
const AggregatorABI = `[
{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
{"type":"function","name":"latestRoundData","stateMutability":"view","inputs":[],"outputs":[
 {"name":"roundId","type":"uint80"},
 {"name":"answer","type":"int256"},
 {"name":"startedAt","type":"uint256"},
 {"name":"updatedAt","type":"uint256"},
 {"name":"answeredInRound","type":"uint80"}]}
]`

// Caller is the read-only contract call surface of an RPC client.
type Caller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

var _ oracle.Feed = (*Feed)(nil)

// Feed implements oracle.Feed against an aggregator address.
type Feed struct {
	caller   Caller
	address  common.Address
	parsed   abi.ABI
	decimals uint8
}

// Dial connects to rpcURL and binds the aggregator at address.
func Dial(ctx context.Context, rpcURL string, address common.Address) (*Feed, *ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, fmt.Errorf("chainlink: dial %s: %w", rpcURL, err)
	}
	f, err := New(ctx, client, address)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return f, client, nil
}

// New binds an aggregator through caller and reads its decimals once.
func New(ctx context.Context, caller Caller, address common.Address) (*Feed, error) {
	parsed, err := abi.JSON(strings.NewReader(AggregatorABI))
	if err != nil {
		return nil, fmt.Errorf("chainlink: parse abi: %w", err)
	}
	f := &Feed{caller: caller, address: address, parsed: parsed}

	out, err := f.call(ctx, "decimals")
	if err != nil {
		return nil, err
	}
	d, ok := out[0].(uint8)
	if !ok {
		return nil, fmt.Errorf("chainlink: decimals: unexpected %T", out[0])
	}
	f.decimals = d
	return f, nil
}

// Decimals returns the aggregator precision.
func (f *Feed) Decimals() uint8 { return f.decimals }

// LatestPrice implements oracle.Feed.
func (f *Feed) LatestPrice(ctx context.Context) (oracle.Price, error) {
	out, err := f.call(ctx, "latestRoundData")
	if err != nil {
		return oracle.Price{}, err
	}
	if len(out) != 5 {
		return oracle.Price{}, fmt.Errorf("chainlink: latestRoundData: %d outputs", len(out))
	}
	answer, ok := out[1].(*big.Int)
	if !ok || answer.Sign() <= 0 {
		return oracle.Price{}, fmt.Errorf("chainlink: non-positive answer %v", out[1])
	}
	updatedAt, ok := out[3].(*big.Int)
	if !ok {
		return oracle.Price{}, fmt.Errorf("chainlink: updatedAt: unexpected %T", out[3])
	}
	value, overflow := uint256.FromBig(answer)
	if overflow {
		return oracle.Price{}, fmt.Errorf("chainlink: answer overflows 256 bits")
	}
	return oracle.Price{
		Value:     value,
		Decimals:  f.decimals,
		UpdatedAt: time.Unix(updatedAt.Int64(), 0).UTC(),
	}, nil
}

func (f *Feed) call(ctx context.Context, method string) ([]any, error) {
	data, err := f.parsed.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("chainlink: pack %s: %w", method, err)
	}
	ret, err := f.caller.CallContract(ctx, ethereum.CallMsg{To: &f.address, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("chainlink: call %s: %w", method, err)
	}
	out, err := f.parsed.Unpack(method, ret)
	if err != nil {
		return nil, fmt.Errorf("chainlink: unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("chainlink: %s returned nothing", method)
	}
	return out, nil
}
