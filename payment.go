package presale

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/xraph/presale/oracle"
	"github.com/xraph/presale/types"
)

// Quote is the priced result of a payment.
type Quote struct {
	Currency string
	Payment  *uint256.Int
	USD      *uint256.Int
	Tokens   *uint256.Int
	Price    *uint256.Int
	Stage    int
}

// BuyWithNative prices value (native currency, NativeDecimals) through the
// oracle and records the purchase. The caller has already received value.
func (e *Engine) BuyWithNative(ctx context.Context, buyer common.Address, value *uint256.Int, sponsorCode string) (*Receipt, error) {
	if isPayout(ctx) {
		return nil, ErrReentrantCall
	}
	p, err := e.nativePrice(ctx)
	if err != nil {
		e.plugins.EmitPurchaseFailed(ctx, buyer, err)
		return nil, err
	}

	// Pricing reads the active stage, so it runs under the lock with the
	// purchase it prices.
	return e.purchaseWith(ctx, buyer, func() (Order, error) {
		q, err := e.quoteNative(value, p)
		if err != nil {
			return Order{}, err
		}
		return Order{
			Payer:       buyer,
			Buyer:       buyer,
			SponsorCode: sponsorCode,
			Currency:    e.cfg.NativeSymbol,
			Payment:     value,
			USD:         q.USD,
			Tokens:      q.Tokens,
		}, nil
	}, nil)
}

// BuyWithStable records a purchase paid in a configured stablecoin and
// pulls amount from buyer. A failed pull rolls the purchase back.
func (e *Engine) BuyWithStable(ctx context.Context, buyer common.Address, currency string, amount *uint256.Int, sponsorCode string) (*Receipt, error) {
	pt, ok := e.payments[currency]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, currency)
	}
	if isPayout(ctx) {
		return nil, ErrReentrantCall
	}

	amount = types.Clone(amount)
	build := func() (Order, error) {
		q, err := e.quoteStable(pt, amount)
		if err != nil {
			return Order{}, err
		}
		return Order{
			Payer:       buyer,
			Buyer:       buyer,
			SponsorCode: sponsorCode,
			Currency:    pt.Symbol,
			Payment:     amount,
			USD:         q.USD,
			Tokens:      q.Tokens,
		}, nil
	}
	s := &settlement{
		check: func(ctx context.Context) error {
			return e.checkFunds(ctx, pt, buyer, amount)
		},
		pull: func(ctx context.Context) error {
			return pt.Token.TransferFrom(ctx, buyer, pt.Token.Holder(), amount)
		},
		refund: func(ctx context.Context) error {
			return pt.Token.Transfer(ctx, buyer, amount)
		},
	}
	return e.purchaseWith(ctx, buyer, build, s)
}

// Quote prices amount of currency at the active stage without mutating.
func (e *Engine) Quote(ctx context.Context, currency string, amount *uint256.Int) (*Quote, error) {
	if isPayout(ctx) {
		return nil, ErrReentrantCall
	}
	if currency == e.Config().NativeSymbol {
		p, err := e.nativePrice(ctx)
		if err != nil {
			return nil, err
		}
		if err := e.rlock(ctx); err != nil {
			return nil, err
		}
		defer e.mu.RUnlock()
		return e.quoteNative(amount, p)
	}
	pt, ok := e.payments[currency]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, currency)
	}
	if err := e.rlock(ctx); err != nil {
		return nil, err
	}
	defer e.mu.RUnlock()
	return e.quoteStable(pt, amount)
}

// purchaseWith builds the order under the write lock and runs it.
func (e *Engine) purchaseWith(ctx context.Context, buyer common.Address, build func() (Order, error), s *settlement) (*Receipt, error) {
	if err := e.lock(ctx); err != nil {
		return nil, err
	}
	var ev events
	o, err := build()
	var r *Receipt
	if err == nil {
		r, err = e.purchaseLocked(ctx, o, s, &ev)
	}
	e.mu.Unlock()

	if err != nil {
		e.plugins.EmitPurchaseFailed(ctx, buyer, err)
		return nil, err
	}
	ev.fire(ctx)
	return r, nil
}

func (e *Engine) nativePrice(ctx context.Context) (oracle.Price, error) {
	e.cfgMu.RLock()
	symbol, maxAge := e.cfg.NativeSymbol, e.cfg.OracleMaxAge
	e.cfgMu.RUnlock()

	if e.oracle == nil {
		return oracle.Price{}, fmt.Errorf("%w: no price feed for %s", ErrUnsupportedCurrency, symbol)
	}
	p, err := e.oracle.LatestPrice(ctx)
	if err != nil {
		return oracle.Price{}, err
	}
	if err := oracle.CheckFresh(p, e.now(), maxAge); err != nil {
		return oracle.Price{}, err
	}
	return p, nil
}

// quoteNative converts value to USD with the oracle price, then to tokens
// at the active stage price. Caller holds a lock.
func (e *Engine) quoteNative(value *uint256.Int, p oracle.Price) (*Quote, error) {
	if value == nil {
		value = types.Zero()
	}
	price, err := types.Scale(p.Value, p.Decimals, types.Decimals)
	if err != nil {
		return nil, err
	}
	usd, err := types.MulDiv(value, price, types.Pow10(e.cfg.NativeDecimals))
	if err != nil {
		return nil, err
	}
	return e.price(e.cfg.NativeSymbol, value, usd)
}

// quoteStable values amount at one USD per whole unit. Caller holds a lock.
func (e *Engine) quoteStable(pt PaymentToken, amount *uint256.Int) (*Quote, error) {
	if amount == nil {
		amount = types.Zero()
	}
	usd, err := types.Scale(amount, pt.Decimals, types.Decimals)
	if err != nil {
		return nil, err
	}
	return e.price(pt.Symbol, amount, usd)
}

func (e *Engine) price(currency string, payment, usd *uint256.Int) (*Quote, error) {
	price := e.ladder.CurrentPrice()
	tokens, err := types.MulDiv(usd, types.One(), price)
	if err != nil {
		return nil, err
	}
	return &Quote{
		Currency: currency,
		Payment:  payment.Clone(),
		USD:      usd,
		Tokens:   tokens,
		Price:    price,
		Stage:    e.ladder.Active(),
	}, nil
}

func (e *Engine) checkFunds(ctx context.Context, pt PaymentToken, buyer common.Address, amount *uint256.Int) error {
	bal, err := pt.Token.BalanceOf(ctx, buyer)
	if err != nil {
		return err
	}
	allowance, err := pt.Token.Allowance(ctx, buyer, pt.Token.Holder())
	if err != nil {
		return err
	}
	if bal.Lt(amount) || allowance.Lt(amount) {
		return fmt.Errorf("%w: balance %s, allowance %s, need %s",
			ErrInsufficientBalanceOrAllowance,
			types.Format(bal, pt.Decimals), types.Format(allowance, pt.Decimals), types.Format(amount, pt.Decimals))
	}
	return nil
}
