package presale

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/xraph/presale/account"
	"github.com/xraph/presale/id"
	"github.com/xraph/presale/referral"
	"github.com/xraph/presale/stage"
	"github.com/xraph/presale/types"
)

// Order is one purchase request. USD and Tokens are 18-decimal amounts
// already priced by the caller; Payment is the raw amount in Currency's
// own units. Payer is the address that submitted the order and is the
// one ranked on the leaderboard; it defaults to Buyer when zero.
type Order struct {
	Payer       common.Address
	Buyer       common.Address
	SponsorCode string
	Currency    string
	Payment     *uint256.Int
	USD         *uint256.Int
	Tokens      *uint256.Int
}

// Receipt describes what a committed purchase did.
type Receipt struct {
	Deposit        account.Deposit
	ReferralCode   string
	Sponsor        *common.Address
	ReferralTokens *uint256.Int
	BonusBps       uint64
	BonusTokens    *uint256.Int
	Advance        stage.Advance
	SaleClosed     bool
}

// settlement moves funds for a purchase. check runs with the other
// preconditions, pull after the bookkeeping is applied and before the
// commit, and refund undoes pull if the commit then fails.
type settlement struct {
	check  func(ctx context.Context) error
	pull   func(ctx context.Context) error
	refund func(ctx context.Context) error
}

// Purchase records an order. Either every effect is applied and persisted
// or none is.
func (e *Engine) Purchase(ctx context.Context, o Order) (*Receipt, error) {
	if o.Payer == (common.Address{}) {
		o.Payer = o.Buyer
	}
	return e.purchaseWith(ctx, o.Buyer, func() (Order, error) { return o, nil }, nil)
}

// checkOrder validates every precondition without mutating.
func (e *Engine) checkOrder(o Order) error {
	if !e.saleOpen {
		return ErrSaleNotOpen
	}
	if o.Tokens == nil || o.Tokens.IsZero() {
		return ErrZeroTokenAmount
	}
	if err := e.ladder.CanConsume(o.Tokens); err != nil {
		return err
	}
	if a, ok := e.accounts[o.Buyer]; ok && a.Registered() {
		return nil
	}
	own, err := e.referrals.NextCode(o.Buyer)
	if err != nil {
		return err
	}
	_, _, err = e.referrals.CheckSponsor(o.Buyer, own, o.SponsorCode)
	return err
}

func (e *Engine) purchaseLocked(ctx context.Context, o Order, s *settlement, ev *events) (*Receipt, error) {
	if err := e.checkOrder(o); err != nil {
		return nil, err
	}
	if s != nil && s.check != nil {
		if err := s.check(ctx); err != nil {
			return nil, err
		}
	}

	tx := e.begin()
	r, err := e.applyPurchase(tx, o, ev)
	if err != nil {
		tx.rollback()
		return nil, err
	}

	if s != nil {
		if err := s.pull(inPayout(ctx)); err != nil {
			tx.rollback()
			return nil, fmt.Errorf("%w: %w", ErrTransferFailed, err)
		}
	}

	if err := tx.commit(ctx); err != nil {
		if s != nil && s.refund != nil {
			if rerr := s.refund(inPayout(ctx)); rerr != nil {
				e.logger.Error("presale: refund after failed commit",
					"buyer", o.Buyer.Hex(), "error", rerr)
			}
		}
		return nil, err
	}

	e.logger.Debug("purchase recorded",
		"buyer", o.Buyer.Hex(),
		"currency", o.Currency,
		"usd", types.FormatUSD(o.USD),
		"tokens", types.Format(o.Tokens, types.Decimals),
		"stage", r.Deposit.Stage,
	)
	return r, nil
}

// applyPurchase runs the six purchase effects in order.
func (e *Engine) applyPurchase(tx *txn, o Order, ev *events) (*Receipt, error) {
	now := e.now()
	usd := types.Clone(o.USD)
	tokens := o.Tokens.Clone()
	r := &Receipt{ReferralTokens: types.Zero(), BonusTokens: types.Zero()}

	// Registration and sponsor attachment.
	buyer := tx.account(o.Buyer)
	if !buyer.Registered() {
		code, err := tx.register(o.Buyer)
		if err != nil {
			return nil, err
		}
		buyer.ReferralCode = code
		sponsor, attached, err := e.referrals.Attach(o.Buyer, o.SponsorCode)
		if err != nil {
			return nil, err
		}
		if attached {
			buyer.Sponsor = &sponsor
			buyer.SponsorCode = referral.Normalize(o.SponsorCode)
			tx.account(sponsor).ReferralCount++
		}
	}
	r.ReferralCode = buyer.ReferralCode

	// Referral credit.
	if sponsor, ok := e.referrals.Sponsor(o.Buyer); ok {
		credit, err := types.ApplyBps(tokens, e.cfg.ReferralBonusBps)
		if err != nil {
			return nil, err
		}
		sp := tx.account(sponsor)
		addTo(&sp.TokensFromReferral, credit)
		addTo(&sp.ReferralUSD, usd)
		addTo(&e.totals.ReferralTokens, credit)
		addTo(&e.totals.ClaimableTokens, credit)
		r.Sponsor = &sponsor
		r.ReferralTokens = credit
		ev.add(func(ctx context.Context) { e.plugins.EmitReferralCredited(ctx, sponsor, o.Buyer, credit) })
	}

	// Stage allocation.
	stageIdx := e.ladder.Active()
	adv, err := e.ladder.Consume(tokens)
	if err != nil {
		return nil, err
	}
	addTo(&e.totals.SoldTokens, tokens)
	addTo(&e.totals.FundsRaisedUSD, usd)
	addTo(&e.totals.ClaimableTokens, tokens)
	r.Advance = adv
	if adv.Exhausted {
		e.saleOpen = false
		r.SaleClosed = true
	}
	tx.saveState = true

	// Buyer record.
	addTo(&buyer.USDPaid, usd)
	addTo(&buyer.TokensFromBuy, tokens)
	d := account.Deposit{
		ID:        id.NewDepositID(),
		Account:   o.Buyer,
		Payer:     o.Payer,
		Seq:       len(buyer.Deposits),
		Currency:  o.Currency,
		Amount:    types.Clone(o.Payment),
		USD:       usd,
		Tokens:    tokens,
		Stage:     stageIdx,
		Timestamp: now,
	}
	buyer.Deposits = append(buyer.Deposits, d)
	tx.deposits = append(tx.deposits, &d)
	if o.Payment != nil {
		e.collected[o.Currency] = types.Sum(e.collected[o.Currency], o.Payment)
	}
	r.Deposit = d

	// Tier bonus on the cumulative spend, paid on this purchase's tokens.
	if bps := e.bonus.BonusFor(buyer.USDPaid); bps > 0 {
		extra, err := types.ApplyBps(tokens, bps)
		if err != nil {
			return nil, err
		}
		addTo(&buyer.TokensFromBonus, extra)
		addTo(&e.totals.BonusTokens, extra)
		addTo(&e.totals.ClaimableTokens, extra)
		r.BonusBps = bps
		r.BonusTokens = extra
		ev.add(func(ctx context.Context) { e.plugins.EmitBonusCredited(ctx, o.Buyer, bps, extra) })
	}

	// Leaderboard.
	e.board.Upsert(o.Payer, buyer.USDPaid)

	ev.add(func(ctx context.Context) { e.plugins.EmitPurchase(ctx, &d) })
	if adv.Moved() {
		ev.add(func(ctx context.Context) { e.plugins.EmitStageAdvanced(ctx, adv.From, adv.To, adv.Exhausted) })
	}
	if r.SaleClosed {
		ev.add(func(ctx context.Context) { e.plugins.EmitSaleClosed(ctx, "sold out") })
	}
	return r, nil
}
