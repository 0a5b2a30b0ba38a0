// Package payout implements the no-loss distribution rule for settled
// pools.
//
// The rule guarantees:
//   - Every ticket holder gets their full deposit back, win or lose.
//   - The sponsor gets their stake back plus a fixed percentage cut of
//     the reported yield.
//   - The remaining yield is split among winning tickets in proportion
//     to each ticket's share of the winning side's deposits.
//
// All monetary values use shopspring/decimal — never float64 for money.
// Amounts are integral base units; proportional splits use floor
// division with the remainder (dust) credited to the sponsor, so the
// sum of all payouts can never exceed principal + yield.
package payout

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/atmx/pool-engine/internal/model"
)

var (
	// ErrInvalidCut is returned when the sponsor cut is outside [0, 100].
	ErrInvalidCut = errors.New("payout: sponsor cut percent must be between 0 and 100")

	// ErrPoolNotSettled is returned when distribution is requested for a
	// pool that has no recorded outcome yet.
	ErrPoolNotSettled = errors.New("payout: pool is not settled")

	// ErrPrincipalMismatch is returned when the ticket deposits exceed
	// the pool's recorded principal (corrupt input — the sponsor stake
	// would be negative).
	ErrPrincipalMismatch = errors.New("payout: ticket deposits exceed pool principal")
)

// Calculator computes per-account entitlements for settled pools.
// It is stateless — pool state and tickets are passed as arguments,
// not stored.
type Calculator struct {
	cut decimal.Decimal // sponsor yield cut, percent in [0, 100]
}

// NewCalculator creates a calculator with the given sponsor yield cut
// percentage.
func NewCalculator(cutPercent int64) (*Calculator, error) {
	if cutPercent < 0 || cutPercent > 100 {
		return nil, ErrInvalidCut
	}
	return &Calculator{cut: decimal.NewFromInt(cutPercent)}, nil
}

// CutPercent returns the sponsor yield cut percentage.
func (c *Calculator) CutPercent() decimal.Decimal {
	return c.cut
}

// Distribute maps a settled pool and its full ticket set to the payout
// owed to each account (keyed by account ID, sponsor included).
//
// The sponsor stake is derived as principalTotal − Σ ticket deposits.
// When yield is zero or negative the winner pool is empty and the whole
// signed yield lands on the sponsor's entry, clamped at zero — losses
// are absorbed by the sponsor, never by participants' principal.
func (c *Calculator) Distribute(pool *model.Pool, tickets []model.Ticket) (map[string]decimal.Decimal, error) {
	if !pool.IsSettled {
		return nil, ErrPoolNotSettled
	}

	ticketTotal := decimal.Zero
	for _, t := range tickets {
		ticketTotal = ticketTotal.Add(t.Deposit)
	}
	sponsorStake := pool.PrincipalTotal.Sub(ticketTotal)
	if sponsorStake.IsNegative() {
		return nil, ErrPrincipalMismatch
	}

	hundred := decimal.NewFromInt(100)
	sponsorYield := decimal.Zero
	winnerPool := decimal.Zero
	if pool.TotalYield.IsPositive() {
		sponsorYield = pool.TotalYield.Mul(c.cut).Div(hundred).Floor()
		winnerPool = pool.TotalYield.Sub(sponsorYield)
	} else {
		// Zero or reported loss: nothing to distribute to winners.
		sponsorYield = pool.TotalYield
	}

	winningTotal := decimal.Zero
	for _, t := range tickets {
		if t.Outcome == pool.WinningOutcome {
			winningTotal = winningTotal.Add(t.Deposit)
		}
	}

	payouts := make(map[string]decimal.Decimal, len(tickets)+1)
	distributed := decimal.Zero

	for _, t := range tickets {
		amount := t.Deposit // no-loss refund
		if t.Outcome == pool.WinningOutcome && winningTotal.IsPositive() && winnerPool.IsPositive() {
			share := winnerPool.Mul(t.Deposit).Div(winningTotal).Floor()
			amount = amount.Add(share)
			distributed = distributed.Add(share)
		}
		payouts[t.AccountID] = amount
	}

	// Undistributed winner-pool value (floor dust, or the entire pool
	// when nobody bet on the winning side) goes to the sponsor.
	dust := winnerPool.Sub(distributed)

	sponsorAmount := sponsorStake.Add(sponsorYield).Add(dust)
	if sponsorAmount.IsNegative() {
		sponsorAmount = decimal.Zero
	}
	// Add rather than assign: a sponsor holding a ticket in their own
	// pool keeps the ticket refund too.
	payouts[pool.Sponsor] = payouts[pool.Sponsor].Add(sponsorAmount)

	return payouts, nil
}

// For returns the single-account entitlement, and whether the account
// participated in the pool at all.
func (c *Calculator) For(pool *model.Pool, tickets []model.Ticket, accountID string) (decimal.Decimal, bool, error) {
	payouts, err := c.Distribute(pool, tickets)
	if err != nil {
		return decimal.Zero, false, err
	}
	amount, ok := payouts[accountID]
	return amount, ok, nil
}
