// Package pool implements the no-loss prediction pool ledger: pool
// registry, betting ledger, settlement state machine, and claim
// tracking, plus the HTTP handlers exposing them.
//
// All monetary values use shopspring/decimal — never float64 for money.
package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atmx/pool-engine/internal/model"
	"github.com/atmx/pool-engine/internal/payout"
	"github.com/atmx/pool-engine/internal/store"
	"github.com/atmx/pool-engine/internal/yield"
)

// Config holds the system-wide wagering constants. All amounts are
// integral base units.
type Config struct {
	// TicketFee is the fixed fee every ticket must pay, exactly.
	TicketFee decimal.Decimal

	// MinSponsorDeposit is the smallest accepted sponsor stake.
	MinSponsorDeposit decimal.Decimal

	// SponsorYieldCutPercent is the sponsor's fixed share of positive
	// yield, in whole percent.
	SponsorYieldCutPercent int64
}

// Engine owns pool lifecycle state, ticket accounting, yield
// bookkeeping, and payout computation. A mutex serializes mutating
// operations (single-instance, like the rest of the engine family).
// Deadlines are pull-based: nothing fires at bettingEndTime, every
// check reads the clock at call time.
type Engine struct {
	store  store.Store
	source yield.Source
	calc   *payout.Calculator
	cfg    Config

	mu  sync.Mutex
	now func() time.Time // injectable for deadline tests
}

// NewEngine creates an engine over the given store and yield source.
func NewEngine(st store.Store, src yield.Source, cfg Config) (*Engine, error) {
	if !cfg.TicketFee.IsPositive() || !cfg.TicketFee.IsInteger() {
		return nil, fmt.Errorf("%w: ticket fee must be a positive integer", ErrInvalidParameters)
	}
	if !cfg.MinSponsorDeposit.IsPositive() || !cfg.MinSponsorDeposit.IsInteger() {
		return nil, fmt.Errorf("%w: minimum sponsor deposit must be a positive integer", ErrInvalidParameters)
	}
	calc, err := payout.NewCalculator(cfg.SponsorYieldCutPercent)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	return &Engine{
		store:  st,
		source: src,
		calc:   calc,
		cfg:    cfg,
		now:    time.Now,
	}, nil
}

// Config returns the engine's wagering constants.
func (e *Engine) Config() Config {
	return e.cfg
}

// CreatePool allocates the next pool ID, forwards the sponsor deposit
// to the yield source, and persists the new pool.
func (e *Engine) CreatePool(ctx context.Context, sponsorID, question string, duration time.Duration, deposit decimal.Decimal) (*model.Pool, error) {
	if sponsorID == "" {
		return nil, fmt.Errorf("%w: sponsor is required", ErrInvalidParameters)
	}
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: question must not be empty", ErrInvalidParameters)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidParameters)
	}
	if !deposit.IsInteger() || deposit.LessThan(e.cfg.MinSponsorDeposit) {
		return nil, fmt.Errorf("%w: sponsor deposit must be an integer of at least %s",
			ErrInvalidParameters, e.cfg.MinSponsorDeposit)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now().UTC()

	// Principal goes to the yield source before the pool exists; a
	// failed persist hands the deposit straight back.
	receipt, err := e.source.Deposit(ctx, deposit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrYieldSource, err)
	}

	p := &model.Pool{
		Question:       question,
		Sponsor:        sponsorID,
		PrincipalTotal: deposit,
		BettingEndTime: now.Add(duration),
		TotalYield:     decimal.Zero,
		SponsorReceipt: receipt,
		CreatedAt:      now,
	}
	if err := e.store.CreatePool(ctx, p); err != nil {
		if _, werr := e.source.Withdraw(ctx, receipt); werr != nil {
			slog.Warn("sponsor deposit stranded after failed pool persist",
				"sponsor", sponsorID, "amount", deposit.String(), "err", werr)
		}
		return nil, err
	}
	return p, nil
}

// GetPool retrieves a pool by ID. Absence is an explicit
// ErrPoolNotFound, never a zero-valued record.
func (e *Engine) GetPool(ctx context.Context, id int64) (*model.Pool, error) {
	p, err := e.store.GetPool(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrPoolNotFound
	}
	return p, err
}

// ListPools returns all pools, newest first.
func (e *Engine) ListPools(ctx context.Context) ([]model.Pool, error) {
	return e.store.ListPools(ctx)
}

// NextPoolID returns the ID the next created pool will receive.
func (e *Engine) NextPoolID(ctx context.Context) (int64, error) {
	return e.store.NextPoolID(ctx)
}

// OutcomeTicketCount counts a pool's tickets for one outcome.
func (e *Engine) OutcomeTicketCount(ctx context.Context, poolID int64, outcome model.Outcome) (int64, error) {
	if !outcome.Valid() {
		return 0, ErrInvalidOutcome
	}
	if _, err := e.GetPool(ctx, poolID); err != nil {
		return 0, err
	}
	return e.store.CountTicketsByOutcome(ctx, poolID, outcome)
}

// ListTickets returns a pool's tickets in acceptance order.
func (e *Engine) ListTickets(ctx context.Context, poolID int64) ([]model.Ticket, error) {
	if _, err := e.GetPool(ctx, poolID); err != nil {
		return nil, err
	}
	return e.store.ListTicketsByPool(ctx, poolID)
}

// JoinPool accepts one fixed-fee ticket for an account, forwards the
// fee to the yield source, and appends the ticket atomically with the
// pool's principal and participant-count increments.
func (e *Engine) JoinPool(ctx context.Context, poolID int64, accountID string, outcome model.Outcome, deposit decimal.Decimal) (*model.Ticket, error) {
	if accountID == "" {
		return nil, fmt.Errorf("%w: account is required", ErrInvalidParameters)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.GetPool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	if p.IsSettled {
		return nil, ErrPoolAlreadySettled
	}
	now := e.now().UTC()
	if !now.Before(p.BettingEndTime) {
		return nil, ErrBettingWindowClosed
	}
	if !outcome.Valid() {
		return nil, ErrInvalidOutcome
	}
	if !deposit.Equal(e.cfg.TicketFee) {
		return nil, ErrIncorrectFeeAmount
	}
	if _, err := e.store.GetTicket(ctx, poolID, accountID); err == nil {
		return nil, ErrDuplicateParticipant
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	receipt, err := e.source.Deposit(ctx, deposit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrYieldSource, err)
	}

	t := &model.Ticket{
		ID:        uuid.New().String(),
		PoolID:    poolID,
		AccountID: accountID,
		Outcome:   outcome,
		Deposit:   deposit,
		Receipt:   receipt,
		PlacedAt:  now,
	}
	if err := e.store.AppendTicket(ctx, t); err != nil {
		if _, werr := e.source.Withdraw(ctx, receipt); werr != nil {
			slog.Warn("ticket deposit stranded after failed ticket persist",
				"pool", poolID, "account", accountID, "amount", deposit.String(), "err", werr)
		}
		if errors.Is(err, store.ErrDuplicateTicket) {
			return nil, ErrDuplicateParticipant
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrPoolNotFound
		}
		return nil, err
	}
	return t, nil
}

// SettlePool transitions a pool from open to settled exactly once,
// recording the sponsor-attested winning outcome and yield figure.
// The principal withdrawal from the yield source is a precondition of
// the transition: if any withdrawal fails, the pool stays open.
func (e *Engine) SettlePool(ctx context.Context, poolID int64, callerID string, winner model.Outcome, yieldAmount decimal.Decimal) (*model.Pool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.GetPool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	if p.IsSettled {
		return nil, ErrAlreadySettled
	}
	if callerID != p.Sponsor {
		return nil, ErrUnauthorized
	}
	if e.now().UTC().Before(p.BettingEndTime) {
		return nil, ErrBettingStillOpen
	}
	if !winner.Valid() {
		return nil, ErrInvalidOutcome
	}
	if !yieldAmount.IsInteger() {
		return nil, fmt.Errorf("%w: yield must be an integer amount", ErrInvalidParameters)
	}

	tickets, err := e.store.ListTicketsByPool(ctx, poolID)
	if err != nil {
		return nil, err
	}

	// A reported loss deeper than the sponsor's own stake can't be
	// absorbed without breaking the no-loss guarantee.
	ticketTotal := decimal.Zero
	for _, t := range tickets {
		ticketTotal = ticketTotal.Add(t.Deposit)
	}
	sponsorStake := p.PrincipalTotal.Sub(ticketTotal)
	if yieldAmount.IsNegative() && yieldAmount.Abs().GreaterThan(sponsorStake) {
		return nil, fmt.Errorf("%w: reported loss exceeds sponsor stake", ErrInvalidParameters)
	}

	// Withdraw every deposit receipt and verify the principal came back
	// whole before flipping the settled flag. Receipts are consumed on
	// redemption, so any failure past the first withdrawal must put the
	// pulled amounts back and persist the replacement receipts; the pool
	// stays open and a later retry can settle it.
	var pulled []withdrawal
	withdrawn := decimal.Zero
	pull := func(receipt, ticketID string) error {
		amount, err := e.source.Withdraw(ctx, receipt)
		if err != nil {
			return err
		}
		pulled = append(pulled, withdrawal{ticketID: ticketID, amount: amount})
		withdrawn = withdrawn.Add(amount)
		return nil
	}

	var opErr error
	if err := pull(p.SponsorReceipt, ""); err != nil {
		opErr = fmt.Errorf("%w: %v", ErrYieldSource, err)
	}
	for _, t := range tickets {
		if opErr != nil {
			break
		}
		if err := pull(t.Receipt, t.ID); err != nil {
			opErr = fmt.Errorf("%w: %v", ErrYieldSource, err)
		}
	}
	if opErr == nil && !withdrawn.Equal(p.PrincipalTotal) {
		opErr = fmt.Errorf("%w: withdrew %s, expected principal %s",
			ErrYieldSource, withdrawn, p.PrincipalTotal)
	}
	if opErr == nil {
		if err := e.store.MarkSettled(ctx, poolID, winner, yieldAmount); err != nil {
			if errors.Is(err, store.ErrAlreadySettled) {
				opErr = ErrAlreadySettled
			} else {
				opErr = err
			}
		}
	}
	if opErr != nil {
		e.restorePrincipal(ctx, p, pulled)
		return nil, opErr
	}
	return e.GetPool(ctx, poolID)
}

// withdrawal records one receipt redemption made during settlement, so
// an aborted settlement can put the principal back.
type withdrawal struct {
	ticketID string // empty for the sponsor stake
	amount   decimal.Decimal
}

// restorePrincipal re-deposits amounts pulled by an aborted settlement
// and persists the replacement receipts. Anything that cannot be put
// back is logged with the stranded amount so operators can reconcile.
func (e *Engine) restorePrincipal(ctx context.Context, p *model.Pool, pulled []withdrawal) {
	if len(pulled) == 0 {
		return
	}
	sponsorReceipt := p.SponsorReceipt
	ticketReceipts := make(map[string]string, len(pulled))
	for _, w := range pulled {
		receipt, err := e.source.Deposit(ctx, w.amount)
		if err != nil {
			slog.Warn("principal stranded after aborted settlement",
				"pool", p.ID, "amount", w.amount.String(), "err", err)
			continue
		}
		if w.ticketID == "" {
			sponsorReceipt = receipt
		} else {
			ticketReceipts[w.ticketID] = receipt
		}
	}
	if err := e.store.UpdateReceipts(ctx, p.ID, sponsorReceipt, ticketReceipts); err != nil {
		slog.Warn("failed to persist replacement receipts after aborted settlement",
			"pool", p.ID, "err", err)
	}
}

// ClaimFunds computes the caller's entitlement for a settled pool and
// records the payout exactly once per (pool, account).
func (e *Engine) ClaimFunds(ctx context.Context, poolID int64, accountID string) (decimal.Decimal, error) {
	if accountID == "" {
		return decimal.Zero, fmt.Errorf("%w: account is required", ErrInvalidParameters)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.GetPool(ctx, poolID)
	if err != nil {
		return decimal.Zero, err
	}
	if !p.IsSettled {
		return decimal.Zero, ErrPoolNotSettled
	}
	if _, err := e.store.GetClaim(ctx, poolID, accountID); err == nil {
		return decimal.Zero, ErrAlreadyClaimed
	} else if !errors.Is(err, store.ErrNotFound) {
		return decimal.Zero, err
	}

	tickets, err := e.store.ListTicketsByPool(ctx, poolID)
	if err != nil {
		return decimal.Zero, err
	}

	amount, participated, err := e.calc.For(p, tickets, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	if !participated {
		return decimal.Zero, ErrNothingToClaim
	}

	claim := &model.ClaimRecord{
		PoolID:    poolID,
		AccountID: accountID,
		Amount:    amount,
		ClaimedAt: e.now().UTC(),
	}
	if err := e.store.RecordClaim(ctx, claim); err != nil {
		if errors.Is(err, store.ErrDuplicateClaim) {
			return decimal.Zero, ErrAlreadyClaimed
		}
		return decimal.Zero, err
	}
	return amount, nil
}

// HasClaimed reports whether the account already claimed from the pool,
// and the recorded amount if so.
func (e *Engine) HasClaimed(ctx context.Context, poolID int64, accountID string) (bool, decimal.Decimal, error) {
	c, err := e.store.GetClaim(ctx, poolID, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return false, decimal.Zero, nil
	}
	if err != nil {
		return false, decimal.Zero, err
	}
	return true, c.Amount, nil
}
