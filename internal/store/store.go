// Package store defines the persistence interface for the pool engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/atmx/pool-engine/internal/model"
)

var (
	// ErrNotFound is returned when a pool, ticket, or claim does not
	// exist. Callers must never infer non-existence from zero-valued
	// fields — absence is always this explicit error.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicateTicket is returned when an account already holds a
	// ticket in the pool.
	ErrDuplicateTicket = errors.New("store: account already holds a ticket in this pool")

	// ErrDuplicateClaim is returned when a claim was already recorded
	// for the (pool, account) pair.
	ErrDuplicateClaim = errors.New("store: claim already recorded for this account")

	// ErrAlreadySettled is returned when settlement is recorded twice
	// for the same pool.
	ErrAlreadySettled = errors.New("store: pool already settled")
)

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer. Each mutating method is one
// indivisible unit — no reader ever observes a partially applied write.
type Store interface {
	// --- Pool registry ---

	// CreatePool persists a new pool, assigning the next monotonic ID.
	// IDs start at 1 and are never reused.
	CreatePool(ctx context.Context, pool *model.Pool) error

	// GetPool retrieves a pool by ID.
	GetPool(ctx context.Context, id int64) (*model.Pool, error)

	// ListPools returns all pools, newest first.
	ListPools(ctx context.Context) ([]model.Pool, error)

	// NextPoolID returns the ID the next created pool will receive.
	NextPoolID(ctx context.Context) (int64, error)

	// --- Betting ledger ---

	// AppendTicket appends a ticket and bumps the pool's principal and
	// participant count as one unit.
	AppendTicket(ctx context.Context, ticket *model.Ticket) error

	// GetTicket retrieves an account's ticket in a pool.
	GetTicket(ctx context.Context, poolID int64, accountID string) (*model.Ticket, error)

	// ListTicketsByPool returns a pool's tickets in acceptance order.
	ListTicketsByPool(ctx context.Context, poolID int64) ([]model.Ticket, error)

	// UpdateReceipts replaces the yield-source receipts recorded for a
	// pool's sponsor stake and the listed tickets (keyed by ticket ID).
	// Used when principal is re-deposited after an aborted settlement.
	UpdateReceipts(ctx context.Context, poolID int64, sponsorReceipt string, ticketReceipts map[string]string) error

	// CountTicketsByOutcome counts a pool's tickets for one outcome.
	CountTicketsByOutcome(ctx context.Context, poolID int64, outcome model.Outcome) (int64, error)

	// --- Settlement ---

	// MarkSettled records the winning outcome and yield and flips
	// is_settled, all-or-nothing. Fails ErrAlreadySettled on a settled
	// pool; it never overwrites a prior settlement.
	MarkSettled(ctx context.Context, poolID int64, winner model.Outcome, totalYield decimal.Decimal) error

	// --- Claim tracker ---

	// RecordClaim records a payout for a (pool, account) pair exactly
	// once; a second record fails ErrDuplicateClaim.
	RecordClaim(ctx context.Context, claim *model.ClaimRecord) error

	// GetClaim retrieves the claim record for a (pool, account) pair.
	GetClaim(ctx context.Context, poolID int64, accountID string) (*model.ClaimRecord, error)
}
