package pool

import "errors"

// Typed failure conditions, one per user-facing rejection. Validation
// and state errors are rejected before any state mutation; a failed
// operation leaves principal, tickets, and claims unchanged.
var (
	// ErrInvalidParameters is returned for malformed creation or
	// settlement input (empty question, non-positive duration, deposit
	// below minimum, fractional or unabsorbable yield).
	ErrInvalidParameters = errors.New("pool: invalid parameters")

	// ErrPoolNotFound is returned for an ID that was never assigned.
	ErrPoolNotFound = errors.New("pool: pool not found")

	// ErrPoolAlreadySettled is returned when joining a settled pool.
	ErrPoolAlreadySettled = errors.New("pool: pool already settled")

	// ErrBettingWindowClosed is returned when joining after the
	// betting deadline.
	ErrBettingWindowClosed = errors.New("pool: betting window closed")

	// ErrInvalidOutcome is returned for an outcome outside {YES, NO}.
	ErrInvalidOutcome = errors.New("pool: invalid outcome")

	// ErrIncorrectFeeAmount is returned when the deposit does not
	// exactly equal the fixed ticket fee.
	ErrIncorrectFeeAmount = errors.New("pool: deposit must exactly equal the ticket fee")

	// ErrDuplicateParticipant is returned when an account already holds
	// a ticket in the pool.
	ErrDuplicateParticipant = errors.New("pool: account already joined this pool")

	// ErrUnauthorized is returned when anyone but the sponsor attempts
	// settlement.
	ErrUnauthorized = errors.New("pool: only the sponsor may settle")

	// ErrBettingStillOpen is returned when settling before the deadline.
	ErrBettingStillOpen = errors.New("pool: betting window still open")

	// ErrAlreadySettled is returned on a repeated settlement attempt.
	ErrAlreadySettled = errors.New("pool: already settled")

	// ErrPoolNotSettled is returned when claiming from an open pool.
	ErrPoolNotSettled = errors.New("pool: pool not settled yet")

	// ErrNothingToClaim is returned for accounts that never
	// participated in the pool.
	ErrNothingToClaim = errors.New("pool: nothing to claim")

	// ErrAlreadyClaimed is returned on a repeated claim for the same
	// (pool, account) pair.
	ErrAlreadyClaimed = errors.New("pool: already claimed")

	// ErrYieldSource wraps any failure of the external yield facility.
	// The enclosing operation is aborted with no partial effect.
	ErrYieldSource = errors.New("pool: yield source failure")
)
