// Package model defines the core domain types shared across the pool engine.
// All monetary values use shopspring/decimal — never float64 for money.
// Amounts are integral base units (the smallest transferable denomination).
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Outcome identifies one side of a pool's yes/no question.
// The zero value is invalid; on the wire YES=1 and NO=2.
type Outcome int16

const (
	OutcomeYes Outcome = 1
	OutcomeNo  Outcome = 2
)

// Valid reports whether o is a member of the outcome enumeration.
func (o Outcome) Valid() bool {
	return o == OutcomeYes || o == OutcomeNo
}

func (o Outcome) String() string {
	switch o {
	case OutcomeYes:
		return "YES"
	case OutcomeNo:
		return "NO"
	default:
		return "UNKNOWN"
	}
}

// Pool is one sponsored yes/no wager with a fixed betting window.
// IDs are assigned monotonically from 1 and never reused; a pool is
// never deleted. WinningOutcome and TotalYield are meaningful only
// once IsSettled is true.
type Pool struct {
	ID               int64           `json:"id" db:"id"`
	Question         string          `json:"question" db:"question"`
	Sponsor          string          `json:"sponsor" db:"sponsor"`
	PrincipalTotal   decimal.Decimal `json:"principal_total" db:"principal_total"`
	BettingEndTime   time.Time       `json:"betting_end_time" db:"betting_end_time"`
	ParticipantCount int64           `json:"participant_count" db:"participant_count"`
	IsSettled        bool            `json:"is_settled" db:"is_settled"`
	WinningOutcome   Outcome         `json:"winning_outcome" db:"winning_outcome"`
	TotalYield       decimal.Decimal `json:"total_yield" db:"total_yield"`
	SponsorReceipt   string          `json:"-" db:"sponsor_receipt"` // yield-source receipt for the sponsor stake
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}

// Ticket is an immutable record of one participant's fixed-fee bet.
// Once created, tickets are never modified or deleted. At most one
// ticket exists per (pool, account) pair.
type Ticket struct {
	ID        string          `json:"id" db:"id"`
	PoolID    int64           `json:"pool_id" db:"pool_id"`
	AccountID string          `json:"account_id" db:"account_id"`
	Outcome   Outcome         `json:"outcome" db:"outcome"`
	Deposit   decimal.Decimal `json:"deposit" db:"deposit"`
	Receipt   string          `json:"-" db:"receipt"` // yield-source receipt for this fee
	PlacedAt  time.Time       `json:"placed_at" db:"placed_at"`
}

// ClaimRecord marks a (pool, account) pair as paid out, with the paid
// amount retained for audit. Its existence is the exactly-once guard:
// a second claim for the same pair is rejected, never re-paid.
type ClaimRecord struct {
	PoolID    int64           `json:"pool_id" db:"pool_id"`
	AccountID string          `json:"account_id" db:"account_id"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	ClaimedAt time.Time       `json:"claimed_at" db:"claimed_at"`
}
