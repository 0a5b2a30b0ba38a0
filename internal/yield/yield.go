// Package yield defines the external yield-generating facility the pool
// engine routes principal through. The engine treats the facility as an
// opaque capability: deposit principal, get a receipt; withdraw by
// receipt, get the principal back. The engine never inspects the
// facility's internal accounting — the yield figure distributed at
// settlement is supplied by the sponsor, not computed here.
package yield

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount is returned when a deposit amount is not a
	// positive integral number of base units.
	ErrInvalidAmount = errors.New("yield: deposit amount must be a positive integer")

	// ErrUnknownReceipt is returned when withdrawing a receipt that was
	// never issued or was already withdrawn.
	ErrUnknownReceipt = errors.New("yield: unknown or already-withdrawn receipt")
)

// Source is the collaborator interface for the yield facility.
// Implementations may fail on any call; callers must treat a failure
// as aborting the enclosing operation with no partial effect.
type Source interface {
	// Deposit places principal with the facility and returns a receipt
	// redeemable for the same amount.
	Deposit(ctx context.Context, amount decimal.Decimal) (receipt string, err error)

	// Withdraw redeems a receipt, returning the originally deposited
	// amount. A receipt can be redeemed at most once.
	Withdraw(ctx context.Context, receipt string) (decimal.Decimal, error)
}
