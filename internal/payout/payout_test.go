package payout

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/atmx/pool-engine/internal/model"
)

// du is a test helper for creating base-unit amounts.
func du(i int64) decimal.Decimal {
	return decimal.NewFromInt(i)
}

func settledPool(principal, yield int64, winner model.Outcome) *model.Pool {
	return &model.Pool{
		ID:             1,
		Sponsor:        "sponsor",
		PrincipalTotal: du(principal),
		IsSettled:      true,
		WinningOutcome: winner,
		TotalYield:     du(yield),
	}
}

func ticket(account string, outcome model.Outcome, deposit int64) model.Ticket {
	return model.Ticket{PoolID: 1, AccountID: account, Outcome: outcome, Deposit: du(deposit)}
}

func sum(payouts map[string]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, amt := range payouts {
		total = total.Add(amt)
	}
	return total
}

// --- Constructor tests ---

func TestNewCalculator_Valid(t *testing.T) {
	c, err := NewCalculator(40)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.CutPercent().Equal(du(40)) {
		t.Errorf("expected cut=40, got %s", c.CutPercent())
	}
}

func TestNewCalculator_OutOfRange(t *testing.T) {
	for _, cut := range []int64{-1, 101} {
		if _, err := NewCalculator(cut); err != ErrInvalidCut {
			t.Errorf("cut=%d: expected ErrInvalidCut, got %v", cut, err)
		}
	}
}

// --- Distribution tests ---

// Three YES tickets, two NO tickets, sponsor stake 10000, fee 1000,
// yield 5000 with a 40% sponsor cut. Sponsor gets 10000 + 2000; each
// YES ticket 1000 + 1000; each NO ticket the 1000 refund only. Claims
// sum to exactly principal + yield.
func TestDistribute_StandardScenario(t *testing.T) {
	c, _ := NewCalculator(40)
	pool := settledPool(15000, 5000, model.OutcomeYes)
	tickets := []model.Ticket{
		ticket("alice", model.OutcomeYes, 1000),
		ticket("bob", model.OutcomeYes, 1000),
		ticket("carol", model.OutcomeYes, 1000),
		ticket("dave", model.OutcomeNo, 1000),
		ticket("erin", model.OutcomeNo, 1000),
	}

	payouts, err := c.Distribute(pool, tickets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]int64{
		"sponsor": 12000,
		"alice":   2000,
		"bob":     2000,
		"carol":   2000,
		"dave":    1000,
		"erin":    1000,
	}
	for account, amount := range want {
		if !payouts[account].Equal(du(amount)) {
			t.Errorf("%s: expected %d, got %s", account, amount, payouts[account])
		}
	}
	if !sum(payouts).Equal(du(20000)) {
		t.Errorf("payouts must sum to principal+yield=20000, got %s", sum(payouts))
	}
}

func TestDistribute_FloorDustGoesToSponsor(t *testing.T) {
	c, _ := NewCalculator(40)
	// Yield 100 → sponsor cut 40, winner pool 60 split across 7 equal
	// winning tickets: floor(60/7)=8 each, dust 4 to the sponsor.
	pool := settledPool(1700, 100, model.OutcomeYes)
	var tickets []model.Ticket
	for _, a := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		tickets = append(tickets, ticket(a, model.OutcomeYes, 100))
	}

	payouts, err := c.Distribute(pool, tickets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, a := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		if !payouts[a].Equal(du(108)) {
			t.Errorf("%s: expected 108, got %s", a, payouts[a])
		}
	}
	if !payouts["sponsor"].Equal(du(1044)) {
		t.Errorf("sponsor: expected 1000+40+4=1044, got %s", payouts["sponsor"])
	}
	if !sum(payouts).Equal(du(1800)) {
		t.Errorf("conservation violated: got %s, want 1800", sum(payouts))
	}
}

func TestDistribute_NoWinningTickets(t *testing.T) {
	c, _ := NewCalculator(40)
	// Everyone bet NO, YES won: refunds only, the whole winner pool is
	// undistributed and falls to the sponsor.
	pool := settledPool(1200, 100, model.OutcomeYes)
	tickets := []model.Ticket{
		ticket("dave", model.OutcomeNo, 100),
		ticket("erin", model.OutcomeNo, 100),
	}

	payouts, err := c.Distribute(pool, tickets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !payouts["dave"].Equal(du(100)) || !payouts["erin"].Equal(du(100)) {
		t.Errorf("losing tickets must be refunded in full: dave=%s erin=%s",
			payouts["dave"], payouts["erin"])
	}
	if !payouts["sponsor"].Equal(du(1100)) {
		t.Errorf("sponsor should receive stake + full yield, got %s", payouts["sponsor"])
	}
}

func TestDistribute_ZeroYield(t *testing.T) {
	c, _ := NewCalculator(40)
	pool := settledPool(1200, 0, model.OutcomeYes)
	tickets := []model.Ticket{
		ticket("alice", model.OutcomeYes, 100),
		ticket("dave", model.OutcomeNo, 100),
	}

	payouts, err := c.Distribute(pool, tickets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !payouts["alice"].Equal(du(100)) || !payouts["dave"].Equal(du(100)) {
		t.Error("zero yield must still refund every deposit in full")
	}
	if !payouts["sponsor"].Equal(du(1000)) {
		t.Errorf("sponsor should get exactly their stake back, got %s", payouts["sponsor"])
	}
}

func TestDistribute_ReportedLossAbsorbedBySponsor(t *testing.T) {
	c, _ := NewCalculator(40)
	pool := settledPool(1200, -300, model.OutcomeYes)
	tickets := []model.Ticket{
		ticket("alice", model.OutcomeYes, 100),
		ticket("dave", model.OutcomeNo, 100),
	}

	payouts, err := c.Distribute(pool, tickets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// No-loss guarantee holds for ticket holders regardless of yield sign.
	if !payouts["alice"].Equal(du(100)) || !payouts["dave"].Equal(du(100)) {
		t.Error("ticket holders must never absorb yield losses")
	}
	if !payouts["sponsor"].Equal(du(700)) {
		t.Errorf("sponsor should absorb the loss: expected 700, got %s", payouts["sponsor"])
	}
}

func TestDistribute_LossDeeperThanStakeClampsAtZero(t *testing.T) {
	c, _ := NewCalculator(40)
	pool := settledPool(1100, -2000, model.OutcomeYes)
	tickets := []model.Ticket{ticket("alice", model.OutcomeYes, 100)}

	payouts, err := c.Distribute(pool, tickets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !payouts["sponsor"].IsZero() {
		t.Errorf("sponsor payout must clamp at zero, got %s", payouts["sponsor"])
	}
	if !payouts["alice"].Equal(du(100)) {
		t.Errorf("expected full refund 100, got %s", payouts["alice"])
	}
}

func TestDistribute_ProportionalSplitUnequalDeposits(t *testing.T) {
	// The fixed-fee model makes all deposits equal, but the split is
	// proportional in general: 300/100 deposits at 4:1.
	c, _ := NewCalculator(0)
	pool := settledPool(1400, 400, model.OutcomeNo)
	tickets := []model.Ticket{
		ticket("whale", model.OutcomeNo, 300),
		ticket("minnow", model.OutcomeNo, 100),
	}

	payouts, err := c.Distribute(pool, tickets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !payouts["whale"].Equal(du(600)) {
		t.Errorf("whale: expected 300+300, got %s", payouts["whale"])
	}
	if !payouts["minnow"].Equal(du(200)) {
		t.Errorf("minnow: expected 100+100, got %s", payouts["minnow"])
	}
}

func TestDistribute_SponsorHoldsTicket(t *testing.T) {
	c, _ := NewCalculator(40)
	pool := settledPool(1100, 0, model.OutcomeYes)
	tickets := []model.Ticket{ticket("sponsor", model.OutcomeYes, 100)}

	payouts, err := c.Distribute(pool, tickets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !payouts["sponsor"].Equal(du(1100)) {
		t.Errorf("sponsor should get stake + own ticket refund, got %s", payouts["sponsor"])
	}
}

func TestDistribute_NotSettled(t *testing.T) {
	c, _ := NewCalculator(40)
	pool := settledPool(1000, 0, model.OutcomeYes)
	pool.IsSettled = false

	if _, err := c.Distribute(pool, nil); err != ErrPoolNotSettled {
		t.Errorf("expected ErrPoolNotSettled, got %v", err)
	}
}

func TestDistribute_TicketsExceedPrincipal(t *testing.T) {
	c, _ := NewCalculator(40)
	pool := settledPool(100, 0, model.OutcomeYes)
	tickets := []model.Ticket{ticket("alice", model.OutcomeYes, 500)}

	if _, err := c.Distribute(pool, tickets); err != ErrPrincipalMismatch {
		t.Errorf("expected ErrPrincipalMismatch, got %v", err)
	}
}

func TestFor_NonParticipant(t *testing.T) {
	c, _ := NewCalculator(40)
	pool := settledPool(1100, 0, model.OutcomeYes)
	tickets := []model.Ticket{ticket("alice", model.OutcomeYes, 100)}

	_, ok, err := c.For(pool, tickets, "stranger")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("non-participant must not have an entitlement")
	}
}
