package store

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/atmx/pool-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	pools   map[int64]*model.Pool
	tickets []model.Ticket // append-only, acceptance order
	claims  map[claimKey]*model.ClaimRecord
}

type claimKey struct {
	poolID    int64
	accountID string
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID: 1,
		pools:  make(map[int64]*model.Pool),
		claims: make(map[claimKey]*model.ClaimRecord),
	}
}

func (s *MemoryStore) CreatePool(_ context.Context, p *model.Pool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = s.nextID
	s.nextID++

	// Store a copy to avoid external mutation.
	copy := *p
	s.pools[p.ID] = &copy
	return nil
}

func (s *MemoryStore) GetPool(_ context.Context, id int64) (*model.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pools[id]
	if !ok {
		return nil, ErrNotFound
	}
	copy := *p
	return &copy, nil
}

func (s *MemoryStore) ListPools(_ context.Context) ([]model.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pools := make([]model.Pool, 0, len(s.pools))
	// IDs are dense from 1, newest first.
	for id := s.nextID - 1; id >= 1; id-- {
		if p, ok := s.pools[id]; ok {
			pools = append(pools, *p)
		}
	}
	return pools, nil
}

func (s *MemoryStore) NextPoolID(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextID, nil
}

func (s *MemoryStore) AppendTicket(_ context.Context, t *model.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pools[t.PoolID]
	if !ok {
		return ErrNotFound
	}
	for _, existing := range s.tickets {
		if existing.PoolID == t.PoolID && existing.AccountID == t.AccountID {
			return ErrDuplicateTicket
		}
	}

	s.tickets = append(s.tickets, *t)
	p.PrincipalTotal = p.PrincipalTotal.Add(t.Deposit)
	p.ParticipantCount++
	return nil
}

func (s *MemoryStore) GetTicket(_ context.Context, poolID int64, accountID string) (*model.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.tickets {
		if t.PoolID == poolID && t.AccountID == accountID {
			copy := t
			return &copy, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListTicketsByPool(_ context.Context, poolID int64) ([]model.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Ticket
	for _, t := range s.tickets {
		if t.PoolID == poolID {
			result = append(result, t)
		}
	}
	return result, nil
}

func (s *MemoryStore) UpdateReceipts(_ context.Context, poolID int64, sponsorReceipt string, ticketReceipts map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pools[poolID]
	if !ok {
		return ErrNotFound
	}
	p.SponsorReceipt = sponsorReceipt
	for i := range s.tickets {
		t := &s.tickets[i]
		if t.PoolID != poolID {
			continue
		}
		if r, ok := ticketReceipts[t.ID]; ok {
			t.Receipt = r
		}
	}
	return nil
}

func (s *MemoryStore) CountTicketsByOutcome(_ context.Context, poolID int64, outcome model.Outcome) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, t := range s.tickets {
		if t.PoolID == poolID && t.Outcome == outcome {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) MarkSettled(_ context.Context, poolID int64, winner model.Outcome, totalYield decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pools[poolID]
	if !ok {
		return ErrNotFound
	}
	if p.IsSettled {
		return ErrAlreadySettled
	}

	p.IsSettled = true
	p.WinningOutcome = winner
	p.TotalYield = totalYield
	return nil
}

func (s *MemoryStore) RecordClaim(_ context.Context, c *model.ClaimRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := claimKey{poolID: c.PoolID, accountID: c.AccountID}
	if _, exists := s.claims[key]; exists {
		return ErrDuplicateClaim
	}

	copy := *c
	s.claims[key] = &copy
	return nil
}

func (s *MemoryStore) GetClaim(_ context.Context, poolID int64, accountID string) (*model.ClaimRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.claims[claimKey{poolID: poolID, accountID: accountID}]
	if !ok {
		return nil, ErrNotFound
	}
	copy := *c
	return &copy, nil
}
