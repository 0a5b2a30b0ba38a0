package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/atmx/pool-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary. The read surface is
// safe to poll, so pools and outcome counts are the cached entities.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreatePool(ctx context.Context, p *model.Pool) error {
	if err := s.primary.CreatePool(ctx, p); err != nil {
		return err
	}
	s.cachePool(ctx, p)
	return nil
}

func (s *CachedStore) AppendTicket(ctx context.Context, t *model.Ticket) error {
	if err := s.primary.AppendTicket(ctx, t); err != nil {
		return err
	}
	// Principal and counts changed; next read re-populates.
	s.rdb.Del(ctx, poolKey(t.PoolID), countKey(t.PoolID, model.OutcomeYes), countKey(t.PoolID, model.OutcomeNo))
	return nil
}

func (s *CachedStore) MarkSettled(ctx context.Context, poolID int64, winner model.Outcome, totalYield decimal.Decimal) error {
	if err := s.primary.MarkSettled(ctx, poolID, winner, totalYield); err != nil {
		return err
	}
	s.rdb.Del(ctx, poolKey(poolID))
	return nil
}

func (s *CachedStore) UpdateReceipts(ctx context.Context, poolID int64, sponsorReceipt string, ticketReceipts map[string]string) error {
	if err := s.primary.UpdateReceipts(ctx, poolID, sponsorReceipt, ticketReceipts); err != nil {
		return err
	}
	// The cached pool entry carries the sponsor receipt.
	s.rdb.Del(ctx, poolKey(poolID))
	return nil
}

func (s *CachedStore) RecordClaim(ctx context.Context, c *model.ClaimRecord) error {
	return s.primary.RecordClaim(ctx, c)
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetPool(ctx context.Context, id int64) (*model.Pool, error) {
	data, err := s.rdb.Get(ctx, poolKey(id)).Bytes()
	if err == nil {
		var e poolCacheEntry
		if json.Unmarshal(data, &e) == nil {
			p := e.Pool
			p.SponsorReceipt = e.Receipt
			return &p, nil
		}
	}

	// Cache miss: read from primary.
	p, err := s.primary.GetPool(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cachePool(ctx, p)
	return p, nil
}

func (s *CachedStore) CountTicketsByOutcome(ctx context.Context, poolID int64, outcome model.Outcome) (int64, error) {
	count, err := s.rdb.Get(ctx, countKey(poolID, outcome)).Int64()
	if err == nil {
		return count, nil
	}

	count, err = s.primary.CountTicketsByOutcome(ctx, poolID, outcome)
	if err != nil {
		return 0, err
	}

	s.rdb.Set(ctx, countKey(poolID, outcome), count, s.ttl)
	return count, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListPools(ctx context.Context) ([]model.Pool, error) {
	return s.primary.ListPools(ctx)
}

func (s *CachedStore) NextPoolID(ctx context.Context) (int64, error) {
	return s.primary.NextPoolID(ctx)
}

func (s *CachedStore) GetTicket(ctx context.Context, poolID int64, accountID string) (*model.Ticket, error) {
	return s.primary.GetTicket(ctx, poolID, accountID)
}

func (s *CachedStore) ListTicketsByPool(ctx context.Context, poolID int64) ([]model.Ticket, error) {
	return s.primary.ListTicketsByPool(ctx, poolID)
}

func (s *CachedStore) GetClaim(ctx context.Context, poolID int64, accountID string) (*model.ClaimRecord, error) {
	return s.primary.GetClaim(ctx, poolID, accountID)
}

// --- Cache helpers ---

// poolCacheEntry carries the sponsor receipt alongside the pool; the
// public JSON encoding of Pool omits it.
type poolCacheEntry struct {
	Pool    model.Pool `json:"pool"`
	Receipt string     `json:"receipt"`
}

func (s *CachedStore) cachePool(ctx context.Context, p *model.Pool) {
	entry := poolCacheEntry{Pool: *p, Receipt: p.SponsorReceipt}
	if data, err := json.Marshal(entry); err == nil {
		s.rdb.Set(ctx, poolKey(p.ID), data, s.ttl)
	}
}

func poolKey(id int64) string { return fmt.Sprintf("pool:%d", id) }

func countKey(id int64, o model.Outcome) string {
	return fmt.Sprintf("pool:%d:count:%d", id, o)
}
