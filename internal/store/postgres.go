package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/atmx/pool-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
//
// Expected schema:
//
//	pools   (id BIGSERIAL PRIMARY KEY, question TEXT, sponsor TEXT,
//	         principal_total NUMERIC, betting_end_time TIMESTAMPTZ,
//	         participant_count BIGINT, is_settled BOOLEAN,
//	         winning_outcome SMALLINT, total_yield NUMERIC,
//	         sponsor_receipt TEXT, created_at TIMESTAMPTZ)
//	tickets (id TEXT PRIMARY KEY, pool_id BIGINT REFERENCES pools,
//	         account_id TEXT, outcome SMALLINT, deposit NUMERIC,
//	         receipt TEXT, placed_at TIMESTAMPTZ,
//	         UNIQUE (pool_id, account_id))
//	claims  (pool_id BIGINT, account_id TEXT, amount NUMERIC,
//	         claimed_at TIMESTAMPTZ, PRIMARY KEY (pool_id, account_id))
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const poolColumns = `id, question, sponsor,
       principal_total::TEXT, betting_end_time, participant_count,
       is_settled, winning_outcome, total_yield::TEXT,
       sponsor_receipt, created_at`

func scanPool(row pgx.Row) (*model.Pool, error) {
	var p model.Pool
	var principal, totalYield string

	err := row.Scan(&p.ID, &p.Question, &p.Sponsor,
		&principal, &p.BettingEndTime, &p.ParticipantCount,
		&p.IsSettled, &p.WinningOutcome, &totalYield,
		&p.SponsorReceipt, &p.CreatedAt)
	if err != nil {
		return nil, err
	}

	p.PrincipalTotal, _ = decimal.NewFromString(principal)
	p.TotalYield, _ = decimal.NewFromString(totalYield)
	return &p, nil
}

func (s *PostgresStore) CreatePool(ctx context.Context, p *model.Pool) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO pools (question, sponsor, principal_total, betting_end_time,
		                    participant_count, is_settled, winning_outcome, total_yield,
		                    sponsor_receipt, created_at)
		 VALUES ($1, $2, $3::NUMERIC, $4, $5, $6, $7, $8::NUMERIC, $9, $10)
		 RETURNING id`,
		p.Question, p.Sponsor, p.PrincipalTotal.String(), p.BettingEndTime,
		p.ParticipantCount, p.IsSettled, p.WinningOutcome, p.TotalYield.String(),
		p.SponsorReceipt, p.CreatedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("create pool: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPool(ctx context.Context, id int64) (*model.Pool, error) {
	p, err := scanPool(s.pool.QueryRow(ctx,
		`SELECT `+poolColumns+` FROM pools WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pool %d: %w", id, err)
	}
	return p, nil
}

func (s *PostgresStore) ListPools(ctx context.Context) ([]model.Pool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+poolColumns+` FROM pools ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pools []model.Pool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, err
		}
		pools = append(pools, *p)
	}
	return pools, rows.Err()
}

func (s *PostgresStore) NextPoolID(ctx context.Context) (int64, error) {
	// Read the BIGSERIAL sequence directly: MAX(id)+1 undercounts when
	// a rolled-back insert has already consumed a sequence value.
	var last int64
	var called bool
	err := s.pool.QueryRow(ctx,
		`SELECT last_value, is_called FROM pools_id_seq`).Scan(&last, &called)
	if err != nil {
		return 0, err
	}
	if !called {
		return last, nil
	}
	return last + 1, nil
}

func (s *PostgresStore) AppendTicket(ctx context.Context, t *model.Ticket) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO tickets (id, pool_id, account_id, outcome, deposit, receipt, placed_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6, $7)`,
		t.ID, t.PoolID, t.AccountID, t.Outcome, t.Deposit.String(), t.Receipt, t.PlacedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateTicket
	}
	if err != nil {
		return fmt.Errorf("append ticket: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE pools
		 SET principal_total = principal_total + $2::NUMERIC,
		     participant_count = participant_count + 1
		 WHERE id = $1`,
		t.PoolID, t.Deposit.String(),
	)
	if err != nil {
		return fmt.Errorf("append ticket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) GetTicket(ctx context.Context, poolID int64, accountID string) (*model.Ticket, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, pool_id, account_id, outcome, deposit::TEXT, receipt, placed_at
		 FROM tickets WHERE pool_id = $1 AND account_id = $2`, poolID, accountID)

	t, err := scanTicket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) ListTicketsByPool(ctx context.Context, poolID int64) ([]model.Ticket, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, pool_id, account_id, outcome, deposit::TEXT, receipt, placed_at
		 FROM tickets WHERE pool_id = $1 ORDER BY placed_at, id`, poolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []model.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *t)
	}
	return tickets, rows.Err()
}

func (s *PostgresStore) UpdateReceipts(ctx context.Context, poolID int64, sponsorReceipt string, ticketReceipts map[string]string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE pools SET sponsor_receipt = $2 WHERE id = $1`,
		poolID, sponsorReceipt)
	if err != nil {
		return fmt.Errorf("update receipts: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	for ticketID, receipt := range ticketReceipts {
		if _, err := tx.Exec(ctx,
			`UPDATE tickets SET receipt = $2 WHERE id = $1 AND pool_id = $3`,
			ticketID, receipt, poolID); err != nil {
			return fmt.Errorf("update receipts: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) CountTicketsByOutcome(ctx context.Context, poolID int64, outcome model.Outcome) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM tickets WHERE pool_id = $1 AND outcome = $2`,
		poolID, outcome).Scan(&count)
	return count, err
}

func (s *PostgresStore) MarkSettled(ctx context.Context, poolID int64, winner model.Outcome, totalYield decimal.Decimal) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE pools
		 SET is_settled = TRUE, winning_outcome = $2, total_yield = $3::NUMERIC
		 WHERE id = $1 AND is_settled = FALSE`,
		poolID, winner, totalYield.String(),
	)
	if err != nil {
		return fmt.Errorf("mark settled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Disambiguate missing pool from repeat settlement.
		if _, err := s.GetPool(ctx, poolID); err != nil {
			return err
		}
		return ErrAlreadySettled
	}
	return nil
}

func (s *PostgresStore) RecordClaim(ctx context.Context, c *model.ClaimRecord) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO claims (pool_id, account_id, amount, claimed_at)
		 VALUES ($1, $2, $3::NUMERIC, $4)
		 ON CONFLICT (pool_id, account_id) DO NOTHING`,
		c.PoolID, c.AccountID, c.Amount.String(), c.ClaimedAt,
	)
	if err != nil {
		return fmt.Errorf("record claim: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateClaim
	}
	return nil
}

func (s *PostgresStore) GetClaim(ctx context.Context, poolID int64, accountID string) (*model.ClaimRecord, error) {
	var c model.ClaimRecord
	var amount string

	err := s.pool.QueryRow(ctx,
		`SELECT pool_id, account_id, amount::TEXT, claimed_at
		 FROM claims WHERE pool_id = $1 AND account_id = $2`,
		poolID, accountID).
		Scan(&c.PoolID, &c.AccountID, &amount, &c.ClaimedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get claim: %w", err)
	}

	c.Amount, _ = decimal.NewFromString(amount)
	return &c, nil
}

func scanTicket(row pgx.Row) (*model.Ticket, error) {
	var t model.Ticket
	var deposit string

	if err := row.Scan(&t.ID, &t.PoolID, &t.AccountID, &t.Outcome,
		&deposit, &t.Receipt, &t.PlacedAt); err != nil {
		return nil, err
	}

	t.Deposit, _ = decimal.NewFromString(deposit)
	return &t, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
