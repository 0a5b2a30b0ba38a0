package pool

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/atmx/pool-engine/internal/metrics"
	"github.com/atmx/pool-engine/internal/model"
)

// Service exposes the engine over HTTP. Pass nil for hub if WebSocket
// broadcasting is not needed.
type Service struct {
	engine *Engine
	wsHub  *WSHub
}

// NewService creates a new pool service.
func NewService(engine *Engine, hub *WSHub) *Service {
	return &Service{engine: engine, wsHub: hub}
}

// --- Request/Response types ---

// CreatePoolRequest is the JSON body for POST /pools.
type CreatePoolRequest struct {
	SponsorID       string          `json:"sponsor_id"`
	Question        string          `json:"question"`
	DurationSeconds int64           `json:"duration_seconds"`
	Deposit         decimal.Decimal `json:"deposit"`
}

// JoinRequest is the JSON body for POST /join.
type JoinRequest struct {
	PoolID    int64           `json:"pool_id"`
	AccountID string          `json:"account_id"`
	Outcome   model.Outcome   `json:"outcome"` // 1=YES, 2=NO
	Deposit   decimal.Decimal `json:"deposit"` // must equal the ticket fee
}

// SettleRequest is the JSON body for POST /settle.
type SettleRequest struct {
	PoolID         int64           `json:"pool_id"`
	CallerID       string          `json:"caller_id"`
	WinningOutcome model.Outcome   `json:"winning_outcome"`
	YieldAmount    decimal.Decimal `json:"yield_amount"` // sponsor-attested, signed
}

// ClaimRequest is the JSON body for POST /claim.
type ClaimRequest struct {
	PoolID    int64  `json:"pool_id"`
	AccountID string `json:"account_id"`
}

// ClaimResponse is returned from POST /claim.
type ClaimResponse struct {
	PoolID    int64           `json:"pool_id"`
	AccountID string          `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// --- HTTP Handlers ---

// CreatePool handles POST /api/v1/pools
func (s *Service) CreatePool(w http.ResponseWriter, r *http.Request) {
	var req CreatePoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	p, err := s.engine.CreatePool(r.Context(), req.SponsorID, req.Question,
		time.Duration(req.DurationSeconds)*time.Second, req.Deposit)
	if err != nil {
		metrics.RejectionsTotal.WithLabelValues("create").Inc()
		writeEngineError(w, err)
		return
	}

	metrics.PoolsCreated.Inc()
	slog.Info("pool created",
		"id", p.ID,
		"sponsor", p.Sponsor,
		"deposit", p.PrincipalTotal.String(),
		"betting_end", p.BettingEndTime,
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:      "pool_created",
			PoolID:    p.ID,
			Question:  p.Question,
			Principal: p.PrincipalTotal.String(),
		})
	}

	writeJSON(w, http.StatusCreated, p)
}

// GetPool handles GET /api/v1/pools/{poolID}
func (s *Service) GetPool(w http.ResponseWriter, r *http.Request) {
	id, ok := poolIDParam(w, r)
	if !ok {
		return
	}

	p, err := s.engine.GetPool(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ListPools handles GET /api/v1/pools
func (s *Service) ListPools(w http.ResponseWriter, r *http.Request) {
	pools, err := s.engine.ListPools(r.Context())
	if err != nil {
		writeError(w, "failed to list pools", http.StatusInternalServerError)
		return
	}
	if pools == nil {
		pools = []model.Pool{}
	}
	writeJSON(w, http.StatusOK, pools)
}

// NextPoolID handles GET /api/v1/pools/next-id
func (s *Service) NextPoolID(w http.ResponseWriter, r *http.Request) {
	next, err := s.engine.NextPoolID(r.Context())
	if err != nil {
		writeError(w, "failed to read pool counter", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"next_pool_id": next})
}

// GetCounts handles GET /api/v1/pools/{poolID}/counts
func (s *Service) GetCounts(w http.ResponseWriter, r *http.Request) {
	id, ok := poolIDParam(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	yes, err := s.engine.OutcomeTicketCount(ctx, id, model.OutcomeYes)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	no, err := s.engine.OutcomeTicketCount(ctx, id, model.OutcomeNo)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"yes": yes, "no": no})
}

// GetTickets handles GET /api/v1/pools/{poolID}/tickets
// Returns the pool's tickets in acceptance order.
func (s *Service) GetTickets(w http.ResponseWriter, r *http.Request) {
	id, ok := poolIDParam(w, r)
	if !ok {
		return
	}

	tickets, err := s.engine.ListTickets(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if tickets == nil {
		tickets = []model.Ticket{}
	}
	writeJSON(w, http.StatusOK, tickets)
}

// Join handles POST /api/v1/join
func (s *Service) Join(w http.ResponseWriter, r *http.Request) {
	var req JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	t, err := s.engine.JoinPool(r.Context(), req.PoolID, req.AccountID, req.Outcome, req.Deposit)
	if err != nil {
		metrics.RejectionsTotal.WithLabelValues("join").Inc()
		writeEngineError(w, err)
		return
	}

	metrics.TicketsTotal.WithLabelValues(t.Outcome.String()).Inc()
	slog.Info("ticket placed",
		"ticket_id", t.ID,
		"pool", t.PoolID,
		"account", t.AccountID,
		"outcome", t.Outcome.String(),
		"deposit", t.Deposit.String(),
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:      "ticket_placed",
			PoolID:    t.PoolID,
			AccountID: t.AccountID,
			Outcome:   t.Outcome.String(),
			Amount:    t.Deposit.String(),
		})
	}

	writeJSON(w, http.StatusCreated, t)
}

// Settle handles POST /api/v1/settle
func (s *Service) Settle(w http.ResponseWriter, r *http.Request) {
	var req SettleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	p, err := s.engine.SettlePool(r.Context(), req.PoolID, req.CallerID, req.WinningOutcome, req.YieldAmount)
	if err != nil {
		metrics.RejectionsTotal.WithLabelValues("settle").Inc()
		writeEngineError(w, err)
		return
	}

	metrics.SettlementsTotal.WithLabelValues(p.WinningOutcome.String()).Inc()
	slog.Info("pool settled",
		"pool", p.ID,
		"outcome", p.WinningOutcome.String(),
		"yield", p.TotalYield.String(),
		"principal", p.PrincipalTotal.String(),
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:      "pool_settled",
			PoolID:    p.ID,
			Outcome:   p.WinningOutcome.String(),
			Yield:     p.TotalYield.String(),
			Principal: p.PrincipalTotal.String(),
		})
	}

	writeJSON(w, http.StatusOK, p)
}

// Claim handles POST /api/v1/claim
func (s *Service) Claim(w http.ResponseWriter, r *http.Request) {
	var req ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	amount, err := s.engine.ClaimFunds(r.Context(), req.PoolID, req.AccountID)
	if err != nil {
		metrics.RejectionsTotal.WithLabelValues("claim").Inc()
		writeEngineError(w, err)
		return
	}

	metrics.ClaimsTotal.Inc()
	slog.Info("funds claimed",
		"pool", req.PoolID,
		"account", req.AccountID,
		"amount", amount.String(),
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:      "funds_claimed",
			PoolID:    req.PoolID,
			AccountID: req.AccountID,
			Amount:    amount.String(),
		})
	}

	writeJSON(w, http.StatusOK, ClaimResponse{
		PoolID:    req.PoolID,
		AccountID: req.AccountID,
		Amount:    amount,
	})
}

// GetClaim handles GET /api/v1/pools/{poolID}/claims/{accountID}
func (s *Service) GetClaim(w http.ResponseWriter, r *http.Request) {
	id, ok := poolIDParam(w, r)
	if !ok {
		return
	}
	accountID := chi.URLParam(r, "accountID")

	claimed, amount, err := s.engine.HasClaimed(r.Context(), id, accountID)
	if err != nil {
		writeError(w, "failed to read claim", http.StatusInternalServerError)
		return
	}

	resp := map[string]any{"claimed": claimed}
	if claimed {
		resp["amount"] = amount
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetConfig handles GET /api/v1/config
// Exposes the wagering constants the client needs to build writes.
func (s *Service) GetConfig(w http.ResponseWriter, _ *http.Request) {
	cfg := s.engine.Config()
	writeJSON(w, http.StatusOK, map[string]any{
		"ticket_fee":                cfg.TicketFee,
		"min_sponsor_deposit":       cfg.MinSponsorDeposit,
		"sponsor_yield_cut_percent": cfg.SponsorYieldCutPercent,
	})
}

// --- Helpers ---

func poolIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "poolID"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, "invalid pool id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// writeEngineError maps the engine's typed errors to HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrInvalidParameters),
		errors.Is(err, ErrInvalidOutcome),
		errors.Is(err, ErrIncorrectFeeAmount):
		status = http.StatusBadRequest
	case errors.Is(err, ErrPoolNotFound),
		errors.Is(err, ErrNothingToClaim):
		status = http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, ErrPoolAlreadySettled),
		errors.Is(err, ErrBettingWindowClosed),
		errors.Is(err, ErrDuplicateParticipant),
		errors.Is(err, ErrBettingStillOpen),
		errors.Is(err, ErrAlreadySettled),
		errors.Is(err, ErrPoolNotSettled),
		errors.Is(err, ErrAlreadyClaimed):
		status = http.StatusConflict
	case errors.Is(err, ErrYieldSource):
		status = http.StatusBadGateway
	}
	writeError(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
