package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"SynthPool/internal/bank"
	"SynthPool/internal/core"
	"SynthPool/internal/cycle"
	"SynthPool/internal/observability"
	"SynthPool/internal/pool"
)

// Core is the engine surface the HTTP layer needs.
type Core interface {
	Submit(ctx context.Context, cmd core.Command) error
	PoolInfo(ctx context.Context) (pool.Info, error)
	UserView(ctx context.Context, user uuid.UUID) (core.UserView, error)
	CycleView(ctx context.Context) (core.CycleView, error)
	LPView(ctx context.Context, lp uuid.UUID, price int64) (core.LPView, error)
}

// Server is the HTTP/JSON query and mutation surface. NATS remains the
// high-throughput ingest path; this serves interactive callers and
// operational tooling.
type Server struct {
	log     zerolog.Logger
	metrics *observability.Metrics
	core    Core
	health  *observability.HealthChecker
}

func NewServer(log zerolog.Logger, metrics *observability.Metrics, c Core, health *observability.HealthChecker) *Server {
	return &Server{log: log, metrics: metrics, core: c, health: health}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/pool", s.instrument("pool", s.handlePoolInfo))
	mux.HandleFunc("GET /v1/cycle", s.instrument("cycle", s.handleCycle))
	mux.HandleFunc("GET /v1/users/{id}", s.instrument("user", s.handleUser))
	mux.HandleFunc("GET /v1/lps/{id}", s.instrument("lp", s.handleLP))

	mux.HandleFunc("POST /v1/requests/deposit", s.instrument("request_deposit", s.command(s.buildDepositRequest)))
	mux.HandleFunc("POST /v1/requests/redeem", s.instrument("request_redeem", s.command(s.buildRedemptionRequest)))
	mux.HandleFunc("POST /v1/claims/asset", s.instrument("claim_asset", s.command(s.buildClaim(core.KindClaimAsset))))
	mux.HandleFunc("POST /v1/claims/reserve", s.instrument("claim_reserve", s.command(s.buildClaim(core.KindClaimReserve))))
	mux.HandleFunc("POST /v1/collateral/add", s.instrument("collateral_add", s.command(s.buildCollateral(core.KindAddCollateral))))
	mux.HandleFunc("POST /v1/collateral/reduce", s.instrument("collateral_reduce", s.command(s.buildCollateral(core.KindReduceCollateral))))
	mux.HandleFunc("POST /v1/rebalance/offchain", s.instrument("rebalance_offchain", s.command(s.buildInitiate(core.KindInitiateOffchainRebalance))))
	mux.HandleFunc("POST /v1/rebalance/onchain", s.instrument("rebalance_onchain", s.command(s.buildInitiate(core.KindInitiateOnchainRebalance))))
	mux.HandleFunc("POST /v1/rebalance/pool", s.instrument("rebalance_pool", s.command(s.buildRebalancePool)))
	mux.HandleFunc("POST /v1/rebalance/lp", s.instrument("rebalance_lp", s.command(s.buildSettle(core.KindRebalanceLP))))
	mux.HandleFunc("POST /v1/rebalance/force", s.instrument("rebalance_force", s.command(s.buildSettle(core.KindForceRebalanceLP))))
	mux.HandleFunc("POST /v1/admin/resolve-deviation", s.instrument("resolve_deviation", s.command(s.buildResolve)))

	mux.HandleFunc("GET /healthz", s.health.LivenessHandler)
	mux.HandleFunc("GET /readyz", s.health.ReadinessHandler)

	return mux
}

func (s *Server) instrument(endpoint string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		s.metrics.APIDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		s.metrics.APIRequests.WithLabelValues(endpoint, fmt.Sprintf("%d", rec.status)).Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// ===========================================================================
// Queries
// ===========================================================================

func (s *Server) handlePoolInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.core.PoolInfo(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":              info.State.String(),
		"cycle_index":        info.CycleIndex,
		"last_action_at":     info.LastActionAt,
		"total_deposits":     info.TotalDeposits,
		"queued_deposits":    info.QueuedDeposits,
		"queued_redemptions": info.QueuedRedemptions,
		"total_supply":       info.TotalSupply,
		"split_index":        info.SplitIndex,
		"rebalanced_lps":     info.RebalancedLPs,
		"cycle_lp_count":     info.CycleLPCount,
		"pool_reserve":       info.PoolReserve,
	})
}

func (s *Server) handleCycle(w http.ResponseWriter, r *http.Request) {
	v, err := s.core.CycleView(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":             v.State.String(),
		"cycle_index":       v.CycleIndex,
		"last_action_at":    v.LastActionAt,
		"last_settle_price": v.LastSettlePrice,
		"band_open":         v.BandOpen,
		"band_high":         v.BandHigh,
		"band_low":          v.BandLow,
		"band_close":        v.BandClose,
		"rebalanced_lps":    v.RebalancedLPs,
		"cycle_lp_count":    v.CycleLPCount,
		"cycle_interest":    v.CycleInterest,
		"interest_index":    v.InterestIndex,
		"split_index":       v.SplitIndex,
	})
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user id"})
		return
	}
	v, err := s.core.UserView(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := map[string]interface{}{"user_id": id.String()}
	if v.HasPosition {
		resp["position"] = map[string]interface{}{
			"asset_amount":      v.Position.AssetAmount,
			"deposit_amount":    v.Position.DepositAmount,
			"collateral_amount": v.Position.CollateralAmount,
			"entry_index":       v.Position.EntryIndex,
			"split_stamp":       v.Position.SplitStamp,
			"version":           v.Position.Version,
		}
	}
	if v.HasRequest {
		resp["request"] = map[string]interface{}{
			"type":        v.Request.Type.String(),
			"amount":      v.Request.Amount,
			"collateral":  v.Request.Collateral,
			"cycle":       v.Request.Cycle,
			"split_stamp": v.Request.SplitStamp,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLP(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid lp id"})
		return
	}
	cycleView, err := s.core.CycleView(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	v, err := s.core.LPView(r.Context(), id, cycleView.BandClose)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"lp_id":              id.String(),
		"last_settled_cycle": v.LastSettledCycle,
		"has_settled":        v.HasSettled,
		"quote_amount":       v.QuoteAmount,
		"quote_is_deposit":   v.QuoteIsDeposit,
		"quote_price":        cycleView.BandClose,
	})
}

// ===========================================================================
// Mutations
// ===========================================================================

type commandBody struct {
	UserID      string `json:"user_id"`
	LPID        string `json:"lp_id"`
	Amount      int64  `json:"amount"`
	Collateral  int64  `json:"collateral"`
	Price       int64  `json:"price"`
	IsSplit     bool   `json:"is_split"`
	Numerator   int64  `json:"numerator"`
	Denominator int64  `json:"denominator"`
}

type cmdBuilder func(caller uuid.UUID, body commandBody) (core.Command, error)

// command decodes the body, resolves the caller from X-Caller-ID, and
// submits the built command with an edge-assigned timestamp.
func (s *Server) command(build cmdBuilder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := uuid.Parse(r.Header.Get("X-Caller-ID"))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing or invalid X-Caller-ID"})
			return
		}

		var body commandBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}

		cmd, err := build(caller, body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		cmd.ID = uuid.New()
		cmd.Timestamp = time.Now()

		if err := s.core.Submit(r.Context(), cmd); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"command_id": cmd.ID.String(),
			"status":     "applied",
		})
	}
}

func (s *Server) buildDepositRequest(caller uuid.UUID, body commandBody) (core.Command, error) {
	kind := core.KindDepositRequest
	if body.Collateral == 0 {
		kind = core.KindDepositRequestNoCollateral
	}
	return core.Command{
		Kind:       kind,
		Caller:     caller,
		Account:    caller,
		Amount:     body.Amount,
		Collateral: body.Collateral,
	}, nil
}

func (s *Server) buildRedemptionRequest(caller uuid.UUID, body commandBody) (core.Command, error) {
	return core.Command{
		Kind:    core.KindRedemptionRequest,
		Caller:  caller,
		Account: caller,
		Amount:  body.Amount,
	}, nil
}

func (s *Server) buildClaim(kind core.CommandKind) cmdBuilder {
	return func(caller uuid.UUID, body commandBody) (core.Command, error) {
		account := caller
		if body.UserID != "" {
			id, err := uuid.Parse(body.UserID)
			if err != nil {
				return core.Command{}, fmt.Errorf("invalid user_id")
			}
			account = id
		}
		return core.Command{Kind: kind, Caller: caller, Account: account}, nil
	}
}

func (s *Server) buildCollateral(kind core.CommandKind) cmdBuilder {
	return func(caller uuid.UUID, body commandBody) (core.Command, error) {
		return core.Command{
			Kind:    kind,
			Caller:  caller,
			Account: caller,
			Amount:  body.Amount,
		}, nil
	}
}

func (s *Server) buildInitiate(kind core.CommandKind) cmdBuilder {
	return func(caller uuid.UUID, body commandBody) (core.Command, error) {
		return core.Command{Kind: kind, Caller: caller, Account: caller}, nil
	}
}

func (s *Server) buildRebalancePool(caller uuid.UUID, body commandBody) (core.Command, error) {
	return core.Command{
		Kind:    core.KindRebalancePool,
		Caller:  caller,
		Account: caller,
		Price:   body.Price,
	}, nil
}

func (s *Server) buildSettle(kind core.CommandKind) cmdBuilder {
	return func(caller uuid.UUID, body commandBody) (core.Command, error) {
		lp, err := uuid.Parse(body.LPID)
		if err != nil {
			return core.Command{}, fmt.Errorf("invalid lp_id")
		}
		return core.Command{Kind: kind, Caller: caller, Account: lp}, nil
	}
}

func (s *Server) buildResolve(caller uuid.UUID, body commandBody) (core.Command, error) {
	return core.Command{
		Kind:        core.KindResolvePriceDeviation,
		Caller:      caller,
		Account:     caller,
		IsSplit:     body.IsSplit,
		Numerator:   body.Numerator,
		Denominator: body.Denominator,
	}, nil
}

// ===========================================================================
// Encoding
// ===========================================================================

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, cycle.ErrUnauthorizedCaller), errors.Is(err, cycle.ErrNotLP):
		status = http.StatusForbidden
	case errors.Is(err, cycle.ErrInvalidCycleState),
		errors.Is(err, cycle.ErrMarketOpen),
		errors.Is(err, cycle.ErrMarketClosed),
		errors.Is(err, cycle.ErrOnChainRebalancingInProgress),
		errors.Is(err, cycle.ErrNoLiquidityProviders),
		errors.Is(err, cycle.ErrAlreadyRebalanced),
		errors.Is(err, pool.ErrPoolNotActive),
		errors.Is(err, pool.ErrPoolNotClaimable),
		errors.Is(err, pool.ErrRequestPending):
		status = http.StatusConflict
	case errors.Is(err, cycle.ErrInvalidRebalancePrice),
		errors.Is(err, cycle.ErrInvalidSplitRatio),
		errors.Is(err, pool.ErrInvalidAmount),
		errors.Is(err, bank.ErrInvalidAmount):
		status = http.StatusBadRequest
	case errors.Is(err, cycle.ErrOracleNotUpdated):
		status = http.StatusServiceUnavailable
	case errors.Is(err, pool.ErrInsufficientLiquidity),
		errors.Is(err, pool.ErrInsufficientBalance),
		errors.Is(err, pool.ErrInsufficientCollateral),
		errors.Is(err, pool.ErrExcessiveWithdrawal),
		errors.Is(err, bank.ErrInsufficientFunds):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, pool.ErrNothingToClaim):
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
