package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"SynthPool/internal/core"
	"SynthPool/internal/cycle"
	"SynthPool/internal/observability"
	"SynthPool/internal/pool"
	"SynthPool/internal/server"
)

// Prometheus collectors register globally; one set per test binary.
var testMetrics = observability.NewMetrics()

// stubCore records the last submitted command and serves canned views.
type stubCore struct {
	submitted *core.Command
	submitErr error
	info      pool.Info
	user      core.UserView
	cycleView core.CycleView
	lpView    core.LPView
}

func (s *stubCore) Submit(_ context.Context, cmd core.Command) error {
	s.submitted = &cmd
	return s.submitErr
}

func (s *stubCore) PoolInfo(context.Context) (pool.Info, error)  { return s.info, nil }
func (s *stubCore) CycleView(context.Context) (core.CycleView, error) {
	return s.cycleView, nil
}
func (s *stubCore) UserView(_ context.Context, _ uuid.UUID) (core.UserView, error) {
	return s.user, nil
}
func (s *stubCore) LPView(_ context.Context, _ uuid.UUID, _ int64) (core.LPView, error) {
	return s.lpView, nil
}

func newTestServer(stub *stubCore) (*httptest.Server, *observability.HealthChecker) {
	health := observability.NewHealthChecker("postgres", "nats", "engine")
	srv := server.NewServer(zerolog.Nop(), testMetrics, stub, health)
	return httptest.NewServer(srv.Router()), health
}

func post(t *testing.T, ts *httptest.Server, path, caller, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ts.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if caller != "" {
		req.Header.Set("X-Caller-ID", caller)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestPoolInfoEndpoint(t *testing.T) {
	stub := &stubCore{info: pool.Info{
		State:          cycle.StateActive,
		CycleIndex:     3,
		TotalDeposits:  10_000_000_000,
		QueuedDeposits: 2_000_000_000,
		TotalSupply:    100_000_000,
	}}
	ts, _ := newTestServer(stub)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/v1/pool")
	if err != nil {
		t.Fatalf("get pool: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["state"] != "ACTIVE" {
		t.Errorf("state = %v", body["state"])
	}
	if body["cycle_index"].(float64) != 3 {
		t.Errorf("cycle_index = %v", body["cycle_index"])
	}
	if body["queued_deposits"].(float64) != 2_000_000_000 {
		t.Errorf("queued_deposits = %v", body["queued_deposits"])
	}
}

func TestCommandRequiresCallerHeader(t *testing.T) {
	stub := &stubCore{}
	ts, _ := newTestServer(stub)
	defer ts.Close()

	resp := post(t, ts, "/v1/requests/deposit", "", `{"amount": 1000000}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
	if stub.submitted != nil {
		t.Error("command submitted despite missing caller")
	}
}

func TestDepositCommandKinds(t *testing.T) {
	stub := &stubCore{}
	ts, _ := newTestServer(stub)
	defer ts.Close()

	caller := uuid.New()
	resp := post(t, ts, "/v1/requests/deposit", caller.String(),
		`{"amount": 1000000, "collateral": 200000}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	cmd := stub.submitted
	if cmd == nil {
		t.Fatal("no command submitted")
	}
	if cmd.Kind != core.KindDepositRequest || cmd.Caller != caller || cmd.Account != caller {
		t.Errorf("command = %+v", cmd)
	}
	if cmd.Amount != 1_000_000 || cmd.Collateral != 200_000 {
		t.Errorf("amounts = %d, %d", cmd.Amount, cmd.Collateral)
	}
	if cmd.ID == uuid.Nil || cmd.Timestamp.IsZero() {
		t.Error("server must assign command id and timestamp")
	}

	// Without collateral the request becomes the bare variant.
	post(t, ts, "/v1/requests/deposit", caller.String(), `{"amount": 1000000}`)
	if stub.submitted.Kind != core.KindDepositRequestNoCollateral {
		t.Errorf("kind = %s, want bare deposit", stub.submitted.Kind)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "applied" {
		t.Errorf("status = %v", body["status"])
	}
}

func TestClaimDefaultsToCallerAccount(t *testing.T) {
	stub := &stubCore{}
	ts, _ := newTestServer(stub)
	defer ts.Close()

	caller := uuid.New()
	post(t, ts, "/v1/claims/asset", caller.String(), `{}`)
	if stub.submitted.Kind != core.KindClaimAsset || stub.submitted.Account != caller {
		t.Errorf("command = %+v", stub.submitted)
	}

	// A keeper can claim on another user's behalf.
	user := uuid.New()
	post(t, ts, "/v1/claims/reserve", caller.String(), `{"user_id": "`+user.String()+`"}`)
	if stub.submitted.Kind != core.KindClaimReserve || stub.submitted.Caller != caller || stub.submitted.Account != user {
		t.Errorf("command = %+v", stub.submitted)
	}

	resp := post(t, ts, "/v1/claims/asset", caller.String(), `{"user_id": "garbage"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSettleRequiresLPID(t *testing.T) {
	stub := &stubCore{}
	ts, _ := newTestServer(stub)
	defer ts.Close()

	caller := uuid.New()
	lp := uuid.New()

	resp := post(t, ts, "/v1/rebalance/lp", caller.String(), `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}

	post(t, ts, "/v1/rebalance/force", caller.String(), `{"lp_id": "`+lp.String()+`"}`)
	if stub.submitted.Kind != core.KindForceRebalanceLP || stub.submitted.Account != lp {
		t.Errorf("command = %+v", stub.submitted)
	}
}

func TestResolveDeviationBody(t *testing.T) {
	stub := &stubCore{}
	ts, _ := newTestServer(stub)
	defer ts.Close()

	admin := uuid.New()
	post(t, ts, "/v1/admin/resolve-deviation", admin.String(),
		`{"is_split": true, "numerator": 2, "denominator": 1}`)
	cmd := stub.submitted
	if cmd.Kind != core.KindResolvePriceDeviation || !cmd.IsSplit {
		t.Errorf("command = %+v", cmd)
	}
	if cmd.Numerator != 2 || cmd.Denominator != 1 {
		t.Errorf("ratio = %d/%d", cmd.Numerator, cmd.Denominator)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"unauthorized caller", cycle.ErrUnauthorizedCaller, http.StatusForbidden},
		{"request pending", pool.ErrRequestPending, http.StatusConflict},
		{"pool not active", pool.ErrPoolNotActive, http.StatusConflict},
		{"nothing to claim", pool.ErrNothingToClaim, http.StatusNotFound},
		{"stale oracle", cycle.ErrOracleNotUpdated, http.StatusServiceUnavailable},
		{"insufficient balance", pool.ErrInsufficientBalance, http.StatusUnprocessableEntity},
		{"invalid split ratio", cycle.ErrInvalidSplitRatio, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stub := &stubCore{submitErr: tc.err}
			ts, _ := newTestServer(stub)
			defer ts.Close()

			resp := post(t, ts, "/v1/requests/redeem", uuid.New().String(), `{"amount": 1}`)
			if resp.StatusCode != tc.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tc.want)
			}
		})
	}
}

func TestHealthEndpoints(t *testing.T) {
	stub := &stubCore{}
	ts, health := newTestServer(stub)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}

	// Readiness requires every registered component, not just one.
	health.SetComponentReady("postgres", true)
	health.SetComponentReady("nats", true)

	resp, err = ts.Client().Get(ts.URL + "/readyz")
	if err != nil {
		t.Fatalf("get readyz: %v", err)
	}
	var notReady struct {
		Status    string   `json:"status"`
		WaitingOn []string `json:"waiting_on"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&notReady); err != nil {
		t.Fatalf("decode readyz body: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("readyz with engine pending: status = %d", resp.StatusCode)
	}
	if notReady.Status != "not_ready" || len(notReady.WaitingOn) != 1 || notReady.WaitingOn[0] != "engine" {
		t.Errorf("readyz body = %+v, want waiting on engine", notReady)
	}

	health.SetComponentReady("engine", true)
	resp, err = ts.Client().Get(ts.URL + "/readyz")
	if err != nil {
		t.Fatalf("get readyz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("readyz after all components ready: status = %d", resp.StatusCode)
	}
}
