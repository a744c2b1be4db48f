package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"treasury-dao/budget"
	"treasury-dao/governance"
	"treasury-dao/handlers"
	"treasury-dao/logger"
	"treasury-dao/repository"
	"treasury-dao/routers"
	"treasury-dao/token"
	"treasury-dao/treasury"
)

const (
	ownerHex    = "0x1111111111111111111111111111111111111111"
	treasuryHex = "0x2222222222222222222222222222222222222222"
	aliceHex    = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	bobHex      = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	daveHex     = "0xdddddddddddddddddddddddddddddddddddddddd"
)

type testEnv struct {
	router *mux.Router
	engine *governance.Engine
	clock  time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	logger.Logger = zap.NewNop()

	repo := repository.NewMemoryRepository()
	owner := common.HexToAddress(ownerHex)
	tok := token.NewLedger(repo, owner)
	tre := treasury.NewTreasury(repo, tok, common.HexToAddress(treasuryHex),
		treasury.DefaultExchangeRate)
	require.NoError(t, tok.SetAuthorizedMinter(owner, tre.Address(), true))
	eng := governance.NewEngine(repo, tok, tre)
	bud := budget.NewTracker(repo, owner)
	eng.SetListener(bud)
	require.NoError(t, bud.InitDefaultCategories())

	env := &testEnv{engine: eng, clock: time.UnixMilli(1_700_000_000_000)}
	eng.SetClock(func() time.Time { return env.clock })

	handler := handlers.NewHandler(tok, tre, eng, bud, repo)
	env.router = mux.NewRouter()
	routers.RegisterRoutes(env.router, handler)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func TestDeposit_MintsVotingRights(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "POST", "/treasury/deposit", map[string]any{
		"from": aliceHex, "amount": "1000000000000000000",
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = env.do(t, "GET", "/token/balance/"+aliceHex, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "100000000000000000000000", decode(t, rr)["balance"])

	rr = env.do(t, "GET", "/treasury/balance", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "1000000000000000000", decode(t, rr)["balance"])
}

func TestDeposit_ZeroAmountRejected(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, "POST", "/treasury/deposit", map[string]any{
		"from": aliceHex, "amount": "0",
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMint_UnauthorizedCaller(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, "POST", "/token/mint", map[string]any{
		"from": aliceHex, "to": bobHex, "amount": "100",
	})
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestProposalLifecycle(t *testing.T) {
	env := newTestEnv(t)

	// fund the treasury and hand out voting rights
	rr := env.do(t, "POST", "/treasury/deposit", map[string]any{
		"from": aliceHex, "amount": "10",
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	rr = env.do(t, "POST", "/token/mint", map[string]any{
		"from": ownerHex, "to": bobHex, "amount": "100000",
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = env.do(t, "POST", "/proposals", map[string]any{
		"from": aliceHex, "recipient": daveHex, "amount": "2",
		"description": "pay dave", "duration_seconds": 3600,
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = env.do(t, "POST", "/proposals/1/vote", map[string]any{
		"from": aliceHex, "support": true,
	})
	require.Equal(t, http.StatusOK, rr.Code)
	rr = env.do(t, "POST", "/proposals/1/vote", map[string]any{
		"from": bobHex, "support": true,
	})
	require.Equal(t, http.StatusOK, rr.Code)

	// double vote is a state conflict
	rr = env.do(t, "POST", "/proposals/1/vote", map[string]any{
		"from": aliceHex, "support": false,
	})
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = env.do(t, "GET", "/proposals/1/voted/"+aliceHex, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, true, decode(t, rr)["has_voted"])

	rr = env.do(t, "GET", "/proposals/1/choice/"+bobHex, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, true, decode(t, rr)["support"])

	rr = env.do(t, "GET", "/proposals/1/choice/"+daveHex, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	// executing before the deadline is refused
	rr = env.do(t, "POST", "/proposals/1/execute", map[string]any{"from": daveHex})
	require.Equal(t, http.StatusConflict, rr.Code)

	env.clock = env.clock.Add(time.Hour + time.Millisecond)

	rr = env.do(t, "GET", "/proposals/1/passed", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, true, decode(t, rr)["passed"])

	// execution is permissionless
	rr = env.do(t, "POST", "/proposals/1/execute", map[string]any{"from": daveHex})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, "GET", "/treasury/balance", nil)
	require.Equal(t, "8", decode(t, rr)["balance"])

	rr = env.do(t, "POST", "/proposals/1/execute", map[string]any{"from": daveHex})
	require.Equal(t, http.StatusConflict, rr.Code)

	// the change feed recorded the whole lifecycle
	rr = env.do(t, "GET", "/events", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	events := decode(t, rr)["events"].([]any)
	var types []string
	for _, ev := range events {
		types = append(types, ev.(map[string]any)["type"].(string))
	}
	require.Contains(t, types, "FundsDeposited")
	require.Contains(t, types, "ProposalCreated")
	require.Contains(t, types, "VoteCast")
	require.Contains(t, types, "FundsReleased")
	require.Contains(t, types, "ProposalExecuted")
}

func TestGetProposal_NotFound(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, "GET", "/proposals/42", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreateProposal_InvalidPayload(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest("POST", "/proposals", bytes.NewBufferString("{"))
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, "POST", "/proposals", map[string]any{
		"from": "not-an-address", "recipient": daveHex, "amount": "1",
		"description": "x",
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDestinationAddressesValidated(t *testing.T) {
	env := newTestEnv(t)

	// fund alice so the proposal reaches the recipient check
	rr := env.do(t, "POST", "/treasury/deposit", map[string]any{
		"from": aliceHex, "amount": "10",
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	// a truncated recipient must be refused, not silently re-interpreted
	rr = env.do(t, "POST", "/proposals", map[string]any{
		"from": aliceHex, "recipient": "0xdddddddddddd", "amount": "1",
		"description": "typo'd recipient",
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, decode(t, rr)["error"], "invalid address")

	rr = env.do(t, "POST", "/token/mint", map[string]any{
		"from": ownerHex, "to": "zzzz", "amount": "100",
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, "POST", "/token/transfer", map[string]any{
		"from": aliceHex, "to": "0x1234", "amount": "1",
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, "POST", "/budget/initiatives", map[string]any{
		"from": aliceHex, "name": "x", "category": "grants",
		"description": "y", "requested_amount": "1", "recipient": "not-hex",
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestBudgetEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/budget/categories", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, decode(t, rr)["categories"], 7)

	rr = env.do(t, "POST", "/budget/categories", map[string]any{
		"from": ownerHex, "name": "legal",
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = env.do(t, "POST", "/budget/budgets", map[string]any{
		"from": ownerHex, "category": "legal", "allocated": "1000",
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = env.do(t, "POST", "/budget/initiatives", map[string]any{
		"from": aliceHex, "name": "counsel", "category": "legal",
		"description": "retain counsel", "requested_amount": "600",
		"recipient": daveHex,
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	// approval is owner-only
	rr = env.do(t, "POST", "/budget/initiatives/1/approve", map[string]any{
		"from": aliceHex, "amount": "600",
	})
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = env.do(t, "POST", "/budget/initiatives/1/approve", map[string]any{
		"from": ownerHex, "amount": "500",
	})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, "GET", "/budget/initiatives/1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, true, decode(t, rr)["approved"])
}

func TestConcurrentDeposits(t *testing.T) {
	env := newTestEnv(t)

	codes := make(chan int, 10)
	for i := 0; i < 10; i++ {
		go func() {
			var buf bytes.Buffer
			json.NewEncoder(&buf).Encode(map[string]any{
				"from": aliceHex, "amount": "1",
			})
			req := httptest.NewRequest("POST", "/treasury/deposit", &buf)
			rr := httptest.NewRecorder()
			env.router.ServeHTTP(rr, req)
			codes <- rr.Code
		}()
	}
	for i := 0; i < 10; i++ {
		require.Equal(t, http.StatusCreated, <-codes)
	}

	rr := env.do(t, "GET", "/treasury/balance", nil)
	require.Equal(t, "10", decode(t, rr)["balance"])
	rr = env.do(t, "GET", "/token/supply", nil)
	require.Equal(t, "1000000", decode(t, rr)["total_supply"])
}
