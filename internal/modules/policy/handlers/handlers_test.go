package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluum-finance/autoinvest/internal/database"
	"github.com/bluum-finance/autoinvest/internal/modules/accounts"
	"github.com/bluum-finance/autoinvest/internal/modules/idempotency"
	"github.com/bluum-finance/autoinvest/internal/modules/lifeevents"
	"github.com/bluum-finance/autoinvest/internal/modules/policy"
	"github.com/bluum-finance/autoinvest/internal/modules/schedules"
	"github.com/bluum-finance/autoinvest/internal/orchestrator"
)

func setupRouter(t *testing.T) *chi.Mux {
	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "core.db"),
		Profile: database.ProfileLedger,
		Name:    "core",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	log := zerolog.Nop()
	scheduleRepo := schedules.NewRepository(db.Conn(), log)
	policyRepo := policy.NewRepository(db.Conn(), log)
	eventRepo := lifeevents.NewRepository(db.Conn(), log)
	accountRepo := accounts.NewRepository(db.Conn(), log)
	ledger := idempotency.NewLedger(db.Conn(), log)
	orch := orchestrator.New(db, scheduleRepo, policyRepo, eventRepo, accountRepo, ledger, log)

	router := chi.NewRouter()
	NewHandler(policyRepo, orch, log).RegisterRoutes(router)
	return router
}

func doRequest(t *testing.T, router *chi.Mux, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

const putBody = `{
	"risk_profile": "moderate",
	"time_horizon": "10y",
	"investment_objectives": ["growth"],
	"target_allocation": {"equities": 60, "fixed_income": 20, "treasury": 10, "alternatives": 10}
}`

func TestHandlePutAndGet(t *testing.T) {
	router := setupRouter(t)

	rec := doRequest(t, router, "PUT", "/accounts/acct-1/policy", putBody)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, router, "GET", "/accounts/acct-1/policy", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data policy.Statement `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.Version)
	assert.Equal(t, "moderate", resp.Data.RiskProfile)
	assert.Equal(t, 60.0, resp.Data.Target.Equities)
}

func TestHandlePutBumpsVersionAndKeepsHistory(t *testing.T) {
	router := setupRouter(t)

	require.Equal(t, http.StatusCreated, doRequest(t, router, "PUT", "/accounts/acct-1/policy", putBody).Code)

	revised := strings.Replace(putBody, `"moderate"`, `"aggressive"`, 1)
	require.Equal(t, http.StatusCreated, doRequest(t, router, "PUT", "/accounts/acct-1/policy", revised).Code)

	rec := doRequest(t, router, "GET", "/accounts/acct-1/policy", "")
	var current struct {
		Data policy.Statement `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &current))
	assert.Equal(t, 2, current.Data.Version)
	assert.Equal(t, "aggressive", current.Data.RiskProfile)

	rec = doRequest(t, router, "GET", "/accounts/acct-1/policy?version=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var v1 struct {
		Data policy.Statement `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v1))
	assert.Equal(t, "moderate", v1.Data.RiskProfile)

	rec = doRequest(t, router, "GET", "/accounts/acct-1/policy?history=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history struct {
		Data []policy.Statement `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history.Data, 2)
	assert.Equal(t, 2, history.Data[0].Version)
}

func TestHandlePutBadAllocationIs400(t *testing.T) {
	router := setupRouter(t)

	body := strings.Replace(putBody, `"equities": 60`, `"equities": 70`, 1)
	rec := doRequest(t, router, "PUT", "/accounts/acct-1/policy", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "allocation_error", resp.Error.Code)
}

func TestHandleGetWithoutPolicyIs404(t *testing.T) {
	router := setupRouter(t)

	rec := doRequest(t, router, "GET", "/accounts/acct-1/policy", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleValidatePortfolio(t *testing.T) {
	router := setupRouter(t)

	require.Equal(t, http.StatusCreated, doRequest(t, router, "PUT", "/accounts/acct-1/policy", putBody).Code)

	rec := doRequest(t, router, "POST", "/accounts/acct-1/policy/validate-portfolio", `{
		"portfolio_id": "port-1",
		"actual_allocation": {"equities": 62, "fixed_income": 19, "treasury": 10, "alternatives": 9}
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data policy.ConformanceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Pass)
	assert.Len(t, resp.Data.Deviations, 4)
}
