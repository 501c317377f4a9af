// Package handlers provides HTTP handlers for funding account linkage.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/bluum-finance/autoinvest/internal/domain"
	"github.com/bluum-finance/autoinvest/internal/modules/accounts"
	"github.com/bluum-finance/autoinvest/internal/orchestrator"
)

// Handler handles funding account HTTP requests
type Handler struct {
	repo *accounts.Repository
	orch *orchestrator.Orchestrator
	log  zerolog.Logger
}

// NewHandler creates a new funding account handler
func NewHandler(repo *accounts.Repository, orch *orchestrator.Orchestrator, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		orch: orch,
		log:  log.With().Str("handler", "funding_accounts").Logger(),
	}
}

// RegisterRoutes registers funding account routes under the account scope.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/accounts/{accountID}/funding-accounts", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Get("/{fundingAccountID}", h.HandleGet)
	})
}

// HandleCreate handles POST /api/accounts/{accountID}/funding-accounts
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var cmd orchestrator.CreateFundingAccount
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", "")
		return
	}
	cmd.AccountID = chi.URLParam(r, "accountID")
	cmd.IdempotencyKey = r.Header.Get("Idempotency-Key")

	res, err := h.orch.Execute(r.Context(), cmd)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeData(w, http.StatusCreated, res.Payload)
}

// HandleList handles GET /api/accounts/{accountID}/funding-accounts
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	result, err := h.repo.List(chi.URLParam(r, "accountID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeData(w, http.StatusOK, result)
}

// HandleGet handles GET /api/accounts/{accountID}/funding-accounts/{fundingAccountID}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	fa, err := h.repo.Get(chi.URLParam(r, "accountID"), chi.URLParam(r, "fundingAccountID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeData(w, http.StatusOK, fa)
}

func (h *Handler) writeData(w http.ResponseWriter, status int, data interface{}) {
	h.writeJSON(w, status, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message, field string) {
	body := map[string]interface{}{
		"code":    code,
		"message": message,
	}
	if field != "" {
		body["field"] = field
	}
	h.writeJSON(w, status, map[string]interface{}{"error": body})
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	h.log.Debug().Err(err).Msg("Request failed")
	h.writeError(w, domain.HTTPStatus(err), domain.ErrorCode(err), err.Error(), domain.Field(err))
}
