// Package handlers provides HTTP handlers for investment policy statements.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/bluum-finance/autoinvest/internal/domain"
	"github.com/bluum-finance/autoinvest/internal/modules/policy"
	"github.com/bluum-finance/autoinvest/internal/orchestrator"
)

// Handler handles policy HTTP requests
type Handler struct {
	repo *policy.Repository
	orch *orchestrator.Orchestrator
	log  zerolog.Logger
}

// NewHandler creates a new policy handler
func NewHandler(repo *policy.Repository, orch *orchestrator.Orchestrator, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		orch: orch,
		log:  log.With().Str("handler", "policy").Logger(),
	}
}

// RegisterRoutes registers policy routes under the account scope.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/accounts/{accountID}/policy", func(r chi.Router) {
		r.Get("/", h.HandleGet)
		r.Put("/", h.HandlePut)
		r.Post("/validate-portfolio", h.HandleValidatePortfolio)
	})
}

// HandleGet handles GET /api/accounts/{accountID}/policy.
// ?version=N returns a specific version, ?history=true returns all versions
// newest first, otherwise the current statement.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	if r.URL.Query().Get("history") == "true" {
		statements, err := h.repo.History(accountID)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		h.writeData(w, http.StatusOK, statements)
		return
	}

	if v := r.URL.Query().Get("version"); v != "" {
		version, err := strconv.Atoi(v)
		if err != nil || version < 1 {
			h.writeError(w, http.StatusBadRequest, "validation_error", "version must be a positive integer", "version")
			return
		}
		stmt, err := h.repo.ByVersion(accountID, version)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		h.writeData(w, http.StatusOK, stmt)
		return
	}

	stmt, err := h.repo.Current(accountID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, stmt)
}

// HandlePut handles PUT /api/accounts/{accountID}/policy
func (h *Handler) HandlePut(w http.ResponseWriter, r *http.Request) {
	var cmd orchestrator.PutPolicy
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", "")
		return
	}
	cmd.AccountID = chi.URLParam(r, "accountID")
	cmd.IdempotencyKey = r.Header.Get("Idempotency-Key")

	h.execute(w, r, cmd)
}

// HandleValidatePortfolio handles POST /api/accounts/{accountID}/policy/validate-portfolio
func (h *Handler) HandleValidatePortfolio(w http.ResponseWriter, r *http.Request) {
	var cmd orchestrator.ValidatePortfolio
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", "")
		return
	}
	cmd.AccountID = chi.URLParam(r, "accountID")

	h.execute(w, r, cmd)
}

func (h *Handler) execute(w http.ResponseWriter, r *http.Request, cmd orchestrator.Command) {
	res, err := h.orch.Execute(r.Context(), cmd)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	switch res.Status {
	case orchestrator.StatusCreated:
		h.writeData(w, http.StatusCreated, res.Payload)
	case orchestrator.StatusNoContent:
		w.WriteHeader(http.StatusNoContent)
	default:
		h.writeData(w, http.StatusOK, res.Payload)
	}
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
