// Package handlers provides HTTP handlers for life event planning.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/bluum-finance/autoinvest/internal/domain"
	"github.com/bluum-finance/autoinvest/internal/modules/lifeevents"
	"github.com/bluum-finance/autoinvest/internal/orchestrator"
)

// Handler handles life event HTTP requests
type Handler struct {
	repo *lifeevents.Repository
	orch *orchestrator.Orchestrator
	log  zerolog.Logger
}

// NewHandler creates a new life event handler
func NewHandler(repo *lifeevents.Repository, orch *orchestrator.Orchestrator, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		orch: orch,
		log:  log.With().Str("handler", "life_events").Logger(),
	}
}

// RegisterRoutes registers life event routes under the account scope.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/accounts/{accountID}/life-events", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Get("/{eventID}", h.HandleGet)
		r.Patch("/{eventID}", h.HandleUpdate)
		r.Delete("/{eventID}", h.HandleDelete)
	})
}

// HandleCreate handles POST /api/accounts/{accountID}/life-events
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var cmd orchestrator.CreateLifeEvent
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", "")
		return
	}
	cmd.AccountID = chi.URLParam(r, "accountID")
	cmd.IdempotencyKey = r.Header.Get("Idempotency-Key")

	h.execute(w, r, cmd)
}

// HandleList handles GET /api/accounts/{accountID}/life-events
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter := lifeevents.ListFilter{
		Status:    lifeevents.Status(r.URL.Query().Get("status")),
		EventType: lifeevents.EventType(r.URL.Query().Get("event_type")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		h.writeError(w, http.StatusBadRequest, "validation_error", "Unknown status filter", "status")
		return
	}
	if filter.EventType != "" && !filter.EventType.Valid() {
		h.writeError(w, http.StatusBadRequest, "validation_error", "Unknown event type filter", "event_type")
		return
	}

	result, err := h.repo.List(chi.URLParam(r, "accountID"), filter)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeData(w, http.StatusOK, result)
}

// HandleGet handles GET /api/accounts/{accountID}/life-events/{eventID}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ev, err := h.repo.Get(chi.URLParam(r, "accountID"), chi.URLParam(r, "eventID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeData(w, http.StatusOK, ev)
}

// HandleUpdate handles PATCH /api/accounts/{accountID}/life-events/{eventID}
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var patch lifeevents.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", "")
		return
	}

	h.execute(w, r, orchestrator.UpdateLifeEvent{
		Meta:    h.meta(r),
		EventID: chi.URLParam(r, "eventID"),
		Patch:   patch,
	})
}

// HandleDelete handles DELETE /api/accounts/{accountID}/life-events/{eventID}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	h.execute(w, r, orchestrator.DeleteLifeEvent{
		Meta:    h.meta(r),
		EventID: chi.URLParam(r, "eventID"),
	})
}

func (h *Handler) meta(r *http.Request) orchestrator.Meta {
	return orchestrator.Meta{
		AccountID:      chi.URLParam(r, "accountID"),
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	}
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
