// Package handlers provides HTTP handlers for auto-invest schedule
// management. All mutations go through the orchestrator; handlers only
// translate between HTTP and commands.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/bluum-finance/autoinvest/internal/domain"
	"github.com/bluum-finance/autoinvest/internal/modules/schedules"
	"github.com/bluum-finance/autoinvest/internal/orchestrator"
)

// Handler handles schedule HTTP requests
type Handler struct {
	repo *schedules.Repository
	orch *orchestrator.Orchestrator
	log  zerolog.Logger
}

// NewHandler creates a new schedule handler
func NewHandler(repo *schedules.Repository, orch *orchestrator.Orchestrator, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		orch: orch,
		log:  log.With().Str("handler", "schedules").Logger(),
	}
}

// HandleCreate handles POST /api/accounts/{accountID}/schedules
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var cmd orchestrator.CreateSchedule
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", "")
		return
	}
	cmd.AccountID = chi.URLParam(r, "accountID")
	cmd.IdempotencyKey = r.Header.Get("Idempotency-Key")

	h.execute(w, r, cmd)
}

// HandleList handles GET /api/accounts/{accountID}/schedules
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	filter := schedules.ListFilter{
		Status:      schedules.Status(r.URL.Query().Get("status")),
		PortfolioID: r.URL.Query().Get("portfolio_id"),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		h.writeError(w, http.StatusBadRequest, "validation_error", "Unknown status filter", "status")
		return
	}

	result, err := h.repo.List(accountID, filter)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeData(w, http.StatusOK, result)
}

// HandleGet handles GET /api/accounts/{accountID}/schedules/{scheduleID}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	s, err := h.repo.Get(chi.URLParam(r, "accountID"), chi.URLParam(r, "scheduleID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeData(w, http.StatusOK, s)
}

// HandleNextOccurrence handles GET /api/accounts/{accountID}/schedules/{scheduleID}/next-occurrence
func (h *Handler) HandleNextOccurrence(w http.ResponseWriter, r *http.Request) {
	s, err := h.repo.Get(chi.URLParam(r, "accountID"), chi.URLParam(r, "scheduleID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	after := time.Now().UTC()
	if from := r.URL.Query().Get("after"); from != "" {
		parsed, err := time.Parse("2006-01-02", from)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "validation_error", "after must be a YYYY-MM-DD date", "after")
			return
		}
		after = parsed
	}

	next := schedules.NextOccurrence(s.Frequency, s.Timing, after)
	h.writeData(w, http.StatusOK, map[string]interface{}{
		"schedule_id":     s.ID,
		"next_occurrence": next.Format("2006-01-02"),
	})
}

// HandleUpdate handles PATCH /api/accounts/{accountID}/schedules/{scheduleID}
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var patch schedules.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", "")
		return
	}

	h.execute(w, r, orchestrator.UpdateSchedule{
		Meta:       h.meta(r),
		ScheduleID: chi.URLParam(r, "scheduleID"),
		Patch:      patch,
	})
}

// HandlePause handles POST /api/accounts/{accountID}/schedules/{scheduleID}/pause
func (h *Handler) HandlePause(w http.ResponseWriter, r *http.Request) {
	h.execute(w, r, orchestrator.PauseSchedule{
		Meta:       h.meta(r),
		ScheduleID: chi.URLParam(r, "scheduleID"),
	})
}

// HandleResume handles POST /api/accounts/{accountID}/schedules/{scheduleID}/resume
func (h *Handler) HandleResume(w http.ResponseWriter, r *http.Request) {
	h.execute(w, r, orchestrator.ResumeSchedule{
		Meta:       h.meta(r),
		ScheduleID: chi.URLParam(r, "scheduleID"),
	})
}

// HandleComplete handles POST /api/accounts/{accountID}/schedules/{scheduleID}/complete
// Issued by the external contribution scheduler once a schedule is fulfilled.
func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	h.execute(w, r, orchestrator.CompleteSchedule{
		Meta:       h.meta(r),
		ScheduleID: chi.URLParam(r, "scheduleID"),
	})
}

// HandleDelete handles DELETE /api/accounts/{accountID}/schedules/{scheduleID}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	h.execute(w, r, orchestrator.DeleteSchedule{
		Meta:       h.meta(r),
		ScheduleID: chi.URLParam(r, "scheduleID"),
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
