package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers schedule routes under the account scope.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/accounts/{accountID}/schedules", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Get("/{scheduleID}", h.HandleGet)
		r.Get("/{scheduleID}/next-occurrence", h.HandleNextOccurrence)
		r.Patch("/{scheduleID}", h.HandleUpdate)
		r.Post("/{scheduleID}/pause", h.HandlePause)
		r.Post("/{scheduleID}/resume", h.HandleResume)
		r.Post("/{scheduleID}/complete", h.HandleComplete)
		r.Delete("/{scheduleID}", h.HandleDelete)
	})
}
