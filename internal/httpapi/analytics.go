package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/analytics"
)

type AnalyticsService interface {
	Summary(ctx context.Context) (analytics.Summary, error)
	RebuildSummary(ctx context.Context) (analytics.Summary, error)
	RecentEvents(ctx context.Context, hours int) ([]analytics.Event, error)
	EventsByType(ctx context.Context, eventType string) ([]analytics.Event, error)
	EventsByUser(ctx context.Context, userID int64) ([]analytics.Event, error)
}

type AnalyticsHandler struct {
	svc    AnalyticsService
	logger *zap.Logger
}

func NewAnalyticsHandler(svc AnalyticsService, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc, logger: logger}
}

func (h *AnalyticsHandler) Routes(r chi.Router) {
	r.Route("/api/analytics", func(r chi.Router) {
		r.Get("/summary", h.Summary)
		r.Post("/summary/rebuild", h.Rebuild)
		r.Get("/events/recent", h.Recent)
		r.Get("/events/type/{type}", h.ByType)
		r.Get("/events/user/{userId}", h.ByUser)
	})
}

func (h *AnalyticsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.Summary(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// Rebuild recomputes the summary from the event log.
func (h *AnalyticsHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.RebuildSummary(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *AnalyticsHandler) Recent(w http.ResponseWriter, r *http.Request) {
	hours, err := queryInt(r, "hours", 0)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	evs, err := h.svc.RecentEvents(r.Context(), hours)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, evs)
}

func (h *AnalyticsHandler) ByType(w http.ResponseWriter, r *http.Request) {
	evs, err := h.svc.EventsByType(r.Context(), chi.URLParam(r, "type"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, evs)
}

func (h *AnalyticsHandler) ByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := idParam(r, "userId")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	evs, err := h.svc.EventsByUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, evs)
}
