package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/notification"
)

type NotificationService interface {
	ForUser(ctx context.Context, userID int64) ([]notification.Notification, error)
	Recent(ctx context.Context, limit int) ([]notification.Notification, error)
}

type NotificationHandler struct {
	svc    NotificationService
	logger *zap.Logger
}

func NewNotificationHandler(svc NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{svc: svc, logger: logger}
}

func (h *NotificationHandler) Routes(r chi.Router) {
	r.Route("/api/notifications", func(r chi.Router) {
		r.Get("/user/{userId}", h.ForUser)
		r.Get("/recent", h.Recent)
	})
}

func (h *NotificationHandler) ForUser(w http.ResponseWriter, r *http.Request) {
	userID, err := idParam(r, "userId")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	ns, err := h.svc.ForUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ns)
}

func (h *NotificationHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	ns, err := h.svc.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ns)
}
