package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/pairlink-inc/pairlink-engine/pkg/repositories"
)

// NotificationHandler exposes a user's delivered notifications.
type NotificationHandler struct {
	notifications repositories.NotificationRepository
	logger        *zap.Logger
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(notifications repositories.NotificationRepository, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, logger: logger.Named("notification_handler")}
}

// RegisterRoutes registers the notification routes on the given mux.
func (h *NotificationHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/notifications", h.List)
	mux.HandleFunc("PATCH /api/notifications/{nid}", h.MarkRead)
}

// List handles GET /api/notifications.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := ActingUserID(w, r)
	if !ok {
		return
	}

	notifications, err := h.notifications.ListForUser(r.Context(), userID)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]interface{}{"notifications": notifications}); err != nil {
		h.logger.Error("failed to encode notifications", zap.Error(err))
	}
}

// MarkRead handles PATCH /api/notifications/{nid}.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := ActingUserID(w, r)
	if !ok {
		return
	}
	notificationID, ok := ParseNotificationID(w, r)
	if !ok {
		return
	}

	if err := h.notifications.MarkRead(r.Context(), notificationID, userID); err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
