package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/koinonia/backend/internal/logging"
	"github.com/koinonia/backend/internal/models"
)

const defaultNotificationLimit = 50

// NotificationHandler exposes the notification inbox.
type NotificationHandler struct {
	Notifications NotificationStore
}

type notificationListResponse struct {
	Items []models.Notification `json:"items"`
}

type markReadRequest struct {
	UserID string   `json:"userId"`
	IDs    []string `json:"ids"`
}

// List handles GET /api/v1/notifications?user=<id>&limit=<n>.
func (h NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	if h.Notifications == nil {
		logging.FromContext(ctx).Error("notification store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "notification service unavailable"})
		return
	}

	userID := strings.TrimSpace(r.URL.Query().Get("user"))
	if userID == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "user query parameter is required"})
		return
	}

	limit := queryInt(r, "limit", defaultNotificationLimit)
	if limit <= 0 || limit > defaultNotificationLimit {
		limit = defaultNotificationLimit
	}

	items, err := h.Notifications.ListForUser(ctx, userID, limit)
	if err != nil {
		logging.FromContext(ctx).Error("list notifications failed", "error", err, "userId", userID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, notificationListResponse{Items: items})
}

// MarkRead handles POST /api/v1/notifications/read.
func (h NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Notifications == nil {
		logger.Error("notification store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "notification service unavailable"})
		return
	}

	var req markReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid mark-read payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" || len(req.IDs) == 0 {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "userId and ids are required"})
		return
	}

	if err := h.Notifications.MarkRead(ctx, req.UserID, req.IDs); err != nil {
		logger.Error("mark notifications read failed", "error", err, "userId", req.UserID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, messageResponse{Message: "notifications marked read"})
}
