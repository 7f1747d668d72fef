package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/koinonia/backend/internal/friendships"
	"github.com/koinonia/backend/internal/logging"
	"github.com/koinonia/backend/internal/models"
)

// FriendHandler exposes the friendship state machine over HTTP. Status-code
// mapping lives here; the service itself only reports error kinds.
type FriendHandler struct {
	Friends       FriendshipService
	Notifications NotificationStore
	Events        EventPublisher
	Limiter       RateLimiter
	NowFunc       func() time.Time
}

type friendPairRequest struct {
	RequesterID string `json:"requesterId"`
	ReceiverID  string `json:"receiverId"`
}

type unfriendRequest struct {
	UserID   string `json:"userId"`
	FriendID string `json:"friendId"`
}

type sendRequestResponse struct {
	Message string               `json:"message"`
	Target  models.PublicProfile `json:"target"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type stateResponse struct {
	State models.RelationshipState `json:"state"`
}

type requestListResponse struct {
	Items []models.PublicProfile `json:"items"`
	Count int                    `json:"count"`
}

type suggestionsResponse struct {
	Items []models.PublicProfile `json:"items"`
}

// Request handles POST /api/v1/friends/request.
func (h FriendHandler) Request(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Friends == nil {
		logger.Error("friendship service unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "friendship service unavailable"})
		return
	}

	if !allowRequest(h.Limiter, r, "friend-request") {
		logger.Warn("friend request rate limited", "remote", r.RemoteAddr)
		respondJSON(ctx, w, http.StatusTooManyRequests, map[string]string{"error": "too many friend requests, slow down"})
		return
	}

	pair, ok := decodePair(ctx, w, r)
	if !ok {
		return
	}

	target, err := h.Friends.SendRequest(ctx, pair.RequesterID, pair.ReceiverID)
	if err != nil {
		respondFriendError(ctx, w, "send friend request", err)
		return
	}

	h.notify(ctx, pair.ReceiverID, pair.RequesterID, models.NotificationFriendRequest, "sent you a friend request")

	respondJSON(ctx, w, http.StatusCreated, sendRequestResponse{
		Message: "friend request sent",
		Target:  target,
	})
}

// Accept handles POST /api/v1/friends/accept.
func (h FriendHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.resolveRequest(w, r, func(ctx context.Context, pair friendPairRequest) error {
		if err := h.Friends.AcceptRequest(ctx, pair.RequesterID, pair.ReceiverID); err != nil {
			return err
		}
		// Tell the original requester their request was accepted.
		h.notify(ctx, pair.RequesterID, pair.ReceiverID, models.NotificationFriendAccepted, "accepted your friend request")
		return nil
	}, "friend request accepted")
}

// Reject handles POST /api/v1/friends/reject.
func (h FriendHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.resolveRequest(w, r, func(ctx context.Context, pair friendPairRequest) error {
		return h.Friends.RejectRequest(ctx, pair.RequesterID, pair.ReceiverID)
	}, "friend request rejected")
}

// Cancel handles POST /api/v1/friends/cancel.
func (h FriendHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.resolveRequest(w, r, func(ctx context.Context, pair friendPairRequest) error {
		return h.Friends.CancelRequest(ctx, pair.RequesterID, pair.ReceiverID)
	}, "friend request cancelled")
}

// resolveRequest dispatches the accept/reject/cancel trio, which share their
// request shape and differ only in the service call and follow-up.
func (h FriendHandler) resolveRequest(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, pair friendPairRequest) error, message string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	if h.Friends == nil {
		logging.FromContext(ctx).Error("friendship service unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "friendship service unavailable"})
		return
	}

	pair, ok := decodePair(ctx, w, r)
	if !ok {
		return
	}

	if err := op(ctx, pair); err != nil {
		respondFriendError(ctx, w, "resolve friend request", err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, messageResponse{Message: message})
}

// Unfriend handles DELETE /api/v1/friends.
func (h FriendHandler) Unfriend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Friends == nil {
		logger.Error("friendship service unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "friendship service unavailable"})
		return
	}

	var req unfriendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid unfriend payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.UserID = strings.TrimSpace(req.UserID)
	req.FriendID = strings.TrimSpace(req.FriendID)
	if req.UserID == "" || req.FriendID == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "userId and friendId are required"})
		return
	}

	if err := h.Friends.Unfriend(ctx, req.UserID, req.FriendID); err != nil {
		respondFriendError(ctx, w, "unfriend", err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, messageResponse{Message: "friendship removed"})
}

// State handles GET /api/v1/friends/state?user=<id>&other=<id>.
func (h FriendHandler) State(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	if h.Friends == nil {
		logging.FromContext(ctx).Error("friendship service unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "friendship service unavailable"})
		return
	}

	viewerID := strings.TrimSpace(r.URL.Query().Get("user"))
	otherID := strings.TrimSpace(r.URL.Query().Get("other"))
	if viewerID == "" || otherID == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "user and other query parameters are required"})
		return
	}

	state, err := h.Friends.RelationshipState(ctx, viewerID, otherID)
	if err != nil {
		respondFriendError(ctx, w, "relationship state", err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, stateResponse{State: state})
}

// List handles GET /api/v1/friends?user=<id>&page=<n>&pageSize=<n>.
func (h FriendHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	if h.Friends == nil {
		logging.FromContext(ctx).Error("friendship service unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "friendship service unavailable"})
		return
	}

	userID := strings.TrimSpace(r.URL.Query().Get("user"))
	if userID == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "user query parameter is required"})
		return
	}

	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "pageSize", 0)

	friends, err := h.Friends.ListFriends(ctx, userID, page, pageSize)
	if err != nil {
		respondFriendError(ctx, w, "list friends", err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, friends)
}

// Received handles GET /api/v1/friends/requests/received?user=<id>.
func (h FriendHandler) Received(w http.ResponseWriter, r *http.Request) {
	h.listRequests(w, r, func(ctx context.Context, userID string) ([]models.PublicProfile, error) {
		return h.Friends.ListReceivedRequests(ctx, userID)
	})
}

// Sent handles GET /api/v1/friends/requests/sent?user=<id>.
func (h FriendHandler) Sent(w http.ResponseWriter, r *http.Request) {
	h.listRequests(w, r, func(ctx context.Context, userID string) ([]models.PublicProfile, error) {
		return h.Friends.ListSentRequests(ctx, userID)
	})
}

func (h FriendHandler) listRequests(w http.ResponseWriter, r *http.Request, list func(ctx context.Context, userID string) ([]models.PublicProfile, error)) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	if h.Friends == nil {
		logging.FromContext(ctx).Error("friendship service unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "friendship service unavailable"})
		return
	}

	userID := strings.TrimSpace(r.URL.Query().Get("user"))
	if userID == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "user query parameter is required"})
		return
	}

	items, err := list(ctx, userID)
	if err != nil {
		respondFriendError(ctx, w, "list friend requests", err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, requestListResponse{Items: items, Count: len(items)})
}

// Suggestions handles GET /api/v1/friends/suggestions?user=<id>.
func (h FriendHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	if h.Friends == nil {
		logging.FromContext(ctx).Error("friendship service unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "friendship service unavailable"})
		return
	}

	userID := strings.TrimSpace(r.URL.Query().Get("user"))
	if userID == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "user query parameter is required"})
		return
	}

	items, err := h.Friends.SuggestFriends(ctx, userID)
	if err != nil {
		respondFriendError(ctx, w, "suggest friends", err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, suggestionsResponse{Items: items})
}

// notify records a notification and pushes a real-time event, best effort.
// Failures here never fail the friendship operation that already committed.
func (h FriendHandler) notify(ctx context.Context, userID, actorID, kind, message string) {
	logger := logging.FromContext(ctx)

	if h.Notifications != nil {
		notification := models.Notification{
			ID:        uuid.NewString(),
			UserID:    userID,
			ActorID:   actorID,
			Kind:      kind,
			Message:   message,
			CreatedAt: h.now(),
		}
		if err := h.Notifications.Create(ctx, notification); err != nil {
			logger.Error("record friend notification", "error", err, "userId", userID, "kind", kind)
		}
	}

	if h.Events != nil {
		h.Events.SendFriendEvent(userID, actorID, kind, message)
	}
}

func (h FriendHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

func decodePair(ctx context.Context, w http.ResponseWriter, r *http.Request) (friendPairRequest, bool) {
	logger := logging.FromContext(ctx)

	var pair friendPairRequest
	if err := json.NewDecoder(r.Body).Decode(&pair); err != nil {
		logger.Warn("invalid friend payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return friendPairRequest{}, false
	}

	pair.RequesterID = strings.TrimSpace(pair.RequesterID)
	pair.ReceiverID = strings.TrimSpace(pair.ReceiverID)
	if pair.RequesterID == "" || pair.ReceiverID == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "requesterId and receiverId are required"})
		return friendPairRequest{}, false
	}

	return pair, true
}

// respondFriendError maps service error kinds onto HTTP statuses: guard
// violations are client errors, missing entities are 404, exhausted retries
// and everything else are internal.
func respondFriendError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	logger := logging.FromContext(ctx)

	switch {
	case errors.Is(err, friendships.ErrSelfRequest),
		errors.Is(err, friendships.ErrAlreadyFriends),
		errors.Is(err, friendships.ErrRequestExists),
		errors.Is(err, friendships.ErrNotFriends):
		logger.Warn(op+" rejected", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, friendships.ErrUserNotFound),
		errors.Is(err, friendships.ErrRequestNotFound):
		logger.Warn(op+" target missing", "error", err)
		respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		logger.Error(op+" failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return i
}
