package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/koinonia/backend/internal/logging"
	"github.com/koinonia/backend/internal/models"
	"github.com/koinonia/backend/internal/repositories"
)

// maxAvatarBytes caps profile image uploads.
const maxAvatarBytes = 5 << 20

// UserHandler exposes member profile endpoints.
type UserHandler struct {
	Users   UserStore
	Media   MediaStorage
	NowFunc func() time.Time
}

type profileResponse struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	AvatarURL  string    `json:"avatarUrl,omitempty"`
	BannerURL  string    `json:"bannerUrl,omitempty"`
	Bio        string    `json:"bio,omitempty"`
	City       string    `json:"city,omitempty"`
	Country    string    `json:"country,omitempty"`
	Role       string    `json:"role"`
	Status     string    `json:"status"`
	LastSeenAt time.Time `json:"lastSeenAt"`
}

type updateProfileRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Bio       *string `json:"bio"`
	City      *string `json:"city"`
	Country   *string `json:"country"`
}

type avatarResponse struct {
	AvatarURL string `json:"avatarUrl"`
}

type setStatusRequest struct {
	ActorID string `json:"actorId"`
	UserID  string `json:"userId"`
	Status  string `json:"status"`
}

// Profile handles GET /api/v1/users/profile?user=<id>.
func (h UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	if h.Users == nil {
		logging.FromContext(ctx).Error("user store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "user service unavailable"})
		return
	}

	userID := strings.TrimSpace(r.URL.Query().Get("user"))
	if userID == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "user query parameter is required"})
		return
	}

	user, err := h.Users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "user not found"})
			return
		}
		logging.FromContext(ctx).Error("profile lookup failed", "error", err, "userId", userID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, toProfileResponse(user))
}

// Update handles PUT /api/v1/users/profile?user=<id>. Only the fields present
// in the payload are changed.
func (h UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil {
		logger.Error("user store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "user service unavailable"})
		return
	}

	userID := strings.TrimSpace(r.URL.Query().Get("user"))
	if userID == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "user query parameter is required"})
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid profile payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	user, err := h.Users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "user not found"})
			return
		}
		logger.Error("profile lookup failed", "error", err, "userId", userID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if req.FirstName != nil {
		if strings.TrimSpace(*req.FirstName) == "" {
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "firstName cannot be blank"})
			return
		}
		user.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		if strings.TrimSpace(*req.LastName) == "" {
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "lastName cannot be blank"})
			return
		}
		user.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Bio != nil {
		user.Bio = strings.TrimSpace(*req.Bio)
	}
	if req.City != nil {
		user.City = strings.TrimSpace(*req.City)
	}
	if req.Country != nil {
		user.Country = strings.TrimSpace(*req.Country)
	}
	user.UpdatedAt = h.now()

	if err := h.Users.Update(ctx, user); err != nil {
		logger.Error("profile update failed", "error", err, "userId", userID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to update profile"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, toProfileResponse(user))
}

// Avatar handles POST /api/v1/users/avatar?user=<id> multipart uploads.
func (h UserHandler) Avatar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil || h.Media == nil {
		logger.Error("avatar dependencies unavailable", "hasUsers", h.Users != nil, "hasMedia", h.Media != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "media service unavailable"})
		return
	}

	userID := strings.TrimSpace(r.URL.Query().Get("user"))
	if userID == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "user query parameter is required"})
		return
	}

	user, err := h.Users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "user not found"})
			return
		}
		logger.Error("avatar lookup failed", "error", err, "userId", userID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarBytes)
	file, header, err := r.FormFile("avatar")
	if err != nil {
		logger.Warn("invalid avatar upload", "error", err, "userId", userID)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "avatar file is required"})
		return
	}
	defer file.Close()

	ext := strings.ToLower(path.Ext(header.Filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp":
	default:
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "unsupported image format"})
		return
	}

	key := "avatars/" + userID + "/" + uuid.NewString() + ext
	location, err := h.Media.Save(ctx, key, file)
	if err != nil {
		logger.Error("avatar upload failed", "error", err, "userId", userID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to store avatar"})
		return
	}

	user.AvatarURL = location
	user.UpdatedAt = h.now()
	if err := h.Users.Update(ctx, user); err != nil {
		logger.Error("avatar profile update failed", "error", err, "userId", userID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to update profile"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, avatarResponse{AvatarURL: location})
}

// SetStatus handles POST /api/v1/users/status. Activating or deactivating an
// account is a moderation action; the acting user must hold at least the
// moderator role.
func (h UserHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil {
		logger.Error("user store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "user service unavailable"})
		return
	}

	var req setStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid status payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.ActorID = strings.TrimSpace(req.ActorID)
	req.UserID = strings.TrimSpace(req.UserID)
	req.Status = strings.TrimSpace(req.Status)
	if req.ActorID == "" || req.UserID == "" || req.Status == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "actorId, userId, and status are required"})
		return
	}
	if req.Status != models.UserStatusActive && req.Status != models.UserStatusInactive {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "status must be active or inactive"})
		return
	}

	actor, err := h.Users.FindByID(ctx, req.ActorID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "actor not found"})
			return
		}
		logger.Error("actor lookup failed", "error", err, "actorId", req.ActorID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if !actor.Role.AtLeast(models.RoleModerator) {
		logger.Warn("status change denied", "actorId", req.ActorID, "role", actor.Role)
		respondJSON(ctx, w, http.StatusForbidden, map[string]string{"error": "moderator role required"})
		return
	}

	user, err := h.Users.FindByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "user not found"})
			return
		}
		logger.Error("status target lookup failed", "error", err, "userId", req.UserID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	user.Status = req.Status
	user.UpdatedAt = h.now()
	if err := h.Users.Update(ctx, user); err != nil {
		logger.Error("status update failed", "error", err, "userId", req.UserID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to update status"})
		return
	}

	logger.Info("user status changed", "actorId", req.ActorID, "userId", req.UserID, "status", req.Status)
	respondJSON(ctx, w, http.StatusOK, toProfileResponse(user))
}

func (h UserHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

func toProfileResponse(user models.User) profileResponse {
	return profileResponse{
		ID:         user.ID,
		Email:      user.Email,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		AvatarURL:  user.AvatarURL,
		BannerURL:  user.BannerURL,
		Bio:        user.Bio,
		City:       user.City,
		Country:    user.Country,
		Role:       string(user.Role),
		Status:     user.Status,
		LastSeenAt: user.LastSeenAt,
	}
}
