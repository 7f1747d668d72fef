package handlers

import (
	"context"
	"io"
	"time"

	"github.com/koinonia/backend/internal/models"
)

// UserStore captures the persistence operations required by the auth and
// profile handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	Update(ctx context.Context, user models.User) error
	TouchLastSeen(ctx context.Context, id string, at time.Time) error
}

// SessionManager issues and refreshes authentication tokens for users.
type SessionManager interface {
	Issue(ctx context.Context, userID string) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
}

// FriendshipService captures the friendship state machine operations the
// friend handlers expose over HTTP.
type FriendshipService interface {
	SendRequest(ctx context.Context, requesterID, targetID string) (models.PublicProfile, error)
	AcceptRequest(ctx context.Context, requesterID, receiverID string) error
	RejectRequest(ctx context.Context, requesterID, receiverID string) error
	CancelRequest(ctx context.Context, requesterID, receiverID string) error
	Unfriend(ctx context.Context, userID, friendID string) error
	RelationshipState(ctx context.Context, viewerID, otherID string) (models.RelationshipState, error)
	ListFriends(ctx context.Context, userID string, page, pageSize int) (models.FriendPage, error)
	ListReceivedRequests(ctx context.Context, userID string) ([]models.PublicProfile, error)
	ListSentRequests(ctx context.Context, userID string) ([]models.PublicProfile, error)
	SuggestFriends(ctx context.Context, userID string) ([]models.PublicProfile, error)
}

// NotificationStore captures persistence for social notifications.
type NotificationStore interface {
	Create(ctx context.Context, notification models.Notification) error
	ListForUser(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID string, ids []string) error
}

// EventPublisher pushes real-time events to connected users.
type EventPublisher interface {
	SendFriendEvent(userID, actorID, kind, message string)
}

// MediaStorage persists uploaded profile media and returns a public location.
type MediaStorage interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}
