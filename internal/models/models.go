package models

import "time"

// User represents an account within the Koinonia platform.
type User struct {
	ID         string
	Email      string
	Password   string
	FirstName  string
	LastName   string
	AvatarURL  string
	BannerURL  string
	Bio        string
	City       string
	Country    string
	Role       Role
	Status     string
	LastSeenAt time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// User lifecycle states. Only active users may participate in friendships.
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
	UserStatusPending  = "pending"
)

// PublicProfile is the minimal user projection exposed to other members.
type PublicProfile struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	AvatarURL  string     `json:"avatarUrl,omitempty"`
	City       string     `json:"city,omitempty"`
	Country    string     `json:"country,omitempty"`
	LastSeenAt *time.Time `json:"lastSeenAt,omitempty"`
}

// PublicProfile builds the display projection for this user.
func (u User) PublicProfile() PublicProfile {
	p := PublicProfile{
		ID:        u.ID,
		Name:      u.FirstName + " " + u.LastName,
		AvatarURL: u.AvatarURL,
		City:      u.City,
		Country:   u.Country,
	}
	if !u.LastSeenAt.IsZero() {
		t := u.LastSeenAt
		p.LastSeenAt = &t
	}
	return p
}

// RelationshipState describes how a viewer relates to another user.
type RelationshipState string

const (
	RelationSelf            RelationshipState = "self"
	RelationFriends         RelationshipState = "friends"
	RelationRequestReceived RelationshipState = "requestReceived"
	RelationRequestSent     RelationshipState = "requestSent"
	RelationNone            RelationshipState = "none"
)

// FriendPage is one page of a user's friend list.
type FriendPage struct {
	Items    []PublicProfile `json:"items"`
	Page     int             `json:"page"`
	PageSize int             `json:"pageSize"`
	Total    int             `json:"total"`
}

// Notification records a social event addressed to a user.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	ActorID   string    `json:"actorId"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// Notification kinds emitted by the friendship service.
const (
	NotificationFriendRequest  = "friend.request"
	NotificationFriendAccepted = "friend.accept"
)

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}
