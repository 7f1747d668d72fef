package friendships

import (
	"context"

	"github.com/koinonia/backend/internal/models"
)

// EdgeKind identifies the relation an edge row represents from its owner's
// point of view: an accepted friendship, a request the owner sent, or a
// request the owner received.
type EdgeKind string

const (
	EdgeFriend  EdgeKind = "friend"
	EdgeSent    EdgeKind = "sent"
	EdgePending EdgeKind = "pending"
)

// Edge is one directed relation row. A logical friendship or request is
// always stored as two edges, one per participant.
type Edge struct {
	UserID  string
	OtherID string
	Kind    EdgeKind
}

// Tx is the transactionally consistent view a mutating operation works
// against. All guards are re-validated through it so that check and write
// happen on the same snapshot.
type Tx interface {
	// GetUser loads a user inside the transaction. Returns an error wrapping
	// ErrUserNotFound when the user does not exist.
	GetUser(ctx context.Context, id string) (models.User, error)
	// PairEdges returns every edge stored between the two users, in both
	// directions. The primary key guarantees at most one edge per direction.
	PairEdges(ctx context.Context, a, b string) ([]Edge, error)
	// AddEdge records an edge if absent. Adding an edge that already exists
	// is a no-op, which keeps replayed transactions idempotent.
	AddEdge(ctx context.Context, userID, otherID string, kind EdgeKind) error
	// RemoveEdge deletes the edge if present.
	RemoveEdge(ctx context.Context, userID, otherID string, kind EdgeKind) error
}

// Store abstracts the transactional document store the service mutates. The
// PostgreSQL implementation lives in the repositories package.
type Store interface {
	// InTx runs fn inside a serializable transaction. When the store aborts
	// the transaction due to contention, the returned error wraps
	// ErrTransientConflict; any error from fn aborts the transaction and is
	// returned as-is.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// GetUser loads a user outside any transaction.
	GetUser(ctx context.Context, id string) (models.User, error)
	// RelationshipEdge returns the single edge the viewer holds toward the
	// other user, if any.
	RelationshipEdge(ctx context.Context, viewerID, otherID string) (EdgeKind, bool, error)
	// ListFriends returns one page of the user's active friends plus the
	// total count of active friends.
	ListFriends(ctx context.Context, userID string, limit, offset int) ([]models.PublicProfile, int, error)
	// ListRequests returns the active counterparts of the user's sent or
	// pending request set.
	ListRequests(ctx context.Context, userID string, kind EdgeKind) ([]models.PublicProfile, error)
	// SuggestCandidates returns active users with no edge from userID,
	// newest accounts first.
	SuggestCandidates(ctx context.Context, userID string, limit int) ([]models.PublicProfile, error)
}
