package friendships

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/koinonia/backend/internal/logging"
	"github.com/koinonia/backend/internal/models"
)

const (
	// maxAttempts bounds how often a conflicted mutation is replayed.
	maxAttempts = 3
	// opTimeout caps the total wall clock spent on one mutation, retries included.
	opTimeout = 3 * time.Second

	backoffBase = 20 * time.Millisecond

	// SuggestionLimit caps the friend suggestion list.
	SuggestionLimit = 10

	defaultPageSize = 20
	maxPageSize     = 100
)

// Service owns the bidirectional friend-request state machine. Every
// mutation replays its guards and both symmetric writes inside a single
// store transaction, so the relation sets of the two users never diverge.
type Service struct {
	store Store

	// sleep is swapped out by tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewService constructs the friendship service on top of a transactional store.
func NewService(store Store) *Service {
	if store == nil {
		panic("friendships: store must not be nil")
	}
	return &Service{store: store, sleep: sleepCtx}
}

// SendRequest records a pending friend request from requester to target and
// returns the target's public profile for display.
func (s *Service) SendRequest(ctx context.Context, requesterID, targetID string) (models.PublicProfile, error) {
	if requesterID == targetID {
		return models.PublicProfile{}, ErrSelfRequest
	}

	var target models.User
	err := s.mutate(ctx, "send_request", func(ctx context.Context, tx Tx) error {
		requester, err := activeUser(ctx, tx, requesterID)
		if err != nil {
			return err
		}
		target, err = activeUser(ctx, tx, targetID)
		if err != nil {
			return err
		}

		edges, err := tx.PairEdges(ctx, requester.ID, target.ID)
		if err != nil {
			return err
		}
		for _, edge := range edges {
			if edge.Kind == EdgeFriend {
				return ErrAlreadyFriends
			}
		}
		if len(edges) > 0 {
			// Any sent or pending edge, in either direction, blocks a new
			// request. This closes the crossed-request race where both users
			// request each other at once.
			return ErrRequestExists
		}

		if err := tx.AddEdge(ctx, requester.ID, target.ID, EdgeSent); err != nil {
			return err
		}
		return tx.AddEdge(ctx, target.ID, requester.ID, EdgePending)
	})
	if err != nil {
		return models.PublicProfile{}, err
	}
	return target.PublicProfile(), nil
}

// AcceptRequest converts the pending request from requester to receiver into
// a symmetric friendship.
func (s *Service) AcceptRequest(ctx context.Context, requesterID, receiverID string) error {
	return s.mutate(ctx, "accept_request", func(ctx context.Context, tx Tx) error {
		if err := requirePendingRequest(ctx, tx, requesterID, receiverID); err != nil {
			return err
		}

		if err := tx.RemoveEdge(ctx, receiverID, requesterID, EdgePending); err != nil {
			return err
		}
		if err := tx.RemoveEdge(ctx, requesterID, receiverID, EdgeSent); err != nil {
			return err
		}
		if err := tx.AddEdge(ctx, receiverID, requesterID, EdgeFriend); err != nil {
			return err
		}
		return tx.AddEdge(ctx, requesterID, receiverID, EdgeFriend)
	})
}

// RejectRequest removes the pending request from requester to receiver
// without creating a friendship.
func (s *Service) RejectRequest(ctx context.Context, requesterID, receiverID string) error {
	return s.removeRequest(ctx, "reject_request", requesterID, receiverID)
}

// CancelRequest is the sender-initiated undo of a still-pending request. The
// resulting state is identical to a rejection.
func (s *Service) CancelRequest(ctx context.Context, requesterID, receiverID string) error {
	return s.removeRequest(ctx, "cancel_request", requesterID, receiverID)
}

func (s *Service) removeRequest(ctx context.Context, op, requesterID, receiverID string) error {
	return s.mutate(ctx, op, func(ctx context.Context, tx Tx) error {
		if err := requirePendingRequest(ctx, tx, requesterID, receiverID); err != nil {
			return err
		}

		if err := tx.RemoveEdge(ctx, receiverID, requesterID, EdgePending); err != nil {
			return err
		}
		return tx.RemoveEdge(ctx, requesterID, receiverID, EdgeSent)
	})
}

// Unfriend removes an existing friendship on both sides.
func (s *Service) Unfriend(ctx context.Context, userID, friendID string) error {
	return s.mutate(ctx, "unfriend", func(ctx context.Context, tx Tx) error {
		if _, err := existingUser(ctx, tx, userID); err != nil {
			return err
		}
		if _, err := existingUser(ctx, tx, friendID); err != nil {
			return err
		}

		edges, err := tx.PairEdges(ctx, userID, friendID)
		if err != nil {
			return err
		}
		if !hasEdge(edges, userID, friendID, EdgeFriend) || !hasEdge(edges, friendID, userID, EdgeFriend) {
			return ErrNotFriends
		}

		if err := tx.RemoveEdge(ctx, userID, friendID, EdgeFriend); err != nil {
			return err
		}
		return tx.RemoveEdge(ctx, friendID, userID, EdgeFriend)
	})
}

// RelationshipState reports how the viewer relates to the other user. This
// is a plain read; it only guarantees read-your-own-writes.
func (s *Service) RelationshipState(ctx context.Context, viewerID, otherID string) (models.RelationshipState, error) {
	if viewerID == otherID {
		return models.RelationSelf, nil
	}

	if _, err := s.lookupUser(ctx, viewerID); err != nil {
		return "", err
	}

	kind, ok, err := s.store.RelationshipEdge(ctx, viewerID, otherID)
	if err != nil {
		return "", fmt.Errorf("load relationship edge: %w", err)
	}
	if !ok {
		return models.RelationNone, nil
	}

	switch kind {
	case EdgeFriend:
		return models.RelationFriends, nil
	case EdgePending:
		return models.RelationRequestReceived, nil
	case EdgeSent:
		return models.RelationRequestSent, nil
	default:
		return models.RelationNone, nil
	}
}

// ListFriends returns one page of the user's active friends, most recently
// seen first. Display fields are joined from the user records at read time.
func (s *Service) ListFriends(ctx context.Context, userID string, page, pageSize int) (models.FriendPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	if _, err := s.lookupUser(ctx, userID); err != nil {
		return models.FriendPage{}, err
	}

	items, total, err := s.store.ListFriends(ctx, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return models.FriendPage{}, fmt.Errorf("list friends: %w", err)
	}

	return models.FriendPage{Items: items, Page: page, PageSize: pageSize, Total: total}, nil
}

// ListReceivedRequests returns the active users who have requested the user's
// friendship.
func (s *Service) ListReceivedRequests(ctx context.Context, userID string) ([]models.PublicProfile, error) {
	return s.listRequests(ctx, userID, EdgePending)
}

// ListSentRequests returns the active users the user has requested.
func (s *Service) ListSentRequests(ctx context.Context, userID string) ([]models.PublicProfile, error) {
	return s.listRequests(ctx, userID, EdgeSent)
}

func (s *Service) listRequests(ctx context.Context, userID string, kind EdgeKind) ([]models.PublicProfile, error) {
	if _, err := s.lookupUser(ctx, userID); err != nil {
		return nil, err
	}

	items, err := s.store.ListRequests(ctx, userID, kind)
	if err != nil {
		return nil, fmt.Errorf("list %s requests: %w", kind, err)
	}
	return items, nil
}

// SuggestFriends returns active users the user holds no relation to, newest
// accounts first, capped at SuggestionLimit.
func (s *Service) SuggestFriends(ctx context.Context, userID string) ([]models.PublicProfile, error) {
	if _, err := s.lookupUser(ctx, userID); err != nil {
		return nil, err
	}

	items, err := s.store.SuggestCandidates(ctx, userID, SuggestionLimit)
	if err != nil {
		return nil, fmt.Errorf("suggest friends: %w", err)
	}
	return items, nil
}

// mutate replays op inside store transactions until it commits, hits a
// deterministic guard failure, or exhausts the retry budget. Guard failures
// never retry; only transient store conflicts do.
func (s *Service) mutate(ctx context.Context, name string, op func(ctx context.Context, tx Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	ctx, span := logging.StartSpan(ctx, "friendships."+name)
	defer span.End()

	logger := logging.FromContext(ctx)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := s.sleep(ctx, jitteredBackoff(attempt)); err != nil {
				return err
			}
		}

		err := s.store.InTx(ctx, op)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrTransientConflict) {
			return err
		}

		logger.Warn("friendship mutation conflicted",
			"operation", name,
			"attempt", attempt,
			"error", err,
		)
		lastErr = err
	}

	return fmt.Errorf("%w (%s): %v", ErrUnavailable, name, lastErr)
}

// jitteredBackoff de-correlates retries between racing clients.
func jitteredBackoff(attempt int) time.Duration {
	base := backoffBase << (attempt - 2)
	return base + rand.N(2*backoffBase)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Service) lookupUser(ctx context.Context, id string) (models.User, error) {
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, fmt.Errorf("load user %s: %w", id, err)
	}
	return user, nil
}

func existingUser(ctx context.Context, tx Tx, id string) (models.User, error) {
	user, err := tx.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, fmt.Errorf("load user %s: %w", id, err)
	}
	return user, nil
}

func activeUser(ctx context.Context, tx Tx, id string) (models.User, error) {
	user, err := existingUser(ctx, tx, id)
	if err != nil {
		return models.User{}, err
	}
	if user.Status != models.UserStatusActive {
		return models.User{}, ErrUserNotFound
	}
	return user, nil
}

// requirePendingRequest demands that both halves of the request edge agree.
// If only one side exists the data is inconsistent, and the operation fails
// rather than partially repairing it.
func requirePendingRequest(ctx context.Context, tx Tx, requesterID, receiverID string) error {
	if _, err := existingUser(ctx, tx, requesterID); err != nil {
		return err
	}
	if _, err := existingUser(ctx, tx, receiverID); err != nil {
		return err
	}

	edges, err := tx.PairEdges(ctx, requesterID, receiverID)
	if err != nil {
		return err
	}
	if !hasEdge(edges, receiverID, requesterID, EdgePending) || !hasEdge(edges, requesterID, receiverID, EdgeSent) {
		return ErrRequestNotFound
	}
	return nil
}

func hasEdge(edges []Edge, userID, otherID string, kind EdgeKind) bool {
	for _, edge := range edges {
		if edge.UserID == userID && edge.OtherID == otherID && edge.Kind == kind {
			return true
		}
	}
	return false
}
