package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/koinonia/backend/internal/db"
	"github.com/koinonia/backend/internal/friendships"
	"github.com/koinonia/backend/internal/models"
)

// transientPgErrorCodes are contention failures expected to succeed on retry.
var transientPgErrorCodes = map[string]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"55P03": {}, // lock_not_available
}

// PostgresFriendshipStore implements friendships.Store on a pgx pool. Edges
// live in friend_edges: one row per user per relation, primary key on the
// ordered pair, so each direction stores at most one relation kind.
type PostgresFriendshipStore struct {
	pool db.Pool
}

// NewPostgresFriendshipStore constructs a friendship store backed by PostgreSQL.
func NewPostgresFriendshipStore(pool db.Pool) *PostgresFriendshipStore {
	return &PostgresFriendshipStore{pool: pool}
}

// InTx runs fn inside a serializable transaction. Contention aborts are
// reported as friendships.ErrTransientConflict so the service can replay the
// whole operation.
func (s *PostgresFriendshipStore) InTx(ctx context.Context, fn func(ctx context.Context, tx friendships.Tx) error) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin friendship transaction: %w", err)
	}

	if err := fn(ctx, &friendshipTx{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return classifyTxError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return classifyTxError(fmt.Errorf("commit friendship transaction: %w", err))
	}

	return nil
}

func classifyTxError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if _, ok := transientPgErrorCodes[pgErr.Code]; ok {
			return fmt.Errorf("%w: %v", friendships.ErrTransientConflict, err)
		}
	}
	return err
}

// friendshipTx exposes the transactional view used by mutating operations.
type friendshipTx struct {
	tx pgx.Tx
}

func (t *friendshipTx) GetUser(ctx context.Context, id string) (models.User, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, friendships.ErrUserNotFound
		}
		return models.User{}, fmt.Errorf("select user in transaction: %w", err)
	}
	return user, nil
}

func (t *friendshipTx) PairEdges(ctx context.Context, a, b string) ([]friendships.Edge, error) {
	rows, err := t.tx.Query(ctx, `
        SELECT user_id, other_id, kind
        FROM friend_edges
        WHERE (user_id = $1 AND other_id = $2) OR (user_id = $2 AND other_id = $1)
    `, a, b)
	if err != nil {
		return nil, fmt.Errorf("query pair edges: %w", err)
	}
	defer rows.Close()

	var edges []friendships.Edge
	for rows.Next() {
		var (
			edge friendships.Edge
			kind string
		)
		if err := rows.Scan(&edge.UserID, &edge.OtherID, &kind); err != nil {
			return nil, fmt.Errorf("scan pair edge: %w", err)
		}
		edge.Kind = friendships.EdgeKind(kind)
		edges = append(edges, edge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pair edges: %w", err)
	}

	return edges, nil
}

// AddEdge inserts the edge if the ordered pair holds none yet. The no-op on
// conflict keeps replayed transactions idempotent.
func (t *friendshipTx) AddEdge(ctx context.Context, userID, otherID string, kind friendships.EdgeKind) error {
	_, err := t.tx.Exec(ctx, `
        INSERT INTO friend_edges (user_id, other_id, kind)
        VALUES ($1, $2, $3)
        ON CONFLICT (user_id, other_id) DO NOTHING
    `, userID, otherID, string(kind))
	if err != nil {
		return fmt.Errorf("insert %s edge: %w", kind, err)
	}
	return nil
}

// RemoveEdge deletes the edge if present.
func (t *friendshipTx) RemoveEdge(ctx context.Context, userID, otherID string, kind friendships.EdgeKind) error {
	_, err := t.tx.Exec(ctx, `
        DELETE FROM friend_edges
        WHERE user_id = $1 AND other_id = $2 AND kind = $3
    `, userID, otherID, string(kind))
	if err != nil {
		return fmt.Errorf("delete %s edge: %w", kind, err)
	}
	return nil
}

// GetUser loads a user outside any transaction.
func (s *PostgresFriendshipStore) GetUser(ctx context.Context, id string) (models.User, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, friendships.ErrUserNotFound
		}
		return models.User{}, fmt.Errorf("select user: %w", err)
	}
	return user, nil
}

// RelationshipEdge returns the single edge the viewer holds toward the other user.
func (s *PostgresFriendshipStore) RelationshipEdge(ctx context.Context, viewerID, otherID string) (friendships.EdgeKind, bool, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return "", false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var kind string
	err = conn.QueryRow(ctx, `
        SELECT kind FROM friend_edges WHERE user_id = $1 AND other_id = $2
    `, viewerID, otherID).Scan(&kind)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("select relationship edge: %w", err)
	}

	return friendships.EdgeKind(kind), true, nil
}

const profileColumns = `u.id, u.first_name, u.last_name, u.avatar_url, u.city, u.country, u.last_seen_at`

// ListFriends returns one page of active friends, most recently seen first,
// plus the total count of active friends.
func (s *PostgresFriendshipStore) ListFriends(ctx context.Context, userID string, limit, offset int) ([]models.PublicProfile, int, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+profileColumns+`
        FROM friend_edges e
        JOIN users u ON u.id = e.other_id AND u.status = 'active'
        WHERE e.user_id = $1 AND e.kind = 'friend'
        ORDER BY u.last_seen_at DESC
        LIMIT $2 OFFSET $3
    `, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query friends: %w", err)
	}

	items, err := collectProfiles(rows)
	if err != nil {
		return nil, 0, err
	}

	var total int
	err = conn.QueryRow(ctx, `
        SELECT COUNT(*)
        FROM friend_edges e
        JOIN users u ON u.id = e.other_id AND u.status = 'active'
        WHERE e.user_id = $1 AND e.kind = 'friend'
    `, userID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count friends: %w", err)
	}

	return items, total, nil
}

// ListRequests returns the active counterparts of the user's sent or pending set.
func (s *PostgresFriendshipStore) ListRequests(ctx context.Context, userID string, kind friendships.EdgeKind) ([]models.PublicProfile, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+profileColumns+`
        FROM friend_edges e
        JOIN users u ON u.id = e.other_id AND u.status = 'active'
        WHERE e.user_id = $1 AND e.kind = $2
        ORDER BY e.created_at DESC
    `, userID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("query %s requests: %w", kind, err)
	}

	return collectProfiles(rows)
}

// SuggestCandidates returns active users the user holds no edge toward,
// newest accounts first. A plain exclusion query, not a ranking.
func (s *PostgresFriendshipStore) SuggestCandidates(ctx context.Context, userID string, limit int) ([]models.PublicProfile, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+profileColumns+`
        FROM users u
        WHERE u.status = 'active'
          AND u.id <> $1
          AND NOT EXISTS (
              SELECT 1 FROM friend_edges e
              WHERE e.user_id = $1 AND e.other_id = u.id
          )
        ORDER BY u.created_at DESC
        LIMIT $2
    `, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query suggestions: %w", err)
	}

	return collectProfiles(rows)
}

func collectProfiles(rows pgx.Rows) ([]models.PublicProfile, error) {
	defer rows.Close()

	var items []models.PublicProfile
	for rows.Next() {
		var (
			p        models.PublicProfile
			first    string
			last     string
			lastSeen time.Time
		)
		if err := rows.Scan(&p.ID, &first, &last, &p.AvatarURL, &p.City, &p.Country, &lastSeen); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		p.Name = first + " " + last
		if !lastSeen.IsZero() {
			t := lastSeen
			p.LastSeenAt = &t
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}

	return items, nil
}
