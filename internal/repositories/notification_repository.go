package repositories

import (
	"context"
	"fmt"

	"github.com/koinonia/backend/internal/db"
	"github.com/koinonia/backend/internal/models"
)

// NotificationRepository defines data access for social notifications.
type NotificationRepository interface {
	Create(ctx context.Context, notification models.Notification) error
	ListForUser(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID string, ids []string) error
}

// PostgresNotificationRepository persists notifications to PostgreSQL.
type PostgresNotificationRepository struct {
	pool db.Pool
}

// NewPostgresNotificationRepository constructs a notification repository backed by PostgreSQL.
func NewPostgresNotificationRepository(pool db.Pool) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{pool: pool}
}

// Create stores a new notification record.
func (r *PostgresNotificationRepository) Create(ctx context.Context, notification models.Notification) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO notifications (id, user_id, actor_id, kind, message, read, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, notification.ID, notification.UserID, notification.ActorID, notification.Kind,
		notification.Message, notification.Read, notification.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	return nil
}

// ListForUser returns the user's notifications, newest first.
func (r *PostgresNotificationRepository) ListForUser(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, user_id, actor_id, kind, message, read, created_at
        FROM notifications
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2
    `, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.ActorID, &n.Kind, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}

	return notifications, nil
}

// MarkRead flags the given notifications as read, scoped to their owner.
func (r *PostgresNotificationRepository) MarkRead(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        UPDATE notifications
        SET read = TRUE
        WHERE user_id = $1 AND id = ANY($2)
    `, userID, ids)
	if err != nil {
		return fmt.Errorf("mark notifications read: %w", err)
	}

	return nil
}
