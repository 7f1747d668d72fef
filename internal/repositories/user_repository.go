package repositories

import (
	"context"
	"time"

	"github.com/koinonia/backend/internal/models"
)

// UserRepository defines the data access contract for users.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	Update(ctx context.Context, user models.User) error
	TouchLastSeen(ctx context.Context, id string, at time.Time) error
}
