package app

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/koinonia/backend/internal/auth"
	"github.com/koinonia/backend/internal/config"
	"github.com/koinonia/backend/internal/db"
	"github.com/koinonia/backend/internal/friendships"
	"github.com/koinonia/backend/internal/handlers"
	"github.com/koinonia/backend/internal/middleware"
	"github.com/koinonia/backend/internal/realtime"
	"github.com/koinonia/backend/internal/repositories"
	"github.com/koinonia/backend/internal/storage"
)

const suggestionCacheTTL = time.Minute

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. The returned cleanup drains background workers.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, logger *slog.Logger) (handlers.Dependencies, func(context.Context) error, error) {
	sessionStore := repositories.NewPostgresSessionStore(pool)

	friendStore := friendships.NewCachingStore(repositories.NewPostgresFriendshipStore(pool), suggestionCacheTTL)
	friendService := friendships.NewService(friendStore)

	registry := realtime.NewRegistry()
	dispatcher := realtime.NewDispatcher(registry, realtime.DispatcherConfig{QueueSize: 256, Workers: 4}, logger)
	wsHandler := realtime.NewHandler(registry)

	var media handlers.MediaStorage
	if strings.TrimSpace(cfg.ObjectStore.Bucket) != "" {
		s3, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
		if err != nil {
			_ = dispatcher.Shutdown(ctx)
			return handlers.Dependencies{}, nil, err
		}
		media = s3
	}

	limiter := middleware.NewIPRateLimiter(
		cfg.FriendRequestsPerMinute,
		time.Minute,
		cfg.FriendRequestBurst,
		10*time.Minute,
	)

	deps := handlers.Dependencies{
		Users:         repositories.NewPostgresUserRepository(pool),
		Sessions:      auth.NewManager(cfg.AccessTokenTTL, cfg.RefreshTokenTTL, sessionStore),
		Friends:       friendService,
		Notifications: repositories.NewPostgresNotificationRepository(pool),
		Events:        dispatcher,
		Media:         media,
		Limiter:       limiter,
		Realtime:      wsHandler.Serve,
	}

	cleanup := func(ctx context.Context) error {
		return dispatcher.Shutdown(ctx)
	}

	return deps, cleanup, nil
}
