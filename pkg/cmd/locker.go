package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/craftdesk/flowline/pkg/lock"
)

// NewLocker creates the per-project locker. With a Redis URL locks are
// coordinated across replicas; without one a process-local mutex map is
// sufficient.
func NewLocker(ctx context.Context, logger *slog.Logger, redisURL string) (lock.Locker, error) {
	if redisURL == "" {
		return lock.NewMutexLocker(), nil
	}

	locker, err := lock.NewRedisLocker(ctx, logger, redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis locker: %w", err)
	}

	return locker, nil
}
