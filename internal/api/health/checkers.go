package health

import (
	"context"

	"github.com/good-yellow-bee/buildpulse/internal/storage"
)

// StorageChecker reports whether the database answers pings.
type StorageChecker struct {
	store storage.Storage
}

// NewStorageChecker creates a checker backed by the given storage.
func NewStorageChecker(store storage.Storage) *StorageChecker {
	return &StorageChecker{store: store}
}

// Name returns the checker name.
func (c *StorageChecker) Name() string {
	return "sqlite"
}

// Check pings the database.
func (c *StorageChecker) Check(ctx context.Context) error {
	return c.store.Ping(ctx)
}
