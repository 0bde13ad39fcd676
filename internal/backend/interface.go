package backend

import (
	"context"

	"mahjong/internal/docstore"
	"mahjong/internal/worker"
)

// Store is a record collection that can also be read point-wise.
type Store interface {
	docstore.Collection
	docstore.Reader
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the store and the resources tied to it.
type BackendResult struct {
	Store Store
	// Tracker is non-nil only for stores that keep mirror sync state.
	Tracker worker.SyncTracker
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type       BackendType
	Collection string

	// SQLite specific
	SQLiteDBPath string

	// Redis specific
	RedisURL string

	// Memory backend specific; seeds the store when the file exists
	SeedFile string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	SQLiteBackend BackendType = "sqlite"
	RedisBackend  BackendType = "redis"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, RedisBackend:
		return true
	default:
		return false
	}
}
