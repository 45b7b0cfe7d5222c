package backend

import (
	"context"
	"time"

	"borsa/internal/api"
)

// Backend is the unified surface the rest of the application programs
// against, whichever adapter sits behind it.
type Backend interface {
	api.UserDirectory
	api.WalletStore
	api.CategoryStore
	api.TransactionStore
	api.PersonDirectory
	api.GroupStore
	api.Initializer
}

// CleanupFunc releases backend resources on shutdown
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function
type BackendResult struct {
	Backend Backend
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// REST specific
	APIBaseURL string
	APITimeout time.Duration

	// Memory backend specific
	SeedFile string
}

// BackendType represents the type of backend
type BackendType string

const (
	RESTBackend   BackendType = "rest"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case RESTBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
