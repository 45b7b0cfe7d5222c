package backend

import (
	"context"
	"fmt"
	"log/slog"

	"borsa/internal/api/memory"
	"borsa/internal/api/rest"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case RESTBackend:
		return f.createRESTBackend(config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createRESTBackend(config Config) (*BackendResult, error) {
	cli, err := rest.New(config.APIBaseURL, config.APITimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize REST client: %w", err)
	}

	f.logger.Info("Initialized REST backend",
		"base_url", config.APIBaseURL,
		"timeout", config.APITimeout)

	return &BackendResult{
		Backend: cli,
		Cleanup: cli.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	var store *memory.Store
	if config.SeedFile != "" {
		store = memory.NewFromFile(config.SeedFile)
		f.logger.Info("Initialized memory backend", "seed_file", config.SeedFile)
	} else {
		store = memory.NewSeeded()
		f.logger.Info("Initialized memory backend with demo dataset")
	}

	return &BackendResult{
		Backend: store,
		Cleanup: nil, // nothing to release for the memory backend
	}, nil
}
