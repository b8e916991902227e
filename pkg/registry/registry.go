// Package registry maps step subtypes to executor factories. The worker
// registers every built-in executor at startup and the API uses the same
// registry to validate step configurations at authoring time.
package registry

import (
	"fmt"
	"log/slog"

	"github.com/dripkit/dripkit/pkg/protocol"
)

// ErrExecutorNotRegistered is wrapped when a step names a subtype no
// factory serves. This is a configuration error, not a transient one.
var ErrExecutorNotRegistered = fmt.Errorf("executor not registered")

type Registry struct {
	logger    *slog.Logger
	factories map[string]protocol.ExecutorFactory
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:    log,
		factories: make(map[string]protocol.ExecutorFactory),
	}
}

func (r *Registry) RegisterExecutor(factory protocol.ExecutorFactory) {
	r.factories[factory.ID()] = factory
}

func (r *Registry) CreateExecutor(subtype string, config map[string]any) (protocol.Executor, error) {
	factory, ok := r.factories[subtype]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrExecutorNotRegistered, subtype)
	}

	return factory.Create(config)
}

// Schema returns the configuration schema for a registered subtype.
func (r *Registry) Schema(subtype string) (map[string]any, error) {
	factory, ok := r.factories[subtype]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrExecutorNotRegistered, subtype)
	}

	return factory.Schema(), nil
}

// Subtypes returns the registered subtype ids.
func (r *Registry) Subtypes() []string {
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}

	return ids
}
