// Package connector defines the capability every task source implements and
// a registry used to pick one at composition time.
package connector

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/beekhof/exchange-sync/internal/config"
	"github.com/beekhof/exchange-sync/internal/domain"
)

// Connector turns an invocation payload into tasks.
type Connector interface {
	// Load describes the connector.
	Load() domain.Metadata
	// Init parses and stores the raw JSON configuration.
	Init(raw []byte) error
	// Process runs one invocation. The first failure aborts the batch.
	Process(ctx context.Context, payload []byte) ([]domain.Task, error)
}

// Factory builds a connector from an already validated configuration.
type Factory func(cfg *config.Config, logger *slog.Logger) Connector

// Registry maps connector names to factories. The zero value is ready to use.
type Registry struct {
	factories map[string]Factory
}

// Register adds a factory. Registering a name twice replaces the factory.
func (r *Registry) Register(name string, f Factory) {
	if r.factories == nil {
		r.factories = make(map[string]Factory)
	}
	r.factories[name] = f
}

// New builds the named connector.
func (r *Registry) New(name string, cfg *config.Config, logger *slog.Logger) (Connector, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, &domain.ConfigError{Field: "connector", Err: fmt.Errorf("unknown connector %q, available: %v", name, r.Names())}
	}
	return f(cfg, logger), nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
