package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/lyphgraph/internal/dispatch"
	"github.com/mesh-intelligence/lyphgraph/internal/errnorm"
	"github.com/mesh-intelligence/lyphgraph/internal/handler"
	"github.com/mesh-intelligence/lyphgraph/internal/registry"
	"github.com/mesh-intelligence/lyphgraph/internal/schema"
	"github.com/mesh-intelligence/lyphgraph/internal/server"
	"github.com/mesh-intelligence/lyphgraph/internal/sqlite"
	"github.com/mesh-intelligence/lyphgraph/pkg/types"
)

// app is the wired process: schema, registry and attached storage.
type app struct {
	settings Settings
	log      *zap.SugaredLogger
	registry *registry.Registry
	backend  *sqlite.Backend
}

// loadRegistry compiles the configured schema. Every failure is a
// configuration error.
func loadRegistry(path string) (*registry.Registry, error) {
	s, err := schema.Load(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrConfig, err)
	}
	return registry.New(s)
}

// openApp loads the schema, attaches storage, and provisions the unique-id
// constraints.
func openApp(ctx context.Context, s Settings, log *zap.SugaredLogger) (*app, error) {
	reg, err := loadRegistry(s.Schema)
	if err != nil {
		return nil, err
	}
	backend := sqlite.NewBackend(reg, log)
	if err := backend.Attach(types.Config{Backend: s.Backend, DataDir: s.DataDir}); err != nil {
		return nil, fmt.Errorf("attach storage: %w", err)
	}
	if err := reg.EnsureConstraints(ctx, backend); err != nil {
		backend.Detach()
		return nil, fmt.Errorf("ensure constraints: %w", err)
	}
	return &app{settings: s, log: log, registry: reg, backend: backend}, nil
}

func (a *app) server() (*server.Server, error) {
	h := handler.New(a.backend, a.registry,
		handler.WithBaseURL(a.settings.BaseURL),
		handler.WithLogger(a.log),
	)
	norm := errnorm.New(errnorm.WithCodePrefix(sqlite.CodePrefix))
	return server.New(a.registry, dispatch.New(h, a.registry), norm,
		server.WithLogger(a.log),
		server.WithErrorLogging(a.settings.ConsoleLogging),
	)
}

func (a *app) Close() error {
	return a.backend.Detach()
}
