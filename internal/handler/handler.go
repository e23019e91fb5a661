// Package handler implements the generic resource and relationship
// operations. It is the only layer that calls the storage port, and it
// keeps no state between calls.
package handler

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/lyphgraph/pkg/types"
)

// Classes is the read-only view of the entity class registry the handlers
// need.
type Classes interface {
	ClassOf(name string) (*types.EntityClass, error)
	IsResourceClass(name string) bool
}

// Target is the execution context resolved for a route: the addressed
// class, and for relationship-shaped routes the relationship type and the
// field seen from Class (RelA) with its reverse (RelB).
type Target struct {
	Class    *types.EntityClass
	Rel      *types.RelationshipType
	RelA     *types.RelationField
	RelB     *types.RelationField
	Shortcut *types.Shortcut
}

// Request holds the already-validated inputs of one call. IDs carries the
// {ids} or {id} path parameter; IDA and IDB the two ends of a
// relationship-shaped path.
type Request struct {
	IDs  []string
	IDA  string
	IDB  string
	Body map[string]any
}

// Response is a status code and a JSON-encodable body. Body is nil for
// 204 responses.
type Response struct {
	Status int
	Body   any
}

// Func is the signature shared by every handler operation.
type Func func(ctx context.Context, t Target, req Request) (Response, error)

// Handlers implements the generic operations against a storage port.
type Handlers struct {
	storage types.Storage
	classes Classes
	baseURL string
	log     *zap.SugaredLogger
}

// Option configures Handlers.
type Option func(*Handlers)

// WithBaseURL sets the prefix of every serialized href.
func WithBaseURL(u string) Option {
	return func(h *Handlers) { h.baseURL = strings.TrimSuffix(u, "/") }
}

// WithLogger sets the logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(h *Handlers) { h.log = log }
}

// New creates the handlers.
func New(storage types.Storage, classes Classes, opts ...Option) *Handlers {
	h := &Handlers{storage: storage, classes: classes, log: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func ok(body any) (Response, error)      { return Response{Status: http.StatusOK, Body: body}, nil }
func created(body any) (Response, error) { return Response{Status: http.StatusCreated, Body: body}, nil }
func noContent() (Response, error)       { return Response{Status: http.StatusNoContent}, nil }

// existence asks for ids to exist as instances of class.
type existence struct {
	class *types.EntityClass
	ids   []string
}

// assertExist runs the existence checks concurrently and reports every
// missing id of every check in one NotFound error.
func (h *Handlers) assertExist(ctx context.Context, checks ...existence) error {
	errs := make([]error, len(checks))
	var wg sync.WaitGroup
	for i, c := range checks {
		if len(c.ids) == 0 {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = h.storage.AssertResourcesExist(ctx, c.class, c.ids)
		}()
	}
	wg.Wait()

	combined := multierr.Combine(errs...)
	if combined == nil {
		return nil
	}
	return types.MergeNotFound(multierr.Errors(combined)...)
}

// codomainOf returns the class on the far end of f.
func (h *Handlers) codomainOf(f *types.RelationField) (*types.EntityClass, error) {
	return h.classes.ClassOf(f.Codomain)
}

func checkAntiReflexive(rel *types.RelationshipType, idA, idB string) error {
	if rel.AntiReflexive && idA == idB {
		return types.Invalid(map[string]any{"relationship": rel.Name, "id": idA},
			"An entity cannot be related to itself through %s.", rel.Name)
	}
	return nil
}
