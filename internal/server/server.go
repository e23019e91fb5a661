// Package server exposes the generic handlers over HTTP. It generates one
// route per class, field and relationship from the registry, validates
// path ids and bodies, and sends every failure through the error
// normalizer.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/lyphgraph/internal/dispatch"
	"github.com/mesh-intelligence/lyphgraph/internal/errnorm"
	"github.com/mesh-intelligence/lyphgraph/internal/handler"
	"github.com/mesh-intelligence/lyphgraph/pkg/types"
)

const shutdownTimeout = 10 * time.Second

// Server is the HTTP front of the handlers.
type Server struct {
	routes    []Route
	mux       *http.ServeMux
	norm      *errnorm.Normalizer
	log       *zap.SugaredLogger
	logErrors bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(s *Server) { s.log = log }
}

// WithErrorLogging turns the logging of failed requests on or off.
func WithErrorLogging(on bool) Option {
	return func(s *Server) { s.logErrors = on }
}

// New generates the routes from c and binds each through d. Any route that
// does not bind fails construction with a *types.ConfigError.
func New(c Catalog, d *dispatch.Dispatcher, norm *errnorm.Normalizer, opts ...Option) (*Server, error) {
	s := &Server{
		mux:       http.NewServeMux(),
		norm:      norm,
		log:       zap.NewNop().Sugar(),
		logErrors: true,
	}
	for _, opt := range opts {
		opt(s)
	}

	routes, err := Routes(c)
	if err != nil {
		return nil, err
	}
	for _, r := range routes {
		b, err := d.Bind(r.Route)
		if err != nil {
			return nil, err
		}
		s.mux.Handle(r.Pattern(), s.endpoint(r, b))
	}
	s.routes = routes
	s.mux.HandleFunc("/", s.unrouted)
	s.log.Debugw("routes registered", "count", len(routes))
	return s, nil
}

// unrouted answers requests no route matches: 405 with an Allow header
// when the path exists under other verbs, 404 otherwise.
func (s *Server) unrouted(w http.ResponseWriter, r *http.Request) {
	if verbs := s.allowed(r.URL.Path); len(verbs) > 0 {
		allow := strings.Join(verbs, ", ")
		w.Header().Set("Allow", allow)
		s.fail(w, r, &types.DomainError{
			Kind:    types.KindInvalid,
			Status:  http.StatusMethodNotAllowed,
			Message: fmt.Sprintf("There is no %s operation on '%s'.", r.Method, r.URL.Path),
			Info:    map[string]any{"allow": allow},
		})
		return
	}
	s.fail(w, r, &types.DomainError{
		Kind:    types.KindNotFound,
		Status:  http.StatusNotFound,
		Message: fmt.Sprintf("There is no %s operation on '%s'.", r.Method, r.URL.Path),
	})
}

// allowed lists, in verb order, the verbs of the routes whose path
// matches path.
func (s *Server) allowed(path string) []string {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	var verbs []dispatch.Verb
	for _, r := range s.routes {
		if !slices.Contains(verbs, r.Verb) && pathMatches(r.Path, segs) {
			verbs = append(verbs, r.Verb)
		}
	}
	slices.Sort(verbs)
	names := make([]string, len(verbs))
	for i, v := range verbs {
		names[i] = v.String()
	}
	return names
}

// pathMatches reports whether segs fits pattern, where a {name} segment
// matches any non-empty segment.
func pathMatches(pattern string, segs []string) bool {
	want := strings.Split(strings.Trim(pattern, "/"), "/")
	if len(want) != len(segs) {
		return false
	}
	for i, w := range want {
		if strings.HasPrefix(w, "{") {
			if segs[i] == "" {
				return false
			}
			continue
		}
		if w != segs[i] {
			return false
		}
	}
	return true
}

// Routes returns the registered routes in registration order.
func (s *Server) Routes() []Route {
	return append([]Route(nil), s.routes...)
}

// Handler returns the root handler with CORS applied.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		s.mux.ServeHTTP(w, r)
	})
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Infow("listening", "addr", addr)

	select {
	case err := <-errc:
		return fmt.Errorf("serving %s: %w", addr, err)
	case <-ctx.Done():
	}

	s.log.Infow("shutting down", "addr", addr)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) endpoint(route Route, b dispatch.Binding) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := s.request(route, b.Target, r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		resp, err := b.Handle(r.Context(), b.Target, req)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, resp.Status, resp.Body)
	}
}

// request extracts and validates the inputs route declares.
func (s *Server) request(route Route, t handler.Target, r *http.Request) (handler.Request, error) {
	var (
		req handler.Request
		err error
	)
	switch route.PathType {
	case dispatch.SpecificResources, dispatch.SpecificRelationships:
		if route.Verb == dispatch.Get {
			req.IDs, err = parseIDs("ids", r.PathValue("ids"), true)
		} else {
			req.IDs, err = parseIDs("id", r.PathValue("id"), false)
		}
	case dispatch.RelatedResources, dispatch.RelatedRelationships:
		req.IDA, err = one("idA", r.PathValue("idA"))
	case dispatch.SpecificRelatedResource, dispatch.SpecificRelationshipByResources:
		if req.IDA, err = one("idA", r.PathValue("idA")); err == nil {
			req.IDB, err = one("idB", r.PathValue("idB"))
		}
	}
	if err != nil {
		return req, err
	}

	if route.Verb != dispatch.Post && route.Verb != dispatch.Put {
		return req, nil
	}
	if req.Body, err = decodeBody(r); err != nil {
		return req, err
	}
	if route.PathType == dispatch.Resources || route.PathType == dispatch.SpecificResources {
		err = checkBody(t.Class, req.Body)
	}
	return req, err
}

func one(param, raw string) (string, error) {
	ids, err := parseIDs(param, raw, false)
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// fail runs the error pipeline: normalize, log, transmit.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	env := s.norm.Normalize(err)
	if s.logErrors {
		s.log.Errorw("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", env.Status,
			"kind", env.Kind().String(),
			"error", env.Cause(),
		)
	}
	writeJSON(w, env.Status, env)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	if status == http.StatusNoContent || body == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
