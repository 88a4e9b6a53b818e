// Package app provides application services that orchestrate domain logic.
//
// DispatchService is the heart of intake: it matches a parsed request
// against the route table, validates it against the route's effective
// schema, and hands the coerced parameter bundle to the registered
// handler. Definitions (routes and schemas) load from YAML manifests and
// swap atomically, so dispatch never locks and a request never observes a
// half-reloaded state.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"

	"github.com/artpar/intake/core/schema"
	"github.com/artpar/intake/core/validation"
	"github.com/artpar/intake/domain/route"
	"github.com/artpar/intake/ports"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DispatchService validates and dispatches parsed requests against the
// active snapshot.
type DispatchService struct {
	clock  ports.Clock
	idGen  ports.IDGenerator
	logger zerolog.Logger
	cfg    Config

	// handlers is fixed after startup; snapshots resolve against it.
	handlers map[string]Handler

	snapshot atomic.Pointer[Snapshot]

	onSwap        []func(*Snapshot)
	onReloadError []func(error)

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
}

// Deps contains dependencies for DispatchService.
type Deps struct {
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger zerolog.Logger
}

// Config contains configuration for DispatchService.
type Config struct {
	RoutesFile string  // routes manifest path
	SchemaDir  string  // schema manifest directory, optional
	Doc        DocInfo // OpenAPI document metadata
}

// NewDispatchService creates a dispatch service. The built-in echo handler
// is pre-registered; add business handlers with RegisterHandler before the
// first load.
func NewDispatchService(deps Deps, cfg Config) *DispatchService {
	return &DispatchService{
		clock:    deps.Clock,
		idGen:    deps.IDGen,
		logger:   deps.Logger.With().Str("service", "dispatch").Logger(),
		cfg:      cfg,
		handlers: map[string]Handler{EchoName: Echo()},
		stopCh:   make(chan struct{}),
	}
}

// RegisterHandler makes a handler available to routes under the given name.
// Handlers registered after a load take effect on the next load.
func (s *DispatchService) RegisterHandler(name string, h Handler) error {
	if name == "" {
		return fmt.Errorf("handler name is required")
	}
	if h == nil {
		return fmt.Errorf("handler %q is nil", name)
	}
	if _, exists := s.handlers[name]; exists {
		return fmt.Errorf("handler %q already registered", name)
	}
	s.handlers[name] = h
	return nil
}

// OnSwap registers a callback invoked after every successful snapshot swap.
func (s *DispatchService) OnSwap(fn func(*Snapshot)) {
	s.onSwap = append(s.onSwap, fn)
}

// OnReloadError registers a callback invoked when a manifest reload fails.
func (s *DispatchService) OnReloadError(fn func(error)) {
	s.onReloadError = append(s.onReloadError, fn)
}

// Snapshot returns the active snapshot, or nil before the first load.
func (s *DispatchService) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

// Load builds a snapshot from in-memory definitions and swaps it in.
// Embedders that construct routes and schemas programmatically use this
// instead of manifest files.
func (s *DispatchService) Load(routes []route.Route, schemas []schema.Schema) error {
	snap, err := buildSnapshot(routes, schemas, s.handlers, s.cfg.Doc, s.clock.Now())
	if err != nil {
		return err
	}
	s.swap(snap)
	return nil
}

// Reload reads the manifests from disk and swaps in a fresh snapshot.
// On failure the active snapshot stays in place.
func (s *DispatchService) Reload() error {
	err := s.reloadFromDisk()
	if err != nil {
		s.logger.Error().Err(err).Msg("definition reload failed, keeping active snapshot")
		for _, fn := range s.onReloadError {
			fn(err)
		}
	}
	return err
}

func (s *DispatchService) reloadFromDisk() error {
	routes, err := ParseRoutesFile(s.cfg.RoutesFile)
	if err != nil {
		return err
	}

	var schemas []schema.Schema
	if s.cfg.SchemaDir != "" {
		schemas, err = schema.ParseDir(s.cfg.SchemaDir)
		if err != nil {
			return err
		}
	}

	return s.Load(routes, schemas)
}

func (s *DispatchService) swap(snap *Snapshot) {
	s.snapshot.Store(snap)
	for _, fn := range s.onSwap {
		fn(snap)
	}
	s.logger.Info().
		Int("routes", snap.Table.Len()).
		Int("schemas", snap.Registry.Len()).
		Msg("definitions loaded")
}

// WatchManifests starts watching the manifest paths for changes. Changes
// trigger automatic reload.
func (s *DispatchService) WatchManifests() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	s.watcher = watcher

	// Watch directories (more reliable for editors that do atomic saves).
	dirs := map[string]bool{filepath.Dir(s.cfg.RoutesFile): true}
	if s.cfg.SchemaDir != "" {
		dirs[s.cfg.SchemaDir] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	go s.watchLoop()

	s.logger.Info().
		Str("routes", s.cfg.RoutesFile).
		Str("schemas", s.cfg.SchemaDir).
		Msg("watching definition manifests")
	return nil
}

// WatchSignals starts listening for SIGHUP to trigger reload.
func (s *DispatchService) WatchSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)

	go func() {
		for {
			select {
			case <-sigCh:
				s.logger.Info().Msg("received SIGHUP, reloading definitions")
				if err := s.Reload(); err != nil {
					s.logger.Error().Err(err).Msg("SIGHUP reload failed")
				}
			case <-s.stopCh:
				signal.Stop(sigCh)
				return
			}
		}
	}()
}

// Stop stops watching for manifest changes and signals.
func (s *DispatchService) Stop() {
	close(s.stopCh)
	if s.watcher != nil {
		s.watcher.Close()
	}
}

func (s *DispatchService) watchLoop() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !isManifest(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				s.logger.Debug().
					Str("event", event.Op.String()).
					Str("file", event.Name).
					Msg("definition manifest changed")

				if err := s.Reload(); err != nil {
					s.logger.Error().Err(err).Msg("file watch reload failed")
				}
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error().Err(err).Msg("manifest watcher error")

		case <-s.stopCh:
			return
		}
	}
}

func isManifest(path string) bool {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Request is a parsed inbound request, transport-agnostic.
type Request struct {
	ID     string // request identifier; assigned when empty
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// Result is the outcome of dispatching one request. Exactly one of Output
// (success), Failure (field validation errors), or Detail (match and
// internal failures) is populated, per Status.
type Result struct {
	Status    int
	Output    any
	Failure   *validation.ErrorPayload
	Detail    string
	Allowed   []string     // allowed methods when Status is 405
	Route     *route.Route // matched route, nil when matching failed
	RequestID string
}

// Dispatch matches the request against the active snapshot, validates it
// against the route's effective schema, and invokes the route's handler
// with the coerced parameter bundle. Matching and validation are pure and
// lock-free; only the handler call can block.
func (s *DispatchService) Dispatch(ctx context.Context, req Request) Result {
	if req.ID == "" {
		req.ID = s.idGen.New()
	}

	snap := s.snapshot.Load()
	if snap == nil {
		return Result{
			Status:    http.StatusServiceUnavailable,
			Detail:    "no definitions loaded",
			RequestID: req.ID,
		}
	}

	// 1. Match (pure)
	m, err := snap.Table.Match(req.Method, req.Path)
	if err != nil {
		var notAllowed *route.MethodNotAllowedError
		if errors.As(err, &notAllowed) {
			return Result{
				Status:    http.StatusMethodNotAllowed,
				Detail:    "Method Not Allowed",
				Allowed:   notAllowed.Allowed,
				RequestID: req.ID,
			}
		}
		return Result{Status: http.StatusNotFound, Detail: "Not Found", RequestID: req.ID}
	}

	b, ok := snap.binding(m.Route.ID)
	if !ok {
		// Snapshots bind every table route at build time; reaching this is a bug.
		s.logger.Error().Str("route", m.Route.ID).Msg("matched route has no binding")
		return Result{
			Status:    http.StatusInternalServerError,
			Detail:    "Internal Server Error",
			Route:     m.Route,
			RequestID: req.ID,
		}
	}

	// 2. Validate (pure)
	res := validation.Validate(b.schema, validation.Input{
		Body:       req.Body,
		Query:      req.Query,
		PathParams: m.PathParams,
	})
	if !res.Valid {
		s.logger.Debug().
			Str("route", m.Route.ID).
			Int("errors", len(res.Errors)).
			Str("request_id", req.ID).
			Msg("validation failed")

		payload := res.Payload()
		return Result{
			Status:    http.StatusUnprocessableEntity,
			Failure:   &payload,
			Route:     m.Route,
			RequestID: req.ID,
		}
	}

	// 3. Invoke the handler
	out, err := b.handler.Handle(ctx, Invocation{
		Route:      *m.Route,
		Params:     Params(res.Values),
		Header:     req.Header,
		RequestID:  req.ID,
		ReceivedAt: s.clock.Now(),
	})
	if err != nil {
		s.logger.Error().Err(err).
			Str("route", m.Route.ID).
			Str("request_id", req.ID).
			Msg("handler failed")
		return Result{
			Status:    http.StatusInternalServerError,
			Detail:    "Internal Server Error",
			Route:     m.Route,
			RequestID: req.ID,
		}
	}

	return Result{Status: http.StatusOK, Output: out, Route: m.Route, RequestID: req.ID}
}
