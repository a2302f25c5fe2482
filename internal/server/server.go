// Package server exposes the crew over HTTP: submit the four inputs, receive
// the tailored resume and interview materials, and download either document.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kingrea/jobprep/internal/artifact"
	"github.com/kingrea/jobprep/internal/crew"
)

// ServerStatus reports runtime lifecycle states for the HTTP server.
type ServerStatus string

const (
	StatusStarting ServerStatus = "starting"
	StatusReady    ServerStatus = "ready"
	StatusDraining ServerStatus = "draining"
)

const artifactsPath = "/artifacts/"

// Runner executes a crew run. *crew.Crew satisfies it.
type Runner interface {
	Kickoff(ctx context.Context, inputs crew.RunInputs) (crew.Result, error)
}

// Logger is satisfied by *logging.Logger.
type Logger interface {
	Printf(format string, args ...any)
}

// Server wraps the HTTP listener and handlers backing the API.
type Server struct {
	settings Settings
	runner   Runner
	store    *artifact.Store
	logger   Logger
	clock    func() time.Time

	// runMu admits one run at a time; runs share the output files.
	runMu sync.Mutex

	mu        sync.RWMutex
	server    *http.Server
	listener  net.Listener
	status    ServerStatus
	startTime time.Time
	busy      bool
	// last is the most recent successful run; nil before one completes and
	// after a run fails.
	last *crew.Result
}

// Option customizes server construction.
type Option func(*Server)

// WithRunner sets the crew that serves POST /runs.
func WithRunner(r Runner) Option {
	return func(s *Server) {
		s.runner = r
	}
}

// WithStore sets the artifact store whose layout names downloaded files.
func WithStore(store *artifact.Store) Option {
	return func(s *Server) {
		s.store = store
	}
}

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock allows tests to control timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewServer prepares a server using the provided settings.
func NewServer(settings Settings, opts ...Option) *Server {
	s := &Server{
		settings: settings,
		logger:   nopLogger{},
		clock:    func() time.Time { return time.Now().UTC() },
		status:   StatusStarting,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/runs", s.handleRuns)
	mux.HandleFunc(artifactsPath, s.handleArtifact)
	return mux
}

// Start binds the TCP listener and begins serving HTTP traffic.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("server: server is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("server: already started")
	}
	addr := s.settings.Address()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	s.listener = listener
	s.startTime = s.clock()
	server := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.settings.ReadTimeout,
		WriteTimeout: s.settings.WriteTimeout,
		IdleTimeout:  s.settings.IdleTimeout,
	}
	if ctx != nil {
		server.BaseContext = func(net.Listener) context.Context { return ctx }
	}
	s.server = server
	s.status = StatusReady
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("server: serve error: %v", err)
		}
	}()
	s.logger.Printf("server: listening on %s", listener.Addr().String())
	return nil
}

// Shutdown stops accepting new connections and waits for in-flight requests to exit.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil || s.server == nil {
		return nil
	}
	s.status = StatusDraining
	deadline := ctx
	if deadline == nil {
		var cancel context.CancelFunc
		deadline, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	if err := s.server.Shutdown(deadline); err != nil {
		return err
	}
	s.listener = nil
	s.server = nil
	return nil
}

// Addr returns the bound TCP address once the server has started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// BaseURL returns the HTTP base URL (scheme + host:port) for the running server.
func (s *Server) BaseURL() string {
	addr := s.Addr()
	if addr == "" {
		return s.settings.URL()
	}
	return "http://" + addr
}

// Status reports the server's lifecycle state.
func (s *Server) Status() ServerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Server) uptimeSeconds() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.startTime.IsZero() {
		return 0
	}
	return int64(s.clock().Sub(s.startTime).Seconds())
}

func (s *Server) setBusy(busy bool) {
	s.mu.Lock()
	s.busy = busy
	s.mu.Unlock()
}

func (s *Server) isBusy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.busy
}

func (s *Server) setLastResult(result *crew.Result) {
	s.mu.Lock()
	s.last = result
	s.mu.Unlock()
}

func (s *Server) lastResult() (crew.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return crew.Result{}, false
	}
	return *s.last, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", fmt.Sprintf("%s, %s", http.MethodGet, http.MethodHead))
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        string(s.Status()),
		Version:       ProtocolVersion,
		Busy:          s.isBusy(),
		UptimeSeconds: s.uptimeSeconds(),
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	if s.runner == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "no crew configured"})
		return
	}
	if r.Body == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "empty body"})
		return
	}
	reader := http.MaxBytesReader(w, r.Body, s.settings.MaxBodyBytes)
	defer reader.Close()
	body, err := io.ReadAll(reader)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "payload exceeds limit"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unable to read body"})
		return
	}
	var inputs crew.RunInputs
	if err := json.Unmarshal(body, &inputs); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON"})
		return
	}
	if err := inputs.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}
	if !s.runMu.TryLock() {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "a run is already in progress"})
		return
	}
	defer s.runMu.Unlock()
	s.setBusy(true)
	defer s.setBusy(false)

	ctx := r.Context()
	if s.settings.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.settings.RunTimeout)
		defer cancel()
	}
	result, err := s.runner.Kickoff(ctx, inputs)
	if err != nil {
		if errors.Is(err, crew.ErrInvalidInput) {
			writeValidationError(w, err)
			return
		}
		s.setLastResult(nil)
		s.logger.Printf("server: run %s failed: %v", result.RunID, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: fmt.Sprintf("An error occurred: %v", err)})
		return
	}
	s.setLastResult(&result)
	s.logger.Printf("server: run %s complete", result.RunID)
	writeJSON(w, http.StatusOK, newRunResponse(result, s.layout()))
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", fmt.Sprintf("%s, %s", http.MethodGet, http.MethodHead))
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, artifactsPath), "/")
	ref, ok := artifact.Lookup(id)
	if !ok || ref.Kind != artifact.KindDocument {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("unknown artifact %q", id)})
		return
	}
	result, ok := s.lastResult()
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no completed run"})
		return
	}
	item, ok := findArtifact(result.Artifacts, ref)
	switch {
	case !ok || item.Missing:
		writeJSON(w, http.StatusNotFound, errorResponse{Error: item.Warning()})
		return
	case item.Err != nil:
		s.logger.Printf("server: read %s: %v", ref.ID, item.Err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: item.Warning()})
		return
	}
	w.Header().Set("X-Jobprep-Run", result.RunID)
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ref.FileName(s.layout())))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		_, _ = io.WriteString(w, item.Content)
	}
}

// findArtifact returns the rendered entry for ref. An absent entry is
// reported as missing.
func findArtifact(items []artifact.Rendered, ref artifact.ArtifactRef) (artifact.Rendered, bool) {
	for _, item := range items {
		if item.Ref.ID == ref.ID {
			return item, true
		}
	}
	return artifact.Rendered{Ref: ref, Missing: true}, false
}

func (s *Server) layout() artifact.Layout {
	if s.store == nil {
		return artifact.Layout{}
	}
	return s.store.Layout()
}

func writeValidationError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: crew.MissingInputsMessage}
	var verr *crew.ValidationError
	if errors.As(err, &verr) {
		resp.Missing = verr.Missing
	}
	writeJSON(w, http.StatusBadRequest, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}
