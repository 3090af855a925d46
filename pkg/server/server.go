package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/flix/pkg/archive"
	"github.com/vango-dev/flix/pkg/builder"
	"github.com/vango-dev/flix/pkg/metrics"
	"github.com/vango-dev/flix/pkg/protocol"
	"github.com/vango-dev/flix/pkg/provider"
	"github.com/vango-dev/flix/pkg/widget"
)

const tracerName = "flix"

// Factory builds the provider tree shown by a new session.
type Factory func(ctx context.Context, sessionID string) ([]*provider.Section, error)

// Server serves remote widgets over websocket. Each connection gets its own
// session with its own builder and provider tree.
type Server struct {
	config   *Config
	factory  Factory
	router   chi.Router
	upgrader websocket.Upgrader
	logger   *slog.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	archive  archive.Store
	tracer   trace.Tracer
	builder  []builder.Option

	mu       sync.RWMutex
	sessions map[string]*Session
	closing  bool

	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetrics records session and builder metrics and serves them from
// gatherer on /metrics.
func WithMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = gatherer
	}
}

// WithArchive records every session's displayed snapshot to store, keyed by
// session ID.
func WithArchive(store archive.Store) Option {
	return func(s *Server) { s.archive = store }
}

// WithTracer sets the tracer used for event spans. Session builders use it
// for reconciliation spans too.
func WithTracer(t trace.Tracer) Option {
	return func(s *Server) { s.tracer = t }
}

// WithBuilderOptions adds options to every session builder.
func WithBuilderOptions(opts ...builder.Option) Option {
	return func(s *Server) { s.builder = append(s.builder, opts...) }
}

// New creates a server.
func New(cfg *Config, factory Factory, opts ...Option) *Server {
	cfg = cfg.withDefaults()
	s := &Server{
		config:   cfg,
		factory:  factory,
		sessions: make(map[string]*Session),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     cfg.CheckOrigin,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "server")
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	if err := cfg.Validate(); err != nil {
		s.logger.Error("config validation failed", "error", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Get("/sessions", s.handleSessions)
	r.Get("/snapshot", s.handleSnapshot)
	r.Get("/ws", s.handleWebSocket)
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Session returns the live session with id.
func (s *Server) Session(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// SessionIDs returns the live session IDs in lexical order.
func (s *Server) SessionIDs() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// ListenAndServe serves on the configured address until ctx is done, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.config.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
	}
	hs := s.httpServer
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", ln.Addr().String())
		errCh <- hs.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown stops accepting connections and closes every session.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	hs := s.httpServer
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	s.logger.Info("shutting down", "sessions", len(sessions))
	var err error
	if hs != nil {
		err = hs.Shutdown(ctx)
	}
	for _, sess := range sessions {
		sess.Close()
	}
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

func (s *Server) handleSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": s.SessionIDs()})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session")
	if id == "" {
		http.Error(w, "missing session parameter", http.StatusBadRequest)
		return
	}
	sess, ok := s.Session(id)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	adapter := sess.Builder().Adapter()
	doc := archive.NewDocument(adapter.Snapshot())
	doc.Seq = adapter.Seq()
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	closing := s.closing
	s.mu.RUnlock()
	if closing {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		s.metrics.RecordWebSocketError("upgrade")
		return
	}

	sess := newSession(uuid.NewString(), conn, s.config, s.metrics, s.tracer, s.logger)
	sess.wg.Add(1)
	go sess.writeLoop()

	if err := s.start(r.Context(), sess); err != nil {
		s.logger.Error("session start failed", "session_id", sess.ID, "error", err)
		sess.sendError(protocol.ErrServerError, err.Error(), true)
		sess.Close()
		return
	}
	defer s.finish(sess)

	// The request context ends when the handler returns, so event callbacks
	// run under the session lifetime instead.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-sess.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	sess.readLoop(ctx)
}

// start builds the session's provider tree and begins serving it.
func (s *Server) start(ctx context.Context, sess *Session) error {
	sections, err := s.factory(ctx, sess.ID)
	if err != nil {
		return fmt.Errorf("build providers: %w", err)
	}
	if s.archive != nil {
		sess.startRecording(s.archive)
	}

	opts := []builder.Option{
		builder.WithLogger(sess.logger),
		builder.WithMetrics(s.metrics),
		builder.WithTracer(s.tracer),
	}
	opts = append(opts, s.builder...)
	// The session hook goes last so that it always runs, after any hook
	// from the caller.
	opts = append(opts, builder.WithOnApply(sess.onApply))

	b, err := builder.New(widget.Widget(sess), sections, opts...)
	if err != nil {
		return err
	}
	sess.builder = b

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	s.metrics.RecordSessionOpen()
	sess.logger.Info("session started", "builder_id", b.ID(), "remote", sess.conn.RemoteAddr().String())
	return nil
}

func (s *Server) finish(sess *Session) {
	sess.Close()
	s.mu.Lock()
	_, ok := s.sessions[sess.ID]
	delete(s.sessions, sess.ID)
	s.mu.Unlock()
	if ok {
		s.metrics.RecordSessionClose()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write json failed", "error", err)
	}
}
