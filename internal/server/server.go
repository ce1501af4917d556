// Package server exposes a read-only inspector over HTTP: entity snapshots
// as JSON and a websocket stream of engine lifecycle events.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeusync/gamecore/internal/core/entity"
	"github.com/zeusync/gamecore/internal/core/events/bus"
	"github.com/zeusync/gamecore/internal/core/observability/log"
	"github.com/zeusync/gamecore/internal/engine"
)

// Source provides entity snapshots; *engine.Engine implements it.
type Source interface {
	Views() []engine.EntityView
	View(id entity.ID) (engine.EntityView, bool)
}

var _ Source = (*engine.Engine)(nil)

type Config struct {
	Addr         string
	WriteTimeout time.Duration
	// ClientBuffer is the number of events queued per websocket client.
	ClientBuffer int
}

func DefaultConfig() Config {
	return Config{
		Addr:         "127.0.0.1:8080",
		WriteTimeout: 5 * time.Second,
		ClientBuffer: 256,
	}
}

type Server struct {
	config  Config
	source  Source
	events  bus.EventBus
	auth    Authenticator
	logger  log.Log
	metrics http.Handler

	mu      sync.Mutex
	clients map[string]*client
	sub     bus.Subscription

	http    *http.Server
	running atomic.Bool
}

type Option func(*Server)

func WithAuthenticator(a Authenticator) Option {
	return func(s *Server) { s.auth = a }
}

// WithMetrics serves h on GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

func WithLogger(l log.Log) Option {
	return func(s *Server) { s.logger = l }
}

// New creates an inspector over source streaming events from events.
func New(source Source, events bus.EventBus, config Config, opts ...Option) *Server {
	def := DefaultConfig()
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = def.WriteTimeout
	}
	if config.ClientBuffer <= 0 {
		config.ClientBuffer = def.ClientBuffer
	}
	s := &Server{
		config:  config,
		source:  source,
		events:  events,
		clients: make(map[string]*client),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.Provide()
	}
	s.logger = s.logger.With(log.String("component", "inspector"))
	return s
}

// Handler routes the inspector endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /entities", s.authenticated(s.handleEntities))
	mux.HandleFunc("GET /entities/{id}", s.authenticated(s.handleEntity))
	mux.HandleFunc("/ws", s.authenticated(s.handleWebSocket))
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return mux
}

func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Attach subscribes the server to the event bus. Serve calls it.
func (s *Server) Attach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub == nil && s.events != nil {
		s.sub = s.events.Subscribe(bus.Wildcard, s.broadcast)
	}
}

// Detach stops forwarding events and disconnects every client.
func (s *Server) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != nil {
		s.sub.Cancel()
		s.sub = nil
	}
	for _, c := range s.clients {
		_ = c.conn.Close()
	}
}

// Serve accepts connections on l until ctx is done, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrServerAlreadyRunning
	}
	defer s.running.Store(false)

	s.Attach()
	defer s.Detach()

	s.http = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- s.http.Serve(l) }()
	s.logger.Info("inspector listening", log.String("addr", l.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.WriteTimeout)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}

// ListenAndServe listens on the configured address and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	l, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}
