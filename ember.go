package ember

import (
	"sync"

	"github.com/emberdb/ember/server"
	"github.com/emberdb/ember/storage"
)

// Re-exported observability interfaces so callers only import the root package.
type (
	// Logger receives structured log events from the server
	Logger = server.Logger

	// Field is a structured log attribute
	Field = server.Field

	// MetricsCollector receives connection and command metrics
	MetricsCollector = server.MetricsCollector
)

// NewStdLogger returns a Logger writing through the standard log package
func NewStdLogger() Logger {
	return server.NewStdLogger()
}

// Server is an Ember server: an in-memory data engine fronted by a
// RESP-speaking TCP listener.
type Server struct {
	config *config
	engine *storage.MemoryStorage
	srv    *server.Server

	mu      sync.Mutex
	started bool
	closed  bool
}

// New creates a Server with the given options.
// The server does not listen until Start is called.
func New(opts ...Option) (*Server, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	var memOpts []storage.MemoryOption
	if cfg.shardCount > 0 {
		memOpts = append(memOpts, storage.WithShardCount(cfg.shardCount))
	}
	memOpts = append(memOpts, storage.WithCleanupConfig(cfg.cleanup))
	engine := storage.NewMemory(memOpts...)

	srv := server.NewServer(cfg.addr, engine)
	if cfg.password != "" {
		srv.SetPassword(cfg.password)
	}
	if cfg.maxConnections > 0 {
		srv.SetMaxConnections(cfg.maxConnections)
	}
	srv.SetMaxBulkSize(cfg.maxBulkSize)
	if cfg.readTimeout > 0 {
		srv.SetReadTimeout(cfg.readTimeout)
	}
	if cfg.logger != nil {
		srv.SetLogger(cfg.logger)
	}
	if cfg.metrics != nil {
		srv.SetMetrics(cfg.metrics)
	}

	return &Server{
		config: cfg,
		engine: engine,
		srv:    srv,
	}, nil
}

// Start binds the listen address and begins serving clients
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.started {
		return ErrAlreadyStarted
	}

	if err := s.srv.Start(); err != nil {
		return &ListenError{Addr: s.config.addr, Err: err}
	}
	s.started = true
	return nil
}

// Addr returns the bound listen address, useful with ":0"
func (s *Server) Addr() string {
	return s.srv.Addr()
}

// Storage exposes the underlying data engine for embedded use
func (s *Server) Storage() storage.Engine {
	return s.engine
}

// Stats returns server statistics
func (s *Server) Stats() map[string]interface{} {
	stats := s.srv.Stats()
	stats["keys"] = s.engine.KeyCount()
	return stats
}

// Close stops the listener, disconnects clients and shuts down storage
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.started {
		err = s.srv.Stop()
	}
	if cerr := s.engine.Close(); err == nil {
		err = cerr
	}
	return err
}
