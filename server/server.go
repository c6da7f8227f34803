package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/emberdb/ember/lua"
	"github.com/emberdb/ember/protocol"
	"github.com/emberdb/ember/storage"
)

// Server serves the RESP2 protocol over TCP against a shared data
// engine. Each accepted connection runs in its own goroutine;
// single-command atomicity is provided by the engine itself.
type Server struct {
	engine storage.Engine
	lua    *lua.Engine

	// Server configuration
	addr        string
	password    string
	maxConns    int
	maxBulkSize int64
	readTimeout time.Duration
	logger      Logger
	metrics     MetricsCollector

	// Connection management
	listener net.Listener
	clients  sync.Map // map[net.Conn]*Client

	// Waiters for blocking list pops
	waiters *listWaiters

	// Channel subscriptions
	pubsub *pubsub

	// Control
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Counters
	connCount    int64
	commandCount int64
	errorCount   int64
	mu           sync.RWMutex
}

// Client represents one connected peer
type Client struct {
	conn   net.Conn
	reader *protocol.Reader
	writer *protocol.Writer
	server *Server

	// engine is this connection's view of the data engine. SELECT
	// swaps it for a handle on another logical database without
	// touching any other connection.
	engine storage.Engine

	// Client state
	authenticated bool
	db            int
	lastCmd       time.Time

	// Queued commands between MULTI and EXEC; nil outside a transaction
	multiQueue []*protocol.Command
	inMulti    bool

	// Channels this connection is subscribed to
	subscribed map[string]struct{}

	// writeMu serializes replies with pushed pub/sub messages
	writeMu sync.Mutex

	// Control
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a new server bound to addr, serving engine
func NewServer(addr string, engine storage.Engine) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		engine:      engine,
		lua:         lua.NewEngine(engine),
		addr:        addr,
		maxBulkSize: protocol.DefaultMaxBulkSize,
		logger:      &noopLogger{},
		metrics:     &noopMetrics{},
		waiters:     newListWaiters(),
		pubsub:      newPubSub(),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// SetPassword sets the authentication password for the server
func (s *Server) SetPassword(password string) {
	s.password = password
}

// SetMaxConnections caps concurrent client connections; 0 means unlimited
func (s *Server) SetMaxConnections(n int) {
	s.maxConns = n
}

// SetMaxBulkSize caps the accepted bulk string length on the wire
func (s *Server) SetMaxBulkSize(n int64) {
	if n > 0 {
		s.maxBulkSize = n
	}
}

// SetReadTimeout sets the per-read idle deadline; 0 disables it
func (s *Server) SetReadTimeout(d time.Duration) {
	s.readTimeout = d
}

// SetLogger sets the structured logger used for connection events
func (s *Server) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetMetrics sets the metrics collector
func (s *Server) SetMetrics(metrics MetricsCollector) {
	if metrics != nil {
		s.metrics = metrics
	}
}

// Start begins accepting connections
func (s *Server) Start() error {
	var err error
	s.listener, err = net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.logger.Info("server listening", Field{Key: "addr", Value: s.Addr()})

	s.wg.Add(1)
	go s.acceptConnections()

	return nil
}

// Stop stops the server and closes all client connections
func (s *Server) Stop() error {
	s.cancel()

	if s.listener != nil {
		s.listener.Close()
	}

	s.clients.Range(func(key, value interface{}) bool {
		if client, ok := value.(*Client); ok {
			client.Close()
		}
		return true
	})

	s.wg.Wait()
	return nil
}

// Addr returns the server's listening address
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stats returns server statistics
func (s *Server) Stats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clientCount := 0
	s.clients.Range(func(key, value interface{}) bool {
		clientCount++
		return true
	})

	return map[string]interface{}{
		"connected_clients": clientCount,
		"total_commands":    s.commandCount,
		"total_errors":      s.errorCount,
		"total_connections": s.connCount,
	}
}

// acceptConnections accepts new client connections
func (s *Server) acceptConnections() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		conn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				return // Server is shutting down
			}
			continue
		}

		if s.maxConns > 0 && s.clientCount() >= s.maxConns {
			// Reject over the connection limit
			conn.Write([]byte("-ERR max number of clients reached\r\n"))
			conn.Close()
			continue
		}

		s.handleNewClient(conn)
	}
}

// clientCount returns the number of currently connected clients
func (s *Server) clientCount() int {
	count := 0
	s.clients.Range(func(key, value interface{}) bool {
		count++
		return true
	})
	return count
}

// handleNewClient handles a new client connection
func (s *Server) handleNewClient(conn net.Conn) {
	s.mu.Lock()
	s.connCount++
	s.mu.Unlock()
	s.metrics.RecordConnection()

	ctx, cancel := context.WithCancel(s.ctx)
	client := &Client{
		conn:          conn,
		reader:        protocol.NewReader(conn, protocol.WithMaxBulkSize(s.maxBulkSize)),
		writer:        protocol.NewWriter(conn),
		server:        s,
		engine:        s.engine,
		subscribed:    make(map[string]struct{}),
		authenticated: s.password == "", // Auto-authenticated if no password
		lastCmd:       time.Now(),
		ctx:           ctx,
		cancel:        cancel,
	}

	s.clients.Store(conn, client)

	s.wg.Add(1)
	go client.handle()
}

// Close closes the client connection
func (c *Client) Close() {
	c.cancel()
	c.server.pubsub.dropClient(c)
	c.conn.Close()
	c.server.clients.Delete(c.conn)
}

// handle runs the client's read, dispatch, reply loop. Pipelined
// commands are executed and replied to strictly in arrival order. A
// protocol error is fatal to the connection; command errors are
// replied to and processing continues.
func (c *Client) handle() {
	defer c.server.wg.Done()
	defer c.Close()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		if c.server.readTimeout > 0 {
			c.conn.SetReadDeadline(time.Now().Add(c.server.readTimeout))
		}

		value, err := c.reader.ReadNext()
		if err != nil {
			if err == io.EOF || errors.Is(err, io.EOF) {
				return // Client disconnected
			}
			if c.ctx.Err() != nil {
				return // Server shutting down
			}
			c.server.logger.Debug("protocol error, closing connection",
				Field{Key: "remote", Value: c.conn.RemoteAddr().String()},
				Field{Key: "error", Value: err.Error()})
			c.writeError(fmt.Sprintf("ERR Protocol error: %v", err))
			return
		}

		cmd, err := protocol.ParseCommand(value)
		if err != nil {
			c.writeError(fmt.Sprintf("ERR Protocol error: %v", err))
			return
		}

		c.lastCmd = time.Now()
		c.executeCommand(cmd)
	}
}

// Response writers. Each helper holds writeMu for the duration of the
// write so a pushed pub/sub message never interleaves with a reply.

func (c *Client) writeString(s string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.writer.WriteSimpleString(s)
	c.writer.Flush()
}

func (c *Client) writeError(s string) {
	c.server.mu.Lock()
	c.server.errorCount++
	c.server.mu.Unlock()
	c.server.metrics.RecordError()
	// Strip internal newlines which would break RESP framing
	cleanMsg := strings.ReplaceAll(s, "\n", " ")
	cleanMsg = strings.ReplaceAll(cleanMsg, "\r", " ")
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.writer.WriteError(cleanMsg)
	c.writer.Flush()
}

// writeStorageError maps an engine error to a reply. WrongTypeError
// already carries its own prefix; everything else gets ERR.
func (c *Client) writeStorageError(err error) {
	var wrongType *storage.WrongTypeError
	if errors.As(err, &wrongType) {
		c.writeError(err.Error())
		return
	}
	c.writeError("ERR " + err.Error())
}

func (c *Client) writeBulkString(data []byte) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.writer.WriteBulkString(data)
	c.writer.Flush()
}

func (c *Client) writeNull() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.writer.WriteNullBulkString()
	c.writer.Flush()
}

func (c *Client) writeNullArray() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.writer.WriteNullArray()
	c.writer.Flush()
}

func (c *Client) writeInteger(i int64) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.writer.WriteInteger(i)
	c.writer.Flush()
}

func (c *Client) writeValue(v protocol.Value) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.writer.WriteValue(v)
	c.writer.Flush()
}

// writeArrayHeader opens an array reply whose elements are written by
// the following write calls
func (c *Client) writeArrayHeader(n int) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.writer.WriteArrayHeader(n)
	c.writer.Flush()
}
