// Package transport owns the two engine sockets: a command connection that
// carries one request/response exchange at a time, and a push connection
// whose background loop delivers incoming messages to a single handler.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pithecene-io/ferry/ipc"
	"github.com/pithecene-io/ferry/log"
	"github.com/pithecene-io/ferry/metrics"
)

// Defaults for Config fields left zero.
const (
	DefaultHost           = "127.0.0.1"
	DefaultPort           = 10086
	DefaultReconnectDelay = time.Second
	DefaultDialTimeout    = 5 * time.Second
	DefaultErrorLogRate   = 1.0
	DefaultErrorLogBurst  = 5
)

var (
	// ErrNotConnected is returned by Call before Connect succeeds and after
	// the command connection is dropped.
	ErrNotConnected = errors.New("transport: not connected")
	// ErrClosed is returned by Connect and Listen after Close.
	ErrClosed = errors.New("transport: closed")
)

// TransportError wraps a socket failure with the operation that hit it.
//
//nolint:revive // transport.TransportError reads naturally at call sites
type TransportError struct {
	Op   string // dial, write, read
	Addr string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Config configures the engine endpoints and timing.
type Config struct {
	Host string
	// Port is the command endpoint port.
	Port int
	// PushPort is the push endpoint port. Zero means Port+1.
	PushPort int
	// CallTimeout bounds one command exchange. Zero blocks until the
	// context deadline, or indefinitely without one.
	CallTimeout time.Duration
	// ReconnectDelay is the pause before redialing a failed push stream.
	ReconnectDelay time.Duration
	DialTimeout    time.Duration
	// ErrorLogRate and ErrorLogBurst bound how often push decode failures
	// are logged (events per second, bucket size).
	ErrorLogRate  float64
	ErrorLogBurst int
}

// DefaultConfig returns the engine's standard local endpoints.
func DefaultConfig() Config {
	return Config{
		Host:           DefaultHost,
		Port:           DefaultPort,
		ReconnectDelay: DefaultReconnectDelay,
		DialTimeout:    DefaultDialTimeout,
		ErrorLogRate:   DefaultErrorLogRate,
		ErrorLogBurst:  DefaultErrorLogBurst,
	}
}

func (c Config) withDefaults() Config {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.PushPort == 0 {
		c.PushPort = c.Port + 1
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.ErrorLogRate <= 0 {
		c.ErrorLogRate = DefaultErrorLogRate
	}
	if c.ErrorLogBurst <= 0 {
		c.ErrorLogBurst = DefaultErrorLogBurst
	}
	return c
}

// CommandAddr returns host:port of the command endpoint.
func (c Config) CommandAddr() string {
	d := c.withDefaults()
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// PushAddr returns host:port of the push endpoint.
func (c Config) PushAddr() string {
	d := c.withDefaults()
	return net.JoinHostPort(d.Host, strconv.Itoa(d.PushPort))
}

// Option configures a Client.
type Option func(*Client)

// WithCollector records transport counters on c.
func WithCollector(c *metrics.Collector) Option {
	return func(cl *Client) { cl.collector = c }
}

// Client is a dual-channel engine connection.
//
// Call is safe for concurrent use; callers are serialized so exactly one
// request is in flight on the command socket.
type Client struct {
	cfg       Config
	logger    *log.Logger
	collector *metrics.Collector
	dialer    net.Dialer

	// callMu serializes command exchanges.
	callMu sync.Mutex
	// stateMu guards conn and closed.
	stateMu sync.Mutex
	conn    net.Conn
	closed  bool

	// listenMu guards the push loop state.
	listenMu  sync.Mutex
	listening bool
	cancel    context.CancelFunc
	done      chan struct{}

	errLog *rate.Limiter
}

// New creates a client for cfg. Nothing is dialed until Connect or Listen.
func New(cfg Config, logger *log.Logger, opts ...Option) *Client {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = log.NewNop()
	}
	c := &Client{
		cfg:    cfg,
		logger: logger,
		dialer: net.Dialer{Timeout: cfg.DialTimeout},
		errLog: rate.NewLimiter(rate.Limit(cfg.ErrorLogRate), cfg.ErrorLogBurst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the effective configuration with defaults applied.
func (c *Client) Config() Config {
	return c.cfg
}

// Connect dials the command endpoint. It is a no-op when already connected.
func (c *Client) Connect(ctx context.Context) error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.conn != nil {
		return nil
	}

	addr := c.cfg.CommandAddr()
	conn, err := c.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &TransportError{Op: "dial", Addr: addr, Err: err}
	}
	c.conn = conn
	c.logger.Info("command channel connected", map[string]any{"addr": addr})
	return nil
}

// Connected reports whether the command connection is open.
func (c *Client) Connected() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.conn != nil
}

// Call writes payload as one frame and blocks for the single reply frame.
//
// A second caller waits until the first reply has been read. On a write or
// read failure the connection is dropped; later calls return ErrNotConnected
// until Connect succeeds again.
func (c *Client) Call(ctx context.Context, payload []byte) ([]byte, error) {
	c.callMu.Lock()
	defer c.callMu.Unlock()

	c.stateMu.Lock()
	conn := c.conn
	c.stateMu.Unlock()
	if conn == nil {
		return nil, ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := conn.SetDeadline(c.deadline(ctx)); err != nil {
		c.drop(conn)
		return nil, &TransportError{Op: "write", Addr: c.cfg.CommandAddr(), Err: err}
	}
	release := expireOnCancel(ctx, conn)
	defer release()

	if err := ipc.NewFrameEncoder(conn).WriteFrame(payload); err != nil {
		c.drop(conn)
		return nil, c.callError(ctx, "write", err)
	}

	reply, err := ipc.NewFrameDecoder(conn).ReadFrame()
	if err != nil {
		c.drop(conn)
		return nil, c.callError(ctx, "read", err)
	}
	return reply, nil
}

// expireOnCancel expires conn's deadline when ctx is done, interrupting a
// blocked read or write. Once release returns the deadline is left alone,
// so a late cancellation cannot leak into the next call.
func expireOnCancel(ctx context.Context, conn net.Conn) (release func()) {
	var (
		mu       sync.Mutex
		released bool
	)
	stop := context.AfterFunc(ctx, func() {
		mu.Lock()
		defer mu.Unlock()
		if !released {
			_ = conn.SetDeadline(time.Unix(1, 0))
		}
	})
	return func() {
		if stop() {
			return
		}
		mu.Lock()
		released = true
		mu.Unlock()
	}
}

func (c *Client) deadline(ctx context.Context) time.Time {
	var deadline time.Time
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	if c.cfg.CallTimeout > 0 {
		t := time.Now().Add(c.cfg.CallTimeout)
		if deadline.IsZero() || t.Before(deadline) {
			deadline = t
		}
	}
	return deadline
}

func (c *Client) callError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = fmt.Errorf("%w: %w", ctxErr, err)
	}
	return &TransportError{Op: op, Addr: c.cfg.CommandAddr(), Err: err}
}

// drop closes conn and clears it if it is still the current connection.
func (c *Client) drop(conn net.Conn) {
	c.stateMu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.stateMu.Unlock()
	_ = conn.Close()
	c.logger.Warn("command channel dropped", map[string]any{"addr": c.cfg.CommandAddr()})
}

// Close closes both connections and waits for the push loop to exit.
// It is safe to call more than once.
func (c *Client) Close() error {
	c.stopListening()

	c.stateMu.Lock()
	conn := c.conn
	c.conn = nil
	c.closed = true
	c.stateMu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}
