// Package transport owns the persistent WebSocket connection to the
// interview server. It hides reconnection from callers: they observe
// connection states and a stream of decoded inbound envelopes, and never
// touch the socket itself.
package transport

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yatharthsameer/ai-voice-interviewer-FE/internal/protocol"
)

// State describes the logical connection.
type State string

const (
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosed     State = "closed"
	// StateFailed means the retry budget is exhausted; only Retry leaves it.
	StateFailed State = "failed"
)

// Config tunes the connection and its reconnection policy.
type Config struct {
	URL string
	// HandshakeTimeout bounds a single dial. Defaults to 10s.
	HandshakeTimeout time.Duration
	// BackoffBase is the first reconnect delay. Defaults to 1s, doubling per
	// attempt up to BackoffCap (default 10s).
	BackoffBase time.Duration
	BackoffCap  time.Duration
	// MaxRetries is how many delayed reconnect attempts are made before the
	// client gives up and reports StateFailed. Defaults to 5.
	MaxRetries int
}

func (c *Config) applyDefaults() {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = 10 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
}

// Client maintains exactly one logical connection. All methods are safe for
// concurrent use.
type Client struct {
	cfg    Config
	dialer *websocket.Dialer

	inbound    chan protocol.Inbound
	states     chan State
	done       chan struct{}
	closeOnce  sync.Once
	inboundEnd sync.Once

	mu         sync.Mutex
	conn       *websocket.Conn
	writeMu    sync.Mutex
	connecting bool
	closed     bool
	attempt    int
}

// New constructs a client; no connection is attempted until Connect.
func New(cfg Config) *Client {
	cfg.applyDefaults()
	return &Client{
		cfg:     cfg,
		dialer:  &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		inbound: make(chan protocol.Inbound, 64),
		states:  make(chan State, 16),
		done:    make(chan struct{}),
	}
}

// Inbound returns the stream of decoded server messages. The channel is
// closed once the connection is torn down for good.
func (c *Client) Inbound() <-chan protocol.Inbound { return c.inbound }

// States returns connection-state transitions.
func (c *Client) States() <-chan State { return c.states }

// IsConnected reports whether the socket is currently open.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Connect starts connecting if no connection exists and none is in flight.
// It is idempotent; calling it twice never produces two sockets.
func (c *Client) Connect() {
	c.mu.Lock()
	if c.closed || c.connecting || c.conn != nil {
		c.mu.Unlock()
		return
	}
	c.connecting = true
	c.mu.Unlock()
	go c.runConnect(true)
}

// Retry resets the attempt counter and backoff and immediately dials again.
// It is the manual escape hatch from StateFailed.
func (c *Client) Retry() {
	c.mu.Lock()
	if c.closed || c.conn != nil {
		c.mu.Unlock()
		return
	}
	c.attempt = 0
	already := c.connecting
	c.connecting = true
	c.mu.Unlock()
	if !already {
		go c.runConnect(true)
	}
}

// Send transmits one envelope. It never returns an error: when the
// connection is not open the message is logged and dropped, per the contract
// that callers gate user-facing affordances on connection state themselves.
func (c *Client) Send(msg protocol.Outbound) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		log.Printf("transport: send %q dropped, connection not open", msg.Type)
		return
	}
	c.writeMu.Lock()
	err := conn.WriteJSON(msg)
	c.writeMu.Unlock()
	if err != nil {
		log.Printf("transport: send %q failed: %v", msg.Type, err)
	}
}

// Close tears the connection down for good. No reconnection follows.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	c.closeOnce.Do(func() { close(c.done) })
	if conn != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}
	c.inboundEnd.Do(func() { close(c.inbound) })
	c.emit(StateClosed)
}

// runConnect dials until a connection opens or the retry budget is spent.
// With immediate set the first dial happens right away (fresh Connect/Retry);
// otherwise every dial waits its backoff slot first (reconnect after an
// unexpected close).
func (c *Client) runConnect(immediate bool) {
	for {
		if !immediate {
			c.mu.Lock()
			c.attempt++
			n := c.attempt
			c.mu.Unlock()
			if n > c.cfg.MaxRetries {
				c.mu.Lock()
				c.connecting = false
				c.mu.Unlock()
				log.Printf("transport: giving up after %d reconnect attempts", c.cfg.MaxRetries)
				c.emit(StateFailed)
				return
			}
			delay := backoffDelay(c.cfg.BackoffBase, c.cfg.BackoffCap, n)
			log.Printf("transport: reconnect attempt %d/%d in %s", n, c.cfg.MaxRetries, delay)
			select {
			case <-time.After(delay):
			case <-c.done:
				return
			}
		}
		immediate = false

		select {
		case <-c.done:
			return
		default:
		}

		c.emit(StateConnecting)
		conn, _, err := c.dialer.Dial(c.cfg.URL, nil)
		if err != nil {
			log.Printf("transport: dial %s: %v", c.cfg.URL, err)
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.conn = conn
		c.connecting = false
		c.attempt = 0
		c.mu.Unlock()

		c.emit(StateOpen)
		go c.readLoop(conn)
		return
	}
}

// readLoop pumps frames off one socket until it dies. Malformed frames are
// logged and skipped; an unexpected close re-enters the reconnect loop.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			closed := c.closed
			if !closed {
				c.connecting = true
			}
			c.mu.Unlock()

			if closed {
				return
			}
			log.Printf("transport: connection lost: %v", err)
			c.runConnect(false)
			return
		}

		msg, derr := protocol.Decode(data)
		if derr != nil {
			log.Printf("transport: discarding frame: %v", derr)
			continue
		}
		select {
		case c.inbound <- msg:
		case <-c.done:
			return
		}
	}
}

func (c *Client) emit(s State) {
	select {
	case c.states <- s:
	default:
		log.Printf("transport: state event %s dropped, subscriber lagging", s)
	}
}

// backoffDelay computes the delay before reconnect attempt n (1-based):
// base, 2*base, 4*base... capped.
func backoffDelay(base, max time.Duration, n int) time.Duration {
	d := base
	for i := 1; i < n; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
