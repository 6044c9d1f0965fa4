package ipc

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"redraftd/internal/notify"
)

// Client errors.
var (
	ErrNotConnected     = errors.New("ipc: not connected to daemon")
	ErrDaemonNotRunning = errors.New("ipc: daemon is not running")
)

// Client is the synchronous client used by redraftctl: one request at a
// time, or a long-lived event stream, never both on the same connection.
type Client struct {
	socketPath string
	timeout    time.Duration

	mu        sync.Mutex
	conn      net.Conn
	connected atomic.Bool
	nextReqID atomic.Uint32
}

// NewClient builds a client for the daemon at socketPath.
func NewClient(socketPath string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{socketPath: socketPath, timeout: timeout}
}

// Connect dials the daemon.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected.Load() {
		return nil
	}

	conn, err := dial(c.socketPath, c.timeout)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDaemonNotRunning, err)
	}
	c.conn = conn
	c.connected.Store(true)
	return nil
}

// Close tears down the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected.CompareAndSwap(true, false) {
		return nil
	}
	return c.conn.Close()
}

// Request sends one frame and waits for its response. An MsgError response
// is turned into an error.
func (c *Client) Request(msgType MessageType, payload any) (*Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected.Load() {
		return nil, ErrNotConnected
	}

	var body []byte
	if payload != nil {
		var err error
		body, err = Encode(payload)
		if err != nil {
			return nil, err
		}
	}

	reqID := c.nextReqID.Add(1)
	msg := NewMessage(msgType, reqID, body)

	c.conn.SetDeadline(time.Now().Add(c.timeout))
	defer c.conn.SetDeadline(time.Time{})

	if err := msg.Write(c.conn); err != nil {
		return nil, fmt.Errorf("ipc: write: %w", err)
	}

	for {
		resp, err := ReadMessage(c.conn)
		if err != nil {
			return nil, fmt.Errorf("ipc: read: %w", err)
		}
		// Skip stray event frames; this connection did not subscribe,
		// but a raced broadcast is harmless.
		if resp.Header.Type == MsgEvent {
			continue
		}
		if resp.Header.RequestID != reqID {
			continue
		}
		if resp.Header.Type == MsgError {
			var e ErrorResponse
			if Decode(resp.Payload, &e) == nil {
				return nil, fmt.Errorf("ipc: daemon error: %s", e.Message)
			}
			return nil, errors.New("ipc: daemon error")
		}
		return resp, nil
	}
}

// Stream subscribes to the daemon's event stream and invokes handler for
// every event until the connection drops or Close is called.
func (c *Client) Stream(handler func(notify.Event)) error {
	if _, err := c.Request(MsgSubscribe, nil); err != nil {
		return err
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	for {
		msg, err := ReadMessage(conn)
		if err != nil {
			if !c.connected.Load() {
				return nil
			}
			return fmt.Errorf("ipc: stream: %w", err)
		}
		if msg.Header.Type != MsgEvent {
			continue
		}
		var event notify.Event
		if err := Decode(msg.Payload, &event); err != nil {
			continue
		}
		handler(event)
	}
}
