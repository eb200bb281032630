package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pario-ai/oracle/pkg/models"
)

var (
	// ErrMiss means the journal holds no usable record for the request.
	ErrMiss = errors.New("journal miss")
	// ErrRejected means the server answered a put with an error status.
	ErrRejected = errors.New("journal rejected request")
	// ErrConnectionEnded means the connection failed or the server sent a
	// short or unrecognized reply. The client does not reconnect.
	ErrConnectionEnded = errors.New("journal connection ended")
)

// Status is the answer to a hi request.
type Status int

const (
	StatusUnknown Status = iota
	StatusOK
	StatusErr
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusErr:
		return "err"
	default:
		return "unknown"
	}
}

// Client talks to a journal server over one lazily dialed connection.
// Exchanges are serialized: one request/response round trip completes
// before the next begins. After any I/O failure the connection is dead
// for the lifetime of the Client.
type Client struct {
	addr    string
	timeout time.Duration

	mu   sync.Mutex
	conn net.Conn
	dead error
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout bounds each exchange when the caller's context carries no
// deadline of its own.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// NewClient creates a Client for addr. No connection is made until the
// first request.
func NewClient(addr string, opts ...ClientOption) *Client {
	if addr == "" {
		addr = DefaultAddr
	}
	c := &Client{addr: addr, timeout: 10 * time.Second}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Addr returns the server address.
func (c *Client) Addr() string {
	return c.addr
}

// Hi checks that the server is answering.
func (c *Client) Hi(ctx context.Context) (Status, error) {
	status, _, err := c.exchange(ctx, cmdHi, "", nil)
	if err != nil {
		return StatusUnknown, err
	}
	if status == statusErr {
		return StatusErr, nil
	}
	return StatusOK, nil
}

// Put writes an outcome to the journal under sort.
func (c *Client) Put(ctx context.Context, sort string, outcome *models.WorkOutcome) error {
	doc, err := encodeDoc(outcome)
	if err != nil {
		return fmt.Errorf("encode journal record: %w", err)
	}
	status, _, err := c.exchange(ctx, cmdPut, sort, doc)
	if err != nil {
		return err
	}
	if status == statusErr {
		return ErrRejected
	}
	return nil
}

// Get fetches the newest outcome stored under sort for req's key, model
// and ctr. It returns ErrMiss when the server has nothing, answers with an
// error status, or sends a payload that does not decode.
func (c *Client) Get(ctx context.Context, sort string, req models.WorkRequest) (*models.WorkOutcome, error) {
	doc, err := encodeDoc(req)
	if err != nil {
		return nil, fmt.Errorf("encode journal query: %w", err)
	}
	status, payload, err := c.exchange(ctx, cmdGet, sort, doc)
	if err != nil {
		return nil, err
	}
	if status == statusErr || len(payload) == 0 {
		return nil, ErrMiss
	}
	var out models.WorkOutcome
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("%w: undecodable payload: %v", ErrMiss, err)
	}
	return &out, nil
}

// Close closes the connection. Further requests fail with ErrConnectionEnded.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dead == nil {
		c.dead = ErrConnectionEnded
	}
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// exchange performs one round trip. It returns the reply status and, for
// an ok reply to get, the payload.
func (c *Client) exchange(ctx context.Context, cmd, sort string, doc []byte) (string, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dead != nil {
		return "", nil, c.dead
	}
	if c.conn == nil {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", c.addr)
		if err != nil {
			c.dead = fmt.Errorf("%w: dial %s: %v", ErrConnectionEnded, c.addr, err)
			return "", nil, c.dead
		}
		c.conn = conn
	}

	deadline, ok := ctx.Deadline()
	if !ok && c.timeout > 0 {
		deadline = time.Now().Add(c.timeout)
	}
	_ = c.conn.SetDeadline(deadline)

	if _, err := c.conn.Write(appendRequest(nil, cmd, sort, doc)); err != nil {
		return "", nil, c.fail(err)
	}
	status, err := readTag(c.conn)
	if err != nil {
		return "", nil, c.fail(err)
	}
	switch status {
	case statusErr:
		return status, nil, nil
	case statusOK:
		if cmd != cmdGet {
			return status, nil, nil
		}
		payload, err := readPayload(c.conn)
		if err != nil {
			return "", nil, c.fail(err)
		}
		return status, payload, nil
	default:
		return "", nil, c.fail(fmt.Errorf("unexpected status %q", status))
	}
}

// fail marks the connection dead. Must be called with mu held.
func (c *Client) fail(cause error) error {
	_ = c.conn.Close()
	c.conn = nil
	c.dead = fmt.Errorf("%w: %v", ErrConnectionEnded, cause)
	return c.dead
}
