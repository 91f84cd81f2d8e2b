package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rhuss/modelserve/pkg/api"
	"github.com/rhuss/modelserve/pkg/codec"
	"github.com/rhuss/modelserve/pkg/debug"
)

// Binary sends commands over one persistent binary protocol connection.
// Calls are serialized; the server answers in order.
type Binary struct {
	conn net.Conn
	opts options
	auth []byte

	mu     sync.Mutex
	broken error
}

var _ Client = (*Binary)(nil)

// DialBinary connects to the binary front end at addr.
func DialBinary(ctx context.Context, addr string, opts ...Option) (*Binary, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	return NewBinary(conn, opts...), nil
}

// NewBinary wraps an established connection. The client owns conn.
func NewBinary(conn net.Conn, opts ...Option) *Binary {
	o := buildOptions(opts)
	return &Binary{
		conn: conn,
		opts: o,
		auth: []byte(o.credentials.Authorization()),
	}
}

// Do sends cmd and waits for its response. A context that ends mid-call
// leaves the stream out of sync, so the connection is closed and later
// calls fail with ErrClosed.
func (c *Binary) Do(ctx context.Context, cmd api.Command) (api.Response, error) {
	payload, err := codec.EncodeCommand(cmd)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", cmd.Kind(), err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken != nil {
		return nil, c.broken
	}

	// Context deadlines are enforced by the AfterFunc below.
	var deadline time.Time
	if _, ok := ctx.Deadline(); !ok && c.opts.timeout > 0 {
		deadline = time.Now().Add(c.opts.timeout)
	}
	c.conn.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetDeadline(time.Unix(1, 0))
	})

	resp, err := c.roundTrip(payload)
	if !stop() || ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		c.fail()
		return nil, err
	}
	c.conn.SetDeadline(time.Time{})

	debug.Log("client", "binary call", "kind", cmd.Kind(), "response", resp.Kind())

	if e, ok := resp.(*api.ErrorResponse); ok {
		return nil, e
	}
	return resp, nil
}

func (c *Binary) roundTrip(payload []byte) (api.Response, error) {
	if err := codec.WriteFrame(c.conn, codec.Frame{Auth: c.auth, Payload: payload}, c.opts.limits); err != nil {
		return nil, fmt.Errorf("writing frame: %w", err)
	}
	frame, err := codec.ReadFrame(c.conn, c.opts.limits)
	if err != nil {
		return nil, fmt.Errorf("reading frame: %w", err)
	}
	return codec.DecodeResponse(frame.Payload)
}

func (c *Binary) fail() {
	c.broken = ErrClosed
	c.conn.Close()
}

// Close closes the connection.
func (c *Binary) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if errors.Is(c.broken, ErrClosed) {
		return nil
	}
	c.broken = ErrClosed
	return c.conn.Close()
}
