package binary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rhuss/modelserve/pkg/api"
	"github.com/rhuss/modelserve/pkg/codec"
	"github.com/rhuss/modelserve/pkg/debug"
	"github.com/rhuss/modelserve/pkg/observability"
	"github.com/rhuss/modelserve/pkg/transport"
)

// queueDepth bounds the decoded frames waiting behind the one in flight.
const queueDepth = 16

// Server accepts binary protocol connections and hands each command to
// the dispatcher.
type Server struct {
	dispatcher      transport.Dispatcher
	limits          codec.Limits
	logger          *slog.Logger
	shutdownTimeout time.Duration

	inflight *transport.InFlightRegistry
	nextID   atomic.Uint64
	closing  atomic.Bool

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithLimits sets the frame size limits.
func WithLimits(l codec.Limits) Option {
	return func(s *Server) { s.limits = l }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithShutdownTimeout sets how long Shutdown waits for in-flight commands
// before cancelling them.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) { s.shutdownTimeout = d }
}

// NewServer creates a server dispatching to d.
func NewServer(d transport.Dispatcher, opts ...Option) *Server {
	s := &Server{
		dispatcher:      d,
		limits:          codec.DefaultLimits(),
		logger:          slog.Default(),
		shutdownTimeout: 10 * time.Second,
		inflight:        transport.NewInFlightRegistry(),
		conns:           make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve accepts connections on ln until ctx is done, then shuts down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("binary server starting", slog.String("addr", ln.Addr().String()))

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || s.closing.Load() {
				break
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				time.Sleep(10 * time.Millisecond)
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.wg.Add(1)
		s.track(conn, true)
		go s.serveConn(context.WithoutCancel(ctx), conn)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops reading new frames, waits for in-flight commands until
// ctx is done, then cancels what remains and closes every connection.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closing.Store(true)
	s.logger.Info("shutting down binary server", slog.Int("in_flight", s.inflight.Len()))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	// Idle connections block in a read; closing their read side ends them.
	s.mu.Lock()
	for c := range s.conns {
		if cr, ok := c.(interface{ CloseRead() error }); ok {
			cr.CloseRead()
		} else {
			c.SetReadDeadline(time.Now())
		}
	}
	s.mu.Unlock()

	select {
	case <-done:
		s.logger.Info("binary server stopped")
		return nil
	case <-ctx.Done():
	}

	n := s.inflight.CancelAll()
	s.mu.Lock()
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
	<-done
	s.logger.Warn("binary server stopped with cancelled commands", slog.Int("cancelled", n))
	return ctx.Err()
}

func (s *Server) track(c net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[c] = struct{}{}
		observability.BinaryConnections.Inc()
	} else {
		delete(s.conns, c)
		observability.BinaryConnections.Dec()
	}
}

// item is one decoded frame, or the error that ended decoding.
type item struct {
	cmd   api.Command
	creds transport.Credentials
	err   error
	fatal bool
}

// ServeConn serves a single connection until the peer closes it, a frame
// cannot be decoded, or the server shuts down. It closes conn.
func (s *Server) ServeConn(ctx context.Context, conn net.Conn) {
	s.wg.Add(1)
	s.track(conn, true)
	s.serveConn(ctx, conn)
}

// serveConn expects conn to be registered with wg and conns already.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer s.track(conn, false)
	defer conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	remote := conn.RemoteAddr().String()
	debug.Log("binary", "connection opened", "remote_addr", remote)

	items := make(chan item, queueDepth)
	go s.readLoop(ctx, cancel, conn, items)

	for it := range items {
		if it.fatal {
			s.logger.Warn("closing connection after malformed frame", "remote_addr", remote, "error", it.err)
			s.writeResponse(conn, api.AsErrorResponse(it.err))
			return
		}

		var resp api.Response
		if it.err != nil {
			resp = api.AsErrorResponse(it.err)
		} else {
			resp = s.dispatch(ctx, conn, it)
		}
		if ctx.Err() != nil {
			// Peer is gone; nobody reads the answer.
			return
		}
		if err := s.writeResponse(conn, resp); err != nil {
			debug.Log("binary", "write failed", "remote_addr", remote, "error", err)
			return
		}
	}
	debug.Log("binary", "connection closed", "remote_addr", remote)
}

// readLoop decodes frames into items until the stream ends. A clean or
// broken end of stream cancels ctx so the command in flight stops.
func (s *Server) readLoop(ctx context.Context, cancel context.CancelFunc, conn net.Conn, items chan<- item) {
	defer close(items)
	for !s.closing.Load() {
		frame, err := codec.ReadFrame(conn, s.limits)
		if err != nil {
			if codec.IsDecodeError(err) && !s.closing.Load() {
				select {
				case items <- item{err: err, fatal: true}:
				case <-ctx.Done():
				}
				return
			}
			if !errors.Is(err, io.EOF) && !s.closing.Load() {
				debug.Log("binary", "read failed", "remote_addr", conn.RemoteAddr().String(), "error", err)
			}
			// Only a vanished peer cancels; during shutdown in-flight
			// work is allowed to finish.
			if !s.closing.Load() {
				cancel()
			}
			return
		}

		it := item{creds: transport.ParseAuthorization(string(frame.Auth))}
		it.cmd, it.err = codec.DecodeCommand(frame.Payload)
		if it.err != nil {
			// A well-formed message whose payload fails validation only
			// fails that request.
			var ve *api.ValidationError
			if errors.As(it.err, &ve) {
				it.err = ve
			} else {
				it.fatal = true
			}
		}

		select {
		case items <- it:
		case <-ctx.Done():
			return
		}
		if it.fatal {
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, conn net.Conn, it item) api.Response {
	id := strconv.FormatUint(s.nextID.Add(1), 10)
	ctx, cancel := context.WithCancel(ctx)
	s.inflight.Register(id, cancel)
	defer func() {
		s.inflight.Remove(id)
		cancel()
	}()

	resp, err := s.dispatcher.Dispatch(ctx, &transport.Request{
		Command:     it.cmd,
		RemoteAddr:  conn.RemoteAddr().String(),
		Credentials: it.creds,
		Protocol:    transport.ProtocolBinary,
	})
	if err != nil {
		return api.AsErrorResponse(err)
	}
	if resp == nil {
		return api.AsErrorResponse(api.NewServerError("handler returned no response"))
	}
	return resp
}

func (s *Server) writeResponse(w io.Writer, resp api.Response) error {
	payload, err := codec.EncodeResponse(resp)
	if err != nil {
		s.logger.Error("encoding response failed", "kind", resp.Kind(), "error", err)
		payload, err = codec.EncodeResponse(api.AsErrorResponse(api.NewServerError("response could not be encoded")))
		if err != nil {
			return err
		}
	}
	return codec.WriteFrame(w, codec.Frame{Payload: payload}, s.limits)
}
