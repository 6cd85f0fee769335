// Package server is the TCP front end: it accepts connections, gives each
// one its own goroutine and session, and pairs every request object read
// from the connection with exactly one response object.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/seat-booking-server/internal/handler"
	"github.com/iliyamo/seat-booking-server/internal/monitoring"
	"github.com/iliyamo/seat-booking-server/internal/protocol"
	"github.com/iliyamo/seat-booking-server/internal/ratelimit"
	"github.com/iliyamo/seat-booking-server/internal/session"
)

// Server serves the line protocol.  Connections share nothing but the
// dispatcher (and through it the store); no lock is held across network
// I/O.
type Server struct {
	Dispatcher   *handler.Dispatcher
	Limiter      *ratelimit.TokenBucket // nil disables rate limiting
	Log          *slog.Logger
	IdleTimeout  time.Duration // 0 waits forever for the next request
	WriteTimeout time.Duration
	MaxRequest   int64 // bytes per request object; 0 means unlimited

	mu      sync.Mutex
	conns   map[net.Conn]struct{}
	closing bool
	wg      sync.WaitGroup
}

// New returns a server with a ten second write timeout and requests capped
// at protocol.MaxFrameSize.
func New(d *handler.Dispatcher, limiter *ratelimit.TokenBucket, idle time.Duration, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Server{
		Dispatcher:   d,
		Limiter:      limiter,
		Log:          log,
		IdleTimeout:  idle,
		WriteTimeout: 10 * time.Second,
		MaxRequest:   protocol.MaxFrameSize,
	}
}

// Serve accepts connections on ln until ctx is cancelled.  On cancellation
// it closes the listener and every live connection, waits for their
// handlers to return and then returns nil.  Any other accept failure is
// returned after the same cleanup.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
		s.closeAll()
	})
	defer stop()

	s.Log.Info("listening", "addr", ln.Addr().String())
	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				backoff = min(max(2*backoff, 5*time.Millisecond), time.Second)
				s.Log.Warn("accept failed, retrying", "error", err, "retry_in", backoff)
				time.Sleep(backoff)
				continue
			}
			_ = ln.Close()
			s.closeAll()
			s.wg.Wait()
			return fmt.Errorf("accept: %w", err)
		}
		backoff = 0
		if !s.track(conn) {
			_ = conn.Close()
			continue
		}
		go s.handle(ctx, conn)
	}
}

// track registers conn; it refuses once shutdown started.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	if s.conns == nil {
		s.conns = make(map[net.Conn]struct{})
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	s.wg.Done()
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closing = true
	for c := range s.conns {
		_ = c.Close()
	}
}

// ActiveConnections reports how many connections are being served.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	id := uuid.NewString()
	log := s.Log.With("conn", id, "remote", conn.RemoteAddr().String())

	monitoring.ConnectionOpened()
	defer monitoring.ConnectionClosed()
	defer s.untrack(conn)
	defer conn.Close()
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic in connection handler", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	log.Info("client connected")
	defer log.Info("client disconnected")

	ip := remoteIP(conn)
	sess := session.New(id)
	dec := protocol.NewDecoder(conn)
	dec.SetLimit(s.MaxRequest)
	enc := protocol.NewEncoder(conn)
	for {
		if s.IdleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.IdleTimeout))
		}
		var req protocol.Request
		err := dec.Decode(&req)
		if err != nil {
			if !protocol.IsFatal(err) {
				log.Info("rejecting request", "error", err)
				if !s.write(conn, enc, log, protocol.BadRequest("invalid request: "+err.Error()).Response()) {
					return
				}
				continue
			}
			switch {
			case errors.Is(err, protocol.ErrFrameTooLarge):
				log.Warn("request too large, closing", "limit", s.MaxRequest)
				if s.write(conn, enc, log, protocol.TooLarge().Response()) {
					lingerClose(conn)
				}
			case protocol.IsMalformed(err):
				log.Warn("malformed frame, closing", "error", err)
				s.write(conn, enc, log, protocol.InvalidJSON().Response())
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
			default:
				log.Debug("read ended", "error", err)
			}
			return
		}

		resp := s.serve(ctx, log, sess, ip, req)
		if !s.write(conn, enc, log, resp) {
			return
		}
	}
}

// serve runs one request, recovering from panics so that a faulty handler
// costs the client one failed request rather than its connection.
func (s *Server) serve(ctx context.Context, log *slog.Logger, sess *session.Session, ip string, req protocol.Request) (resp protocol.Response) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while dispatching", "action", req.Action.String(), "panic", r, "stack", string(debug.Stack()))
			resp = protocol.StoreFailure(errors.New("internal error")).Response()
		}
		monitoring.RecordRequest(req.Action.String(), "tcp", resp.Code(), time.Since(start))
	}()

	if s.Limiter != nil {
		key := s.Limiter.Key(ip, sess.UserID())
		d, err := s.Limiter.Allow(ctx, key)
		if err != nil {
			log.Warn("rate limiter unavailable", "error", err)
		} else if !d.Allowed {
			return protocol.RateLimited().Response().With("retry_after_ms", d.RetryAfter.Milliseconds())
		}
	}
	return s.Dispatcher.Dispatch(ctx, sess, req)
}

func (s *Server) write(conn net.Conn, enc *protocol.Encoder, log *slog.Logger, resp protocol.Response) bool {
	if s.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.WriteTimeout))
	}
	if err := enc.Encode(resp); err != nil {
		log.Debug("write failed", "error", err)
		return false
	}
	return true
}

// lingerClose half-closes conn and discards what the peer is still sending
// for a moment, so that the reply already written is not lost to a reset
// when the socket closes with unread input.
func lingerClose(conn net.Conn) {
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}
	_ = conn.SetReadDeadline(time.Now().Add(250 * time.Millisecond))
	_, _ = io.Copy(io.Discard, io.LimitReader(conn, 4*protocol.MaxFrameSize))
}

func remoteIP(conn net.Conn) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}
	return host
}
