// Package server accepts connections and runs one ConnHandler per connection.
package server

import (
	"context"
	stderrors "errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/nimbid/Mini-HTTP-Server/config"
	"github.com/nimbid/Mini-HTTP-Server/errors"
	"github.com/nimbid/Mini-HTTP-Server/resource"
	"github.com/nimbid/Mini-HTTP-Server/transport"
)

// Server is the listener/acceptor. Handlers share nothing but the
// resolver, which is read-only.
type Server struct {
	cfg      *config.Config
	resolver *resource.Resolver
	log      zerolog.Logger
	slots    *semaphore.Weighted

	listener net.Listener
	nextID   atomic.Uint64
	wg       sync.WaitGroup

	mu       sync.Mutex
	handlers map[*ConnHandler]struct{}
}

// New creates a server for cfg
func New(cfg *config.Config, log zerolog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		resolver: resource.NewResolver(cfg.Root, cfg.DefaultObject, cfg.AllowTraversal),
		log:      log,
		slots:    semaphore.NewWeighted(int64(cfg.MaxConns)),
		handlers: make(map[*ConnHandler]struct{}),
	}
}

// Listen binds the listening socket
func (s *Server) Listen() error {
	var ln net.Listener
	var err error
	if s.cfg.UnixSocket != "" {
		ln, err = transport.ListenUnix(s.cfg.UnixSocket)
	} else {
		ln, err = transport.Listen(s.cfg.Host, s.cfg.Port, s.cfg.Backlog)
	}
	if err != nil {
		return err
	}
	s.listener = ln
	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("root", s.resolver.Root()).
		Str("transport", string(s.cfg.Transport)).
		Msg("listening")
	return nil
}

// Addr returns the bound address, nil before Listen
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until ctx is cancelled, then closes the
// listener and drains the handlers within the grace period.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return errors.NewInvalidArgumentError("Serve called before Listen")
	}

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
			s.listener.Close()
		case <-stopped:
		}
	}()

	var backoff time.Duration
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || stderrors.Is(err, net.ErrClosed) {
				s.drain()
				return nil
			}

			// accept failures are not fatal, back off and keep accepting
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else if backoff *= 2; backoff > time.Second {
				backoff = time.Second
			}
			s.log.Warn().
				Err(errors.NewListenerError(errors.ListenerErrorAcceptFailure, "accept failed", err)).
				Dur("retry", backoff).
				Msg("accept error")
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		if !s.slots.TryAcquire(1) {
			s.log.Warn().
				Str("remote", transport.RemoteString(conn)).
				Int("max_conns", s.cfg.MaxConns).
				Msg("connection limit reached, rejecting")
			conn.Close()
			continue
		}

		s.wg.Add(1)
		go s.handle(conn, s.nextID.Add(1))
	}
}

func (s *Server) handle(conn net.Conn, id uint64) {
	defer s.wg.Done()
	defer s.slots.Release(1)

	log := s.log.With().Uint64("conn", id).Logger()

	trans, err := transport.New(s.cfg.Transport, conn)
	if err != nil {
		log.Error().Err(err).Str("remote", transport.RemoteString(conn)).Msg("could not set up transport")
		return
	}
	log = log.With().Str("remote", trans.RemoteAddr()).Logger()

	h := NewConnHandler(trans, s.resolver, s.cfg.KeepAlive, s.cfg.BufferSize, log)
	s.track(h, true)
	defer s.track(h, false)

	log.Debug().Msg("connected")
	h.Serve()
}

func (s *Server) track(h *ConnHandler, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.handlers[h] = struct{}{}
	} else {
		delete(s.handlers, h)
	}
}

// closeHandlers closes tracked connections; idleOnly limits it to
// handlers blocked waiting for a request.
func (s *Server) closeHandlers(idleOnly bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	closed := 0
	for h := range s.handlers {
		if idleOnly && h.State() != StateReading {
			continue
		}
		h.Close()
		closed++
	}
	return closed
}

// drain waits for in-flight handlers. Idle connections are closed at
// once, busy ones get the grace period before being closed.
func (s *Server) drain() {
	s.log.Info().Dur("grace", s.cfg.GracePeriod).Msg("shutting down")

	idle := s.closeHandlers(true)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info().Int("idle_closed", idle).Msg("all connections finished")
	case <-time.After(s.cfg.GracePeriod):
		forced := s.closeHandlers(false)
		s.log.Warn().Int("forced", forced).Msg("grace period expired, closing connections")
		<-done
	}
}
