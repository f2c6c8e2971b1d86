package server

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/nimbid/Mini-HTTP-Server/errors"
	"github.com/nimbid/Mini-HTTP-Server/protocol"
	"github.com/nimbid/Mini-HTTP-Server/resource"
	"github.com/nimbid/Mini-HTTP-Server/transport"
)

// ConnState is the position of a handler in its request/response loop
type ConnState int32

const (
	StateReading ConnState = iota
	StateParsing
	StateDispatching
	StateResponding
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateReading:
		return "reading"
	case StateParsing:
		return "parsing"
	case StateDispatching:
		return "dispatching"
	case StateResponding:
		return "responding"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ConnHandler owns one accepted connection and answers its requests in
// receipt order until the peer leaves, the idle timeout fires or a
// response without keep-alive has been sent.
type ConnHandler struct {
	trans     transport.Transport
	resolver  *resource.Resolver
	keepAlive time.Duration
	log       zerolog.Logger

	state   atomic.Int32
	prefs   protocol.ConnectionPreferences
	recvBuf []byte
	sendBuf []byte
}

// NewConnHandler creates a handler for trans. bufSize bounds one receive.
func NewConnHandler(trans transport.Transport, resolver *resource.Resolver, keepAlive time.Duration, bufSize int, log zerolog.Logger) *ConnHandler {
	return &ConnHandler{
		trans:     trans,
		resolver:  resolver,
		keepAlive: keepAlive,
		log:       log,
		recvBuf:   make([]byte, bufSize),
		sendBuf:   make([]byte, 0, 256),
	}
}

// State returns the current loop position; safe from any goroutine
func (h *ConnHandler) State() ConnState {
	return ConnState(h.state.Load())
}

func (h *ConnHandler) setState(s ConnState) {
	h.state.Store(int32(s))
}

// Close closes the connection from another goroutine; Serve then returns
func (h *ConnHandler) Close() error {
	return h.trans.Close()
}

// Serve runs the request/response loop and releases the connection on return
func (h *ConnHandler) Serve() {
	defer h.release()

	for {
		h.setState(StateReading)
		n, err := h.trans.Read(h.recvBuf)
		if err != nil {
			h.logReadEnd(err)
			return
		}

		h.setState(StateParsing)
		requests := protocol.ParseRequests(h.recvBuf[:n])

		for _, req := range requests {
			// a client may change its mind on every request
			h.prefs = h.prefs.Update(req, h.keepAlive)
			h.trans.SetIdleTimeout(h.prefs.IdleTimeout)

			if err := h.serveRequest(req); err != nil {
				h.log.Debug().Err(err).Msg("response not delivered, closing")
				return
			}

			if !h.prefs.KeepAlive {
				h.log.Debug().Msg("closing connection")
				return
			}
		}
	}
}

// release is the single path into the closed state
func (h *ConnHandler) release() {
	h.setState(StateClosed)
	h.trans.Destroy()
	h.recvBuf = nil
	h.sendBuf = nil
}

func (h *ConnHandler) logReadEnd(err error) {
	switch {
	case errors.IsTimeout(err):
		h.log.Debug().Dur("idle", h.prefs.IdleTimeout).Msg("keep-alive idle timeout")
	case errors.IsConnectionClosed(err):
		h.log.Debug().Msg("peer closed connection")
	default:
		h.log.Warn().Err(err).Msg("receive failed")
	}
}

// serveRequest answers one request. The returned error is a send failure.
func (h *ConnHandler) serveRequest(req *protocol.HttpRequest) error {
	h.setState(StateDispatching)
	resp := h.dispatch(req)

	h.setState(StateResponding)
	h.sendBuf = resp.AppendHeader(h.sendBuf[:0])
	if _, err := h.trans.Write(h.sendBuf); err != nil {
		return err
	}
	if len(resp.Body) > 0 {
		if _, err := h.trans.Write(resp.Body); err != nil {
			return err
		}
	}

	h.log.Debug().
		Str("method", req.RawMethod).
		Str("target", req.Target).
		Str("version", req.RawVersion).
		Int("status", resp.StatusCode).
		Int("length", resp.ContentLength).
		Bool("keepalive", resp.KeepAlive).
		Msg("request served")
	return nil
}

// dispatch validates req and builds its response; every failure becomes a 500
func (h *ConnHandler) dispatch(req *protocol.HttpRequest) *protocol.HttpResponse {
	version := protocol.ResponseVersion(req)
	keepAlive := h.prefs.KeepAlive

	if err := req.Validate(); err != nil {
		h.log.Debug().Err(err).Msg("rejecting request")
		return protocol.NewErrorResponse(version, keepAlive)
	}

	var resp *protocol.HttpResponse
	var err error
	switch req.Method {
	case protocol.MethodHead:
		resp, err = h.head(req, version, keepAlive)
	case protocol.MethodGet:
		resp, err = h.get(req, version, keepAlive)
	case protocol.MethodPost:
		resp, err = h.post(req, version, keepAlive)
	}
	if err != nil {
		if errors.IsResourceNotFound(err) {
			h.log.Debug().Err(err).Msg("resource not found")
		} else {
			h.log.Warn().Err(err).Msg("resource failure")
		}
		return protocol.NewErrorResponse(version, keepAlive)
	}
	return resp
}

func (h *ConnHandler) head(req *protocol.HttpRequest, version string, keepAlive bool) (*protocol.HttpResponse, error) {
	d, err := h.resolver.Resolve(req.Target)
	if err != nil {
		return nil, err
	}
	return protocol.NewOkResponse(version, d.ContentType, int(d.Size), nil, keepAlive), nil
}

func (h *ConnHandler) get(req *protocol.HttpRequest, version string, keepAlive bool) (*protocol.HttpResponse, error) {
	d, err := h.resolver.Open(req.Target)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	body, err := d.ReadAll()
	if err != nil {
		return nil, err
	}
	return protocol.NewOkResponse(version, d.ContentType, len(body), body, keepAlive), nil
}

func (h *ConnHandler) post(req *protocol.HttpRequest, version string, keepAlive bool) (*protocol.HttpResponse, error) {
	d, err := h.resolver.Open(req.Target)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	file, err := d.ReadAll()
	if err != nil {
		return nil, err
	}
	body := protocol.PostPage(req.Body, file)
	return protocol.NewOkResponse(version, d.ContentType, len(body), body, keepAlive), nil
}
