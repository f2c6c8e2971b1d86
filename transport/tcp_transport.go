package transport

import (
	stderrors "errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/nimbid/Mini-HTTP-Server/errors"
)

// TcpTransport implements the Transport interface on top of net.Conn
type TcpTransport struct {
	conn        net.Conn
	idleTimeout time.Duration
	closed      atomic.Bool
	closeOnce   sync.Once
	closeErr    error
}

// NewTcpTransport creates a new TcpTransport owning conn
func NewTcpTransport(conn net.Conn) *TcpTransport {
	// Disable Nagle's algorithm, headers and body go out as separate writes
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.SetNoDelay(true)
	}
	return &TcpTransport{conn: conn}
}

// SetIdleTimeout bounds the next reads
func (t *TcpTransport) SetIdleTimeout(d time.Duration) {
	t.idleTimeout = d
}

// RemoteAddr returns the peer address
func (t *TcpTransport) RemoteAddr() string {
	return RemoteString(t.conn)
}

// Read receives data from the TCP connection
func (t *TcpTransport) Read(buf []byte) (int, error) {
	if t.closed.Load() {
		return 0, errors.NewTransportError(errors.TransportErrorConnectionClosed, "connection closed", nil)
	}

	if err := t.conn.SetReadDeadline(deadline(t.idleTimeout)); err != nil {
		return 0, classifyError(errors.TransportErrorSocketReadFailure, "set read deadline", err)
	}

	n, err := t.conn.Read(buf)
	if err != nil {
		return n, classifyError(errors.TransportErrorSocketReadFailure, "read failed", err)
	}
	if n == 0 && len(buf) > 0 {
		return 0, errors.NewTransportError(errors.TransportErrorConnectionClosed, "connection closed by peer", nil)
	}

	return n, nil
}

// Write sends data over the TCP connection
func (t *TcpTransport) Write(buf []byte) (int, error) {
	if t.closed.Load() {
		return 0, errors.NewTransportError(errors.TransportErrorConnectionClosed, "connection closed", nil)
	}

	totalWritten := 0
	for totalWritten < len(buf) {
		n, err := t.conn.Write(buf[totalWritten:])
		totalWritten += n
		if err != nil {
			return totalWritten, classifyError(errors.TransportErrorSocketWriteFailure, "write failed", err)
		}
		if n == 0 {
			return totalWritten, errors.NewTransportError(errors.TransportErrorConnectionClosed, "connection closed during write", nil)
		}
	}

	return totalWritten, nil
}

// Close closes the TCP connection
func (t *TcpTransport) Close() error {
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		if err := t.conn.Close(); err != nil {
			t.closeErr = errors.NewTransportError(errors.TransportErrorSocketCloseFailure, "close failed", err)
		}
	})
	return t.closeErr
}

// Destroy closes the connection; a plain socket owns nothing else
func (t *TcpTransport) Destroy() {
	t.Close()
}

// classifyError maps socket errors onto transport error kinds
func classifyError(fallback errors.TransportError, message string, err error) error {
	var netErr net.Error
	switch {
	case stderrors.As(err, &netErr) && netErr.Timeout():
		return errors.NewTransportError(errors.TransportErrorTimeout, "idle timeout expired", err)
	case stderrors.Is(err, io.EOF),
		stderrors.Is(err, io.ErrClosedPipe),
		stderrors.Is(err, net.ErrClosed),
		stderrors.Is(err, syscall.EPIPE),
		stderrors.Is(err, syscall.ECONNRESET):
		return errors.NewTransportError(errors.TransportErrorConnectionClosed, message, err)
	default:
		return errors.NewTransportError(fallback, message, err)
	}
}
