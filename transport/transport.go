package transport

import (
	"fmt"
	"net"
	"time"

	"github.com/nimbid/Mini-HTTP-Server/errors"
)

// Transport defines the I/O operations on one accepted connection.
// Implementations wrap plain net.Conn I/O or io_uring submissions.
type Transport interface {
	// Read receives data from the peer.
	// A peer that closed the connection yields TransportErrorConnectionClosed,
	// an expired idle timeout yields TransportErrorTimeout.
	Read(buf []byte) (int, error)

	// Write sends the whole buffer, looping over partial writes.
	// Returns the number of bytes written or an error.
	Write(buf []byte) (int, error)

	// SetIdleTimeout bounds every following Read. Zero disables the bound.
	SetIdleTimeout(d time.Duration)

	// RemoteAddr returns the peer address for logging.
	RemoteAddr() string

	// Close closes the socket. Safe to call more than once and from
	// another goroutine; a blocked Read returns.
	Close() error

	// Destroy closes the socket and frees everything the transport owns.
	// Only the goroutine that reads and writes may call it.
	Destroy()
}

// Kind selects a Transport implementation
type Kind string

const (
	KindTcp    Kind = "tcp"
	KindUring  Kind = "uring"
	KindUring2 Kind = "uring2"
)

// ParseKind validates a transport name
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindTcp, KindUring, KindUring2:
		return Kind(s), nil
	default:
		return "", errors.NewInvalidArgumentError(fmt.Sprintf("unknown transport %q", s))
	}
}

// New wraps an accepted connection in the transport of the given kind.
// On error the connection has been closed.
func New(kind Kind, conn net.Conn) (Transport, error) {
	switch kind {
	case KindTcp, "":
		return NewTcpTransport(conn), nil
	case KindUring:
		return NewUringTransport(conn)
	case KindUring2:
		return NewUringTransportV2(conn)
	default:
		conn.Close()
		return nil, errors.NewInvalidArgumentError(fmt.Sprintf("unknown transport %q", kind))
	}
}

// deadline converts an idle timeout into an absolute read deadline
func deadline(d time.Duration) time.Time {
	if d <= 0 {
		return time.Time{}
	}
	return time.Now().Add(d)
}
