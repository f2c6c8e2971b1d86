package transport

import (
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/nimbid/Mini-HTTP-Server/errors"
)

// fileConn is implemented by *net.TCPConn and *net.UnixConn
type fileConn interface {
	net.Conn
	File() (*os.File, error)
}

// socketFile detaches the socket behind an accepted TCP or Unix connection
// so that it can be driven by io_uring. conn is closed in every case; the
// returned file holds its own descriptor.
func socketFile(conn net.Conn) (*os.File, string, error) {
	fc, ok := conn.(fileConn)
	if !ok {
		conn.Close()
		return nil, "", errors.NewTransportError(
			errors.TransportErrorUnsupportedConn,
			fmt.Sprintf("io_uring needs a TCP or Unix socket, got %T", conn),
			nil,
		)
	}

	remote := RemoteString(fc)
	if tcpConn, ok := fc.(*net.TCPConn); ok {
		tcpConn.SetNoDelay(true)
	}

	file, err := fc.File()
	fc.Close()
	if err != nil {
		return nil, "", errors.NewTransportError(
			errors.TransportErrorUnsupportedConn,
			"failed to detach socket descriptor",
			err,
		)
	}

	return file, remote, nil
}

// RemoteString returns the peer address of conn, "unknown" when it has none
func RemoteString(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil && addr.String() != "" {
		return addr.String()
	}
	return "unknown"
}

// idleWatch arms a timer that shuts down the read side of file once d
// elapses, which completes a pending recv with zero bytes. fired records
// that the zero-byte read came from the timer rather than from the peer.
// The returned func disarms the timer.
func idleWatch(file *os.File, d time.Duration, fired *atomic.Bool) func() {
	if d <= 0 {
		return func() {}
	}
	timer := time.AfterFunc(d, func() {
		shutdownRead(file, fired)
	})
	return func() { timer.Stop() }
}

// shutdownRead holds a reference on the descriptor while shutting it down;
// once file is closed it does nothing.
func shutdownRead(file *os.File, fired *atomic.Bool) {
	raw, err := file.SyscallConn()
	if err != nil {
		return
	}
	raw.Control(func(fd uintptr) {
		fired.Store(true)
		unix.Shutdown(int(fd), unix.SHUT_RD)
	})
}

// zeroReadError reports a zero-byte read as either an idle timeout or a peer close
func zeroReadError(fired *atomic.Bool) error {
	if fired.Load() {
		return errors.NewTransportError(errors.TransportErrorTimeout, "idle timeout expired", nil)
	}
	return errors.NewTransportError(errors.TransportErrorConnectionClosed, "connection closed by peer", nil)
}
