package transport

import (
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iceber/iouring-go"
	"golang.org/x/sys/unix"

	"github.com/nimbid/Mini-HTTP-Server/errors"
)

// UringTransport implements Transport using io_uring for async I/O
type UringTransport struct {
	iour        *iouring.IOURing
	file        *os.File
	fd          int
	remote      string
	idleTimeout time.Duration
	timedOut    atomic.Bool
	closed      atomic.Bool
	closeOnce   sync.Once
	closeErr    error
}

// NewUringTransport moves an accepted TCP connection onto io_uring
func NewUringTransport(conn net.Conn) (*UringTransport, error) {
	file, remote, err := socketFile(conn)
	if err != nil {
		return nil, err
	}

	// Create io_uring instance with queue depth of 32
	iour, err := iouring.New(32)
	if err != nil {
		file.Close()
		return nil, errors.NewTransportError(
			errors.TransportErrorIoUringInit,
			"failed to initialize io_uring",
			err,
		)
	}

	return &UringTransport{
		iour:   iour,
		file:   file,
		fd:     int(file.Fd()),
		remote: remote,
	}, nil
}

// SetIdleTimeout bounds the next reads
func (t *UringTransport) SetIdleTimeout(d time.Duration) {
	t.idleTimeout = d
}

// RemoteAddr returns the peer address
func (t *UringTransport) RemoteAddr() string {
	return t.remote
}

// Read receives data from the connection using io_uring
func (t *UringTransport) Read(buf []byte) (int, error) {
	if t.closed.Load() {
		return 0, errors.NewTransportError(
			errors.TransportErrorConnectionClosed,
			"connection closed",
			nil,
		)
	}

	stop := idleWatch(t.file, t.idleTimeout, &t.timedOut)
	defer stop()

	// Recv and Send carry no result resolver, Read and Sendmsg do
	ch := make(chan iouring.Result, 1)
	prepReq := iouring.Read(t.fd, buf)
	if _, err := t.iour.SubmitRequest(prepReq, ch); err != nil {
		return 0, errors.NewTransportError(
			errors.TransportErrorIoUringSubmit,
			"failed to submit read request",
			err,
		)
	}

	result := <-ch
	n, err := result.ReturnInt()
	if err != nil {
		return 0, classifyError(errors.TransportErrorSocketReadFailure, "read failed", err)
	}

	if n == 0 && len(buf) > 0 {
		return 0, zeroReadError(&t.timedOut)
	}

	return n, nil
}

// Write sends data over the connection using io_uring
func (t *UringTransport) Write(buf []byte) (int, error) {
	if t.closed.Load() {
		return 0, errors.NewTransportError(
			errors.TransportErrorConnectionClosed,
			"connection closed",
			nil,
		)
	}

	totalWritten := 0
	for totalWritten < len(buf) {
		prepReq, err := iouring.Sendmsg(t.fd, buf[totalWritten:], nil, nil, unix.MSG_NOSIGNAL)
		if err != nil {
			return totalWritten, errors.NewTransportError(
				errors.TransportErrorIoUringSubmit,
				"failed to prepare write request",
				err,
			)
		}

		ch := make(chan iouring.Result, 1)
		if _, err := t.iour.SubmitRequest(prepReq, ch); err != nil {
			return totalWritten, errors.NewTransportError(
				errors.TransportErrorIoUringSubmit,
				"failed to submit write request",
				err,
			)
		}

		result := <-ch
		n, err := result.ReturnInt()
		if err != nil {
			return totalWritten, classifyError(errors.TransportErrorSocketWriteFailure, "write failed", err)
		}

		if n <= 0 {
			return totalWritten, errors.NewTransportError(
				errors.TransportErrorConnectionClosed,
				"connection closed during write",
				nil,
			)
		}

		totalWritten += n
	}

	return totalWritten, nil
}

// Close shuts the socket down and releases its descriptor.
// A recv still pending in the ring completes with zero bytes.
func (t *UringTransport) Close() error {
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		unix.Shutdown(t.fd, unix.SHUT_RDWR)
		if err := t.file.Close(); err != nil {
			t.closeErr = errors.NewTransportError(
				errors.TransportErrorSocketCloseFailure,
				"failed to close socket",
				err,
			)
		}
	})
	return t.closeErr
}

// Destroy cleans up resources including the io_uring instance
func (t *UringTransport) Destroy() {
	t.Close()
	if t.iour != nil {
		t.iour.Close()
		t.iour = nil
	}
}
