package transport

import (
	stderrors "errors"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/godzie44/go-uring/uring"
	"golang.org/x/sys/unix"

	"github.com/nimbid/Mini-HTTP-Server/errors"
)

// UringTransportV2 implements Transport using godzie44/go-uring for async I/O
type UringTransportV2 struct {
	ring        *uring.Ring
	file        *os.File
	fd          uintptr
	remote      string
	idleTimeout time.Duration
	timedOut    atomic.Bool
	closed      atomic.Bool
	closeOnce   sync.Once
	closeErr    error
}

// NewUringTransportV2 moves an accepted TCP connection onto io_uring (v2 using godzie44/go-uring)
func NewUringTransportV2(conn net.Conn) (*UringTransportV2, error) {
	file, remote, err := socketFile(conn)
	if err != nil {
		return nil, err
	}

	// Create io_uring instance with queue depth of 32
	ring, err := uring.New(32)
	if err != nil {
		file.Close()
		return nil, errors.NewTransportError(
			errors.TransportErrorIoUringInit,
			"failed to initialize io_uring",
			err,
		)
	}

	return &UringTransportV2{
		ring:   ring,
		file:   file,
		fd:     file.Fd(),
		remote: remote,
	}, nil
}

// SetIdleTimeout bounds the next reads
func (t *UringTransportV2) SetIdleTimeout(d time.Duration) {
	t.idleTimeout = d
}

// RemoteAddr returns the peer address
func (t *UringTransportV2) RemoteAddr() string {
	return t.remote
}

// complete queues one operation, submits it and waits for its result
func (t *UringTransportV2) complete(op uring.Operation) (int, error) {
	if err := t.ring.QueueSQE(op, 0, 0); err != nil {
		return 0, errors.NewTransportError(
			errors.TransportErrorIoUringSubmit,
			"failed to queue request",
			err,
		)
	}

	if _, err := t.ring.Submit(); err != nil {
		return 0, errors.NewTransportError(
			errors.TransportErrorIoUringSubmit,
			"failed to submit request",
			err,
		)
	}

	var cqe *uring.CQEvent
	var err error
	for {
		cqe, err = t.ring.WaitCQEvents(1)
		// runtime preemption signals interrupt the wait
		if stderrors.Is(err, unix.EINTR) {
			continue
		}
		break
	}
	if err != nil {
		return 0, errors.NewTransportError(
			errors.TransportErrorIoUringSubmit,
			"failed to wait for completion",
			err,
		)
	}

	n := int(cqe.Res)
	cqeErr := cqe.Error()
	t.ring.SeenCQE(cqe)

	return n, cqeErr
}

// Read receives data from the connection using io_uring
func (t *UringTransportV2) Read(buf []byte) (int, error) {
	if t.closed.Load() {
		return 0, errors.NewTransportError(
			errors.TransportErrorConnectionClosed,
			"connection closed",
			nil,
		)
	}

	stop := idleWatch(t.file, t.idleTimeout, &t.timedOut)
	defer stop()

	n, err := t.complete(uring.Read(t.fd, buf, 0))
	if err != nil {
		return 0, classifyError(errors.TransportErrorSocketReadFailure, "read operation failed", err)
	}

	if n == 0 && len(buf) > 0 {
		return 0, zeroReadError(&t.timedOut)
	}

	return n, nil
}

// Write sends data over the connection using io_uring
func (t *UringTransportV2) Write(buf []byte) (int, error) {
	if t.closed.Load() {
		return 0, errors.NewTransportError(
			errors.TransportErrorConnectionClosed,
			"connection closed",
			nil,
		)
	}

	totalWritten := 0
	for totalWritten < len(buf) {
		n, err := t.complete(uring.Write(t.fd, buf[totalWritten:], 0))
		if err != nil {
			return totalWritten, classifyError(errors.TransportErrorSocketWriteFailure, "write operation failed", err)
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

// Close shuts the socket down and releases its descriptor
func (t *UringTransportV2) Close() error {
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		unix.Shutdown(int(t.fd), unix.SHUT_RDWR)
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
func (t *UringTransportV2) Destroy() {
	t.Close()
	if t.ring != nil {
		t.ring.Close()
		t.ring = nil
	}
}
