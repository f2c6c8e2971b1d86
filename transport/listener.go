package transport

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"

	"github.com/nimbid/Mini-HTTP-Server/errors"
)

// Listen binds an IPv4 TCP socket on host:port with SO_REUSEADDR and the
// given accept backlog. An empty host binds every interface.
func Listen(host string, port int, backlog int) (net.Listener, error) {
	addr := fmt.Sprintf("%s:%d", host, port)

	sa := &unix.SockaddrInet4{Port: port}
	if host != "" {
		ip := net.ParseIP(host).To4()
		if ip == nil {
			return nil, errors.NewListenerError(
				errors.ListenerErrorBindFailure,
				fmt.Sprintf("not an IPv4 address: %q", host),
				nil,
			)
		}
		copy(sa.Addr[:], ip)
	}

	// Create socket
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, errors.NewListenerError(
			errors.ListenerErrorBindFailure,
			"could not create TCP listening socket",
			err,
		)
	}

	// Eliminates "Address already in use" from bind after a restart
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, errors.NewListenerError(
			errors.ListenerErrorBindFailure,
			"setsockopt(SO_REUSEADDR) failed",
			err,
		)
	}

	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, errors.NewListenerError(
			errors.ListenerErrorBindFailure,
			fmt.Sprintf("bind %s failed", addr),
			err,
		)
	}

	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, errors.NewListenerError(
			errors.ListenerErrorBindFailure,
			fmt.Sprintf("listen on %s failed", addr),
			err,
		)
	}

	// net.FileListener dups the descriptor, the file is ours to close
	file := os.NewFile(uintptr(fd), "tcp:"+addr)
	defer file.Close()

	ln, err := net.FileListener(file)
	if err != nil {
		return nil, errors.NewListenerError(
			errors.ListenerErrorBindFailure,
			fmt.Sprintf("could not wrap listener on %s", addr),
			err,
		)
	}

	return ln, nil
}
