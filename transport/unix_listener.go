package transport

import (
	"net"
	"os"

	"github.com/nimbid/Mini-HTTP-Server/errors"
)

// ListenUnix listens on a Unix domain socket at path, replacing a stale
// socket file left behind by a previous run.
func ListenUnix(path string) (net.Listener, error) {
	if info, err := os.Lstat(path); err == nil {
		if info.Mode()&os.ModeSocket == 0 {
			return nil, errors.NewListenerError(
				errors.ListenerErrorBindFailure,
				path+" exists and is not a socket",
				nil,
			)
		}
		os.Remove(path)
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, errors.NewListenerError(
			errors.ListenerErrorBindFailure,
			"failed to listen on unix socket "+path,
			err,
		)
	}

	// remove the socket file when the listener closes
	if ul, ok := ln.(*net.UnixListener); ok {
		ul.SetUnlinkOnClose(true)
	}
	return ln, nil
}
