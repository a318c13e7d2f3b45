package server

import (
	"golang.org/x/sys/unix"

	"github.com/pkg/errors"
)

// newListenerFd builds the listening socket the same way the original's
// InitSocket_ does: socket, SO_REUSEADDR, bind, then listen with a backlog
// of 8, registering the fd directly with our own epoll instance rather
// than going through Go's runtime netpoller.
func newListenerFd(port int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, errors.Wrap(err, "server: socket")
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, errors.Wrap(err, "server: setsockopt SO_REUSEADDR")
	}

	addr := &unix.SockaddrInet4{Port: port}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return -1, errors.Wrap(err, "server: bind")
	}

	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return -1, errors.Wrap(err, "server: listen")
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, errors.Wrap(err, "server: set nonblocking")
	}
	return fd, nil
}
