// Package epoller wraps Linux epoll behind the same small surface as the
// original server's Epoller class: add, modify, remove, wait, and
// per-slot event accessors.
package epoller

import (
	"golang.org/x/sys/unix"

	"github.com/pkg/errors"
)

// Epoller owns one epoll instance and a reusable slice of ready events.
type Epoller struct {
	fd     int
	events []unix.EpollEvent
}

// New creates an epoll instance with room for up to maxEvents ready
// events per Wait call. maxEvents <= 0 falls back to the original's
// default of 1024.
func New(maxEvents int) (*Epoller, error) {
	if maxEvents <= 0 {
		maxEvents = 1024
	}
	fd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, errors.Wrap(err, "epoller: create")
	}
	return &Epoller{fd: fd, events: make([]unix.EpollEvent, maxEvents)}, nil
}

// Add registers fd for the given event mask. It returns false on failure
// instead of propagating the syscall error, matching the original's
// boolean AddFd/ModFd/DelFd contract.
func (e *Epoller) Add(fd int, events uint32) bool {
	ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
	return unix.EpollCtl(e.fd, unix.EPOLL_CTL_ADD, fd, &ev) == nil
}

// Mod updates fd's registered event mask.
func (e *Epoller) Mod(fd int, events uint32) bool {
	ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
	return unix.EpollCtl(e.fd, unix.EPOLL_CTL_MOD, fd, &ev) == nil
}

// Del unregisters fd.
func (e *Epoller) Del(fd int) bool {
	return unix.EpollCtl(e.fd, unix.EPOLL_CTL_DEL, fd, nil) == nil
}

// Wait blocks until at least one registered fd is ready, timeoutMs has
// elapsed, or an error occurs, then returns the number of ready events.
// timeoutMs < 0 blocks indefinitely, mirroring the original's default.
func (e *Epoller) Wait(timeoutMs int) (int, error) {
	n, err := unix.EpollWait(e.fd, e.events, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, errors.Wrap(err, "epoller: wait")
	}
	return n, nil
}

// EventFd returns the fd associated with the i'th ready event from the
// most recent Wait call.
func (e *Epoller) EventFd(i int) int { return int(e.events[i].Fd) }

// Events returns the event mask of the i'th ready event from the most
// recent Wait call.
func (e *Epoller) Events(i int) uint32 { return e.events[i].Events }

// Close releases the epoll instance.
func (e *Epoller) Close() error {
	return unix.Close(e.fd)
}
