// Package server implements the reactor main loop: one thread owns the
// readiness multiplexer and dispatches accept/read/write/close work to a
// bounded worker pool, timing out idle connections via a min-heap timer.
package server

import (
	"time"

	"golang.org/x/sys/unix"
)

// MaxFD caps the number of simultaneously open connections, the Go
// analogue of the original's MAX_FD.
const MaxFD = 65536

const backlog = 8

// Config collects every constructor argument the reactor needs, matching
// spec.md §6's External Interfaces list plus the database host this
// server additionally exposes as a CLI flag.
type Config struct {
	Port      int
	TrigMode  int // 0..3: edge-trigger on {none, connections, listener, both}
	TimeoutMs int

	SQLHost     string
	SQLPort     int
	SQLUser     string
	SQLPassword string
	DBName      string
	ConnPoolSize int

	ThreadPoolSize int

	OpenLog      bool
	LogLevel     int
	LogQueueSize int

	SrcDir string
}

// eventMasks resolves TrigMode into the listener and per-connection event
// masks, always including RDHUP, and always including ONESHOT on the
// per-connection mask so re-arming after dispatch is explicit.
func (c *Config) eventMasks() (listenEvents, connEvents uint32) {
	connEvents = unix.EPOLLRDHUP | unix.EPOLLONESHOT
	listenEvents = unix.EPOLLRDHUP

	switch c.TrigMode {
	case 1:
		connEvents |= unix.EPOLLET
	case 2:
		listenEvents |= unix.EPOLLET
	case 3:
		connEvents |= unix.EPOLLET
		listenEvents |= unix.EPOLLET
	}
	return listenEvents, connEvents
}

func (c *Config) timeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

func (c *Config) isListenerEdgeTriggered() bool {
	return c.TrigMode == 2 || c.TrigMode == 3
}

func (c *Config) isConnEdgeTriggered() bool {
	return c.TrigMode == 1 || c.TrigMode == 3
}
