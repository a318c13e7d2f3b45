package server

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/pkg/errors"

	"github.com/kfcemployee/goserver/internal/conn"
	"github.com/kfcemployee/goserver/internal/dbpool"
	"github.com/kfcemployee/goserver/internal/epoller"
	"github.com/kfcemployee/goserver/internal/httpx"
	"github.com/kfcemployee/goserver/internal/logger"
	"github.com/kfcemployee/goserver/internal/timer"
	"github.com/kfcemployee/goserver/internal/workerpool"
)

// Server is the reactor: it owns the readiness multiplexer, the timer,
// the worker pool, the database pool, and the live connection table, the
// Go analogue of the original's WebServer.
type Server struct {
	cfg Config

	listenFd     int
	listenEvents uint32
	connEvents   uint32

	ep    *epoller.Epoller
	clock *timer.Heap
	pool  *workerpool.Pool
	db    *dbpool.Pool

	parser  *httpx.Parser
	builder *httpx.Builder

	mu     sync.Mutex
	conns  map[int]*conn.Conn
	closed bool
}

// New constructs every collaborator the reactor needs and registers the
// listening socket, but does not start the event loop; call Run for that.
// Fatal errors are limited to listener creation, bind, listen, and initial
// multiplexer registration, per spec.md §7 — anything else here returns
// an error rather than a non-fatal log line because it happens before the
// server can serve any traffic at all.
func New(cfg Config) (*Server, error) {
	if cfg.OpenLog {
		if err := logger.Instance().Init(logger.Level(cfg.LogLevel), "./log", ".log", cfg.LogQueueSize); err != nil {
			return nil, errors.Wrap(err, "server: init logger")
		}
	}

	db, err := dbpool.Open(dbpool.Config{
		Host:     cfg.SQLHost,
		Port:     cfg.SQLPort,
		User:     cfg.SQLUser,
		Password: cfg.SQLPassword,
		DBName:   cfg.DBName,
		PoolSize: cfg.ConnPoolSize,
	})
	if err != nil {
		return nil, errors.Wrap(err, "server: open db pool")
	}

	pool, err := workerpool.New(cfg.ThreadPoolSize)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "server: new worker pool")
	}

	ep, err := epoller.New(1024)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "server: new epoller")
	}

	fd, err := newListenerFd(cfg.Port)
	if err != nil {
		db.Close()
		ep.Close()
		return nil, err
	}

	listenEvents, connEvents := cfg.eventMasks()
	if !ep.Add(fd, listenEvents|unix.EPOLLIN) {
		db.Close()
		ep.Close()
		unix.Close(fd)
		return nil, errors.New("server: register listener with epoller")
	}

	srv := &Server{
		cfg:          cfg,
		listenFd:     fd,
		listenEvents: listenEvents,
		connEvents:   connEvents,
		ep:           ep,
		clock:        timer.New(),
		pool:         pool,
		db:           db,
		conns:        make(map[int]*conn.Conn),
	}

	srv.parser = httpx.NewParser(newVerifier(db))
	srv.builder = httpx.NewBuilder(cfg.SrcDir)

	logger.Infof("==========server init==========")
	logger.Infof("port: %d, OpenLinger: false", cfg.Port)
	logger.Infof("Listen Mode: %s, OpenConn Mode: %s",
		trigModeLabel(cfg.isListenerEdgeTriggered()), trigModeLabel(cfg.isConnEdgeTriggered()))
	logger.Infof("LogSys Level: %d", cfg.LogLevel)
	logger.Infof("srcDir: %s", cfg.SrcDir)
	logger.Infof("SqlConnPool num: %d, ThreadPool num: %d", cfg.ConnPoolSize, cfg.ThreadPoolSize)

	return srv, nil
}

func trigModeLabel(edgeTriggered bool) string {
	if edgeTriggered {
		return "ET"
	}
	return "LT"
}

// Run drives the reactor loop until Close is called.
func (s *Server) Run() error {
	for {
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return nil
		}

		timeout := s.clock.GetNextTick()
		n, err := s.ep.Wait(timeoutMsFrom(timeout))
		if err != nil {
			return errors.Wrap(err, "server: epoll wait")
		}

		for i := 0; i < n; i++ {
			fd := s.ep.EventFd(i)
			events := s.ep.Events(i)

			switch {
			case fd == s.listenFd:
				s.dealListen()
			case events&(unix.EPOLLRDHUP|unix.EPOLLHUP|unix.EPOLLERR) != 0:
				s.closeConn(fd)
			case events&unix.EPOLLIN != 0:
				s.dealRead(fd)
			case events&unix.EPOLLOUT != 0:
				s.dealWrite(fd)
			}
		}
	}
}

func timeoutMsFrom(d time.Duration) int {
	if d < 0 {
		return -1
	}
	return int(d / time.Millisecond)
}

// dealListen accepts repeatedly while the listener is edge-triggered
// (until EAGAIN), else accepts once, matching the original's DealListen_.
func (s *Server) dealListen() {
	for {
		fd, _, err := unix.Accept(s.listenFd)
		if err != nil {
			return
		}

		if int(conn.UserCount()) >= MaxFD {
			sendBusy(fd)
			unix.Close(fd)
			if !s.cfg.isListenerEdgeTriggered() {
				return
			}
			continue
		}

		unix.SetNonblock(fd, true)
		c := conn.New(fd, nil, s.cfg.isConnEdgeTriggered())

		s.mu.Lock()
		s.conns[fd] = c
		s.mu.Unlock()

		if !s.ep.Add(fd, s.connEvents|unix.EPOLLIN) {
			logger.Warnf("server: register fd %d with epoller failed", fd)
		}
		s.clock.Add(fd, s.cfg.timeout(), func() { s.closeConn(fd) })

		if !s.cfg.isListenerEdgeTriggered() {
			return
		}
	}
}

func sendBusy(fd int) {
	unix.Write(fd, []byte("HTTP/1.1 400 Bad Request\r\n\r\nServer busy!"))
}

func (s *Server) dealRead(fd int) {
	s.clock.Adjust(fd, s.cfg.timeout())
	s.pool.AddTask(func() { s.onRead(fd) })
}

func (s *Server) dealWrite(fd int) {
	s.clock.Adjust(fd, s.cfg.timeout())
	s.pool.AddTask(func() { s.onWrite(fd) })
}

func (s *Server) getConn(fd int) *conn.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns[fd]
}

func (s *Server) onRead(fd int) {
	c := s.getConn(fd)
	if c == nil || !c.IsOpen() {
		return
	}
	if _, err := c.Read(); err != nil {
		s.closeConn(fd)
		return
	}
	s.onProcess(fd, c)
}

func (s *Server) onProcess(fd int, c *conn.Conn) {
	hasOutput, err := c.Process(s.parser, s.builder)
	if err != nil {
		s.closeConn(fd)
		return
	}
	if hasOutput {
		s.ep.Mod(fd, s.connEvents|unix.EPOLLOUT)
	} else {
		s.ep.Mod(fd, s.connEvents|unix.EPOLLIN)
	}
}

func (s *Server) onWrite(fd int) {
	c := s.getConn(fd)
	if c == nil || !c.IsOpen() {
		return
	}

	done, wouldBlock, err := c.Write()
	if err != nil {
		s.closeConn(fd)
		return
	}
	if wouldBlock {
		s.ep.Mod(fd, s.connEvents|unix.EPOLLOUT)
		return
	}
	if done && c.Req.IsKeepAlive() {
		s.ep.Mod(fd, s.connEvents|unix.EPOLLIN)
		return
	}
	s.closeConn(fd)
}

// closeConn removes fd from the multiplexer and timer, closes the
// connection, and drops it from the user table. Safe to call more than
// once or concurrently from a worker and the reactor, since Conn.Close is
// idempotent and the map/timer mutation is guarded by s.mu.
func (s *Server) closeConn(fd int) {
	s.mu.Lock()
	c, ok := s.conns[fd]
	if ok {
		delete(s.conns, fd)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	s.ep.Del(fd)
	s.clock.Remove(fd)
	c.Close()
	c.ReleaseBuffers()
}

// Close stops the reactor loop, joins the worker pool, and releases every
// collaborator: epoller, database pool, logger, and any still-open
// connections.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	fds := make([]int, 0, len(s.conns))
	for fd := range s.conns {
		fds = append(fds, fd)
	}
	s.mu.Unlock()

	for _, fd := range fds {
		s.closeConn(fd)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	poolErr := s.pool.Close(ctx)

	s.ep.Del(s.listenFd)
	unix.Close(s.listenFd)
	epErr := s.ep.Close()
	dbErr := s.db.Close()

	var logErr error
	if s.cfg.OpenLog {
		logErr = logger.Instance().Close()
	}

	for _, err := range []error{poolErr, epErr, dbErr, logErr} {
		if err != nil {
			return err
		}
	}
	return nil
}
