// Package conn implements the per-connection state the original server's
// HttpConn owns: the socket fd, its two buffers, the request parser and
// response builder state, and the two-element iovec used for scatter-
// gather writes of headers plus an mmap'd file payload.
package conn

import (
	"net"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/pkg/errors"

	"github.com/kfcemployee/goserver/internal/buffer"
	"github.com/kfcemployee/goserver/internal/httpx"
)

// highWaterMark is the pending-bytes threshold above which Write keeps
// looping even in level-triggered mode, matching the original's 10240.
const highWaterMark = 10 * 1024

// userCount tracks live connections process-wide, the Go analogue of the
// original's static atomic HttpConn::userCount.
var userCount atomic.Int32

// UserCount returns the number of currently open connections.
func UserCount() int32 { return userCount.Load() }

// Conn is one accepted client connection.
type Conn struct {
	Fd        int
	Addr      net.Addr
	ReadBuf   *buffer.Buffer
	WriteBuf  *buffer.Buffer
	Req       httpx.Request
	mapped    *httpx.MappedFile
	isET      bool
	closed    bool
	iov       [2][]byte
	iovCnt    int
	toWrite   int
}

// New wraps fd as an open connection, bumping the process-wide user
// count, the Go analogue of HttpConn::init.
func New(fd int, addr net.Addr, edgeTriggered bool) *Conn {
	userCount.Add(1)
	return &Conn{
		Fd:       fd,
		Addr:     addr,
		ReadBuf:  buffer.New(4096),
		WriteBuf: buffer.New(4096),
		isET:     edgeTriggered,
	}
}

// IsOpen reports whether Close has not yet run.
func (c *Conn) IsOpen() bool { return !c.closed }

// ToWriteBytes returns how many response bytes remain queued across both
// iovec entries.
func (c *Conn) ToWriteBytes() int { return c.toWrite }

// Read drains the socket into ReadBuf. In edge-triggered mode it loops
// until the kernel reports EAGAIN so the socket is fully drained before
// the fd is re-armed; in level-triggered mode a single read is enough.
func (c *Conn) Read() (int, error) {
	total := 0
	for {
		n, err := c.ReadBuf.ReadFd(c.Fd)
		if n > 0 {
			total += n
		}
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return total, nil
			}
			return total, errors.Wrap(err, "conn: read")
		}
		if n <= 0 {
			return total, errIfZero(n)
		}
		if !c.isET {
			return total, nil
		}
	}
}

func errIfZero(n int) error {
	if n == 0 {
		return errors.New("conn: peer closed")
	}
	return nil
}

// Process drives the parser over ReadBuf and, once a full request is
// available, asks the response builder to assemble a reply into
// WriteBuf plus the optional mmap'd file region. It reports whether there
// is output ready to write.
func (c *Conn) Process(parser *httpx.Parser, builder *httpx.Builder) (bool, error) {
	if c.ReadBuf.ReadableBytes() == 0 {
		return false, nil
	}

	done, err := parser.Parse(c.ReadBuf, &c.Req)
	if err != nil {
		return c.buildErrorResponse(builder)
	}
	if !done {
		return false, nil
	}

	// The fd is only re-armed for read once the previous response has
	// fully drained (one-shot mode plus the write-then-rearm ordering in
	// server.Server), so it is always safe to reclaim the write buffer
	// here before assembling the next response.
	if c.mapped != nil {
		c.mapped.Unmap()
		c.mapped = nil
	}
	c.WriteBuf.RetrieveAll()

	mapped, buildErr := builder.Build(&c.Req, c.WriteBuf)
	if buildErr != nil {
		return false, buildErr
	}
	c.mapped = mapped
	c.arm()
	return true, nil
}

// buildErrorResponse sends a real HTTP 400 response instead of dropping
// the connection outright, matching the original's HttpConn::process
// (response_.Init(srcDir, path, false, 400) on a parse failure) rather
// than treating a malformed request as a fatal connection error. The
// connection is never kept alive after a 400: the client's framing is no
// longer trusted once a request fails to parse.
func (c *Conn) buildErrorResponse(builder *httpx.Builder) (bool, error) {
	path := c.Req.Path
	c.Req = httpx.Request{}

	if c.mapped != nil {
		c.mapped.Unmap()
		c.mapped = nil
	}
	c.WriteBuf.RetrieveAll()

	mapped, buildErr := builder.BuildStatus(path, false, 400, c.WriteBuf)
	if buildErr != nil {
		return false, buildErr
	}
	c.mapped = mapped
	c.arm()
	return true, nil
}

// arm loads iov[0] with the pending header bytes and iov[1] with the
// mmap'd file region, if any, matching HttpConn::process's iovec setup.
func (c *Conn) arm() {
	head := c.WriteBuf.Peek()
	c.iov[0] = nil
	c.iovCnt = 0
	c.toWrite = 0

	if len(head) > 0 {
		c.iov[0] = head
		c.iovCnt = 1
		c.toWrite += len(head)
	}
	if c.mapped != nil && c.mapped.Len() > 0 {
		c.iov[1] = c.mapped.Bytes()
		c.iovCnt = 2
		c.toWrite += len(c.iov[1])
	}
}

// Write issues a vectored write of the pending iovec, advancing bases and
// lengths on partial progress. The loop continues while edge-triggered or
// while more than highWaterMark bytes remain, matching HttpConn::write.
func (c *Conn) Write() (done bool, wouldBlock bool, err error) {
	for {
		if c.toWrite == 0 {
			return true, false, nil
		}

		n, werr := unix.Writev(c.Fd, c.iov[:c.iovCnt])
		if werr != nil {
			if werr == unix.EAGAIN || werr == unix.EWOULDBLOCK {
				return false, true, nil
			}
			return false, false, errors.Wrap(werr, "conn: write")
		}
		if n <= 0 {
			return false, false, errors.New("conn: write returned 0")
		}

		c.toWrite -= n
		c.advanceIov(n)

		if c.toWrite == 0 {
			return true, false, nil
		}
		if !c.isET && c.toWrite <= highWaterMark {
			return false, false, nil
		}
	}
}

func (c *Conn) advanceIov(n int) {
	for n > 0 && c.iovCnt > 0 {
		if n < len(c.iov[0]) {
			c.iov[0] = c.iov[0][n:]
			return
		}
		n -= len(c.iov[0])
		c.iov[0] = c.iov[1]
		c.iov[1] = nil
		c.iovCnt--
	}
}

// Close unmaps the response file (if any), decrements the process-wide
// user count, and closes the socket. Guarded by the closed flag so repeated
// calls are safe, matching HttpConn::Close's idempotence invariant.
func (c *Conn) Close() {
	if c.closed {
		return
	}
	c.closed = true
	if c.mapped != nil {
		c.mapped.Unmap()
		c.mapped = nil
	}
	unix.Close(c.Fd)
	userCount.Add(-1)
}

// ReleaseBuffers returns both backing byte stores to the pool. Call only
// after Close, once the connection is certain not to be reused.
func (c *Conn) ReleaseBuffers() {
	c.ReadBuf.Release()
	c.WriteBuf.Release()
}
