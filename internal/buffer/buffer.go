// Package buffer implements a growable byte store with independent read and
// write cursors, the way the original server's Buffer class backs both
// connection I/O and log-line formatting.
package buffer

import (
	"golang.org/x/sys/unix"

	"github.com/valyala/bytebufferpool"
)

// overflowSize bounds the scratch chunk used by ReadFd so a single syscall
// never under-fills the buffer when more bytes are waiting on the socket
// than currently fit in the tail.
const overflowSize = 64 * 1024

// Buffer is a byte store with invariant read <= write <= cap(store).
// The readable region is store[read:write]; the writable region is
// store[write:cap(store)].
type Buffer struct {
	pooled *bytebufferpool.ByteBuffer
	store  []byte
	read   int
	write  int
}

// New returns a Buffer with at least initCap bytes of backing storage,
// drawn from a shared pool.
func New(initCap int) *Buffer {
	pooled := bytebufferpool.Get()
	if cap(pooled.B) < initCap {
		pooled.B = append(pooled.B[:0], make([]byte, initCap)...)
	}
	return &Buffer{
		pooled: pooled,
		store:  pooled.B[:cap(pooled.B)],
	}
}

// Release returns the backing storage to the shared pool. The Buffer must
// not be used afterwards.
func (b *Buffer) Release() {
	b.pooled.B = b.pooled.B[:0]
	bytebufferpool.Put(b.pooled)
	b.pooled = nil
	b.store = nil
	b.read, b.write = 0, 0
}

// ReadableBytes returns the number of unread bytes.
func (b *Buffer) ReadableBytes() int { return b.write - b.read }

// WritableBytes returns the number of bytes that can be written without
// growing the buffer.
func (b *Buffer) WritableBytes() int { return len(b.store) - b.write }

// Peek returns the readable region without consuming it.
func (b *Buffer) Peek() []byte { return b.store[b.read:b.write] }

// BeginWrite returns the writable region for callers that want to write
// directly into the buffer before calling HasWritten.
func (b *Buffer) BeginWrite() []byte { return b.store[b.write:] }

// HasWritten advances the write cursor after a direct write into the slice
// returned by BeginWrite.
func (b *Buffer) HasWritten(n int) { b.write += n }

// Retrieve consumes n bytes from the readable region.
func (b *Buffer) Retrieve(n int) {
	if n > b.ReadableBytes() {
		n = b.ReadableBytes()
	}
	b.read += n
	if b.read == b.write {
		b.read, b.write = 0, 0
	}
}

// RetrieveAll consumes the entire readable region.
func (b *Buffer) RetrieveAll() {
	b.read, b.write = 0, 0
}

// RetrieveAllToString consumes the entire readable region and returns it as
// an owned string.
func (b *Buffer) RetrieveAllToString() string {
	s := string(b.Peek())
	b.RetrieveAll()
	return s
}

// EnsureWritable grows the buffer so that at least n more bytes can be
// written. It first compacts the readable region to index 0, then resizes
// only if compaction alone does not make enough room.
func (b *Buffer) EnsureWritable(n int) {
	if b.WritableBytes() >= n {
		return
	}
	if b.read > 0 {
		copy(b.store, b.store[b.read:b.write])
		b.write -= b.read
		b.read = 0
	}
	if b.WritableBytes() >= n {
		return
	}
	grown := make([]byte, b.write+n)
	copy(grown, b.store[:b.write])
	b.store = grown
}

// Append writes data into the buffer, growing it if necessary.
func (b *Buffer) Append(data []byte) {
	if len(data) == 0 {
		return
	}
	b.EnsureWritable(len(data))
	b.write += copy(b.store[b.write:], data)
}

// AppendString writes s into the buffer, growing it if necessary.
func (b *Buffer) AppendString(s string) {
	b.Append([]byte(s))
}

// ReadFd reads available bytes from fd into the tail of the buffer. A
// stack-local overflow chunk is included in the same vectored read so a
// single syscall never under-fills the buffer when the kernel has more
// bytes queued than currently fit in the writable region.
func (b *Buffer) ReadFd(fd int) (int, error) {
	var overflow [overflowSize]byte
	writable := b.store[b.write:]

	iov := make([][]byte, 0, 2)
	iov = append(iov, writable)
	iov = append(iov, overflow[:])

	n, err := unix.Readv(fd, iov)
	if n <= 0 {
		return n, err
	}

	if n <= len(writable) {
		b.write += n
	} else {
		b.write = len(b.store)
		b.Append(overflow[:n-len(writable)])
	}
	return n, err
}
