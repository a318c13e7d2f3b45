package httpx

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/kfcemployee/goserver/internal/buffer"
)

// MappedFile is a read-only mmap'd region backing a response body. It
// must be released exactly once via Unmap.
type MappedFile struct {
	data []byte
}

// Bytes returns the mapped region.
func (m *MappedFile) Bytes() []byte {
	if m == nil {
		return nil
	}
	return m.data
}

// Len reports the mapped region's length, or 0 if m is nil.
func (m *MappedFile) Len() int {
	if m == nil {
		return 0
	}
	return len(m.data)
}

// Unmap releases the mapping. Safe to call on a nil MappedFile.
func (m *MappedFile) Unmap() error {
	if m == nil || m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data = nil
	return err
}

// Builder assembles HTTP responses by statting and mmapping files under
// SrcDir, the Go analogue of the original's HttpResponse::MakeResponse.
type Builder struct {
	SrcDir string
}

// NewBuilder returns a Builder serving files rooted at srcDir.
func NewBuilder(srcDir string) *Builder {
	return &Builder{SrcDir: srcDir}
}

// statusUnset mirrors the original's code_ == -1 sentinel: "no status has
// been forced on this response yet, let the file-stat outcome decide."
const statusUnset = 0

// Build resolves req.Path under b.SrcDir, writes the response's status
// line and headers into dst, and returns the mmap'd file payload (if any).
// On open/mmap failure it writes an inline HTML error body into dst
// instead and returns a nil MappedFile. Used once a request parsed fully;
// the status is always derived from the file-stat outcome (200/403/404).
func (b *Builder) Build(req *Request, dst *buffer.Buffer) (*MappedFile, error) {
	return b.build(req.Path, req.IsKeepAlive(), statusUnset, dst)
}

// BuildStatus forces status onto the response the way the original's
// response_.Init(srcDir, path, isKeepAlive, code) does: a file-stat
// failure still overrides to 404/403, but otherwise status is what gets
// sent rather than 200. Used for HTTP/1.1 Protocol errors detected before
// (or instead of) a usable request — a malformed request line or an
// oversized body — where spec.md's ParseMalformed policy requires a real
// 400 response rather than silently dropping the connection.
func (b *Builder) BuildStatus(path string, keepAlive bool, status int, dst *buffer.Buffer) (*MappedFile, error) {
	return b.build(path, keepAlive, status, dst)
}

func (b *Builder) build(path string, keepAlive bool, forced int, dst *buffer.Buffer) (*MappedFile, error) {
	var status int
	var fullPath string
	var info os.FileInfo
	// An empty path (a request that never got past the request line) has
	// no file to stat; statting SrcDir itself would wrongly report 404 as
	// a directory, masking whatever status the caller forced.
	if path != "" {
		status, fullPath, info = b.resolve(path)
	}
	if status == statusUnset {
		if forced != statusUnset {
			status = forced
		} else {
			status = 200
		}
	}

	if errPath, ok := errorPagePath[status]; ok {
		fullPath = filepath.Join(b.SrcDir, errPath)
		if fi, statErr := os.Stat(fullPath); statErr == nil {
			info = fi
		} else {
			info = nil
		}
	}

	reason, ok := statusReason[status]
	if !ok {
		status, reason = 400, statusReason[400]
	}

	dst.AppendString("HTTP/1.1 ")
	dst.AppendString(strconv.Itoa(status))
	dst.AppendString(" ")
	dst.AppendString(reason)
	dst.AppendString("\r\n")

	if keepAlive {
		dst.AppendString("Connection: keep-alive\r\n")
		dst.AppendString("keep-alive: max=6, timeout=120\r\n")
	} else {
		dst.AppendString("Connection: close\r\n")
	}
	dst.AppendString("Content-type: ")
	dst.AppendString(mimeFor(fullPath))
	dst.AppendString("\r\n")

	if info == nil {
		body := errorContent(status, reason)
		dst.AppendString("Content-length: ")
		dst.AppendString(strconv.Itoa(len(body)))
		dst.AppendString("\r\n\r\n")
		dst.AppendString(body)
		return nil, nil
	}

	mapped, err := mapFile(fullPath, info.Size())
	if err != nil {
		body := errorContent(status, reason)
		dst.AppendString("Content-length: ")
		dst.AppendString(strconv.Itoa(len(body)))
		dst.AppendString("\r\n\r\n")
		dst.AppendString(body)
		return nil, nil
	}

	dst.AppendString("Content-length: ")
	dst.AppendString(strconv.Itoa(int(info.Size())))
	dst.AppendString("\r\n\r\n")
	return mapped, nil
}

// resolve stats SrcDir+path and reports the status the response should
// carry: statusUnset means "no error found yet", 404/403 flag a specific
// failure.
func (b *Builder) resolve(path string) (status int, fullPath string, info os.FileInfo) {
	fullPath = filepath.Join(b.SrcDir, path)
	fi, err := os.Stat(fullPath)
	if err != nil || fi.IsDir() {
		return 404, fullPath, nil
	}
	if fi.Mode().Perm()&0o004 == 0 {
		return 403, fullPath, nil
	}
	return statusUnset, fullPath, fi
}

func mimeFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if mime, ok := mimeBySuffix[ext]; ok {
		return mime
	}
	return defaultMime
}

func mapFile(path string, size int64) (*MappedFile, error) {
	if size == 0 {
		return &MappedFile{data: []byte{}}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}
	return &MappedFile{data: data}, nil
}
