// Package logger implements the async/sync rotating file logger described
// by the original server's Log class: a process-wide singleton with a
// lazy-initialized instance, day- and line-count-based rotation, and an
// optional bounded async queue feeding a dedicated writer goroutine.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/kfcemployee/goserver/internal/bqueue"
	"github.com/kfcemployee/goserver/internal/buffer"
)

// Level mirrors the original's four-level scheme.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) tag() string {
	switch l {
	case Debug:
		return "[debug]"
	case Info:
		return "[info] "
	case Warn:
		return "[warn] "
	case Error:
		return "[error]"
	default:
		return "[info] "
	}
}

// maxLines is the line count at which a same-day log file rotates to a
// "-N" suffixed sibling, matching the original's MAX_LINES.
const maxLines = 50000

// Logger is a rotating file sink, optionally fed through a bounded async
// queue by a dedicated writer goroutine.
type Logger struct {
	mu    sync.Mutex
	file  *os.File
	async bool
	queue *bqueue.Queue[string]

	dir      string
	suffix   string
	level    Level
	day      int
	lineNo   int
	closedCh chan struct{}
	wg       sync.WaitGroup
}

var (
	instance *Logger
	initOnce sync.Once
)

// Instance returns the process-wide Logger, creating it at most once with
// an Info threshold and no open file until Init is called. Init calls reopen
// the file in place rather than constructing a new singleton, mirroring
// the original's "lazy singleton with a reinitializable init" contract.
func Instance() *Logger {
	initOnce.Do(func() {
		instance = &Logger{level: Info}
	})
	return instance
}

// Init opens (or reopens) the current day's log file under dir, creating
// dir if needed. If queueCapacity > 0 the logger runs in async mode: writes
// are queued and drained by a dedicated goroutine. Otherwise writes happen
// synchronously under the logger's mutex.
func (l *Logger) Init(level Level, dir, suffix string, queueCapacity int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.level = level
	l.dir = dir
	l.suffix = suffix

	if queueCapacity > 0 && !l.async {
		l.async = true
		l.queue = bqueue.New[string](queueCapacity)
		l.closedCh = make(chan struct{})
		l.wg.Add(1)
		go l.writeLoop()
	}

	now := time.Now()
	l.day = now.Day()
	l.lineNo = 0
	return l.openLocked(l.fileNameLocked(now, 0))
}

func (l *Logger) fileNameLocked(t time.Time, rotation int) string {
	stamp := t.Format("2006_01_02")
	if rotation > 0 {
		return filepath.Join(l.dir, fmt.Sprintf("%s-%d%s", stamp, rotation, l.suffix))
	}
	return filepath.Join(l.dir, stamp+l.suffix)
}

func (l *Logger) openLocked(name string) error {
	if l.file != nil {
		l.file.Sync()
		l.file.Close()
	}
	if err := os.MkdirAll(l.dir, 0o777); err != nil {
		return errors.Wrap(err, "logger: create log dir")
	}
	f, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "logger: open %s", name)
	}
	l.file = f
	return nil
}

// Write formats and emits one log line if level is at or above the
// logger's configured threshold. A failed write is dropped, never
// propagated, per the original's "logger never fails the caller" policy.
func (l *Logger) Write(level Level, format string, args ...any) {
	l.mu.Lock()
	if level < l.level {
		l.mu.Unlock()
		return
	}

	now := time.Now()
	l.rotateIfNeededLocked(now)
	l.lineNo++

	line := buffer.New(256)
	line.AppendString(now.Format("2006-01-02 15:04:05.000000"))
	line.AppendString(" ")
	line.AppendString(level.tag())
	line.AppendString(": ")
	line.AppendString(fmt.Sprintf(format, args...))
	line.AppendString("\n")
	text := line.RetrieveAllToString()
	line.Release()

	if l.async && l.queue != nil && !l.queue.Full() {
		l.mu.Unlock()
		l.queue.PushBack(text)
		return
	}
	l.writeLocked(text)
	l.mu.Unlock()
}

func (l *Logger) writeLocked(text string) {
	if l.file == nil {
		return
	}
	l.file.WriteString(text)
}

func (l *Logger) rotateIfNeededLocked(now time.Time) {
	dayChanged := l.day != now.Day()
	lineOverflow := l.lineNo > 0 && l.lineNo%maxLines == 0
	if !dayChanged && !lineOverflow {
		return
	}

	var name string
	if dayChanged {
		l.day = now.Day()
		l.lineNo = 0
		name = l.fileNameLocked(now, 0)
	} else {
		name = l.fileNameLocked(now, l.lineNo/maxLines)
	}
	l.openLocked(name)
}

func (l *Logger) writeLoop() {
	defer l.wg.Done()
	for {
		text, ok := l.queue.Pop()
		if !ok {
			return
		}
		l.mu.Lock()
		l.writeLocked(text)
		l.mu.Unlock()
	}
}

// Flush wakes the async writer, or flushes the file handle directly in
// sync mode.
func (l *Logger) Flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.async && l.queue != nil {
		l.queue.Flush()
		return
	}
	if l.file != nil {
		l.file.Sync()
	}
}

// Close drains the async queue, joins the writer goroutine, and closes the
// file. Safe to call once at process shutdown.
func (l *Logger) Close() error {
	l.mu.Lock()
	async := l.async
	queue := l.queue
	l.mu.Unlock()

	if async && queue != nil {
		queue.Close()
		l.wg.Wait()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	l.file.Sync()
	err := l.file.Close()
	l.file = nil
	return err
}

// Level returns the logger's current threshold.
func (l *Logger) Level() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// SetLevel updates the logger's threshold.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Debugf, Infof, Warnf, Errorf log through the process-wide Instance.
func Debugf(format string, args ...any) { Instance().Write(Debug, format, args...) }
func Infof(format string, args ...any)  { Instance().Write(Info, format, args...) }
func Warnf(format string, args ...any)  { Instance().Write(Warn, format, args...) }
func Errorf(format string, args ...any) { Instance().Write(Error, format, args...) }
