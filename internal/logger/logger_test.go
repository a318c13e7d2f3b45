package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSyncWriteCreatesFileAndLine(t *testing.T) {
	dir := t.TempDir()
	l := &Logger{level: Info}
	if err := l.Init(Info, dir, ".log", 0); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer l.Close()

	l.Write(Info, "hello %s", "world")
	l.Flush()

	name := filepath.Join(dir, time.Now().Format("2006_01_02")+".log")
	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("ReadFile(%s) error = %v", name, err)
	}
	if !strings.Contains(string(data), "[info] : hello world") {
		t.Fatalf("log contents = %q, want substring %q", data, "[info] : hello world")
	}
}

func TestBelowLevelDropped(t *testing.T) {
	dir := t.TempDir()
	l := &Logger{level: Info}
	if err := l.Init(Warn, dir, ".log", 0); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer l.Close()

	l.Write(Debug, "should not appear")
	l.Write(Info, "also should not appear")
	l.Flush()

	name := filepath.Join(dir, time.Now().Format("2006_01_02")+".log")
	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("ReadFile(%s) error = %v", name, err)
	}
	if len(data) != 0 {
		t.Fatalf("log contents = %q, want empty", data)
	}
}

func TestAsyncModeDrainsOnClose(t *testing.T) {
	dir := t.TempDir()
	l := &Logger{level: Info}
	if err := l.Init(Info, dir, ".log", 8); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	for i := 0; i < 20; i++ {
		l.Write(Info, "line %d", i)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	name := filepath.Join(dir, time.Now().Format("2006_01_02")+".log")
	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("ReadFile(%s) error = %v", name, err)
	}
	for i := 0; i < 20; i++ {
		want := "line " + itoa(i)
		if !strings.Contains(string(data), want) {
			t.Fatalf("log missing %q", want)
		}
	}
}

func TestLineCountRotation(t *testing.T) {
	dir := t.TempDir()
	l := &Logger{level: Info}
	if err := l.Init(Info, dir, ".log", 0); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer l.Close()

	for i := 0; i < maxLines+5; i++ {
		l.Write(Info, "x")
	}
	l.Flush()

	rotated := l.fileNameLocked(time.Now(), 1)
	if _, err := os.Stat(rotated); err != nil {
		t.Fatalf("expected rotated file %s to exist: %v", rotated, err)
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func TestInstanceIsSingleton(t *testing.T) {
	a := Instance()
	b := Instance()
	if a != b {
		t.Fatal("Instance() returned different pointers across calls")
	}
}
