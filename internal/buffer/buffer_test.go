package buffer

import (
	"bytes"
	"testing"
)

func TestAppendAndPeek(t *testing.T) {
	b := New(4)
	defer b.Release()

	b.AppendString("hello")
	if got := string(b.Peek()); got != "hello" {
		t.Fatalf("Peek() = %q, want %q", got, "hello")
	}
	if b.ReadableBytes() != 5 {
		t.Fatalf("ReadableBytes() = %d, want 5", b.ReadableBytes())
	}
}

func TestRetrieveThenAppendCompacts(t *testing.T) {
	b := New(8)
	defer b.Release()

	b.AppendString("abcdefgh")
	b.Retrieve(4)
	if got := string(b.Peek()); got != "efgh" {
		t.Fatalf("Peek() = %q, want %q", got, "efgh")
	}

	b.AppendString("ijkl")
	if got := string(b.Peek()); got != "efghijkl" {
		t.Fatalf("Peek() after compacting append = %q, want %q", got, "efghijkl")
	}
}

func TestRetrieveAllResetsCursors(t *testing.T) {
	b := New(4)
	defer b.Release()

	b.AppendString("data")
	if got := b.RetrieveAllToString(); got != "data" {
		t.Fatalf("RetrieveAllToString() = %q, want %q", got, "data")
	}
	if b.ReadableBytes() != 0 {
		t.Fatalf("ReadableBytes() = %d, want 0", b.ReadableBytes())
	}
}

func TestInvariantsUnderAppendRetrieveSequence(t *testing.T) {
	b := New(2)
	defer b.Release()

	var want bytes.Buffer
	chunks := []string{"a", "bb", "ccc", "d", "eeeeeeee", "f"}
	for i, c := range chunks {
		b.AppendString(c)
		want.WriteString(c)

		if b.ReadableBytes()+b.WritableBytes() > len(b.store) {
			t.Fatalf("step %d: readable+writable exceeds capacity", i)
		}
		if !bytes.Equal(b.Peek(), want.Bytes()) {
			t.Fatalf("step %d: Peek() = %q, want %q", i, b.Peek(), want.Bytes())
		}

		if i%2 == 1 {
			n := want.Len() / 2
			b.Retrieve(n)
			want.Next(n)
		}
	}
}

func TestRetrieveMoreThanReadableIsClamped(t *testing.T) {
	b := New(4)
	defer b.Release()

	b.AppendString("ab")
	b.Retrieve(100)
	if b.ReadableBytes() != 0 {
		t.Fatalf("ReadableBytes() = %d, want 0", b.ReadableBytes())
	}
}

func BenchmarkAppendRetrieve(b *testing.B) {
	buf := New(4096)
	defer buf.Release()
	payload := bytes.Repeat([]byte("x"), 512)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Append(payload)
		buf.Retrieve(len(payload))
	}
}
