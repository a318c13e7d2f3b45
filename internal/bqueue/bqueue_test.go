package bqueue

import (
	"sync"
	"testing"
	"time"
)

func TestPushPopOrder(t *testing.T) {
	q := New[int](4)
	for i := 0; i < 4; i++ {
		if !q.PushBack(i) {
			t.Fatalf("PushBack(%d) = false", i)
		}
	}
	for i := 0; i < 4; i++ {
		v, ok := q.Pop()
		if !ok || v != i {
			t.Fatalf("Pop() = (%d, %v), want (%d, true)", v, ok, i)
		}
	}
}

func TestProducerBlocksWhenFull(t *testing.T) {
	q := New[int](1)
	q.PushBack(1)

	done := make(chan struct{})
	go func() {
		q.PushBack(2)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("PushBack returned before consumer made room")
	case <-time.After(30 * time.Millisecond):
	}

	q.Pop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("PushBack never unblocked after Pop")
	}
}

func TestCloseUnblocksBothSides(t *testing.T) {
	// The producer waits on a full queue and the consumer on an empty one,
	// so both are still blocked when Close runs.
	full := New[int](1)
	full.PushBack(1)
	empty := New[int](1)

	producerDone := make(chan bool)
	go func() {
		producerDone <- full.PushBack(2)
	}()

	consumerDone := make(chan bool)
	go func() {
		_, ok := empty.Pop()
		consumerDone <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	full.Close()
	empty.Close()

	if ok := <-producerDone; ok {
		t.Fatal("PushBack on closed queue returned true")
	}
	if ok := <-consumerDone; ok {
		t.Fatal("Pop on empty, closed queue returned ok=true")
	}
}

func TestConcurrentProducersConsumers(t *testing.T) {
	q := New[int](8)
	const n = 500

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			q.PushBack(i)
		}
	}()

	sum := 0
	for i := 0; i < n; i++ {
		v, ok := q.Pop()
		if !ok {
			t.Fatalf("Pop() returned ok=false before %d items drained", n)
		}
		sum += v
	}
	wg.Wait()

	want := n * (n - 1) / 2
	if sum != want {
		t.Fatalf("sum of popped items = %d, want %d", sum, want)
	}
}
