package driver

import (
	"sync"
	"testing"
	"time"
)

func TestLatchWaitReturnsImmediatelyAtZero(t *testing.T) {
	l := newLatch(0)
	done := make(chan struct{})
	go func() {
		l.wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("wait on a zero-initialized latch did not return")
	}
}

func TestLatchWaitBlocksUntilDrained(t *testing.T) {
	l := newLatch(3)
	var wg sync.WaitGroup
	wg.Add(1)
	released := make(chan struct{})
	go func() {
		defer wg.Done()
		l.wait()
		close(released)
	}()

	select {
	case <-released:
		t.Fatal("wait returned before the latch drained")
	case <-time.After(20 * time.Millisecond):
	}

	l.dec()
	l.dec()
	select {
	case <-released:
		t.Fatal("wait returned before the latch drained")
	case <-time.After(20 * time.Millisecond):
	}

	l.dec()
	wg.Wait()
}

func TestLatchDecPastZeroPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic decrementing past zero")
		}
	}()
	l := newLatch(0)
	l.dec()
}
