package debounce

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncerCoalesces(t *testing.T) {
	d := New(20 * time.Millisecond)

	var calls int32
	for i := 0; i < 5; i++ {
		d.Trigger(func() { atomic.AddInt32(&calls, 1) })
		time.Sleep(2 * time.Millisecond)
	}

	time.Sleep(60 * time.Millisecond)
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("debounced callback ran %d times, want 1", got)
	}
}

func TestDebouncerCancel(t *testing.T) {
	d := New(10 * time.Millisecond)

	var calls int32
	d.Trigger(func() { atomic.AddInt32(&calls, 1) })
	d.Cancel()

	time.Sleep(40 * time.Millisecond)
	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Errorf("cancelled callback ran %d times, want 0", got)
	}
}

func TestDebouncerFlush(t *testing.T) {
	d := New(time.Hour)

	var pending, flushed int32
	d.Trigger(func() { atomic.AddInt32(&pending, 1) })
	d.Flush(func() { atomic.AddInt32(&flushed, 1) })

	if got := atomic.LoadInt32(&flushed); got != 1 {
		t.Errorf("flush ran %d times, want 1", got)
	}
	time.Sleep(20 * time.Millisecond)
	if got := atomic.LoadInt32(&pending); got != 0 {
		t.Errorf("pending callback ran %d times after flush, want 0", got)
	}
}
