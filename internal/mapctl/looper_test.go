package mapctl

import (
	"sync/atomic"
	"testing"
)

func TestLooperRunsInOrder(t *testing.T) {
	l := newLooper("test")
	defer l.Close()

	var got []int
	for i := range 5 {
		l.Post(func() { got = append(got, i) })
	}
	l.Sync()

	for i, v := range got {
		if v != i {
			t.Fatalf("order = %v", got)
		}
	}
	if len(got) != 5 {
		t.Fatalf("ran %d jobs", len(got))
	}
}

func TestLooperSurvivesPanic(t *testing.T) {
	l := newLooper("test")
	defer l.Close()

	var ran atomic.Bool
	l.Post(func() { panic("boom") })
	l.Post(func() { ran.Store(true) })
	l.Sync()

	if !ran.Load() {
		t.Fatal("job after panic did not run")
	}
}

func TestLooperCloseDrains(t *testing.T) {
	l := newLooper("test")

	var n atomic.Int32
	for range 10 {
		l.Post(func() { n.Add(1) })
	}
	l.Close()

	if n.Load() != 10 {
		t.Fatalf("ran %d of 10 jobs", n.Load())
	}
	if l.Post(func() {}) {
		t.Fatal("Post accepted after Close")
	}
	l.Sync()
}

func TestLooperShutdownRejectsWithoutWaiting(t *testing.T) {
	l := newLooper("test")

	release := make(chan struct{})
	var ran atomic.Int32
	l.Post(func() { <-release })
	l.Post(func() { ran.Add(1) })

	l.Shutdown()
	if l.Post(func() { ran.Add(100) }) {
		t.Fatal("Post accepted after Shutdown")
	}

	close(release)
	l.Close()
	if ran.Load() != 1 {
		t.Fatalf("ran = %d, want the queued job only", ran.Load())
	}
}
