package mapctl

import (
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog/log"
)

// looper runs posted jobs one at a time on its own goroutine. The render
// looper owns every native call except handle allocation; the UI looper owns
// every listener invocation.
type looper struct {
	name string

	mu     sync.Mutex
	queue  []func()
	closed bool

	wake chan struct{}
	done chan struct{}
}

func newLooper(name string) *looper {
	l := &looper{
		name: name,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go l.run()
	return l
}

// Post enqueues fn. It returns false once the looper is closed.
func (l *looper) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Sync blocks until every job posted before it has run.
// Must not be called from the looper itself.
func (l *looper) Sync() {
	barrier := make(chan struct{})
	if !l.Post(func() { close(barrier) }) {
		<-l.done
		return
	}
	<-barrier
}

// Shutdown rejects new jobs without waiting; queued jobs still run.
func (l *looper) Shutdown() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Close rejects new jobs, drains the queue and waits for the goroutine to exit.
func (l *looper) Close() {
	l.Shutdown()
	<-l.done
}

func (l *looper) run() {
	defer close(l.done)

	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			closed := l.closed
			l.mu.Unlock()
			if closed {
				return
			}
			<-l.wake
			continue
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.exec(fn)
	}
}

func (l *looper) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("looper", l.name).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("Looper job panicked")
		}
	}()
	fn()
}
