// Package eventloop is a cooperative, single-threaded task loop: tasks
// posted from any goroutine run one at a time, in order, on whichever
// goroutine drains the loop.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	hclog "github.com/hashicorp/go-hclog"

	"github.com/snailos/snail/internal/log"
)

// ErrAlreadyRunning is returned when a second goroutine tries to drain the loop.
var ErrAlreadyRunning = errors.New("event loop already running")

// UnhandledError carries a panic that escaped a task.
type UnhandledError struct {
	Value any
	Stack []byte
}

func (e *UnhandledError) Error() string {
	return fmt.Sprintf("unhandled panic: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *UnhandledError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// Loop is a FIFO task queue.
type Loop struct {
	mu    sync.Mutex
	queue []func()
	wake  chan struct{}

	running  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once

	onUnhandled func(error)
	logger      hclog.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithUnhandled sets the handler receiving recovered task panics.
func WithUnhandled(fn func(error)) Option {
	return func(l *Loop) {
		l.onUnhandled = fn
	}
}

// WithLogger sets the loop logger.
func WithLogger(logger hclog.Logger) Option {
	return func(l *Loop) {
		l.logger = logger
	}
}

// New returns an idle loop.
func New(opts ...Option) *Loop {
	l := &Loop{
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = log.Named(l.logger, "eventloop")
	return l
}

// Post enqueues task for a later turn. It never runs task itself.
func (l *Loop) Post(task func()) {
	if task == nil {
		return
	}

	l.mu.Lock()
	l.queue = append(l.queue, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued tasks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Run drains the loop until ctx is done or Stop is called.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer l.running.Store(false)

	for {
		l.drain()

		select {
		case <-l.wake:
		case <-l.stop:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunUntilIdle runs queued tasks on the calling goroutine, including tasks
// they post, until the queue is empty.
func (l *Loop) RunUntilIdle() error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer l.running.Store(false)

	l.drain()
	return nil
}

// Stop makes Run return after the task in flight.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.queue) == 0 {
		return nil, false
	}
	task := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return task, true
}

func (l *Loop) drain() {
	for {
		select {
		case <-l.stop:
			return
		default:
		}

		task, ok := l.next()
		if !ok {
			return
		}
		l.run(task)
	}
}

func (l *Loop) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.unhandled(&UnhandledError{Value: r, Stack: debug.Stack()})
		}
	}()
	task()
}

func (l *Loop) unhandled(err *UnhandledError) {
	l.logger.Error("task panicked", "error", err, "stack", string(err.Stack))
	if l.onUnhandled != nil {
		l.onUnhandled(err)
	}
}
