// Package boot hands the assembled capability bundle to the OS module's
// entry point.
//
// The entry point is never called from within the code that schedules it:
// it runs on the event loop's next turn, after the host's synchronous boot
// code has finished. It is invoked at most once per Scheduler, and errors
// or panics it produces surface on Scheduler.Errors rather than reaching
// the host's caller.
package boot

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/snailos/snail/capability"
	"github.com/snailos/snail/eventloop"
	"github.com/snailos/snail/internal/log"
	"github.com/snailos/snail/internal/metrics"
	"github.com/snailos/snail/internal/telemetry"
)

// EntryPoint is the OS module's single entry point.
type EntryPoint func(ctx context.Context, b capability.Bundle) error

// Scheduler defers one entry-point invocation onto an event loop.
type Scheduler struct {
	loop   *eventloop.Loop
	logger hclog.Logger

	taken atomic.Bool
	errs  chan error
	done  chan struct{}
	err   error
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerLogger sets the scheduler logger.
func WithSchedulerLogger(l hclog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// NewScheduler returns a scheduler posting onto loop.
func NewScheduler(loop *eventloop.Loop, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		loop: loop,
		errs: make(chan error, 1),
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = log.Named(s.logger, "boot")
	return s
}

// Schedule posts entry(ctx, b) onto the loop's next turn. Only the first
// call schedules anything; it reports whether this call did.
func (s *Scheduler) Schedule(ctx context.Context, entry EntryPoint, b capability.Bundle) bool {
	if entry == nil || !s.taken.CompareAndSwap(false, true) {
		return false
	}

	s.loop.Post(func() {
		defer close(s.done)
		if err := s.invoke(ctx, entry, b); err != nil {
			s.err = err
			s.logger.Error("entry point failed", "error", err)
			select {
			case s.errs <- err:
			default:
			}
		}
	})
	return true
}

func (s *Scheduler) invoke(ctx context.Context, entry EntryPoint, b capability.Bundle) (err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "snail.entry")
	span.SetAttributes(attribute.String("snail.mode", b.Mode().String()))
	start := time.Now()
	defer func() {
		metrics.EntryDuration.Observe(time.Since(start).Seconds())
		if r := recover(); r != nil {
			err = &eventloop.UnhandledError{Value: r, Stack: debug.Stack()}
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := entry(ctx, b); err != nil {
		return fmt.Errorf("os entry: %w", err)
	}
	return nil
}

// Scheduled reports whether an invocation has been scheduled.
func (s *Scheduler) Scheduled() bool {
	return s.taken.Load()
}

// Errors delivers the entry point's failure, if it fails.
func (s *Scheduler) Errors() <-chan error {
	return s.errs
}

// Done is closed once the entry point has returned.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Err returns the entry point's failure. It is only meaningful after Done.
func (s *Scheduler) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}
