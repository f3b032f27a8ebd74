package boot

import (
	"context"

	hclog "github.com/hashicorp/go-hclog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/snailos/snail/capability"
	"github.com/snailos/snail/eventloop"
	"github.com/snailos/snail/inspect"
	"github.com/snailos/snail/internal/log"
	"github.com/snailos/snail/internal/telemetry"
)

// InspectName is the name the OS instance is exposed under.
const InspectName = "os"

// Host is the bootstrap side: it owns the loop the OS runs on.
type Host struct {
	Loop *eventloop.Loop

	// Surface receives the OS instance in inspectable modes. Nil selects
	// inspect.Default().
	Surface *inspect.Surface

	// Instance is what gets exposed for inspection. Nil exposes the bundle.
	Instance any

	Logger hclog.Logger
}

// Boot assembles the bundle from spec and schedules entry with it. On a
// configuration error, including a nil entry, nothing is scheduled or
// exposed.
func (h *Host) Boot(ctx context.Context, spec capability.Spec, entry EntryPoint) (*Scheduler, error) {
	logger := log.Named(h.Logger, "boot")

	ctx, span := telemetry.Tracer().Start(ctx, "snail.boot")
	defer span.End()

	var (
		b   capability.Bundle
		err error
	)
	if entry == nil {
		err = &capability.ConfigurationError{Field: "entry", Err: capability.ErrMissing}
	} else {
		b, err = capability.Assemble(spec)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("boot configuration invalid", "error", err)
		return nil, err
	}
	span.SetAttributes(attribute.String("snail.mode", b.Mode().String()))

	loop := h.Loop
	if loop == nil {
		loop = eventloop.New()
		h.Loop = loop
	}

	surface := h.Surface
	if surface == nil {
		surface = inspect.Default()
	}
	if b.Mode().Inspectable() {
		var instance any = b
		if h.Instance != nil {
			instance = h.Instance
		}
		surface.Expose(InspectName, instance)
		logger.Debug("os exposed for inspection", "mode", b.Mode())
	} else {
		// an earlier inspectable boot may have left one behind
		surface.Withdraw(InspectName)
	}

	s := NewScheduler(loop, WithSchedulerLogger(logger))
	s.Schedule(ctx, entry, b)
	return s, nil
}
