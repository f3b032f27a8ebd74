package boot

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/snailos/snail/capability"
	"github.com/snailos/snail/deferred"
	"github.com/snailos/snail/eventloop"
	"github.com/snailos/snail/inspect"
	"github.com/snailos/snail/loader"
	"github.com/snailos/snail/term"
)

func testSpec(mode string) capability.Spec {
	return capability.Spec{
		NewTerminal: capability.NewTerminal(),
		NewLayout:   capability.NewLayout(term.Dimensions{}),
		Deferred:    deferred.Factory,
		Loader: func(ctx context.Context, id string) deferred.Pending[*loader.Module] {
			return deferred.Rejected[*loader.Module](loader.ErrModuleNotFound)
		},
		BuildMode: mode,
	}
}

func TestBootOrdering(t *testing.T) {
	loop := eventloop.New()
	h := &Host{Loop: loop, Surface: inspect.New()}

	var order []string
	s, err := h.Boot(context.Background(), testSpec("fastbuild"), func(ctx context.Context, b capability.Bundle) error {
		order = append(order, "entry")
		return nil
	})
	require.NoError(t, err)
	order = append(order, "marker")

	require.Equal(t, []string{"marker"}, order)
	require.NoError(t, loop.RunUntilIdle())
	require.Equal(t, []string{"marker", "entry"}, order)

	<-s.Done()
	require.NoError(t, s.Err())
}

func TestScheduleOnce(t *testing.T) {
	loop := eventloop.New()
	s := NewScheduler(loop)
	b, err := capability.Assemble(testSpec("dbg"))
	require.NoError(t, err)

	calls := 0
	entry := func(ctx context.Context, b capability.Bundle) error {
		calls++
		return nil
	}

	require.True(t, s.Schedule(context.Background(), entry, b))
	require.False(t, s.Schedule(context.Background(), entry, b))
	require.NoError(t, loop.RunUntilIdle())
	require.False(t, s.Schedule(context.Background(), entry, b))
	require.NoError(t, loop.RunUntilIdle())

	require.Equal(t, 1, calls)
	require.True(t, s.Scheduled())
}

func TestScheduleNilEntry(t *testing.T) {
	s := NewScheduler(eventloop.New())
	require.False(t, s.Schedule(context.Background(), nil, capability.Bundle{}))
	require.False(t, s.Scheduled())
}

func TestEntryReceivesBundle(t *testing.T) {
	loop := eventloop.New()
	h := &Host{Loop: loop, Surface: inspect.New()}

	var got capability.Bundle
	_, err := h.Boot(context.Background(), testSpec("opt"), func(ctx context.Context, b capability.Bundle) error {
		got = b
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, loop.RunUntilIdle())

	require.Equal(t, capability.Optimised, got.Mode())
	require.NotNil(t, got.Terminal())
}

func TestEntryError(t *testing.T) {
	loop := eventloop.New()
	h := &Host{Loop: loop, Surface: inspect.New()}

	boom := errors.New("boom")
	s, err := h.Boot(context.Background(), testSpec("dbg"), func(ctx context.Context, b capability.Bundle) error {
		return boom
	})
	require.NoError(t, err, "entry failures never reach the caller of Boot")
	require.NoError(t, loop.RunUntilIdle())

	select {
	case err := <-s.Errors():
		require.ErrorIs(t, err, boom)
	default:
		t.Fatal("expected an error on Errors()")
	}
	require.ErrorIs(t, s.Err(), boom)
}

func TestEntryPanic(t *testing.T) {
	var loopUnhandled []error
	loop := eventloop.New(eventloop.WithUnhandled(func(err error) {
		loopUnhandled = append(loopUnhandled, err)
	}))
	h := &Host{Loop: loop, Surface: inspect.New()}

	s, err := h.Boot(context.Background(), testSpec("dbg"), func(ctx context.Context, b capability.Bundle) error {
		panic("kernel panic")
	})
	require.NoError(t, err)
	require.NoError(t, loop.RunUntilIdle())

	var uerr *eventloop.UnhandledError
	require.ErrorAs(t, <-s.Errors(), &uerr)
	require.Equal(t, "kernel panic", uerr.Value)
	require.Empty(t, loopUnhandled)
	<-s.Done()
}

func TestBootConfigurationError(t *testing.T) {
	loop := eventloop.New()
	surface := inspect.New()
	h := &Host{Loop: loop, Surface: surface}

	spec := testSpec("dbg")
	spec.Loader = nil

	called := false
	s, err := h.Boot(context.Background(), spec, func(ctx context.Context, b capability.Bundle) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, capability.ErrConfiguration)
	require.Nil(t, s)

	require.Equal(t, 0, loop.Pending())
	require.NoError(t, loop.RunUntilIdle())
	require.False(t, called)
	require.Empty(t, surface.Names())
}

func TestBootNilEntry(t *testing.T) {
	loop := eventloop.New()
	surface := inspect.New()
	h := &Host{Loop: loop, Surface: surface}

	s, err := h.Boot(context.Background(), testSpec("dbg"), nil)
	require.ErrorIs(t, err, capability.ErrConfiguration)
	require.ErrorIs(t, err, capability.ErrMissing)
	require.Nil(t, s)

	var cerr *capability.ConfigurationError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, "entry", cerr.Field)

	require.Equal(t, 0, loop.Pending())
	require.Empty(t, surface.Names())
}

func TestBootInspection(t *testing.T) {
	tests := []struct {
		mode    string
		exposed bool
	}{
		{"dbg", true},
		{"fastbuild", true},
		{"opt", false},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			surface := inspect.New()
			instance := &struct{ name string }{"kernel"}
			h := &Host{Loop: eventloop.New(), Surface: surface, Instance: instance}

			_, err := h.Boot(context.Background(), testSpec(tt.mode), func(context.Context, capability.Bundle) error {
				return nil
			})
			require.NoError(t, err)

			v, ok := surface.Lookup(InspectName)
			require.Equal(t, tt.exposed, ok)
			if tt.exposed {
				require.Same(t, instance, v)
			}
		})
	}
}

func TestBootExposesBundleByDefault(t *testing.T) {
	surface := inspect.New()
	h := &Host{Surface: surface}

	_, err := h.Boot(context.Background(), testSpec("dbg"), func(context.Context, capability.Bundle) error {
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, h.Loop)

	v, ok := surface.Lookup(InspectName)
	require.True(t, ok)
	require.IsType(t, capability.Bundle{}, v)
}

func TestBootOptimisedWithdrawsEarlierInstance(t *testing.T) {
	surface := inspect.New()
	entry := func(context.Context, capability.Bundle) error { return nil }

	dbg := &Host{Loop: eventloop.New(), Surface: surface, Instance: "dbg-os"}
	_, err := dbg.Boot(context.Background(), testSpec("dbg"), entry)
	require.NoError(t, err)

	v, ok := surface.Lookup(InspectName)
	require.True(t, ok)
	require.Equal(t, "dbg-os", v)

	opt := &Host{Loop: eventloop.New(), Surface: surface, Instance: "opt-os"}
	_, err = opt.Boot(context.Background(), testSpec("opt"), entry)
	require.NoError(t, err)

	_, ok = surface.Lookup(InspectName)
	require.False(t, ok)
}
