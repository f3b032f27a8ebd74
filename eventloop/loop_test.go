package eventloop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestPostDoesNotRunInline(t *testing.T) {
	l := New()

	ran := false
	l.Post(func() { ran = true })
	if ran {
		t.Fatal("task ran inside Post")
	}
	if l.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", l.Pending())
	}

	if err := l.RunUntilIdle(); err != nil {
		t.Fatal(err)
	}
	if !ran {
		t.Fatal("task did not run")
	}
}

func TestFIFO(t *testing.T) {
	l := New()

	var got []int
	for i := range 5 {
		l.Post(func() { got = append(got, i) })
	}
	l.Post(func() {
		l.Post(func() { got = append(got, 99) })
	})

	if err := l.RunUntilIdle(); err != nil {
		t.Fatal(err)
	}

	want := []int{0, 1, 2, 3, 4, 99}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestPanicRecovered(t *testing.T) {
	var unhandled []error
	l := New(WithUnhandled(func(err error) { unhandled = append(unhandled, err) }))

	boom := errors.New("boom")
	after := false
	l.Post(func() { panic(boom) })
	l.Post(func() { after = true })

	if err := l.RunUntilIdle(); err != nil {
		t.Fatal(err)
	}

	if !after {
		t.Error("task after a panic did not run")
	}
	if len(unhandled) != 1 {
		t.Fatalf("got %d unhandled errors, want 1", len(unhandled))
	}

	var uerr *UnhandledError
	if !errors.As(unhandled[0], &uerr) {
		t.Fatalf("error %T is not *UnhandledError", unhandled[0])
	}
	if !errors.Is(unhandled[0], boom) {
		t.Error("UnhandledError should unwrap to the panic value")
	}
	if len(uerr.Stack) == 0 {
		t.Error("UnhandledError should carry a stack")
	}
}

func TestRunAndStop(t *testing.T) {
	l := New()
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	var wg sync.WaitGroup
	wg.Add(1)
	l.Post(wg.Done)
	wg.Wait()

	l.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestRunContextCancel(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := l.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() = %v, want context.Canceled", err)
	}
}

func TestSingleDrainer(t *testing.T) {
	l := New()

	var nested error
	l.Post(func() { nested = l.RunUntilIdle() })
	if err := l.RunUntilIdle(); err != nil {
		t.Fatal(err)
	}

	if !errors.Is(nested, ErrAlreadyRunning) {
		t.Fatalf("nested RunUntilIdle() = %v, want ErrAlreadyRunning", nested)
	}
}
