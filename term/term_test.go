package term

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
)

func TestWriteBeforeOpen(t *testing.T) {
	tm := New()

	if _, err := tm.Write([]byte("x")); !errors.Is(err, ErrNotOpen) {
		t.Errorf("expected ErrNotOpen, got %v", err)
	}
	if _, err := tm.ReadLine(); !errors.Is(err, ErrNotOpen) {
		t.Errorf("expected ErrNotOpen, got %v", err)
	}
}

func TestOpenWriteRead(t *testing.T) {
	var out bytes.Buffer
	tm := New()

	if err := tm.Open(&out, strings.NewReader("ls -l\r\nexit\n")); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer tm.Close()

	if tm.Interactive() {
		t.Fatal("buffers should not be treated as a TTY")
	}

	if err := tm.Writeln("hello"); err != nil {
		t.Fatalf("writeln failed: %v", err)
	}
	if out.String() != "hello\r\n" {
		t.Errorf("expected CRLF line, got %q", out.String())
	}

	line, err := tm.ReadLine()
	if err != nil {
		t.Fatalf("readline failed: %v", err)
	}
	if line != "ls -l" {
		t.Errorf("expected 'ls -l', got %q", line)
	}

	line, _ = tm.ReadLine()
	if line != "exit" {
		t.Errorf("expected 'exit', got %q", line)
	}

	if _, err := tm.ReadLine(); err != io.EOF {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestOpenTwice(t *testing.T) {
	tm := New()
	if err := tm.Open(io.Discard, nil); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := tm.Open(io.Discard, nil); !errors.Is(err, ErrAlreadyOpen) {
		t.Errorf("expected ErrAlreadyOpen, got %v", err)
	}
}

func TestReadAdapter(t *testing.T) {
	tm := New()
	tm.Open(io.Discard, strings.NewReader("echo hi\n"))

	buf := make([]byte, 64)
	n, err := tm.Read(buf)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(buf[:n]) != "echo hi\n" {
		t.Errorf("expected line with newline, got %q", buf[:n])
	}
}

func TestReadSmallBuffer(t *testing.T) {
	tm := New()
	tm.Open(io.Discard, strings.NewReader("hello world\nsecond\n"))

	var got strings.Builder
	buf := make([]byte, 4)
	for {
		n, err := tm.Read(buf)
		got.Write(buf[:n])
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if n > len(buf) {
			t.Fatalf("read %d bytes into a %d byte buffer", n, len(buf))
		}
	}

	if got.String() != "hello world\nsecond\n" {
		t.Errorf("expected full input, got %q", got.String())
	}
}

func TestFit(t *testing.T) {
	tm := New()
	fit := NewFit(Dimensions{})
	tm.LoadAddon(fit)

	if err := fit.Fit(); !errors.Is(err, ErrNotOpen) {
		t.Errorf("fit before open: expected ErrNotOpen, got %v", err)
	}

	tm.Open(io.Discard, nil)
	if err := fit.Fit(); err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	if got := tm.Size(); got != DefaultDimensions {
		t.Errorf("expected %v, got %v", DefaultDimensions, got)
	}
}

func TestFitFallback(t *testing.T) {
	tm := New()
	fit := NewFit(Dimensions{Cols: 100, Rows: 40})
	fit.width = func() int { return 132 }
	tm.LoadAddon(fit)
	tm.Open(io.Discard, nil)

	if err := fit.Fit(); err != nil {
		t.Fatalf("fit failed: %v", err)
	}

	// Screen width only applies to interactive terminals.
	want := Dimensions{Cols: 100, Rows: 40}
	if got := fit.Dimensions(); got != want {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestWinsizeNotATerminal(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if d, ok := winsize(f); ok {
		t.Errorf("winsize of a regular file = %v, want none", d)
	}
}
