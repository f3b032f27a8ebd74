// Package term provides the terminal surface and layout-fit helper injected
// into the OS module. Both are constructed detached; the OS module attaches
// them once it receives its capability bundle.
package term

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/chzyer/readline"
)

var (
	ErrNotOpen     = errors.New("terminal not open")
	ErrAlreadyOpen = errors.New("terminal already open")
)

// Dimensions is a terminal size in character cells.
type Dimensions struct {
	Cols int
	Rows int
}

// Addon extends a terminal after construction, like the fit helper.
type Addon interface {
	Activate(t *Terminal)
}

// Terminal is a line-oriented display and input surface.
type Terminal struct {
	cfg config

	mu     sync.Mutex
	out    io.Writer
	lines  *bufio.Reader
	rl     *readline.Instance
	open   bool
	size   Dimensions
	addons []Addon

	// unread tail of the last line served by Read
	pending []byte
}

type config struct {
	prompt      string
	historyFile string
	interactive *bool
}

// Option configures a Terminal.
type Option func(*config)

// WithPrompt sets the prompt shown by ReadLine on interactive terminals.
func WithPrompt(p string) Option {
	return func(c *config) {
		c.prompt = p
	}
}

// WithHistoryFile sets the readline history file.
func WithHistoryFile(path string) Option {
	return func(c *config) {
		c.historyFile = path
	}
}

// WithInteractive forces line editing on or off instead of detecting a TTY.
func WithInteractive(on bool) Option {
	return func(c *config) {
		c.interactive = &on
	}
}

// New returns a detached terminal.
func New(opts ...Option) *Terminal {
	cfg := config{prompt: "$ "}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Terminal{cfg: cfg}
}

// LoadAddon activates a on the terminal.
func (t *Terminal) LoadAddon(a Addon) {
	t.mu.Lock()
	t.addons = append(t.addons, a)
	t.mu.Unlock()

	a.Activate(t)
}

// Open attaches the terminal to an output and an input stream.
func (t *Terminal) Open(out io.Writer, in io.Reader) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.open {
		return ErrAlreadyOpen
	}

	if t.isInteractive(out, in) {
		stdin, ok := in.(io.ReadCloser)
		if !ok {
			stdin = io.NopCloser(in)
		}
		rl, err := readline.NewEx(&readline.Config{
			Prompt:            t.cfg.prompt,
			HistoryFile:       t.cfg.historyFile,
			HistoryLimit:      1000,
			InterruptPrompt:   "^C",
			EOFPrompt:         "exit",
			HistorySearchFold: true,
			Stdin:             stdin,
			Stdout:            out,
			Stderr:            out,
		})
		if err != nil {
			return fmt.Errorf("open readline: %w", err)
		}
		t.rl = rl
	} else if in != nil {
		t.lines = bufio.NewReader(in)
	}

	t.out = out
	t.open = true
	return nil
}

func (t *Terminal) isInteractive(out io.Writer, in io.Reader) bool {
	if t.cfg.interactive != nil {
		return *t.cfg.interactive
	}
	f, ok := in.(*os.File)
	if !ok {
		return false
	}
	o, ok := out.(*os.File)
	if !ok {
		return false
	}
	return readline.IsTerminal(int(f.Fd())) && readline.IsTerminal(int(o.Fd()))
}

// Interactive reports whether the terminal is attached to a TTY with line editing.
func (t *Terminal) Interactive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rl != nil
}

// IsOpen reports whether Open has been called.
func (t *Terminal) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

// Write writes raw output to the terminal.
func (t *Terminal) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.open {
		return 0, ErrNotOpen
	}
	if t.rl != nil {
		return t.rl.Write(p)
	}
	return t.out.Write(p)
}

// Writeln writes s followed by a CRLF, matching what terminal emulators expect.
func (t *Terminal) Writeln(s string) error {
	_, err := t.Write([]byte(s + "\r\n"))
	return err
}

// ReadLine reads one line of input without its trailing newline.
func (t *Terminal) ReadLine() (string, error) {
	t.mu.Lock()
	rl, lines, open := t.rl, t.lines, t.open
	t.mu.Unlock()

	if !open {
		return "", ErrNotOpen
	}
	if rl != nil {
		return rl.Readline()
	}
	if lines == nil {
		return "", io.EOF
	}

	line, err := lines.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Read implements io.Reader so a terminal can back a guest's stdin.
// Each line read is returned with a trailing newline. A line longer than p
// is served across several calls.
func (t *Terminal) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	t.mu.Lock()
	if len(t.pending) > 0 {
		n := copy(p, t.pending)
		t.pending = t.pending[n:]
		t.mu.Unlock()
		return n, nil
	}
	t.mu.Unlock()

	line, err := t.ReadLine()
	if err != nil {
		return 0, err
	}
	buf := []byte(line + "\n")
	n := copy(p, buf)

	t.mu.Lock()
	t.pending = append(t.pending[:0], buf[n:]...)
	t.mu.Unlock()
	return n, nil
}

func (t *Terminal) output() io.Writer {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.out
}

// Size returns the dimensions recorded by the last fit.
func (t *Terminal) Size() Dimensions {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.size
}

func (t *Terminal) resize(d Dimensions) {
	t.mu.Lock()
	t.size = d
	t.mu.Unlock()
}

// Close releases the line editor. The terminal cannot be reopened.
func (t *Terminal) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rl != nil {
		err := t.rl.Close()
		t.rl = nil
		return err
	}
	return nil
}
