package term

import (
	"os"

	"github.com/chzyer/readline"
)

// DefaultDimensions is used when the output is not a TTY.
var DefaultDimensions = Dimensions{Cols: 80, Rows: 24}

// Fit sizes its terminal to the available output.
type Fit struct {
	term     *Terminal
	fallback Dimensions
	width    func() int
	measure  func(*os.File) (Dimensions, bool)
}

// NewFit returns a detached layout-fit helper. A zero fallback selects
// DefaultDimensions.
func NewFit(fallback Dimensions) *Fit {
	if fallback.Cols <= 0 || fallback.Rows <= 0 {
		fallback = DefaultDimensions
	}
	return &Fit{
		fallback: fallback,
		width:    readline.GetScreenWidth,
		measure:  winsize,
	}
}

// Activate binds the helper to t.
func (f *Fit) Activate(t *Terminal) {
	f.term = t
}

// Fit measures the attached output and records the result on the terminal.
func (f *Fit) Fit() error {
	if f.term == nil || !f.term.IsOpen() {
		return ErrNotOpen
	}

	d := f.fallback
	if f.term.Interactive() {
		if ws, ok := f.measureOutput(); ok {
			d = ws
		} else if w := f.width(); w > 0 {
			d.Cols = w
		}
	}

	f.term.resize(d)
	return nil
}

func (f *Fit) measureOutput() (Dimensions, bool) {
	out, ok := f.term.output().(*os.File)
	if !ok {
		return Dimensions{}, false
	}
	return f.measure(out)
}

// Dimensions returns the size the terminal was last fitted to.
func (f *Fit) Dimensions() Dimensions {
	if f.term == nil {
		return Dimensions{}
	}
	return f.term.Size()
}
