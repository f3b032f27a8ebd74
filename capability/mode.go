package capability

import (
	"errors"
	"fmt"
)

// ErrUnknownMode is returned for build-mode strings outside the closed set.
var ErrUnknownMode = errors.New("unknown build mode")

// Mode is the build/compilation mode the host was produced with.
type Mode int

const (
	Debug Mode = iota
	FastBuild
	Optimised
)

// ParseMode parses "dbg", "fastbuild" or "opt".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "dbg":
		return Debug, nil
	case "fastbuild":
		return FastBuild, nil
	case "opt":
		return Optimised, nil
	default:
		return 0, fmt.Errorf("%w %q (want dbg, fastbuild or opt)", ErrUnknownMode, s)
	}
}

func (m Mode) String() string {
	switch m {
	case Debug:
		return "dbg"
	case FastBuild:
		return "fastbuild"
	case Optimised:
		return "opt"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Inspectable reports whether the OS instance should be exposed for
// interactive inspection. Only optimised builds hide it.
func (m Mode) Inspectable() bool {
	return m != Optimised
}
