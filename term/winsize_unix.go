//go:build unix

package term

import (
	"os"

	"golang.org/x/sys/unix"
)

func winsize(f *os.File) (Dimensions, bool) {
	ws, err := unix.IoctlGetWinsize(int(f.Fd()), unix.TIOCGWINSZ)
	if err != nil || ws.Col == 0 || ws.Row == 0 {
		return Dimensions{}, false
	}
	return Dimensions{Cols: int(ws.Col), Rows: int(ws.Row)}, true
}
