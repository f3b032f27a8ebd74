//go:build !unix

package term

import "os"

func winsize(*os.File) (Dimensions, bool) {
	return Dimensions{}, false
}
