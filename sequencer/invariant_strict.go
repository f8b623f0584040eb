//go:build strict

package sequencer

import "fmt"

func invariant(format string, args ...any) {
	panic(fmt.Sprintf("invariant violated: "+format, args...))
}
