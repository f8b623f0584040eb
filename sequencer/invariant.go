//go:build !strict

package sequencer

import "beatgrid/debug"

// invariant reports a broken data-model rule. Release builds log it and the
// caller falls back to a safe value; build with -tags strict to panic.
func invariant(format string, args ...any) {
	debug.Warn("invariant", format, args...)
}
