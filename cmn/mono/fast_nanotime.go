//go:build mono

// Package mono provides low-level monotonic time.
package mono

import (
	_ "unsafe" // required for go:linkname
)

// NanoTime links directly against the runtime's monotonic clock read,
// skipping the time.Time allocation time.Now() does. Opt in with -tags
// mono; see runtime.nanotime.
//
//go:linkname NanoTime runtime.nanotime
func NanoTime() int64
