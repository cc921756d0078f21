//go:build !mono

// Package mono provides low-level monotonic time.
package mono

import "time"

// start anchors NanoTime's readings at package initialization.
var start = time.Now()

// NanoTime returns a monotonic clock reading via the time package's
// monotonic component (time.Since subtracts it out safely), in nanoseconds
// since package initialization. Build with -tags mono to use the
// runtime.nanotime linkname instead.
func NanoTime() int64 { return int64(time.Since(start)) }
