//go:build debug

// Package debug provides assertion helpers that panic unless built without
// the "debug" tag.
package debug

import (
	"fmt"
	"sync"

	"github.com/nginfra/movici-simulation-core-sub002/cmn/nlog"
)

func ON() bool { return true }

func Infof(f string, a ...any) { nlog.Infof(f, a...) }

func Func(f func()) { f() }

func Assert(cond bool, args ...any) {
	if !cond {
		panic(fmt.Sprintln(args...))
	}
}

func AssertFunc(f func() bool, args ...any) { Assert(f(), args...) }

func AssertNoErr(err error) {
	if err != nil {
		panic(err)
	}
}

func Assertf(cond bool, format string, a ...any) {
	if !cond {
		panic(fmt.Sprintf(format, a...))
	}
}

func AssertMutexLocked(m *sync.Mutex) {
	Assert(!m.TryLock())
}

func AssertRWMutexLocked(m *sync.RWMutex) {
	Assert(!m.TryLock())
}

func AssertRWMutexRLocked(m *sync.RWMutex) {
	Assert(!m.TryLock())
	m.RUnlock()
}
