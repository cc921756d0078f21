// Package atomic provides typed wrappers over sync/atomic, in the style
// referenced (but not present in the retrieval pack) by aistore's reb
// package as github.com/NVIDIA/aistore/cmn/atomic -- reconstructed here
// from its call sites (.Load/.Store/.Add/.CAS).
package atomic

import "sync/atomic"

type Int32 struct{ v int32 }

func (x *Int32) Load() int32        { return atomic.LoadInt32(&x.v) }
func (x *Int32) Store(val int32)    { atomic.StoreInt32(&x.v, val) }
func (x *Int32) Add(delta int32) int32 { return atomic.AddInt32(&x.v, delta) }
func (x *Int32) CAS(old, newVal int32) bool {
	return atomic.CompareAndSwapInt32(&x.v, old, newVal)
}

type Int64 struct{ v int64 }

func (x *Int64) Load() int64        { return atomic.LoadInt64(&x.v) }
func (x *Int64) Store(val int64)    { atomic.StoreInt64(&x.v, val) }
func (x *Int64) Add(delta int64) int64 { return atomic.AddInt64(&x.v, delta) }
func (x *Int64) CAS(old, newVal int64) bool {
	return atomic.CompareAndSwapInt64(&x.v, old, newVal)
}

type Bool struct{ v int32 }

func (x *Bool) Load() bool { return atomic.LoadInt32(&x.v) != 0 }
func (x *Bool) Store(val bool) {
	if val {
		atomic.StoreInt32(&x.v, 1)
	} else {
		atomic.StoreInt32(&x.v, 0)
	}
}
func (x *Bool) CAS(old, newVal bool) bool {
	var o, n int32
	if old {
		o = 1
	}
	if newVal {
		n = 1
	}
	return atomic.CompareAndSwapInt32(&x.v, o, n)
}
