package atomic_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nginfra/movici-simulation-core-sub002/cmn/atomic"
)

func TestInt32(t *testing.T) {
	var x atomic.Int32
	x.Store(5)
	assert.Equal(t, int32(5), x.Load())
	assert.Equal(t, int32(7), x.Add(2))
	assert.True(t, x.CAS(7, 9))
	assert.False(t, x.CAS(7, 10))
	assert.Equal(t, int32(9), x.Load())
}

func TestBool(t *testing.T) {
	var b atomic.Bool
	assert.False(t, b.Load())
	b.Store(true)
	assert.True(t, b.Load())
	assert.True(t, b.CAS(true, false))
	assert.False(t, b.Load())
}
