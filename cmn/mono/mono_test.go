package mono_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nginfra/movici-simulation-core-sub002/cmn/mono"
)

func TestNanoTimeMonotonic(t *testing.T) {
	a := mono.NanoTime()
	b := mono.NanoTime()
	assert.LessOrEqual(t, a, b)
}
