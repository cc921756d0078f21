package cos_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nginfra/movici-simulation-core-sub002/cmn/cos"
)

func TestErrsDedup(t *testing.T) {
	var errs cos.Errs
	errs.Add(errors.New("model A failed"))
	errs.Add(errors.New("model A failed"))
	errs.Add(errors.New("model B failed"))
	assert.Equal(t, 2, errs.Cnt())
	assert.Contains(t, errs.Error(), "model A failed")
}

func TestMustMarshalRoundTrip(t *testing.T) {
	b := cos.MustMarshal(map[string]int{"a": 1})
	var out map[string]int
	assert.NoError(t, cos.UnmarshalJSON(b, &out))
	assert.Equal(t, 1, out["a"])
}
