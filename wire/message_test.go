package wire_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nginfra/movici-simulation-core-sub002/wire"
)

func TestRoundTripNewTime(t *testing.T) {
	m, err := wire.NewJSON(wire.TagNewTime, wire.NewTimeBody{Timestamp: 42})
	require.NoError(t, err)

	buf, err := wire.Encode(m)
	require.NoError(t, err)

	got, err := wire.Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, wire.TagNewTime, got.Tag)

	body, err := got.NewTimeBody()
	require.NoError(t, err)
	assert.EqualValues(t, 42, body.Timestamp)
}

func TestRoundTripUpdateSeries(t *testing.T) {
	key1, addr1 := "k1", "a1"
	key2, addr2 := "k2", "a2"
	bodies := []wire.UpdateBody{
		{Timestamp: 1, Key: &key1, Address: &addr1},
		{Timestamp: 1, Key: &key2, Address: &addr2},
	}
	m, err := wire.NewUpdateSeries(bodies)
	require.NoError(t, err)

	buf, err := wire.Encode(m)
	require.NoError(t, err)
	got, err := wire.Decode(buf)
	require.NoError(t, err)

	out, err := got.UpdateSeries()
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "k1", *out[0].Key)
	assert.Equal(t, "k2", *out[1].Key)
}

func TestPutRoundTrip(t *testing.T) {
	m := wire.NewPut("mykey", []byte(`{"a":1}`))
	buf, err := wire.Encode(m)
	require.NoError(t, err)
	got, err := wire.Decode(buf)
	require.NoError(t, err)

	key, data, err := got.Put()
	require.NoError(t, err)
	assert.Equal(t, "mykey", key)
	assert.Equal(t, `{"a":1}`, string(data))
}

func TestUpdateValidateRejectsMismatch(t *testing.T) {
	key := "k"
	b := wire.UpdateBody{Timestamp: 0, Key: &key, Address: nil}
	assert.Error(t, b.Validate())

	b2 := wire.UpdateBody{Timestamp: 0}
	assert.NoError(t, b2.Validate())
}

func TestDecodeTruncatedErrors(t *testing.T) {
	_, err := wire.Decode([]byte("short"))
	assert.Error(t, err)
}
