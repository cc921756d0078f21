package broker_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nginfra/movici-simulation-core-sub002/broker"
	"github.com/nginfra/movici-simulation-core-sub002/wire"
)

func TestPutGetRoundTrip(t *testing.T) {
	b := broker.New(nil)
	data := []byte(`{"ds":{"eg":{"x":1,"y":2}}}`)
	_, err := b.HandlePut("k", data)
	require.NoError(t, err)

	resp, err := b.HandleGet(wire.GetBody{Key: "k"})
	require.NoError(t, err)
	got, err := resp.Data()
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(got))
}

func TestGetMissingKeyReturnsError(t *testing.T) {
	b := broker.New(nil)
	resp, err := b.HandleGet(wire.GetBody{Key: "nope"})
	require.NoError(t, err)
	eb, err := resp.ErrorBody()
	require.NoError(t, err)
	assert.Equal(t, "Key not found", eb.Error)
}

func TestPutInvalidDataReturnsError(t *testing.T) {
	b := broker.New(nil)
	resp, err := b.HandlePut("k", []byte(`"just a string"`))
	require.NoError(t, err)
	eb, err := resp.ErrorBody()
	require.NoError(t, err)
	assert.Contains(t, eb.Error, "Invalid data")
}

func TestMaskFiltersGetResponse(t *testing.T) {
	b := broker.New(nil)
	_, err := b.HandlePut("k", []byte(`{"ds":{"eg":{"x":1,"y":2}}}`))
	require.NoError(t, err)

	resp, err := b.HandleGet(wire.GetBody{Key: "k", Mask: map[string]any{"ds": map[string]any{"eg": map[string]any{"x": nil}}}})
	require.NoError(t, err)
	got, err := resp.Data()
	require.NoError(t, err)
	assert.JSONEq(t, `{"ds":{"eg":{"x":1}}}`, string(got))
}

func TestClearIsIdempotent(t *testing.T) {
	b := broker.New(nil)
	_, _ = b.HandlePut("model-a:x", []byte(`{}`))
	_, _ = b.HandlePut("model-b:y", []byte(`{}`))

	_, err := b.HandleClear(wire.ClearBody{Prefix: "model-a"})
	require.NoError(t, err)
	_, err = b.HandleClear(wire.ClearBody{Prefix: "model-a"})
	require.NoError(t, err)

	_, ok := b.Get("model-a:x")
	assert.False(t, ok)
	_, ok2 := b.Get("model-b:y")
	assert.True(t, ok2)
}

func TestDiskMirrorWritesFile(t *testing.T) {
	dir := t.TempDir()
	m := broker.NewDiskMirror(dir)
	m.SaveEnvelope(broker.Envelope{Timestamp: 3, Iteration: 1, Key: "traffic"}, []byte(`{}`))
	m.Wait()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "t3_1_traffic.json", entries[0].Name())

	b, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(b))
}
