package initdata_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nginfra/movici-simulation-core-sub002/initdata"
	"github.com/nginfra/movici-simulation-core-sub002/wire"
)

func writeDataset(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
}

func TestLookupResolvesStem(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir, "traffic.csv")
	writeDataset(t, dir, "kpi.json")

	s, err := initdata.New(dir)
	require.NoError(t, err)

	path, ok := s.Lookup("traffic")
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "traffic.csv"), path)

	_, ok = s.Lookup("missing")
	assert.False(t, ok)
}

func TestHandleGetReturnsNullPathForMiss(t *testing.T) {
	dir := t.TempDir()
	s, err := initdata.New(dir)
	require.NoError(t, err)

	resp, err := s.HandleGet(wire.GetBody{Key: "nope"})
	require.NoError(t, err)
	pb, err := resp.Path()
	require.NoError(t, err)
	assert.Nil(t, pb.Path)
}

func TestNewFailsFastOnUnreadableDir(t *testing.T) {
	_, err := initdata.New(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
}
