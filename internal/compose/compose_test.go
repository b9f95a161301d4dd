package compose

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshstore/internal/matrix"
)

func newEngine(t *testing.T, path string, n int, rows int64) *matrix.Engine {
	t.Helper()
	e, err := matrix.Create(path, n, matrix.Geometry{ChunkT: 8, ChunkM: 4}, "2016-01-01 00:00:00", 0)
	require.NoError(t, err)
	require.NoError(t, e.ExtendTime(rows))
	return e
}

func TestVirtualRoutesBySplitPoint(t *testing.T) {
	dir := t.TempDir()
	hist := newEngine(t, filepath.Join(dir, "hist.bin"), 4, 10)
	cur := newEngine(t, filepath.Join(dir, "cur.bin"), 4, 10)
	defer hist.Close()
	defer cur.Close()

	require.NoError(t, hist.WriteCell(5, 1, 100))
	require.NoError(t, cur.WriteCell(2, 1, 200)) // becomes global t=12 (splitT=10)

	v, err := New(hist, cur, 10)
	require.NoError(t, err)

	got, err := v.ReadCell(5, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(100), got)

	got, err = v.ReadCell(12, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(200), got)
}

func TestVirtualDimensions(t *testing.T) {
	dir := t.TempDir()
	hist := newEngine(t, filepath.Join(dir, "hist.bin"), 4, 10)
	cur := newEngine(t, filepath.Join(dir, "cur.bin"), 6, 5)
	defer hist.Close()
	defer cur.Close()

	v, err := New(hist, cur, 10)
	require.NoError(t, err)

	tt, n, epoch := v.Dimensions()
	assert.Equal(t, int64(15), tt)
	assert.Equal(t, 6, n)
	assert.Equal(t, "2016-01-01 00:00:00", epoch)
}

func TestVirtualZeroBeyondMeshWidth(t *testing.T) {
	dir := t.TempDir()
	hist := newEngine(t, filepath.Join(dir, "hist.bin"), 4, 10)
	cur := newEngine(t, filepath.Join(dir, "cur.bin"), 8, 5)
	defer hist.Close()
	defer cur.Close()

	v, err := New(hist, cur, 10)
	require.NoError(t, err)

	got, err := v.ReadCell(3, 6) // historical only has 4 mesh columns
	require.NoError(t, err)
	assert.Equal(t, int32(0), got)
}

func TestReadColumnRangeAcrossSplit(t *testing.T) {
	dir := t.TempDir()
	hist := newEngine(t, filepath.Join(dir, "hist.bin"), 4, 10)
	cur := newEngine(t, filepath.Join(dir, "cur.bin"), 4, 10)
	defer hist.Close()
	defer cur.Close()

	require.NoError(t, hist.WriteCell(9, 0, 1))
	require.NoError(t, cur.WriteCell(0, 0, 2))

	v, err := New(hist, cur, 10)
	require.NoError(t, err)

	got, err := v.ReadColumnRange(9, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2}, got)
}
