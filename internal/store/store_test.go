package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshstore/internal/matrix"
)

func testUniverse(n int) []uint32 {
	u := make([]uint32, 0, n)
	for i := 0; i < n; i++ {
		u = append(u, uint32(362000000+i))
	}
	return u
}

func TestCreateOpenRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "mystore")
	universe := testUniverse(32)

	s, err := Create(dir, universe, 0, matrix.Geometry{ChunkT: 24, ChunkM: 8}, "2016-01-01 00:00:00", 0)
	require.NoError(t, err)
	require.NoError(t, s.ExtendTime(10))
	require.NoError(t, s.WriteCellByDatetime("2016-01-01 01:00:00", universe[3], 55))
	require.NoError(t, s.Flush())
	require.NoError(t, s.Close(context.Background()))

	s2, err := OpenReadWrite(dir, 0)
	require.NoError(t, err)
	defer s2.Close(context.Background())

	v, err := s2.ReadCellByDatetime("2016-01-01 01:00:00", universe[3])
	require.NoError(t, err)
	assert.Equal(t, int32(55), v)

	tt, n, _, epoch := s2.Dimensions()
	assert.Equal(t, int64(10), tt)
	assert.Equal(t, 32, n)
	assert.Equal(t, "2016-01-01 00:00:00", epoch)
}

func TestBoundsPolicyUsesStoreN(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "mystore")
	universe := testUniverse(4)
	s, err := Create(dir, universe, 0, matrix.Geometry{ChunkT: 8, ChunkM: 4}, "2016-01-01 00:00:00", 0)
	require.NoError(t, err)
	defer s.Close(context.Background())

	assert.Equal(t, 4, s.N())

	_, err = s.ReadCellByDatetime("2016-01-01 00:00:00", 999999999)
	assert.ErrorIs(t, err, ErrMeshNotFound)
}

func TestReadRowSelectionPlansSingleCell(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "mystore")
	universe := testUniverse(8)
	s, err := Create(dir, universe, 0, matrix.Geometry{ChunkT: 8, ChunkM: 4}, "2016-01-01 00:00:00", 0)
	require.NoError(t, err)
	defer s.Close(context.Background())
	require.NoError(t, s.ExtendTime(2))

	require.NoError(t, s.WriteCell(0, 2, 9))
	got, err := s.ReadRowSelection(0, []int{2})
	require.NoError(t, err)
	assert.Equal(t, []int32{9}, got)
}

func TestReadRowSelectionEmptyMeshReturnsEmptyResult(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "mystore")
	universe := testUniverse(8)
	s, err := Create(dir, universe, 0, matrix.Geometry{ChunkT: 8, ChunkM: 4}, "2016-01-01 00:00:00", 0)
	require.NoError(t, err)
	defer s.Close(context.Background())
	require.NoError(t, s.ExtendTime(2))

	got, err := s.ReadRowSelection(0, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadRowSelectionPlansBlockUnion(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "mystore")
	universe := testUniverse(16)
	s, err := Create(dir, universe, 0, matrix.Geometry{ChunkT: 8, ChunkM: 4}, "2016-01-01 00:00:00", 0)
	require.NoError(t, err)
	defer s.Close(context.Background())
	require.NoError(t, s.ExtendTime(2))

	require.NoError(t, s.WriteCell(0, 0, 1))
	require.NoError(t, s.WriteCell(0, 1, 2))
	require.NoError(t, s.WriteCell(0, 10, 10))
	require.NoError(t, s.WriteCell(0, 11, 11))

	got, err := s.ReadRowSelection(0, []int{0, 1, 10, 11})
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2, 10, 11}, got)
}

func TestMakeVirtualRoutesReads(t *testing.T) {
	histDir := filepath.Join(t.TempDir(), "hist")
	universe := testUniverse(8)
	hist, err := Create(histDir, universe, 0, matrix.Geometry{ChunkT: 8, ChunkM: 4}, "2016-01-01 00:00:00", 0)
	require.NoError(t, err)
	require.NoError(t, hist.ExtendTime(10))
	require.NoError(t, hist.WriteCell(5, 1, 100))
	require.NoError(t, hist.Flush())

	curDir := filepath.Join(t.TempDir(), "cur")
	cur, err := Create(curDir, universe, 0, matrix.Geometry{ChunkT: 8, ChunkM: 4}, "2026-01-01 00:00:00", 0)
	require.NoError(t, err)
	require.NoError(t, cur.ExtendTime(5))
	require.NoError(t, cur.WriteCell(2, 1, 200))
	require.NoError(t, cur.Flush())
	require.NoError(t, cur.Close(context.Background()))

	require.NoError(t, hist.MakeVirtual(curDir, 10))
	defer hist.Close(context.Background())

	got, err := hist.ReadCell(5, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(100), got)

	got, err = hist.ReadCell(12, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(200), got)
}
