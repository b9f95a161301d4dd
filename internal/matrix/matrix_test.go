package matrix

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallGeometry() Geometry {
	return Geometry{ChunkT: 4, ChunkM: 4}
}

func TestCreateOpenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.bin")

	e, err := Create(path, 10, smallGeometry(), "2016-01-01 00:00:00", 0)
	require.NoError(t, err)
	require.NoError(t, e.ExtendTime(8))
	require.NoError(t, e.WriteCell(3, 2, 42))
	require.NoError(t, e.Flush())
	require.NoError(t, e.Close())

	e2, err := OpenReadWrite(path, 0)
	require.NoError(t, err)
	defer e2.Close()

	tt, n, geo, epoch := e2.Dimensions()
	assert.Equal(t, int64(8), tt)
	assert.Equal(t, 10, n)
	assert.Equal(t, smallGeometry(), geo)
	assert.Equal(t, "2016-01-01 00:00:00", epoch)

	v, err := e2.ReadCell(3, 2)
	require.NoError(t, err)
	assert.Equal(t, int32(42), v)
}

func TestUnwrittenCellsAreZero(t *testing.T) {
	dir := t.TempDir()
	e, err := Create(filepath.Join(dir, "store.bin"), 10, smallGeometry(), "2016-01-01 00:00:00", 0)
	require.NoError(t, err)
	require.NoError(t, e.ExtendTime(100))

	v, err := e.ReadCell(99, 9)
	require.NoError(t, err)
	assert.Equal(t, int32(0), v)
}

func TestReadWriteRowSelectionUnsortedRepeated(t *testing.T) {
	dir := t.TempDir()
	e, err := Create(filepath.Join(dir, "store.bin"), 10, smallGeometry(), "2016-01-01 00:00:00", 0)
	require.NoError(t, err)
	require.NoError(t, e.ExtendTime(10))

	require.NoError(t, e.WriteRowSelection(0, []int{0, 5, 9}, []int32{1, 2, 3}))

	got, err := e.ReadRowSelection(0, []int{9, 9, 0, 5})
	require.NoError(t, err)
	assert.Equal(t, []int32{3, 3, 1, 2}, got)
}

func TestReadColumnRangeAcrossChunkRows(t *testing.T) {
	dir := t.TempDir()
	e, err := Create(filepath.Join(dir, "store.bin"), 4, smallGeometry(), "2016-01-01 00:00:00", 0)
	require.NoError(t, err)
	require.NoError(t, e.ExtendTime(10))

	for t_ := int64(0); t_ < 10; t_++ {
		require.NoError(t, e.WriteCell(t_, 1, int32(t_*10)))
	}

	got, err := e.ReadColumnRange(2, 7, 1)
	require.NoError(t, err)
	assert.Equal(t, []int32{20, 30, 40, 50, 60, 70}, got)
}

func TestReadBlockUnion(t *testing.T) {
	dir := t.TempDir()
	e, err := Create(filepath.Join(dir, "store.bin"), 12, smallGeometry(), "2016-01-01 00:00:00", 0)
	require.NoError(t, err)
	require.NoError(t, e.ExtendTime(4))

	require.NoError(t, e.WriteCell(0, 0, 1))
	require.NoError(t, e.WriteCell(0, 1, 2))
	require.NoError(t, e.WriteCell(0, 8, 8))
	require.NoError(t, e.WriteCell(0, 9, 9))

	blocks := []Block{
		{DCol0: 0, MCol0: 0, NCols: 2},
		{DCol0: 8, MCol0: 2, NCols: 2},
	}
	got, err := e.ReadBlockUnion(0, 1, blocks, 4)
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2, 8, 9}, got)
}

func TestWriteBulk(t *testing.T) {
	dir := t.TempDir()
	e, err := Create(filepath.Join(dir, "store.bin"), 4, smallGeometry(), "2016-01-01 00:00:00", 0)
	require.NoError(t, err)
	require.NoError(t, e.ExtendTime(2))

	buf := []int32{1, 0, 0, 2, 0, 3, 0, 0}
	require.NoError(t, e.WriteBulk(buf, 0, 2, 4))

	v, err := e.ReadCell(0, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(1), v)
	v, err = e.ReadCell(0, 3)
	require.NoError(t, err)
	assert.Equal(t, int32(2), v)
	v, err = e.ReadCell(1, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(3), v)
}

func TestBoundsRejected(t *testing.T) {
	dir := t.TempDir()
	e, err := Create(filepath.Join(dir, "store.bin"), 4, smallGeometry(), "2016-01-01 00:00:00", 0)
	require.NoError(t, err)
	require.NoError(t, e.ExtendTime(4))

	_, err = e.ReadCell(-1, 0)
	assert.ErrorIs(t, err, ErrBadIndex)
	_, err = e.ReadCell(0, 4)
	assert.ErrorIs(t, err, ErrBadIndex)
	_, err = e.ReadCell(4, 0)
	assert.ErrorIs(t, err, ErrBadIndex)
}

func TestReadOnlyHandleRejectsWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.bin")
	e, err := Create(path, 4, smallGeometry(), "2016-01-01 00:00:00", 0)
	require.NoError(t, err)
	require.NoError(t, e.ExtendTime(4))
	require.NoError(t, e.Close())

	ro, err := OpenReadOnly(path, 0)
	require.NoError(t, err)
	defer ro.Close()

	err = ro.WriteCell(0, 0, 1)
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestExtendTimeRejectsShrink(t *testing.T) {
	dir := t.TempDir()
	e, err := Create(filepath.Join(dir, "store.bin"), 4, smallGeometry(), "2016-01-01 00:00:00", 0)
	require.NoError(t, err)
	require.NoError(t, e.ExtendTime(10))

	err = e.ExtendTime(5)
	assert.ErrorIs(t, err, ErrShrink)
}

func TestCloseDiscardDropsDirtyChunks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.bin")
	e, err := Create(path, 4, smallGeometry(), "2016-01-01 00:00:00", 0)
	require.NoError(t, err)
	require.NoError(t, e.ExtendTime(4))
	require.NoError(t, e.WriteCell(0, 0, 77))
	require.NoError(t, e.CloseDiscard())

	e2, err := OpenReadWrite(path, 0)
	require.NoError(t, err)
	defer e2.Close()

	v, err := e2.ReadCell(0, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(0), v)
}
