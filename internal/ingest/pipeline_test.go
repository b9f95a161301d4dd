package ingest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshstore/internal/calendar"
	"meshstore/internal/csvsource"
	"meshstore/internal/matrix"
	"meshstore/internal/meshid"
	"meshstore/internal/shardsource"
)

func testUniverse() []uint32 {
	u := make([]uint32, 0, 64)
	for i := 0; i < 64; i++ {
		u = append(u, uint32(362000000+i))
	}
	return u
}

func newTestEngine(t *testing.T, n int) *matrix.Engine {
	t.Helper()
	dir := t.TempDir()
	e, err := matrix.Create(filepath.Join(dir, "store.bin"), n, matrix.Geometry{ChunkT: 24, ChunkM: 8}, "2016-01-01 00:00:00", 0)
	require.NoError(t, err)
	require.NoError(t, e.ExtendTime(1))
	return e
}

func TestStreamingIngestWritesCells(t *testing.T) {
	universe := testUniverse()
	resolver, err := meshid.Build(universe, 0)
	require.NoError(t, err)
	cal, err := calendar.New("2016-01-01 00:00:00")
	require.NoError(t, err)
	engine := newTestEngine(t, len(universe))
	defer engine.Close()

	source := shardsource.NewMemorySource()
	source.Put("shard1.csv", []byte(csvsource.Header+"\n"+
		"20160101,0100,362000000,-1,-1,-1,10\n"+
		"20160101,0200,362000001,-1,-1,-1,20\n"))

	p := New(DefaultConfig(), source, resolver, cal, engine)
	report, err := p.Run(context.Background(), []string{"shard1.csv"})
	require.NoError(t, err)
	require.NoError(t, engine.Flush())

	assert.Equal(t, int64(2), report.RowsProcessed)
	assert.Equal(t, int64(0), report.Errors)

	v, err := engine.ReadCell(1, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(10), v)
	v, err = engine.ReadCell(2, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(20), v)
}

func TestStreamingIngestDropsUnresolvedMeshKey(t *testing.T) {
	universe := testUniverse()
	resolver, err := meshid.Build(universe, 0)
	require.NoError(t, err)
	cal, err := calendar.New("2016-01-01 00:00:00")
	require.NoError(t, err)
	engine := newTestEngine(t, len(universe))
	defer engine.Close()

	source := shardsource.NewMemorySource()
	source.Put("shard1.csv", []byte(csvsource.Header+"\n"+
		"20160101,0100,999999999,-1,-1,-1,10\n"))

	p := New(DefaultConfig(), source, resolver, cal, engine)
	report, err := p.Run(context.Background(), []string{"shard1.csv"})
	require.NoError(t, err)

	assert.Equal(t, int64(0), report.RowsProcessed)
	assert.Equal(t, int64(1), report.Errors)
}

func TestStreamingIngestExtendsTimeAxis(t *testing.T) {
	universe := testUniverse()
	resolver, err := meshid.Build(universe, 0)
	require.NoError(t, err)
	cal, err := calendar.New("2016-01-01 00:00:00")
	require.NoError(t, err)
	engine := newTestEngine(t, len(universe))
	defer engine.Close()

	source := shardsource.NewMemorySource()
	source.Put("shard1.csv", []byte(csvsource.Header+"\n"+
		"20160105,0300,362000002,-1,-1,-1,99\n"))

	p := New(DefaultConfig(), source, resolver, cal, engine)
	_, err = p.Run(context.Background(), []string{"shard1.csv"})
	require.NoError(t, err)

	tt, _, _, _ := engine.Dimensions()
	assert.GreaterOrEqual(t, tt, int64(100))
}

func TestBulkYearIngest(t *testing.T) {
	universe := testUniverse()
	resolver, err := meshid.Build(universe, 0)
	require.NoError(t, err)
	cal, err := calendar.New("2016-01-01 00:00:00")
	require.NoError(t, err)

	dir := t.TempDir()
	engine, err := matrix.Create(filepath.Join(dir, "store.bin"), len(universe), matrix.Geometry{ChunkT: 24, ChunkM: 8}, "2016-01-01 00:00:00", 0)
	require.NoError(t, err)
	require.NoError(t, engine.ExtendTime(1))
	defer engine.Close()

	source := shardsource.NewMemorySource()
	source.Put("shard1.csv", []byte(csvsource.Header+"\n"+
		"20160101,0000,362000000,-1,-1,-1,7\n"+
		"20160101,0100,362000001,-1,-1,-1,8\n"))

	cfg := DefaultConfig()
	cfg.Mode = BulkYear
	p := New(cfg, source, resolver, cal, engine)
	report, err := p.Run(context.Background(), []string{"shard1.csv"})
	require.NoError(t, err)
	assert.Equal(t, "bulk-year", report.Mode)
	assert.Equal(t, int64(2), report.RowsProcessed)

	v, err := engine.ReadCell(0, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(7), v)
	v, err = engine.ReadCell(1, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(8), v)
}

func TestGrowthTarget(t *testing.T) {
	assert.Equal(t, int64(150), growthTarget(100, 10))
	assert.Equal(t, int64(200), growthTarget(100, 100))
}
