// Package matrix implements the chunked-matrix access engine (spec C5): the
// on-disk two-dimensional int32 array, tiled into CHUNK_T x CHUNK_M chunks,
// with an in-memory chunk cache sitting between the engine and the file.
//
// Because N and the chunk geometry are fixed for the life of a store (spec
// I1), the number of chunk columns is fixed at creation time too, which
// lets every chunk's file offset be computed directly from its (row, col)
// coordinates — the same implicit, un-indexed chunk layout HDF5 uses for
// chunked-but-unfiltered datasets, grounded here on the fixed-geometry
// record layout in
// _examples/other_examples/96a0a4bd_dolthub-dolt__go-store-nbs-table.go.go.
// Only the time axis grows, by appending further chunk rows past the
// current file length; reads past the physical end of file return the
// zero fill value (spec: "default value is zero") rather than erroring.
package matrix

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/dgraph-io/ristretto"
)

// Geometry is the fixed chunk tiling (spec §3, "CHUNK_T x CHUNK_M").
type Geometry struct {
	ChunkT int
	ChunkM int
}

// DefaultGeometry is the spec's standard configuration: one leap-year of
// hours by 16 mesh columns.
var DefaultGeometry = Geometry{ChunkT: 8784, ChunkM: 16}

// DefaultCacheBytes is the chunk read-cache's cost budget used when a
// caller passes cacheBytes <= 0 (spec §4.3's ~32MiB default).
const DefaultCacheBytes int64 = 32 << 20

const (
	magic      = "MESHMTRX"
	version    = 1
	headerSize = 64
	epochField = 32
)

var (
	// ErrBadMagic is returned when opening a file that is not a meshstore matrix file.
	ErrBadMagic = errors.New("matrix: not a meshstore matrix file")
	// ErrBadIndex is returned for an out-of-range row or column index.
	ErrBadIndex = errors.New("matrix: index out of range")
	// ErrShrink is returned by ExtendTime when newT does not grow the time axis.
	ErrShrink = errors.New("matrix: extend_time requires newT > current T")
	// ErrReadOnly is returned by a write operation on a read-only handle.
	ErrReadOnly = errors.New("matrix: handle is read-only")
)

// Block is one (dcol0, mcol0, ncols) triple of a block-union read/write
// request (spec C6's block-union strategy, spec C5's read_block_union).
type Block struct {
	DCol0 int // starting file mesh-column
	MCol0 int // starting destination buffer column
	NCols int // width of this contiguous run
}

// Engine is one open handle on a store's matrix object. A read-write
// handle must not be shared by multiple writer goroutines (spec §4.3);
// read-only handles may be shared freely.
type Engine struct {
	f        *os.File
	readonly bool

	mu            sync.RWMutex
	geometry      Geometry
	n             int
	t             int64
	epoch         string
	chunksPerRow  int64
	chunkBytes    int64

	cache *ristretto.Cache
	dirty map[chunkKey][]int32
}

type chunkKey struct {
	row int64
	col int64
}

// Create initializes a new store file with the given mesh cardinality,
// chunk geometry, and epoch attribute (spec I4: "written at store-creation
// time and never mutated"). cacheBytes bounds the chunk read-cache's cost
// budget (spec §4.3); cacheBytes <= 0 applies DefaultCacheBytes.
func Create(path string, n int, geometry Geometry, epoch string, cacheBytes int64) (*Engine, error) {
	if n <= 0 {
		return nil, fmt.Errorf("matrix: mesh cardinality must be positive")
	}
	if len(epoch) >= epochField {
		return nil, fmt.Errorf("matrix: epoch string too long for fixed header field")
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("matrix: create %s: %w", path, err)
	}
	e, err := newEngine(f, false, geometry, n, 0, epoch, cacheBytes)
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := e.writeHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return e, nil
}

// OpenReadWrite opens an existing store file for reads and writes.
// cacheBytes bounds the chunk read-cache's cost budget; cacheBytes <= 0
// applies DefaultCacheBytes.
func OpenReadWrite(path string, cacheBytes int64) (*Engine, error) {
	return open(path, false, cacheBytes)
}

// OpenReadOnly opens an existing store file for reads only; writes return
// ErrReadOnly. cacheBytes bounds the chunk read-cache's cost budget;
// cacheBytes <= 0 applies DefaultCacheBytes.
func OpenReadOnly(path string, cacheBytes int64) (*Engine, error) {
	return open(path, true, cacheBytes)
}

func open(path string, readonly bool, cacheBytes int64) (*Engine, error) {
	flag := os.O_RDWR
	if readonly {
		flag = os.O_RDONLY
	}
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, fmt.Errorf("matrix: open %s: %w", path, err)
	}
	hdr := make([]byte, headerSize)
	if _, err := f.ReadAt(hdr, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("matrix: read header: %w", err)
	}
	if string(hdr[0:8]) != magic {
		f.Close()
		return nil, ErrBadMagic
	}
	n := int(binary.LittleEndian.Uint32(hdr[12:16]))
	chunkT := int(binary.LittleEndian.Uint32(hdr[16:20]))
	chunkM := int(binary.LittleEndian.Uint32(hdr[20:24]))
	t := int64(binary.LittleEndian.Uint64(hdr[24:32]))
	epochLen := int(binary.LittleEndian.Uint32(hdr[32:36]))
	epoch := string(hdr[36 : 36+epochLen])

	e, err := newEngine(f, readonly, Geometry{ChunkT: chunkT, ChunkM: chunkM}, n, t, epoch, cacheBytes)
	if err != nil {
		f.Close()
		return nil, err
	}
	return e, nil
}

func newEngine(f *os.File, readonly bool, geometry Geometry, n int, t int64, epoch string, cacheBytes int64) (*Engine, error) {
	if geometry.ChunkT <= 0 || geometry.ChunkM <= 0 {
		return nil, fmt.Errorf("matrix: invalid chunk geometry %+v", geometry)
	}
	if cacheBytes <= 0 {
		cacheBytes = DefaultCacheBytes
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1_000_000,
		MaxCost:     cacheBytes,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("matrix: new chunk cache: %w", err)
	}
	chunksPerRow := int64(ceilDiv(n, geometry.ChunkM))
	return &Engine{
		f:            f,
		readonly:     readonly,
		geometry:     geometry,
		n:            n,
		t:            t,
		epoch:        epoch,
		chunksPerRow: chunksPerRow,
		chunkBytes:   int64(geometry.ChunkT*geometry.ChunkM) * 4,
		cache:        cache,
		dirty:        make(map[chunkKey][]int32),
	}, nil
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func (e *Engine) writeHeader() error {
	hdr := make([]byte, headerSize)
	copy(hdr[0:8], magic)
	binary.LittleEndian.PutUint32(hdr[8:12], version)
	binary.LittleEndian.PutUint32(hdr[12:16], uint32(e.n))
	binary.LittleEndian.PutUint32(hdr[16:20], uint32(e.geometry.ChunkT))
	binary.LittleEndian.PutUint32(hdr[20:24], uint32(e.geometry.ChunkM))
	binary.LittleEndian.PutUint64(hdr[24:32], uint64(e.t))
	binary.LittleEndian.PutUint32(hdr[32:36], uint32(len(e.epoch)))
	copy(hdr[36:36+len(e.epoch)], e.epoch)
	_, err := e.f.WriteAt(hdr, 0)
	return err
}

// Dimensions reports (T, N, ChunkT, ChunkM, epoch) for introspection
// (spec C5's get_dimensions, surfaced at the façade as S4.1).
func (e *Engine) Dimensions() (t int64, n int, geometry Geometry, epoch string) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.t, e.n, e.geometry, e.epoch
}

// N returns the store's mesh cardinality.
func (e *Engine) N() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.n
}

// CacheMetrics exposes the chunk cache's hit/miss counters (S4.4).
func (e *Engine) CacheMetrics() *ristretto.Metrics {
	return e.cache.Metrics
}

func (e *Engine) checkBounds(t int64, m int) error {
	if t < 0 || t >= e.t {
		return fmt.Errorf("%w: time index %d not in [0, %d)", ErrBadIndex, t, e.t)
	}
	if m < 0 || m >= e.n {
		return fmt.Errorf("%w: mesh index %d not in [0, %d)", ErrBadIndex, m, e.n)
	}
	return nil
}

func (e *Engine) chunkOffset(row, col int64) int64 {
	return headerSize + (row*e.chunksPerRow+col)*e.chunkBytes
}

// getChunk returns the chunk at (row, col), checking dirty entries, then
// the read cache, then the backing file; chunks past the physical end of
// file are synthesized as zero-filled (spec: unwritten cells default 0).
func (e *Engine) getChunk(row, col int64) ([]int32, error) {
	key := chunkKey{row, col}
	if d, ok := e.dirty[key]; ok {
		return d, nil
	}
	if v, ok := e.cache.Get(key); ok {
		return v.([]int32), nil
	}

	cells := e.geometry.ChunkT * e.geometry.ChunkM
	data := make([]int32, cells)

	off := e.chunkOffset(row, col)
	info, err := e.f.Stat()
	if err != nil {
		return nil, fmt.Errorf("matrix: stat backing file: %w", err)
	}
	if off < info.Size() {
		raw := make([]byte, e.chunkBytes)
		n, err := e.f.ReadAt(raw, off)
		if err != nil && n == 0 {
			return nil, fmt.Errorf("matrix: read chunk (%d,%d): %w", row, col, err)
		}
		buf := bytes.NewReader(raw)
		for i := 0; i < cells; i++ {
			var v int32
			if err := binary.Read(buf, binary.LittleEndian, &v); err != nil {
				break
			}
			data[i] = v
		}
	}

	e.cache.Set(key, data, e.chunkBytes)
	return data, nil
}

func (e *Engine) markDirty(row, col int64, data []int32) {
	key := chunkKey{row, col}
	e.dirty[key] = data
}

func (e *Engine) localIndex(t int64, m int) (row, col int64, idx int) {
	row = t / int64(e.geometry.ChunkT)
	localT := int(t % int64(e.geometry.ChunkT))
	col = int64(m) / int64(e.geometry.ChunkM)
	localM := m % e.geometry.ChunkM
	idx = localT*e.geometry.ChunkM + localM
	return
}
