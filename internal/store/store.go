// Package store implements the store façade (spec C9): the single entry
// point an ingestion CLI or a read CLI uses, wiring the mesh-ID resolver
// (C1), time calendar (C2), chunked-matrix engine (C5), and selection
// planner (C6) — and, for stores with a historical/new-slab split, the
// virtual composition layer (C8) — behind one handle.
//
// A store's objects (spec §6: population_data, meshid_list, cmph_data,
// optionally population_new) are realized as a small directory of named
// files rather than one physical container blob — the same "logical
// container as a set of named objects" shape the teacher's
// internal/objectstore package uses for its backends, just rooted at a
// local directory instead of a bucket. meta.yaml (gopkg.in/yaml.v3) carries
// the small amount of container-level metadata (the exception key, and the
// virtual split point when present) spec §6 would otherwise bury in a
// container TOC.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"meshstore/internal/calendar"
	"meshstore/internal/compose"
	"meshstore/internal/matrix"
	"meshstore/internal/meshid"
)

const (
	populationDataFile = "population_data.bin"
	populationNewFile  = "population_new.bin"
	meshidListFile     = "meshid_list.bin"
	cmphDataFile       = "cmph_data.bin"
	metaFile           = "meta.yaml"
)

// meta is the small amount of container-level metadata persisted alongside
// the matrix and resolver objects.
type meta struct {
	ExceptionKey uint32 `yaml:"exception_key"`
	Virtual      bool   `yaml:"virtual"`
	SplitT       int64  `yaml:"split_t,omitempty"`
}

// Store is one open store handle (spec C9). Read-write handles must not be
// shared across writer goroutines (spec §4.3, inherited from C5).
type Store struct {
	dir      string
	readonly bool

	resolver   *meshid.Resolver
	cal        *calendar.Calendar
	engine     *matrix.Engine
	cacheBytes int64            // carried so MakeVirtual opens the new slab with the same budget
	virtual    *compose.Virtual // non-nil only for a virtual store
	newSlab    *matrix.Engine   // non-nil only for a virtual store
}

// Create initializes a new store directory with the given mesh universe,
// chunk geometry, and epoch attribute (spec I4). cacheBytes bounds the
// matrix engine's chunk read-cache (spec §4.3); cacheBytes <= 0 applies
// matrix.DefaultCacheBytes.
func Create(dir string, universe []uint32, exceptionKey uint32, geometry matrix.Geometry, epoch string, cacheBytes int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create dir %s: %w", dir, err)
	}

	resolver, err := meshid.Build(universe, exceptionKey)
	if err != nil {
		return nil, fmt.Errorf("store: build resolver: %w", err)
	}
	if err := writeMeshidList(filepath.Join(dir, meshidListFile), universe); err != nil {
		return nil, err
	}
	blob, err := resolver.MarshalToBytes()
	if err != nil {
		return nil, fmt.Errorf("store: marshal cmph_data: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, cmphDataFile), blob, 0o644); err != nil {
		return nil, fmt.Errorf("store: write cmph_data: %w", err)
	}

	engine, err := matrix.Create(filepath.Join(dir, populationDataFile), len(universe), geometry, epoch, cacheBytes)
	if err != nil {
		return nil, fmt.Errorf("store: create matrix: %w", err)
	}

	cal, err := calendar.New(epoch)
	if err != nil {
		engine.Close()
		return nil, err
	}

	m := meta{ExceptionKey: exceptionKey}
	if err := writeMeta(dir, m); err != nil {
		engine.Close()
		return nil, err
	}

	return &Store{dir: dir, resolver: resolver, cal: cal, engine: engine, cacheBytes: cacheBytes}, nil
}

// OpenReadWrite opens an existing store directory for reads and writes.
// cacheBytes bounds the matrix engine's chunk read-cache; cacheBytes <= 0
// applies matrix.DefaultCacheBytes.
func OpenReadWrite(dir string, cacheBytes int64) (*Store, error) {
	return open(dir, false, cacheBytes)
}

// OpenReadOnly opens an existing store directory for reads only.
// cacheBytes bounds the matrix engine's chunk read-cache; cacheBytes <= 0
// applies matrix.DefaultCacheBytes.
func OpenReadOnly(dir string, cacheBytes int64) (*Store, error) {
	return open(dir, true, cacheBytes)
}

func open(dir string, readonly bool, cacheBytes int64) (*Store, error) {
	m, err := readMeta(dir)
	if err != nil {
		return nil, err
	}
	universe, err := readMeshidList(filepath.Join(dir, meshidListFile))
	if err != nil {
		return nil, err
	}
	blob, err := os.ReadFile(filepath.Join(dir, cmphDataFile))
	if err != nil {
		return nil, fmt.Errorf("store: read cmph_data: %w", err)
	}
	resolver, err := meshid.Unmarshal(universe, m.ExceptionKey, blob)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	openEngine := matrix.OpenReadWrite
	if readonly {
		openEngine = matrix.OpenReadOnly
	}
	engine, err := openEngine(filepath.Join(dir, populationDataFile), cacheBytes)
	if err != nil {
		return nil, fmt.Errorf("store: open matrix: %w", err)
	}

	_, _, _, epoch := engine.Dimensions()
	cal, err := calendar.New(epoch)
	if err != nil {
		engine.Close()
		return nil, err
	}

	s := &Store{dir: dir, readonly: readonly, resolver: resolver, cal: cal, engine: engine, cacheBytes: cacheBytes}

	if m.Virtual {
		newSlab, err := openEngine(filepath.Join(dir, populationNewFile), cacheBytes)
		if err != nil {
			engine.Close()
			return nil, fmt.Errorf("store: open population_new: %w", err)
		}
		v, err := compose.New(engine, newSlab, m.SplitT)
		if err != nil {
			engine.Close()
			newSlab.Close()
			return nil, err
		}
		s.newSlab = newSlab
		s.virtual = v
	}

	return s, nil
}

// MakeVirtual declares this store's matrix as the historical slab of a
// virtual composition backed by newSlabDir's matrix (spec §4.7: "the new
// slab may be either an external file ... or a self-reference"). The
// mapping is fixed at this call and read-only thereafter.
func (s *Store) MakeVirtual(newSlabDir string, splitT int64) error {
	if s.readonly {
		return matrix.ErrReadOnly
	}
	newEngine, err := matrix.OpenReadWrite(filepath.Join(newSlabDir, populationDataFile), s.cacheBytes)
	if err != nil {
		return fmt.Errorf("store: open new-slab matrix: %w", err)
	}
	v, err := compose.New(s.engine, newEngine, splitT)
	if err != nil {
		newEngine.Close()
		return err
	}
	s.newSlab = newEngine
	s.virtual = v

	m, err := readMeta(s.dir)
	if err != nil {
		return err
	}
	m.Virtual = true
	m.SplitT = splitT
	return writeMeta(s.dir, m)
}

// Dimensions returns (T, N, geometry, epoch) for the opened store (S4.1),
// routed through the virtual view when one is configured.
func (s *Store) Dimensions() (t int64, n int, geometry matrix.Geometry, epoch string) {
	if s.virtual != nil {
		vt, vn, vEpoch := s.virtual.Dimensions()
		_, _, geo, _ := s.engine.Dimensions()
		return vt, vn, geo, vEpoch
	}
	return s.engine.Dimensions()
}

// N returns the façade's bound for resolved indices: the opened store's
// actual mesh cardinality, never the literal constant a prior source
// hard-coded (spec §9's bounds-quirk resolution).
func (s *Store) N() int {
	return s.resolver.N()
}

// ExtendTime implements extend_time(new_T) at the façade. For a virtual
// store, new_T is a global index; only the new slab ever grows (spec §4.7:
// the historical slab is read-only once composed), so it is translated to
// the new slab's local time axis.
func (s *Store) ExtendTime(newT int64) error {
	if s.virtual != nil {
		localT := newT - s.virtual.SplitT()
		if localT <= 0 {
			return fmt.Errorf("store: extend_time target %d is within the historical slab (split at %d)", newT, s.virtual.SplitT())
		}
		return s.newSlab.ExtendTime(localT)
	}
	return s.engine.ExtendTime(newT)
}

// Flush implements flush (spec C5/C9).
func (s *Store) Flush() error {
	if err := s.engine.Flush(); err != nil {
		return err
	}
	if s.newSlab != nil {
		return s.newSlab.Flush()
	}
	return nil
}

// Close implements close(ctx) (spec C9).
func (s *Store) Close(ctx context.Context) error {
	var firstErr error
	if s.newSlab != nil {
		if err := s.newSlab.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := s.engine.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func writeMeshidList(path string, universe []uint32) error {
	buf := make([]byte, len(universe)*4)
	for i, k := range universe {
		buf[i*4] = byte(k)
		buf[i*4+1] = byte(k >> 8)
		buf[i*4+2] = byte(k >> 16)
		buf[i*4+3] = byte(k >> 24)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("store: write meshid_list: %w", err)
	}
	return nil
}

func readMeshidList(path string) ([]uint32, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("store: read meshid_list: %w", err)
	}
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("store: meshid_list length %d not a multiple of 4", len(buf))
	}
	universe := make([]uint32, len(buf)/4)
	for i := range universe {
		off := i * 4
		universe[i] = uint32(buf[off]) | uint32(buf[off+1])<<8 | uint32(buf[off+2])<<16 | uint32(buf[off+3])<<24
	}
	return universe, nil
}

func writeMeta(dir string, m meta) error {
	b, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("store: marshal meta: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, metaFile), b, 0o644); err != nil {
		return fmt.Errorf("store: write meta: %w", err)
	}
	return nil
}

func readMeta(dir string) (meta, error) {
	b, err := os.ReadFile(filepath.Join(dir, metaFile))
	if err != nil {
		return meta{}, fmt.Errorf("store: read meta: %w", err)
	}
	var m meta
	if err := yaml.Unmarshal(b, &m); err != nil {
		return meta{}, fmt.Errorf("store: unmarshal meta: %w", err)
	}
	return m, nil
}
