package store

import (
	"errors"
	"fmt"

	"meshstore/internal/matrix"
	"meshstore/internal/meshid"
	"meshstore/internal/planner"
)

// ErrMeshNotFound is returned when a mesh key does not resolve to a known
// dense index (spec C1: "a missing-key report is the caller's
// responsibility").
var ErrMeshNotFound = errors.New("store: mesh key not found")

// resolveBounded resolves a mesh key and rejects it unless the resulting
// index is within [0, N) for this opened store (spec §4.8's bounds
// policy, parameterized on N rather than a hard-coded constant).
func (s *Store) resolveBounded(meshKey uint32) (int, error) {
	idx := s.resolver.Resolve(meshKey)
	if idx == meshid.NotFound {
		return 0, fmt.Errorf("%w: key %d", ErrMeshNotFound, meshKey)
	}
	if idx >= s.N() {
		return 0, fmt.Errorf("store: resolved index %d out of bounds [0, %d)", idx, s.N())
	}
	return idx, nil
}

// ReadCell implements read_cell(t, m) -> v at the façade, by hour-index.
func (s *Store) ReadCell(t int64, m int) (int32, error) {
	if s.virtual != nil {
		return s.virtual.ReadCell(t, m)
	}
	return s.engine.ReadCell(t, m)
}

// ReadCellByDatetime is the datetime flavor of ReadCell: it converts
// datetime through C2 using the store's epoch before reading.
func (s *Store) ReadCellByDatetime(datetime string, meshKey uint32) (int32, error) {
	t, err := s.cal.ToIndex(datetime)
	if err != nil {
		return 0, err
	}
	m, err := s.resolveBounded(meshKey)
	if err != nil {
		return 0, err
	}
	return s.ReadCell(t, m)
}

// ReadRowSelection implements read_row_selection(t, M[]) -> v[] (spec C5),
// routed through the selection planner (C6): the plan picks among
// single-cell, contiguous-hyperslab, element-list, and block-union
// strategies before the matrix engine is touched (spec data flow:
// "selection -> C6 plan -> C5 read").
func (s *Store) ReadRowSelection(t int64, mesh []int) ([]int32, error) {
	if s.virtual != nil {
		return s.virtual.ReadRowSelection(t, mesh)
	}

	plan := planner.Compute(mesh, planner.DefaultBlockThreshold)
	switch plan.Strategy {
	case planner.Empty:
		return []int32{}, nil
	case planner.SingleCell:
		v, err := s.engine.ReadCell(t, plan.Cell)
		if err != nil {
			return nil, err
		}
		return []int32{v}, nil
	case planner.BlockUnion:
		width := 0
		for _, b := range plan.Blocks {
			width += b.NCols
		}
		return s.engine.ReadBlockUnion(t, 1, plan.Blocks, width)
	case planner.ContiguousHyperslab:
		out := make([]int, plan.Count)
		for i := range out {
			out[i] = plan.Start + i
		}
		return s.engine.ReadRowSelection(t, out)
	default: // ElementList
		return s.engine.ReadRowSelection(t, plan.Coords)
	}
}

// ReadRowSelectionByDatetime is the datetime flavor of ReadRowSelection,
// resolving mesh keys through C1 with the façade's bounds policy.
func (s *Store) ReadRowSelectionByDatetime(datetime string, meshKeys []uint32) ([]int32, error) {
	t, err := s.cal.ToIndex(datetime)
	if err != nil {
		return nil, err
	}
	mesh, err := s.resolveAll(meshKeys)
	if err != nil {
		return nil, err
	}
	return s.ReadRowSelection(t, mesh)
}

func (s *Store) resolveAll(meshKeys []uint32) ([]int, error) {
	mesh := make([]int, len(meshKeys))
	for i, k := range meshKeys {
		idx, err := s.resolveBounded(k)
		if err != nil {
			return nil, err
		}
		mesh[i] = idx
	}
	return mesh, nil
}

// ReadColumnRange implements read_column_range(t0, t1, m) -> v[t1-t0+1].
func (s *Store) ReadColumnRange(t0, t1 int64, m int) ([]int32, error) {
	if s.virtual != nil {
		return s.virtual.ReadColumnRange(t0, t1, m)
	}
	return s.engine.ReadColumnRange(t0, t1, m)
}

// ReadColumnRangeByDatetime is the datetime flavor of ReadColumnRange.
func (s *Store) ReadColumnRangeByDatetime(start, end string, meshKey uint32) ([]int32, error) {
	t0, err := s.cal.ToIndex(start)
	if err != nil {
		return nil, err
	}
	t1, err := s.cal.ToIndex(end)
	if err != nil {
		return nil, err
	}
	m, err := s.resolveBounded(meshKey)
	if err != nil {
		return nil, err
	}
	return s.ReadColumnRange(t0, t1, m)
}

// ReadBlockUnion implements read_block_union (spec C5) directly, for
// callers that have already planned their own block set.
func (s *Store) ReadBlockUnion(t0 int64, nrows int, blocks []matrix.Block, destWidth int) ([]int32, error) {
	if s.virtual != nil {
		return nil, fmt.Errorf("store: read_block_union is not supported on a virtual store")
	}
	return s.engine.ReadBlockUnion(t0, nrows, blocks, destWidth)
}
