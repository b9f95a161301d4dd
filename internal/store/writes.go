package store

import "fmt"

// WriteCell implements write_cell(t, m, v) at the façade.
func (s *Store) WriteCell(t int64, m int, v int32) error {
	if s.virtual != nil {
		return fmt.Errorf("store: write_cell is not supported on a virtual store; write to the new slab directly")
	}
	return s.engine.WriteCell(t, m, v)
}

// WriteCellByDatetime is the datetime flavor of WriteCell.
func (s *Store) WriteCellByDatetime(datetime string, meshKey uint32, v int32) error {
	t, err := s.cal.ToIndex(datetime)
	if err != nil {
		return err
	}
	m, err := s.resolveBounded(meshKey)
	if err != nil {
		return err
	}
	return s.WriteCell(t, m, v)
}

// WriteRowSelection implements write_row_selection(t, M[], v[]) at the
// façade.
func (s *Store) WriteRowSelection(t int64, mesh []int, values []int32) error {
	if s.virtual != nil {
		return fmt.Errorf("store: write_row_selection is not supported on a virtual store; write to the new slab directly")
	}
	return s.engine.WriteRowSelection(t, mesh, values)
}

// WriteRowSelectionByDatetime is the datetime flavor of WriteRowSelection.
func (s *Store) WriteRowSelectionByDatetime(datetime string, meshKeys []uint32, values []int32) error {
	t, err := s.cal.ToIndex(datetime)
	if err != nil {
		return err
	}
	mesh, err := s.resolveAll(meshKeys)
	if err != nil {
		return err
	}
	return s.WriteRowSelection(t, mesh, values)
}

// WriteBulk implements write_bulk(dense_buffer, t0, T_rows, M_cols) at the
// façade (spec C7's bulk-year mode writes through this path).
func (s *Store) WriteBulk(buf []int32, t0 int64, rows, cols int) error {
	if s.virtual != nil {
		return fmt.Errorf("store: write_bulk is not supported on a virtual store; write to the new slab directly")
	}
	return s.engine.WriteBulk(buf, t0, rows, cols)
}
