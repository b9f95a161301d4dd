package matrix

import (
	"encoding/binary"
	"fmt"
)

// ReadCell implements read_cell(t, m) -> v (spec C5).
func (e *Engine) ReadCell(t int64, m int) (int32, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.checkBounds(t, m); err != nil {
		return 0, err
	}
	row, col, idx := e.localIndex(t, m)
	chunk, err := e.getChunk(row, col)
	if err != nil {
		return 0, err
	}
	return chunk[idx], nil
}

// ReadRowSelection implements read_row_selection(t, M[]) -> v[] (spec C5);
// M may be unsorted and may repeat indices.
func (e *Engine) ReadRowSelection(t int64, mesh []int) ([]int32, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]int32, len(mesh))
	for i, m := range mesh {
		if err := e.checkBounds(t, m); err != nil {
			return nil, err
		}
		row, col, idx := e.localIndex(t, m)
		chunk, err := e.getChunk(row, col)
		if err != nil {
			return nil, err
		}
		out[i] = chunk[idx]
	}
	return out, nil
}

// ReadColumnRange implements read_column_range(t0, t1, m) -> v[t1-t0+1]
// (spec C5), chunk-aware so a single mesh column spanning many chunk rows
// only fetches each chunk once.
func (e *Engine) ReadColumnRange(t0, t1 int64, m int) ([]int32, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if t1 < t0 {
		return nil, fmt.Errorf("%w: t1 %d < t0 %d", ErrBadIndex, t1, t0)
	}
	if err := e.checkBounds(t0, m); err != nil {
		return nil, err
	}
	if err := e.checkBounds(t1, m); err != nil {
		return nil, err
	}

	out := make([]int32, t1-t0+1)
	var cached []int32
	var cachedRow int64 = -1
	for t := t0; t <= t1; t++ {
		row, col, idx := e.localIndex(t, m)
		if cached == nil || row != cachedRow {
			c, err := e.getChunk(row, col)
			if err != nil {
				return nil, err
			}
			cached = c
			cachedRow = row
		}
		out[t-t0] = cached[idx]
	}
	return out, nil
}

// ReadBlockUnion implements read_block_union(t0, nrows, blocks[]) ->
// dense_buffer (spec C5): copies the ncols-wide slab starting at file
// mesh-column dcol0 into the destination at column mcol0, for the row
// window [t0, t0+nrows), for every block, into one row-major buffer of
// width destWidth.
func (e *Engine) ReadBlockUnion(t0 int64, nrows int, blocks []Block, destWidth int) ([]int32, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if nrows <= 0 {
		return nil, fmt.Errorf("matrix: nrows must be positive")
	}
	if err := e.checkBounds(t0, 0); err != nil {
		return nil, err
	}
	if err := e.checkBounds(t0+int64(nrows)-1, 0); err != nil {
		return nil, err
	}

	out := make([]int32, nrows*destWidth)
	for _, b := range blocks {
		for r := 0; r < nrows; r++ {
			t := t0 + int64(r)
			for c := 0; c < b.NCols; c++ {
				m := b.DCol0 + c
				if m < 0 || m >= e.n {
					return nil, fmt.Errorf("%w: block mesh column %d", ErrBadIndex, m)
				}
				row, col, idx := e.localIndex(t, m)
				chunk, err := e.getChunk(row, col)
				if err != nil {
					return nil, err
				}
				out[r*destWidth+b.MCol0+c] = chunk[idx]
			}
		}
	}
	return out, nil
}

// WriteCell implements write_cell(t, m, v) (spec C5).
func (e *Engine) WriteCell(t int64, m int, v int32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.readonly {
		return ErrReadOnly
	}
	if err := e.checkBounds(t, m); err != nil {
		return err
	}
	row, col, idx := e.localIndex(t, m)
	chunk, err := e.getChunk(row, col)
	if err != nil {
		return err
	}
	chunk[idx] = v
	e.markDirty(row, col, chunk)
	return nil
}

// WriteRowSelection implements write_row_selection(t, M[], v[]) (spec C5).
func (e *Engine) WriteRowSelection(t int64, mesh []int, values []int32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.readonly {
		return ErrReadOnly
	}
	if len(mesh) != len(values) {
		return fmt.Errorf("matrix: mesh/value length mismatch: %d vs %d", len(mesh), len(values))
	}
	for i, m := range mesh {
		if err := e.checkBounds(t, m); err != nil {
			return err
		}
		row, col, idx := e.localIndex(t, m)
		chunk, err := e.getChunk(row, col)
		if err != nil {
			return err
		}
		chunk[idx] = values[i]
		e.markDirty(row, col, chunk)
	}
	return nil
}

// WriteBulk implements write_bulk(dense_buffer, t0, T_rows, M_cols) (spec
// C5): buf is a row-major T_rows x N_cols dense buffer written starting at
// time offset t0, spec C7's bulk-year mode.
func (e *Engine) WriteBulk(buf []int32, t0 int64, rows, cols int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.readonly {
		return ErrReadOnly
	}
	if len(buf) != rows*cols {
		return fmt.Errorf("matrix: buffer length %d does not match %d x %d", len(buf), rows, cols)
	}
	if err := e.checkBounds(t0, 0); err != nil {
		return err
	}
	if err := e.checkBounds(t0+int64(rows)-1, 0); err != nil {
		return err
	}
	if cols > e.n {
		return fmt.Errorf("%w: buffer mesh width %d exceeds N %d", ErrBadIndex, cols, e.n)
	}

	for r := 0; r < rows; r++ {
		t := t0 + int64(r)
		for m := 0; m < cols; m++ {
			v := buf[r*cols+m]
			if v == 0 {
				continue
			}
			row, col, idx := e.localIndex(t, m)
			chunk, err := e.getChunk(row, col)
			if err != nil {
				return err
			}
			chunk[idx] = v
			e.markDirty(row, col, chunk)
		}
	}
	return nil
}

// ExtendTime implements extend_time(new_T) (spec C5): grows the logical
// time axis. Newly exposed cells read as zero until written, since
// getChunk synthesizes zero-filled chunks past the physical end of file.
func (e *Engine) ExtendTime(newT int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.readonly {
		return ErrReadOnly
	}
	if newT <= e.t {
		return fmt.Errorf("%w: current %d, requested %d", ErrShrink, e.t, newT)
	}
	e.t = newT
	return e.writeHeader()
}

// Flush implements flush (spec C5): synchronously persists dirty chunks
// and invalidates their read-cache copies.
func (e *Engine) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flushLocked()
}

func (e *Engine) flushLocked() error {
	if e.readonly {
		return nil
	}
	for key, data := range e.dirty {
		off := e.chunkOffset(key.row, key.col)
		raw := make([]byte, 0, e.chunkBytes)
		buf := make([]byte, 4)
		for _, v := range data {
			binary.LittleEndian.PutUint32(buf, uint32(v))
			raw = append(raw, buf...)
		}
		if _, err := e.f.WriteAt(raw, off); err != nil {
			return fmt.Errorf("matrix: flush chunk (%d,%d): %w", key.row, key.col, err)
		}
		e.cache.Del(key)
		delete(e.dirty, key)
	}
	return e.writeHeader()
}

// Close flushes dirty chunks and releases the backing file; the file is
// closed even when the flush fails, and the flush error is returned. A
// caller that wants to discard dirties instead calls CloseDiscard.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	flushErr := e.flushLocked()
	closeErr := e.f.Close()
	e.cache.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// CloseDiscard releases the backing file without flushing dirty chunks
// (spec §7's abort path: "the handle may be closed, which discards those
// dirties").
func (e *Engine) CloseDiscard() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dirty = make(map[chunkKey][]int32)
	err := e.f.Close()
	e.cache.Close()
	return err
}
