// Package compose implements the virtual composition layer (spec C8): a
// logical matrix V[t, m] backed by two physical matrices, a historical slab
// H and a new slab N', joined at a split point T_h (spec §4.7, invariant
// I5).
//
// Grounded on the two-tier hot/cold store composition in
// _examples/other_examples/96a0a4bd_dolthub-dolt__go-store-nbs-table.go.go,
// adapted from content-addressed table composition to the fixed split-point
// time-axis join spec §4.7 describes.
package compose

import (
	"fmt"

	"meshstore/internal/matrix"
)

// Virtual is a logical array composed of a historical slab and a new slab
// joined at splitT (spec §4.7): for t < splitT, V[t,m] = H[t,m] (zero where
// m >= N_h); for t >= splitT, V[t,m] = N'[t-splitT,m] (zero where m >= N_n).
type Virtual struct {
	historical *matrix.Engine
	current    *matrix.Engine
	splitT     int64
}

// New composes historical and current into a Virtual array, split at
// splitT. The epoch attribute of historical is authoritative for the
// composed view (spec I5: "inherits the epoch attribute of the historical
// slab").
func New(historical, current *matrix.Engine, splitT int64) (*Virtual, error) {
	if splitT < 0 {
		return nil, fmt.Errorf("compose: split point must be non-negative, got %d", splitT)
	}
	return &Virtual{historical: historical, current: current, splitT: splitT}, nil
}

// Dimensions reports the composed view's (T, N, epoch): T is the current
// slab's logical extent plus the split offset, N is max(N_h, N_n) (spec
// I5), and the epoch is the historical slab's.
func (v *Virtual) Dimensions() (t int64, n int, epoch string) {
	_, nh, _, epoch := v.historical.Dimensions()
	currentT, nn, _, _ := v.current.Dimensions()
	t = v.splitT + currentT
	n = nh
	if nn > n {
		n = nn
	}
	return t, n, epoch
}

// ReadCell implements V[t, m] (spec §4.7). Reads past either slab's mesh
// width return zero, per spec's "(zero where m >= N_h/N_n)".
func (v *Virtual) ReadCell(t int64, m int) (int32, error) {
	if t < 0 {
		return 0, fmt.Errorf("compose: negative time index %d", t)
	}
	if t < v.splitT {
		_, nh, _, _ := v.historical.Dimensions()
		if m >= nh {
			return 0, nil
		}
		return v.historical.ReadCell(t, m)
	}
	_, nn, _, _ := v.current.Dimensions()
	if m >= nn {
		return 0, nil
	}
	return v.current.ReadCell(t-v.splitT, m)
}

// ReadRowSelection implements a row selection over the composed view,
// routing each mesh index to whichever slab t falls in.
func (v *Virtual) ReadRowSelection(t int64, mesh []int) ([]int32, error) {
	out := make([]int32, len(mesh))
	for i, m := range mesh {
		val, err := v.ReadCell(t, m)
		if err != nil {
			return nil, err
		}
		out[i] = val
	}
	return out, nil
}

// ReadColumnRange implements a column range over the composed view; the
// range may straddle the split point, in which case rows on either side are
// served from their respective slab.
func (v *Virtual) ReadColumnRange(t0, t1 int64, m int) ([]int32, error) {
	if t1 < t0 {
		return nil, fmt.Errorf("compose: t1 %d < t0 %d", t1, t0)
	}
	out := make([]int32, t1-t0+1)
	for t := t0; t <= t1; t++ {
		v2, err := v.ReadCell(t, m)
		if err != nil {
			return nil, err
		}
		out[t-t0] = v2
	}
	return out, nil
}

// SplitT reports the configured split point.
func (v *Virtual) SplitT() int64 {
	return v.splitT
}
