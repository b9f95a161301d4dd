// Package planner implements the selection planner (spec C6): a pure,
// allocation-light function that picks a read strategy for a requested set
// of mesh indices, given a block-count threshold (NBLK_THRESHOLD).
//
// Grounded on the cost-based access-path selection in
// _examples/other_examples/c41fa43d_xshadowlegendx-cockroach__pkg-ccl-sqlccl-csv.go.go's
// range-partition planning, adapted from range spans to the four mesh-index
// strategies spec §4.4 names.
package planner

import "meshstore/internal/matrix"

// Strategy tags the chosen read/write path (spec §4.4).
type Strategy int

const (
	// Empty is chosen when no mesh indices are requested at all (spec
	// boundary B4: "a selection with |M| == 0 yields an empty result, not
	// an error"). It is the only strategy with nothing to read.
	Empty Strategy = iota
	// SingleCell is chosen when exactly one mesh index is requested.
	SingleCell
	// ContiguousHyperslab is chosen when the indices are strictly
	// ascending and gap-free.
	ContiguousHyperslab
	// ElementList is chosen for irregular point selections with many
	// small blocks.
	ElementList
	// BlockUnion is chosen for selections with few, wide blocks.
	BlockUnion
)

// DefaultBlockThreshold is NBLK_THRESHOLD (spec §4.4 default: 128).
const DefaultBlockThreshold = 128

// Plan is the result of planning a read over mesh indices M for one or
// more time rows. Exactly one of the fields below is populated, per
// Strategy.
type Plan struct {
	Strategy Strategy

	// SingleCell
	Cell int

	// ContiguousHyperslab
	Start int
	Count int

	// ElementList: one flat coordinate list, built and selected once
	// (spec §9's ambiguity resolution — never a per-chunk select-then-OR
	// loop).
	Coords []int

	// BlockUnion: ascending-by-one runs as (dcol0, mcol0, ncols) triples.
	Blocks []matrix.Block
}

// Compute picks a strategy for mesh index list m, per spec §4.4's four
// strategies, tie-broken deterministically in the listed order. threshold
// is NBLK_THRESHOLD; callers pass planner.DefaultBlockThreshold unless a
// store overrides it.
func Compute(m []int, threshold int) Plan {
	if len(m) == 0 {
		return Plan{Strategy: Empty}
	}
	if len(m) == 1 {
		return Plan{Strategy: SingleCell, Cell: m[0]}
	}

	blocks := blocksOf(m)

	if isContiguousAscending(m) {
		return Plan{Strategy: ContiguousHyperslab, Start: m[0], Count: len(m)}
	}

	if len(blocks) > threshold {
		return Plan{Strategy: ElementList, Coords: append([]int(nil), m...)}
	}

	mb := make([]matrix.Block, 0, len(blocks))
	destCol := 0
	for _, b := range blocks {
		mb = append(mb, matrix.Block{DCol0: b.start, MCol0: destCol, NCols: b.count})
		destCol += b.count
	}
	return Plan{Strategy: BlockUnion, Blocks: mb}
}

// isContiguousAscending reports whether m is strictly ascending and
// gap-free: m[i+1] == m[i]+1 for every i.
func isContiguousAscending(m []int) bool {
	for i := 1; i < len(m); i++ {
		if m[i] != m[i-1]+1 {
			return false
		}
	}
	return true
}

type block struct {
	start int
	count int
}

// blocksOf partitions m into its maximal ascending-by-one runs, in the
// order they appear in m (spec §4.4: "maximal ascending-by-one runs").
func blocksOf(m []int) []block {
	if len(m) == 0 {
		return nil
	}
	blocks := []block{{start: m[0], count: 1}}
	for i := 1; i < len(m); i++ {
		last := &blocks[len(blocks)-1]
		if m[i] == last.start+last.count {
			last.count++
			continue
		}
		blocks = append(blocks, block{start: m[i], count: 1})
	}
	return blocks
}
