package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmptySelection(t *testing.T) {
	p := Compute(nil, DefaultBlockThreshold)
	assert.Equal(t, Empty, p.Strategy)
	assert.Empty(t, p.Coords)
	assert.Empty(t, p.Blocks)
}

func TestSingleCell(t *testing.T) {
	p := Compute([]int{42}, DefaultBlockThreshold)
	assert.Equal(t, SingleCell, p.Strategy)
	assert.Equal(t, 42, p.Cell)
}

func TestContiguousHyperslab(t *testing.T) {
	p := Compute([]int{5, 6, 7, 8}, DefaultBlockThreshold)
	assert.Equal(t, ContiguousHyperslab, p.Strategy)
	assert.Equal(t, 5, p.Start)
	assert.Equal(t, 4, p.Count)
}

func TestElementListAboveThreshold(t *testing.T) {
	// Every index its own block (alternating gaps) forces many blocks.
	m := make([]int, 10)
	for i := range m {
		m[i] = i * 2
	}
	p := Compute(m, 5)
	assert.Equal(t, ElementList, p.Strategy)
	assert.Equal(t, m, p.Coords)
}

func TestBlockUnionBelowThreshold(t *testing.T) {
	m := []int{0, 1, 2, 10, 11, 20}
	p := Compute(m, DefaultBlockThreshold)
	assert.Equal(t, BlockUnion, p.Strategy)
	assert.Equal(t, []int{0, 10, 20}, []int{p.Blocks[0].DCol0, p.Blocks[1].DCol0, p.Blocks[2].DCol0})
	assert.Equal(t, []int{3, 2, 1}, []int{p.Blocks[0].NCols, p.Blocks[1].NCols, p.Blocks[2].NCols})
	assert.Equal(t, []int{0, 3, 5}, []int{p.Blocks[0].MCol0, p.Blocks[1].MCol0, p.Blocks[2].MCol0})
}

func TestUnsortedNonContiguousIsNotHyperslab(t *testing.T) {
	m := []int{5, 3, 8}
	p := Compute(m, DefaultBlockThreshold)
	assert.NotEqual(t, ContiguousHyperslab, p.Strategy)
}

func TestBlocksOfSingleRun(t *testing.T) {
	blocks := blocksOf([]int{1, 2, 3})
	assert.Equal(t, []block{{start: 1, count: 3}}, blocks)
}
