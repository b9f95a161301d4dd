package calendar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToIndexAndFromIndexRoundTrip(t *testing.T) {
	c, err := New("2016-01-01 00:00:00")
	require.NoError(t, err)

	for _, i := range []int64{0, 1, 2, 24, 8783, 100000} {
		s := c.FromIndex(i)
		got, err := c.ToIndex(s)
		require.NoError(t, err)
		assert.Equal(t, i, got)
	}
}

func TestToIndexRejectsBeforeEpoch(t *testing.T) {
	c, err := New("2016-01-01 00:00:00")
	require.NoError(t, err)

	_, err = c.ToIndex("2015-12-31 23:00:00")
	assert.ErrorIs(t, err, ErrBeforeEpoch)
}

func TestToIndexFields(t *testing.T) {
	c, err := New("2016-01-01 00:00:00")
	require.NoError(t, err)

	idx, err := c.ToIndexFields("20160101", "0100")
	require.NoError(t, err)
	assert.Equal(t, int64(1), idx)

	idx, err = c.ToIndexFields("20160101", "0200")
	require.NoError(t, err)
	assert.Equal(t, int64(2), idx)
}

func TestRowInYear(t *testing.T) {
	year, row, err := RowInYear("20160101", "0000")
	require.NoError(t, err)
	assert.Equal(t, 2016, year)
	assert.Equal(t, 0, row)

	year, row, err = RowInYear("20161231", "2300")
	require.NoError(t, err)
	assert.Equal(t, 2016, year)
	assert.Equal(t, HoursInYear(2016)-1, row)
}

func TestHoursInYear(t *testing.T) {
	assert.Equal(t, 8784, HoursInYear(2016))
	assert.Equal(t, 8760, HoursInYear(2017))
	assert.Equal(t, 8760, HoursInYear(1900))
	assert.Equal(t, 8784, HoursInYear(2000))
}

func TestParseFieldsRejectsMalformed(t *testing.T) {
	_, err := ParseFields("201601", "0100")
	assert.Error(t, err)
	_, err = ParseFields("20160101", "100")
	assert.Error(t, err)
}
