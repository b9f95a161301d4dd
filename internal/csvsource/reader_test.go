package csvsource

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAcceptsHeader(t *testing.T) {
	r, err := Open(strings.NewReader(Header + "\n20160101,0100,362257341,-1,-1,-1,100\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, r.LineNumber())
}

func TestOpenRejectsMissingHeader(t *testing.T) {
	_, err := Open(strings.NewReader("20160101,0100,362257341,-1,-1,-1,100\n"))
	assert.ErrorIs(t, err, ErrHeader)
}

func TestOpenRejectsEmptyInput(t *testing.T) {
	_, err := Open(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrHeader)
}

func TestNextParsesRecords(t *testing.T) {
	body := Header + "\n" +
		"20160101,0100,362257341,-1,-1,-1,100\n" +
		"20160101,0200,362257341,-1,-1,-1,250\n"
	r, err := Open(strings.NewReader(body))
	require.NoError(t, err)

	rec, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, Record{
		Date: "20160101", Time: "0100", Area: 362257341,
		Residence: -1, Age: -1, Gender: -1, Population: 100,
	}, rec)
	assert.Equal(t, 2, r.LineNumber())

	rec, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, int32(250), rec.Population)

	_, err = r.Next()
	assert.ErrorIs(t, err, ErrEnd)
}

func TestNextRejectsWrongFieldCount(t *testing.T) {
	body := Header + "\n20160101,0100,362257341,-1,-1,100\n"
	r, err := Open(strings.NewReader(body))
	require.NoError(t, err)

	_, err = r.Next()
	assert.ErrorIs(t, err, ErrRecord)
}

func TestNextRejectsMalformedInteger(t *testing.T) {
	body := Header + "\n20160101,0100,362257341,-1,-1,notanumber,100\n"
	r, err := Open(strings.NewReader(body))
	require.NoError(t, err)

	_, err = r.Next()
	assert.ErrorIs(t, err, ErrRecord)
}

func TestNextRejectsShortDateOrTime(t *testing.T) {
	body := Header + "\n201601,0100,362257341,-1,-1,-1,100\n"
	r, err := Open(strings.NewReader(body))
	require.NoError(t, err)
	_, err = r.Next()
	assert.ErrorIs(t, err, ErrRecord)
}
