package entropy

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDecoderEmpty(t *testing.T) {
	_, err := NewDecoder(nil, true)
	assert.True(t, errors.Is(err, ErrInvalidData))
}

func TestNewCDFUniform(t *testing.T) {
	cdf := NewCDF(4)
	require.Len(t, cdf, 5)
	assert.Equal(t, uint16(ProbTop), cdf[3])
	for i := 0; i < 4; i++ {
		assert.Equal(t, uint16(ProbTop/4), CDFProb(cdf, i), "symbol %d", i)
	}
	assert.Equal(t, uint16(0), cdf[4])
}

func TestAdaptMovesTowardSymbol(t *testing.T) {
	cdf := NewCDF(4)
	before := CDFProb(cdf, 2)
	for i := 0; i < 8; i++ {
		adapt(cdf, 2)
	}
	assert.Greater(t, CDFProb(cdf, 2), before)
	assert.Equal(t, uint16(ProbTop), cdf[3], "total mass preserved")
	assert.Equal(t, uint16(8), cdf[4], "counter advanced")

	// Monotone cumulative entries survive adaptation.
	for i := 1; i < 4; i++ {
		assert.GreaterOrEqual(t, cdf[i], cdf[i-1])
	}
}

func TestDisabledUpdateLeavesCDF(t *testing.T) {
	d, err := NewDecoder([]byte{0x5a, 0xc3, 0x11, 0x22}, false)
	require.NoError(t, err)

	cdf := NewCDF(8)
	want := append([]uint16(nil), cdf...)
	for i := 0; i < 10; i++ {
		sym := d.ReadSymbol(cdf)
		assert.GreaterOrEqual(t, sym, 0)
		assert.Less(t, sym, 8)
	}
	assert.Equal(t, want, cdf)
}

func TestSymbolsInRangeWithUpdates(t *testing.T) {
	d, err := NewDecoder([]byte{0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc}, true)
	require.NoError(t, err)

	cdf := NewCDF(10)
	for i := 0; i < 32; i++ {
		sym := d.ReadSymbol(cdf)
		assert.GreaterOrEqual(t, sym, 0)
		assert.Less(t, sym, 10)
		assert.Equal(t, uint16(ProbTop), cdf[9])
	}
}

func TestLiteralBitsLand(t *testing.T) {
	d, err := NewDecoder([]byte{0xff, 0x00, 0xff, 0x00}, true)
	require.NoError(t, err)

	v := d.ReadLiteral(8)
	assert.LessOrEqual(t, v, uint32(0xff))
	assert.False(t, d.Overread())
}

func TestOverreadFlagSticks(t *testing.T) {
	d, err := NewDecoder([]byte{0x80}, true)
	require.NoError(t, err)

	// One byte cannot feed this many literal bits.
	for i := 0; i < 8; i++ {
		d.ReadLiteral(8)
	}
	assert.True(t, d.Overread())

	d.ReadBit()
	assert.True(t, d.Overread(), "flag never clears")
}

func TestResetCounter(t *testing.T) {
	cdf := NewCDF(4)
	adapt(cdf, 1)
	adapt(cdf, 1)
	dist := append([]uint16(nil), cdf[:4]...)

	ResetCounter(cdf)
	assert.Equal(t, uint16(0), cdf[4])
	assert.Equal(t, dist, cdf[:4], "distribution kept")
}
