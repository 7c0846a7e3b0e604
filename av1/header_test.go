package av1

import (
	"testing"

	"github.com/av1dec/go-av1/av1/bitio"
	"github.com/stretchr/testify/assert"
)

func TestRelativeDist(t *testing.T) {
	s := &sequenceHeader{enable_order_hint: true, order_hint_bits: 7}

	assert.Equal(t, 0, s.relativeDist(5, 5))
	assert.Equal(t, 3, s.relativeDist(8, 5))
	assert.Equal(t, -3, s.relativeDist(5, 8))

	// 126 precedes 2 across the 7-bit wraparound.
	assert.Equal(t, -4, s.relativeDist(126, 2))
	assert.Equal(t, 4, s.relativeDist(2, 126))

	// The halfway point is the most-distant past.
	assert.Equal(t, -64, s.relativeDist(64, 0))

	s.enable_order_hint = false
	assert.Equal(t, 0, s.relativeDist(8, 5))
}

func TestComputeImageSize(t *testing.T) {
	h := &frameHeader{width: 64, height: 64}
	h.computeImageSize()
	assert.Equal(t, 16, h.mi_cols)
	assert.Equal(t, 16, h.mi_rows)

	// Dimensions round up to 8-pixel multiples.
	h = &frameHeader{width: 65, height: 1}
	h.computeImageSize()
	assert.Equal(t, 18, h.mi_cols)
	assert.Equal(t, 2, h.mi_rows)
}

func TestSuperresScaledWidth(t *testing.T) {
	d := &Decoder{seq: &sequenceHeader{enable_superres: true}}

	// use_superres=1, coded_denom=7 (denominator 16/8 halves the
	// width, rounding to nearest).
	r := bitio.NewReader([]byte{0xf0})
	h := &frameHeader{width: 130}
	d.parseSuperres(r, h)
	assert.Equal(t, 16, h.superres_denom)
	assert.Equal(t, 130, h.upscaled_width)
	assert.Equal(t, 65, h.width)

	// use_superres=0 keeps the coded width.
	r = bitio.NewReader([]byte{0x00})
	h = &frameHeader{width: 130}
	d.parseSuperres(r, h)
	assert.Equal(t, superresNum, h.superres_denom)
	assert.Equal(t, 130, h.width)
}
