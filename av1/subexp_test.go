package av1

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// bitSource feeds a fixed bit string to the subexponential readers.
type bitSource struct {
	bits []uint32
	pos  int
}

func (s *bitSource) ReadBit() uint32 {
	if s.pos >= len(s.bits) {
		return 0
	}
	b := s.bits[s.pos]
	s.pos++
	return b
}

func (s *bitSource) ReadLiteral(n int) uint32 {
	var v uint32
	for i := 0; i < n; i++ {
		v = v<<1 | s.ReadBit()
	}
	return v
}

func TestReadQuniform(t *testing.T) {
	// n=5: l=3, m=3. Values 0..2 use two bits; 3 and 4 use three.
	cases := []struct {
		bits []uint32
		want uint32
	}{
		{[]uint32{0, 0}, 0},
		{[]uint32{0, 1}, 1},
		{[]uint32{1, 0}, 2},
		{[]uint32{1, 1, 0}, 3},
		{[]uint32{1, 1, 1}, 4},
	}
	for _, c := range cases {
		src := &bitSource{bits: c.bits}
		assert.Equal(t, c.want, readQuniform(src, 5))
		assert.Equal(t, len(c.bits), src.pos)
	}

	assert.Equal(t, uint32(0), readQuniform(&bitSource{}, 1))
}

func TestReadSubexpFinSmallRange(t *testing.T) {
	// n <= 3<<k collapses straight to the quasi-uniform code.
	src := &bitSource{bits: []uint32{1}}
	assert.Equal(t, uint32(1), readSubexpFin(src, 2, 0))
}

func TestReadSubexpFinEscalates(t *testing.T) {
	// n=16, k=1: first interval is 2 wide, a one bit escalates.
	src := &bitSource{bits: []uint32{0, 1}}
	assert.Equal(t, uint32(1), readSubexpFin(src, 16, 1))

	src = &bitSource{bits: []uint32{1, 0, 1}}
	assert.Equal(t, uint32(3), readSubexpFin(src, 16, 1))
}

func TestInverseRecenter(t *testing.T) {
	// Around r, the code 0,1,2,3,... maps to r, r-1, r+1, r-2, ...
	assert.Equal(t, uint32(5), inverseRecenter(5, 0))
	assert.Equal(t, uint32(4), inverseRecenter(5, 1))
	assert.Equal(t, uint32(6), inverseRecenter(5, 2))
	assert.Equal(t, uint32(3), inverseRecenter(5, 3))
	assert.Equal(t, uint32(12), inverseRecenter(5, 12))
}

func TestReadSignedSubexpFinRefIdentity(t *testing.T) {
	// All-zero input decodes to the reference itself.
	src := &bitSource{}
	got := readSignedSubexpFinRef(src, -96, 32, 4, -7)
	assert.Equal(t, int32(-7), got)
}
