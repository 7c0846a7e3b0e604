package av1

import (
	"testing"

	"github.com/av1dec/go-av1/av1/bitio"
	"github.com/stretchr/testify/assert"
)

func TestDefaultWarpedMotionShear(t *testing.T) {
	wm := defaultWarpedMotion()
	assert.True(t, wm.computeShear())
	assert.Equal(t, int16(0), wm.alpha)
	assert.Equal(t, int16(0), wm.beta)
	assert.Equal(t, int16(0), wm.gamma)
	assert.Equal(t, int16(0), wm.delta)
}

func TestComputeShearRejectsNonPositiveScale(t *testing.T) {
	wm := defaultWarpedMotion()
	wm.wmmat[2] = 0
	assert.False(t, wm.computeShear())

	wm.wmmat[2] = -1
	assert.False(t, wm.computeShear())
}

func TestComputeShearRejectsExcessiveShear(t *testing.T) {
	wm := defaultWarpedMotion()
	wm.wmmat[3] = 1 << 15 // beta past the quarter-pixel shear bound
	assert.False(t, wm.computeShear())

	wm = defaultWarpedMotion()
	wm.wmmat[4] = 1 << 15
	assert.False(t, wm.computeShear())
}

func TestComputeShearSmallRotzoom(t *testing.T) {
	wm := warpedMotion{
		wmtype: warpRotzoom,
		wmmat:  [6]int32{0, 0, warpedModelDefault + 100, 50, -50, warpedModelDefault + 100},
	}
	assert.True(t, wm.computeShear())
	assert.Equal(t, int16(100), wm.alpha)
	assert.Equal(t, int16(50), wm.beta)
}

func TestParseGlobalMotionIntraIsIdentity(t *testing.T) {
	var prev [refsPerFrame + 1]warpedMotion
	gm := parseGlobalMotion(nil, &prev, true, false)
	for _, m := range gm {
		assert.Equal(t, warpIdentity, m.wmtype)
		assert.Equal(t, int32(warpedModelDefault), m.wmmat[2])
	}
}

func TestParseGlobalMotionAllLocal(t *testing.T) {
	var prev [refsPerFrame + 1]warpedMotion
	for i := range prev {
		prev[i] = defaultWarpedMotion()
	}

	// One cleared is_global bit per inter reference.
	r := bitio.NewReader(make([]byte, 1))
	gm := parseGlobalMotion(r, &prev, false, false)
	for _, m := range gm {
		assert.Equal(t, warpIdentity, m.wmtype)
		assert.False(t, m.invalid)
	}
}
