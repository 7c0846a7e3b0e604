package av1

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArenaFootprint(t *testing.T) {
	a := newModeInfoArena(16, 16)

	alloc := a.tilePartition(tileInfo{miRowEnd: 16, miColEnd: 16})
	mi := alloc.alloc(4, 8, Block32x32)
	mi.YMode = 7

	// Every 4x4 cell inside the 8x8-unit footprint maps to the record.
	assert.Same(t, mi, a.at(4, 8))
	assert.Same(t, mi, a.at(11, 15))
	assert.Equal(t, 7, a.at(7, 9).YMode)

	// Outside the footprint is still undecoded.
	assert.Nil(t, a.at(3, 8))
	assert.Nil(t, a.at(4, 7))
	assert.Nil(t, a.at(12, 8))

	// Out of frame.
	assert.Nil(t, a.at(-1, 0))
	assert.Nil(t, a.at(0, 16))
}

func TestArenaClipsAtFrameEdge(t *testing.T) {
	a := newModeInfoArena(10, 10)
	alloc := a.tilePartition(tileInfo{miRowEnd: 10, miColEnd: 10})

	// A 32x32 block whose footprint runs past the frame boundary.
	mi := alloc.alloc(8, 8, Block32x32)
	assert.Same(t, mi, a.at(9, 9))
}

func TestTilePartitionsAreDisjoint(t *testing.T) {
	a := newModeInfoArena(16, 16)

	left := a.tilePartition(tileInfo{miRowStart: 0, miRowEnd: 16, miColStart: 0, miColEnd: 8})
	right := a.tilePartition(tileInfo{miRowStart: 0, miRowEnd: 16, miColStart: 8, miColEnd: 16})

	require.NotNil(t, left)
	require.NotNil(t, right)

	l := left.alloc(0, 0, Block8x8)
	r := right.alloc(0, 8, Block8x8)
	assert.NotSame(t, l, r)

	// Each tile owns one record per cell; the right tile's range
	// starts where the left tile's ends.
	assert.Equal(t, 16*8, left.end)
	assert.GreaterOrEqual(t, right.next-1, left.end)
}

func TestInterTxIndexCoversBlock(t *testing.T) {
	// Every slot-granularity position of a block must land on its
	// own InterTxSizes entry, for the largest block shapes included.
	for _, size := range []BlockSize{Block8x8, Block64x16, Block64x64, Block128x64, Block128x128} {
		mi := &ModeInfo{Size: size}
		g := subTx[maxTxSizeRect(size)]

		seen := map[int]bool{}
		for r := 0; r < size.high(); r += g.high() {
			for c := 0; c < size.wide(); c += g.wide() {
				idx := mi.interTxIndex(r, c)
				assert.Less(t, idx, len(mi.InterTxSizes))
				assert.False(t, seen[idx], "%v slot (%d, %d) aliases", size, r, c)
				seen[idx] = true
			}
		}
	}
}
