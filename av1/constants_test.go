package av1

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubSizeGeometry(t *testing.T) {
	assert.Equal(t, Block64x64, subSize(partitionNone, Block64x64))
	assert.Equal(t, Block64x32, subSize(partitionHorz, Block64x64))
	assert.Equal(t, Block32x64, subSize(partitionVert, Block64x64))
	assert.Equal(t, Block32x32, subSize(partitionSplit, Block64x64))
	assert.Equal(t, Block64x16, subSize(partitionHorz4, Block64x64))
	assert.Equal(t, Block16x64, subSize(partitionVert4, Block64x64))

	// 4-way shapes do not exist at 128 or below 16.
	assert.Equal(t, BlockInvalid, subSize(partitionHorz4, Block128x128))
	assert.Equal(t, BlockInvalid, subSize(partitionHorz4, Block8x8))
}

func TestPlaneBlockSize(t *testing.T) {
	// 4:2:0 luma 8x8 maps to chroma 4x4.
	assert.Equal(t, Block4x4, planeBlockSize(Block8x8, 1, 1))
	// 4:2:2 cannot subsample a 4-wide block horizontally only.
	assert.Equal(t, BlockInvalid, planeBlockSize(Block4x8, 1, 0))
	// 4x4 is always expressible.
	assert.Equal(t, Block4x4, planeBlockSize(Block4x4, 1, 1))
	// No subsampling is the identity.
	assert.Equal(t, Block32x16, planeBlockSize(Block32x16, 0, 0))
}

func TestBlockSizeFromWH(t *testing.T) {
	assert.Equal(t, Block64x64, blockSizeFromWH(16, 16))
	assert.Equal(t, Block8x32, blockSizeFromWH(2, 8))
	assert.Equal(t, BlockInvalid, blockSizeFromWH(16, 1))
}

func TestMaxTxSizeRect(t *testing.T) {
	assert.Equal(t, Tx4x4, maxTxSizeRect(Block4x4))
	assert.Equal(t, Tx64x64, maxTxSizeRect(Block64x64))
	assert.Equal(t, Tx64x64, maxTxSizeRect(Block128x128))
	assert.Equal(t, Tx16x8, maxTxSizeRect(Block16x8))
}

func TestSquareTxCat(t *testing.T) {
	assert.Equal(t, 0, Tx4x4.squareTxCat())
	assert.Equal(t, 1, Tx8x8.squareTxCat())
	assert.Equal(t, 1, Tx16x8.squareTxCat())
	assert.Equal(t, 4, Tx64x64.squareTxCat())
}

func TestPartitionCtxWord(t *testing.T) {
	// An 8x8 block (category 1) leaves bits 2.. set: reads at larger
	// categories see "neighbor split smaller".
	above, left := partitionCtxWord(Block8x8)
	assert.Equal(t, uint8(0), above>>1&1)
	assert.Equal(t, uint8(1), above>>2&1)
	assert.Equal(t, uint8(1), left>>4&1)

	above128, _ := partitionCtxWord(Block128x128)
	assert.Equal(t, uint8(0), above128>>5&1)
}

func TestCountLRUnits(t *testing.T) {
	assert.Equal(t, 1, countLRUnits(64, 64))
	assert.Equal(t, 2, countLRUnits(64, 100))
	assert.Equal(t, 1, countLRUnits(256, 64))
	assert.Equal(t, 1, countLRUnits(256, 128))
}
