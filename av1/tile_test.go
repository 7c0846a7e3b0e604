package av1

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/av1dec/go-av1/av1/bitio"
)

func TestTileLog2(t *testing.T) {
	assert.Equal(t, 0, tileLog2(1, 1))
	assert.Equal(t, 2, tileLog2(1, 4))
	assert.Equal(t, 3, tileLog2(1, 5))
	assert.Equal(t, 0, tileLog2(64, 10))
}

func TestSplitTileBuffers(t *testing.T) {
	tp := &tileParams{cols: 2, rows: 1, tile_size_bytes: 2}

	// First tile 3 bytes (size prefix codes size-1), second takes the
	// remainder.
	data := []byte{
		0x02, 0x00, // tile_size_minus_1 = 2
		0xaa, 0xbb, 0xcc,
		0x11, 0x22,
	}
	bufs, err := splitTileBuffers(data, tp)
	require.NoError(t, err)
	require.Len(t, bufs, 2)
	assert.Equal(t, []byte{0xaa, 0xbb, 0xcc}, bufs[0].data)
	assert.Equal(t, []byte{0x11, 0x22}, bufs[1].data)
}

func TestSplitTileBuffersTruncated(t *testing.T) {
	tp := &tileParams{cols: 2, rows: 1, tile_size_bytes: 2}

	// Size prefix claims more bytes than remain.
	_, err := splitTileBuffers([]byte{0xff, 0x00, 0xaa}, tp)
	assert.True(t, errors.Is(err, ErrCorruptBitstream))

	// Nothing left for the last tile.
	_, err = splitTileBuffers([]byte{0x00, 0x00, 0xaa}, tp)
	assert.True(t, errors.Is(err, ErrCorruptBitstream))
}

func TestSplitLargeScaleCopyMode(t *testing.T) {
	tp := &tileParams{
		cols: 1, rows: 3,
		tile_size_bytes:     1,
		tile_col_size_bytes: 1,
	}

	// Row 0 carries data, row 1 copies row 0 (top bit set, offset 1),
	// row 2 takes the remainder of the column. The last column has no
	// size prefix.
	data := []byte{
		0x01,       // tile 0: size_minus_1 = 1
		0xde, 0xad, // tile 0 payload
		0x81,       // tile 1: copy, offset 1
		0x55, 0x66, // tile 2 payload (last in column)
	}
	bufs, err := splitLargeScaleTileBuffers(data, tp, true)
	require.NoError(t, err)
	require.Len(t, bufs, 3)

	assert.Equal(t, []byte{0xde, 0xad}, bufs[0].data)
	assert.Equal(t, []byte{0x55, 0x66}, bufs[2].data)

	// Copy mode aliases the source tile's bytes, no copy is made.
	require.Len(t, bufs[1].data, 2)
	assert.Equal(t, &bufs[0].data[0], &bufs[1].data[0])
}

func TestSplitLargeScaleCopyModeDisallowed(t *testing.T) {
	tp := &tileParams{
		cols: 1, rows: 2,
		tile_size_bytes:     1,
		tile_col_size_bytes: 1,
	}

	// With copy mode off, 0x81 is a plain size field: size 0x82 far
	// exceeds the column.
	data := []byte{0x81, 0xde, 0xad}
	_, err := splitLargeScaleTileBuffers(data, tp, false)
	assert.True(t, errors.Is(err, ErrCorruptBitstream))
}

func TestSplitLargeScaleCopyOffsetOutOfRange(t *testing.T) {
	tp := &tileParams{
		cols: 1, rows: 2,
		tile_size_bytes:     1,
		tile_col_size_bytes: 1,
	}

	// Offset 0 would copy the tile onto itself.
	data := []byte{0x80, 0x55, 0x66}
	_, err := splitLargeScaleTileBuffers(data, tp, true)
	assert.True(t, errors.Is(err, ErrCorruptBitstream))
}

func TestExplicitTileRowLimitTracksFrameArea(t *testing.T) {
	// An 8192x256 frame (128x4 superblocks) needs at least two tile
	// columns, so minLog2Tiles is 1 and the per-tile area cap for
	// explicit spacing is (4*128)>>2 = 128 superblocks. With two
	// 64-wide columns each row may then span at most 2 superblocks,
	// which fixes the coded width of every height field.
	d := &Decoder{seq: &sequenceHeader{}}
	h := &frameHeader{mi_cols: 2048, mi_rows: 64}

	// uniform=0, two 64-wide columns, two 2-high rows,
	// context_update_tile_id=0, tile_size_bytes=4.
	r := bitio.NewReader([]byte{0x7f, 0xfe, 0x60})
	require.NoError(t, d.parseTileInfo(r, h))

	tp := &h.tiles
	assert.Equal(t, 2, tp.cols)
	assert.Equal(t, []int{0, 64, 128}, tp.colStartSB)
	assert.Equal(t, 2, tp.rows)
	assert.Equal(t, []int{0, 2, 4}, tp.rowStartSB)
	assert.Equal(t, 4, tp.tile_size_bytes)
}

func TestGetVarsize(t *testing.T) {
	v, ok := getVarsize([]byte{0x34, 0x12}, 2)
	require.True(t, ok)
	assert.Equal(t, uint64(0x1234), v)

	_, ok = getVarsize([]byte{0x34}, 2)
	assert.False(t, ok)
}
