package av1

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/av1dec/go-av1/av1/entropy"
)

func TestInterTxSizeMapNoAliasing(t *testing.T) {
	mi := &ModeInfo{Size: Block64x64}
	mi.setInterTxSize(Tx16x16, 0, 0, 16, 16)
	mi.setInterTxSize(Tx8x8, 8, 0, 8, 8)

	// Rewriting the lower-left quadrant must not clobber the rest.
	assert.Equal(t, Tx16x16, mi.interTxSize(0, 0))
	assert.Equal(t, Tx16x16, mi.interTxSize(0, 8))
	assert.Equal(t, Tx8x8, mi.interTxSize(8, 0))
	assert.Equal(t, Tx16x16, mi.interTxSize(8, 8))

	mi = &ModeInfo{Size: Block128x128}
	mi.setInterTxSize(Tx64x64, 0, 0, 32, 32)
	mi.setInterTxSize(Tx16x16, 16, 0, 8, 8)

	assert.Equal(t, Tx64x64, mi.interTxSize(0, 0))
	assert.Equal(t, Tx16x16, mi.interTxSize(16, 0))
	assert.Equal(t, Tx64x64, mi.interTxSize(16, 8))
	assert.Equal(t, Tx64x64, mi.interTxSize(24, 24))
}

// coeffOrderRecorder notes the luma transform sizes handed to the
// coefficient reader, in order.
type coeffOrderRecorder struct {
	units []TxSize
}

func (r *coeffOrderRecorder) ReadCoeffs(sym *entropy.Decoder, blk *Block, plane int, tx TxSize, coeffs []int32) (int, error) {
	if plane == 0 {
		r.units = append(r.units, tx)
	}
	return 0, nil
}

func (r *coeffOrderRecorder) ReadPaletteTokens(sym *entropy.Decoder, blk *Block, plane int) error {
	return nil
}

func vartxTileDecoder(rec CoeffReader) *tileDecoder {
	fb := &frameBuffer{}
	fb.ensureSize(128, 128, 8, 1, 1, true)

	return &tileDecoder{
		d: &Decoder{
			seq:         &sequenceHeader{monochrome: true},
			kernels:     NopKernels(),
			coeffReader: rec,
		},
		h:      &frameHeader{tx_mode: txModeSelect, mi_rows: 32, mi_cols: 32},
		cur:    fb,
		coeffs: make([]int32, maxTxSamples),
	}
}

func TestReconstructFollowsVartxLeaves(t *testing.T) {
	rec := &coeffOrderRecorder{}
	td := vartxTileDecoder(rec)

	// A 64x64 inter block split once everywhere, with the top-left
	// 32x32 subtree split again.
	mi := &ModeInfo{Size: Block64x64, IsInter: true}
	mi.setInterTxSize(Tx32x32, 0, 0, 16, 16)
	mi.setInterTxSize(Tx16x16, 0, 0, 8, 8)

	blk := &Block{td: td, mi: mi}
	require.NoError(t, td.reconstruct(blk))

	// The four 16x16 leaves come first, then the three whole 32x32
	// subtrees; a row of uniform height would misplace them.
	want := []TxSize{
		Tx16x16, Tx16x16, Tx16x16, Tx16x16,
		Tx32x32, Tx32x32, Tx32x32,
	}
	assert.Equal(t, want, rec.units)
}

func TestReadTxTreeTracksDeepestLeaf(t *testing.T) {
	rec := &coeffOrderRecorder{}
	td := vartxTileDecoder(rec)
	td.fc = newFrameContext()
	td.aboveTxCtx = make([]uint8, 32)

	// An all-ones payload decodes every split flag as set, so a
	// 32x32 block descends to 8x8 leaves at the depth limit.
	sym, err := entropy.NewDecoder(bytes.Repeat([]byte{0xff}, 16), true)
	require.NoError(t, err)
	td.sym = sym

	mi := &ModeInfo{Size: Block32x32, IsInter: true}
	blk := &Block{td: td, mi: mi}
	require.NoError(t, td.readTxSizes(blk))

	assert.Equal(t, Tx8x8, mi.TxSize)
	assert.Equal(t, Tx8x8, mi.interTxSize(0, 0))
	assert.Equal(t, Tx8x8, mi.interTxSize(4, 4))
}
