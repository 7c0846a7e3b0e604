package av1

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bitWriter builds hand-rolled header payloads, MSB first.
type bitWriter struct {
	data []byte
	n    int
}

func (w *bitWriter) put(v uint32, bits int) {
	for i := bits - 1; i >= 0; i-- {
		if w.n&7 == 0 {
			w.data = append(w.data, 0)
		}
		w.data[w.n>>3] |= byte(v>>uint(i)&1) << uint(7-w.n&7)
		w.n++
	}
}

// reducedSeqHeader encodes a reduced still picture sequence header
// for a 64x64 8-bit 4:2:0 stream with every optional tool off.
func reducedSeqHeader() []byte {
	w := &bitWriter{}
	w.put(0, 3) // seq_profile
	w.put(1, 1) // still_picture
	w.put(1, 1) // reduced_still_picture_header
	w.put(5, 4) // frame_width_bits_minus_1
	w.put(5, 4) // frame_height_bits_minus_1
	w.put(63, 6)
	w.put(63, 6)
	w.put(0, 1) // use_128x128_superblock
	w.put(0, 1) // enable_filter_intra
	w.put(0, 1) // enable_intra_edge_filter
	w.put(0, 1) // enable_superres
	w.put(0, 1) // enable_cdef
	w.put(0, 1) // enable_restoration
	w.put(0, 1) // high_bitdepth
	w.put(0, 1) // mono_chrome
	w.put(0, 1) // color_description_present
	w.put(0, 1) // color_range
	w.put(0, 2) // chroma_sample_position
	w.put(0, 1) // separate_uv_delta_q
	w.put(0, 1) // film_grain_params_present
	return w.data
}

// fullSeqHeader is the non-reduced version of the same stream, so
// frames can carry show_existing_frame.
func fullSeqHeader() []byte {
	w := &bitWriter{}
	w.put(0, 3)  // seq_profile
	w.put(0, 1)  // still_picture
	w.put(0, 1)  // reduced_still_picture_header
	w.put(0, 1)  // timing_info_present
	w.put(0, 1)  // initial_display_delay_present
	w.put(0, 5)  // operating_points_cnt_minus_1
	w.put(0, 12) // operating_point_idc
	w.put(0, 5)  // seq_level_idx
	w.put(5, 4)  // frame_width_bits_minus_1
	w.put(5, 4)  // frame_height_bits_minus_1
	w.put(63, 6)
	w.put(63, 6)
	w.put(0, 1) // frame_id_numbers_present
	w.put(0, 1) // use_128x128_superblock
	w.put(0, 1) // enable_filter_intra
	w.put(0, 1) // enable_intra_edge_filter
	w.put(0, 1) // enable_interintra_compound
	w.put(0, 1) // enable_masked_compound
	w.put(0, 1) // enable_warped_motion
	w.put(0, 1) // enable_dual_filter
	w.put(0, 1) // enable_order_hint
	w.put(1, 1) // seq_choose_screen_content_tools
	w.put(1, 1) // seq_choose_integer_mv
	w.put(0, 1) // enable_superres
	w.put(0, 1) // enable_cdef
	w.put(0, 1) // enable_restoration
	w.put(0, 1) // high_bitdepth
	w.put(0, 1) // mono_chrome
	w.put(0, 1) // color_description_present
	w.put(0, 1) // color_range
	w.put(0, 2) // chroma_sample_position
	w.put(0, 1) // separate_uv_delta_q
	w.put(0, 1) // film_grain_params_present
	return w.data
}

// losslessKeyFramePayload encodes a shown lossless keyframe header
// for the reduced sequence, followed by an all-zero single tile.
func losslessKeyFramePayload(tileBytes int) []byte {
	w := &bitWriter{}
	w.put(1, 1) // disable_cdf_update
	w.put(0, 1) // allow_screen_content_tools
	w.put(0, 1) // render_and_frame_size_different
	w.put(1, 1) // uniform_tile_spacing
	w.put(0, 8) // base_q_idx (lossless)
	w.put(0, 1) // delta_q_y_dc present
	w.put(0, 1) // delta_q_u_dc present
	w.put(0, 1) // delta_q_u_ac present
	w.put(0, 1) // using_qmatrix
	w.put(0, 1) // segmentation_enabled
	w.put(0, 1) // reduced_tx_set
	return append(w.data, make([]byte, tileBytes)...)
}

// fullKeyFramePayload is the shown lossless keyframe for the
// non-reduced sequence header.
func fullKeyFramePayload(tileBytes int) []byte {
	w := &bitWriter{}
	w.put(0, 1) // show_existing_frame
	w.put(0, 2) // frame_type = KEY
	w.put(1, 1) // show_frame
	w.put(1, 1) // disable_cdf_update
	w.put(0, 1) // allow_screen_content_tools
	w.put(0, 1) // frame_size_override
	w.put(0, 1) // render_and_frame_size_different
	w.put(1, 1) // uniform_tile_spacing
	w.put(0, 8) // base_q_idx
	w.put(0, 1) // delta_q_y_dc present
	w.put(0, 1) // delta_q_u_dc present
	w.put(0, 1) // delta_q_u_ac present
	w.put(0, 1) // using_qmatrix
	w.put(0, 1) // segmentation_enabled
	w.put(0, 1) // reduced_tx_set
	return append(w.data, make([]byte, tileBytes)...)
}

func TestDecodeLosslessKeyFrame(t *testing.T) {
	d, err := NewDecoder(reducedSeqHeader())
	require.NoError(t, err)
	assert.Equal(t, 64, d.seq.max_frame_width)
	assert.Equal(t, 8, d.seq.bit_depth)

	frame, err := d.DecodeFrame(losslessKeyFramePayload(4096))
	require.NoError(t, err)
	require.NotNil(t, frame)

	assert.Equal(t, 64, frame.Width)
	assert.Equal(t, 64, frame.Height)
	assert.Len(t, frame.Picture.Planes, 3)
	assert.Equal(t, 64*64, len(frame.Picture.Planes[0].Pix))
	assert.Equal(t, 32*32, len(frame.Picture.Planes[1].Pix))
}

func TestDecodeRefreshesAllSlots(t *testing.T) {
	d, err := NewDecoder(reducedSeqHeader())
	require.NoError(t, err)

	_, err = d.DecodeFrame(losslessKeyFramePayload(4096))
	require.NoError(t, err)

	for i := 0; i < numRefFrames; i++ {
		fb, err := d.refs.resolve(i)
		require.NoError(t, err)
		assert.Equal(t, keyFrame, fb.frameType)
	}
	assert.False(t, d.refs.staged)
}

func TestShowExistingFrame(t *testing.T) {
	d, err := NewDecoder(fullSeqHeader())
	require.NoError(t, err)

	frame, err := d.DecodeFrame(fullKeyFramePayload(4096))
	require.NoError(t, err)
	require.NotNil(t, frame)

	// 1 bit show_existing_frame, 3 bits frame_to_show.
	shown, err := d.DecodeFrame([]byte{0x80})
	require.NoError(t, err)
	require.NotNil(t, shown)
	assert.Equal(t, 64, shown.Width)
	assert.Same(t, frame.fb, shown.fb)
}

func TestShowExistingFromEmptySlot(t *testing.T) {
	d, err := NewDecoder(fullSeqHeader())
	require.NoError(t, err)

	_, err = d.DecodeFrame([]byte{0x80})
	assert.True(t, errors.Is(err, ErrCorruptBitstream))
}

func TestTruncatedFrameHeader(t *testing.T) {
	d, err := NewDecoder(reducedSeqHeader())
	require.NoError(t, err)

	_, err = d.DecodeFrame([]byte{0x00})
	assert.True(t, errors.Is(err, ErrCorruptBitstream))
}

func TestTruncatedTileDataIsCorrupt(t *testing.T) {
	d, err := NewDecoder(reducedSeqHeader())
	require.NoError(t, err)

	// Far too little tile data for a 64x64 frame: the symbol decoder
	// runs off the end and the tile is reported corrupt, not decoded
	// from invented bits.
	_, err = d.DecodeFrame(losslessKeyFramePayload(2))
	assert.True(t, errors.Is(err, ErrCorruptBitstream))
}

func TestFailedFrameLeavesSlotsUsable(t *testing.T) {
	d, err := NewDecoder(reducedSeqHeader())
	require.NoError(t, err)

	_, err = d.DecodeFrame(losslessKeyFramePayload(4096))
	require.NoError(t, err)
	first, err := d.refs.resolve(0)
	require.NoError(t, err)

	_, err = d.DecodeFrame(losslessKeyFramePayload(2))
	require.Error(t, err)

	// The aborted frame must not have replaced any slot.
	fb, err := d.refs.resolve(0)
	require.NoError(t, err)
	assert.Same(t, first, fb)

	// And decoding can continue.
	frame, err := d.DecodeFrame(losslessKeyFramePayload(4096))
	require.NoError(t, err)
	assert.NotNil(t, frame)
}

func TestSequenceHeaderErrors(t *testing.T) {
	_, err := NewDecoder(nil)
	assert.True(t, errors.Is(err, ErrCorruptBitstream))

	// Profile 3 is outside the spec.
	w := &bitWriter{}
	w.put(3, 3)
	w.put(0, 5)
	_, err = NewDecoder(w.data)
	assert.True(t, errors.Is(err, ErrUnsupportedBitstream))
}
