package av1

import (
	"github.com/av1dec/go-av1/av1/bitio"
	"github.com/pkg/errors"
)

const (
	// Section 6.8.2: the select values for the seq_force fields.
	selectScreenContentTools = 2
	selectIntegerMV          = 2
)

// sequenceHeader mirrors the sequence_header_obu payload (Section
// 5.5). Field names follow the bitstream syntax.
type sequenceHeader struct {
	seq_profile                  int
	still_picture                bool
	reduced_still_picture_header bool

	frame_width_bits  int
	frame_height_bits int
	max_frame_width   int
	max_frame_height  int

	frame_id_numbers_present bool
	delta_frame_id_length    int
	frame_id_length          int

	use_128x128_superblock   bool
	enable_filter_intra      bool
	enable_intra_edge_filter bool

	enable_interintra_compound     bool
	enable_masked_compound         bool
	enable_warped_motion           bool
	enable_dual_filter             bool
	enable_order_hint              bool
	enable_jnt_comp                bool
	enable_ref_frame_mvs           bool
	seq_force_screen_content_tools int
	seq_force_integer_mv           int
	order_hint_bits                int

	enable_superres    bool
	enable_cdef        bool
	enable_restoration bool

	// Color config.
	bit_depth              int
	monochrome             bool
	color_range            bool
	subsampling_x          int
	subsampling_y          int
	chroma_sample_position int
	separate_uv_delta_q    bool

	film_grain_params_present bool
	timing_info_present       bool
}

func (s *sequenceHeader) sbSizeLog2() int {
	if s.use_128x128_superblock {
		return maxMibSizeLog2
	}
	return maxMibSizeLog2 - 1
}

func (s *sequenceHeader) sbSize() BlockSize {
	if s.use_128x128_superblock {
		return Block128x128
	}
	return Block64x64
}

// orderHintRange returns 1 << order_hint_bits, or 0 when order hints
// are not coded.
func (s *sequenceHeader) orderHintRange() int {
	if !s.enable_order_hint {
		return 0
	}
	return 1 << uint(s.order_hint_bits)
}

// parseSequenceHeader reads a raw sequence_header_obu payload.
func parseSequenceHeader(data []byte) (*sequenceHeader, error) {
	r := bitio.NewReader(data)
	s := &sequenceHeader{}

	s.seq_profile = int(r.ReadLiteral(3))
	if s.seq_profile > 2 {
		return nil, unsupportedf("sequence profile %d", s.seq_profile)
	}
	s.still_picture = r.ReadFlag()
	s.reduced_still_picture_header = r.ReadFlag()
	if s.reduced_still_picture_header && !s.still_picture {
		return nil, corruptf("reduced header without still picture")
	}

	if !s.reduced_still_picture_header {
		s.timing_info_present = r.ReadFlag()
		if s.timing_info_present {
			return nil, unsupportedf("timing and decoder model info")
		}
		initialDisplayDelayPresent := r.ReadFlag()
		operatingPoints := int(r.ReadLiteral(5)) + 1
		for i := 0; i < operatingPoints; i++ {
			r.ReadLiteral(12) // operating_point_idc
			seqLevelIdx := int(r.ReadLiteral(5))
			if seqLevelIdx > 7 {
				r.ReadBit() // seq_tier
			}
			if initialDisplayDelayPresent {
				if r.ReadFlag() {
					r.ReadLiteral(4)
				}
			}
		}
	}

	s.frame_width_bits = int(r.ReadLiteral(4)) + 1
	s.frame_height_bits = int(r.ReadLiteral(4)) + 1
	s.max_frame_width = int(r.ReadLiteral(s.frame_width_bits)) + 1
	s.max_frame_height = int(r.ReadLiteral(s.frame_height_bits)) + 1

	if s.reduced_still_picture_header {
		s.frame_id_numbers_present = false
	} else {
		s.frame_id_numbers_present = r.ReadFlag()
	}
	if s.frame_id_numbers_present {
		s.delta_frame_id_length = int(r.ReadLiteral(4)) + deltaFrameIDLengthMin
		s.frame_id_length = int(r.ReadLiteral(3)) + s.delta_frame_id_length + 1
		if s.frame_id_length > frameIDLengthMax {
			return nil, corruptf("frame id length %d too long", s.frame_id_length)
		}
	}

	s.use_128x128_superblock = r.ReadFlag()
	s.enable_filter_intra = r.ReadFlag()
	s.enable_intra_edge_filter = r.ReadFlag()

	if s.reduced_still_picture_header {
		s.seq_force_screen_content_tools = selectScreenContentTools
		s.seq_force_integer_mv = selectIntegerMV
	} else {
		s.enable_interintra_compound = r.ReadFlag()
		s.enable_masked_compound = r.ReadFlag()
		s.enable_warped_motion = r.ReadFlag()
		s.enable_dual_filter = r.ReadFlag()
		s.enable_order_hint = r.ReadFlag()
		if s.enable_order_hint {
			s.enable_jnt_comp = r.ReadFlag()
			s.enable_ref_frame_mvs = r.ReadFlag()
		}
		if r.ReadFlag() {
			s.seq_force_screen_content_tools = selectScreenContentTools
		} else {
			s.seq_force_screen_content_tools = int(r.ReadBit())
		}
		if s.seq_force_screen_content_tools > 0 {
			if r.ReadFlag() {
				s.seq_force_integer_mv = selectIntegerMV
			} else {
				s.seq_force_integer_mv = int(r.ReadBit())
			}
		} else {
			s.seq_force_integer_mv = selectIntegerMV
		}
		if s.enable_order_hint {
			s.order_hint_bits = int(r.ReadLiteral(3)) + 1
		}
	}

	s.enable_superres = r.ReadFlag()
	s.enable_cdef = r.ReadFlag()
	s.enable_restoration = r.ReadFlag()

	if err := s.parseColorConfig(r); err != nil {
		return nil, err
	}

	s.film_grain_params_present = r.ReadFlag()

	if err := r.Err(); err != nil {
		return nil, errors.Wrap(ErrCorruptBitstream, "truncated sequence header")
	}
	return s, nil
}

// parseColorConfig reads the color_config() syntax (Section 5.5.2).
func (s *sequenceHeader) parseColorConfig(r *bitio.Reader) error {
	highBitdepth := r.ReadFlag()
	switch {
	case s.seq_profile == 2 && highBitdepth:
		if r.ReadFlag() {
			s.bit_depth = 12
		} else {
			s.bit_depth = 10
		}
	case highBitdepth:
		s.bit_depth = 10
	default:
		s.bit_depth = 8
	}

	if s.seq_profile == 1 {
		s.monochrome = false
	} else {
		s.monochrome = r.ReadFlag()
	}

	colorPrimaries, transfer, matrix := 2, 2, 2 // unspecified
	if r.ReadFlag() {
		colorPrimaries = int(r.ReadLiteral(8))
		transfer = int(r.ReadLiteral(8))
		matrix = int(r.ReadLiteral(8))
	}

	if s.monochrome {
		s.color_range = r.ReadFlag()
		s.subsampling_x = 1
		s.subsampling_y = 1
		return nil
	}

	// sRGB with identity matrix forces 4:4:4 full range.
	if colorPrimaries == 1 && transfer == 13 && matrix == 0 {
		s.color_range = true
		if s.seq_profile != 1 && !(s.seq_profile == 2 && s.bit_depth == 12) {
			return corruptf("identity matrix needs a 4:4:4 capable profile")
		}
	} else {
		s.color_range = r.ReadFlag()
		switch s.seq_profile {
		case 0:
			s.subsampling_x = 1
			s.subsampling_y = 1
		case 1:
			// 4:4:4
		default:
			if s.bit_depth == 12 {
				s.subsampling_x = int(r.ReadBit())
				if s.subsampling_x != 0 {
					s.subsampling_y = int(r.ReadBit())
				}
			} else {
				s.subsampling_x = 1
			}
		}
		if s.subsampling_x != 0 && s.subsampling_y != 0 {
			s.chroma_sample_position = int(r.ReadLiteral(2))
		}
	}
	s.separate_uv_delta_q = r.ReadFlag()

	// Overreads stay on the reader; parseSequenceHeader folds them
	// into the corrupt-bitstream taxonomy once, at the end.
	return nil
}
