package av1

import (
	"github.com/av1dec/go-av1/av1/bitio"
)

// filmGrainParams mirrors film_grain_params() (Section 5.9.30).
// Grain is synthesized at display time, so the decoder only carries
// the parameters through to the output frame.
type filmGrainParams struct {
	apply_grain bool
	grain_seed  uint16

	update_grain              bool
	film_grain_params_ref_idx int

	num_y_points    int
	point_y_value   [14]uint8
	point_y_scaling [14]uint8

	chroma_scaling_from_luma bool

	num_cb_points    int
	point_cb_value   [10]uint8
	point_cb_scaling [10]uint8
	num_cr_points    int
	point_cr_value   [10]uint8
	point_cr_scaling [10]uint8

	grain_scaling     int
	ar_coeff_lag      int
	ar_coeffs_y       [24]int8
	ar_coeffs_cb      [25]int8
	ar_coeffs_cr      [25]int8
	ar_coeff_shift    int
	grain_scale_shift int

	cb_mult      int
	cb_luma_mult int
	cb_offset    int
	cr_mult      int
	cr_luma_mult int
	cr_offset    int

	overlap_flag             bool
	clip_to_restricted_range bool
}

// parseFilmGrain reads the film grain syntax. resolveRef maps a
// film_grain_params_ref_idx to that reference's stored parameters;
// the referenced slot must be one of the frame's active references.
func parseFilmGrain(r *bitio.Reader, seq *sequenceHeader, showFrame, showableFrame bool,
	frameRefSlots []int, resolveRef func(slot int) (*filmGrainParams, error)) (filmGrainParams, error) {

	var fg filmGrainParams
	if !seq.film_grain_params_present || (!showFrame && !showableFrame) {
		return fg, nil
	}

	fg.apply_grain = r.ReadFlag()
	if !fg.apply_grain {
		return fg, nil
	}

	fg.grain_seed = uint16(r.ReadLiteral(16))
	fg.update_grain = true
	if len(frameRefSlots) > 0 { // inter frames may inherit
		fg.update_grain = r.ReadFlag()
	}

	if !fg.update_grain {
		fg.film_grain_params_ref_idx = int(r.ReadLiteral(3))
		found := false
		for _, slot := range frameRefSlots {
			if slot == fg.film_grain_params_ref_idx {
				found = true
				break
			}
		}
		if !found {
			return fg, corruptf("film grain reference %d is not an active reference",
				fg.film_grain_params_ref_idx)
		}
		src, err := resolveRef(fg.film_grain_params_ref_idx)
		if err != nil {
			return fg, err
		}
		seed := fg.grain_seed
		fg = *src
		fg.grain_seed = seed
		fg.update_grain = false
		fg.film_grain_params_ref_idx = 0
		return fg, r.Err()
	}

	fg.num_y_points = int(r.ReadLiteral(4))
	if fg.num_y_points > 14 {
		return fg, corruptf("%d luma grain points", fg.num_y_points)
	}
	for i := 0; i < fg.num_y_points; i++ {
		fg.point_y_value[i] = uint8(r.ReadLiteral(8))
		if i > 0 && fg.point_y_value[i] <= fg.point_y_value[i-1] {
			return fg, corruptf("luma grain points not increasing")
		}
		fg.point_y_scaling[i] = uint8(r.ReadLiteral(8))
	}

	if seq.monochrome {
		fg.chroma_scaling_from_luma = false
	} else {
		fg.chroma_scaling_from_luma = r.ReadFlag()
	}

	if !seq.monochrome && !fg.chroma_scaling_from_luma {
		fg.num_cb_points = int(r.ReadLiteral(4))
		if fg.num_cb_points > 10 {
			return fg, corruptf("%d cb grain points", fg.num_cb_points)
		}
		for i := 0; i < fg.num_cb_points; i++ {
			fg.point_cb_value[i] = uint8(r.ReadLiteral(8))
			if i > 0 && fg.point_cb_value[i] <= fg.point_cb_value[i-1] {
				return fg, corruptf("cb grain points not increasing")
			}
			fg.point_cb_scaling[i] = uint8(r.ReadLiteral(8))
		}
		fg.num_cr_points = int(r.ReadLiteral(4))
		if fg.num_cr_points > 10 {
			return fg, corruptf("%d cr grain points", fg.num_cr_points)
		}
		for i := 0; i < fg.num_cr_points; i++ {
			fg.point_cr_value[i] = uint8(r.ReadLiteral(8))
			if i > 0 && fg.point_cr_value[i] <= fg.point_cr_value[i-1] {
				return fg, corruptf("cr grain points not increasing")
			}
			fg.point_cr_scaling[i] = uint8(r.ReadLiteral(8))
		}
	}

	fg.grain_scaling = int(r.ReadLiteral(2)) + 8
	fg.ar_coeff_lag = int(r.ReadLiteral(2))

	numPosLuma := 2 * fg.ar_coeff_lag * (fg.ar_coeff_lag + 1)
	numPosChroma := numPosLuma
	if fg.num_y_points > 0 {
		numPosChroma++
		for i := 0; i < numPosLuma; i++ {
			fg.ar_coeffs_y[i] = int8(int(r.ReadLiteral(8)) - 128)
		}
	}
	if fg.chroma_scaling_from_luma || fg.num_cb_points > 0 {
		for i := 0; i < numPosChroma; i++ {
			fg.ar_coeffs_cb[i] = int8(int(r.ReadLiteral(8)) - 128)
		}
	}
	if fg.chroma_scaling_from_luma || fg.num_cr_points > 0 {
		for i := 0; i < numPosChroma; i++ {
			fg.ar_coeffs_cr[i] = int8(int(r.ReadLiteral(8)) - 128)
		}
	}

	fg.ar_coeff_shift = int(r.ReadLiteral(2)) + 6
	fg.grain_scale_shift = int(r.ReadLiteral(2))

	if fg.num_cb_points > 0 {
		fg.cb_mult = int(r.ReadLiteral(8))
		fg.cb_luma_mult = int(r.ReadLiteral(8))
		fg.cb_offset = int(r.ReadLiteral(9))
	}
	if fg.num_cr_points > 0 {
		fg.cr_mult = int(r.ReadLiteral(8))
		fg.cr_luma_mult = int(r.ReadLiteral(8))
		fg.cr_offset = int(r.ReadLiteral(9))
	}

	fg.overlap_flag = r.ReadFlag()
	fg.clip_to_restricted_range = r.ReadFlag()

	return fg, r.Err()
}
