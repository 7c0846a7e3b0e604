package av1

import (
	"github.com/av1dec/go-av1/av1/bitio"
)

// Segmentation features. Section 6.8.13.
const (
	segLvlAltQ = iota
	segLvlAltLFYV
	segLvlAltLFYH
	segLvlAltLFU
	segLvlAltLFV
	segLvlRefFrame
	segLvlSkip
	segLvlGlobalMV

	segLvlMax
)

var segFeatureBits = [segLvlMax]int{8, 6, 6, 6, 6, 3, 0, 0}
var segFeatureSigned = [segLvlMax]bool{true, true, true, true, true, false, false, false}
var segFeatureMax = [segLvlMax]int{255, maxLoopFilterLevel, maxLoopFilterLevel,
	maxLoopFilterLevel, maxLoopFilterLevel, refsPerFrame - 1, 0, 0}

type quantizationParams struct {
	base_q_idx   int
	delta_q_y_dc int
	delta_q_u_dc int
	delta_q_u_ac int
	delta_q_v_dc int
	delta_q_v_ac int

	using_qmatrix    bool
	qm_y, qm_u, qm_v int
}

// readDeltaQ reads the delta_q() syntax: an optional su(1+6).
func readDeltaQ(r *bitio.Reader) int {
	if r.ReadFlag() {
		return int(r.ReadSignedLiteral(6))
	}
	return 0
}

// parseQuantization reads quantization_params() (Section 5.9.12).
func parseQuantization(r *bitio.Reader, seq *sequenceHeader) quantizationParams {
	var q quantizationParams
	q.base_q_idx = int(r.ReadLiteral(8))
	q.delta_q_y_dc = readDeltaQ(r)

	if !seq.monochrome {
		diffUVDelta := false
		if seq.separate_uv_delta_q {
			diffUVDelta = r.ReadFlag()
		}
		q.delta_q_u_dc = readDeltaQ(r)
		q.delta_q_u_ac = readDeltaQ(r)
		if diffUVDelta {
			q.delta_q_v_dc = readDeltaQ(r)
			q.delta_q_v_ac = readDeltaQ(r)
		} else {
			q.delta_q_v_dc = q.delta_q_u_dc
			q.delta_q_v_ac = q.delta_q_u_ac
		}
	}

	q.using_qmatrix = r.ReadFlag()
	if q.using_qmatrix {
		q.qm_y = int(r.ReadLiteral(4))
		q.qm_u = int(r.ReadLiteral(4))
		if seq.separate_uv_delta_q {
			q.qm_v = int(r.ReadLiteral(4))
		} else {
			q.qm_v = q.qm_u
		}
	}
	return q
}

// qIndex returns the segment-adjusted quantizer index.
func (q *quantizationParams) qIndex(seg *segmentationParams, segmentID int) int {
	if seg.featureActive(segmentID, segLvlAltQ) {
		data := int(seg.feature_data[segmentID][segLvlAltQ])
		return clampInt(q.base_q_idx+data, 0, 255)
	}
	return q.base_q_idx
}

// losslessFor reports whether a segment codes at quantizer zero with
// no residual deltas.
func (q *quantizationParams) losslessFor(seg *segmentationParams, segmentID int) bool {
	return q.qIndex(seg, segmentID) == 0 &&
		q.delta_q_y_dc == 0 &&
		q.delta_q_u_dc == 0 && q.delta_q_u_ac == 0 &&
		q.delta_q_v_dc == 0 && q.delta_q_v_ac == 0
}

type segmentationParams struct {
	enabled         bool
	update_map      bool
	temporal_update bool
	update_data     bool

	feature_enabled [maxSegments][segLvlMax]bool
	feature_data    [maxSegments][segLvlMax]int16

	last_active_seg_id int
}

func (s *segmentationParams) featureActive(segmentID, feature int) bool {
	return s.enabled && s.feature_enabled[segmentID][feature]
}

// parseSegmentation reads segmentation_params() (Section 5.9.14).
// When the header keeps the previous frame's segmentation, prev is
// copied forward; primaryRefNone frames reset instead.
func parseSegmentation(r *bitio.Reader, prev *segmentationParams, havePrev bool) (segmentationParams, error) {
	var s segmentationParams
	s.enabled = r.ReadFlag()
	if !s.enabled {
		return s, r.Err()
	}

	if !havePrev {
		s.update_map = true
		s.update_data = true
	} else {
		s.update_map = r.ReadFlag()
		if s.update_map {
			s.temporal_update = r.ReadFlag()
		}
		s.update_data = r.ReadFlag()
	}

	if !s.update_data {
		if havePrev {
			s.feature_enabled = prev.feature_enabled
			s.feature_data = prev.feature_data
			s.recomputeLastActive()
		}
		return s, r.Err()
	}

	for seg := 0; seg < maxSegments; seg++ {
		for f := 0; f < segLvlMax; f++ {
			if !r.ReadFlag() {
				continue
			}
			s.feature_enabled[seg][f] = true
			if segFeatureBits[f] == 0 {
				continue
			}
			var v int
			if segFeatureSigned[f] {
				v = int(r.ReadSignedLiteral(segFeatureBits[f]))
				v = clampInt(v, -segFeatureMax[f], segFeatureMax[f])
			} else {
				v = int(r.ReadLiteral(segFeatureBits[f]))
				v = clampInt(v, 0, segFeatureMax[f])
			}
			s.feature_data[seg][f] = int16(v)
		}
	}
	s.recomputeLastActive()
	return s, r.Err()
}

func (s *segmentationParams) recomputeLastActive() {
	s.last_active_seg_id = 0
	for seg := 0; seg < maxSegments; seg++ {
		for f := 0; f < segLvlMax; f++ {
			if s.feature_enabled[seg][f] {
				s.last_active_seg_id = seg
			}
		}
	}
}

// loopFilterDeltas are the per-reference and per-mode level
// adjustments that carry over between frames.
type loopFilterDeltas struct {
	ref_deltas  [numRefFrames]int8
	mode_deltas [2]int8
}

func defaultLoopFilterDeltas() loopFilterDeltas {
	d := loopFilterDeltas{}
	d.ref_deltas = [numRefFrames]int8{1, 0, 0, 0, -1, 0, -1, -1}
	return d
}

type loopFilterParams struct {
	filter_level   [2]int
	filter_level_u int
	filter_level_v int
	sharpness      int

	delta_enabled bool
	deltas        loopFilterDeltas
}

// parseLoopFilter reads loop_filter_params() (Section 5.9.11).
// prev supplies the carried-over deltas.
func parseLoopFilter(r *bitio.Reader, seq *sequenceHeader, prev loopFilterDeltas, codedLossless, allowIntrabc bool) loopFilterParams {
	lf := loopFilterParams{deltas: prev}
	if codedLossless || allowIntrabc {
		lf.deltas = defaultLoopFilterDeltas()
		return lf
	}

	lf.filter_level[0] = int(r.ReadLiteral(6))
	lf.filter_level[1] = int(r.ReadLiteral(6))
	if !seq.monochrome && (lf.filter_level[0] != 0 || lf.filter_level[1] != 0) {
		lf.filter_level_u = int(r.ReadLiteral(6))
		lf.filter_level_v = int(r.ReadLiteral(6))
	}
	lf.sharpness = int(r.ReadLiteral(3))

	lf.delta_enabled = r.ReadFlag()
	if lf.delta_enabled && r.ReadFlag() { // loop_filter_delta_update
		for i := 0; i < numRefFrames; i++ {
			if r.ReadFlag() {
				lf.deltas.ref_deltas[i] = int8(r.ReadSignedLiteral(6))
			}
		}
		for i := 0; i < 2; i++ {
			if r.ReadFlag() {
				lf.deltas.mode_deltas[i] = int8(r.ReadSignedLiteral(6))
			}
		}
	}
	return lf
}

type deltaQParams struct {
	present bool
	res     int
}

type deltaLFParams struct {
	present bool
	res     int
	multi   bool
}

// parseDeltaQ reads delta_q_params() (Section 5.9.17).
func parseDeltaQ(r *bitio.Reader, baseQIdx int) deltaQParams {
	var d deltaQParams
	if baseQIdx > 0 {
		d.present = r.ReadFlag()
	}
	if d.present {
		d.res = int(r.ReadLiteral(2))
	}
	return d
}

// parseDeltaLF reads delta_lf_params() (Section 5.9.18).
func parseDeltaLF(r *bitio.Reader, deltaQPresent, allowIntrabc bool) deltaLFParams {
	var d deltaLFParams
	if deltaQPresent && !allowIntrabc {
		d.present = r.ReadFlag()
	}
	if d.present {
		d.res = int(r.ReadLiteral(2))
		d.multi = r.ReadFlag()
	}
	return d
}

type cdefParams struct {
	damping int
	bits    int

	y_strengths  []int
	uv_strengths []int
}

// parseCDEF reads cdef_params() (Section 5.9.19). Lossless and
// intrabc frames skip the syntax entirely and use a null filter.
func parseCDEF(r *bitio.Reader, seq *sequenceHeader, codedLossless, allowIntrabc bool) cdefParams {
	if codedLossless || allowIntrabc || !seq.enable_cdef {
		return cdefParams{damping: 3, y_strengths: []int{0}, uv_strengths: []int{0}}
	}

	var c cdefParams
	c.damping = int(r.ReadLiteral(2)) + 3
	c.bits = int(r.ReadLiteral(2))
	n := 1 << uint(c.bits)
	c.y_strengths = make([]int, n)
	c.uv_strengths = make([]int, n)
	for i := 0; i < n; i++ {
		c.y_strengths[i] = int(r.ReadLiteral(6))
		if !seq.monochrome {
			c.uv_strengths[i] = int(r.ReadLiteral(6))
		}
	}
	return c
}

type restorationParams struct {
	frame_restoration_type [3]restorationType
	unit_size              [3]int // pixels, per plane

	usesLR       bool
	usesChromaLR bool
}

// parseLoopRestoration reads lr_params() (Section 5.9.20). The unit
// size ladder starts at the superblock size and doubles per coded
// one bit, with chroma optionally halved once per subsampled axis.
func parseLoopRestoration(r *bitio.Reader, seq *sequenceHeader, allLossless, allowIntrabc bool, numPlanes int) restorationParams {
	var lr restorationParams
	if allLossless || allowIntrabc || !seq.enable_restoration {
		return lr
	}

	remap := [4]restorationType{restoreNone, restoreSwitchable, restoreWiener, restoreSgrproj}
	for p := 0; p < numPlanes; p++ {
		lr.frame_restoration_type[p] = remap[r.ReadLiteral(2)]
		if lr.frame_restoration_type[p] != restoreNone {
			lr.usesLR = true
			if p > 0 {
				lr.usesChromaLR = true
			}
		}
	}
	if !lr.usesLR {
		return lr
	}

	size := restorationUnitSizeMin
	if !seq.use_128x128_superblock {
		if r.ReadFlag() {
			size <<= 1
		}
	} else {
		size <<= 1
	}
	if size == restorationUnitSizeMin*2 && r.ReadFlag() {
		size <<= 1
	}
	lr.unit_size[0] = size

	uvShift := 0
	if lr.usesChromaLR && seq.subsampling_x != 0 && seq.subsampling_y != 0 {
		if r.ReadFlag() {
			uvShift = 1
		}
	}
	lr.unit_size[1] = size >> uint(uvShift)
	lr.unit_size[2] = lr.unit_size[1]
	return lr
}
