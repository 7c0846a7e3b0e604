package av1

import (
	"github.com/av1dec/go-av1/av1/bitio"
)

// frameHeader mirrors the uncompressed_header() syntax (Section
// 5.9.2) plus the values derived while reading it. Field names
// follow the bitstream syntax.
type frameHeader struct {
	show_existing_frame bool
	frame_to_show       int

	frame_type           frameType
	show_frame           bool
	showable_frame       bool
	error_resilient_mode bool
	disable_cdf_update   bool

	allow_screen_content_tools bool
	force_integer_mv           bool

	current_frame_id    int
	frame_size_override bool
	order_hint          int
	primary_ref_frame   int

	refresh_frame_flags uint8
	ref_slots           [refsPerFrame]int

	width          int // decode-time width (post superres downscale)
	height         int
	upscaled_width int
	render_width   int
	render_height  int
	use_superres   bool
	superres_denom int

	mi_rows, mi_cols int

	allow_high_precision_mv   bool
	interp_filter             int
	is_filter_switchable      bool
	is_motion_mode_switchable bool
	use_ref_frame_mvs         bool

	disable_frame_end_update_cdf bool
	allow_intrabc                bool

	tiles tileParams

	quant    quantizationParams
	seg      segmentationParams
	delta_q  deltaQParams
	delta_lf deltaLFParams

	lossless       [maxSegments]bool
	coded_lossless bool
	all_lossless   bool

	lf   loopFilterParams
	cdef cdefParams
	lr   restorationParams

	tx_mode             txMode
	reference_select    bool
	skip_mode_present   bool
	allow_warped_motion bool
	reduced_tx_set      bool

	global_motion [refsPerFrame + 1]warpedMotion
	film_grain    filmGrainParams

	frame_is_intra bool
}

// refreshesContext reports whether the frame runs backward context
// adaptation at its end.
func (h *frameHeader) refreshesContext() bool {
	return !h.disable_frame_end_update_cdf
}

// relativeDist orders two order hints on the modular circle.
// Positive means a comes after b. Section 7.9.4.
func (s *sequenceHeader) relativeDist(a, b int) int {
	if !s.enable_order_hint {
		return 0
	}
	diff := a - b
	m := 1 << uint(s.order_hint_bits-1)
	return (diff & (m - 1)) - (diff & m)
}

// parseFrameHeader reads the uncompressed header from the front of a
// frame payload. The reference slot machinery is consulted but not
// modified until the header is fully validated.
func (d *Decoder) parseFrameHeader(r *bitio.Reader) (*frameHeader, error) {
	seq := d.seq
	h := &frameHeader{}

	if seq.reduced_still_picture_header {
		h.frame_type = keyFrame
		h.show_frame = true
		h.showable_frame = false
		h.frame_is_intra = true
		h.error_resilient_mode = true
	} else {
		h.show_existing_frame = r.ReadFlag()
		if h.show_existing_frame {
			h.frame_to_show = int(r.ReadLiteral(3))
			if seq.frame_id_numbers_present {
				displayID := int(r.ReadLiteral(seq.frame_id_length))
				if err := r.Err(); err != nil {
					return nil, corruptf("truncated header: %v", err)
				}
				if displayID != d.refFrameID[h.frame_to_show] || !d.refValid[h.frame_to_show] {
					return nil, corruptf("display_frame_id %d does not match slot %d",
						displayID, h.frame_to_show)
				}
			}
			return h, r.Err()
		}

		h.frame_type = frameType(r.ReadLiteral(2))
		h.frame_is_intra = h.frame_type.intraOnly()
		h.show_frame = r.ReadFlag()
		if h.show_frame {
			h.showable_frame = h.frame_type != keyFrame
		} else {
			h.showable_frame = r.ReadFlag()
		}

		if h.frame_type == switchFrame || (h.frame_type == keyFrame && h.show_frame) {
			h.error_resilient_mode = true
		} else {
			h.error_resilient_mode = r.ReadFlag()
		}
	}

	if h.frame_type == keyFrame && h.show_frame {
		// A shown keyframe severs every dependency on the past.
		for i := range d.refValid {
			d.refValid[i] = false
		}
	}

	h.disable_cdf_update = r.ReadFlag()

	if seq.seq_force_screen_content_tools == selectScreenContentTools {
		h.allow_screen_content_tools = r.ReadFlag()
	} else {
		h.allow_screen_content_tools = seq.seq_force_screen_content_tools != 0
	}
	if h.allow_screen_content_tools && !h.frame_is_intra {
		if seq.seq_force_integer_mv == selectIntegerMV {
			h.force_integer_mv = r.ReadFlag()
		} else {
			h.force_integer_mv = seq.seq_force_integer_mv != 0
		}
	}
	if h.frame_is_intra {
		h.force_integer_mv = true
	}

	if seq.frame_id_numbers_present {
		h.current_frame_id = int(r.ReadLiteral(seq.frame_id_length))
		d.markExpiredRefIDs(h)
	}

	switch {
	case h.frame_type == switchFrame:
		h.frame_size_override = true
	case seq.reduced_still_picture_header:
		h.frame_size_override = false
	default:
		h.frame_size_override = r.ReadFlag()
	}

	if seq.enable_order_hint {
		h.order_hint = int(r.ReadLiteral(seq.order_hint_bits))
	}

	if h.frame_is_intra || h.error_resilient_mode {
		h.primary_ref_frame = primaryRefNone
	} else {
		h.primary_ref_frame = int(r.ReadLiteral(3))
	}

	if h.frame_type == switchFrame || (h.frame_type == keyFrame && h.show_frame) {
		h.refresh_frame_flags = 0xff
	} else {
		h.refresh_frame_flags = uint8(r.ReadLiteral(8))
	}
	if h.frame_type == intraOnlyFrame && h.refresh_frame_flags == 0xff {
		return nil, corruptf("intra-only frame cannot refresh every slot")
	}

	if (!h.frame_is_intra || h.refresh_frame_flags != 0xff) &&
		h.error_resilient_mode && seq.enable_order_hint {
		// Recovery order hints for slots this frame does not refresh.
		for i := 0; i < numRefFrames; i++ {
			hint := int(r.ReadLiteral(seq.order_hint_bits))
			if d.refs.slots[i] == nil {
				d.refOrderHint[i] = hint
			}
		}
	}

	if h.frame_is_intra {
		if err := d.parseFrameSize(r, h); err != nil {
			return nil, err
		}
		d.parseRenderSize(r, h)
		if h.allow_screen_content_tools && h.upscaled_width == h.width {
			h.allow_intrabc = r.ReadFlag()
		}
	} else {
		if err := d.parseRefFramesAndSize(r, h); err != nil {
			return nil, err
		}
	}

	if seq.reduced_still_picture_header || h.disable_cdf_update {
		h.disable_frame_end_update_cdf = true
	} else {
		h.disable_frame_end_update_cdf = r.ReadFlag()
	}

	// The rest of the header reads against the primary reference
	// frame's carried state.
	prevSeg, prevLFDeltas, prevGM, err := d.primaryRefState(h)
	if err != nil {
		return nil, err
	}

	if err := d.parseTileInfo(r, h); err != nil {
		return nil, err
	}

	h.quant = parseQuantization(r, seq)

	h.seg, err = parseSegmentation(r, prevSeg, h.primary_ref_frame != primaryRefNone)
	if err != nil {
		return nil, err
	}

	h.delta_q = parseDeltaQ(r, h.quant.base_q_idx)
	h.delta_lf = parseDeltaLF(r, h.delta_q.present, h.allow_intrabc)

	h.coded_lossless = true
	for seg := 0; seg < maxSegments; seg++ {
		h.lossless[seg] = h.quant.losslessFor(&h.seg, seg)
		if !h.lossless[seg] {
			h.coded_lossless = false
		}
	}
	if h.coded_lossless && h.delta_q.present {
		return nil, corruptf("lossless frame with delta q")
	}
	h.all_lossless = h.coded_lossless && h.width == h.upscaled_width

	h.lf = parseLoopFilter(r, seq, prevLFDeltas, h.coded_lossless, h.allow_intrabc)
	h.cdef = parseCDEF(r, seq, h.coded_lossless, h.allow_intrabc)
	numPlanes := 3
	if seq.monochrome {
		numPlanes = 1
	}
	h.lr = parseLoopRestoration(r, seq, h.all_lossless, h.allow_intrabc, numPlanes)

	if h.coded_lossless {
		h.tx_mode = txModeOnly4x4
	} else if r.ReadFlag() {
		h.tx_mode = txModeSelect
	} else {
		h.tx_mode = txModeLargest
	}

	if !h.frame_is_intra {
		h.reference_select = r.ReadFlag()
	}
	if err := d.parseSkipMode(r, h); err != nil {
		return nil, err
	}

	if !h.frame_is_intra && !h.error_resilient_mode && seq.enable_warped_motion {
		h.allow_warped_motion = r.ReadFlag()
	}
	h.reduced_tx_set = r.ReadFlag()

	h.global_motion = parseGlobalMotion(r, prevGM, h.frame_is_intra, h.allow_high_precision_mv)

	h.film_grain, err = d.parseFilmGrainForFrame(r, h)
	if err != nil {
		return nil, err
	}

	if err := r.Err(); err != nil {
		return nil, corruptf("truncated frame header: %v", err)
	}
	return h, nil
}

// markExpiredRefIDs invalidates reference slots whose frame ids can
// no longer be distinguished from the current id. Section 6.8.2,
// frame id numbers semantics.
func (d *Decoder) markExpiredRefIDs(h *frameHeader) {
	seq := d.seq
	idLen := seq.frame_id_length
	diffLen := seq.delta_frame_id_length
	cur := h.current_frame_id

	for i := 0; i < numRefFrames; i++ {
		if !d.refValid[i] {
			continue
		}
		refID := d.refFrameID[i]
		if cur > 1<<uint(diffLen) {
			if refID > cur || refID < cur-(1<<uint(diffLen)) {
				d.refValid[i] = false
			}
		} else {
			if refID > cur && refID < (1<<uint(idLen))+cur-(1<<uint(diffLen)) {
				d.refValid[i] = false
			}
		}
	}
}

// parseFrameSize reads frame_size() including superres (Sections
// 5.9.5 and 5.9.8).
func (d *Decoder) parseFrameSize(r *bitio.Reader, h *frameHeader) error {
	seq := d.seq
	if h.frame_size_override {
		h.width = int(r.ReadLiteral(seq.frame_width_bits)) + 1
		h.height = int(r.ReadLiteral(seq.frame_height_bits)) + 1
		if h.width > seq.max_frame_width || h.height > seq.max_frame_height {
			return corruptf("frame %dx%d exceeds sequence maximum %dx%d",
				h.width, h.height, seq.max_frame_width, seq.max_frame_height)
		}
	} else {
		h.width = seq.max_frame_width
		h.height = seq.max_frame_height
	}
	d.parseSuperres(r, h)
	h.computeImageSize()
	return nil
}

func (d *Decoder) parseSuperres(r *bitio.Reader, h *frameHeader) {
	h.upscaled_width = h.width
	h.superres_denom = superresNum
	if d.seq.enable_superres {
		h.use_superres = r.ReadFlag()
	}
	if h.use_superres {
		h.superres_denom = int(r.ReadLiteral(superresDenomBits)) + superresDenomMin
		h.width = (h.upscaled_width*superresNum + h.superres_denom/2) / h.superres_denom
	}
}

func (h *frameHeader) computeImageSize() {
	h.mi_cols = 2 * ((h.width + 7) >> 3)
	h.mi_rows = 2 * ((h.height + 7) >> 3)
}

func (d *Decoder) parseRenderSize(r *bitio.Reader, h *frameHeader) {
	if r.ReadFlag() {
		h.render_width = int(r.ReadLiteral(16)) + 1
		h.render_height = int(r.ReadLiteral(16)) + 1
	} else {
		h.render_width = h.upscaled_width
		h.render_height = h.height
	}
}

// parseRefFramesAndSize reads the reference selection and frame size
// syntax of inter frames (Sections 5.9.2 and 5.9.7).
func (d *Decoder) parseRefFramesAndSize(r *bitio.Reader, h *frameHeader) error {
	seq := d.seq

	shortSignaling := false
	if seq.enable_order_hint {
		shortSignaling = r.ReadFlag()
	}
	if shortSignaling {
		lastIdx := int(r.ReadLiteral(3))
		goldIdx := int(r.ReadLiteral(3))
		if err := d.setFrameRefs(h, lastIdx, goldIdx); err != nil {
			return err
		}
	} else {
		for i := 0; i < refsPerFrame; i++ {
			h.ref_slots[i] = int(r.ReadLiteral(3))
		}
	}

	for i := 0; i < refsPerFrame; i++ {
		slot := h.ref_slots[i]
		if _, err := d.refs.resolve(slot); err != nil {
			return err
		}
		if seq.frame_id_numbers_present {
			deltaID := int(r.ReadLiteral(seq.delta_frame_id_length)) + 1
			expected := (h.current_frame_id - deltaID +
				(1 << uint(seq.frame_id_length))) % (1 << uint(seq.frame_id_length))
			if err := r.Err(); err != nil {
				return corruptf("truncated header: %v", err)
			}
			if !d.refValid[slot] || d.refFrameID[slot] != expected {
				return corruptf("reference slot %d frame id mismatch: have %d want %d",
					slot, d.refFrameID[slot], expected)
			}
		}
	}

	if h.frame_size_override && !h.error_resilient_mode {
		if err := d.parseFrameSizeWithRefs(r, h); err != nil {
			return err
		}
	} else {
		if err := d.parseFrameSize(r, h); err != nil {
			return err
		}
		d.parseRenderSize(r, h)
	}

	if err := d.validateRefScaling(h); err != nil {
		return err
	}

	if h.force_integer_mv {
		h.allow_high_precision_mv = false
	} else {
		h.allow_high_precision_mv = r.ReadFlag()
	}

	h.is_filter_switchable = r.ReadFlag()
	if h.is_filter_switchable {
		h.interp_filter = 4 // SWITCHABLE
	} else {
		h.interp_filter = int(r.ReadLiteral(2))
	}
	h.is_motion_mode_switchable = r.ReadFlag()

	if !h.error_resilient_mode && seq.enable_ref_frame_mvs {
		h.use_ref_frame_mvs = r.ReadFlag()
	}
	return nil
}

// parseFrameSizeWithRefs reads frame_size_with_refs() (Section
// 5.9.7): the size may be copied from the first reference flagged
// found_ref.
func (d *Decoder) parseFrameSizeWithRefs(r *bitio.Reader, h *frameHeader) error {
	for i := 0; i < refsPerFrame; i++ {
		if !r.ReadFlag() {
			continue
		}
		ref, err := d.refs.resolve(h.ref_slots[i])
		if err != nil {
			return err
		}
		h.upscaled_width = ref.upscaledWidth
		h.height = ref.height
		h.render_width = ref.renderWidth
		h.render_height = ref.renderHeight
		h.width = h.upscaled_width
		d.parseSuperres(r, h)
		h.computeImageSize()
		return nil
	}
	if err := d.parseFrameSize(r, h); err != nil {
		return err
	}
	d.parseRenderSize(r, h)
	return nil
}

// validateRefScaling rejects reference frames outside the legal
// scaling range of the current frame size (Section 6.8.6): a
// reference may be at most twice as small and 16 times as large.
func (d *Decoder) validateRefScaling(h *frameHeader) error {
	for i := 0; i < refsPerFrame; i++ {
		ref, err := d.refs.resolve(h.ref_slots[i])
		if err != nil {
			return err
		}
		if 2*ref.upscaledWidth < h.upscaled_width ||
			2*ref.height < h.height ||
			ref.upscaledWidth > 16*h.upscaled_width ||
			ref.height > 16*h.height {
			return corruptf("reference %d size %dx%d unusable for frame %dx%d",
				i, ref.upscaledWidth, ref.height, h.upscaled_width, h.height)
		}
	}
	return nil
}

// setFrameRefs derives the five remaining references from the coded
// LAST and GOLDEN slots using order hints (Section 7.8).
func (d *Decoder) setFrameRefs(h *frameHeader, lastIdx, goldIdx int) error {
	seq := d.seq
	if !seq.enable_order_hint {
		return corruptf("short reference signaling without order hints")
	}

	for i := range h.ref_slots {
		h.ref_slots[i] = -1
	}
	h.ref_slots[lastFrame-1] = lastIdx
	h.ref_slots[goldenFrame-1] = goldIdx

	used := [numRefFrames]bool{}
	used[lastIdx] = true
	used[goldIdx] = true

	hint := func(slot int) int {
		if d.refs.slots[slot] != nil {
			return d.refs.slots[slot].orderHint
		}
		return d.refOrderHint[slot]
	}

	// Backward references take the closest future frames, ALTREF
	// first from the farthest.
	type cand struct{ slot, dist int }
	var fwd, bwd []cand
	for s := 0; s < numRefFrames; s++ {
		if used[s] {
			continue
		}
		dist := seq.relativeDist(hint(s), h.order_hint)
		if dist > 0 {
			bwd = append(bwd, cand{s, dist})
		} else {
			fwd = append(fwd, cand{s, dist})
		}
	}

	pick := func(cands []cand, farthest bool) int {
		best := -1
		for i, c := range cands {
			if used[c.slot] {
				continue
			}
			if best < 0 ||
				(farthest && abs(c.dist) > abs(cands[best].dist)) ||
				(!farthest && abs(c.dist) < abs(cands[best].dist)) {
				best = i
			}
		}
		if best < 0 {
			return -1
		}
		used[cands[best].slot] = true
		return cands[best].slot
	}

	// ALTREF: farthest future. BWDREF, ALTREF2: nearest remaining
	// future frames.
	h.ref_slots[altrefFrame-1] = pick(bwd, true)
	h.ref_slots[bwdrefFrame-1] = pick(bwd, false)
	h.ref_slots[altref2Frame-1] = pick(bwd, false)

	// LAST2, LAST3: nearest remaining past frames.
	h.ref_slots[last2Frame-1] = pick(fwd, false)
	h.ref_slots[last3Frame-1] = pick(fwd, false)

	// Anything still unset falls back to LAST.
	for i := range h.ref_slots {
		if h.ref_slots[i] < 0 {
			h.ref_slots[i] = lastIdx
		}
	}
	return nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// primaryRefState fetches the carried-over coding state named by
// primary_ref_frame, or the defaults when the frame is independent.
func (d *Decoder) primaryRefState(h *frameHeader) (*segmentationParams, loopFilterDeltas, *[refsPerFrame + 1]warpedMotion, error) {
	defaults := defaultLoopFilterDeltas()
	var defaultGM [refsPerFrame + 1]warpedMotion
	for i := range defaultGM {
		defaultGM[i] = defaultWarpedMotion()
	}

	if h.primary_ref_frame == primaryRefNone {
		return &segmentationParams{}, defaults, &defaultGM, nil
	}
	ref, err := d.refs.resolve(h.ref_slots[h.primary_ref_frame])
	if err != nil {
		return nil, defaults, nil, err
	}
	return &ref.seg, ref.lfDeltas, &ref.globalMotion, nil
}

// parseSkipMode reads skip_mode_params() (Section 5.9.22). Skip mode
// needs a usable forward/backward reference pair.
func (d *Decoder) parseSkipMode(r *bitio.Reader, h *frameHeader) error {
	seq := d.seq
	if h.frame_is_intra || !h.reference_select || !seq.enable_order_hint {
		return nil
	}

	forwardIdx, backwardIdx := -1, -1
	forwardHint, backwardHint := 0, 0
	for i := 0; i < refsPerFrame; i++ {
		ref, err := d.refs.resolve(h.ref_slots[i])
		if err != nil {
			return err
		}
		hint := ref.orderHint
		if seq.relativeDist(hint, h.order_hint) < 0 {
			if forwardIdx < 0 || seq.relativeDist(hint, forwardHint) > 0 {
				forwardIdx = i
				forwardHint = hint
			}
		} else if seq.relativeDist(hint, h.order_hint) > 0 {
			if backwardIdx < 0 || seq.relativeDist(hint, backwardHint) < 0 {
				backwardIdx = i
				backwardHint = hint
			}
		}
	}

	skipModeAllowed := forwardIdx >= 0 && backwardIdx >= 0
	if !skipModeAllowed && forwardIdx >= 0 {
		// Two forward references with distinct hints also qualify.
		secondForward := -1
		secondHint := 0
		for i := 0; i < refsPerFrame; i++ {
			ref, _ := d.refs.resolve(h.ref_slots[i])
			if ref == nil {
				continue
			}
			if seq.relativeDist(ref.orderHint, forwardHint) < 0 {
				if secondForward < 0 || seq.relativeDist(ref.orderHint, secondHint) > 0 {
					secondForward = i
					secondHint = ref.orderHint
				}
			}
		}
		skipModeAllowed = secondForward >= 0
	}

	if skipModeAllowed {
		h.skip_mode_present = r.ReadFlag()
	}
	return nil
}

// parseFilmGrainForFrame wires the header's reference list into the
// film grain parser so inherit-by-reference can resolve.
func (d *Decoder) parseFilmGrainForFrame(r *bitio.Reader, h *frameHeader) (filmGrainParams, error) {
	var slots []int
	if !h.frame_is_intra {
		slots = make([]int, refsPerFrame)
		copy(slots, h.ref_slots[:])
	}
	return parseFilmGrain(r, d.seq, h.show_frame, h.showable_frame, slots,
		func(slot int) (*filmGrainParams, error) {
			ref, err := d.refs.resolve(slot)
			if err != nil {
				return nil, err
			}
			return &ref.filmGrain, nil
		})
}
