package av1

import (
	"github.com/av1dec/go-av1/av1/bitio"
)

// Global motion coding constants. Section 5.9.24.
const (
	gmAbsTransBits     = 12
	gmAbsTransOnlyBits = 9
	gmTransPrecBits    = 6
	gmTransOnlyPrecBits = 3
	gmAbsAlphaBits     = 12
	gmAlphaPrecBits    = 15
	gmSubexpK          = 3

	warpedModelDefault = 1 << warpedModelPrecBits
)

// warpedMotion is one reference's global motion model. wmmat holds
// the affine matrix in WARPEDMODEL_PREC_BITS fixed point; the shear
// parameters are derived and validated after parsing.
type warpedMotion struct {
	wmtype transformationType
	wmmat  [6]int32

	alpha, beta, gamma, delta int16
	invalid                   bool
}

func defaultWarpedMotion() warpedMotion {
	return warpedMotion{
		wmtype: warpIdentity,
		wmmat:  [6]int32{0, 0, warpedModelDefault, 0, 0, warpedModelDefault},
	}
}

// readGlobalParam reads one matrix coefficient as a subexponential
// residual against the previous frame's model.
func readGlobalParam(r *bitio.Reader, typ transformationType, idx int, allowHP bool, prev, cur *warpedMotion) {
	absBits := gmAbsAlphaBits
	precBits := gmAlphaPrecBits

	if idx < 2 {
		if typ == warpTranslation {
			absBits = gmAbsTransOnlyBits
			precBits = gmTransOnlyPrecBits
			if !allowHP {
				absBits--
				precBits--
			}
		} else {
			absBits = gmAbsTransBits
			precBits = gmTransPrecBits
		}
	}

	precDiff := warpedModelPrecBits - precBits
	var round, sub int32
	if idx%3 == 2 {
		// Diagonal terms are coded around 1.0.
		round = 1 << warpedModelPrecBits
		sub = 1 << uint(precBits)
	}
	mx := int32(1) << uint(absBits)
	ref := (prev.wmmat[idx] >> uint(precDiff)) - sub

	v := readSignedSubexpFinRef(r, -mx, mx+1, gmSubexpK, ref)
	cur.wmmat[idx] = v<<uint(precDiff) + round
}

// parseGlobalMotion reads global_motion_params() (Section 5.9.24)
// for every inter reference, validating each model's shear.
func parseGlobalMotion(r *bitio.Reader, prev *[refsPerFrame + 1]warpedMotion, frameIsIntra, allowHighPrecisionMV bool) [refsPerFrame + 1]warpedMotion {
	var gm [refsPerFrame + 1]warpedMotion
	for i := range gm {
		gm[i] = defaultWarpedMotion()
	}
	if frameIsIntra {
		return gm
	}

	for ref := lastFrame; ref <= altrefFrame; ref++ {
		cur := &gm[ref]
		prevRef := prev[ref]

		if !r.ReadFlag() { // is_global
			continue
		}
		if r.ReadFlag() { // is_rot_zoom
			cur.wmtype = warpRotzoom
		} else if r.ReadFlag() { // is_translation
			cur.wmtype = warpTranslation
		} else {
			cur.wmtype = warpAffine
		}

		switch cur.wmtype {
		case warpAffine:
			readGlobalParam(r, cur.wmtype, 2, allowHighPrecisionMV, &prevRef, cur)
			readGlobalParam(r, cur.wmtype, 3, allowHighPrecisionMV, &prevRef, cur)
			readGlobalParam(r, cur.wmtype, 4, allowHighPrecisionMV, &prevRef, cur)
			readGlobalParam(r, cur.wmtype, 5, allowHighPrecisionMV, &prevRef, cur)
		case warpRotzoom:
			readGlobalParam(r, cur.wmtype, 2, allowHighPrecisionMV, &prevRef, cur)
			readGlobalParam(r, cur.wmtype, 3, allowHighPrecisionMV, &prevRef, cur)
			cur.wmmat[4] = -cur.wmmat[3]
			cur.wmmat[5] = cur.wmmat[2]
		}
		readGlobalParam(r, cur.wmtype, 0, allowHighPrecisionMV, &prevRef, cur)
		readGlobalParam(r, cur.wmtype, 1, allowHighPrecisionMV, &prevRef, cur)

		if cur.wmtype > warpTranslation && !cur.computeShear() {
			// A model that cannot be warped is kept but flagged, so
			// blocks selecting it fall back to translation.
			cur.invalid = true
		}
	}
	return gm
}

// computeShear derives the shear parameters of an affine model and
// reports whether the warp is usable. Section 7.11.3.6.
func (wm *warpedMotion) computeShear() bool {
	mat := &wm.wmmat
	if mat[2] <= 0 {
		return false
	}

	wm.alpha = clampInt16(int64(mat[2]) - warpedModelDefault)
	wm.beta = clampInt16(int64(mat[3]))

	v := (int64(mat[4]) << warpedModelPrecBits) / int64(mat[2])
	wm.gamma = clampInt16(v)
	w := int64(mat[3]) * int64(mat[4]) / int64(mat[2])
	wm.delta = clampInt16(int64(mat[5]) - w - warpedModelDefault)

	const shearLimit = 1 << (warpedModelPrecBits - 2)
	for _, s := range []int16{wm.alpha, wm.beta, wm.gamma, wm.delta} {
		if s < -shearLimit || s > shearLimit {
			return false
		}
	}
	return true
}

func clampInt16(v int64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
