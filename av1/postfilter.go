package av1

// applyPostFilters runs the in-loop filters over the reconstructed
// frame, in bitstream order: deblocking, CDEF, the horizontal
// superres upscale, then loop restoration. Restoration runs against
// the upscaled frame, which is why its unit grid was laid out on the
// upscaled width.
func (d *Decoder) applyPostFilters(h *frameHeader, fb *frameBuffer, lr *[3]RestorationRun) {
	pic := fb.picture()

	if !h.coded_lossless && !h.allow_intrabc {
		if h.lf.filter_level[0] != 0 || h.lf.filter_level[1] != 0 {
			d.kernels.Deblock(pic, DeblockParams{
				Levels: [4]int{
					h.lf.filter_level[0], h.lf.filter_level[1],
					h.lf.filter_level_u, h.lf.filter_level_v,
				},
				Sharpness:  h.lf.sharpness,
				RefDeltas:  h.lf.deltas.ref_deltas,
				ModeDeltas: h.lf.deltas.mode_deltas,
			})
		}

		if d.seq.enable_cdef && cdefActive(&h.cdef) {
			d.kernels.CDEF(pic, CDEFParams{
				DampingMinus3: h.cdef.damping - 3,
				Bits:          h.cdef.bits,
				YStrengths:    h.cdef.y_strengths,
				UVStrengths:   h.cdef.uv_strengths,
			})
		}
	}

	if h.use_superres {
		d.kernels.Superres(pic, SuperresParams{
			Denominator:   h.superres_denom,
			UpscaledWidth: h.upscaled_width,
		})
	}

	if h.lr.usesLR && !h.allow_intrabc {
		for plane := 0; plane < fb.numPlanes(); plane++ {
			if h.lr.frame_restoration_type[plane] == restoreNone {
				continue
			}
			d.kernels.Restore(pic, lr[plane])
		}
	}
}

func cdefActive(c *cdefParams) bool {
	for _, s := range c.y_strengths {
		if s != 0 {
			return true
		}
	}
	for _, s := range c.uv_strengths {
		if s != 0 {
			return true
		}
	}
	return false
}

// newRestorationRuns lays out the restoration unit grids for the
// frame. Units tile the upscaled frame, at half-unit rounding, with
// at least one unit per plane.
func newRestorationRuns(h *frameHeader, seq *sequenceHeader, planes int) [3]RestorationRun {
	var runs [3]RestorationRun
	for plane := 0; plane < planes; plane++ {
		if h.lr.frame_restoration_type[plane] == restoreNone {
			continue
		}
		ssx, ssy := 0, 0
		if plane > 0 {
			ssx, ssy = seq.subsampling_x, seq.subsampling_y
		}
		unitSize := h.lr.unit_size[plane]
		w := ceilDiv(h.upscaled_width, 1<<uint(ssx))
		ht := ceilDiv(h.height, 1<<uint(ssy))

		runs[plane] = RestorationRun{
			Plane:     plane,
			UnitSize:  unitSize,
			HorzUnits: countLRUnits(unitSize, w),
			VertUnits: countLRUnits(unitSize, ht),
		}
		runs[plane].Units = make([]RestorationUnit, runs[plane].HorzUnits*runs[plane].VertUnits)
	}
	return runs
}
