package av1

import (
	"github.com/av1dec/go-av1/av1/entropy"
)

// tileDecoder decodes one tile's superblocks against a private copy
// of the frame context. Tiles share the frame buffer, the mode info
// arena and the restoration unit grids, but every cell each tile
// touches is inside its own bounds, so concurrent tiles never write
// the same memory.
type tileDecoder struct {
	d    *Decoder
	h    *frameHeader
	info tileInfo

	fc  *FrameContext
	sym *entropy.Decoder

	arena *modeInfoArena
	mia   *miAllocator

	cur     *frameBuffer
	refBufs [numRefFrames]*frameBuffer
	lr      *[3]RestorationRun

	// Tile-local neighbor context. Above arrays span the tile width;
	// left arrays cover one superblock column and reset per row.
	abovePartCtx []uint8
	leftPartCtx  [maxMibSize]uint8
	aboveTxCtx   []uint8
	leftTxCtx    [maxMibSize]uint8

	curQIndex  int
	curDeltaLF [frameLFCount]int
	readDeltas bool

	// Loop restoration subexp references, reset at tile start.
	wienerRef  [3][2][3]int8
	sgrprojRef [3][2]int16

	coeffs []int32

	corrupted bool
}

func newTileDecoder(d *Decoder, h *frameHeader, info tileInfo, fc *FrameContext,
	arena *modeInfoArena, cur *frameBuffer, refBufs [numRefFrames]*frameBuffer,
	lr *[3]RestorationRun, data []byte) (*tileDecoder, error) {

	sym, err := entropy.NewDecoder(data, !h.disable_cdf_update)
	if err != nil {
		return nil, corruptf("tile (%d, %d): %s", info.row, info.col, err)
	}

	t := &tileDecoder{
		d:    d,
		h:    h,
		info: info,
		fc:   fc,
		sym:  sym,

		arena: arena,
		mia:   arena.tilePartition(info),

		cur:     cur,
		refBufs: refBufs,
		lr:      lr,

		abovePartCtx: make([]uint8, info.miColEnd-info.miColStart),
		aboveTxCtx:   make([]uint8, info.miColEnd-info.miColStart),

		curQIndex: h.quant.base_q_idx,

		coeffs: make([]int32, maxTxSamples),
	}
	for p := range t.wienerRef {
		t.wienerRef[p] = [2][3]int8{
			{wienerTapsMid[0], wienerTapsMid[1], wienerTapsMid[2]},
			{wienerTapsMid[0], wienerTapsMid[1], wienerTapsMid[2]},
		}
		t.sgrprojRef[p] = [2]int16{sgrXqdMid[0], sgrXqdMid[1]}
	}
	for i := range t.aboveTxCtx {
		t.aboveTxCtx[i] = 64
	}
	return t, nil
}

// decode runs the tile's superblock loop. A corrupt superblock poisons
// the rest of the tile but the error surfaces only after the current
// superblock row finishes, so neighbor context stays well defined for
// blocks already committed.
func (t *tileDecoder) decode() error {
	seq := t.d.seq
	sbSz := 1 << uint(seq.sbSizeLog2())
	sbBlock := seq.sbSize()

	for miRow := t.info.miRowStart; miRow < t.info.miRowEnd; miRow += sbSz {
		for i := range t.leftPartCtx {
			t.leftPartCtx[i] = 0
			t.leftTxCtx[i] = 64
		}

		var rowErr error
		for miCol := t.info.miColStart; miCol < t.info.miColEnd; miCol += sbSz {
			t.readDeltas = t.h.delta_q.present || t.h.delta_lf.present

			if err := t.readLoopRestoration(miRow, miCol, sbSz); err != nil {
				rowErr = err
				break
			}
			if err := t.decodePartition(miRow, miCol, sbBlock); err != nil {
				rowErr = err
				break
			}
		}
		if rowErr != nil {
			t.corrupted = true
			return rowErr
		}
		if t.corrupted {
			return corruptf("tile (%d, %d) overread at superblock row %d",
				t.info.row, t.info.col, miRow>>uint(seq.sbSizeLog2()))
		}
	}
	return nil
}

// Loop restoration per-unit syntax. Filter taps are subexponential
// residuals against the previous unit in the tile.
var (
	wienerTapsMin = [3]int8{-5, -23, -17}
	wienerTapsMax = [3]int8{10, 8, 46}
	wienerTapsMid = [3]int8{3, -7, 15}
	wienerTapsK   = [3]int{1, 2, 3}

	sgrXqdMin = [2]int16{-96, -32}
	sgrXqdMax = [2]int16{31, 95}
	sgrXqdMid = [2]int16{-32, 31}
)

// sgrProjRadii gives the pass radii of each self-guided parameter
// set. A zero radius disables the pass and its xqd is derived.
var sgrProjRadii = [16][2]int{
	{2, 1}, {2, 1}, {2, 1}, {2, 1}, {2, 1},
	{2, 1}, {2, 1}, {2, 1}, {2, 1}, {2, 1},
	{2, 0}, {2, 0}, {2, 0}, {2, 0},
	{0, 1}, {0, 1},
}

func countLRUnits(unitSize, frameSize int) int {
	return maxInt((frameSize+(unitSize>>1))/unitSize, 1)
}

// readLoopRestoration reads the restoration units whose coverage
// starts inside the superblock at (miRow, miCol). Section 5.11.57.
func (t *tileDecoder) readLoopRestoration(miRow, miCol, sbSz int) error {
	h := t.h
	if h.allow_intrabc {
		return nil
	}

	for plane := 0; plane < t.cur.numPlanes(); plane++ {
		if h.lr.frame_restoration_type[plane] == restoreNone {
			continue
		}
		run := &t.lr[plane]
		ssx, ssy := t.planeSubsampling(plane)
		unitSize := run.UnitSize

		miPxY := 1 << miSizeLog2 >> uint(ssy)
		rowStart := (miRow*miPxY + unitSize - 1) / unitSize
		rowEnd := minInt(run.VertUnits, ((miRow+sbSz)*miPxY+unitSize-1)/unitSize)

		num := 1 << miSizeLog2 >> uint(ssx)
		den := unitSize
		if h.use_superres {
			num *= h.superres_denom
			den *= superresNum
		}
		colStart := (miCol*num + den - 1) / den
		colEnd := minInt(run.HorzUnits, ((miCol+sbSz)*num+den-1)/den)

		for ur := rowStart; ur < rowEnd; ur++ {
			for uc := colStart; uc < colEnd; uc++ {
				if err := t.readLRUnit(plane, &run.Units[ur*run.HorzUnits+uc]); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (t *tileDecoder) readLRUnit(plane int, unit *RestorationUnit) error {
	h := t.h
	switch h.lr.frame_restoration_type[plane] {
	case restoreSwitchable:
		unit.Type = RestorationUnitType(t.sym.ReadSymbol(t.fc.switchableRestore))
	case restoreWiener:
		if t.sym.ReadBool(t.fc.wienerRestore) {
			unit.Type = RestoreUnitWiener
		} else {
			unit.Type = RestoreUnitNone
		}
	case restoreSgrproj:
		if t.sym.ReadBool(t.fc.sgrprojRestore) {
			unit.Type = RestoreUnitSgrproj
		} else {
			unit.Type = RestoreUnitNone
		}
	}

	switch unit.Type {
	case RestoreUnitWiener:
		t.readWienerFilter(plane, unit)
	case RestoreUnitSgrproj:
		t.readSgrprojFilter(plane, unit)
	}

	if t.sym.Overread() {
		return corruptf("restoration unit in plane %d ran past tile data", plane)
	}
	return nil
}

func (t *tileDecoder) readWienerFilter(plane int, unit *RestorationUnit) {
	for pass := 0; pass < 2; pass++ {
		for j := 0; j < 3; j++ {
			if plane > 0 && j == 0 {
				// Chroma uses 5-tap filters; the outermost tap is
				// fixed at zero.
				continue
			}
			v := readSignedSubexpFinRef(t.sym,
				int32(wienerTapsMin[j]), int32(wienerTapsMax[j])+1,
				int32(wienerTapsK[j]), int32(t.wienerRef[plane][pass][j]))
			t.wienerRef[plane][pass][j] = int8(v)
		}
		taps := t.wienerRef[plane][pass]
		if plane > 0 {
			taps[0] = 0
		}
		if pass == 0 {
			unit.Wiener.Vertical = taps
		} else {
			unit.Wiener.Horizontal = taps
		}
	}
}

func (t *tileDecoder) readSgrprojFilter(plane int, unit *RestorationUnit) {
	set := int(t.sym.ReadLiteral(4))
	unit.Sgrproj.ParamsIndex = set

	for i := 0; i < 2; i++ {
		if sgrProjRadii[set][i] != 0 {
			v := readSignedSubexpFinRef(t.sym,
				int32(sgrXqdMin[i]), int32(sgrXqdMax[i])+1,
				4, int32(t.sgrprojRef[plane][i]))
			t.sgrprojRef[plane][i] = int16(v)
		} else if i == 1 {
			derived := (1 << 7) - int(t.sgrprojRef[plane][0])
			t.sgrprojRef[plane][1] = int16(clampInt(derived, int(sgrXqdMin[1]), int(sgrXqdMax[1])))
		} else {
			t.sgrprojRef[plane][0] = 0
		}
	}
	unit.Sgrproj.XQD = t.sgrprojRef[plane]
}
