package av1

import (
	"github.com/av1dec/go-av1/av1/entropy"
)

const (
	deltaQSmall    = 3 // escape symbol for delta q / delta lf
	paletteSizeMin = 2
)

// defaultModeReader is the built-in mode info syntax. It decodes the
// per-block signaling needed to drive the block topology: segment
// ids, skip flags, quantizer and loop filter deltas, intra modes,
// reference selection and motion vectors.
type defaultModeReader struct{}

// NewModeReader returns the built-in mode info reader.
func NewModeReader() ModeReader {
	return defaultModeReader{}
}

func (defaultModeReader) ReadModeInfo(sym *entropy.Decoder, blk *Block, mi *ModeInfo) error {
	t := blk.td
	h := t.h

	readSegmentID(sym, blk, mi)
	readSkip(sym, blk, mi)
	readDeltas(sym, blk, mi)

	if h.frame_is_intra {
		mi.IsInter = false
	} else if _, ok := blk.SegmentFeature(segLvlRefFrame); ok {
		mi.IsInter = true
	} else {
		mi.IsInter = sym.ReadBool(t.fc.isInter[isInterCtx(blk)])
	}

	if mi.IsInter {
		readInterInfo(sym, blk, mi)
	} else {
		readIntraInfo(sym, blk, mi)
	}

	if sym.Overread() {
		return corruptf("mode info at mi (%d, %d) ran past tile data", blk.miRow, blk.miCol)
	}
	return nil
}

func readSegmentID(sym *entropy.Decoder, blk *Block, mi *ModeInfo) {
	t := blk.td
	seg := &t.h.seg
	if !seg.enabled {
		mi.SegmentID = 0
		return
	}
	if !seg.update_map {
		// Map carried from the primary reference frame; without its
		// map the prediction degenerates to segment zero.
		mi.SegmentID = 0
		return
	}

	ctx := 0
	if a := blk.AboveMI(); a != nil && a.SegmentID > 0 {
		ctx++
	}
	if l := blk.LeftMI(); l != nil && l.SegmentID > 0 {
		ctx++
	}
	id := sym.ReadSymbol(t.fc.segmentID[ctx])
	if id > seg.last_active_seg_id {
		id = seg.last_active_seg_id
	}
	mi.SegmentID = id
}

func readSkip(sym *entropy.Decoder, blk *Block, mi *ModeInfo) {
	t := blk.td
	if t.h.seg.featureActive(mi.SegmentID, segLvlSkip) {
		mi.Skip = true
		return
	}
	ctx := 0
	if a := blk.AboveMI(); a != nil && a.Skip {
		ctx++
	}
	if l := blk.LeftMI(); l != nil && l.Skip {
		ctx++
	}
	mi.Skip = sym.ReadBool(t.fc.skip[ctx])
}

// readDeltas reads the superblock-scoped quantizer and loop filter
// deltas. They ride on the first coded block of each superblock.
func readDeltas(sym *entropy.Decoder, blk *Block, mi *ModeInfo) {
	t := blk.td
	h := t.h
	if !t.readDeltas {
		return
	}
	sbSized := mi.Size == t.d.seq.sbSize() && mi.Skip
	if sbSized {
		// A skipped whole-superblock block carries no deltas.
		return
	}
	t.readDeltas = false

	if h.delta_q.present {
		delta := readDeltaValue(sym, t.fc.deltaQ)
		t.curQIndex = clampInt(t.curQIndex+(delta<<uint(h.delta_q.res)), 1, 255)
	}
	if h.delta_lf.present && !h.allow_intrabc {
		n := 1
		if h.delta_lf.multi {
			n = frameLFCount
			if t.d.seq.monochrome {
				n = frameLFCount - 2
			}
		}
		for i := 0; i < n; i++ {
			delta := readDeltaValue(sym, t.fc.deltaLF[i])
			t.curDeltaLF[i] = clampInt(t.curDeltaLF[i]+(delta<<uint(h.delta_lf.res)), -maxLoopFilterLevel, maxLoopFilterLevel)
		}
		if !h.delta_lf.multi {
			for i := 1; i < frameLFCount; i++ {
				t.curDeltaLF[i] = t.curDeltaLF[0]
			}
		}
	}
}

// readDeltaValue reads one signed delta: a small magnitude symbol
// with an escape to explicitly coded remainder bits.
func readDeltaValue(sym *entropy.Decoder, cdf []uint16) int {
	abs := sym.ReadSymbol(cdf)
	if abs == deltaQSmall {
		remBits := int(sym.ReadLiteral(3)) + 1
		abs = int(sym.ReadLiteral(remBits)) + (1 << uint(remBits)) + 1
	}
	if abs == 0 {
		return 0
	}
	if sym.ReadBit() == 1 {
		return -abs
	}
	return abs
}

func isInterCtx(blk *Block) int {
	ctx := 0
	if a := blk.AboveMI(); a != nil && a.IsInter {
		ctx++
	}
	if l := blk.LeftMI(); l != nil && l.IsInter {
		ctx += 2
	}
	return ctx
}

func sizeGroup(b BlockSize) int {
	return clampInt((b.wideLog2()+log2u(uint32(blockHigh[b])))/2, 0, blockSizeGroups-1)
}

func readIntraInfo(sym *entropy.Decoder, blk *Block, mi *ModeInfo) {
	t := blk.td
	mi.RefFrames[0] = intraRef
	mi.RefFrames[1] = -1

	mi.YMode = sym.ReadSymbol(t.fc.yMode[sizeGroup(mi.Size)])

	if blk.PlaneCount() > 1 && chromaCovered(blk) {
		mi.UVMode = sym.ReadSymbol(t.fc.uvMode[mi.YMode])
	}

	if paletteAllowed(blk) {
		if sym.ReadBit() == 1 {
			mi.PaletteSizes[0] = paletteSizeMin + int(sym.ReadLiteral(3))
		}
		if blk.PlaneCount() > 1 && sym.ReadBit() == 1 {
			mi.PaletteSizes[1] = paletteSizeMin + int(sym.ReadLiteral(3))
		}
	}
}

// chromaCovered reports whether this block codes chroma samples: the
// bottom-right-most luma block of a subsampled pair carries them.
func chromaCovered(blk *Block) bool {
	seq := blk.td.d.seq
	b := blk.mi.Size
	if seq.subsampling_x == 1 && b.wide() == 1 && blk.miCol&1 == 0 {
		return false
	}
	if seq.subsampling_y == 1 && b.high() == 1 && blk.miRow&1 == 0 {
		return false
	}
	return true
}

func paletteAllowed(blk *Block) bool {
	h := blk.td.h
	b := blk.mi.Size
	return h.allow_screen_content_tools &&
		b.widePx() >= 8 && b.highPx() >= 8 &&
		b.widePx() <= 64 && b.highPx() <= 64
}

func readInterInfo(sym *entropy.Decoder, blk *Block, mi *ModeInfo) {
	t := blk.td
	h := t.h

	if data, ok := blk.SegmentFeature(segLvlRefFrame); ok {
		mi.RefFrames[0] = int8(clampInt(data, lastFrame, altrefFrame))
	} else {
		mi.RefFrames[0] = readRefFrame(sym, t)
	}
	mi.RefFrames[1] = -1

	if h.seg.featureActive(mi.SegmentID, segLvlGlobalMV) {
		mi.UseGlobalMV = true
		return
	}

	mi.UseGlobalMV = sym.ReadBit() == 1
	if mi.UseGlobalMV {
		return
	}

	for i := range mi.MV {
		mi.MV[i].Row = readMVComponent(sym, h.force_integer_mv)
		mi.MV[i].Col = readMVComponent(sym, h.force_integer_mv)
		if i == 0 && mi.RefFrames[1] < 0 {
			break
		}
	}
}

// readRefFrame walks a three-level binary tree over the seven
// references: past vs future first, then within the group.
func readRefFrame(sym *entropy.Decoder, t *tileDecoder) int8 {
	if sym.ReadBool(t.fc.refBit[0]) {
		// Future group: BWDREF, ALTREF2, ALTREF.
		if sym.ReadBool(t.fc.refBit[1]) {
			return altrefFrame
		}
		if sym.ReadBool(t.fc.refBit[2]) {
			return altref2Frame
		}
		return bwdrefFrame
	}
	// Past group: LAST, LAST2, LAST3, GOLDEN.
	if sym.ReadBool(t.fc.refBit[1]) {
		if sym.ReadBool(t.fc.refBit[2]) {
			return goldenFrame
		}
		return last3Frame
	}
	if sym.ReadBool(t.fc.refBit[2]) {
		return last2Frame
	}
	return lastFrame
}

func readMVComponent(sym *entropy.Decoder, integer bool) int16 {
	neg := sym.ReadBit() == 1
	mag := int16(sym.ReadLiteral(10))
	if integer {
		mag &^= 7
	}
	if neg {
		return -mag
	}
	return mag
}
