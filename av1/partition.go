package av1

import (
	"github.com/av1dec/go-av1/av1/entropy"
)

// Partition context words: a block of width category w contributes a
// word whose bit b is set for every read at a size category above w,
// meaning "the neighbor here is split smaller than you".
func partitionCtxWord(b BlockSize) (above, left uint8) {
	return uint8(0xff << uint(b.wideLog2()+1)),
		uint8(0xff << uint(log2u(uint32(b.high()))+1))
}

func (t *tileDecoder) partitionCtx(miRow, miCol int, b BlockSize) (above, left int) {
	cat := b.wideLog2() // width in mi units is also the size category
	if miRow > t.info.miRowStart {
		above = int(t.abovePartCtx[miCol-t.info.miColStart]>>uint(cat)) & 1
	}
	if miCol > t.info.miColStart {
		left = int(t.leftPartCtx[miRow&maxMibMask]>>uint(cat)) & 1
	}
	return above, left
}

// updatePartitionCtx stamps the context words of subSize over the
// footprint of bSize at (miRow, miCol).
func (t *tileDecoder) updatePartitionCtx(miRow, miCol int, subSize, bSize BlockSize) {
	aw, lw := partitionCtxWord(subSize)
	for i := 0; i < bSize.wide(); i++ {
		c := miCol - t.info.miColStart + i
		if c < len(t.abovePartCtx) {
			t.abovePartCtx[c] = aw
		}
	}
	for i := 0; i < bSize.high(); i++ {
		t.leftPartCtx[(miRow+i)&maxMibMask] = lw
	}
}

// cdfElementProb is the probability mass cdf assigns to symbol sym.
func cdfElementProb(cdf []uint16, sym int) uint16 {
	return entropy.CDFProb(cdf, sym)
}

// gatherVertAlike collapses a partition CDF into a binary HORZ/SPLIT
// choice for blocks whose bottom half is off the frame: the mass of
// every shape with a vertical split of the top edge becomes SPLIT.
func gatherVertAlike(cdf []uint16, b BlockSize) []uint16 {
	symbols := entropy.CDFSymbols(cdf)
	p := uint32(entropy.ProbTop)
	p -= uint32(cdfElementProb(cdf, int(partitionVert)))
	p -= uint32(cdfElementProb(cdf, int(partitionSplit)))
	if symbols > int(partitionHorzA) {
		p -= uint32(cdfElementProb(cdf, int(partitionHorzA)))
		p -= uint32(cdfElementProb(cdf, int(partitionVertA)))
		p -= uint32(cdfElementProb(cdf, int(partitionVertB)))
	}
	if symbols > int(partitionVert4) {
		p -= uint32(cdfElementProb(cdf, int(partitionVert4)))
	}
	// Symbol 0 is "not split": PARTITION_HORZ. Symbol 1 is SPLIT.
	return []uint16{uint16(p), entropy.ProbTop, 0}
}

// gatherHorzAlike collapses a partition CDF into a binary VERT/SPLIT
// choice for blocks whose right half is off the frame.
func gatherHorzAlike(cdf []uint16, b BlockSize) []uint16 {
	symbols := entropy.CDFSymbols(cdf)
	p := uint32(entropy.ProbTop)
	p -= uint32(cdfElementProb(cdf, int(partitionHorz)))
	p -= uint32(cdfElementProb(cdf, int(partitionSplit)))
	if symbols > int(partitionHorzA) {
		p -= uint32(cdfElementProb(cdf, int(partitionHorzA)))
		p -= uint32(cdfElementProb(cdf, int(partitionHorzB)))
		p -= uint32(cdfElementProb(cdf, int(partitionVertA)))
	}
	if symbols > int(partitionHorz4) {
		p -= uint32(cdfElementProb(cdf, int(partitionHorz4)))
	}
	return []uint16{uint16(p), entropy.ProbTop, 0}
}

// decodePartition walks the partition tree of one block, decoding
// its leaves. Section 5.11.4.
func (t *tileDecoder) decodePartition(miRow, miCol int, bSize BlockSize) error {
	h := t.h
	if miRow >= h.mi_rows || miCol >= h.mi_cols {
		return nil
	}

	hbs := bSize.wide() / 2
	qbs := hbs / 2
	hasRows := miRow+bSize.high()/2 < h.mi_rows
	hasCols := miCol+hbs < h.mi_cols

	var p partitionType
	switch {
	case bSize < Block8x8:
		p = partitionNone
	case hasRows && hasCols:
		above, left := t.partitionCtx(miRow, miCol, bSize)
		cdf := t.fc.partitionCDF(bSize, above, left)
		sym := t.sym.ReadSymbol(cdf)
		if bSize == Block8x8 && sym >= int(partitionHorzA) {
			return corruptf("partition %d at 8x8", sym)
		}
		p = partitionType(sym)
	case hasCols:
		// Bottom edge: only the top half exists, so the coded choice
		// collapses to HORZ versus SPLIT.
		above, left := t.partitionCtx(miRow, miCol, bSize)
		cdf := t.fc.partitionCDF(bSize, above, left)
		if t.sym.ReadSymbol(gatherVertAlike(cdf, bSize)) != 0 {
			p = partitionSplit
		} else {
			p = partitionHorz
		}
	case hasRows:
		above, left := t.partitionCtx(miRow, miCol, bSize)
		cdf := t.fc.partitionCDF(bSize, above, left)
		if t.sym.ReadSymbol(gatherHorzAlike(cdf, bSize)) != 0 {
			p = partitionSplit
		} else {
			p = partitionVert
		}
	default:
		p = partitionSplit
	}

	sub := subSize(p, bSize)
	if sub == BlockInvalid {
		return corruptf("partition %d of %dx%d block has no subsize",
			p, bSize.widePx(), bSize.highPx())
	}
	split := subSize(partitionSplit, bSize)

	var err error
	switch p {
	case partitionNone:
		err = t.decodeBlock(miRow, miCol, sub)
	case partitionHorz:
		if err = t.decodeBlock(miRow, miCol, sub); err == nil && hasRows {
			err = t.decodeBlock(miRow+hbs, miCol, sub)
		}
	case partitionVert:
		if err = t.decodeBlock(miRow, miCol, sub); err == nil && hasCols {
			err = t.decodeBlock(miRow, miCol+hbs, sub)
		}
	case partitionSplit:
		for _, q := range [4][2]int{{0, 0}, {0, hbs}, {hbs, 0}, {hbs, hbs}} {
			if err = t.decodePartition(miRow+q[0], miCol+q[1], sub); err != nil {
				return err
			}
		}
	case partitionHorzA:
		err = t.decodeThree(miRow, miCol, split, miRow, miCol+hbs, split, miRow+hbs, miCol, sub)
	case partitionHorzB:
		err = t.decodeThree(miRow, miCol, sub, miRow+hbs, miCol, split, miRow+hbs, miCol+hbs, split)
	case partitionVertA:
		err = t.decodeThree(miRow, miCol, split, miRow+hbs, miCol, split, miRow, miCol+hbs, sub)
	case partitionVertB:
		err = t.decodeThree(miRow, miCol, sub, miRow, miCol+hbs, split, miRow+hbs, miCol+hbs, split)
	case partitionHorz4:
		for i := 0; i < 4; i++ {
			r := miRow + i*qbs
			if i > 0 && r >= h.mi_rows {
				break
			}
			if err = t.decodeBlock(r, miCol, sub); err != nil {
				return err
			}
		}
	case partitionVert4:
		for i := 0; i < 4; i++ {
			c := miCol + i*qbs
			if i > 0 && c >= h.mi_cols {
				break
			}
			if err = t.decodeBlock(miRow, c, sub); err != nil {
				return err
			}
		}
	}
	if err != nil {
		return err
	}

	if bSize >= Block8x8 {
		t.updateExtPartitionCtx(miRow, miCol, p, sub, bSize)
	}
	return nil
}

func (t *tileDecoder) decodeThree(r0, c0 int, s0 BlockSize, r1, c1 int, s1 BlockSize, r2, c2 int, s2 BlockSize) error {
	if err := t.decodeBlock(r0, c0, s0); err != nil {
		return err
	}
	if err := t.decodeBlock(r1, c1, s1); err != nil {
		return err
	}
	return t.decodeBlock(r2, c2, s2)
}

func (t *tileDecoder) updateExtPartitionCtx(miRow, miCol int, p partitionType, sub, bSize BlockSize) {
	hbs := bSize.wide() / 2
	bsize2 := subSize(partitionSplit, bSize)

	switch p {
	case partitionSplit:
		if bSize == Block8x8 {
			t.updatePartitionCtx(miRow, miCol, sub, bSize)
		}
	case partitionNone, partitionHorz, partitionVert, partitionHorz4, partitionVert4:
		t.updatePartitionCtx(miRow, miCol, sub, bSize)
	case partitionHorzA:
		t.updatePartitionCtx(miRow, miCol, bsize2, sub)
		t.updatePartitionCtx(miRow+hbs, miCol, sub, sub)
	case partitionHorzB:
		t.updatePartitionCtx(miRow, miCol, sub, sub)
		t.updatePartitionCtx(miRow+hbs, miCol, bsize2, sub)
	case partitionVertA:
		t.updatePartitionCtx(miRow, miCol, bsize2, sub)
		t.updatePartitionCtx(miRow, miCol+hbs, sub, sub)
	case partitionVertB:
		t.updatePartitionCtx(miRow, miCol, sub, sub)
		t.updatePartitionCtx(miRow, miCol+hbs, bsize2, sub)
	}
}
