package av1

// Block is the decode-time context for one coded block, handed to
// the mode and coefficient readers.
type Block struct {
	td *tileDecoder
	mi *ModeInfo

	miRow, miCol int

	// Edge distances in eighth-pel units, negative toward the
	// top-left corner.
	toTopEdge, toLeftEdge     int
	toBottomEdge, toRightEdge int
}

// MiRow returns the block's mode info row.
func (b *Block) MiRow() int { return b.miRow }

// MiCol returns the block's mode info column.
func (b *Block) MiCol() int { return b.miCol }

// Size returns the coded block size.
func (b *Block) Size() BlockSize { return b.mi.Size }

// FrameIsIntra reports whether the frame codes no inter blocks.
func (b *Block) FrameIsIntra() bool { return b.td.h.frame_is_intra }

// PlaneCount returns the number of coded planes.
func (b *Block) PlaneCount() int {
	if b.td.d.seq.monochrome {
		return 1
	}
	return 3
}

// AboveMI returns the neighbor above, nil at the tile's top edge.
func (b *Block) AboveMI() *ModeInfo {
	if b.miRow <= b.td.info.miRowStart {
		return nil
	}
	return b.td.arena.at(b.miRow-1, b.miCol)
}

// LeftMI returns the neighbor to the left, nil at the tile's left
// edge.
func (b *Block) LeftMI() *ModeInfo {
	if b.miCol <= b.td.info.miColStart {
		return nil
	}
	return b.td.arena.at(b.miRow, b.miCol-1)
}

// QIndex returns the block's effective quantizer index after
// segmentation and delta q.
func (b *Block) QIndex() int {
	q := b.td.curQIndex
	if data, ok := b.SegmentFeature(segLvlAltQ); ok {
		q = clampInt(q+data, 0, 255)
	}
	return q
}

// SegmentFeature returns a segmentation feature value for the
// block's segment, plus whether the feature is active.
func (b *Block) SegmentFeature(feature int) (int, bool) {
	h := b.td.h
	if !h.seg.featureActive(b.mi.SegmentID, feature) {
		return 0, false
	}
	return int(h.seg.feature_data[b.mi.SegmentID][feature]), true
}

// GlobalMotionUsable reports whether the global model of the block's
// first reference survived shear validation.
func (b *Block) GlobalMotionUsable() bool {
	ref := b.mi.RefFrames[0]
	if ref <= intraRef {
		return false
	}
	return !b.td.h.global_motion[ref].invalid
}

// decodeBlock decodes one leaf of the partition tree: mode info,
// palette tokens, transform sizing, prediction and residual.
func (t *tileDecoder) decodeBlock(miRow, miCol int, bSize BlockSize) error {
	h := t.h
	if miRow >= h.mi_rows || miCol >= h.mi_cols {
		return nil
	}

	// A block whose chroma geometry cannot exist is a stream error,
	// not a crash (4:2:2 with tall 4-sample-wide shapes).
	if !t.d.seq.monochrome {
		if planeBlockSize(bSize, t.d.seq.subsampling_x, t.d.seq.subsampling_y) == BlockInvalid {
			return corruptf("block %dx%d invalid under %d:%d subsampling",
				bSize.widePx(), bSize.highPx(), t.d.seq.subsampling_x, t.d.seq.subsampling_y)
		}
	}

	mi := t.mia.alloc(miRow, miCol, bSize)
	blk := &Block{
		td:    t,
		mi:    mi,
		miRow: miRow,
		miCol: miCol,

		toTopEdge:    -(miRow * 32),
		toLeftEdge:   -(miCol * 32),
		toBottomEdge: (h.mi_rows - bSize.high() - miRow) * 32,
		toRightEdge:  (h.mi_cols - bSize.wide() - miCol) * 32,
	}

	if err := t.d.modeReader.ReadModeInfo(t.sym, blk, mi); err != nil {
		return err
	}

	for plane := 0; plane < minInt(blk.PlaneCount(), 2); plane++ {
		if mi.PaletteSizes[plane] > 0 {
			if err := t.d.coeffReader.ReadPaletteTokens(t.sym, blk, plane); err != nil {
				return err
			}
		}
	}

	if err := t.readTxSizes(blk); err != nil {
		return err
	}

	if err := t.reconstruct(blk); err != nil {
		return err
	}

	if t.sym.Overread() {
		t.corrupted = true
	}
	return nil
}

// readTxSizes determines the block's transform sizing: a coded depth
// for intra blocks under TX_MODE_SELECT, a recursive split tree for
// inter blocks, and fixed sizes otherwise.
func (t *tileDecoder) readTxSizes(blk *Block) error {
	h := t.h
	mi := blk.mi
	maxTx := maxTxSizeRect(mi.Size)

	switch {
	case h.tx_mode == txModeOnly4x4:
		mi.TxSize = Tx4x4
	case h.tx_mode == txModeLargest:
		mi.TxSize = maxTx
	case !mi.IsInter:
		mi.TxSize = t.readIntraTxSize(blk, maxTx)
	case mi.Skip:
		mi.TxSize = maxTx
		mi.setInterTxSize(maxTx, 0, 0, mi.Size.high(), mi.Size.wide())
	default:
		mi.TxSize = maxTx
		bh, bw := maxTx.high(), maxTx.wide()
		for row := 0; row < mi.Size.high(); row += bh {
			for col := 0; col < mi.Size.wide(); col += bw {
				t.readTxTree(blk, maxTx, 0, row, col)
			}
		}
	}

	if !mi.IsInter || mi.Skip || h.tx_mode != txModeSelect {
		// Uniform sizing also fills the inter transform map so the
		// reconstruction loop has one source of truth.
		mi.setInterTxSize(mi.TxSize, 0, 0, mi.Size.high(), mi.Size.wide())
		t.updateTxCtx(blk.miRow, blk.miCol, mi.Size, mi.TxSize)
	}
	return nil
}

// readIntraTxSize reads the coded split depth below the block's
// largest transform.
func (t *tileDecoder) readIntraTxSize(blk *Block, maxTx TxSize) TxSize {
	cat := clampInt(maxTx.squareTxCat()-1, 0, maxTxCats-1)
	maxDepth := maxTxDepth
	if cat == 0 {
		maxDepth = 1
	}

	ctx := 0
	if above := blk.AboveMI(); above != nil && above.TxSize.widePx() >= blk.mi.Size.widePx() {
		ctx++
	}
	if left := blk.LeftMI(); left != nil && left.TxSize.highPx() >= blk.mi.Size.highPx() {
		ctx++
	}

	depth := t.sym.ReadSymbol(t.fc.txDepth[cat][ctx])
	if depth > maxDepth {
		depth = maxDepth
	}
	tx := maxTx
	for i := 0; i < depth; i++ {
		tx = subTx[tx]
	}
	return tx
}

// readTxTree reads the vartx split recursion for one inter transform
// block. Section 5.11.16.
func (t *tileDecoder) readTxTree(blk *Block, tx TxSize, depth, blkRow, blkCol int) {
	h := t.h
	mi := blk.mi
	if blk.miRow+blkRow >= h.mi_rows || blk.miCol+blkCol >= h.mi_cols {
		return
	}

	split := false
	if depth < maxVartxDepth && tx != Tx4x4 && subTx[tx] != tx {
		ctx := t.txfmSplitCtx(blk.miRow+blkRow, blk.miCol+blkCol, tx)
		split = t.sym.ReadBool(t.fc.txfmSplit[ctx])
	}

	if !split {
		mi.setInterTxSize(tx, blkRow, blkCol, tx.high(), tx.wide())
		if tx.widePx()*tx.highPx() < mi.TxSize.widePx()*mi.TxSize.highPx() {
			mi.TxSize = tx
		}
		t.stampTxCtx(blk.miRow+blkRow, blk.miCol+blkCol, tx.wide(), tx.high(), tx)
		return
	}

	sub := subTx[tx]
	stepR, stepC := sub.high(), sub.wide()
	for r := 0; r < tx.high(); r += stepR {
		for c := 0; c < tx.wide(); c += stepC {
			t.readTxTree(blk, sub, depth+1, blkRow+r, blkCol+c)
		}
	}
}

// setInterTxSize records tx over a leaf footprint of h by w mi units
// at (blkRow, blkCol). Leaves below the slot granularity collapse
// onto the slot they share.
func (mi *ModeInfo) setInterTxSize(tx TxSize, blkRow, blkCol, h, w int) {
	g := subTx[maxTxSizeRect(mi.Size)]
	for r := blkRow; r < blkRow+h; r += g.high() {
		for c := blkCol; c < blkCol+w; c += g.wide() {
			mi.InterTxSizes[mi.interTxIndex(r, c)] = tx
		}
	}
}

func (mi *ModeInfo) interTxSize(blkRow, blkCol int) TxSize {
	return mi.InterTxSizes[mi.interTxIndex(blkRow, blkCol)]
}

// Transform split context tracking: the arrays hold each neighbor
// cell's transform extent in pixels.
func (t *tileDecoder) txfmSplitCtx(miRow, miCol int, tx TxSize) int {
	above, left := tx.widePx(), tx.highPx()
	if miRow > t.info.miRowStart {
		above = int(t.aboveTxCtx[miCol-t.info.miColStart])
	}
	if miCol > t.info.miColStart {
		left = int(t.leftTxCtx[miRow&maxMibMask])
	}
	a, l := 0, 0
	if above < tx.widePx() {
		a = 1
	}
	if left < tx.highPx() {
		l = 1
	}
	cat := clampInt(tx.squareTxCat()-1, 0, 3)
	return cat*3 + a + l
}

func (t *tileDecoder) stampTxCtx(miRow, miCol, w, h int, tx TxSize) {
	for i := 0; i < w; i++ {
		c := miCol - t.info.miColStart + i
		if c < len(t.aboveTxCtx) {
			t.aboveTxCtx[c] = uint8(tx.widePx())
		}
	}
	for i := 0; i < h; i++ {
		t.leftTxCtx[(miRow+i)&maxMibMask] = uint8(tx.highPx())
	}
}

func (t *tileDecoder) updateTxCtx(miRow, miCol int, b BlockSize, tx TxSize) {
	t.stampTxCtx(miRow, miCol, b.wide(), b.high(), tx)
}

// reconstruct runs prediction and residual decode for every
// transform unit of the block. Intra planes predict unit by unit so
// each prediction sees its reconstructed neighbors; inter blocks
// predict the whole block first, then add residuals.
func (t *tileDecoder) reconstruct(blk *Block) error {
	mi := blk.mi

	if mi.IsInter {
		refs := t.refPictures(mi)
		for plane := 0; plane < blk.PlaneCount(); plane++ {
			ssx, ssy := t.planeSubsampling(plane)
			x := (blk.miCol >> uint(ssx)) << miSizeLog2
			y := (blk.miRow >> uint(ssy)) << miSizeLog2
			w := maxInt(mi.Size.wide()>>uint(ssx), 1) << miSizeLog2
			h := maxInt(mi.Size.high()>>uint(ssy), 1) << miSizeLog2
			t.d.kernels.PredictInter(t.cur.picture(), refs, mi, plane, x, y, w, h)
		}
	}

	if mi.Skip {
		return nil
	}

	// Walk the block in 64x64 luma chunks so transform units of all
	// planes interleave in coded order.
	muW := minInt(mi.Size.wide(), 16)
	muH := minInt(mi.Size.high(), 16)
	for chunkR := 0; chunkR < mi.Size.high(); chunkR += muH {
		for chunkC := 0; chunkC < mi.Size.wide(); chunkC += muW {
			for plane := 0; plane < blk.PlaneCount(); plane++ {
				if err := t.reconstructPlaneChunk(blk, plane, chunkR, chunkC, muH, muW); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (t *tileDecoder) planeSubsampling(plane int) (int, int) {
	if plane == 0 {
		return 0, 0
	}
	return t.d.seq.subsampling_x, t.d.seq.subsampling_y
}

func (t *tileDecoder) planeTxSize(mi *ModeInfo, plane int) TxSize {
	if t.h.lossless[mi.SegmentID] {
		return Tx4x4
	}
	if plane > 0 {
		return maxUVTxSize(mi.Size, t.d.seq.subsampling_x, t.d.seq.subsampling_y)
	}
	return mi.TxSize
}

func (t *tileDecoder) reconstructPlaneChunk(blk *Block, plane, chunkR, chunkC, muH, muW int) error {
	mi := blk.mi
	ssx, ssy := t.planeSubsampling(plane)

	// Chunk bounds in plane 4-sample units.
	r0 := chunkR >> uint(ssy)
	c0 := chunkC >> uint(ssx)
	r1 := minInt(chunkR+muH, mi.Size.high()) >> uint(ssy)
	c1 := minInt(chunkC+muW, mi.Size.wide()) >> uint(ssx)
	if r1 == r0 {
		r1 = r0 + 1
	}
	if c1 == c0 {
		c1 = c0 + 1
	}

	if plane == 0 && mi.IsInter && !t.h.lossless[mi.SegmentID] {
		// Luma inter residuals follow the coded vartx structure.
		// Neighboring subtrees can split to different depths, so
		// every largest-transform unit recurses on its own.
		maxTx := maxTxSizeRect(mi.Size)
		for r := r0; r < r1; r += maxTx.high() {
			for c := c0; c < c1; c += maxTx.wide() {
				if err := t.reconstructTxTree(blk, maxTx, r, c); err != nil {
					return err
				}
			}
		}
		return nil
	}

	tx := t.planeTxSize(mi, plane)
	for r := r0; r < r1; r += tx.high() {
		for c := c0; c < c1; c += tx.wide() {
			if err := t.reconstructUnit(blk, plane, tx, r, c); err != nil {
				return err
			}
		}
	}
	return nil
}

// reconstructTxTree revisits the stored vartx splits of one
// largest-transform unit, decoding leaf residuals in the order the
// split flags were read.
func (t *tileDecoder) reconstructTxTree(blk *Block, tx TxSize, blkRow, blkCol int) error {
	mi := blk.mi
	if blk.miRow+blkRow >= t.h.mi_rows || blk.miCol+blkCol >= t.h.mi_cols {
		return nil
	}

	if leaf := mi.interTxSize(blkRow, blkCol); tx != leaf && subTx[tx] != tx {
		sub := subTx[tx]
		for r := 0; r < tx.high(); r += sub.high() {
			for c := 0; c < tx.wide(); c += sub.wide() {
				if err := t.reconstructTxTree(blk, sub, blkRow+r, blkCol+c); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return t.reconstructUnit(blk, 0, tx, blkRow, blkCol)
}

// reconstructUnit predicts and decodes one transform unit at (r, c)
// mi units into the block, in plane coordinates.
func (t *tileDecoder) reconstructUnit(blk *Block, plane int, tx TxSize, r, c int) error {
	mi := blk.mi
	ssx, ssy := t.planeSubsampling(plane)

	planeW, planeH := t.cur.planeSize(plane)
	x := ((blk.miCol >> uint(ssx)) + c) << miSizeLog2
	y := ((blk.miRow >> uint(ssy)) + r) << miSizeLog2
	if x >= planeW || y >= planeH {
		return nil
	}

	if !mi.IsInter {
		t.d.kernels.PredictIntra(t.cur.picture(), plane, mi, x, y, tx)
	}

	n := tx.widePx() * tx.highPx()
	coeffs := t.coeffs[:n]
	eob, err := t.d.coeffReader.ReadCoeffs(t.sym, blk, plane, tx, coeffs)
	if err != nil {
		return err
	}
	if eob > 0 {
		t.d.kernels.InverseTransform(t.cur.picture(), plane, coeffs, eob, x, y, tx)
	}
	// The scratch buffer is shared by every unit in the tile; clear
	// what this unit consumed.
	for i := 0; i < eob; i++ {
		coeffs[i] = 0
	}
	return nil
}

// refPictures resolves the block's reference frames to pictures for
// the prediction kernels.
func (t *tileDecoder) refPictures(mi *ModeInfo) [2]*Picture {
	var out [2]*Picture
	for i := 0; i < 2; i++ {
		ref := int(mi.RefFrames[i])
		if ref <= intraRef || ref > altrefFrame {
			continue
		}
		if fb := t.refBufs[ref]; fb != nil {
			pic := fb.picture()
			out[i] = &pic
		}
	}
	return out
}
