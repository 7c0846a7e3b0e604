package av1

// MotionVector is a motion vector in eighth-pel units.
type MotionVector struct {
	Row, Col int16
}

// ModeInfo is the per-block coding state produced by the mode info
// reader and consumed by prediction and reconstruction. One record
// covers a whole coded block; the arena maps every 4x4 cell inside
// the block to the same record.
type ModeInfo struct {
	Size      BlockSize
	SegmentID int

	Skip    bool
	IsInter bool

	YMode  int
	UVMode int

	RefFrames [2]int8
	MV        [2]MotionVector

	// TxSize is the whole-block transform for intra and for
	// TX_MODE_LARGEST/ONLY_4X4. Inter blocks under TX_MODE_SELECT
	// store their recursive split results in InterTxSizes and keep
	// the smallest decoded leaf here.
	TxSize       TxSize
	InterTxSizes [16]TxSize

	PaletteSizes [2]int

	UseGlobalMV bool
}

// interTxIndex maps a position inside the block, in mi units, to an
// InterTxSizes slot. Slots have the granularity of the block's
// largest transform split once; the deepest vartx leaves inside one
// such unit are all the same size, so they can share a slot. A
// 128x128 block needs the most slots, 4x4 of its 32x32 sub units.
func (mi *ModeInfo) interTxIndex(blkRow, blkCol int) int {
	g := subTx[maxTxSizeRect(mi.Size)]
	gw := log2u(uint32(g.wide()))
	gh := log2u(uint32(g.high()))
	stride := uint(mi.Size.wideLog2() - gw)
	return (blkRow>>uint(gh))<<stride | blkCol>>uint(gw)
}

// modeInfoArena holds the frame's ModeInfo records and a 4x4 grid of
// indices into them. Blocks never alias each other's records: a
// block's footprint is stamped with its own record index, so a
// lookup at any covered cell lands on the owning block.
//
// Records are preallocated and partitioned between tiles, so
// concurrently decoding tiles never touch the same record or grid
// cell. Record pointers stay valid for the whole frame.
type modeInfoArena struct {
	recs []ModeInfo
	grid []int32 // -1 while a cell is undecoded
	rows int
	cols int

	claimed int // records handed to tile partitions so far
}

func newModeInfoArena(rows, cols int) *modeInfoArena {
	a := &modeInfoArena{
		recs: make([]ModeInfo, rows*cols),
		grid: make([]int32, rows*cols),
		rows: rows,
		cols: cols,
	}
	for i := range a.grid {
		a.grid[i] = -1
	}
	return a
}

func (a *modeInfoArena) reset() {
	a.claimed = 0
	for i := range a.grid {
		a.grid[i] = -1
	}
}

// at returns the record covering (row, col), or nil for undecoded or
// out-of-frame cells.
func (a *modeInfoArena) at(row, col int) *ModeInfo {
	if row < 0 || col < 0 || row >= a.rows || col >= a.cols {
		return nil
	}
	idx := a.grid[row*a.cols+col]
	if idx < 0 {
		return nil
	}
	return &a.recs[idx]
}

// tilePartition hands a tile a private range of the record array.
// The tile's cell count bounds its block count, so the range cannot
// run dry. Must be called from the setup goroutine, before tile
// decoding starts.
func (a *modeInfoArena) tilePartition(t tileInfo) *miAllocator {
	n := (t.miRowEnd - t.miRowStart) * (t.miColEnd - t.miColStart)
	base := a.claimed
	a.claimed += n
	return &miAllocator{arena: a, next: base, end: base + n}
}

type miAllocator struct {
	arena *modeInfoArena
	next  int
	end   int
}

// alloc claims a record for a block at (row, col) and stamps its
// footprint, clipped to the frame edge.
func (m *miAllocator) alloc(row, col int, size BlockSize) *ModeInfo {
	a := m.arena
	idx := int32(m.next)
	m.next++
	a.recs[idx] = ModeInfo{Size: size}

	h := minInt(size.high(), a.rows-row)
	w := minInt(size.wide(), a.cols-col)
	for y := 0; y < h; y++ {
		base := (row + y) * a.cols
		for x := 0; x < w; x++ {
			a.grid[base+col+x] = idx
		}
	}
	return &a.recs[idx]
}
