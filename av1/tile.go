package av1

import (
	"github.com/av1dec/go-av1/av1/bitio"
)

type tileParams struct {
	uniform bool

	cols, rows         int
	log2Cols, log2Rows int

	// Tile boundaries in superblock units; length cols+1 / rows+1.
	colStartSB []int
	rowStartSB []int

	sbCols, sbRows int

	context_update_tile_id int
	tile_size_bytes        int
	tile_col_size_bytes    int
}

// tileLog2 returns the smallest k with blkSize << k >= target.
func tileLog2(blkSize, target int) int {
	k := 0
	for blkSize<<uint(k) < target {
		k++
	}
	return k
}

// parseTileInfo reads tile_info() (Section 5.9.15).
func (d *Decoder) parseTileInfo(r *bitio.Reader, h *frameHeader) error {
	seq := d.seq
	t := &h.tiles

	sbShift := seq.sbSizeLog2()
	sbSizePx := 1 << uint(sbShift+miSizeLog2)
	t.sbCols = ceilDiv(h.mi_cols, 1<<uint(sbShift))
	t.sbRows = ceilDiv(h.mi_rows, 1<<uint(sbShift))

	maxTileWidthSB := maxTileWidth / sbSizePx
	maxTileAreaSB := maxTileArea / (sbSizePx * sbSizePx)
	minLog2Cols := tileLog2(maxTileWidthSB, t.sbCols)
	maxLog2Cols := tileLog2(1, minInt(t.sbCols, maxTileCols))
	maxLog2Rows := tileLog2(1, minInt(t.sbRows, maxTileRows))
	minLog2Tiles := maxInt(minLog2Cols, tileLog2(maxTileAreaSB, t.sbCols*t.sbRows))

	t.uniform = r.ReadFlag()
	if t.uniform {
		t.log2Cols = minLog2Cols
		for t.log2Cols < maxLog2Cols && r.ReadFlag() {
			t.log2Cols++
		}
		widthSB := ceilDiv(t.sbCols, 1<<uint(t.log2Cols))
		t.colStartSB = t.colStartSB[:0]
		for start := 0; start < t.sbCols; start += widthSB {
			t.colStartSB = append(t.colStartSB, start)
		}
		t.cols = len(t.colStartSB)
		t.colStartSB = append(t.colStartSB, t.sbCols)

		minLog2Rows := maxInt(minLog2Tiles-t.log2Cols, 0)
		t.log2Rows = minLog2Rows
		for t.log2Rows < maxLog2Rows && r.ReadFlag() {
			t.log2Rows++
		}
		heightSB := ceilDiv(t.sbRows, 1<<uint(t.log2Rows))
		t.rowStartSB = t.rowStartSB[:0]
		for start := 0; start < t.sbRows; start += heightSB {
			t.rowStartSB = append(t.rowStartSB, start)
		}
		t.rows = len(t.rowStartSB)
		t.rowStartSB = append(t.rowStartSB, t.sbRows)
	} else {
		widestSB := 0
		t.colStartSB = t.colStartSB[:0]
		for start := 0; start < t.sbCols; {
			t.colStartSB = append(t.colStartSB, start)
			maxWidth := minInt(t.sbCols-start, maxTileWidthSB)
			width := int(readQuniform(r, uint32(maxWidth))) + 1
			widestSB = maxInt(widestSB, width)
			start += width
		}
		t.cols = len(t.colStartSB)
		t.colStartSB = append(t.colStartSB, t.sbCols)
		t.log2Cols = tileLog2(1, t.cols)
		if t.cols > maxTileCols {
			return corruptf("%d tile columns", t.cols)
		}

		// The row limit derives from the frame's own superblock area,
		// not the MAX_TILE_AREA constant.
		maxTileAreaSBVar := t.sbRows * t.sbCols
		if minLog2Tiles > 0 {
			maxTileAreaSBVar >>= uint(minLog2Tiles + 1)
		}
		maxHeightSB := maxInt(maxTileAreaSBVar/widestSB, 1)

		t.rowStartSB = t.rowStartSB[:0]
		for start := 0; start < t.sbRows; {
			t.rowStartSB = append(t.rowStartSB, start)
			maxHeight := minInt(t.sbRows-start, maxHeightSB)
			height := int(readQuniform(r, uint32(maxHeight))) + 1
			start += height
		}
		t.rows = len(t.rowStartSB)
		t.rowStartSB = append(t.rowStartSB, t.sbRows)
		t.log2Rows = tileLog2(1, t.rows)
		if t.rows > maxTileRows {
			return corruptf("%d tile rows", t.rows)
		}
	}

	if t.log2Cols > 0 || t.log2Rows > 0 {
		t.context_update_tile_id = int(r.ReadLiteral(t.log2Cols + t.log2Rows))
		t.tile_size_bytes = int(r.ReadLiteral(2)) + 1
	} else {
		t.tile_size_bytes = tileSizeBytes
	}
	if t.context_update_tile_id >= t.cols*t.rows {
		return corruptf("context update tile %d of %d", t.context_update_tile_id, t.cols*t.rows)
	}
	if d.largeScaleTile {
		t.tile_col_size_bytes = int(r.ReadLiteral(2)) + 1
	}
	return r.Err()
}

// tileInfo is one tile's mode info rectangle.
type tileInfo struct {
	row, col             int
	miRowStart, miRowEnd int
	miColStart, miColEnd int
}

func (t *tileParams) tileAt(h *frameHeader, sbShift, row, col int) tileInfo {
	return tileInfo{
		row:        row,
		col:        col,
		miRowStart: minInt(t.rowStartSB[row]<<uint(sbShift), h.mi_rows),
		miRowEnd:   minInt(t.rowStartSB[row+1]<<uint(sbShift), h.mi_rows),
		miColStart: minInt(t.colStartSB[col]<<uint(sbShift), h.mi_cols),
		miColEnd:   minInt(t.colStartSB[col+1]<<uint(sbShift), h.mi_cols),
	}
}

// tileBuffer is one tile's coded payload. Copy-mode tiles alias the
// bytes of an earlier tile in the same column; nothing here owns the
// storage, it all borrows from the frame payload.
type tileBuffer struct {
	tile int // row * cols + col
	data []byte
}

func getVarsize(data []byte, n int) (uint64, bool) {
	if len(data) < n {
		return 0, false
	}
	var v uint64
	for i := 0; i < n; i++ {
		v |= uint64(data[i]) << uint(8*i)
	}
	return v, true
}

// splitTileBuffers carves the post-header payload into per-tile
// buffers. Every tile except the last carries a little endian
// tile_size_minus_1 prefix; the last tile takes the remainder.
func splitTileBuffers(data []byte, t *tileParams) ([]tileBuffer, error) {
	n := t.cols * t.rows
	bufs := make([]tileBuffer, 0, n)

	for i := 0; i < n; i++ {
		if i == n-1 {
			if len(data) == 0 {
				return nil, corruptf("missing payload for tile %d", i)
			}
			bufs = append(bufs, tileBuffer{tile: i, data: data})
			break
		}
		sz, ok := getVarsize(data, t.tile_size_bytes)
		if !ok {
			return nil, corruptf("truncated size prefix at tile %d", i)
		}
		size := int(sz) + 1
		data = data[t.tile_size_bytes:]
		if size > len(data) {
			return nil, corruptf("tile %d size %d exceeds remaining %d bytes",
				i, size, len(data))
		}
		bufs = append(bufs, tileBuffer{tile: i, data: data[:size]})
		data = data[size:]
	}
	return bufs, nil
}

// splitLargeScaleTileBuffers carves a large scale tile payload: the
// data is grouped by tile column, each column prefixed with its
// size. When tiles are at most 256 samples on a side, a size field
// with its top bit set marks copy mode: the next 7 bits give how
// many rows up the source tile sits, and the tile aliases that
// tile's payload.
func splitLargeScaleTileBuffers(data []byte, t *tileParams, copyModeAllowed bool) ([]tileBuffer, error) {
	bufs := make([]tileBuffer, t.cols*t.rows)

	for col := 0; col < t.cols; col++ {
		var colSize int
		if col == t.cols-1 {
			colSize = len(data)
		} else {
			sz, ok := getVarsize(data, t.tile_col_size_bytes)
			if !ok {
				return nil, corruptf("truncated column size at tile column %d", col)
			}
			colSize = int(sz)
			data = data[t.tile_col_size_bytes:]
			if colSize > len(data) {
				return nil, corruptf("tile column %d size %d exceeds remaining %d bytes",
					col, colSize, len(data))
			}
		}
		colData := data[:colSize]
		data = data[colSize:]

		for row := 0; row < t.rows; row++ {
			idx := row*t.cols + col
			last := row == t.rows-1

			if len(colData) == 0 {
				return nil, corruptf("missing payload for tile %d", idx)
			}

			var size int
			if last {
				size = len(colData)
			} else {
				sz, ok := getVarsize(colData, t.tile_size_bytes)
				if !ok {
					return nil, corruptf("truncated size prefix at tile %d", idx)
				}
				topBit := uint(8*t.tile_size_bytes - 1)
				if copyModeAllowed && sz>>topBit == 1 {
					offset := int(sz>>uint(8*(t.tile_size_bytes-1))) & 0x7f
					colData = colData[t.tile_size_bytes:]
					src := row - offset
					if offset == 0 || src < 0 {
						return nil, corruptf("tile %d copy offset %d out of range", idx, offset)
					}
					bufs[idx] = tileBuffer{tile: idx, data: bufs[src*t.cols+col].data}
					continue
				}
				size = int(sz) + 1
				colData = colData[t.tile_size_bytes:]
				if size > len(colData) {
					return nil, corruptf("tile %d size %d exceeds column remainder %d",
						idx, size, len(colData))
				}
			}
			bufs[idx] = tileBuffer{tile: idx, data: colData[:size]}
			colData = colData[size:]
		}
	}
	return bufs, nil
}
