package av1

// Section 3: symbols and abbreviated terms.
const (
	numRefFrames   = 8 // size of the reference slot map
	refsPerFrame   = 7 // LAST..ALTREF
	primaryRefNone = 7

	maxSegments  = 8
	segTreeProbs = maxSegments - 1

	miSizeLog2     = 2 // 4x4 luma samples per mode info unit
	maxMibSizeLog2 = 5 // 128x128 superblock in mi units
	maxMibSize     = 1 << maxMibSizeLog2
	maxMibMask     = maxMibSize - 1

	maxTileCols  = 64
	maxTileRows  = 64
	maxTileWidth = 4096 // pixels
	maxTileArea  = 4096 * 2304

	frameIDLengthMin      = 7
	frameIDLengthMax      = 16
	deltaFrameIDLengthMin = 2

	superresNum       = 8
	superresDenomMin  = 9
	superresDenomBits = 3

	maxLoopFilterLevel = 63

	cdefMaxStrengths = 8

	maxVartxDepth = 2
	maxTxDepth    = 2

	maxTxSamples = 64 * 64 // largest transform unit

	warpedModelPrecBits = 16

	// Large scale tile payloads prefix each tile with its size minus
	// one; regular payloads code size minus one as well (Section
	// 5.11.1, tile_size_minus_1).
	tileSizeBytes = 4
)

// Frame types. Section 6.8.2.
type frameType uint8

const (
	keyFrame frameType = iota
	interFrame
	intraOnlyFrame
	switchFrame
)

func (t frameType) intraOnly() bool {
	return t == keyFrame || t == intraOnlyFrame
}

func (t frameType) String() string {
	switch t {
	case keyFrame:
		return "KEY"
	case interFrame:
		return "INTER"
	case intraOnlyFrame:
		return "INTRA_ONLY"
	case switchFrame:
		return "SWITCH"
	}
	return "UNKNOWN"
}

// Reference frame labels. Index 0 is intra; the seven inter
// references follow.
const (
	intraRef = iota
	lastFrame
	last2Frame
	last3Frame
	goldenFrame
	bwdrefFrame
	altref2Frame
	altrefFrame
)

// BlockSize enumerates the 22 coded block sizes.
type BlockSize uint8

const (
	Block4x4 BlockSize = iota
	Block4x8
	Block8x4
	Block8x8
	Block8x16
	Block16x8
	Block16x16
	Block16x32
	Block32x16
	Block32x32
	Block32x64
	Block64x32
	Block64x64
	Block64x128
	Block128x64
	Block128x128
	Block4x16
	Block16x4
	Block8x32
	Block32x8
	Block16x64
	Block64x16

	blockSizes
	BlockInvalid BlockSize = 255
)

// Block dimensions in mode info (4 sample) units.
var blockWide = [blockSizes]int{
	1, 1, 2, 2, 2, 4, 4, 4, 8, 8, 8, 16, 16, 16, 32, 32, 1, 4, 2, 8, 4, 16,
}

var blockHigh = [blockSizes]int{
	1, 2, 1, 2, 4, 2, 4, 8, 4, 8, 16, 8, 16, 32, 16, 32, 4, 1, 8, 2, 16, 4,
}

func (b BlockSize) wide() int   { return blockWide[b] }
func (b BlockSize) high() int   { return blockHigh[b] }
func (b BlockSize) widePx() int { return blockWide[b] << miSizeLog2 }
func (b BlockSize) highPx() int { return blockHigh[b] << miSizeLog2 }

func (b BlockSize) square() bool { return blockWide[b] == blockHigh[b] }

// wideLog2 returns log2 of the block width in mi units.
func (b BlockSize) wideLog2() int {
	return log2u(uint32(blockWide[b]))
}

func log2u(v uint32) int {
	n := 0
	for v > 1 {
		v >>= 1
		n++
	}
	return n
}

// blockSizeFromWH maps (width, height) in mi units back to a block
// size, or BlockInvalid when no coded size has those dimensions.
func blockSizeFromWH(w, h int) BlockSize {
	for b := BlockSize(0); b < blockSizes; b++ {
		if blockWide[b] == w && blockHigh[b] == h {
			return b
		}
	}
	return BlockInvalid
}

// Partition shapes. Section 6.10.4.
type partitionType uint8

const (
	partitionNone partitionType = iota
	partitionHorz
	partitionVert
	partitionSplit
	partitionHorzA // top split in two
	partitionHorzB // bottom split in two
	partitionVertA // left split in two
	partitionVertB // right split in two
	partitionHorz4
	partitionVert4

	extPartitionTypes
)

// subSize returns the block size produced by applying p to b, or
// BlockInvalid when the shape does not exist at that size.
func subSize(p partitionType, b BlockSize) BlockSize {
	w, h := blockWide[b], blockHigh[b]
	switch p {
	case partitionNone:
		return b
	case partitionHorz, partitionHorzA, partitionHorzB:
		return blockSizeFromWH(w, h/2)
	case partitionVert, partitionVertA, partitionVertB:
		return blockSizeFromWH(w/2, h)
	case partitionSplit:
		return blockSizeFromWH(w/2, h/2)
	case partitionHorz4:
		if h < 4 {
			return BlockInvalid
		}
		return blockSizeFromWH(w, h/4)
	case partitionVert4:
		if w < 4 {
			return BlockInvalid
		}
		return blockSizeFromWH(w/4, h)
	}
	return BlockInvalid
}

// planeBlockSize maps a luma block size to the corresponding chroma
// block size under the given subsampling, or BlockInvalid when the
// chroma block would be narrower or shorter than 4 samples in only
// one dimension.
func planeBlockSize(b BlockSize, ssx, ssy int) BlockSize {
	if b == Block4x4 {
		return Block4x4
	}
	w, h := blockWide[b], blockHigh[b]
	if ssx != 0 && ssy == 0 && w == 1 {
		return BlockInvalid
	}
	if ssy != 0 && ssx == 0 && h == 1 {
		return BlockInvalid
	}
	cw := w >> uint(ssx)
	if cw == 0 {
		cw = 1
	}
	ch := h >> uint(ssy)
	if ch == 0 {
		ch = 1
	}
	return blockSizeFromWH(cw, ch)
}

// TxSize enumerates the 19 transform sizes.
type TxSize uint8

const (
	Tx4x4 TxSize = iota
	Tx8x8
	Tx16x16
	Tx32x32
	Tx64x64
	Tx4x8
	Tx8x4
	Tx8x16
	Tx16x8
	Tx16x32
	Tx32x16
	Tx32x64
	Tx64x32
	Tx4x16
	Tx16x4
	Tx8x32
	Tx32x8
	Tx16x64
	Tx64x16

	txSizes
)

// Transform dimensions in mi units.
var txWide = [txSizes]int{
	1, 2, 4, 8, 16, 1, 2, 2, 4, 4, 8, 8, 16, 1, 4, 2, 8, 4, 16,
}

var txHigh = [txSizes]int{
	1, 2, 4, 8, 16, 2, 1, 4, 2, 8, 4, 16, 8, 4, 1, 8, 2, 16, 4,
}

func (t TxSize) wide() int   { return txWide[t] }
func (t TxSize) high() int   { return txHigh[t] }
func (t TxSize) widePx() int { return txWide[t] << miSizeLog2 }
func (t TxSize) highPx() int { return txHigh[t] << miSizeLog2 }

// subTx is the size produced by one split step of the vartx
// recursion.
var subTx = [txSizes]TxSize{
	Tx4x4:   Tx4x4,
	Tx8x8:   Tx4x4,
	Tx16x16: Tx8x8,
	Tx32x32: Tx16x16,
	Tx64x64: Tx32x32,
	Tx4x8:   Tx4x4,
	Tx8x4:   Tx4x4,
	Tx8x16:  Tx8x8,
	Tx16x8:  Tx8x8,
	Tx16x32: Tx16x16,
	Tx32x16: Tx16x16,
	Tx32x64: Tx32x32,
	Tx64x32: Tx32x32,
	Tx4x16:  Tx4x8,
	Tx16x4:  Tx8x4,
	Tx8x32:  Tx8x16,
	Tx32x8:  Tx16x8,
	Tx16x64: Tx16x32,
	Tx64x16: Tx32x16,
}

// squareTxCat buckets a transform by its smaller square side:
// 0 for 4, up to 4 for 64. Used for tx depth and split contexts.
func (t TxSize) squareTxCat() int {
	m := txWide[t]
	if txHigh[t] < m {
		m = txHigh[t]
	}
	return log2u(uint32(m))
}

// maxTxSizeRect returns the largest transform that fits b. Aspect
// ratios beyond 1:4 are not coded, so the lookup always lands on a
// real size.
func maxTxSizeRect(b BlockSize) TxSize {
	w, h := blockWide[b], blockHigh[b]
	best := Tx4x4
	for t := TxSize(0); t < txSizes; t++ {
		if txWide[t] > w || txHigh[t] > h {
			continue
		}
		if txWide[t]*txHigh[t] > txWide[best]*txHigh[best] {
			best = t
		}
	}
	return best
}

// maxUVTxSize clamps the chroma transform to 32x32.
func maxUVTxSize(b BlockSize, ssx, ssy int) TxSize {
	pb := planeBlockSize(b, ssx, ssy)
	if pb == BlockInvalid {
		return Tx4x4
	}
	t := maxTxSizeRect(pb)
	for txWide[t] > 8 || txHigh[t] > 8 {
		t = subTx[t]
	}
	return t
}

// Transform coding modes. Section 6.8.21.
type txMode uint8

const (
	txModeOnly4x4 txMode = iota
	txModeLargest
	txModeSelect
)

// Loop restoration types per plane. Section 6.10.15.
type restorationType uint8

const (
	restoreNone restorationType = iota
	restoreWiener
	restoreSgrproj
	restoreSwitchable
)

// Global motion model types. Section 6.8.17.
type transformationType uint8

const (
	warpIdentity transformationType = iota
	warpTranslation
	warpRotzoom
	warpAffine
)

// Frame restoration unit sizes run 64, 128, 256 for luma.
const (
	restorationUnitSizeMin = 64
	restorationUnitSizeMax = 256
)

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
