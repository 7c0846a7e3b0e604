package av1

import (
	"github.com/av1dec/go-av1/av1/entropy"
)

const (
	partitionCats     = maxMibSizeLog2 // 8x8 through 128x128
	partitionContexts = partitionCats * 4

	skipContexts      = 3
	txfmSplitContexts = 12
	maxTxCats         = 4
	txDepthContexts   = 3
	blockSizeGroups   = 4
	intraModes        = 13
	isInterContexts   = 4
	refBitLevels      = 3
	txbSkipCats       = 5
	eobClasses        = 12
	coeffBaseRange    = 4
	deltaQSymbols     = 4
	frameLFCount      = 4
	segIDContexts     = 3
)

// FrameContext holds every adaptive CDF a tile decode touches. A
// frame starts from either the defaults or a reference frame's saved
// context, each tile adapts a private copy, and the copy adapted by
// the largest tile becomes the context the frame hands forward.
type FrameContext struct {
	partition [][]uint16

	skip      [][]uint16
	txfmSplit [][]uint16
	txDepth   [][][]uint16

	yMode   [][]uint16
	uvMode  [][]uint16
	isInter [][]uint16
	refBit  [][]uint16

	segmentID [][]uint16
	deltaQ    []uint16
	deltaLF   [][]uint16

	switchableRestore []uint16
	wienerRestore     []uint16
	sgrprojRestore    []uint16

	txbSkip   [][]uint16
	eobClass  [][]uint16
	coeffBase [][]uint16
}

func partitionSymbols(cat int) int {
	switch cat {
	case 0:
		return 4 // 8x8 blocks cannot use the extended shapes
	case partitionCats - 1:
		return 8 // no 4-way shapes at 128x128
	default:
		return int(extPartitionTypes)
	}
}

func newCDFTable(contexts, symbols int) [][]uint16 {
	t := make([][]uint16, contexts)
	for i := range t {
		t[i] = entropy.NewCDF(symbols)
	}
	return t
}

// newFrameContext returns the default context used by keyframes,
// intra-only refreshes and error resilient frames.
func newFrameContext() *FrameContext {
	fc := &FrameContext{
		skip:      newCDFTable(skipContexts, 2),
		txfmSplit: newCDFTable(txfmSplitContexts, 2),
		yMode:     newCDFTable(blockSizeGroups, intraModes),
		uvMode:    newCDFTable(intraModes, intraModes),
		isInter:   newCDFTable(isInterContexts, 2),
		refBit:    newCDFTable(refBitLevels, 2),
		segmentID: newCDFTable(segIDContexts, maxSegments),
		deltaQ:    entropy.NewCDF(deltaQSymbols),
		deltaLF:   newCDFTable(frameLFCount, deltaQSymbols),

		switchableRestore: entropy.NewCDF(3),
		wienerRestore:     entropy.NewCDF(2),
		sgrprojRestore:    entropy.NewCDF(2),

		txbSkip:   newCDFTable(txbSkipCats, 2),
		eobClass:  newCDFTable(txbSkipCats, eobClasses),
		coeffBase: newCDFTable(txbSkipCats, coeffBaseRange),
	}

	fc.partition = make([][]uint16, partitionContexts)
	for ctx := range fc.partition {
		fc.partition[ctx] = entropy.NewCDF(partitionSymbols(ctx / 4))
	}

	fc.txDepth = make([][][]uint16, maxTxCats)
	for cat := range fc.txDepth {
		symbols := 3
		if cat == 0 {
			symbols = 2
		}
		fc.txDepth[cat] = newCDFTable(txDepthContexts, symbols)
	}

	return fc
}

func copyCDF(cdf []uint16) []uint16 {
	return append([]uint16(nil), cdf...)
}

func copyCDFTable(t [][]uint16) [][]uint16 {
	out := make([][]uint16, len(t))
	for i := range t {
		out[i] = copyCDF(t[i])
	}
	return out
}

// clone deep copies the context so a tile can adapt independently.
func (fc *FrameContext) clone() *FrameContext {
	out := &FrameContext{
		partition: copyCDFTable(fc.partition),
		skip:      copyCDFTable(fc.skip),
		txfmSplit: copyCDFTable(fc.txfmSplit),
		yMode:     copyCDFTable(fc.yMode),
		uvMode:    copyCDFTable(fc.uvMode),
		isInter:   copyCDFTable(fc.isInter),
		refBit:    copyCDFTable(fc.refBit),
		segmentID: copyCDFTable(fc.segmentID),
		deltaQ:    copyCDF(fc.deltaQ),
		deltaLF:   copyCDFTable(fc.deltaLF),

		switchableRestore: copyCDF(fc.switchableRestore),
		wienerRestore:     copyCDF(fc.wienerRestore),
		sgrprojRestore:    copyCDF(fc.sgrprojRestore),

		txbSkip:   copyCDFTable(fc.txbSkip),
		eobClass:  copyCDFTable(fc.eobClass),
		coeffBase: copyCDFTable(fc.coeffBase),
	}

	out.txDepth = make([][][]uint16, len(fc.txDepth))
	for cat := range fc.txDepth {
		out.txDepth[cat] = copyCDFTable(fc.txDepth[cat])
	}

	return out
}

func (fc *FrameContext) forEach(fn func(cdf []uint16)) {
	for _, t := range [][][]uint16{
		fc.partition, fc.skip, fc.txfmSplit, fc.yMode, fc.uvMode,
		fc.isInter, fc.refBit, fc.segmentID, fc.deltaLF,
		fc.txbSkip, fc.eobClass, fc.coeffBase,
	} {
		for _, cdf := range t {
			fn(cdf)
		}
	}
	for _, t := range fc.txDepth {
		for _, cdf := range t {
			fn(cdf)
		}
	}
	fn(fc.deltaQ)
	fn(fc.switchableRestore)
	fn(fc.wienerRestore)
	fn(fc.sgrprojRestore)
}

// resetCounters clears the adaptation counters while keeping the
// learned distributions, done before a saved context seeds a new
// frame.
func (fc *FrameContext) resetCounters() {
	fc.forEach(entropy.ResetCounter)
}

// partitionCDF selects the partition CDF for a block size and its
// above/left split context bits.
func (fc *FrameContext) partitionCDF(b BlockSize, above, left int) []uint16 {
	cat := b.wideLog2() - 1
	return fc.partition[cat*4+left*2+above]
}
