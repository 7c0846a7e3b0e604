package av1

import (
	"testing"

	"github.com/av1dec/go-av1/av1/entropy"
	"github.com/stretchr/testify/assert"
)

func TestPartitionSymbols(t *testing.T) {
	assert.Equal(t, 4, partitionSymbols(0))
	assert.Equal(t, 10, partitionSymbols(1))
	assert.Equal(t, 10, partitionSymbols(partitionCats-2))
	assert.Equal(t, 8, partitionSymbols(partitionCats-1))
}

func TestPartitionCDFIndexing(t *testing.T) {
	fc := newFrameContext()

	cdf := fc.partitionCDF(Block8x8, 0, 0)
	assert.Equal(t, 4, entropy.CDFSymbols(cdf))

	cdf = fc.partitionCDF(Block128x128, 1, 1)
	assert.Equal(t, 8, entropy.CDFSymbols(cdf))
	assert.Same(t, &fc.partition[len(fc.partition)-1][0], &cdf[0])

	// The four context variants of one size are distinct tables.
	a := fc.partitionCDF(Block32x32, 0, 1)
	b := fc.partitionCDF(Block32x32, 1, 0)
	assert.NotSame(t, &a[0], &b[0])
}

func TestCloneIsIndependent(t *testing.T) {
	fc := newFrameContext()
	cp := fc.clone()

	cp.skip[0][0] = 1234
	cp.txDepth[1][2][0] = 77
	cp.deltaQ[0] = 9

	orig := newFrameContext()
	assert.Equal(t, orig.skip[0][0], fc.skip[0][0])
	assert.Equal(t, orig.txDepth[1][2][0], fc.txDepth[1][2][0])
	assert.Equal(t, orig.deltaQ[0], fc.deltaQ[0])
}

func TestResetCountersKeepsDistributions(t *testing.T) {
	fc := newFrameContext()

	cdf := fc.skip[1]
	for i := 0; i < 40; i++ {
		// Adapt by hand: bump the counter the way a decode would.
		cdf[len(cdf)-1]++
	}
	cdf[0] = 1000

	fc.resetCounters()
	assert.Equal(t, uint16(0), cdf[len(cdf)-1])
	assert.Equal(t, uint16(1000), cdf[0])
}
