package av1

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/av1dec/go-av1/av1/entropy"
)

// cdfFromProbs builds a cumulative table (plus adaptation counter)
// from per-symbol masses summing to entropy.ProbTop.
func cdfFromProbs(probs []uint16) []uint16 {
	cdf := make([]uint16, len(probs)+1)
	acc := uint16(0)
	for i, p := range probs {
		acc += p
		cdf[i] = acc
	}
	return cdf
}

// peakedPartitionCDF puts nearly all mass on one partition shape and
// 4/32768 on each of the others.
func peakedPartitionCDF(symbols int, peak partitionType) []uint16 {
	probs := make([]uint16, symbols)
	for i := range probs {
		probs[i] = 4
	}
	probs[peak] = entropy.ProbTop - 4*uint16(symbols-1)
	return cdfFromProbs(probs)
}

func TestGatherVertAlikeKeepsHorzMass(t *testing.T) {
	cdf := peakedPartitionCDF(int(extPartitionTypes), partitionHorz)

	// At a bottom edge only VERT, SPLIT, HORZ_A, VERT_A, VERT_B and
	// VERT_4 count as split; the HORZ mass stays on symbol 0.
	out := gatherVertAlike(cdf, Block16x16)
	assert.Equal(t, []uint16{entropy.ProbTop - 24, entropy.ProbTop, 0}, out)

	// With the mass on SPLIT instead, symbol 0 keeps almost nothing.
	out = gatherVertAlike(peakedPartitionCDF(int(extPartitionTypes), partitionSplit), Block16x16)
	assert.Equal(t, uint16(16), out[0])
}

func TestGatherHorzAlikeKeepsVertMass(t *testing.T) {
	cdf := peakedPartitionCDF(int(extPartitionTypes), partitionVert)

	out := gatherHorzAlike(cdf, Block16x16)
	assert.Equal(t, []uint16{entropy.ProbTop - 24, entropy.ProbTop, 0}, out)

	out = gatherHorzAlike(peakedPartitionCDF(int(extPartitionTypes), partitionSplit), Block16x16)
	assert.Equal(t, uint16(16), out[0])
}

func TestGatherAlike128NoFourWay(t *testing.T) {
	// 128x128 partitions have no HORZ_4/VERT_4 symbols; the gathers
	// must not read past the 8-entry table.
	cdf := peakedPartitionCDF(int(partitionHorz4), partitionHorz)

	out := gatherVertAlike(cdf, Block128x128)
	assert.Equal(t, uint16(entropy.ProbTop-20), out[0])

	out = gatherHorzAlike(peakedPartitionCDF(int(partitionHorz4), partitionVert), Block128x128)
	assert.Equal(t, uint16(entropy.ProbTop-20), out[0])
}
