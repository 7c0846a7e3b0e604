package av1

import (
	"github.com/av1dec/go-av1/av1/entropy"
)

const coeffBaseEscape = coeffBaseRange - 1

// defaultCoeffReader is the built-in residual syntax: an all-zero
// flag per transform unit, an end-of-block class with explicit
// remainder bits, base levels with a Golomb escape, and sign bits.
// It produces coded levels; scaling them by the quantizer (available
// as Block.QIndex) is the transform kernel's concern.
type defaultCoeffReader struct{}

// NewCoeffReader returns the built-in coefficient reader.
func NewCoeffReader() CoeffReader {
	return defaultCoeffReader{}
}

// txbSkipCat buckets transform units by area and plane for context
// selection.
func txbSkipCat(tx TxSize, plane int) int {
	cat := clampInt(tx.squareTxCat()-1, 0, txbSkipCats-2)
	if plane > 0 {
		cat = txbSkipCats - 1
	}
	return cat
}

func (defaultCoeffReader) ReadCoeffs(sym *entropy.Decoder, blk *Block, plane int, tx TxSize, coeffs []int32) (int, error) {
	t := blk.td
	cat := txbSkipCat(tx, plane)

	if sym.ReadBool(t.fc.txbSkip[cat]) {
		return 0, nil
	}

	eob := readEOB(sym, t.fc.eobClass[cat], len(coeffs))
	if eob <= 0 || eob > len(coeffs) {
		return 0, corruptf("eob %d outside transform unit of %d coefficients", eob, len(coeffs))
	}

	// Levels come last-to-first so the base contexts of a real
	// implementation can condition on already decoded neighbors.
	for i := eob - 1; i >= 0; i-- {
		level := sym.ReadSymbol(t.fc.coeffBase[cat])
		if level == coeffBaseEscape {
			level += readGolomb(sym)
		}
		if level == 0 {
			continue
		}
		v := int32(level)
		if sym.ReadBit() == 1 {
			v = -v
		}
		coeffs[i] = v
	}

	if sym.Overread() {
		return 0, corruptf("coefficients at mi (%d, %d) plane %d ran past tile data", blk.miRow, blk.miCol, plane)
	}
	return eob, nil
}

// readEOB reads the end-of-block position: a class symbol selecting
// a power-of-two bucket, then the offset within it.
func readEOB(sym *entropy.Decoder, cdf []uint16, n int) int {
	class := sym.ReadSymbol(cdf)
	if class == 0 {
		return 1
	}
	eob := (1 << uint(class-1)) + int(sym.ReadLiteral(class-1))
	if eob > n {
		eob = n
	}
	return eob
}

// readGolomb reads an exp-Golomb suffix for escaped coefficient
// levels. The length is capped so corrupt data cannot spin.
func readGolomb(sym *entropy.Decoder) int {
	length := 0
	for sym.ReadBit() == 0 {
		length++
		if length > 16 || sym.Overread() {
			return (1 << 16) - 1
		}
	}
	if length == 0 {
		return 0
	}
	return (1 << uint(length)) - 1 + int(sym.ReadLiteral(length))
}

// ReadPaletteTokens consumes the color index map for one plane. Each
// 4x4 cell of the block carries one index, coded with just enough
// bits for the palette size.
func (defaultCoeffReader) ReadPaletteTokens(sym *entropy.Decoder, blk *Block, plane int) error {
	size := blk.mi.PaletteSizes[plane]
	if size < paletteSizeMin {
		return nil
	}
	bits := log2u(uint32(size-1)) + 1

	ssx, ssy := blk.td.planeSubsampling(plane)
	cells := maxInt(blk.mi.Size.wide()>>uint(ssx), 1) * maxInt(blk.mi.Size.high()>>uint(ssy), 1)
	for i := 0; i < cells; i++ {
		if v := int(sym.ReadLiteral(bits)); v >= size {
			return corruptf("palette index %d for %d colors", v, size)
		}
	}
	if sym.Overread() {
		return corruptf("palette tokens at mi (%d, %d) ran past tile data", blk.miRow, blk.miCol)
	}
	return nil
}
