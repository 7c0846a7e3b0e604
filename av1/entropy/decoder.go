// Package entropy implements the adaptive multi-symbol arithmetic
// decoder used for AV1 tile payloads, and helpers for the CDF tables
// it consumes.
package entropy

import (
	"github.com/pkg/errors"
)

const (
	// ProbTop is the total probability mass of a CDF. CDFs are
	// cumulative uint16 counts with cdf[n-1] == ProbTop.
	ProbTop = 1 << 15

	probBits = 15
	// Each CDF slice carries one trailing adaptation counter after
	// the cumulative entries.
	cdfPad = 1

	maxAdaptCount = 32
)

// ErrInvalidData is returned by NewDecoder on an unusable payload.
var ErrInvalidData = errors.New("entropy: invalid coded data")

// Decoder decodes adaptive arithmetic symbols from a tile payload.
//
// Truncated input does not stop decoding: the decoder feeds ones past
// the end of the buffer and raises its overread flag, letting the
// caller finish the current block row and mark the tile corrupt the
// same way it treats any other tile-level damage.
type Decoder struct {
	buf []byte
	pos int // bit position

	rng  uint32 // current range, in [ProbTop, 2*ProbTop)
	code uint32 // offset within the range, < rng

	disable_update bool
	overread       bool
}

// NewDecoder initializes a decoder over data. The slice is not
// copied. If update is false, symbol reads leave their CDFs
// untouched (disable_cdf_update in the frame header).
func NewDecoder(data []byte, update bool) (*Decoder, error) {
	if len(data) == 0 {
		return nil, errors.Wrap(ErrInvalidData, "empty tile payload")
	}

	d := &Decoder{
		buf:            data,
		rng:            ProbTop,
		disable_update: !update,
	}
	for i := 0; i < probBits; i++ {
		d.code = d.code<<1 | d.nextBit()
	}

	return d, nil
}

func (d *Decoder) nextBit() uint32 {
	if d.pos>>3 >= len(d.buf) {
		// Ones past the end. Flag it and keep going.
		d.overread = true
		return 1
	}
	b := uint32(d.buf[d.pos>>3]>>(7-uint(d.pos&7))) & 1
	d.pos++
	return b
}

func (d *Decoder) renormalize() {
	for d.rng < ProbTop {
		d.rng <<= 1
		d.code = d.code<<1 | d.nextBit()
	}
}

// Overread reports whether any read has consumed bits past the end
// of the payload. Once set it never clears.
func (d *Decoder) Overread() bool {
	return d.overread
}

// BytesConsumed returns the number of payload bytes pulled into the
// decode window so far.
func (d *Decoder) BytesConsumed() int {
	return (d.pos + 7) >> 3
}

// ReadSymbol decodes one symbol against cdf and, unless updates are
// disabled, adapts the table toward the decoded value. cdf holds n
// cumulative entries (cdf[n-1] == ProbTop) followed by one counter
// entry.
func (d *Decoder) ReadSymbol(cdf []uint16) int {
	n := len(cdf) - cdfPad

	low := uint32(0)
	sym := 0
	for {
		high := uint32(uint64(d.rng) * uint64(cdf[sym]) >> probBits)
		if sym == n-1 {
			high = d.rng
		} else if high <= low {
			// Degenerate CDF entry; keep the interval non-empty.
			high = low + 1
		}
		if d.code < high {
			d.code -= low
			d.rng = high - low
			break
		}
		low = high
		sym++
	}
	d.renormalize()

	if !d.disable_update {
		adapt(cdf, sym)
	}
	return sym
}

// adapt moves the CDF toward the decoded symbol using the standard
// count-gated rate schedule.
func adapt(cdf []uint16, sym int) {
	n := len(cdf) - cdfPad
	count := cdf[n]

	rate := uint(4)
	if count > 15 {
		rate++
	}
	if count > 31 {
		rate++
	}

	for i := 0; i < n-1; i++ {
		if i >= sym {
			cdf[i] += (ProbTop - cdf[i]) >> rate
		} else {
			cdf[i] -= cdf[i] >> rate
		}
	}
	if count < maxAdaptCount {
		cdf[n] = count + 1
	}
}

// ReadBool decodes one binary symbol against a two-entry CDF.
func (d *Decoder) ReadBool(cdf []uint16) bool {
	return d.ReadSymbol(cdf) != 0
}

// ReadBit decodes one equiprobable bit without touching any CDF.
func (d *Decoder) ReadBit() uint32 {
	half := d.rng >> 1
	if d.code < half {
		d.rng = half
		d.renormalize()
		return 0
	}
	d.code -= half
	d.rng -= half
	d.renormalize()
	return 1
}

// ReadLiteral decodes an n-bit equiprobable value, MSB first. L(n)
// in the spec.
func (d *Decoder) ReadLiteral(n int) uint32 {
	var v uint32
	for i := 0; i < n; i++ {
		v = v<<1 | d.ReadBit()
	}
	return v
}

// NewCDF returns a fresh n-symbol CDF with uniform mass plus its
// trailing adaptation counter.
func NewCDF(n int) []uint16 {
	cdf := make([]uint16, n+cdfPad)
	for i := 0; i < n; i++ {
		cdf[i] = uint16((i + 1) * ProbTop / n)
	}
	return cdf
}

// CDFSymbols returns the number of symbols coded by cdf.
func CDFSymbols(cdf []uint16) int {
	return len(cdf) - cdfPad
}

// CDFProb returns the probability mass assigned to symbol sym.
func CDFProb(cdf []uint16, sym int) uint16 {
	if sym == 0 {
		return cdf[0]
	}
	return cdf[sym] - cdf[sym-1]
}

// ResetCounter zeroes the adaptation counter of cdf, keeping the
// learned distribution. Done at frame boundaries before reuse.
func ResetCounter(cdf []uint16) {
	cdf[len(cdf)-1] = 0
}
