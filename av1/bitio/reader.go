// Package bitio implements the most-significant-bit-first bit reader
// used by AV1 uncompressed headers (Section 4 of the AV1 spec).
package bitio

import (
	"github.com/pkg/errors"
)

// ErrOverread is returned once a read walks past the end of the
// buffer. All subsequent reads on the same Reader fail with it too.
var ErrOverread = errors.New("bitio: read past end of buffer")

// Reader reads MSB-first bits out of a byte slice.
//
// Reads never panic on truncated input. Instead the reader goes
// sticky-bad: every value method returns zero once an overread has
// happened, and Err reports the failure. Callers parsing long header
// runs only need to check Err at natural boundaries.
type Reader struct {
	data []byte
	pos  int // bit position
	err  error
}

// NewReader returns a Reader over data. The slice is not copied.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Err returns the first error encountered, or nil.
func (r *Reader) Err() error {
	return r.err
}

// BitsRead returns the number of bits consumed so far.
func (r *Reader) BitsRead() int {
	return r.pos
}

// BytesRead returns the number of whole or partial bytes consumed.
func (r *Reader) BytesRead() int {
	return (r.pos + 7) >> 3
}

// ReadBit reads a single bit. f(1) in the spec.
func (r *Reader) ReadBit() uint32 {
	if r.err != nil {
		return 0
	}
	if r.pos>>3 >= len(r.data) {
		r.err = ErrOverread
		return 0
	}
	b := uint32(r.data[r.pos>>3]>>(7-uint(r.pos&7))) & 1
	r.pos++
	return b
}

// ReadFlag reads a single bit as a bool.
func (r *Reader) ReadFlag() bool {
	return r.ReadBit() != 0
}

// ReadLiteral reads an n-bit unsigned value, MSB first. f(n) in the
// spec. n must be at most 32.
func (r *Reader) ReadLiteral(n int) uint32 {
	var v uint32
	for i := 0; i < n; i++ {
		v = v<<1 | r.ReadBit()
	}
	return v
}

// ReadSignedLiteral reads an n+1 bit two's complement value. su(1+n)
// in the spec: n magnitude bits preceded by nothing, the whole field
// interpreted as signed.
func (r *Reader) ReadSignedLiteral(n int) int32 {
	v := r.ReadLiteral(n + 1)
	shift := uint(31 - n)
	return int32(v<<shift) >> shift
}

// ReadUvlc reads a variable length unsigned value. uvlc() in the
// spec: a unary count of leading zeros followed by that many literal
// bits.
func (r *Reader) ReadUvlc() uint32 {
	leadingZeros := 0
	for !r.ReadFlag() {
		leadingZeros++
		if leadingZeros > 31 || r.err != nil {
			// The spec caps uvlc values at 32 significant bits.
			if r.err == nil {
				r.err = errors.Wrap(ErrOverread, "uvlc longer than 32 bits")
			}
			return 0
		}
	}
	if leadingZeros == 0 {
		return 0
	}
	return r.ReadLiteral(leadingZeros) + (1 << uint(leadingZeros)) - 1
}

// ReadLeb128 reads a little endian byte aligned variable length
// integer, used for size fields. leb128() in the spec. The reader
// must be byte aligned.
func (r *Reader) ReadLeb128() uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		b := r.ReadLiteral(8)
		v |= uint64(b&0x7f) << uint(i*7)
		if b&0x80 == 0 {
			return v
		}
	}
	if r.err == nil {
		r.err = errors.Wrap(ErrOverread, "leb128 longer than 8 bytes")
	}
	return 0
}

// ByteAlign skips forward to the next byte boundary.
func (r *Reader) ByteAlign() {
	r.pos = (r.pos + 7) &^ 7
}

// Remaining returns the unread tail of the buffer, starting at the
// next byte boundary.
func (r *Reader) Remaining() []byte {
	if r.err != nil {
		return nil
	}
	off := (r.pos + 7) >> 3
	if off > len(r.data) {
		return nil
	}
	return r.data[off:]
}
