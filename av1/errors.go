package av1

import (
	"github.com/pkg/errors"
)

// Decode failures fall into three families, matching what a caller
// can do about them: skip the frame, switch decoders, or free memory.
var (
	// ErrCorruptBitstream means the payload violates the bitstream
	// grammar or an internal consistency rule. The decoder state
	// stays valid and the next frame may be attempted.
	ErrCorruptBitstream = errors.New("av1: corrupt bitstream")

	// ErrUnsupportedBitstream means the stream uses a legal feature
	// this decoder does not implement.
	ErrUnsupportedBitstream = errors.New("av1: unsupported bitstream feature")

	// ErrResourceExhaustion means an allocation limit was hit.
	ErrResourceExhaustion = errors.New("av1: out of frame buffers")
)

func corruptf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrCorruptBitstream, format, args...)
}

func unsupportedf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrUnsupportedBitstream, format, args...)
}
