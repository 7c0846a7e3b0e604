package av1

import (
	"github.com/av1dec/go-av1/av1/entropy"
)

// Plane is a borrowed view of one picture plane. Pixels are always
// uint16, left-justified to the stream's bit depth.
type Plane struct {
	Pix    []uint16
	Stride int
	Width  int
	Height int
}

// Picture is a borrowed view of a frame buffer, handed to kernel
// implementations.
type Picture struct {
	Planes       []Plane
	SubsamplingX int
	SubsamplingY int
	BitDepth     int
}

// DeblockParams carries the deblocking state for one frame.
type DeblockParams struct {
	Levels     [4]int // y vertical, y horizontal, u, v
	Sharpness  int
	RefDeltas  [numRefFrames]int8
	ModeDeltas [2]int8
}

// CDEFParams carries the constrained directional enhancement state
// for one frame.
type CDEFParams struct {
	DampingMinus3 int
	Bits          int
	YStrengths    []int
	UVStrengths   []int
}

// SuperresParams describes the horizontal upscale step.
type SuperresParams struct {
	Denominator   int // 9..16, over a numerator of 8
	UpscaledWidth int
}

// RestorationRun is one plane's worth of loop restoration work: the
// unit grid plus the per-unit filters read from the tiles.
type RestorationRun struct {
	Plane     int
	UnitSize  int
	HorzUnits int
	VertUnits int
	Units     []RestorationUnit
}

// RestorationUnit is a single restoration unit's filter choice.
type RestorationUnit struct {
	Type    RestorationUnitType
	Wiener  WienerInfo
	Sgrproj SgrprojInfo
}

// RestorationUnitType is the per-unit filter selection.
type RestorationUnitType uint8

const (
	RestoreUnitNone RestorationUnitType = iota
	RestoreUnitWiener
	RestoreUnitSgrproj
)

// WienerInfo holds the separable Wiener filter taps. Tap 3 of each
// half is derived, not coded.
type WienerInfo struct {
	Vertical   [3]int8
	Horizontal [3]int8
}

// SgrprojInfo holds the self-guided restoration parameters.
type SgrprojInfo struct {
	ParamsIndex int
	XQD         [2]int16
}

// Kernels is the pixel-math surface of the decoder: prediction,
// inverse transforms and the post filters. The frame decoder drives
// the bitstream and block topology; implementations of Kernels do
// the sample arithmetic. The default is a no-op set, which leaves
// pixel data untouched but keeps every bitstream and topology path
// exercised.
type Kernels interface {
	// PredictIntra predicts one transform-sized region of dst from
	// its already reconstructed neighbors. x and y are plane-local
	// pixel coordinates.
	PredictIntra(dst Picture, plane int, mi *ModeInfo, x, y int, tx TxSize)

	// PredictInter motion compensates one plane region of dst from
	// the reference pictures named by mi.
	PredictInter(dst Picture, refs [2]*Picture, mi *ModeInfo, plane, x, y, w, h int)

	// InverseTransform adds the dequantized residual in coeffs onto
	// the prediction already sitting in dst.
	InverseTransform(dst Picture, plane int, coeffs []int32, eob int, x, y int, tx TxSize)

	// Deblock runs the loop filter over the whole frame.
	Deblock(dst Picture, p DeblockParams)

	// CDEF runs the constrained directional enhancement filter.
	CDEF(dst Picture, p CDEFParams)

	// Superres upscales the frame horizontally in place; dst is
	// allocated wide enough for the upscaled width.
	Superres(dst Picture, p SuperresParams)

	// Restore runs loop restoration for one plane.
	Restore(dst Picture, run RestorationRun)
}

type nopKernels struct{}

// NopKernels returns the do-nothing kernel set.
func NopKernels() Kernels {
	return nopKernels{}
}

func (nopKernels) PredictIntra(Picture, int, *ModeInfo, int, int, TxSize) {}

func (nopKernels) PredictInter(Picture, [2]*Picture, *ModeInfo, int, int, int, int, int) {}

func (nopKernels) InverseTransform(Picture, int, []int32, int, int, int, TxSize) {}

func (nopKernels) Deblock(Picture, DeblockParams) {}

func (nopKernels) CDEF(Picture, CDEFParams) {}

func (nopKernels) Superres(Picture, SuperresParams) {}

func (nopKernels) Restore(Picture, RestorationRun) {}

// ModeReader decodes the per-block mode info syntax. It is split off
// the frame decoder so the block topology can be driven with
// alternative mode syntaxes, and so tests can pin block modes.
type ModeReader interface {
	ReadModeInfo(sym *entropy.Decoder, blk *Block, mi *ModeInfo) error
}

// CoeffReader decodes residual coefficients and palette tokens.
type CoeffReader interface {
	// ReadCoeffs decodes one transform unit into coeffs and returns
	// the end-of-block position; 0 means the unit is all zero.
	ReadCoeffs(sym *entropy.Decoder, blk *Block, plane int, tx TxSize, coeffs []int32) (int, error)

	// ReadPaletteTokens consumes the palette color index map for a
	// plane coded with a palette.
	ReadPaletteTokens(sym *entropy.Decoder, blk *Block, plane int) error
}
