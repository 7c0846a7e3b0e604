// Package av1 decodes AV1 frame payloads: headers, tile entropy
// data and block topology. Pixel arithmetic is delegated to an
// injectable Kernels implementation, defaulting to no-ops, so the
// package can drive conformance of the bitstream layer on its own.
package av1

import (
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/av1dec/go-av1/av1/bitio"
)

// Frame is one decoded output frame. Its planes alias the decoder's
// buffer pool; they stay valid until the next DecodeFrame call.
type Frame struct {
	Picture Picture

	Width  int // upscaled luma width
	Height int

	RenderWidth  int
	RenderHeight int

	fb *frameBuffer
}

// Decoder decodes a single AV1 coded video sequence. It is not safe
// for concurrent use; tile-level parallelism happens internally.
type Decoder struct {
	seq  *sequenceHeader
	pool *bufferPool
	refs *refState

	refFrameID   [numRefFrames]int
	refValid     [numRefFrames]bool
	refOrderHint [numRefFrames]int

	largeScaleTile bool

	kernels     Kernels
	modeReader  ModeReader
	coeffReader CoeffReader

	// lastOutput pins the planes handed to the caller by the previous
	// DecodeFrame call.
	lastOutput *frameBuffer
}

// NewDecoder builds a decoder from a raw sequence_header_obu payload.
func NewDecoder(seqHeader []byte) (*Decoder, error) {
	seq, err := parseSequenceHeader(seqHeader)
	if err != nil {
		return nil, err
	}
	pool := newBufferPool()
	return &Decoder{
		seq:  seq,
		pool: pool,
		refs: newRefState(pool),

		kernels:     NopKernels(),
		modeReader:  NewModeReader(),
		coeffReader: NewCoeffReader(),
	}, nil
}

// SetKernels installs the pixel-math implementation.
func (d *Decoder) SetKernels(k Kernels) {
	if k != nil {
		d.kernels = k
	}
}

// SetModeReader replaces the mode info syntax reader.
func (d *Decoder) SetModeReader(m ModeReader) {
	if m != nil {
		d.modeReader = m
	}
}

// SetCoeffReader replaces the residual syntax reader.
func (d *Decoder) SetCoeffReader(c CoeffReader) {
	if c != nil {
		d.coeffReader = c
	}
}

// SetLargeScaleTile switches tile payload parsing to the large scale
// tile layout. Must match how the stream was packaged.
func (d *Decoder) SetLargeScaleTile(enabled bool) {
	d.largeScaleTile = enabled
}

// DecodeFrame decodes one temporal unit's frame payload: the
// uncompressed frame header followed by its tile data. It returns
// the frame to present, or nil for frames coded with show_frame=0.
func (d *Decoder) DecodeFrame(payload []byte) (*Frame, error) {
	if d.lastOutput != nil {
		d.pool.unref(d.lastOutput)
		d.lastOutput = nil
	}

	r := bitio.NewReader(payload)
	h, err := d.parseFrameHeader(r)
	if err != nil {
		if errors.Is(err, bitio.ErrOverread) {
			return nil, corruptf("truncated frame header: %v", err)
		}
		return nil, err
	}

	if h.show_existing_frame {
		return d.showExistingFrame(h)
	}

	tileData := r.Remaining()

	cur, err := d.pool.get()
	if err != nil {
		return nil, err
	}
	cur.ensureSize(h.upscaled_width, h.height, d.seq.bit_depth,
		d.seq.subsampling_x, d.seq.subsampling_y, d.seq.monochrome)
	cur.upscaledWidth = h.upscaled_width
	cur.renderWidth = h.render_width
	cur.renderHeight = h.render_height
	cur.frameType = h.frame_type
	cur.showableFrame = h.showable_frame
	cur.frameID = h.current_frame_id
	cur.orderHint = h.order_hint
	cur.filmGrain = h.film_grain
	cur.globalMotion = h.global_motion
	cur.seg = h.seg
	cur.lfDeltas = h.lf.deltas

	d.refs.stageRefresh(cur, h.refresh_frame_flags)

	fc, err := d.frameStartContext(h)
	if err != nil {
		d.abortFrame(cur)
		return nil, err
	}

	updateFC, err := d.decodeTiles(h, cur, fc, tileData)
	if err != nil {
		d.abortFrame(cur)
		return nil, err
	}

	d.refs.publish()
	d.refs.saveContext(h.refresh_frame_flags, updateFC)
	cur.ctx = updateFC
	d.updateRefBookkeeping(h)

	// The staged refresh holds the slot references; the decode's own
	// hold is released unless the frame is being handed out.
	if !h.show_frame {
		d.pool.unref(cur)
		return nil, nil
	}
	d.lastOutput = cur
	return d.outputFrame(cur), nil
}

func (d *Decoder) abortFrame(cur *frameBuffer) {
	d.refs.abort(cur)
	d.pool.unref(cur)
}

func (d *Decoder) outputFrame(fb *frameBuffer) *Frame {
	if fb.monochrome {
		fb.fillNeutralChroma()
	}
	return &Frame{
		Picture:      fb.picture(),
		Width:        fb.upscaledWidth,
		Height:       fb.height,
		RenderWidth:  fb.renderWidth,
		RenderHeight: fb.renderHeight,
		fb:           fb,
	}
}

// showExistingFrame presents a previously decoded reference without
// decoding anything new. Showing a keyframe this way replays its
// slot-clearing side effects.
func (d *Decoder) showExistingFrame(h *frameHeader) (*Frame, error) {
	fb, err := d.refs.resolve(h.frame_to_show)
	if err != nil {
		return nil, err
	}
	if !fb.showableFrame && fb.frameType != keyFrame {
		return nil, corruptf("slot %d holds a frame not marked showable", h.frame_to_show)
	}

	if fb.frameType == keyFrame {
		d.refs.stageRefresh(fb, 0xff)
		d.refs.publish()
		for i := range d.refValid {
			d.refValid[i] = true
			d.refFrameID[i] = fb.frameID
			d.refOrderHint[i] = fb.orderHint
		}
	}

	d.pool.ref(fb)
	d.lastOutput = fb
	return d.outputFrame(fb), nil
}

func (d *Decoder) updateRefBookkeeping(h *frameHeader) {
	for i := 0; i < numRefFrames; i++ {
		if h.refresh_frame_flags&(1<<uint(i)) == 0 {
			continue
		}
		d.refValid[i] = true
		d.refFrameID[i] = h.current_frame_id
		d.refOrderHint[i] = h.order_hint
	}
}

// frameStartContext picks the entropy state the frame starts from:
// the primary reference frame's adapted context, or the defaults.
func (d *Decoder) frameStartContext(h *frameHeader) (*FrameContext, error) {
	if h.primary_ref_frame == primaryRefNone {
		return newFrameContext(), nil
	}
	ref, err := d.refs.resolve(h.ref_slots[h.primary_ref_frame])
	if err != nil {
		return nil, err
	}
	if ref.ctx == nil {
		return newFrameContext(), nil
	}
	fc := ref.ctx.clone()
	fc.resetCounters()
	return fc, nil
}

// decodeTiles splits the tile payload and decodes every tile, each
// against its own clone of the frame context. The clone adapted by
// the tile named context_update_tile_id is what the frame hands
// forward.
func (d *Decoder) decodeTiles(h *frameHeader, cur *frameBuffer, fc *FrameContext, data []byte) (*FrameContext, error) {
	tp := &h.tiles

	var bufs []tileBuffer
	var err error
	if d.largeScaleTile {
		bufs, err = splitLargeScaleTileBuffers(data, tp, d.copyModeAllowed(h))
	} else {
		bufs, err = splitTileBuffers(data, tp)
	}
	if err != nil {
		return nil, err
	}

	arena := newModeInfoArena(h.mi_rows, h.mi_cols)
	lrRuns := newRestorationRuns(h, d.seq, cur.numPlanes())

	var refBufs [numRefFrames]*frameBuffer
	if !h.frame_is_intra {
		for i := 0; i < refsPerFrame; i++ {
			ref, err := d.refs.resolve(h.ref_slots[i])
			if err != nil {
				return nil, err
			}
			refBufs[lastFrame+i] = ref
		}
	}

	sbShift := d.seq.sbSizeLog2()

	tiles := make([]*tileDecoder, len(bufs))
	for _, buf := range bufs {
		row := buf.tile / tp.cols
		col := buf.tile % tp.cols
		info := tp.tileAt(h, sbShift, row, col)
		td, err := newTileDecoder(d, h, info, fc.clone(), arena, cur, refBufs, &lrRuns, buf.data)
		if err != nil {
			return nil, err
		}
		tiles[buf.tile] = td
	}

	var g errgroup.Group
	for _, td := range tiles {
		td := td
		g.Go(td.decode)
	}
	if err := g.Wait(); err != nil {
		return nil, errors.WithMessage(err, "tile decode")
	}

	d.applyPostFilters(h, cur, &lrRuns)

	// Backward adaptation: the designated tile's adapted context
	// becomes the frame's carried state. Frames that disable the
	// update carry their starting state instead.
	if h.refreshesContext() {
		return tiles[tp.context_update_tile_id].fc, nil
	}
	return fc, nil
}

// copyModeAllowed reports whether large scale tile payloads may use
// copy mode, which requires every tile to fit in 256x256 samples.
func (d *Decoder) copyModeAllowed(h *frameHeader) bool {
	tp := &h.tiles
	sbPx := 1 << uint(d.seq.sbSizeLog2()+miSizeLog2)
	for c := 0; c < tp.cols; c++ {
		if (tp.colStartSB[c+1]-tp.colStartSB[c])*sbPx > 256 {
			return false
		}
	}
	for r := 0; r < tp.rows; r++ {
		if (tp.rowStartSB[r+1]-tp.rowStartSB[r])*sbPx > 256 {
			return false
		}
	}
	return true
}
