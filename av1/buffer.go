package av1

import (
	"sync"

	"github.com/pkg/errors"
)

// frameBufferCount bounds the pool: eight reference slots plus
// headroom for the frame in flight and held outputs.
const frameBufferCount = 16

// frameBuffer is one reusable decoded picture plus the per-frame
// state that travels with it when it is used as a reference.
type frameBuffer struct {
	planes [3][]uint16
	stride [3]int

	width, height int // decode-time luma dimensions (pre-superres)
	upscaledWidth int
	renderWidth   int
	renderHeight  int

	bitDepth     int
	subsamplingX int
	subsamplingY int
	monochrome   bool

	miRows, miCols int

	refCount int // guarded by the pool mutex

	frameType     frameType
	showableFrame bool
	frameID       int
	orderHint     int

	filmGrain    filmGrainParams
	globalMotion [refsPerFrame + 1]warpedMotion
	seg          segmentationParams
	lfDeltas     loopFilterDeltas
	// ctx is the adapted entropy state this frame handed forward,
	// used to seed frames naming this buffer as primary reference.
	ctx *FrameContext
}

// ensureSize (re)allocates the plane storage. Existing pixel data is
// discarded when the geometry changes.
func (fb *frameBuffer) ensureSize(width, height, bitDepth, ssx, ssy int, monochrome bool) {
	fb.width = width
	fb.height = height
	fb.bitDepth = bitDepth
	fb.subsamplingX = ssx
	fb.subsamplingY = ssy
	fb.monochrome = monochrome
	fb.miRows = ceilDiv(height, 4)
	fb.miCols = ceilDiv(width, 4)

	planes := 3
	if monochrome {
		planes = 1
	}
	for p := 0; p < planes; p++ {
		w, h := fb.planeSize(p)
		need := w * h
		fb.stride[p] = w
		if cap(fb.planes[p]) < need {
			fb.planes[p] = make([]uint16, need)
		} else {
			fb.planes[p] = fb.planes[p][:need]
		}
	}
	for p := planes; p < 3; p++ {
		fb.planes[p] = nil
		fb.stride[p] = 0
	}
}

func (fb *frameBuffer) planeSize(plane int) (w, h int) {
	w, h = fb.width, fb.height
	if plane > 0 {
		w = ceilDiv(w, 1<<uint(fb.subsamplingX))
		h = ceilDiv(h, 1<<uint(fb.subsamplingY))
	}
	return w, h
}

func (fb *frameBuffer) numPlanes() int {
	if fb.monochrome {
		return 1
	}
	return 3
}

// fillNeutralChroma writes the mid-level grey value into the chroma
// planes. Monochrome frames still hand three planes to the caller.
func (fb *frameBuffer) fillNeutralChroma() {
	grey := uint16(1 << uint(fb.bitDepth-1))
	for p := 1; p < 3; p++ {
		w := ceilDiv(fb.width, 2)
		h := ceilDiv(fb.height, 2)
		need := w * h
		if cap(fb.planes[p]) < need {
			fb.planes[p] = make([]uint16, need)
		} else {
			fb.planes[p] = fb.planes[p][:need]
		}
		fb.stride[p] = w
		for i := range fb.planes[p] {
			fb.planes[p][i] = grey
		}
	}
}

// picture exposes the buffer to kernel implementations.
func (fb *frameBuffer) picture() Picture {
	pic := Picture{
		SubsamplingX: fb.subsamplingX,
		SubsamplingY: fb.subsamplingY,
		BitDepth:     fb.bitDepth,
	}
	for p := 0; p < fb.numPlanes(); p++ {
		w, h := fb.planeSize(p)
		pic.Planes = append(pic.Planes, Plane{
			Pix:    fb.planes[p],
			Stride: fb.stride[p],
			Width:  w,
			Height: h,
		})
	}
	return pic
}

// bufferPool recycles frame buffers. A buffer is free when nothing
// holds a reference to it: no slot map entry, no in-flight decode,
// no handed-out output frame.
type bufferPool struct {
	mu     sync.Mutex
	frames []*frameBuffer
}

func newBufferPool() *bufferPool {
	return &bufferPool{}
}

// get claims a free buffer with one reference held, growing the pool
// up to its fixed ceiling.
func (p *bufferPool) get() (*frameBuffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, fb := range p.frames {
		if fb.refCount == 0 {
			fb.refCount = 1
			fb.ctx = nil
			return fb, nil
		}
	}
	if len(p.frames) >= frameBufferCount {
		return nil, errors.Wrap(ErrResourceExhaustion, "no free frame buffer")
	}
	fb := &frameBuffer{refCount: 1}
	p.frames = append(p.frames, fb)
	return fb, nil
}

func (p *bufferPool) ref(fb *frameBuffer) {
	if fb == nil {
		return
	}
	p.mu.Lock()
	fb.refCount++
	p.mu.Unlock()
}

func (p *bufferPool) unref(fb *frameBuffer) {
	if fb == nil {
		return
	}
	p.mu.Lock()
	fb.refCount--
	if fb.refCount < 0 {
		// Refcounting bug; pin the buffer rather than corrupt the pool.
		fb.refCount = 0
	}
	p.mu.Unlock()
}

// refCountOf is a test hook.
func (p *bufferPool) refCountOf(fb *frameBuffer) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fb.refCount
}
