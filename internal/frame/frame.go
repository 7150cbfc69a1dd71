package frame

import (
	"errors"
	"image"
	"sync"
	"sync/atomic"

	xdraw "golang.org/x/image/draw"
)

// BytesPerPixel is the fixed channel layout of captured frames: 8-bit RGBA.
const BytesPerPixel = 4

// ErrReleased is returned when a released frame's pixels are accessed.
var ErrReleased = errors.New("frame already released")

var counter atomic.Uint64

// Frame is a pixel snapshot of the render surface.
//
// A Frame has a single owner at a time. Release hands the pixel buffer back
// and must be called exactly once by that owner; extra calls are counted so
// callers can detect double release.
type Frame struct {
	id   uint64
	mu   sync.Mutex
	img  *image.RGBA
	rels atomic.Int32
}

// New allocates a frame of the given size.
func New(width, height int) *Frame {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return &Frame{
		id:  counter.Add(1),
		img: image.NewRGBA(image.Rect(0, 0, width, height)),
	}
}

// ID returns a process-unique, monotonically increasing identifier.
func (f *Frame) ID() uint64 {
	return f.id
}

// Bounds returns the frame dimensions, or an empty rectangle once released.
func (f *Frame) Bounds() image.Rectangle {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.img == nil {
		return image.Rectangle{}
	}
	return f.img.Bounds()
}

// RGBA exposes the underlying pixels. Callers must not retain the image past
// Release.
func (f *Frame) RGBA() (*image.RGBA, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.img == nil {
		return nil, ErrReleased
	}
	return f.img, nil
}

// ScaleTo returns a copy of the frame stretched to width x height, ignoring
// aspect ratio.
func (f *Frame) ScaleTo(width, height int) (*image.RGBA, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.img == nil {
		return nil, ErrReleased
	}
	if width < 1 || height < 1 {
		return nil, errors.New("scale target must be at least 1x1")
	}
	src := f.img
	if src.Bounds().Dx() == width && src.Bounds().Dy() == height {
		dst := image.NewRGBA(image.Rect(0, 0, width, height))
		copy(dst.Pix, src.Pix)
		return dst, nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst, nil
}

// Release frees the pixel buffer. Only the first call frees memory.
func (f *Frame) Release() {
	if f.rels.Add(1) != 1 {
		return
	}
	f.mu.Lock()
	f.img = nil
	f.mu.Unlock()
}

// Released reports whether Release has been called.
func (f *Frame) Released() bool {
	return f.rels.Load() > 0
}

// ReleaseCount returns how many times Release was called.
func (f *Frame) ReleaseCount() int {
	return int(f.rels.Load())
}
