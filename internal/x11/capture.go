package x11

import (
	"fmt"
	"image"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/unmhost/internal/frame"
)

// PutImage and GetImage carry a fixed request header ahead of pixel rows.
const imageRequestHeader = 24

// Capture reads rect of the window into a new RGBA frame. It blocks on the
// server round trips and may be called from any goroutine.
func (c *Connection) Capture(windowID xproto.Window, rect image.Rectangle) (*frame.Frame, error) {
	if rect.Empty() {
		return nil, fmt.Errorf("empty capture rectangle %v", rect)
	}
	width, height := rect.Dx(), rect.Dy()
	f := frame.New(width, height)
	img, err := f.RGBA()
	if err != nil {
		return nil, err
	}

	lsb := c.lsbFirst()
	rows := rowsPerRequest(width, c.maxRequestBytes())
	for y := 0; y < height; y += rows {
		n := min(rows, height-y)
		reply, err := xproto.GetImage(
			c.XUtil.Conn(),
			xproto.ImageFormatZPixmap,
			xproto.Drawable(windowID),
			int16(rect.Min.X), int16(rect.Min.Y+y),
			uint16(width), uint16(n),
			^uint32(0),
		).Reply()
		if err != nil {
			f.Release()
			return nil, fmt.Errorf("get image: %w", err)
		}
		if reply.Depth < 24 {
			f.Release()
			return nil, fmt.Errorf("unsupported window depth %d", reply.Depth)
		}
		if len(reply.Data) < width*n*4 {
			f.Release()
			return nil, fmt.Errorf("short image reply: %d bytes for %dx%d", len(reply.Data), width, n)
		}
		zpixmapToRGBA(img.Pix[y*img.Stride:], reply.Data, width*n, lsb)
	}
	return f, nil
}

// rowsPerRequest returns how many 32bpp rows of the given width fit in one
// image request.
func rowsPerRequest(width, maxRequestBytes int) int {
	if width < 1 {
		return 1
	}
	rows := (maxRequestBytes - imageRequestHeader) / (width * 4)
	if rows < 1 {
		return 1
	}
	return rows
}

// zpixmapToRGBA converts count 32bpp TrueColor pixels to opaque RGBA. With
// LSB-first byte order pixels arrive as B,G,R,X.
func zpixmapToRGBA(dst, src []byte, count int, lsb bool) {
	for i := range count {
		s := src[i*4 : i*4+4]
		d := dst[i*4 : i*4+4]
		if lsb {
			d[0], d[1], d[2] = s[2], s[1], s[0]
		} else {
			d[0], d[1], d[2] = s[1], s[2], s[3]
		}
		d[3] = 0xff
	}
}

// rgbaToZPixmap is the inverse of zpixmapToRGBA. Alpha is dropped.
func rgbaToZPixmap(dst, src []byte, count int, lsb bool) {
	for i := range count {
		s := src[i*4 : i*4+4]
		d := dst[i*4 : i*4+4]
		if lsb {
			d[0], d[1], d[2], d[3] = s[2], s[1], s[0], 0
		} else {
			d[0], d[1], d[2], d[3] = 0, s[0], s[1], s[2]
		}
	}
}
