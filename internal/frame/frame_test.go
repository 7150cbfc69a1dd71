package frame

import (
	"errors"
	"image/color"
	"testing"
)

func TestNewClampsToOnePixel(t *testing.T) {
	f := New(0, -3)
	b := f.Bounds()
	if b.Dx() != 1 || b.Dy() != 1 {
		t.Fatalf("expected 1x1 frame, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestReleaseCountsEveryCall(t *testing.T) {
	f := New(4, 4)
	f.Release()
	if !f.Released() {
		t.Fatalf("expected frame to be released")
	}
	if _, err := f.RGBA(); !errors.Is(err, ErrReleased) {
		t.Fatalf("expected ErrReleased, got %v", err)
	}
	f.Release()
	if got := f.ReleaseCount(); got != 2 {
		t.Fatalf("ReleaseCount() = %d, want 2", got)
	}
	if !f.Bounds().Empty() {
		t.Fatalf("expected empty bounds after release, got %v", f.Bounds())
	}
}

func TestIDsAreMonotonic(t *testing.T) {
	a := New(1, 1)
	b := New(1, 1)
	if b.ID() <= a.ID() {
		t.Fatalf("expected increasing ids, got %d then %d", a.ID(), b.ID())
	}
}

func TestScaleToStretchesSolidColor(t *testing.T) {
	f := New(2, 2)
	img, _ := f.RGBA()
	red := color.RGBA{R: 255, A: 255}
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.SetRGBA(x, y, red)
		}
	}

	scaled, err := f.ScaleTo(8, 4)
	if err != nil {
		t.Fatalf("ScaleTo: %v", err)
	}
	if scaled.Bounds().Dx() != 8 || scaled.Bounds().Dy() != 4 {
		t.Fatalf("unexpected scaled bounds %v", scaled.Bounds())
	}
	if got := scaled.RGBAAt(7, 3); got.R < 250 || got.G != 0 || got.B != 0 || got.A < 250 {
		t.Fatalf("corner pixel = %v, want ~%v", got, red)
	}
}

func TestScaleToSameSizeCopies(t *testing.T) {
	f := New(3, 3)
	img, _ := f.RGBA()
	img.Pix[0] = 42

	scaled, err := f.ScaleTo(3, 3)
	if err != nil {
		t.Fatalf("ScaleTo: %v", err)
	}
	scaled.Pix[0] = 7
	if img.Pix[0] != 42 {
		t.Fatalf("ScaleTo must not alias the frame buffer")
	}
}

func TestScaleToAfterRelease(t *testing.T) {
	f := New(2, 2)
	f.Release()
	if _, err := f.ScaleTo(4, 4); !errors.Is(err, ErrReleased) {
		t.Fatalf("expected ErrReleased, got %v", err)
	}
}
