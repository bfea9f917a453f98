// Package pixmap holds the canonical RGBA pixel buffer both sides of a
// conformance comparison are reduced to.
package pixmap

import (
	"fmt"
	"image"
	"image/color"
)

// RGBA is one non-premultiplied 8-bit pixel.
type RGBA struct {
	R, G, B, A uint8
}

func (p RGBA) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", p.R, p.G, p.B, p.A)
}

// Image is a row-major pixel buffer; len(Pix) == Width*Height.
type Image struct {
	Width  int
	Height int
	Pix    []RGBA
}

// New allocates a zeroed width x height image.
func New(width, height int) *Image {
	return &Image{Width: width, Height: height, Pix: make([]RGBA, width*height)}
}

// At returns the pixel at (x, y).
func (m *Image) At(x, y int) RGBA {
	return m.Pix[y*m.Width+x]
}

// Set stores p at (x, y).
func (m *Image) Set(x, y int, p RGBA) {
	m.Pix[y*m.Width+x] = p
}

// FromImage normalizes any decoded image to 8-bit non-premultiplied RGBA.
// Grayscale, paletted and 16-bit sources are all converted; 16-bit channels
// keep their high byte.
func FromImage(src image.Image) *Image {
	b := src.Bounds()
	dst := New(b.Dx(), b.Dy())

	switch s := src.(type) {
	case *image.NRGBA:
		for y := 0; y < dst.Height; y++ {
			row := s.Pix[s.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := 0; x < dst.Width; x++ {
				i := x * 4
				dst.Pix[y*dst.Width+x] = RGBA{row[i], row[i+1], row[i+2], row[i+3]}
			}
		}
		return dst
	case *image.NRGBA64:
		// Converting through color.RGBA64 would premultiply and lose precision
		// at low alpha.
		for y := 0; y < dst.Height; y++ {
			row := s.Pix[s.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := 0; x < dst.Width; x++ {
				i := x * 8
				dst.Pix[y*dst.Width+x] = RGBA{row[i], row[i+2], row[i+4], row[i+6]}
			}
		}
		return dst
	}

	for y := 0; y < dst.Height; y++ {
		for x := 0; x < dst.Width; x++ {
			c := color.NRGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			dst.Pix[y*dst.Width+x] = RGBA{c.R, c.G, c.B, c.A}
		}
	}
	return dst
}

// ToNRGBA converts m back into a standard library image.
func (m *Image) ToNRGBA() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, m.Width, m.Height))
	for i, p := range m.Pix {
		copy(out.Pix[i*4:], []uint8{p.R, p.G, p.B, p.A})
	}
	return out
}

// MismatchKind says which property of two images first differed.
type MismatchKind int

const (
	DimensionMismatch MismatchKind = iota + 1
	PixelMismatch
)

// Mismatch describes the first difference between two images.
type Mismatch struct {
	Kind       MismatchKind
	GotWidth   int
	GotHeight  int
	WantWidth  int
	WantHeight int
	Index      int
	X, Y       int
	Got        RGBA
	Want       RGBA
}

func (m *Mismatch) String() string {
	if m.Kind == DimensionMismatch {
		return fmt.Sprintf("dimensions differ: got %dx%d, want %dx%d",
			m.GotWidth, m.GotHeight, m.WantWidth, m.WantHeight)
	}
	return fmt.Sprintf("pixel %d (x=%d, y=%d) differs: got %s, want %s",
		m.Index, m.X, m.Y, m.Got, m.Want)
}

// Compare checks got against want for exact equality and returns the first
// difference, or nil when they are identical. No tolerance is applied.
func Compare(got, want *Image) *Mismatch {
	if got.Width != want.Width || got.Height != want.Height || len(got.Pix) != len(want.Pix) {
		return &Mismatch{
			Kind:       DimensionMismatch,
			GotWidth:   got.Width,
			GotHeight:  got.Height,
			WantWidth:  want.Width,
			WantHeight: want.Height,
		}
	}
	for i := range want.Pix {
		if got.Pix[i] != want.Pix[i] {
			mm := &Mismatch{
				Kind:       PixelMismatch,
				GotWidth:   got.Width,
				GotHeight:  got.Height,
				WantWidth:  want.Width,
				WantHeight: want.Height,
				Index:      i,
				Got:        got.Pix[i],
				Want:       want.Pix[i],
			}
			if want.Width > 0 {
				mm.X, mm.Y = i%want.Width, i/want.Width
			}
			return mm
		}
	}
	return nil
}
