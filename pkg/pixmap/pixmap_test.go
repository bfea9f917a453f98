package pixmap

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var red = RGBA{255, 0, 0, 255}

func solid(w, h int, p RGBA) *Image {
	m := New(w, h)
	for i := range m.Pix {
		m.Pix[i] = p
	}
	return m
}

func TestFromImage_NRGBA(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	src.SetNRGBA(1, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 40})

	m := FromImage(src)
	require.Equal(t, 2, m.Width)
	require.Equal(t, 2, m.Height)
	assert.Equal(t, RGBA{10, 20, 30, 40}, m.At(1, 0))
	assert.Equal(t, RGBA{}, m.At(0, 0))
}

func TestFromImage_GrayExpandsToOpaqueRGBA(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 3, 1))
	src.SetGray(2, 0, color.Gray{Y: 128})

	m := FromImage(src)
	assert.Equal(t, RGBA{128, 128, 128, 255}, m.At(2, 0))
	assert.Equal(t, RGBA{0, 0, 0, 255}, m.At(0, 0))
}

func TestFromImage_PalettedWithAlpha(t *testing.T) {
	pal := color.Palette{color.NRGBA{0, 0, 0, 0}, color.NRGBA{0, 255, 0, 255}}
	src := image.NewPaletted(image.Rect(0, 0, 2, 1), pal)
	src.SetColorIndex(1, 0, 1)

	m := FromImage(src)
	assert.Equal(t, RGBA{0, 0, 0, 0}, m.At(0, 0))
	assert.Equal(t, RGBA{0, 255, 0, 255}, m.At(1, 0))
}

func TestFromImage_NRGBA64KeepsHighByte(t *testing.T) {
	src := image.NewNRGBA64(image.Rect(0, 0, 1, 1))
	src.SetNRGBA64(0, 0, color.NRGBA64{R: 0xABCD, G: 0x1234, B: 0xFF00, A: 0x0101})

	m := FromImage(src)
	assert.Equal(t, RGBA{0xAB, 0x12, 0xFF, 0x01}, m.At(0, 0))
}

func TestFromImage_SubImageOffset(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	src.SetNRGBA(2, 3, color.NRGBA{1, 2, 3, 4})
	sub := src.SubImage(image.Rect(2, 2, 4, 4))

	m := FromImage(sub)
	require.Equal(t, 2, m.Width)
	assert.Equal(t, RGBA{1, 2, 3, 4}, m.At(0, 1))
}

func TestToNRGBA_RoundTrip(t *testing.T) {
	m := solid(2, 3, RGBA{9, 8, 7, 6})
	assert.Equal(t, m, FromImage(m.ToNRGBA()))
}

func TestCompare_Equal(t *testing.T) {
	assert.Nil(t, Compare(solid(2, 2, red), solid(2, 2, red)))
}

func TestCompare_Dimensions(t *testing.T) {
	mm := Compare(solid(3, 2, red), solid(2, 3, red))
	require.NotNil(t, mm)
	assert.Equal(t, DimensionMismatch, mm.Kind)
	assert.Contains(t, mm.String(), "got 3x2, want 2x3")
}

func TestCompare_FirstPixel(t *testing.T) {
	got := solid(3, 2, red)
	got.Set(1, 1, RGBA{255, 0, 0, 254})
	got.Set(2, 1, RGBA{0, 0, 0, 0})

	mm := Compare(got, solid(3, 2, red))
	require.NotNil(t, mm)
	assert.Equal(t, PixelMismatch, mm.Kind)
	assert.Equal(t, 4, mm.Index)
	assert.Equal(t, 1, mm.X)
	assert.Equal(t, 1, mm.Y)
	assert.Equal(t, RGBA{255, 0, 0, 254}, mm.Got)
	assert.Equal(t, red, mm.Want)
	assert.Equal(t, "pixel 4 (x=1, y=1) differs: got (255,0,0,254), want (255,0,0,255)", mm.String())
}

func TestCompare_AlphaOnlyDifference(t *testing.T) {
	got := solid(1, 1, RGBA{1, 2, 3, 0})
	want := solid(1, 1, RGBA{1, 2, 3, 255})
	require.NotNil(t, Compare(got, want))
}

func TestCompare_Empty(t *testing.T) {
	assert.Nil(t, Compare(New(0, 0), New(0, 0)))
	assert.NotNil(t, Compare(New(0, 5), New(5, 0)))
}
