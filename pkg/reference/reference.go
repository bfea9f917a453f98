// Package reference decodes fixtures with trusted decoders to produce the
// ground-truth pixels a subject is compared against.
package reference

import (
	"fmt"
	"image"
	"os"
	"sort"

	// registered formats
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/jpfielding/conform.go/pkg/pixmap"
)

// Decoder loads a file into a normalized RGBA buffer.
type Decoder interface {
	Decode(path string) (*pixmap.Image, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(path string) (*pixmap.Image, error)

func (f DecoderFunc) Decode(path string) (*pixmap.Image, error) { return f(path) }

// ImageDecoder decodes with the formats registered in the image package.
// An empty Formats accepts any registered format; otherwise the sniffed
// format name must be listed.
type ImageDecoder struct {
	Formats []string
}

// Decode fully decodes path and normalizes it to RGBA.
func (d ImageDecoder) Decode(path string) (*pixmap.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open reference input: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("reference decode %s: %w", path, err)
	}
	if len(d.Formats) > 0 && !contains(d.Formats, format) {
		return nil, fmt.Errorf("reference decode %s: format %q not accepted", path, format)
	}
	return pixmap.FromImage(img), nil
}

// DecodeConfig reads only the header of path.
func DecodeConfig(path string) (image.Config, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Config{}, "", err
	}
	defer f.Close()
	return image.DecodeConfig(f)
}

// Formats lists the format names this package registers.
func Formats() []string {
	out := []string{"bmp", "gif", "jpeg", "png", "tiff", "webp"}
	sort.Strings(out)
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
