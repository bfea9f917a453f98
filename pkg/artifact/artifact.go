// Package artifact reads and writes the plain-text pixel dump a subject
// decoder leaves behind after accepting an image.
//
// The format is a line-oriented variant of PPM P3 carrying alpha:
//
//	P3
//	<width> <height>
//	<maxval>
//	<r> <g> <b> <a>      (width*height lines, row-major)
package artifact

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jpfielding/conform.go/pkg/pixmap"
)

const Magic = "P3"

// DefaultMaxValue is written in the maxval line by Encode.
const DefaultMaxValue = 255

var ErrMalformedArtifact = errors.New("malformed artifact")

// ParseError locates a format violation; it matches ErrMalformedArtifact
// under errors.Is.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: line %d: %s", ErrMalformedArtifact, e.Line, e.Msg)
}

func (e *ParseError) Unwrap() error {
	return ErrMalformedArtifact
}

// Header is the three-line preamble of an artifact.
type Header struct {
	Width    int
	Height   int
	MaxValue int
}

type lineReader struct {
	sc   *bufio.Scanner
	line int
}

func (r *lineReader) next(what string) (string, error) {
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return "", fmt.Errorf("%w: reading line %d: %v", ErrMalformedArtifact, r.line+1, err)
		}
		return "", &ParseError{Line: r.line + 1, Msg: "missing " + what}
	}
	r.line++
	return r.sc.Text(), nil
}

func (r *lineReader) ints(what string, n int, bits int) ([]uint64, error) {
	text, err := r.next(what)
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(text)
	if len(fields) != n {
		return nil, &ParseError{Line: r.line, Msg: fmt.Sprintf("%s: want %d fields, got %d", what, n, len(fields))}
	}
	out := make([]uint64, n)
	for i, f := range fields {
		v, err := strconv.ParseUint(f, 10, bits)
		if err != nil {
			return nil, &ParseError{Line: r.line, Msg: fmt.Sprintf("%s: bad integer %q", what, f)}
		}
		out[i] = v
	}
	return out, nil
}

func readHeader(r *lineReader) (Header, error) {
	magic, err := r.next("magic")
	if err != nil {
		return Header{}, err
	}
	if strings.TrimSpace(magic) != Magic {
		return Header{}, &ParseError{Line: r.line, Msg: fmt.Sprintf("want magic %q, got %q", Magic, strings.TrimSpace(magic))}
	}
	dims, err := r.ints("dimensions", 2, 31)
	if err != nil {
		return Header{}, err
	}
	maxv, err := r.ints("max value", 1, 31)
	if err != nil {
		return Header{}, err
	}
	return Header{Width: int(dims[0]), Height: int(dims[1]), MaxValue: int(maxv[0])}, nil
}

func newLineReader(in io.Reader) *lineReader {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	return &lineReader{sc: sc}
}

// Parse reads a complete artifact. The max value is read but channels are
// not checked against it; channels must still fit in 8 bits.
func Parse(in io.Reader) (*pixmap.Image, error) {
	r := newLineReader(in)
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	total := h.Width * h.Height
	if h.Width != 0 && total/h.Width != h.Height {
		return nil, &ParseError{Line: 2, Msg: fmt.Sprintf("dimensions %dx%d overflow", h.Width, h.Height)}
	}

	// declared size is untrusted; grow as lines arrive
	pix := make([]pixmap.RGBA, 0, min(total, 1<<16))
	for i := 0; i < total; i++ {
		v, err := r.ints(fmt.Sprintf("pixel %d", i), 4, 8)
		if err != nil {
			return nil, err
		}
		pix = append(pix, pixmap.RGBA{R: uint8(v[0]), G: uint8(v[1]), B: uint8(v[2]), A: uint8(v[3])})
	}
	return &pixmap.Image{Width: h.Width, Height: h.Height, Pix: pix}, nil
}

// ParseHeader reads only the preamble.
func ParseHeader(in io.Reader) (Header, error) {
	return readHeader(newLineReader(in))
}

// ReadFile parses the artifact at path. A missing file is reported as a
// malformed artifact since the subject claimed to have written it.
func ReadFile(path string) (*pixmap.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedArtifact, err)
	}
	defer f.Close()
	return Parse(f)
}

// Encode writes img in artifact form.
func Encode(w io.Writer, img *pixmap.Image) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s\n%d %d\n%d\n", Magic, img.Width, img.Height, DefaultMaxValue)
	for _, p := range img.Pix {
		fmt.Fprintf(bw, "%d %d %d %d\n", p.R, p.G, p.B, p.A)
	}
	return bw.Flush()
}

// WriteFile encodes img to path.
func WriteFile(path string, img *pixmap.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
