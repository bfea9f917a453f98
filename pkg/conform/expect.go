package conform

import (
	"github.com/jpfielding/conform.go/pkg/corpus"
	"github.com/jpfielding/conform.go/pkg/pixmap"
	"github.com/jpfielding/conform.go/pkg/reference"
)

// Why an expectation says a fixture must be rejected.
const (
	ReasonReferenceRejects = "reference rejects"
	ReasonSentinelName     = "sentinel name"
)

// Expectation is what a conforming subject must do with one fixture.
type Expectation struct {
	ShouldFail   bool
	Reason       string
	ReferenceErr error
	// Reference is set only when ShouldFail is false.
	Reference *pixmap.Image
}

// Classify decodes tc with ref. A reference failure or a sentinel base name
// means the subject must reject; otherwise the decoded pixels are kept.
func Classify(tc corpus.TestCase, ref reference.Decoder) Expectation {
	img, err := ref.Decode(tc.Path)
	if err != nil {
		return Expectation{ShouldFail: true, Reason: ReasonReferenceRejects, ReferenceErr: err}
	}
	if corpus.IsSentinel(tc.BaseName) {
		return Expectation{ShouldFail: true, Reason: ReasonSentinelName}
	}
	return Expectation{Reference: img}
}
