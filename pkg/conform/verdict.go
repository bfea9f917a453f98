package conform

import (
	"fmt"
	"time"

	"github.com/jpfielding/conform.go/pkg/corpus"
	"github.com/jpfielding/conform.go/pkg/pixmap"
)

// Kind is a stable verdict category.
type Kind string

const (
	KindPass              Kind = "PASS"
	KindClassification    Kind = "CLASSIFICATION_MISMATCH"
	KindMalformedArtifact Kind = "MALFORMED_ARTIFACT"
	KindDimensionMismatch Kind = "DIMENSION_MISMATCH"
	KindPixelMismatch     Kind = "PIXEL_MISMATCH"
	KindTimeout           Kind = "TIMEOUT"
)

// Verdict is the outcome of one test case.
type Verdict struct {
	Case          corpus.TestCase  `json:"case"`
	Kind          Kind             `json:"kind"`
	ExpectFailure bool             `json:"expect_failure"`
	Reason        string           `json:"reason,omitempty"`
	ExitCode      int              `json:"exit_code"`
	Stderr        string           `json:"stderr,omitempty"`
	Detail        string           `json:"detail,omitempty"`
	Mismatch      *pixmap.Mismatch `json:"mismatch,omitempty"`
	Duration      time.Duration    `json:"duration_ns"`
}

func (v Verdict) Passed() bool {
	return v.Kind == KindPass
}

// String is a one-line summary used in reports and logs.
func (v Verdict) String() string {
	if v.Passed() {
		return fmt.Sprintf("PASS %s", v.Case.Path)
	}
	return fmt.Sprintf("FAIL %s [%s] %s", v.Case.Path, v.Kind, v.Detail)
}

func expectWord(shouldFail bool) string {
	if shouldFail {
		return "rejection"
	}
	return "acceptance"
}
