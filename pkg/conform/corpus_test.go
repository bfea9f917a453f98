package conform

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCorpus runs a real subject over a real fixture directory, one subtest
// per file:
//
//	CONFORM_EXECUTABLE=../target/release/sparrow CONFORM_FIXTURES=png_testsuite go test ./pkg/conform -run TestCorpus
func TestCorpus(t *testing.T) {
	if os.Getenv("CONFORM_EXECUTABLE") == "" {
		t.Skip("CONFORM_EXECUTABLE not set")
	}
	cfg := DefaultConfig()
	h, err := New(cfg)
	require.NoError(t, err)

	require.NoError(t, h.CheckSubject(), "subject executable not available")

	cases, err := h.Cases()
	require.NoError(t, err)
	for _, tc := range cases {
		t.Run(tc.BaseName, func(t *testing.T) {
			v, err := h.Evaluate(context.Background(), tc, t.TempDir())
			require.NoError(t, err)
			if !assert.True(t, v.Passed(), v.String()) && v.Stderr != "" {
				t.Logf("stderr:\n%s", v.Stderr)
			}
		})
	}
}
