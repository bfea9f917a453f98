// Package corpus enumerates the fixture images a conformance run is built from.
package corpus

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jpfielding/conform.go/pkg/util"
)

// SentinelPrefix marks fixtures that must be rejected even when the reference
// decoder accepts them.
const SentinelPrefix = 'x'

var ErrDirectoryNotFound = errors.New("fixture directory not found")

// TestCase is one fixture file. Path is its identity.
type TestCase struct {
	ID       string `json:"id"`
	Path     string `json:"path"`
	BaseName string `json:"base_name"`
}

// NewTestCase builds a TestCase for path with an id derived from the path.
func NewTestCase(path string) TestCase {
	return TestCase{
		ID:       util.HashUUID(path),
		Path:     path,
		BaseName: filepath.Base(path),
	}
}

// Discover returns every regular file directly inside dir whose name contains
// token, ordered by full path.
func Discover(dir, token string) ([]TestCase, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, dir)
		}
		return nil, fmt.Errorf("stat fixture directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrDirectoryNotFound, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read fixture directory: %w", err)
	}

	var cases []TestCase
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.Contains(e.Name(), token) {
			continue
		}
		cases = append(cases, NewTestCase(filepath.Join(dir, e.Name())))
	}
	sort.Slice(cases, func(i, j int) bool {
		return cases[i].Path < cases[j].Path
	})
	return cases, nil
}

// IsSentinel reports whether baseName follows the always-invalid naming
// convention: its first character is SentinelPrefix.
func IsSentinel(baseName string) bool {
	return len(baseName) > 0 && baseName[0] == SentinelPrefix
}
