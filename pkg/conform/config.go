package conform

import (
	"errors"
	"os"
	"time"

	"github.com/jpfielding/conform.go/pkg/subject"
)

const (
	DefaultFixtureDir = "png_testsuite"
	DefaultToken      = "png"
	DefaultExecutable = "../target/release/sparrow"
	DefaultTimeout    = 30 * time.Second
)

// Config describes one conformance run.
type Config struct {
	FixtureDir   string
	Token        string
	Executable   string
	ArtifactName string
	Timeout      time.Duration
	// Parallel bounds how many subjects run at once.
	Parallel int
	// Shared runs every case in WorkDir itself, reusing one artifact path
	// the way the subject's fixed-path protocol expects. Forces Parallel=1.
	Shared bool
	// WorkDir holds per-case directories; empty means a fresh temp dir.
	WorkDir string
	// KeepWork leaves per-case directories behind for inspection.
	KeepWork bool
	// Env is passed to every subject invocation.
	Env map[string]string
}

// DefaultConfig returns the stock configuration, with CONFORM_FIXTURES and
// CONFORM_EXECUTABLE overriding the paths when set.
func DefaultConfig() Config {
	return Config{
		FixtureDir:   envOrDefault("CONFORM_FIXTURES", DefaultFixtureDir),
		Token:        DefaultToken,
		Executable:   envOrDefault("CONFORM_EXECUTABLE", DefaultExecutable),
		ArtifactName: subject.DefaultArtifactName,
		Timeout:      DefaultTimeout,
		Parallel:     1,
	}
}

// Validate checks for settings that can never produce a run.
func (c *Config) Validate() error {
	switch {
	case c.FixtureDir == "":
		return errors.New("fixture directory is required")
	case c.Executable == "":
		return errors.New("subject executable is required")
	case c.Timeout < 0:
		return errors.New("timeout must not be negative")
	}
	if c.Token == "" {
		c.Token = DefaultToken
	}
	if c.ArtifactName == "" {
		c.ArtifactName = subject.DefaultArtifactName
	}
	if c.Parallel <= 0 || c.Shared {
		c.Parallel = 1
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
