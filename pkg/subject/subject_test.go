package subject

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helperEnv = "SUBJECT_HELPER_MODE"

// TestMain lets the test binary stand in for a subject decoder.
func TestMain(m *testing.M) {
	if mode := os.Getenv(helperEnv); mode != "" {
		os.Exit(helperMain(mode, os.Args[1:]))
	}
	os.Exit(m.Run())
}

func helperMain(mode string, args []string) int {
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "want 1 arg, got %d", len(args))
		return 64
	}
	switch mode {
	case "accept":
		// record the argument so the test can check it was absolute
		if err := os.WriteFile(DefaultArtifactName, []byte(args[0]), 0o644); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	case "reject":
		fmt.Fprint(os.Stderr, "invalid header")
		return 2
	case "noisy":
		os.Stderr.WriteString(strings.Repeat("e", 1<<20))
		return 3
	case "hang":
		time.Sleep(time.Minute)
		return 0
	}
	return 99
}

func helperRunner(t *testing.T, mode string) *Runner {
	t.Helper()
	exe, err := os.Executable()
	require.NoError(t, err)
	return &Runner{
		Executable: exe,
		Env:        map[string]string{helperEnv: mode},
	}
}

func TestRun_Accept(t *testing.T) {
	r := helperRunner(t, "accept")
	work := t.TempDir()

	res, err := r.Run(context.Background(), work, "fixtures/valid01.png")
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.False(t, res.Rejected())
	assert.False(t, res.TimedOut)
	assert.Equal(t, filepath.Join(work, DefaultArtifactName), res.ArtifactPath)

	data, err := os.ReadFile(res.ArtifactPath)
	require.NoError(t, err)
	want, _ := filepath.Abs("fixtures/valid01.png")
	assert.Equal(t, want, string(data))
}

func TestRun_RejectCapturesStderr(t *testing.T) {
	r := helperRunner(t, "reject")
	res, err := r.Run(context.Background(), t.TempDir(), "broken.png")
	require.NoError(t, err)
	assert.Equal(t, 2, res.ExitCode)
	assert.True(t, res.Rejected())
	assert.Equal(t, "invalid header", string(res.Stderr))
}

func TestRun_StderrNotTruncated(t *testing.T) {
	r := helperRunner(t, "noisy")
	res, err := r.Run(context.Background(), t.TempDir(), "a.png")
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Len(t, res.Stderr, 1<<20)
}

func TestRun_RemovesStaleArtifact(t *testing.T) {
	r := helperRunner(t, "reject")
	work := t.TempDir()
	stale := filepath.Join(work, DefaultArtifactName)
	require.NoError(t, os.WriteFile(stale, []byte("P3\n1 1\n255\n0 0 0 0\n"), 0o644))

	_, err := r.Run(context.Background(), work, "a.png")
	require.NoError(t, err)
	assert.NoFileExists(t, stale)
}

func TestRun_Timeout(t *testing.T) {
	r := helperRunner(t, "hang")
	r.Timeout = 200 * time.Millisecond

	res, err := r.Run(context.Background(), t.TempDir(), "a.png")
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	assert.True(t, res.Rejected())
	assert.Less(t, res.Duration, 30*time.Second)
}

func TestRun_Canceled(t *testing.T) {
	r := helperRunner(t, "hang")
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	res, err := r.Run(ctx, t.TempDir(), "a.png")
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
}

func TestRun_LaunchFailure(t *testing.T) {
	r := &Runner{Executable: filepath.Join(t.TempDir(), "missing")}
	_, err := r.Run(context.Background(), t.TempDir(), "a.png")
	require.ErrorIs(t, err, ErrLaunch)

	var le *LaunchError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, r.Executable, le.Executable)
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()

	r := &Runner{Executable: filepath.Join(dir, "sparrow")}
	require.ErrorIs(t, r.Check(), ErrExecutableNotFound)

	require.NoError(t, os.WriteFile(r.Executable, []byte("#!/bin/sh\n"), 0o644))
	require.ErrorIs(t, r.Check(), ErrNotExecutable)

	require.NoError(t, os.Chmod(r.Executable, 0o755))
	require.NoError(t, r.Check())

	r.Executable = dir
	require.ErrorIs(t, r.Check(), ErrNotExecutable)
}

func TestArtifactPath(t *testing.T) {
	r := &Runner{}
	assert.Equal(t, filepath.Join("w", "img.ppm"), r.ArtifactPath("w"))
	r.ArtifactName = "out.txt"
	assert.Equal(t, filepath.Join("w", "out.txt"), r.ArtifactPath("w"))
}
