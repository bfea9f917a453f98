// Package subject runs the decoder under test as an external process.
package subject

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"
)

// DefaultArtifactName is the file, relative to the working directory, the
// subject writes on success.
const DefaultArtifactName = "img.ppm"

var (
	ErrExecutableNotFound = errors.New("subject executable not found")
	ErrNotExecutable      = errors.New("subject is not executable")
	ErrLaunch             = errors.New("subject could not be started")
)

// LaunchError means the process never ran. It is never a verdict on the input.
type LaunchError struct {
	Executable string
	Err        error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrLaunch, e.Executable, e.Err)
}

func (e *LaunchError) Unwrap() []error {
	return []error{ErrLaunch, e.Err}
}

// Result is the observable outcome of one invocation.
type Result struct {
	ExitCode     int
	Stderr       []byte
	Duration     time.Duration
	TimedOut     bool
	ArtifactPath string
}

// Rejected reports whether the subject judged its input invalid.
func (r *Result) Rejected() bool {
	return r.ExitCode != 0
}

// Runner invokes the subject executable once per input.
type Runner struct {
	Executable   string
	ArtifactName string
	// Timeout bounds each invocation; zero means no limit.
	Timeout time.Duration
	// Env is added to the inherited environment.
	Env map[string]string
}

func (r *Runner) artifactName() string {
	if r.ArtifactName == "" {
		return DefaultArtifactName
	}
	return r.ArtifactName
}

// Check verifies the executable exists and has an execute bit.
func (r *Runner) Check() error {
	info, err := os.Stat(r.Executable)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrExecutableNotFound, r.Executable)
		}
		return fmt.Errorf("stat subject: %w", err)
	}
	if info.IsDir() || info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("%w: %s", ErrNotExecutable, r.Executable)
	}
	return nil
}

// ArtifactPath is where the subject writes its output when run in workDir.
func (r *Runner) ArtifactPath(workDir string) string {
	return filepath.Join(workDir, r.artifactName())
}

// Run removes any stale artifact in workDir, then runs the subject on input
// with workDir as its working directory. A non-zero exit is a normal result;
// an error is returned only when the process could not be started or ctx was
// canceled.
func (r *Runner) Run(ctx context.Context, workDir, input string) (*Result, error) {
	artifact := r.ArtifactPath(workDir)
	if err := os.Remove(artifact); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("remove stale artifact: %w", err)
	}

	absInput, err := filepath.Abs(input)
	if err != nil {
		return nil, fmt.Errorf("resolve input path: %w", err)
	}
	exe, err := filepath.Abs(r.Executable)
	if err != nil {
		return nil, fmt.Errorf("resolve subject path: %w", err)
	}

	runCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	// #nosec G204 -- the subject path is operator input.
	cmd := exec.CommandContext(runCtx, exe, absInput)
	cmd.Dir = workDir
	cmd.Env = r.environ(cmd.Environ())
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	// a subject that forks children holding stderr open must not stall Wait
	cmd.WaitDelay = 5 * time.Second

	start := time.Now()
	runErr := cmd.Run()
	res := &Result{
		Stderr:       stderr.Bytes(),
		Duration:     time.Since(start),
		ArtifactPath: artifact,
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		switch {
		case ctx.Err() != nil:
			_ = os.Remove(artifact)
			return nil, ctx.Err()
		case runCtx.Err() != nil:
			_ = os.Remove(artifact)
			res.TimedOut = true
			res.ExitCode = -1
			return res, nil
		case errors.As(runErr, &exitErr):
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		case errors.Is(runErr, exec.ErrWaitDelay):
			res.ExitCode = cmd.ProcessState.ExitCode()
			return res, nil
		default:
			return nil, &LaunchError{Executable: r.Executable, Err: runErr}
		}
	}
	return res, nil
}

func (r *Runner) environ(base []string) []string {
	if len(r.Env) == 0 {
		return base
	}
	keys := make([]string, 0, len(r.Env))
	for k := range r.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		base = append(base, fmt.Sprintf("%s=%s", k, r.Env[k]))
	}
	return base
}
