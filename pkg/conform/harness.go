// Package conform checks a subject decoder against a reference decoder over a
// fixture corpus and reduces each fixture to a Verdict.
package conform

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jpfielding/conform.go/pkg/artifact"
	"github.com/jpfielding/conform.go/pkg/corpus"
	"github.com/jpfielding/conform.go/pkg/logging"
	"github.com/jpfielding/conform.go/pkg/pixmap"
	"github.com/jpfielding/conform.go/pkg/reference"
	"github.com/jpfielding/conform.go/pkg/subject"
	"github.com/jpfielding/conform.go/pkg/util"
)

// Harness runs one configured conformance suite.
type Harness struct {
	cfg    Config
	runner *subject.Runner
	ref    reference.Decoder
	log    *slog.Logger
	now    func() time.Time
}

// New validates cfg and builds a Harness using the image package reference
// decoder and the default logger.
func New(cfg Config) (*Harness, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Harness{
		cfg: cfg,
		runner: &subject.Runner{
			Executable:   cfg.Executable,
			ArtifactName: cfg.ArtifactName,
			Timeout:      cfg.Timeout,
			Env:          cfg.Env,
		},
		ref: reference.ImageDecoder{},
		log: slog.Default(),
		now: time.Now,
	}, nil
}

// WithReference swaps the reference decoder.
func (h *Harness) WithReference(ref reference.Decoder) *Harness {
	h.ref = ref
	return h
}

// WithLogger sets the logger used for per-case progress.
func (h *Harness) WithLogger(log *slog.Logger) *Harness {
	h.log = log
	return h
}

// Cases discovers the fixtures without running anything.
func (h *Harness) Cases() ([]corpus.TestCase, error) {
	return corpus.Discover(h.cfg.FixtureDir, h.cfg.Token)
}

// CheckSubject verifies the subject executable can be run at all.
func (h *Harness) CheckSubject() error {
	return h.runner.Check()
}

// Run discovers the corpus and evaluates every case. The returned error is
// reserved for conditions that invalidate the whole run: a missing fixture
// directory, an unusable subject, or cancellation. Case failures are verdicts.
func (h *Harness) Run(ctx context.Context) (*Report, error) {
	cases, err := h.Cases()
	if err != nil {
		return nil, err
	}
	if err := h.CheckSubject(); err != nil {
		return nil, err
	}

	root, cleanup, err := h.workRoot()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	report := &Report{
		RunID:      util.NewUUID(),
		StartedAt:  h.now().UTC(),
		FixtureDir: h.cfg.FixtureDir,
		Executable: h.cfg.Executable,
		Verdicts:   make([]Verdict, len(cases)),
	}
	ctx = logging.AppendCtx(ctx, slog.String("run", util.ShortID(report.RunID)))
	h.log.InfoContext(ctx, "starting conformance run",
		"fixtures", h.cfg.FixtureDir, "cases", len(cases), "parallel", h.cfg.Parallel, "shared", h.cfg.Shared)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.cfg.Parallel)
	for i, tc := range cases {
		g.Go(func() error {
			dir, release, err := h.caseDir(root, tc)
			if err != nil {
				return err
			}
			defer release()
			v, err := h.Evaluate(gctx, tc, dir)
			if err != nil {
				return err
			}
			report.Verdicts[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report.FinishedAt = h.now().UTC()
	failed := len(report.Failures())
	h.log.InfoContext(ctx, "conformance run finished",
		"cases", len(cases), "failed", failed, "elapsed", report.FinishedAt.Sub(report.StartedAt))
	return report, nil
}

// Evaluate runs one case with workDir as the subject's working directory.
// Errors are run-fatal; every per-case outcome is returned as a Verdict.
func (h *Harness) Evaluate(ctx context.Context, tc corpus.TestCase, workDir string) (Verdict, error) {
	ctx = logging.AppendCtx(ctx, slog.String("case", tc.BaseName))
	exp := Classify(tc, h.ref)
	if exp.ReferenceErr != nil {
		h.log.DebugContext(ctx, "reference rejects fixture", "error", exp.ReferenceErr)
	}

	h.log.DebugContext(ctx, "invoking subject", "dir", workDir, "expect", expectWord(exp.ShouldFail))
	res, err := h.runner.Run(ctx, workDir, tc.Path)
	if err != nil {
		return Verdict{}, fmt.Errorf("case %s: %w", tc.Path, err)
	}

	v := judge(tc, exp, res, h.cfg.Timeout)
	if v.Passed() {
		h.log.InfoContext(ctx, "pass", "exit", v.ExitCode, "duration", v.Duration)
	} else {
		h.log.WarnContext(ctx, "fail", "kind", v.Kind, "detail", v.Detail, "exit", v.ExitCode)
	}
	return v, nil
}

func judge(tc corpus.TestCase, exp Expectation, res *subject.Result, timeout time.Duration) Verdict {
	v := Verdict{
		Case:          tc,
		Kind:          KindPass,
		ExpectFailure: exp.ShouldFail,
		Reason:        exp.Reason,
		ExitCode:      res.ExitCode,
		Duration:      res.Duration,
	}
	fail := func(kind Kind, detail string) Verdict {
		v.Kind = kind
		v.Detail = detail
		v.Stderr = string(res.Stderr)
		return v
	}

	switch {
	case res.TimedOut:
		return fail(KindTimeout, fmt.Sprintf("subject did not exit within %s", timeout))
	case res.Rejected() != exp.ShouldFail:
		if exp.ShouldFail {
			return fail(KindClassification, fmt.Sprintf("expected rejection (%s), got acceptance", exp.Reason))
		}
		return fail(KindClassification, fmt.Sprintf("expected acceptance, got rejection (exit %d)", res.ExitCode))
	case exp.ShouldFail:
		return v
	}

	got, err := artifact.ReadFile(res.ArtifactPath)
	if err != nil {
		return fail(KindMalformedArtifact, err.Error())
	}
	if mm := pixmap.Compare(got, exp.Reference); mm != nil {
		kind := KindPixelMismatch
		if mm.Kind == pixmap.DimensionMismatch {
			kind = KindDimensionMismatch
		}
		v = fail(kind, mm.String())
		v.Mismatch = mm
		return v
	}
	return v
}

func (h *Harness) workRoot() (string, func(), error) {
	if h.cfg.WorkDir != "" {
		if err := os.MkdirAll(h.cfg.WorkDir, 0o755); err != nil {
			return "", nil, fmt.Errorf("create work dir: %w", err)
		}
		return h.cfg.WorkDir, func() {}, nil
	}
	root, err := os.MkdirTemp("", "conform-*")
	if err != nil {
		return "", nil, fmt.Errorf("create temp dir: %w", err)
	}
	return root, func() {
		if h.cfg.KeepWork {
			h.log.Info("keeping work dir", "path", root)
			return
		}
		_ = os.RemoveAll(root)
	}, nil
}

// caseDir isolates each case in its own directory so the subject's fixed
// artifact name never collides; in shared mode every case reuses root.
func (h *Harness) caseDir(root string, tc corpus.TestCase) (string, func(), error) {
	if h.cfg.Shared {
		return root, func() {}, nil
	}
	dir := filepath.Join(root, tc.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("create case dir: %w", err)
	}
	return dir, func() {
		if !h.cfg.KeepWork {
			_ = os.RemoveAll(dir)
		}
	}, nil
}
