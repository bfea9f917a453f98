package cmd

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jpfielding/conform.go/pkg/artifact"
	"github.com/jpfielding/conform.go/pkg/conform"
	"github.com/jpfielding/conform.go/pkg/corpus"
	"github.com/jpfielding/conform.go/pkg/pixmap"
	"github.com/jpfielding/conform.go/pkg/store/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRoot(context.Background(), "abc123")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeRedPNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func redPixmap() *pixmap.Image {
	m := pixmap.New(2, 2)
	for i := range m.Pix {
		m.Pix[i] = pixmap.RGBA{R: 255, A: 255}
	}
	return m
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "abc123\n", out)
}

func TestListCmd(t *testing.T) {
	dir := t.TempDir()
	writeRedPNG(t, filepath.Join(dir, "valid01.png"))
	writeRedPNG(t, filepath.Join(dir, "xbad01.png"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.png"), []byte("not a png"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o644))

	out, err := execute(t, "list", "-d", dir)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "EXPECT")
	assert.Contains(t, lines[1], "broken.png")
	assert.Contains(t, lines[1], "reject")
	assert.Contains(t, lines[1], conform.ReasonReferenceRejects)
	assert.Contains(t, lines[2], "valid01.png")
	assert.Contains(t, lines[2], "accept")
	assert.Contains(t, lines[2], "2x2")
	assert.Contains(t, lines[3], "xbad01.png")
	assert.Contains(t, lines[3], conform.ReasonSentinelName)
	assert.NotContains(t, out, "notes.txt")
}

func TestListCmd_MissingFixtures(t *testing.T) {
	_, err := execute(t, "list", "-d", filepath.Join(t.TempDir(), "absent"))
	require.ErrorIs(t, err, corpus.ErrDirectoryNotFound)
}

func TestArtifactCmd(t *testing.T) {
	dir := t.TempDir()
	ppm := filepath.Join(dir, "img.ppm")
	ref := filepath.Join(dir, "red.png")
	require.NoError(t, artifact.WriteFile(ppm, redPixmap()))
	writeRedPNG(t, ref)

	t.Run("header", func(t *testing.T) {
		out, err := execute(t, "artifact", ppm)
		require.NoError(t, err)
		assert.Contains(t, out, "Width: 2")
		assert.Contains(t, out, "Pixels: 4")
	})

	t.Run("compare match", func(t *testing.T) {
		out, err := execute(t, "artifact", "--file", ppm, "--compare", ref)
		require.NoError(t, err)
		assert.Contains(t, out, "Matches "+ref)
	})

	t.Run("compare mismatch", func(t *testing.T) {
		other := redPixmap()
		other.Pix[3] = pixmap.RGBA{G: 255, A: 255}
		bad := filepath.Join(dir, "bad.ppm")
		require.NoError(t, artifact.WriteFile(bad, other))

		_, err := execute(t, "artifact", bad, "-c", ref)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "pixel 3 (x=1, y=1) differs")
	})

	t.Run("png export", func(t *testing.T) {
		out := filepath.Join(dir, "export.png")
		_, err := execute(t, "artifact", ppm, "--png", out)
		require.NoError(t, err)

		f, err := os.Open(out)
		require.NoError(t, err)
		defer f.Close()
		img, err := png.Decode(f)
		require.NoError(t, err)
		assert.Nil(t, pixmap.Compare(pixmap.FromImage(img), redPixmap()))
	})

	t.Run("malformed", func(t *testing.T) {
		bad := filepath.Join(dir, "short.ppm")
		require.NoError(t, os.WriteFile(bad, []byte("P3\n2 2\n255\n"), 0o644))
		_, err := execute(t, "artifact", bad)
		require.ErrorIs(t, err, artifact.ErrMalformedArtifact)
	})

	t.Run("no path", func(t *testing.T) {
		_, err := execute(t, "artifact")
		require.Error(t, err)
	})
}

func TestHistoryCmd(t *testing.T) {
	ctx := context.Background()
	db := filepath.Join(t.TempDir(), "history.db")
	st, err := sqlite.New(db)
	require.NoError(t, err)
	require.NoError(t, st.Migrate(ctx))

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tc := corpus.NewTestCase("png_testsuite/basn0g01.png")
	for i, kind := range []conform.Kind{conform.KindPass, conform.KindPixelMismatch} {
		r := &conform.Report{
			RunID:      []string{"11111111-aaaa", "22222222-bbbb"}[i],
			StartedAt:  base.Add(time.Duration(i) * time.Hour),
			FinishedAt: base.Add(time.Duration(i)*time.Hour + time.Second),
			FixtureDir: "png_testsuite",
			Executable: "sparrow",
			Verdicts:   []conform.Verdict{{Case: tc, Kind: kind, Detail: "d"}},
		}
		require.NoError(t, st.SaveReport(ctx, r))
	}
	require.NoError(t, st.Close())

	out, err := execute(t, "history", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "22222222-bbbb")
	assert.Contains(t, out, "11111111-aaaa")
	assert.Contains(t, out, "1 case(s)")
	assert.Contains(t, out, "png_testsuite/basn0g01.png: PASS -> PIXEL_MISMATCH")

	out, err = execute(t, "history", "--db", db, "--run", "22222222-bbbb")
	require.NoError(t, err)
	assert.Contains(t, out, "FAIL png_testsuite/basn0g01.png [PIXEL_MISMATCH] d")

	_, err = execute(t, "history", "--db", db, "--run", "missing")
	require.ErrorIs(t, err, sqlite.ErrRunNotFound)
}
