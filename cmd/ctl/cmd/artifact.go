package cmd

import (
	"context"
	"fmt"
	"image/png"
	"os"

	"github.com/jpfielding/conform.go/pkg/artifact"
	"github.com/jpfielding/conform.go/pkg/pixmap"
	"github.com/jpfielding/conform.go/pkg/reference"
	"github.com/spf13/cobra"
)

// NewArtifactCmd inspects a single subject artifact
func NewArtifactCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifact [path]",
		Short: "parse a subject artifact",
		Long:  "Parses a P3 artifact strictly, prints its header, and optionally compares it to the reference decode of an image or exports it as PNG.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("file")
			compare, _ := cmd.Flags().GetString("compare")
			out, _ := cmd.Flags().GetString("png")
			if path == "" && len(args) > 0 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("artifact path is required. Use --file flag or provide as argument")
			}
			return runArtifact(cmd, path, compare, out)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringP("file", "i", "", "artifact path")
	pf.StringP("compare", "c", "", "image to decode with the reference decoder and compare against")
	pf.String("png", "", "write the parsed artifact as PNG to this path")
	return cmd
}

func runArtifact(cmd *cobra.Command, path, compare, out string) error {
	img, err := artifact.ReadFile(path)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Width: %d\nHeight: %d\nPixels: %d\n", img.Width, img.Height, len(img.Pix))

	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		if err := png.Encode(f, img.ToNRGBA()); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(w, "Wrote %s\n", out)
	}

	if compare == "" {
		return nil
	}
	want, err := reference.ImageDecoder{}.Decode(compare)
	if err != nil {
		return err
	}
	if mm := pixmap.Compare(img, want); mm != nil {
		return fmt.Errorf("artifact does not match %s: %s", compare, mm)
	}
	fmt.Fprintf(w, "Matches %s\n", compare)
	return nil
}
