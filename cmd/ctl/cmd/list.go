package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/jpfielding/conform.go/pkg/conform"
	"github.com/jpfielding/conform.go/pkg/reference"
	"github.com/spf13/cobra"
)

// NewListCmd prints the corpus with the expectation for each file, without
// invoking the subject.
func NewListCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "list fixtures and their expected outcome",
		Long:  "Discovers the corpus and classifies each fixture with the reference decoder. The subject is not run.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFromFlags(cmd)
			h, err := conform.New(cfg)
			if err != nil {
				return err
			}
			cases, err := h.Cases()
			if err != nil {
				return err
			}

			ref := reference.ImageDecoder{}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PATH\tEXPECT\tREASON\tSIZE")
			for _, tc := range cases {
				exp := conform.Classify(tc, ref)
				expect, size := "accept", "-"
				if exp.ShouldFail {
					expect = "reject"
				}
				if exp.Reference != nil {
					size = fmt.Sprintf("%dx%d", exp.Reference.Width, exp.Reference.Height)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", tc.Path, expect, exp.Reason, size)
			}
			return tw.Flush()
		},
	}
	addConfigFlags(cmd.PersistentFlags())
	return cmd
}
