package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jpfielding/conform.go/pkg/conform"
	"github.com/jpfielding/conform.go/pkg/store/sqlite"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func addConfigFlags(pf *pflag.FlagSet) {
	def := conform.DefaultConfig()
	pf.StringP("fixtures", "d", def.FixtureDir, "fixture directory (env CONFORM_FIXTURES)")
	pf.String("token", def.Token, "only files whose name contains this token are fixtures")
	pf.StringP("exec", "e", def.Executable, "subject decoder executable (env CONFORM_EXECUTABLE)")
	pf.String("artifact", def.ArtifactName, "artifact file name the subject writes in its working directory")
	pf.Duration("timeout", def.Timeout, "per-case subject timeout (0 disables)")
}

func configFromFlags(cmd *cobra.Command) conform.Config {
	cfg := conform.DefaultConfig()
	cfg.FixtureDir, _ = cmd.Flags().GetString("fixtures")
	cfg.Token, _ = cmd.Flags().GetString("token")
	cfg.Executable, _ = cmd.Flags().GetString("exec")
	cfg.ArtifactName, _ = cmd.Flags().GetString("artifact")
	cfg.Timeout, _ = cmd.Flags().GetDuration("timeout")
	return cfg
}

// NewRunCmd runs the full conformance suite
func NewRunCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "run the subject decoder over the corpus",
		Long:  "Runs the subject decoder once per fixture and reports a verdict per file. Exits non-zero if any case fails.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFromFlags(cmd)
			cfg.Parallel, _ = cmd.Flags().GetInt("parallel")
			cfg.Shared, _ = cmd.Flags().GetBool("shared")
			cfg.WorkDir, _ = cmd.Flags().GetString("work-dir")
			cfg.KeepWork, _ = cmd.Flags().GetBool("keep")
			format, _ := cmd.Flags().GetString("format")
			dbPath, _ := cmd.Flags().GetString("db")

			h, err := conform.New(cfg)
			if err != nil {
				return err
			}
			h.WithLogger(slog.Default())

			report, err := h.Run(ctx)
			if err != nil {
				return fmt.Errorf("conformance run aborted: %w", err)
			}

			switch format {
			case "json":
				err = report.WriteJSON(cmd.OutOrStdout())
			default:
				err = report.WriteText(cmd.OutOrStdout())
			}
			if err != nil {
				return err
			}

			if dbPath != "" {
				if err := recordRun(ctx, dbPath, report); err != nil {
					return err
				}
			}

			if failures := report.Failures(); len(failures) > 0 {
				return fmt.Errorf("%d of %d cases failed", len(failures), len(report.Verdicts))
			}
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	addConfigFlags(pf)
	pf.IntP("parallel", "p", 1, "number of subjects to run at once")
	pf.Bool("shared", false, "run every case in one directory sharing the artifact path (sequential)")
	pf.String("work-dir", "", "directory for per-case working dirs (default: a temp dir)")
	pf.Bool("keep", false, "keep per-case working dirs and artifacts")
	pf.StringP("format", "f", "text", "output format (text|json)")
	pf.String("db", "", "record the run in this SQLite history database")

	return cmd
}

// recordRun stores report and logs any drift against the previous run of the
// same fixtures.
func recordRun(ctx context.Context, dbPath string, report *conform.Report) error {
	st, err := openStore(ctx, dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	recent, err := st.RecentRuns(ctx, 20)
	if err != nil {
		return err
	}
	if err := st.SaveReport(ctx, report); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	slog.InfoContext(ctx, "recorded run", "db", dbPath, "run", report.RunID)

	for _, prev := range recent {
		if prev.FixtureDir != report.FixtureDir || prev.Executable != report.Executable {
			continue
		}
		before, err := st.LoadReport(ctx, prev.ID)
		if err != nil {
			return err
		}
		drift := conform.Diff(before, report)
		for _, d := range drift {
			slog.WarnContext(ctx, "verdict drift", "previous", prev.ID, "change", d.String())
		}
		if len(drift) == 0 {
			slog.InfoContext(ctx, "verdicts match previous run", "previous", prev.ID)
		}
		break
	}
	return nil
}

func openStore(ctx context.Context, path string) (*sqlite.Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("database path is required")
	}
	st, err := sqlite.New(path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}
