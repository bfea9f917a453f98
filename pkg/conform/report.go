package conform

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// Report collects the verdicts of one run in discovery order.
type Report struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	FixtureDir string    `json:"fixture_dir"`
	Executable string    `json:"executable"`
	Verdicts   []Verdict `json:"verdicts"`
}

// Failures returns the verdicts that did not pass.
func (r *Report) Failures() []Verdict {
	var out []Verdict
	for _, v := range r.Verdicts {
		if !v.Passed() {
			out = append(out, v)
		}
	}
	return out
}

func (r *Report) Passed() bool {
	return len(r.Failures()) == 0
}

// Counts tallies verdicts per kind.
func (r *Report) Counts() map[Kind]int {
	out := make(map[Kind]int)
	for _, v := range r.Verdicts {
		out[v.Kind]++
	}
	return out
}

// WriteText prints one line per case followed by the details of every
// failure, enough to reproduce it without rerunning.
func (r *Report) WriteText(w io.Writer) error {
	var b strings.Builder
	for _, v := range r.Verdicts {
		fmt.Fprintln(&b, v.String())
	}

	failures := r.Failures()
	if len(failures) > 0 {
		fmt.Fprintf(&b, "\n=== %d failing case(s) ===\n", len(failures))
		for _, v := range failures {
			fmt.Fprintf(&b, "\n--- %s\n", v.Case.Path)
			fmt.Fprintf(&b, "kind:     %s\n", v.Kind)
			fmt.Fprintf(&b, "expected: %s", expectWord(v.ExpectFailure))
			if v.Reason != "" {
				fmt.Fprintf(&b, " (%s)", v.Reason)
			}
			fmt.Fprintf(&b, "\nexit:     %d\n", v.ExitCode)
			fmt.Fprintf(&b, "detail:   %s\n", v.Detail)
			if stderr := strings.TrimRight(v.Stderr, "\n"); stderr != "" {
				fmt.Fprintf(&b, "stderr:\n%s\n", stderr)
			}
		}
	}

	counts := r.Counts()
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[Kind(k)]))
	}
	fmt.Fprintf(&b, "\n%d case(s), %d failed [%s]\n", len(r.Verdicts), len(failures), strings.Join(parts, " "))

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteJSON writes the whole report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
