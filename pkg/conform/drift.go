package conform

import (
	"fmt"
	"sort"
)

// Drift is a case whose verdict kind differs between two runs. An empty
// Before or After means the case was absent from that run.
type Drift struct {
	Path   string
	Before Kind
	After  Kind
}

func (d Drift) String() string {
	return fmt.Sprintf("%s: %s -> %s", d.Path, orNone(d.Before), orNone(d.After))
}

// Diff compares two runs of the same corpus. Repeat runs against the same
// subject and fixtures must produce no drift.
func Diff(prev, cur *Report) []Drift {
	before := make(map[string]Kind, len(prev.Verdicts))
	for _, v := range prev.Verdicts {
		before[v.Case.Path] = v.Kind
	}
	after := make(map[string]Kind, len(cur.Verdicts))
	for _, v := range cur.Verdicts {
		after[v.Case.Path] = v.Kind
	}

	var out []Drift
	for path, b := range before {
		if a := after[path]; a != b {
			out = append(out, Drift{Path: path, Before: b, After: a})
		}
	}
	for path, a := range after {
		if _, ok := before[path]; !ok {
			out = append(out, Drift{Path: path, After: a})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func orNone(k Kind) string {
	if k == "" {
		return "(absent)"
	}
	return string(k)
}
