package main

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	service "github.com/okian/trajan/internal/app"
	"github.com/okian/trajan/internal/domain/compare"
)

// isTerminal reports whether w is a terminal, which enables colours.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

type palette struct {
	title, ok, warn, bad, dim *color.Color
}

func newPalette(colored bool) palette {
	p := palette{
		title: color.New(color.FgCyan, color.Bold),
		ok:    color.New(color.FgGreen),
		warn:  color.New(color.FgYellow),
		bad:   color.New(color.FgRed),
		dim:   color.New(color.Faint),
	}
	for _, c := range []*color.Color{p.title, p.ok, p.warn, p.bad, p.dim} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// printSummary writes a human-readable run summary.
func printSummary(w io.Writer, report *service.Report, artifacts []string, colored bool) {
	p := newPalette(colored)
	s := report.Summary

	p.title.Fprintf(w, "Run %s\n", s.RunID)
	fmt.Fprintf(w, "  episodes   %d (%d duplicate rows dropped)\n", s.Episodes, s.Duplicates)
	fmt.Fprintf(w, "  records    %d, %d classified", s.Records, s.Classified)
	if s.Targets > 0 {
		fmt.Fprintf(w, ", %d targets", s.Targets)
	}
	fmt.Fprintln(w)
	printCounts(w, p, "  rejected   ", s.Rejected)
	printCounts(w, p, "  excluded   ", s.Excluded)
	if s.Archetypes > 0 {
		fmt.Fprintf(w, "  archetypes %d agents\n", s.Archetypes)
	}
	fmt.Fprintf(w, "  duration   %dms\n", s.DurationMS)

	if len(report.Comparisons) > 0 {
		p.title.Fprintln(w, "Comparisons")
		for _, r := range report.Comparisons {
			printComparison(w, p, r)
		}
	}
	if len(artifacts) > 0 {
		p.title.Fprintln(w, "Artifacts")
		for _, a := range artifacts {
			p.dim.Fprintf(w, "  %s\n", a)
		}
	}
}

func printCounts(w io.Writer, p palette, label string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	fmt.Fprint(w, label)
	p.warn.Fprintln(w, strings.Join(parts, " "))
}

func printComparison(w io.Writer, p palette, r compare.Result) {
	if !r.OK() {
		fmt.Fprintf(w, "  %-36s ", r.Hypothesis)
		p.bad.Fprintf(w, "%s: %s\n", r.Status, r.Reason)
		return
	}
	mark := p.dim
	if r.Significant {
		mark = p.ok
	}
	fmt.Fprintf(w, "  %-36s %s=%.4g p=%.4g", r.Hypothesis, r.StatName, r.Statistic, r.PValue)
	if r.EffectName != "" {
		fmt.Fprintf(w, " %s=%.3g", r.EffectName, r.Effect)
	}
	fmt.Fprint(w, " ")
	if r.Significant {
		mark.Fprintln(w, "significant")
	} else {
		mark.Fprintln(w, "not significant")
	}
}
