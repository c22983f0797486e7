package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/steveyegge/ferry/internal/exporter"
	"github.com/steveyegge/ferry/internal/importer"
	"github.com/steveyegge/ferry/internal/ui"
)

const maxListed = 20

// statsDetail renders non-zero counts, e.g. "3 created, 1 failed".
func statsDetail(s importer.Stats) string {
	var parts []string
	for _, c := range []struct {
		n    int
		name string
	}{
		{s.Created, "created"},
		{s.Updated, "updated"},
		{s.Unchanged, "unchanged"},
		{s.Skipped, "skipped"},
		{s.Failed, "failed"},
	} {
		if c.n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", c.n, c.name))
		}
	}
	return strings.Join(parts, ", ")
}

func printImportSummary(w io.Writer, r *importer.Result) {
	fmt.Fprintln(w, ui.RenderCategory("Import summary")+ui.RenderMuted(fmt.Sprintf("  run %s, %s", r.RunID, r.Duration.Round(time.Millisecond))))
	for _, row := range []struct {
		label string
		stats importer.Stats
	}{
		{"assets", r.Assets},
		{"items", r.Items},
		{"variants", r.Variants},
	} {
		fmt.Fprintln(w, ui.StatusLine(row.label, statsDetail(row.stats), row.stats.Failed > 0, row.stats.Skipped > 0))
	}

	if len(r.Failures) > 0 {
		fmt.Fprintln(w, ui.RenderSeparator())
		fmt.Fprintln(w, ui.RenderCategory("Failures"))
		for i, f := range r.Failures {
			if i == maxListed {
				fmt.Fprintln(w, ui.RenderMuted(fmt.Sprintf("  ... and %d more (see --report)", len(r.Failures)-maxListed)))
				break
			}
			icon := ui.RenderFail(ui.IconFail)
			if f.Skipped {
				icon = ui.RenderMuted(ui.IconSkip)
			}
			line := fmt.Sprintf("%s %s %s: %s", icon, f.Kind, f.Key, f.Error)
			fmt.Fprintln(w, ui.WrapText(line, ui.TerminalWidth(100), "    "))
		}
	}
	printWarnings(w, r.Warnings)
}

func printExportSummary(r *exporter.Result, path string) {
	w := os.Stdout
	fmt.Fprintln(w, ui.RenderCategory("Export summary")+ui.RenderMuted(fmt.Sprintf("  %s", r.Duration.Round(time.Millisecond))))
	fmt.Fprintln(w, ui.StatusLine("items", fmt.Sprintf("%d variants", r.Items), false, false))
	fmt.Fprintln(w, ui.StatusLine("assets", fmt.Sprintf("%d exported", r.Assets), len(r.Failures) > 0, false))
	for _, f := range r.Failures {
		fmt.Fprintf(w, "  %s %s: %s\n", ui.RenderFail(ui.IconFail), f.Asset, ui.TruncateSimple(f.Error, 120))
	}
	printWarnings(w, r.Warnings)
	if path != "" {
		fmt.Fprintf(w, "\nWrote %s\n", ui.RenderAccent(path))
	}
}

func printWarnings(w io.Writer, warnings []string) {
	if len(warnings) == 0 || quietFlag {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, ui.RenderCategory("Warnings"))
	for i, msg := range warnings {
		if i == maxListed {
			fmt.Fprintln(w, ui.RenderMuted(fmt.Sprintf("  ... and %d more", len(warnings)-maxListed)))
			return
		}
		fmt.Fprintf(w, "%s %s\n", ui.RenderWarn(ui.IconWarn), ui.TruncateSimple(msg, 160))
	}
}
