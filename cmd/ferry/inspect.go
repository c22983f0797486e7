package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steveyegge/ferry/internal/archive"
	"github.com/steveyegge/ferry/internal/migration"
	"github.com/steveyegge/ferry/internal/refs"
	"github.com/steveyegge/ferry/internal/ui"
)

// danglingRef is a reference to an item or asset missing from the archive.
type danglingRef struct {
	From string `json:"from" yaml:"from"`
	Kind string `json:"kind" yaml:"kind"`
	To   string `json:"to" yaml:"to"`
}

type inspectReport struct {
	Manifest   *archive.Manifest `json:"manifest" yaml:"manifest"`
	Items      int               `json:"items" yaml:"items"`
	Components int               `json:"components" yaml:"components"`
	Assets     int               `json:"assets" yaml:"assets"`
	ByLanguage map[string]int    `json:"by_language" yaml:"by_language"`
	ByType     map[string]int    `json:"by_type" yaml:"by_type"`
	ByStep     map[string]int    `json:"by_step" yaml:"by_step"`

	ReferencedItems  int           `json:"referenced_items" yaml:"referenced_items"`
	ReferencedAssets int           `json:"referenced_assets" yaml:"referenced_assets"`
	UnusedAssets     []string      `json:"unused_assets,omitempty" yaml:"unused_assets,omitempty"`
	Dangling         []danglingRef `json:"dangling,omitempty" yaml:"dangling,omitempty"`
	Invalid          string        `json:"invalid,omitempty" yaml:"invalid,omitempty"`
}

// inspectData summarizes data and lists references that the archive cannot
// satisfy. Dangling references are resolved against the target at import
// time, so they are reported, not treated as errors.
func inspectData(data *migration.Data, m *archive.Manifest) *inspectReport {
	r := &inspectReport{
		Manifest:   m,
		Assets:     len(data.Assets),
		ByLanguage: make(map[string]int),
		ByType:     make(map[string]int),
		ByStep:     make(map[string]int),
	}
	if err := data.Validate(); err != nil {
		r.Invalid = err.Error()
	}

	present := make(map[string]bool)
	for _, it := range data.DistinctItemCodenames() {
		present[it.System.Codename] = true
	}

	all := migration.NewReferencedData()
	for i := range data.Items {
		item := &data.Items[i]
		if item.IsComponent() {
			r.Components++
		} else {
			r.Items++
			r.ByLanguage[item.System.Language]++
			r.ByType[item.System.Type]++
			r.ByStep[item.System.Workflow+"/"+item.System.WorkflowStep]++
		}

		found := refs.ExtractItem(item)
		all.Merge(found)
		for _, c := range found.Items() {
			if !present[c] {
				r.Dangling = append(r.Dangling, danglingRef{From: item.Key().String(), Kind: "item", To: c})
			}
		}
		for _, c := range found.Assets() {
			if data.Asset(c) == nil {
				r.Dangling = append(r.Dangling, danglingRef{From: item.Key().String(), Kind: "asset", To: c})
			}
		}
	}
	r.ReferencedItems = len(all.ItemCodenames)
	r.ReferencedAssets = len(all.AssetCodenames)
	for _, a := range data.Assets {
		if !all.HasAsset(a.Codename) {
			r.UnusedAssets = append(r.UnusedAssets, a.Codename)
		}
	}
	sort.Strings(r.UnusedAssets)
	return r
}

func printInspect(w io.Writer, r *inspectReport) {
	if m := r.Manifest; m != nil {
		fmt.Fprintln(w, ui.RenderCategory("Archive"))
		fmt.Fprintf(w, "  format %d, created %s", m.FormatVersion, m.Created.Format("2006-01-02 15:04"))
		if m.SourceEnvironment != "" {
			fmt.Fprintf(w, " from %s", m.SourceEnvironment)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, ui.RenderCategory("Content"))
	fmt.Fprintf(w, "  %d variants, %d components, %d assets\n", r.Items, r.Components, r.Assets)
	printCounts(w, "languages", r.ByLanguage)
	printCounts(w, "types", r.ByType)
	printCounts(w, "steps", r.ByStep)

	fmt.Fprintln(w, ui.RenderCategory("References"))
	fmt.Fprintf(w, "  %d items and %d assets referenced\n", r.ReferencedItems, r.ReferencedAssets)
	if len(r.UnusedAssets) > 0 {
		fmt.Fprintln(w, ui.StatusLine("unused assets", strings.Join(r.UnusedAssets, ", "), false, true))
	}
	for i, d := range r.Dangling {
		if i == maxListed {
			fmt.Fprintln(w, ui.RenderMuted(fmt.Sprintf("  ... and %d more", len(r.Dangling)-maxListed)))
			break
		}
		fmt.Fprintf(w, "%s %s -> %s %s %s\n", ui.RenderWarn(ui.IconWarn), d.From, d.Kind, d.To,
			ui.RenderMuted("(must exist in the target)"))
	}
	if r.Invalid != "" {
		fmt.Fprintln(w, ui.StatusLine("invalid", r.Invalid, true, false))
	}
}

func printCounts(w io.Writer, label string, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	fmt.Fprintf(w, "  %s: %s\n", label, strings.Join(parts, " "))
}

var inspectInput string

var inspectCmd = &cobra.Command{
	Use:     "inspect",
	GroupID: "migrate",
	Short:   "Summarize an archive and list references it cannot satisfy",
	Run: func(cmd *cobra.Command, args []string) {
		data, manifest, err := archive.ReadFile(inspectInput)
		if err != nil {
			FatalError("reading %s: %v", inspectInput, err)
		}
		report := inspectData(data, manifest)
		if jsonOutput {
			outputJSON(report)
		} else {
			printInspect(os.Stdout, report)
		}
		if report.Invalid != "" {
			os.Exit(1)
		}
	},
}

func init() {
	inspectCmd.Flags().StringVarP(&inspectInput, "input", "i", "", "Archive to inspect")
	_ = inspectCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(inspectCmd)
}
