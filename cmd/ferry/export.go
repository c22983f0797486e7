package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/ferry/internal/archive"
	"github.com/steveyegge/ferry/internal/config"
	"github.com/steveyegge/ferry/internal/exporter"
	"github.com/steveyegge/ferry/internal/remote"
	"github.com/steveyegge/ferry/internal/timeparsing"
)

// exportFlags are shared by export and migrate.
type exportFlags struct {
	types         []string
	modifiedSince string
	allAssets     bool
}

func addExportFlags(cmd *cobra.Command, f *exportFlags) {
	cmd.Flags().StringSlice("language", nil, "Language codenames to export (default: all)")
	cmd.Flags().StringSliceVar(&f.types, "type", nil, "Content type codenames to export (default: all)")
	cmd.Flags().Bool("include-referenced", false, "Also export items referenced by the selected items")
	cmd.Flags().BoolVar(&f.allAssets, "all-assets", false, "Export every asset, not only referenced ones")
	cmd.Flags().StringVar(&f.modifiedSince, "modified-since", "", `Only variants modified since ("2w", "2 weeks ago", "2025-01-01")`)
	bindConfigFlag(cmd, "language", config.KeyExportLanguage)
	bindConfigFlag(cmd, "include-referenced", config.KeyExportIncludeReferenced)
}

// exporterOptions builds exporter options from flags and config.
func (f *exportFlags) exporterOptions(now time.Time) (exporter.Options, error) {
	opts := exporter.Options{
		Languages:         config.GetExportLanguages(),
		Types:             f.types,
		IncludeReferenced: config.GetBool(config.KeyExportIncludeReferenced),
		AllAssets:         f.allAssets,
		Concurrency:       config.GetImportConcurrency(),
		RetryPolicy:       config.GetRetryPolicy(),
		Logger:            newLogger(),
	}
	if f.modifiedSince != "" {
		t, err := timeparsing.Since(f.modifiedSince, now)
		if err != nil {
			return opts, fmt.Errorf("--modified-since: %w", err)
		}
		opts.ModifiedSince = &t
	}
	return opts, nil
}

var (
	exportOpts   exportFlags
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:     "export",
	GroupID: "migrate",
	Short:   "Export content and assets from the source environment to an archive",
	Long: `Export reads items, language variants and assets from the source environment,
translates every id-keyed reference to a codename, and writes a zip archive that
'ferry import' can load into any environment.

Examples:
  ferry export -o content.zip
  ferry export -o blog.zip --type article --language en --include-referenced
  ferry export -o recent.zip --modified-since "2 weeks ago"`,
	Run: func(cmd *cobra.Command, args []string) {
		opts, err := exportOpts.exporterOptions(time.Now())
		if err != nil {
			FatalError("%v", err)
		}
		sink, done := newProgress()
		opts.Progress = sink

		client, env := mustClient(config.RoleSource)
		result, err := runExport(getRootContext(), client, env, exportOutput, opts)
		done()
		if err != nil {
			FatalError("%v", err)
		}

		if jsonOutput {
			outputJSON(result)
			return
		}
		printExportSummary(result, exportOutput)
	},
}

// runExport exports from client and writes the archive to path.
func runExport(ctx context.Context, client remote.Client, env, path string, opts exporter.Options) (*exporter.Result, error) {
	result, err := exporter.New(client, opts).Export(ctx)
	if err != nil {
		return nil, err
	}
	manifest := archive.NewManifest(env, "ferry "+Version)
	if err := archive.WriteFile(path, result.Data, manifest); err != nil {
		return result, fmt.Errorf("writing %s: %w", path, err)
	}
	return result, nil
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "ferry-export.zip", "Archive to write")
	addExportFlags(exportCmd, &exportOpts)
	addEnvironmentFlag(exportCmd, config.RoleSource)
	rootCmd.AddCommand(exportCmd)
}
