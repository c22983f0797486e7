package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/ferry/internal/archive"
	"github.com/steveyegge/ferry/internal/config"
	"github.com/steveyegge/ferry/internal/debug"
	"github.com/steveyegge/ferry/internal/exporter"
)

var (
	migrateExport exportFlags
	migrateImport importFlags
	migrateKeep   string
)

var migrateCmd = &cobra.Command{
	Use:     "migrate",
	GroupID: "migrate",
	Short:   "Copy content from the source environment straight into the target",
	Long: `Migrate runs an export from the source environment and imports the result
into the target environment in one step. Use --keep to also save the archive.

Examples:
  ferry migrate --source-environment 11aa... --target-environment 22bb...
  ferry migrate --type article --include-referenced --keep articles.zip --yes`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := getRootContext()
		opts, err := migrateExport.exporterOptions(time.Now())
		if err != nil {
			FatalError("%v", err)
		}
		source, sourceEnv := mustClient(config.RoleSource)
		target, targetEnv := mustClient(config.RoleTarget)
		if sourceEnv == targetEnv {
			FatalError("source and target are the same environment (%s)", sourceEnv)
		}

		sink, done := newProgress()
		opts.Progress = sink
		exported, err := exporter.New(source, opts).Export(ctx)
		done()
		if err != nil {
			FatalError("export from %s: %v", sourceEnv, err)
		}
		if !jsonOutput {
			printExportSummary(exported, "")
		}
		if migrateKeep != "" {
			if err := archive.WriteFile(migrateKeep, exported.Data, archive.NewManifest(sourceEnv, "ferry "+Version)); err != nil {
				WarnError("saving %s: %v", migrateKeep, err)
			} else {
				debug.PrintNormal("Saved archive %s\n", migrateKeep)
			}
		}

		runImportCommand(ctx, target, targetEnv, "environment "+sourceEnv, exported.Data, &migrateImport)
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateKeep, "keep", "", "Also write the exported archive to this file")
	addExportFlags(migrateCmd, &migrateExport)
	addImportFlags(migrateCmd, &migrateImport)
	addEnvironmentFlag(migrateCmd, config.RoleSource)
	addEnvironmentFlag(migrateCmd, config.RoleTarget)
	rootCmd.AddCommand(migrateCmd)
}
