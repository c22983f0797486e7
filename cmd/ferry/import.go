package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/steveyegge/ferry/internal/archive"
	"github.com/steveyegge/ferry/internal/config"
	"github.com/steveyegge/ferry/internal/debug"
	"github.com/steveyegge/ferry/internal/importer"
	"github.com/steveyegge/ferry/internal/migration"
	"github.com/steveyegge/ferry/internal/remote"
	"github.com/steveyegge/ferry/internal/runlock"
	"github.com/steveyegge/ferry/internal/ui"
)

// importFlags are shared by import and migrate.
type importFlags struct {
	failFast bool
	yes      bool
	report   string
}

func addImportFlags(cmd *cobra.Command, f *importFlags) {
	cmd.Flags().Int("concurrency", 5, "Max entities in flight per stage")
	cmd.Flags().BoolVar(&f.failFast, "fail-fast", false, "Stop after the first stage with a failed entity")
	cmd.Flags().BoolVarP(&f.yes, "yes", "y", false, "Skip the confirmation prompt")
	cmd.Flags().StringVar(&f.report, "report", "", "Write a YAML report of the run to this file")
	bindConfigFlag(cmd, "concurrency", config.KeyImportConcurrency)
}

func (f *importFlags) importerOptions() importer.Options {
	opts := importer.DefaultOptions()
	opts.Concurrency = config.GetImportConcurrency()
	opts.SkipFailedItems = config.GetSkipFailedItems() && !f.failFast
	opts.RetryPolicy = config.GetRetryPolicy()
	opts.Logger = newLogger()
	return opts
}

// importReport is what --report and --json write.
type importReport struct {
	Source            string           `json:"source" yaml:"source"`
	TargetEnvironment string           `json:"target_environment" yaml:"target_environment"`
	Error             string           `json:"error,omitempty" yaml:"error,omitempty"`
	Result            *importer.Result `json:"result,omitempty" yaml:"result,omitempty"`
}

// confirmImport asks before writing to a target. Replaced in tests.
var confirmImport = func(title, description string) (bool, error) {
	ok := false
	err := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Import").
		Negative("Cancel").
		Value(&ok).
		Run()
	return ok, err
}

// shouldConfirm reports whether to prompt: only on a terminal, and never with
// --yes or --json.
func (f *importFlags) shouldConfirm() bool {
	return !f.yes && !jsonOutput && ui.IsInteractive()
}

var (
	importOpts  importFlags
	importInput string
)

var importCmd = &cobra.Command{
	Use:     "import",
	GroupID: "migrate",
	Short:   "Import an archive into the target environment",
	Long: `Import loads an archive written by 'ferry export' into the target environment.

Assets are matched by codename and items by codename, so running the same
import twice updates instead of duplicating. References are rewritten to
target ids, components are inlined, and each variant is moved to the workflow
step it had in the source.

Examples:
  ferry import -i content.zip --target-environment 2f3a...
  ferry import -i content.zip --yes --report import.yaml
  ferry import -i content.zip --fail-fast --json`,
	Run: func(cmd *cobra.Command, args []string) {
		data, manifest, err := archive.ReadFile(importInput)
		if err != nil {
			FatalError("reading %s: %v", importInput, err)
		}
		debug.Logf("archive %s: format %d, %d items, %d assets, exported %s\n",
			importInput, manifest.FormatVersion, manifest.Items, manifest.Assets, manifest.Created.Format(time.RFC3339))

		client, env := mustClient(config.RoleTarget)
		runImportCommand(getRootContext(), client, env, importInput, data, &importOpts)
	},
}

// runImportCommand confirms, imports under the target lock, and reports.
// It exits non-zero when the import failed or recorded failures.
func runImportCommand(ctx context.Context, client remote.Client, env, source string, data *migration.Data, f *importFlags) {
	if f.shouldConfirm() {
		title := fmt.Sprintf("Import into environment %s?", env)
		desc := fmt.Sprintf("%d item variants and %d assets from %s", len(data.Items), len(data.Assets), source)
		ok, err := confirmImport(title, desc)
		if err != nil {
			FatalError("confirmation: %v", err)
		}
		if !ok {
			debug.PrintlnNormal("Import cancelled")
			return
		}
	}

	opts := f.importerOptions()
	sink, done := newProgress()
	opts.Progress = sink
	result, err := runImport(ctx, client, env, data, opts)
	done()

	report := importReport{Source: source, TargetEnvironment: env, Result: result}
	if err != nil {
		report.Error = err.Error()
	}
	if f.report != "" {
		if werr := writeReportFile(f.report, report); werr != nil {
			WarnError("%v", werr)
		}
	}

	switch {
	case jsonOutput:
		outputJSON(report)
	case result != nil:
		printImportSummary(os.Stdout, result)
	}

	if err != nil {
		var stageErr *importer.StageError
		if errors.As(err, &stageErr) {
			FatalErrorWithHint(err.Error(), "rerun without --fail-fast to import everything that can be imported")
		}
		FatalError("%v", err)
	}
	if !result.OK() {
		failed := len(result.Failures)
		fmt.Fprintf(os.Stderr, "Error: %d %s could not be imported\n", failed, plural(failed, "entity", "entities"))
		os.Exit(1)
	}
}

// runImport holds the target lock for the duration of the import.
func runImport(ctx context.Context, client remote.Client, env string, data *migration.Data, opts importer.Options) (*importer.Result, error) {
	var result *importer.Result
	err := runlock.With(ctx, env, config.GetLockTimeout(), func() error {
		var err error
		result, err = importer.New(client, opts).Import(ctx, data)
		return err
	})
	return result, err
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func init() {
	importCmd.Flags().StringVarP(&importInput, "input", "i", "", "Archive to import")
	_ = importCmd.MarkFlagRequired("input")
	addImportFlags(importCmd, &importOpts)
	addEnvironmentFlag(importCmd, config.RoleTarget)
	rootCmd.AddCommand(importCmd)
}
