package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/steveyegge/ferry/internal/archive"
	"github.com/steveyegge/ferry/internal/config"
	"github.com/steveyegge/ferry/internal/exporter"
	"github.com/steveyegge/ferry/internal/importer"
	"github.com/steveyegge/ferry/internal/migration"
	"github.com/steveyegge/ferry/internal/remote"
	"github.com/steveyegge/ferry/internal/remote/memrepo"
	"github.com/steveyegge/ferry/internal/retry"
)

func newEnvironment() *memrepo.Repo {
	return memrepo.New(memrepo.Seed{
		ContentTypes: []remote.ContentType{
			{Codename: "article", Elements: []remote.ElementDef{
				{Codename: "title", Type: "text"},
				{Codename: "related", Type: "modular_content"},
				{Codename: "hero", Type: "asset"},
			}},
		},
		Collections: []remote.Collection{{Codename: "default"}},
		Languages:   []remote.Language{{Codename: "en", IsDefault: true, IsActive: true}},
		Workflows:   []remote.Workflow{memrepo.DefaultWorkflow()},
	})
}

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, Multiplier: 2}
}

func article(codename, step string, related ...string) migration.Item {
	title := strings.ToUpper(codename)
	rel := migration.References{Kind: migration.TypeModularContent}
	for _, r := range related {
		rel.Refs = append(rel.Refs, migration.Reference{Codename: r})
	}
	return migration.Item{
		System: migration.System{
			Codename: codename, Name: codename, Language: "en", Type: "article",
			Collection: "default", Workflow: "default", WorkflowStep: step,
		},
		Elements: []migration.Element{
			{Codename: "title", Value: migration.Text{Value: &title}},
			{Codename: "related", Value: rel},
			{Codename: "hero", Value: migration.References{Kind: migration.TypeAsset, Refs: []migration.Reference{{Codename: "hero"}}}},
		},
	}
}

func sampleData() *migration.Data {
	return &migration.Data{
		Assets: []migration.Asset{
			{Codename: "hero", Filename: "hero.png", ArchiveFilename: "hero_hero.png", Binary: []byte("PNG")},
			{Codename: "spare", Filename: "spare.txt", ArchiveFilename: "spare_spare.txt", Binary: []byte("x")},
		},
		Items: []migration.Item{
			article("home", "published", "about"),
			article("about", "draft", "home", "elsewhere"),
		},
	}
}

func importOptions() importer.Options {
	opts := importer.DefaultOptions()
	opts.RetryPolicy = fastPolicy()
	return opts
}

func TestExportArchiveImport(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	ctx := context.Background()

	source := newEnvironment()
	seeded, err := importer.New(source, importOptions()).Import(ctx, sampleData())
	require.NoError(t, err)
	require.True(t, seeded.OK(), "%v", seeded.Failures)

	path := filepath.Join(t.TempDir(), "out.zip")
	exported, err := runExport(ctx, source, "env-src", path, exporter.Options{RetryPolicy: fastPolicy()})
	require.NoError(t, err)
	assert.Equal(t, 2, exported.Items)

	data, manifest, err := archive.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "env-src", manifest.SourceEnvironment)
	assert.Equal(t, "ferry "+Version, manifest.Tool)
	assert.Len(t, data.Items, 2)

	target := newEnvironment()
	result, err := runImport(ctx, target, "env-dst", data, importOptions())
	require.NoError(t, err)
	assert.True(t, result.OK(), "%v", result.Failures)
	assert.Equal(t, 2, result.Items.Created)
	assert.Equal(t, 2, result.Variants.Created)

	// A second run into the same target changes nothing new.
	again, err := runImport(ctx, target, "env-dst", data, importOptions())
	require.NoError(t, err)
	assert.Equal(t, 0, again.Items.Created)
	assert.Equal(t, 2, again.Items.Updated+again.Items.Unchanged)
}

func TestInspectData(t *testing.T) {
	data := sampleData()
	data.Items = append(data.Items, migration.Item{
		System: migration.System{Codename: "cta_1", Name: "cta_1", Language: "en", Type: "article"},
	})
	r := inspectData(data, &archive.Manifest{FormatVersion: 1})

	assert.Equal(t, 2, r.Items)
	assert.Equal(t, 1, r.Components)
	assert.Equal(t, 2, r.Assets)
	assert.Equal(t, map[string]int{"en": 2}, r.ByLanguage)
	assert.Equal(t, map[string]int{"default/published": 1, "default/draft": 1}, r.ByStep)
	assert.Equal(t, 3, r.ReferencedItems, "home, about, elsewhere")
	assert.Equal(t, 1, r.ReferencedAssets)
	assert.Equal(t, []string{"spare"}, r.UnusedAssets)
	require.Len(t, r.Dangling, 1)
	assert.Equal(t, danglingRef{From: "about (en)", Kind: "item", To: "elsewhere"}, r.Dangling[0])
	assert.Empty(t, r.Invalid)

	var buf bytes.Buffer
	printInspect(&buf, r)
	assert.Contains(t, buf.String(), "about (en) -> item elsewhere")
}

func TestInspectDataReportsInvalid(t *testing.T) {
	data := sampleData()
	data.Items = append(data.Items, data.Items[0])
	r := inspectData(data, nil)
	assert.Contains(t, r.Invalid, "duplicate item home (en)")
}

func TestFindWorkflow(t *testing.T) {
	def := memrepo.DefaultWorkflow()
	other := remote.Workflow{Codename: "legal", Steps: def.Steps, PublishedStep: def.PublishedStep,
		ScheduledStep: def.ScheduledStep, ArchivedStep: def.ArchivedStep}

	g, err := findWorkflow([]remote.Workflow{other}, "")
	require.NoError(t, err)
	assert.Equal(t, "legal", g.Codename, "the only workflow is picked")

	g, err = findWorkflow([]remote.Workflow{other, def}, "")
	require.NoError(t, err)
	assert.Equal(t, "default", g.Codename)

	_, err = findWorkflow([]remote.Workflow{other, def}, "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "have: legal, default")
}

func TestStatsDetail(t *testing.T) {
	assert.Equal(t, "", statsDetail(importer.Stats{}))
	assert.Equal(t, "3 created, 1 failed", statsDetail(importer.Stats{Created: 3, Failed: 1}))
	assert.Equal(t, "1 updated, 2 unchanged, 1 skipped",
		statsDetail(importer.Stats{Updated: 1, Unchanged: 2, Skipped: 1}))
}

func TestPrintImportSummary(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	r := &importer.Result{
		RunID:    "run-1",
		Assets:   importer.Stats{Created: 1},
		Items:    importer.Stats{Created: 1, Failed: 1},
		Failures: []importer.Failure{{Kind: importer.KindItem, Key: "home", Error: "rejected"}},
		Warnings: []string{"asset spare is unused"},
	}
	var buf bytes.Buffer
	printImportSummary(&buf, r)
	out := buf.String()
	assert.Contains(t, out, "IMPORT SUMMARY")
	assert.Contains(t, out, "✓ assets: 1 created")
	assert.Contains(t, out, "✗ items: 1 created, 1 failed")
	assert.Contains(t, out, "- variants")
	assert.Contains(t, out, "✗ item home: rejected")
	assert.Contains(t, out, "⚠ asset spare is unused")
}

func TestWriteReportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.yaml")
	report := importReport{
		Source:            "content.zip",
		TargetEnvironment: "env-1",
		Result:            &importer.Result{RunID: "run-1", Items: importer.Stats{Created: 2}},
	}
	require.NoError(t, writeReportFile(path, report))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var back map[string]any
	require.NoError(t, yaml.Unmarshal(raw, &back))
	assert.Equal(t, "env-1", back["target_environment"])
	result := back["result"].(map[string]any)
	assert.Equal(t, "run-1", result["run_id"])

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp file left behind")
}

func TestExporterOptionsModifiedSince(t *testing.T) {
	now := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

	f := exportFlags{modifiedSince: "2w", types: []string{"article"}}
	opts, err := f.exporterOptions(now)
	require.NoError(t, err)
	require.NotNil(t, opts.ModifiedSince)
	assert.Equal(t, now.AddDate(0, 0, -14), *opts.ModifiedSince)
	assert.Equal(t, []string{"article"}, opts.Types)

	f = exportFlags{modifiedSince: "+3d"}
	_, err = f.exporterOptions(now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--modified-since")
}

func TestImportOptionsFailFast(t *testing.T) {
	f := importFlags{}
	assert.True(t, f.importerOptions().SkipFailedItems)
	f.failFast = true
	assert.False(t, f.importerOptions().SkipFailedItems)
}

func TestConfirmSkippedWithoutTerminal(t *testing.T) {
	f := importFlags{}
	assert.False(t, f.shouldConfirm(), "go test has no terminal")
	f.yes = true
	assert.False(t, f.shouldConfirm())
}

func TestEnvironmentFlagOverridesConfig(t *testing.T) {
	require.NoError(t, config.Initialize())
	t.Cleanup(func() { _ = config.Initialize() })

	require.NoError(t, exportCmd.Flags().Set("source-environment", "from-flag"))
	t.Cleanup(func() { _ = exportCmd.Flags().Set("source-environment", "") })
	applyFlagBindings(exportCmd)
	assert.Equal(t, "from-flag", config.GetString(config.KeySourceEnvironment))
}
