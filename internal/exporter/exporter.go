// Package exporter reads content from a source environment into the neutral
// migration representation.
//
// Source content is id-keyed. The exporter first decodes variants as they
// are, walks references in that shape when referenced content is requested,
// and only then translates every id into a codename.
package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/steveyegge/ferry/internal/batch"
	"github.com/steveyegge/ferry/internal/migration"
	"github.com/steveyegge/ferry/internal/progress"
	"github.com/steveyegge/ferry/internal/refs"
	"github.com/steveyegge/ferry/internal/remote"
	"github.com/steveyegge/ferry/internal/retry"
	"github.com/steveyegge/ferry/internal/telemetry"
)

const tracerName = "github.com/steveyegge/ferry/exporter"

// Options configures an export.
type Options struct {
	Languages         []string      // Language codenames to export (default: all)
	Types             []string      // Content type codenames to export (default: all)
	ModifiedSince     *time.Time    // Skip variants last modified before this time
	IncludeReferenced bool          // Also export items referenced by selected items, transitively
	AllAssets         bool          // Export every asset, not only referenced ones
	Concurrency       int           // Parallel binary downloads (default: batch.DefaultConcurrency)
	RetryPolicy       retry.Policy  // Policy wrapped around every remote call
	Progress          progress.Sink // Receives stage and download events
	Logger            *slog.Logger  // Structured log output (default: discard)
}

// Failure is an asset whose binary could not be downloaded. The asset is left
// out of the exported data.
type Failure struct {
	Asset string `json:"asset" yaml:"asset"`
	Error string `json:"error" yaml:"error"`
}

// Result is the outcome of an export.
type Result struct {
	Data     *migration.Data `json:"-" yaml:"-"`
	Items    int             `json:"items" yaml:"items"`
	Assets   int             `json:"assets" yaml:"assets"`
	Failures []Failure       `json:"failures,omitempty" yaml:"failures,omitempty"`
	Warnings []string        `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Duration time.Duration   `json:"duration" yaml:"duration"`

	mu sync.Mutex
}

func (r *Result) warn(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Warnings = append(r.Warnings, msg)
}

// Exporter reads from one source environment.
type Exporter struct {
	client remote.Client
	opts   Options
	log    *slog.Logger
}

// New creates an exporter reading from client.
func New(client remote.Client, opts Options) *Exporter {
	if opts.Concurrency < 1 {
		opts.Concurrency = batch.DefaultConcurrency
	}
	if opts.RetryPolicy.MaxAttempts < 1 {
		opts.RetryPolicy = retry.DefaultPolicy()
	}
	opts.Progress = progress.OrDiscard(opts.Progress)
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Exporter{client: client, opts: opts, log: log}
}

// export is the state of one export.
type export struct {
	*Exporter
	src    *source
	result *Result

	selected map[variantKey]*sourceVariant
	order    []variantKey
}

// Export reads the selected content and the binaries of the assets it needs.
// Only failures to read the environment structure or the variants are
// returned as errors; a failed binary download is recorded in the result.
func (e *Exporter) Export(ctx context.Context) (*Result, error) {
	start := time.Now()
	ctx, span := telemetry.Tracer(tracerName).Start(ctx, "ferry.export")
	defer span.End()

	x := &export{
		Exporter: e,
		result:   &Result{},
		selected: make(map[variantKey]*sourceVariant),
	}
	defer func() { x.result.Duration = time.Since(start) }()

	data, err := x.run(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return x.result, err
	}
	x.result.Data = data
	x.result.Items = len(data.Items)
	x.result.Assets = len(data.Assets)
	span.SetAttributes(
		attribute.Int("ferry.items", x.result.Items),
		attribute.Int("ferry.assets", x.result.Assets),
	)
	e.log.Info("export finished", "items", x.result.Items, "assets", x.result.Assets,
		"failures", len(x.result.Failures), "warnings", len(x.result.Warnings))
	return x.result, nil
}

func (x *export) run(ctx context.Context) (*migration.Data, error) {
	x.stage("Reading source environment")
	src, err := loadSource(ctx, x.client, x.opts.RetryPolicy)
	if err != nil {
		return nil, fmt.Errorf("reading source environment: %w", err)
	}
	x.src = src

	languages, err := x.languages()
	if err != nil {
		return nil, err
	}

	x.stage("Reading language variants")
	all := make(map[variantKey]*remote.Variant)
	for _, lang := range languages {
		variants, err := retry.Value(ctx, x.opts.RetryPolicy, func(ctx context.Context) ([]remote.Variant, error) {
			return x.client.ListVariants(ctx, lang.ID)
		})
		if err != nil {
			return nil, fmt.Errorf("listing %s variants: %w", lang.Codename, err)
		}
		for i := range variants {
			v := &variants[i]
			all[variantKey{item: v.Item.ID, language: lang.ID}] = v
		}
	}

	keys := make([]variantKey, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return x.src.lessKey(keys[i], keys[j]) })
	for _, k := range keys {
		if !x.matches(all[k]) {
			continue
		}
		if err := x.add(k, all[k]); err != nil {
			return nil, err
		}
	}
	x.log.Debug("variants selected", "count", len(x.order), "read", len(all))

	if x.opts.IncludeReferenced {
		x.stage("Resolving referenced items")
		if err := x.includeReferenced(all); err != nil {
			return nil, err
		}
	}

	data := &migration.Data{}
	for _, k := range x.order {
		items := x.translate(x.selected[k])
		data.Items = append(data.Items, items...)
	}

	assets := x.assetsToExport()
	data.Assets = x.download(ctx, assets)
	return data, nil
}

func (x *export) stage(msg string) {
	x.opts.Progress.Report(progress.Event{Message: msg, Category: progress.CategoryStage})
}

func (x *export) warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	x.result.warn(msg)
	x.log.Warn(msg)
	x.opts.Progress.Report(progress.Event{Message: msg, Category: progress.CategoryWarning})
}

// languages resolves the language filter.
func (x *export) languages() ([]remote.Language, error) {
	if len(x.opts.Languages) == 0 {
		return x.src.languageList, nil
	}
	out := make([]remote.Language, 0, len(x.opts.Languages))
	for _, codename := range x.opts.Languages {
		l, ok := x.src.languageByCodename[codename]
		if !ok {
			return nil, &migration.NotFoundError{Kind: "language", Key: codename}
		}
		out = append(out, l)
	}
	return out, nil
}

// matches applies the type and modification filters.
func (x *export) matches(v *remote.Variant) bool {
	if x.opts.ModifiedSince != nil && v.LastModified.Before(*x.opts.ModifiedSince) {
		return false
	}
	if len(x.opts.Types) == 0 {
		return true
	}
	it, ok := x.src.items[v.Item.ID]
	if !ok {
		return false
	}
	t, ok := x.src.typeOf(it.Type)
	if !ok {
		return false
	}
	for _, want := range x.opts.Types {
		if t.Codename == want {
			return true
		}
	}
	return false
}

// add decodes a variant and selects it.
func (x *export) add(key variantKey, v *remote.Variant) error {
	if _, ok := x.selected[key]; ok {
		return nil
	}
	sv, err := x.decode(key, v)
	if err != nil {
		return err
	}
	x.selected[key] = sv
	x.order = append(x.order, key)
	return nil
}

// includeReferenced adds the variants referenced by selected variants, in the
// same language, until no new ones appear.
func (x *export) includeReferenced(all map[variantKey]*remote.Variant) error {
	for i := 0; i < len(x.order); i++ {
		sv := x.selected[x.order[i]]
		found := sv.references()
		for _, itemID := range found.Items() {
			key := variantKey{item: itemID, language: sv.language.ID}
			if _, ok := x.selected[key]; ok {
				continue
			}
			v, ok := all[key]
			if !ok {
				x.warnf("%s references item %s which has no %s variant in the source", sv.label(), x.src.itemLabel(itemID), sv.language.Codename)
				continue
			}
			if err := x.add(key, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// assetsToExport returns the assets referenced by the selected variants, or
// every asset with AllAssets, in codename order.
func (x *export) assetsToExport() []*remote.Asset {
	if x.opts.AllAssets {
		return x.src.sortedAssets(nil)
	}
	wanted := make(map[string]bool)
	for _, k := range x.order {
		for _, id := range x.selected[k].references().Assets() {
			if _, ok := x.src.assets[id]; !ok {
				x.warnf("%s references asset %s which does not exist in the source", x.selected[k].label(), id)
				continue
			}
			wanted[id] = true
		}
	}
	return x.src.sortedAssets(wanted)
}

// download fetches binaries in parallel and converts the assets that succeeded.
func (x *export) download(ctx context.Context, assets []*remote.Asset) []migration.Asset {
	results, summary := batch.Run(ctx, assets, func(ctx context.Context, a *remote.Asset) ([]byte, error) {
		return retry.Value(ctx, x.opts.RetryPolicy, func(ctx context.Context) ([]byte, error) {
			return x.client.DownloadBinary(ctx, a)
		})
	}, batch.Options[*remote.Asset]{
		Name:        "Downloading assets",
		Concurrency: x.opts.Concurrency,
		Label:       func(a *remote.Asset) string { return a.Codename },
		Progress:    x.opts.Progress,
	})
	x.log.Info("asset binaries downloaded", "summary", summary.String())

	out := make([]migration.Asset, 0, len(results))
	for _, res := range results {
		if res.Err != nil {
			x.result.Failures = append(x.result.Failures, Failure{Asset: res.Input.Codename, Error: res.Err.Error()})
			x.log.Warn("asset download failed", "asset", res.Input.Codename, "error", res.Err)
			continue
		}
		out = append(out, x.src.asset(res.Input, res.Output))
	}
	return out
}

// refsOf is refs.Extract over id-keyed elements, including the elements of
// embedded components.
func refsOf(elements []migration.Element, components []sourceComponent, self string) *migration.ReferencedData {
	found := refs.Extract(elements, refs.ByID, self)
	for _, c := range components {
		found.Merge(refsOf(c.elements, c.nested, self))
	}
	return found
}
