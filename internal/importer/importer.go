// Package importer writes migration data into a target environment.
//
// An import runs four strictly sequential stages: context resolution, assets,
// content items, and language variants. Each entity stage is a bounded batch;
// every remote call goes through the retry policy. Target ids are recorded in
// a translation table as entities are created and read back when later stages
// rewrite references.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/steveyegge/ferry/internal/batch"
	"github.com/steveyegge/ferry/internal/idmap"
	"github.com/steveyegge/ferry/internal/migration"
	"github.com/steveyegge/ferry/internal/progress"
	"github.com/steveyegge/ferry/internal/remote"
	"github.com/steveyegge/ferry/internal/retry"
	"github.com/steveyegge/ferry/internal/telemetry"
)

const tracerName = "github.com/steveyegge/ferry/importer"

// Stage names, as used in progress events, durations, and StageError.
const (
	StageContext  = "context"
	StageAssets   = "assets"
	StageItems    = "items"
	StageVariants = "variants"
)

// Options contains import configuration.
type Options struct {
	Concurrency     int           // Max entities in flight per stage (default: batch.DefaultConcurrency)
	SkipFailedItems bool          // Keep going after entity failures; otherwise stop after the failing stage
	RetryPolicy     retry.Policy  // Policy wrapped around every remote call
	Progress        progress.Sink // Receives stage, item and warning events
	Logger          *slog.Logger  // Structured log output (default: discard)
	RunID           string        // Identifies the run in logs and the result (default: random uuid)
}

// DefaultOptions returns options that skip failed items and retry with the
// default policy.
func DefaultOptions() Options {
	return Options{
		Concurrency:     batch.DefaultConcurrency,
		SkipFailedItems: true,
		RetryPolicy:     retry.DefaultPolicy(),
	}
}

// Importer imports migration data through a remote client. One Importer may
// run several imports; each run keeps its own translation table.
type Importer struct {
	client remote.Client
	opts   Options
	log    *slog.Logger
}

// New creates an importer writing to client.
func New(client remote.Client, opts Options) *Importer {
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
	return &Importer{client: client, opts: opts, log: log}
}

// run is the state of one import.
type run struct {
	*Importer
	id     string
	env    *environment
	data   *migration.Data
	table  *idmap.Table
	result *Result

	policy retry.Policy
	log    *slog.Logger

	components map[migration.ItemKey]*migration.Item // by (codename, language)
}

// Import writes data into the target environment.
//
// A context stage failure aborts the run and nothing is imported. Entity
// failures are recorded in the result; when SkipFailedItems is false the run
// stops after the first stage that recorded any, returning the partial result
// together with a *StageError.
func (im *Importer) Import(ctx context.Context, data *migration.Data) (*Result, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}
	id := im.opts.RunID
	if id == "" {
		id = uuid.NewString()
	}
	r := &run{
		Importer: im,
		id:       id,
		data:     data,
		table:    idmap.New(),
		result:   &Result{RunID: id, Started: time.Now().UTC(), Stages: make(map[string]time.Duration)},
		log:      im.log.With("run", id),
	}
	r.result.Table = r.table
	r.policy = im.opts.RetryPolicy
	onRetry := r.policy.OnRetry
	r.policy.OnRetry = func(err error, delay time.Duration) {
		r.log.Debug("retrying remote call", "error", err, "delay", delay)
		if onRetry != nil {
			onRetry(err, delay)
		}
	}

	ctx, span := telemetry.Tracer(tracerName).Start(ctx, "ferry.import")
	defer span.End()
	span.SetAttributes(
		attribute.String("ferry.run_id", id),
		attribute.Int("ferry.items", len(data.Items)),
		attribute.Int("ferry.assets", len(data.Assets)),
	)
	defer func() { r.result.Duration = time.Since(r.result.Started) }()

	r.log.Info("import started", "items", len(data.Items), "assets", len(data.Assets))

	err := r.stage(ctx, StageContext, func(ctx context.Context) error {
		env, err := r.loadEnvironment(ctx)
		if err != nil {
			return fmt.Errorf("resolving target environment: %w", err)
		}
		r.env = env
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.log.Error("import aborted", "error", err)
		return r.result, err
	}

	for _, s := range []struct {
		name string
		kind string
		fn   func(context.Context) error
	}{
		{StageAssets, KindAsset, r.importAssets},
		{StageItems, KindItem, r.importItems},
		{StageVariants, KindVariant, r.importVariants},
	} {
		if err := r.stage(ctx, s.name, s.fn); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return r.result, err
		}
		if err := r.checkStage(s.name, s.kind); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			r.log.Warn("import stopped", "stage", s.name, "error", err)
			return r.result, err
		}
	}

	r.log.Info("import finished",
		"assets", r.result.Assets, "items", r.result.Items, "variants", r.result.Variants,
		"failures", len(r.result.Failures), "warnings", len(r.result.Warnings))
	return r.result, nil
}

// stage runs fn in its own span and records its duration.
func (r *run) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := telemetry.Tracer(tracerName).Start(ctx, "ferry.import."+name)
	defer span.End()
	start := time.Now()
	r.log.Debug("stage started", "stage", name)
	err := fn(ctx)
	r.result.Stages[name] = time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// checkStage enforces fail-fast mode once a stage has finished.
func (r *run) checkStage(name, kind string) error {
	if r.opts.SkipFailedItems {
		return nil
	}
	st := r.result.stats(kind)
	if st.Failed == 0 {
		return nil
	}
	var first error
	for _, f := range r.result.Failures {
		if f.Kind == kind && !f.Skipped {
			first = f.Err
			break
		}
	}
	return &StageError{Stage: name, Failed: st.Failed, First: first}
}

// batchOptions returns the batch configuration for one stage.
func batchOptions[In any](r *run, name string, label func(In) string) batch.Options[In] {
	return batch.Options[In]{
		Name:        name,
		Concurrency: r.opts.Concurrency,
		Label:       label,
		Progress:    r.opts.Progress,
	}
}

// warnf records an unresolved-reference style warning and reports it.
func (r *run) warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.result.warn("%s", msg)
	r.log.Warn(msg)
	r.opts.Progress.Report(progress.Event{Message: msg, Category: progress.CategoryWarning})
}

// call wraps one remote call in the retry policy.
func call[T any](ctx context.Context, r *run, op func(context.Context) (T, error)) (T, error) {
	return retry.Value(ctx, r.policy, op)
}

// do is call for operations without a result.
func (r *run) do(ctx context.Context, op func(context.Context) error) error {
	return retry.Do(ctx, r.policy, op)
}
