// Package batch runs one operation over many inputs with bounded concurrency,
// isolating each input's failure from its siblings.
package batch

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/ferry/internal/progress"
)

// DefaultConcurrency is used when Options.Concurrency is not positive.
const DefaultConcurrency = 5

// Result is the outcome for one input. Exactly one of Output and Err is
// meaningful.
type Result[In, Out any] struct {
	Input  In
	Output Out
	Err    error
}

// OK reports whether the operation succeeded.
func (r Result[In, Out]) OK() bool { return r.Err == nil }

// Summary counts the outcomes of a batch.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

func (s Summary) String() string {
	return fmt.Sprintf("%d/%d succeeded, %d failed", s.Succeeded, s.Total, s.Failed)
}

// PanicError is the failure recorded for an operation that panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Options configures Run.
type Options[In any] struct {
	Name        string          // Batch name used in the stage and summary events
	Concurrency int             // Max operations in flight (default: DefaultConcurrency)
	Label       func(In) string // Human-readable label for progress events
	Progress    progress.Sink   // Receives one event per completion
}

// Run calls op for every input with at most opts.Concurrency calls in flight and
// returns one result per input, in input order.
//
// A failing or panicking operation is recorded in its result and never stops
// the others. Progress starts with a 0/total event; then each completion
// reports processed/total, so observed counts never decrease and total/total
// is reported exactly once.
func Run[In, Out any](ctx context.Context, inputs []In, op func(context.Context, In) (Out, error), opts Options[In]) ([]Result[In, Out], Summary) {
	sink := progress.OrDiscard(opts.Progress)
	limit := opts.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	label := opts.Label
	if label == nil {
		label = func(in In) string { return fmt.Sprint(in) }
	}

	total := len(inputs)
	results := make([]Result[In, Out], total)
	sink.Report(progress.Event{
		Message:  opts.Name,
		Category: progress.CategoryStage,
		Count:    &progress.Count{Processed: 0, Total: total},
	})

	var (
		mu        sync.Mutex
		processed int
	)
	var g errgroup.Group
	g.SetLimit(limit)
	for i := range inputs {
		g.Go(func() error {
			in := inputs[i]
			out, err := call(ctx, op, in)
			results[i] = Result[In, Out]{Input: in, Output: out, Err: err}

			category := progress.CategoryItem
			if err != nil {
				category = progress.CategoryError
			}
			mu.Lock()
			processed++
			sink.Report(progress.Event{
				Message:  label(in),
				Category: category,
				Count:    &progress.Count{Processed: processed, Total: total},
			})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	summary := Summary{Total: total}
	for _, r := range results {
		if r.Err != nil {
			summary.Failed++
		} else {
			summary.Succeeded++
		}
	}
	sink.Report(progress.Event{
		Message:  fmt.Sprintf("%s: %s", opts.Name, summary),
		Category: progress.CategoryInfo,
	})
	return results, summary
}

func call[In, Out any](ctx context.Context, op func(context.Context, In) (Out, error), in In) (out Out, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return op(ctx, in)
}

// Failures returns the failed results.
func Failures[In, Out any](results []Result[In, Out]) []Result[In, Out] {
	var out []Result[In, Out]
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}
