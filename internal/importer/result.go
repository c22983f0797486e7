package importer

import (
	"fmt"
	"sync"
	"time"

	"github.com/steveyegge/ferry/internal/idmap"
)

// Outcome is what happened to one entity.
type Outcome int

const (
	OutcomeCreated Outcome = iota
	OutcomeUpdated
	OutcomeUnchanged
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Stats counts outcomes for one entity kind.
type Stats struct {
	Created   int `json:"created" yaml:"created"`
	Updated   int `json:"updated" yaml:"updated"`
	Unchanged int `json:"unchanged" yaml:"unchanged"`
	Skipped   int `json:"skipped" yaml:"skipped"`
	Failed    int `json:"failed" yaml:"failed"`
}

// Total returns the number of entities processed.
func (s Stats) Total() int {
	return s.Created + s.Updated + s.Unchanged + s.Skipped + s.Failed
}

func (s *Stats) add(o Outcome) {
	switch o {
	case OutcomeCreated:
		s.Created++
	case OutcomeUpdated:
		s.Updated++
	case OutcomeUnchanged:
		s.Unchanged++
	case OutcomeSkipped:
		s.Skipped++
	}
}

// Entity kinds used in failures.
const (
	KindAsset   = "asset"
	KindItem    = "item"
	KindVariant = "variant"
)

// Failure is an entity that could not be imported.
type Failure struct {
	Kind    string `json:"kind" yaml:"kind"`
	Key     string `json:"key" yaml:"key"`
	Error   string `json:"error" yaml:"error"`
	Skipped bool   `json:"skipped,omitempty" yaml:"skipped,omitempty"`

	Err error `json:"-" yaml:"-"`
}

// Result summarizes an import run. Failed and skipped entities are always
// listed in Failures.
type Result struct {
	RunID    string        `json:"run_id" yaml:"run_id"`
	Started  time.Time     `json:"started" yaml:"started"`
	Duration time.Duration `json:"duration" yaml:"duration"`

	Assets   Stats `json:"assets" yaml:"assets"`
	Items    Stats `json:"items" yaml:"items"`
	Variants Stats `json:"variants" yaml:"variants"`

	Failures []Failure               `json:"failures,omitempty" yaml:"failures,omitempty"`
	Warnings []string                `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Stages   map[string]time.Duration `json:"stages" yaml:"stages"`

	// Table holds the source to target id mappings recorded during the run.
	Table *idmap.Table `json:"-" yaml:"-"`

	mu sync.Mutex
}

// OK reports whether every entity was imported.
func (r *Result) OK() bool {
	return r.Assets.Failed+r.Items.Failed+r.Variants.Failed+r.Assets.Skipped+r.Items.Skipped+r.Variants.Skipped == 0
}

func (r *Result) stats(kind string) *Stats {
	switch kind {
	case KindAsset:
		return &r.Assets
	case KindItem:
		return &r.Items
	default:
		return &r.Variants
	}
}

func (r *Result) record(kind string, o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats(kind).add(o)
}

func (r *Result) fail(kind, key string, err error, skipped bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if skipped {
		r.stats(kind).Skipped++
	} else {
		r.stats(kind).Failed++
	}
	r.Failures = append(r.Failures, Failure{Kind: kind, Key: key, Error: err.Error(), Skipped: skipped, Err: err})
}

func (r *Result) warn(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// StageError stops a run after a stage that had failures, when failed items
// are not skipped.
type StageError struct {
	Stage  string
	Failed int
	First  error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %d failed, stopping (first: %v)", e.Stage, e.Failed, e.First)
}

func (e *StageError) Unwrap() error { return e.First }
