// Package progress carries structured progress events from long-running
// operations to whoever renders them.
package progress

import "sync"

// Category classifies an event.
type Category string

const (
	CategoryInfo    Category = "info"
	CategoryStage   Category = "stage"
	CategoryItem    Category = "item"
	CategoryWarning Category = "warning"
	CategoryError   Category = "error"
)

// Count is a processed/total pair.
type Count struct {
	Processed int `json:"processed"`
	Total     int `json:"total"`
}

// Event is one progress notification. Count is nil for events that are not
// part of a counted batch.
type Event struct {
	Message  string   `json:"message"`
	Category Category `json:"category"`
	Count    *Count   `json:"count,omitempty"`
}

// Sink receives events. Implementations must be safe for concurrent use.
type Sink interface {
	Report(Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Event)

func (f SinkFunc) Report(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// OrDiscard returns s, or Discard when s is nil.
func OrDiscard(s Sink) Sink {
	if s == nil {
		return Discard
	}
	return s
}

// Recorder keeps every event it receives. Used in tests and for reports.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Report(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Tee fans events out to several sinks.
func Tee(sinks ...Sink) Sink {
	return SinkFunc(func(e Event) {
		for _, s := range sinks {
			if s != nil {
				s.Report(e)
			}
		}
	})
}
