// Package workflow resolves legal transition paths between workflow steps.
//
// A Graph is built once per workflow and is read-only afterwards. The
// published, scheduled and archived steps take part in the graph like any
// other step.
package workflow

import (
	"fmt"

	"github.com/steveyegge/ferry/internal/remote"
)

// Role tells ordinary steps apart from the built-in ones.
type Role int

const (
	RoleStep Role = iota
	RolePublished
	RoleScheduled
	RoleArchived
)

// Step is a node of the graph.
type Step struct {
	ID       string
	Codename string
	Name     string
	Role     Role
}

// NoPathError reports that the target step cannot be reached.
type NoPathError struct {
	Workflow string
	From     string
	To       string
	Reason   string
}

func (e *NoPathError) Error() string {
	return fmt.Sprintf("workflow %q: no path from step %q to step %q: %s", e.Workflow, e.From, e.To, e.Reason)
}

// Graph is the directed step graph of one workflow.
type Graph struct {
	ID       string
	Codename string

	steps     map[string]*Step    // by codename
	byID      map[string]*Step    // by id
	order     []string            // declaration order of codenames
	edges     map[string][]string // codename -> codenames, declaration order
	first     string
	published string
	scheduled string
	archived  string
}

// New builds a graph from a workflow definition. Transitions may reference
// steps by id or codename; transitions to unknown steps are ignored.
//
// The built-in steps usually declare no transitions. When they do not, the
// edges the API allows implicitly are added: published to archived, scheduled
// to published, and archived to the first ordinary step.
func New(w remote.Workflow) *Graph {
	g := &Graph{
		ID:       w.ID,
		Codename: w.Codename,
		steps:    make(map[string]*Step),
		byID:     make(map[string]*Step),
		edges:    make(map[string][]string),
	}

	add := func(s remote.WorkflowStep, role Role) {
		if s.Codename == "" {
			return
		}
		st := &Step{ID: s.ID, Codename: s.Codename, Name: s.Name, Role: role}
		if _, dup := g.steps[st.Codename]; !dup {
			g.order = append(g.order, st.Codename)
		}
		g.steps[st.Codename] = st
		if st.ID != "" {
			g.byID[st.ID] = st
		}
	}
	for _, s := range w.Steps {
		add(s, RoleStep)
	}
	add(w.PublishedStep, RolePublished)
	add(w.ScheduledStep, RoleScheduled)
	add(w.ArchivedStep, RoleArchived)

	if len(w.Steps) > 0 {
		g.first = w.Steps[0].Codename
	}
	g.published = w.PublishedStep.Codename
	g.scheduled = w.ScheduledStep.Codename
	g.archived = w.ArchivedStep.Codename

	link := func(s remote.WorkflowStep) {
		if s.Codename == "" {
			return
		}
		for _, tr := range s.TransitionsTo {
			if to := g.lookup(tr.Step); to != nil {
				g.addEdge(s.Codename, to.Codename)
			}
		}
	}
	for _, s := range w.Steps {
		link(s)
	}
	for _, s := range []remote.WorkflowStep{w.PublishedStep, w.ScheduledStep, w.ArchivedStep} {
		link(s)
	}

	if len(w.PublishedStep.TransitionsTo) == 0 && g.published != "" && g.archived != "" {
		g.addEdge(g.published, g.archived)
	}
	if len(w.ScheduledStep.TransitionsTo) == 0 && g.scheduled != "" && g.published != "" {
		g.addEdge(g.scheduled, g.published)
	}
	if len(w.ArchivedStep.TransitionsTo) == 0 && g.archived != "" && g.first != "" {
		g.addEdge(g.archived, g.first)
	}
	return g
}

func (g *Graph) lookup(ref remote.Reference) *Step {
	if ref.ID != "" {
		if s, ok := g.byID[ref.ID]; ok {
			return s
		}
	}
	if ref.Codename != "" {
		return g.steps[ref.Codename]
	}
	return nil
}

func (g *Graph) addEdge(from, to string) {
	for _, e := range g.edges[from] {
		if e == to {
			return
		}
	}
	g.edges[from] = append(g.edges[from], to)
}

// Step returns the step with the given codename.
func (g *Graph) Step(codename string) (*Step, bool) {
	s, ok := g.steps[codename]
	return s, ok
}

// StepByID returns the step with the given id.
func (g *Graph) StepByID(id string) (*Step, bool) {
	s, ok := g.byID[id]
	return s, ok
}

// Resolve finds a step by a reference carrying an id or a codename.
func (g *Graph) Resolve(ref remote.Reference) (*Step, bool) {
	s := g.lookup(ref)
	return s, s != nil
}

// Steps returns every step in declaration order, built-in steps last.
func (g *Graph) Steps() []*Step {
	out := make([]*Step, 0, len(g.order))
	for _, c := range g.order {
		out = append(out, g.steps[c])
	}
	return out
}

// First returns the first ordinary step, where new variants start.
func (g *Graph) First() string { return g.first }

// Published returns the codename of the published step.
func (g *Graph) Published() string { return g.published }

// Scheduled returns the codename of the scheduled step.
func (g *Graph) Scheduled() string { return g.scheduled }

// Archived returns the codename of the archived step.
func (g *Graph) Archived() string { return g.archived }

// Next returns the direct successors of a step in declaration order.
func (g *Graph) Next(codename string) []string {
	return append([]string(nil), g.edges[codename]...)
}

// CanTransition reports whether a direct transition exists.
func (g *Graph) CanTransition(from, to string) bool {
	for _, e := range g.edges[from] {
		if e == to {
			return true
		}
	}
	return false
}

// ShortestPath returns the steps to pass through to get from one step to
// another, excluding from and including to. Equal-length paths are broken by
// adjacency declaration order. from == to gives an empty path.
func (g *Graph) ShortestPath(from, to string) ([]string, error) {
	if _, ok := g.steps[from]; !ok {
		return nil, &NoPathError{Workflow: g.Codename, From: from, To: to, Reason: "unknown source step"}
	}
	if _, ok := g.steps[to]; !ok {
		return nil, &NoPathError{Workflow: g.Codename, From: from, To: to, Reason: "unknown target step"}
	}
	if from == to {
		return []string{}, nil
	}

	prev := map[string]string{from: ""}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range g.edges[cur] {
			if _, seen := prev[next]; seen {
				continue
			}
			prev[next] = cur
			if next == to {
				return unwind(prev, from, to), nil
			}
			queue = append(queue, next)
		}
	}
	return nil, &NoPathError{Workflow: g.Codename, From: from, To: to, Reason: "target step is unreachable"}
}

func unwind(prev map[string]string, from, to string) []string {
	var path []string
	for cur := to; cur != from; cur = prev[cur] {
		path = append(path, cur)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
