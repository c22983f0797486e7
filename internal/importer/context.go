package importer

import (
	"context"
	"fmt"

	"github.com/steveyegge/ferry/internal/migration"
	"github.com/steveyegge/ferry/internal/remote"
	"github.com/steveyegge/ferry/internal/workflow"
)

// contentType is a target content type with its elements indexed by codename.
type contentType struct {
	remote.ContentType
	elements map[string]remote.ElementDef
}

// environment is the target structure resolved once per run. It is read-only
// after loadEnvironment returns.
type environment struct {
	types       map[string]*contentType // by codename
	collections map[string]remote.Collection
	languages   map[string]remote.Language
	workflows   map[string]*workflow.Graph // by codename
	workflowIDs map[string]*workflow.Graph // by id
}

func (r *run) loadEnvironment(ctx context.Context) (*environment, error) {
	types, err := call(ctx, r, r.client.ListContentTypes)
	if err != nil {
		return nil, fmt.Errorf("listing content types: %w", err)
	}
	collections, err := call(ctx, r, r.client.ListCollections)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	languages, err := call(ctx, r, r.client.ListLanguages)
	if err != nil {
		return nil, fmt.Errorf("listing languages: %w", err)
	}
	workflows, err := call(ctx, r, r.client.ListWorkflows)
	if err != nil {
		return nil, fmt.Errorf("listing workflows: %w", err)
	}

	env := &environment{
		types:       make(map[string]*contentType, len(types)),
		collections: make(map[string]remote.Collection, len(collections)),
		languages:   make(map[string]remote.Language, len(languages)),
		workflows:   make(map[string]*workflow.Graph, len(workflows)),
		workflowIDs: make(map[string]*workflow.Graph, len(workflows)),
	}
	for _, t := range types {
		ct := &contentType{ContentType: t, elements: make(map[string]remote.ElementDef, len(t.Elements))}
		for _, el := range t.Elements {
			ct.elements[el.Codename] = el
		}
		env.types[t.Codename] = ct
	}
	for _, c := range collections {
		env.collections[c.Codename] = c
	}
	for _, l := range languages {
		env.languages[l.Codename] = l
	}
	for _, w := range workflows {
		g := workflow.New(w)
		env.workflows[w.Codename] = g
		env.workflowIDs[w.ID] = g
	}

	r.log.Debug("target environment resolved",
		"types", len(env.types), "collections", len(env.collections),
		"languages", len(env.languages), "workflows", len(env.workflows))
	return env, nil
}

func (e *environment) contentType(codename string) (*contentType, error) {
	if t, ok := e.types[codename]; ok {
		return t, nil
	}
	return nil, &migration.NotFoundError{Kind: "content type", Key: codename}
}

func (e *environment) language(codename string) (remote.Language, error) {
	if l, ok := e.languages[codename]; ok {
		return l, nil
	}
	return remote.Language{}, &migration.NotFoundError{Kind: "language", Key: codename}
}

// collection returns a reference to the named collection, or nil for the
// empty name.
func (e *environment) collection(codename string) (*remote.Reference, error) {
	if codename == "" {
		return nil, nil
	}
	c, ok := e.collections[codename]
	if !ok {
		return nil, &migration.NotFoundError{Kind: "collection", Key: codename}
	}
	ref := remote.ByID(c.ID)
	return &ref, nil
}

func (e *environment) workflow(codename string) (*workflow.Graph, error) {
	if g, ok := e.workflows[codename]; ok {
		return g, nil
	}
	return nil, &migration.NotFoundError{Kind: "workflow", Key: codename}
}

func (t *contentType) element(codename string) (remote.ElementDef, error) {
	if el, ok := t.elements[codename]; ok {
		return el, nil
	}
	return remote.ElementDef{}, &migration.NotFoundError{Kind: "element", Key: codename, In: "content type " + t.Codename}
}
