// Package memrepo is an in-memory content environment implementing
// remote.Client. It enforces the same rules the real API does where the
// migration engine depends on them: unique codenames, element validation,
// locked published and archived variants, and declared workflow transitions.
//
// Failures can be injected per operation to exercise retry and isolation.
package memrepo

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/ferry/internal/remote"
	"github.com/steveyegge/ferry/internal/workflow"
)

// Application error codes returned by the repository.
const (
	CodeNotFound   = 100
	CodeValidation = 5
	CodeConflict   = 12
	CodeTransition = 218
)

// Seed is the environment structure a repository starts with.
type Seed struct {
	ContentTypes []remote.ContentType
	Collections  []remote.Collection
	Languages    []remote.Language
	Workflows    []remote.Workflow
}

// Call is one recorded client call.
type Call struct {
	Op   string
	Args []string
}

type variantKey struct {
	item     string
	language string
}

type file struct {
	name        string
	contentType string
	data        []byte
}

type injected struct {
	times int
	err   *remote.Error
}

// Repo is an in-memory environment. It is safe for concurrent use.
type Repo struct {
	mu sync.Mutex

	types       []remote.ContentType
	collections []remote.Collection
	languages   []remote.Language
	workflows   []remote.Workflow
	graphs      map[string]*workflow.Graph // by workflow id

	assets   map[string]*remote.Asset // by id
	files    map[string]file          // by file reference id
	items    map[string]*remote.ContentItem
	variants map[variantKey]*remote.Variant

	calls  []Call
	inject map[string][]*injected
	hook   func(Call)
}

var _ remote.Client = (*Repo)(nil)

// New creates a repository. Missing ids in the seed are generated.
func New(seed Seed) *Repo {
	r := &Repo{
		graphs:   make(map[string]*workflow.Graph),
		assets:   make(map[string]*remote.Asset),
		files:    make(map[string]file),
		items:    make(map[string]*remote.ContentItem),
		variants: make(map[variantKey]*remote.Variant),
		inject:   make(map[string][]*injected),
	}
	for _, t := range seed.ContentTypes {
		t.ID = orNewID(t.ID)
		els := make([]remote.ElementDef, len(t.Elements))
		for i, e := range t.Elements {
			e.ID = orNewID(e.ID)
			els[i] = e
		}
		t.Elements = els
		r.types = append(r.types, t)
	}
	for _, c := range seed.Collections {
		c.ID = orNewID(c.ID)
		r.collections = append(r.collections, c)
	}
	for _, l := range seed.Languages {
		l.ID = orNewID(l.ID)
		r.languages = append(r.languages, l)
	}
	for _, w := range seed.Workflows {
		w.ID = orNewID(w.ID)
		w.Steps = append([]remote.WorkflowStep(nil), w.Steps...)
		for i := range w.Steps {
			w.Steps[i].ID = orNewID(w.Steps[i].ID)
		}
		w.PublishedStep.ID = orNewID(w.PublishedStep.ID)
		w.ScheduledStep.ID = orNewID(w.ScheduledStep.ID)
		w.ArchivedStep.ID = orNewID(w.ArchivedStep.ID)
		r.workflows = append(r.workflows, w)
		r.graphs[w.ID] = workflow.New(w)
	}
	return r
}

func orNewID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

// DefaultWorkflow returns a typical workflow: draft -> review -> published,
// with review able to go back to draft.
func DefaultWorkflow() remote.Workflow {
	step := func(codename string, next ...string) remote.WorkflowStep {
		s := remote.WorkflowStep{Codename: codename, Name: codename}
		for _, n := range next {
			s.TransitionsTo = append(s.TransitionsTo, remote.Transition{Step: remote.ByCodename(n)})
		}
		return s
	}
	return remote.Workflow{
		Codename:      "default",
		Name:          "Default",
		Steps:         []remote.WorkflowStep{step("draft", "review", "archived"), step("review", "draft", "published", "scheduled")},
		PublishedStep: step("published"),
		ScheduledStep: step("scheduled"),
		ArchivedStep:  step("archived"),
	}
}

// Inject makes the next times calls of op fail with err. op is the Client
// method name, e.g. "CreateAsset".
func (r *Repo) Inject(op string, times int, err *remote.Error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inject[op] = append(r.inject[op], &injected{times: times, err: err})
}

// OnCall registers a hook invoked, with the lock held, on every call before it
// is applied. Hooks must not call back into the repository.
func (r *Repo) OnCall(fn func(Call)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hook = fn
}

// Calls returns the calls recorded so far.
func (r *Repo) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// CountCalls returns how many times op was called.
func (r *Repo) CountCalls(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// begin records a call and returns an injected failure, if any. Callers hold r.mu.
func (r *Repo) begin(ctx context.Context, op string, args ...string) error {
	if err := ctx.Err(); err != nil {
		return remote.TransportError(op, err)
	}
	c := Call{Op: op, Args: args}
	r.calls = append(r.calls, c)
	if r.hook != nil {
		r.hook(c)
	}
	queue := r.inject[op]
	for len(queue) > 0 {
		head := queue[0]
		if head.times <= 0 {
			queue = queue[1:]
			continue
		}
		head.times--
		r.inject[op] = queue
		e := *head.err
		if e.Op == "" {
			e.Op = op
		}
		return &e
	}
	r.inject[op] = queue
	return nil
}

func notFound(op, what, key string) *remote.Error {
	return remote.NewError(op, http.StatusNotFound, CodeNotFound, fmt.Sprintf("%s %q not found", what, key))
}

func rejected(op string, code int, format string, args ...any) *remote.Error {
	return remote.NewError(op, http.StatusBadRequest, code, fmt.Sprintf(format, args...))
}

func (r *Repo) ListContentTypes(ctx context.Context) ([]remote.ContentType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.begin(ctx, "ListContentTypes"); err != nil {
		return nil, err
	}
	return append([]remote.ContentType(nil), r.types...), nil
}

func (r *Repo) ListCollections(ctx context.Context) ([]remote.Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.begin(ctx, "ListCollections"); err != nil {
		return nil, err
	}
	return append([]remote.Collection(nil), r.collections...), nil
}

func (r *Repo) ListLanguages(ctx context.Context) ([]remote.Language, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.begin(ctx, "ListLanguages"); err != nil {
		return nil, err
	}
	return append([]remote.Language(nil), r.languages...), nil
}

func (r *Repo) ListWorkflows(ctx context.Context) ([]remote.Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.begin(ctx, "ListWorkflows"); err != nil {
		return nil, err
	}
	return append([]remote.Workflow(nil), r.workflows...), nil
}

// Lookups. Callers hold r.mu.

func (r *Repo) contentType(ref remote.Reference) *remote.ContentType {
	for i := range r.types {
		t := &r.types[i]
		if (ref.ID != "" && t.ID == ref.ID) || (ref.Codename != "" && t.Codename == ref.Codename) {
			return t
		}
	}
	return nil
}

func (r *Repo) collection(ref remote.Reference) *remote.Collection {
	for i := range r.collections {
		c := &r.collections[i]
		if (ref.ID != "" && c.ID == ref.ID) || (ref.Codename != "" && c.Codename == ref.Codename) {
			return c
		}
	}
	return nil
}

func (r *Repo) language(key string) *remote.Language {
	for i := range r.languages {
		l := &r.languages[i]
		if l.ID == key || l.Codename == key {
			return l
		}
	}
	return nil
}

func (r *Repo) workflowFor(t *remote.ContentType) (*remote.Workflow, *workflow.Graph) {
	for i := range r.workflows {
		w := &r.workflows[i]
		if w.AppliesTo(t.ID, t.Codename) {
			return w, r.graphs[w.ID]
		}
	}
	return nil, nil
}

func (r *Repo) itemByCodename(codename string) *remote.ContentItem {
	for _, it := range r.items {
		if it.Codename == codename {
			return it
		}
	}
	return nil
}

func (r *Repo) item(key string) *remote.ContentItem {
	if it, ok := r.items[key]; ok {
		return it
	}
	return r.itemByCodename(key)
}

func (r *Repo) assetBy(match func(*remote.Asset) bool) *remote.Asset {
	for _, a := range r.assets {
		if match(a) {
			return a
		}
	}
	return nil
}

func sortedAssets(m map[string]*remote.Asset) []remote.Asset {
	out := make([]remote.Asset, 0, len(m))
	for _, a := range m {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Codename < out[j].Codename })
	return out
}

func (r *Repo) ListAssets(ctx context.Context) ([]remote.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.begin(ctx, "ListAssets"); err != nil {
		return nil, err
	}
	return sortedAssets(r.assets), nil
}

func (r *Repo) GetAssetByCodename(ctx context.Context, codename string) (*remote.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	const op = "GetAssetByCodename"
	if err := r.begin(ctx, op, codename); err != nil {
		return nil, err
	}
	a := r.assetBy(func(a *remote.Asset) bool { return a.Codename == codename })
	if a == nil {
		return nil, notFound(op, "asset", codename)
	}
	cp := *a
	return &cp, nil
}

func (r *Repo) GetAssetByExternalID(ctx context.Context, externalID string) (*remote.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	const op = "GetAssetByExternalID"
	if err := r.begin(ctx, op, externalID); err != nil {
		return nil, err
	}
	a := r.assetBy(func(a *remote.Asset) bool { return externalID != "" && a.ExternalID == externalID })
	if a == nil {
		return nil, notFound(op, "asset with external id", externalID)
	}
	cp := *a
	return &cp, nil
}

func (r *Repo) UploadBinary(ctx context.Context, filename, contentType string, data []byte) (*remote.FileReference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.begin(ctx, "UploadBinary", filename, contentType); err != nil {
		return nil, err
	}
	id := uuid.NewString()
	r.files[id] = file{name: filename, contentType: contentType, data: append([]byte(nil), data...)}
	return &remote.FileReference{ID: id, Type: "internal"}, nil
}

func (r *Repo) validateAsset(op string, in remote.AssetUpsert) error {
	if in.Collection != nil && r.collection(*in.Collection) == nil {
		return rejected(op, CodeValidation, "collection %+v does not exist", *in.Collection)
	}
	for _, d := range in.Descriptions {
		key := d.Language.ID
		if key == "" {
			key = d.Language.Codename
		}
		if r.language(key) == nil {
			return rejected(op, CodeValidation, "language %q does not exist", key)
		}
	}
	if in.FileReference != nil {
		if _, ok := r.files[in.FileReference.ID]; !ok {
			return rejected(op, CodeValidation, "file reference %q does not exist", in.FileReference.ID)
		}
	}
	return nil
}

func (r *Repo) normalizeCollection(ref *remote.Reference) *remote.Reference {
	if ref == nil {
		return nil
	}
	c := r.collection(*ref)
	return &remote.Reference{ID: c.ID}
}

func (r *Repo) normalizeDescriptions(in []remote.AssetDescription) []remote.AssetDescription {
	out := make([]remote.AssetDescription, len(in))
	for i, d := range in {
		key := d.Language.ID
		if key == "" {
			key = d.Language.Codename
		}
		out[i] = remote.AssetDescription{Language: remote.ByID(r.language(key).ID), Description: d.Description}
	}
	return out
}

func (r *Repo) CreateAsset(ctx context.Context, in remote.AssetUpsert) (*remote.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	const op = "CreateAsset"
	if err := r.begin(ctx, op, in.Codename); err != nil {
		return nil, err
	}
	if in.FileReference == nil {
		return nil, rejected(op, CodeValidation, "file reference is required")
	}
	if err := r.validateAsset(op, in); err != nil {
		return nil, err
	}
	if in.Codename != "" && r.assetBy(func(a *remote.Asset) bool { return a.Codename == in.Codename }) != nil {
		return nil, rejected(op, CodeConflict, "asset codename %q is already used", in.Codename)
	}
	if in.ExternalID != "" && r.assetBy(func(a *remote.Asset) bool { return a.ExternalID == in.ExternalID }) != nil {
		return nil, rejected(op, CodeConflict, "asset external id %q is already used", in.ExternalID)
	}
	id := uuid.NewString()
	codename := in.Codename
	if codename == "" {
		codename = "asset_" + id[:8]
	}
	f := r.files[in.FileReference.ID]
	a := &remote.Asset{
		ID:            id,
		Codename:      codename,
		ExternalID:    in.ExternalID,
		Title:         in.Title,
		FileName:      f.name,
		Type:          f.contentType,
		Size:          int64(len(f.data)),
		URL:           "mem://assets/" + in.FileReference.ID,
		Collection:    r.normalizeCollection(in.Collection),
		Descriptions:  r.normalizeDescriptions(in.Descriptions),
		FileReference: in.FileReference,
		LastModified:  time.Now().UTC(),
	}
	r.assets[id] = a
	cp := *a
	return &cp, nil
}

func (r *Repo) UpdateAsset(ctx context.Context, id string, in remote.AssetUpsert) (*remote.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	const op = "UpdateAsset"
	if err := r.begin(ctx, op, id); err != nil {
		return nil, err
	}
	a, ok := r.assets[id]
	if !ok {
		return nil, notFound(op, "asset", id)
	}
	if err := r.validateAsset(op, in); err != nil {
		return nil, err
	}
	a.Title = in.Title
	a.Collection = r.normalizeCollection(in.Collection)
	a.Descriptions = r.normalizeDescriptions(in.Descriptions)
	if in.FileReference != nil {
		a.FileReference = in.FileReference
		f := r.files[in.FileReference.ID]
		a.URL = "mem://assets/" + in.FileReference.ID
		a.FileName = f.name
		a.Type = f.contentType
		a.Size = int64(len(f.data))
	}
	a.LastModified = time.Now().UTC()
	cp := *a
	return &cp, nil
}

func (r *Repo) DownloadBinary(ctx context.Context, asset *remote.Asset) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	const op = "DownloadBinary"
	if err := r.begin(ctx, op, asset.ID); err != nil {
		return nil, err
	}
	a, ok := r.assets[asset.ID]
	if !ok || a.FileReference == nil {
		return nil, notFound(op, "asset binary", asset.Codename)
	}
	return append([]byte(nil), r.files[a.FileReference.ID].data...), nil
}

func (r *Repo) ListItems(ctx context.Context) ([]remote.ContentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.begin(ctx, "ListItems"); err != nil {
		return nil, err
	}
	out := make([]remote.ContentItem, 0, len(r.items))
	for _, it := range r.items {
		out = append(out, *it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Codename < out[j].Codename })
	return out, nil
}

func (r *Repo) GetItemByCodename(ctx context.Context, codename string) (*remote.ContentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	const op = "GetItemByCodename"
	if err := r.begin(ctx, op, codename); err != nil {
		return nil, err
	}
	it := r.itemByCodename(codename)
	if it == nil {
		return nil, notFound(op, "item", codename)
	}
	cp := *it
	return &cp, nil
}

func (r *Repo) CreateItem(ctx context.Context, in remote.ItemUpsert) (*remote.ContentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	const op = "CreateItem"
	if err := r.begin(ctx, op, in.Codename); err != nil {
		return nil, err
	}
	t := r.contentType(in.Type)
	if t == nil {
		return nil, rejected(op, CodeValidation, "content type %+v does not exist", in.Type)
	}
	if in.Collection != nil && r.collection(*in.Collection) == nil {
		return nil, rejected(op, CodeValidation, "collection %+v does not exist", *in.Collection)
	}
	if in.Codename != "" && r.itemByCodename(in.Codename) != nil {
		return nil, rejected(op, CodeConflict, "item codename %q is already used", in.Codename)
	}
	id := uuid.NewString()
	codename := in.Codename
	if codename == "" {
		codename = "item_" + id[:8]
	}
	it := &remote.ContentItem{
		ID:           id,
		Codename:     codename,
		Name:         in.Name,
		ExternalID:   in.ExternalID,
		Type:         remote.ByID(t.ID),
		Collection:   r.normalizeCollection(in.Collection),
		LastModified: time.Now().UTC(),
	}
	r.items[id] = it
	cp := *it
	return &cp, nil
}

func (r *Repo) UpdateItem(ctx context.Context, id string, in remote.ItemUpsert) (*remote.ContentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	const op = "UpdateItem"
	if err := r.begin(ctx, op, id); err != nil {
		return nil, err
	}
	it, ok := r.items[id]
	if !ok {
		return nil, notFound(op, "item", id)
	}
	if in.Collection != nil && r.collection(*in.Collection) == nil {
		return nil, rejected(op, CodeValidation, "collection %+v does not exist", *in.Collection)
	}
	it.Name = in.Name
	if in.Collection != nil {
		it.Collection = r.normalizeCollection(in.Collection)
	}
	it.LastModified = time.Now().UTC()
	cp := *it
	return &cp, nil
}

func (r *Repo) ListVariants(ctx context.Context, languageID string) ([]remote.Variant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	const op = "ListVariants"
	if err := r.begin(ctx, op, languageID); err != nil {
		return nil, err
	}
	lang := r.language(languageID)
	if lang == nil {
		return nil, notFound(op, "language", languageID)
	}
	var out []remote.Variant
	for k, v := range r.variants {
		if k.language == lang.ID {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return r.items[out[i].Item.ID].Codename < r.items[out[j].Item.ID].Codename
	})
	return out, nil
}

// resolveVariant returns the item, language and current variant (nil when it
// does not exist yet). Callers hold r.mu.
func (r *Repo) resolveVariant(op, itemKey, languageKey string) (*remote.ContentItem, *remote.Language, *remote.Variant, error) {
	it := r.item(itemKey)
	if it == nil {
		return nil, nil, nil, notFound(op, "item", itemKey)
	}
	lang := r.language(languageKey)
	if lang == nil {
		return nil, nil, nil, notFound(op, "language", languageKey)
	}
	return it, lang, r.variants[variantKey{it.ID, lang.ID}], nil
}

func (r *Repo) GetVariant(ctx context.Context, itemID, languageID string) (*remote.Variant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	const op = "GetVariant"
	if err := r.begin(ctx, op, itemID, languageID); err != nil {
		return nil, err
	}
	_, _, v, err := r.resolveVariant(op, itemID, languageID)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, notFound(op, "variant", itemID+"/"+languageID)
	}
	cp := *v
	return &cp, nil
}

func (r *Repo) stepOf(v *remote.Variant) (*workflow.Graph, *workflow.Step) {
	g := r.graphs[v.Workflow.Workflow.ID]
	if g == nil {
		return nil, nil
	}
	s, _ := g.StepByID(v.Workflow.Step.ID)
	return g, s
}

func (r *Repo) normalizeElements(op string, t *remote.ContentType, in []remote.ElementValue) ([]remote.ElementValue, error) {
	out := make([]remote.ElementValue, 0, len(in))
	for _, ev := range in {
		var def *remote.ElementDef
		for i := range t.Elements {
			e := &t.Elements[i]
			if (ev.Element.ID != "" && e.ID == ev.Element.ID) || (ev.Element.Codename != "" && e.Codename == ev.Element.Codename) {
				def = e
				break
			}
		}
		if def == nil {
			return nil, rejected(op, CodeValidation, "element %+v does not exist on type %q", ev.Element, t.Codename)
		}
		comps := make([]remote.Component, 0, len(ev.Components))
		for _, c := range ev.Components {
			ct := r.contentType(c.Type)
			if ct == nil {
				return nil, rejected(op, CodeValidation, "component type %+v does not exist", c.Type)
			}
			els, err := r.normalizeElements(op, ct, c.Elements)
			if err != nil {
				return nil, err
			}
			comps = append(comps, remote.Component{ID: c.ID, Type: remote.ByID(ct.ID), Elements: els})
		}
		nv := remote.ElementValue{Element: remote.ByID(def.ID), Value: ev.Value}
		if len(comps) > 0 {
			nv.Components = comps
		}
		out = append(out, nv)
	}
	return out, nil
}

func (r *Repo) UpsertVariant(ctx context.Context, itemID, languageID string, elements []remote.ElementValue) (*remote.Variant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	const op = "UpsertVariant"
	if err := r.begin(ctx, op, itemID, languageID); err != nil {
		return nil, err
	}
	it, lang, v, err := r.resolveVariant(op, itemID, languageID)
	if err != nil {
		return nil, err
	}
	t := r.contentType(it.Type)
	if t == nil {
		return nil, rejected(op, CodeValidation, "content type of item %q does not exist", it.Codename)
	}
	els, err := r.normalizeElements(op, t, elements)
	if err != nil {
		return nil, err
	}

	if v == nil {
		w, g := r.workflowFor(t)
		if w == nil {
			return nil, rejected(op, CodeValidation, "no workflow applies to type %q", t.Codename)
		}
		first, _ := g.Step(g.First())
		v = &remote.Variant{
			Item:     remote.ByID(it.ID),
			Language: remote.ByID(lang.ID),
			Workflow: remote.WorkflowState{Workflow: remote.ByID(w.ID), Step: remote.ByID(first.ID)},
		}
		r.variants[variantKey{it.ID, lang.ID}] = v
	} else if _, s := r.stepOf(v); s != nil && s.Role != workflow.RoleStep {
		return nil, rejected(op, CodeTransition, "variant %s/%s is in step %q and cannot be edited", it.Codename, lang.Codename, s.Codename)
	}
	v.Elements = els
	v.LastModified = time.Now().UTC()
	cp := *v
	return &cp, nil
}

func (r *Repo) CreateNewVersion(ctx context.Context, itemID, languageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	const op = "CreateNewVersion"
	if err := r.begin(ctx, op, itemID, languageID); err != nil {
		return err
	}
	_, _, v, err := r.resolveVariant(op, itemID, languageID)
	if err != nil {
		return err
	}
	if v == nil {
		return notFound(op, "variant", itemID+"/"+languageID)
	}
	g, s := r.stepOf(v)
	if s == nil || s.Role != workflow.RolePublished {
		return rejected(op, CodeTransition, "only a published variant can get a new version")
	}
	first, _ := g.Step(g.First())
	v.Workflow.Step = remote.ByID(first.ID)
	v.Schedule = nil
	return nil
}

func (r *Repo) transition(op string, v *remote.Variant, to *workflow.Step) error {
	g, s := r.stepOf(v)
	if s == nil {
		return rejected(op, CodeTransition, "variant is in an unknown workflow step")
	}
	if !g.CanTransition(s.Codename, to.Codename) {
		return rejected(op, CodeTransition, "transition from %q to %q is not allowed", s.Codename, to.Codename)
	}
	v.Workflow.Step = remote.ByID(to.ID)
	if to.Role != workflow.RoleScheduled {
		v.Schedule = nil
	}
	return nil
}

func (r *Repo) ChangeWorkflowStep(ctx context.Context, itemID, languageID, workflowID, stepID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	const op = "ChangeWorkflowStep"
	if err := r.begin(ctx, op, itemID, languageID, stepID); err != nil {
		return err
	}
	_, _, v, err := r.resolveVariant(op, itemID, languageID)
	if err != nil {
		return err
	}
	if v == nil {
		return notFound(op, "variant", itemID+"/"+languageID)
	}
	if workflowID != "" && workflowID != v.Workflow.Workflow.ID {
		// Moving to another workflow is allowed into any of its ordinary steps,
		// but only from an ordinary step.
		target := r.graphs[workflowID]
		if target == nil {
			return notFound(op, "workflow", workflowID)
		}
		if _, cur := r.stepOf(v); cur == nil || cur.Role != workflow.RoleStep {
			return rejected(op, CodeTransition, "variant must be in an ordinary step to change workflow")
		}
		to, ok := target.StepByID(stepID)
		if !ok || to.Role != workflow.RoleStep {
			return rejected(op, CodeTransition, "step %q is not an ordinary step of workflow %q", stepID, target.Codename)
		}
		v.Workflow = remote.WorkflowState{Workflow: remote.ByID(workflowID), Step: remote.ByID(to.ID)}
		return nil
	}
	g, _ := r.stepOf(v)
	to, ok := g.StepByID(stepID)
	if !ok {
		return notFound(op, "workflow step", stepID)
	}
	if to.Role == workflow.RolePublished || to.Role == workflow.RoleScheduled {
		return rejected(op, CodeTransition, "use publish to move to step %q", to.Codename)
	}
	return r.transition(op, v, to)
}

func (r *Repo) CancelScheduledPublish(ctx context.Context, itemID, languageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	const op = "CancelScheduledPublish"
	if err := r.begin(ctx, op, itemID, languageID); err != nil {
		return err
	}
	_, _, v, err := r.resolveVariant(op, itemID, languageID)
	if err != nil {
		return err
	}
	if v == nil {
		return notFound(op, "variant", itemID+"/"+languageID)
	}
	g, s := r.stepOf(v)
	if s == nil || s.Role != workflow.RoleScheduled {
		return rejected(op, CodeTransition, "variant is not scheduled")
	}
	first, _ := g.Step(g.First())
	v.Workflow.Step = remote.ByID(first.ID)
	v.Schedule = nil
	return nil
}

func (r *Repo) Publish(ctx context.Context, itemID, languageID string, scheduledTo *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	const op = "Publish"
	if err := r.begin(ctx, op, itemID, languageID); err != nil {
		return err
	}
	_, _, v, err := r.resolveVariant(op, itemID, languageID)
	if err != nil {
		return err
	}
	if v == nil {
		return notFound(op, "variant", itemID+"/"+languageID)
	}
	g, _ := r.stepOf(v)
	target := g.Published()
	if scheduledTo != nil {
		target = g.Scheduled()
	}
	to, ok := g.Step(target)
	if !ok {
		return notFound(op, "workflow step", target)
	}
	if err := r.transition(op, v, to); err != nil {
		return err
	}
	if scheduledTo != nil {
		at := scheduledTo.UTC()
		v.Schedule = &remote.Schedule{PublishTime: &at}
	}
	return nil
}

// VariantStep returns the codename of the step a variant is in, for tests.
func (r *Repo) VariantStep(itemCodename, languageCodename string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it := r.itemByCodename(itemCodename)
	lang := r.language(languageCodename)
	if it == nil || lang == nil {
		return "", false
	}
	v := r.variants[variantKey{it.ID, lang.ID}]
	if v == nil {
		return "", false
	}
	_, s := r.stepOf(v)
	if s == nil {
		return "", false
	}
	return s.Codename, true
}
