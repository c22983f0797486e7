// Package idmap holds the run-scoped translation table between source
// identifiers and the identifiers of entities created in the target
// environment.
package idmap

import (
	"fmt"
	"sort"
	"sync"

	"github.com/steveyegge/ferry/internal/richtext"
)

// Kind is the entity kind of a mapping.
type Kind int

const (
	KindItem Kind = iota
	KindAsset
)

func (k Kind) String() string {
	switch k {
	case KindItem:
		return "item"
	case KindAsset:
		return "asset"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Entry maps one source entity to its target counterpart.
type Entry struct {
	Kind             Kind
	OriginalCodename string
	OriginalID       string // empty when the source id is unknown (archive imports)
	TargetID         string
	TargetCodename   string
}

// DuplicateMappingError reports an attempt to map a source entity to a second,
// different target. It indicates a logic defect in the caller.
type DuplicateMappingError struct {
	Kind     Kind
	Codename string
	Existing Entry
	Proposed Entry
}

func (e *DuplicateMappingError) Error() string {
	return fmt.Sprintf("duplicate %s mapping for %q: already mapped to %s, refusing %s",
		e.Kind, e.Codename, e.Existing.TargetID, e.Proposed.TargetID)
}

type key struct {
	kind Kind
	name string
}

// Table is append-only: an entry is never rewritten once recorded.
// It is safe for concurrent use.
type Table struct {
	mu         sync.RWMutex
	byCodename map[key]Entry
	byID       map[key]Entry
}

// New returns an empty table.
func New() *Table {
	return &Table{
		byCodename: make(map[key]Entry),
		byID:       make(map[key]Entry),
	}
}

// Record stores the mapping for (kind, originalCodename). Recording the same
// target again is a no-op; recording a different target fails with
// *DuplicateMappingError.
func (t *Table) Record(kind Kind, originalCodename, originalID, targetID, targetCodename string) error {
	if originalCodename == "" {
		return fmt.Errorf("record %s mapping: original codename is required", kind)
	}
	if targetID == "" {
		return fmt.Errorf("record %s mapping for %q: target id is required", kind, originalCodename)
	}
	e := Entry{
		Kind:             kind,
		OriginalCodename: originalCodename,
		OriginalID:       originalID,
		TargetID:         targetID,
		TargetCodename:   targetCodename,
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	k := key{kind, originalCodename}
	if existing, ok := t.byCodename[k]; ok {
		if existing.TargetID != targetID || existing.TargetCodename != targetCodename {
			return &DuplicateMappingError{Kind: kind, Codename: originalCodename, Existing: existing, Proposed: e}
		}
		if existing.OriginalID == "" && originalID != "" {
			existing.OriginalID = originalID
			t.byCodename[k] = existing
			t.byID[key{kind, originalID}] = existing
		}
		return nil
	}
	t.byCodename[k] = e
	if originalID != "" {
		t.byID[key{kind, originalID}] = e
	}
	return nil
}

// Resolve returns the entry recorded for (kind, originalCodename). A missing
// entry is an expected state: the entity was filtered out or not yet created.
func (t *Table) Resolve(kind Kind, originalCodename string) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.byCodename[key{kind, originalCodename}]
	return e, ok
}

// ResolveID returns the entry recorded for a source id.
func (t *Table) ResolveID(kind Kind, originalID string) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.byID[key{kind, originalID}]
	return e, ok
}

// TargetID resolves a codename, falling back to treating it as a source id.
func (t *Table) TargetID(kind Kind, codenameOrID string) (string, bool) {
	if codenameOrID == "" {
		return "", false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if e, ok := t.byCodename[key{kind, codenameOrID}]; ok {
		return e.TargetID, true
	}
	if e, ok := t.byID[key{kind, codenameOrID}]; ok {
		return e.TargetID, true
	}
	return "", false
}

// Len returns the number of entries of a kind.
func (t *Table) Len(kind Kind) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for k := range t.byCodename {
		if k.kind == kind {
			n++
		}
	}
	return n
}

// Entries returns a snapshot of the entries of a kind, ordered by codename.
func (t *Table) Entries(kind Kind) []Entry {
	t.mu.RLock()
	out := make([]Entry, 0, len(t.byCodename))
	for k, e := range t.byCodename {
		if k.kind == kind {
			out = append(out, e)
		}
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].OriginalCodename < out[j].OriginalCodename })
	return out
}

// RewriteRichText replaces every resolvable reference in markup with the
// target id, switching codename-keyed attributes to their id-keyed names.
// Unresolvable references and all other markup are left untouched, so applying
// it twice gives the same result as applying it once. Component markers are
// not touched; they are not cross-references.
func (t *Table) RewriteRichText(markup string) string {
	return richtext.Rewrite(markup, func(tag *richtext.Tag) {
		if tag.IsItemObject() {
			if tag.IsComponent() {
				return
			}
			t.rewriteAttr(tag, KindItem, richtext.AttrCodename, richtext.AttrID)
			t.rewriteAttr(tag, KindItem, richtext.AttrID, richtext.AttrID)
			return
		}
		t.rewriteAttr(tag, KindItem, richtext.AttrItemCodename, richtext.AttrItemID)
		t.rewriteAttr(tag, KindItem, richtext.AttrItemID, richtext.AttrItemID)
		if tag.Name == "img" {
			t.rewriteAttr(tag, KindAsset, richtext.AttrAssetCodename, richtext.AttrImageID)
			t.rewriteAttr(tag, KindAsset, richtext.AttrImageID, richtext.AttrImageID)
			return
		}
		t.rewriteAttr(tag, KindAsset, richtext.AttrAssetCodename, richtext.AttrAssetID)
		t.rewriteAttr(tag, KindAsset, richtext.AttrAssetID, richtext.AttrAssetID)
	})
}

func (t *Table) rewriteAttr(tag *richtext.Tag, kind Kind, from, to string) {
	v, ok := tag.Get(from)
	if !ok {
		return
	}
	var (
		target string
		found  bool
	)
	if from == to {
		// Already id-keyed: only a source id can match.
		var e Entry
		e, found = t.ResolveID(kind, v)
		target = e.TargetID
	} else {
		target, found = t.TargetID(kind, v)
	}
	if !found {
		return
	}
	if from == to {
		tag.Set(to, target)
		return
	}
	tag.Rename(from, to, target)
}
