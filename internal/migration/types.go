// Package migration defines the neutral representation of migrated content:
// items with their language variants, assets, and the references between them.
//
// Values in this package are produced once by an export and consumed once by an
// import. Nothing here mutates after construction.
package migration

import (
	"fmt"
	"sort"
	"time"
)

// Item is one language version of a content item.
// Its identity key is (System.Codename, System.Language).
type Item struct {
	System   System    `json:"system"`
	Elements []Element `json:"elements"`
}

// System holds the item metadata. Every reference is a codename so the item can
// be matched across environments.
type System struct {
	Codename     string     `json:"codename"`
	Name         string     `json:"name"`
	Language     string     `json:"language"`
	Type         string     `json:"type"`
	Collection   string     `json:"collection,omitempty"`
	Workflow     string     `json:"workflow,omitempty"`
	WorkflowStep string     `json:"workflow_step,omitempty"`
	ScheduledTo  *time.Time `json:"scheduled_to,omitempty"` // only meaningful for the scheduled step
}

// Key returns the identity key of the item version.
func (i *Item) Key() ItemKey {
	return ItemKey{Codename: i.System.Codename, Language: i.System.Language}
}

// IsComponent reports whether the item is a rich-text component. Components
// have no workflow step of their own and are inlined into the items that embed
// them instead of being imported as standalone items.
func (i *Item) IsComponent() bool {
	return i.System.WorkflowStep == ""
}

// Element returns the element with the given codename, or nil.
func (i *Item) Element(codename string) *Element {
	for idx := range i.Elements {
		if i.Elements[idx].Codename == codename {
			return &i.Elements[idx]
		}
	}
	return nil
}

// ItemKey identifies one language version of an item.
type ItemKey struct {
	Codename string
	Language string
}

func (k ItemKey) String() string {
	return k.Codename + " (" + k.Language + ")"
}

// Asset is a binary file plus its metadata.
// Binary may be nil when only metadata is being compared or updated.
type Asset struct {
	Codename        string             `json:"codename"`
	Filename        string             `json:"filename"`
	Title           string             `json:"title,omitempty"`
	ExternalID      string             `json:"external_id,omitempty"`
	Collection      string             `json:"collection,omitempty"`
	Descriptions    []AssetDescription `json:"descriptions,omitempty"`
	ArchiveFilename string             `json:"archive_filename"`
	Binary          []byte             `json:"-"`
}

// AssetDescription is the per-language description of an asset.
type AssetDescription struct {
	Language    string `json:"language"`
	Description string `json:"description"`
}

// Reference is a weak pointer to another item or asset by codename. The ID is
// only populated in the id-keyed shape produced by a source environment before
// codenames have been resolved.
type Reference struct {
	Codename string `json:"codename,omitempty"`
	ID       string `json:"id,omitempty"`
}

// Key returns the codename, falling back to the id for id-keyed references.
func (r Reference) Key() string {
	if r.Codename != "" {
		return r.Codename
	}
	return r.ID
}

// Data is the full set of content moved by one migration.
type Data struct {
	Items  []Item  `json:"items"`
	Assets []Asset `json:"assets"`
}

// ReferencedData is the set of item and asset codenames referenced by some
// content. It is derived on demand and never persisted.
type ReferencedData struct {
	ItemCodenames  map[string]struct{}
	AssetCodenames map[string]struct{}
}

// NewReferencedData returns an empty set.
func NewReferencedData() *ReferencedData {
	return &ReferencedData{
		ItemCodenames:  make(map[string]struct{}),
		AssetCodenames: make(map[string]struct{}),
	}
}

// AddItem records an item codename. Empty values are ignored.
func (r *ReferencedData) AddItem(codename string) {
	if codename != "" {
		r.ItemCodenames[codename] = struct{}{}
	}
}

// AddAsset records an asset codename. Empty values are ignored.
func (r *ReferencedData) AddAsset(codename string) {
	if codename != "" {
		r.AssetCodenames[codename] = struct{}{}
	}
}

// Merge adds every codename of other to r.
func (r *ReferencedData) Merge(other *ReferencedData) {
	if other == nil {
		return
	}
	for c := range other.ItemCodenames {
		r.ItemCodenames[c] = struct{}{}
	}
	for c := range other.AssetCodenames {
		r.AssetCodenames[c] = struct{}{}
	}
}

// HasItem reports whether the item codename is in the set.
func (r *ReferencedData) HasItem(codename string) bool {
	_, ok := r.ItemCodenames[codename]
	return ok
}

// HasAsset reports whether the asset codename is in the set.
func (r *ReferencedData) HasAsset(codename string) bool {
	_, ok := r.AssetCodenames[codename]
	return ok
}

// Items returns the item codenames, sorted.
func (r *ReferencedData) Items() []string {
	return sortedKeys(r.ItemCodenames)
}

// Assets returns the asset codenames, sorted.
func (r *ReferencedData) Assets() []string {
	return sortedKeys(r.AssetCodenames)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// NotFoundError reports a missing content type, element, workflow step,
// language, collection, or archive entry.
type NotFoundError struct {
	Kind string // e.g. "content type", "element", "archive entry"
	Key  string
	In   string // optional scope, e.g. the content type of a missing element
}

func (e *NotFoundError) Error() string {
	if e.In != "" {
		return fmt.Sprintf("%s %q not found in %s", e.Kind, e.Key, e.In)
	}
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}
