// Package refs discovers the items and assets that a migration item references
// through linked-item fields, asset fields and rich-text markup.
//
// Extraction is a pure function of the element values. Two input shapes are
// supported: codename-keyed references (the neutral migration representation)
// and id-keyed references (content as read from an environment, before ids are
// translated to codenames).
package refs

import (
	"github.com/steveyegge/ferry/internal/migration"
	"github.com/steveyegge/ferry/internal/richtext"
)

// Shape selects which reference key is collected.
type Shape int

const (
	// ByCodename collects reference codenames.
	ByCodename Shape = iota
	// ByID collects reference ids.
	ByID
)

func (s Shape) String() string {
	if s == ByID {
		return "id"
	}
	return "codename"
}

// Extract returns the items and assets referenced by one item's elements.
//
// Components embedded in rich text are not cross-references and are left out;
// see Components. The key self (the item's own codename or id) is never part
// of the result. Taxonomy and multiple-choice values point at terms and
// options, not at items or assets, so they do not contribute.
func Extract(elements []migration.Element, shape Shape, self string) *migration.ReferencedData {
	out := migration.NewReferencedData()
	for _, el := range elements {
		switch v := el.Value.(type) {
		case migration.References:
			switch v.Kind {
			case migration.TypeModularContent, migration.TypeSubpages:
				for _, ref := range v.Refs {
					out.AddItem(refKey(ref, shape))
				}
			case migration.TypeAsset:
				for _, ref := range v.Refs {
					out.AddAsset(refKey(ref, shape))
				}
			}
		case migration.RichText:
			extractRichText(v.Markup, shape, out)
		}
	}
	delete(out.ItemCodenames, self)
	return out
}

// ExtractItem is Extract over a codename-keyed item.
func ExtractItem(item *migration.Item) *migration.ReferencedData {
	return Extract(item.Elements, ByCodename, item.System.Codename)
}

// ExtractAll merges the references of every item. Each item's reference to
// itself is dropped, but an item referenced by another item is kept.
func ExtractAll(items []migration.Item) *migration.ReferencedData {
	out := migration.NewReferencedData()
	for i := range items {
		out.Merge(ExtractItem(&items[i]))
	}
	return out
}

// Components returns the keys of components embedded in rich-text elements,
// deduplicated, in first-seen order.
func Components(elements []migration.Element, shape Shape) []string {
	seen := make(map[string]bool)
	var out []string
	for _, el := range elements {
		rt, ok := el.Value.(migration.RichText)
		if !ok {
			continue
		}
		richtext.Scan(rt.Markup, func(tag *richtext.Tag) {
			if !tag.IsComponent() {
				return
			}
			key := objectKey(tag, shape)
			if key != "" && !seen[key] {
				seen[key] = true
				out = append(out, key)
			}
		})
	}
	return out
}

func extractRichText(markup string, shape Shape, out *migration.ReferencedData) {
	richtext.Scan(markup, func(tag *richtext.Tag) {
		if tag.IsItemObject() {
			if !tag.IsComponent() {
				out.AddItem(objectKey(tag, shape))
			}
			return
		}
		if shape == ByID {
			if v, ok := tag.Get(richtext.AttrItemID); ok {
				out.AddItem(v)
			}
			if v, ok := tag.Get(richtext.AttrAssetID); ok {
				out.AddAsset(v)
			}
			if v, ok := tag.Get(richtext.AttrImageID); ok {
				out.AddAsset(v)
			}
			return
		}
		if v, ok := tag.Get(richtext.AttrItemCodename); ok {
			out.AddItem(v)
		}
		if v, ok := tag.Get(richtext.AttrAssetCodename); ok {
			out.AddAsset(v)
		}
	})
}

func objectKey(tag *richtext.Tag, shape Shape) string {
	attr := richtext.AttrCodename
	if shape == ByID {
		attr = richtext.AttrID
	}
	v, _ := tag.Get(attr)
	return v
}

func refKey(ref migration.Reference, shape Shape) string {
	if shape == ByID {
		return ref.ID
	}
	return ref.Codename
}
