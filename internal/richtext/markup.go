// Package richtext isolates the rich-text markup dialect: which tags carry
// references, which attributes hold them, and how to rewrite them in place.
//
// The scan is a narrow text-pattern pass over the opening tags of interest.
// Everything outside the matched attributes is copied through byte for byte.
//
// Codename-keyed markers (neutral representation):
//
//	<object type="application/kenticocloud" data-type="item" data-codename="about_us"></object>
//	<object type="application/kenticocloud" data-type="item" data-rel="component" data-codename="cta_1"></object>
//	<a data-item-codename="about_us">...</a>
//	<a data-asset-codename="brochure_pdf">...</a>
//	<figure data-asset-codename="hero_jpg"><img src="#" data-asset-codename="hero_jpg"></figure>
//
// Id-keyed markers (environment representation):
//
//	<object type="application/kenticocloud" data-type="item" data-id="..."></object>
//	<object type="application/kenticocloud" data-type="component" data-id="..."></object>
//	<a data-item-id="...">...</a>
//	<a data-asset-id="...">...</a>
//	<figure data-asset-id="..."><img src="#" data-image-id="..."></figure>
package richtext

import (
	"regexp"
	"strings"
)

// Attribute names that carry references.
const (
	AttrCodename      = "data-codename"
	AttrID            = "data-id"
	AttrItemCodename  = "data-item-codename"
	AttrItemID        = "data-item-id"
	AttrAssetCodename = "data-asset-codename"
	AttrAssetID       = "data-asset-id"
	AttrImageID       = "data-image-id"
	AttrType          = "data-type"
	AttrRel           = "data-rel"
)

// ObjectType is the type attribute of embedded objects.
const ObjectType = "application/kenticocloud"

var (
	tagRe  = regexp.MustCompile(`<(object|a|figure|img)\b[^>]*>`)
	attrRe = regexp.MustCompile(`(\s+)([a-zA-Z_:][-a-zA-Z0-9_:.]*)="([^"]*)"`)
)

// Attr is one name="value" attribute of a tag.
type Attr struct {
	Name  string
	Value string

	origName  string
	origValue string
	removed   bool
}

// Tag is a parsed opening tag. Mutations made through Set, Rename and Remove
// are applied by Rewrite; everything else in the tag is preserved.
type Tag struct {
	Name  string
	attrs []*Attr
	added []*Attr
}

// Get returns the value of the named attribute.
func (t *Tag) Get(name string) (string, bool) {
	for _, a := range t.attrs {
		if a.Name == name && !a.removed {
			return a.Value, true
		}
	}
	for _, a := range t.added {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Has reports whether the tag carries the named attribute.
func (t *Tag) Has(name string) bool {
	_, ok := t.Get(name)
	return ok
}

// Set assigns an attribute value, appending the attribute if absent.
func (t *Tag) Set(name, value string) {
	for _, a := range t.attrs {
		if a.Name == name && !a.removed {
			a.Value = value
			return
		}
	}
	for _, a := range t.added {
		if a.Name == name {
			a.Value = value
			return
		}
	}
	t.added = append(t.added, &Attr{Name: name, Value: value})
}

// Rename renames an attribute and assigns its new value in one step. When the
// tag already carries newName, that attribute takes the value and oldName is
// dropped, so a tag never ends up with the same attribute twice.
func (t *Tag) Rename(oldName, newName, value string) {
	var src *Attr
	for _, a := range t.attrs {
		if a.Name == oldName && !a.removed {
			src = a
			break
		}
	}
	if src == nil {
		return
	}
	if oldName != newName {
		for _, a := range t.attrs {
			if a != src && a.Name == newName && !a.removed {
				a.Value = value
				src.removed = true
				return
			}
		}
		for _, a := range t.added {
			if a.Name == newName {
				a.Value = value
				src.removed = true
				return
			}
		}
	}
	src.Name = newName
	src.Value = value
}

// Remove drops an attribute.
func (t *Tag) Remove(name string) {
	for _, a := range t.attrs {
		if a.Name == name {
			a.removed = true
		}
	}
}

// IsItemObject reports whether the tag is an embedded item object (linked item
// or component).
func (t *Tag) IsItemObject() bool {
	if t.Name != "object" {
		return false
	}
	typ, _ := t.Get("type")
	if typ != ObjectType {
		return false
	}
	dt, _ := t.Get(AttrType)
	return dt == "item" || dt == "component"
}

// IsComponent reports whether an embedded object is a component rather than a
// link to a standalone item.
func (t *Tag) IsComponent() bool {
	if !t.IsItemObject() {
		return false
	}
	dt, _ := t.Get(AttrType)
	rel, _ := t.Get(AttrRel)
	return dt == "component" || rel == "component"
}

func (t *Tag) changed() bool {
	if len(t.added) > 0 {
		return true
	}
	for _, a := range t.attrs {
		if a.removed || a.Name != a.origName || a.Value != a.origValue {
			return true
		}
	}
	return false
}

func parseTag(raw string, name string) *Tag {
	t := &Tag{Name: name}
	for _, m := range attrRe.FindAllStringSubmatch(raw, -1) {
		t.attrs = append(t.attrs, &Attr{Name: m[2], Value: m[3], origName: m[2], origValue: m[3]})
	}
	return t
}

// Scan calls fn for every reference-capable opening tag in markup.
func Scan(markup string, fn func(t *Tag)) {
	for _, m := range tagRe.FindAllStringSubmatch(markup, -1) {
		fn(parseTag(m[0], m[1]))
	}
}

// Rewrite calls fn for every reference-capable opening tag and applies the
// mutations fn makes. Tags fn does not change are copied verbatim.
func Rewrite(markup string, fn func(t *Tag)) string {
	return tagRe.ReplaceAllStringFunc(markup, func(raw string) string {
		name := tagRe.FindStringSubmatch(raw)[1]
		t := parseTag(raw, name)
		fn(t)
		if !t.changed() {
			return raw
		}
		return render(raw, t)
	})
}

func render(raw string, t *Tag) string {
	i := 0
	out := attrRe.ReplaceAllStringFunc(raw, func(match string) string {
		a := t.attrs[i]
		i++
		if a.removed {
			return ""
		}
		ws := match[:len(match)-len(strings.TrimLeft(match, " \t\r\n"))]
		return ws + a.Name + `="` + a.Value + `"`
	})
	if len(t.added) == 0 {
		return out
	}
	var extra strings.Builder
	for _, a := range t.added {
		extra.WriteString(" " + a.Name + `="` + a.Value + `"`)
	}
	if strings.HasSuffix(out, "/>") {
		return strings.TrimRight(strings.TrimSuffix(out, "/>"), " ") + extra.String() + " />"
	}
	return strings.TrimSuffix(out, ">") + extra.String() + ">"
}
