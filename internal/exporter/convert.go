package exporter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/steveyegge/ferry/internal/migration"
	"github.com/steveyegge/ferry/internal/remote"
	"github.com/steveyegge/ferry/internal/richtext"
	"github.com/steveyegge/ferry/internal/workflow"
)

// sourceVariant is a selected variant with its elements decoded, still
// id-keyed.
type sourceVariant struct {
	variant    *remote.Variant
	item       *remote.ContentItem
	typ        *remote.ContentType
	language   remote.Language
	elements   []migration.Element
	components []sourceComponent
}

// sourceComponent is a rich-text component of a variant.
type sourceComponent struct {
	id       string
	typ      *remote.ContentType
	elements []migration.Element
	nested   []sourceComponent
}

func (sv *sourceVariant) label() string {
	return fmt.Sprintf("%s (%s)", sv.item.Codename, sv.language.Codename)
}

// references returns the ids of the items and assets the variant references.
func (sv *sourceVariant) references() *migration.ReferencedData {
	return refsOf(sv.elements, sv.components, sv.item.ID)
}

func (x *export) decode(key variantKey, v *remote.Variant) (*sourceVariant, error) {
	it, ok := x.src.items[key.item]
	if !ok {
		return nil, &migration.NotFoundError{Kind: "item", Key: key.item}
	}
	t, ok := x.src.typeOf(it.Type)
	if !ok {
		return nil, &migration.NotFoundError{Kind: "content type", Key: it.Type.ID, In: "item " + it.Codename}
	}
	lang, ok := x.src.languages[key.language]
	if !ok {
		return nil, &migration.NotFoundError{Kind: "language", Key: key.language}
	}
	sv := &sourceVariant{variant: v, item: it, typ: t, language: lang}
	var err error
	sv.elements, sv.components, err = x.decodeElements(sv.label(), t, v.Elements)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", sv.label(), err)
	}
	return sv, nil
}

// decodeElements decodes element values of type t. Values of elements the type
// no longer declares, and of types that carry no content, are dropped.
func (x *export) decodeElements(label string, t *remote.ContentType, values []remote.ElementValue) ([]migration.Element, []sourceComponent, error) {
	var (
		elements   []migration.Element
		components []sourceComponent
	)
	for _, ev := range values {
		def, ok := findElement(t, ev.Element)
		if !ok {
			x.warnf("%s: dropping value of element %s not declared on type %q", label, ev.Element.ID, t.Codename)
			continue
		}
		if !migration.ElementType(def.Type).IsKnown() {
			x.log.Debug("skipping element without content", "element", def.Codename, "type", def.Type)
			continue
		}
		el, err := decodeElement(def, ev.Value)
		if err != nil {
			return nil, nil, err
		}
		elements = append(elements, el)

		for _, c := range ev.Components {
			ct, ok := x.src.typeOf(c.Type)
			if !ok {
				return nil, nil, &migration.NotFoundError{Kind: "content type", Key: c.Type.ID, In: "component " + c.ID}
			}
			els, nested, err := x.decodeElements(label, ct, c.Elements)
			if err != nil {
				return nil, nil, err
			}
			components = append(components, sourceComponent{id: c.ID, typ: ct, elements: els, nested: nested})
		}
	}
	return elements, components, nil
}

func findElement(t *remote.ContentType, ref remote.Reference) (remote.ElementDef, bool) {
	for _, def := range t.Elements {
		if (ref.ID != "" && def.ID == ref.ID) || (ref.Codename != "" && def.Codename == ref.Codename) {
			return def, true
		}
	}
	return remote.ElementDef{}, false
}

// decodeElement decodes a raw API value through the element's JSON form.
func decodeElement(def remote.ElementDef, raw json.RawMessage) (migration.Element, error) {
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	doc, err := json.Marshal(struct {
		Codename string          `json:"codename"`
		Type     string          `json:"type"`
		Value    json.RawMessage `json:"value"`
	}{def.Codename, def.Type, raw})
	if err != nil {
		return migration.Element{}, err
	}
	var el migration.Element
	if err := json.Unmarshal(doc, &el); err != nil {
		return migration.Element{}, err
	}
	return el, nil
}

// translate converts a selected variant and its components to codename-keyed
// migration items. The variant comes first.
func (x *export) translate(sv *sourceVariant) []migration.Item {
	sys := migration.System{
		Codename:   sv.item.Codename,
		Name:       sv.item.Name,
		Language:   sv.language.Codename,
		Type:       sv.typ.Codename,
		Collection: x.src.collectionCodename(sv.item.Collection),
	}
	state := sv.variant.Workflow
	if g, ok := x.src.workflowOf(state.Workflow); ok {
		sys.Workflow = g.Codename
		if step, ok := g.Resolve(state.Step); ok {
			sys.WorkflowStep = step.Codename
			if step.Role == workflow.RoleScheduled && sv.variant.Schedule != nil {
				sys.ScheduledTo = sv.variant.Schedule.PublishTime
			}
		}
	}
	if sys.WorkflowStep == "" {
		x.warnf("%s: workflow step could not be resolved, exporting in the first step", sv.label())
		sys.Workflow, sys.WorkflowStep = x.fallbackStep()
	}

	out := []migration.Item{{System: sys, Elements: x.translateElements(sv.label(), sv.elements)}}
	seen := make(map[string]bool)
	var addComponents func([]sourceComponent)
	addComponents = func(comps []sourceComponent) {
		for _, c := range comps {
			codename := componentCodename(c.id)
			if seen[codename] {
				continue
			}
			seen[codename] = true
			out = append(out, migration.Item{
				System: migration.System{
					Codename: codename,
					Name:     codename,
					Language: sv.language.Codename,
					Type:     c.typ.Codename,
				},
				Elements: x.translateElements(sv.label(), c.elements),
			})
			addComponents(c.nested)
		}
	}
	addComponents(sv.components)
	return out
}

// fallbackStep returns the first step of the first workflow, by codename.
func (x *export) fallbackStep() (string, string) {
	var best *workflow.Graph
	for _, g := range x.src.workflows {
		if best == nil || g.Codename < best.Codename {
			best = g
		}
	}
	if best == nil {
		return "", ""
	}
	return best.Codename, best.First()
}

func (x *export) translateElements(label string, elements []migration.Element) []migration.Element {
	out := make([]migration.Element, 0, len(elements))
	for _, el := range elements {
		switch v := el.Value.(type) {
		case migration.References:
			el.Value = x.translateRefs(label, el.Codename, v)
		case migration.RichText:
			el.Value = migration.RichText{Markup: x.translateRichText(label, el.Codename, v.Markup)}
		}
		out = append(out, el)
	}
	return out
}

func (x *export) translateRefs(label, element string, v migration.References) migration.References {
	var lookup func(string) (string, bool)
	switch v.Kind {
	case migration.TypeModularContent, migration.TypeSubpages:
		lookup = x.src.itemCodename
	case migration.TypeAsset:
		lookup = x.src.assetCodename
	default:
		// Taxonomy terms and options are matched by codename as returned.
		return v
	}
	refs := make([]migration.Reference, 0, len(v.Refs))
	for _, ref := range v.Refs {
		if ref.ID == "" {
			refs = append(refs, ref)
			continue
		}
		if c, ok := lookup(ref.ID); ok {
			refs = append(refs, migration.Reference{Codename: c})
			continue
		}
		x.warnf("%s: element %q references %s %s which does not exist in the source", label, element, v.Kind, ref.ID)
		refs = append(refs, ref)
	}
	return migration.References{Kind: v.Kind, Refs: refs}
}

// translateRichText turns id-keyed markers into codename markers. Component
// objects become component markers named after the component id.
func (x *export) translateRichText(label, element, markup string) string {
	rename := func(tag *richtext.Tag, from, to string, lookup func(string) (string, bool)) {
		id, ok := tag.Get(from)
		if !ok {
			return
		}
		if c, ok := lookup(id); ok {
			tag.Rename(from, to, c)
			return
		}
		x.warnf("%s: rich text %q references %s which does not exist in the source", label, element, id)
	}
	return richtext.Rewrite(markup, func(tag *richtext.Tag) {
		if tag.IsItemObject() {
			if tag.IsComponent() {
				if id, ok := tag.Get(richtext.AttrID); ok {
					tag.Set(richtext.AttrType, "item")
					tag.Set(richtext.AttrRel, "component")
					tag.Rename(richtext.AttrID, richtext.AttrCodename, componentCodename(id))
				}
				return
			}
			rename(tag, richtext.AttrID, richtext.AttrCodename, x.src.itemCodename)
			return
		}
		rename(tag, richtext.AttrItemID, richtext.AttrItemCodename, x.src.itemCodename)
		rename(tag, richtext.AttrAssetID, richtext.AttrAssetCodename, x.src.assetCodename)
		rename(tag, richtext.AttrImageID, richtext.AttrAssetCodename, x.src.assetCodename)
	})
}

// componentCodename names the component item exported for a component id.
func componentCodename(id string) string {
	return "component_" + strings.ReplaceAll(strings.ToLower(id), "-", "_")
}
