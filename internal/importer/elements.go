package importer

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/ferry/internal/idmap"
	"github.com/steveyegge/ferry/internal/migration"
	"github.com/steveyegge/ferry/internal/remote"
	"github.com/steveyegge/ferry/internal/richtext"
)

// componentNamespace seeds component ids so that re-importing the same item
// produces the same ids.
var componentNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/steveyegge/ferry/component"))

// refValue is one entry of a reference list element value.
type refValue struct {
	ID       string `json:"id,omitempty"`
	Codename string `json:"codename,omitempty"`
}

// converter turns the elements of one item version into target element values.
type converter struct {
	r          *run
	owner      migration.ItemKey
	components map[migration.ItemKey]*migration.Item
}

func (r *run) convertElements(it *migration.Item, ct *contentType) ([]remote.ElementValue, error) {
	c := &converter{r: r, owner: it.Key(), components: r.components}
	return c.elements(ct, it.Elements, nil)
}

// elements converts a list of elements of type ct. stack holds the codenames
// of the components being expanded, outermost first.
func (c *converter) elements(ct *contentType, els []migration.Element, stack []string) ([]remote.ElementValue, error) {
	out := make([]remote.ElementValue, 0, len(els))
	for _, el := range els {
		def, err := ct.element(el.Codename)
		if err != nil {
			return nil, err
		}
		ev := remote.ElementValue{Element: remote.ByID(def.ID)}

		switch v := el.Value.(type) {
		case migration.Text:
			ev.Value, err = json.Marshal(v.Value)
		case migration.Number:
			ev.Value, err = json.Marshal(v.Value)
		case migration.DateTime:
			var s *string
			if v.Value != nil {
				f := v.Value.UTC().Format(time.RFC3339)
				s = &f
			}
			ev.Value, err = json.Marshal(s)
		case migration.URLSlug:
			ev.Value, err = json.Marshal(v.Value)
		case migration.Custom:
			ev.Value, err = json.Marshal(v.Value)
		case migration.RichText:
			var markup string
			markup, ev.Components, err = c.richText(v.Markup, el.Codename, stack)
			if err == nil {
				ev.Value, err = json.Marshal(markup)
			}
		case migration.References:
			ev.Value, err = json.Marshal(c.references(v, el.Codename))
		default:
			err = fmt.Errorf("unsupported value %T", el.Value)
		}
		if err != nil {
			return nil, fmt.Errorf("element %q: %w", el.Codename, err)
		}
		out = append(out, ev)
	}
	return out, nil
}

// references resolves linked items and assets to target ids. Unresolved
// references keep their codename and produce a warning. Taxonomy terms and
// multiple choice options are matched by codename in the target.
func (c *converter) references(v migration.References, element string) []refValue {
	out := make([]refValue, 0, len(v.Refs))
	for _, ref := range v.Refs {
		key := ref.Key()
		if key == "" {
			continue
		}
		var kind idmap.Kind
		switch v.Kind {
		case migration.TypeModularContent, migration.TypeSubpages:
			kind = idmap.KindItem
		case migration.TypeAsset:
			kind = idmap.KindAsset
		default:
			out = append(out, refValue{Codename: key})
			continue
		}
		if id, ok := c.r.table.TargetID(kind, key); ok {
			out = append(out, refValue{ID: id})
			continue
		}
		c.r.warnf("%s: element %q references %s %q which is not in the target", c.owner, element, kind, key)
		out = append(out, refValue{Codename: key})
	}
	return out
}

// richText replaces component markers with inline components and rewrites
// item and asset references to target ids.
func (c *converter) richText(markup, element string, stack []string) (string, []remote.Component, error) {
	var (
		comps    []remote.Component
		ids      = make(map[string]string)
		firstErr error
	)
	markup = richtext.Rewrite(markup, func(tag *richtext.Tag) {
		if firstErr != nil || !tag.IsComponent() {
			return
		}
		codename, ok := tag.Get(richtext.AttrCodename)
		if !ok {
			return
		}
		id, seen := ids[codename]
		if !seen {
			comp, err := c.component(codename, element, stack)
			if err != nil {
				firstErr = err
				return
			}
			id = comp.ID
			ids[codename] = id
			comps = append(comps, comp)
		}
		tag.Set(richtext.AttrType, "component")
		tag.Remove(richtext.AttrRel)
		tag.Rename(richtext.AttrCodename, richtext.AttrID, id)
	})
	if firstErr != nil {
		return "", nil, firstErr
	}

	markup = c.r.table.RewriteRichText(markup)
	richtext.Scan(markup, func(tag *richtext.Tag) {
		if tag.IsComponent() {
			return
		}
		if v, ok := tag.Get(richtext.AttrCodename); ok && tag.IsItemObject() {
			c.r.warnf("%s: rich text %q embeds item %q which is not in the target", c.owner, element, v)
		}
		if v, ok := tag.Get(richtext.AttrItemCodename); ok {
			c.r.warnf("%s: rich text %q links to item %q which is not in the target", c.owner, element, v)
		}
		if v, ok := tag.Get(richtext.AttrAssetCodename); ok {
			c.r.warnf("%s: rich text %q references asset %q which is not in the target", c.owner, element, v)
		}
	})
	return markup, comps, nil
}

// component builds the inline component for a marker from the component item
// of the same language.
func (c *converter) component(codename, element string, stack []string) (remote.Component, error) {
	for _, s := range stack {
		if s == codename {
			return remote.Component{}, fmt.Errorf("component %q embeds itself (%s)", codename, strings.Join(append(stack, codename), " -> "))
		}
	}
	key := migration.ItemKey{Codename: codename, Language: c.owner.Language}
	item, ok := c.components[key]
	if !ok {
		return remote.Component{}, &migration.NotFoundError{Kind: "component", Key: key.String(), In: "item " + c.owner.String()}
	}
	ct, err := c.r.env.contentType(item.System.Type)
	if err != nil {
		return remote.Component{}, err
	}
	path := append(stack[:len(stack):len(stack)], codename)
	els, err := c.elements(ct, item.Elements, path)
	if err != nil {
		return remote.Component{}, fmt.Errorf("component %q: %w", codename, err)
	}
	return remote.Component{
		ID:       componentID(c.owner, element, path),
		Type:     remote.ByID(ct.ID),
		Elements: els,
	}, nil
}

func componentID(owner migration.ItemKey, element string, path []string) string {
	name := owner.Codename + "/" + owner.Language + "/" + element + "/" + strings.Join(path, "/")
	return uuid.NewSHA1(componentNamespace, []byte(name)).String()
}
