package migration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ElementType is the wire name of an element's value type.
type ElementType string

// Element types
const (
	TypeText           ElementType = "text"
	TypeNumber         ElementType = "number"
	TypeDateTime       ElementType = "date_time"
	TypeRichText       ElementType = "rich_text"
	TypeAsset          ElementType = "asset"
	TypeModularContent ElementType = "modular_content"
	TypeSubpages       ElementType = "subpages"
	TypeTaxonomy       ElementType = "taxonomy"
	TypeMultipleChoice ElementType = "multiple_choice"
	TypeURLSlug        ElementType = "url_slug"
	TypeCustom         ElementType = "custom"
)

// IsKnown reports whether t is an element type that carries content. Guidelines
// and content type snippets do not.
func (t ElementType) IsKnown() bool {
	switch t {
	case TypeText, TypeNumber, TypeDateTime, TypeRichText, TypeURLSlug, TypeCustom:
		return true
	}
	return t.IsReferenceList()
}

// IsReferenceList reports whether values of this type are lists of references.
func (t ElementType) IsReferenceList() bool {
	switch t {
	case TypeAsset, TypeModularContent, TypeSubpages, TypeTaxonomy, TypeMultipleChoice:
		return true
	}
	return false
}

// Element is one field value of an item.
type Element struct {
	Codename string
	Value    Value
}

// Type returns the element's type, or "" for an element without a value.
func (e Element) Type() ElementType {
	if e.Value == nil {
		return ""
	}
	return e.Value.Type()
}

// Value is the closed set of element values. Switch on the concrete type:
//
//	switch v := el.Value.(type) {
//	case Text, Number, DateTime, URLSlug, Custom:
//	case RichText:
//	case References:
//	}
type Value interface {
	Type() ElementType
	isValue()
}

// Text is a plain text value.
type Text struct{ Value *string }

// Number is a numeric value.
type Number struct{ Value *float64 }

// DateTime is a timestamp value.
type DateTime struct{ Value *time.Time }

// URLSlug is a URL slug value.
type URLSlug struct{ Value string }

// Custom is the opaque value of a custom element.
type Custom struct{ Value string }

// RichText is rich-text markup carrying embedded reference markers.
type RichText struct{ Markup string }

// References is a list of references. Kind is one of the reference-list types.
type References struct {
	Kind ElementType
	Refs []Reference
}

func (Text) Type() ElementType         { return TypeText }
func (Number) Type() ElementType       { return TypeNumber }
func (DateTime) Type() ElementType     { return TypeDateTime }
func (URLSlug) Type() ElementType      { return TypeURLSlug }
func (Custom) Type() ElementType       { return TypeCustom }
func (RichText) Type() ElementType     { return TypeRichText }
func (r References) Type() ElementType { return r.Kind }

func (Text) isValue()       {}
func (Number) isValue()     {}
func (DateTime) isValue()   {}
func (URLSlug) isValue()    {}
func (Custom) isValue()     {}
func (RichText) isValue()   {}
func (References) isValue() {}

// Codenames returns the non-empty reference keys in order.
func (r References) Codenames() []string {
	out := make([]string, 0, len(r.Refs))
	for _, ref := range r.Refs {
		if k := ref.Key(); k != "" {
			out = append(out, k)
		}
	}
	return out
}

type elementJSON struct {
	Codename string          `json:"codename"`
	Type     ElementType     `json:"type"`
	Value    json.RawMessage `json:"value"`
}

// MarshalJSON encodes the element as {codename, type, value}.
func (e Element) MarshalJSON() ([]byte, error) {
	var v interface{}
	switch val := e.Value.(type) {
	case nil:
		return nil, fmt.Errorf("element %q has no value", e.Codename)
	case Text:
		v = val.Value
	case Number:
		v = val.Value
	case DateTime:
		if val.Value != nil {
			v = val.Value.UTC().Format(time.RFC3339)
		}
	case URLSlug:
		v = val.Value
	case Custom:
		v = val.Value
	case RichText:
		v = val.Markup
	case References:
		refs := val.Refs
		if refs == nil {
			refs = []Reference{}
		}
		v = refs
	default:
		return nil, fmt.Errorf("element %q: unsupported value %T", e.Codename, e.Value)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("element %q: %w", e.Codename, err)
	}
	return json.Marshal(elementJSON{Codename: e.Codename, Type: e.Type(), Value: raw})
}

// UnmarshalJSON decodes {codename, type, value}, dispatching on type.
func (e *Element) UnmarshalJSON(data []byte) error {
	var raw elementJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Codename = raw.Codename
	isNull := len(raw.Value) == 0 || bytes.Equal(raw.Value, []byte("null"))

	switch raw.Type {
	case TypeText:
		var s *string
		if !isNull {
			if err := json.Unmarshal(raw.Value, &s); err != nil {
				return fmt.Errorf("element %q: %w", raw.Codename, err)
			}
		}
		e.Value = Text{Value: s}
	case TypeNumber:
		var n *float64
		if !isNull {
			if err := json.Unmarshal(raw.Value, &n); err != nil {
				return fmt.Errorf("element %q: %w", raw.Codename, err)
			}
		}
		e.Value = Number{Value: n}
	case TypeDateTime:
		var ts *time.Time
		if !isNull {
			var s string
			if err := json.Unmarshal(raw.Value, &s); err != nil {
				return fmt.Errorf("element %q: %w", raw.Codename, err)
			}
			if s != "" {
				t, err := time.Parse(time.RFC3339, s)
				if err != nil {
					return fmt.Errorf("element %q: invalid date_time %q: %w", raw.Codename, s, err)
				}
				ts = &t
			}
		}
		e.Value = DateTime{Value: ts}
	case TypeURLSlug, TypeCustom, TypeRichText:
		var s string
		if !isNull {
			if err := json.Unmarshal(raw.Value, &s); err != nil {
				return fmt.Errorf("element %q: %w", raw.Codename, err)
			}
		}
		switch raw.Type {
		case TypeURLSlug:
			e.Value = URLSlug{Value: s}
		case TypeCustom:
			e.Value = Custom{Value: s}
		default:
			e.Value = RichText{Markup: s}
		}
	case TypeAsset, TypeModularContent, TypeSubpages, TypeTaxonomy, TypeMultipleChoice:
		var refs []Reference
		if !isNull {
			if err := json.Unmarshal(raw.Value, &refs); err != nil {
				return fmt.Errorf("element %q: %w", raw.Codename, err)
			}
		}
		e.Value = References{Kind: raw.Type, Refs: refs}
	default:
		return fmt.Errorf("element %q: unknown element type %q", raw.Codename, raw.Type)
	}
	return nil
}
