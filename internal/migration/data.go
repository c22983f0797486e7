package migration

import (
	"fmt"
	"sort"
	"strings"
)

// Validate checks identity-key uniqueness and required system fields.
func (d *Data) Validate() error {
	var problems []string

	seenItems := make(map[ItemKey]bool, len(d.Items))
	for i := range d.Items {
		it := &d.Items[i]
		if it.System.Codename == "" {
			problems = append(problems, fmt.Sprintf("item #%d has no codename", i))
			continue
		}
		if it.System.Language == "" {
			problems = append(problems, fmt.Sprintf("item %q has no language", it.System.Codename))
		}
		if it.System.Type == "" {
			problems = append(problems, fmt.Sprintf("item %q has no content type", it.System.Codename))
		}
		if !it.IsComponent() && it.System.Workflow == "" {
			problems = append(problems, fmt.Sprintf("item %s has a workflow step but no workflow", it.Key()))
		}
		key := it.Key()
		if seenItems[key] {
			problems = append(problems, fmt.Sprintf("duplicate item %s", key))
		}
		seenItems[key] = true
		for _, el := range it.Elements {
			if el.Value == nil {
				problems = append(problems, fmt.Sprintf("item %s: element %q has no value", key, el.Codename))
			}
		}
	}

	seenAssets := make(map[string]bool, len(d.Assets))
	for i := range d.Assets {
		a := &d.Assets[i]
		if a.Codename == "" {
			problems = append(problems, fmt.Sprintf("asset #%d has no codename", i))
			continue
		}
		if seenAssets[a.Codename] {
			problems = append(problems, fmt.Sprintf("duplicate asset %q", a.Codename))
		}
		seenAssets[a.Codename] = true
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid migration data:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}

// ContentItems returns the non-component item versions, in input order.
func (d *Data) ContentItems() []*Item {
	var out []*Item
	for i := range d.Items {
		if !d.Items[i].IsComponent() {
			out = append(out, &d.Items[i])
		}
	}
	return out
}

// Components returns component items indexed by (codename, language). The
// first occurrence of a key wins.
func (d *Data) Components() map[ItemKey]*Item {
	out := make(map[ItemKey]*Item)
	for i := range d.Items {
		it := &d.Items[i]
		if !it.IsComponent() {
			continue
		}
		if _, ok := out[it.Key()]; !ok {
			out[it.Key()] = it
		}
	}
	return out
}

// DistinctItemCodenames returns the codenames of non-component items in
// first-seen order, paired with the first version that declared them.
func (d *Data) DistinctItemCodenames() []*Item {
	seen := make(map[string]bool)
	var out []*Item
	for _, it := range d.ContentItems() {
		if seen[it.System.Codename] {
			continue
		}
		seen[it.System.Codename] = true
		out = append(out, it)
	}
	return out
}

// Asset returns the asset with the given codename, or nil.
func (d *Data) Asset(codename string) *Asset {
	for i := range d.Assets {
		if d.Assets[i].Codename == codename {
			return &d.Assets[i]
		}
	}
	return nil
}

// Languages returns the sorted set of languages used by items.
func (d *Data) Languages() []string {
	set := make(map[string]bool)
	for _, it := range d.Items {
		set[it.System.Language] = true
	}
	out := make([]string, 0, len(set))
	for l := range set {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
