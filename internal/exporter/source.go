package exporter

import (
	"context"
	"fmt"
	"path"
	"sort"

	"github.com/steveyegge/ferry/internal/migration"
	"github.com/steveyegge/ferry/internal/remote"
	"github.com/steveyegge/ferry/internal/retry"
	"github.com/steveyegge/ferry/internal/workflow"
)

type variantKey struct {
	item     string // item id
	language string // language id
}

// source is the structure and inventory of the source environment, indexed
// by id. It is read-only once loaded.
type source struct {
	types       map[string]*remote.ContentType
	collections map[string]remote.Collection
	workflows   map[string]*workflow.Graph
	items       map[string]*remote.ContentItem
	assets      map[string]*remote.Asset

	languageList       []remote.Language
	languages          map[string]remote.Language
	languageByCodename map[string]remote.Language
}

func loadSource(ctx context.Context, client remote.Client, policy retry.Policy) (*source, error) {
	types, err := retry.Value(ctx, policy, client.ListContentTypes)
	if err != nil {
		return nil, fmt.Errorf("listing content types: %w", err)
	}
	collections, err := retry.Value(ctx, policy, client.ListCollections)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	languages, err := retry.Value(ctx, policy, client.ListLanguages)
	if err != nil {
		return nil, fmt.Errorf("listing languages: %w", err)
	}
	workflows, err := retry.Value(ctx, policy, client.ListWorkflows)
	if err != nil {
		return nil, fmt.Errorf("listing workflows: %w", err)
	}
	items, err := retry.Value(ctx, policy, client.ListItems)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	assets, err := retry.Value(ctx, policy, client.ListAssets)
	if err != nil {
		return nil, fmt.Errorf("listing assets: %w", err)
	}

	s := &source{
		types:              make(map[string]*remote.ContentType, len(types)),
		collections:        make(map[string]remote.Collection, len(collections)),
		workflows:          make(map[string]*workflow.Graph, len(workflows)),
		items:              make(map[string]*remote.ContentItem, len(items)),
		assets:             make(map[string]*remote.Asset, len(assets)),
		languageList:       languages,
		languages:          make(map[string]remote.Language, len(languages)),
		languageByCodename: make(map[string]remote.Language, len(languages)),
	}
	for i := range types {
		s.types[types[i].ID] = &types[i]
	}
	for _, c := range collections {
		s.collections[c.ID] = c
	}
	for _, w := range workflows {
		s.workflows[w.ID] = workflow.New(w)
	}
	for i := range items {
		s.items[items[i].ID] = &items[i]
	}
	for i := range assets {
		s.assets[assets[i].ID] = &assets[i]
	}
	for _, l := range languages {
		s.languages[l.ID] = l
		s.languageByCodename[l.Codename] = l
	}
	return s, nil
}

func (s *source) typeOf(ref remote.Reference) (*remote.ContentType, bool) {
	if t, ok := s.types[ref.ID]; ok {
		return t, true
	}
	for _, t := range s.types {
		if ref.Codename != "" && t.Codename == ref.Codename {
			return t, true
		}
	}
	return nil, false
}

func (s *source) workflowOf(ref remote.Reference) (*workflow.Graph, bool) {
	if g, ok := s.workflows[ref.ID]; ok {
		return g, true
	}
	for _, g := range s.workflows {
		if ref.Codename != "" && g.Codename == ref.Codename {
			return g, true
		}
	}
	return nil, false
}

func (s *source) language(ref remote.Reference) (remote.Language, bool) {
	if l, ok := s.languages[ref.ID]; ok {
		return l, true
	}
	l, ok := s.languageByCodename[ref.Codename]
	return l, ok
}

func (s *source) collectionCodename(ref *remote.Reference) string {
	if ref == nil {
		return ""
	}
	if c, ok := s.collections[ref.ID]; ok {
		return c.Codename
	}
	return ref.Codename
}

func (s *source) itemCodename(id string) (string, bool) {
	if it, ok := s.items[id]; ok {
		return it.Codename, true
	}
	return "", false
}

func (s *source) assetCodename(id string) (string, bool) {
	if a, ok := s.assets[id]; ok {
		return a.Codename, true
	}
	return "", false
}

func (s *source) itemLabel(id string) string {
	if c, ok := s.itemCodename(id); ok {
		return fmt.Sprintf("%q", c)
	}
	return id
}

// lessKey orders variants by item codename, then language codename.
func (s *source) lessKey(a, b variantKey) bool {
	ac, _ := s.itemCodename(a.item)
	bc, _ := s.itemCodename(b.item)
	if ac != bc {
		return ac < bc
	}
	return s.languages[a.language].Codename < s.languages[b.language].Codename
}

// sortedAssets returns the assets whose id is in wanted, or all assets for a
// nil set, in codename order.
func (s *source) sortedAssets(wanted map[string]bool) []*remote.Asset {
	var out []*remote.Asset
	for id, a := range s.assets {
		if wanted == nil || wanted[id] {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Codename < out[j].Codename })
	return out
}

// asset converts a source asset and its binary.
func (s *source) asset(a *remote.Asset, binary []byte) migration.Asset {
	out := migration.Asset{
		Codename:        a.Codename,
		Filename:        a.FileName,
		Title:           a.Title,
		ExternalID:      a.ExternalID,
		Collection:      s.collectionCodename(a.Collection),
		ArchiveFilename: archiveName(a),
		Binary:          binary,
	}
	for _, d := range a.Descriptions {
		if d.Description == "" {
			continue
		}
		lang, ok := s.language(d.Language)
		if !ok {
			continue
		}
		out.Descriptions = append(out.Descriptions, migration.AssetDescription{Language: lang.Codename, Description: d.Description})
	}
	return out
}

// archiveName is the entry name of an asset binary: the codename keeps names
// unique, the file name keeps the extension.
func archiveName(a *remote.Asset) string {
	base := path.Base(a.FileName)
	if base == "." || base == "/" || base == "" {
		return a.Codename
	}
	return a.Codename + "_" + base
}
