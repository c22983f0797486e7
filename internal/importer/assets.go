package importer

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"

	"github.com/steveyegge/ferry/internal/batch"
	"github.com/steveyegge/ferry/internal/idmap"
	"github.com/steveyegge/ferry/internal/migration"
	"github.com/steveyegge/ferry/internal/remote"
)

func (r *run) importAssets(ctx context.Context) error {
	inputs := make([]*migration.Asset, len(r.data.Assets))
	for i := range r.data.Assets {
		inputs[i] = &r.data.Assets[i]
	}
	results, summary := batch.Run(ctx, inputs, r.importAsset,
		batchOptions(r, "Importing assets", func(a *migration.Asset) string { return a.Codename }))
	for _, res := range results {
		if res.Err != nil {
			r.result.fail(KindAsset, res.Input.Codename, res.Err, false)
			r.log.Warn("asset failed", "asset", res.Input.Codename, "error", res.Err)
			continue
		}
		r.result.record(KindAsset, res.Output)
	}
	r.log.Info("assets imported", "summary", summary.String())
	return ctx.Err()
}

func (r *run) importAsset(ctx context.Context, a *migration.Asset) (Outcome, error) {
	upsert, err := r.assetUpsert(a)
	if err != nil {
		return 0, err
	}

	existing, err := r.findAsset(ctx, a)
	if err != nil {
		return 0, err
	}

	var (
		target  *remote.Asset
		outcome Outcome
	)
	switch {
	case existing == nil:
		if a.Binary == nil {
			return 0, &migration.NotFoundError{Kind: "archive entry", Key: a.ArchiveFilename, In: "asset " + a.Codename}
		}
		ref, err := call(ctx, r, func(ctx context.Context) (*remote.FileReference, error) {
			return r.client.UploadBinary(ctx, a.Filename, contentTypeOf(a.Filename), a.Binary)
		})
		if err != nil {
			return 0, fmt.Errorf("uploading %s: %w", a.Filename, err)
		}
		upsert.FileReference = ref
		target, err = call(ctx, r, func(ctx context.Context) (*remote.Asset, error) {
			return r.client.CreateAsset(ctx, upsert)
		})
		if err != nil {
			return 0, fmt.Errorf("creating asset: %w", err)
		}
		outcome = OutcomeCreated
	case AssetChanged(a, existing, r.env.collectionCodename, r.env.languageCodename):
		// Metadata only; the stored binary is kept.
		upsert.Codename = existing.Codename
		target, err = call(ctx, r, func(ctx context.Context) (*remote.Asset, error) {
			return r.client.UpdateAsset(ctx, existing.ID, upsert)
		})
		if err != nil {
			return 0, fmt.Errorf("updating asset: %w", err)
		}
		outcome = OutcomeUpdated
	default:
		target = existing
		outcome = OutcomeUnchanged
	}

	if err := r.table.Record(idmap.KindAsset, a.Codename, "", target.ID, target.Codename); err != nil {
		return 0, err
	}
	return outcome, nil
}

// findAsset looks the asset up by codename, then by external id. A missing
// asset is not an error.
func (r *run) findAsset(ctx context.Context, a *migration.Asset) (*remote.Asset, error) {
	existing, err := call(ctx, r, func(ctx context.Context) (*remote.Asset, error) {
		return r.client.GetAssetByCodename(ctx, a.Codename)
	})
	if err == nil {
		return existing, nil
	}
	if !remote.IsNotFound(err) {
		return nil, fmt.Errorf("looking up asset: %w", err)
	}
	if a.ExternalID == "" {
		return nil, nil
	}
	existing, err = call(ctx, r, func(ctx context.Context) (*remote.Asset, error) {
		return r.client.GetAssetByExternalID(ctx, a.ExternalID)
	})
	if err == nil {
		return existing, nil
	}
	if !remote.IsNotFound(err) {
		return nil, fmt.Errorf("looking up asset by external id: %w", err)
	}
	return nil, nil
}

func (r *run) assetUpsert(a *migration.Asset) (remote.AssetUpsert, error) {
	collection, err := r.env.collection(a.Collection)
	if err != nil {
		return remote.AssetUpsert{}, err
	}
	up := remote.AssetUpsert{
		Codename:   a.Codename,
		ExternalID: a.ExternalID,
		Title:      a.Title,
		Collection: collection,
	}
	for _, d := range a.Descriptions {
		lang, err := r.env.language(d.Language)
		if err != nil {
			return remote.AssetUpsert{}, err
		}
		up.Descriptions = append(up.Descriptions, remote.AssetDescription{
			Language:    remote.ByID(lang.ID),
			Description: d.Description,
		})
	}
	return up, nil
}

// AssetChanged reports whether the metadata of a differs from the target
// asset: collection, title, or descriptions. collection and language map target
// ids to codenames; references the target stores by codename compare as is.
func AssetChanged(a *migration.Asset, target *remote.Asset, collection, language func(id string) string) bool {
	var targetCollection string
	if target.Collection != nil {
		targetCollection = target.Collection.Codename
		if targetCollection == "" {
			targetCollection = collection(target.Collection.ID)
		}
	}
	if a.Collection != targetCollection {
		return true
	}
	if a.Title != target.Title {
		return true
	}

	want := make(map[string]string, len(a.Descriptions))
	for _, d := range a.Descriptions {
		if d.Description != "" {
			want[d.Language] = d.Description
		}
	}
	have := make(map[string]string, len(target.Descriptions))
	for _, d := range target.Descriptions {
		if d.Description == "" {
			continue
		}
		lang := d.Language.Codename
		if lang == "" {
			lang = language(d.Language.ID)
		}
		have[lang] = d.Description
	}
	if len(want) != len(have) {
		return true
	}
	for lang, desc := range want {
		if have[lang] != desc {
			return true
		}
	}
	return false
}

func contentTypeOf(filename string) string {
	if t := mime.TypeByExtension(filepath.Ext(filename)); t != "" {
		return t
	}
	return "application/octet-stream"
}

func (e *environment) collectionCodename(id string) string {
	for _, c := range e.collections {
		if c.ID == id {
			return c.Codename
		}
	}
	return id
}

func (e *environment) languageCodename(id string) string {
	for _, l := range e.languages {
		if l.ID == id {
			return l.Codename
		}
	}
	return id
}
