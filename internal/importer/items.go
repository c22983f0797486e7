package importer

import (
	"context"
	"fmt"

	"github.com/steveyegge/ferry/internal/batch"
	"github.com/steveyegge/ferry/internal/idmap"
	"github.com/steveyegge/ferry/internal/migration"
	"github.com/steveyegge/ferry/internal/remote"
)

// importItems creates or reuses one content item per distinct codename. The
// first version of an item decides its name, type and collection.
func (r *run) importItems(ctx context.Context) error {
	inputs := r.data.DistinctItemCodenames()
	results, summary := batch.Run(ctx, inputs, r.importItem,
		batchOptions(r, "Importing content items", func(it *migration.Item) string { return it.System.Codename }))
	for _, res := range results {
		if res.Err != nil {
			r.result.fail(KindItem, res.Input.System.Codename, res.Err, false)
			r.log.Warn("item failed", "item", res.Input.System.Codename, "error", res.Err)
			continue
		}
		r.result.record(KindItem, res.Output)
	}
	r.log.Info("content items imported", "summary", summary.String())
	return ctx.Err()
}

func (r *run) importItem(ctx context.Context, it *migration.Item) (Outcome, error) {
	sys := it.System
	ct, err := r.env.contentType(sys.Type)
	if err != nil {
		return 0, err
	}
	collection, err := r.env.collection(sys.Collection)
	if err != nil {
		return 0, err
	}
	upsert := remote.ItemUpsert{
		Codename:   sys.Codename,
		Name:       sys.Name,
		Type:       remote.ByID(ct.ID),
		Collection: collection,
	}

	existing, err := call(ctx, r, func(ctx context.Context) (*remote.ContentItem, error) {
		return r.client.GetItemByCodename(ctx, sys.Codename)
	})
	if err != nil {
		if !remote.IsNotFound(err) {
			return 0, fmt.Errorf("looking up item: %w", err)
		}
		existing = nil
	}

	var (
		target  *remote.ContentItem
		outcome Outcome
	)
	switch {
	case existing == nil:
		target, err = call(ctx, r, func(ctx context.Context) (*remote.ContentItem, error) {
			return r.client.CreateItem(ctx, upsert)
		})
		if err != nil {
			return 0, fmt.Errorf("creating item: %w", err)
		}
		outcome = OutcomeCreated
	case !sameRef(existing.Type, ct.ID, ct.Codename):
		return 0, fmt.Errorf("item %q already exists in the target with a different content type", sys.Codename)
	case existing.Name != sys.Name || !sameCollection(existing.Collection, collection, r.env):
		target, err = call(ctx, r, func(ctx context.Context) (*remote.ContentItem, error) {
			return r.client.UpdateItem(ctx, existing.ID, upsert)
		})
		if err != nil {
			return 0, fmt.Errorf("updating item: %w", err)
		}
		outcome = OutcomeUpdated
	default:
		target = existing
		outcome = OutcomeUnchanged
	}

	if err := r.table.Record(idmap.KindItem, sys.Codename, "", target.ID, target.Codename); err != nil {
		return 0, err
	}
	return outcome, nil
}

func sameRef(ref remote.Reference, id, codename string) bool {
	if ref.ID != "" {
		return ref.ID == id
	}
	return ref.Codename == codename
}

// sameCollection compares a stored collection with the wanted one. An item
// without a collection keeps whatever the target assigned.
func sameCollection(have, want *remote.Reference, env *environment) bool {
	if want == nil {
		return true
	}
	key := func(ref *remote.Reference) string {
		if ref == nil {
			return ""
		}
		if ref.ID != "" {
			return env.collectionCodename(ref.ID)
		}
		return ref.Codename
	}
	return key(have) == key(want)
}
