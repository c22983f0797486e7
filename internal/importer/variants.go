package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/steveyegge/ferry/internal/batch"
	"github.com/steveyegge/ferry/internal/idmap"
	"github.com/steveyegge/ferry/internal/migration"
	"github.com/steveyegge/ferry/internal/remote"
	"github.com/steveyegge/ferry/internal/workflow"
)

// skipError marks a variant that was not attempted because its item failed.
type skipError struct{ err error }

func (e *skipError) Error() string { return e.err.Error() }
func (e *skipError) Unwrap() error { return e.err }

func (r *run) importVariants(ctx context.Context) error {
	r.components = r.data.Components()
	inputs := r.data.ContentItems()
	results, summary := batch.Run(ctx, inputs, r.importVariant,
		batchOptions(r, "Importing language variants", func(it *migration.Item) string { return it.Key().String() }))
	for _, res := range results {
		key := res.Input.Key().String()
		if res.Err != nil {
			var skip *skipError
			skipped := errors.As(res.Err, &skip)
			r.result.fail(KindVariant, key, res.Err, skipped)
			r.log.Warn("variant failed", "variant", key, "skipped", skipped, "error", res.Err)
			continue
		}
		r.result.record(KindVariant, res.Output)
	}
	r.log.Info("language variants imported", "summary", summary.String())
	return ctx.Err()
}

// variantTarget is everything a variant import needs from the environment,
// resolved before any write.
type variantTarget struct {
	itemID   string
	language remote.Language
	workflow *workflow.Graph
	step     *workflow.Step
	elements []remote.ElementValue
}

func (r *run) importVariant(ctx context.Context, it *migration.Item) (Outcome, error) {
	t, err := r.resolveVariant(it)
	if err != nil {
		return 0, err
	}

	existing, err := call(ctx, r, func(ctx context.Context) (*remote.Variant, error) {
		return r.client.GetVariant(ctx, t.itemID, t.language.ID)
	})
	if err != nil {
		if !remote.IsNotFound(err) {
			return 0, fmt.Errorf("looking up variant: %w", err)
		}
		existing = nil
	}
	if existing != nil {
		if err := r.unlock(ctx, t, existing); err != nil {
			return 0, err
		}
	}

	v, err := call(ctx, r, func(ctx context.Context) (*remote.Variant, error) {
		return r.client.UpsertVariant(ctx, t.itemID, t.language.ID, t.elements)
	})
	if err != nil {
		return 0, fmt.Errorf("upserting variant: %w", err)
	}
	if err := r.moveToStep(ctx, t, v, it.System.ScheduledTo); err != nil {
		return 0, err
	}

	if existing == nil {
		return OutcomeCreated, nil
	}
	return OutcomeUpdated, nil
}

func (r *run) resolveVariant(it *migration.Item) (*variantTarget, error) {
	sys := it.System
	entry, ok := r.table.Resolve(idmap.KindItem, sys.Codename)
	if !ok {
		return nil, &skipError{err: fmt.Errorf("content item %q was not imported", sys.Codename)}
	}
	lang, err := r.env.language(sys.Language)
	if err != nil {
		return nil, err
	}
	ct, err := r.env.contentType(sys.Type)
	if err != nil {
		return nil, err
	}
	wf, err := r.env.workflow(sys.Workflow)
	if err != nil {
		return nil, err
	}
	step, ok := wf.Step(sys.WorkflowStep)
	if !ok {
		return nil, &migration.NotFoundError{Kind: "workflow step", Key: sys.WorkflowStep, In: "workflow " + wf.Codename}
	}
	if step.Role == workflow.RoleScheduled && sys.ScheduledTo == nil {
		return nil, fmt.Errorf("target step %q is the scheduled step but no scheduled time is set", step.Codename)
	}
	elements, err := r.convertElements(it, ct)
	if err != nil {
		return nil, err
	}
	return &variantTarget{
		itemID:   entry.TargetID,
		language: lang,
		workflow: wf,
		step:     step,
		elements: elements,
	}, nil
}

// unlock makes an existing variant editable: a published variant gets a new
// version, an archived one goes back to the first step, and a scheduled one
// has its publish cancelled.
func (r *run) unlock(ctx context.Context, t *variantTarget, v *remote.Variant) error {
	g, ok := r.env.workflowIDs[v.Workflow.Workflow.ID]
	if !ok {
		return nil
	}
	cur, ok := g.Resolve(v.Workflow.Step)
	if !ok {
		return nil
	}
	var err error
	switch cur.Role {
	case workflow.RolePublished:
		err = r.do(ctx, func(ctx context.Context) error {
			return r.client.CreateNewVersion(ctx, t.itemID, t.language.ID)
		})
	case workflow.RoleArchived:
		first, ok := g.Step(g.First())
		if !ok {
			err = &migration.NotFoundError{Kind: "first workflow step", Key: g.Codename}
			break
		}
		err = r.do(ctx, func(ctx context.Context) error {
			return r.client.ChangeWorkflowStep(ctx, t.itemID, t.language.ID, g.ID, first.ID)
		})
	case workflow.RoleScheduled:
		err = r.do(ctx, func(ctx context.Context) error {
			return r.client.CancelScheduledPublish(ctx, t.itemID, t.language.ID)
		})
	}
	if err != nil {
		return fmt.Errorf("unlocking variant in step %q: %w", cur.Codename, err)
	}
	return nil
}

// moveToStep walks the variant from its current step to the target step, one
// transition per hop of the shortest path.
func (r *run) moveToStep(ctx context.Context, t *variantTarget, v *remote.Variant, scheduledTo *time.Time) error {
	wf := t.workflow
	from := ""
	if g, ok := r.env.workflowIDs[v.Workflow.Workflow.ID]; ok && g.ID == wf.ID {
		if cur, ok := wf.Resolve(v.Workflow.Step); ok {
			from = cur.Codename
		}
	}
	if from == "" {
		first, ok := wf.Step(wf.First())
		if !ok {
			return &migration.NotFoundError{Kind: "first workflow step", Key: wf.Codename}
		}
		err := r.do(ctx, func(ctx context.Context) error {
			return r.client.ChangeWorkflowStep(ctx, t.itemID, t.language.ID, wf.ID, first.ID)
		})
		if err != nil {
			return fmt.Errorf("moving variant to workflow %q: %w", wf.Codename, err)
		}
		from = first.Codename
	}

	path, err := wf.ShortestPath(from, t.step.Codename)
	if err != nil {
		return err
	}
	for _, hop := range path {
		step, _ := wf.Step(hop)
		err := r.do(ctx, func(ctx context.Context) error {
			switch step.Role {
			case workflow.RolePublished:
				return r.client.Publish(ctx, t.itemID, t.language.ID, nil)
			case workflow.RoleScheduled:
				return r.client.Publish(ctx, t.itemID, t.language.ID, scheduledTo)
			default:
				return r.client.ChangeWorkflowStep(ctx, t.itemID, t.language.ID, wf.ID, step.ID)
			}
		})
		if err != nil {
			return fmt.Errorf("moving variant to step %q: %w", hop, err)
		}
	}
	return nil
}
