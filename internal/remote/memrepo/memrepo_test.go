package memrepo

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/ferry/internal/remote"
)

func newRepo() *Repo {
	return New(Seed{
		ContentTypes: []remote.ContentType{{
			Codename: "article",
			Elements: []remote.ElementDef{{Codename: "title", Type: "text"}},
		}},
		Collections: []remote.Collection{{Codename: "default"}},
		Languages:   []remote.Language{{Codename: "en", IsDefault: true, IsActive: true}},
		Workflows:   []remote.Workflow{DefaultWorkflow()},
	})
}

func text(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

func TestVariantLifecycle(t *testing.T) {
	ctx := context.Background()
	r := newRepo()

	it, err := r.CreateItem(ctx, remote.ItemUpsert{Codename: "hello", Name: "Hello", Type: remote.ByCodename("article")})
	require.NoError(t, err)

	_, err = r.UpsertVariant(ctx, it.ID, "en", []remote.ElementValue{{Element: remote.ByCodename("title"), Value: text("Hi")}})
	require.NoError(t, err)
	step, _ := r.VariantStep("hello", "en")
	assert.Equal(t, "draft", step)

	// draft -> published is not declared.
	err = r.Publish(ctx, it.ID, "en", nil)
	assert.Equal(t, remote.KindRejected, kindOf(t, err))

	types, _ := r.ListWorkflows(ctx)
	review := types[0].Steps[1]
	require.NoError(t, r.ChangeWorkflowStep(ctx, it.ID, "en", types[0].ID, review.ID))
	require.NoError(t, r.Publish(ctx, it.ID, "en", nil))
	step, _ = r.VariantStep("hello", "en")
	assert.Equal(t, "published", step)

	// Published variants are locked until a new version is created.
	_, err = r.UpsertVariant(ctx, it.ID, "en", nil)
	assert.Equal(t, remote.KindRejected, kindOf(t, err))
	require.NoError(t, r.CreateNewVersion(ctx, it.ID, "en"))
	step, _ = r.VariantStep("hello", "en")
	assert.Equal(t, "draft", step)

	v, err := r.GetVariant(ctx, it.ID, "en")
	require.NoError(t, err)
	require.Len(t, v.Elements, 1)
	assert.NotEmpty(t, v.Elements[0].Element.ID, "element references are stored by id")
}

func TestScheduledPublish(t *testing.T) {
	ctx := context.Background()
	r := newRepo()
	it, err := r.CreateItem(ctx, remote.ItemUpsert{Codename: "later", Name: "Later", Type: remote.ByCodename("article")})
	require.NoError(t, err)
	_, err = r.UpsertVariant(ctx, it.ID, "en", nil)
	require.NoError(t, err)

	wfs, _ := r.ListWorkflows(ctx)
	require.NoError(t, r.ChangeWorkflowStep(ctx, it.ID, "en", wfs[0].ID, wfs[0].Steps[1].ID))
	at := time.Date(2031, 5, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, r.Publish(ctx, it.ID, "en", &at))

	v, err := r.GetVariant(ctx, it.ID, "en")
	require.NoError(t, err)
	require.NotNil(t, v.Schedule)
	assert.True(t, at.Equal(*v.Schedule.PublishTime))
	step, _ := r.VariantStep("later", "en")
	assert.Equal(t, "scheduled", step)
}

func TestUniqueCodenames(t *testing.T) {
	ctx := context.Background()
	r := newRepo()
	_, err := r.CreateItem(ctx, remote.ItemUpsert{Codename: "x", Name: "X", Type: remote.ByCodename("article")})
	require.NoError(t, err)
	_, err = r.CreateItem(ctx, remote.ItemUpsert{Codename: "x", Name: "X", Type: remote.ByCodename("article")})
	assert.Equal(t, remote.KindRejected, kindOf(t, err))

	_, err = r.GetItemByCodename(ctx, "missing")
	assert.True(t, remote.IsNotFound(err))
}

func TestAssets(t *testing.T) {
	ctx := context.Background()
	r := newRepo()
	ref, err := r.UploadBinary(ctx, "logo.png", "image/png", []byte("PNG"))
	require.NoError(t, err)

	a, err := r.CreateAsset(ctx, remote.AssetUpsert{
		Codename:      "logo",
		ExternalID:    "ext-logo",
		Title:         "Logo",
		FileReference: ref,
		Collection:    &remote.Reference{Codename: "default"},
		Descriptions:  []remote.AssetDescription{{Language: remote.ByCodename("en"), Description: "Our logo"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "logo.png", a.FileName)
	assert.Equal(t, int64(3), a.Size)

	byExt, err := r.GetAssetByExternalID(ctx, "ext-logo")
	require.NoError(t, err)
	assert.Equal(t, a.ID, byExt.ID)

	data, err := r.DownloadBinary(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, "PNG", string(data))

	_, err = r.CreateAsset(ctx, remote.AssetUpsert{Codename: "no_file"})
	assert.Equal(t, remote.KindRejected, kindOf(t, err))
}

func TestInjectedFailures(t *testing.T) {
	ctx := context.Background()
	r := newRepo()
	r.Inject("ListLanguages", 2, remote.NewError("", 429, remote.RateLimitCode, "slow down"))

	for i := 0; i < 2; i++ {
		_, err := r.ListLanguages(ctx)
		assert.True(t, remote.IsRateLimited(err))
	}
	langs, err := r.ListLanguages(ctx)
	require.NoError(t, err)
	assert.Len(t, langs, 1)
	assert.Equal(t, 3, r.CountCalls("ListLanguages"))
}

func kindOf(t *testing.T, err error) remote.Kind {
	t.Helper()
	require.Error(t, err)
	k, ok := remote.KindOf(err)
	require.True(t, ok, "not a remote error: %v", err)
	return k
}
