package remote

import (
	"context"
	"time"
)

// Client is the call contract over one environment. Implementations must be
// safe for concurrent use and must return *Error for every failure.
type Client interface {
	ListContentTypes(ctx context.Context) ([]ContentType, error)
	ListCollections(ctx context.Context) ([]Collection, error)
	ListLanguages(ctx context.Context) ([]Language, error)
	ListWorkflows(ctx context.Context) ([]Workflow, error)

	ListAssets(ctx context.Context) ([]Asset, error)
	GetAssetByCodename(ctx context.Context, codename string) (*Asset, error)
	GetAssetByExternalID(ctx context.Context, externalID string) (*Asset, error)
	UploadBinary(ctx context.Context, filename, contentType string, data []byte) (*FileReference, error)
	CreateAsset(ctx context.Context, asset AssetUpsert) (*Asset, error)
	UpdateAsset(ctx context.Context, id string, asset AssetUpsert) (*Asset, error)
	DownloadBinary(ctx context.Context, asset *Asset) ([]byte, error)

	ListItems(ctx context.Context) ([]ContentItem, error)
	GetItemByCodename(ctx context.Context, codename string) (*ContentItem, error)
	CreateItem(ctx context.Context, item ItemUpsert) (*ContentItem, error)
	UpdateItem(ctx context.Context, id string, item ItemUpsert) (*ContentItem, error)

	ListVariants(ctx context.Context, languageID string) ([]Variant, error)
	GetVariant(ctx context.Context, itemID, languageID string) (*Variant, error)
	UpsertVariant(ctx context.Context, itemID, languageID string, elements []ElementValue) (*Variant, error)
	CreateNewVersion(ctx context.Context, itemID, languageID string) error
	ChangeWorkflowStep(ctx context.Context, itemID, languageID, workflowID, stepID string) error
	// Publish publishes the variant now, or schedules it when scheduledTo is set.
	Publish(ctx context.Context, itemID, languageID string, scheduledTo *time.Time) error
	CancelScheduledPublish(ctx context.Context, itemID, languageID string) error
}
