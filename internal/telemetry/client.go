package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/steveyegge/ferry/internal/remote"
)

const remoteScopeName = "github.com/steveyegge/ferry/remote"

// InstrumentedClient wraps remote.Client with OTel tracing and metrics.
// Every call gets a span and is counted in ferry.remote.* metrics.
// Use WrapClient to create one; it returns the original client unchanged when
// telemetry is disabled.
type InstrumentedClient struct {
	inner  remote.Client
	role   string
	tracer trace.Tracer
	calls  metric.Int64Counter
	dur    metric.Float64Histogram
	errs   metric.Int64Counter
	bytes  metric.Int64Counter
}

var _ remote.Client = (*InstrumentedClient)(nil)

// WrapClient returns c decorated with OTel instrumentation. role ("source" or
// "target") is attached to every span and data point.
// When telemetry is disabled, c is returned as-is with zero overhead.
func WrapClient(c remote.Client, role string) remote.Client {
	if !Enabled() {
		return c
	}
	return newInstrumentedClient(c, role)
}

func newInstrumentedClient(c remote.Client, role string) *InstrumentedClient {
	m := Meter(remoteScopeName)
	calls, _ := m.Int64Counter("ferry.remote.calls",
		metric.WithDescription("Total remote API calls"),
	)
	dur, _ := m.Float64Histogram("ferry.remote.call.duration",
		metric.WithDescription("Remote API call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("ferry.remote.errors",
		metric.WithDescription("Total failed remote API calls by error kind"),
	)
	bytes, _ := m.Int64Counter("ferry.remote.binary.bytes",
		metric.WithDescription("Asset binary bytes uploaded and downloaded"),
		metric.WithUnit("By"),
	)
	return &InstrumentedClient{
		inner:  c,
		role:   role,
		tracer: Tracer(remoteScopeName),
		calls:  calls,
		dur:    dur,
		errs:   errs,
		bytes:  bytes,
	}
}

// op starts a span and counts the named call. It returns the low-cardinality
// attributes used for metrics; attrs only go on the span.
func (c *InstrumentedClient) op(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time, []attribute.KeyValue) {
	base := []attribute.KeyValue{
		attribute.String("ferry.remote.operation", name),
		attribute.String("ferry.remote.role", c.role),
	}
	ctx, span := c.tracer.Start(ctx, "remote."+name,
		trace.WithAttributes(append(base[:len(base):len(base)], attrs...)...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	c.calls.Add(ctx, 1, metric.WithAttributes(base...))
	return ctx, span, time.Now(), base
}

// done ends the span and records duration and the error kind, if any.
func (c *InstrumentedClient) done(ctx context.Context, span trace.Span, start time.Time, err error, attrs []attribute.KeyValue) {
	ms := float64(time.Since(start).Milliseconds())
	c.dur.Record(ctx, ms, metric.WithAttributes(attrs...))
	if err != nil {
		kind := "unknown"
		if k, ok := remote.KindOf(err); ok {
			kind = k.String()
		}
		span.SetAttributes(attribute.String("ferry.remote.error_kind", kind))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.errs.Add(ctx, 1, metric.WithAttributes(append(attrs[:len(attrs):len(attrs)], attribute.String("ferry.remote.error_kind", kind))...))
	}
	span.End()
}

// ── Environment structure ───────────────────────────────────────────────────

func (c *InstrumentedClient) ListContentTypes(ctx context.Context) ([]remote.ContentType, error) {
	ctx, span, t, a := c.op(ctx, "ListContentTypes")
	v, err := c.inner.ListContentTypes(ctx)
	span.SetAttributes(attribute.Int("ferry.remote.results", len(v)))
	c.done(ctx, span, t, err, a)
	return v, err
}

func (c *InstrumentedClient) ListCollections(ctx context.Context) ([]remote.Collection, error) {
	ctx, span, t, a := c.op(ctx, "ListCollections")
	v, err := c.inner.ListCollections(ctx)
	c.done(ctx, span, t, err, a)
	return v, err
}

func (c *InstrumentedClient) ListLanguages(ctx context.Context) ([]remote.Language, error) {
	ctx, span, t, a := c.op(ctx, "ListLanguages")
	v, err := c.inner.ListLanguages(ctx)
	c.done(ctx, span, t, err, a)
	return v, err
}

func (c *InstrumentedClient) ListWorkflows(ctx context.Context) ([]remote.Workflow, error) {
	ctx, span, t, a := c.op(ctx, "ListWorkflows")
	v, err := c.inner.ListWorkflows(ctx)
	c.done(ctx, span, t, err, a)
	return v, err
}

// ── Assets ──────────────────────────────────────────────────────────────────

func (c *InstrumentedClient) ListAssets(ctx context.Context) ([]remote.Asset, error) {
	ctx, span, t, a := c.op(ctx, "ListAssets")
	v, err := c.inner.ListAssets(ctx)
	span.SetAttributes(attribute.Int("ferry.remote.results", len(v)))
	c.done(ctx, span, t, err, a)
	return v, err
}

func (c *InstrumentedClient) GetAssetByCodename(ctx context.Context, codename string) (*remote.Asset, error) {
	ctx, span, t, a := c.op(ctx, "GetAssetByCodename", attribute.String("ferry.asset.codename", codename))
	v, err := c.inner.GetAssetByCodename(ctx, codename)
	c.done(ctx, span, t, err, a)
	return v, err
}

func (c *InstrumentedClient) GetAssetByExternalID(ctx context.Context, externalID string) (*remote.Asset, error) {
	ctx, span, t, a := c.op(ctx, "GetAssetByExternalID", attribute.String("ferry.asset.external_id", externalID))
	v, err := c.inner.GetAssetByExternalID(ctx, externalID)
	c.done(ctx, span, t, err, a)
	return v, err
}

func (c *InstrumentedClient) UploadBinary(ctx context.Context, filename, contentType string, data []byte) (*remote.FileReference, error) {
	ctx, span, t, a := c.op(ctx, "UploadBinary",
		attribute.String("ferry.asset.filename", filename),
		attribute.Int("ferry.asset.size", len(data)),
	)
	v, err := c.inner.UploadBinary(ctx, filename, contentType, data)
	if err == nil {
		c.bytes.Add(ctx, int64(len(data)), metric.WithAttributes(append(a[:len(a):len(a)], attribute.String("ferry.direction", "upload"))...))
	}
	c.done(ctx, span, t, err, a)
	return v, err
}

func (c *InstrumentedClient) CreateAsset(ctx context.Context, asset remote.AssetUpsert) (*remote.Asset, error) {
	ctx, span, t, a := c.op(ctx, "CreateAsset", attribute.String("ferry.asset.codename", asset.Codename))
	v, err := c.inner.CreateAsset(ctx, asset)
	c.done(ctx, span, t, err, a)
	return v, err
}

func (c *InstrumentedClient) UpdateAsset(ctx context.Context, id string, asset remote.AssetUpsert) (*remote.Asset, error) {
	ctx, span, t, a := c.op(ctx, "UpdateAsset", attribute.String("ferry.asset.id", id))
	v, err := c.inner.UpdateAsset(ctx, id, asset)
	c.done(ctx, span, t, err, a)
	return v, err
}

func (c *InstrumentedClient) DownloadBinary(ctx context.Context, asset *remote.Asset) ([]byte, error) {
	ctx, span, t, a := c.op(ctx, "DownloadBinary", attribute.String("ferry.asset.codename", asset.Codename))
	v, err := c.inner.DownloadBinary(ctx, asset)
	if err == nil {
		c.bytes.Add(ctx, int64(len(v)), metric.WithAttributes(append(a[:len(a):len(a)], attribute.String("ferry.direction", "download"))...))
	}
	c.done(ctx, span, t, err, a)
	return v, err
}

// ── Items and variants ──────────────────────────────────────────────────────

func (c *InstrumentedClient) ListItems(ctx context.Context) ([]remote.ContentItem, error) {
	ctx, span, t, a := c.op(ctx, "ListItems")
	v, err := c.inner.ListItems(ctx)
	span.SetAttributes(attribute.Int("ferry.remote.results", len(v)))
	c.done(ctx, span, t, err, a)
	return v, err
}

func (c *InstrumentedClient) GetItemByCodename(ctx context.Context, codename string) (*remote.ContentItem, error) {
	ctx, span, t, a := c.op(ctx, "GetItemByCodename", attribute.String("ferry.item.codename", codename))
	v, err := c.inner.GetItemByCodename(ctx, codename)
	c.done(ctx, span, t, err, a)
	return v, err
}

func (c *InstrumentedClient) CreateItem(ctx context.Context, item remote.ItemUpsert) (*remote.ContentItem, error) {
	ctx, span, t, a := c.op(ctx, "CreateItem", attribute.String("ferry.item.codename", item.Codename))
	v, err := c.inner.CreateItem(ctx, item)
	c.done(ctx, span, t, err, a)
	return v, err
}

func (c *InstrumentedClient) UpdateItem(ctx context.Context, id string, item remote.ItemUpsert) (*remote.ContentItem, error) {
	ctx, span, t, a := c.op(ctx, "UpdateItem", attribute.String("ferry.item.id", id))
	v, err := c.inner.UpdateItem(ctx, id, item)
	c.done(ctx, span, t, err, a)
	return v, err
}

func (c *InstrumentedClient) ListVariants(ctx context.Context, languageID string) ([]remote.Variant, error) {
	ctx, span, t, a := c.op(ctx, "ListVariants", attribute.String("ferry.language.id", languageID))
	v, err := c.inner.ListVariants(ctx, languageID)
	span.SetAttributes(attribute.Int("ferry.remote.results", len(v)))
	c.done(ctx, span, t, err, a)
	return v, err
}

func variantAttrs(itemID, languageID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("ferry.item.id", itemID),
		attribute.String("ferry.language.id", languageID),
	}
}

func (c *InstrumentedClient) GetVariant(ctx context.Context, itemID, languageID string) (*remote.Variant, error) {
	ctx, span, t, a := c.op(ctx, "GetVariant", variantAttrs(itemID, languageID)...)
	v, err := c.inner.GetVariant(ctx, itemID, languageID)
	c.done(ctx, span, t, err, a)
	return v, err
}

func (c *InstrumentedClient) UpsertVariant(ctx context.Context, itemID, languageID string, elements []remote.ElementValue) (*remote.Variant, error) {
	ctx, span, t, a := c.op(ctx, "UpsertVariant", append(variantAttrs(itemID, languageID), attribute.Int("ferry.elements", len(elements)))...)
	v, err := c.inner.UpsertVariant(ctx, itemID, languageID, elements)
	c.done(ctx, span, t, err, a)
	return v, err
}

func (c *InstrumentedClient) CreateNewVersion(ctx context.Context, itemID, languageID string) error {
	ctx, span, t, a := c.op(ctx, "CreateNewVersion", variantAttrs(itemID, languageID)...)
	err := c.inner.CreateNewVersion(ctx, itemID, languageID)
	c.done(ctx, span, t, err, a)
	return err
}

func (c *InstrumentedClient) ChangeWorkflowStep(ctx context.Context, itemID, languageID, workflowID, stepID string) error {
	ctx, span, t, a := c.op(ctx, "ChangeWorkflowStep", append(variantAttrs(itemID, languageID),
		attribute.String("ferry.workflow.id", workflowID),
		attribute.String("ferry.workflow.step_id", stepID),
	)...)
	err := c.inner.ChangeWorkflowStep(ctx, itemID, languageID, workflowID, stepID)
	c.done(ctx, span, t, err, a)
	return err
}

func (c *InstrumentedClient) Publish(ctx context.Context, itemID, languageID string, scheduledTo *time.Time) error {
	attrs := variantAttrs(itemID, languageID)
	if scheduledTo != nil {
		attrs = append(attrs, attribute.String("ferry.scheduled_to", scheduledTo.UTC().Format(time.RFC3339)))
	}
	ctx, span, t, a := c.op(ctx, "Publish", attrs...)
	err := c.inner.Publish(ctx, itemID, languageID, scheduledTo)
	c.done(ctx, span, t, err, a)
	return err
}

func (c *InstrumentedClient) CancelScheduledPublish(ctx context.Context, itemID, languageID string) error {
	ctx, span, t, a := c.op(ctx, "CancelScheduledPublish", variantAttrs(itemID, languageID)...)
	err := c.inner.CancelScheduledPublish(ctx, itemID, languageID)
	c.done(ctx, span, t, err, a)
	return err
}
