package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// API configuration constants.
const (
	// DefaultBaseURL is the Management API base URL.
	DefaultBaseURL = "https://manage.kontent.ai/v2"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 60 * time.Second

	// DefaultRateLimit is the default client-side request rate (requests/second).
	DefaultRateLimit = 10

	// DefaultBurst is the default token bucket size.
	DefaultBurst = 10

	// MaxPages is the maximum number of pages to fetch before stopping.
	// This prevents infinite loops from a misbehaving continuation token.
	MaxPages = 10000

	maxResponseSize = 100 * 1024 * 1024
)

// HTTPConfig configures an HTTPClient.
type HTTPConfig struct {
	BaseURL     string        // API base URL (default: DefaultBaseURL)
	Environment string        // Environment (project) id
	APIKey      string        // Management API key
	RateLimit   float64       // Requests per second, <= 0 disables limiting
	Burst       int           // Token bucket size
	Timeout     time.Duration // Per-request timeout
}

// HTTPClient implements Client over the Management REST API.
type HTTPClient struct {
	baseURL     string
	environment string
	apiKey      string
	limiter     *rate.Limiter
	httpClient  *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a client for one environment.
func NewHTTPClient(cfg HTTPConfig) *HTTPClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultBurst
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	return &HTTPClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		environment: cfg.Environment,
		apiKey:      cfg.APIKey,
		limiter:     rate.NewLimiter(limit, cfg.Burst),
		httpClient:  &http.Client{Timeout: cfg.Timeout},
	}
}

// WithHTTPClient returns a copy of the client using httpClient.
func (c *HTTPClient) WithHTTPClient(httpClient *http.Client) *HTTPClient {
	cp := *c
	cp.httpClient = httpClient
	return &cp
}

// Environment returns the environment id the client talks to.
func (c *HTTPClient) Environment() string { return c.environment }

func (c *HTTPClient) buildURL(path string) string {
	return c.baseURL + "/projects/" + url.PathEscape(c.environment) + path
}

// apiError is the error payload of the API.
type apiError struct {
	RequestID        string `json:"request_id"`
	ErrorCode        *int   `json:"error_code"`
	Message          string `json:"message"`
	ValidationErrors []struct {
		Message string `json:"message"`
		Path    string `json:"path"`
	} `json:"validation_errors"`
}

// do performs one request. Failures are returned as *Error; retrying is left to
// the caller's retry policy.
func (c *HTTPClient) do(ctx context.Context, op, method, urlStr string, body io.Reader, contentType string, header http.Header) ([]byte, http.Header, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, TransportError(op, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		return nil, nil, TransportError(op, fmt.Errorf("failed to create request: %w", err))
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, TransportError(op, err)
	}
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	_ = resp.Body.Close()
	if err != nil {
		return nil, nil, TransportError(op, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, decodeError(op, resp.StatusCode, respBody)
	}
	return respBody, resp.Header, nil
}

func decodeError(op string, status int, body []byte) *Error {
	var payload apiError
	code := NoCode
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.ErrorCode != nil {
			code = *payload.ErrorCode
		}
		if payload.Message != "" {
			msg = payload.Message
		}
		for _, ve := range payload.ValidationErrors {
			msg += "; " + ve.Path + ": " + ve.Message
		}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return NewError(op, status, code, msg)
}

func (c *HTTPClient) doJSON(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return TransportError(op, fmt.Errorf("failed to marshal request body: %w", err))
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	respBody, _, err := c.do(ctx, op, method, c.buildURL(path), body, contentType, nil)
	if err != nil {
		return err
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return TransportError(op, fmt.Errorf("failed to parse response: %w", err))
	}
	return nil
}

type pagination struct {
	ContinuationToken *string `json:"continuation_token"`
}

// listAll follows continuation tokens and decodes the array stored under key
// of every page.
func listAll[T any](ctx context.Context, c *HTTPClient, op, path, key string) ([]T, error) {
	var all []T
	token := ""
	for page := 0; page < MaxPages; page++ {
		var header http.Header
		if token != "" {
			header = http.Header{"X-Continuation": []string{token}}
		}
		respBody, _, err := c.do(ctx, op, http.MethodGet, c.buildURL(path), nil, "", header)
		if err != nil {
			return nil, err
		}

		var raw map[string]json.RawMessage
		if err := json.Unmarshal(respBody, &raw); err != nil {
			return nil, TransportError(op, fmt.Errorf("failed to parse response: %w", err))
		}
		if data, ok := raw[key]; ok {
			var items []T
			if err := json.Unmarshal(data, &items); err != nil {
				return nil, TransportError(op, fmt.Errorf("failed to parse %s: %w", key, err))
			}
			all = append(all, items...)
		}

		var p pagination
		if pr, ok := raw["pagination"]; ok {
			_ = json.Unmarshal(pr, &p)
		}
		if p.ContinuationToken == nil || *p.ContinuationToken == "" {
			return all, nil
		}
		token = *p.ContinuationToken
	}
	return nil, TransportError(op, fmt.Errorf("pagination limit exceeded: stopped after %d pages", MaxPages))
}

func (c *HTTPClient) ListContentTypes(ctx context.Context) ([]ContentType, error) {
	return listAll[ContentType](ctx, c, "list content types", "/types", "types")
}

func (c *HTTPClient) ListCollections(ctx context.Context) ([]Collection, error) {
	var out struct {
		Collections []Collection `json:"collections"`
	}
	if err := c.doJSON(ctx, "list collections", http.MethodGet, "/collections", nil, &out); err != nil {
		return nil, err
	}
	return out.Collections, nil
}

func (c *HTTPClient) ListLanguages(ctx context.Context) ([]Language, error) {
	return listAll[Language](ctx, c, "list languages", "/languages", "languages")
}

func (c *HTTPClient) ListWorkflows(ctx context.Context) ([]Workflow, error) {
	var out []Workflow
	if err := c.doJSON(ctx, "list workflows", http.MethodGet, "/workflows", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) ListAssets(ctx context.Context) ([]Asset, error) {
	return listAll[Asset](ctx, c, "list assets", "/assets", "assets")
}

func (c *HTTPClient) GetAssetByCodename(ctx context.Context, codename string) (*Asset, error) {
	var out Asset
	if err := c.doJSON(ctx, "get asset", http.MethodGet, "/assets/codename/"+url.PathEscape(codename), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GetAssetByExternalID(ctx context.Context, externalID string) (*Asset, error) {
	var out Asset
	if err := c.doJSON(ctx, "get asset", http.MethodGet, "/assets/external-id/"+url.PathEscape(externalID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) UploadBinary(ctx context.Context, filename, contentType string, data []byte) (*FileReference, error) {
	const op = "upload binary"
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	respBody, _, err := c.do(ctx, op, http.MethodPost, c.buildURL("/files/"+url.PathEscape(filename)), bytes.NewReader(data), contentType, nil)
	if err != nil {
		return nil, err
	}
	var out FileReference
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, TransportError(op, fmt.Errorf("failed to parse response: %w", err))
	}
	return &out, nil
}

func (c *HTTPClient) CreateAsset(ctx context.Context, asset AssetUpsert) (*Asset, error) {
	var out Asset
	if err := c.doJSON(ctx, "create asset", http.MethodPost, "/assets", asset, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) UpdateAsset(ctx context.Context, id string, asset AssetUpsert) (*Asset, error) {
	var out Asset
	if err := c.doJSON(ctx, "update asset", http.MethodPut, "/assets/"+url.PathEscape(id), asset, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DownloadBinary fetches the asset binary from its delivery URL.
func (c *HTTPClient) DownloadBinary(ctx context.Context, asset *Asset) ([]byte, error) {
	const op = "download binary"
	if asset.URL == "" {
		return nil, NewError(op, http.StatusNotFound, NoCode, fmt.Sprintf("asset %q has no url", asset.Codename))
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, TransportError(op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.URL, nil)
	if err != nil {
		return nil, TransportError(op, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, TransportError(op, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, NewError(op, resp.StatusCode, NoCode, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, TransportError(op, err)
	}
	return data, nil
}

func (c *HTTPClient) ListItems(ctx context.Context) ([]ContentItem, error) {
	return listAll[ContentItem](ctx, c, "list items", "/items", "items")
}

func (c *HTTPClient) GetItemByCodename(ctx context.Context, codename string) (*ContentItem, error) {
	var out ContentItem
	if err := c.doJSON(ctx, "get item", http.MethodGet, "/items/codename/"+url.PathEscape(codename), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) CreateItem(ctx context.Context, item ItemUpsert) (*ContentItem, error) {
	var out ContentItem
	if err := c.doJSON(ctx, "create item", http.MethodPost, "/items", item, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) UpdateItem(ctx context.Context, id string, item ItemUpsert) (*ContentItem, error) {
	var out ContentItem
	if err := c.doJSON(ctx, "update item", http.MethodPut, "/items/"+url.PathEscape(id), item, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListVariants lists the variants of every content type in one language.
func (c *HTTPClient) ListVariants(ctx context.Context, languageID string) ([]Variant, error) {
	types, err := c.ListContentTypes(ctx)
	if err != nil {
		return nil, err
	}
	var out []Variant
	for _, t := range types {
		variants, err := listAll[Variant](ctx, c, "list variants", "/types/"+url.PathEscape(t.ID)+"/variants", "variants")
		if err != nil {
			return nil, err
		}
		for _, v := range variants {
			if v.Language.ID == languageID || v.Language.Codename == languageID {
				out = append(out, v)
			}
		}
	}
	return out, nil
}

func variantPath(itemID, languageID string) string {
	return "/items/" + url.PathEscape(itemID) + "/variants/" + url.PathEscape(languageID)
}

func (c *HTTPClient) GetVariant(ctx context.Context, itemID, languageID string) (*Variant, error) {
	var out Variant
	if err := c.doJSON(ctx, "get variant", http.MethodGet, variantPath(itemID, languageID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) UpsertVariant(ctx context.Context, itemID, languageID string, elements []ElementValue) (*Variant, error) {
	in := struct {
		Elements []ElementValue `json:"elements"`
	}{elements}
	var out Variant
	if err := c.doJSON(ctx, "upsert variant", http.MethodPut, variantPath(itemID, languageID), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) CreateNewVersion(ctx context.Context, itemID, languageID string) error {
	return c.doJSON(ctx, "create new version", http.MethodPut, variantPath(itemID, languageID)+"/new-version", nil, nil)
}

func (c *HTTPClient) ChangeWorkflowStep(ctx context.Context, itemID, languageID, workflowID, stepID string) error {
	in := WorkflowState{Workflow: ByID(workflowID), Step: ByID(stepID)}
	return c.doJSON(ctx, "change workflow step", http.MethodPut, variantPath(itemID, languageID)+"/change-workflow", in, nil)
}

func (c *HTTPClient) Publish(ctx context.Context, itemID, languageID string, scheduledTo *time.Time) error {
	var in any
	if scheduledTo != nil {
		in = struct {
			ScheduledTo time.Time `json:"scheduled_to"`
		}{scheduledTo.UTC()}
	}
	return c.doJSON(ctx, "publish", http.MethodPut, variantPath(itemID, languageID)+"/publish", in, nil)
}

func (c *HTTPClient) CancelScheduledPublish(ctx context.Context, itemID, languageID string) error {
	return c.doJSON(ctx, "cancel scheduled publish", http.MethodPut, variantPath(itemID, languageID)+"/cancel-scheduled-publish", nil, nil)
}
