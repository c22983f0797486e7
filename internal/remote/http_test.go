package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(HTTPConfig{BaseURL: srv.URL, Environment: "env-1", APIKey: "secret"})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   int
		want   Kind
	}{
		{"rate limit code", 400, RateLimitCode, KindRateLimited},
		{"too many requests", 429, NoCode, KindRateLimited},
		{"not found", 404, 100, KindNotFound},
		{"application code", 400, 5, KindRejected},
		{"code zero", 400, 0, KindRejected},
		{"no code", 500, NoCode, KindTransport},
		{"no response", 0, NoCode, KindTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.status, tt.code))
		})
	}
}

func TestHTTPClientPagination(t *testing.T) {
	var calls int
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/projects/env-1/items", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		if r.Header.Get("X-Continuation") == "" {
			_, _ = io.WriteString(w, `{"items":[{"id":"1","codename":"a"}],"pagination":{"continuation_token":"next"}}`)
			return
		}
		assert.Equal(t, "next", r.Header.Get("X-Continuation"))
		_, _ = io.WriteString(w, `{"items":[{"id":"2","codename":"b"}],"pagination":{"continuation_token":null}}`)
	})

	items, err := client.ListItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "b", items[1].Codename)
	assert.Equal(t, 2, calls)
}

func TestHTTPClientErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   Kind
		code   int
	}{
		{"rate limited", 429, `{"error_code":10000,"message":"slow down"}`, KindRateLimited, RateLimitCode},
		{"validation", 400, `{"error_code":5,"message":"invalid","validation_errors":[{"path":"codename","message":"taken"}]}`, KindRejected, 5},
		{"not found", 404, `{"error_code":100,"message":"missing"}`, KindNotFound, 100},
		{"gateway", 502, `<html>bad gateway</html>`, KindTransport, NoCode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := client.GetItemByCodename(context.Background(), "x")
			require.Error(t, err)
			var re *Error
			require.ErrorAs(t, err, &re)
			assert.Equal(t, tt.want, re.Kind)
			assert.Equal(t, tt.code, re.Code)
			assert.Equal(t, tt.status, re.Status)
		})
	}
}

func TestHTTPClientValidationMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(400)
		_, _ = io.WriteString(w, `{"error_code":5,"message":"invalid","validation_errors":[{"path":"codename","message":"taken"}]}`)
	})
	_, err := client.CreateItem(context.Background(), ItemUpsert{Name: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "codename: taken")
	assert.Contains(t, err.Error(), "create item")
}

func TestHTTPClientPublishSchedule(t *testing.T) {
	var body map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/items/i-1/variants/l-1/publish"))
		if r.ContentLength > 0 {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		}
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, client.Publish(context.Background(), "i-1", "l-1", nil))
	assert.Nil(t, body)

	at := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, client.Publish(context.Background(), "i-1", "l-1", &at))
	assert.Equal(t, "2030-01-02T03:04:05Z", body["scheduled_to"])
}

func TestHTTPClientUploadBinary(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/env-1/files/logo.png", r.URL.Path)
		assert.Equal(t, "image/png", r.Header.Get("Content-Type"))
		data, _ := io.ReadAll(r.Body)
		assert.Equal(t, "PNG", string(data))
		_, _ = io.WriteString(w, `{"id":"f-1","type":"internal"}`)
	})
	ref, err := client.UploadBinary(context.Background(), "logo.png", "image/png", []byte("PNG"))
	require.NoError(t, err)
	assert.Equal(t, "f-1", ref.ID)
}

func TestHTTPClientCanceledContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent")
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.ListWorkflows(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
