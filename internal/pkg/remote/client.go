package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paymirror/paymirror/internal/pkg/env"
)

const defaultAPIBaseURL = "https://api.stripe.com"

// Sentinel errors mapped from remote HTTP statuses so callers can decide
// whether a failed expansion is recoverable.
var (
	ErrNotFound   = errors.New("remote: object not found")
	ErrPermission = errors.New("remote: permission denied")
)

// APIError is any non-2xx response that is not a not-found or permission
// failure.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("remote: api error (status %d): %s", e.StatusCode, e.Message)
}

// CallOptions carries per-call credential scope. APIKey overrides the
// client's default key; OnBehalfOf sets the connected-account header for
// multi-tenant operations; IdempotencyKey de-duplicates retried mutations
// on the remote side.
type CallOptions struct {
	APIKey         string
	OnBehalfOf     string
	IdempotencyKey string
}

// Client is the outbound surface the sync engine depends on. The HTTP
// implementation below talks to the real platform; tests substitute fakes.
type Client interface {
	GetObject(ctx context.Context, objectType, id string, opts CallOptions) (map[string]any, error)
	GetAccount(ctx context.Context, opts CallOptions) (map[string]any, error)
	ListObjects(ctx context.Context, objectType string, opts CallOptions) ([]map[string]any, error)
	PostForm(ctx context.Context, path string, form url.Values, opts CallOptions) (map[string]any, error)
}

// objectPaths maps an entity type tag to its REST collection path.
var objectPaths = map[string]string{
	"account":        "/v1/accounts",
	"customer":       "/v1/customers",
	"charge":         "/v1/charges",
	"invoice":        "/v1/invoices",
	"subscription":   "/v1/subscriptions",
	"payment_method": "/v1/payment_methods",
	"product":        "/v1/products",
	"price":          "/v1/prices",
	"event":          "/v1/events",
}

// HTTPClient is the production implementation of Client.
type HTTPClient struct {
	APIBaseURL string
	APIKey     string
	APIVersion string

	HTTP *http.Client
}

// NewClientFromEnv builds a client from the environment: REMOTE_API_BASE_URL,
// REMOTE_SECRET_KEY and REMOTE_API_VERSION.
func NewClientFromEnv() *HTTPClient {
	return &HTTPClient{
		APIBaseURL: strings.TrimRight(env.GetEnv("REMOTE_API_BASE_URL", defaultAPIBaseURL), "/"),
		APIKey:     strings.TrimSpace(env.GetEnv("REMOTE_SECRET_KEY", "")),
		APIVersion: strings.TrimSpace(env.GetEnv("REMOTE_API_VERSION", "")),
		HTTP: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// ObjectPath returns the collection path for an entity type tag.
func ObjectPath(objectType string) (string, bool) {
	p, ok := objectPaths[objectType]
	return p, ok
}

func (c *HTTPClient) GetObject(ctx context.Context, objectType, id string, opts CallOptions) (map[string]any, error) {
	base, ok := objectPaths[objectType]
	if !ok {
		return nil, fmt.Errorf("remote: unknown object type %q", objectType)
	}
	return c.doJSON(ctx, http.MethodGet, base+"/"+url.PathEscape(id), nil, opts)
}

func (c *HTTPClient) GetAccount(ctx context.Context, opts CallOptions) (map[string]any, error) {
	return c.doJSON(ctx, http.MethodGet, "/v1/account", nil, opts)
}

// ListObjects pages through the whole collection using starting_after
// cursors and returns every object.
func (c *HTTPClient) ListObjects(ctx context.Context, objectType string, opts CallOptions) ([]map[string]any, error) {
	base, ok := objectPaths[objectType]
	if !ok {
		return nil, fmt.Errorf("remote: unknown object type %q", objectType)
	}

	var out []map[string]any
	startingAfter := ""
	for {
		path := base + "?limit=100"
		if startingAfter != "" {
			path += "&starting_after=" + url.QueryEscape(startingAfter)
		}
		page, err := c.doJSON(ctx, http.MethodGet, path, nil, opts)
		if err != nil {
			return nil, err
		}

		items, _ := page["data"].([]any)
		for _, item := range items {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			out = append(out, obj)
			if id, ok := obj["id"].(string); ok {
				startingAfter = id
			}
		}

		hasMore, _ := page["has_more"].(bool)
		if !hasMore || len(items) == 0 {
			return out, nil
		}
	}
}

func (c *HTTPClient) PostForm(ctx context.Context, path string, form url.Values, opts CallOptions) (map[string]any, error) {
	return c.doJSON(ctx, http.MethodPost, path, strings.NewReader(form.Encode()), opts)
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body io.Reader, opts CallOptions) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.APIBaseURL+path, body)
	if err != nil {
		return nil, err
	}

	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = c.APIKey
	}
	if apiKey == "" {
		return nil, errors.New("remote: no API key configured")
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if c.APIVersion != "" {
		req.Header.Set("Stripe-Version", c.APIVersion)
	}
	if opts.OnBehalfOf != "" {
		req.Header.Set("Stripe-Account", opts.OnBehalfOf)
	}
	if opts.IdempotencyKey != "" {
		req.Header.Set("Idempotency-Key", opts.IdempotencyKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusForbidden:
		return nil, ErrPermission
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &APIError{StatusCode: resp.StatusCode, Message: extractErrorMessage(raw)}
	}

	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("remote: decoding response: %w", err)
	}
	return out, nil
}

func extractErrorMessage(raw []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
