package enginetest

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/paymirror/paymirror/internal/pkg/remote"
)

// FakeClient is a canned-response remote.Client. Objects are keyed by
// entity type and ID; GetAccount returns the configured account payload.
// Every call is recorded for assertions.
type FakeClient struct {
	mu      sync.Mutex
	Objects map[string]map[string]map[string]any
	Account map[string]any
	// Calls lists performed lookups as "type/id" strings, in order.
	Calls []string
}

func NewFakeClient() *FakeClient {
	return &FakeClient{Objects: map[string]map[string]map[string]any{}}
}

// Add registers a canned object. The map should carry its own "id" and
// "object" keys, like a real API response.
func (f *FakeClient) Add(entityType string, data map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Objects[entityType] == nil {
		f.Objects[entityType] = map[string]map[string]any{}
	}
	id, _ := data["id"].(string)
	f.Objects[entityType][id] = data
}

func (f *FakeClient) GetObject(ctx context.Context, entityType, id string, opts remote.CallOptions) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, entityType+"/"+id)
	data, ok := f.Objects[entityType][id]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", entityType, id, remote.ErrNotFound)
	}
	return data, nil
}

func (f *FakeClient) GetAccount(ctx context.Context, opts remote.CallOptions) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "account/self")
	if f.Account == nil {
		return nil, fmt.Errorf("account: %w", remote.ErrNotFound)
	}
	return f.Account, nil
}

func (f *FakeClient) ListObjects(ctx context.Context, entityType string, opts remote.CallOptions) ([]map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, entityType+"/list")
	var out []map[string]any
	for _, data := range f.Objects[entityType] {
		out = append(out, data)
	}
	return out, nil
}

func (f *FakeClient) PostForm(ctx context.Context, path string, form url.Values, opts remote.CallOptions) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "post:"+path)
	return map[string]any{}, nil
}
