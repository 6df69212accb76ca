package syncengine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paymirror/paymirror/internal/pkg/syncengine"
	"github.com/paymirror/paymirror/internal/pkg/syncengine/enginetest"
)

func TestResolveExplicitAccountField(t *testing.T) {
	store := enginetest.NewMemStore()
	client := enginetest.NewFakeClient()
	client.Add("account", map[string]any{
		"id":            "acct_1",
		"object":        "account",
		"business_name": "Acme",
		"country":       "DE",
	})
	resolver := syncengine.NewAccountResolver(store, client, syncengine.ResolverConfig{})
	ctx := context.Background()

	account, err := resolver.Resolve(ctx, map[string]any{"account": "acct_1"}, "")
	require.NoError(t, err)
	assert.Equal(t, "acct_1", account.ID)
	assert.Equal(t, "Acme", account.BusinessName)

	// Known afterwards without another remote call.
	calls := len(client.Calls)
	account, err = resolver.Resolve(ctx, map[string]any{"account": "acct_1"}, "")
	require.NoError(t, err)
	assert.Equal(t, "acct_1", account.ID)
	assert.Len(t, client.Calls, calls)
}

func TestResolveExplicitAccountKeepsStubOnFetchFailure(t *testing.T) {
	store := enginetest.NewMemStore()
	client := enginetest.NewFakeClient()
	resolver := syncengine.NewAccountResolver(store, client, syncengine.ResolverConfig{})
	ctx := context.Background()

	// Nothing canned: the detail fetch fails, the stub still resolves.
	account, err := resolver.Resolve(ctx, map[string]any{"account": "acct_unknown"}, "")
	require.NoError(t, err)
	assert.Equal(t, "acct_unknown", account.ID)
	assert.Equal(t, "", account.BusinessName)

	stored, err := store.GetAccount(ctx, "acct_unknown")
	require.NoError(t, err)
	assert.Equal(t, "acct_unknown", stored.ID)
}

func TestResolveByCredential(t *testing.T) {
	store := enginetest.NewMemStore()
	client := enginetest.NewFakeClient()
	client.Account = map[string]any{"id": "acct_cred", "object": "account", "email": "ops@example.com"}
	resolver := syncengine.NewAccountResolver(store, client, syncengine.ResolverConfig{})
	ctx := context.Background()

	account, err := resolver.Resolve(ctx, map[string]any{}, "sk_test_123")
	require.NoError(t, err)
	assert.Equal(t, "acct_cred", account.ID)
	assert.Equal(t, "ops@example.com", account.Email)

	// The credential association is cached in-process.
	calls := len(client.Calls)
	_, err = resolver.Resolve(ctx, map[string]any{}, "sk_test_123")
	require.NoError(t, err)
	assert.Len(t, client.Calls, calls)
}

func TestResolveDefaultOncePerProcess(t *testing.T) {
	store := enginetest.NewMemStore()
	client := enginetest.NewFakeClient()
	client.Account = map[string]any{"id": "acct_default", "object": "account"}
	resolver := syncengine.NewAccountResolver(store, client, syncengine.ResolverConfig{
		DefaultAPIKey: "sk_test_default",
	})
	ctx := context.Background()

	a1, err := resolver.ResolveDefault(ctx)
	require.NoError(t, err)
	calls := len(client.Calls)

	a2, err := resolver.ResolveDefault(ctx)
	require.NoError(t, err)
	assert.Equal(t, a1.ID, a2.ID)
	assert.Len(t, client.Calls, calls)
}

func TestResolveNoOwnerAccount(t *testing.T) {
	store := enginetest.NewMemStore()
	client := enginetest.NewFakeClient()
	resolver := syncengine.NewAccountResolver(store, client, syncengine.ResolverConfig{})

	_, err := resolver.Resolve(context.Background(), map[string]any{}, "")
	assert.ErrorIs(t, err, syncengine.ErrNoOwnerAccount)
}

func TestResolvePriorityOrder(t *testing.T) {
	store := enginetest.NewMemStore()
	client := enginetest.NewFakeClient()
	client.Add("account", map[string]any{"id": "acct_explicit", "object": "account"})
	client.Account = map[string]any{"id": "acct_cred", "object": "account"}
	resolver := syncengine.NewAccountResolver(store, client, syncengine.ResolverConfig{
		DefaultAccountID: "acct_default",
	})
	ctx := context.Background()

	// Explicit account field beats the call credential.
	account, err := resolver.Resolve(ctx, map[string]any{"account": "acct_explicit"}, "sk_test_123")
	require.NoError(t, err)
	assert.Equal(t, "acct_explicit", account.ID)

	// Credential beats the default.
	account, err = resolver.Resolve(ctx, map[string]any{}, "sk_test_123")
	require.NoError(t, err)
	assert.Equal(t, "acct_cred", account.ID)

	// Default is the last resort.
	account, err = resolver.Resolve(ctx, map[string]any{}, "")
	require.NoError(t, err)
	assert.Equal(t, "acct_default", account.ID)
}
