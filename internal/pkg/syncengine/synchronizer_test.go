package syncengine_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paymirror/paymirror/internal/pkg/syncengine"
	"github.com/paymirror/paymirror/internal/pkg/syncengine/enginetest"
)

func newTestEngine(t *testing.T) (*enginetest.MemStore, *enginetest.FakeClient, *syncengine.Synchronizer) {
	t.Helper()
	store := enginetest.NewMemStore()
	client := enginetest.NewFakeClient()
	resolver := syncengine.NewAccountResolver(store, client, syncengine.ResolverConfig{
		DefaultAccountID: "acct_default",
	})
	sync := syncengine.NewSynchronizer(store, client, syncengine.DefaultSchemas(), resolver)
	return store, client, sync
}

func customerPayload(id string) map[string]any {
	return map[string]any{
		"id":       id,
		"object":   "customer",
		"livemode": false,
		"email":    "jo@example.com",
		"name":     "Jo",
		"balance":  json.Number("2500"),
		"created":  json.Number("1740000000"),
	}
}

func TestSyncInsertsNewRecord(t *testing.T) {
	store, _, sync := newTestEngine(t)
	ctx := context.Background()

	rec, err := sync.SyncFromRemoteData(ctx, "customer", customerPayload("cus_1"), "")
	require.NoError(t, err)
	assert.Equal(t, "cus_1", rec["id"])

	stored, err := store.GetRecord(ctx, "customer", "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "jo@example.com", stored["email"])
	assert.Equal(t, false, stored["livemode"])
	assert.Equal(t, time.Unix(1740000000, 0).UTC(), stored["created"])
	assert.True(t, stored["balance"].(decimal.Decimal).Equal(decimal.RequireFromString("25")))
	assert.Equal(t, "acct_default", stored["owner_account_id"])
}

func TestSyncTypeTagMismatch(t *testing.T) {
	_, _, sync := newTestEngine(t)

	payload := customerPayload("cus_1")
	payload["object"] = "charge"
	_, err := sync.SyncFromRemoteData(context.Background(), "customer", payload, "")

	var mismatch *syncengine.TypeMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "customer", mismatch.Expected)
	assert.Equal(t, "charge", mismatch.Got)
}

func TestSyncUpdatePreservesImmutableColumns(t *testing.T) {
	store, _, sync := newTestEngine(t)
	ctx := context.Background()

	_, err := sync.SyncFromRemoteData(ctx, "customer", customerPayload("cus_1"), "")
	require.NoError(t, err)

	// A later delivery carries different created/livemode values; the stored
	// originals must survive.
	updated := customerPayload("cus_1")
	updated["email"] = "new@example.com"
	updated["livemode"] = true
	updated["created"] = json.Number("1750000000")
	_, err = sync.SyncFromRemoteData(ctx, "customer", updated, "")
	require.NoError(t, err)

	stored, err := store.GetRecord(ctx, "customer", "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", stored["email"])
	assert.Equal(t, false, stored["livemode"])
	assert.Equal(t, time.Unix(1740000000, 0).UTC(), stored["created"])
}

func TestSyncConvergence(t *testing.T) {
	store, _, sync := newTestEngine(t)
	ctx := context.Background()

	// Delivering the same representation repeatedly converges on one state.
	for i := 0; i < 3; i++ {
		_, err := sync.SyncFromRemoteData(ctx, "customer", customerPayload("cus_1"), "")
		require.NoError(t, err)
	}

	ids, err := store.ListRecordIDs(ctx, "customer")
	require.NoError(t, err)
	assert.Equal(t, []string{"cus_1"}, ids)
}

func TestSyncExpandedRelationRecursion(t *testing.T) {
	store, _, sync := newTestEngine(t)
	ctx := context.Background()

	payload := map[string]any{
		"id":       "pm_1",
		"object":   "payment_method",
		"livemode": false,
		"type":     "card",
		"card":     map[string]any{"brand": "Visa", "last4": "4242"},
		"customer": customerPayload("cus_1"),
	}

	_, err := sync.SyncFromRemoteData(ctx, "payment_method", payload, "")
	require.NoError(t, err)

	pm, err := store.GetRecord(ctx, "payment_method", "pm_1")
	require.NoError(t, err)
	assert.Equal(t, "cus_1", pm["customer_id"])
	assert.Equal(t, "visa", pm["card_brand"])
	assert.Equal(t, "4242", pm["card_last4"])

	// The expanded customer was synced depth-first and back-references the
	// payment method as its default.
	cust, err := store.GetRecord(ctx, "customer", "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "pm_1", cust["default_payment_method_id"])
}

func TestSyncRequiredRelationFetchedOnDemand(t *testing.T) {
	store, client, sync := newTestEngine(t)
	ctx := context.Background()

	// The charge references an invoice by bare ID; the invoice in turn
	// requires its customer. Both must be fetched and mirrored.
	client.Add("invoice", map[string]any{
		"id":       "in_1",
		"object":   "invoice",
		"livemode": false,
		"status":   "paid",
		"customer": "cus_1",
	})
	client.Add("customer", customerPayload("cus_1"))

	payload := map[string]any{
		"id":       "ch_1",
		"object":   "charge",
		"livemode": false,
		"amount":   json.Number("1999"),
		"invoice":  "in_1",
	}
	_, err := sync.SyncFromRemoteData(ctx, "charge", payload, "")
	require.NoError(t, err)

	charge, err := store.GetRecord(ctx, "charge", "ch_1")
	require.NoError(t, err)
	assert.Equal(t, "in_1", charge["invoice_id"])

	invoice, err := store.GetRecord(ctx, "invoice", "in_1")
	require.NoError(t, err)
	assert.Equal(t, "cus_1", invoice["customer_id"])

	_, err = store.GetRecord(ctx, "customer", "cus_1")
	require.NoError(t, err)

	assert.Contains(t, client.Calls, "invoice/in_1")
	assert.Contains(t, client.Calls, "customer/cus_1")
}

func TestSyncRequiredRelationSkipsFetchWhenKnown(t *testing.T) {
	store, client, sync := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, store.InsertRecord(ctx, "invoice", syncengine.Record{"id": "in_1"}))

	payload := map[string]any{
		"id":       "ch_1",
		"object":   "charge",
		"livemode": false,
		"invoice":  "in_1",
	}
	_, err := sync.SyncFromRemoteData(ctx, "charge", payload, "")
	require.NoError(t, err)
	assert.NotContains(t, client.Calls, "invoice/in_1")
}

func TestSyncOptionalRelationStaysLazy(t *testing.T) {
	store, client, sync := newTestEngine(t)
	ctx := context.Background()

	// customer on a charge is optional: the bare reference is stored without
	// any remote fetch, and no customer row appears.
	payload := map[string]any{
		"id":       "ch_1",
		"object":   "charge",
		"livemode": false,
		"customer": "cus_ghost",
	}
	_, err := sync.SyncFromRemoteData(ctx, "charge", payload, "")
	require.NoError(t, err)

	charge, err := store.GetRecord(ctx, "charge", "ch_1")
	require.NoError(t, err)
	assert.Equal(t, "cus_ghost", charge["customer_id"])

	_, err = store.GetRecord(ctx, "customer", "cus_ghost")
	assert.ErrorIs(t, err, syncengine.ErrNotFound)
	assert.NotContains(t, client.Calls, "customer/cus_ghost")
}

func TestSyncRequiredRelationFetchFailure(t *testing.T) {
	_, _, sync := newTestEngine(t)

	// Required relation, unexpanded, unknown locally, and the remote lookup
	// fails: the sync must fail rather than write a dangling reference.
	payload := map[string]any{
		"id":       "in_1",
		"object":   "invoice",
		"livemode": false,
		"customer": "cus_missing",
	}
	_, err := sync.SyncFromRemoteData(context.Background(), "invoice", payload, "")
	assert.Error(t, err)
}

func TestSyncCycleGuard(t *testing.T) {
	store, _, sync := newTestEngine(t)
	ctx := context.Background()

	// customer -> default_payment_method -> customer refers back to the
	// object already mid-sync; the recursion must terminate.
	payload := customerPayload("cus_1")
	payload["default_payment_method"] = map[string]any{
		"id":       "pm_1",
		"object":   "payment_method",
		"livemode": false,
		"type":     "card",
		"customer": "cus_1",
	}

	_, err := sync.SyncFromRemoteData(ctx, "customer", payload, "")
	require.NoError(t, err)

	cust, err := store.GetRecord(ctx, "customer", "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "pm_1", cust["default_payment_method_id"])

	pm, err := store.GetRecord(ctx, "payment_method", "pm_1")
	require.NoError(t, err)
	assert.Equal(t, "cus_1", pm["customer_id"])
}

// racingStore reports cus_1 as missing on the first lookup even though a
// concurrent writer already inserted it, forcing the insert to collide.
type racingStore struct {
	*enginetest.MemStore
	raced bool
}

func (r *racingStore) GetRecord(ctx context.Context, entityType, id string) (syncengine.Record, error) {
	if entityType == "customer" && id == "cus_1" && !r.raced {
		r.raced = true
		return nil, syncengine.ErrNotFound
	}
	return r.MemStore.GetRecord(ctx, entityType, id)
}

func TestSyncCreationRaceRetriesLookupOnce(t *testing.T) {
	mem := enginetest.NewMemStore()
	store := &racingStore{MemStore: mem}
	client := enginetest.NewFakeClient()
	resolver := syncengine.NewAccountResolver(store, client, syncengine.ResolverConfig{DefaultAccountID: "acct_default"})
	sync := syncengine.NewSynchronizer(store, client, syncengine.DefaultSchemas(), resolver)
	ctx := context.Background()

	// The row the concurrent delivery already wrote.
	require.NoError(t, mem.InsertRecord(ctx, "customer", syncengine.Record{"id": "cus_1", "email": "old@example.com"}))

	_, err := sync.SyncFromRemoteData(ctx, "customer", customerPayload("cus_1"), "")
	require.NoError(t, err)

	stored, err := mem.GetRecord(ctx, "customer", "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "jo@example.com", stored["email"])
}

func TestDeleteTombstone(t *testing.T) {
	store, _, sync := newTestEngine(t)
	ctx := context.Background()

	_, err := sync.SyncFromRemoteData(ctx, "customer", customerPayload("cus_1"), "")
	require.NoError(t, err)

	require.NoError(t, sync.Delete(ctx, "customer", "cus_1"))

	stored, err := store.GetRecord(ctx, "customer", "cus_1")
	require.NoError(t, err)
	assert.NotNil(t, stored["date_purged"])
}

func TestDeleteBeforeCreateLeavesTombstone(t *testing.T) {
	store, _, sync := newTestEngine(t)
	ctx := context.Background()

	// Deletion arrives before the create event ever did.
	require.NoError(t, sync.Delete(ctx, "subscription", "sub_1"))

	stored, err := store.GetRecord(ctx, "subscription", "sub_1")
	require.NoError(t, err)
	assert.NotNil(t, stored["date_purged"])

	// The out-of-order create must not resurrect the record: the tombstone
	// survives because the update path never touches date_purged.
	payload := map[string]any{
		"id":       "sub_1",
		"object":   "subscription",
		"livemode": false,
		"status":   "active",
		"customer": customerPayload("cus_1"),
	}
	_, err = sync.SyncFromRemoteData(ctx, "subscription", payload, "")
	require.NoError(t, err)

	stored, err = store.GetRecord(ctx, "subscription", "sub_1")
	require.NoError(t, err)
	assert.NotNil(t, stored["date_purged"])
	assert.Equal(t, "active", stored["status"])
}

func TestDeletePhysicalForNonTombstoneTypes(t *testing.T) {
	store, _, sync := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, store.InsertRecord(ctx, "payment_method", syncengine.Record{"id": "pm_1"}))
	require.NoError(t, sync.Delete(ctx, "payment_method", "pm_1"))

	_, err := store.GetRecord(ctx, "payment_method", "pm_1")
	assert.ErrorIs(t, err, syncengine.ErrNotFound)
}

func TestResyncAll(t *testing.T) {
	store, client, sync := newTestEngine(t)
	ctx := context.Background()

	client.Add("product", map[string]any{"id": "prod_1", "object": "product", "livemode": false, "name": "Basic"})
	client.Add("product", map[string]any{"id": "prod_2", "object": "product", "livemode": false, "name": "Pro"})

	n, err := sync.ResyncAll(ctx, "product", "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ids, err := store.ListRecordIDs(ctx, "product")
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}
