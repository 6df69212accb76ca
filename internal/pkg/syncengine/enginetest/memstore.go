// Package enginetest provides in-memory fakes for the sync engine's store
// and remote client interfaces, so engine and controller tests run without
// a database or network.
package enginetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/paymirror/paymirror/app/models"
	"github.com/paymirror/paymirror/internal/pkg/syncengine"
)

// MemStore is a map-backed syncengine.Store. Transaction takes a full
// snapshot and restores it when the callback fails, giving real rollback
// semantics for sequential test use.
type MemStore struct {
	mu        sync.Mutex
	records   map[string]map[string]syncengine.Record
	events    map[string]models.Event
	triggers  map[string]models.WebhookTrigger
	order     []string
	endpoints map[string]models.WebhookEndpoint
	accounts  map[string]models.PlatformAccount
	idemKeys  map[string]models.IdempotencyKey
}

func NewMemStore() *MemStore {
	return &MemStore{
		records:   map[string]map[string]syncengine.Record{},
		events:    map[string]models.Event{},
		triggers:  map[string]models.WebhookTrigger{},
		endpoints: map[string]models.WebhookEndpoint{},
		accounts:  map[string]models.PlatformAccount{},
		idemKeys:  map[string]models.IdempotencyKey{},
	}
}

func copyRecord(rec syncengine.Record) syncengine.Record {
	out := syncengine.Record{}
	for k, v := range rec {
		out[k] = v
	}
	return out
}

func (m *MemStore) GetRecord(ctx context.Context, entityType, id string) (syncengine.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[entityType][id]
	if !ok {
		return nil, syncengine.ErrNotFound
	}
	return copyRecord(rec), nil
}

func (m *MemStore) InsertRecord(ctx context.Context, entityType string, rec syncengine.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, _ := rec["id"].(string)
	if id == "" {
		return fmt.Errorf("enginetest: record has no id")
	}
	if m.records[entityType] == nil {
		m.records[entityType] = map[string]syncengine.Record{}
	}
	if _, exists := m.records[entityType][id]; exists {
		return syncengine.ErrDuplicate
	}
	m.records[entityType][id] = copyRecord(rec)
	return nil
}

func (m *MemStore) UpdateRecord(ctx context.Context, entityType, id string, rec syncengine.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.records[entityType][id]
	if !ok {
		return syncengine.ErrNotFound
	}
	for k, v := range rec {
		existing[k] = v
	}
	return nil
}

func (m *MemStore) DeleteRecord(ctx context.Context, entityType, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records[entityType], id)
	return nil
}

func (m *MemStore) ListRecordIDs(ctx context.Context, entityType string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id := range m.records[entityType] {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *MemStore) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[id]
	if !ok {
		return nil, syncengine.ErrNotFound
	}
	out := ev
	return &out, nil
}

func (m *MemStore) CreateEvent(ctx context.Context, ev *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.events[ev.ID]; exists {
		return syncengine.ErrDuplicate
	}
	m.events[ev.ID] = *ev
	return nil
}

func (m *MemStore) CreateTrigger(ctx context.Context, t *models.WebhookTrigger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.triggers[t.ID]; exists {
		return syncengine.ErrDuplicate
	}
	m.triggers[t.ID] = *t
	m.order = append(m.order, t.ID)
	return nil
}

func (m *MemStore) UpdateTrigger(ctx context.Context, t *models.WebhookTrigger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.triggers[t.ID]; !exists {
		return syncengine.ErrNotFound
	}
	m.triggers[t.ID] = *t
	return nil
}

func (m *MemStore) ListFailedTriggers(ctx context.Context) ([]models.WebhookTrigger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.WebhookTrigger
	for _, id := range m.order {
		t := m.triggers[id]
		if t.Valid && !t.Processed {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MemStore) GetEndpointByUUID(ctx context.Context, uuid string) (*models.WebhookEndpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ep, ok := m.endpoints[uuid]
	if !ok {
		return nil, syncengine.ErrNotFound
	}
	out := ep
	return &out, nil
}

// SeedEndpoint installs an endpoint for controller tests.
func (m *MemStore) SeedEndpoint(ep models.WebhookEndpoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endpoints[ep.UUID] = ep
}

func (m *MemStore) GetAccount(ctx context.Context, id string) (*models.PlatformAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, syncengine.ErrNotFound
	}
	out := a
	return &out, nil
}

func (m *MemStore) UpsertAccount(ctx context.Context, a *models.PlatformAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[a.ID] = *a
	return nil
}

func idemKeyID(action string, livemode bool) string {
	return fmt.Sprintf("%s|%t", action, livemode)
}

func (m *MemStore) GetIdempotencyKey(ctx context.Context, action string, livemode bool) (*models.IdempotencyKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.idemKeys[idemKeyID(action, livemode)]
	if !ok {
		return nil, syncengine.ErrNotFound
	}
	out := k
	return &out, nil
}

func (m *MemStore) SaveIdempotencyKey(ctx context.Context, k *models.IdempotencyKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idemKeys[idemKeyID(k.Action, k.Livemode)] = *k
	return nil
}

func (m *MemStore) DeleteExpiredIdempotencyKeys(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, k := range m.idemKeys {
		if k.CreatedAt.Before(before) {
			delete(m.idemKeys, id)
			n++
		}
	}
	return n, nil
}

// Transaction snapshots all state, runs fn against the same store, and
// restores the snapshot if fn fails.
func (m *MemStore) Transaction(ctx context.Context, fn func(tx syncengine.Store) error) error {
	snap := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memSnapshot struct {
	records   map[string]map[string]syncengine.Record
	events    map[string]models.Event
	triggers  map[string]models.WebhookTrigger
	order     []string
	accounts  map[string]models.PlatformAccount
	idemKeys  map[string]models.IdempotencyKey
	endpoints map[string]models.WebhookEndpoint
}

func (m *MemStore) snapshot() memSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := memSnapshot{
		records:   map[string]map[string]syncengine.Record{},
		events:    map[string]models.Event{},
		triggers:  map[string]models.WebhookTrigger{},
		order:     append([]string(nil), m.order...),
		accounts:  map[string]models.PlatformAccount{},
		idemKeys:  map[string]models.IdempotencyKey{},
		endpoints: map[string]models.WebhookEndpoint{},
	}
	for et, rows := range m.records {
		snap.records[et] = map[string]syncengine.Record{}
		for id, rec := range rows {
			snap.records[et][id] = copyRecord(rec)
		}
	}
	for id, ev := range m.events {
		snap.events[id] = ev
	}
	for id, t := range m.triggers {
		snap.triggers[id] = t
	}
	for id, a := range m.accounts {
		snap.accounts[id] = a
	}
	for id, k := range m.idemKeys {
		snap.idemKeys[id] = k
	}
	for id, ep := range m.endpoints {
		snap.endpoints[id] = ep
	}
	return snap
}

func (m *MemStore) restore(snap memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = snap.records
	m.events = snap.events
	m.triggers = snap.triggers
	m.order = snap.order
	m.accounts = snap.accounts
	m.idemKeys = snap.idemKeys
	m.endpoints = snap.endpoints
}
