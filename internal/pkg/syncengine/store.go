package syncengine

import (
	"context"
	"errors"
	"time"

	"github.com/paymirror/paymirror/app/models"
)

// Sentinel errors shared by all store implementations.
var (
	// ErrNotFound is returned for any missing row.
	ErrNotFound = errors.New("syncengine: not found")
	// ErrDuplicate is returned when an insert loses a uniqueness race. The
	// synchronizer recovers from it by retrying the lookup once.
	ErrDuplicate = errors.New("syncengine: duplicate key")
)

// Record is one mirrored row in its generic form: local column name to
// value. The per-entity schema tables decide which columns exist.
type Record map[string]any

// RecordStore persists mirrored records generically, keyed by entity type
// and remote ID.
type RecordStore interface {
	GetRecord(ctx context.Context, entityType, id string) (Record, error)
	// InsertRecord returns ErrDuplicate when a row with the same ID already
	// exists.
	InsertRecord(ctx context.Context, entityType string, rec Record) error
	UpdateRecord(ctx context.Context, entityType, id string, rec Record) error
	DeleteRecord(ctx context.Context, entityType, id string) error
	ListRecordIDs(ctx context.Context, entityType string) ([]string, error)
}

// EventStore persists processed events, keyed by the remote event ID.
type EventStore interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	// CreateEvent returns ErrDuplicate when the event ID was already
	// persisted by a concurrent delivery.
	CreateEvent(ctx context.Context, ev *models.Event) error
}

// TriggerStore persists raw webhook deliveries.
type TriggerStore interface {
	CreateTrigger(ctx context.Context, t *models.WebhookTrigger) error
	UpdateTrigger(ctx context.Context, t *models.WebhookTrigger) error
	ListFailedTriggers(ctx context.Context) ([]models.WebhookTrigger, error)
}

// EndpointStore resolves webhook endpoints by their opaque path token.
type EndpointStore interface {
	GetEndpointByUUID(ctx context.Context, uuid string) (*models.WebhookEndpoint, error)
}

// AccountStore persists platform accounts and their credentials.
type AccountStore interface {
	GetAccount(ctx context.Context, id string) (*models.PlatformAccount, error)
	UpsertAccount(ctx context.Context, a *models.PlatformAccount) error
}

// IdempotencyStore persists outbound-call idempotency keys scoped by
// action and livemode.
type IdempotencyStore interface {
	GetIdempotencyKey(ctx context.Context, action string, livemode bool) (*models.IdempotencyKey, error)
	// SaveIdempotencyKey replaces any existing key for the same action and
	// livemode (an expired key is superseded in place).
	SaveIdempotencyKey(ctx context.Context, k *models.IdempotencyKey) error
	DeleteExpiredIdempotencyKeys(ctx context.Context, before time.Time) (int64, error)
}

// Store is the full persistence surface of the sync engine. Transaction
// yields a store whose writes commit together or not at all; event
// processing runs inside one so a failing handler rolls back the event row
// along with every record it touched.
type Store interface {
	RecordStore
	EventStore
	TriggerStore
	EndpointStore
	AccountStore
	IdempotencyStore

	Transaction(ctx context.Context, fn func(tx Store) error) error
}
