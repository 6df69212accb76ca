package syncengine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/paymirror/paymirror/app/models"
	"github.com/paymirror/paymirror/internal/pkg/remote"
)

// Guard hands out idempotency keys for outbound mutating calls. One logical
// action gets one key for the lifetime of the key, so a locally retried
// call reaches the remote platform with the same key and is deduplicated
// there instead of creating a second resource.
type Guard struct {
	store IdempotencyStore
	ttl   time.Duration
	now   func() time.Time
}

func NewGuard(store IdempotencyStore) *Guard {
	return &Guard{
		store: store,
		ttl:   models.IdempotencyKeyTTL,
		now:   time.Now,
	}
}

// WithClock substitutes the time source, for deterministic tests.
func (g *Guard) WithClock(now func() time.Time) *Guard {
	clone := *g
	clone.now = now
	return &clone
}

// Key returns the idempotency key for an action, reusing the stored key
// while it is unexpired and minting a replacement otherwise. Action scoping
// includes livemode: the same action name in test and live mode gets
// distinct keys.
func (g *Guard) Key(ctx context.Context, action string, livemode bool) (string, error) {
	existing, err := g.store.GetIdempotencyKey(ctx, action, livemode)
	switch {
	case err == nil:
		if !existing.IsExpiredAt(g.now()) {
			return existing.UUID, nil
		}
	case !errors.Is(err, ErrNotFound):
		return "", err
	}

	key := &models.IdempotencyKey{
		UUID:      uuid.NewString(),
		Action:    action,
		Livemode:  livemode,
		CreatedAt: g.now(),
	}
	if err := g.store.SaveIdempotencyKey(ctx, key); err != nil {
		if !errors.Is(err, ErrDuplicate) {
			return "", err
		}
		// Lost a mint race against a sibling process; theirs is just as good.
		raced, err := g.store.GetIdempotencyKey(ctx, action, livemode)
		if err != nil {
			return "", err
		}
		return raced.UUID, nil
	}
	return key.UUID, nil
}

// Do runs one outbound mutating call under an idempotency key for the
// action. The callback receives call options pre-populated with the key.
func (g *Guard) Do(ctx context.Context, action string, livemode bool, fn func(opts remote.CallOptions) error) error {
	key, err := g.Key(ctx, action, livemode)
	if err != nil {
		return err
	}
	return fn(remote.CallOptions{IdempotencyKey: key})
}

// ClearExpired deletes keys past their TTL. Expiry is otherwise derived on
// lookup only, so storage grows until this maintenance pass runs.
func (g *Guard) ClearExpired(ctx context.Context) (int64, error) {
	return g.store.DeleteExpiredIdempotencyKeys(ctx, g.now().Add(-g.ttl))
}
