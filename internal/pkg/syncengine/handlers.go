package syncengine

import (
	"context"
	"errors"
	"strings"

	"github.com/paymirror/paymirror/internal/pkg/applog"
)

// RegisterDefaultHandlers wires the built-in handlers for every mirrored
// entity type. Callers can register additional handlers before or after;
// dispatch order is registration order.
func RegisterDefaultHandlers(reg *Registry) {
	reg.Register("account.updated", crudLikeHandler("account"))
	reg.Register("customer", handleCustomer)
	reg.Register("customer.subscription", handleSubscription)
	reg.Register("payment_method", handlePaymentMethod)
	reg.Register("charge", crudLikeHandler("charge"))
	reg.Register("invoice", crudLikeHandler("invoice"))
	reg.Register("product", crudLikeHandler("product"))
	reg.Register("price", crudLikeHandler("price"))
}

// eventVerb is the final dot-separated segment of the event type, the
// past-tense action: "created", "updated", "deleted", "detached", ...
func eventVerb(eventType string) string {
	parts := strings.Split(eventType, ".")
	return parts[len(parts)-1]
}

// crudLikeHandler builds the generic create/update/delete handler for
// entity types whose events carry the full object snapshot. Any verb other
// than "deleted" is treated as an upsert; the snapshot in the payload is
// the source of truth either way.
func crudLikeHandler(entityType string) Handler {
	return func(ctx context.Context, env *HandlerEnv) error {
		if env.Object == nil {
			applog.WithComponent("processor").WithField("event_type", env.Event.Type).
				Warn("event carries no object snapshot, skipping")
			return nil
		}
		id := refID(env.Object)
		if id == "" {
			return nil
		}
		if eventVerb(env.Event.Type) == "deleted" {
			return env.Sync.Delete(ctx, entityType, id)
		}
		_, err := env.Sync.SyncFromRemoteData(ctx, entityType, env.Object, "")
		return err
	}
}

// handleCustomer covers the two-segment customer.* events only; the
// customer.subscription.* and customer.discount.* families have their own
// semantics and are left to their dedicated handlers.
func handleCustomer(ctx context.Context, env *HandlerEnv) error {
	if len(env.Event.Parts()) != 2 {
		return nil
	}
	if env.Object == nil {
		return nil
	}
	id := refID(env.Object)
	if id == "" {
		return nil
	}

	if eventVerb(env.Event.Type) == "deleted" {
		return purgeCustomer(ctx, env, id)
	}
	_, err := env.Sync.SyncFromRemoteData(ctx, "customer", env.Object, "")
	return err
}

// purgeCustomer tombstones a deleted customer and scrubs its identifying
// fields. The row itself stays so charges and invoices keep a valid
// reference, but nothing personal survives the deletion.
func purgeCustomer(ctx context.Context, env *HandlerEnv, id string) error {
	if err := env.Sync.Delete(ctx, "customer", id); err != nil {
		return err
	}
	err := env.Store.UpdateRecord(ctx, "customer", id, Record{
		"email":       "",
		"name":        "",
		"description": "",
	})
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// handleSubscription mirrors customer.subscription.* events. A deleted
// subscription is not removed: the remote platform reports it as canceled,
// and the local row keeps that terminal status plus a tombstone.
func handleSubscription(ctx context.Context, env *HandlerEnv) error {
	if env.Object == nil {
		return nil
	}
	id := refID(env.Object)
	if id == "" {
		return nil
	}

	if eventVerb(env.Event.Type) == "deleted" {
		if _, err := env.Sync.SyncFromRemoteData(ctx, "subscription", env.Object, ""); err != nil {
			return err
		}
		if err := env.Store.UpdateRecord(ctx, "subscription", id, Record{"status": "canceled"}); err != nil {
			return err
		}
		return env.Sync.Delete(ctx, "subscription", id)
	}
	_, err := env.Sync.SyncFromRemoteData(ctx, "subscription", env.Object, "")
	return err
}

// handlePaymentMethod mirrors payment_method.* events, with one quirk
// inherited from the platform: legacy card objects (IDs prefixed "card_")
// stop being retrievable once detached, so a detach physically removes the
// local row instead of syncing a snapshot that can never be refreshed.
func handlePaymentMethod(ctx context.Context, env *HandlerEnv) error {
	if env.Object == nil {
		return nil
	}
	id := refID(env.Object)
	if id == "" {
		return nil
	}

	if eventVerb(env.Event.Type) == "detached" && strings.HasPrefix(id, "card_") {
		err := env.Store.DeleteRecord(ctx, "payment_method", id)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	_, err := env.Sync.SyncFromRemoteData(ctx, "payment_method", env.Object, "")
	return err
}
