package syncengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/paymirror/paymirror/app/models"
	"github.com/paymirror/paymirror/internal/pkg/applog"
	"github.com/paymirror/paymirror/internal/pkg/metrics"
	"github.com/sirupsen/logrus"
)

// Handler reacts to one dispatched event. A non-nil error rolls back the
// enclosing transaction, including the event row itself, so the delivery
// can be retried from scratch.
type Handler func(ctx context.Context, env *HandlerEnv) error

// HandlerEnv is everything a handler gets to work with: the persisted
// event, the embedded object snapshot from the payload (nil when absent),
// and engine facilities already scoped to the processing transaction.
type HandlerEnv struct {
	Event  *models.Event
	Object map[string]any
	Sync   *Synchronizer
	Store  Store
}

// Registry maps namespaced event types to handlers. A handler registered
// for "customer" also receives "customer.subscription.created": matching
// follows dot-separated prefixes, so registrations range from a whole
// category down to one exact type. Catch-all handlers run first, then
// prefix matches in registration order.
type Registry struct {
	catchAll []Handler
	prefixed []registration
}

type registration struct {
	prefix  string
	handler Handler
}

func NewRegistry() *Registry {
	return &Registry{}
}

// RegisterAll registers a handler invoked for every event type.
func (r *Registry) RegisterAll(h Handler) {
	r.catchAll = append(r.catchAll, h)
}

// Register registers a handler for an event type prefix such as
// "customer", "customer.subscription" or "customer.subscription.created".
func (r *Registry) Register(prefix string, h Handler) {
	r.prefixed = append(r.prefixed, registration{prefix: prefix, handler: h})
}

func (r *Registry) handlersFor(eventType string) []Handler {
	out := append([]Handler(nil), r.catchAll...)
	for _, reg := range r.prefixed {
		if eventType == reg.prefix || strings.HasPrefix(eventType, reg.prefix+".") {
			out = append(out, reg.handler)
		}
	}
	return out
}

// errDuplicateEvent aborts the processing transaction without treating the
// situation as a failure: another delivery of the same event won the race.
var errDuplicateEvent = errors.New("syncengine: event already processed")

// Processor turns validated webhook payloads into persisted events and
// dispatches them to registered handlers, exactly once per remote event ID.
type Processor struct {
	store    Store
	sync     *Synchronizer
	resolver *AccountResolver
	registry *Registry
	log      *logrus.Entry
}

func NewProcessor(store Store, sync *Synchronizer, resolver *AccountResolver, registry *Registry) *Processor {
	return &Processor{
		store:    store,
		sync:     sync,
		resolver: resolver,
		registry: registry,
		log:      applog.WithComponent("processor"),
	}
}

// ProcessPayload processes one validated event payload. The bool reports
// whether handlers actually ran: a remote event ID seen before is returned
// as-is without dispatching, making redelivery a no-op.
//
// Event row and every handler write share one transaction. If any handler
// fails, nothing is persisted and the event stays unseen, so the sender's
// retry gets a clean second attempt.
func (p *Processor) ProcessPayload(ctx context.Context, payload map[string]any) (*models.Event, bool, error) {
	event, err := p.buildEvent(ctx, payload)
	if err != nil {
		metrics.EventsProcessed.WithLabelValues("error", "").Inc()
		return nil, false, err
	}

	if existing, err := p.store.GetEvent(ctx, event.ID); err == nil {
		metrics.EventsProcessed.WithLabelValues("duplicate", existing.Type).Inc()
		p.log.WithField("event_id", event.ID).Info("event already processed, skipping")
		return existing, false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	object := embeddedObject(payload)

	txErr := p.store.Transaction(ctx, func(tx Store) error {
		if err := tx.CreateEvent(ctx, event); err != nil {
			if errors.Is(err, ErrDuplicate) {
				return errDuplicateEvent
			}
			return err
		}

		env := &HandlerEnv{
			Event:  event,
			Object: object,
			Sync:   p.sync.WithStore(tx),
			Store:  tx,
		}
		for _, h := range p.registry.handlersFor(event.Type) {
			if err := h(ctx, env); err != nil {
				return err
			}
		}
		return nil
	})

	switch {
	case txErr == nil:
		metrics.EventsProcessed.WithLabelValues("processed", event.Type).Inc()
		return event, true, nil
	case errors.Is(txErr, errDuplicateEvent):
		metrics.EventsProcessed.WithLabelValues("duplicate", event.Type).Inc()
		existing, err := p.store.GetEvent(ctx, event.ID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	default:
		metrics.EventsProcessed.WithLabelValues("error", event.Type).Inc()
		return nil, false, txErr
	}
}

// buildEvent extracts the event envelope from the payload. The request
// block has two historical shapes: an object holding id and
// idempotency_key, or a bare request ID string.
func (p *Processor) buildEvent(ctx context.Context, payload map[string]any) (*models.Event, error) {
	id, _ := payload["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("syncengine: event payload has no id")
	}
	eventType, _ := payload["type"].(string)
	if eventType == "" {
		return nil, fmt.Errorf("syncengine: event %s has no type", id)
	}

	event := &models.Event{ID: id, Type: eventType}
	if lm, ok := payload["livemode"].(bool); ok {
		event.Livemode = lm
	}
	if v, ok := payload["api_version"].(string); ok {
		event.APIVersion = v
	}

	switch req := payload["request"].(type) {
	case map[string]any:
		event.RequestID, _ = req["id"].(string)
		event.IdempotencyKey, _ = req["idempotency_key"].(string)
	case string:
		event.RequestID = req
	}

	if created, err := UnixTime(payload["created"]); err == nil {
		t := created.(time.Time)
		event.Created = &t
	}

	data, ok := payload["data"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("syncengine: event %s has no data block", id)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	event.Data = string(raw)

	// Owner resolution for the event itself follows the embedded object's
	// explicit account reference, falling back to the process default.
	ownerSource := embeddedObject(payload)
	if ownerSource == nil {
		ownerSource = payload
	}
	account, err := p.resolver.Resolve(ctx, ownerSource, "")
	switch {
	case err == nil:
		event.OwnerAccountID = &account.ID
	case errors.Is(err, ErrNoOwnerAccount):
		// acceptable: the event stays unowned
	default:
		return nil, err
	}

	return event, nil
}

// embeddedObject returns the object snapshot carried in the payload's data
// block, or nil.
func embeddedObject(payload map[string]any) map[string]any {
	data, ok := payload["data"].(map[string]any)
	if !ok {
		return nil
	}
	object, _ := data["object"].(map[string]any)
	return object
}
