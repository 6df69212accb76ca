package syncengine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Transform converts one remote field value into its local representation.
type Transform func(v any) (any, error)

// Field maps one remote payload key to a local column.
type Field struct {
	Remote    string
	Local     string
	Transform Transform
}

// Relation maps a remote reference field (either a bare ID string or a
// nested expanded object) to a local foreign-key column. Required
// relations are fetched on demand when unexpanded; optional ones store the
// bare reference lazily.
type Relation struct {
	Remote   string
	Local    string
	Target   string
	Required bool
}

// PostSaveFunc runs after the record row exists, for side effects that
// need the row to be present (back-references and the like). Must be
// idempotent: it runs once per synchronize call, including redeliveries.
type PostSaveFunc func(ctx context.Context, store Store, id string, data map[string]any) error

// Schema is the declarative synchronization table for one entity type.
// A single generic synchronizer consults these instead of per-type code.
type Schema struct {
	// EntityType is both the registry key and the remote "object" type tag.
	EntityType string
	Table      string
	Fields     []Field
	Relations  []Relation
	// Tombstone entities are never removed: deletion sets date_purged, so a
	// re-ordered create event cannot resurrect them.
	Tombstone bool
	PostSave  PostSaveFunc
}

// SchemaRegistry holds all registered entity schemas, keyed by type tag.
type SchemaRegistry struct {
	byType map[string]*Schema
	order  []string
}

func NewSchemaRegistry() *SchemaRegistry {
	return &SchemaRegistry{byType: map[string]*Schema{}}
}

func (r *SchemaRegistry) Register(s *Schema) {
	if _, exists := r.byType[s.EntityType]; !exists {
		r.order = append(r.order, s.EntityType)
	}
	r.byType[s.EntityType] = s
}

func (r *SchemaRegistry) Lookup(entityType string) (*Schema, bool) {
	s, ok := r.byType[entityType]
	return s, ok
}

// EntityTypes returns all registered type tags in registration order.
func (r *SchemaRegistry) EntityTypes() []string {
	return append([]string(nil), r.order...)
}

//
// Transforms
//

// String passes a string through unchanged.
func String(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("expected string, got %T", v)
	}
	return s, nil
}

// Bool passes a boolean through unchanged.
func Bool(v any) (any, error) {
	b, ok := v.(bool)
	if !ok {
		return nil, fmt.Errorf("expected bool, got %T", v)
	}
	return b, nil
}

// LowerString normalizes an enum-ish string to lower case.
func LowerString(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("expected string, got %T", v)
	}
	return strings.ToLower(strings.TrimSpace(s)), nil
}

// UnixTime converts a remote unix-seconds timestamp to UTC time.
func UnixTime(v any) (any, error) {
	n, err := toInt64(v)
	if err != nil {
		return nil, err
	}
	return time.Unix(n, 0).UTC(), nil
}

// MinorUnits converts an integer minor-unit amount (cents) to an exact
// decimal major-unit amount with two decimal places. Exact arithmetic
// only; float conversion would drift across repeated syncs.
func MinorUnits(v any) (any, error) {
	n, err := toInt64(v)
	if err != nil {
		return nil, err
	}
	return decimal.New(n, -2), nil
}

// ToMinorUnits is the inverse of MinorUnits, used when composing outbound
// calls from locally stored amounts.
func ToMinorUnits(d decimal.Decimal) int64 {
	return d.Shift(2).IntPart()
}

// toInt64 accepts the numeric shapes a JSON decode can produce. Payloads
// are parsed with UseNumber, so json.Number is the common case.
func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		return n.Int64()
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

// ParsePayload decodes a JSON payload preserving integer precision.
func ParsePayload(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// DefaultSchemas registers the mirrored entity types. These tables replace
// the original's per-type reflection: one row per remote field, consulted
// by the generic synchronizer.
func DefaultSchemas() *SchemaRegistry {
	reg := NewSchemaRegistry()

	reg.Register(&Schema{
		EntityType: "account",
		Table:      "platform_accounts",
		Fields: []Field{
			{Remote: "business_name", Local: "business_name", Transform: String},
			{Remote: "email", Local: "email", Transform: String},
			{Remote: "country", Local: "country", Transform: String},
			{Remote: "created", Local: "created", Transform: UnixTime},
		},
	})

	reg.Register(&Schema{
		EntityType: "customer",
		Table:      "customers",
		Tombstone:  true,
		Fields: []Field{
			{Remote: "email", Local: "email", Transform: String},
			{Remote: "name", Local: "name", Transform: String},
			{Remote: "description", Local: "description", Transform: String},
			{Remote: "currency", Local: "currency", Transform: LowerString},
			{Remote: "balance", Local: "balance", Transform: MinorUnits},
			{Remote: "delinquent", Local: "delinquent", Transform: Bool},
			{Remote: "created", Local: "created", Transform: UnixTime},
		},
		Relations: []Relation{
			{Remote: "default_payment_method", Local: "default_payment_method_id", Target: "payment_method"},
		},
	})

	reg.Register(&Schema{
		EntityType: "charge",
		Table:      "charges",
		Fields: []Field{
			{Remote: "amount", Local: "amount", Transform: MinorUnits},
			{Remote: "amount_refunded", Local: "amount_refunded", Transform: MinorUnits},
			{Remote: "currency", Local: "currency", Transform: LowerString},
			{Remote: "status", Local: "status", Transform: LowerString},
			{Remote: "paid", Local: "paid", Transform: Bool},
			{Remote: "refunded", Local: "refunded", Transform: Bool},
			{Remote: "description", Local: "description", Transform: String},
			{Remote: "created", Local: "created", Transform: UnixTime},
		},
		Relations: []Relation{
			{Remote: "customer", Local: "customer_id", Target: "customer"},
			{Remote: "invoice", Local: "invoice_id", Target: "invoice", Required: true},
			{Remote: "payment_method", Local: "payment_method_id", Target: "payment_method"},
		},
	})

	reg.Register(&Schema{
		EntityType: "invoice",
		Table:      "invoices",
		Fields: []Field{
			{Remote: "number", Local: "number", Transform: String},
			{Remote: "amount_due", Local: "amount_due", Transform: MinorUnits},
			{Remote: "amount_paid", Local: "amount_paid", Transform: MinorUnits},
			{Remote: "currency", Local: "currency", Transform: LowerString},
			{Remote: "status", Local: "status", Transform: LowerString},
			{Remote: "paid", Local: "paid", Transform: Bool},
			{Remote: "created", Local: "created", Transform: UnixTime},
		},
		Relations: []Relation{
			{Remote: "customer", Local: "customer_id", Target: "customer", Required: true},
			{Remote: "subscription", Local: "subscription_id", Target: "subscription"},
		},
	})

	reg.Register(&Schema{
		EntityType: "subscription",
		Table:      "subscriptions",
		Tombstone:  true,
		Fields: []Field{
			{Remote: "status", Local: "status", Transform: LowerString},
			{Remote: "current_period_start", Local: "current_period_start", Transform: UnixTime},
			{Remote: "current_period_end", Local: "current_period_end", Transform: UnixTime},
			{Remote: "cancel_at_period_end", Local: "cancel_at_period_end", Transform: Bool},
			{Remote: "canceled_at", Local: "canceled_at", Transform: UnixTime},
			{Remote: "created", Local: "created", Transform: UnixTime},
		},
		Relations: []Relation{
			{Remote: "customer", Local: "customer_id", Target: "customer", Required: true},
			{Remote: "price", Local: "price_id", Target: "price"},
		},
	})

	reg.Register(&Schema{
		EntityType: "payment_method",
		Table:      "payment_methods",
		Fields: []Field{
			{Remote: "type", Local: "type", Transform: LowerString},
			{Remote: "created", Local: "created", Transform: UnixTime},
		},
		Relations: []Relation{
			{Remote: "customer", Local: "customer_id", Target: "customer"},
		},
		PostSave: paymentMethodPostSave,
	})

	reg.Register(&Schema{
		EntityType: "product",
		Table:      "products",
		Fields: []Field{
			{Remote: "name", Local: "name", Transform: String},
			{Remote: "description", Local: "description", Transform: String},
			{Remote: "active", Local: "active", Transform: Bool},
			{Remote: "created", Local: "created", Transform: UnixTime},
		},
	})

	reg.Register(&Schema{
		EntityType: "price",
		Table:      "prices",
		Fields: []Field{
			{Remote: "currency", Local: "currency", Transform: LowerString},
			{Remote: "unit_amount", Local: "unit_amount", Transform: MinorUnits},
			{Remote: "active", Local: "active", Transform: Bool},
			{Remote: "created", Local: "created", Transform: UnixTime},
		},
		Relations: []Relation{
			{Remote: "product", Local: "product_id", Target: "product"},
		},
		PostSave: pricePostSave,
	})

	return reg
}

// pricePostSave flattens the recurrence interval out of the nested
// recurring object.
func pricePostSave(ctx context.Context, store Store, id string, data map[string]any) error {
	recurring, ok := data["recurring"].(map[string]any)
	if !ok {
		return nil
	}
	interval, ok := recurring["interval"].(string)
	if !ok {
		return nil
	}
	return store.UpdateRecord(ctx, "price", id, Record{"interval": strings.ToLower(interval)})
}

// paymentMethodPostSave maintains the owning customer's default payment
// method back-reference once the payment method row exists. Card details
// are flattened out of the nested card object here because they are not a
// relation, just denormalized display fields.
func paymentMethodPostSave(ctx context.Context, store Store, id string, data map[string]any) error {
	if card, ok := data["card"].(map[string]any); ok {
		updates := Record{}
		if brand, ok := card["brand"].(string); ok {
			updates["card_brand"] = strings.ToLower(brand)
		}
		if last4, ok := card["last4"].(string); ok {
			updates["card_last4"] = last4
		}
		if len(updates) > 0 {
			if err := store.UpdateRecord(ctx, "payment_method", id, updates); err != nil {
				return err
			}
		}
	}

	customerID := refID(data["customer"])
	if customerID == "" {
		return nil
	}
	cust, err := store.GetRecord(ctx, "customer", customerID)
	if err != nil {
		if err == ErrNotFound {
			return nil
		}
		return err
	}
	if existing, _ := cust["default_payment_method_id"].(string); existing == "" || existing == id {
		return store.UpdateRecord(ctx, "customer", customerID, Record{"default_payment_method_id": id})
	}
	return nil
}

// refID extracts the remote ID from a reference value, which is either a
// bare ID string or an expanded object.
func refID(v any) string {
	switch ref := v.(type) {
	case string:
		return ref
	case map[string]any:
		id, _ := ref["id"].(string)
		return id
	default:
		return ""
	}
}
