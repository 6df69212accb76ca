package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEventTypeParts(t *testing.T) {
	ev := &Event{Type: "customer.subscription.created"}
	assert.Equal(t, []string{"customer", "subscription", "created"}, ev.Parts())
	assert.Equal(t, "customer", ev.Category())
	assert.Equal(t, "subscription.created", ev.Verb())

	ev = &Event{Type: "invoice.paid"}
	assert.Equal(t, "invoice", ev.Category())
	assert.Equal(t, "paid", ev.Verb())
}

func TestWebhookEndpointValidate(t *testing.T) {
	ep := &WebhookEndpoint{
		ID:               "we_1",
		UUID:             "a3f1c7de-8f4b-4c2a-9c6e-2b7d9e0f1a23",
		Status:           "enabled",
		Tolerance:        300,
		ValidationMethod: WebhookValidationHeader,
	}
	assert.NoError(t, ep.Validate())

	ep.UUID = "not-a-uuid"
	assert.Error(t, ep.Validate())

	ep.UUID = "a3f1c7de-8f4b-4c2a-9c6e-2b7d9e0f1a23"
	ep.ValidationMethod = "SOMETIMES"
	assert.Error(t, ep.Validate())
}

func TestWebhookEndpointToleranceDuration(t *testing.T) {
	ep := &WebhookEndpoint{}
	assert.Equal(t, DefaultWebhookTolerance*time.Second, ep.ToleranceDuration())
	ep.Tolerance = 600
	assert.Equal(t, 600*time.Second, ep.ToleranceDuration())
}

func TestIdempotencyKeyExpiry(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	k := &IdempotencyKey{UUID: "u", Action: "a", CreatedAt: created}

	assert.False(t, k.IsExpiredAt(created.Add(23*time.Hour)))
	assert.True(t, k.IsExpiredAt(created.Add(25*time.Hour)))
}
