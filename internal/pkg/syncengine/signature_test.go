package syncengine

import (
	"fmt"
	"testing"
	"time"

	"github.com/paymirror/paymirror/app/models"
	"github.com/stretchr/testify/assert"
)

func TestVerifySignatureHeader(t *testing.T) {
	secret := "whsec_test_secret"
	payload := []byte(`{"id":"evt_1","livemode":false}`)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	header := SignPayload(payload, secret, now)
	assert.True(t, VerifySignatureHeader(payload, header, secret, DefaultTolerance, now))
}

func TestVerifySignatureHeaderTamperedBody(t *testing.T) {
	secret := "whsec_test_secret"
	now := time.Now()
	header := SignPayload([]byte(`{"id":"evt_1"}`), secret, now)

	assert.False(t, VerifySignatureHeader([]byte(`{"id":"evt_2"}`), header, secret, DefaultTolerance, now))
}

func TestVerifySignatureHeaderWrongSecret(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Now()
	header := SignPayload(payload, "whsec_a", now)

	assert.False(t, VerifySignatureHeader(payload, header, "whsec_b", DefaultTolerance, now))
}

func TestVerifySignatureHeaderMultipleCandidates(t *testing.T) {
	secret := "whsec_test_secret"
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Now()

	valid := SignPayload(payload, secret, now)
	// Prepend a bogus v1 candidate; any single match must suffice.
	header := fmt.Sprintf("t=%d,v1=%s,%s", now.Unix(), "deadbeef", valid[len(fmt.Sprintf("t=%d,", now.Unix())):])
	assert.True(t, VerifySignatureHeader(payload, header, secret, DefaultTolerance, now))
}

func TestVerifySignatureHeaderClockSkew(t *testing.T) {
	secret := "whsec_test_secret"
	payload := []byte(`{"id":"evt_1"}`)
	signed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	header := SignPayload(payload, secret, signed)

	// Inside tolerance in both directions.
	assert.True(t, VerifySignatureHeader(payload, header, secret, DefaultTolerance, signed.Add(4*time.Minute)))
	assert.True(t, VerifySignatureHeader(payload, header, secret, DefaultTolerance, signed.Add(-4*time.Minute)))

	// Outside tolerance in both directions.
	assert.False(t, VerifySignatureHeader(payload, header, secret, DefaultTolerance, signed.Add(6*time.Minute)))
	assert.False(t, VerifySignatureHeader(payload, header, secret, DefaultTolerance, signed.Add(-6*time.Minute)))
}

func TestVerifySignatureHeaderMalformed(t *testing.T) {
	secret := "whsec_test_secret"
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Now()

	assert.False(t, VerifySignatureHeader(payload, "", secret, DefaultTolerance, now))
	assert.False(t, VerifySignatureHeader(payload, "v1=abcdef", secret, DefaultTolerance, now))
	assert.False(t, VerifySignatureHeader(payload, fmt.Sprintf("t=%d", now.Unix()), secret, DefaultTolerance, now))
	assert.False(t, VerifySignatureHeader(payload, "t=notanumber,v1=abcdef", secret, DefaultTolerance, now))
	assert.False(t, VerifySignatureHeader(payload, SignPayload(payload, secret, now), "", DefaultTolerance, now))
}

func TestValidateTrigger(t *testing.T) {
	secret := "whsec_test_secret"
	now := time.Now()
	endpoint := &models.WebhookEndpoint{
		ID:               "we_1",
		Secret:           secret,
		ValidationMethod: models.WebhookValidationHeader,
	}

	body := []byte(`{"id":"evt_1","livemode":false,"type":"customer.created"}`)
	valid, payload := ValidateTrigger(body, SignPayload(body, secret, now), endpoint, now)
	assert.True(t, valid)
	assert.Equal(t, "evt_1", payload["id"])

	// Unparseable body.
	valid, _ = ValidateTrigger([]byte("{nope"), SignPayload([]byte("{nope"), secret, now), endpoint, now)
	assert.False(t, valid)

	// Parseable but not an event envelope.
	junk := []byte(`{"hello":"world"}`)
	valid, _ = ValidateTrigger(junk, SignPayload(junk, secret, now), endpoint, now)
	assert.False(t, valid)

	// Missing livemode key is rejected too.
	noMode := []byte(`{"id":"evt_1"}`)
	valid, _ = ValidateTrigger(noMode, SignPayload(noMode, secret, now), endpoint, now)
	assert.False(t, valid)
}

func TestValidateTriggerNoValidation(t *testing.T) {
	endpoint := &models.WebhookEndpoint{
		ID:               "we_1",
		ValidationMethod: models.WebhookValidationNone,
	}

	body := []byte(`{"id":"evt_1","livemode":true}`)
	valid, payload := ValidateTrigger(body, "", endpoint, time.Now())
	assert.True(t, valid)
	assert.Equal(t, true, payload["livemode"])

	// Garbage still fails the envelope check even with validation off.
	valid, _ = ValidateTrigger([]byte(`{"x":1}`), "", endpoint, time.Now())
	assert.False(t, valid)
}
