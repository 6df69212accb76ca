package syncengine

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/paymirror/paymirror/app/models"
	"github.com/paymirror/paymirror/internal/pkg/applog"
)

// DefaultTolerance is the allowed clock skew between the signature header
// timestamp and the receiving clock.
const DefaultTolerance = models.DefaultWebhookTolerance * time.Second

// VerifySignatureHeader checks a platform signature header of the form
//
//	t=<unix ts>,v1=<hex hmac-sha256>[,v1=<hex hmac-sha256>...]
//
// against the endpoint's shared secret. The signed message is
// "<timestamp>.<body>". Comparison is constant time; any parse failure,
// missing part, or clock-skew violation fails closed.
func VerifySignatureHeader(payload []byte, header, secret string, tolerance time.Duration, now time.Time) bool {
	header = strings.TrimSpace(header)
	secret = strings.TrimSpace(secret)
	if header == "" || secret == "" {
		return false
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	var ts int64
	tsSeen := false
	var candidates [][]byte

	for _, part := range strings.Split(header, ",") {
		k, v, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch k {
		case "t":
			parsed, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return false
			}
			ts = parsed
			tsSeen = true
		case "v1":
			decoded, err := hex.DecodeString(strings.ToLower(v))
			if err != nil {
				continue
			}
			candidates = append(candidates, decoded)
		}
	}

	if !tsSeen || len(candidates) == 0 {
		return false
	}

	skew := now.Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > tolerance {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, candidate := range candidates {
		if hmac.Equal(expected, candidate) {
			return true
		}
	}
	return false
}

// SignPayload produces a valid signature header for a payload, used by the
// operational tooling and by tests to construct deliveries.
func SignPayload(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts.Unix())
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

// ValidateTrigger applies the endpoint's validation strategy to a raw
// delivery. On success it returns the parsed payload; on any failure the
// delivery is invalid, never an error that aborts the request path.
func ValidateTrigger(body []byte, signatureHeader string, endpoint *models.WebhookEndpoint, now time.Time) (bool, map[string]any) {
	payload, err := ParsePayload(body)
	if err != nil {
		return false, nil
	}
	// Garbage until proven otherwise: a parseable payload still needs the
	// event envelope fields before we trust it.
	if _, ok := payload["id"]; !ok {
		return false, nil
	}
	if _, ok := payload["livemode"]; !ok {
		return false, nil
	}

	switch endpoint.ValidationMethod {
	case models.WebhookValidationNone:
		applog.WithComponent("verifier").Warn("webhook validation is disabled for this endpoint")
		return true, payload
	default:
		if VerifySignatureHeader(body, signatureHeader, endpoint.Secret, endpoint.ToleranceDuration(), now) {
			return true, payload
		}
		return false, nil
	}
}
