package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/paymirror/paymirror/app/models"
	"github.com/paymirror/paymirror/internal/pkg/applog"
	"github.com/paymirror/paymirror/internal/pkg/metrics"
	"github.com/paymirror/paymirror/internal/pkg/syncengine"
	"github.com/sirupsen/logrus"
)

const webhookTimeout = 30 * time.Second

// SignatureHeader is the platform's signature header name on webhook
// deliveries.
const SignatureHeader = "Stripe-Signature"

// WebhookController receives webhook deliveries. Every delivery that makes
// it past the endpoint lookup is persisted as a WebhookTrigger before any
// validation runs, valid or not, so there is always an audit row.
type WebhookController struct {
	store     syncengine.Store
	processor *syncengine.Processor
	log       *logrus.Entry
}

func NewWebhookController(store syncengine.Store, processor *syncengine.Processor) *WebhookController {
	return &WebhookController{
		store:     store,
		processor: processor,
		log:       applog.WithComponent("webhook"),
	}
}

// HandleWebhook is POST /stripe/webhook/:uuid. The success body is the
// trigger's local UUID so a delivery can be located in the audit trail from
// the sender's logs.
func (wc *WebhookController) HandleWebhook(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()

	endpoint, err := wc.store.GetEndpointByUUID(ctx, c.Params("uuid"))
	if err != nil {
		if errors.Is(err, syncengine.ErrNotFound) {
			metrics.TriggersReceived.WithLabelValues("unknown_endpoint").Inc()
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown_endpoint"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "endpoint_lookup_failed"})
	}

	signature := strings.TrimSpace(c.Get(SignatureHeader))
	// A delivery without the signature header cannot possibly validate, so
	// it is rejected before anything is persisted. This is the one rejection
	// that leaves no audit row.
	if signature == "" && endpoint.ValidationMethod != models.WebhookValidationNone {
		metrics.TriggersReceived.WithLabelValues("missing_signature").Inc()
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing_signature_header"})
	}

	rawBody := append([]byte(nil), c.BodyRaw()...)
	trigger := &models.WebhookTrigger{
		ID:            uuid.NewString(),
		RemoteIP:      clientIP(c),
		Headers:       serializeHeaders(c),
		Body:          string(rawBody),
		EndpointID:    &endpoint.ID,
		MirrorVersion: models.MirrorVersion,
	}
	if err := wc.store.CreateTrigger(ctx, trigger); err != nil {
		wc.log.WithError(err).Error("could not persist webhook trigger")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "trigger_persist_failed"})
	}

	valid, payload := syncengine.ValidateTrigger(rawBody, signature, endpoint, time.Now())
	if !valid {
		metrics.TriggersReceived.WithLabelValues("invalid").Inc()
		wc.log.WithField("trigger_id", trigger.ID).Warn("webhook delivery failed validation")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_delivery"})
	}

	trigger.Valid = true
	if err := wc.store.UpdateTrigger(ctx, trigger); err != nil {
		wc.log.WithError(err).Error("could not update webhook trigger")
	}

	event, _, err := wc.processor.ProcessPayload(ctx, payload)
	if err != nil {
		trigger.Exception = truncate(err.Error(), 255)
		if uerr := wc.store.UpdateTrigger(ctx, trigger); uerr != nil {
			wc.log.WithError(uerr).Error("could not record trigger exception")
		}
		metrics.TriggersReceived.WithLabelValues("error").Inc()
		wc.log.WithError(err).WithField("trigger_id", trigger.ID).Error("event processing failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "processing_failed"})
	}

	trigger.Processed = true
	trigger.EventID = &event.ID
	if err := wc.store.UpdateTrigger(ctx, trigger); err != nil {
		wc.log.WithError(err).Error("could not finalize webhook trigger")
	}

	metrics.TriggersReceived.WithLabelValues("processed").Inc()
	return c.Status(fiber.StatusOK).SendString(trigger.ID)
}

// clientIP prefers the first X-Forwarded-For hop so triggers record the
// real sender behind a reverse proxy.
func clientIP(c *fiber.Ctx) string {
	if fwd := strings.TrimSpace(c.Get(fiber.HeaderXForwardedFor)); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	return c.IP()
}

func serializeHeaders(c *fiber.Ctx) string {
	raw, err := json.Marshal(c.GetReqHeaders())
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
