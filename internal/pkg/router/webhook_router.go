package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/paymirror/paymirror/app/controllers"
)

// WebhookRouter mounts the webhook ingress. The path's trailing segment is
// the endpoint's opaque UUID token, not a fixed well-known URL.
type WebhookRouter struct {
	controller *controllers.WebhookController
}

func NewWebhookRouter(controller *controllers.WebhookController) *WebhookRouter {
	return &WebhookRouter{controller: controller}
}

func (r WebhookRouter) InstallRouter(app *fiber.App) {
	app.Post("/stripe/webhook/:uuid", r.controller.HandleWebhook)
}
