package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/ledgersync/ledgersync/app/controllers"
)

type WebhookRouter struct {
}

// InstallRouter mounts the provider-facing webhook endpoint. No rate limiter
// here: the provider retries aggressively and throttling it would only delay
// reconciliation.
func (h WebhookRouter) InstallRouter(app *fiber.App) {
	app.Post("/webhook/billing", controllers.HandleBillingWebhook)
}

func NewWebhookRouter() *WebhookRouter {
	return &WebhookRouter{}
}
