package controllers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/ledgersync/ledgersync/internal/pkg/database"
	"github.com/ledgersync/ledgersync/internal/pkg/env"
	"github.com/ledgersync/ledgersync/internal/pkg/plans"
	"github.com/ledgersync/ledgersync/internal/pkg/reconcile"
)

const webhookTimeout = 15 * time.Second

// HandleBillingWebhook receives provider event notifications, verifies them
// against the shared signing secret and hands them to the dispatcher. The
// response always names what was applied and what failed.
func HandleBillingWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("Billing-Signature"))
	secret := env.GetEnv("BILLING_WEBHOOK_SECRET", "")

	event, err := reconcile.Verify(rawBody, signature, secret)
	if err != nil {
		log.Warnf("[Webhook] Rejected unverified payload: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()

	db := database.GetDB()
	dispatcher := reconcile.NewDispatcher(
		reconcile.NewRepository(db),
		plans.NewCatalogFromDB(db),
	)

	report := dispatcher.Process(ctx, event)
	return c.Status(report.StatusCode()).JSON(report)
}
