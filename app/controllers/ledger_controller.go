package controllers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/ledgersync/ledgersync/internal/pkg/database"
	"github.com/ledgersync/ledgersync/internal/pkg/reconcile"
)

// HandleGetAccount returns the ledger state for one identity.
func HandleGetAccount(c *fiber.Ctx) error {
	email := strings.TrimSpace(c.Params("email"))
	if email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "email missing"})
	}

	repo := reconcile.NewRepository(database.GetDB())
	acct, err := repo.FindAccount(email)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "account_lookup_failed"})
	}
	if acct == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "account_not_found"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"email":               acct.Email,
		"account_type":        acct.AccountType,
		"token_balance":       acct.TokenBalance,
		"unlimited_tokens":    acct.HasUnlimitedTokens(),
		"subscription_status": acct.SubscriptionStatus,
		"invoice_status":      acct.InvoiceStatus,
		"current_plan":        acct.CurrentPlan,
		"next_renewal_date":   formatTimePtr(acct.NextRenewalDate),
	})
}

// HandleGetAccountEvents returns the audit trail for one identity, newest
// first.
func HandleGetAccountEvents(c *fiber.Ctx) error {
	email := strings.TrimSpace(c.Params("email"))
	if email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "email missing"})
	}

	limit, _ := strconv.Atoi(c.Query("limit", "50"))

	repo := reconcile.NewRepository(database.GetDB())
	events, err := repo.ListEvents(email, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "event_lookup_failed"})
	}

	items := make([]fiber.Map, 0, len(events))
	for _, ev := range events {
		items = append(items, fiber.Map{
			"event_id":     ev.EventID,
			"event_type":   ev.EventType,
			"processed_at": ev.ProcessedAt.UTC().Format(time.RFC3339),
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"email": email, "events": items})
}

// formatTimePtr renders a nullable timestamp as RFC3339 or nil.
func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
