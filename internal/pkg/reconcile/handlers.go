package reconcile

import (
	"context"
	"fmt"

	"github.com/ledgersync/ledgersync/app/models"
	"github.com/ledgersync/ledgersync/internal/pkg/plans"
)

// applyFunc is a pure transition: given the event and the current account
// state (nil for an unknown identity), it returns the full replacement state
// and a human-readable update description. A nil next state means the event
// mutates nothing but is still recorded.
type applyFunc func(ctx context.Context, ev *Event, acct *models.Account, catalog plans.Resolver) (*models.Account, string, error)

// transition couples best-effort identity extraction with the state
// transition for one event kind.
type transition struct {
	identify func(ev *Event) string
	apply    applyFunc
}

func transitions() map[Kind]transition {
	return map[Kind]transition{
		KindCheckoutCompleted:    {identify: checkoutIdentity, apply: applyCheckoutCompleted},
		KindSubscriptionCreated:  {identify: subscriptionIdentity, apply: applySubscriptionCreated},
		KindSubscriptionUpdated:  {identify: subscriptionIdentity, apply: applySubscriptionUpdated},
		KindSubscriptionDeleted:  {identify: subscriptionIdentity, apply: applySubscriptionDeleted},
		KindInvoicePaid:          {identify: invoiceIdentity, apply: applyInvoicePaid},
		KindInvoicePaymentFailed: {identify: invoiceIdentity, apply: applyInvoicePaymentFailed},
	}
}

func checkoutIdentity(ev *Event) string {
	session, err := ev.CheckoutSession()
	if err != nil {
		return ""
	}
	return session.Email()
}

func subscriptionIdentity(ev *Event) string {
	sub, err := ev.Subscription()
	if err != nil {
		return ""
	}
	return sub.CustomerEmail
}

func invoiceIdentity(ev *Event) string {
	inv, err := ev.Invoice()
	if err != nil {
		return ""
	}
	return inv.CustomerEmail
}

func applyCheckoutCompleted(ctx context.Context, ev *Event, acct *models.Account, catalog plans.Resolver) (*models.Account, string, error) {
	session, err := ev.CheckoutSession()
	if err != nil {
		return nil, "", &PayloadError{Kind: ev.Kind, Err: err}
	}
	email := session.Email()
	if email == "" {
		return nil, "", fmt.Errorf("%w for checkout session %s", ErrUnresolvedIdentity, session.ID)
	}

	mapping, err := catalog.Resolve(ctx, session.PriceID)
	if err != nil {
		return nil, "", err
	}

	if mapping.Kind == models.PlanKindSubscription {
		// Subscription checkouts only flag the account type; the details
		// arrive with the subscription-created event.
		next := accountOrNew(acct, email)
		next.AccountType = models.AccountTypeSubscriber
		return next, fmt.Sprintf("Marked %s as subscriber pending subscription creation", email), nil
	}

	if acct != nil && acct.IsSubscriber() {
		return nil, "", fmt.Errorf("%w: %s cannot buy one-time tokens", ErrAlreadySubscribed, email)
	}

	next := accountOrNew(acct, email)
	next.AccountType = models.AccountTypeOneTime

	if mapping.TokenGrant == models.TokenUnlimited {
		next.TokenBalance = models.TokenUnlimited
		return next, fmt.Sprintf("Set token balance to unlimited for %s (tier %s)", email, mapping.InternalPlan), nil
	}

	quantity := session.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	granted := mapping.TokenGrant * quantity
	if next.TokenBalance != models.TokenUnlimited {
		next.TokenBalance += granted
	}
	return next, fmt.Sprintf("Added %d tokens for %s (balance %d)", granted, email, next.TokenBalance), nil
}

func applySubscriptionCreated(ctx context.Context, ev *Event, acct *models.Account, catalog plans.Resolver) (*models.Account, string, error) {
	sub, err := ev.Subscription()
	if err != nil {
		return nil, "", &PayloadError{Kind: ev.Kind, Err: err}
	}
	if sub.CustomerEmail == "" {
		return nil, "", fmt.Errorf("%w for subscription %s", ErrUnresolvedIdentity, sub.ID)
	}

	mapping, err := resolveSubscriptionPlan(ctx, catalog, sub)
	if err != nil {
		return nil, "", err
	}

	next := accountOrNew(acct, sub.CustomerEmail)
	next.AccountType = models.AccountTypeSubscriber
	next.SubscriptionStatus = strPtr(sub.Status)
	next.InvoiceStatus = strPtr(models.InvoiceStatusPending) // updated when the invoice is paid
	next.CurrentPlan = strPtr(mapping.InternalPlan)
	next.NextRenewalDate = sub.PeriodEnd()

	desc := fmt.Sprintf("Registered %s as subscriber on plan %s (status %s)", sub.CustomerEmail, mapping.InternalPlan, sub.Status)
	return next, desc, nil
}

func applySubscriptionUpdated(ctx context.Context, ev *Event, acct *models.Account, catalog plans.Resolver) (*models.Account, string, error) {
	sub, err := ev.Subscription()
	if err != nil {
		return nil, "", &PayloadError{Kind: ev.Kind, Err: err}
	}
	if sub.CustomerEmail == "" {
		return nil, "", fmt.Errorf("%w for subscription %s", ErrUnresolvedIdentity, sub.ID)
	}

	mapping, err := resolveSubscriptionPlan(ctx, catalog, sub)
	if err != nil {
		return nil, "", err
	}

	next := accountOrNew(acct, sub.CustomerEmail)
	next.AccountType = models.AccountTypeSubscriber
	next.SubscriptionStatus = strPtr(sub.Status)
	next.CurrentPlan = strPtr(mapping.InternalPlan)
	next.NextRenewalDate = sub.PeriodEnd()
	if next.InvoiceStatus == nil {
		next.InvoiceStatus = strPtr(models.InvoiceStatusPending)
	}

	desc := fmt.Sprintf("Updated subscription for %s: plan %s, status %s", sub.CustomerEmail, mapping.InternalPlan, sub.Status)
	if sub.CancelAtPeriodEnd {
		desc += ", cancels at period end"
	}
	return next, desc, nil
}

func applySubscriptionDeleted(_ context.Context, ev *Event, acct *models.Account, _ plans.Resolver) (*models.Account, string, error) {
	sub, err := ev.Subscription()
	if err != nil {
		return nil, "", &PayloadError{Kind: ev.Kind, Err: err}
	}
	if sub.CustomerEmail == "" {
		return nil, "", fmt.Errorf("%w for subscription %s", ErrUnresolvedIdentity, sub.ID)
	}

	if acct == nil {
		return nil, fmt.Sprintf("No account for %s; nothing to reset", sub.CustomerEmail), nil
	}

	next := *acct
	next.ResetToFree()
	return &next, fmt.Sprintf("Reset %s to free account", sub.CustomerEmail), nil
}

func applyInvoicePaid(ctx context.Context, ev *Event, acct *models.Account, catalog plans.Resolver) (*models.Account, string, error) {
	inv, err := ev.Invoice()
	if err != nil {
		return nil, "", &PayloadError{Kind: ev.Kind, Err: err}
	}
	if inv.CustomerEmail == "" {
		return nil, "", fmt.Errorf("%w for invoice %s", ErrUnresolvedIdentity, inv.ID)
	}
	if inv.Subscription == nil {
		return nil, "", fmt.Errorf("%w: invoice %s", ErrMissingSubscription, inv.ID)
	}
	if acct == nil {
		return nil, "", fmt.Errorf("%w: no account for %s", ErrUnresolvedIdentity, inv.CustomerEmail)
	}

	mapping, err := resolveSubscriptionPlan(ctx, catalog, inv.Subscription)
	if err != nil {
		return nil, "", err
	}

	next := *acct
	next.InvoiceStatus = strPtr(models.InvoiceStatusPaid)
	next.SubscriptionStatus = strPtr(inv.Subscription.Status)
	next.CurrentPlan = strPtr(mapping.InternalPlan)
	next.NextRenewalDate = inv.Subscription.PeriodEnd()

	desc := fmt.Sprintf("Marked invoice paid for %s: plan %s, subscription status %s", inv.CustomerEmail, mapping.InternalPlan, inv.Subscription.Status)
	return &next, desc, nil
}

func applyInvoicePaymentFailed(_ context.Context, ev *Event, acct *models.Account, _ plans.Resolver) (*models.Account, string, error) {
	inv, err := ev.Invoice()
	if err != nil {
		return nil, "", &PayloadError{Kind: ev.Kind, Err: err}
	}
	if inv.CustomerEmail == "" {
		return nil, "", fmt.Errorf("%w for invoice %s", ErrUnresolvedIdentity, inv.ID)
	}
	if acct == nil {
		return nil, "", fmt.Errorf("%w: no account for %s", ErrUnresolvedIdentity, inv.CustomerEmail)
	}

	next := *acct
	next.InvoiceStatus = strPtr(models.InvoiceStatusUnpaid)
	return &next, fmt.Sprintf("Marked invoice status unpaid for %s", inv.CustomerEmail), nil
}

// resolveSubscriptionPlan maps the subscription's price id to an internal
// plan; a one-time mapping on a subscription is configuration drift and is
// reported as an unknown price.
func resolveSubscriptionPlan(ctx context.Context, catalog plans.Resolver, sub *Subscription) (*models.PlanMapping, error) {
	mapping, err := catalog.Resolve(ctx, sub.PriceID())
	if err != nil {
		return nil, err
	}
	if mapping.Kind != models.PlanKindSubscription {
		return nil, &plans.UnknownPriceError{PriceID: sub.PriceID()}
	}
	return mapping, nil
}

func accountOrNew(acct *models.Account, email string) *models.Account {
	if acct == nil {
		return &models.Account{Email: email, AccountType: models.AccountTypeFree}
	}
	clone := *acct
	return &clone
}

func strPtr(s string) *string {
	return &s
}
