package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ledgersync/ledgersync/app/models"
	"github.com/ledgersync/ledgersync/internal/pkg/plans"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticCatalog is a fixed price mapping used instead of the DB-backed
// catalog.
type staticCatalog map[string]*models.PlanMapping

func (c staticCatalog) Resolve(_ context.Context, priceID string) (*models.PlanMapping, error) {
	if m, ok := c[priceID]; ok {
		return m, nil
	}
	return nil, &plans.UnknownPriceError{PriceID: priceID}
}

func testCatalog() staticCatalog {
	return staticCatalog{
		"price_tokens_100": {PriceID: "price_tokens_100", InternalPlan: plans.TierStarter, Kind: models.PlanKindOneTime, TokenGrant: 100},
		"price_unlimited":  {PriceID: "price_unlimited", InternalPlan: plans.TierUnlimited, Kind: models.PlanKindOneTime, TokenGrant: models.TokenUnlimited},
		"price_basic":      {PriceID: "price_basic", InternalPlan: plans.PlanSubscriberBasic, Kind: models.PlanKindSubscription},
		"price_pro":        {PriceID: "price_pro", InternalPlan: plans.PlanSubscriberPro, Kind: models.PlanKindSubscription},
	}
}

func mustEvent(t *testing.T, raw string) *Event {
	t.Helper()
	ev, err := parseEvent([]byte(raw), time.Now())
	require.NoError(t, err)
	return ev
}

func TestApplyCheckoutCompleted_UnlimitedTier(t *testing.T) {
	ev := mustEvent(t, `{"id":"evt_1","type":"checkout.session.completed","data":{"object":{
		"id":"cs_1","customer_details":{"email":"user@example.com"},"price_id":"price_unlimited"}}}`)

	acct := &models.Account{Email: "user@example.com", AccountType: models.AccountTypeFree, TokenBalance: 0}
	next, desc, err := applyCheckoutCompleted(context.Background(), ev, acct, testCatalog())
	require.NoError(t, err)

	assert.Equal(t, models.AccountTypeOneTime, next.AccountType)
	assert.True(t, next.HasUnlimitedTokens())
	assert.Contains(t, desc, "unlimited")
}

func TestApplyCheckoutCompleted_AddsTokens(t *testing.T) {
	ev := mustEvent(t, `{"id":"evt_2","type":"checkout.session.completed","data":{"object":{
		"id":"cs_2","customer_details":{"email":"user@example.com"},"price_id":"price_tokens_100","quantity":3}}}`)

	acct := &models.Account{Email: "user@example.com", AccountType: models.AccountTypeOneTime, TokenBalance: 50}
	next, desc, err := applyCheckoutCompleted(context.Background(), ev, acct, testCatalog())
	require.NoError(t, err)

	assert.Equal(t, int64(350), next.TokenBalance)
	assert.Contains(t, desc, "300 tokens")
	// input state must not be mutated
	assert.Equal(t, int64(50), acct.TokenBalance)
}

func TestApplyCheckoutCompleted_NewIdentityCreatesAccount(t *testing.T) {
	ev := mustEvent(t, `{"id":"evt_3","type":"checkout.session.completed","data":{"object":{
		"id":"cs_3","customer_details":{"email":"new@example.com"},"price_id":"price_tokens_100"}}}`)

	next, _, err := applyCheckoutCompleted(context.Background(), ev, nil, testCatalog())
	require.NoError(t, err)

	assert.Equal(t, "new@example.com", next.Email)
	assert.Equal(t, models.AccountTypeOneTime, next.AccountType)
	assert.Equal(t, int64(100), next.TokenBalance)
}

func TestApplyCheckoutCompleted_AlreadySubscribed(t *testing.T) {
	ev := mustEvent(t, `{"id":"evt_4","type":"checkout.session.completed","data":{"object":{
		"id":"cs_4","customer_details":{"email":"sub@example.com"},"price_id":"price_tokens_100"}}}`)

	acct := &models.Account{Email: "sub@example.com", AccountType: models.AccountTypeSubscriber}
	_, _, err := applyCheckoutCompleted(context.Background(), ev, acct, testCatalog())
	require.ErrorIs(t, err, ErrAlreadySubscribed)
}

func TestApplyCheckoutCompleted_UnknownPrice(t *testing.T) {
	ev := mustEvent(t, `{"id":"evt_5","type":"checkout.session.completed","data":{"object":{
		"id":"cs_5","customer_details":{"email":"user@example.com"},"price_id":"price_bogus"}}}`)

	_, _, err := applyCheckoutCompleted(context.Background(), ev, nil, testCatalog())
	var unknown *plans.UnknownPriceError
	require.ErrorAs(t, err, &unknown)
	assert.Contains(t, err.Error(), "price_bogus")
}

func TestApplySubscriptionCreated(t *testing.T) {
	ev := mustEvent(t, `{"id":"evt_6","type":"customer.subscription.created","data":{"object":{
		"id":"sub_1","customer_email":"user@example.com","status":"active",
		"items":{"data":[{"plan":{"id":"price_basic"}}]},
		"current_period_end":1767225600}}}`)

	next, desc, err := applySubscriptionCreated(context.Background(), ev, nil, testCatalog())
	require.NoError(t, err)

	assert.Equal(t, models.AccountTypeSubscriber, next.AccountType)
	require.NotNil(t, next.SubscriptionStatus)
	assert.Equal(t, "active", *next.SubscriptionStatus)
	require.NotNil(t, next.InvoiceStatus)
	assert.Equal(t, models.InvoiceStatusPending, *next.InvoiceStatus)
	require.NotNil(t, next.CurrentPlan)
	assert.Equal(t, plans.PlanSubscriberBasic, *next.CurrentPlan)
	assert.NotNil(t, next.NextRenewalDate)
	assert.Contains(t, desc, "user@example.com")
}

func TestApplySubscriptionCreated_MissingEmail(t *testing.T) {
	ev := mustEvent(t, `{"id":"evt_7","type":"customer.subscription.created","data":{"object":{
		"id":"sub_2","status":"active","items":{"data":[{"plan":{"id":"price_basic"}}]}}}}`)

	_, _, err := applySubscriptionCreated(context.Background(), ev, nil, testCatalog())
	require.ErrorIs(t, err, ErrUnresolvedIdentity)
}

func TestApplySubscriptionUpdated_CancelAtPeriodEnd(t *testing.T) {
	ev := mustEvent(t, `{"id":"evt_8","type":"customer.subscription.updated","data":{"object":{
		"id":"sub_1","customer_email":"user@example.com","status":"active",
		"items":{"data":[{"plan":{"id":"price_pro"}}]},
		"current_period_end":1767225600,"cancel_at_period_end":true}}}`)

	renewal := time.Now().Add(30 * 24 * time.Hour)
	acct := &models.Account{
		Email:           "user@example.com",
		AccountType:     models.AccountTypeSubscriber,
		NextRenewalDate: &renewal,
	}
	next, desc, err := applySubscriptionUpdated(context.Background(), ev, acct, testCatalog())
	require.NoError(t, err)

	assert.Nil(t, next.NextRenewalDate)
	require.NotNil(t, next.CurrentPlan)
	assert.Equal(t, plans.PlanSubscriberPro, *next.CurrentPlan)
	assert.Contains(t, desc, "cancels at period end")
}

func TestApplySubscriptionDeleted_ResetsToFree(t *testing.T) {
	ev := mustEvent(t, `{"id":"evt_9","type":"customer.subscription.deleted","data":{"object":{
		"id":"sub_1","customer_email":"user@example.com","status":"canceled"}}}`)

	status := models.SubscriptionStatusActive
	invoice := models.InvoiceStatusPaid
	plan := plans.PlanSubscriberPro
	renewal := time.Now().Add(24 * time.Hour)
	acct := &models.Account{
		Email:              "user@example.com",
		AccountType:        models.AccountTypeSubscriber,
		TokenBalance:       250,
		SubscriptionStatus: &status,
		InvoiceStatus:      &invoice,
		CurrentPlan:        &plan,
		NextRenewalDate:    &renewal,
	}

	next, _, err := applySubscriptionDeleted(context.Background(), ev, acct, testCatalog())
	require.NoError(t, err)

	assert.Equal(t, models.AccountTypeFree, next.AccountType)
	assert.Nil(t, next.SubscriptionStatus)
	assert.Nil(t, next.InvoiceStatus)
	assert.Nil(t, next.CurrentPlan)
	assert.Nil(t, next.NextRenewalDate)
	// one-time token purchases survive subscription deletion
	assert.Equal(t, int64(250), next.TokenBalance)
}

func TestApplySubscriptionDeleted_UnknownIdentity(t *testing.T) {
	ev := mustEvent(t, `{"id":"evt_10","type":"customer.subscription.deleted","data":{"object":{
		"id":"sub_1","customer_email":"ghost@example.com"}}}`)

	next, desc, err := applySubscriptionDeleted(context.Background(), ev, nil, testCatalog())
	require.NoError(t, err)
	assert.Nil(t, next)
	assert.Contains(t, desc, "nothing to reset")
}

func TestApplyInvoicePaid(t *testing.T) {
	ev := mustEvent(t, `{"id":"evt_11","type":"invoice.paid","data":{"object":{
		"id":"in_1","customer_email":"user@example.com",
		"subscription":{"id":"sub_1","status":"active",
			"items":{"data":[{"plan":{"id":"price_basic"}}]},
			"current_period_end":1767225600}}}}`)

	pending := models.InvoiceStatusPending
	acct := &models.Account{
		Email:         "user@example.com",
		AccountType:   models.AccountTypeSubscriber,
		InvoiceStatus: &pending,
	}
	next, _, err := applyInvoicePaid(context.Background(), ev, acct, testCatalog())
	require.NoError(t, err)

	require.NotNil(t, next.InvoiceStatus)
	assert.Equal(t, models.InvoiceStatusPaid, *next.InvoiceStatus)
	require.NotNil(t, next.SubscriptionStatus)
	assert.Equal(t, "active", *next.SubscriptionStatus)
	require.NotNil(t, next.NextRenewalDate)
	assert.Equal(t, time.Unix(1767225600, 0).UTC(), next.NextRenewalDate.UTC())
}

func TestApplyInvoicePaid_CancelAtPeriodEndNullsRenewal(t *testing.T) {
	ev := mustEvent(t, `{"id":"evt_12","type":"invoice.paid","data":{"object":{
		"id":"in_2","customer_email":"user@example.com",
		"subscription":{"id":"sub_1","status":"active",
			"items":{"data":[{"plan":{"id":"price_basic"}}]},
			"current_period_end":1767225600,"cancel_at_period_end":true}}}}`)

	acct := &models.Account{Email: "user@example.com", AccountType: models.AccountTypeSubscriber}
	next, _, err := applyInvoicePaid(context.Background(), ev, acct, testCatalog())
	require.NoError(t, err)
	assert.Nil(t, next.NextRenewalDate)
}

func TestApplyInvoicePaid_MissingSubscription(t *testing.T) {
	ev := mustEvent(t, `{"id":"evt_13","type":"invoice.paid","data":{"object":{
		"id":"in_3","customer_email":"user@example.com"}}}`)

	acct := &models.Account{Email: "user@example.com", AccountType: models.AccountTypeSubscriber}
	_, _, err := applyInvoicePaid(context.Background(), ev, acct, testCatalog())
	require.ErrorIs(t, err, ErrMissingSubscription)
}

func TestApplyInvoicePaymentFailed(t *testing.T) {
	ev := mustEvent(t, `{"id":"evt_14","type":"invoice.payment_failed","data":{"object":{
		"id":"in_4","customer_email":"user@example.com"}}}`)

	acct := &models.Account{Email: "user@example.com", AccountType: models.AccountTypeSubscriber}
	next, _, err := applyInvoicePaymentFailed(context.Background(), ev, acct, testCatalog())
	require.NoError(t, err)
	require.NotNil(t, next.InvoiceStatus)
	assert.Equal(t, models.InvoiceStatusUnpaid, *next.InvoiceStatus)

	_, _, err = applyInvoicePaymentFailed(context.Background(), ev, nil, testCatalog())
	assert.True(t, errors.Is(err, ErrUnresolvedIdentity))
}
