package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Account types used across the ledger.
const (
	AccountTypeFree       = "free"
	AccountTypeOneTime    = "one_time"
	AccountTypeSubscriber = "subscriber"
)

// Subscription statuses as reported by the billing provider.
const (
	SubscriptionStatusActive            = "active"
	SubscriptionStatusTrialing          = "trialing"
	SubscriptionStatusPastDue           = "past_due"
	SubscriptionStatusUnpaid            = "unpaid"
	SubscriptionStatusCanceled          = "canceled"
	SubscriptionStatusIncomplete        = "incomplete"
	SubscriptionStatusIncompleteExpired = "incomplete_expired"
)

// Invoice statuses tracked locally.
const (
	InvoiceStatusPending = "pending"
	InvoiceStatusPaid    = "paid"
	InvoiceStatusUnpaid  = "unpaid"
)

// TokenUnlimited is the sentinel balance for the unlimited purchase tier.
const TokenUnlimited = -1

// Account is the persisted source of truth for a customer's entitlement
// state, keyed by the email the billing provider reports.
type Account struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	Email              string     `gorm:"type:varchar(255);not null;uniqueIndex:ux_accounts_email" json:"email" validate:"required,email"`
	AccountType        string     `gorm:"type:varchar(50);not null;default:'free';index" json:"account_type" validate:"required,oneof=free one_time subscriber"`
	TokenBalance       int64      `gorm:"not null;default:0" json:"token_balance" validate:"gte=-1"`
	SubscriptionStatus *string    `gorm:"type:varchar(50);default:null" json:"subscription_status,omitempty"`
	InvoiceStatus      *string    `gorm:"type:varchar(50);default:null" json:"invoice_status,omitempty"`
	CurrentPlan        *string    `gorm:"type:varchar(50);default:null;index" json:"current_plan,omitempty"`
	NextRenewalDate    *time.Time `gorm:"type:timestamp;default:null" json:"next_renewal_date,omitempty"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// Validate checks field constraints before the account is written.
func (a *Account) Validate() error {
	v := validator.New()
	return v.Struct(a)
}

// HasUnlimitedTokens reports whether the unlimited sentinel is set.
func (a *Account) HasUnlimitedTokens() bool {
	return a.TokenBalance == TokenUnlimited
}

// IsSubscriber reports whether the account currently holds a subscription.
func (a *Account) IsSubscriber() bool {
	return a.AccountType == AccountTypeSubscriber
}

// ResetToFree clears every subscription-related field. Token balances from
// one-time purchases are deliberately kept.
func (a *Account) ResetToFree() {
	a.AccountType = AccountTypeFree
	a.SubscriptionStatus = nil
	a.InvoiceStatus = nil
	a.CurrentPlan = nil
	a.NextRenewalDate = nil
}
