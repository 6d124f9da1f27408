package models

import "time"

// PlanMapping maps a provider price id to an internal plan. For one-time
// purchase tiers TokenGrant carries the number of tokens the price buys
// (TokenUnlimited for the unlimited tier); for subscription plans it is zero.
type PlanMapping struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	PriceID      string    `gorm:"type:varchar(191);not null;uniqueIndex:ux_plan_mappings_price_id" json:"price_id"`
	InternalPlan string    `gorm:"type:varchar(50);not null;index" json:"internal_plan"`
	Kind         string    `gorm:"type:varchar(20);not null;default:'subscription'" json:"kind"`
	TokenGrant   int64     `gorm:"not null;default:0" json:"token_grant"`
	IsActive     bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Plan mapping kinds.
const (
	PlanKindSubscription = "subscription"
	PlanKindOneTime      = "one_time"
)
