package models

import "time"

// ProcessedEvent is the append-only audit row for a billing-provider event.
// The unique index on EventID is the idempotency signal: a row exists iff the
// event's ledger mutation has committed.
type ProcessedEvent struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	EventID      string    `gorm:"type:varchar(191);not null;uniqueIndex:ux_processed_events_event_id" json:"event_id"`
	EventType    string    `gorm:"type:varchar(100);not null;index" json:"event_type"`
	PayloadJSON  string    `gorm:"type:longtext;not null" json:"payload_json"`
	Email        string    `gorm:"type:varchar(255);not null;index" json:"email"`
	ProcessedAt  time.Time `gorm:"autoCreateTime;index" json:"processed_at"`
}
