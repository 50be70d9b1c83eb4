package models

import "time"

// IdempotencyKey makes at-least-once event delivery safe: one row per
// (application, handler, message), with a STARTED/SUCCEEDED/FAILED lifecycle.
type IdempotencyKey struct {
	ID            int               `gorm:"primary_key" json:"id"`
	ApplicationId int               `gorm:"not null;uniqueIndex:idx_idem_key,priority:1" json:"application_id"`
	HandlerName   string            `gorm:"size:64;not null;uniqueIndex:idx_idem_key,priority:2" json:"handler_name"`
	MessageId     string            `gorm:"size:255;not null;uniqueIndex:idx_idem_key,priority:3" json:"message_id"`
	Status        IdempotencyStatus `gorm:"type:enum('STARTED','SUCCEEDED','FAILED');not null" json:"status"`
	LastError     *string           `gorm:"type:text" json:"last_error"`
	CreatedAt     time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}
