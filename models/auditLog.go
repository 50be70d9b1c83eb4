package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aivisionaries/hydropay_backend/config"
	"github.com/aivisionaries/hydropay_backend/utils"
	"gorm.io/gorm"
)

// AuditLogEntry is the append-only trail attached to an Audit. Entries are
// never updated or deleted, and no guard reads them back; traceability only.
type AuditLogEntry struct {
	ID        int       `gorm:"primary_key" json:"id"`
	AuditId   int       `gorm:"index;not null" json:"audit_id"`
	Action    string    `gorm:"size:50;not null" json:"action"`
	ActorId   int       `gorm:"not null" json:"actor_id"`
	ActorName string    `gorm:"size:100" json:"actor_name"`
	Detail    string    `gorm:"type:text" json:"detail"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// AppendAuditLog writes one trail entry inside the caller's transaction.
// Actor identity comes from the request context.
func AppendAuditLog(tx *gorm.DB, auditId int, action string, detail interface{}) error {
	ctx := tx.Statement.Context

	actorId, _ := utils.GetUserIdFromContext(ctx)
	actorName, _ := utils.GetUserNameFromContext(ctx)

	payload := ""
	if detail != nil {
		b, err := json.Marshal(detail)
		if err != nil {
			return err
		}
		payload = string(b)
	}

	entry := AuditLogEntry{
		AuditId:   auditId,
		Action:    action,
		ActorId:   actorId,
		ActorName: actorName,
		Detail:    payload,
	}
	return tx.Create(&entry).Error
}

func ListAuditLog(ctx context.Context, auditId int) ([]*AuditLogEntry, error) {
	db := config.GetDB()
	var entries []*AuditLogEntry
	err := db.WithContext(ctx).
		Where("audit_id = ?", auditId).
		Order("id ASC").Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
