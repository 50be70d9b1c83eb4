package models

import (
	"encoding/json"
	"time"

	"github.com/aivisionaries/hydropay_backend/config"
	"github.com/aivisionaries/hydropay_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StatusEventRecord implements the transactional outbox: the row is written
// inside the same DB transaction as the status flip, and published to Pub/Sub
// asynchronously by the dispatcher after commit.
type StatusEventRecord struct {
	ID            int       `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	ApplicationId int       `gorm:"index;not null" json:"application_id"`
	EventTime     time.Time `gorm:"index;not null" json:"event_time"`
	FromStatus    ApplicationStatus `gorm:"size:50;not null" json:"from_status"`
	ToStatus      ApplicationStatus `gorm:"size:50;not null" json:"to_status"`
	Action        string            `gorm:"size:50;not null" json:"action"`
	ActorId       int               `gorm:"not null" json:"actor_id"`
	ActorRole     string            `gorm:"size:20" json:"actor_role"`
	OldObj        []byte            `gorm:"type:blob" json:"old_obj"`
	NewObj        []byte            `gorm:"type:blob" json:"new_obj"`

	// Publish metadata (publish happens after commit via dispatcher).
	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`

	CorrelationId string    `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// RecordStatusEvent writes the outbox row inside the caller's DB transaction.
// It does NOT publish; the dispatcher handles publishing after commit.
func RecordStatusEvent(tx *gorm.DB, applicationId int, from, to ApplicationStatus, action string, oldObj, newObj interface{}) error {
	ctx := tx.Statement.Context

	var oldInByte, newInByte []byte
	var err error
	if oldObj != nil {
		oldInByte, err = json.Marshal(oldObj)
		if err != nil {
			return err
		}
	}
	if newObj != nil {
		newInByte, err = json.Marshal(newObj)
		if err != nil {
			return err
		}
	}

	actorId, _ := utils.GetUserIdFromContext(ctx)
	actorRole, _ := utils.GetUserRoleFromContext(ctx)

	correlationId, ok := utils.GetCorrelationIdFromContext(ctx)
	if !ok || correlationId == "" {
		correlationId = uuid.NewString()
	}

	record := StatusEventRecord{
		ApplicationId: applicationId,
		EventTime:     time.Now().UTC(),
		FromStatus:    from,
		ToStatus:      to,
		Action:        action,
		ActorId:       actorId,
		ActorRole:     actorRole,
		OldObj:        oldInByte,
		NewObj:        newInByte,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationId,
	}
	return tx.Create(&record).Error
}

func ConvertToStatusEventMessage(record StatusEventRecord) config.StatusEventMessage {
	return config.StatusEventMessage{
		ID:            record.ID,
		ApplicationId: record.ApplicationId,
		EventTime:     record.EventTime,
		FromStatus:    string(record.FromStatus),
		ToStatus:      string(record.ToStatus),
		Action:        record.Action,
		ActorId:       record.ActorId,
		ActorRole:     record.ActorRole,
		OldObj:        record.OldObj,
		NewObj:        record.NewObj,
		CorrelationId: record.CorrelationId,
	}
}
