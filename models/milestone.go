package models

import (
	"context"
	"time"

	"github.com/aivisionaries/hydropay_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Milestone is a partial-disbursement tranche of an Application.
// Invariant: sum of target percentages per application never exceeds 100.
// A milestone is payable only after producer-marked-complete AND
// auditor-verified; the workflow enforces both.
type Milestone struct {
	ID            int             `gorm:"primary_key" json:"id"`
	ApplicationId int             `gorm:"index;not null" json:"application_id"`
	Name          string          `gorm:"size:200;not null" json:"name"`
	TargetPercent decimal.Decimal `gorm:"type:decimal(7,4);not null" json:"target_percent"`
	TargetAmount  decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"target_amount"`

	PlannedDate   *time.Time `json:"planned_date"`
	CompletedDate *time.Time `json:"completed_date"`

	Status             MilestoneStatus    `gorm:"type:enum('pending','completed');not null;default:'pending'" json:"status"`
	VerificationStatus VerificationStatus `gorm:"type:enum('pending','verified','rejected');not null;default:'pending'" json:"verification_status"`
	PaymentStatus      PaymentStatus      `gorm:"type:enum('pending','paid');not null;default:'pending';index" json:"payment_status"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewMilestone struct {
	Name          string          `json:"name" binding:"required,max=200"`
	TargetPercent decimal.Decimal `json:"target_percent" binding:"required"`
	PlannedDate   *time.Time      `json:"planned_date"`
}

func ListMilestones(ctx context.Context, applicationId int) ([]*Milestone, error) {
	db := config.GetDB()
	var ms []*Milestone
	err := db.WithContext(ctx).
		Where("application_id = ?", applicationId).
		Order("id ASC").Find(&ms).Error
	if err != nil {
		return nil, err
	}
	return ms, nil
}

// SumMilestonePercents totals the target percentages already planned for an
// application, inside the caller's transaction.
func SumMilestonePercents(tx *gorm.DB, applicationId int) (decimal.Decimal, error) {
	var raw *string
	err := tx.Model(&Milestone{}).
		Where("application_id = ?", applicationId).
		Select("CAST(SUM(target_percent) AS CHAR)").
		Scan(&raw).Error
	if err != nil {
		return decimal.Zero, err
	}
	if raw == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(*raw)
}
