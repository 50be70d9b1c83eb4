package models

import (
	"context"
	"errors"
	"time"

	"github.com/aivisionaries/hydropay_backend/config"
	"github.com/aivisionaries/hydropay_backend/utils"
	"gorm.io/gorm"
)

// Audit is one compliance assessment of an Application by one auditor.
// At most one authoritative audit per (application, auditor): re-submission
// overwrites in place, guarded by the unique composite index.
type Audit struct {
	ID            int `gorm:"primary_key" json:"id"`
	ApplicationId int `gorm:"not null;uniqueIndex:idx_audit_app_auditor,priority:1" json:"application_id"`
	AuditorId     int `gorm:"not null;uniqueIndex:idx_audit_app_auditor,priority:2" json:"auditor_id"`

	TechnicalCompliance     ComplianceStatus `gorm:"type:enum('compliant','partially_compliant','non_compliant');not null" json:"technical_compliance"`
	FinancialCompliance     ComplianceStatus `gorm:"type:enum('compliant','partially_compliant','non_compliant');not null" json:"financial_compliance"`
	EnvironmentalCompliance ComplianceStatus `gorm:"type:enum('compliant','partially_compliant','non_compliant');not null" json:"environmental_compliance"`
	ComplianceStatus        ComplianceStatus `gorm:"type:enum('compliant','partially_compliant','non_compliant');not null" json:"compliance_status"`

	Score    int    `gorm:"not null;default:0" json:"score"`
	Comments string `gorm:"type:text" json:"comments"`
	Verified *bool  `gorm:"not null;default:false" json:"verified"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewAudit struct {
	TechnicalCompliance     string `json:"technical_compliance" binding:"required,oneof=compliant partially_compliant non_compliant"`
	FinancialCompliance     string `json:"financial_compliance" binding:"required,oneof=compliant partially_compliant non_compliant"`
	EnvironmentalCompliance string `json:"environmental_compliance" binding:"required,oneof=compliant partially_compliant non_compliant"`
	ComplianceStatus        string `json:"compliance_status" binding:"required,oneof=compliant partially_compliant non_compliant"`
	Score                   int    `json:"score" binding:"min=0,max=100"`
	Comments                string `json:"comments"`
	Verified                bool   `json:"verified"`
}

func GetAudit(ctx context.Context, id int) (*Audit, error) {
	db := config.GetDB()
	var audit Audit
	if err := db.WithContext(ctx).First(&audit, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &audit, nil
}

// GetAuditForApplication returns the first audit on record for an application.
func GetAuditForApplication(ctx context.Context, applicationId int) (*Audit, error) {
	db := config.GetDB()
	var audit Audit
	err := db.WithContext(ctx).
		Where("application_id = ?", applicationId).
		Order("id ASC").First(&audit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &audit, nil
}
