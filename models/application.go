package models

import (
	"context"
	"errors"
	"time"

	"github.com/aivisionaries/hydropay_backend/config"
	"github.com/aivisionaries/hydropay_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Application is the aggregate root: Audit, Milestone and Transaction rows all
// reference it by id. Rows are never deleted; rejected and fund_released are
// terminal states and the children keep the history.
type Application struct {
	ID             int               `gorm:"primary_key" json:"id"`
	ProducerId     int               `gorm:"index;not null" json:"producer_id"`
	ProjectName    string            `gorm:"size:200;not null" json:"project_name"`
	TechnologyType string            `gorm:"size:100;index;not null" json:"technology_type"`
	CapacityMw     decimal.Decimal   `gorm:"type:decimal(14,4);not null;default:0" json:"capacity_mw"`
	CapacityTons   decimal.Decimal   `gorm:"type:decimal(14,4);not null;default:0" json:"capacity_tons"`
	CapexEstimate  decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0" json:"capex_estimate"`
	ProjectDetails string            `gorm:"type:text" json:"project_details"`
	Status         ApplicationStatus `gorm:"type:enum('pending','requires_revision','auditor_verified','govt_approved','rejected','fund_released');not null;default:'pending';index" json:"status"`

	// Government decision fields, written by ReviewApplication.
	GovtComments      string           `gorm:"type:text" json:"govt_comments"`
	SanctionedAmount  *decimal.Decimal `gorm:"type:decimal(18,4)" json:"sanctioned_amount"`
	ApprovalReference string           `gorm:"size:64" json:"approval_reference"`
	ReviewedAt        *time.Time       `json:"reviewed_at"`

	ReleasedAt *time.Time `json:"released_at"`

	Documents []*Document `gorm:"-" json:"documents,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewApplication struct {
	ProjectName    string          `json:"project_name" binding:"required,max=200"`
	TechnologyType string          `json:"technology_type" binding:"required,max=100"`
	CapacityMw     decimal.Decimal `json:"capacity_mw"`
	CapacityTons   decimal.Decimal `json:"capacity_tons"`
	CapexEstimate  decimal.Decimal `json:"capex_estimate"`
	ProjectDetails string          `json:"project_details"`
	Documents      []*NewDocument  `json:"documents"`
}

// ValidateAmounts rejects negative capacities and estimates. Called on both
// first submission and resubmission; the binding tags cannot express this for
// decimal fields.
func (input *NewApplication) ValidateAmounts() error {
	if input.CapacityMw.IsNegative() || input.CapacityTons.IsNegative() || input.CapexEstimate.IsNegative() {
		return utils.ErrorValidation
	}
	return nil
}

func CreateApplication(ctx context.Context, producerId int, input *NewApplication) (*Application, error) {
	db := config.GetDB()

	if err := input.ValidateAmounts(); err != nil {
		return nil, err
	}

	app := Application{
		ProducerId:     producerId,
		ProjectName:    input.ProjectName,
		TechnologyType: input.TechnologyType,
		CapacityMw:     input.CapacityMw,
		CapacityTons:   input.CapacityTons,
		CapexEstimate:  input.CapexEstimate,
		ProjectDetails: input.ProjectDetails,
		Status:         ApplicationStatusPending,
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&app).Error; err != nil {
			return err
		}
		docs, err := mapNewDocuments(input.Documents, DocumentReferenceApplication, app.ID)
		if err != nil {
			return err
		}
		if len(docs) > 0 {
			if err := tx.Create(&docs).Error; err != nil {
				return err
			}
			app.Documents = docs
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &app, nil
}

func GetApplication(ctx context.Context, id int) (*Application, error) {
	db := config.GetDB()
	var app Application
	if err := db.WithContext(ctx).First(&app, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &app, nil
}

func ListApplicationsByStatus(ctx context.Context, status ApplicationStatus) ([]*Application, error) {
	db := config.GetDB()
	var apps []*Application
	if err := db.WithContext(ctx).Where("status = ?", status).Order("id ASC").Find(&apps).Error; err != nil {
		return nil, err
	}
	return apps, nil
}

func ListApplicationsByProducer(ctx context.Context, producerId int) ([]*Application, error) {
	db := config.GetDB()
	var apps []*Application
	if err := db.WithContext(ctx).Where("producer_id = ?", producerId).Order("id ASC").Find(&apps).Error; err != nil {
		return nil, err
	}
	return apps, nil
}

// LoadDocuments fills app.Documents from the documents table.
func (app *Application) LoadDocuments(ctx context.Context) error {
	db := config.GetDB()
	var docs []*Document
	err := db.WithContext(ctx).
		Where("reference_type = ? AND reference_id = ?", DocumentReferenceApplication, app.ID).
		Order("id ASC").Find(&docs).Error
	if err != nil {
		return err
	}
	app.Documents = docs
	return nil
}
