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

// SubsidyPolicy holds the rate rules for one technology type. Written only by
// government administrators; read by the disbursement calculator.
// A nil rate means the base does not apply.
type SubsidyPolicy struct {
	ID             int    `gorm:"primary_key" json:"id"`
	TechnologyType string `gorm:"size:100;index;not null" json:"technology_type"`

	RatePerTon         *decimal.Decimal `gorm:"type:decimal(18,4)" json:"rate_per_ton"`
	RatePerMw          *decimal.Decimal `gorm:"type:decimal(18,4)" json:"rate_per_mw"`
	RatePercentageCapex *decimal.Decimal `gorm:"type:decimal(7,4)" json:"rate_percentage_capex"`

	CombinationRule CombinationRule `gorm:"type:enum('additive','highest_single');not null;default:'additive'" json:"combination_rule"`

	IsActive  *bool      `gorm:"not null;default:true;index" json:"is_active"`
	ValidFrom *time.Time `json:"valid_from"`
	ValidTo   *time.Time `json:"valid_to"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSubsidyPolicy struct {
	TechnologyType      string           `json:"technology_type" binding:"required,max=100"`
	RatePerTon          *decimal.Decimal `json:"rate_per_ton"`
	RatePerMw           *decimal.Decimal `json:"rate_per_mw"`
	RatePercentageCapex *decimal.Decimal `json:"rate_percentage_capex"`
	CombinationRule     string           `json:"combination_rule" binding:"omitempty,oneof=additive highest_single"`
	ValidFrom           *time.Time       `json:"valid_from"`
	ValidTo             *time.Time       `json:"valid_to"`
}

func (input *NewSubsidyPolicy) validate() error {
	for _, rate := range []*decimal.Decimal{input.RatePerTon, input.RatePerMw} {
		if rate != nil && rate.IsNegative() {
			return utils.ErrorValidation
		}
	}
	if p := input.RatePercentageCapex; p != nil {
		if p.IsNegative() || p.GreaterThan(decimal.NewFromInt(100)) {
			return utils.ErrorValidation
		}
	}
	if input.ValidFrom != nil && input.ValidTo != nil && input.ValidTo.Before(*input.ValidFrom) {
		return utils.ErrorValidation
	}
	return nil
}

func CreateSubsidyPolicy(ctx context.Context, input *NewSubsidyPolicy) (*SubsidyPolicy, error) {
	db := config.GetDB()

	if err := input.validate(); err != nil {
		return nil, err
	}

	rule := CombinationRule(input.CombinationRule)
	if rule == "" {
		rule = CombinationRule(config.DefaultCombinationRule())
	}

	policy := SubsidyPolicy{
		TechnologyType:      input.TechnologyType,
		RatePerTon:          input.RatePerTon,
		RatePerMw:           input.RatePerMw,
		RatePercentageCapex: input.RatePercentageCapex,
		CombinationRule:     rule,
		IsActive:            utils.NewTrue(),
		ValidFrom:           input.ValidFrom,
		ValidTo:             input.ValidTo,
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// One active policy per technology type; deactivate before replacing.
		var count int64
		if err := tx.Model(&SubsidyPolicy{}).
			Where("technology_type = ? AND is_active = 1", input.TechnologyType).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return utils.ErrorConflict
		}
		return tx.Create(&policy).Error
	})
	if err != nil {
		return nil, err
	}
	return &policy, nil
}

func DeactivateSubsidyPolicy(ctx context.Context, id int) error {
	db := config.GetDB()
	res := db.WithContext(ctx).Model(&SubsidyPolicy{}).
		Where("id = ?", id).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}

func ListSubsidyPolicies(ctx context.Context) ([]*SubsidyPolicy, error) {
	db := config.GetDB()
	var policies []*SubsidyPolicy
	if err := db.WithContext(ctx).Order("id ASC").Find(&policies).Error; err != nil {
		return nil, err
	}
	return policies, nil
}

// ActivePolicyForTechnology returns the active policy matching the technology
// type exactly, within its validity window at the given time. No match is not
// an error: the caller treats it as "no computed recommendation".
func ActivePolicyForTechnology(ctx context.Context, technologyType string, at time.Time) (*SubsidyPolicy, error) {
	db := config.GetDB()
	var policy SubsidyPolicy
	err := db.WithContext(ctx).
		Where("technology_type = ? AND is_active = 1", technologyType).
		Where("valid_from IS NULL OR valid_from <= ?", at).
		Where("valid_to IS NULL OR valid_to >= ?", at).
		Order("id DESC").First(&policy).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &policy, nil
}
