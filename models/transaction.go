package models

import (
	"context"
	"time"

	"github.com/aivisionaries/hydropay_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Transaction is an immutable disbursement record: created exactly once per
// disbursement event, never mutated afterwards. Beneficiary details are
// snapshotted at write time, not joined live.
type Transaction struct {
	ID            int  `gorm:"primary_key" json:"id"`
	BankId        int  `gorm:"index;not null" json:"bank_id"`
	ApplicationId int  `gorm:"index;not null" json:"application_id"`
	MilestoneId   *int `gorm:"uniqueIndex" json:"milestone_id"`

	Amount          decimal.Decimal   `gorm:"type:decimal(18,4);not null" json:"amount"`
	Type            TransactionType   `gorm:"type:enum('full_subsidy','milestone','advance','final');not null" json:"type"`
	ReferenceNumber string            `gorm:"size:64;uniqueIndex;not null" json:"reference_number"`
	Status          TransactionStatus `gorm:"type:enum('completed');not null;default:'completed'" json:"status"`

	BeneficiaryName    string `gorm:"size:200;not null" json:"beneficiary_name"`
	BeneficiaryAccount string `gorm:"size:34;not null" json:"beneficiary_account"`
	BeneficiaryIfsc    string `gorm:"size:11;not null" json:"beneficiary_ifsc"`

	Comments  string    `gorm:"type:text" json:"comments"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// BeneficiaryDetails is the typed payout-target input, validated at the
// boundary and copied verbatim onto the Transaction row.
type BeneficiaryDetails struct {
	Name    string `json:"name" binding:"required,max=200"`
	Account string `json:"account" binding:"required,max=34"`
	Ifsc    string `json:"ifsc" binding:"required,len=11"`
}

func ListTransactionsByBank(ctx context.Context, bankId int) ([]*Transaction, error) {
	db := config.GetDB()
	var txns []*Transaction
	err := db.WithContext(ctx).
		Where("bank_id = ?", bankId).
		Order("id ASC").Find(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}

func ListTransactionsByApplication(ctx context.Context, applicationId int) ([]*Transaction, error) {
	db := config.GetDB()
	var txns []*Transaction
	err := db.WithContext(ctx).
		Where("application_id = ?", applicationId).
		Order("id ASC").Find(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}

// SumDisbursed totals completed disbursements for an application inside the
// caller's transaction. Used for the sanction-ceiling guard.
func SumDisbursed(tx *gorm.DB, applicationId int) (decimal.Decimal, error) {
	var raw *string
	err := tx.Model(&Transaction{}).
		Where("application_id = ?", applicationId).
		Select("CAST(SUM(amount) AS CHAR)").
		Scan(&raw).Error
	if err != nil {
		return decimal.Zero, err
	}
	if raw == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(*raw)
}
