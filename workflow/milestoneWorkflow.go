package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aivisionaries/hydropay_backend/config"
	"github.com/aivisionaries/hydropay_backend/models"
	"github.com/aivisionaries/hydropay_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CreateMilestonePlan adds disbursement tranches to a govt_approved
// application. Percentages across all of the application's milestones may
// never exceed 100; amounts derive from the sanctioned amount.
func CreateMilestonePlan(ctx context.Context, applicationId int, inputs []*models.NewMilestone) ([]*models.Milestone, error) {
	db := config.GetDB()

	if len(inputs) == 0 {
		return nil, utils.ErrorValidation
	}
	newPercent := decimal.Zero
	for _, in := range inputs {
		if !in.TargetPercent.IsPositive() {
			return nil, utils.ErrorValidation
		}
		newPercent = newPercent.Add(in.TargetPercent)
	}

	var created []*models.Milestone
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireApplicationLock(tx, applicationId); err != nil {
			return err
		}
		defer ReleaseApplicationLock(tx, applicationId)

		var app models.Application
		if err := tx.First(&app, applicationId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		if app.Status != models.ApplicationStatusGovtApproved {
			return utils.ErrorInvalidState
		}
		if app.SanctionedAmount == nil {
			return utils.ErrorInvalidState
		}

		existing, err := models.SumMilestonePercents(tx, applicationId)
		if err != nil {
			return err
		}
		if existing.Add(newPercent).GreaterThan(oneHundred) {
			return utils.ErrorValidation
		}

		for _, in := range inputs {
			m := models.Milestone{
				ApplicationId: applicationId,
				Name:          in.Name,
				TargetPercent: in.TargetPercent,
				TargetAmount:  app.SanctionedAmount.Mul(in.TargetPercent).Div(oneHundred),
				PlannedDate:   in.PlannedDate,
				Status:        models.MilestoneStatusPending,
			}
			if err := tx.Create(&m).Error; err != nil {
				return err
			}
			created = append(created, &m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// MarkMilestoneComplete is the producer's claim that the tranche's work is
// done. It does not make the milestone payable; verification does.
func MarkMilestoneComplete(ctx context.Context, milestoneId, producerId int) (*models.Milestone, error) {
	db := config.GetDB()

	var m models.Milestone
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&m, milestoneId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}

		var app models.Application
		if err := tx.First(&app, m.ApplicationId).Error; err != nil {
			return err
		}
		if app.ProducerId != producerId {
			return utils.ErrorForbidden
		}
		if m.Status != models.MilestoneStatusPending {
			return utils.ErrorInvalidState
		}

		now := time.Now().UTC()
		res := tx.Model(&models.Milestone{}).
			Where("id = ? AND status = ?", milestoneId, models.MilestoneStatusPending).
			Updates(map[string]interface{}{"status": models.MilestoneStatusCompleted, "completed_date": &now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.ErrorInvalidState
		}
		m.Status = models.MilestoneStatusCompleted
		m.CompletedDate = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// VerifyMilestone is the auditor sign-off (or rejection) on a
// producer-completed milestone.
func VerifyMilestone(ctx context.Context, milestoneId int, approve bool) (*models.Milestone, error) {
	db := config.GetDB()

	var m models.Milestone
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&m, milestoneId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		if m.Status != models.MilestoneStatusCompleted {
			return utils.ErrorInvalidState
		}
		if m.VerificationStatus != models.VerificationStatusPending {
			return utils.ErrorInvalidState
		}

		next := models.VerificationStatusVerified
		if !approve {
			next = models.VerificationStatusRejected
		}
		res := tx.Model(&models.Milestone{}).
			Where("id = ? AND verification_status = ?", milestoneId, models.VerificationStatusPending).
			Update("verification_status", next)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.ErrorInvalidState
		}
		m.VerificationStatus = next

		// The verdict belongs to the application's audit trail; milestones only
		// exist on applications that carry an audit.
		var audit models.Audit
		err := tx.Where("application_id = ?", m.ApplicationId).Order("id ASC").First(&audit).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		return models.AppendAuditLog(tx, audit.ID, ActionVerifyMilestone, map[string]interface{}{
			"milestone_id":        milestoneId,
			"approved":            approve,
			"verification_status": next,
		})
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// PayMilestone disburses one verified tranche. The conditional UPDATE on
// payment_status plus the unique index on transactions.milestone_id make a
// double payment impossible even across instances. Paying the last tranche
// moves the application to fund_released.
func PayMilestone(ctx context.Context, milestoneId, bankId int, beneficiary models.BeneficiaryDetails, comments string) (*models.Transaction, error) {
	db := config.GetDB()

	var txn models.Transaction
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m models.Milestone
		if err := tx.First(&m, milestoneId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}

		if err := AcquireApplicationLock(tx, m.ApplicationId); err != nil {
			return err
		}
		defer ReleaseApplicationLock(tx, m.ApplicationId)

		var app models.Application
		if err := tx.First(&app, m.ApplicationId).Error; err != nil {
			return err
		}
		if app.Status != models.ApplicationStatusGovtApproved {
			return utils.ErrorInvalidState
		}
		if m.VerificationStatus != models.VerificationStatusVerified {
			return utils.ErrorInvalidState
		}
		if m.PaymentStatus != models.PaymentStatusPending {
			return utils.ErrorConflict
		}

		if config.EnforceSanctionCeiling() && app.SanctionedAmount != nil {
			paid, err := models.SumDisbursed(tx, m.ApplicationId)
			if err != nil {
				return err
			}
			if paid.Add(m.TargetAmount).GreaterThan(*app.SanctionedAmount) {
				return utils.ErrorValidation
			}
		}

		res := tx.Model(&models.Milestone{}).
			Where("id = ? AND payment_status = ?", milestoneId, models.PaymentStatusPending).
			Update("payment_status", models.PaymentStatusPaid)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.ErrorConflict
		}
		m.PaymentStatus = models.PaymentStatusPaid

		mid := milestoneId
		txn = models.Transaction{
			BankId:             bankId,
			ApplicationId:      m.ApplicationId,
			MilestoneId:        &mid,
			Amount:             m.TargetAmount,
			Type:               models.TransactionTypeMilestone,
			ReferenceNumber:    fmt.Sprintf("TXN-%s", uuid.NewString()),
			Status:             models.TransactionStatusCompleted,
			BeneficiaryName:    beneficiary.Name,
			BeneficiaryAccount: beneficiary.Account,
			BeneficiaryIfsc:    beneficiary.Ifsc,
			Comments:           comments,
		}
		if err := tx.Create(&txn).Error; err != nil {
			if isDuplicateKeyErr(err) {
				return utils.ErrorConflict
			}
			return err
		}

		// When every planned milestone is paid, the application is fully
		// disbursed and reaches its terminal state.
		var unpaid int64
		if err := tx.Model(&models.Milestone{}).
			Where("application_id = ? AND payment_status = ?", m.ApplicationId, models.PaymentStatusPending).
			Count(&unpaid).Error; err != nil {
			return err
		}
		if unpaid == 0 {
			before := app
			now := time.Now().UTC()
			if err := flipStatus(tx, m.ApplicationId, app.Status, models.ApplicationStatusFundReleased,
				map[string]interface{}{"released_at": &now}); err != nil {
				return err
			}
			app.Status = models.ApplicationStatusFundReleased
			app.ReleasedAt = &now
			if err := models.RecordStatusEvent(tx, m.ApplicationId, before.Status, app.Status, ActionPayMilestone, before, app); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &txn, nil
}
