package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aivisionaries/hydropay_backend/config"
	"github.com/aivisionaries/hydropay_backend/models"
	"github.com/aivisionaries/hydropay_backend/utils"
	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Every state-changing operation here follows the same shape: one DB
// transaction, advisory lock per application, guard check, conditional status
// UPDATE (WHERE id = ? AND status = ?), child-record writes, outbox event.
// The conditional UPDATE is what closes the check-then-act race: of two
// concurrent callers that both passed the guard read, exactly one flips the
// row; the other sees RowsAffected == 0 and fails with ErrorInvalidState.

func flipStatus(tx *gorm.DB, applicationId int, from, to models.ApplicationStatus, extra map[string]interface{}) error {
	if !CanTransition(from, to) {
		return utils.ErrorInvalidState
	}
	updates := map[string]interface{}{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	res := tx.Model(&models.Application{}).
		Where("id = ? AND status = ?", applicationId, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrorInvalidState
	}
	return nil
}

// SubmitAudit records (or overwrites) the auditor's compliance assessment and
// advances the application per the audit outcome. The audit write and the
// status flip commit together or not at all.
func SubmitAudit(ctx context.Context, applicationId, auditorId int, input *models.NewAudit) (*models.Audit, error) {
	db := config.GetDB()

	overall := models.ComplianceStatus(input.ComplianceStatus)
	if !overall.IsValid() || input.Score < 0 || input.Score > 100 {
		return nil, utils.ErrorValidation
	}

	var audit models.Audit
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
		if app.Status != models.ApplicationStatusPending {
			return utils.ErrorInvalidState
		}

		// Idempotent re-submission: the same auditor overwrites their own audit.
		err := tx.Where("application_id = ? AND auditor_id = ?", applicationId, auditorId).
			First(&audit).Error
		fresh := errors.Is(err, gorm.ErrRecordNotFound)
		if err != nil && !fresh {
			return err
		}

		audit.ApplicationId = applicationId
		audit.AuditorId = auditorId
		audit.TechnicalCompliance = models.ComplianceStatus(input.TechnicalCompliance)
		audit.FinancialCompliance = models.ComplianceStatus(input.FinancialCompliance)
		audit.EnvironmentalCompliance = models.ComplianceStatus(input.EnvironmentalCompliance)
		audit.ComplianceStatus = overall
		audit.Score = input.Score
		audit.Comments = input.Comments
		verified := input.Verified
		audit.Verified = &verified

		if fresh {
			if err := tx.Create(&audit).Error; err != nil {
				return err
			}
		} else {
			if err := tx.Save(&audit).Error; err != nil {
				return err
			}
		}

		next := AuditOutcome(overall, input.Verified)
		before := app
		if err := flipStatus(tx, applicationId, app.Status, next, nil); err != nil {
			return err
		}
		app.Status = next

		if err := models.AppendAuditLog(tx, audit.ID, ActionSubmitAudit, map[string]interface{}{
			"compliance_status": overall,
			"verified":          input.Verified,
			"score":             input.Score,
			"resubmission":      !fresh,
		}); err != nil {
			return err
		}

		return models.RecordStatusEvent(tx, applicationId, before.Status, next, ActionSubmitAudit, before, app)
	})
	if err != nil {
		return nil, err
	}
	return &audit, nil
}

type ReviewInput struct {
	Decision       string           `json:"decision" binding:"required,oneof=approve reject"`
	ApprovedAmount *decimal.Decimal `json:"approved_amount"`
	Comments       string           `json:"comments"`
}

// ReviewApplication records the government decision. Approval sets the
// sanctioned amount, which becomes the ceiling for later disbursement.
func ReviewApplication(ctx context.Context, applicationId int, input *ReviewInput) (*models.Application, error) {
	db := config.GetDB()

	approve := input.Decision == "approve"
	if approve {
		if input.ApprovedAmount == nil || !input.ApprovedAmount.IsPositive() {
			return nil, utils.ErrorValidation
		}
	}

	var app models.Application
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireApplicationLock(tx, applicationId); err != nil {
			return err
		}
		defer ReleaseApplicationLock(tx, applicationId)

		if err := tx.First(&app, applicationId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		if app.Status != models.ApplicationStatusAuditorVerified {
			return utils.ErrorInvalidState
		}

		// An audit must be on record before any government decision.
		var auditCount int64
		if err := tx.Model(&models.Audit{}).
			Where("application_id = ?", applicationId).
			Count(&auditCount).Error; err != nil {
			return err
		}
		if auditCount == 0 {
			return utils.ErrorInvalidState
		}

		before := app
		now := time.Now().UTC()
		next := models.ApplicationStatusRejected
		extra := map[string]interface{}{
			"govt_comments": input.Comments,
			"reviewed_at":   &now,
		}
		if approve {
			next = models.ApplicationStatusGovtApproved
			extra["sanctioned_amount"] = input.ApprovedAmount
			extra["approval_reference"] = fmt.Sprintf("SAN-%s", uuid.NewString())
		}

		if err := flipStatus(tx, applicationId, app.Status, next, extra); err != nil {
			return err
		}
		app.Status = next
		app.GovtComments = input.Comments
		app.ReviewedAt = &now
		if approve {
			app.SanctionedAmount = input.ApprovedAmount
		}

		return models.RecordStatusEvent(tx, applicationId, before.Status, next, ActionReview, before, app)
	})
	if err != nil {
		return nil, err
	}
	return &app, nil
}

type ReleaseInput struct {
	Amount      decimal.Decimal           `json:"amount" binding:"required"`
	Comments    string                    `json:"comments"`
	Beneficiary models.BeneficiaryDetails `json:"beneficiary" binding:"required"`
}

// ReleaseFunds records the full-subsidy disbursement and moves the
// application to its terminal fund_released state. A second call can never
// succeed: the conditional status flip admits exactly one caller.
func ReleaseFunds(ctx context.Context, applicationId, bankId int, input *ReleaseInput) (*models.Transaction, error) {
	db := config.GetDB()

	if !input.Amount.IsPositive() {
		return nil, utils.ErrorValidation
	}

	// Best-effort cross-instance lock; correctness does not depend on Redis.
	// The advisory lock + conditional UPDATE below are the real serialization.
	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, fmt.Sprintf("release:application:%d", applicationId), 30*time.Second, nil)
		if err == nil {
			defer lock.Release(context.WithoutCancel(ctx))
		} else if !errors.Is(err, redislock.ErrNotObtained) {
			config.LogError(config.GetLogger(), "workflow", "ReleaseFunds", "redislock", applicationId, err)
		}
	}

	var txn models.Transaction
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

		if config.EnforceSanctionCeiling() && app.SanctionedAmount != nil {
			if input.Amount.GreaterThan(*app.SanctionedAmount) {
				return utils.ErrorValidation
			}
		}

		before := app
		now := time.Now().UTC()
		if err := flipStatus(tx, applicationId, app.Status, models.ApplicationStatusFundReleased,
			map[string]interface{}{"released_at": &now}); err != nil {
			return err
		}
		app.Status = models.ApplicationStatusFundReleased
		app.ReleasedAt = &now

		txn = models.Transaction{
			BankId:             bankId,
			ApplicationId:      applicationId,
			Amount:             input.Amount,
			Type:               models.TransactionTypeFullSubsidy,
			ReferenceNumber:    fmt.Sprintf("TXN-%s", uuid.NewString()),
			Status:             models.TransactionStatusCompleted,
			BeneficiaryName:    input.Beneficiary.Name,
			BeneficiaryAccount: input.Beneficiary.Account,
			BeneficiaryIfsc:    input.Beneficiary.Ifsc,
			Comments:           input.Comments,
		}
		if err := tx.Create(&txn).Error; err != nil {
			return err
		}

		return models.RecordStatusEvent(tx, applicationId, before.Status, app.Status, ActionReleaseFunds, before, app)
	})
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// ResubmitApplication lets the producer bring a requires_revision application
// back to pending after editing it.
func ResubmitApplication(ctx context.Context, applicationId, producerId int, input *models.NewApplication) (*models.Application, error) {
	if err := input.ValidateAmounts(); err != nil {
		return nil, err
	}

	db := config.GetDB()

	var app models.Application
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireApplicationLock(tx, applicationId); err != nil {
			return err
		}
		defer ReleaseApplicationLock(tx, applicationId)

		if err := tx.First(&app, applicationId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		if app.ProducerId != producerId {
			return utils.ErrorForbidden
		}
		if app.Status != models.ApplicationStatusRequiresRevision {
			return utils.ErrorInvalidState
		}

		before := app
		extra := map[string]interface{}{
			"project_name":    input.ProjectName,
			"technology_type": input.TechnologyType,
			"capacity_mw":     input.CapacityMw,
			"capacity_tons":   input.CapacityTons,
			"capex_estimate":  input.CapexEstimate,
			"project_details": input.ProjectDetails,
		}
		if err := flipStatus(tx, applicationId, app.Status, models.ApplicationStatusPending, extra); err != nil {
			return err
		}
		app.Status = models.ApplicationStatusPending

		docs, err := mapResubmissionDocuments(input.Documents, app.ID)
		if err != nil {
			return err
		}
		if len(docs) > 0 {
			if err := tx.Create(&docs).Error; err != nil {
				return err
			}
		}

		return models.RecordStatusEvent(tx, applicationId, before.Status, app.Status, ActionResubmit, before, app)
	})
	if err != nil {
		return nil, err
	}
	return &app, nil
}

func mapResubmissionDocuments(input []*models.NewDocument, applicationId int) ([]*models.Document, error) {
	var docs []*models.Document
	for _, d := range input {
		mapped, err := d.MapInput(models.DocumentReferenceApplication, applicationId)
		if err != nil {
			return nil, err
		}
		docs = append(docs, mapped)
	}
	return docs, nil
}

// RecommendedSubsidy looks up the active policy for the application's
// technology type and runs the calculator. Zero means no recommendation.
func RecommendedSubsidy(ctx context.Context, app *models.Application) (decimal.Decimal, error) {
	policy, err := models.ActivePolicyForTechnology(ctx, app.TechnologyType, time.Now().UTC())
	if err != nil {
		return decimal.Zero, err
	}
	return ComputeSubsidy(app, policy), nil
}
