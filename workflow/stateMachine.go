package workflow

import (
	"github.com/aivisionaries/hydropay_backend/models"
)

// Lifecycle actions recorded on status events and audit-trail entries.
const (
	ActionSubmitApplication = "SUBMIT_APPLICATION"
	ActionResubmit          = "RESUBMIT_APPLICATION"
	ActionSubmitAudit       = "SUBMIT_AUDIT"
	ActionReview            = "GOVERNMENT_REVIEW"
	ActionReleaseFunds      = "RELEASE_FUNDS"
	ActionVerifyMilestone   = "VERIFY_MILESTONE"
	ActionPayMilestone      = "PAY_MILESTONE"
)

// transitions is the closed edge set of the application lifecycle. Anything
// not listed here is an invalid transition, no exceptions.
var transitions = map[models.ApplicationStatus][]models.ApplicationStatus{
	models.ApplicationStatusPending: {
		models.ApplicationStatusAuditorVerified,
		models.ApplicationStatusRejected,
		models.ApplicationStatusRequiresRevision,
	},
	models.ApplicationStatusRequiresRevision: {
		models.ApplicationStatusPending,
	},
	models.ApplicationStatusAuditorVerified: {
		models.ApplicationStatusGovtApproved,
		models.ApplicationStatusRejected,
	},
	models.ApplicationStatusGovtApproved: {
		models.ApplicationStatusFundReleased,
	},
	// rejected and fund_released are terminal.
}

// CanTransition reports whether from -> to is an edge of the lifecycle.
func CanTransition(from, to models.ApplicationStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AuditOutcome maps an audit verdict to the resulting application status:
// compliant + verified      -> auditor_verified
// non_compliant             -> rejected (regardless of the verified flag)
// anything else             -> requires_revision
// A compliant verdict without the verified flag also routes to
// requires_revision; verification is the auditor's sign-off, not a formality.
func AuditOutcome(overall models.ComplianceStatus, verified bool) models.ApplicationStatus {
	switch {
	case overall == models.ComplianceStatusNonCompliant:
		return models.ApplicationStatusRejected
	case overall == models.ComplianceStatusCompliant && verified:
		return models.ApplicationStatusAuditorVerified
	default:
		return models.ApplicationStatusRequiresRevision
	}
}
