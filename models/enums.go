package models

// UserRole distinguishes the four actors of the subsidy pipeline.
type UserRole string

const (
	UserRoleProducer   UserRole = "producer"
	UserRoleAuditor    UserRole = "auditor"
	UserRoleGovernment UserRole = "government"
	UserRoleBank       UserRole = "bank"
)

func (r UserRole) IsValid() bool {
	switch r {
	case UserRoleProducer, UserRoleAuditor, UserRoleGovernment, UserRoleBank:
		return true
	}
	return false
}

// ApplicationStatus is the closed set of lifecycle states. Transitions only
// happen through workflow functions; see workflow/stateMachine.go.
type ApplicationStatus string

const (
	ApplicationStatusPending          ApplicationStatus = "pending"
	ApplicationStatusRequiresRevision ApplicationStatus = "requires_revision"
	ApplicationStatusAuditorVerified  ApplicationStatus = "auditor_verified"
	ApplicationStatusGovtApproved     ApplicationStatus = "govt_approved"
	ApplicationStatusRejected         ApplicationStatus = "rejected"
	ApplicationStatusFundReleased     ApplicationStatus = "fund_released"
)

func (s ApplicationStatus) IsValid() bool {
	switch s {
	case ApplicationStatusPending, ApplicationStatusRequiresRevision,
		ApplicationStatusAuditorVerified, ApplicationStatusGovtApproved,
		ApplicationStatusRejected, ApplicationStatusFundReleased:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition leaves this state.
func (s ApplicationStatus) IsTerminal() bool {
	return s == ApplicationStatusRejected || s == ApplicationStatusFundReleased
}

// ComplianceStatus is used both for the per-dimension verdicts
// (technical/financial/environmental) and for the audit's overall verdict.
type ComplianceStatus string

const (
	ComplianceStatusCompliant          ComplianceStatus = "compliant"
	ComplianceStatusPartiallyCompliant ComplianceStatus = "partially_compliant"
	ComplianceStatusNonCompliant       ComplianceStatus = "non_compliant"
)

func (s ComplianceStatus) IsValid() bool {
	switch s {
	case ComplianceStatusCompliant, ComplianceStatusPartiallyCompliant, ComplianceStatusNonCompliant:
		return true
	}
	return false
}

// MilestoneStatus is the producer-reported completion state.
type MilestoneStatus string

const (
	MilestoneStatusPending   MilestoneStatus = "pending"
	MilestoneStatusCompleted MilestoneStatus = "completed"
)

// VerificationStatus is the auditor's verdict on a completed milestone.
type VerificationStatus string

const (
	VerificationStatusPending  VerificationStatus = "pending"
	VerificationStatusVerified VerificationStatus = "verified"
	VerificationStatusRejected VerificationStatus = "rejected"
)

// PaymentStatus tracks whether a milestone tranche has been disbursed.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// TransactionType classifies a disbursement record.
type TransactionType string

const (
	TransactionTypeFullSubsidy TransactionType = "full_subsidy"
	TransactionTypeMilestone   TransactionType = "milestone"
	TransactionTypeAdvance     TransactionType = "advance"
	TransactionTypeFinal       TransactionType = "final"
)

func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeFullSubsidy, TransactionTypeMilestone, TransactionTypeAdvance, TransactionTypeFinal:
		return true
	}
	return false
}

// TransactionStatus: disbursement records are written once, as completed.
// Failed storage writes never leave a row behind.
type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "completed"
)

// CombinationRule decides how a policy's rate bases combine.
// additive:       every matching base accrues (the historical behavior).
// highest_single: only the largest single-base amount applies.
type CombinationRule string

const (
	CombinationRuleAdditive      CombinationRule = "additive"
	CombinationRuleHighestSingle CombinationRule = "highest_single"
)

func (r CombinationRule) IsValid() bool {
	return r == CombinationRuleAdditive || r == CombinationRuleHighestSingle
}

// Idempotency key lifecycle (see workflow/idempotency.go).
type IdempotencyStatus string

const (
	IdempotencyStatusStarted   IdempotencyStatus = "STARTED"
	IdempotencyStatusSucceeded IdempotencyStatus = "SUCCEEDED"
	IdempotencyStatusFailed    IdempotencyStatus = "FAILED"
)

// Outbox publish lifecycle (see workflow/outboxDispatcher.go).
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)
