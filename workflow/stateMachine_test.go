package workflow

import (
	"testing"

	"github.com/aivisionaries/hydropay_backend/models"
)

var allStatuses = []models.ApplicationStatus{
	models.ApplicationStatusPending,
	models.ApplicationStatusRequiresRevision,
	models.ApplicationStatusAuditorVerified,
	models.ApplicationStatusGovtApproved,
	models.ApplicationStatusRejected,
	models.ApplicationStatusFundReleased,
}

func TestCanTransition_AllowedEdges(t *testing.T) {
	allowed := []struct {
		from, to models.ApplicationStatus
	}{
		{models.ApplicationStatusPending, models.ApplicationStatusAuditorVerified},
		{models.ApplicationStatusPending, models.ApplicationStatusRejected},
		{models.ApplicationStatusPending, models.ApplicationStatusRequiresRevision},
		{models.ApplicationStatusRequiresRevision, models.ApplicationStatusPending},
		{models.ApplicationStatusAuditorVerified, models.ApplicationStatusGovtApproved},
		{models.ApplicationStatusAuditorVerified, models.ApplicationStatusRejected},
		{models.ApplicationStatusGovtApproved, models.ApplicationStatusFundReleased},
	}

	allowedSet := map[[2]models.ApplicationStatus]bool{}
	for _, e := range allowed {
		allowedSet[[2]models.ApplicationStatus{e.from, e.to}] = true
		if !CanTransition(e.from, e.to) {
			t.Errorf("expected %s -> %s to be allowed", e.from, e.to)
		}
	}

	// Everything not in the allowed list must be rejected, including self-loops.
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			if allowedSet[[2]models.ApplicationStatus{from, to}] {
				continue
			}
			if CanTransition(from, to) {
				t.Errorf("expected %s -> %s to be rejected", from, to)
			}
		}
	}
}

func TestCanTransition_TerminalStatesHaveNoExits(t *testing.T) {
	for _, from := range []models.ApplicationStatus{models.ApplicationStatusRejected, models.ApplicationStatusFundReleased} {
		if !from.IsTerminal() {
			t.Errorf("expected %s to be terminal", from)
		}
		for _, to := range allStatuses {
			if CanTransition(from, to) {
				t.Errorf("terminal status %s must not transition to %s", from, to)
			}
		}
	}
}

func TestAuditOutcome(t *testing.T) {
	cases := []struct {
		name     string
		overall  models.ComplianceStatus
		verified bool
		want     models.ApplicationStatus
	}{
		{"compliant and verified", models.ComplianceStatusCompliant, true, models.ApplicationStatusAuditorVerified},
		{"compliant but not verified", models.ComplianceStatusCompliant, false, models.ApplicationStatusRequiresRevision},
		{"partially compliant verified", models.ComplianceStatusPartiallyCompliant, true, models.ApplicationStatusRequiresRevision},
		{"partially compliant unverified", models.ComplianceStatusPartiallyCompliant, false, models.ApplicationStatusRequiresRevision},
		{"non compliant verified", models.ComplianceStatusNonCompliant, true, models.ApplicationStatusRejected},
		{"non compliant unverified", models.ComplianceStatusNonCompliant, false, models.ApplicationStatusRejected},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := AuditOutcome(tc.overall, tc.verified)
			if got != tc.want {
				t.Fatalf("AuditOutcome(%s, %v) = %s, want %s", tc.overall, tc.verified, got, tc.want)
			}
		})
	}
}
