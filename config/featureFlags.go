package config

import (
	"os"
	"strings"
)

func envBool(name string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// EnforceSanctionCeiling gates the check that a bank release (or the cumulative
// milestone payments) may not exceed the government-sanctioned amount.
// On by default; disable only for legacy data backfills.
//
// Set via env:
// - ENFORCE_SANCTION_CEILING=false
func EnforceSanctionCeiling() bool {
	return envBool("ENFORCE_SANCTION_CEILING", true)
}

// DefaultCombinationRule is applied to policies created without an explicit rule.
//
// Set via env:
// - SUBSIDY_COMBINATION_RULE="additive" | "highest_single"
func DefaultCombinationRule() string {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("SUBSIDY_COMBINATION_RULE")))
	if v == "highest_single" {
		return v
	}
	return "additive"
}

// OutboxDirectDispatch disables the Pub/Sub publisher and marks outbox rows SENT
// after logging them. For deployments without Pub/Sub (local dev, CI).
//
// Set via env:
// - OUTBOX_DIRECT_DISPATCH=true
func OutboxDirectDispatch() bool {
	return envBool("OUTBOX_DIRECT_DISPATCH", false)
}

// OtpDeliveryDisabled short-circuits OTP publication; the code is only logged.
// Useful for local dev where no mail consumer is attached to the topic.
//
// Set via env:
// - OTP_DELIVERY_DISABLED=true
func OtpDeliveryDisabled() bool {
	return envBool("OTP_DELIVERY_DISABLED", false)
}
