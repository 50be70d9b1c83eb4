package utils

import (
	"testing"
	"time"
)

func TestGetOtpLifespan(t *testing.T) {
	t.Setenv("OTP_MINUTE_LIFESPAN", "")
	if got := GetOtpLifespan(); got != 5*time.Minute {
		t.Errorf("default lifespan = %s, want 5m", got)
	}

	t.Setenv("OTP_MINUTE_LIFESPAN", "3")
	if got := GetOtpLifespan(); got != 3*time.Minute {
		t.Errorf("overridden lifespan = %s, want 3m", got)
	}
}
