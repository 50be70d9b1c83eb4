// seed-government creates or updates the default government reviewer account
// and, optionally, a starting subsidy policy. Passwords come from env so the
// tool is safe to run against shared databases.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//   SEED_GOVT_EMAIL=mnre@example.gov.in SEED_GOVT_PASSWORD=... \
//   SEED_POLICY_TECHNOLOGY=electrolysis SEED_POLICY_RATE_PER_TON=50000 \
//   go run ./cmd/seed-government
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aivisionaries/hydropay_backend/config"
	"github.com/aivisionaries/hydropay_backend/models"
	"github.com/aivisionaries/hydropay_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	seedDefaultPolicy(ctx)

	email := os.Getenv("SEED_GOVT_EMAIL")
	password := os.Getenv("SEED_GOVT_PASSWORD")
	name := os.Getenv("SEED_GOVT_NAME")
	if name == "" {
		name = "Ministry Reviewer"
	}
	if email == "" || password == "" {
		fmt.Fprintln(os.Stderr, "SEED_GOVT_EMAIL and SEED_GOVT_PASSWORD are required")
		os.Exit(2)
	}

	hashed, err := utils.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}
	hashedStr := string(hashed)

	var existing models.User
	err = db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).First(&existing).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		u := models.User{
			Name:         name,
			Email:        email,
			PasswordHash: hashedStr,
			Role:         models.UserRoleGovernment,
			IsVerified:   utils.NewTrue(),
		}
		if err := db.WithContext(ctx).Create(&u).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create government user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created government user: email=%q\n", email)
		return
	}

	if err := db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Updates(map[string]any{
		"password_hash": hashedStr,
		"name":          name,
		"role":          models.UserRoleGovernment,
		"is_verified":   utils.NewTrue(),
	}).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to update government user: %v\n", err)
		os.Exit(1)
	}
	_ = utils.RemoveRedisItem[models.User](existing.ID)
	fmt.Printf("Updated government user: email=%q\n", email)
}

// seedDefaultPolicy creates a starting rate policy when SEED_POLICY_TECHNOLOGY
// and SEED_POLICY_RATE_PER_TON are set and no active policy exists for that
// technology. A conflict (policy already present) is not an error.
func seedDefaultPolicy(ctx context.Context) {
	technology := os.Getenv("SEED_POLICY_TECHNOLOGY")
	rateRaw := os.Getenv("SEED_POLICY_RATE_PER_TON")
	if technology == "" || rateRaw == "" {
		return
	}
	rate, err := decimal.NewFromString(rateRaw)
	if err != nil || !rate.IsPositive() {
		fmt.Fprintf(os.Stderr, "SEED_POLICY_RATE_PER_TON must be a positive decimal, got %q\n", rateRaw)
		os.Exit(2)
	}

	_, err = models.CreateSubsidyPolicy(ctx, &models.NewSubsidyPolicy{
		TechnologyType: technology,
		RatePerTon:     &rate,
	})
	if err != nil {
		if errors.Is(err, utils.ErrorConflict) {
			fmt.Printf("Active policy for %q already exists; skipping\n", technology)
			return
		}
		fmt.Fprintf(os.Stderr, "failed to seed policy: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Seeded subsidy policy: technology=%q rate_per_ton=%s\n", technology, rate)
}
