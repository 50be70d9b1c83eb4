package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/aivisionaries/hydropay_backend/models"
	"github.com/aivisionaries/hydropay_backend/utils"
	"github.com/shopspring/decimal"
)

// Input validation runs before any storage access, so these cases need no DB.

func TestCreateMilestonePlan_RejectsEmptyPlan(t *testing.T) {
	_, err := CreateMilestonePlan(context.Background(), 1, nil)
	if !errors.Is(err, utils.ErrorValidation) {
		t.Fatalf("empty plan: err = %v, want ErrorValidation", err)
	}
}

func TestResubmitApplication_RejectsNegativeAmounts(t *testing.T) {
	cases := []struct {
		name  string
		input models.NewApplication
	}{
		{"negative tons", models.NewApplication{ProjectName: "P", TechnologyType: "electrolysis", CapacityTons: decimal.NewFromInt(-5)}},
		{"negative mw", models.NewApplication{ProjectName: "P", TechnologyType: "electrolysis", CapacityMw: decimal.NewFromInt(-1)}},
		{"negative capex", models.NewApplication{ProjectName: "P", TechnologyType: "electrolysis", CapexEstimate: decimal.RequireFromString("-0.01")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ResubmitApplication(context.Background(), 1, 1, &tc.input)
			if !errors.Is(err, utils.ErrorValidation) {
				t.Fatalf("resubmit with %s: err = %v, want ErrorValidation", tc.name, err)
			}
		})
	}
}

func TestCreateMilestonePlan_RejectsNonPositivePercents(t *testing.T) {
	cases := []struct {
		name    string
		percent decimal.Decimal
	}{
		{"zero", decimal.Zero},
		{"negative", decimal.NewFromInt(-10)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CreateMilestonePlan(context.Background(), 1, []*models.NewMilestone{
				{Name: "Tranche", TargetPercent: tc.percent},
			})
			if !errors.Is(err, utils.ErrorValidation) {
				t.Fatalf("percent %s: err = %v, want ErrorValidation", tc.percent, err)
			}
		})
	}
}
