package workflow

import (
	"testing"

	"github.com/aivisionaries/hydropay_backend/models"
	"github.com/shopspring/decimal"
)

func decPtr(v decimal.Decimal) *decimal.Decimal { return &v }

func TestComputeSubsidy_PerTon(t *testing.T) {
	app := &models.Application{
		CapacityTons: decimal.NewFromInt(100),
	}
	policy := &models.SubsidyPolicy{
		RatePerTon:      decPtr(decimal.NewFromInt(50000)),
		CombinationRule: models.CombinationRuleAdditive,
	}

	got := ComputeSubsidy(app, policy)
	want := decimal.NewFromInt(5_000_000)
	if !got.Equal(want) {
		t.Fatalf("ComputeSubsidy = %s, want %s", got, want)
	}
}

func TestComputeSubsidy_CapexPercentage(t *testing.T) {
	// 10% of a 50 crore estimate = 5 crore = 50,000,000 rupees.
	app := &models.Application{
		CapexEstimate: decimal.NewFromInt(50),
	}
	policy := &models.SubsidyPolicy{
		RatePercentageCapex: decPtr(decimal.NewFromInt(10)),
		CombinationRule:     models.CombinationRuleAdditive,
	}

	got := ComputeSubsidy(app, policy)
	want := decimal.NewFromInt(50_000_000)
	if !got.Equal(want) {
		t.Fatalf("ComputeSubsidy = %s, want %s", got, want)
	}
}

func TestComputeSubsidy_AdditiveCombinesAllBases(t *testing.T) {
	app := &models.Application{
		CapacityTons:  decimal.NewFromInt(100),
		CapacityMw:    decimal.NewFromInt(20),
		CapexEstimate: decimal.NewFromInt(50),
	}
	policy := &models.SubsidyPolicy{
		RatePerTon:          decPtr(decimal.NewFromInt(50000)),  // 5,000,000
		RatePerMw:           decPtr(decimal.NewFromInt(100000)), // 2,000,000
		RatePercentageCapex: decPtr(decimal.NewFromInt(10)),     // 50,000,000
		CombinationRule:     models.CombinationRuleAdditive,
	}

	got := ComputeSubsidy(app, policy)
	want := decimal.NewFromInt(57_000_000)
	if !got.Equal(want) {
		t.Fatalf("ComputeSubsidy = %s, want %s", got, want)
	}
}

func TestComputeSubsidy_HighestSinglePicksLargestBase(t *testing.T) {
	app := &models.Application{
		CapacityTons:  decimal.NewFromInt(100),
		CapacityMw:    decimal.NewFromInt(20),
		CapexEstimate: decimal.NewFromInt(50),
	}
	policy := &models.SubsidyPolicy{
		RatePerTon:          decPtr(decimal.NewFromInt(50000)),
		RatePerMw:           decPtr(decimal.NewFromInt(100000)),
		RatePercentageCapex: decPtr(decimal.NewFromInt(10)),
		CombinationRule:     models.CombinationRuleHighestSingle,
	}

	got := ComputeSubsidy(app, policy)
	want := decimal.NewFromInt(50_000_000)
	if !got.Equal(want) {
		t.Fatalf("ComputeSubsidy = %s, want %s", got, want)
	}
}

func TestComputeSubsidy_ZeroCapacityBaseIsSkipped(t *testing.T) {
	// The per-MW rate is configured but the project has no MW capacity, so the
	// term contributes nothing under either combination rule.
	app := &models.Application{
		CapacityTons: decimal.NewFromInt(10),
		CapacityMw:   decimal.Zero,
	}
	policy := &models.SubsidyPolicy{
		RatePerTon:      decPtr(decimal.NewFromInt(1000)),
		RatePerMw:       decPtr(decimal.NewFromInt(999999)),
		CombinationRule: models.CombinationRuleHighestSingle,
	}

	got := ComputeSubsidy(app, policy)
	want := decimal.NewFromInt(10_000)
	if !got.Equal(want) {
		t.Fatalf("ComputeSubsidy = %s, want %s", got, want)
	}
}

func TestComputeSubsidy_NilPolicyYieldsZero(t *testing.T) {
	app := &models.Application{CapacityTons: decimal.NewFromInt(100)}
	if got := ComputeSubsidy(app, nil); !got.Equal(decimal.Zero) {
		t.Fatalf("ComputeSubsidy with nil policy = %s, want 0", got)
	}
	if got := ComputeSubsidy(nil, &models.SubsidyPolicy{}); !got.Equal(decimal.Zero) {
		t.Fatalf("ComputeSubsidy with nil application = %s, want 0", got)
	}
}

func TestComputeSubsidy_NoMatchingBasesYieldsZero(t *testing.T) {
	app := &models.Application{
		CapacityTons: decimal.Zero,
		CapacityMw:   decimal.Zero,
	}
	policy := &models.SubsidyPolicy{
		RatePerTon:      decPtr(decimal.NewFromInt(50000)),
		CombinationRule: models.CombinationRuleAdditive,
	}

	if got := ComputeSubsidy(app, policy); !got.Equal(decimal.Zero) {
		t.Fatalf("ComputeSubsidy = %s, want 0", got)
	}
}

func TestComputeSubsidy_Deterministic(t *testing.T) {
	app := &models.Application{
		CapacityTons:  decimal.RequireFromString("123.4567"),
		CapacityMw:    decimal.RequireFromString("9.5"),
		CapexEstimate: decimal.RequireFromString("42.25"),
	}
	policy := &models.SubsidyPolicy{
		RatePerTon:          decPtr(decimal.RequireFromString("48123.75")),
		RatePerMw:           decPtr(decimal.RequireFromString("250000.5")),
		RatePercentageCapex: decPtr(decimal.RequireFromString("7.5")),
		CombinationRule:     models.CombinationRuleAdditive,
	}

	first := ComputeSubsidy(app, policy)
	for i := 0; i < 50; i++ {
		if got := ComputeSubsidy(app, policy); !got.Equal(first) {
			t.Fatalf("run %d: ComputeSubsidy = %s, first run was %s", i, got, first)
		}
	}
}
