package workflow

import (
	"github.com/aivisionaries/hydropay_backend/models"
	"github.com/shopspring/decimal"
)

// CAPEX estimates are entered in crore; rate_percentage_capex yields rupees.
var capexCroreToRupees = decimal.NewFromInt(10_000_000)

var oneHundred = decimal.NewFromInt(100)

// ComputeSubsidy is the pure rate calculation. A nil policy (no active policy
// for the technology type) yields zero: "no computed recommendation", never an
// error — the disbursing officer can override the amount manually.
//
// Under the additive rule every matching base accrues; under highest_single
// only the largest single-base amount applies.
func ComputeSubsidy(app *models.Application, policy *models.SubsidyPolicy) decimal.Decimal {
	if app == nil || policy == nil {
		return decimal.Zero
	}

	var terms []decimal.Decimal

	if policy.RatePerTon != nil && app.CapacityTons.IsPositive() {
		terms = append(terms, policy.RatePerTon.Mul(app.CapacityTons))
	}
	if policy.RatePerMw != nil && app.CapacityMw.IsPositive() {
		terms = append(terms, policy.RatePerMw.Mul(app.CapacityMw))
	}
	if policy.RatePercentageCapex != nil && app.CapexEstimate.IsPositive() {
		terms = append(terms, policy.RatePercentageCapex.
			Div(oneHundred).
			Mul(app.CapexEstimate).
			Mul(capexCroreToRupees))
	}

	if len(terms) == 0 {
		return decimal.Zero
	}

	switch policy.CombinationRule {
	case models.CombinationRuleHighestSingle:
		max := terms[0]
		for _, t := range terms[1:] {
			if t.GreaterThan(max) {
				max = t
			}
		}
		return max
	default: // additive
		total := decimal.Zero
		for _, t := range terms {
			total = total.Add(t)
		}
		return total
	}
}
