package reports

import (
	"context"

	"github.com/aivisionaries/hydropay_backend/config"
	"github.com/shopspring/decimal"
)

type StatusCount struct {
	Status string `json:"Status"`
	Count  int    `json:"Count"`
}

type TechnologySummary struct {
	TechnologyType  string          `json:"TechnologyType"`
	Applications    int             `json:"Applications"`
	TotalSanctioned decimal.Decimal `json:"TotalSanctioned"`
	TotalDisbursed  decimal.Decimal `json:"TotalDisbursed"`
}

type DashboardResponse struct {
	StatusCounts    []*StatusCount       `json:"StatusCounts"`
	Technologies    []*TechnologySummary `json:"Technologies"`
	TotalSanctioned decimal.Decimal      `json:"TotalSanctioned"`
	TotalDisbursed  decimal.Decimal      `json:"TotalDisbursed"`
}

// GetDashboardReport aggregates the pipeline for the government overview:
// application counts per status plus sanctioned/disbursed totals by
// technology.
func GetDashboardReport(ctx context.Context) (*DashboardResponse, error) {
	db := config.GetDB()

	var counts []*StatusCount
	if err := db.WithContext(ctx).Raw(`
SELECT status, COUNT(*) AS count FROM applications GROUP BY status;
`).Scan(&counts).Error; err != nil {
		return nil, err
	}

	var techs []*TechnologySummary
	if err := db.WithContext(ctx).Raw(`
SELECT
    a.technology_type,
    COUNT(DISTINCT a.id) AS applications,
    COALESCE(SUM(DISTINCT a.sanctioned_amount), 0) AS total_sanctioned,
    COALESCE(tx.total_disbursed, 0) AS total_disbursed
FROM
    applications a
        LEFT JOIN
    (SELECT
        ap.technology_type, SUM(t.amount) AS total_disbursed
    FROM
        transactions t
    JOIN applications ap ON ap.id = t.application_id
    GROUP BY ap.technology_type) AS tx ON tx.technology_type = a.technology_type
GROUP BY a.technology_type, tx.total_disbursed;
`).Scan(&techs).Error; err != nil {
		return nil, err
	}

	resp := DashboardResponse{
		StatusCounts:    counts,
		Technologies:    techs,
		TotalSanctioned: decimal.Zero,
		TotalDisbursed:  decimal.Zero,
	}
	for _, t := range techs {
		resp.TotalSanctioned = resp.TotalSanctioned.Add(t.TotalSanctioned)
		resp.TotalDisbursed = resp.TotalDisbursed.Add(t.TotalDisbursed)
	}
	return &resp, nil
}
