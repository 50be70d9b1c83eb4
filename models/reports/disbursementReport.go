package reports

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aivisionaries/hydropay_backend/config"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

type DisbursementRow struct {
	TransactionID   int             `json:"TransactionId"`
	ReferenceNumber string          `json:"ReferenceNumber"`
	ApplicationID   int             `json:"ApplicationId"`
	ProjectName     string          `json:"ProjectName"`
	TechnologyType  string          `json:"TechnologyType"`
	ProducerName    string          `json:"ProducerName"`
	BankName        string          `json:"BankName"`
	Type            string          `json:"Type"`
	Amount          decimal.Decimal `json:"Amount"`
	DisbursedAt     time.Time       `json:"DisbursedAt"`
}

// GetDisbursementReport lists every disbursement in the window, joined with
// project and actor names.
func GetDisbursementReport(ctx context.Context, fromDate, toDate time.Time) ([]*DisbursementRow, error) {
	sql := `
SELECT
    t.id AS transaction_id,
    t.reference_number,
    t.application_id,
    a.project_name,
    a.technology_type,
    producers.name AS producer_name,
    banks.name AS bank_name,
    t.type,
    t.amount,
    t.created_at AS disbursed_at
FROM
    transactions t
        LEFT JOIN applications a ON a.id = t.application_id
        LEFT JOIN users producers ON producers.id = a.producer_id
        LEFT JOIN users banks ON banks.id = t.bank_id
WHERE
    t.created_at BETWEEN @fromDate AND @toDate
ORDER BY t.id ASC;
`
	var records []*DisbursementRow
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql, map[string]interface{}{
		"fromDate": fromDate,
		"toDate":   toDate,
	}).Scan(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r DisbursementRow) GetCellValues() []interface{} {
	return []interface{}{
		r.ReferenceNumber,
		r.ApplicationID,
		r.ProjectName,
		r.TechnologyType,
		r.ProducerName,
		r.BankName,
		r.Type,
		r.Amount.StringFixed(2),
		r.DisbursedAt.Format("2006-01-02 15:04:05"),
	}
}

var disbursementHeadings = []string{
	"Reference", "Application", "Project", "Technology", "Producer", "Bank", "Type", "Amount", "Disbursed At",
}

// WriteDisbursementXlsx streams the report as an xlsx workbook.
func WriteDisbursementXlsx(w io.Writer, data []*DisbursementRow) error {
	f := excelize.NewFile()
	sheetName := "Sheet1"
	if _, err := f.NewSheet(sheetName); err != nil {
		return err
	}

	col := 'A'
	for _, h := range disbursementHeadings {
		f.SetCellValue(sheetName, string(col)+"1", h)
		col++
	}

	rowNo := 2
	for _, d := range data {
		col := 'A'
		for _, value := range d.GetCellValues() {
			f.SetCellValue(sheetName, string(col)+fmt.Sprint(rowNo), value)
			col++
		}
		rowNo++
	}

	return f.Write(w)
}
