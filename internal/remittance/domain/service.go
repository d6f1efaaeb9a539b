package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	taxledgerdomain "github.com/kudibooks/kudibooks/internal/taxledger/domain"
	"github.com/shopspring/decimal"
)

// ExportRow is one line of the PAYE remittance schedule handed to the
// external CSV formatter. Rows are at tax-ledger-record granularity;
// EmployeeRef carries the contributing payroll record ids.
type ExportRow struct {
	EmployeeRef string          `json:"employee_ref"`
	Period      string          `json:"period"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
}

// Service reports and settles monthly PAYE positions. It never
// computes tax: figures come from the tax ledger as recorded by the
// payroll pipeline.
type Service interface {
	GenerateMonthlyPAYE(ctx context.Context, companyID snowflake.ID, year int, month time.Month) (taxledgerdomain.PAYETotals, error)
	MarkRemitted(ctx context.Context, companyID snowflake.ID, periodToken, receiptNumber string, userID snowflake.ID) (int64, error)
	ExportRows(ctx context.Context, companyID snowflake.ID, periodToken string) ([]ExportRow, error)
}
