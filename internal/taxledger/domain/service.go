package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	expensedomain "github.com/kudibooks/kudibooks/internal/expense/domain"
	payrolldomain "github.com/kudibooks/kudibooks/internal/payrolltax/domain"
)

// Service is the upsert pipeline over the tax ledger store.
//
// The two write paths carry deliberately different semantics:
// UpdateCompanyTaxFromSales recomputes the full-period aggregate from
// source and replaces the record, so re-running it is idempotent.
// ProcessExpenseTax incrementally accumulates one expense into the
// aggregate and therefore must be invoked at most once per
// expense-approval transition; re-processing double-counts.
type Service interface {
	UpdateCompanyTaxFromSales(ctx context.Context, companyID snowflake.ID, year int, month time.Month, userID snowflake.ID) (*TaxLedgerRecord, error)
	ProcessExpenseTax(ctx context.Context, expense *expensedomain.Expense, userID snowflake.ID) error
	RecordPayrollTaxes(ctx context.Context, companyID snowflake.ID, periodToken string, totals PayrollRunTotals, userID snowflake.ID) error
	GetCompanyTaxLedger(ctx context.Context, companyID snowflake.ID, filter Filter) ([]TaxLedgerRecord, error)
}

// PayrollRunTotals is the summed breakdown of one payroll run, with the
// ids of the contributing payroll records.
type PayrollRunTotals struct {
	GrossTotal  payrolldomain.Breakdown
	PayrollRefs []snowflake.ID
}
