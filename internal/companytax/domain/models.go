package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidCompany = errors.New("invalid_company")
	ErrInvalidPeriod  = errors.New("invalid_period")
)

// VATSummary aggregates stored VAT figures over one calendar month.
// The engine sums what the sale records carry; it never re-derives VAT.
type VATSummary struct {
	Period       string          `json:"period"`
	VATFromSales decimal.Decimal `json:"vat_from_sales"`
	VatableSales decimal.Decimal `json:"vatable_sales"`
	// RatePercent is informational for reporting.
	RatePercent float64        `json:"rate_percent"`
	SaleIDs     []snowflake.ID `json:"-"`
}

// CITSummary is the period profit computation with CIT due.
type CITSummary struct {
	Period        string          `json:"period"`
	TotalIncome   decimal.Decimal `json:"total_income"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	NetProfit     decimal.Decimal `json:"net_profit"`
	CITDue        decimal.Decimal `json:"cit_due"`
}

// CITTETResult carries the turnover-banded CIT and the flat TET.
type CITTETResult struct {
	CIT            decimal.Decimal `json:"cit"`
	TET            decimal.Decimal `json:"tet"`
	CITRatePercent float64         `json:"cit_rate_percent"`
}

// Engine computes company-level tax obligations. Every operation is a
// pure query+compute; persisting results is the caller's decision.
type Engine interface {
	VATFromSales(ctx context.Context, companyID snowflake.ID, year int, month time.Month) (VATSummary, error)
	CalculateCIT(ctx context.Context, companyID snowflake.ID, year int, month time.Month, citRate decimal.Decimal) (CITSummary, error)
	ComputeCITAndTET(assessableProfit, turnover decimal.Decimal) CITTETResult
	CalculateProfit(revenue, allowableExpenses, nonAllowableExpenses decimal.Decimal) decimal.Decimal
}
