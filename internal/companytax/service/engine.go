package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	companytaxdomain "github.com/kudibooks/kudibooks/internal/companytax/domain"
	"github.com/kudibooks/kudibooks/internal/config"
	expensedomain "github.com/kudibooks/kudibooks/internal/expense/domain"
	saledomain "github.com/kudibooks/kudibooks/internal/sale/domain"
	"github.com/kudibooks/kudibooks/pkg/period"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

type Params struct {
	fx.In

	Log      *zap.Logger
	Sales    saledomain.Repository
	Expenses expensedomain.Repository
	Policy   *config.TaxPolicyHolder
}

type Engine struct {
	log      *zap.Logger
	sales    saledomain.Repository
	expenses expensedomain.Repository
	policy   *config.TaxPolicyHolder
}

func NewEngine(p Params) companytaxdomain.Engine {
	return &Engine{
		log:      p.Log.Named("companytax.engine"),
		sales:    p.Sales,
		expenses: p.Expenses,
		policy:   p.Policy,
	}
}

// VATFromSales sums the stored vat_amount and subtotal over every sale
// created in the calendar month.
func (e *Engine) VATFromSales(ctx context.Context, companyID snowflake.ID, year int, month time.Month) (companytaxdomain.VATSummary, error) {
	if companyID == 0 {
		return companytaxdomain.VATSummary{}, companytaxdomain.ErrInvalidCompany
	}
	p, err := period.Month(year, month)
	if err != nil {
		return companytaxdomain.VATSummary{}, companytaxdomain.ErrInvalidPeriod
	}

	totals, err := e.sales.TotalsForPeriod(ctx, companyID, p)
	if err != nil {
		return companytaxdomain.VATSummary{}, err
	}

	return companytaxdomain.VATSummary{
		Period:       p.String(),
		VATFromSales: totals.VATAmount,
		VatableSales: totals.Subtotal,
		RatePercent:  e.policy.Get().VATRatePercent,
		SaleIDs:      totals.SaleIDs,
	}, nil
}

// CalculateCIT computes period profit and the CIT due on it. A zero
// citRate falls back to the standard 30% with a prominent warning, so
// a missing setting degrades loudly instead of failing.
func (e *Engine) CalculateCIT(ctx context.Context, companyID snowflake.ID, year int, month time.Month, citRate decimal.Decimal) (companytaxdomain.CITSummary, error) {
	if companyID == 0 {
		return companytaxdomain.CITSummary{}, companytaxdomain.ErrInvalidCompany
	}
	p, err := period.Month(year, month)
	if err != nil {
		return companytaxdomain.CITSummary{}, companytaxdomain.ErrInvalidPeriod
	}

	if citRate.IsZero() {
		citRate = decimal.NewFromFloat(0.30)
		e.log.Warn("cit rate not configured, applying standard 30%",
			zap.String("company_id", companyID.String()),
			zap.String("period", p.String()),
		)
	}

	sales, err := e.sales.TotalsForPeriod(ctx, companyID, p)
	if err != nil {
		return companytaxdomain.CITSummary{}, err
	}
	expenses, err := e.expenses.SumApprovedAllowable(ctx, companyID, p)
	if err != nil {
		return companytaxdomain.CITSummary{}, err
	}

	netProfit := sales.TotalAmount.Sub(expenses)
	citDue := decimal.Zero
	if netProfit.IsPositive() {
		citDue = netProfit.Mul(citRate).Round(2)
	}

	return companytaxdomain.CITSummary{
		Period:        p.String(),
		TotalIncome:   sales.TotalAmount,
		TotalExpenses: expenses,
		NetProfit:     netProfit,
		CITDue:        citDue,
	}, nil
}

// ComputeCITAndTET applies the turnover-banded CIT rate and the flat
// TET rate to an assessable profit. TET is never turnover-banded.
func (e *Engine) ComputeCITAndTET(assessableProfit, turnover decimal.Decimal) companytaxdomain.CITTETResult {
	policy := e.policy.Get()

	ratePercent := policy.CITTurnoverBands[len(policy.CITTurnoverBands)-1].RatePercent
	for _, band := range policy.CITTurnoverBands {
		if band.UpTo == 0 {
			ratePercent = band.RatePercent
			break
		}
		if turnover.LessThanOrEqual(decimal.NewFromInt(band.UpTo)) {
			ratePercent = band.RatePercent
			break
		}
	}

	profit := assessableProfit
	if profit.IsNegative() {
		profit = decimal.Zero
	}

	cit := profit.Mul(decimal.NewFromFloat(ratePercent)).Div(hundred).Round(2)
	tet := profit.Mul(decimal.NewFromFloat(policy.TETRatePercent)).Div(hundred).Round(2)

	return companytaxdomain.CITTETResult{
		CIT:            cit,
		TET:            tet,
		CITRatePercent: ratePercent,
	}
}

// CalculateProfit floors assessable profit at zero. A loss never
// reduces a future period's liability in this model.
func (e *Engine) CalculateProfit(revenue, allowableExpenses, nonAllowableExpenses decimal.Decimal) decimal.Decimal {
	profit := revenue.Sub(allowableExpenses).Sub(nonAllowableExpenses)
	if profit.IsNegative() {
		return decimal.Zero
	}
	return profit
}
