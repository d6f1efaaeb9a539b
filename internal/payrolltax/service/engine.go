package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/kudibooks/kudibooks/internal/config"
	payrolldomain "github.com/kudibooks/kudibooks/internal/payrolltax/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Unit is the pay-period unit of a taxable income figure. The band
// schedule in the tax policy is annual; monthly inputs are annualized
// before banding and the result divided back by 12.
type Unit string

const (
	UnitMonthly Unit = "monthly"
	UnitAnnual  Unit = "annual"
)

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
	onePct  = decimal.NewFromInt(1)
)

// percentOf returns amount × ratePercent/100 rounded to 2 decimal places.
func percentOf(amount, ratePercent decimal.Decimal) decimal.Decimal {
	return amount.Mul(ratePercent).Div(hundred).Round(2)
}

// ComputeNHF returns the National Housing Fund deduction on gross.
func ComputeNHF(gross, ratePercent decimal.Decimal) decimal.Decimal {
	return percentOf(gross, ratePercent)
}

// ComputeNHISEmployee returns the employee NHIS contribution on gross.
func ComputeNHISEmployee(gross, ratePercent decimal.Decimal) decimal.Decimal {
	return percentOf(gross, ratePercent)
}

// ComputeNHISEmployer returns the employer NHIS contribution on gross.
func ComputeNHISEmployer(gross, ratePercent decimal.Decimal) decimal.Decimal {
	return percentOf(gross, ratePercent)
}

// ComputeCRA returns the monthly Consolidated Relief Allowance: the
// higher of reliefPercent of gross and 1% of gross plus one twelfth of
// the fixed annual relief.
func ComputeCRA(gross, reliefPercent, fixedAnnualRelief decimal.Decimal) decimal.Decimal {
	relief1 := percentOf(gross, reliefPercent)
	relief2 := percentOf(gross, onePct).Add(fixedAnnualRelief.Div(twelve).Round(2))
	if relief1.GreaterThanOrEqual(relief2) {
		return relief1
	}
	return relief2
}

// ComputePAYE applies the progressive marginal band schedule to taxable
// income. Each band consumes up to its limit from the remaining taxable
// amount at its own rate; the final band is unbounded. bands are the
// ANNUAL schedule; unit states what taxable is expressed in.
func ComputePAYE(taxable decimal.Decimal, unit Unit, bands []config.TaxBand) (decimal.Decimal, error) {
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}

	annual := taxable
	switch unit {
	case UnitMonthly:
		annual = taxable.Mul(twelve)
	case UnitAnnual:
	default:
		return decimal.Zero, payrolldomain.ErrInvalidUnit
	}

	tax := decimal.Zero
	remaining := annual
	for _, band := range bands {
		if remaining.IsZero() {
			break
		}
		portion := remaining
		if band.Limit > 0 {
			limit := decimal.NewFromInt(band.Limit)
			if portion.GreaterThan(limit) {
				portion = limit
			}
		}
		tax = tax.Add(portion.Mul(decimal.NewFromFloat(band.RatePercent)).Div(hundred))
		remaining = remaining.Sub(portion)
	}

	if unit == UnitMonthly {
		return tax.Div(twelve).Round(2), nil
	}
	return tax.Round(2), nil
}

type Params struct {
	fx.In

	Log    *zap.Logger
	Repo   payrolldomain.Repository
	Policy *config.TaxPolicyHolder
}

type Engine struct {
	log    *zap.Logger
	repo   payrolldomain.Repository
	policy *config.TaxPolicyHolder
}

func NewEngine(p Params) payrolldomain.Engine {
	return &Engine{
		log:    p.Log.Named("payrolltax.engine"),
		repo:   p.Repo,
		policy: p.Policy,
	}
}

// ComputeAllTaxes computes the monthly statutory deduction breakdown
// for one employee's gross salary under the company's settings profile.
// A missing profile is replaced by the lazily-created default, never an
// error.
func (e *Engine) ComputeAllTaxes(ctx context.Context, companyID snowflake.ID, gross, pension, otherDeductions decimal.Decimal) (payrolldomain.Breakdown, error) {
	if companyID == 0 {
		return payrolldomain.Breakdown{}, payrolldomain.ErrInvalidCompany
	}
	if gross.IsNegative() {
		return payrolldomain.Breakdown{}, payrolldomain.ErrInvalidGross
	}

	settings, err := e.repo.GetOrCreate(ctx, companyID)
	if err != nil {
		return payrolldomain.Breakdown{}, err
	}

	nhf := ComputeNHF(gross, settings.NHFRate)
	nhisEmployee := ComputeNHISEmployee(gross, settings.NHISEmployeeRate)
	nhisEmployer := ComputeNHISEmployer(gross, settings.NHISEmployerRate)
	cra := ComputeCRA(gross, settings.CRAReliefPercent, settings.FixedAnnualRelief)

	var taxable, paye decimal.Decimal
	switch settings.Mode {
	case payrolldomain.ModeCustomPercent:
		if settings.CustomPercent.IsZero() {
			return payrolldomain.Breakdown{}, payrolldomain.ErrMissingCustomRate
		}
		taxable = gross
		paye = percentOf(gross, settings.CustomPercent)
	case payrolldomain.ModeStandardPAYE:
		taxable = gross.Sub(nhf).Sub(nhisEmployee).Sub(cra)
		if taxable.IsNegative() {
			taxable = decimal.Zero
		}
		paye, err = ComputePAYE(taxable, UnitMonthly, e.policy.Get().PAYEBands)
		if err != nil {
			return payrolldomain.Breakdown{}, err
		}
	default:
		return payrolldomain.Breakdown{}, payrolldomain.ErrInvalidTaxMode
	}

	netPay := gross.Sub(nhf).Sub(nhisEmployee).Sub(paye).Sub(pension).Sub(otherDeductions)

	return payrolldomain.Breakdown{
		Gross:           gross,
		NHF:             nhf,
		NHISEmployee:    nhisEmployee,
		NHISEmployer:    nhisEmployer,
		CRA:             cra,
		TaxableIncome:   taxable,
		PAYE:            paye,
		Pension:         pension,
		OtherDeductions: otherDeductions,
		NetPay:          netPay,
	}, nil
}
