package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/kudibooks/kudibooks/internal/audit/domain"
	companytaxdomain "github.com/kudibooks/kudibooks/internal/companytax/domain"
	"github.com/kudibooks/kudibooks/internal/config"
	expensedomain "github.com/kudibooks/kudibooks/internal/expense/domain"
	obsmetrics "github.com/kudibooks/kudibooks/internal/observability/metrics"
	taxledgerdomain "github.com/kudibooks/kudibooks/internal/taxledger/domain"
	"github.com/kudibooks/kudibooks/pkg/period"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Repo       taxledgerdomain.Repository
	CompanyTax companytaxdomain.Engine
	Policy     *config.TaxPolicyHolder
	AuditSvc   auditdomain.Service
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	repo       taxledgerdomain.Repository
	companyTax companytaxdomain.Engine
	policy     *config.TaxPolicyHolder
	auditSvc   auditdomain.Service
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) taxledgerdomain.Service {
	return &Service{
		log:        p.Log.Named("taxledger.service"),
		repo:       p.Repo,
		companyTax: p.CompanyTax,
		policy:     p.Policy,
		auditSvc:   p.AuditSvc,
		obsMetrics: p.ObsMetrics,
	}
}

// UpdateCompanyTaxFromSales rebuilds the (company, VAT, period, Sale)
// aggregate by re-summing every sale in the period, then replaces the
// stored record. Recomputing from source is what makes re-runs
// idempotent: two consecutive calls with no new sales produce identical
// records.
func (s *Service) UpdateCompanyTaxFromSales(ctx context.Context, companyID snowflake.ID, year int, month time.Month, userID snowflake.ID) (*taxledgerdomain.TaxLedgerRecord, error) {
	if companyID == 0 {
		return nil, taxledgerdomain.ErrInvalidCompanyReference
	}

	summary, err := s.companyTax.VATFromSales(ctx, companyID, year, month)
	if err != nil {
		return nil, err
	}

	refs := make([]string, 0, len(summary.SaleIDs))
	for _, id := range summary.SaleIDs {
		refs = append(refs, id.String())
	}

	rate := decimal.Zero
	if summary.VatableSales.IsPositive() {
		rate = summary.VATFromSales.Div(summary.VatableSales).Round(6)
	}

	rec := &taxledgerdomain.TaxLedgerRecord{
		CompanyID:     companyID,
		TaxType:       taxledgerdomain.TaxTypeVAT,
		Period:        summary.Period,
		Source:        taxledgerdomain.SourceSale,
		BasisAmount:   summary.VatableSales,
		Rate:          rate,
		TaxAmount:     summary.VATFromSales,
		SourceRefs:    refs,
		ComputedBy:    userID,
		ComputedAt:    time.Now().UTC(),
		TaxLawVersion: s.policy.Get().TaxLawVersion,
	}

	if err := s.repo.Replace(ctx, rec); err != nil {
		return nil, err
	}

	s.audit(ctx, companyID, userID, "tax_ledger.vat_recomputed", rec.ID, map[string]any{
		"period":       rec.Period,
		"basis_amount": rec.BasisAmount.String(),
		"tax_amount":   rec.TaxAmount.String(),
		"sales":        len(refs),
	})
	if s.obsMetrics != nil {
		s.obsMetrics.RecordTaxUpsert(ctx, string(taxledgerdomain.TaxTypeVAT))
	}
	return rec, nil
}

// ProcessExpenseTax accumulates one approved expense into the VAT and
// WHT aggregates its tax flags select. Unlike the sales path this adds
// to the stored totals, so the caller must invoke it exactly once per
// expense-approval transition; the posting pipeline gates it on the
// unposted->posted edge.
func (s *Service) ProcessExpenseTax(ctx context.Context, expense *expensedomain.Expense, userID snowflake.ID) error {
	if expense == nil || expense.CompanyID == 0 {
		return taxledgerdomain.ErrInvalidCompanyReference
	}

	p, err := period.Month(expense.DateOfExpense.Year(), expense.DateOfExpense.Month())
	if err != nil {
		return taxledgerdomain.ErrInvalidPeriod
	}

	audit := taxledgerdomain.Audit{
		ComputedBy:    userID,
		TaxLawVersion: s.policy.Get().TaxLawVersion,
	}

	if expense.VATClaimable && expense.VATAmount.IsPositive() {
		if err := s.accumulate(ctx, taxledgerdomain.Accumulation{
			Key: taxledgerdomain.Key{
				CompanyID: expense.CompanyID,
				TaxType:   taxledgerdomain.TaxTypeVAT,
				Period:    p.String(),
				Source:    taxledgerdomain.SourceExpense,
			},
			BasisDelta: expense.Amount,
			TaxDelta:   expense.VATAmount,
			Ref:        expense.ID,
			Audit:      audit,
		}); err != nil {
			return err
		}
	}

	if expense.WHTApplicable && expense.WHTAmount.IsPositive() {
		if err := s.accumulate(ctx, taxledgerdomain.Accumulation{
			Key: taxledgerdomain.Key{
				CompanyID: expense.CompanyID,
				TaxType:   taxledgerdomain.TaxTypeWHT,
				Period:    p.String(),
				Source:    taxledgerdomain.SourceExpense,
			},
			BasisDelta: expense.Amount,
			TaxDelta:   expense.WHTAmount,
			Ref:        expense.ID,
			Audit:      audit,
		}); err != nil {
			return err
		}
	}

	return nil
}

func (s *Service) accumulate(ctx context.Context, acc taxledgerdomain.Accumulation) error {
	if err := s.repo.Accumulate(ctx, acc); err != nil {
		return err
	}
	s.audit(ctx, acc.CompanyID, acc.Audit.ComputedBy, "tax_ledger.expense_accumulated", acc.Ref, map[string]any{
		"tax_type":    string(acc.TaxType),
		"period":      acc.Period,
		"basis_delta": acc.BasisDelta.String(),
		"tax_delta":   acc.TaxDelta.String(),
	})
	if s.obsMetrics != nil {
		s.obsMetrics.RecordTaxUpsert(ctx, string(acc.TaxType))
	}
	return nil
}

// RecordPayrollTaxes replaces the payroll-sourced aggregates for the
// period from a payroll run's summed breakdown. Payroll runs are
// generated whole per period, so replace semantics keep re-generation
// idempotent.
func (s *Service) RecordPayrollTaxes(ctx context.Context, companyID snowflake.ID, periodToken string, totals taxledgerdomain.PayrollRunTotals, userID snowflake.ID) error {
	if companyID == 0 {
		return taxledgerdomain.ErrInvalidCompanyReference
	}
	if _, err := period.Parse(periodToken); err != nil {
		return taxledgerdomain.ErrInvalidPeriod
	}

	refs := make([]string, 0, len(totals.PayrollRefs))
	for _, id := range totals.PayrollRefs {
		refs = append(refs, id.String())
	}

	now := time.Now().UTC()
	version := s.policy.Get().TaxLawVersion
	breakdown := totals.GrossTotal

	records := []*taxledgerdomain.TaxLedgerRecord{
		{TaxType: taxledgerdomain.TaxTypePAYE, BasisAmount: breakdown.TaxableIncome, TaxAmount: breakdown.PAYE},
		{TaxType: taxledgerdomain.TaxTypeNHF, BasisAmount: breakdown.Gross, TaxAmount: breakdown.NHF},
		{TaxType: taxledgerdomain.TaxTypeNHIS, BasisAmount: breakdown.Gross, TaxAmount: breakdown.NHISEmployee},
		{TaxType: taxledgerdomain.TaxTypeNHISEmployer, BasisAmount: breakdown.Gross, TaxAmount: breakdown.NHISEmployer},
	}

	for _, rec := range records {
		rec.CompanyID = companyID
		rec.Period = periodToken
		rec.Source = taxledgerdomain.SourcePayroll
		rec.SourceRefs = refs
		rec.ComputedBy = userID
		rec.ComputedAt = now
		rec.TaxLawVersion = version
		if rec.BasisAmount.IsPositive() {
			rec.Rate = rec.TaxAmount.Div(rec.BasisAmount).Round(6)
		}

		if err := s.repo.Replace(ctx, rec); err != nil {
			return err
		}
		if s.obsMetrics != nil {
			s.obsMetrics.RecordTaxUpsert(ctx, string(rec.TaxType))
		}
	}

	s.audit(ctx, companyID, userID, "tax_ledger.payroll_recorded", 0, map[string]any{
		"period":     periodToken,
		"total_paye": breakdown.PAYE.String(),
		"entries":    len(refs),
	})
	return nil
}

func (s *Service) GetCompanyTaxLedger(ctx context.Context, companyID snowflake.ID, filter taxledgerdomain.Filter) ([]taxledgerdomain.TaxLedgerRecord, error) {
	return s.repo.List(ctx, companyID, filter)
}

func (s *Service) audit(ctx context.Context, companyID, userID snowflake.ID, action string, targetID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	var target *string
	if targetID != 0 {
		v := targetID.String()
		target = &v
	}
	if err := s.auditSvc.AuditLog(ctx, companyID, userID, action, "tax_ledger_record", target, metadata); err != nil {
		s.log.Warn("failed to write tax ledger audit log", zap.Error(err))
	}
}
