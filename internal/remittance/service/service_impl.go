package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/kudibooks/kudibooks/internal/audit/domain"
	obsmetrics "github.com/kudibooks/kudibooks/internal/observability/metrics"
	remittancedomain "github.com/kudibooks/kudibooks/internal/remittance/domain"
	taxledgerdomain "github.com/kudibooks/kudibooks/internal/taxledger/domain"
	"github.com/kudibooks/kudibooks/pkg/period"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Repo       taxledgerdomain.Repository
	AuditSvc   auditdomain.Service
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	repo       taxledgerdomain.Repository
	auditSvc   auditdomain.Service
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) remittancedomain.Service {
	return &Service{
		log:        p.Log.Named("remittance.service"),
		repo:       p.Repo,
		auditSvc:   p.AuditSvc,
		obsMetrics: p.ObsMetrics,
	}
}

// GenerateMonthlyPAYE sums the un-remitted PAYE position for one month.
func (s *Service) GenerateMonthlyPAYE(ctx context.Context, companyID snowflake.ID, year int, month time.Month) (taxledgerdomain.PAYETotals, error) {
	if companyID == 0 {
		return taxledgerdomain.PAYETotals{}, taxledgerdomain.ErrInvalidCompanyReference
	}
	p, err := period.Month(year, month)
	if err != nil {
		return taxledgerdomain.PAYETotals{}, taxledgerdomain.ErrInvalidPeriod
	}
	return s.repo.UnremittedPAYE(ctx, companyID, p.String())
}

// MarkRemitted settles the period's PAYE records against a receipt.
// A period with nothing outstanding settles zero records and still
// succeeds, so re-running a confirmation is harmless.
func (s *Service) MarkRemitted(ctx context.Context, companyID snowflake.ID, periodToken, receiptNumber string, userID snowflake.ID) (int64, error) {
	if companyID == 0 {
		return 0, taxledgerdomain.ErrInvalidCompanyReference
	}
	if _, err := period.Parse(periodToken); err != nil {
		return 0, taxledgerdomain.ErrInvalidPeriod
	}

	rows, err := s.repo.MarkAsRemitted(ctx, companyID, periodToken, receiptNumber)
	if err != nil {
		return 0, err
	}

	if s.auditSvc != nil {
		if err := s.auditSvc.AuditLog(ctx, companyID, userID, "remittance.paye_marked", "tax_ledger_record", nil, map[string]any{
			"period":         periodToken,
			"receipt_number": receiptNumber,
			"records":        rows,
		}); err != nil {
			s.log.Warn("failed to write remittance audit log", zap.Error(err))
		}
	}
	if rows > 0 && s.obsMetrics != nil {
		s.obsMetrics.RecordRemittanceMarked(ctx, string(taxledgerdomain.TaxTypePAYE))
	}
	return rows, nil
}

// ExportRows flattens the period's PAYE records into schedule rows for
// the CSV formatter. The ledger stores per-run aggregates, so each row
// covers one record and lists the contributing payroll refs.
func (s *Service) ExportRows(ctx context.Context, companyID snowflake.ID, periodToken string) ([]remittancedomain.ExportRow, error) {
	if companyID == 0 {
		return nil, taxledgerdomain.ErrInvalidCompanyReference
	}
	if _, err := period.Parse(periodToken); err != nil {
		return nil, taxledgerdomain.ErrInvalidPeriod
	}

	records, err := s.repo.List(ctx, companyID, taxledgerdomain.Filter{
		TaxType: taxledgerdomain.TaxTypePAYE,
		Period:  periodToken,
	})
	if err != nil {
		return nil, err
	}

	rows := make([]remittancedomain.ExportRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, remittancedomain.ExportRow{
			EmployeeRef: strings.Join(rec.SourceRefs, ";"),
			Period:      rec.Period,
			TaxAmount:   rec.TaxAmount,
		})
	}
	return rows, nil
}
