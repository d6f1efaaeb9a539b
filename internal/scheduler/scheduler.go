package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/kudibooks/kudibooks/internal/clock"
	expensedomain "github.com/kudibooks/kudibooks/internal/expense/domain"
	saledomain "github.com/kudibooks/kudibooks/internal/sale/domain"
	taxledgerdomain "github.com/kudibooks/kudibooks/internal/taxledger/domain"
	"github.com/kudibooks/kudibooks/pkg/period"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler_invalid_config")

// systemActor marks scheduler-originated writes in computed_by.
const systemActor snowflake.ID = 0

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	TaxLedgerSvc taxledgerdomain.Service
	Expenses     expensedomain.Repository
	Clock        clock.Clock
	Config       Config `optional:"true"`
}

// Scheduler sweeps the tax aggregates back into line with the source
// tables. Posting already refreshes them inline, but those hand-offs
// are non-fatal; the sweep re-runs the idempotent VAT recompute and
// retries expense accumulations whose claim was released, so a missed
// hand-off heals on the next pass.
type Scheduler struct {
	db           *gorm.DB
	log          *zap.Logger
	cfg          Config
	clock        clock.Clock
	taxLedgerSvc taxledgerdomain.Service
	expenses     expensedomain.Repository
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.TaxLedgerSvc == nil || p.Expenses == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:           p.DB,
		log:          p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:          p.Config.withDefaults(),
		clock:        p.Clock,
		taxLedgerSvc: p.TaxLedgerSvc,
		expenses:     p.Expenses,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	log := s.log.With(zap.String("job", name))
	err := fn(ctx)
	log.Info("job finished", zap.Duration("duration", time.Since(start)), zap.Bool("ok", err == nil))
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		log.Warn("job timed out", zap.Duration("timeout", timeout), zap.Error(err))
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{"vat_refresh", s.isJobEnabled("vat_refresh"), func(ctx context.Context) error {
			return s.runJob(ctx, "vat_refresh", 30*time.Second, s.RefreshCurrentMonthJob)
		}},
		{"vat_refresh_previous", s.isJobEnabled("vat_refresh_previous"), func(ctx context.Context) error {
			return s.runJob(ctx, "vat_refresh_previous", 30*time.Second, s.RefreshPreviousMonthJob)
		}},
		{"expense_tax_retry", s.isJobEnabled("expense_tax_retry"), func(ctx context.Context) error {
			return s.runJob(ctx, "expense_tax_retry", 30*time.Second, s.RetryExpenseTaxJob)
		}},
	}

	for _, job := range jobs {
		if job.Enabled {
			err = errors.Join(err, job.Run(parent))
		}
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// Empty EnabledJobs enables everything.
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// RefreshCurrentMonthJob recomputes the sales VAT aggregate for every
// company that sold anything this month.
func (s *Scheduler) RefreshCurrentMonthJob(ctx context.Context) error {
	now := s.clock.Now()
	return s.refreshPeriod(ctx, now.Year(), now.Month())
}

// RefreshPreviousMonthJob covers sales posted after their month rolled
// over, which the current-month sweep no longer sees.
func (s *Scheduler) RefreshPreviousMonthJob(ctx context.Context) error {
	prev := s.clock.Now().AddDate(0, -1, 0)
	return s.refreshPeriod(ctx, prev.Year(), prev.Month())
}

// RetryExpenseTaxJob re-attempts the tax-ledger hand-off for posted
// expenses whose claim was released after a failed accumulation. The
// claim-then-accumulate order mirrors the posting path, so a retry can
// never double-count.
func (s *Scheduler) RetryExpenseTaxJob(ctx context.Context) error {
	pending, err := s.expenses.ListTaxPending(ctx, s.cfg.BatchSize)
	if err != nil {
		return err
	}

	var jobErr error
	for i := range pending {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		expense := &pending[i]

		claimed, err := s.expenses.ClaimTaxRecorded(ctx, expense.CompanyID, expense.ID)
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			continue
		}
		if !claimed {
			continue
		}
		if err := s.taxLedgerSvc.ProcessExpenseTax(ctx, expense, systemActor); err != nil {
			jobErr = errors.Join(jobErr, err)
			if releaseErr := s.expenses.ReleaseTaxClaim(ctx, expense.CompanyID, expense.ID); releaseErr != nil {
				jobErr = errors.Join(jobErr, releaseErr)
			}
			s.log.Warn("expense tax retry failed",
				zap.String("company_id", expense.CompanyID.String()),
				zap.String("expense_id", expense.ID.String()),
				zap.Error(err))
		}
	}
	return jobErr
}

func (s *Scheduler) refreshPeriod(ctx context.Context, year int, month time.Month) error {
	p, err := period.Month(year, month)
	if err != nil {
		return err
	}
	start, end := p.Bounds()

	var companyIDs []snowflake.ID
	err = s.db.WithContext(ctx).
		Model(&saledomain.Sale{}).
		Distinct("company_id").
		Where("created_at >= ? AND created_at < ?", start, end).
		Limit(s.cfg.BatchSize).
		Pluck("company_id", &companyIDs).Error
	if err != nil {
		return err
	}

	var jobErr error
	for _, companyID := range companyIDs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := s.taxLedgerSvc.UpdateCompanyTaxFromSales(ctx, companyID, year, month, systemActor); err != nil {
			jobErr = errors.Join(jobErr, err)
			s.log.Warn("vat refresh failed",
				zap.String("company_id", companyID.String()),
				zap.String("period", p.String()),
				zap.Error(err))
		}
	}
	return jobErr
}
