package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/kudibooks/kudibooks/internal/clock"
	companytaxservice "github.com/kudibooks/kudibooks/internal/companytax/service"
	"github.com/kudibooks/kudibooks/internal/config"
	expensedomain "github.com/kudibooks/kudibooks/internal/expense/domain"
	expenserepo "github.com/kudibooks/kudibooks/internal/expense/repository"
	saledomain "github.com/kudibooks/kudibooks/internal/sale/domain"
	salerepo "github.com/kudibooks/kudibooks/internal/sale/repository"
	taxledgerdomain "github.com/kudibooks/kudibooks/internal/taxledger/domain"
	taxledgerrepo "github.com/kudibooks/kudibooks/internal/taxledger/repository"
	taxledgerservice "github.com/kudibooks/kudibooks/internal/taxledger/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestScheduler(t *testing.T, fake *clock.FakeClock) (*Scheduler, *gorm.DB, taxledgerdomain.Service) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&saledomain.Sale{},
		&expensedomain.Expense{},
		&taxledgerdomain.TaxLedgerRecord{},
		&taxledgerdomain.TaxLedgerSourceRef{},
	))

	node, err := snowflake.NewNode(6)
	require.NoError(t, err)

	policy := config.StaticTaxPolicyHolder(config.DefaultTaxPolicy())
	taxLedgerSvc := taxledgerservice.NewService(taxledgerservice.Params{
		Log:  zap.NewNop(),
		Repo: taxledgerrepo.NewRepository(taxledgerrepo.Params{DB: db, Log: zap.NewNop(), GenID: node}),
		CompanyTax: companytaxservice.NewEngine(companytaxservice.Params{
			Log:      zap.NewNop(),
			Sales:    salerepo.NewRepository(db),
			Expenses: expenserepo.NewRepository(db),
			Policy:   policy,
		}),
		Policy: policy,
	})

	sched, err := New(Params{
		DB:           db,
		Log:          zap.NewNop(),
		TaxLedgerSvc: taxLedgerSvc,
		Expenses:     expenserepo.NewRepository(db),
		Clock:        fake,
	})
	require.NoError(t, err)
	return sched, db, taxLedgerSvc
}

func seedSale(t *testing.T, db *gorm.DB, id, company int64, subtotal, vat string, createdAt time.Time) {
	t.Helper()
	require.NoError(t, db.Create(&saledomain.Sale{
		ID:          snowflake.ID(id),
		CompanyID:   snowflake.ID(company),
		Items:       []saledomain.SaleItem{},
		Subtotal:    d(subtotal),
		VATAmount:   d(vat),
		TotalAmount: d(subtotal).Add(d(vat)),
		CreatedBy:   1,
		CreatedAt:   createdAt,
	}).Error)
}

func TestRunOnce_RefreshesCurrentAndPreviousMonth(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2025, time.June, 3, 9, 0, 0, 0, time.UTC))
	sched, db, taxLedgerSvc := newTestScheduler(t, fake)
	ctx := context.Background()

	seedSale(t, db, 1, 30, "100000", "7500", time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC))
	// Late entry for a month that already rolled over.
	seedSale(t, db, 2, 31, "40000", "3000", time.Date(2025, time.May, 28, 0, 0, 0, 0, time.UTC))

	require.NoError(t, sched.RunOnce(ctx))

	june, err := taxLedgerSvc.GetCompanyTaxLedger(ctx, 30, taxledgerdomain.Filter{Period: "2025-06"})
	require.NoError(t, err)
	require.Len(t, june, 1)
	assert.True(t, june[0].TaxAmount.Equal(d("7500")))

	may, err := taxLedgerSvc.GetCompanyTaxLedger(ctx, 31, taxledgerdomain.Filter{Period: "2025-05"})
	require.NoError(t, err)
	require.Len(t, may, 1)
	assert.True(t, may[0].TaxAmount.Equal(d("3000")))
}

func TestRunOnce_IsIdempotent(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2025, time.June, 3, 9, 0, 0, 0, time.UTC))
	sched, db, taxLedgerSvc := newTestScheduler(t, fake)
	ctx := context.Background()

	seedSale(t, db, 3, 32, "100000", "7500", time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC))

	require.NoError(t, sched.RunOnce(ctx))
	require.NoError(t, sched.RunOnce(ctx))

	records, err := taxLedgerSvc.GetCompanyTaxLedger(ctx, 32, taxledgerdomain.Filter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].TaxAmount.Equal(d("7500")))
}

func TestRunOnce_MonthRollover(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2025, time.June, 30, 23, 0, 0, 0, time.UTC))
	sched, db, taxLedgerSvc := newTestScheduler(t, fake)
	ctx := context.Background()

	seedSale(t, db, 4, 33, "50000", "3750", time.Date(2025, time.June, 30, 22, 0, 0, 0, time.UTC))
	require.NoError(t, sched.RunOnce(ctx))

	// After the month turns, the previous-month sweep still covers June.
	fake.Advance(2 * time.Hour)
	seedSale(t, db, 5, 33, "10000", "750", time.Date(2025, time.June, 30, 23, 30, 0, 0, time.UTC))
	require.NoError(t, sched.RunOnce(ctx))

	june, err := taxLedgerSvc.GetCompanyTaxLedger(ctx, 33, taxledgerdomain.Filter{Period: "2025-06"})
	require.NoError(t, err)
	require.Len(t, june, 1)
	assert.True(t, june[0].TaxAmount.Equal(d("4500")))
}

func TestJobFiltering(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2025, time.June, 3, 9, 0, 0, 0, time.UTC))
	sched, db, taxLedgerSvc := newTestScheduler(t, fake)
	sched.cfg.EnabledJobs = []string{"vat_refresh"}
	ctx := context.Background()

	seedSale(t, db, 6, 34, "40000", "3000", time.Date(2025, time.May, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, sched.RunOnce(ctx))

	may, err := taxLedgerSvc.GetCompanyTaxLedger(ctx, 34, taxledgerdomain.Filter{Period: "2025-05"})
	require.NoError(t, err)
	assert.Empty(t, may, "previous-month sweep is disabled")
}

func seedPostedExpense(t *testing.T, db *gorm.DB, id, company int64, amount, vat string, recorded bool) {
	t.Helper()
	require.NoError(t, db.Create(&expensedomain.Expense{
		ID:            snowflake.ID(id),
		CompanyID:     snowflake.ID(company),
		Amount:        d(amount),
		DateOfExpense: time.Date(2025, time.June, 5, 0, 0, 0, 0, time.UTC),
		Status:        expensedomain.StatusApproved,
		Type:          expensedomain.TypeExpense,
		VATClaimable:  true,
		VATAmount:     d(vat),
		WHTAmount:     decimal.Zero,
		WHTRate:       decimal.Zero,
		Posted:        true,
		TaxRecorded:   recorded,
		EnteredBy:     1,
	}).Error)
}

func TestRetryExpenseTaxJob_AccumulatesReleasedClaims(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2025, time.June, 10, 9, 0, 0, 0, time.UTC))
	sched, db, taxLedgerSvc := newTestScheduler(t, fake)
	ctx := context.Background()

	// Posted but never handed off, as after a released claim.
	seedPostedExpense(t, db, 10, 40, "20000", "1500", false)

	require.NoError(t, sched.RetryExpenseTaxJob(ctx))

	records, err := taxLedgerSvc.GetCompanyTaxLedger(ctx, 40, taxledgerdomain.Filter{TaxType: taxledgerdomain.TaxTypeVAT})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].TaxAmount.Equal(d("1500")))
	assert.Equal(t, taxledgerdomain.SourceExpense, records[0].Source)

	var stored expensedomain.Expense
	require.NoError(t, db.First(&stored, "id = ?", 10).Error)
	assert.True(t, stored.TaxRecorded)
}

func TestRetryExpenseTaxJob_SkipsAlreadyRecorded(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2025, time.June, 10, 9, 0, 0, 0, time.UTC))
	sched, db, taxLedgerSvc := newTestScheduler(t, fake)
	ctx := context.Background()

	seedPostedExpense(t, db, 11, 41, "20000", "1500", false)
	require.NoError(t, sched.RetryExpenseTaxJob(ctx))

	// A second sweep finds nothing pending; totals stay put.
	require.NoError(t, sched.RetryExpenseTaxJob(ctx))

	records, err := taxLedgerSvc.GetCompanyTaxLedger(ctx, 41, taxledgerdomain.Filter{TaxType: taxledgerdomain.TaxTypeVAT})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].TaxAmount.Equal(d("1500")))
	assert.True(t, records[0].BasisAmount.Equal(d("20000")))
}
