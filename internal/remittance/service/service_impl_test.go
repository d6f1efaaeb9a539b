package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	remittancedomain "github.com/kudibooks/kudibooks/internal/remittance/domain"
	taxledgerdomain "github.com/kudibooks/kudibooks/internal/taxledger/domain"
	taxledgerrepo "github.com/kudibooks/kudibooks/internal/taxledger/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestService(t *testing.T) (remittancedomain.Service, taxledgerdomain.Repository) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&taxledgerdomain.TaxLedgerRecord{},
		&taxledgerdomain.TaxLedgerSourceRef{},
	))

	node, err := snowflake.NewNode(5)
	require.NoError(t, err)

	repo := taxledgerrepo.NewRepository(taxledgerrepo.Params{DB: db, Log: zap.NewNop(), GenID: node})
	svc := NewService(Params{Log: zap.NewNop(), Repo: repo})
	return svc, repo
}

func seedPAYE(t *testing.T, repo taxledgerdomain.Repository, company int64, periodToken, basis, tax string, refs []string) {
	t.Helper()
	require.NoError(t, repo.Replace(context.Background(), &taxledgerdomain.TaxLedgerRecord{
		CompanyID:   snowflake.ID(company),
		TaxType:     taxledgerdomain.TaxTypePAYE,
		Period:      periodToken,
		Source:      taxledgerdomain.SourcePayroll,
		BasisAmount: d(basis),
		Rate:        d("0.10"),
		TaxAmount:   d(tax),
		SourceRefs:  refs,
		ComputedBy:  1,
		ComputedAt:  time.Now().UTC(),
	}))
}

func TestGenerateMonthlyPAYE(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	seedPAYE(t, repo, 20, "2025-05", "900000", "90000", []string{"500", "501", "502"})

	totals, err := svc.GenerateMonthlyPAYE(ctx, 20, 2025, time.May)
	require.NoError(t, err)
	assert.True(t, totals.TotalPAYE.Equal(d("90000")))
	assert.Equal(t, 3, totals.EntryCount)

	// Other months stay empty.
	totals, err = svc.GenerateMonthlyPAYE(ctx, 20, 2025, time.June)
	require.NoError(t, err)
	assert.True(t, totals.TotalPAYE.IsZero())
}

func TestMarkRemitted_SettlesAndIsRerunSafe(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	seedPAYE(t, repo, 21, "2025-05", "500000", "52500", []string{"510"})

	rows, err := svc.MarkRemitted(ctx, 21, "2025-05", "FIRS-0001", 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	totals, err := svc.GenerateMonthlyPAYE(ctx, 21, 2025, time.May)
	require.NoError(t, err)
	assert.True(t, totals.TotalPAYE.IsZero(), "remitted records leave the outstanding position")

	rows, err = svc.MarkRemitted(ctx, 21, "2025-05", "FIRS-0001", 7)
	require.NoError(t, err)
	assert.Zero(t, rows, "re-confirming a settled period is a no-op")
}

func TestMarkRemitted_RejectsBadPeriod(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.MarkRemitted(context.Background(), 22, "2025/05", "FIRS-0002", 7)
	assert.ErrorIs(t, err, taxledgerdomain.ErrInvalidPeriod)
}

func TestExportRows(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	seedPAYE(t, repo, 23, "2025-05", "900000", "90000", []string{"520", "521"})

	rows, err := svc.ExportRows(ctx, 23, "2025-05")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "520;521", rows[0].EmployeeRef)
	assert.Equal(t, "2025-05", rows[0].Period)
	assert.True(t, rows[0].TaxAmount.Equal(d("90000")))

	rows, err = svc.ExportRows(ctx, 23, "2025-06")
	require.NoError(t, err)
	assert.Empty(t, rows)
}
