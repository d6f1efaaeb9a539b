package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	taxledgerdomain "github.com/kudibooks/kudibooks/internal/taxledger/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestRepo(t *testing.T) taxledgerdomain.Repository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&taxledgerdomain.TaxLedgerRecord{},
		&taxledgerdomain.TaxLedgerSourceRef{},
	))

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	return NewRepository(Params{DB: db, Log: zap.NewNop(), GenID: node})
}

func vatRecord(company snowflake.ID, refs []string) *taxledgerdomain.TaxLedgerRecord {
	return &taxledgerdomain.TaxLedgerRecord{
		CompanyID:     company,
		TaxType:       taxledgerdomain.TaxTypeVAT,
		Period:        "2025-01",
		Source:        taxledgerdomain.SourceSale,
		BasisAmount:   d("140000"),
		Rate:          d("0.075"),
		TaxAmount:     d("10500"),
		SourceRefs:    refs,
		ComputedBy:    1,
		ComputedAt:    time.Now().UTC(),
		TaxLawVersion: "FA2023",
	}
}

func TestReplace_IsIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	company := snowflake.ID(5)

	first := vatRecord(company, []string{"101", "102"})
	require.NoError(t, repo.Replace(context.Background(), first))
	require.NotZero(t, first.ID)

	// Re-running the same recomputation replaces in place.
	second := vatRecord(company, []string{"101", "102"})
	require.NoError(t, repo.Replace(context.Background(), second))
	assert.Equal(t, first.ID, second.ID, "replace must keep the row identity")

	records, err := repo.List(context.Background(), company, taxledgerdomain.Filter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].BasisAmount.Equal(d("140000")))
	assert.True(t, records[0].TaxAmount.Equal(d("10500")))
	assert.Equal(t, []string{"101", "102"}, records[0].SourceRefs)
}

func TestReplace_SwapsSourceRefs(t *testing.T) {
	repo := newTestRepo(t)
	company := snowflake.ID(6)

	require.NoError(t, repo.Replace(context.Background(), vatRecord(company, []string{"101", "102"})))

	// A new sale joined the period; the recompute carries the full set.
	updated := vatRecord(company, []string{"101", "102", "103"})
	updated.BasisAmount = d("190000")
	updated.TaxAmount = d("14250")
	require.NoError(t, repo.Replace(context.Background(), updated))

	records, err := repo.List(context.Background(), company, taxledgerdomain.Filter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{"101", "102", "103"}, records[0].SourceRefs)
	assert.True(t, records[0].TaxAmount.Equal(d("14250")))
}

func TestAccumulate_SumsDeltas(t *testing.T) {
	repo := newTestRepo(t)
	company := snowflake.ID(7)

	key := taxledgerdomain.Key{
		CompanyID: company,
		TaxType:   taxledgerdomain.TaxTypeWHT,
		Period:    "2025-02",
		Source:    taxledgerdomain.SourceExpense,
	}
	audit := taxledgerdomain.Audit{ComputedBy: 1, TaxLawVersion: "FA2023"}

	for i, amounts := range []struct{ basis, tax string }{
		{"2000", "100"},
		{"4000", "200"},
		{"6000", "300"},
	} {
		require.NoError(t, repo.Accumulate(context.Background(), taxledgerdomain.Accumulation{
			Key:        key,
			BasisDelta: d(amounts.basis),
			TaxDelta:   d(amounts.tax),
			Ref:        snowflake.ID(200 + i),
			Audit:      audit,
		}))
	}

	records, err := repo.List(context.Background(), company, taxledgerdomain.Filter{TaxType: taxledgerdomain.TaxTypeWHT})
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.True(t, rec.BasisAmount.Equal(d("12000")), "basis %s", rec.BasisAmount)
	assert.True(t, rec.TaxAmount.Equal(d("600")), "tax %s", rec.TaxAmount)
	assert.True(t, rec.Rate.Equal(d("0.05")), "rate %s", rec.Rate)
	assert.Equal(t, []string{"200", "201", "202"}, rec.SourceRefs)
}

func TestAccumulate_WholeNumberAmountsKeepFractionalRate(t *testing.T) {
	repo := newTestRepo(t)

	// Integer-valued basis and tax exercise the dialect's division:
	// sqlite would truncate 75/1000 to 0 without the forced real
	// arithmetic in the upsert.
	require.NoError(t, repo.Accumulate(context.Background(), taxledgerdomain.Accumulation{
		Key: taxledgerdomain.Key{
			CompanyID: 12,
			TaxType:   taxledgerdomain.TaxTypeVAT,
			Period:    "2025-04",
			Source:    taxledgerdomain.SourceExpense,
		},
		BasisDelta: d("1000"),
		TaxDelta:   d("75"),
		Ref:        350,
		Audit:      taxledgerdomain.Audit{ComputedBy: 1},
	}))

	records, err := repo.List(context.Background(), 12, taxledgerdomain.Filter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Rate.Equal(d("0.075")), "rate %s", records[0].Rate)
}

func TestAccumulate_DuplicateRefKeepsSetSemantics(t *testing.T) {
	repo := newTestRepo(t)

	key := taxledgerdomain.Key{
		CompanyID: 8,
		TaxType:   taxledgerdomain.TaxTypeVAT,
		Period:    "2025-02",
		Source:    taxledgerdomain.SourceExpense,
	}
	acc := taxledgerdomain.Accumulation{
		Key:        key,
		BasisDelta: d("1000"),
		TaxDelta:   d("75"),
		Ref:        300,
		Audit:      taxledgerdomain.Audit{ComputedBy: 1},
	}
	require.NoError(t, repo.Accumulate(context.Background(), acc))
	require.NoError(t, repo.Accumulate(context.Background(), acc))

	records, err := repo.List(context.Background(), 8, taxledgerdomain.Filter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	// Amounts double (the caller owns at-most-once) but the ref set
	// never grows a duplicate.
	assert.True(t, records[0].TaxAmount.Equal(d("150")))
	assert.Equal(t, []string{"300"}, records[0].SourceRefs)
}

func TestMarkAsRemitted(t *testing.T) {
	repo := newTestRepo(t)
	company := snowflake.ID(9)

	paye := &taxledgerdomain.TaxLedgerRecord{
		CompanyID:     company,
		TaxType:       taxledgerdomain.TaxTypePAYE,
		Period:        "2025-03",
		Source:        taxledgerdomain.SourcePayroll,
		BasisAmount:   d("500000"),
		Rate:          d("0.12"),
		TaxAmount:     d("60000"),
		SourceRefs:    []string{"401", "402"},
		ComputedBy:    1,
		ComputedAt:    time.Now().UTC(),
		TaxLawVersion: "FA2023",
	}
	require.NoError(t, repo.Replace(context.Background(), paye))

	rows, err := repo.MarkAsRemitted(context.Background(), company, "2025-03", "RCPT-889")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	records, err := repo.List(context.Background(), company, taxledgerdomain.Filter{TaxType: taxledgerdomain.TaxTypePAYE})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Remitted)
	assert.Equal(t, "RCPT-889", records[0].ReceiptNumber)
	require.NotNil(t, records[0].RemittanceDate)

	// Nothing left to remit: zero rows, no error.
	rows, err = repo.MarkAsRemitted(context.Background(), company, "2025-03", "RCPT-890")
	require.NoError(t, err)
	assert.Zero(t, rows)
}

func TestUnremittedPAYE(t *testing.T) {
	repo := newTestRepo(t)
	company := snowflake.ID(10)

	paye := &taxledgerdomain.TaxLedgerRecord{
		CompanyID:     company,
		TaxType:       taxledgerdomain.TaxTypePAYE,
		Period:        "2025-04",
		Source:        taxledgerdomain.SourcePayroll,
		BasisAmount:   d("900000"),
		Rate:          d("0.1"),
		TaxAmount:     d("90000"),
		SourceRefs:    []string{"501", "502", "503"},
		ComputedBy:    1,
		ComputedAt:    time.Now().UTC(),
		TaxLawVersion: "FA2023",
	}
	require.NoError(t, repo.Replace(context.Background(), paye))

	totals, err := repo.UnremittedPAYE(context.Background(), company, "2025-04")
	require.NoError(t, err)
	assert.Equal(t, "2025-04", totals.Period)
	assert.True(t, totals.TotalPAYE.Equal(d("90000")), "total %s", totals.TotalPAYE)
	assert.Equal(t, 3, totals.EntryCount)

	// Remittance clears the outstanding position.
	_, err = repo.MarkAsRemitted(context.Background(), company, "2025-04", "RCPT-1")
	require.NoError(t, err)

	totals, err = repo.UnremittedPAYE(context.Background(), company, "2025-04")
	require.NoError(t, err)
	assert.True(t, totals.TotalPAYE.IsZero())
	assert.Zero(t, totals.EntryCount)
}

func TestAccumulate_RejectsInvalidKey(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.Accumulate(context.Background(), taxledgerdomain.Accumulation{
		Key: taxledgerdomain.Key{
			TaxType: taxledgerdomain.TaxTypeVAT,
			Period:  "2025-01",
			Source:  taxledgerdomain.SourceExpense,
		},
	})
	assert.ErrorIs(t, err, taxledgerdomain.ErrInvalidCompanyReference)
}
