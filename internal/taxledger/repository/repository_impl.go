package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	taxledgerdomain "github.com/kudibooks/kudibooks/internal/taxledger/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type repository struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func NewRepository(p Params) taxledgerdomain.Repository {
	return &repository{
		db:    p.DB,
		log:   p.Log.Named("taxledger.repository"),
		genID: p.GenID,
	}
}

// Replace swaps the keyed aggregate wholesale, source refs included.
// The sales-tax path recomputes its figures from source, so a plain
// read-then-replace is safe here; order of concurrent replacements for
// the same recomputed figures is immaterial.
func (r *repository) Replace(ctx context.Context, rec *taxledgerdomain.TaxLedgerRecord) error {
	if err := rec.Key().Validate(); err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		recordID, err := findRecordID(ctx, tx, rec.Key())
		if err != nil {
			return err
		}

		if recordID == 0 {
			recordID = r.genID.Generate()
			if err := tx.WithContext(ctx).Exec(
				`INSERT INTO tax_ledger_records (
					id, company_id, tax_type, period, source,
					basis_amount, rate, tax_amount,
					remitted, remittance_date, receipt_number,
					computed_by, computed_at, tax_law_version, notes
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				recordID, rec.CompanyID, string(rec.TaxType), rec.Period, string(rec.Source),
				rec.BasisAmount, rec.Rate, rec.TaxAmount,
				false, nil, "",
				rec.ComputedBy, rec.ComputedAt.UTC(), rec.TaxLawVersion, rec.Notes,
			).Error; err != nil {
				return err
			}
		} else {
			if err := tx.WithContext(ctx).Exec(
				`UPDATE tax_ledger_records
				 SET basis_amount = ?, rate = ?, tax_amount = ?,
					 computed_by = ?, computed_at = ?, tax_law_version = ?, notes = ?
				 WHERE id = ?`,
				rec.BasisAmount, rec.Rate, rec.TaxAmount,
				rec.ComputedBy, rec.ComputedAt.UTC(), rec.TaxLawVersion, rec.Notes,
				recordID,
			).Error; err != nil {
				return err
			}
			if err := tx.WithContext(ctx).Exec(
				`DELETE FROM tax_ledger_source_refs WHERE record_id = ?`,
				recordID,
			).Error; err != nil {
				return err
			}
		}

		for _, ref := range rec.SourceRefs {
			id, err := snowflake.ParseString(ref)
			if err != nil {
				return err
			}
			if err := insertRef(ctx, tx, recordID, id); err != nil {
				return err
			}
		}
		rec.ID = recordID
		return nil
	})
}

// Accumulate adds the deltas with arithmetic evaluated inside the
// UPDATE statement. Concurrent accumulations for the same key are safe;
// re-running the same accumulation is not, which is the documented
// at-most-once contract of the expense path.
func (r *repository) Accumulate(ctx context.Context, acc taxledgerdomain.Accumulation) error {
	if err := acc.Key.Validate(); err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()

		if err := tx.WithContext(ctx).Exec(
			`INSERT INTO tax_ledger_records (
				id, company_id, tax_type, period, source,
				basis_amount, rate, tax_amount,
				remitted, remittance_date, receipt_number,
				computed_by, computed_at, tax_law_version, notes
			) VALUES (?, ?, ?, ?, ?, 0, 0, 0, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (company_id, tax_type, period, source) DO NOTHING`,
			r.genID.Generate(), acc.CompanyID, string(acc.TaxType), acc.Period, string(acc.Source),
			false, nil, "",
			acc.Audit.ComputedBy, now, acc.Audit.TaxLawVersion, acc.Audit.Notes,
		).Error; err != nil {
			return err
		}

		recordID, err := findRecordID(ctx, tx, acc.Key)
		if err != nil {
			return err
		}
		if recordID == 0 {
			return taxledgerdomain.ErrRecordNotFound
		}

		// Increments are evaluated by the store against current column
		// values; rate is re-derived from the post-increment totals in
		// the same statement. The 1.0 factor forces real division on
		// sqlite, where integer-valued operands would otherwise
		// truncate the quotient to 0.
		if err := tx.WithContext(ctx).Exec(
			`UPDATE tax_ledger_records
			 SET basis_amount = basis_amount + ?,
				 tax_amount = tax_amount + ?,
				 rate = CASE WHEN basis_amount + ? = 0 THEN 0
						ELSE ((tax_amount + ?) * 1.0) / (basis_amount + ?) END,
				 computed_by = ?, computed_at = ?, tax_law_version = ?
			 WHERE id = ?`,
			acc.BasisDelta,
			acc.TaxDelta,
			acc.BasisDelta,
			acc.TaxDelta, acc.BasisDelta,
			acc.Audit.ComputedBy, now, acc.Audit.TaxLawVersion,
			recordID,
		).Error; err != nil {
			return err
		}

		return insertRef(ctx, tx, recordID, acc.Ref)
	})
}

func (r *repository) MarkAsRemitted(ctx context.Context, companyID snowflake.ID, periodToken, receiptNumber string) (int64, error) {
	if companyID == 0 {
		return 0, taxledgerdomain.ErrInvalidCompanyReference
	}

	result := r.db.WithContext(ctx).Exec(
		`UPDATE tax_ledger_records
		 SET remitted = ?, remittance_date = ?, receipt_number = ?
		 WHERE company_id = ? AND period = ? AND tax_type = ? AND remitted = ?`,
		true, time.Now().UTC(), receiptNumber,
		companyID, periodToken, string(taxledgerdomain.TaxTypePAYE), false,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repository) List(ctx context.Context, companyID snowflake.ID, filter taxledgerdomain.Filter) ([]taxledgerdomain.TaxLedgerRecord, error) {
	if companyID == 0 {
		return nil, taxledgerdomain.ErrInvalidCompanyReference
	}

	stmt := r.db.WithContext(ctx).
		Model(&taxledgerdomain.TaxLedgerRecord{}).
		Where("company_id = ?", companyID)

	if filter.TaxType != "" {
		stmt = stmt.Where("tax_type = ?", string(filter.TaxType))
	}
	if filter.Period != "" {
		stmt = stmt.Where("period = ?", filter.Period)
	}
	if filter.Source != "" {
		stmt = stmt.Where("source = ?", string(filter.Source))
	}

	var records []taxledgerdomain.TaxLedgerRecord
	if err := stmt.Order("period ASC, tax_type ASC, source ASC").Find(&records).Error; err != nil {
		return nil, err
	}

	for i := range records {
		refs, err := r.loadRefs(ctx, records[i].ID)
		if err != nil {
			return nil, err
		}
		records[i].SourceRefs = refs
	}
	return records, nil
}

// UnremittedPAYE sums un-remitted PAYE aggregates for the period.
// EntryCount is the number of contributing payroll records.
func (r *repository) UnremittedPAYE(ctx context.Context, companyID snowflake.ID, periodToken string) (taxledgerdomain.PAYETotals, error) {
	if companyID == 0 {
		return taxledgerdomain.PAYETotals{}, taxledgerdomain.ErrInvalidCompanyReference
	}

	var result struct {
		Total decimal.Decimal
		Refs  int
	}
	err := r.db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(rec.tax_amount), 0) AS total,
			(SELECT COUNT(*) FROM tax_ledger_source_refs ref
			 JOIN tax_ledger_records r2 ON r2.id = ref.record_id
			 WHERE r2.company_id = ? AND r2.period = ?
			   AND r2.tax_type = ? AND r2.remitted = ?) AS refs
		 FROM tax_ledger_records rec
		 WHERE rec.company_id = ? AND rec.period = ?
		   AND rec.tax_type = ? AND rec.remitted = ?`,
		companyID, periodToken, string(taxledgerdomain.TaxTypePAYE), false,
		companyID, periodToken, string(taxledgerdomain.TaxTypePAYE), false,
	).Scan(&result).Error
	if err != nil {
		return taxledgerdomain.PAYETotals{}, err
	}

	return taxledgerdomain.PAYETotals{
		Period:     periodToken,
		TotalPAYE:  result.Total,
		EntryCount: result.Refs,
	}, nil
}

func (r *repository) loadRefs(ctx context.Context, recordID snowflake.ID) ([]string, error) {
	var ids []snowflake.ID
	if err := r.db.WithContext(ctx).
		Model(&taxledgerdomain.TaxLedgerSourceRef{}).
		Where("record_id = ?", recordID).
		Order("ref_id ASC").
		Pluck("ref_id", &ids).Error; err != nil {
		return nil, err
	}
	refs := make([]string, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, id.String())
	}
	return refs, nil
}

func findRecordID(ctx context.Context, tx *gorm.DB, key taxledgerdomain.Key) (snowflake.ID, error) {
	var row struct {
		ID snowflake.ID
	}
	err := tx.WithContext(ctx).Raw(
		`SELECT id FROM tax_ledger_records
		 WHERE company_id = ? AND tax_type = ? AND period = ? AND source = ?`,
		key.CompanyID, string(key.TaxType), key.Period, string(key.Source),
	).Scan(&row).Error
	if err != nil {
		return 0, err
	}
	return row.ID, nil
}

func insertRef(ctx context.Context, tx *gorm.DB, recordID, refID snowflake.ID) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO tax_ledger_source_refs (record_id, ref_id) VALUES (?, ?)
		 ON CONFLICT (record_id, ref_id) DO NOTHING`,
		recordID, refID,
	).Error
}
