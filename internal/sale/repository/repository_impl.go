package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	saledomain "github.com/kudibooks/kudibooks/internal/sale/domain"
	"github.com/kudibooks/kudibooks/pkg/period"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) saledomain.Repository {
	return &repository{db: db}
}

func (r *repository) FindByID(ctx context.Context, companyID, id snowflake.ID) (*saledomain.Sale, error) {
	if companyID == 0 {
		return nil, saledomain.ErrInvalidCompany
	}

	var sale saledomain.Sale
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, id).
		First(&sale).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, saledomain.ErrSaleNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *repository) MarkPosted(ctx context.Context, companyID, id snowflake.ID) error {
	if companyID == 0 {
		return saledomain.ErrInvalidCompany
	}
	return r.db.WithContext(ctx).Exec(
		`UPDATE sales SET posted = ? WHERE company_id = ? AND id = ?`,
		true, companyID, id,
	).Error
}

type periodSums struct {
	Subtotal    decimal.Decimal
	VATAmount   decimal.Decimal
	TotalAmount decimal.Decimal
}

// TotalsForPeriod re-sums every sale in the period from source. The
// sales-tax aggregate is rebuilt from this, which is what makes the
// VAT upsert idempotent.
func (r *repository) TotalsForPeriod(ctx context.Context, companyID snowflake.ID, p period.Period) (saledomain.PeriodTotals, error) {
	if companyID == 0 {
		return saledomain.PeriodTotals{}, saledomain.ErrInvalidCompany
	}

	start, end := p.Bounds()

	var sums periodSums
	err := r.db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(subtotal), 0) AS subtotal,
			COALESCE(SUM(vat_amount), 0) AS vat_amount,
			COALESCE(SUM(total_amount), 0) AS total_amount
		 FROM sales
		 WHERE company_id = ? AND created_at >= ? AND created_at < ?`,
		companyID, start, end,
	).Scan(&sums).Error
	if err != nil {
		return saledomain.PeriodTotals{}, err
	}

	var ids []snowflake.ID
	if err := r.db.WithContext(ctx).
		Model(&saledomain.Sale{}).
		Where("company_id = ? AND created_at >= ? AND created_at < ?", companyID, start, end).
		Order("id ASC").
		Pluck("id", &ids).Error; err != nil {
		return saledomain.PeriodTotals{}, err
	}

	return saledomain.PeriodTotals{
		Subtotal:    sums.Subtotal,
		VATAmount:   sums.VATAmount,
		TotalAmount: sums.TotalAmount,
		SaleIDs:     ids,
	}, nil
}

func (r *repository) FindProduct(ctx context.Context, companyID, productID snowflake.ID) (*saledomain.Product, error) {
	if companyID == 0 {
		return nil, saledomain.ErrInvalidCompany
	}

	var product saledomain.Product
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, productID).
		First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, saledomain.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}
