package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	expensedomain "github.com/kudibooks/kudibooks/internal/expense/domain"
	"github.com/kudibooks/kudibooks/pkg/period"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) expensedomain.Repository {
	return &repository{db: db}
}

func (r *repository) FindByID(ctx context.Context, companyID, id snowflake.ID) (*expensedomain.Expense, error) {
	if companyID == 0 {
		return nil, expensedomain.ErrInvalidCompany
	}

	var expense expensedomain.Expense
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, id).
		First(&expense).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, expensedomain.ErrExpenseNotFound
	}
	if err != nil {
		return nil, err
	}
	return &expense, nil
}

func (r *repository) MarkPosted(ctx context.Context, companyID, id snowflake.ID) error {
	if companyID == 0 {
		return expensedomain.ErrInvalidCompany
	}
	return r.db.WithContext(ctx).Exec(
		`UPDATE expenses SET posted = ? WHERE company_id = ? AND id = ?`,
		true, companyID, id,
	).Error
}

func (r *repository) ClaimTaxRecorded(ctx context.Context, companyID, id snowflake.ID) (bool, error) {
	if companyID == 0 {
		return false, expensedomain.ErrInvalidCompany
	}
	result := r.db.WithContext(ctx).Exec(
		`UPDATE expenses SET tax_recorded = ?
		 WHERE company_id = ? AND id = ? AND posted = ? AND tax_recorded = ?`,
		true, companyID, id, true, false,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) ReleaseTaxClaim(ctx context.Context, companyID, id snowflake.ID) error {
	if companyID == 0 {
		return expensedomain.ErrInvalidCompany
	}
	return r.db.WithContext(ctx).Exec(
		`UPDATE expenses SET tax_recorded = ? WHERE company_id = ? AND id = ?`,
		false, companyID, id,
	).Error
}

func (r *repository) ListTaxPending(ctx context.Context, limit int) ([]expensedomain.Expense, error) {
	var expenses []expensedomain.Expense
	err := r.db.WithContext(ctx).
		Where("posted = ? AND tax_recorded = ?", true, false).
		Order("created_at ASC").
		Limit(limit).
		Find(&expenses).Error
	if err != nil {
		return nil, err
	}
	return expenses, nil
}

func (r *repository) SumApprovedAllowable(ctx context.Context, companyID snowflake.ID, p period.Period) (decimal.Decimal, error) {
	if companyID == 0 {
		return decimal.Zero, expensedomain.ErrInvalidCompany
	}

	start, end := p.Bounds()

	var result struct {
		Total decimal.Decimal
	}
	err := r.db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount), 0) AS total
		 FROM expenses
		 WHERE company_id = ?
		   AND status = ?
		   AND type = ?
		   AND cit_allowable = ?
		   AND date_of_expense >= ? AND date_of_expense < ?`,
		companyID,
		string(expensedomain.StatusApproved),
		string(expensedomain.TypeExpense),
		true,
		start, end,
	).Scan(&result).Error
	if err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}
