package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrSaleAlreadyPosted    = errors.New("sale_already_posted")
	ErrExpenseAlreadyPosted = errors.New("expense_already_posted")
	ErrExpenseNotApproved   = errors.New("expense_not_approved")
)

// Service turns finalized business events into balanced journals.
// Posting is the single write path into the ledger: validate, append
// in one transaction, flip the source record's posted flag, then fan
// out to the tax ledger.
type Service interface {
	// PostSale writes the sale journal (cash or receivable against
	// revenue and VAT payable, plus cost-of-goods lines per catalog
	// item) and refreshes the period's VAT aggregate. A missing
	// product aborts the whole journal with zero rows written.
	PostSale(ctx context.Context, companyID, saleID, userID snowflake.ID) (snowflake.ID, error)

	// PostExpense writes the expense journal and forwards the
	// expense to the tax ledger accumulator. The accumulate step is
	// at-most-once per approval: PostExpense refuses already-posted
	// expenses rather than re-running it.
	PostExpense(ctx context.Context, companyID, expenseID, userID snowflake.ID) (snowflake.ID, error)
}
