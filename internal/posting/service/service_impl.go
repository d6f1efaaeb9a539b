package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/kudibooks/kudibooks/internal/audit/domain"
	expensedomain "github.com/kudibooks/kudibooks/internal/expense/domain"
	ledgerdomain "github.com/kudibooks/kudibooks/internal/ledger/domain"
	obsmetrics "github.com/kudibooks/kudibooks/internal/observability/metrics"
	postingdomain "github.com/kudibooks/kudibooks/internal/posting/domain"
	saledomain "github.com/kudibooks/kudibooks/internal/sale/domain"
	taxledgerdomain "github.com/kudibooks/kudibooks/internal/taxledger/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Ledger     ledgerdomain.Repository
	Sales      saledomain.Repository
	Expenses   expensedomain.Repository
	TaxLedger  taxledgerdomain.Service
	AuditSvc   auditdomain.Service
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	ledger     ledgerdomain.Repository
	sales      saledomain.Repository
	expenses   expensedomain.Repository
	taxLedger  taxledgerdomain.Service
	auditSvc   auditdomain.Service
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) postingdomain.Service {
	return &Service{
		log:        p.Log.Named("posting.service"),
		ledger:     p.Ledger,
		sales:      p.Sales,
		expenses:   p.Expenses,
		taxLedger:  p.TaxLedger,
		auditSvc:   p.AuditSvc,
		obsMetrics: p.ObsMetrics,
	}
}

// PostSale writes the journal for one finalized sale. Payment lands on
// cash or accounts receivable depending on the sale's credit flag, VAT
// goes to its own liability line only when non-zero, and every catalog
// item adds a cost-of-goods pair priced at the cost current right now,
// not the cost at sale time. The journal appends in one transaction;
// a missing product fails the lookup phase before anything is written.
func (s *Service) PostSale(ctx context.Context, companyID, saleID, userID snowflake.ID) (snowflake.ID, error) {
	sale, err := s.sales.FindByID(ctx, companyID, saleID)
	if err != nil {
		return 0, err
	}
	if sale.Posted {
		return 0, postingdomain.ErrSaleAlreadyPosted
	}

	entries, err := s.buildSaleJournal(ctx, sale, userID)
	if err != nil {
		return 0, err
	}

	journalID, err := s.ledger.AppendJournal(ctx, entries)
	if err != nil {
		return 0, err
	}

	if err := s.sales.MarkPosted(ctx, companyID, saleID); err != nil {
		return 0, fmt.Errorf("mark sale posted: %w", err)
	}

	// The period aggregate is recomputed from source, so running it
	// after every sale keeps the VAT record current without caring
	// how many times this month has been recomputed before.
	if _, err := s.taxLedger.UpdateCompanyTaxFromSales(ctx, companyID, sale.CreatedAt.Year(), sale.CreatedAt.Month(), userID); err != nil {
		s.log.Error("failed to refresh vat aggregate after sale posting",
			zap.String("company_id", companyID.String()),
			zap.String("sale_id", saleID.String()),
			zap.Error(err))
	}

	s.audit(ctx, companyID, userID, "ledger.sale_posted", "sale", saleID, map[string]any{
		"journal_id": journalID.String(),
		"total":      sale.TotalAmount.String(),
		"on_credit":  sale.OnCredit,
		"lines":      len(entries),
	})
	if s.obsMetrics != nil {
		s.obsMetrics.RecordJournalPosted(ctx, string(ledgerdomain.SourceSale))
	}
	return journalID, nil
}

func (s *Service) buildSaleJournal(ctx context.Context, sale *saledomain.Sale, userID snowflake.ID) ([]ledgerdomain.LedgerEntry, error) {
	paymentAccount := ledgerdomain.AccountCash
	if sale.OnCredit {
		paymentAccount = ledgerdomain.AccountAccountsReceivable
	}

	entries := []ledgerdomain.LedgerEntry{
		s.line(sale, userID, paymentAccount, ledgerdomain.EntryTypeDebit, sale.TotalAmount, "sale proceeds"),
		s.line(sale, userID, ledgerdomain.AccountRevenue, ledgerdomain.EntryTypeCredit, sale.Subtotal, "sale revenue"),
	}
	if sale.VATAmount.IsPositive() {
		entries = append(entries,
			s.line(sale, userID, ledgerdomain.AccountVATPayable, ledgerdomain.EntryTypeCredit, sale.VATAmount, "output vat"))
	}

	for _, item := range sale.Items {
		if item.ProductID == 0 {
			continue
		}
		product, err := s.sales.FindProduct(ctx, sale.CompanyID, item.ProductID)
		if err != nil {
			return nil, err
		}
		cogs := product.CostPrice.Mul(decimal.NewFromInt(item.Quantity)).Round(2)
		if !cogs.IsPositive() {
			continue
		}
		entries = append(entries,
			s.line(sale, userID, ledgerdomain.AccountCostOfGoodsSold, ledgerdomain.EntryTypeDebit, cogs, "cost of goods sold"),
			s.line(sale, userID, ledgerdomain.AccountInventory, ledgerdomain.EntryTypeCredit, cogs, "inventory drawdown"))
	}
	return entries, nil
}

// PostExpense writes the journal for one approved expense and hands it
// to the tax ledger accumulator. The accumulator is additive, so the
// posted flag is the gate that keeps the hand-off at most once per
// expense: a second PostExpense call fails before any write.
func (s *Service) PostExpense(ctx context.Context, companyID, expenseID, userID snowflake.ID) (snowflake.ID, error) {
	expense, err := s.expenses.FindByID(ctx, companyID, expenseID)
	if err != nil {
		return 0, err
	}
	if expense.Posted {
		return 0, postingdomain.ErrExpenseAlreadyPosted
	}
	if expense.Status != expensedomain.StatusApproved {
		return 0, postingdomain.ErrExpenseNotApproved
	}

	entries := []ledgerdomain.LedgerEntry{
		{
			CompanyID:   companyID,
			Account:     ledgerdomain.AccountExpenses,
			EntryType:   ledgerdomain.EntryTypeDebit,
			Amount:      expense.Amount,
			Source:      ledgerdomain.SourceExpense,
			ReferenceID: expense.ID,
			Description: "expense",
			CreatedBy:   userID,
		},
		{
			CompanyID:   companyID,
			Account:     ledgerdomain.AccountCash,
			EntryType:   ledgerdomain.EntryTypeCredit,
			Amount:      expense.Amount,
			Source:      ledgerdomain.SourceExpense,
			ReferenceID: expense.ID,
			Description: "expense payment",
			CreatedBy:   userID,
		},
	}

	journalID, err := s.ledger.AppendJournal(ctx, entries)
	if err != nil {
		return 0, err
	}

	if err := s.expenses.MarkPosted(ctx, companyID, expenseID); err != nil {
		return 0, fmt.Errorf("mark expense posted: %w", err)
	}

	if err := s.recordExpenseTax(ctx, expense, userID); err != nil {
		s.log.Error("failed to accumulate expense into tax ledger, sweep will retry",
			zap.String("company_id", companyID.String()),
			zap.String("expense_id", expenseID.String()),
			zap.Error(err))
	}

	s.audit(ctx, companyID, userID, "ledger.expense_posted", "expense", expenseID, map[string]any{
		"journal_id": journalID.String(),
		"amount":     expense.Amount.String(),
	})
	if s.obsMetrics != nil {
		s.obsMetrics.RecordJournalPosted(ctx, string(ledgerdomain.SourceExpense))
	}
	return journalID, nil
}

// recordExpenseTax hands one posted expense to the tax ledger behind
// the tax-recorded claim: the claim is raised first, and lowered again
// if the accumulation fails, so the retry sweep picks the expense up
// without ever double-counting it.
func (s *Service) recordExpenseTax(ctx context.Context, expense *expensedomain.Expense, userID snowflake.ID) error {
	claimed, err := s.expenses.ClaimTaxRecorded(ctx, expense.CompanyID, expense.ID)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}
	if err := s.taxLedger.ProcessExpenseTax(ctx, expense, userID); err != nil {
		if releaseErr := s.expenses.ReleaseTaxClaim(ctx, expense.CompanyID, expense.ID); releaseErr != nil {
			s.log.Error("failed to release expense tax claim",
				zap.String("expense_id", expense.ID.String()),
				zap.Error(releaseErr))
		}
		return err
	}
	return nil
}

func (s *Service) line(sale *saledomain.Sale, userID snowflake.ID, account ledgerdomain.Account, entryType ledgerdomain.EntryType, amount decimal.Decimal, description string) ledgerdomain.LedgerEntry {
	return ledgerdomain.LedgerEntry{
		CompanyID:   sale.CompanyID,
		Account:     account,
		EntryType:   entryType,
		Amount:      amount,
		Source:      ledgerdomain.SourceSale,
		ReferenceID: sale.ID,
		Description: description,
		CreatedBy:   userID,
	}
}

func (s *Service) audit(ctx context.Context, companyID, userID snowflake.ID, action, targetType string, targetID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	target := targetID.String()
	if err := s.auditSvc.AuditLog(ctx, companyID, userID, action, targetType, &target, metadata); err != nil {
		s.log.Warn("failed to write posting audit log", zap.Error(err))
	}
}
