package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// EntryType represents debit or credit postings.
type EntryType string

const (
	EntryTypeDebit  EntryType = "debit"
	EntryTypeCredit EntryType = "credit"
)

// Source identifies the business event a journal originated from.
type Source string

const (
	SourceSale      Source = "sale"
	SourceExpense   Source = "expense"
	SourceInventory Source = "inventory"
	SourcePayroll   Source = "payroll"
	SourceTax       Source = "tax"
)

// AccountCategory classifies an account for reporting sign conventions.
type AccountCategory string

const (
	CategoryAsset     AccountCategory = "asset"
	CategoryLiability AccountCategory = "liability"
	CategoryEquity    AccountCategory = "equity"
	CategoryIncome    AccountCategory = "income"
	CategoryExpense   AccountCategory = "expense"
)

// Account is the closed chart of accounts.
type Account string

const (
	AccountCash               Account = "cash"
	AccountBank               Account = "bank"
	AccountAccountsReceivable Account = "accounts_receivable"
	AccountInventory          Account = "inventory"
	AccountCostOfGoodsSold    Account = "cost_of_goods_sold"
	AccountRevenue            Account = "revenue"
	AccountVATPayable         Account = "vat_payable"
	AccountVATReceivable      Account = "vat_receivable"
	AccountExpenses           Account = "expenses"
	AccountPayrollExpense     Account = "payroll_expense"
	AccountCommissionExpense  Account = "commission_expense"
	AccountTaxPayable         Account = "tax_payable"
	AccountEquity             Account = "equity"
	AccountRetainedEarnings   Account = "retained_earnings"
)

var accountCategories = map[Account]AccountCategory{
	AccountCash:               CategoryAsset,
	AccountBank:               CategoryAsset,
	AccountAccountsReceivable: CategoryAsset,
	AccountInventory:          CategoryAsset,
	AccountCostOfGoodsSold:    CategoryExpense,
	AccountRevenue:            CategoryIncome,
	AccountVATPayable:         CategoryLiability,
	AccountVATReceivable:      CategoryAsset,
	AccountExpenses:           CategoryExpense,
	AccountPayrollExpense:     CategoryExpense,
	AccountCommissionExpense:  CategoryExpense,
	AccountTaxPayable:         CategoryLiability,
	AccountEquity:             CategoryEquity,
	AccountRetainedEarnings:   CategoryEquity,
}

// Category returns the reporting category for a, and whether a is a
// known account.
func (a Account) Category() (AccountCategory, bool) {
	cat, ok := accountCategories[a]
	return cat, ok
}

// LedgerEntry is one line of a double-entry journal. Entries are
// written in bulk per business event and never mutated afterwards.
type LedgerEntry struct {
	ID              snowflake.ID    `gorm:"primaryKey"`
	CompanyID       snowflake.ID    `gorm:"not null;index"`
	JournalID       snowflake.ID    `gorm:"not null;index"`
	Account         Account         `gorm:"type:text;not null;index"`
	AccountCategory AccountCategory `gorm:"type:text;not null"`
	EntryType       EntryType       `gorm:"type:text;not null"`
	Amount          decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	Source          Source          `gorm:"type:text;not null"`
	ReferenceID     snowflake.ID    `gorm:"not null;index"`
	Description     string          `gorm:"type:text"`
	CreatedBy       snowflake.ID    `gorm:"not null"`
	CreatedAt       time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (LedgerEntry) TableName() string { return "ledger_entries" }

// AccountBalance is the per-account debit/credit aggregate used by the
// balance sheet and profit & loss projections. The sign convention
// (debit-normal vs credit-normal) is applied by the reporting caller.
type AccountBalance struct {
	Account     Account         `json:"account"`
	Category    AccountCategory `json:"category"`
	DebitTotal  decimal.Decimal `json:"debit_total"`
	CreditTotal decimal.Decimal `json:"credit_total"`
}
