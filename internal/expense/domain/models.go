package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/kudibooks/kudibooks/pkg/period"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidCompany  = errors.New("invalid_company")
	ErrExpenseNotFound = errors.New("expense_not_found")
)

// Status of an expense in the approval workflow.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Type distinguishes operating expenses from asset purchases and other
// records that share the table but are not CIT-deductible expenses.
type Type string

const (
	TypeExpense       Type = "expense"
	TypeAssetPurchase Type = "asset_purchase"
)

// Expense is the approved expense snapshot handed over by the CRUD
// layer. Tax flags and amounts were fixed at approval time.
type Expense struct {
	ID            snowflake.ID    `gorm:"primaryKey"`
	CompanyID     snowflake.ID    `gorm:"not null;index"`
	Amount        decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	DateOfExpense time.Time       `gorm:"not null;index"`
	Status        Status          `gorm:"type:text;not null;index"`
	Type          Type            `gorm:"type:text;not null"`

	VATClaimable  bool `gorm:"not null;default:false"`
	WHTApplicable bool `gorm:"not null;default:false"`
	CITAllowable  bool `gorm:"not null;default:false"`

	VATAmount decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	WHTAmount decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	WHTRate   decimal.Decimal `gorm:"type:numeric(6,4);not null"`

	Posted bool `gorm:"not null;default:false;index"`
	// TaxRecorded flips once the expense has been accumulated into the
	// tax ledger. Posted expenses with the flag still down are retried
	// by the sweep.
	TaxRecorded bool         `gorm:"not null;default:false;index"`
	EnteredBy   snowflake.ID `gorm:"not null"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Expense) TableName() string { return "expenses" }

// Repository reads expense snapshots. MarkPosted and the tax-recorded
// claim are the only permitted mutations of a source record.
type Repository interface {
	FindByID(ctx context.Context, companyID, id snowflake.ID) (*Expense, error)
	MarkPosted(ctx context.Context, companyID, id snowflake.ID) error

	// ClaimTaxRecorded atomically raises the tax-recorded flag on a
	// posted expense. True means the caller owns the hand-off to the
	// tax ledger; false means it already happened (or was claimed by
	// a concurrent worker). The additive accumulation downstream makes
	// a double hand-off double-count, so the claim is the gate.
	ClaimTaxRecorded(ctx context.Context, companyID, id snowflake.ID) (bool, error)
	// ReleaseTaxClaim lowers the flag after a failed hand-off so the
	// sweep retries it.
	ReleaseTaxClaim(ctx context.Context, companyID, id snowflake.ID) error
	// ListTaxPending returns posted expenses whose hand-off has not
	// happened yet, across companies, oldest first.
	ListTaxPending(ctx context.Context, limit int) ([]Expense, error)

	// SumApprovedAllowable sums approved, CIT-allowable operating
	// expenses dated within the period.
	SumApprovedAllowable(ctx context.Context, companyID snowflake.ID, p period.Period) (decimal.Decimal, error)
}
