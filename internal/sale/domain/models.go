package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/kudibooks/kudibooks/pkg/period"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

var (
	ErrInvalidCompany  = errors.New("invalid_company")
	ErrSaleNotFound    = errors.New("sale_not_found")
	ErrProductNotFound = errors.New("product_not_found")
)

// SaleItem is one line of a finalized sale snapshot. ProductID may be
// zero for ad hoc items that carry no inventory movement.
type SaleItem struct {
	ProductID snowflake.ID    `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Sale is the finalized sale snapshot handed over by the CRUD layer.
// The posting core reads it and flips Posted; it never edits amounts.
type Sale struct {
	ID          snowflake.ID                  `gorm:"primaryKey"`
	CompanyID   snowflake.ID                  `gorm:"not null;index"`
	Items       datatypes.JSONSlice[SaleItem] `gorm:"not null"`
	Subtotal    decimal.Decimal               `gorm:"type:numeric(20,2);not null"`
	VATAmount   decimal.Decimal               `gorm:"type:numeric(20,2);not null"`
	TotalAmount decimal.Decimal               `gorm:"type:numeric(20,2);not null"`
	OnCredit    bool                          `gorm:"not null;default:false"`
	Posted      bool                          `gorm:"not null;default:false;index"`
	CreatedBy   snowflake.ID                  `gorm:"not null"`
	CreatedAt   time.Time                     `gorm:"not null;default:CURRENT_TIMESTAMP;index"`
}

// TableName sets the database table name.
func (Sale) TableName() string { return "sales" }

// Product is the catalog record consulted for cost prices. COGS lines
// use the cost price current at posting time, not at sale time.
type Product struct {
	ID           snowflake.ID    `gorm:"primaryKey"`
	CompanyID    snowflake.ID    `gorm:"not null;index"`
	Name         string          `gorm:"type:text;not null"`
	CostPrice    decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	SellingPrice decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	CreatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Product) TableName() string { return "products" }

// PeriodTotals is the aggregate over a company's sales in one period.
type PeriodTotals struct {
	Subtotal    decimal.Decimal
	VATAmount   decimal.Decimal
	TotalAmount decimal.Decimal
	SaleIDs     []snowflake.ID
}

// Repository reads sale snapshots and the product catalog. MarkPosted
// is the only permitted mutation of a source record.
type Repository interface {
	FindByID(ctx context.Context, companyID, id snowflake.ID) (*Sale, error)
	MarkPosted(ctx context.Context, companyID, id snowflake.ID) error
	TotalsForPeriod(ctx context.Context, companyID snowflake.ID, p period.Period) (PeriodTotals, error)

	FindProduct(ctx context.Context, companyID, productID snowflake.ID) (*Product, error)
}
