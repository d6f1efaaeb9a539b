package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidCompanyReference = errors.New("invalid_company_reference")
	ErrInvalidTaxType          = errors.New("invalid_tax_type")
	ErrInvalidPeriod           = errors.New("invalid_period")
	ErrInvalidSource           = errors.New("invalid_source")
	ErrRecordNotFound          = errors.New("tax_record_not_found")
)

// TaxType enumerates the statutory obligations tracked in the ledger.
type TaxType string

const (
	TaxTypeVAT          TaxType = "VAT"
	TaxTypeWHT          TaxType = "WHT"
	TaxTypeCIT          TaxType = "CIT"
	TaxTypeTET          TaxType = "TET"
	TaxTypePAYE         TaxType = "PAYE"
	TaxTypeNHF          TaxType = "NHF"
	TaxTypeNHIS         TaxType = "NHIS"
	TaxTypeNHISEmployer TaxType = "NHIS_EMPLOYER"
)

// Valid reports whether t is a known tax type.
func (t TaxType) Valid() bool {
	switch t {
	case TaxTypeVAT, TaxTypeWHT, TaxTypeCIT, TaxTypeTET,
		TaxTypePAYE, TaxTypeNHF, TaxTypeNHIS, TaxTypeNHISEmployer:
		return true
	}
	return false
}

// Source identifies what kind of record contributed to an aggregate.
type Source string

const (
	SourceInvoice           Source = "Invoice"
	SourceExpense           Source = "Expense"
	SourceProfitComputation Source = "ProfitComputation"
	SourcePayroll           Source = "Payroll"
	SourceSale              Source = "Sale"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	switch s {
	case SourceInvoice, SourceExpense, SourceProfitComputation,
		SourcePayroll, SourceSale:
		return true
	}
	return false
}

// TaxLedgerRecord is the aggregate obligation for one
// (company, taxType, period, source) key. At most one row exists per
// key; repeated computation upserts rather than duplicates.
//
// SourceRefs is kept in a child table so concurrent contributors get
// set semantics without read-modify-write on a serialized column; the
// repository loads it on reads.
type TaxLedgerRecord struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	CompanyID snowflake.ID `gorm:"not null;uniqueIndex:ux_tax_ledger_key,priority:1"`
	TaxType   TaxType      `gorm:"type:text;not null;uniqueIndex:ux_tax_ledger_key,priority:2"`
	Period    string       `gorm:"type:text;not null;uniqueIndex:ux_tax_ledger_key,priority:3"`
	Source    Source       `gorm:"type:text;not null;uniqueIndex:ux_tax_ledger_key,priority:4"`

	BasisAmount decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	Rate        decimal.Decimal `gorm:"type:numeric(10,6);not null"`
	TaxAmount   decimal.Decimal `gorm:"type:numeric(20,2);not null"`

	SourceRefs []string `gorm:"-" json:"source_refs"`

	Remitted       bool       `gorm:"not null;default:false;index"`
	RemittanceDate *time.Time `gorm:""`
	ReceiptNumber  string     `gorm:"type:text"`

	ComputedBy    snowflake.ID `gorm:"not null"`
	ComputedAt    time.Time    `gorm:"not null"`
	TaxLawVersion string       `gorm:"type:text"`
	Notes         string       `gorm:"type:text"`
}

// TableName sets the database table name.
func (TaxLedgerRecord) TableName() string { return "tax_ledger_records" }

// TaxLedgerSourceRef is one contributing record id. The unique index
// makes re-adding the same ref a no-op.
type TaxLedgerSourceRef struct {
	RecordID snowflake.ID `gorm:"not null;uniqueIndex:ux_tax_ledger_refs,priority:1"`
	RefID    snowflake.ID `gorm:"not null;uniqueIndex:ux_tax_ledger_refs,priority:2"`
}

// TableName sets the database table name.
func (TaxLedgerSourceRef) TableName() string { return "tax_ledger_source_refs" }

// Key returns the aggregate key of the record.
func (r *TaxLedgerRecord) Key() Key {
	return Key{
		CompanyID: r.CompanyID,
		TaxType:   r.TaxType,
		Period:    r.Period,
		Source:    r.Source,
	}
}

// Key identifies one aggregate record.
type Key struct {
	CompanyID snowflake.ID
	TaxType   TaxType
	Period    string
	Source    Source
}

// Validate fails fast before any query.
func (k Key) Validate() error {
	if k.CompanyID == 0 {
		return ErrInvalidCompanyReference
	}
	if !k.TaxType.Valid() {
		return ErrInvalidTaxType
	}
	if k.Period == "" {
		return ErrInvalidPeriod
	}
	if !k.Source.Valid() {
		return ErrInvalidSource
	}
	return nil
}

// Filter narrows List projections.
type Filter struct {
	TaxType TaxType
	Period  string
	Source  Source
}
