package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidCompany    = errors.New("invalid_company")
	ErrInvalidGross      = errors.New("invalid_gross")
	ErrInvalidUnit       = errors.New("invalid_unit")
	ErrInvalidTaxMode    = errors.New("invalid_tax_mode")
	ErrMissingCustomRate = errors.New("missing_custom_rate")
)

// Mode selects how PAYE is computed for a company.
type Mode string

const (
	// ModeStandardPAYE applies the statutory progressive band schedule.
	ModeStandardPAYE Mode = "STANDARD_PAYE"
	// ModeCustomPercent applies a flat company-chosen percentage of
	// gross, bypassing bands entirely. A policy branch, not a fallback.
	ModeCustomPercent Mode = "CUSTOM_PERCENT"
)

// TaxSettingsProfile is the per-company payroll tax configuration.
// Rates are percentages (2.5 means 2.5%). A default profile is created
// lazily on first read when a company has none.
type TaxSettingsProfile struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	CompanyID snowflake.ID `gorm:"not null;uniqueIndex"`

	Mode          Mode            `gorm:"type:text;not null"`
	CustomPercent decimal.Decimal `gorm:"type:numeric(6,2);not null"`

	PensionEmployeeRate decimal.Decimal `gorm:"type:numeric(6,2);not null"`
	PensionEmployerRate decimal.Decimal `gorm:"type:numeric(6,2);not null"`
	NHFRate             decimal.Decimal `gorm:"type:numeric(6,2);not null"`
	NHISEmployeeRate    decimal.Decimal `gorm:"type:numeric(6,2);not null"`
	NHISEmployerRate    decimal.Decimal `gorm:"type:numeric(6,2);not null"`
	NSITFRate           decimal.Decimal `gorm:"type:numeric(6,2);not null"`
	CRAReliefPercent    decimal.Decimal `gorm:"type:numeric(6,2);not null"`
	FixedAnnualRelief   decimal.Decimal `gorm:"type:numeric(20,2);not null"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (TaxSettingsProfile) TableName() string { return "tax_settings_profiles" }

// Repository stores settings profiles.
type Repository interface {
	// GetOrCreate returns the company's profile, persisting the default
	// profile when none exists yet.
	GetOrCreate(ctx context.Context, companyID snowflake.ID) (*TaxSettingsProfile, error)
	Update(ctx context.Context, profile *TaxSettingsProfile) error
}

// Breakdown is the full per-employee computation result returned to the
// CRUD layer, which persists it as a payroll record.
type Breakdown struct {
	Gross           decimal.Decimal `json:"gross"`
	NHF             decimal.Decimal `json:"nhf"`
	NHISEmployee    decimal.Decimal `json:"nhis_employee"`
	NHISEmployer    decimal.Decimal `json:"nhis_employer"`
	CRA             decimal.Decimal `json:"cra"`
	TaxableIncome   decimal.Decimal `json:"taxable_income"`
	PAYE            decimal.Decimal `json:"paye"`
	Pension         decimal.Decimal `json:"pension"`
	OtherDeductions decimal.Decimal `json:"other_deductions"`
	NetPay          decimal.Decimal `json:"net_pay"`
}

// Add returns the field-wise sum of two breakdowns, used to total a
// payroll run before it is recorded in the tax ledger.
func (b Breakdown) Add(o Breakdown) Breakdown {
	return Breakdown{
		Gross:           b.Gross.Add(o.Gross),
		NHF:             b.NHF.Add(o.NHF),
		NHISEmployee:    b.NHISEmployee.Add(o.NHISEmployee),
		NHISEmployer:    b.NHISEmployer.Add(o.NHISEmployer),
		CRA:             b.CRA.Add(o.CRA),
		TaxableIncome:   b.TaxableIncome.Add(o.TaxableIncome),
		PAYE:            b.PAYE.Add(o.PAYE),
		Pension:         b.Pension.Add(o.Pension),
		OtherDeductions: b.OtherDeductions.Add(o.OtherDeductions),
		NetPay:          b.NetPay.Add(o.NetPay),
	}
}

// Engine computes statutory payroll deductions. Pure computation, no
// persistence beyond reading the settings profile.
type Engine interface {
	ComputeAllTaxes(ctx context.Context, companyID snowflake.ID, gross, pension, otherDeductions decimal.Decimal) (Breakdown, error)
}
