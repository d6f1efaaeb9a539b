package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// WHTRate is one row of the statutory withholding rate schedule. The
// schedule is reference data maintained by migrations, not by users.
type WHTRate struct {
	Code        string          `json:"code" gorm:"type:text;primaryKey;column:code"`
	Description string          `json:"description" gorm:"type:text;not null"`
	Corporate   decimal.Decimal `json:"corporate_percent" gorm:"type:numeric(6,2);not null;column:corporate_percent"`
	Individual  decimal.Decimal `json:"individual_percent" gorm:"type:numeric(6,2);not null;column:individual_percent"`
	CreatedAt   time.Time       `json:"created_at,omitempty" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (WHTRate) TableName() string { return "wht_rates" }

// State is a Nigerian state for tax office addressing on remittance
// schedules.
type State struct {
	Code      string    `json:"code" gorm:"type:char(2);primaryKey;column:code"`
	Name      string    `json:"name" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at,omitempty" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (State) TableName() string { return "states" }
