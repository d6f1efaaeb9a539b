package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Audit carries the provenance fields stamped on every upsert.
type Audit struct {
	ComputedBy    snowflake.ID
	TaxLawVersion string
	Notes         string
}

// Accumulation is one expense's contribution to an aggregate.
type Accumulation struct {
	Key
	BasisDelta decimal.Decimal
	TaxDelta   decimal.Decimal
	Ref        snowflake.ID
	Audit      Audit
}

// PAYETotals summarizes un-remitted PAYE for a period.
type PAYETotals struct {
	Period     string          `json:"period"`
	TotalPAYE  decimal.Decimal `json:"total_paye"`
	EntryCount int             `json:"entry_count"`
}

// Repository is the mutable-by-upsert tax aggregate store. All writes
// go through these operations; direct field edits would bypass the
// accumulation invariant and are not exposed.
type Repository interface {
	// Replace recomputes-from-source semantics: the record for
	// rec's key is replaced wholesale, refs included. Safe to re-run.
	Replace(ctx context.Context, rec *TaxLedgerRecord) error

	// Accumulate adds acc's deltas to the keyed record with atomic
	// arithmetic at the store layer, creating the record when absent
	// and registering the contributing ref exactly once. NOT
	// idempotent per invocation: the caller must guarantee
	// at-most-once per contributing record.
	Accumulate(ctx context.Context, acc Accumulation) error

	// MarkAsRemitted flips every un-remitted PAYE record in the period.
	// Zero matches is success, not an error.
	MarkAsRemitted(ctx context.Context, companyID snowflake.ID, periodToken, receiptNumber string) (int64, error)

	List(ctx context.Context, companyID snowflake.ID, filter Filter) ([]TaxLedgerRecord, error)
	UnremittedPAYE(ctx context.Context, companyID snowflake.ID, periodToken string) (PAYETotals, error)
}
