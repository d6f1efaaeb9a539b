package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// ListFilter narrows read projections over the ledger.
type ListFilter struct {
	Account Account
	Source  Source
	From    *time.Time
	To      *time.Time
}

// Repository is the append-only ledger store. Update and Delete exist
// only as guards: they fail unconditionally so accidental mutation is
// impossible rather than merely discouraged.
type Repository interface {
	AppendJournal(ctx context.Context, entries []LedgerEntry) (snowflake.ID, error)
	Update(ctx context.Context, entry *LedgerEntry) error
	Delete(ctx context.Context, id snowflake.ID) error

	ListByCompany(ctx context.Context, companyID snowflake.ID, filter ListFilter) ([]LedgerEntry, error)
	ListByJournal(ctx context.Context, companyID, journalID snowflake.ID) ([]LedgerEntry, error)
	AccountBalances(ctx context.Context, companyID snowflake.ID, asOf time.Time) ([]AccountBalance, error)
}
