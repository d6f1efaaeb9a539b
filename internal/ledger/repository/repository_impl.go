package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/kudibooks/kudibooks/internal/ledger/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type repository struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func NewRepository(p Params) ledgerdomain.Repository {
	return &repository{
		db:    p.DB,
		log:   p.Log.Named("ledger.repository"),
		genID: p.GenID,
	}
}

// AppendJournal persists all entries as one atomic unit. A shared
// journal id is assigned when the caller has not set one. On any write
// failure the transaction rolls back and no entries are retained.
func (r *repository) AppendJournal(ctx context.Context, entries []ledgerdomain.LedgerEntry) (snowflake.ID, error) {
	if err := ledgerdomain.ValidateJournal(entries); err != nil {
		return 0, err
	}

	journalID := entries[0].JournalID
	if journalID == 0 {
		journalID = r.genID.Generate()
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		for _, e := range entries {
			category, _ := e.Account.Category()
			createdAt := e.CreatedAt
			if createdAt.IsZero() {
				createdAt = now
			}
			if err := tx.WithContext(ctx).Exec(
				`INSERT INTO ledger_entries (
					id, company_id, journal_id, account, account_category,
					entry_type, amount, source, reference_id, description,
					created_by, created_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				r.genID.Generate(),
				e.CompanyID,
				journalID,
				string(e.Account),
				string(category),
				string(e.EntryType),
				e.Amount,
				string(e.Source),
				e.ReferenceID,
				e.Description,
				e.CreatedBy,
				createdAt,
			).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ledgerdomain.ErrPersistence, err)
	}

	r.log.Info("appended journal",
		zap.String("journal_id", journalID.String()),
		zap.String("company_id", entries[0].CompanyID.String()),
		zap.Int("lines", len(entries)),
	)
	return journalID, nil
}

// Update always fails. Committed ledger entries are immutable.
func (r *repository) Update(ctx context.Context, entry *ledgerdomain.LedgerEntry) error {
	return ledgerdomain.ErrImmutableLedger
}

// Delete always fails. Committed ledger entries are immutable.
func (r *repository) Delete(ctx context.Context, id snowflake.ID) error {
	return ledgerdomain.ErrImmutableLedger
}

func (r *repository) ListByCompany(ctx context.Context, companyID snowflake.ID, filter ledgerdomain.ListFilter) ([]ledgerdomain.LedgerEntry, error) {
	if companyID == 0 {
		return nil, ledgerdomain.ErrInvalidCompany
	}

	stmt := r.db.WithContext(ctx).
		Model(&ledgerdomain.LedgerEntry{}).
		Where("company_id = ?", companyID)

	if filter.Account != "" {
		stmt = stmt.Where("account = ?", string(filter.Account))
	}
	if filter.Source != "" {
		stmt = stmt.Where("source = ?", string(filter.Source))
	}
	if filter.From != nil {
		stmt = stmt.Where("created_at >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		stmt = stmt.Where("created_at < ?", filter.To.UTC())
	}

	var entries []ledgerdomain.LedgerEntry
	if err := stmt.Order("created_at ASC, id ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) ListByJournal(ctx context.Context, companyID, journalID snowflake.ID) ([]ledgerdomain.LedgerEntry, error) {
	if companyID == 0 {
		return nil, ledgerdomain.ErrInvalidCompany
	}

	var entries []ledgerdomain.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("company_id = ? AND journal_id = ?", companyID, journalID).
		Order("id ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// AccountBalances aggregates debit and credit totals per account up to
// asOf. The reporting caller applies the sign convention.
func (r *repository) AccountBalances(ctx context.Context, companyID snowflake.ID, asOf time.Time) ([]ledgerdomain.AccountBalance, error) {
	if companyID == 0 {
		return nil, ledgerdomain.ErrInvalidCompany
	}

	var balances []ledgerdomain.AccountBalance
	err := r.db.WithContext(ctx).Raw(
		`SELECT account,
			account_category AS category,
			COALESCE(SUM(CASE WHEN entry_type = 'debit' THEN amount ELSE 0 END), 0) AS debit_total,
			COALESCE(SUM(CASE WHEN entry_type = 'credit' THEN amount ELSE 0 END), 0) AS credit_total
		 FROM ledger_entries
		 WHERE company_id = ? AND created_at < ?
		 GROUP BY account, account_category
		 ORDER BY account ASC`,
		companyID,
		asOf.UTC(),
	).Scan(&balances).Error
	if err != nil {
		return nil, err
	}
	return balances, nil
}
