package domain

import "errors"

var (
	ErrImbalancedJournal = errors.New("imbalanced_journal")
	ErrImmutableLedger   = errors.New("immutable_ledger")
	ErrEmptyJournal      = errors.New("empty_journal")
	ErrNegativeAmount    = errors.New("negative_amount")
	ErrUnknownAccount    = errors.New("unknown_account")
	ErrInvalidEntryType  = errors.New("invalid_entry_type")
	ErrMixedCompanies    = errors.New("mixed_companies")
	ErrInvalidCompany    = errors.New("invalid_company")
	ErrPersistence       = errors.New("persistence_failure")
)
