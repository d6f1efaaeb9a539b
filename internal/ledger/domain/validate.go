package domain

import "github.com/shopspring/decimal"

// ValidateJournal checks that a proposed set of journal lines is
// postable: at least one line, a single company, known accounts,
// non-negative amounts, and debits equal to credits exactly. Amounts
// are compared as decimals, never floats, so kobo-level journals do not
// trip rounding false positives. No side effects.
func ValidateJournal(entries []LedgerEntry) error {
	if len(entries) == 0 {
		return ErrEmptyJournal
	}

	company := entries[0].CompanyID
	if company == 0 {
		return ErrInvalidCompany
	}

	debits := decimal.Zero
	credits := decimal.Zero
	for _, e := range entries {
		if e.CompanyID != company {
			return ErrMixedCompanies
		}
		if _, ok := e.Account.Category(); !ok {
			return ErrUnknownAccount
		}
		if e.Amount.IsNegative() {
			return ErrNegativeAmount
		}
		switch e.EntryType {
		case EntryTypeDebit:
			debits = debits.Add(e.Amount)
		case EntryTypeCredit:
			credits = credits.Add(e.Amount)
		default:
			return ErrInvalidEntryType
		}
	}

	if !debits.Equal(credits) {
		return ErrImbalancedJournal
	}
	return nil
}
