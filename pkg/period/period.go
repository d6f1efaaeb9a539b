// Package period implements the tax period tokens used across the tax
// ledger: calendar months ("2024-03") and quarters ("2024-Q1").
package period

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidPeriod = errors.New("invalid_period")

// Period is a validated period token. The zero value is invalid.
type Period struct {
	year    int
	month   int // 1-12 when monthly, 0 when quarterly
	quarter int // 1-4 when quarterly, 0 when monthly
}

// Month returns the period for a calendar month.
func Month(year int, month time.Month) (Period, error) {
	if year < 1900 || year > 9999 || month < time.January || month > time.December {
		return Period{}, ErrInvalidPeriod
	}
	return Period{year: year, month: int(month)}, nil
}

// Quarter returns the period for a calendar quarter.
func Quarter(year, q int) (Period, error) {
	if year < 1900 || year > 9999 || q < 1 || q > 4 {
		return Period{}, ErrInvalidPeriod
	}
	return Period{year: year, quarter: q}, nil
}

// Parse accepts "YYYY-MM" and "YYYY-Qn" tokens.
func Parse(token string) (Period, error) {
	parts := strings.SplitN(strings.TrimSpace(token), "-", 2)
	if len(parts) != 2 || len(parts[0]) != 4 {
		return Period{}, ErrInvalidPeriod
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return Period{}, ErrInvalidPeriod
	}
	if strings.HasPrefix(parts[1], "Q") {
		q, err := strconv.Atoi(strings.TrimPrefix(parts[1], "Q"))
		if err != nil {
			return Period{}, ErrInvalidPeriod
		}
		return Quarter(year, q)
	}
	if len(parts[1]) != 2 {
		return Period{}, ErrInvalidPeriod
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return Period{}, ErrInvalidPeriod
	}
	return Month(year, time.Month(m))
}

// String renders the canonical token, e.g. "2024-03" or "2024-Q1".
func (p Period) String() string {
	if p.quarter != 0 {
		return fmt.Sprintf("%04d-Q%d", p.year, p.quarter)
	}
	return fmt.Sprintf("%04d-%02d", p.year, p.month)
}

// IsZero reports whether p is the invalid zero value.
func (p Period) IsZero() bool { return p.year == 0 }

// Year returns the calendar year.
func (p Period) Year() int { return p.year }

// IsQuarterly reports whether p is a quarter token.
func (p Period) IsQuarterly() bool { return p.quarter != 0 }

// Bounds returns the half-open UTC interval [start, end) covered by p.
func (p Period) Bounds() (start, end time.Time) {
	if p.quarter != 0 {
		start = time.Date(p.year, time.Month((p.quarter-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 3, 0)
	}
	start = time.Date(p.year, time.Month(p.month), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// Contains reports whether t falls within p.
func (p Period) Contains(t time.Time) bool {
	start, end := p.Bounds()
	t = t.UTC()
	return !t.Before(start) && t.Before(end)
}
