package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/kudibooks/kudibooks/internal/ledger/domain"
	"github.com/kudibooks/kudibooks/pkg/period"
	"github.com/shopspring/decimal"
)

type accountLine struct {
	Account ledgerdomain.Account `json:"account"`
	Amount  decimal.Decimal      `json:"amount"`
}

type balanceSheetResponse struct {
	AsOf             time.Time       `json:"as_of"`
	Assets           []accountLine   `json:"assets"`
	Liabilities      []accountLine   `json:"liabilities"`
	Equity           []accountLine   `json:"equity"`
	RetainedEarnings decimal.Decimal `json:"retained_earnings"`
	TotalAssets      decimal.Decimal `json:"total_assets"`
	TotalLiabilities decimal.Decimal `json:"total_liabilities"`
	TotalEquity      decimal.Decimal `json:"total_equity"`
}

// BalanceSheet projects the ledger into assets, liabilities and equity
// as of a point in time. Income and expense accounts fold into a
// retained earnings line so the statement balances without a closing
// process.
func (s *Server) BalanceSheet(c *gin.Context) {
	companyID, err := parseIDParam(c, "company_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	asOf, err := parseAsOf(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	balances, err := s.ledgerRepo.AccountBalances(c.Request.Context(), companyID, asOf)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := balanceSheetResponse{
		AsOf:             asOf,
		Assets:           []accountLine{},
		Liabilities:      []accountLine{},
		Equity:           []accountLine{},
		RetainedEarnings: decimal.Zero,
		TotalAssets:      decimal.Zero,
		TotalLiabilities: decimal.Zero,
		TotalEquity:      decimal.Zero,
	}
	for _, b := range balances {
		switch b.Category {
		case ledgerdomain.CategoryAsset:
			net := b.DebitTotal.Sub(b.CreditTotal)
			resp.Assets = append(resp.Assets, accountLine{Account: b.Account, Amount: net})
			resp.TotalAssets = resp.TotalAssets.Add(net)
		case ledgerdomain.CategoryLiability:
			net := b.CreditTotal.Sub(b.DebitTotal)
			resp.Liabilities = append(resp.Liabilities, accountLine{Account: b.Account, Amount: net})
			resp.TotalLiabilities = resp.TotalLiabilities.Add(net)
		case ledgerdomain.CategoryEquity:
			net := b.CreditTotal.Sub(b.DebitTotal)
			resp.Equity = append(resp.Equity, accountLine{Account: b.Account, Amount: net})
			resp.TotalEquity = resp.TotalEquity.Add(net)
		case ledgerdomain.CategoryIncome:
			resp.RetainedEarnings = resp.RetainedEarnings.Add(b.CreditTotal.Sub(b.DebitTotal))
		case ledgerdomain.CategoryExpense:
			resp.RetainedEarnings = resp.RetainedEarnings.Sub(b.DebitTotal.Sub(b.CreditTotal))
		}
	}
	resp.TotalEquity = resp.TotalEquity.Add(resp.RetainedEarnings)

	c.JSON(http.StatusOK, resp)
}

type profitAndLossResponse struct {
	From      time.Time       `json:"from"`
	To        time.Time       `json:"to"`
	Income    []accountLine   `json:"income"`
	Expenses  []accountLine   `json:"expenses"`
	NetProfit decimal.Decimal `json:"net_profit"`
}

func (s *Server) ProfitAndLoss(c *gin.Context) {
	companyID, err := parseIDParam(c, "company_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	from, to, err := parseRange(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	entries, err := s.ledgerRepo.ListByCompany(c.Request.Context(), companyID, ledgerdomain.ListFilter{From: &from, To: &to})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	income := map[ledgerdomain.Account]decimal.Decimal{}
	expenses := map[ledgerdomain.Account]decimal.Decimal{}
	for _, e := range entries {
		signed := e.Amount
		if e.EntryType == ledgerdomain.EntryTypeDebit {
			signed = signed.Neg()
		}
		switch e.AccountCategory {
		case ledgerdomain.CategoryIncome:
			income[e.Account] = income[e.Account].Add(signed)
		case ledgerdomain.CategoryExpense:
			expenses[e.Account] = expenses[e.Account].Sub(signed)
		}
	}

	resp := profitAndLossResponse{
		From:      from,
		To:        to,
		Income:    []accountLine{},
		Expenses:  []accountLine{},
		NetProfit: decimal.Zero,
	}
	for account, amount := range income {
		resp.Income = append(resp.Income, accountLine{Account: account, Amount: amount})
		resp.NetProfit = resp.NetProfit.Add(amount)
	}
	for account, amount := range expenses {
		resp.Expenses = append(resp.Expenses, accountLine{Account: account, Amount: amount})
		resp.NetProfit = resp.NetProfit.Sub(amount)
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) ListLedgerEntries(c *gin.Context) {
	companyID, err := parseIDParam(c, "company_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	filter := ledgerdomain.ListFilter{}
	if v := strings.TrimSpace(c.Query("account")); v != "" {
		account := ledgerdomain.Account(v)
		if _, ok := account.Category(); !ok {
			AbortWithError(c, newValidationError("account", "invalid_account", "invalid account"))
			return
		}
		filter.Account = account
	}
	if v := strings.TrimSpace(c.Query("source")); v != "" {
		filter.Source = ledgerdomain.Source(v)
	}
	if v := strings.TrimSpace(c.Query("period")); v != "" {
		p, err := period.Parse(v)
		if err != nil {
			AbortWithError(c, newValidationError("period", "invalid_period", "invalid period"))
			return
		}
		from, to := p.Bounds()
		filter.From = &from
		filter.To = &to
	}

	entries, err := s.ledgerRepo.ListByCompany(c.Request.Context(), companyID, filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (s *Server) CITSummary(c *gin.Context) {
	companyID, err := parseIDParam(c, "company_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	year, month, err := parseYearMonth(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	summary, err := s.companyTax.CalculateCIT(c.Request.Context(), companyID, year, month, decimal.NewFromFloat(0.30))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	banded := s.companyTax.ComputeCITAndTET(summary.NetProfit, summary.TotalIncome)

	c.JSON(http.StatusOK, gin.H{
		"summary":    summary,
		"cit_banded": banded,
	})
}

func parseAsOf(c *gin.Context) (time.Time, error) {
	raw := strings.TrimSpace(c.Query("as_of"))
	if raw == "" {
		return time.Now().UTC(), nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, newValidationError("as_of", "invalid_as_of", "invalid as_of")
}

func parseRange(c *gin.Context) (time.Time, time.Time, error) {
	if v := strings.TrimSpace(c.Query("period")); v != "" {
		p, err := period.Parse(v)
		if err != nil {
			return time.Time{}, time.Time{}, newValidationError("period", "invalid_period", "invalid period")
		}
		from, to := p.Bounds()
		return from, to, nil
	}

	parse := func(name string) (time.Time, error) {
		raw := strings.TrimSpace(c.Query(name))
		if raw == "" {
			return time.Time{}, newValidationError(name, "invalid_"+name, name+" is required")
		}
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, newValidationError(name, "invalid_"+name, "invalid "+name)
	}
	from, err := parse("from")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parse("to")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}
