package e2e

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	saledomain "github.com/kudibooks/kudibooks/internal/sale/domain"
	taxledgerdomain "github.com/kudibooks/kudibooks/internal/taxledger/domain"
	"github.com/shopspring/decimal"
)

func TestE2E_HealthCheck(t *testing.T) {
	resp, err := http.Get(env.baseURL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
}

func TestE2E_SalePostingFlow(t *testing.T) {
	resetDatabase(t, env.db)

	company := snowflake.ID(100)
	sale := saledomain.Sale{
		ID:          1001,
		CompanyID:   company,
		Items:       []saledomain.SaleItem{},
		Subtotal:    decimal.NewFromInt(100000),
		VATAmount:   decimal.NewFromInt(7500),
		TotalAmount: decimal.NewFromInt(107500),
		CreatedBy:   7,
		CreatedAt:   time.Date(2025, time.May, 10, 0, 0, 0, 0, time.UTC),
	}
	if err := env.db.Create(&sale).Error; err != nil {
		t.Fatalf("seed sale: %v", err)
	}

	postURL := fmt.Sprintf("%s/api/companies/%d/sales/%d/post", env.baseURL, company, sale.ID)
	resp, body := doJSON(t, http.MethodPost, postURL, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 posting sale, got %d: %s", resp.StatusCode, string(body))
	}
	var posted struct {
		JournalID string `json:"journal_id"`
	}
	if err := json.Unmarshal(body, &posted); err != nil || posted.JournalID == "" {
		t.Fatalf("expected journal id in response, got %s", string(body))
	}

	var lines int64
	if err := env.db.Raw(`SELECT COUNT(*) FROM ledger_entries WHERE company_id = ?`, company).Scan(&lines).Error; err != nil {
		t.Fatalf("count ledger entries: %v", err)
	}
	if lines != 3 {
		t.Fatalf("expected 3 journal lines, got %d", lines)
	}

	// The VAT aggregate follows the posting inline.
	ledgerURL := fmt.Sprintf("%s/api/companies/%d/tax-ledger?tax_type=VAT&period=2025-05", env.baseURL, company)
	resp, body = doJSON(t, http.MethodGet, ledgerURL, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 listing tax ledger, got %d: %s", resp.StatusCode, string(body))
	}
	var listing struct {
		Records []taxledgerdomain.TaxLedgerRecord `json:"records"`
	}
	if err := json.Unmarshal(body, &listing); err != nil {
		t.Fatalf("decode tax ledger: %v", err)
	}
	if len(listing.Records) != 1 {
		t.Fatalf("expected 1 VAT record, got %d", len(listing.Records))
	}
	if !listing.Records[0].TaxAmount.Equal(decimal.NewFromInt(7500)) {
		t.Fatalf("expected VAT 7500, got %s", listing.Records[0].TaxAmount)
	}

	// Posting again must refuse.
	resp, _ = doJSON(t, http.MethodPost, postURL, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 reposting sale, got %d", resp.StatusCode)
	}
}

func TestE2E_PayrollComputeAndSettings(t *testing.T) {
	resetDatabase(t, env.db)

	company := snowflake.ID(101)
	computeURL := fmt.Sprintf("%s/api/companies/%d/payroll/compute", env.baseURL, company)
	resp, body := doJSON(t, http.MethodPost, computeURL, map[string]any{
		"gross": "100000",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 computing payroll, got %d: %s", resp.StatusCode, string(body))
	}
	var breakdown struct {
		PAYE   decimal.Decimal `json:"paye"`
		NetPay decimal.Decimal `json:"net_pay"`
	}
	if err := json.Unmarshal(body, &breakdown); err != nil {
		t.Fatalf("decode breakdown: %v", err)
	}
	if !breakdown.PAYE.Equal(decimal.NewFromInt(7875)) {
		t.Fatalf("expected standard PAYE 7875, got %s", breakdown.PAYE)
	}

	// Mode tokens are canonical; lowercase is rejected.
	settingsURL := fmt.Sprintf("%s/api/companies/%d/tax-settings", env.baseURL, company)
	resp, _ = doJSON(t, http.MethodPut, settingsURL, map[string]any{
		"mode": "custom_percent",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for lowercase mode, got %d", resp.StatusCode)
	}

	// Switching to a custom flat rate changes the computation.
	resp, body = doJSON(t, http.MethodPut, settingsURL, map[string]any{
		"mode":           "CUSTOM_PERCENT",
		"custom_percent": "5",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 updating settings, got %d: %s", resp.StatusCode, string(body))
	}

	resp, body = doJSON(t, http.MethodPost, computeURL, map[string]any{
		"gross": "100000",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 recomputing payroll, got %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, &breakdown); err != nil {
		t.Fatalf("decode breakdown: %v", err)
	}
	if !breakdown.PAYE.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("expected custom PAYE 5000, got %s", breakdown.PAYE)
	}
}

func TestE2E_PayrollRunFeedsRemittance(t *testing.T) {
	resetDatabase(t, env.db)

	company := snowflake.ID(104)
	runURL := fmt.Sprintf("%s/api/companies/%d/payroll/runs", env.baseURL, company)
	runPayload := map[string]any{
		"period": "2025-06",
		"employees": []map[string]any{
			{"employee_id": "901", "gross": "100000"},
			{"employee_id": "902", "gross": "100000"},
		},
	}
	resp, body := doJSON(t, http.MethodPost, runURL, runPayload)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 recording run, got %d: %s", resp.StatusCode, string(body))
	}
	var run struct {
		Employees int `json:"employees"`
		Totals    struct {
			PAYE decimal.Decimal `json:"paye"`
		} `json:"totals"`
	}
	if err := json.Unmarshal(body, &run); err != nil {
		t.Fatalf("decode run response: %v", err)
	}
	if run.Employees != 2 || !run.Totals.PAYE.Equal(decimal.NewFromInt(15750)) {
		t.Fatalf("expected 2 employees with PAYE 15750, got %s", string(body))
	}

	// The run feeds the remittance read side directly.
	monthlyURL := fmt.Sprintf("%s/api/companies/%d/paye/monthly?year=2025&month=6", env.baseURL, company)
	resp, body = doJSON(t, http.MethodGet, monthlyURL, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for monthly paye, got %d: %s", resp.StatusCode, string(body))
	}
	var totals taxledgerdomain.PAYETotals
	if err := json.Unmarshal(body, &totals); err != nil {
		t.Fatalf("decode totals: %v", err)
	}
	if !totals.TotalPAYE.Equal(decimal.NewFromInt(15750)) {
		t.Fatalf("expected outstanding PAYE 15750, got %s", totals.TotalPAYE)
	}
	if totals.EntryCount != 2 {
		t.Fatalf("expected 2 contributing records, got %d", totals.EntryCount)
	}

	// Re-running the corrected period replaces, never doubles.
	resp, _ = doJSON(t, http.MethodPost, runURL, runPayload)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 re-recording run, got %d", resp.StatusCode)
	}
	resp, body = doJSON(t, http.MethodGet, monthlyURL, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for monthly paye, got %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, &totals); err != nil {
		t.Fatalf("decode totals: %v", err)
	}
	if !totals.TotalPAYE.Equal(decimal.NewFromInt(15750)) || totals.EntryCount != 2 {
		t.Fatalf("expected unchanged totals after re-run, got %s / %d", totals.TotalPAYE, totals.EntryCount)
	}

	// An empty run is rejected before anything is written.
	resp, _ = doJSON(t, http.MethodPost, runURL, map[string]any{"period": "2025-06", "employees": []map[string]any{}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty run, got %d", resp.StatusCode)
	}
}

func TestE2E_PAYERemittanceFlow(t *testing.T) {
	resetDatabase(t, env.db)

	company := snowflake.ID(102)
	record := taxledgerdomain.TaxLedgerRecord{
		ID:            5001,
		CompanyID:     company,
		TaxType:       taxledgerdomain.TaxTypePAYE,
		Period:        "2025-05",
		Source:        taxledgerdomain.SourcePayroll,
		BasisAmount:   decimal.NewFromInt(725000),
		Rate:          decimal.RequireFromString("0.108621"),
		TaxAmount:     decimal.NewFromInt(78750),
		ComputedBy:    7,
		ComputedAt:    time.Now().UTC(),
		TaxLawVersion: "NG-2024",
	}
	if err := env.db.Create(&record).Error; err != nil {
		t.Fatalf("seed tax ledger record: %v", err)
	}
	refs := []taxledgerdomain.TaxLedgerSourceRef{
		{RecordID: record.ID, RefID: 9001},
		{RecordID: record.ID, RefID: 9002},
	}
	if err := env.db.Create(&refs).Error; err != nil {
		t.Fatalf("seed source refs: %v", err)
	}

	monthlyURL := fmt.Sprintf("%s/api/companies/%d/paye/monthly?year=2025&month=5", env.baseURL, company)
	resp, body := doJSON(t, http.MethodGet, monthlyURL, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for monthly paye, got %d: %s", resp.StatusCode, string(body))
	}
	var totals taxledgerdomain.PAYETotals
	if err := json.Unmarshal(body, &totals); err != nil {
		t.Fatalf("decode totals: %v", err)
	}
	if !totals.TotalPAYE.Equal(decimal.NewFromInt(78750)) {
		t.Fatalf("expected outstanding PAYE 78750, got %s", totals.TotalPAYE)
	}

	remitURL := fmt.Sprintf("%s/api/companies/%d/paye/remit", env.baseURL, company)
	resp, body = doJSON(t, http.MethodPost, remitURL, map[string]any{
		"period":         "2025-05",
		"receipt_number": "FIRS-2025-0001",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 remitting, got %d: %s", resp.StatusCode, string(body))
	}
	var remitted struct {
		RecordsMarked int64 `json:"records_marked"`
	}
	if err := json.Unmarshal(body, &remitted); err != nil || remitted.RecordsMarked != 1 {
		t.Fatalf("expected 1 record marked, got %s", string(body))
	}

	exportURL := fmt.Sprintf("%s/api/companies/%d/paye/export?period=2025-05", env.baseURL, company)
	resp, body = doJSON(t, http.MethodGet, exportURL, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 exporting, got %d: %s", resp.StatusCode, string(body))
	}
	csv := string(body)
	if !strings.Contains(csv, "employee_ref,period,tax_amount") {
		t.Fatalf("expected csv header, got %s", csv)
	}
	if !strings.Contains(csv, "2025-05") || !strings.Contains(csv, "78750") {
		t.Fatalf("expected exported row, got %s", csv)
	}
}

func TestE2E_ReferenceData(t *testing.T) {
	resp, body := doJSON(t, http.MethodGet, env.baseURL+"/api/reference/wht-rates", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for wht rates, got %d: %s", resp.StatusCode, string(body))
	}
	var rates struct {
		WHTRates []struct {
			Code string `json:"code"`
		} `json:"wht_rates"`
	}
	if err := json.Unmarshal(body, &rates); err != nil {
		t.Fatalf("decode wht rates: %v", err)
	}
	if len(rates.WHTRates) == 0 {
		t.Fatalf("expected seeded wht rates")
	}
}
