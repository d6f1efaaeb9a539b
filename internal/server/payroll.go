package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	payrolldomain "github.com/kudibooks/kudibooks/internal/payrolltax/domain"
	taxledgerdomain "github.com/kudibooks/kudibooks/internal/taxledger/domain"
	"github.com/kudibooks/kudibooks/pkg/period"
	"github.com/shopspring/decimal"
)

type computePayrollRequest struct {
	Gross           decimal.Decimal `json:"gross"`
	Pension         decimal.Decimal `json:"pension"`
	OtherDeductions decimal.Decimal `json:"other_deductions"`
}

func (s *Server) ComputePayroll(c *gin.Context) {
	companyID, err := parseIDParam(c, "company_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req computePayrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.Gross.IsNegative() || req.Pension.IsNegative() || req.OtherDeductions.IsNegative() {
		AbortWithError(c, newValidationError("gross", "invalid_amount", "amounts must not be negative"))
		return
	}

	breakdown, err := s.payrollEngine.ComputeAllTaxes(c.Request.Context(), companyID, req.Gross, req.Pension, req.OtherDeductions)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, breakdown)
}

type payrollRunEmployee struct {
	EmployeeID      snowflake.ID    `json:"employee_id"`
	Gross           decimal.Decimal `json:"gross"`
	Pension         decimal.Decimal `json:"pension"`
	OtherDeductions decimal.Decimal `json:"other_deductions"`
}

type recordPayrollRunRequest struct {
	Period    string               `json:"period"`
	Employees []payrollRunEmployee `json:"employees"`
}

// RecordPayrollRun computes the breakdown for every employee in the
// run, sums it, and writes the payroll-sourced tax aggregates for the
// period. Replace semantics downstream keep re-running a corrected run
// idempotent.
func (s *Server) RecordPayrollRun(c *gin.Context) {
	companyID, err := parseIDParam(c, "company_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req recordPayrollRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if _, err := period.Parse(strings.TrimSpace(req.Period)); err != nil {
		AbortWithError(c, newValidationError("period", "invalid_period", "invalid period"))
		return
	}
	if len(req.Employees) == 0 {
		AbortWithError(c, newValidationError("employees", "invalid_employees", "at least one employee is required"))
		return
	}

	var totals payrolldomain.Breakdown
	refs := make([]snowflake.ID, 0, len(req.Employees))
	breakdowns := make([]payrolldomain.Breakdown, 0, len(req.Employees))
	for _, emp := range req.Employees {
		if emp.EmployeeID == 0 {
			AbortWithError(c, newValidationError("employee_id", "invalid_employee_id", "employee id is required"))
			return
		}
		if emp.Gross.IsNegative() || emp.Pension.IsNegative() || emp.OtherDeductions.IsNegative() {
			AbortWithError(c, newValidationError("gross", "invalid_amount", "amounts must not be negative"))
			return
		}

		breakdown, err := s.payrollEngine.ComputeAllTaxes(c.Request.Context(), companyID, emp.Gross, emp.Pension, emp.OtherDeductions)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		totals = totals.Add(breakdown)
		refs = append(refs, emp.EmployeeID)
		breakdowns = append(breakdowns, breakdown)
	}

	runTotals := taxledgerdomain.PayrollRunTotals{GrossTotal: totals, PayrollRefs: refs}
	if err := s.taxLedgerSvc.RecordPayrollTaxes(c.Request.Context(), companyID, strings.TrimSpace(req.Period), runTotals, actorID(c)); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"period":     strings.TrimSpace(req.Period),
		"employees":  len(req.Employees),
		"totals":     totals,
		"breakdowns": breakdowns,
	})
}

func (s *Server) GetTaxSettings(c *gin.Context) {
	companyID, err := parseIDParam(c, "company_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	profile, err := s.payrollRepo.GetOrCreate(c.Request.Context(), companyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

type updateTaxSettingsRequest struct {
	Mode          string           `json:"mode"`
	CustomPercent *decimal.Decimal `json:"custom_percent"`

	PensionEmployeeRate *decimal.Decimal `json:"pension_employee_rate"`
	PensionEmployerRate *decimal.Decimal `json:"pension_employer_rate"`
	NHFRate             *decimal.Decimal `json:"nhf_rate"`
	NHISEmployeeRate    *decimal.Decimal `json:"nhis_employee_rate"`
	NHISEmployerRate    *decimal.Decimal `json:"nhis_employer_rate"`
	NSITFRate           *decimal.Decimal `json:"nsitf_rate"`
	CRAReliefPercent    *decimal.Decimal `json:"cra_relief_percent"`
	FixedAnnualRelief   *decimal.Decimal `json:"fixed_annual_relief"`
}

func (s *Server) UpdateTaxSettings(c *gin.Context) {
	companyID, err := parseIDParam(c, "company_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req updateTaxSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	profile, err := s.payrollRepo.GetOrCreate(c.Request.Context(), companyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if req.Mode != "" {
		mode := payrolldomain.Mode(req.Mode)
		if mode != payrolldomain.ModeStandardPAYE && mode != payrolldomain.ModeCustomPercent {
			AbortWithError(c, newValidationError("mode", "invalid_tax_mode", "invalid mode"))
			return
		}
		profile.Mode = mode
	}
	applyRate := func(dst *decimal.Decimal, src *decimal.Decimal, field string) error {
		if src == nil {
			return nil
		}
		if src.IsNegative() || src.GreaterThan(decimal.NewFromInt(100)) {
			return newValidationError(field, "invalid_rate", "rate must be between 0 and 100")
		}
		*dst = *src
		return nil
	}
	for _, r := range []struct {
		dst   *decimal.Decimal
		src   *decimal.Decimal
		field string
	}{
		{&profile.CustomPercent, req.CustomPercent, "custom_percent"},
		{&profile.PensionEmployeeRate, req.PensionEmployeeRate, "pension_employee_rate"},
		{&profile.PensionEmployerRate, req.PensionEmployerRate, "pension_employer_rate"},
		{&profile.NHFRate, req.NHFRate, "nhf_rate"},
		{&profile.NHISEmployeeRate, req.NHISEmployeeRate, "nhis_employee_rate"},
		{&profile.NHISEmployerRate, req.NHISEmployerRate, "nhis_employer_rate"},
		{&profile.NSITFRate, req.NSITFRate, "nsitf_rate"},
		{&profile.CRAReliefPercent, req.CRAReliefPercent, "cra_relief_percent"},
	} {
		if err := applyRate(r.dst, r.src, r.field); err != nil {
			AbortWithError(c, err)
			return
		}
	}
	if req.FixedAnnualRelief != nil {
		if req.FixedAnnualRelief.IsNegative() {
			AbortWithError(c, newValidationError("fixed_annual_relief", "invalid_amount", "amount must not be negative"))
			return
		}
		profile.FixedAnnualRelief = *req.FixedAnnualRelief
	}

	if err := s.payrollRepo.Update(c.Request.Context(), profile); err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		target := profile.ID.String()
		_ = s.auditSvc.AuditLog(c.Request.Context(), companyID, actorID(c), "tax_settings.updated", "tax_settings_profile", &target, map[string]any{
			"mode": string(profile.Mode),
		})
	}

	c.JSON(http.StatusOK, profile)
}
