package server

import (
	"encoding/csv"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kudibooks/kudibooks/pkg/period"
)

func (s *Server) MonthlyPAYE(c *gin.Context) {
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

	totals, err := s.remittanceSvc.GenerateMonthlyPAYE(c.Request.Context(), companyID, year, month)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, totals)
}

type remitPAYERequest struct {
	Period        string `json:"period"`
	ReceiptNumber string `json:"receipt_number"`
}

func (s *Server) RemitPAYE(c *gin.Context) {
	companyID, err := parseIDParam(c, "company_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req remitPAYERequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if _, err := period.Parse(strings.TrimSpace(req.Period)); err != nil {
		AbortWithError(c, newValidationError("period", "invalid_period", "invalid period"))
		return
	}
	if strings.TrimSpace(req.ReceiptNumber) == "" {
		AbortWithError(c, newValidationError("receipt_number", "invalid_receipt_number", "receipt number is required"))
		return
	}

	rows, err := s.remittanceSvc.MarkRemitted(c.Request.Context(), companyID, strings.TrimSpace(req.Period), strings.TrimSpace(req.ReceiptNumber), actorID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"records_marked": rows})
}

func (s *Server) ExportPAYE(c *gin.Context) {
	companyID, err := parseIDParam(c, "company_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	periodToken := strings.TrimSpace(c.Query("period"))
	if _, err := period.Parse(periodToken); err != nil {
		AbortWithError(c, newValidationError("period", "invalid_period", "invalid period"))
		return
	}

	rows, err := s.remittanceSvc.ExportRows(c.Request.Context(), companyID, periodToken)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="paye_`+periodToken+`.csv"`)
	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"employee_ref", "period", "tax_amount"})
	for _, row := range rows {
		_ = w.Write([]string{row.EmployeeRef, row.Period, row.TaxAmount.StringFixed(2)})
	}
	w.Flush()
}
