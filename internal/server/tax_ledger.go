package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	taxledgerdomain "github.com/kudibooks/kudibooks/internal/taxledger/domain"
	"github.com/kudibooks/kudibooks/pkg/period"
)

type listTaxLedgerQuery struct {
	TaxType string `form:"tax_type"`
	Period  string `form:"period"`
	Source  string `form:"source"`
}

func (s *Server) ListTaxLedger(c *gin.Context) {
	companyID, err := parseIDParam(c, "company_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var query listTaxLedgerQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	filter := taxledgerdomain.Filter{}
	if v := strings.TrimSpace(query.TaxType); v != "" {
		taxType := taxledgerdomain.TaxType(v)
		if !taxType.Valid() {
			AbortWithError(c, newValidationError("tax_type", "invalid_tax_type", "invalid tax_type"))
			return
		}
		filter.TaxType = taxType
	}
	if v := strings.TrimSpace(query.Period); v != "" {
		if _, err := period.Parse(v); err != nil {
			AbortWithError(c, newValidationError("period", "invalid_period", "invalid period"))
			return
		}
		filter.Period = v
	}
	if v := strings.TrimSpace(query.Source); v != "" {
		source := taxledgerdomain.Source(v)
		if !source.Valid() {
			AbortWithError(c, newValidationError("source", "invalid_source", "invalid source"))
			return
		}
		filter.Source = source
	}

	records, err := s.taxLedgerSvc.GetCompanyTaxLedger(c.Request.Context(), companyID, filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"records": records})
}
