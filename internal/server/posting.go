package server

import (
	"net/http"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func (s *Server) PostSale(c *gin.Context) {
	companyID, err := parseIDParam(c, "company_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	saleID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	release, ok := s.guardPosting(c, companyID, "sale", saleID)
	if !ok {
		return
	}
	defer release()

	journalID, err := s.postingSvc.PostSale(c.Request.Context(), companyID, saleID, actorID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"journal_id": journalID.String()})
}

func (s *Server) PostExpense(c *gin.Context) {
	companyID, err := parseIDParam(c, "company_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	expenseID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	release, ok := s.guardPosting(c, companyID, "expense", expenseID)
	if !ok {
		return
	}
	defer release()

	journalID, err := s.postingSvc.PostExpense(c.Request.Context(), companyID, expenseID, actorID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"journal_id": journalID.String()})
}

// guardPosting applies the per-company write budget and claims the
// per-document lock so concurrent replicas cannot race the unposted
// check. The returned release func is a no-op when limiting is off.
func (s *Server) guardPosting(c *gin.Context, companyID snowflake.ID, docType string, docID snowflake.ID) (func(), bool) {
	noop := func() {}
	if !s.limiter.Enabled() {
		return noop, true
	}
	ctx := c.Request.Context()

	res, err := s.limiter.AllowCompany(ctx, companyID.String())
	if err != nil {
		AbortWithError(c, err)
		return noop, false
	}
	if !res.Allowed {
		c.Header("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())+1))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
		return noop, false
	}

	releaseLock, acquired, err := s.limiter.LockDocument(ctx, companyID.String(), docType, docID.String())
	if err != nil {
		AbortWithError(c, err)
		return noop, false
	}
	if !acquired {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "posting_in_progress"})
		return noop, false
	}
	return func() { releaseLock(ctx) }, true
}
