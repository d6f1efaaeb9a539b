package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/kudibooks/kudibooks/internal/actorctx"
)

func parseIDParam(c *gin.Context, name string) (snowflake.ID, error) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := snowflake.ParseString(raw)
	if err != nil || id == 0 {
		return 0, newValidationError(name, "invalid_"+name, "invalid "+name)
	}
	return id, nil
}

// actorID identifies the acting user for audit trails, as resolved by
// the identity middleware.
func actorID(c *gin.Context) snowflake.ID {
	id, _ := actorctx.ActorFromContext(c.Request.Context())
	return id
}

func parseYearMonth(c *gin.Context) (int, time.Month, error) {
	year, err := strconv.Atoi(strings.TrimSpace(c.Query("year")))
	if err != nil || year < 2000 || year > 2200 {
		return 0, 0, newValidationError("year", "invalid_year", "invalid year")
	}
	month, err := strconv.Atoi(strings.TrimSpace(c.Query("month")))
	if err != nil || month < 1 || month > 12 {
		return 0, 0, newValidationError("month", "invalid_month", "invalid month")
	}
	return year, time.Month(month), nil
}
