package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	expensedomain "github.com/kudibooks/kudibooks/internal/expense/domain"
	ledgerdomain "github.com/kudibooks/kudibooks/internal/ledger/domain"
	postingdomain "github.com/kudibooks/kudibooks/internal/posting/domain"
	saledomain "github.com/kudibooks/kudibooks/internal/sale/domain"
	taxledgerdomain "github.com/kudibooks/kudibooks/internal/taxledger/domain"
	"github.com/kudibooks/kudibooks/pkg/period"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := err.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: "invalid value",
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, postingdomain.ErrSaleAlreadyPosted),
		errors.Is(err, postingdomain.ErrExpenseAlreadyPosted),
		errors.Is(err, postingdomain.ErrExpenseNotApproved):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ledgerdomain.ErrImmutableLedger):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "ledger entries are immutable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, period.ErrInvalidPeriod),
		errors.Is(err, ledgerdomain.ErrImbalancedJournal),
		errors.Is(err, ledgerdomain.ErrEmptyJournal),
		errors.Is(err, ledgerdomain.ErrNegativeAmount),
		errors.Is(err, ledgerdomain.ErrUnknownAccount),
		errors.Is(err, ledgerdomain.ErrInvalidEntryType),
		errors.Is(err, ledgerdomain.ErrInvalidCompany),
		errors.Is(err, saledomain.ErrInvalidCompany),
		errors.Is(err, expensedomain.ErrInvalidCompany),
		errors.Is(err, taxledgerdomain.ErrInvalidCompanyReference),
		errors.Is(err, taxledgerdomain.ErrInvalidTaxType),
		errors.Is(err, taxledgerdomain.ErrInvalidPeriod),
		errors.Is(err, taxledgerdomain.ErrInvalidSource):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, saledomain.ErrSaleNotFound),
		errors.Is(err, saledomain.ErrProductNotFound),
		errors.Is(err, expensedomain.ErrExpenseNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorField(code string) string {
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}
