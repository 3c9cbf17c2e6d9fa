package handlers

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/CodeSyncr/collaborative-expense-tracker/internal/analytics"
	apperrors "github.com/CodeSyncr/collaborative-expense-tracker/internal/errors"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/ids"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/logger"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/middleware"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/session"
)

// getSession extracts the authenticated session from the Gin context.
// Returns ErrUnauthorized if not present.
func getSession(c *gin.Context) (session.Session, error) {
	if v, ok := c.Get(middleware.SessionKey); ok {
		if sess, ok := v.(session.Session); ok && !sess.IsZero() {
			return sess, nil
		}
	}
	if sess, ok := session.FromContext(c.Request.Context()); ok && !sess.IsZero() {
		return sess, nil
	}
	return session.Session{}, apperrors.ErrUnauthorized
}

// parsePathID validates a UUID path parameter.
// Returns ErrInvalidInput if the parameter is not a valid id.
func parsePathID(c *gin.Context, param string) (string, error) {
	id, err := ids.Parse(c.Param(param))
	if err != nil {
		return "", apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid "+param)
	}
	return id, nil
}

// PeriodQuery selects a month for monthly project summaries.
type PeriodQuery struct {
	Month int `form:"month" binding:"omitempty,min=1,max=12"`
	Year  int `form:"year" binding:"omitempty,min=1970,max=9999"`
}

// parsePeriod reads optional ?month=&year= query parameters. Both must be
// given together; nil means the current month.
func parsePeriod(c *gin.Context) (*analytics.Period, error) {
	var q PeriodQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
	}
	if q.Month == 0 && q.Year == 0 {
		return nil, nil
	}
	p, err := analytics.NewPeriod(q.Month, q.Year)
	if err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "month and year must be given together")
	}
	return &p, nil
}

// bindError turns a binding failure into an INVALID_INPUT error.
func bindError(err error) error {
	return apperrors.WithMessage(apperrors.ErrInvalidInput, strings.TrimSpace(err.Error()))
}

// respondWithError writes a consistent JSON error response. If the error is an
// *AppError it uses the error's status code, code, message and details.
// Otherwise it logs the unexpected error and returns a generic internal server error.
func respondWithError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Internal != nil {
			logger.Get().Errorw("app error",
				"code", appErr.Code,
				"internal", appErr.Internal.Error(),
				"path", c.Request.URL.Path,
			)
		}
		c.JSON(appErr.StatusCode, middleware.ErrorBody(appErr))
		return
	}

	logger.Get().Errorw("unexpected error",
		"error", err.Error(),
		"path", c.Request.URL.Path,
		"method", c.Request.Method,
	)
	c.JSON(apperrors.ErrInternalServer.StatusCode, middleware.ErrorBody(apperrors.ErrInternalServer))
}

// ErrorDetail represents the inner error object in an error response.
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}
