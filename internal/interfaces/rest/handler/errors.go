package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/speedread/internal/infrastructure/validate"
	"github.com/pot-code/speedread/internal/progress"
	"github.com/pot-code/speedread/internal/reading"
	"github.com/pot-code/speedread/internal/session"
	"github.com/pot-code/speedread/internal/user"
)

// RESTStandardError response error
type RESTStandardError struct {
	Type    string `json:"type,omitempty"`
	Code    int    `json:"code"`
	Title   string `json:"title"`
	Detail  string `json:"detail,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewRESTStandardError .
func NewRESTStandardError(code int, detail string) *RESTStandardError {
	return &RESTStandardError{
		Code:   code,
		Title:  http.StatusText(code),
		Detail: detail,
	}
}

func (re RESTStandardError) Error() string {
	return re.Detail
}

// SetTraceID .
func (re *RESTStandardError) SetTraceID(traceID string) *RESTStandardError {
	re.TraceID = traceID
	return re
}

// SetType machine readable error kind, eg.out_of_order_session
func (re *RESTStandardError) SetType(kind string) *RESTStandardError {
	re.Type = kind
	return re
}

// RESTValidationError standard validation error
type RESTValidationError struct {
	RESTStandardError
	InvalidParams []*validate.FieldError `json:"invalid_params"`
}

// NewRESTValidationError .
func NewRESTValidationError(code int, detail string, internal []*validate.FieldError) *RESTValidationError {
	return &RESTValidationError{
		RESTStandardError: RESTStandardError{
			Type:   "validation",
			Code:   code,
			Title:  http.StatusText(code),
			Detail: detail,
		},
		InvalidParams: internal,
	}
}

func (rve RESTValidationError) Error() string {
	return rve.Detail
}

// SetTraceID .
func (rve *RESTValidationError) SetTraceID(traceID string) *RESTValidationError {
	rve.RESTStandardError.TraceID = traceID
	return rve
}

// TraceID request id assigned by the RequestID middleware
func TraceID(c echo.Context) string {
	return c.Response().Header().Get(echo.HeaderXRequestID)
}

type domainError struct {
	err  error
	code int
	kind string
}

var domainErrors = []domainError{
	{reading.ErrInvalidDuration, http.StatusUnprocessableEntity, "invalid_duration"},
	{reading.ErrNoContent, http.StatusUnprocessableEntity, "no_content"},
	{reading.ErrImplausibleReading, http.StatusUnprocessableEntity, "implausible_reading"},
	{progress.ErrOutOfOrderSession, http.StatusConflict, "out_of_order_session"},
	{progress.ErrVersionConflict, http.StatusConflict, "version_conflict"},
	{session.ErrSessionNotFound, http.StatusNotFound, "session_not_found"},
	{user.ErrDuplicatedUser, http.StatusConflict, "duplicated_user"},
	{user.ErrNoSuchUser, http.StatusUnauthorized, "no_such_user"},
	{user.ErrUserTooManyRetry, http.StatusForbidden, "too_many_retry"},
}

// replyError writes the response of a known domain error, anything else is
// returned for the ErrorHandling middleware
func replyError(c echo.Context, err error) error {
	for _, de := range domainErrors {
		if errors.Is(err, de.err) {
			return c.JSON(de.code, NewRESTStandardError(de.code, err.Error()).SetType(de.kind).SetTraceID(TraceID(c)))
		}
	}
	return err
}

func replyValidation(c echo.Context, detail string, errs []*validate.FieldError) error {
	return c.JSON(http.StatusBadRequest,
		NewRESTValidationError(http.StatusBadRequest, detail, errs).SetTraceID(TraceID(c)))
}

func replyBindError(c echo.Context, err error) error {
	detail := err.Error()
	if he, ok := err.(*echo.HTTPError); ok && he.Internal != nil {
		detail = he.Internal.Error()
	}
	return c.JSON(http.StatusBadRequest,
		NewRESTStandardError(http.StatusBadRequest, "Failed to bind request: "+detail).SetType("bad_request").SetTraceID(TraceID(c)))
}
