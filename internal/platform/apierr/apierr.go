package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	domainagg "github.com/yungbote/studyplan-backend/internal/domain/aggregates"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// StatusFor maps an aggregate error code to an HTTP status.
func StatusFor(code domainagg.ErrorCode) int {
	switch code {
	case domainagg.CodeValidation:
		return http.StatusBadRequest
	case domainagg.CodeNotFound:
		return http.StatusNotFound
	case domainagg.CodePolicy, domainagg.CodeConflict:
		return http.StatusConflict
	case domainagg.CodePreconditionFailed:
		return http.StatusPreconditionFailed
	case domainagg.CodeRetryable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// From converts any service error into an API error. Aggregate errors keep their
// code and learner-facing message; anything else is reported as internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	var de *domainagg.Error
	if errors.As(err, &de) {
		msg := strings.TrimSpace(de.Message)
		if msg == "" || !de.Code.Public() {
			msg = http.StatusText(StatusFor(de.Code))
		}
		return New(StatusFor(de.Code), string(de.Code), errors.New(msg))
	}
	return New(http.StatusInternalServerError, string(domainagg.CodeInternal), errors.New("internal error"))
}
