package aggregates

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	domainagg "github.com/yungbote/studyplan-backend/internal/domain/aggregates"
)

// Sentinels for the rule-level failures raised inside write bodies. MapError turns
// them into coded domain errors once the transaction is over.
var (
	ErrValidation = errors.New("plan validation")
	ErrInvariant  = errors.New("plan invariant violation")
	ErrConflict   = errors.New("plan write conflict")
	ErrRetryable  = errors.New("plan write retryable")
	ErrPolicy     = errors.New("plan policy")
	ErrNotFound   = errors.New("plan entity not found")
)

var sentinelCodes = []struct {
	sentinel error
	code     domainagg.ErrorCode
}{
	{ErrPolicy, domainagg.CodePolicy},
	{ErrNotFound, domainagg.CodeNotFound},
	{ErrValidation, domainagg.CodeValidation},
	{ErrInvariant, domainagg.CodeInvariantViolation},
	{ErrConflict, domainagg.CodeConflict},
	{ErrRetryable, domainagg.CodeRetryable},
}

// kindError carries a learner-readable message and matches its sentinel under errors.Is.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string        { return e.msg }
func (e *kindError) Is(target error) bool { return target == e.kind }

func tagged(kind error, msg string) error {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		msg = kind.Error()
	}
	return &kindError{kind: kind, msg: msg}
}

func ValidationError(msg string) error { return tagged(ErrValidation, msg) }
func InvariantError(msg string) error  { return tagged(ErrInvariant, msg) }
func ConflictError(msg string) error   { return tagged(ErrConflict, msg) }
func RetryableError(msg string) error  { return tagged(ErrRetryable, msg) }
func PolicyError(msg string) error     { return tagged(ErrPolicy, msg) }
func NotFoundError(msg string) error   { return tagged(ErrNotFound, msg) }

// Postgres SQLSTATEs with a fixed mapping.
var pgCodes = map[string]domainagg.ErrorCode{
	"23505": domainagg.CodeConflict,           // unique_violation
	"23503": domainagg.CodePreconditionFailed, // foreign_key_violation
	"40001": domainagg.CodeRetryable,          // serialization_failure
	"40P01": domainagg.CodeRetryable,          // deadlock_detected
	"55P03": domainagg.CodeRetryable,          // lock_not_available
}

// SQLite reports these only as text.
var (
	conflictPhrases  = []string{"duplicate key", "already exists", "unique constraint failed"}
	retryablePhrases = []string{"deadlock", "serialization", "database is locked", "timeout", "temporar"}
)

// MapError assigns a domain error code to err. Errors that already carry a code pass
// through unchanged.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var coded *domainagg.Error
	if errors.As(err, &coded) {
		return coded
	}
	for _, sc := range sentinelCodes {
		if errors.Is(err, sc.sentinel) {
			return domainagg.Wrap(sc.code, op, err)
		}
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domainagg.Wrap(domainagg.CodeNotFound, op, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domainagg.Wrap(domainagg.CodeRetryable, op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if code, ok := pgCodes[strings.TrimSpace(pgErr.Code)]; ok {
			return domainagg.Wrap(code, op, err)
		}
	}

	msg := strings.ToLower(err.Error())
	if containsAny(msg, conflictPhrases) {
		return domainagg.Wrap(domainagg.CodeConflict, op, err)
	}
	if containsAny(msg, retryablePhrases) {
		return domainagg.Wrap(domainagg.CodeRetryable, op, err)
	}
	return domainagg.Wrap(domainagg.CodeInternal, op, err)
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
