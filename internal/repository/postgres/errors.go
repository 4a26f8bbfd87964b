package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/lib/pq"

	"github.com/jwalitptl/telehealth-admin/internal/repository"
)

// translate maps a driver error onto a repository code.
func translate(op, collection, id string, err error) error {
	if err == nil {
		return nil
	}
	return repository.NewError(codeOf(err), op, collection, id, err)
}

func codeOf(err error) repository.Code {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return repository.CodeNotFound
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return repository.CodeDeadlineExceeded
	case errors.Is(err, sql.ErrConnDone):
		return repository.CodeUnavailable
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return repository.CodeUnknown
	}
	code := string(pqErr.Code)
	switch {
	case code == "42501", strings.HasPrefix(code, "28"):
		return repository.CodePermissionDenied
	case code == "23505":
		return repository.CodeAlreadyExists
	case code == "57014":
		return repository.CodeDeadlineExceeded
	case code == "57P01", strings.HasPrefix(code, "08"):
		return repository.CodeUnavailable
	case strings.HasPrefix(code, "53"):
		return repository.CodeResourceExhausted
	case strings.HasPrefix(code, "22"):
		return repository.CodeInvalidArgument
	}
	return repository.CodeUnknown
}
