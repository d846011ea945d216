package infra

import (
	"log/slog"

	"pixelgrid/internal/pkg/errs"
)

type RepositoryErrorKind string

type RepositoryError struct {
	Kind RepositoryErrorKind
	msg  string
	err  error // wrapped low-level error
}

func (e RepositoryError) Error() string {
	if e.err != nil {
		return string(e.Kind) + ": " + e.msg + ": " + e.err.Error()
	}
	return string(e.Kind) + ": " + e.msg
}

func (e RepositoryError) Unwrap() error {
	return e.err
}

// WrapRepoErr defaults to KindDBFailure. Only failures are logged; not-found and
// conflicts are ordinary outcomes for callers.
func WrapRepoErr(msg string, err error, kind ...RepositoryErrorKind) error {
	k := KindDBFailure
	if len(kind) > 0 {
		k = kind[0]
	}
	if k == KindDBFailure {
		args := []any{slog.String("kind", string(k))}
		if err != nil {
			args = append(args, slog.String("error", err.Error()))
		}
		slog.Error("Repository error: "+msg, args...)
	}
	if err != nil {
		err = errs.Wrap(err, msg)
	}
	return RepositoryError{Kind: k, msg: msg, err: err}
}

func IsKind(err error, kind RepositoryErrorKind) bool {
	var e RepositoryError
	if errs.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Infrastructure-specific error kinds
const (
	KindNotFound        RepositoryErrorKind = "NOT_FOUND"
	KindDBFailure       RepositoryErrorKind = "DB_FAILURE"
	KindDuplicateKey    RepositoryErrorKind = "DUPLICATE_KEY"
	KindVersionConflict RepositoryErrorKind = "VERSION_CONFLICT"
	KindCorruptDocument RepositoryErrorKind = "CORRUPT_DOCUMENT"
)
