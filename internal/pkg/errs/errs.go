package errs

import (
	"fmt"
	"strings"

	cr "github.com/cockroachdb/errors"
)

func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return cr.Wrap(err, msg)
}

func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return cr.Wrapf(err, format, args...)
}

func New(msg string) error {
	return cr.New(msg)
}

func Newf(format string, args ...any) error {
	return cr.Newf(format, args...)
}

// Mark tags err so that errors.Is(err, markErr) holds without changing its message.
func Mark(err error, markErr error) error {
	if err == nil {
		return markErr
	}
	return cr.Mark(err, markErr)
}

// Is also sees marks added by Mark, which the standard library does not.
func Is(err, target error) bool {
	return cr.Is(err, target)
}

func As(err error, target any) bool {
	return cr.As(err, target)
}

func WithHint(err error, hint string) error {
	return cr.WithHint(err, hint)
}

// Hints returns the user-facing hints attached anywhere in the chain.
func Hints(err error) []string {
	return cr.GetAllHints(err)
}

func ExtractStackLines(err error, maxLines int) []string {
	if err == nil {
		return nil
	}
	s := fmt.Sprintf("%+v", err)
	lines := strings.Split(s, "\n")
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	return lines
}
