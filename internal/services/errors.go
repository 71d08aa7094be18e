package services

import (
	"errors"
	"fmt"

	"recordsdesk/internal/repositories"
)

var (
	ErrForbidden    = errors.New("forbidden")
	ErrValidation   = errors.New("invalid input")
	ErrNoop         = errors.New("not applicable in current state")
	ErrNotFound     = errors.New("does not exist")
	ErrNoAllotment  = errors.New("no requests remaining")
	ErrDelivery     = errors.New("delivery failed")
	ErrTaskResolved = errors.New("task already resolved")
	ErrBadLogin     = errors.New("invalid username or password")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// notFound maps a repository miss onto ErrNotFound, naming what was looked up.
func notFound(err error, what string, id int64) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("%w: %s %d", ErrNotFound, what, id)
	}
	return err
}
