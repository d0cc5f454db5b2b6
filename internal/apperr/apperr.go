// Package apperr classifies domain failures so handlers can map them to HTTP
// outcomes without knowing which service produced them.
package apperr

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindStateConflict
	KindPermission
	KindNotFound
	KindExternalDependency
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindStateConflict:
		return "state_conflict"
	case KindPermission:
		return "permission"
	case KindNotFound:
		return "not_found"
	case KindExternalDependency:
		return "external_dependency"
	default:
		return "internal"
	}
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Msg != "" {
		return e.Msg + ": " + e.Err.Error()
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func StateConflict(format string, args ...any) error {
	return &Error{Kind: KindStateConflict, Msg: fmt.Sprintf(format, args...)}
}

func Permission(format string, args ...any) error {
	return &Error{Kind: KindPermission, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func External(msg string, err error) error {
	return &Error{Kind: KindExternalDependency, Msg: msg, Err: err}
}

// KindOf reports the classification of err; unclassified errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// NotFoundIfNoRows converts pgx.ErrNoRows into a NotFound error and passes
// everything else through.
func NotFoundIfNoRows(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return NotFound("%s not found", what)
	}
	return err
}

func Status(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return fiber.StatusBadRequest
	case KindStateConflict:
		return fiber.StatusConflict
	case KindPermission:
		return fiber.StatusForbidden
	case KindNotFound:
		return fiber.StatusNotFound
	case KindExternalDependency:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// ToFiber renders err as a fiber error with the mapped status.
func ToFiber(err error) error {
	return fiber.NewError(Status(err), err.Error())
}
