// Package errors defines the error taxonomy for the matching protocol and
// the single place where service errors become HTTP responses.
//
// Policy: errors affecting canonical Match/User state surface to the
// caller; errors confined to denormalized caches or notifications are
// absorbed, logged and left to maintenance jobs.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type Kind int

const (
	// KindValidation: missing or malformed input, nothing mutated.
	KindValidation Kind = iota + 1
	// KindAuthorization: caller is not allowed to touch the record.
	KindAuthorization
	// KindNotFound: referenced record does not exist.
	KindNotFound
	// KindConflict: composite-key creation race. Transient; the swipe
	// resolver handles it internally and callers should never see it.
	KindConflict
	// KindIntegrity: an expected related record is missing; flagged for a
	// reconciliation job.
	KindIntegrity
	// KindDelivery: notification dispatch failed. Never propagated to the
	// API caller.
	KindDelivery
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(msg string) error    { return &Error{Kind: KindValidation, Msg: msg} }
func Authorization(msg string) error { return &Error{Kind: KindAuthorization, Msg: msg} }
func NotFound(msg string) error      { return &Error{Kind: KindNotFound, Msg: msg} }
func Conflict(msg string) error      { return &Error{Kind: KindConflict, Msg: msg} }

func Integrity(msg string, err error) error {
	return &Error{Kind: KindIntegrity, Msg: msg, Err: err}
}

func Delivery(msg string, err error) error {
	return &Error{Kind: KindDelivery, Msg: msg, Err: err}
}

// IsKind reports whether err is a taxonomy error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return stderrors.As(err, &e) && e.Kind == kind
}

// Map converts service/repo errors into fiber errors with the right
// status code. Keeps handlers clean by centralizing the mapping.
func Map(err error) error {
	if err == nil {
		return nil
	}

	var e *Error
	if stderrors.As(err, &e) {
		switch e.Kind {
		case KindValidation:
			return fiber.NewError(fiber.StatusBadRequest, e.Msg)
		case KindAuthorization:
			return fiber.NewError(fiber.StatusForbidden, e.Msg)
		case KindNotFound:
			return fiber.NewError(fiber.StatusNotFound, e.Msg)
		case KindConflict:
			return fiber.NewError(fiber.StatusConflict, e.Msg)
		case KindIntegrity, KindDelivery:
			return fiber.NewError(fiber.StatusInternalServerError, e.Msg)
		}
	}

	switch {
	case stderrors.Is(err, gorm.ErrRecordNotFound):
		return fiber.NewError(fiber.StatusNotFound, "record not found")

	case stderrors.Is(err, context.DeadlineExceeded):
		return fiber.NewError(fiber.StatusRequestTimeout, "request timed out")

	case stderrors.Is(err, context.Canceled):
		return fiber.NewError(fiber.StatusRequestTimeout, "request was canceled")

	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
