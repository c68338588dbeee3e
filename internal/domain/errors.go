package domain

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Kind string

const (
	KindValidation          Kind = "validation_error"
	KindNotFound            Kind = "not_found"
	KindAuthentication      Kind = "unauthenticated"
	KindForbidden           Kind = "forbidden"
	KindSignature           Kind = "invalid_signature"
	KindGateway             Kind = "gateway_error"
	KindPersistence         Kind = "persistence_error"
	KindConflict            Kind = "conflict"
	KindPaymentNotCompleted Kind = "payment_not_completed"
)

// Error is the application error shared by services and the HTTP layer.
// Message is safe to show to the caller, Err is for logs only.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Sentinels for errors.Is comparisons by kind.
var (
	ErrValidation          = &Error{Kind: KindValidation}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrAuthentication      = &Error{Kind: KindAuthentication}
	ErrForbidden           = &Error{Kind: KindForbidden}
	ErrSignature           = &Error{Kind: KindSignature}
	ErrGateway             = &Error{Kind: KindGateway}
	ErrPersistence         = &Error{Kind: KindPersistence}
	ErrConflict            = &Error{Kind: KindConflict}
	ErrPaymentNotCompleted = &Error{Kind: KindPaymentNotCompleted}
)

// ErrIllegalTransition is wrapped by validation errors about order status moves.
var ErrIllegalTransition = errors.New("illegal_transition")

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind when target is a bare sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Message != "" || t.Err != nil {
		return e == t
	}
	return e.Kind == t.Kind
}

// GRPCStatus lets status.FromError classify application errors.
func (e *Error) GRPCStatus() *status.Status {
	return status.New(e.Code(), e.PublicMessage())
}

func (e *Error) Code() codes.Code {
	switch e.Kind {
	case KindValidation, KindSignature:
		return codes.InvalidArgument
	case KindNotFound:
		return codes.NotFound
	case KindAuthentication:
		return codes.Unauthenticated
	case KindForbidden:
		return codes.PermissionDenied
	case KindGateway:
		return codes.Unavailable
	case KindConflict:
		return codes.Aborted
	case KindPaymentNotCompleted:
		return codes.FailedPrecondition
	case KindPersistence:
		return codes.DataLoss
	default:
		return codes.Internal
	}
}

// PublicMessage hides infrastructure details from callers.
func (e *Error) PublicMessage() string {
	switch e.Kind {
	case KindPersistence:
		return "failed to save data, please contact support"
	case KindGateway:
		if e.Message != "" {
			return e.Message
		}
		return "payment provider unavailable, please retry"
	}
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(what string) error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

func Unauthenticated(msg string) error {
	return &Error{Kind: KindAuthentication, Message: msg}
}

func Forbidden(msg string) error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func InvalidSignature() error {
	return &Error{Kind: KindSignature, Message: "invalid payment signature"}
}

func Gateway(msg string, err error) error {
	return &Error{Kind: KindGateway, Message: msg, Err: err}
}

func Persistence(msg string, err error) error {
	return &Error{Kind: KindPersistence, Message: msg, Err: err}
}

func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func PaymentNotCompleted(gatewayStatus string) error {
	return &Error{Kind: KindPaymentNotCompleted, Message: fmt.Sprintf("payment not completed, gateway status %q", gatewayStatus)}
}

func IllegalTransition(from, to OrderStatus) error {
	return &Error{
		Kind:    KindValidation,
		Message: fmt.Sprintf("cannot move order from %s to %s", from, to),
		Err:     ErrIllegalTransition,
	}
}
