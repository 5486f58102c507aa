package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeIdempotency  Code = "IDEMPOTENCY_KEY_REUSED"
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeDependency   Code = "DEPENDENCY_ERROR"

	CodeInvalidPeriod          Code = "INVALID_PERIOD"
	CodeNoEligibleOrders       Code = "NO_ELIGIBLE_ORDERS"
	CodeOverlappingClaim       Code = "OVERLAPPING_CLAIM"
	CodeInvalidTransition      Code = "INVALID_TRANSITION"
	CodeInsufficientFunds      Code = "INSUFFICIENT_FUNDS"
	CodeReconciliationMismatch Code = "RECONCILIATION_MISMATCH"
	CodeGatewayFailure         Code = "GATEWAY_FAILURE"
)

// Metadata decides how a code is rendered over HTTP. ExposeMessage lets the
// error's own message replace PublicMessage; it is set for codes whose
// messages are written for API callers.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
	ExposeMessage  bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:   {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", DetailsAllowed: true, ExposeMessage: true},
	CodeUnauthorized: {HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required", ExposeMessage: true},
	CodeForbidden:    {HTTPStatus: http.StatusForbidden, PublicMessage: "access denied", ExposeMessage: true},
	CodeNotFound:     {HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found", ExposeMessage: true},
	CodeConflict:     {HTTPStatus: http.StatusConflict, PublicMessage: "conflict detected", ExposeMessage: true},
	CodeIdempotency:  {HTTPStatus: http.StatusConflict, PublicMessage: "idempotency key reused", DetailsAllowed: true, ExposeMessage: true},
	CodeInternal:     {HTTPStatus: http.StatusInternalServerError, Retryable: true, PublicMessage: "internal server error"},
	CodeDependency:   {HTTPStatus: http.StatusServiceUnavailable, Retryable: true, PublicMessage: "dependency unavailable", DetailsAllowed: true},

	CodeInvalidPeriod:          {HTTPStatus: http.StatusBadRequest, PublicMessage: "invalid payout period", DetailsAllowed: true, ExposeMessage: true},
	CodeNoEligibleOrders:       {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "no eligible orders for period", DetailsAllowed: true, ExposeMessage: true},
	CodeOverlappingClaim:       {HTTPStatus: http.StatusConflict, PublicMessage: "order items already claimed by another payout", DetailsAllowed: true, ExposeMessage: true},
	CodeInvalidTransition:      {HTTPStatus: http.StatusConflict, PublicMessage: "payout status transition not allowed", DetailsAllowed: true, ExposeMessage: true},
	CodeInsufficientFunds:      {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "insufficient wallet balance", DetailsAllowed: true, ExposeMessage: true},
	CodeReconciliationMismatch: {HTTPStatus: http.StatusInternalServerError, PublicMessage: "revenue reconciliation mismatch", DetailsAllowed: true},
	CodeGatewayFailure:         {HTTPStatus: http.StatusBadGateway, PublicMessage: "payment gateway failure", DetailsAllowed: true},
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// PublicMessage is the message safe to return to a caller for err.
func (e *Error) PublicMessage() string {
	meta := MetadataFor(e.Code())
	if meta.ExposeMessage && e.Message() != "" {
		return e.Message()
	}
	return meta.PublicMessage
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// IsCode reports whether the outermost *Error in err's chain has code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// Retryable reports whether a caller may retry the operation that returned err.
// Untyped errors are treated as internal.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if typed := As(err); typed != nil {
		return MetadataFor(typed.code).Retryable
	}
	return MetadataFor(CodeInternal).Retryable
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}
