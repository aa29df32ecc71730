package errors

import (
	"errors"
	"net/http"
)

// Kind classifies an error into one of the taxonomy buckets from the
// error handling design: auth, authorization, validation, not-found,
// conflict, provider, server.
type Kind string

const (
	KindAuthentication       Kind = "AUTHENTICATION"
	KindAuthorization        Kind = "AUTHORIZATION"
	KindInsufficientBalance  Kind = "INSUFFICIENT_BALANCE"
	KindValidation           Kind = "VALIDATION"
	KindNotFound             Kind = "NOT_FOUND"
	KindConflict             Kind = "CONFLICT"
	KindProviderRetryable    Kind = "PROVIDER_RETRYABLE"
	KindProviderTerminal     Kind = "PROVIDER_TERMINAL"
	KindServer               Kind = "SERVER"
	KindServiceUnavailable   Kind = "SERVICE_UNAVAILABLE"
)

// kindMapping is the total function Kind -> (status, numeric code, message
// template) called for in the design notes. It is the single place that
// decides how an error kind renders on the wire.
var kindMapping = map[Kind]struct {
	status  int
	code    int
	message string
}{
	KindAuthentication:      {http.StatusUnauthorized, 1000, "authentication failed"},
	KindAuthorization:       {http.StatusForbidden, 5000, "not authorized"},
	KindInsufficientBalance: {http.StatusForbidden, 5001, "insufficient balance"},
	KindValidation:          {http.StatusBadRequest, 3000, "invalid request"},
	KindNotFound:            {http.StatusNotFound, 2000, "resource not found"},
	KindConflict:            {http.StatusConflict, 4000, "conflicting state"},
	KindProviderRetryable:   {http.StatusOK, 6000, "payment provider unavailable"},
	KindProviderTerminal:    {http.StatusOK, 6001, "payment charge failed"},
	KindServer:              {http.StatusInternalServerError, 9000, "internal server error"},
	KindServiceUnavailable:  {http.StatusServiceUnavailable, 9003, "service unavailable"},
}

// AppError is the one error type every layer above the repository
// boundary deals in. Status is the HTTP status to render; Code is the
// numeric application code from the error envelope.
type AppError struct {
	Kind    Kind
	Status  int
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New builds an AppError from a Kind, looking up status/code from the
// dispatch table and overriding the template message when msg is given.
func New(kind Kind, msg string, err error) *AppError {
	m := kindMapping[kind]
	message := m.message
	if msg != "" {
		message = msg
	}
	return &AppError{Kind: kind, Status: m.status, Code: m.code, Message: message, Err: err}
}

// Sentinel errors usable with errors.Is from repository/usecase code.
var (
	ErrNotFound             = errors.New("resource not found")
	ErrAlreadyExists        = errors.New("resource already exists")
	ErrInvalidInput         = errors.New("invalid input")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
	ErrConcurrentModified   = errors.New("concurrent modification")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrInvalidStatus        = errors.New("invalid status transition")
	ErrPaymentChargeFailed  = errors.New("payment charge failed")
	ErrProviderUnavailable  = errors.New("payment provider unavailable")
)

func NotFound(message string) *AppError     { return New(KindNotFound, message, ErrNotFound) }
func BadRequest(message string) *AppError   { return New(KindValidation, message, ErrInvalidInput) }
func Unauthorized(message string) *AppError { return New(KindAuthentication, message, ErrUnauthorized) }
func Forbidden(message string) *AppError    { return New(KindAuthorization, message, ErrForbidden) }
func Conflict(message string) *AppError     { return New(KindConflict, message, ErrAlreadyExists) }
func InternalError(err error) *AppError      { return New(KindServer, "", err) }

// InsufficientBalance renders as an authorization failure: the caller is
// allowed to see the wallet but does not have enough available balance.
func InsufficientBalance(message string) *AppError {
	return New(KindInsufficientBalance, message, ErrInsufficientBalance)
}

// AsAppError type-asserts err into an *AppError, wrapping it as an
// internal server error when it isn't one already.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return InternalError(err)
}
