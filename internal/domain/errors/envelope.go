package errors

import (
	"encoding/json"
	"net/http"
)

// envelope is the wire shape of the standard error body.
type envelope struct {
	Status  int    `json:"status"`
	Code    int    `json:"code"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// kindSentinel pairs each Kind with the sentinel its AppError should
// unwrap to, so errors reconstructed from a remote envelope still
// satisfy the same errors.Is checks as locally-raised ones.
var kindSentinel = map[Kind]error{
	KindAuthentication:      ErrUnauthorized,
	KindAuthorization:       ErrForbidden,
	KindInsufficientBalance: ErrInsufficientBalance,
	KindValidation:          ErrInvalidInput,
	KindNotFound:            ErrNotFound,
	KindConflict:            ErrAlreadyExists,
	KindProviderRetryable:   ErrProviderUnavailable,
	KindProviderTerminal:    ErrPaymentChargeFailed,
}

// FromCode maps a numeric application code from a peer's error
// envelope back onto a Kind. Unknown codes fall back to their
// thousands range, and anything still unmatched reads as a server
// fault.
func FromCode(code int) (Kind, bool) {
	for kind, m := range kindMapping {
		if m.code == code {
			return kind, true
		}
	}
	switch code / 1000 {
	case 1:
		return KindAuthentication, true
	case 2:
		return KindNotFound, true
	case 3:
		return KindValidation, true
	case 4:
		return KindConflict, true
	case 5:
		return KindAuthorization, true
	case 6:
		return KindProviderTerminal, true
	case 9:
		return KindServer, true
	}
	return KindServer, false
}

// FromStatus maps a bare HTTP status onto a Kind, for peer responses
// that don't carry the standard envelope.
func FromStatus(status int) Kind {
	switch status {
	case http.StatusUnauthorized:
		return KindAuthentication
	case http.StatusForbidden:
		return KindAuthorization
	case http.StatusBadRequest:
		return KindValidation
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	case http.StatusServiceUnavailable:
		return KindServiceUnavailable
	default:
		return KindServer
	}
}

// ParseRemote reconstructs an AppError from a peer service's error
// response. A body carrying the standard envelope is authoritative
// (its numeric code picks the Kind); anything else falls back to the
// HTTP status.
func ParseRemote(status int, body []byte) *AppError {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Code != 0 {
		if kind, ok := FromCode(env.Code); ok {
			return New(kind, env.Message, kindSentinel[kind])
		}
	}
	kind := FromStatus(status)
	return New(kind, "", kindSentinel[kind])
}
