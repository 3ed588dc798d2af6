package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// GatewayError is an error that can be returned to clients. The JSON body
// carries a single "detail" field, matching what the downstream services emit.
type GatewayError struct {
	Code       int    `json:"-"`
	Detail     string `json:"detail"`
	underlying error
}

func (e *GatewayError) Error() string {
	if e.underlying != nil {
		return fmt.Sprintf("%s: %v", e.Detail, e.underlying)
	}
	return e.Detail
}

func (e *GatewayError) Unwrap() error {
	return e.underlying
}

// WriteJSON writes the error as JSON to the response.
// Base errors use pre-serialized JSON to avoid allocations.
func (e *GatewayError) WriteJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Code)
	if pre, ok := preSerialized[e]; ok {
		w.Write(pre)
		return
	}
	json.NewEncoder(w).Encode(e)
}

// Common errors
var (
	ErrUnauthorized = &GatewayError{
		Code:   http.StatusUnauthorized,
		Detail: "Could not validate credentials",
	}

	ErrForbidden = &GatewayError{
		Code:   http.StatusForbidden,
		Detail: "Not enough permissions",
	}

	ErrNotFound = &GatewayError{
		Code:   http.StatusNotFound,
		Detail: "Not found",
	}

	ErrPayloadTooLarge = &GatewayError{
		Code:   http.StatusRequestEntityTooLarge,
		Detail: "Request body too large",
	}

	ErrTooManyRequests = &GatewayError{
		Code:   http.StatusTooManyRequests,
		Detail: "Too many requests",
	}

	ErrServiceUnavailable = &GatewayError{
		Code:   http.StatusServiceUnavailable,
		Detail: "Service unavailable",
	}

	ErrAuthServiceUnavailable = &GatewayError{
		Code:   http.StatusServiceUnavailable,
		Detail: "Authentication service unavailable",
	}

	ErrInternalServer = &GatewayError{
		Code:   http.StatusInternalServerError,
		Detail: "Internal server error",
	}
)

// preSerialized holds JSON-encoded bytes for base error singletons.
var preSerialized map[*GatewayError][]byte

func init() {
	bases := []*GatewayError{
		ErrUnauthorized, ErrForbidden, ErrNotFound, ErrPayloadTooLarge,
		ErrTooManyRequests, ErrServiceUnavailable, ErrAuthServiceUnavailable,
		ErrInternalServer,
	}
	preSerialized = make(map[*GatewayError][]byte, len(bases))
	for _, e := range bases {
		b, _ := json.Marshal(e)
		b = append(b, '\n') // match json.Encoder behavior
		preSerialized[e] = b
	}
}

// New creates a new GatewayError.
func New(code int, detail string) *GatewayError {
	return &GatewayError{
		Code:   code,
		Detail: detail,
	}
}

// Wrap wraps an error with a status code and client-visible detail.
func Wrap(err error, code int, detail string) *GatewayError {
	return &GatewayError{
		Code:       code,
		Detail:     detail,
		underlying: err,
	}
}

// WithDetail returns a copy of the error with a different detail message.
func (e *GatewayError) WithDetail(detail string) *GatewayError {
	return &GatewayError{
		Code:       e.Code,
		Detail:     detail,
		underlying: e.underlying,
	}
}

// IsGatewayError checks if an error is a GatewayError.
func IsGatewayError(err error) (*GatewayError, bool) {
	if ge, ok := err.(*GatewayError); ok {
		return ge, true
	}
	return nil, false
}
