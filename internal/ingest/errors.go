package ingest

import "github.com/valyala/fasthttp"

// Kind is the server-side failure taxonomy for the ingest pipeline. Each
// pipeline stage maps to one kind. Kinds are logged and counted; the
// client sees only the uniform message for the mapped status code.
type Kind string

const (
	KindEmptyPayload         Kind = "empty_payload"
	KindMalformedPayload     Kind = "malformed_payload"
	KindPayloadTooLarge      Kind = "payload_too_large"
	KindTimestampOutOfWindow Kind = "timestamp_out_of_window"
	KindInvalidSignature     Kind = "invalid_signature"
	KindPrincipalNotFound    Kind = "principal_not_found"
	KindPrincipalInactive    Kind = "principal_inactive"
	KindCrossTenantDenied    Kind = "cross_tenant_denied"
	KindSourceNotAllowed     Kind = "source_not_allowed"
	KindRateLimited          Kind = "rate_limited"
	KindPersistenceFailure   Kind = "persistence_failure"
	KindInternal             Kind = "internal"
)

// Error is a pipeline failure: the precise kind for operators, wrapping
// the stage error for logs.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func fail(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Status maps the kind to the HTTP response code of the client contract.
func (e *Error) Status() int {
	switch e.Kind {
	case KindEmptyPayload, KindMalformedPayload:
		return fasthttp.StatusBadRequest
	case KindPayloadTooLarge:
		return fasthttp.StatusRequestEntityTooLarge
	case KindTimestampOutOfWindow, KindInvalidSignature:
		return fasthttp.StatusUnauthorized
	case KindPrincipalNotFound, KindPrincipalInactive, KindCrossTenantDenied, KindSourceNotAllowed:
		return fasthttp.StatusForbidden
	case KindRateLimited:
		return fasthttp.StatusTooManyRequests
	default:
		return fasthttp.StatusInternalServerError
	}
}

// ClientMessage is the body text sent to the caller. Authentication and
// authorization failures are deliberately uniform within their status so
// the response never signals which check failed; the sub-kind stays
// server-side.
func (e *Error) ClientMessage() string {
	switch e.Kind {
	case KindEmptyPayload:
		return "empty payload"
	case KindMalformedPayload:
		return "malformed payload"
	case KindPayloadTooLarge:
		return "payload too large"
	case KindTimestampOutOfWindow, KindInvalidSignature:
		return "authentication failed"
	case KindPrincipalNotFound, KindPrincipalInactive, KindCrossTenantDenied, KindSourceNotAllowed:
		return "forbidden"
	case KindRateLimited:
		return "rate limited"
	default:
		return "internal error"
	}
}
