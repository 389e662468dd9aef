package tcprest

import (
	"fmt"
	"strings"
)

// StatusCode is the V2 wire status attached to every response.
type StatusCode int

const (
	StatusSuccess StatusCode = iota
	StatusBusinessException
	StatusServerError
	StatusProtocolError
)

func (s StatusCode) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusBusinessException:
		return "BUSINESS_EXCEPTION"
	case StatusServerError:
		return "SERVER_ERROR"
	case StatusProtocolError:
		return "PROTOCOL_ERROR"
	default:
		return "UNKNOWN"
	}
}

// Kind classifies a failure into the five-way exception taxonomy.
type Kind int

const (
	KindProtocol Kind = iota
	KindSecurity
	KindMapperMissing
	KindBusiness
	KindServer
)

// RemoteError is the common shape every failure that can cross the wire
// takes: a taxonomy Kind, the remote type name (when known), and a bounded,
// sanitized message. It is also what a client reconstructs a failure into
// when the original concrete error type can't be resolved locally.
type RemoteError struct {
	Kind       Kind
	RemoteType string
	Message    string
	cause      error
}

const maxWireMessageLen = 500

func sanitizeMessage(msg string) string {
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.ReplaceAll(msg, "\n", " ")
	if len(msg) > maxWireMessageLen {
		msg = msg[:maxWireMessageLen]
	}
	return msg
}

func (e *RemoteError) Error() string {
	if e.RemoteType != "" {
		return fmt.Sprintf("%s: %s", e.RemoteType, e.Message)
	}
	return e.Message
}

func (e *RemoteError) Unwrap() error { return e.cause }

// StatusCode maps a taxonomy Kind onto the V2 wire status it is encoded as.
func (e *RemoteError) StatusCode() StatusCode {
	switch e.Kind {
	case KindBusiness:
		return StatusBusinessException
	case KindProtocol:
		return StatusProtocolError
	default:
		// Security and MapperMissing both surface as SERVER_ERROR on the
		// wire: the caller never learns the distinction, only
		// that the server failed.
		return StatusServerError
	}
}

// Retryable reports whether the caller may reasonably retry the call.
// Business failures are retryable at the caller's discretion; everything
// else is not.
func (e *RemoteError) Retryable() bool { return e.Kind == KindBusiness }

func newRemoteError(kind Kind, remoteType, format string, args ...interface{}) *RemoteError {
	return &RemoteError{Kind: kind, RemoteType: remoteType, Message: sanitizeMessage(fmt.Sprintf(format, args...))}
}

// SecurityErrorf reports a checksum/signature/whitelist/injection failure.
// Security errors are never retried and never carry a stack trace across
// the wire.
func SecurityErrorf(format string, args ...interface{}) *RemoteError {
	return newRemoteError(KindSecurity, "", format, args...)
}

// ProtocolErrorf reports a malformed frame, wrong arity, or unresolvable
// descriptor.
func ProtocolErrorf(format string, args ...interface{}) *RemoteError {
	return newRemoteError(KindProtocol, "", format, args...)
}

// MapperMissingErrorf reports that no mapper could be resolved for a type.
func MapperMissingErrorf(typeName string) *RemoteError {
	return newRemoteError(KindMapperMissing, typeName, "no mapper registered for type %q", typeName)
}

// BusinessErrorFrom wraps a user-thrown error the invoker classified as
// part of the application's API contract.
func BusinessErrorFrom(remoteType string, cause error) *RemoteError {
	e := newRemoteError(KindBusiness, remoteType, "%s", cause.Error())
	e.cause = cause
	return e
}

// ServerErrorFrom wraps any other user-code failure (including a recovered
// panic) that the invoker does not classify as business-level.
func ServerErrorFrom(remoteType string, cause error) *RemoteError {
	e := newRemoteError(KindServer, remoteType, "%s", cause.Error())
	e.cause = cause
	return e
}

// AsRemoteError unwraps err into a *RemoteError, wrapping it as a generic
// ServerError if it isn't already one. Used by the dispatcher's top-level
// classification.
func AsRemoteError(err error) *RemoteError {
	if err == nil {
		return nil
	}
	if re, ok := err.(*RemoteError); ok {
		return re
	}
	return ServerErrorFrom("", err)
}
