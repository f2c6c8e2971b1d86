package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the layer an error originated from
type ErrorType int

const (
	ErrorNone ErrorType = iota
	ErrorTransport
	ErrorProtocol
	ErrorResource
	ErrorListener
	ErrorInvalidArgument
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTransport:
		return "transport"
	case ErrorProtocol:
		return "protocol"
	case ErrorResource:
		return "resource"
	case ErrorListener:
		return "listener"
	case ErrorInvalidArgument:
		return "invalid argument"
	default:
		return "unknown"
	}
}

// TransportError represents errors on an accepted connection
type TransportError int

const (
	TransportErrorNone TransportError = iota
	TransportErrorSocketReadFailure
	TransportErrorSocketWriteFailure
	TransportErrorSocketCloseFailure
	TransportErrorConnectionClosed
	TransportErrorTimeout
	TransportErrorIoUringInit
	TransportErrorIoUringSubmit
	TransportErrorUnsupportedConn
)

func (e TransportError) String() string {
	switch e {
	case TransportErrorSocketReadFailure:
		return "socket read failed"
	case TransportErrorSocketWriteFailure:
		return "socket write failed"
	case TransportErrorSocketCloseFailure:
		return "socket close failed"
	case TransportErrorConnectionClosed:
		return "connection closed"
	case TransportErrorTimeout:
		return "receive timeout"
	case TransportErrorIoUringInit:
		return "io_uring initialization failed"
	case TransportErrorIoUringSubmit:
		return "io_uring submit failed"
	case TransportErrorUnsupportedConn:
		return "unsupported connection type"
	default:
		return fmt.Sprintf("transport error %d", int(e))
	}
}

// ProtocolError represents request-level protocol violations
type ProtocolError int

const (
	ProtocolErrorNone ProtocolError = iota
	ProtocolErrorMalformedRequestLine
	ProtocolErrorUnsupportedMethod
	ProtocolErrorUnsupportedVersion
)

func (e ProtocolError) String() string {
	switch e {
	case ProtocolErrorMalformedRequestLine:
		return "malformed request line"
	case ProtocolErrorUnsupportedMethod:
		return "unsupported method"
	case ProtocolErrorUnsupportedVersion:
		return "unsupported version"
	default:
		return fmt.Sprintf("protocol error %d", int(e))
	}
}

// ResourceError represents failures resolving a request target
type ResourceError int

const (
	ResourceErrorNone ResourceError = iota
	ResourceErrorNotFound
	ResourceErrorReadFailure
)

func (e ResourceError) String() string {
	switch e {
	case ResourceErrorNotFound:
		return "resource not found"
	case ResourceErrorReadFailure:
		return "resource read failed"
	default:
		return fmt.Sprintf("resource error %d", int(e))
	}
}

// ListenerError represents failures of the listening socket
type ListenerError int

const (
	ListenerErrorNone ListenerError = iota
	ListenerErrorBindFailure
	ListenerErrorAcceptFailure
)

func (e ListenerError) String() string {
	switch e {
	case ListenerErrorBindFailure:
		return "bind failed"
	case ListenerErrorAcceptFailure:
		return "accept failed"
	default:
		return fmt.Sprintf("listener error %d", int(e))
	}
}

// ServerError is the main error type for the server
type ServerError struct {
	Type          ErrorType
	TransportErr  TransportError
	ProtocolErr   ProtocolError
	ResourceErr   ResourceError
	ListenerErr   ListenerError
	Message       string
	UnderlyingErr error
}

// Error implements the error interface
func (e *ServerError) Error() string {
	if e == nil {
		return "no error"
	}

	var typeStr string
	switch e.Type {
	case ErrorTransport:
		typeStr = "Transport error: " + e.TransportErr.String()
	case ErrorProtocol:
		typeStr = "Protocol error: " + e.ProtocolErr.String()
	case ErrorResource:
		typeStr = "Resource error: " + e.ResourceErr.String()
	case ErrorListener:
		typeStr = "Listener error: " + e.ListenerErr.String()
	case ErrorInvalidArgument:
		typeStr = "Invalid argument"
	default:
		typeStr = "Unknown error"
	}

	if e.Message != "" {
		typeStr = fmt.Sprintf("%s: %s", typeStr, e.Message)
	}

	if e.UnderlyingErr != nil {
		return fmt.Sprintf("%s (caused by: %v)", typeStr, e.UnderlyingErr)
	}

	return typeStr
}

// Unwrap returns the underlying error for error chain support
func (e *ServerError) Unwrap() error {
	return e.UnderlyingErr
}

// NewTransportError creates a new transport error
func NewTransportError(err TransportError, message string, underlying error) *ServerError {
	return &ServerError{
		Type:          ErrorTransport,
		TransportErr:  err,
		Message:       message,
		UnderlyingErr: underlying,
	}
}

// NewProtocolError creates a new protocol error
func NewProtocolError(err ProtocolError, message string) *ServerError {
	return &ServerError{
		Type:        ErrorProtocol,
		ProtocolErr: err,
		Message:     message,
	}
}

// NewResourceError creates a new resource error
func NewResourceError(err ResourceError, message string, underlying error) *ServerError {
	return &ServerError{
		Type:          ErrorResource,
		ResourceErr:   err,
		Message:       message,
		UnderlyingErr: underlying,
	}
}

// NewListenerError creates a new listener error
func NewListenerError(err ListenerError, message string, underlying error) *ServerError {
	return &ServerError{
		Type:          ErrorListener,
		ListenerErr:   err,
		Message:       message,
		UnderlyingErr: underlying,
	}
}

// NewInvalidArgumentError creates a new invalid argument error
func NewInvalidArgumentError(message string) *ServerError {
	return &ServerError{
		Type:    ErrorInvalidArgument,
		Message: message,
	}
}

func transportKind(err error) TransportError {
	var se *ServerError
	if stderrors.As(err, &se) && se.Type == ErrorTransport {
		return se.TransportErr
	}
	return TransportErrorNone
}

// IsTimeout reports whether err is an idle receive timeout
func IsTimeout(err error) bool {
	return transportKind(err) == TransportErrorTimeout
}

// IsConnectionClosed reports whether err means the peer went away
func IsConnectionClosed(err error) bool {
	return transportKind(err) == TransportErrorConnectionClosed
}

// IsResourceNotFound reports whether err is a failed resource lookup
func IsResourceNotFound(err error) bool {
	var se *ServerError
	return stderrors.As(err, &se) && se.Type == ErrorResource && se.ResourceErr == ResourceErrorNotFound
}
