// Package devicemodel implements the Device Model Operations surface:
// Get/Set property, sequence item operations, block navigation, class and
// datatype introspection, and status-monitor reset, all
// returning a MethodResult modeled on a Status/NewFailureStatus pattern
// (compare api/v1alpha1/error.go).
package devicemodel

import "fmt"

// StatusCode is the fixed MethodResult status enumeration,
// numbered after HTTP status codes but distinct from them.
type StatusCode int32

const (
	StatusOk                     StatusCode = 200
	StatusPropertyDeprecated     StatusCode = 298
	StatusMethodDeprecated       StatusCode = 299
	StatusBadCommandFormat       StatusCode = 400
	StatusUnauthorized           StatusCode = 401
	StatusBadOid                 StatusCode = 404
	StatusReadonly               StatusCode = 405
	StatusInvalidRequest         StatusCode = 406
	StatusConflict               StatusCode = 409
	StatusBufferOverflow         StatusCode = 413
	StatusIndexOutOfBounds       StatusCode = 414
	StatusParameterError         StatusCode = 417
	StatusLocked                 StatusCode = 423
	StatusDeviceError            StatusCode = 500
	StatusMethodNotImplemented   StatusCode = 501
	StatusPropertyNotImplemented StatusCode = 502
	StatusNotReady               StatusCode = 503
	StatusTimeout                StatusCode = 504
	StatusProtocolVersionError   StatusCode = 505
)

func (c StatusCode) String() string {
	switch c {
	case StatusOk:
		return "Ok"
	case StatusPropertyDeprecated:
		return "PropertyDeprecated"
	case StatusMethodDeprecated:
		return "MethodDeprecated"
	case StatusBadCommandFormat:
		return "BadCommandFormat"
	case StatusUnauthorized:
		return "Unauthorized"
	case StatusBadOid:
		return "BadOid"
	case StatusReadonly:
		return "Readonly"
	case StatusInvalidRequest:
		return "InvalidRequest"
	case StatusConflict:
		return "Conflict"
	case StatusBufferOverflow:
		return "BufferOverflow"
	case StatusIndexOutOfBounds:
		return "IndexOutOfBounds"
	case StatusParameterError:
		return "ParameterError"
	case StatusLocked:
		return "Locked"
	case StatusDeviceError:
		return "DeviceError"
	case StatusMethodNotImplemented:
		return "MethodNotImplemented"
	case StatusPropertyNotImplemented:
		return "PropertyNotImplemented"
	case StatusNotReady:
		return "NotReady"
	case StatusTimeout:
		return "Timeout"
	case StatusProtocolVersionError:
		return "ProtocolVersionError"
	default:
		return fmt.Sprintf("StatusCode(%d)", int32(c))
	}
}

// MethodResult is the fixed-shape return value of every device model
// operation.
type MethodResult struct {
	Status       StatusCode `json:"status"`
	Value        any        `json:"value,omitempty"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
}

func newResult(code StatusCode, value any, message string) MethodResult {
	return MethodResult{Status: code, Value: value, ErrorMessage: message}
}

func Ok(value any) MethodResult { return newResult(StatusOk, value, "") }
func PropertyDeprecated(value any) MethodResult {
	return newResult(StatusPropertyDeprecated, value, "")
}
func MethodDeprecated(value any) MethodResult { return newResult(StatusMethodDeprecated, value, "") }

func BadCommandFormat(message string) MethodResult {
	return newResult(StatusBadCommandFormat, nil, message)
}
func Unauthorized(message string) MethodResult { return newResult(StatusUnauthorized, nil, message) }
func BadOid(message string) MethodResult       { return newResult(StatusBadOid, nil, message) }
func Readonly(message string) MethodResult     { return newResult(StatusReadonly, nil, message) }
func InvalidRequest(message string) MethodResult {
	return newResult(StatusInvalidRequest, nil, message)
}
func Conflict(message string) MethodResult { return newResult(StatusConflict, nil, message) }
func BufferOverflow(message string) MethodResult {
	return newResult(StatusBufferOverflow, nil, message)
}
func IndexOutOfBounds(message string) MethodResult {
	return newResult(StatusIndexOutOfBounds, nil, message)
}
func ParameterError(message string) MethodResult {
	return newResult(StatusParameterError, nil, message)
}
func Locked(message string) MethodResult      { return newResult(StatusLocked, nil, message) }
func DeviceError(message string) MethodResult { return newResult(StatusDeviceError, nil, message) }
func MethodNotImplemented(message string) MethodResult {
	return newResult(StatusMethodNotImplemented, nil, message)
}
func PropertyNotImplemented(message string) MethodResult {
	return newResult(StatusPropertyNotImplemented, nil, message)
}
func NotReady(message string) MethodResult { return newResult(StatusNotReady, nil, message) }
func Timeout(message string) MethodResult  { return newResult(StatusTimeout, nil, message) }
func ProtocolVersionError(message string) MethodResult {
	return newResult(StatusProtocolVersionError, nil, message)
}

// IsSuccess reports whether r represents a 2xx-equivalent outcome.
func (r MethodResult) IsSuccess() bool {
	return r.Status == StatusOk || r.Status == StatusPropertyDeprecated || r.Status == StatusMethodDeprecated
}
