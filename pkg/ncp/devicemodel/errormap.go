package devicemodel

import (
	"errors"

	"github.com/nmos-controlflow/ncp/pkg/ncp/ncperrors"
)

// fromErr maps the package-level sentinel errors raised by resourcestore,
// constraint and datatype validation into the matching MethodResult status
// ("ConstraintViolation... surfaced as ParameterError at the
// protocol edge"). Any error not recognised here becomes DeviceError.
func fromErr(err error) MethodResult {
	message := err.Error()
	switch {
	case errors.Is(err, ncperrors.ErrNotFound):
		return BadOid(message)
	case errors.Is(err, ncperrors.ErrReadOnly):
		return Readonly(message)
	case errors.Is(err, ncperrors.ErrConflict):
		return Conflict(message)
	case errors.Is(err, ncperrors.ErrLocked):
		return Locked(message)
	case errors.Is(err, ncperrors.ErrConstraintViolation),
		errors.Is(err, ncperrors.ErrParameterError):
		return ParameterError(message)
	case errors.Is(err, ncperrors.ErrIndexOutOfBound):
		return IndexOutOfBounds(message)
	case errors.Is(err, ncperrors.ErrBufferOverflow):
		return BufferOverflow(message)
	case errors.Is(err, ncperrors.ErrInvalidRequest):
		return InvalidRequest(message)
	case errors.Is(err, ncperrors.ErrParse), errors.Is(err, ncperrors.ErrSchema):
		return BadCommandFormat(message)
	case errors.Is(err, ncperrors.ErrUnauthorized):
		return Unauthorized(message)
	case errors.Is(err, ncperrors.ErrNotReady):
		return NotReady(message)
	case errors.Is(err, ncperrors.ErrTimeout):
		return Timeout(message)
	default:
		return DeviceError(message)
	}
}
