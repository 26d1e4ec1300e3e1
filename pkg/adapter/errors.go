package adapter

import (
	"errors"
	"fmt"

	"github.com/marmos91/dittoraid/pkg/raid"
)

// Block-protocol error codes. These are the values carried on the NBD wire,
// which match the Linux errno numbers regardless of the host platform.
const (
	CodeOK     uint32 = 0
	CodeEPERM  uint32 = 1
	CodeEIO    uint32 = 5
	CodeEINVAL uint32 = 22
	CodeENOSPC uint32 = 28
)

// codeNames labels codes in logs and metrics.
var codeNames = map[uint32]string{
	CodeOK:     "",
	CodeEPERM:  "EPERM",
	CodeEIO:    "EIO",
	CodeEINVAL: "EINVAL",
	CodeENOSPC: "ENOSPC",
}

// CodeName returns the symbolic name of code ("" for success).
func CodeName(code uint32) string {
	if name, ok := codeNames[code]; ok {
		return name
	}
	return fmt.Sprintf("E%d", code)
}

// ProtocolError is an array error translated into a block-protocol code.
//
// It supports errors.Is via Unwrap, so callers can check for both the code
// and the underlying array error.
type ProtocolError interface {
	error

	// Code returns the numeric block-protocol error code.
	Code() uint32

	// Message returns a human-readable description.
	Message() string

	// Unwrap returns the underlying array error.
	Unwrap() error
}

type protocolError struct {
	op   string
	code uint32
	err  error
}

func (e *protocolError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.op, CodeName(e.code), e.err)
}
func (e *protocolError) Code() uint32    { return e.code }
func (e *protocolError) Message() string { return e.err.Error() }
func (e *protocolError) Unwrap() error   { return e.err }

// MapError translates err from operation op into a ProtocolError.
// It returns nil for a nil err.
//
// Mapping:
//   - raid.ErrOutOfRange: EINVAL for reads, ENOSPC for writes
//   - raid.ErrIO, raid.ErrDataLoss: EIO
//   - raid.ErrClosed: EPERM
//   - anything else: EIO
func MapError(op string, err error) ProtocolError {
	if err == nil {
		return nil
	}
	return &protocolError{op: op, code: Errno(op, err), err: err}
}

// Errno maps err from operation op to a block-protocol error code.
func Errno(op string, err error) uint32 {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, raid.ErrOutOfRange):
		if op == OpWrite {
			return CodeENOSPC
		}
		return CodeEINVAL
	case errors.Is(err, raid.ErrIO), errors.Is(err, raid.ErrDataLoss):
		return CodeEIO
	case errors.Is(err, raid.ErrClosed):
		return CodeEPERM
	default:
		return CodeEIO
	}
}
