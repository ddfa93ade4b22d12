// Package doiperr defines the typed error taxonomy shared by every layer of
// the DoIP engine: socket, codec, channel, conversation, and manager.
//
// Three error domains exist, mirroring the three collaborating subsystems:
//
//   - BoostSupportError: raised by the socket layer.
//   - DoipError: raised by the codec and channel layers.
//   - DmError: raised by the conversation manager.
//
// Each wraps an optional underlying cause with %w so errors.Is/errors.As
// keep working across layer boundaries.
package doiperr

import (
	"errors"
	"fmt"
)

// ErrDoIP is the sentinel identifying any error originating in this module.
// Wrap it with fmt.Errorf("context: %w", ErrDoIP) to add context while
// keeping errors.Is(err, ErrDoIP) true.
var ErrDoIP = errors.New("doip error")

// BoostSupportCode classifies a socket-layer failure.
type BoostSupportCode int

const (
	BoostSupportInitializationFailed BoostSupportCode = iota
	BoostSupportDeInitializationFailed
	BoostSupportSocketError
	BoostSupportGenericError
)

func (c BoostSupportCode) String() string {
	switch c {
	case BoostSupportInitializationFailed:
		return "InitializationFailed"
	case BoostSupportDeInitializationFailed:
		return "DeInitializationFailed"
	case BoostSupportSocketError:
		return "SocketError"
	case BoostSupportGenericError:
		return "GenericError"
	default:
		return "Unknown"
	}
}

// BoostSupportError is raised by internal/socket.
type BoostSupportError struct {
	Code BoostSupportCode
	Err  error
}

func (e *BoostSupportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("boost-support: %s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("boost-support: %s", e.Code)
}

func (e *BoostSupportError) Unwrap() error { return e.Err }

func (e *BoostSupportError) Is(target error) bool { return target == ErrDoIP }

func NewBoostSupportError(code BoostSupportCode, cause error) error {
	return &BoostSupportError{Code: code, Err: cause}
}

// DoipCode classifies a codec/channel-layer failure.
type DoipCode int

const (
	DoipInitializationFailed DoipCode = iota
	DoipDeInitializationFailed
	DoipSocketError
	DoipGenericError
)

func (c DoipCode) String() string {
	switch c {
	case DoipInitializationFailed:
		return "InitializationFailed"
	case DoipDeInitializationFailed:
		return "DeInitializationFailed"
	case DoipSocketError:
		return "SocketError"
	case DoipGenericError:
		return "GenericError"
	default:
		return "Unknown"
	}
}

// DoipError is raised by internal/wire, internal/tcpchannel, internal/udpchannel.
type DoipError struct {
	Code DoipCode
	Err  error
}

func (e *DoipError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("doip: %s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("doip: %s", e.Code)
}

func (e *DoipError) Unwrap() error { return e.Err }

func (e *DoipError) Is(target error) bool { return target == ErrDoIP }

func NewDoipError(code DoipCode, cause error) error {
	return &DoipError{Code: code, Err: cause}
}

// FromBoostSupportError maps a socket-layer error onto the DoIP domain,
// per the propagation policy: socket errors are mapped at the channel
// boundary and never surface raw to the caller.
func FromBoostSupportError(err error) error {
	var bse *BoostSupportError
	if errors.As(err, &bse) {
		switch bse.Code {
		case BoostSupportSocketError:
			return NewDoipError(DoipSocketError, err)
		default:
			return NewDoipError(DoipGenericError, err)
		}
	}
	return NewDoipError(DoipGenericError, err)
}

// DmCode classifies a conversation-manager failure.
type DmCode int

const (
	DmInitializationFailed DmCode = iota
	DmDeInitializationFailed
)

func (c DmCode) String() string {
	switch c {
	case DmInitializationFailed:
		return "InitializationFailed"
	case DmDeInitializationFailed:
		return "DeInitializationFailed"
	default:
		return "Unknown"
	}
}

// DmError is raised by internal/convmgr and client.
type DmError struct {
	Code DmCode
	Err  error
}

func (e *DmError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dm: %s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("dm: %s", e.Code)
}

func (e *DmError) Unwrap() error { return e.Err }

func (e *DmError) Is(target error) bool { return target == ErrDoIP }

func NewDmError(code DmCode, cause error) error {
	return &DmError{Code: code, Err: cause}
}
