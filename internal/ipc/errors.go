//go:build windows

package ipc

import (
	"errors"
	"syscall"

	"golang.org/x/sys/windows"
)

// SentinelError carries a protocol sentinel through an error chain.
type SentinelError uint32

func (e SentinelError) Error() string {
	switch uint32(e) {
	case ErrEngineStartup:
		return "engine startup failure"
	case ErrStartupData:
		return "malformed startup data"
	case ErrMessageData:
		return "malformed message data"
	case ErrMessageType:
		return "unknown message type"
	default:
		return "protocol error"
	}
}

// AckCode maps an error to the wire status carried in an ack: zero for
// nil, the native status for Win32 errors, the sentinel for protocol
// errors, and a generic failure otherwise.
func AckCode(err error) uint32 {
	if err == nil {
		return 0
	}
	var sentinel SentinelError
	if errors.As(err, &sentinel) {
		return uint32(sentinel)
	}
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return decodeErr.Code
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return uint32(errno)
	}
	return uint32(windows.ERROR_GEN_FAILURE)
}
