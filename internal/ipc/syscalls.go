//go:build windows

package ipc

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modKernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procPeekNamedPipe           = modKernel32.NewProc("PeekNamedPipe")
	procSetNamedPipeHandleState = modKernel32.NewProc("SetNamedPipeHandleState")
)

func peekNamedPipe(pipe windows.Handle, avail *uint32) error {
	r1, _, err := procPeekNamedPipe.Call(uintptr(pipe), 0, 0, 0,
		uintptr(unsafe.Pointer(avail)), 0)
	if r1 == 0 {
		return err
	}
	return nil
}

func setNamedPipeHandleState(pipe windows.Handle, mode *uint32) error {
	r1, _, err := procSetNamedPipeHandleState.Call(uintptr(pipe),
		uintptr(unsafe.Pointer(mode)), 0, 0)
	if r1 == 0 {
		return err
	}
	return nil
}
