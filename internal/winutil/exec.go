//go:build windows

// Package winutil holds small Windows process helpers shared by the
// network actuators.
package winutil

import (
	"fmt"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"privnet-helper/internal/core"
)

const stillActive = 259 // STILL_ACTIVE

var startupInfoSize = unsafe.Sizeof(windows.StartupInfo{})

// SystemBinary resolves a binary name against the Windows system
// directory at call time.
func SystemBinary(name string) (string, error) {
	dir, err := windows.GetSystemDirectory()
	if err != nil {
		return "", fmt.Errorf("[Exec] system directory: %w", err)
	}
	return dir + `\` + name, nil
}

// ExecCommand runs argv0 with the given command line and waits up to
// timeout for it to finish. The return value is the child's exit code;
// a child still running at the deadline is terminated and reported as
// WAIT_TIMEOUT.
func ExecCommand(argv0, cmdline string, timeout time.Duration) uint32 {
	argv016, err := windows.UTF16PtrFromString(argv0)
	if err != nil {
		return uint32(windows.ERROR_INVALID_PARAMETER)
	}
	// CreateProcess may scribble on the command line; UTF16PtrFromString
	// hands us a private copy already.
	cmdline16, err := windows.UTF16PtrFromString(cmdline)
	if err != nil {
		return uint32(windows.ERROR_INVALID_PARAMETER)
	}

	si := &windows.StartupInfo{Cb: uint32(startupInfoSize)}
	pi := &windows.ProcessInformation{}
	err = windows.CreateProcess(argv016, cmdline16, nil, nil, false,
		windows.CREATE_NO_WINDOW|windows.CREATE_UNICODE_ENVIRONMENT,
		nil, nil, si, pi)
	if err != nil {
		core.Log.Errorf("Exec", "could not run %q %q: %v", argv0, cmdline, err)
		if errno, ok := err.(syscall.Errno); ok {
			return uint32(errno)
		}
		return uint32(windows.ERROR_GEN_FAILURE)
	}
	defer windows.CloseHandle(pi.Process)
	defer windows.CloseHandle(pi.Thread)

	waitMs := uint32(windows.INFINITE)
	if timeout > 0 {
		waitMs = uint32(timeout / time.Millisecond)
	}
	windows.WaitForSingleObject(pi.Process, waitMs)

	var exitCode uint32
	if err := windows.GetExitCodeProcess(pi.Process, &exitCode); err != nil {
		core.Log.Errorf("Exec", "could not get exit code of %q %q: %v", argv0, cmdline, err)
		if errno, ok := err.(syscall.Errno); ok {
			return uint32(errno)
		}
		return uint32(windows.ERROR_GEN_FAILURE)
	}
	if exitCode == stillActive {
		exitCode = uint32(windows.WAIT_TIMEOUT)
		windows.TerminateProcess(pi.Process, exitCode)
		core.Log.Errorf("Exec", "%q %q killed after timeout", argv0, cmdline)
	} else if exitCode != 0 {
		core.Log.Errorf("Exec", "%q %q exited with status %d", argv0, cmdline, exitCode)
	} else {
		core.Log.Infof("Exec", "%q %q completed", argv0, cmdline)
	}
	return exitCode
}
