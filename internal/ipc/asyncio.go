//go:build windows

package ipc

import (
	"golang.org/x/sys/windows"
)

// ioTimeoutMs bounds non-peek pipe operations. Peek waits forever; it
// is the quiescent point of the session loop and only a cancel-set
// wake may interrupt it.
const ioTimeoutMs = 2000

type asyncOp int

const (
	opPeek asyncOp = iota
	opRead
	opWrite
)

// asyncPipeOp issues one overlapped operation and waits on the I/O
// event joined with the cancel set. Any cancel wake, timeout or error
// cancels the pending I/O and reports zero bytes.
func asyncPipeOp(op asyncOp, pipe windows.Handle, buf []byte, cancel []windows.Handle) uint32 {
	ioEvent, err := windows.CreateEvent(nil, 1, 0, nil)
	if err != nil {
		return 0
	}
	defer windows.CloseHandle(ioEvent)

	var overlapped windows.Overlapped
	overlapped.HEvent = ioEvent

	var issued uint32
	if op == opWrite {
		err = windows.WriteFile(pipe, buf, &issued, &overlapped)
	} else {
		var readBuf []byte
		if op == opRead {
			readBuf = buf
		}
		err = windows.ReadFile(pipe, readBuf, &issued, &overlapped)
	}
	if err != nil && err != windows.ERROR_IO_PENDING && err != windows.ERROR_MORE_DATA {
		return 0
	}

	handles := make([]windows.Handle, 0, len(cancel)+1)
	handles = append(handles, ioEvent)
	handles = append(handles, cancel...)

	timeout := uint32(windows.INFINITE)
	if op != opPeek {
		timeout = ioTimeoutMs
	}
	ev, err := windows.WaitForMultipleObjects(handles, false, timeout)
	if err != nil || ev != windows.WAIT_OBJECT_0 {
		windows.CancelIo(pipe)
		return 0
	}

	var bytes uint32
	if op == opPeek {
		if err := peekNamedPipe(pipe, &bytes); err != nil {
			return 0
		}
	} else {
		if err := windows.GetOverlappedResult(pipe, &overlapped, &bytes, true); err != nil {
			return 0
		}
	}
	return bytes
}

// PeekPipe waits until the pipe has data or the cancel set wakes, and
// returns the number of in-band bytes available. Zero means a cancel
// wake or a closed peer.
func PeekPipe(pipe windows.Handle, cancel ...windows.Handle) uint32 {
	return asyncPipeOp(opPeek, pipe, nil, cancel)
}

// ReadPipe reads up to len(buf) bytes with the standard I/O timeout.
func ReadPipe(pipe windows.Handle, buf []byte, cancel ...windows.Handle) uint32 {
	return asyncPipeOp(opRead, pipe, buf, cancel)
}

// WritePipe writes data with the standard I/O timeout.
func WritePipe(pipe windows.Handle, data []byte, cancel ...windows.Handle) uint32 {
	return asyncPipeOp(opWrite, pipe, data, cancel)
}
