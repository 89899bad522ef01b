//go:build windows

package ipc

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

var sizeofSecurityAttributes = unsafe.Sizeof(windows.SecurityAttributes{})

// PipeProduct is the product component of every pipe path. An instance
// suffix from the settings separates parallel installations.
const PipeProduct = "privnet-helper"

// Client pipe security: local system gets everything, creating further
// pipe instances is denied to everyone (nobody can squat the name and
// impersonate the service), authenticated users may read/write, and
// anonymous gets nothing.
const clientPipeSDDL = "D:(A;OICI;GA;;;S-1-5-18)(D;OICI;0x4;;;S-1-1-0)(A;OICI;GRGW;;;S-1-5-11)(D;;GA;;;S-1-5-7)"

// ServicePipeName returns the well-known client pipe path.
func ServicePipeName(instance string) string {
	return `\\.\pipe\` + PipeProduct + instance + `\service`
}

// enginePipeName returns the per-worker private pipe path.
func enginePipeName(instance string, tid uint32) string {
	return fmt.Sprintf(`\\.\pipe\%s%s\service_%d`, PipeProduct, instance, tid)
}

// CreateClientPipeInstance creates one server-side instance of the
// client pipe. The first instance claims the pipe name exclusively.
func CreateClientPipeInstance(instance string, first bool) (windows.Handle, error) {
	sd, err := windows.SecurityDescriptorFromString(clientPipeSDDL)
	if err != nil {
		return windows.InvalidHandle, fmt.Errorf("[IPC] pipe security descriptor: %w", err)
	}
	sa := &windows.SecurityAttributes{
		Length:             uint32(sizeofSecurityAttributes),
		SecurityDescriptor: sd,
	}

	flags := uint32(windows.PIPE_ACCESS_DUPLEX | windows.WRITE_DAC | windows.FILE_FLAG_OVERLAPPED)
	if first {
		flags |= windows.FILE_FLAG_FIRST_PIPE_INSTANCE
	}

	name, err := windows.UTF16PtrFromString(ServicePipeName(instance))
	if err != nil {
		return windows.InvalidHandle, err
	}
	pipe, err := windows.CreateNamedPipe(name, flags,
		windows.PIPE_TYPE_MESSAGE|windows.PIPE_READMODE_MESSAGE|windows.PIPE_REJECT_REMOTE_CLIENTS,
		windows.PIPE_UNLIMITED_INSTANCES, 1024, 1024, 0, sa)
	if err != nil {
		return windows.InvalidHandle, fmt.Errorf("[IPC] create client pipe: %w", err)
	}
	return pipe, nil
}

// EnginePipePair is the private message channel between one session
// worker and its engine child. The service end is inheritable and its
// handle value is passed to the child on its command line.
type EnginePipePair struct {
	Worker  windows.Handle // server end, used by the session loop
	Service windows.Handle // client end, inherited by the engine
	Name    string
}

// CreateEnginePipePair creates the single-instance engine pipe and
// opens its inheritable service end.
func CreateEnginePipePair(instance string, tid uint32) (EnginePipePair, error) {
	name := enginePipeName(instance, tid)
	name16, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return EnginePipePair{}, err
	}

	worker, err := windows.CreateNamedPipe(name16,
		windows.PIPE_ACCESS_DUPLEX|windows.FILE_FLAG_FIRST_PIPE_INSTANCE|windows.FILE_FLAG_OVERLAPPED,
		windows.PIPE_TYPE_MESSAGE|windows.PIPE_READMODE_MESSAGE|windows.PIPE_WAIT,
		1, 128, 128, 0, nil)
	if err != nil {
		return EnginePipePair{}, fmt.Errorf("[IPC] create engine pipe: %w", err)
	}

	inheritable := &windows.SecurityAttributes{
		Length:        uint32(sizeofSecurityAttributes),
		InheritHandle: 1,
	}
	service, err := windows.CreateFile(name16,
		windows.GENERIC_READ|windows.GENERIC_WRITE, 0, inheritable,
		windows.OPEN_EXISTING, 0, 0)
	if err != nil {
		windows.CloseHandle(worker)
		return EnginePipePair{}, fmt.Errorf("[IPC] open engine pipe service end: %w", err)
	}

	mode := uint32(windows.PIPE_READMODE_MESSAGE)
	if err := setNamedPipeHandleState(service, &mode); err != nil {
		windows.CloseHandle(worker)
		windows.CloseHandle(service)
		return EnginePipePair{}, fmt.Errorf("[IPC] set engine pipe mode: %w", err)
	}

	return EnginePipePair{Worker: worker, Service: service, Name: name}, nil
}

// Close releases both ends. Safe on partially-closed pairs.
func (p *EnginePipePair) Close() {
	if p.Worker != 0 && p.Worker != windows.InvalidHandle {
		windows.CloseHandle(p.Worker)
		p.Worker = windows.InvalidHandle
	}
	if p.Service != 0 && p.Service != windows.InvalidHandle {
		windows.CloseHandle(p.Service)
		p.Service = windows.InvalidHandle
	}
}

// CloseServiceEnd closes only the inherited end, once the child owns it.
func (p *EnginePipePair) CloseServiceEnd() {
	if p.Service != 0 && p.Service != windows.InvalidHandle {
		windows.CloseHandle(p.Service)
		p.Service = windows.InvalidHandle
	}
}
