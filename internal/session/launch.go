//go:build windows

package session

import (
	"fmt"
	"path/filepath"
	"strings"
	"unsafe"

	"golang.org/x/sys/windows"

	"privnet-helper/internal/core"
)

var saSize = uint32(unsafe.Sizeof(windows.SecurityAttributes{}))

// Process access rights granted to the client on its engine child.
const (
	processTerminate = 0x0001
	processVMRead    = 0x0010
	processQueryInfo = 0x0400
)

// engineProcess is the launched child and the handles the worker keeps
// for it.
type engineProcess struct {
	proc       windows.Handle
	thread     windows.Handle
	pid        uint32
	stdinWrite windows.Handle
}

// buildEngineSecurity builds the child's security descriptor: the
// service account gets full access, the client gets just enough to
// watch and kill its engine (read, synchronize, terminate, query,
// VM read).
func buildEngineSecurity(svcSID, clientSID *windows.SID) (*windows.SECURITY_DESCRIPTOR, error) {
	entries := []windows.EXPLICIT_ACCESS{
		{
			AccessPermissions: windows.STANDARD_RIGHTS_ALL | windows.SPECIFIC_RIGHTS_ALL,
			AccessMode:        windows.SET_ACCESS,
			Inheritance:       windows.NO_INHERITANCE,
			Trustee: windows.TRUSTEE{
				TrusteeForm:  windows.TRUSTEE_IS_SID,
				TrusteeType:  windows.TRUSTEE_IS_UNKNOWN,
				TrusteeValue: windows.TrusteeValueFromSID(svcSID),
			},
		},
		{
			AccessPermissions: windows.READ_CONTROL | windows.SYNCHRONIZE |
				processVMRead | processTerminate | processQueryInfo,
			AccessMode:  windows.SET_ACCESS,
			Inheritance: windows.NO_INHERITANCE,
			Trustee: windows.TRUSTEE{
				TrusteeForm:  windows.TRUSTEE_IS_SID,
				TrusteeType:  windows.TRUSTEE_IS_UNKNOWN,
				TrusteeValue: windows.TrusteeValueFromSID(clientSID),
			},
		},
	}

	dacl, err := windows.ACLFromEntries(entries, nil)
	if err != nil {
		return nil, fmt.Errorf("SetEntriesInAcl: %w", err)
	}
	sd, err := windows.NewSecurityDescriptor()
	if err != nil {
		return nil, fmt.Errorf("InitializeSecurityDescriptor: %w", err)
	}
	if err := sd.SetOwner(svcSID, false); err != nil {
		return nil, fmt.Errorf("SetSecurityDescriptorOwner: %w", err)
	}
	if err := sd.SetDACL(dacl, true, false); err != nil {
		return nil, fmt.Errorf("SetSecurityDescriptorDacl: %w", err)
	}
	return sd, nil
}

// launchEngine creates the engine child under the client's primary
// token: stdout/stderr to NUL, stdin piped from the service, the
// private pipe handle on the command line, the client's environment
// block, and the DACL built above. The caller must still be
// impersonating the client (for CreateEnvironmentBlock) and must
// revert afterwards.
func launchEngine(settings *core.Settings, client clientIdentity, sd *windows.SECURITY_DESCRIPTOR,
	workdir, options string, svcPipe windows.Handle) (ep engineProcess, err error) {

	var priToken windows.Token
	if err = windows.DuplicateTokenEx(client.token, windows.TOKEN_ALL_ACCESS, nil,
		windows.SecurityAnonymous, windows.TokenPrimary, &priToken); err != nil {
		return ep, fmt.Errorf("DuplicateTokenEx: %w", err)
	}
	defer priToken.Close()

	inheritable := &windows.SecurityAttributes{Length: saSize, InheritHandle: 1}

	nul16, _ := windows.UTF16PtrFromString("NUL")
	stdoutWrite, err := windows.CreateFile(nul16, windows.GENERIC_WRITE,
		windows.FILE_SHARE_WRITE, inheritable, windows.OPEN_EXISTING, 0, 0)
	if err != nil {
		return ep, fmt.Errorf("CreateFile for stdout: %w", err)
	}
	defer windows.CloseHandle(stdoutWrite)

	var stdinRead, stdinWrite windows.Handle
	if err = windows.CreatePipe(&stdinRead, &stdinWrite, inheritable, 0); err != nil {
		return ep, fmt.Errorf("CreatePipe: %w", err)
	}
	defer windows.CloseHandle(stdinRead)
	if err = windows.SetHandleInformation(stdinWrite, windows.HANDLE_FLAG_INHERIT, 0); err != nil {
		windows.CloseHandle(stdinWrite)
		return ep, fmt.Errorf("SetHandleInformation: %w", err)
	}

	var env *uint16
	if err = windows.CreateEnvironmentBlock(&env, client.token, false); err != nil {
		windows.CloseHandle(stdinWrite)
		return ep, fmt.Errorf("CreateEnvironmentBlock: %w", err)
	}
	defer windows.DestroyEnvironmentBlock(env)

	priority, err := core.PriorityClass(settings.Priority)
	if err != nil {
		windows.CloseHandle(stdinWrite)
		return ep, err
	}

	argv0 := strings.TrimSuffix(filepath.Base(settings.EnginePath), ".exe")
	cmdline := fmt.Sprintf("%s %s --msg-channel %d", argv0, options, svcPipe)

	exe16, err := windows.UTF16PtrFromString(settings.EnginePath)
	if err != nil {
		windows.CloseHandle(stdinWrite)
		return ep, err
	}
	cmdline16, err := windows.UTF16PtrFromString(cmdline)
	if err != nil {
		windows.CloseHandle(stdinWrite)
		return ep, err
	}
	var workdir16 *uint16
	if workdir != "" {
		if workdir16, err = windows.UTF16PtrFromString(workdir); err != nil {
			windows.CloseHandle(stdinWrite)
			return ep, err
		}
	}

	procSA := &windows.SecurityAttributes{Length: saSize, SecurityDescriptor: sd}

	si := &windows.StartupInfo{
		Cb:        uint32(unsafe.Sizeof(windows.StartupInfo{})),
		Flags:     windows.STARTF_USESTDHANDLES,
		StdInput:  stdinRead,
		StdOutput: stdoutWrite,
		StdErr:    stdoutWrite,
	}
	pi := &windows.ProcessInformation{}

	err = windows.CreateProcessAsUser(priToken, exe16, cmdline16, procSA, nil, true,
		priority|windows.CREATE_NO_WINDOW|windows.CREATE_UNICODE_ENVIRONMENT,
		env, workdir16, si, pi)
	if err != nil {
		windows.CloseHandle(stdinWrite)
		return ep, fmt.Errorf("CreateProcessAsUser: %w", err)
	}

	return engineProcess{
		proc:       pi.Process,
		thread:     pi.Thread,
		pid:        pi.ProcessId,
		stdinWrite: stdinWrite,
	}, nil
}

// forwardStdin converts the startup blob's stdin payload to UTF-8 and
// writes it to the child, best effort.
func (ep *engineProcess) forwardStdin(payload string) {
	if payload == "" || ep.stdinWrite == 0 {
		return
	}
	var written uint32
	data := []byte(payload)
	windows.WriteFile(ep.stdinWrite, data, &written, nil)
}

// closeAll releases every child handle still open.
func (ep *engineProcess) closeAll() {
	for _, h := range []*windows.Handle{&ep.proc, &ep.thread, &ep.stdinWrite} {
		if *h != 0 && *h != windows.InvalidHandle {
			windows.CloseHandle(*h)
			*h = 0
		}
	}
}
