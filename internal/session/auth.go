//go:build windows

package session

import (
	"fmt"
	"strings"

	"golang.org/x/sys/windows"

	"privnet-helper/internal/core"
)

var (
	modAdvapi32                    = windows.NewLazySystemDLL("advapi32.dll")
	procImpersonateNamedPipeClient = modAdvapi32.NewProc("ImpersonateNamedPipeClient")
)

func impersonateNamedPipeClient(pipe windows.Handle) error {
	r1, _, err := procImpersonateNamedPipeClient.Call(uintptr(pipe))
	if r1 == 0 {
		return err
	}
	return nil
}

// serviceIdentity is the service's own token user, captured before
// impersonation starts.
type serviceIdentity struct {
	token windows.Token
	sid   *windows.SID
}

func captureServiceIdentity() (serviceIdentity, error) {
	var token windows.Token
	if err := windows.OpenProcessToken(windows.CurrentProcess(), windows.TOKEN_QUERY, &token); err != nil {
		return serviceIdentity{}, fmt.Errorf("OpenProcessToken: %w", err)
	}
	user, err := token.GetTokenUser()
	if err != nil {
		token.Close()
		return serviceIdentity{}, fmt.Errorf("GetTokenInformation (service token): %w", err)
	}
	if !user.User.Sid.IsValid() {
		token.Close()
		return serviceIdentity{}, fmt.Errorf("IsValidSid (service token user)")
	}
	return serviceIdentity{token: token, sid: user.User.Sid}, nil
}

func (si *serviceIdentity) Close() {
	if si.token != 0 {
		si.token.Close()
		si.token = 0
	}
}

// clientIdentity is the pipe client captured through impersonation.
// The calling goroutine must be locked to its OS thread.
type clientIdentity struct {
	token windows.Token // impersonation token
	sid   *windows.SID
}

func impersonatePipeClient(pipe windows.Handle) (clientIdentity, error) {
	if err := impersonateNamedPipeClient(pipe); err != nil {
		return clientIdentity{}, fmt.Errorf("ImpersonateNamedPipeClient: %w", err)
	}

	var token windows.Token
	err := windows.OpenThreadToken(windows.CurrentThread(), windows.TOKEN_ALL_ACCESS, false, &token)
	if err != nil {
		windows.RevertToSelf()
		return clientIdentity{}, fmt.Errorf("OpenThreadToken: %w", err)
	}

	user, err := token.GetTokenUser()
	if err != nil {
		token.Close()
		windows.RevertToSelf()
		return clientIdentity{}, fmt.Errorf("GetTokenInformation (impersonation token): %w", err)
	}
	if !user.User.Sid.IsValid() {
		token.Close()
		windows.RevertToSelf()
		return clientIdentity{}, fmt.Errorf("IsValidSid (impersonation token user)")
	}
	return clientIdentity{token: token, sid: user.User.Sid}, nil
}

func (ci *clientIdentity) Close() {
	if ci.token != 0 {
		ci.token.Close()
		ci.token = 0
	}
}

// isAuthorizedUser reports whether the client may run arbitrary engine
// options: either it is the configured service account, or a member of
// the configured admin group.
func isAuthorizedUser(ci clientIdentity, adminGroup, serviceUser string) bool {
	if serviceUser != "" {
		if account, domain, _, err := ci.sid.LookupAccount(""); err == nil {
			name := account
			if domain != "" {
				name = domain + `\` + account
			}
			if strings.EqualFold(account, serviceUser) || strings.EqualFold(name, serviceUser) {
				return true
			}
		}
	}

	if adminGroup == "" {
		return false
	}
	groupSID, _, _, err := windows.LookupSID("", adminGroup)
	if err != nil {
		core.Log.Errorf("Session", "lookup admin group %q: %v", adminGroup, err)
		return false
	}
	member, err := ci.token.IsMember(groupSID)
	if err != nil {
		core.Log.Errorf("Session", "admin group membership check: %v", err)
		return false
	}
	return member
}
