//go:build windows

package dnscfg

import (
	"unsafe"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/mgr"

	"privnet-helper/internal/core"
)

// WNF state name for group-policy system changes. Publishing it makes
// the resolver re-read the group-policy DNS settings.
const (
	wnfGpolSystemChangesLo = 0xA3BC0875
	wnfGpolSystemChangesHi = 0x0D891E2A
)

var wnfGpolSystemChanges = uint64(wnfGpolSystemChangesHi)<<32 | uint64(wnfGpolSystemChangesLo)

var (
	modNtdll                   = windows.NewLazySystemDLL("ntdll.dll")
	procRtlPublishWnfStateData = modNtdll.NewProc("RtlPublishWnfStateData")

	// publishGpolChanges is selected once at startup for the process
	// architecture; on 32-bit the 64-bit state name is passed as two
	// 32-bit call arguments.
	publishGpolChanges = publishGpolChanges64
)

func init() {
	if unsafe.Sizeof(uintptr(0)) == 4 {
		publishGpolChanges = publishGpolChanges32
	}
}

func publishGpolChanges64() bool {
	r1, _, _ := procRtlPublishWnfStateData.Call(uintptr(wnfGpolSystemChanges), 0, 0, 0, 0)
	return r1 == 0
}

func publishGpolChanges32() bool {
	r1, _, _ := procRtlPublishWnfStateData.Call(
		uintptr(wnfGpolSystemChangesLo), uintptr(wnfGpolSystemChangesHi), 0, 0, 0, 0)
	return r1 == 0
}

// ApplySettings tells the DNS resolver to reload its configuration:
// a WNF group-policy publish when group-policy state changed, then a
// parameter-change control to the Dnscache service.
func ApplySettings(gpol bool) {
	if gpol && !publishGpolChanges() {
		core.Log.Errorf("DNS", "sending group policy change notification failed")
	}

	m, err := mgr.Connect()
	if err != nil {
		core.Log.Errorf("DNS", "open service control manager: %v", err)
		return
	}
	defer m.Disconnect()

	dnssvc, err := m.OpenService("Dnscache")
	if err != nil {
		core.Log.Errorf("DNS", "open Dnscache service: %v", err)
		return
	}
	defer dnssvc.Close()

	if _, err := dnssvc.Control(svc.ParamChange); err != nil {
		core.Log.Errorf("DNS", "notify Dnscache of parameter change: %v", err)
	}
}
