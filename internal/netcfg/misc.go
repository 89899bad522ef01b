//go:build windows

package netcfg

import (
	"fmt"
	"syscall"
	"time"

	"golang.org/x/sys/windows"

	"privnet-helper/internal/ipc"
	"privnet-helper/internal/winutil"
)

// HandleFlushNeighbors drains the neighbour cache of an interface.
// IPv4 uses the legacy per-interface flush; anything else goes through
// the dual-stack flush. Ephemeral effect, nothing to undo.
func HandleFlushNeighbors(msg *ipc.FlushNeighborsMsg) error {
	if msg.Family == windows.AF_INET {
		return flushIPNetTable(uint32(msg.Iface.Index))
	}
	return flushIPNetTable2(msg.Family, uint32(msg.Iface.Index))
}

// HandleEnableDHCP switches an IPv4 interface back to DHCP addressing
// via netsh. Not rolled back; failure is expected when DHCP is already
// enabled, so callers treat the exit code as advisory.
func HandleEnableDHCP(msg *ipc.EnableDHCPMsg) error {
	netsh, err := winutil.SystemBinary("netsh.exe")
	if err != nil {
		return err
	}
	cmdline := fmt.Sprintf(`netsh interface ipv4 set address name="%d" source=dhcp`, msg.Iface.Index)
	if code := winutil.ExecCommand(netsh, cmdline, 5*time.Second); code != 0 {
		return syscall.Errno(code)
	}
	return nil
}

// HandleSetMTU rewrites the NlMtu of an IP interface row. For IPv4 the
// site prefix length must be cleared before the row is written back.
func HandleSetMTU(msg *ipc.SetMTUMsg) error {
	var row MibIPInterfaceRow
	initIPInterfaceEntry(&row)
	row.Family = msg.Family
	row.InterfaceIndex = uint32(msg.Iface.Index)
	if err := GetIPInterfaceEntry(&row); err != nil {
		return err
	}
	if msg.Family == windows.AF_INET {
		row.SitePrefixLength = 0
	}
	row.NlMtu = msg.MTU
	return SetIPInterfaceEntry(&row)
}
