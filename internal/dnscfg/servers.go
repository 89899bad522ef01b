//go:build windows

package dnscfg

import (
	"fmt"
	"net/netip"
	"strings"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
)

const (
	tcpipIfacesPath  = `SYSTEM\CurrentControlSet\Services\Tcpip\Parameters\Interfaces`
	tcpip6IfacesPath = `SYSTEM\CurrentControlSet\Services\Tcpip6\Parameters\Interfaces`
)

func interfacesKeyPath(family uint16) string {
	if family == windows.AF_INET6 {
		return tcpip6IfacesPath
	}
	return tcpipIfacesPath
}

// setNameServersValue writes the NameServer value of one interface
// configuration for one address family.
func setNameServersValue(ifaceID string, family uint16, value string) error {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE,
		interfacesKeyPath(family)+`\`+ifaceID, registry.ALL_ACCESS)
	if err != nil {
		return fmt.Errorf("[DNS] open interface key %s family %d: %w", ifaceID, family, err)
	}
	defer key.Close()

	if err := key.SetStringValue("NameServer", value); err != nil {
		return fmt.Errorf("[DNS] set name servers %q for %s family %d: %w", value, ifaceID, family, err)
	}
	return nil
}

// SetNameServers installs a comma-separated name-server list.
func SetNameServers(ifaceID string, family uint16, addrs string) error {
	return setNameServersValue(ifaceID, family, addrs)
}

// ResetNameServers clears all name servers for the pair.
func ResetNameServers(ifaceID string, family uint16) error {
	return setNameServersValue(ifaceID, family, "")
}

// formatServerList renders the first n request addresses as the
// comma-separated registry value.
func formatServerList(family uint16, addrs [][16]byte, n int) string {
	parts := make([]string, 0, n)
	for i := 0; i < n; i++ {
		if family == windows.AF_INET6 {
			parts = append(parts, netip.AddrFrom16(addrs[i]).String())
		} else {
			parts = append(parts, netip.AddrFrom4([4]byte(addrs[i][:4])).String())
		}
	}
	return strings.Join(parts, ",")
}
