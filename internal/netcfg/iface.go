//go:build windows

package netcfg

import (
	"fmt"

	"golang.org/x/sys/windows"

	"privnet-helper/internal/ipc"
)

// InterfaceLUID resolves an interface alias name to its LUID.
func InterfaceLUID(alias string) (uint64, error) {
	alias16, err := windows.UTF16PtrFromString(alias)
	if err != nil {
		return 0, err
	}
	var luid uint64
	if err := convertInterfaceAliasToLUID(alias16, &luid); err != nil {
		return 0, fmt.Errorf("[Net] alias %q to LUID: %w", alias, err)
	}
	return luid, nil
}

// InterfaceLUIDFromIndex resolves an interface index to its LUID.
func InterfaceLUIDFromIndex(ifIndex uint32) (uint64, error) {
	var luid uint64
	if err := convertInterfaceIndexToLUID(ifIndex, &luid); err != nil {
		return 0, fmt.Errorf("[Net] index %d to LUID: %w", ifIndex, err)
	}
	return luid, nil
}

// InterfaceIDString resolves an interface alias to its brace-wrapped
// GUID string, the form the TCPIP registry keys are named by.
func InterfaceIDString(alias string) (string, error) {
	luid, err := InterfaceLUID(alias)
	if err != nil {
		return "", err
	}
	var guid windows.GUID
	if err := convertInterfaceLUIDToGUID(&luid, &guid); err != nil {
		return "", fmt.Errorf("[Net] LUID of %q to GUID: %w", alias, err)
	}
	return guid.String(), nil
}

// resolveIface fills either the interface index or the LUID of a row,
// preferring the explicit index when the client set one.
func resolveIface(iface ipc.Iface, setIndex func(uint32), setLUID func(uint64)) error {
	if iface.Index != -1 {
		setIndex(uint32(iface.Index))
		return nil
	}
	luid, err := InterfaceLUID(iface.Name)
	if err != nil {
		return err
	}
	setLUID(luid)
	return nil
}
