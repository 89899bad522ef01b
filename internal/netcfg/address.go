//go:build windows

package netcfg

import (
	"privnet-helper/internal/ipc"
	"privnet-helper/internal/undo"
)

// buildAddressRow translates an address request into a unicast row.
func buildAddressRow(msg *ipc.AddressMsg) (MibUnicastIPAddressRow, error) {
	var row MibUnicastIPAddressRow
	initUnicastIPAddressEntry(&row)
	row.Address.SetAddr(msg.Family, msg.Address)
	row.OnLinkPrefixLength = msg.PrefixLen

	err := resolveIface(msg.Iface,
		func(idx uint32) { row.InterfaceIndex = idx },
		func(luid uint64) { row.InterfaceLUID = luid })
	return row, err
}

// HandleAddress applies an add/del address request. A successful add
// records the row for teardown; a del removes the identical recorded
// row, if any.
func HandleAddress(msg *ipc.AddressMsg, ledger *undo.Ledger) error {
	row, err := buildAddressRow(msg)
	if err != nil {
		return err
	}

	if msg.Type == ipc.MsgAddAddress {
		if err := createUnicastIPAddressEntry(&row); err != nil {
			return err
		}
		ledger.Append(undo.Address, &row)
		return nil
	}

	if err := DeleteAddressRow(&row); err != nil {
		return err
	}
	ledger.RemoveMatching(undo.Address, func(rec any) bool {
		return *rec.(*MibUnicastIPAddressRow) == row
	})
	return nil
}
