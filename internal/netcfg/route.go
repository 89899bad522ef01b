//go:build windows

package netcfg

import (
	"privnet-helper/internal/ipc"
	"privnet-helper/internal/undo"
)

const infiniteLifetime = 0xffffffff

// buildRouteRow translates a route request into a forwarding row.
func buildRouteRow(msg *ipc.RouteMsg) (MibIPForwardRow2, error) {
	var row MibIPForwardRow2
	row.ValidLifetime = infiniteLifetime
	row.PreferredLifetime = infiniteLifetime
	row.Protocol = routeProtoNetMgmt
	row.Metric = msg.Metric
	row.DestinationPrefix.Prefix.SetAddr(msg.Family, msg.Prefix)
	row.DestinationPrefix.PrefixLength = msg.PrefixLen
	row.NextHop.SetAddr(msg.Family, msg.Gateway)

	if msg.Iface.Index != -1 {
		row.InterfaceIndex = uint32(msg.Iface.Index)
	} else if msg.Iface.Name != "" {
		luid, err := InterfaceLUID(msg.Iface.Name)
		if err != nil {
			return row, err
		}
		row.InterfaceLUID = luid
	}
	return row, nil
}

// HandleRoute applies an add/del route request, mirroring the address
// handler's ledger semantics.
func HandleRoute(msg *ipc.RouteMsg, ledger *undo.Ledger) error {
	row, err := buildRouteRow(msg)
	if err != nil {
		return err
	}

	if msg.Type == ipc.MsgAddRoute {
		if err := createIPForwardEntry2(&row); err != nil {
			return err
		}
		ledger.Append(undo.Route, &row)
		return nil
	}

	if err := DeleteRouteRow(&row); err != nil {
		return err
	}
	ledger.RemoveMatching(undo.Route, func(rec any) bool {
		return *rec.(*MibIPForwardRow2) == row
	})
	return nil
}
