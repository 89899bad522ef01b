//go:build windows

package wfpblock

import (
	"golang.org/x/sys/windows"

	"privnet-helper/internal/netcfg"
)

// BlockMetric is the interface metric forced onto the tunnel interface
// while block filters are installed, so it wins route selection.
const BlockMetric = 3

// GetInterfaceMetric reads the current metric of an interface for one
// family. Automatic metric is reported as 0; -1 means the row could
// not be read and nothing should be restored later.
func GetInterfaceMetric(ifaceIndex uint32, family uint16) int32 {
	row := netcfg.NewIPInterfaceRow(family, ifaceIndex)
	if err := netcfg.GetIPInterfaceEntry(row); err != nil {
		return -1
	}
	if row.UseAutomaticMetric {
		return 0
	}
	return int32(row.Metric)
}

// SetInterfaceMetric writes an interface metric; zero restores
// automatic metric selection.
func SetInterfaceMetric(ifaceIndex uint32, family uint16, metric uint32) error {
	row := netcfg.NewIPInterfaceRow(family, ifaceIndex)
	if err := netcfg.GetIPInterfaceEntry(row); err != nil {
		return err
	}
	if metric == 0 {
		row.UseAutomaticMetric = true
	} else {
		row.UseAutomaticMetric = false
		row.Metric = metric
	}
	if family == windows.AF_INET {
		row.SitePrefixLength = 0
	}
	return netcfg.SetIPInterfaceEntry(row)
}
