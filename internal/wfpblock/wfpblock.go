//go:build windows

// Package wfpblock installs and removes the packet-filter rule set
// that keeps traffic from bypassing the tunnel interface, and manages
// the interface metrics that go with it.
package wfpblock

import (
	"fmt"

	"github.com/tailscale/wf"
	"golang.org/x/sys/windows"

	"privnet-helper/internal/core"
	"privnet-helper/internal/ipc"
	"privnet-helper/internal/netcfg"
	"privnet-helper/internal/undo"
)

// BlockData is the undo record for one installed block. The dynamic
// WFP session owns the filters; closing it removes them. Metrics of
// -1 were unreadable at install time and are not restored.
type BlockData struct {
	Session    *wf.Session
	IfaceIndex uint32
	MetricV4   int32
	MetricV6   int32
}

// installFilters opens a dynamic WFP session and installs the block
// rule set scoped to the tunnel interface and the engine executable.
// With dnsOnly, only the DNS path is blocked.
func installFilters(ifaceIndex uint32, enginePath string, dnsOnly bool) (*wf.Session, error) {
	tunLUID, err := netcfg.InterfaceLUIDFromIndex(ifaceIndex)
	if err != nil {
		return nil, err
	}

	appID, err := wf.AppID(enginePath)
	if err != nil {
		return nil, fmt.Errorf("[WFP] AppID(%s): %w", enginePath, err)
	}

	sess, err := wf.New(&wf.Options{
		Name:        "Privileged Network Helper",
		Description: "Tunnel bypass protection",
		Dynamic:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("[WFP] open session: %w", err)
	}

	providerGUID, err := newGUID()
	if err != nil {
		sess.Close()
		return nil, err
	}
	providerID := wf.ProviderID(providerGUID)
	if err := sess.AddProvider(&wf.Provider{
		ID:          providerID,
		Name:        "Privileged Network Helper",
		Description: "Tunnel bypass protection provider",
	}); err != nil {
		sess.Close()
		return nil, fmt.Errorf("[WFP] add provider: %w", err)
	}

	sublayerGUID, err := newGUID()
	if err != nil {
		sess.Close()
		return nil, err
	}
	sublayerID := wf.SublayerID(sublayerGUID)
	if err := sess.AddSublayer(&wf.Sublayer{
		ID:       sublayerID,
		Name:     "Tunnel bypass protection rules",
		Provider: providerID,
		Weight:   0x0F,
	}); err != nil {
		sess.Close()
		return nil, fmt.Errorf("[WFP] add sublayer: %w", err)
	}

	for _, layer := range []wf.LayerID{wf.LayerALEAuthConnectV4, wf.LayerALEAuthConnectV6} {
		// Rule 1: the engine itself may connect anywhere.
		if err := addRule(sess, sublayerID, layer, 3000, "permit engine", []*wf.Match{
			{Field: wf.FieldALEAppID, Op: wf.MatchTypeEqual, Value: appID},
		}, wf.ActionPermit); err != nil {
			sess.Close()
			return nil, err
		}

		// Rule 2: loopback stays reachable.
		if err := addRule(sess, sublayerID, layer, 3000, "permit loopback", []*wf.Match{
			{Field: wf.FieldFlags, Op: wf.MatchTypeFlagsAllSet, Value: wf.ConditionFlagIsLoopback},
		}, wf.ActionPermit); err != nil {
			sess.Close()
			return nil, err
		}

		// Rule 3: anything on the tunnel interface is fine.
		if err := addRule(sess, sublayerID, layer, 2000, "permit tunnel interface", []*wf.Match{
			{Field: wf.FieldIPLocalInterface, Op: wf.MatchTypeEqual, Value: tunLUID},
		}, wf.ActionPermit); err != nil {
			sess.Close()
			return nil, err
		}

		// Rule 4: block the rest; just the DNS path in dns-only mode.
		var blockConds []*wf.Match
		if dnsOnly {
			blockConds = []*wf.Match{
				{Field: wf.FieldIPRemotePort, Op: wf.MatchTypeEqual, Value: uint16(53)},
			}
		}
		if err := addRule(sess, sublayerID, layer, 1000, "block bypass", blockConds, wf.ActionBlock); err != nil {
			sess.Close()
			return nil, err
		}
	}

	core.Log.Infof("WFP", "Block filters installed (iface=%d, dns_only=%v)", ifaceIndex, dnsOnly)
	return sess, nil
}

func addRule(sess *wf.Session, sublayer wf.SublayerID, layer wf.LayerID, weight uint16,
	name string, conds []*wf.Match, action wf.Action) error {
	guid, err := newGUID()
	if err != nil {
		return err
	}
	id := wf.RuleID(guid)
	if err := sess.AddRule(&wf.Rule{
		ID:         id,
		Name:       "Tunnel bypass protection: " + name,
		Layer:      layer,
		Sublayer:   sublayer,
		Weight:     uint64(weight),
		Conditions: conds,
		Action:     action,
	}); err != nil {
		return fmt.Errorf("[WFP] add rule %q: %w", name, err)
	}
	return nil
}

func newGUID() (windows.GUID, error) {
	guid, err := windows.GenerateGUID()
	if err != nil {
		return windows.GUID{}, fmt.Errorf("[WFP] generate GUID: %w", err)
	}
	return guid, nil
}

// HandleWfpBlock applies an add/del block request.
func HandleWfpBlock(msg *ipc.WfpBlockMsg, ledger *undo.Ledger, enginePath string) error {
	if msg.Type == ipc.MsgAddWfpBlock {
		return addBlock(msg, ledger, enginePath)
	}
	return deleteBlock(uint32(msg.Iface.Index), ledger)
}

func addBlock(msg *ipc.WfpBlockMsg, ledger *undo.Ledger, enginePath string) error {
	ifaceIndex := uint32(msg.Iface.Index)
	dnsOnly := msg.Flags == ipc.WfpBlockDNS

	// At most one block per session; a repeated add replaces it.
	if ledger.Len(undo.WfpBlock) > 0 {
		deleteBlock(ifaceIndex, ledger)
	}

	sess, err := installFilters(ifaceIndex, enginePath, dnsOnly)
	if err != nil {
		return err
	}

	data := &BlockData{
		Session:    sess,
		IfaceIndex: ifaceIndex,
		MetricV4:   GetInterfaceMetric(ifaceIndex, windows.AF_INET),
		MetricV6:   GetInterfaceMetric(ifaceIndex, windows.AF_INET6),
	}
	ledger.Append(undo.WfpBlock, data)

	if err := SetInterfaceMetric(ifaceIndex, windows.AF_INET, BlockMetric); err != nil {
		deleteBlock(ifaceIndex, ledger)
		return err
	}
	// IPv6 failure is non-fatal: the interface may have its v6 stack
	// disabled, and blocking must still activate.
	if err := SetInterfaceMetric(ifaceIndex, windows.AF_INET6, BlockMetric); err != nil {
		core.Log.Warnf("WFP", "set IPv6 metric on iface %d: %v", ifaceIndex, err)
	}
	return nil
}

// deleteBlock removes the session's block, restoring metrics at the
// requested interface. At most one block exists per session; repeated
// adds replace it.
func deleteBlock(ifaceIndex uint32, ledger *undo.Ledger) error {
	data, ok := ledger.RemoveNewest(undo.WfpBlock).(*BlockData)
	if !ok {
		core.Log.Errorf("WFP", "no previous block filters to delete")
		return nil
	}
	err := data.Session.Close()
	restoreMetrics(ifaceIndex, data)
	return err
}

// Undo is the teardown path for a BlockData record; it restores
// metrics at the interface recorded at install time.
func Undo(data *BlockData) {
	data.Session.Close()
	restoreMetrics(data.IfaceIndex, data)
}

func restoreMetrics(ifaceIndex uint32, data *BlockData) {
	if data.MetricV4 >= 0 {
		SetInterfaceMetric(ifaceIndex, windows.AF_INET, uint32(data.MetricV4))
	}
	if data.MetricV6 >= 0 {
		SetInterfaceMetric(ifaceIndex, windows.AF_INET6, uint32(data.MetricV6))
	}
}
