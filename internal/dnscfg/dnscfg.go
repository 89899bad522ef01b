//go:build windows

package dnscfg

import (
	"golang.org/x/sys/windows"

	"privnet-helper/internal/ipc"
	"privnet-helper/internal/netcfg"
	"privnet-helper/internal/undo"
)

// ServerUndo reverses a name-server install. The interface UUID is all
// that is needed: undo resets the NameServer value for the family the
// record's ledger kind implies.
type ServerUndo struct {
	IfaceID string
}

// DomainsUndo reverses a search-list append. The scope is re-resolved
// from the interface alias at undo time because it may have been
// created in the meantime.
type DomainsUndo struct {
	IfaceName string
	Domains   string
}

func familyKind(family uint16) undo.Kind {
	if family == windows.AF_INET6 {
		return undo.DNS6
	}
	return undo.DNS4
}

// HandleDNSConfig applies an add/del DNS configuration request:
// name servers for the (interface, family) pair plus optional search
// domains, followed by a resolver reload.
func HandleDNSConfig(msg *ipc.DNSCfgMsg, ledger *undo.Ledger) error {
	addrLen := int(msg.AddrLen)
	if addrLen > len(msg.Addrs) {
		addrLen = len(msg.Addrs)
	}

	if msg.Iface.Name == "" {
		return ipc.SentinelError(ipc.ErrMessageData)
	}

	iid, err := netcfg.InterfaceIDString(msg.Iface.Name)
	if err != nil {
		return err
	}

	kind := familyKind(msg.Family)

	// Existing addresses are cleared before any are added, and always
	// on delete.
	if addrLen > 0 || msg.Type == ipc.MsgDelDNSCfg {
		if err := ResetNameServers(iid, msg.Family); err != nil {
			return err
		}
		ledger.RemoveNewest(kind)
	}

	if msg.Type == ipc.MsgDelDNSCfg {
		gpol := false
		if msg.Domains != "" {
			gpol, err = setSearchDomains(msg.Iface.Name, "", ledger)
		}
		ApplySettings(gpol)
		return err
	}

	if addrLen > 0 {
		addrs := formatServerList(msg.Family, msg.Addrs[:], addrLen)
		if err := SetNameServers(iid, msg.Family, addrs); err != nil {
			return err
		}
		ledger.Append(kind, &ServerUndo{IfaceID: iid})
	}

	gpol := false
	if msg.Domains != "" {
		gpol, err = setSearchDomains(msg.Iface.Name, msg.Domains, ledger)
	}
	ApplySettings(gpol)
	return err
}

// setSearchDomains replaces the session's search-list suffix: any
// previously appended domains are spliced out first, then the new ones
// appended. Empty domains just removes. Returns whether group-policy
// state was touched.
func setSearchDomains(ifaceName, domains string, ledger *undo.Ledger) (bool, error) {
	key, scope, haveList, err := OpenSearchListKey(ifaceName)
	if err != nil {
		return false, err
	}
	defer key.Close()

	if rec, ok := ledger.RemoveNewest(undo.DNSDomains).(*DomainsUndo); ok {
		removeSearchDomains(key, rec.Domains)
	}

	if domains != "" {
		if err := addSearchDomains(key, haveList, domains); err != nil {
			removeSearchDomains(key, domains)
			return scope == ScopeGroupPolicy, err
		}
		ledger.Append(undo.DNSDomains, &DomainsUndo{IfaceName: ifaceName, Domains: domains})
	}

	return scope == ScopeGroupPolicy, nil
}

// UndoSearchDomains is the teardown path for a DomainsUndo record.
func UndoSearchDomains(rec *DomainsUndo) {
	key, scope, _, err := OpenSearchListKey(rec.IfaceName)
	if err != nil {
		return
	}
	removeSearchDomains(key, rec.Domains)
	key.Close()
	ApplySettings(scope == ScopeGroupPolicy)
}

// UndoNameServers is the teardown path for a ServerUndo record.
func UndoNameServers(rec *ServerUndo, kind undo.Kind) {
	family := uint16(windows.AF_INET)
	if kind == undo.DNS6 {
		family = windows.AF_INET6
	}
	ResetNameServers(rec.IfaceID, family)
}

// CleanupAtStartup drains search-list state orphaned by crashed
// sessions: whatever scope currently holds a list gets its preserved
// initial value back.
func CleanupAtStartup() {
	key, scope, _, err := OpenSearchListKey("")
	if err != nil {
		return
	}
	defer key.Close()
	if resetSearchDomains(key) {
		ApplySettings(scope == ScopeGroupPolicy)
	}
}
