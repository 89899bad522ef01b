//go:build windows

// Package dnscfg manages the DNS and WINS configuration the service
// applies for client sessions: per-interface name servers, the global
// DNS suffix search list with its three-level scope precedence, and
// resolver reload notifications.
package dnscfg

import (
	"fmt"
	"strings"

	"golang.org/x/sys/windows/registry"

	"privnet-helper/internal/core"
	"privnet-helper/internal/netcfg"
)

// Scope names the registry location that holds the effective DNS
// search list. Group policy overrides the system-wide list, which
// overrides per-interface lists.
type Scope int

const (
	ScopeGroupPolicy Scope = iota
	ScopeSystemWide
	ScopeInterface
)

func (s Scope) String() string {
	switch s {
	case ScopeGroupPolicy:
		return "group_policy"
	case ScopeSystemWide:
		return "system_wide"
	case ScopeInterface:
		return "per_interface"
	default:
		return "unknown"
	}
}

const (
	gpolDNSClientPath  = `SOFTWARE\Policies\Microsoft\Windows NT\DNSClient`
	tcpipParamsPath    = `System\CurrentControlSet\Services\TCPIP\Parameters`
	tcpipInterfacesFmt = `System\CurrentControlSet\Services\TCPIP\Parameters\Interfaces\%s`

	// searchListCap is the maximum search list length in characters,
	// terminator included.
	searchListCap = 2048
)

// hasSearchListContent reports whether a SearchList value contains at
// least one domain name character. The contract is intentionally
// loose: its job is to reject whitespace-only lists, nothing more.
func hasSearchListContent(s string) bool {
	for _, c := range s {
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '.' {
			return true
		}
	}
	return false
}

// appendSearchList concatenates domains onto list with a comma
// separator, enforcing the registry value capacity.
func appendSearchList(list, domains string) (string, error) {
	combined := domains
	if list != "" {
		combined = list + "," + domains
	}
	if len(combined)+1 > searchListCap {
		return "", fmt.Errorf("[DNS] search list would exceed %d characters", searchListCap)
	}
	return combined, nil
}

// spliceSearchList removes the first occurrence of domains from list,
// together with its separator comma.
func spliceSearchList(list, domains string) (string, bool) {
	idx := strings.Index(list, domains)
	if idx < 0 {
		return list, false
	}
	before, after := list[:idx], list[idx+len(domains):]
	if strings.HasSuffix(before, ",") {
		before = before[:len(before)-1]
	} else if strings.HasPrefix(after, ",") {
		after = after[1:]
	}
	return before + after, true
}

func hasValidSearchList(key registry.Key) bool {
	val, _, err := key.GetStringValue("SearchList")
	if err != nil {
		return false
	}
	return hasSearchListContent(val)
}

// OpenSearchListKey probes for the effective search-list scope: the
// group-policy DNSClient key, then the system-wide TCPIP parameters,
// then the per-interface key. The interface scope never contributes an
// existing list worth preserving. ifaceName may be empty to skip the
// interface probe (startup cleanup does this).
func OpenSearchListKey(ifaceName string) (registry.Key, Scope, bool, error) {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, gpolDNSClientPath, registry.ALL_ACCESS)
	if err == nil {
		if hasValidSearchList(key) {
			return key, ScopeGroupPolicy, true, nil
		}
		key.Close()
	}

	key, err = registry.OpenKey(registry.LOCAL_MACHINE, tcpipParamsPath, registry.ALL_ACCESS)
	if err == nil {
		if hasValidSearchList(key) {
			return key, ScopeSystemWide, true, nil
		}
		key.Close()
	}

	if ifaceName != "" {
		iid, iidErr := netcfg.InterfaceIDString(ifaceName)
		if iidErr == nil {
			key, err = registry.OpenKey(registry.LOCAL_MACHINE,
				fmt.Sprintf(tcpipInterfacesFmt, iid), registry.ALL_ACCESS)
			if err == nil {
				return key, ScopeInterface, false, nil
			}
		}
	}

	return 0, ScopeInterface, false, fmt.Errorf("[DNS] no search list registry key available")
}

// storeInitialSearchList persists the pre-session list so a crashed
// session can be repaired at next service start. A marker that already
// exists is left alone.
func storeInitialSearchList(key registry.Key, list string) error {
	if list == "" {
		return fmt.Errorf("[DNS] refusing to store empty initial search list")
	}
	if _, _, err := key.GetStringValue("InitialSearchList"); err == nil {
		return nil
	} else if err != registry.ErrNotExist {
		core.Log.Errorf("DNS", "failed to probe InitialSearchList: %v", err)
	}
	return key.SetStringValue("InitialSearchList", list)
}

// addSearchDomains appends domains to the list at key. When a list
// already exists it is first preserved as InitialSearchList.
func addSearchDomains(key registry.Key, haveList bool, domains string) error {
	list := ""
	if haveList {
		var err error
		list, _, err = key.GetStringValue("SearchList")
		if err != nil {
			return fmt.Errorf("[DNS] read SearchList: %w", err)
		}
		if err := storeInitialSearchList(key, list); err != nil {
			return fmt.Errorf("[DNS] store initial search list: %w", err)
		}
	}

	combined, err := appendSearchList(list, domains)
	if err != nil {
		return err
	}
	if err := key.SetStringValue("SearchList", combined); err != nil {
		return fmt.Errorf("[DNS] write SearchList: %w", err)
	}
	return nil
}

// removeSearchDomains splices domains out of the list at key. If the
// shortened list matches the preserved initial list, the original
// state is restored and the marker removed.
func removeSearchDomains(key registry.Key, domains string) {
	list, _, err := key.GetStringValue("SearchList")
	if err != nil {
		core.Log.Errorf("DNS", "could not get SearchList from registry: %v", err)
		return
	}

	shortened, found := spliceSearchList(list, domains)
	if !found {
		core.Log.Errorf("DNS", "could not find domains in search list")
		return
	}

	if shortened != "" {
		initial, _, err := key.GetStringValue("InitialSearchList")
		if err != nil {
			core.Log.Errorf("DNS", "could not get InitialSearchList from registry: %v", err)
			return
		}
		if shortened == initial {
			resetSearchDomains(key)
			return
		}
	}

	if err := key.SetStringValue("SearchList", shortened); err != nil {
		core.Log.Errorf("DNS", "could not set SearchList in registry: %v", err)
	}
}

// resetSearchDomains restores SearchList from InitialSearchList and
// drops the marker. Reports whether anything was reset.
func resetSearchDomains(key registry.Key) bool {
	initial, _, err := key.GetStringValue("InitialSearchList")
	if err != nil {
		if err != registry.ErrNotExist {
			core.Log.Errorf("DNS", "could not get InitialSearchList from registry: %v", err)
		}
		return false
	}
	if err := key.SetStringValue("SearchList", initial); err != nil {
		core.Log.Errorf("DNS", "could not set SearchList in registry: %v", err)
		return false
	}
	key.DeleteValue("InitialSearchList")
	return true
}
