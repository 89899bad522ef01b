//go:build windows

package dnscfg

import (
	"fmt"
	"net/netip"
	"syscall"
	"time"

	"privnet-helper/internal/ipc"
	"privnet-helper/internal/undo"
	"privnet-helper/internal/winutil"
)

const winsNetshTimeout = 30 * time.Second

// WINSUndo reverses WINS configuration by interface alias.
type WINSUndo struct {
	IfaceName string
}

// netshWINSCmd runs: netsh interface ip <action> wins "<iface>"
// [static] <addr>. A nil address with action delete clears all
// entries; with any other action there is nothing to do.
func netshWINSCmd(action, ifaceName, addr string) error {
	if addr == "" {
		if action != "delete" {
			return nil
		}
		addr = "all"
	}

	static := ""
	if action == "set" {
		static = "static "
	}

	netsh, err := winutil.SystemBinary("netsh.exe")
	if err != nil {
		return err
	}
	cmdline := fmt.Sprintf(`netsh interface ip %s wins "%s" %s%s`, action, ifaceName, static, addr)
	if code := winutil.ExecCommand(netsh, cmdline, winsNetshTimeout); code != 0 {
		return syscall.Errno(code)
	}
	return nil
}

// HandleWINSConfig applies an add/del WINS configuration request.
func HandleWINSConfig(msg *ipc.WINSCfgMsg, ledger *undo.Ledger) error {
	addrLen := int(msg.AddrLen)
	if addrLen > len(msg.Addrs) {
		addrLen = len(msg.Addrs)
	}

	if msg.Iface.Name == "" {
		return ipc.SentinelError(ipc.ErrMessageData)
	}

	// Existing addresses are cleared before any are added, and always
	// on delete.
	if addrLen > 0 || msg.Type == ipc.MsgDelWINSCfg {
		if err := netshWINSCmd("delete", msg.Iface.Name, ""); err != nil {
			return err
		}
		ledger.RemoveMatching(undo.WINS, func(rec any) bool {
			return rec.(*WINSUndo).IfaceName == msg.Iface.Name
		})
	}

	if msg.Type == ipc.MsgDelWINSCfg {
		return nil
	}

	for i := 0; i < addrLen; i++ {
		action := "add"
		if i == 0 {
			action = "set"
		}
		err := netshWINSCmd(action, msg.Iface.Name, netip.AddrFrom4(msg.Addrs[i]).String())
		// Duplicates are not filtered, so errors adding the extra
		// addresses are ignored.
		if i == 0 && err != nil {
			return err
		}
	}

	if addrLen > 0 {
		ledger.Append(undo.WINS, &WINSUndo{IfaceName: msg.Iface.Name})
	}
	return nil
}

// UndoWINS is the teardown path for a WINSUndo record.
func UndoWINS(rec *WINSUndo) {
	netshWINSCmd("delete", rec.IfaceName, "")
}
