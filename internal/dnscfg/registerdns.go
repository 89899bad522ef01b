//go:build windows

package dnscfg

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"privnet-helper/internal/core"
	"privnet-helper/internal/winutil"
)

// rdnsTimeout bounds both the semaphore wait and each ipconfig run.
const rdnsTimeout = 600 * time.Second

// rdnsSem serializes DNS re-registration across all sessions. It is
// deliberately a process-lifetime singleton: the OS resolver has no
// finer-grained unit to serialize on.
var rdnsSem = semaphore.NewWeighted(1)

// HandleRegisterDNS flushes and re-registers DNS in a background
// goroutine. The goroutine and the processes it spawns terminate or
// time out on their own, so nothing is recorded for undo.
func HandleRegisterDNS() error {
	go registerDNS()
	return nil
}

func registerDNS() {
	ctx, cancel := context.WithTimeout(context.Background(), rdnsTimeout)
	defer cancel()

	if err := rdnsSem.Acquire(ctx, 1); err != nil {
		core.Log.Errorf("DNS", "register-dns: failed to acquire semaphore: %v", err)
		return
	}
	defer rdnsSem.Release(1)

	ipcfg, err := winutil.SystemBinary("ipconfig.exe")
	if err != nil {
		core.Log.Errorf("DNS", "register-dns: %v", err)
		return
	}
	for _, cmdline := range []string{"ipconfig /flushdns", "ipconfig /registerdns"} {
		winutil.ExecCommand(ipcfg, cmdline, rdnsTimeout)
	}
}
