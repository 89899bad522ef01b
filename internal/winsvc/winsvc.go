//go:build windows

package winsvc

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/windows/svc"
)

const (
	ServiceName        = "PrivNetHelper"
	ServiceDisplayName = "Privileged Network Helper Service"
	ServiceDescription = "Performs privileged network configuration on behalf of VPN engine processes"
)

// IsWindowsService reports whether the current process is running as a Windows Service.
func IsWindowsService() bool {
	isSvc, err := svc.IsWindowsService()
	if err != nil {
		return false
	}
	return isSvc
}

// RunService runs the process as a Windows Service, calling runFunc to
// start the helper and stopFunc to signal graceful shutdown.
// This function blocks until the service is stopped.
func RunService(runFunc func() error, stopFunc func()) error {
	h := &serviceHandler{
		runFunc:  runFunc,
		stopFunc: stopFunc,
	}
	return svc.Run(ServiceName, h)
}

// serviceHandler implements svc.Handler for the Windows Service Control Manager.
type serviceHandler struct {
	runFunc  func() error
	stopFunc func()
	once     sync.Once
}

// Execute is called by the Windows SCM. It must respond to service control commands.
func (h *serviceHandler) Execute(args []string, r <-chan svc.ChangeRequest, s chan<- svc.Status) (bool, uint32) {
	s <- svc.Status{State: svc.StartPending}

	accepted := svc.AcceptStop | svc.AcceptShutdown

	// The accept loop runs until stopFunc is called, so Running is
	// reported immediately.
	errCh := make(chan error, 1)
	go func() {
		errCh <- h.runFunc()
	}()

	s <- svc.Status{State: svc.Running, Accepts: accepted}

	for {
		select {
		case cr := <-r:
			switch cr.Cmd {
			case svc.Interrogate:
				s <- cr.CurrentStatus
				// Resend after short delay per Windows docs.
				time.Sleep(100 * time.Millisecond)
				s <- cr.CurrentStatus
			case svc.Stop, svc.Shutdown:
				s <- svc.Status{State: svc.StopPending}
				h.once.Do(func() {
					h.stopFunc()
				})
				<-errCh
				return false, 0
			default:
				// Ignore unknown commands.
			}
		case err := <-errCh:
			// The accept loop exited on its own.
			if err != nil {
				return true, 1
			}
			return false, 0
		}
	}
}

// ServiceError wraps service-related errors with context.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("winsvc: %s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}
