//go:build windows

// Package daemon owns the service lifecycle: the client accept loop,
// the wait-set of running session workers, and global cleanup.
package daemon

import (
	"fmt"
	"time"

	"golang.org/x/sys/windows"

	"privnet-helper/internal/core"
	"privnet-helper/internal/dnscfg"
	"privnet-helper/internal/ipc"
	"privnet-helper/internal/session"
)

// Service is the running helper: settings, the process-wide exit
// event, and the option-whitelist predicate handed to every worker.
type Service struct {
	settings    *core.Settings
	checkOption session.CheckOptionFunc
	exitEvent   windows.Handle
}

// New builds a Service around loaded settings.
func New(settings *core.Settings, checkOption session.CheckOptionFunc) (*Service, error) {
	exitEvent, err := windows.CreateEvent(nil, 1, 0, nil)
	if err != nil {
		return nil, fmt.Errorf("[Daemon] create exit event: %w", err)
	}
	return &Service{
		settings:    settings,
		checkOption: checkOption,
		exitEvent:   exitEvent,
	}, nil
}

// Stop signals every worker's pipe waits and the accept loop to wind
// down.
func (s *Service) Stop() {
	windows.SetEvent(s.exitEvent)
}

// Run is the accept loop. It blocks until Stop is called and all
// workers have unwound their sessions.
func (s *Service) Run() error {
	// Repair search-list state orphaned by sessions that never got to
	// unwind.
	dnscfg.CleanupAtStartup()

	ioEvent, err := windows.CreateEvent(nil, 1, 0, nil)
	if err != nil {
		return fmt.Errorf("[Daemon] create accept event: %w", err)
	}
	defer windows.CloseHandle(ioEvent)
	defer windows.CloseHandle(s.exitEvent)

	pipe, err := ipc.CreateClientPipeInstance(s.settings.PipeInstance, true)
	if err != nil {
		return err
	}

	core.Log.Infof("Daemon", "listening on %s", ipc.ServicePipeName(s.settings.PipeInstance))

	var workers []windows.Handle // one done-event per live worker
	var loopErr error

accept:
	for {
		var overlapped windows.Overlapped
		overlapped.HEvent = ioEvent
		windows.ResetEvent(ioEvent)

		if err := windows.ConnectNamedPipe(pipe, &overlapped); err != nil {
			switch err {
			case windows.ERROR_PIPE_CONNECTED:
				// Client raced ahead of the listen; the wait below
				// must not block on it.
				windows.SetEvent(ioEvent)
			case windows.ERROR_IO_PENDING:
			default:
				core.Log.Errorf("Daemon", "could not connect pipe: %v", err)
				loopErr = err
				windows.CloseHandle(pipe)
				break accept
			}
		}

		// The exit event joins the wait-set only while no workers
		// remain: workers see it through their own pipe waits, and
		// their completion wakes this loop instead.
		handles := []windows.Handle{ioEvent}
		if len(workers) == 0 {
			handles = append(handles, s.exitEvent)
		}
		handles = append(handles, workers...)

		ev, err := windows.WaitForMultipleObjects(handles, false, windows.INFINITE)
		if err != nil || ev == windows.WAIT_FAILED {
			windows.CancelIo(pipe)
			core.Log.Errorf("Daemon", "wait for connection failed: %v", err)
			windows.SetEvent(s.exitEvent)
			// Give the workers a moment to unwind before leaving.
			time.Sleep(time.Second)
			loopErr = err
			windows.CloseHandle(pipe)
			break accept
		}

		idx := int(ev - windows.WAIT_OBJECT_0)
		switch {
		case idx == 0:
			// Client connected: line up the next instance and hand
			// this pipe to a fresh worker.
			nextPipe, err := ipc.CreateClientPipeInstance(s.settings.PipeInstance, false)
			if err != nil {
				core.Log.Errorf("Daemon", "create next pipe instance: %v", err)
				nextPipe = windows.InvalidHandle
			}

			done, err := windows.CreateEvent(nil, 1, 0, nil)
			if err != nil {
				blob := ipc.ErrorReport(uint32(windows.ERROR_OUTOFMEMORY),
					"Insufficient resources to service new clients")
				ipc.WritePipe(pipe, blob, s.exitEvent)
				windows.CloseHandle(pipe)
			} else {
				workers = append(workers, done)
				go func(clientPipe, done windows.Handle) {
					session.Run(session.Config{
						ClientPipe:  clientPipe,
						ExitEvent:   s.exitEvent,
						Settings:    s.settings,
						CheckOption: s.checkOption,
					})
					windows.SetEvent(done)
				}(pipe, done)
			}

			pipe = nextPipe
			if pipe == windows.InvalidHandle {
				loopErr = fmt.Errorf("[Daemon] no pipe instance to accept on")
				break accept
			}

		case len(workers) == 0 && idx == 1:
			// Exit event with nothing left to wait for.
			windows.CancelIo(pipe)
			windows.CloseHandle(pipe)
			windows.ResetEvent(s.exitEvent)
			return nil

		default:
			// A worker finished; drop its done-event from the set.
			windows.CancelIo(pipe)
			wi := idx - 1
			windows.CloseHandle(workers[wi])
			workers = append(workers[:wi], workers[wi+1:]...)
		}
	}

	return loopErr
}
