//go:build windows

// Package session runs one worker per connected client: it validates
// the startup blob, launches the engine under the client's token, and
// serves the engine's configuration requests until disconnect, at
// which point everything the session changed is unwound.
package session

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/windows"

	"privnet-helper/internal/core"
	"privnet-helper/internal/dnscfg"
	"privnet-helper/internal/ipc"
	"privnet-helper/internal/netcfg"
	"privnet-helper/internal/ringbuf"
	"privnet-helper/internal/undo"
	"privnet-helper/internal/wfpblock"
)

// childWaitMs is how long teardown waits for the engine to exit on its
// own before terminating it.
const childWaitMs = 2000

// Config wires one worker to its client pipe and the service globals.
type Config struct {
	ClientPipe  windows.Handle
	ExitEvent   windows.Handle
	Settings    *core.Settings
	CheckOption CheckOptionFunc
}

type session struct {
	cfg    Config
	ledger *undo.Ledger
}

// Run services one client connection to completion. It locks its
// goroutine to an OS thread: impersonation and the engine pipe name
// are both thread-scoped.
func Run(cfg Config) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	s := &session{cfg: cfg, ledger: undo.New()}
	s.run()

	windows.FlushFileBuffers(cfg.ClientPipe)
	windows.DisconnectNamedPipe(cfg.ClientPipe)
	windows.CloseHandle(cfg.ClientPipe)
}

// reportError sends a startup-phase error to the client and mirrors it
// to the log.
func (s *session) reportError(code uint32, what string) {
	blob := ipc.ErrorReport(code, what)
	ipc.WritePipe(s.cfg.ClientPipe, blob, s.cfg.ExitEvent)
	core.Log.Errorf("Session", "%s (status = 0x%08x)", what, code)
}

func (s *session) reportLastError(err error, what string) {
	s.reportError(ipc.AckCode(err), fmt.Sprintf("%s: %v", what, err))
}

func (s *session) run() {
	sud, ok := s.readStartupData()
	if !ok {
		return
	}

	svc, err := captureServiceIdentity()
	if err != nil {
		s.reportLastError(err, "capture service identity")
		return
	}
	defer svc.Close()

	client, err := impersonatePipeClient(s.cfg.ClientPipe)
	if err != nil {
		s.reportLastError(err, "impersonate pipe client")
		return
	}
	defer client.Close()
	reverted := false
	defer func() {
		if !reverted {
			windows.RevertToSelf()
		}
	}()

	// Unauthorized users may only run whitelisted options with the
	// config in the approved location.
	if ok, errmsg := validateOptions(sud.Directory, sud.Options, s.cfg.Settings, s.cfg.CheckOption); !ok {
		if !isAuthorizedUser(client, s.cfg.Settings.AdminGroup, s.cfg.Settings.ServiceUser) {
			s.reportError(ipc.ErrStartupData, errmsg)
			return
		}
	}

	sd, err := buildEngineSecurity(svc.sid, client.sid)
	if err != nil {
		s.reportLastError(err, "build engine security descriptor")
		return
	}

	pair, err := ipc.CreateEnginePipePair(s.cfg.Settings.PipeInstance, windows.GetCurrentThreadId())
	if err != nil {
		s.reportLastError(err, "create engine pipe")
		return
	}
	defer pair.Close()

	ep, err := launchEngine(s.cfg.Settings, client, sd, sud.Directory, sud.Options, pair.Service)
	if err != nil {
		s.reportLastError(err, "launch engine")
		return
	}
	defer ep.closeAll()

	if err := windows.RevertToSelf(); err != nil {
		windows.TerminateProcess(ep.proc, 1)
		s.reportLastError(err, "RevertToSelf")
		return
	}
	reverted = true

	pidBlob := ipc.PIDReport(ep.pid)
	ipc.WritePipe(s.cfg.ClientPipe, pidBlob, s.cfg.ExitEvent)
	core.Log.Infof("Session", "engine started (pid=%d)", ep.pid)

	// The child inherited its end of the private pipe; drop ours.
	pair.CloseServiceEnd()

	ep.forwardStdin(sud.StdInput)

	s.serve(pair.Worker, ep.proc)

	s.teardown(&ep)
}

// readStartupData peeks for the blob, reads it whole and validates its
// three-string layout.
func (s *session) readStartupData() (ipc.StartupData, bool) {
	bytes := ipc.PeekPipe(s.cfg.ClientPipe, s.cfg.ExitEvent)
	if bytes == 0 {
		s.reportError(uint32(windows.ERROR_BROKEN_PIPE), "peek startup data")
		return ipc.StartupData{}, false
	}
	if bytes < 2 {
		s.reportError(ipc.ErrStartupData, "malformed startup data: 1 byte received")
		return ipc.StartupData{}, false
	}

	blob := make([]byte, bytes)
	read := ipc.ReadPipe(s.cfg.ClientPipe, blob, s.cfg.ExitEvent)
	if read != bytes {
		s.reportError(uint32(windows.ERROR_READ_FAULT), "read startup data")
		return ipc.StartupData{}, false
	}

	sud, err := ipc.ParseStartupData(blob)
	if err != nil {
		s.reportError(ipc.ErrStartupData, err.Error())
		return ipc.StartupData{}, false
	}
	return sud, true
}

// serve is the request loop: wait quietly on the engine pipe, bail on
// shutdown or misbehaviour, otherwise read-handle-ack strictly in
// order.
func (s *session) serve(enginePipe windows.Handle, engineProc windows.Handle) {
	for {
		bytes := ipc.PeekPipe(enginePipe, s.cfg.ExitEvent)
		if bytes == 0 {
			return
		}
		if bytes > ipc.MaxRequestSize {
			core.Log.Errorf("Session",
				"engine sent too large payload to the pipe (%d bytes), it will be terminated", bytes)
			return
		}
		s.handleMessage(enginePipe, engineProc, bytes)
	}
}

// handleMessage reads one frame, dispatches it and always answers with
// an ack. Malformed frames get the data sentinel and an unknown-type
// frame the type sentinel; no state changes in either case.
func (s *session) handleMessage(enginePipe, engineProc windows.Handle, bytes uint32) {
	buf := make([]byte, bytes)
	read := ipc.ReadPipe(enginePipe, buf, s.cfg.ExitEvent)

	messageID := uint32(0xffffffff)
	code := ipc.ErrMessageData

	if read == bytes && read >= ipc.HeaderSize {
		if h, err := ipc.DecodeHeader(buf); err == nil {
			messageID = h.MessageID
		}
		req, err := ipc.Decode(buf)
		if err == nil {
			err = s.dispatch(req, engineProc)
		}
		code = ipc.AckCode(err)
		if err != nil {
			core.Log.Errorf("Session", "request %d failed: %v", messageID, err)
		}
	}

	ipc.WritePipe(enginePipe, ipc.EncodeAck(messageID, code), s.cfg.ExitEvent)
}

func (s *session) dispatch(req ipc.Request, engineProc windows.Handle) error {
	switch msg := req.(type) {
	case *ipc.AddressMsg:
		return netcfg.HandleAddress(msg, s.ledger)
	case *ipc.RouteMsg:
		return netcfg.HandleRoute(msg, s.ledger)
	case *ipc.FlushNeighborsMsg:
		return netcfg.HandleFlushNeighbors(msg)
	case *ipc.WfpBlockMsg:
		return wfpblock.HandleWfpBlock(msg, s.ledger, s.cfg.Settings.EnginePath)
	case *ipc.RegisterDNSMsg:
		return dnscfg.HandleRegisterDNS()
	case *ipc.DNSCfgMsg:
		return dnscfg.HandleDNSConfig(msg, s.ledger)
	case *ipc.WINSCfgMsg:
		return dnscfg.HandleWINSConfig(msg, s.ledger)
	case *ipc.EnableDHCPMsg:
		return netcfg.HandleEnableDHCP(msg)
	case *ipc.RegisterRingBuffersMsg:
		return ringbuf.HandleRegisterRingBuffers(msg, engineProc, s.ledger)
	case *ipc.SetMTUMsg:
		return netcfg.HandleSetMTU(msg)
	default:
		return ipc.SentinelError(ipc.ErrMessageType)
	}
}

// teardown waits briefly for the child, kills it if needed, reports a
// failed exit to the client, and unwinds the ledger.
func (s *session) teardown(ep *engineProcess) {
	windows.WaitForSingleObject(ep.proc, childWaitMs)

	var exitCode uint32
	if err := windows.GetExitCodeProcess(ep.proc, &exitCode); err == nil {
		const stillActive = 259
		if exitCode == stillActive {
			windows.TerminateProcess(ep.proc, 1)
		} else if exitCode != 0 {
			s.reportError(ipc.ErrEngineStartup,
				fmt.Sprintf("engine exited with error: exit code = %d", exitCode))
		}
	}

	s.drainUndo()
}

// drainUndo reverses every recorded side effect, newest first within
// each kind.
func (s *session) drainUndo() {
	s.ledger.Drain(func(k undo.Kind, rec any) {
		switch k {
		case undo.Address:
			netcfg.DeleteAddressRow(rec.(*netcfg.MibUnicastIPAddressRow))
		case undo.Route:
			netcfg.DeleteRouteRow(rec.(*netcfg.MibIPForwardRow2))
		case undo.DNS4, undo.DNS6:
			dnscfg.UndoNameServers(rec.(*dnscfg.ServerUndo), k)
		case undo.DNSDomains:
			dnscfg.UndoSearchDomains(rec.(*dnscfg.DomainsUndo))
		case undo.WINS:
			dnscfg.UndoWINS(rec.(*dnscfg.WINSUndo))
		case undo.WfpBlock:
			wfpblock.Undo(rec.(*wfpblock.BlockData))
		case undo.RingBuffer:
			rec.(*ringbuf.Maps).Unmap()
		}
	})
}
