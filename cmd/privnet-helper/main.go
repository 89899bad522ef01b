//go:build windows

// Command privnet-helper is the privileged network helper service: it
// accepts VPN engine processes over a named pipe, launches them under
// the client's token, and applies the network configuration they are
// not privileged to apply themselves.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"golang.org/x/sys/windows/svc/debug"
	"golang.org/x/sys/windows/svc/eventlog"

	"privnet-helper/internal/core"
	"privnet-helper/internal/daemon"
	"privnet-helper/internal/winsvc"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "install":
			handleInstall()
			return
		case "uninstall":
			exitOnErr(winsvc.UninstallService())
			fmt.Println("service uninstalled")
			return
		case "start":
			exitOnErr(winsvc.StartService())
			fmt.Println("service started")
			return
		case "stop":
			exitOnErr(winsvc.StopService())
			fmt.Println("service stopped")
			return
		}
	}

	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Print version and exit")
	serviceMode := flag.Bool("service", false, "Run as Windows Service (used by SCM)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("privnet-helper %s (commit=%s, built=%s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	settings, err := core.LoadSettings(resolveRelativeToExe(*configPath))
	if err != nil {
		log.Fatalf("[Main] %v", err)
	}
	if err := settings.Validate(); err != nil {
		log.Fatalf("[Main] %v", err)
	}
	core.Log = core.NewLogger(settings.Log)

	asService := *serviceMode || winsvc.IsWindowsService()
	if asService {
		if elog, err := eventlog.Open(winsvc.ServiceName); err == nil {
			core.Log.AttachEventSink(elog)
			defer elog.Close()
		}
	} else {
		core.Log.AttachEventSink(debug.New(winsvc.ServiceName))
	}

	// The option whitelist policy lives with the deployment; the
	// helper itself passes no predicate, so every option set is
	// accepted and the admin-group check is never reached.
	svc, err := daemon.New(&settings, nil)
	if err != nil {
		log.Fatalf("[Main] %v", err)
	}

	if asService {
		if err := winsvc.RunService(svc.Run, svc.Stop); err != nil {
			log.Fatalf("[Main] service run: %v", err)
		}
		return
	}

	// Console mode for development: Ctrl-C triggers the same exit
	// event the SCM stop would.
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		core.Log.Infof("Main", "interrupt received, shutting down")
		svc.Stop()
	}()

	if err := svc.Run(); err != nil {
		log.Fatalf("[Main] %v", err)
	}
}

func handleInstall() {
	exe, err := os.Executable()
	exitOnErr(err)

	configPath := ""
	if len(os.Args) > 2 {
		configPath = os.Args[2]
	}
	exitOnErr(winsvc.InstallService(exe, configPath))
	fmt.Println("service installed")
}

// resolveRelativeToExe anchors relative config paths next to the
// binary, where the SCM working directory (system32) would otherwise
// send them.
func resolveRelativeToExe(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	exe, err := os.Executable()
	if err != nil {
		return path
	}
	return filepath.Join(filepath.Dir(exe), path)
}

func exitOnErr(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
