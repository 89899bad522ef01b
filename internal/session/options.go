//go:build windows

package session

import (
	"fmt"
	"strings"

	"golang.org/x/sys/windows"

	"privnet-helper/internal/core"
)

// CheckOptionFunc is the injected whitelist predicate: it decides
// whether the option at the head of args may be used from workdir by
// an unprivileged client. The service does not define the policy.
type CheckOptionFunc func(workdir string, args []string, settings *core.Settings) bool

const (
	configDeniedFmt = "You have specified a config file location (%s relative to %s)" +
		" that requires admin approval. This error may be avoided" +
		" by adding your account to the %q group"
	optionDeniedFmt = "You have specified an option (%s) that may be used" +
		" only with admin approval. This error may be avoided" +
		" by adding your account to the %q group"
)

func isOption(arg string) bool {
	return strings.HasPrefix(arg, "--")
}

// validateOptions checks the engine option string against the
// whitelist predicate. It returns ok and, when not ok, the message to
// report to the client.
func validateOptions(workdir, options string, settings *core.Settings, check CheckOptionFunc) (bool, string) {
	if check == nil || strings.TrimSpace(options) == "" {
		return true, ""
	}

	argv, err := windows.DecomposeCommandLine(options)
	if err != nil {
		return false, fmt.Sprintf("Cannot validate options: CommandLineToArgvW failed with error = %v", err)
	}
	if len(argv) < 1 {
		return true, ""
	}

	// A single argument is shorthand for --config <arg>.
	if len(argv) == 1 {
		if !check(workdir, []string{"--config", argv[0]}, settings) {
			return false, fmt.Sprintf(configDeniedFmt, argv[0], workdir, settings.AdminGroup)
		}
		return true, ""
	}

	for i, arg := range argv {
		if !isOption(arg) {
			continue
		}
		if !check(workdir, argv[i:], settings) {
			if arg == "--config" && len(argv)-i > 1 {
				return false, fmt.Sprintf(configDeniedFmt, argv[i+1], workdir, settings.AdminGroup)
			}
			return false, fmt.Sprintf(optionDeniedFmt, arg, settings.AdminGroup)
		}
	}
	return true, ""
}
