//go:build windows

package core

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/windows"
	"gopkg.in/yaml.v3"
)

// Settings holds process-wide service configuration. Immutable after Load.
type Settings struct {
	// EnginePath is the full path to the VPN engine executable launched
	// for each client session.
	EnginePath string `yaml:"engine_path"`

	// AdminGroup is the local group whose members may run arbitrary
	// engine options without whitelist approval.
	AdminGroup string `yaml:"admin_group,omitempty"`

	// ServiceUser is the account name the engine may also run as to
	// bypass option validation (typically the service's own virtual
	// account).
	ServiceUser string `yaml:"service_user,omitempty"`

	// Priority is the process priority class for the engine child:
	// idle, below_normal, normal, above_normal or high.
	Priority string `yaml:"priority,omitempty"`

	// PipeInstance distinguishes parallel service installations. It is
	// appended to the product name in pipe paths.
	PipeInstance string `yaml:"pipe_instance,omitempty"`

	Log LogConfig `yaml:"log,omitempty"`
}

// DefaultSettings returns settings with built-in defaults applied.
func DefaultSettings() Settings {
	return Settings{
		AdminGroup: "Network Configuration Operators",
		Priority:   "normal",
	}
}

// LoadSettings reads the YAML settings file. A missing file yields the
// defaults; EnginePath must still be set before sessions can launch.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, fmt.Errorf("[Config] read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("[Config] parse %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// Validate checks settings consistency.
func (s *Settings) Validate() error {
	if s.EnginePath == "" {
		return fmt.Errorf("[Config] engine_path is required")
	}
	if _, err := PriorityClass(s.Priority); err != nil {
		return err
	}
	return nil
}

// PriorityClass maps a priority name to the process creation flag.
func PriorityClass(name string) (uint32, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "idle":
		return windows.IDLE_PRIORITY_CLASS, nil
	case "below_normal":
		return windows.BELOW_NORMAL_PRIORITY_CLASS, nil
	case "normal", "":
		return windows.NORMAL_PRIORITY_CLASS, nil
	case "above_normal":
		return windows.ABOVE_NORMAL_PRIORITY_CLASS, nil
	case "high":
		return windows.HIGH_PRIORITY_CLASS, nil
	default:
		return 0, fmt.Errorf("[Config] unknown priority class %q", name)
	}
}
