//go:build windows

package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettingsMissingFile(t *testing.T) {
	s, err := LoadSettings(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)
}

func TestLoadSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
engine_path: C:\Program Files\VPN\engine.exe
admin_group: VPN Administrators
priority: below_normal
pipe_instance: -test
log:
  level: debug
`), 0600))

	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, `C:\Program Files\VPN\engine.exe`, s.EnginePath)
	assert.Equal(t, "VPN Administrators", s.AdminGroup)
	assert.Equal(t, "below_normal", s.Priority)
	assert.Equal(t, "-test", s.PipeInstance)
	assert.Equal(t, "debug", s.Log.Level)
}

func TestLoadSettingsRejectsBadPriority(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
engine_path: C:\engine.exe
priority: realtime
`), 0600))

	_, err := LoadSettings(path)
	assert.Error(t, err)
}

func TestValidateRequiresEnginePath(t *testing.T) {
	s := DefaultSettings()
	assert.Error(t, s.Validate())

	s.EnginePath = `C:\engine.exe`
	assert.NoError(t, s.Validate())
}

func TestPriorityClass(t *testing.T) {
	for _, name := range []string{"idle", "below_normal", "normal", "above_normal", "high", ""} {
		_, err := PriorityClass(name)
		assert.NoError(t, err, name)
	}
	_, err := PriorityClass("turbo")
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelInfo, ParseLevel(""))
	assert.Equal(t, LevelWarn, ParseLevel("WARNING"))
	assert.Equal(t, LevelOff, ParseLevel("off"))
	assert.Equal(t, LevelInfo, ParseLevel("bogus"))
}
