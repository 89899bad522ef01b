//go:build windows

package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"privnet-helper/internal/core"
)

func testSettings() *core.Settings {
	s := core.DefaultSettings()
	s.EnginePath = `C:\engine.exe`
	s.AdminGroup = "VPN Administrators"
	return &s
}

func allowAll(string, []string, *core.Settings) bool { return true }
func denyAll(string, []string, *core.Settings) bool  { return false }

func TestValidateOptionsEmpty(t *testing.T) {
	ok, _ := validateOptions(`C:\work`, "", testSettings(), denyAll)
	assert.True(t, ok)

	ok, _ = validateOptions(`C:\work`, "   ", testSettings(), denyAll)
	assert.True(t, ok)
}

func TestValidateOptionsNilPredicate(t *testing.T) {
	ok, _ := validateOptions(`C:\work`, "--up evil.bat", testSettings(), nil)
	assert.True(t, ok)
}

func TestValidateOptionsSingleArgIsConfig(t *testing.T) {
	var got []string
	check := func(workdir string, args []string, s *core.Settings) bool {
		got = args
		return true
	}
	ok, _ := validateOptions(`C:\work`, "client.conf", testSettings(), check)
	assert.True(t, ok)
	assert.Equal(t, []string{"--config", "client.conf"}, got)
}

func TestValidateOptionsConfigDenied(t *testing.T) {
	ok, errmsg := validateOptions(`C:\work`, "client.conf", testSettings(), denyAll)
	assert.False(t, ok)
	assert.Contains(t, errmsg, "client.conf")
	assert.Contains(t, errmsg, "VPN Administrators")

	ok, errmsg = validateOptions(`C:\work`, `--config ..\other.conf --verb 3`, testSettings(), denyAll)
	assert.False(t, ok)
	assert.Contains(t, errmsg, `..\other.conf`)
}

func TestValidateOptionsOptionDenied(t *testing.T) {
	ok, errmsg := validateOptions(`C:\work`, "--verb 3 --up evil.bat", testSettings(), denyAll)
	assert.False(t, ok)
	assert.True(t, strings.Contains(errmsg, "--verb"), errmsg)
}

func TestValidateOptionsAllAllowed(t *testing.T) {
	ok, errmsg := validateOptions(`C:\work`, "--config client.conf --verb 3", testSettings(), allowAll)
	assert.True(t, ok)
	assert.Empty(t, errmsg)
}
