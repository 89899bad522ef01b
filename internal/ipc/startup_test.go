//go:build windows

package ipc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartupDataRoundTrip(t *testing.T) {
	sd := StartupData{
		Directory: `C:\Users\alice\vpn`,
		Options:   "--config client.conf --verb 3",
		StdInput:  "secretpass\n",
	}
	parsed, err := ParseStartupData(sd.Encode())
	require.NoError(t, err)
	assert.Equal(t, sd, parsed)
}

func TestStartupDataEmptyStrings(t *testing.T) {
	sd := StartupData{}
	parsed, err := ParseStartupData(sd.Encode())
	require.NoError(t, err)
	assert.Equal(t, sd, parsed)
}

func TestStartupDataMissingTerminator(t *testing.T) {
	blob := StartupData{Directory: "a", Options: "b", StdInput: "c"}.Encode()
	blob = blob[:len(blob)-2] // strip the final NUL
	_, err := ParseStartupData(blob)
	require.Error(t, err)
}

func TestStartupDataTruncated(t *testing.T) {
	for _, tc := range []struct {
		name string
		blob []byte
	}{
		{"empty", nil},
		{"one byte", []byte{0}},
		{"odd length", []byte{'a', 0, 0}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseStartupData(tc.blob)
			assert.Error(t, err)
		})
	}
}

func TestStartupDataMissingStrings(t *testing.T) {
	// Only a directory.
	blob := encodeUTF16Strings(t, "workdir")
	_, err := ParseStartupData(blob)
	require.ErrorContains(t, err, "working directory")

	// Directory and options but no stdin payload.
	blob = encodeUTF16Strings(t, "workdir", "--verb 3")
	_, err = ParseStartupData(blob)
	require.ErrorContains(t, err, "command line options")
}

func encodeUTF16Strings(t *testing.T, strs ...string) []byte {
	t.Helper()
	var blob []byte
	for _, s := range strs {
		for _, r := range s {
			blob = append(blob, byte(r), 0)
		}
		blob = append(blob, 0, 0)
	}
	return blob
}

func TestReportRoundTrip(t *testing.T) {
	blob := FormatReport(0x20000001, "GetStartupData", "The data is invalid.")
	parsed, err := ParseReport(blob)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x20000001), parsed.Code)
	assert.Equal(t, "GetStartupData", parsed.What)
	assert.Equal(t, "The data is invalid.", parsed.SysMsg)
}

func TestPIDReport(t *testing.T) {
	parsed, err := ParseReport(PIDReport(4242))
	require.NoError(t, err)
	assert.Equal(t, uint32(0), parsed.Code)
	assert.Equal(t, "0x00001092", parsed.What)
	assert.Equal(t, "Process ID", parsed.SysMsg)
}
