//go:build windows

package ipc

import (
	"encoding/binary"
	"fmt"
	"strings"
	"syscall"

	"golang.org/x/sys/windows"
)

// Startup-phase reports travel over the client pipe as three lines of
// UTF-16: the status code in 0x%08x form, a function or description,
// and the matching system message.

// FormatReport renders a report blob.
func FormatReport(code uint32, what, sysmsg string) []byte {
	s := fmt.Sprintf("0x%08x\n%s\n%s", code, what, sysmsg)
	units, err := windows.UTF16FromString(s)
	if err != nil {
		units, _ = windows.UTF16FromString("0xffffffff\nFormatReport failed\nCould not return result")
	}
	units = units[:len(units)-1] // reports carry no trailing NUL
	blob := make([]byte, 2*len(units))
	for i, u := range units {
		binary.LittleEndian.PutUint16(blob[2*i:], u)
	}
	return blob
}

// ErrorReport renders an error report, resolving the system message for
// OS status codes. Protocol sentinels carry no system text.
func ErrorReport(code uint32, what string) []byte {
	sysmsg := ""
	if code < ErrEngineStartup || code > ErrMessageType {
		sysmsg = syscall.Errno(code).Error()
	}
	return FormatReport(code, what, sysmsg)
}

// PIDReport renders the post-launch success report: error 0, the child
// process id on the second line, and a fixed description.
func PIDReport(pid uint32) []byte {
	return FormatReport(0, fmt.Sprintf("0x%08x", pid), "Process ID")
}

// ParsedReport is the client-side view of a report blob.
type ParsedReport struct {
	Code   uint32
	What   string
	SysMsg string
}

// ParseReport splits a report blob back into its three lines.
func ParseReport(blob []byte) (ParsedReport, error) {
	if len(blob) < 2 || len(blob)%2 != 0 {
		return ParsedReport{}, fmt.Errorf("malformed report: %d bytes", len(blob))
	}
	units := make([]uint16, len(blob)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(blob[2*i:])
	}
	lines := strings.SplitN(windows.UTF16ToString(append(units, 0)), "\n", 3)
	if len(lines) != 3 {
		return ParsedReport{}, fmt.Errorf("report has %d lines, want 3", len(lines))
	}
	var code uint32
	if _, err := fmt.Sscanf(lines[0], "0x%08x", &code); err != nil {
		return ParsedReport{}, fmt.Errorf("bad report status line %q: %w", lines[0], err)
	}
	return ParsedReport{Code: code, What: lines[1], SysMsg: lines[2]}, nil
}
