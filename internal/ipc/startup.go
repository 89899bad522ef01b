//go:build windows

package ipc

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/windows"
)

// StartupData is the blob a client sends right after connecting: the
// engine working directory, its option string and the payload to feed
// to its standard input.
type StartupData struct {
	Directory string
	Options   string
	StdInput  string
}

// ParseStartupData validates and splits the startup blob: UTF-16LE,
// three consecutive NUL-terminated strings, trailing NUL required.
// Fewer than three strings is an error; strings after the third are
// ignored.
func ParseStartupData(blob []byte) (StartupData, error) {
	if len(blob) < 2 || len(blob)%2 != 0 {
		return StartupData{}, fmt.Errorf("malformed startup data: %d bytes received", len(blob))
	}

	units := make([]uint16, len(blob)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(blob[2*i:])
	}
	if units[len(units)-1] != 0 {
		return StartupData{}, fmt.Errorf("startup data is not NUL terminated")
	}

	var parts []string
	start := 0
	for i, u := range units {
		if u == 0 {
			parts = append(parts, windows.UTF16ToString(units[start:i]))
			start = i + 1
		}
	}

	switch len(parts) {
	case 1:
		return StartupData{}, fmt.Errorf("startup data ends at working directory")
	case 2:
		return StartupData{}, fmt.Errorf("startup data ends at command line options")
	default:
		// Anything past the third string is ignored, as C-string
		// parsing of the remainder would.
		return StartupData{Directory: parts[0], Options: parts[1], StdInput: parts[2]}, nil
	}
}

// Encode builds the wire blob. Client-side counterpart of
// ParseStartupData.
func (sd StartupData) Encode() []byte {
	var units []uint16
	for _, s := range []string{sd.Directory, sd.Options, sd.StdInput} {
		u, _ := windows.UTF16FromString(s) // includes terminating NUL
		units = append(units, u...)
	}
	blob := make([]byte, 2*len(units))
	for i, u := range units {
		binary.LittleEndian.PutUint16(blob[2*i:], u)
	}
	return blob
}
