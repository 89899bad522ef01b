//go:build windows && (amd64 || arm64)

package netcfg

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

// The MIB row layouts must match the C definitions byte for byte, or
// iphlpapi will reject or misread them.
func TestRowLayouts(t *testing.T) {
	assert.Equal(t, uintptr(28), unsafe.Sizeof(RawSockaddrInet{}))
	assert.Equal(t, uintptr(32), unsafe.Sizeof(IPAddressPrefix{}))
	assert.Equal(t, uintptr(80), unsafe.Sizeof(MibUnicastIPAddressRow{}))
	assert.Equal(t, uintptr(104), unsafe.Sizeof(MibIPForwardRow2{}))
	assert.Equal(t, uintptr(168), unsafe.Sizeof(MibIPInterfaceRow{}))

	var fwd MibIPForwardRow2
	base := uintptr(unsafe.Pointer(&fwd))
	assert.Equal(t, uintptr(12), uintptr(unsafe.Pointer(&fwd.DestinationPrefix))-base)
	assert.Equal(t, uintptr(44), uintptr(unsafe.Pointer(&fwd.NextHop))-base)
	assert.Equal(t, uintptr(84), uintptr(unsafe.Pointer(&fwd.Metric))-base)
	assert.Equal(t, uintptr(100), uintptr(unsafe.Pointer(&fwd.Origin))-base)

	var ifr MibIPInterfaceRow
	base = uintptr(unsafe.Pointer(&ifr))
	assert.Equal(t, uintptr(44), uintptr(unsafe.Pointer(&ifr.UseAutomaticMetric))-base)
	assert.Equal(t, uintptr(148), uintptr(unsafe.Pointer(&ifr.Metric))-base)
	assert.Equal(t, uintptr(152), uintptr(unsafe.Pointer(&ifr.NlMtu))-base)
}

func TestSetAddr(t *testing.T) {
	var sa RawSockaddrInet
	addr := [16]byte{10, 8, 0, 1}
	sa.SetAddr(2, addr)
	assert.Equal(t, uint16(2), sa.Family)
	assert.Equal(t, [4]byte{10, 8, 0, 1}, [4]byte(sa.data[2:6]))

	v6 := [16]byte{0x20, 0x01, 0x0d, 0xb8, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}
	sa.SetAddr(23, v6)
	assert.Equal(t, uint16(23), sa.Family)
	assert.Equal(t, v6, [16]byte(sa.data[6:22]))
	// The v4 remnant must be gone.
	assert.Equal(t, [4]byte{0, 0, 0, 0}, [4]byte(sa.data[2:6]))
}

// Rows built from identical requests must compare equal so that del
// requests can find their matching undo record.
func TestRowEquality(t *testing.T) {
	a, b := MibIPForwardRow2{Metric: 7}, MibIPForwardRow2{Metric: 7}
	a.DestinationPrefix.Prefix.SetAddr(2, [16]byte{10, 0, 0, 0})
	b.DestinationPrefix.Prefix.SetAddr(2, [16]byte{10, 0, 0, 0})
	assert.True(t, a == b)

	b.Metric = 8
	assert.False(t, a == b)
}
