//go:build windows && (amd64 || arm64)

package ringbuf

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

func TestRegisterRingsControlCode(t *testing.T) {
	// CTL_CODE(51820, 0x970, METHOD_BUFFERED, FILE_READ_DATA | FILE_WRITE_DATA)
	assert.Equal(t, uint32(0xCA6CE5C0), uint32(ioctlRegisterRings))
}

func TestRingSize(t *testing.T) {
	// head + tail + alertable + data[capacity + trailing]
	assert.Equal(t, 12+0x800000+0x10000, int(ringSize))
}

func TestRingDescriptorLayout(t *testing.T) {
	// Two halves of {u32 size, ptr ring, handle tail_moved}.
	assert.Equal(t, uintptr(48), unsafe.Sizeof(ringDescriptor{}))

	var d ringDescriptor
	base := uintptr(unsafe.Pointer(&d))
	assert.Equal(t, uintptr(8), uintptr(unsafe.Pointer(&d.Send.Ring))-base)
	assert.Equal(t, uintptr(16), uintptr(unsafe.Pointer(&d.Send.TailMoved))-base)
	assert.Equal(t, uintptr(24), uintptr(unsafe.Pointer(&d.Receive))-base)
}

func TestMapsUnmapIdempotent(t *testing.T) {
	m := &Maps{}
	m.Unmap()
	m.Unmap()
	assert.Zero(t, m.Send)
	assert.Zero(t, m.Recv)
}
