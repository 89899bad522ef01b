//go:build windows

// Package ringbuf registers the engine's shared-memory packet rings
// with the tun device so the engine can do lock-free packet I/O. All
// handles arrive as values in the engine's handle table and must be
// duplicated out of the engine process, never out of our own.
package ringbuf

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"privnet-helper/internal/ipc"
	"privnet-helper/internal/undo"
)

const (
	packetAlignment    = 4
	packetSizeMax      = 0xffff
	packetCapacity     = 0x800000 // 8 MiB
	packetTrailingSize = 4 + ((packetSizeMax + (packetAlignment - 1)) &^ (packetAlignment - 1)) - packetAlignment

	// ringSize is sizeof(struct tun_ring): head, tail, alertable,
	// then the data area.
	ringSize = 12 + packetCapacity + packetTrailingSize

	// ioctlRegisterRings is the tun driver's register-rings control
	// code: device 51820, function 0x970, METHOD_BUFFERED,
	// FILE_READ_DATA | FILE_WRITE_DATA.
	ioctlRegisterRings = (51820 << 16) | (0x3 << 14) | (0x970 << 2)
)

// ringDescriptor is the IOCTL input: sizes, mapped ring views and
// tail-moved events, all valid in the calling process.
type ringDescriptor struct {
	Send, Receive struct {
		Size      uint32
		Ring      uintptr
		TailMoved windows.Handle
	}
}

// Maps is the undo record: the two ring views mapped into the service
// address space, owned exclusively by the session.
type Maps struct {
	Send uintptr
	Recv uintptr
}

// Unmap releases both views. Safe to call twice.
func (m *Maps) Unmap() {
	if m.Send != 0 {
		windows.UnmapViewOfFile(m.Send)
		m.Send = 0
	}
	if m.Recv != 0 {
		windows.UnmapViewOfFile(m.Recv)
		m.Recv = 0
	}
}

// duplicateHandle copies a handle out of the engine process into ours.
func duplicateHandle(engineProc windows.Handle, value uint64) (windows.Handle, error) {
	var dup windows.Handle
	err := windows.DuplicateHandle(engineProc, windows.Handle(value),
		windows.CurrentProcess(), &dup, 0, false, windows.DUPLICATE_SAME_ACCESS)
	if err != nil {
		return 0, fmt.Errorf("[Ring] duplicate handle: %w", err)
	}
	return dup, nil
}

// duplicateAndMapRing duplicates a section handle from the engine and
// maps the ring read-write. The duplicated section handle itself is
// closed once the view exists.
func duplicateAndMapRing(engineProc windows.Handle, value uint64) (uintptr, error) {
	section, err := duplicateHandle(engineProc, value)
	if err != nil {
		return 0, err
	}
	defer windows.CloseHandle(section)

	view, err := windows.MapViewOfFile(section, windows.FILE_MAP_READ|windows.FILE_MAP_WRITE, 0, 0, ringSize)
	if err != nil {
		return 0, fmt.Errorf("[Ring] map shared memory: %w", err)
	}
	return view, nil
}

// HandleRegisterRingBuffers duplicates the five engine handles, maps
// the rings and hands everything to the tun device. A repeated
// registration releases the prior mapping and reuses its undo slot.
func HandleRegisterRingBuffers(msg *ipc.RegisterRingBuffersMsg, engineProc windows.Handle, ledger *undo.Ledger) error {
	maps, ok := ledger.RemoveNewest(undo.RingBuffer).(*Maps)
	if ok {
		maps.Unmap()
	} else {
		maps = &Maps{}
	}

	var (
		device, sendTail, recvTail windows.Handle
		err                        error
	)
	defer func() {
		if err != nil {
			maps.Unmap()
		}
		for _, h := range []windows.Handle{device, sendTail, recvTail} {
			if h != 0 {
				windows.CloseHandle(h)
			}
		}
	}()

	if device, err = duplicateHandle(engineProc, msg.Device); err != nil {
		return err
	}
	if maps.Send, err = duplicateAndMapRing(engineProc, msg.SendRing); err != nil {
		return err
	}
	if maps.Recv, err = duplicateAndMapRing(engineProc, msg.RecvRing); err != nil {
		return err
	}
	if sendTail, err = duplicateHandle(engineProc, msg.SendTailEvent); err != nil {
		return err
	}
	if recvTail, err = duplicateHandle(engineProc, msg.RecvTailEvent); err != nil {
		return err
	}

	var desc ringDescriptor
	desc.Send.Size = ringSize
	desc.Send.Ring = maps.Send
	desc.Send.TailMoved = sendTail
	desc.Receive.Size = ringSize
	desc.Receive.Ring = maps.Recv
	desc.Receive.TailMoved = recvTail

	var bytesReturned uint32
	err = windows.DeviceIoControl(device, ioctlRegisterRings,
		(*byte)(unsafe.Pointer(&desc)), uint32(unsafe.Sizeof(desc)), nil, 0, &bytesReturned, nil)
	if err != nil {
		err = fmt.Errorf("[Ring] register ring buffers: %w", err)
		return err
	}

	ledger.Append(undo.RingBuffer, maps)
	return nil
}
