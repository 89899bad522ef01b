//go:build windows

// Package ipc implements the binary request/ack protocol spoken between
// the privileged helper service and the VPN engine over message-mode
// named pipes, plus the overlapped pipe I/O it runs on.
package ipc

import (
	"encoding/binary"
	"fmt"
)

// Message types. The value is the wire discriminator.
const (
	MsgAck uint32 = iota
	MsgAddAddress
	MsgDelAddress
	MsgAddRoute
	MsgDelRoute
	MsgAddDNSCfg
	MsgDelDNSCfg
	MsgFlushNeighbors
	MsgAddWfpBlock
	MsgDelWfpBlock
	MsgRegisterDNS
	MsgEnableDHCP
	MsgRegisterRingBuffers
	MsgSetMTU
	MsgAddWINSCfg
	MsgDelWINSCfg
)

// Protocol error sentinels carried in ack messages alongside plain
// Win32 status codes.
const (
	ErrEngineStartup uint32 = 0x20000000 + iota
	ErrStartupData
	ErrMessageData
	ErrMessageType
)

// Wire sizes. The header size field is authoritative and includes the
// header itself; every variant has exactly one valid size.
const (
	HeaderSize = 12
	ifaceSize  = 4 + IfaceNameLen

	IfaceNameLen  = 256
	DNSDomainsLen = 512
	DNSMaxAddrs   = 4
	WINSMaxAddrs  = 4

	AddressSize        = HeaderSize + 2 + 1 + ifaceSize + 16
	RouteSize          = HeaderSize + 2 + 1 + ifaceSize + 16 + 16 + 4
	FlushNeighborsSize = HeaderSize + 2 + ifaceSize
	WfpBlockSize       = HeaderSize + 4 + ifaceSize
	DNSCfgSize         = HeaderSize + ifaceSize + 2 + 4 + DNSMaxAddrs*16 + DNSDomainsLen
	WINSCfgSize        = HeaderSize + ifaceSize + 4 + WINSMaxAddrs*4
	EnableDHCPSize     = HeaderSize + ifaceSize
	RegisterDNSSize    = HeaderSize
	RingBuffersSize    = HeaderSize + 5*8
	SetMTUSize         = HeaderSize + 2 + ifaceSize + 4
	AckSize            = HeaderSize + 4

	// MaxRequestSize bounds a single engine request frame. Anything
	// larger peeked off the pipe is engine misbehaviour.
	MaxRequestSize = DNSCfgSize
)

// WfpBlockDNS limits a wfp_block request to the DNS path only.
const WfpBlockDNS uint32 = 1

// Header is the common prefix of every protocol message.
type Header struct {
	Type      uint32
	Size      uint32
	MessageID uint32
}

// Iface identifies a network interface by index or, when Index is -1,
// by alias name.
type Iface struct {
	Index int32
	Name  string
}

// Request is implemented by every decoded request variant.
type Request interface {
	Hdr() Header
}

type AddressMsg struct {
	Header
	Family    uint16
	PrefixLen uint8
	Iface     Iface
	Address   [16]byte
}

type RouteMsg struct {
	Header
	Family    uint16
	PrefixLen uint8
	Iface     Iface
	Prefix    [16]byte
	Gateway   [16]byte
	Metric    uint32
}

type FlushNeighborsMsg struct {
	Header
	Family uint16
	Iface  Iface
}

type WfpBlockMsg struct {
	Header
	Flags uint32
	Iface Iface
}

type DNSCfgMsg struct {
	Header
	Iface   Iface
	Family  uint16
	AddrLen uint32
	Addrs   [DNSMaxAddrs][16]byte
	Domains string
}

type WINSCfgMsg struct {
	Header
	Iface   Iface
	AddrLen uint32
	Addrs   [WINSMaxAddrs][4]byte
}

type EnableDHCPMsg struct {
	Header
	Iface Iface
}

type RegisterDNSMsg struct {
	Header
}

type RegisterRingBuffersMsg struct {
	Header
	Device        uint64
	SendRing      uint64
	RecvRing      uint64
	SendTailEvent uint64
	RecvTailEvent uint64
}

type SetMTUMsg struct {
	Header
	Family uint16
	Iface  Iface
	MTU    uint32
}

// Ack mirrors a request's message id and reports its outcome.
type Ack struct {
	Header
	Error uint32
}

func (h Header) Hdr() Header { return h }

// requestSizes maps type → required wire size. Ack is absent: the
// service never accepts one.
var requestSizes = map[uint32]uint32{
	MsgAddAddress:          AddressSize,
	MsgDelAddress:          AddressSize,
	MsgAddRoute:            RouteSize,
	MsgDelRoute:            RouteSize,
	MsgAddDNSCfg:           DNSCfgSize,
	MsgDelDNSCfg:           DNSCfgSize,
	MsgFlushNeighbors:      FlushNeighborsSize,
	MsgAddWfpBlock:         WfpBlockSize,
	MsgDelWfpBlock:         WfpBlockSize,
	MsgRegisterDNS:         RegisterDNSSize,
	MsgEnableDHCP:          EnableDHCPSize,
	MsgRegisterRingBuffers: RingBuffersSize,
	MsgSetMTU:              SetMTUSize,
	MsgAddWINSCfg:          WINSCfgSize,
	MsgDelWINSCfg:          WINSCfgSize,
}

// DecodeError distinguishes malformed frames from unknown types so the
// worker can pick the right ack sentinel.
type DecodeError struct {
	Code uint32 // ErrMessageData or ErrMessageType
	Msg  string
}

func (e *DecodeError) Error() string { return e.Msg }

// DecodeHeader parses the common header from a frame.
func DecodeHeader(frame []byte) (Header, error) {
	if len(frame) < HeaderSize {
		return Header{}, &DecodeError{ErrMessageData, fmt.Sprintf("frame too short: %d bytes", len(frame))}
	}
	return Header{
		Type:      binary.LittleEndian.Uint32(frame[0:]),
		Size:      binary.LittleEndian.Uint32(frame[4:]),
		MessageID: binary.LittleEndian.Uint32(frame[8:]),
	}, nil
}

// Decode parses one request frame. The in-band byte count, the header
// size field and the variant's fixed size must all agree.
func Decode(frame []byte) (Request, error) {
	h, err := DecodeHeader(frame)
	if err != nil {
		return nil, err
	}

	want, ok := requestSizes[h.Type]
	if !ok {
		return nil, &DecodeError{ErrMessageType, fmt.Sprintf("unknown message type %d", h.Type)}
	}
	if h.Size != uint32(len(frame)) || h.Size != want {
		return nil, &DecodeError{ErrMessageData, fmt.Sprintf(
			"type %d: got %d bytes, header says %d, variant needs %d", h.Type, len(frame), h.Size, want)}
	}

	d := decoder{buf: frame, off: HeaderSize}
	switch h.Type {
	case MsgAddAddress, MsgDelAddress:
		m := &AddressMsg{Header: h}
		m.Family = d.u16()
		m.PrefixLen = d.u8()
		m.Iface = d.iface()
		d.bytes(m.Address[:])
		return m, nil

	case MsgAddRoute, MsgDelRoute:
		m := &RouteMsg{Header: h}
		m.Family = d.u16()
		m.PrefixLen = d.u8()
		m.Iface = d.iface()
		d.bytes(m.Prefix[:])
		d.bytes(m.Gateway[:])
		m.Metric = d.u32()
		return m, nil

	case MsgFlushNeighbors:
		m := &FlushNeighborsMsg{Header: h}
		m.Family = d.u16()
		m.Iface = d.iface()
		return m, nil

	case MsgAddWfpBlock, MsgDelWfpBlock:
		m := &WfpBlockMsg{Header: h}
		m.Flags = d.u32()
		m.Iface = d.iface()
		return m, nil

	case MsgAddDNSCfg, MsgDelDNSCfg:
		m := &DNSCfgMsg{Header: h}
		m.Iface = d.iface()
		m.Family = d.u16()
		m.AddrLen = d.u32()
		for i := range m.Addrs {
			d.bytes(m.Addrs[i][:])
		}
		m.Domains = d.cstr(DNSDomainsLen)
		return m, nil

	case MsgAddWINSCfg, MsgDelWINSCfg:
		m := &WINSCfgMsg{Header: h}
		m.Iface = d.iface()
		m.AddrLen = d.u32()
		for i := range m.Addrs {
			d.bytes(m.Addrs[i][:])
		}
		return m, nil

	case MsgEnableDHCP:
		m := &EnableDHCPMsg{Header: h}
		m.Iface = d.iface()
		return m, nil

	case MsgRegisterDNS:
		return &RegisterDNSMsg{Header: h}, nil

	case MsgRegisterRingBuffers:
		m := &RegisterRingBuffersMsg{Header: h}
		m.Device = d.u64()
		m.SendRing = d.u64()
		m.RecvRing = d.u64()
		m.SendTailEvent = d.u64()
		m.RecvTailEvent = d.u64()
		return m, nil

	case MsgSetMTU:
		m := &SetMTUMsg{Header: h}
		m.Family = d.u16()
		m.Iface = d.iface()
		m.MTU = d.u32()
		return m, nil
	}
	// unreachable: requestSizes gates the switch
	return nil, &DecodeError{ErrMessageType, fmt.Sprintf("unknown message type %d", h.Type)}
}

// EncodeAck serializes an ack frame.
func EncodeAck(messageID, errCode uint32) []byte {
	buf := make([]byte, AckSize)
	binary.LittleEndian.PutUint32(buf[0:], MsgAck)
	binary.LittleEndian.PutUint32(buf[4:], AckSize)
	binary.LittleEndian.PutUint32(buf[8:], messageID)
	binary.LittleEndian.PutUint32(buf[12:], errCode)
	return buf
}

// DecodeAck parses an ack frame.
func DecodeAck(frame []byte) (Ack, error) {
	h, err := DecodeHeader(frame)
	if err != nil {
		return Ack{}, err
	}
	if h.Type != MsgAck || h.Size != AckSize || len(frame) != AckSize {
		return Ack{}, &DecodeError{ErrMessageData, "not a valid ack frame"}
	}
	return Ack{Header: h, Error: binary.LittleEndian.Uint32(frame[12:])}, nil
}

// Encode serializes a request. Used by the engine-side client and by
// tests; the service itself only decodes.
func Encode(req Request) ([]byte, error) {
	h := req.Hdr()
	want, ok := requestSizes[h.Type]
	if !ok {
		return nil, fmt.Errorf("[IPC] cannot encode message type %d", h.Type)
	}
	e := encoder{buf: make([]byte, want)}
	binary.LittleEndian.PutUint32(e.buf[0:], h.Type)
	binary.LittleEndian.PutUint32(e.buf[4:], want)
	binary.LittleEndian.PutUint32(e.buf[8:], h.MessageID)
	e.off = HeaderSize

	switch m := req.(type) {
	case *AddressMsg:
		e.u16(m.Family)
		e.u8(m.PrefixLen)
		e.iface(m.Iface)
		e.bytes(m.Address[:])
	case *RouteMsg:
		e.u16(m.Family)
		e.u8(m.PrefixLen)
		e.iface(m.Iface)
		e.bytes(m.Prefix[:])
		e.bytes(m.Gateway[:])
		e.u32(m.Metric)
	case *FlushNeighborsMsg:
		e.u16(m.Family)
		e.iface(m.Iface)
	case *WfpBlockMsg:
		e.u32(m.Flags)
		e.iface(m.Iface)
	case *DNSCfgMsg:
		e.iface(m.Iface)
		e.u16(m.Family)
		e.u32(m.AddrLen)
		for i := range m.Addrs {
			e.bytes(m.Addrs[i][:])
		}
		e.cstr(m.Domains, DNSDomainsLen)
	case *WINSCfgMsg:
		e.iface(m.Iface)
		e.u32(m.AddrLen)
		for i := range m.Addrs {
			e.bytes(m.Addrs[i][:])
		}
	case *EnableDHCPMsg:
		e.iface(m.Iface)
	case *RegisterDNSMsg:
		// header only
	case *RegisterRingBuffersMsg:
		e.u64(m.Device)
		e.u64(m.SendRing)
		e.u64(m.RecvRing)
		e.u64(m.SendTailEvent)
		e.u64(m.RecvTailEvent)
	case *SetMTUMsg:
		e.u16(m.Family)
		e.iface(m.Iface)
		e.u32(m.MTU)
	default:
		return nil, fmt.Errorf("[IPC] cannot encode %T", req)
	}
	return e.buf, nil
}

type decoder struct {
	buf []byte
	off int
}

func (d *decoder) u8() uint8 {
	v := d.buf[d.off]
	d.off++
	return v
}

func (d *decoder) u16() uint16 {
	v := binary.LittleEndian.Uint16(d.buf[d.off:])
	d.off += 2
	return v
}

func (d *decoder) u32() uint32 {
	v := binary.LittleEndian.Uint32(d.buf[d.off:])
	d.off += 4
	return v
}

func (d *decoder) u64() uint64 {
	v := binary.LittleEndian.Uint64(d.buf[d.off:])
	d.off += 8
	return v
}

func (d *decoder) bytes(dst []byte) {
	copy(dst, d.buf[d.off:d.off+len(dst)])
	d.off += len(dst)
}

// cstr reads a fixed-length string field. The final byte is treated as
// NUL regardless of what the peer sent.
func (d *decoder) cstr(n int) string {
	field := make([]byte, n)
	d.bytes(field)
	field[n-1] = 0
	for i, b := range field {
		if b == 0 {
			return string(field[:i])
		}
	}
	return string(field)
}

func (d *decoder) iface() Iface {
	idx := int32(d.u32())
	name := d.cstr(IfaceNameLen)
	return Iface{Index: idx, Name: name}
}

type encoder struct {
	buf []byte
	off int
}

func (e *encoder) u8(v uint8) {
	e.buf[e.off] = v
	e.off++
}

func (e *encoder) u16(v uint16) {
	binary.LittleEndian.PutUint16(e.buf[e.off:], v)
	e.off += 2
}

func (e *encoder) u32(v uint32) {
	binary.LittleEndian.PutUint32(e.buf[e.off:], v)
	e.off += 4
}

func (e *encoder) u64(v uint64) {
	binary.LittleEndian.PutUint64(e.buf[e.off:], v)
	e.off += 8
}

func (e *encoder) bytes(src []byte) {
	copy(e.buf[e.off:], src)
	e.off += len(src)
}

func (e *encoder) cstr(s string, n int) {
	b := []byte(s)
	if len(b) > n-1 {
		b = b[:n-1]
	}
	copy(e.buf[e.off:], b)
	e.off += n
}

func (e *encoder) iface(i Iface) {
	e.u32(uint32(i.Index))
	e.cstr(i.Name, IfaceNameLen)
}
