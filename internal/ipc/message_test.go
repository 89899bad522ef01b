//go:build windows

package ipc

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRoundTrip(t *testing.T) {
	msg := &RouteMsg{
		Header:    Header{Type: MsgAddRoute, MessageID: 7},
		Family:    2, // AF_INET
		PrefixLen: 16,
		Iface:     Iface{Index: 17},
		Metric:    100,
	}
	copy(msg.Prefix[:], []byte{10, 8, 0, 0})
	copy(msg.Gateway[:], []byte{10, 8, 0, 1})

	frame, err := Encode(msg)
	require.NoError(t, err)
	require.Len(t, frame, RouteSize)

	decoded, err := Decode(frame)
	require.NoError(t, err)
	got := decoded.(*RouteMsg)
	assert.Equal(t, uint32(7), got.MessageID)
	assert.Equal(t, uint8(16), got.PrefixLen)
	assert.Equal(t, int32(17), got.Iface.Index)
	assert.Equal(t, uint32(100), got.Metric)
	assert.Equal(t, msg.Prefix, got.Prefix)
	assert.Equal(t, msg.Gateway, got.Gateway)
}

func TestDecodeDNSCfg(t *testing.T) {
	msg := &DNSCfgMsg{
		Header:  Header{Type: MsgAddDNSCfg, MessageID: 3},
		Iface:   Iface{Index: -1, Name: "tun0"},
		Family:  2,
		AddrLen: 1,
		Domains: "vpn.example",
	}
	copy(msg.Addrs[0][:], []byte{10, 8, 0, 1})

	frame, err := Encode(msg)
	require.NoError(t, err)
	require.Len(t, frame, DNSCfgSize)

	decoded, err := Decode(frame)
	require.NoError(t, err)
	got := decoded.(*DNSCfgMsg)
	assert.Equal(t, "tun0", got.Iface.Name)
	assert.Equal(t, int32(-1), got.Iface.Index)
	assert.Equal(t, "vpn.example", got.Domains)
	assert.Equal(t, uint32(1), got.AddrLen)
	assert.Equal(t, msg.Addrs[0], got.Addrs[0])
}

func TestDecodeForcesNULTermination(t *testing.T) {
	msg := &EnableDHCPMsg{Header: Header{Type: MsgEnableDHCP}}
	frame, err := Encode(msg)
	require.NoError(t, err)

	// Fill the whole name field with non-NUL bytes; the decoder must
	// still produce a bounded string.
	for i := HeaderSize + 4; i < len(frame); i++ {
		frame[i] = 'x'
	}
	decoded, err := Decode(frame)
	require.NoError(t, err)
	got := decoded.(*EnableDHCPMsg)
	assert.Len(t, got.Iface.Name, IfaceNameLen-1)
}

func TestDecodeUnknownType(t *testing.T) {
	frame := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(frame[0:], 0xDEAD)
	binary.LittleEndian.PutUint32(frame[4:], HeaderSize)
	binary.LittleEndian.PutUint32(frame[8:], 5)

	_, err := Decode(frame)
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, ErrMessageType, decodeErr.Code)
	assert.Equal(t, ErrMessageType, AckCode(err))
}

func TestDecodeSizeMismatch(t *testing.T) {
	msg := &AddressMsg{Header: Header{Type: MsgAddAddress}}
	frame, err := Encode(msg)
	require.NoError(t, err)

	// Header size field disagrees with the variant size.
	binary.LittleEndian.PutUint32(frame[4:], AddressSize-1)
	_, err = Decode(frame)
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, ErrMessageData, decodeErr.Code)

	// Truncated frame.
	binary.LittleEndian.PutUint32(frame[4:], AddressSize)
	_, err = Decode(frame[:AddressSize-4])
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, ErrMessageData, decodeErr.Code)
}

func TestAckRoundTrip(t *testing.T) {
	frame := EncodeAck(42, ErrMessageType)
	require.Len(t, frame, AckSize)

	ack, err := DecodeAck(frame)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), ack.MessageID)
	assert.Equal(t, ErrMessageType, ack.Error)
}

func TestRingBuffersDecode(t *testing.T) {
	msg := &RegisterRingBuffersMsg{
		Header:        Header{Type: MsgRegisterRingBuffers, MessageID: 1},
		Device:        0x1234,
		SendRing:      0x5678,
		RecvRing:      0x9abc,
		SendTailEvent: 0xdef0,
		RecvTailEvent: 0x1111,
	}
	frame, err := Encode(msg)
	require.NoError(t, err)
	require.Len(t, frame, RingBuffersSize)

	decoded, err := Decode(frame)
	require.NoError(t, err)
	msg.Size = RingBuffersSize // filled in on the wire
	assert.Equal(t, msg, decoded)
}
