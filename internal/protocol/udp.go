package protocol

import (
	"encoding/binary"
	"errors"
)

// UDP Packet types
const (
	UDPPacketKeyDown       uint8 = 0x01
	UDPPacketKeyUp         uint8 = 0x02
	UDPPacketKeyRepeat     uint8 = 0x03
	UDPPacketButtonDown    uint8 = 0x04
	UDPPacketButtonUp      uint8 = 0x05
	UDPPacketMouseMove     uint8 = 0x06 // absolute, secondary coordinates
	UDPPacketMouseRelative uint8 = 0x07
	UDPPacketEnter         uint8 = 0x08 // Host -> Agent: cursor enters the agent's screen
	UDPPacketLeave         uint8 = 0x09 // Host -> Agent: cursor leaves the agent's screen
	UDPPacketClipboardGrab uint8 = 0x0a
	UDPPacketRegister      uint8 = 0x10
	UDPPacketHeartbeat     uint8 = 0x11
	UDPPacketAck           uint8 = 0x12 // Host -> Agent: confirms UDP path is open
)

// Header: [type(1)] [seq(4)] [timestamp(8)] = 13 bytes
const UDPHeaderSize = 13

// MaxScreenName is the longest screen name a Register packet carries.
const MaxScreenName = 64

var (
	ErrShortPacket   = errors.New("udp: packet too short")
	ErrUnknownPacket = errors.New("udp: unknown packet type")
)

// UDPPacket represents a binary-encoded input event for low-latency UDP transport.
//
// Wire format per type:
//
//	KeyDown/KeyUp/KeyRepeat (0x01-0x03): header + key(uint32) + mask(uint16) + count(uint16) = 21 bytes
//	ButtonDown/ButtonUp     (0x04-0x05): header + button(uint8)                            = 14 bytes
//	MouseMove/Relative      (0x06-0x07): header + x(int32) + y(int32)                      = 21 bytes
//	Enter                   (0x08):      header + x(int32) + y(int32) + mask(uint16)        = 23 bytes
//	Leave                   (0x09):      header only                                       = 13 bytes
//	ClipboardGrab           (0x0a):      header + clipboard(uint8)                         = 14 bytes
//	Register                (0x10):      header + len(uint8) + name                        = 14+n bytes
//	Heartbeat/Ack           (0x11-0x12): header only                                       = 13 bytes
type UDPPacket struct {
	Type      uint8
	Seq       uint32
	Timestamp int64
	Key       uint32 // canonical key id
	Mask      uint16 // modifier mask
	Count     uint16 // repeat count
	Button    uint8  // canonical button id
	X         int32  // position or delta
	Y         int32
	Clipboard uint8
	Name      string // registering screen
}

func payloadSize(pkt *UDPPacket) int {
	switch pkt.Type {
	case UDPPacketKeyDown, UDPPacketKeyUp, UDPPacketKeyRepeat:
		return 8
	case UDPPacketButtonDown, UDPPacketButtonUp:
		return 1
	case UDPPacketMouseMove, UDPPacketMouseRelative:
		return 8
	case UDPPacketEnter:
		return 10
	case UDPPacketClipboardGrab:
		return 1
	case UDPPacketRegister:
		return 1 + min(len(pkt.Name), MaxScreenName)
	}
	return 0
}

// EncodeUDPPacket serializes a UDPPacket to wire format.
func EncodeUDPPacket(pkt *UDPPacket) []byte {
	buf := make([]byte, UDPHeaderSize+payloadSize(pkt))
	buf[0] = pkt.Type
	binary.BigEndian.PutUint32(buf[1:5], pkt.Seq)
	binary.BigEndian.PutUint64(buf[5:13], uint64(pkt.Timestamp))

	payload := buf[UDPHeaderSize:]
	switch pkt.Type {
	case UDPPacketKeyDown, UDPPacketKeyUp, UDPPacketKeyRepeat:
		binary.BigEndian.PutUint32(payload[0:4], pkt.Key)
		binary.BigEndian.PutUint16(payload[4:6], pkt.Mask)
		binary.BigEndian.PutUint16(payload[6:8], pkt.Count)
	case UDPPacketButtonDown, UDPPacketButtonUp:
		payload[0] = pkt.Button
	case UDPPacketMouseMove, UDPPacketMouseRelative:
		binary.BigEndian.PutUint32(payload[0:4], uint32(pkt.X))
		binary.BigEndian.PutUint32(payload[4:8], uint32(pkt.Y))
	case UDPPacketEnter:
		binary.BigEndian.PutUint32(payload[0:4], uint32(pkt.X))
		binary.BigEndian.PutUint32(payload[4:8], uint32(pkt.Y))
		binary.BigEndian.PutUint16(payload[8:10], pkt.Mask)
	case UDPPacketClipboardGrab:
		payload[0] = pkt.Clipboard
	case UDPPacketRegister:
		n := len(payload) - 1
		payload[0] = uint8(n)
		copy(payload[1:], pkt.Name[:n])
	}

	return buf
}

// DecodeUDPPacket deserializes wire bytes into a UDPPacket.
func DecodeUDPPacket(data []byte) (*UDPPacket, error) {
	if len(data) < UDPHeaderSize {
		return nil, ErrShortPacket
	}

	pkt := &UDPPacket{
		Type:      data[0],
		Seq:       binary.BigEndian.Uint32(data[1:5]),
		Timestamp: int64(binary.BigEndian.Uint64(data[5:13])),
	}

	payload := data[UDPHeaderSize:]
	switch pkt.Type {
	case UDPPacketKeyDown, UDPPacketKeyUp, UDPPacketKeyRepeat:
		if len(payload) < 8 {
			return nil, errors.New("udp: key event payload too short")
		}
		pkt.Key = binary.BigEndian.Uint32(payload[0:4])
		pkt.Mask = binary.BigEndian.Uint16(payload[4:6])
		pkt.Count = binary.BigEndian.Uint16(payload[6:8])
	case UDPPacketButtonDown, UDPPacketButtonUp:
		if len(payload) < 1 {
			return nil, errors.New("udp: button payload too short")
		}
		pkt.Button = payload[0]
	case UDPPacketMouseMove, UDPPacketMouseRelative:
		if len(payload) < 8 {
			return nil, errors.New("udp: mouse move payload too short")
		}
		pkt.X = int32(binary.BigEndian.Uint32(payload[0:4]))
		pkt.Y = int32(binary.BigEndian.Uint32(payload[4:8]))
	case UDPPacketEnter:
		if len(payload) < 10 {
			return nil, errors.New("udp: enter payload too short")
		}
		pkt.X = int32(binary.BigEndian.Uint32(payload[0:4]))
		pkt.Y = int32(binary.BigEndian.Uint32(payload[4:8]))
		pkt.Mask = binary.BigEndian.Uint16(payload[8:10])
	case UDPPacketClipboardGrab:
		if len(payload) < 1 {
			return nil, errors.New("udp: clipboard payload too short")
		}
		pkt.Clipboard = payload[0]
	case UDPPacketRegister:
		if len(payload) < 1 || len(payload) < 1+int(payload[0]) {
			return nil, errors.New("udp: register payload too short")
		}
		pkt.Name = string(payload[1 : 1+int(payload[0])])
	case UDPPacketLeave, UDPPacketHeartbeat, UDPPacketAck:
		// no payload
	default:
		return nil, ErrUnknownPacket
	}

	return pkt, nil
}
