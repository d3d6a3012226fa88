// Package doip implements the DoIP (ISO 13400-2) wire codec: the generic
// header, the per-payload-type message bodies, and the validation rules a
// channel applies to every inbound frame before dispatch.
package doip

import (
	"encoding/binary"
	"fmt"
)

// Protocol version values recognized on inbound frames.
const (
	ProtocolVersion2012 byte = 0x02
	ProtocolVersion2019 byte = 0x03
	ProtocolVersionDef  byte = 0xFF
)

// Payload types used by the core.
const (
	PayloadTypeVehicleIdentificationReq       uint16 = 0x0001
	PayloadTypeVehicleIdentificationReqWithEID uint16 = 0x0003
	PayloadTypeVehicleIdentificationReqWithVIN uint16 = 0x0002
	PayloadTypeVehicleAnnouncement             uint16 = 0x0004
	PayloadTypeRoutingActivationReq            uint16 = 0x0005
	PayloadTypeRoutingActivationRes            uint16 = 0x0006
	PayloadTypeAliveCheckReq                   uint16 = 0x0007
	PayloadTypeAliveCheckRes                   uint16 = 0x0008
	PayloadTypeDiagMessage                     uint16 = 0x8001
	PayloadTypeDiagMessagePosAck                uint16 = 0x8002
	PayloadTypeDiagMessageNegAck                uint16 = 0x8003
)

// Generic NACK codes (§4.2).
const (
	NackIncorrectPattern  byte = 0x00
	NackUnknownPayload    byte = 0x01
	NackMessageTooLarge   byte = 0x02
	NackOutOfMemory       byte = 0x03
	NackInvalidPayloadLen byte = 0x04
)

// HeaderLength is the fixed size of the generic header.
const HeaderLength = 8

// ProtocolMaxPayload is the absolute maximum payload length the protocol
// allows, independent of any per-conversation receive buffer.
const ProtocolMaxPayload = 0x00FFFFFF

// Header is the 8-byte generic header that precedes every DoIP payload.
type Header struct {
	ProtocolVersion        byte
	InverseProtocolVersion byte
	PayloadType            uint16
	PayloadLength          uint32
}

// Encode writes the header in wire order.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderLength)
	buf[0] = h.ProtocolVersion
	buf[1] = h.InverseProtocolVersion
	binary.BigEndian.PutUint16(buf[2:4], h.PayloadType)
	binary.BigEndian.PutUint32(buf[4:8], h.PayloadLength)
	return buf
}

// DecodeHeader parses the first HeaderLength bytes of buf.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderLength {
		return Header{}, fmt.Errorf("doip: short header: got %d bytes, want %d", len(buf), HeaderLength)
	}
	return Header{
		ProtocolVersion:        buf[0],
		InverseProtocolVersion: buf[1],
		PayloadType:            binary.BigEndian.Uint16(buf[2:4]),
		PayloadLength:          binary.BigEndian.Uint32(buf[4:8]),
	}, nil
}

// NewHeader builds a header for an outbound message using the conversation's
// configured protocol version.
func NewHeader(version byte, payloadType uint16, payloadLength uint32) Header {
	return Header{
		ProtocolVersion:        version,
		InverseProtocolVersion: ^version,
		PayloadType:            payloadType,
		PayloadLength:          payloadLength,
	}
}

// SyncPatternOk reports whether the protocol version / inverse pair is
// internally consistent and names a recognized version.
func (h Header) SyncPatternOk() bool {
	if h.InverseProtocolVersion != ^h.ProtocolVersion {
		return false
	}
	return h.ProtocolVersion == ProtocolVersion2012 ||
		h.ProtocolVersion == ProtocolVersion2019 ||
		h.ProtocolVersion == ProtocolVersionDef
}

// EncodeNack serializes a generic NACK response: an 8-byte header with
// payload type 0x0000 (the generic NACK type) whose payload is the single
// NACK code byte.
func EncodeNack(version byte, code byte) []byte {
	hdr := NewHeader(version, payloadTypeGenericNack, 1)
	return append(hdr.Encode(), code)
}

// payloadTypeGenericNack is not part of the public payload-type table in
// §3 (generic NACK rides its own reserved type); kept unexported since no
// component ever dispatches on it inbound.
const payloadTypeGenericNack uint16 = 0x0000
