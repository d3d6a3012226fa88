package doip

import (
	"encoding/binary"
	"fmt"
)

// Diagnostic message ack codes.
const (
	DiagMessageAckCodeConfirm byte = 0x00
)

// Diagnostic message negative-ack codes, surfaced to callers via logging
// only (§4.4): the conversation sees a single NegAckReceived variant.
const (
	DiagMessageNackInvalidSA     byte = 0x02
	DiagMessageNackUnknownTA     byte = 0x03
	DiagMessageNackMessageTooLarge byte = 0x04
	DiagMessageNackOutOfMemory   byte = 0x05
	DiagMessageNackTargetUnreachable byte = 0x06
	DiagMessageNackUnknownNetwork byte = 0x07
	DiagMessageNackTPError       byte = 0x08
)

// Length bounds (§4.2).
const (
	DiagMessageReqResMinLen  = 4
	DiagMessageAckResMinLen  = 5
)

// PendingResponseNRC is the UDS negative response code (0x78) indicating the
// server needs more time; its presence at payload offset 2 of a Diagnostic
// Message response extends the client's wait from P2 to P2*.
const PendingResponseNRC byte = 0x78

// DiagnosticMessage is the Diagnostic Message request/response payload body:
// source address, target address, followed by the raw UDS bytes.
type DiagnosticMessage struct {
	SourceAddress uint16
	TargetAddress uint16
	UDSData       []byte
}

// Encode serializes the payload body. The target address field carries the
// real target address — a one-path bug in the source this protocol engine
// is modeled on collapsed it into the source address; see the design notes
// for why that is not reproduced here.
func (m DiagnosticMessage) Encode() []byte {
	buf := make([]byte, 4+len(m.UDSData))
	binary.BigEndian.PutUint16(buf[0:2], m.SourceAddress)
	binary.BigEndian.PutUint16(buf[2:4], m.TargetAddress)
	copy(buf[4:], m.UDSData)
	return buf
}

// DecodeDiagnosticMessage parses a Diagnostic Message payload body.
func DecodeDiagnosticMessage(payload []byte) (DiagnosticMessage, error) {
	if len(payload) < DiagMessageReqResMinLen+1 {
		return DiagnosticMessage{}, fmt.Errorf("doip: diagnostic message too short: %d bytes", len(payload))
	}
	return DiagnosticMessage{
		SourceAddress: binary.BigEndian.Uint16(payload[0:2]),
		TargetAddress: binary.BigEndian.Uint16(payload[2:4]),
		UDSData:       append([]byte(nil), payload[4:]...),
	}, nil
}

// DiagnosticMessageAck is the Positive/Negative Ack payload body: source
// address, target address, ack/nack code, and an optional echo of the
// leading request bytes.
type DiagnosticMessageAck struct {
	SourceAddress uint16
	TargetAddress uint16
	Code          byte
	Echo          []byte
}

// Encode serializes an ack/nack body.
func (a DiagnosticMessageAck) Encode() []byte {
	buf := make([]byte, 5, 5+len(a.Echo))
	binary.BigEndian.PutUint16(buf[0:2], a.SourceAddress)
	binary.BigEndian.PutUint16(buf[2:4], a.TargetAddress)
	buf[4] = a.Code
	return append(buf, a.Echo...)
}

// DecodeDiagnosticMessageAck parses an ack/nack payload body.
func DecodeDiagnosticMessageAck(payload []byte) (DiagnosticMessageAck, error) {
	if len(payload) < DiagMessageAckResMinLen {
		return DiagnosticMessageAck{}, fmt.Errorf("doip: diagnostic ack too short: %d bytes", len(payload))
	}
	ack := DiagnosticMessageAck{
		SourceAddress: binary.BigEndian.Uint16(payload[0:2]),
		TargetAddress: binary.BigEndian.Uint16(payload[2:4]),
		Code:          payload[4],
	}
	if len(payload) > DiagMessageAckResMinLen {
		ack.Echo = append([]byte(nil), payload[DiagMessageAckResMinLen:]...)
	}
	return ack, nil
}

// IsPendingResponse reports whether a diagnostic message response's UDS
// payload is the 0x78 "response pending" negative response.
func IsPendingResponse(uds []byte) bool {
	return len(uds) >= 3 && uds[0] == 0x7F && uds[2] == PendingResponseNRC
}
