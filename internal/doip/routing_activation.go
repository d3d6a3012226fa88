package doip

import (
	"encoding/binary"
	"fmt"
)

// Routing activation types (§3).
const (
	ActivationTypeDefault       byte = 0x00
	ActivationTypeWWHOBD        byte = 0x01
	ActivationTypeCentralSecurity byte = 0xE0
)

// Routing activation response codes.
const (
	RoutingActivationResUnknownSA              byte = 0x00
	RoutingActivationResAllSocketsActive       byte = 0x01
	RoutingActivationResDifferentSA            byte = 0x02
	RoutingActivationResActiveSA               byte = 0x03
	RoutingActivationResAuthenticationMissing  byte = 0x04
	RoutingActivationResConfirmationRejected   byte = 0x05
	RoutingActivationResUnsupportedActType     byte = 0x06
	RoutingActivationResTLSRequired            byte = 0x07
	RoutingActivationResSuccessful             byte = 0x10
	RoutingActivationResConfirmationRequired   byte = 0x11
)

// Length bounds for a Routing Activation Response payload (§4.2).
const (
	RoutingActivationResMinLen = 9
	RoutingActivationResMaxLen = 13
)

// RoutingActivationRequest is the Routing Activation Request payload body.
type RoutingActivationRequest struct {
	SourceAddress  uint16
	ActivationType byte
	OEM            []byte // optional, 4 bytes when present
}

// Encode serializes the request body (reserved bytes are always zero).
func (r RoutingActivationRequest) Encode() []byte {
	buf := make([]byte, 7, 11)
	binary.BigEndian.PutUint16(buf[0:2], r.SourceAddress)
	buf[2] = r.ActivationType
	// reserved[3:7] already zero
	if len(r.OEM) == 4 {
		buf = append(buf, r.OEM...)
	}
	return buf
}

// RoutingActivationResponse is the Routing Activation Response payload body.
type RoutingActivationResponse struct {
	SourceAddress  uint16
	LogicalAddress uint16
	ResponseCode   byte
	OEM            []byte
}

// DecodeRoutingActivationResponse parses a response payload (without the
// generic header).
func DecodeRoutingActivationResponse(payload []byte) (RoutingActivationResponse, error) {
	if len(payload) < RoutingActivationResMinLen {
		return RoutingActivationResponse{}, fmt.Errorf("doip: routing activation response too short: %d bytes", len(payload))
	}
	res := RoutingActivationResponse{
		SourceAddress:  binary.BigEndian.Uint16(payload[0:2]),
		LogicalAddress: binary.BigEndian.Uint16(payload[2:4]),
		ResponseCode:   payload[4],
	}
	if len(payload) > RoutingActivationResMinLen {
		res.OEM = append([]byte(nil), payload[RoutingActivationResMinLen:]...)
	}
	return res, nil
}

// Encode serializes a response body, primarily used by the in-process ECU
// simulator that answers routing activation requests in tests.
func (r RoutingActivationResponse) Encode() []byte {
	buf := make([]byte, 9, 13)
	binary.BigEndian.PutUint16(buf[0:2], r.SourceAddress)
	binary.BigEndian.PutUint16(buf[2:4], r.LogicalAddress)
	buf[4] = r.ResponseCode
	if len(r.OEM) == 4 {
		buf = append(buf, r.OEM...)
	}
	return buf
}
