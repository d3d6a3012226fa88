package doip

import "fmt"

// ValidationOutcome is the result of running the generic-header validation
// pipeline (§4.2) over one inbound frame.
type ValidationOutcome struct {
	Ok           bool
	NackCode     byte
	CloseChannel bool // the violation requires the connection to be closed, not just NACKed
}

// ValidateHeader runs the ordered 5-step validation of §4.2 against a
// decoded header. expectedTypes is the set of payload types this channel
// accepts inbound; maxRxBuffer is the conversation's configured receive
// buffer size.
func ValidateHeader(h Header, expectedTypes map[uint16]bool, maxRxBuffer uint32) ValidationOutcome {
	if !h.SyncPatternOk() {
		return ValidationOutcome{NackCode: NackIncorrectPattern, CloseChannel: true}
	}
	if !expectedTypes[h.PayloadType] {
		return ValidationOutcome{NackCode: NackUnknownPayload}
	}
	if h.PayloadLength > ProtocolMaxPayload {
		return ValidationOutcome{NackCode: NackMessageTooLarge}
	}
	if h.PayloadLength > maxRxBuffer {
		return ValidationOutcome{NackCode: NackOutOfMemory}
	}
	if !payloadLengthInBounds(h.PayloadType, h.PayloadLength) {
		return ValidationOutcome{NackCode: NackInvalidPayloadLen, CloseChannel: true}
	}
	return ValidationOutcome{Ok: true}
}

// payloadLengthInBounds applies the per-payload-type bounds table of §4.2.
func payloadLengthInBounds(payloadType uint16, length uint32) bool {
	switch payloadType {
	case PayloadTypeRoutingActivationRes:
		return length >= RoutingActivationResMinLen && length <= RoutingActivationResMaxLen
	case PayloadTypeDiagMessagePosAck, PayloadTypeDiagMessageNegAck:
		return length >= DiagMessageAckResMinLen
	case PayloadTypeDiagMessage:
		return length >= DiagMessageReqResMinLen+1
	case PayloadTypeAliveCheckReq, PayloadTypeAliveCheckRes:
		return length == 0
	case PayloadTypeVehicleAnnouncement:
		return length >= VehicleAnnouncementMinLen && length <= VehicleAnnouncementMaxLen
	case PayloadTypeVehicleIdentificationReq:
		return length == 0
	case PayloadTypeVehicleIdentificationReqWithVIN:
		return length == 17
	case PayloadTypeVehicleIdentificationReqWithEID:
		return length == 6
	case PayloadTypeRoutingActivationReq:
		return length >= 7 && length <= 11
	default:
		return false
	}
}

// ErrShortFrame describes fewer than payload_length additional bytes
// arriving before the peer closes the connection, a clean remote disconnect
// rather than a protocol violation. Nothing in this module returns it: the
// TCP transport's receive loop logs a short frame and ends.
var ErrShortFrame = fmt.Errorf("doip: short frame, remote disconnected")
