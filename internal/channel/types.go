// Package channel implements the DoIP Channel layer (spec §4.2-§4.5): TCP
// frame validation and dispatch, the Routing Activation and Diagnostic
// Message state machines, and the UDP channel's Vehicle Identification
// state machine. A channel never talks to a Conversation directly — it
// calls upward through the Indicator interface, which a Connection
// implements (spec §4.6's "narrow bidirectional contract").
package channel

import "github.com/anodyne74/doip-diag-client/internal/doip"

// ConnectionResult is returned by the Routing Activation handler's
// SendRequest (spec §4.3).
type ConnectionResult string

const (
	ConnectionOk      ConnectionResult = "Ok"
	ConnectionFailed  ConnectionResult = "Failed"
	ConnectionTimeout ConnectionResult = "Timeout"
)

// TransmissionResult is returned by the Diagnostic Message handler's
// SendRequest (spec §4.4) and the Vehicle Identification handler's
// SendRequest (spec §4.5).
type TransmissionResult string

const (
	TransmissionOk              TransmissionResult = "Ok"
	TransmissionFailed          TransmissionResult = "Failed"
	TransmissionAckTimeout      TransmissionResult = "AckTimeout"
	TransmissionNegAckReceived  TransmissionResult = "NegAckReceived"
	TransmissionResponseTimeout TransmissionResult = "ResponseTimeout"
	TransmissionBusy            TransmissionResult = "Busy"
	TransmissionInvalidParams   TransmissionResult = "InvalidParameters"
	TransmissionNoResponse      TransmissionResult = "NoResponseReceived"
)

// IndicationResult is the verdict Indicator.IndicateMessage hands back to a
// channel before the channel copies the payload in (spec §4.6).
type IndicationResult string

const (
	IndicationOk       IndicationResult = "IndicationOk"
	IndicationPending  IndicationResult = "IndicationPending"
	IndicationOverflow IndicationResult = "IndicationOverflow"
)

// IndicationInfo carries the addressing and sizing fields a channel knows
// about a message before (indicate) and after (handle) it is fully read.
type IndicationInfo struct {
	SourceAddress uint16
	TargetAddress uint16
	PayloadType   uint16
	Size          uint32
}

// Indicator is the upward-facing contract a channel calls into. A
// Connection implements this and forwards to its owning Conversation.
type Indicator interface {
	IndicateMessage(info IndicationInfo, payloadPreview []byte) IndicationResult
	HandleMessage(info IndicationInfo, payload []byte)
}

// VehicleResponse pairs a decoded Vehicle Announcement with the address it
// arrived from, for the Vehicle Identification handler's collection phase.
type VehicleResponse struct {
	Announcement doip.VehicleAnnouncement
	SourceIP     string
}
