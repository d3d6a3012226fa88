// Package conversation implements the Conversation layer of spec §4.6: a
// per-tester session bound to one TCP channel, exposing the synchronous
// ConnectToDiagServer / DisconnectFromDiagServer / SendDiagnosticRequest
// surface and owning the request-side receive buffer. One vehicle-discovery
// Conversation (see discovery.go) additionally exposes
// SendVehicleIdentificationRequest over a UDP channel, per spec §4.5/§9.
package conversation

import "github.com/anodyne74/doip-diag-client/internal/transport"

// ActivityStatus is a conversation's Startup/Shutdown state (spec §3).
type ActivityStatus string

const (
	Inactive ActivityStatus = "Inactive"
	Active   ActivityStatus = "Active"
)

// ConnectionStatus is a conversation's transport-level state (spec §3).
type ConnectionStatus string

const (
	Disconnected ConnectionStatus = "Disconnected"
	Connected    ConnectionStatus = "Connected"
)

// ConnectResult is returned by ConnectToDiagServer (spec §7).
type ConnectResult string

const (
	ConnectSuccess ConnectResult = "ConnectSuccess"
	ConnectFailed  ConnectResult = "ConnectFailed"
	ConnectTimeout ConnectResult = "ConnectTimeout"
	TlsRequired    ConnectResult = "TlsRequired"
)

// DisconnectResult is returned by DisconnectFromDiagServer (spec §7).
type DisconnectResult string

const (
	DisconnectSuccess      DisconnectResult = "DisconnectSuccess"
	DisconnectFailed       DisconnectResult = "DisconnectFailed"
	AlreadyDisconnected    DisconnectResult = "AlreadyDisconnected"
)

// DiagResult is returned by SendDiagnosticRequest alongside the response
// payload (spec §7's diagnostic-request error taxonomy).
type DiagResult string

const (
	DiagOk               DiagResult = "Ok"
	DiagGeneric          DiagResult = "Generic"
	DiagRequestSendFailed DiagResult = "RequestSendFailed"
	DiagAckTimeout       DiagResult = "AckTimeout"
	DiagNegAckReceived   DiagResult = "NegAckReceived"
	DiagResponseTimeout  DiagResult = "ResponseTimeout"
	DiagInvalidParameter DiagResult = "InvalidParameter"
	DiagBusyProcessing   DiagResult = "BusyProcessing"
)

// Config bundles the per-conversation parameters loaded from the external
// configuration (spec §3 "Conversation configuration").
type Config struct {
	Name                 string
	SourceAddress        uint16
	TargetAddress        uint16
	TxBufferSize         uint32
	RxBufferSize         uint32
	P2ClientMaxMs        uint16
	P2StarClientMaxMs    uint16
	LocalTCPIPAddress    string
	LocalUDPIPAddress    string
	UDPBroadcastAddress  string
	Port                 int
	ProtocolVersion      byte
	ActivationType       byte
	TLS                  *transport.TLSConfig
}
