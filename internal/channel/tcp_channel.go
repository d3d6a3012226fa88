package channel

import (
	"log"

	"github.com/anodyne74/doip-diag-client/internal/doip"
	"github.com/anodyne74/doip-diag-client/internal/transport"
)

// tcpExpectedPayloadTypes is the set of payload types a TCP channel accepts
// inbound (spec §4.2 step 2); anything else is NACKed 0x01.
var tcpExpectedPayloadTypes = map[uint16]bool{
	doip.PayloadTypeRoutingActivationRes: true,
	doip.PayloadTypeDiagMessage:          true,
	doip.PayloadTypeDiagMessagePosAck:    true,
	doip.PayloadTypeDiagMessageNegAck:    true,
	doip.PayloadTypeAliveCheckReq:        true,
}

// TCPChannel frames and validates inbound DoIP messages on a connected TCP
// transport and dispatches them to the Routing Activation and Diagnostic
// Message handlers it owns (spec §4.2).
type TCPChannel struct {
	transport       transport.ConnectionOriented
	protocolVersion byte
	sourceAddress   uint16
	rxBufferSize    uint32
	logger          *log.Logger

	RoutingActivation *RoutingActivationHandler
	DiagnosticMessage *DiagnosticMessageHandler
}

// TCPChannelConfig bundles the per-conversation parameters a TCP channel
// needs to construct its handlers.
type TCPChannelConfig struct {
	ProtocolVersion byte
	SourceAddress   uint16
	TargetAddress   uint16
	RxBufferSize    uint32
	P2ClientMaxMs   uint16
	P2StarClientMaxMs uint16
}

// NewTCPChannel constructs a channel over t, forwarding delivered messages
// to indicator.
func NewTCPChannel(t transport.ConnectionOriented, indicator Indicator, cfg TCPChannelConfig, logger *log.Logger) *TCPChannel {
	c := &TCPChannel{
		transport:       t,
		protocolVersion: cfg.ProtocolVersion,
		sourceAddress:   cfg.SourceAddress,
		rxBufferSize:    cfg.RxBufferSize,
		logger:          logger,
	}
	c.RoutingActivation = NewRoutingActivationHandler(t, cfg.ProtocolVersion, logger)
	c.DiagnosticMessage = NewDiagnosticMessageHandler(t, indicator, DiagnosticHandlerConfig{
		ProtocolVersion:   cfg.ProtocolVersion,
		SourceAddress:     cfg.SourceAddress,
		TargetAddress:     cfg.TargetAddress,
		RxBufferSize:      cfg.RxBufferSize,
		P2ClientMaxMs:     cfg.P2ClientMaxMs,
		P2StarClientMaxMs: cfg.P2StarClientMaxMs,
	}, logger)
	return c
}

// Start installs the channel's frame handler on the transport. The
// sub-handlers need no explicit start: they begin in Idle.
func (c *TCPChannel) Start() {
	c.transport.SetReadHandler(c.handleFrame)
}

// Stop removes the frame handler; sub-handlers are reset separately via
// Reset so any blocked caller is unblocked deterministically.
func (c *TCPChannel) Stop() {
	c.transport.SetReadHandler(nil)
}

// Reset forces both sub-handlers back to Idle, per spec §5's remote
// disconnect / shutdown cancellation contract.
func (c *TCPChannel) Reset() {
	c.RoutingActivation.Reset()
	c.DiagnosticMessage.Reset()
}

// handleFrame is installed as the transport's ReadHandler. It implements
// the ordered generic-header validation of §4.2 and dispatches by payload
// type.
func (c *TCPChannel) handleFrame(remoteAddr string, frame []byte) {
	hdr, err := doip.DecodeHeader(frame)
	if err != nil {
		logf(c.logger, "tcp-channel: %v", err)
		return
	}
	payload := frame[doip.HeaderLength:]

	outcome := doip.ValidateHeader(hdr, tcpExpectedPayloadTypes, c.rxBufferSize)
	if !outcome.Ok {
		logf(c.logger, "tcp-channel: header validation failed, nack 0x%02x (close=%v)", outcome.NackCode, outcome.CloseChannel)
		c.transport.Transmit(doip.EncodeNack(c.protocolVersion, outcome.NackCode))
		if outcome.CloseChannel {
			c.transport.Disconnect()
		}
		return
	}

	switch hdr.PayloadType {
	case doip.PayloadTypeRoutingActivationRes:
		res, err := doip.DecodeRoutingActivationResponse(payload)
		if err != nil {
			logf(c.logger, "tcp-channel: %v", err)
			return
		}
		c.RoutingActivation.OnResponse(res)
	case doip.PayloadTypeDiagMessage:
		msg, err := doip.DecodeDiagnosticMessage(payload)
		if err != nil {
			logf(c.logger, "tcp-channel: %v", err)
			return
		}
		c.DiagnosticMessage.OnResponse(msg)
	case doip.PayloadTypeDiagMessagePosAck, doip.PayloadTypeDiagMessageNegAck:
		ack, err := doip.DecodeDiagnosticMessageAck(payload)
		if err != nil {
			logf(c.logger, "tcp-channel: %v", err)
			return
		}
		c.DiagnosticMessage.OnAck(ack, hdr.PayloadType == doip.PayloadTypeDiagMessagePosAck)
	case doip.PayloadTypeAliveCheckReq:
		c.respondAliveCheck()
	}
}

// respondAliveCheck answers an Alive Check Request with a positive response
// carrying this channel's own source address (SPEC_FULL.md §C; present in
// the original source's TCP channel handler but not elaborated in the
// distilled protocol description).
func (c *TCPChannel) respondAliveCheck() {
	body := make([]byte, 2)
	body[0] = byte(c.sourceAddress >> 8)
	body[1] = byte(c.sourceAddress)
	hdr := doip.NewHeader(c.protocolVersion, doip.PayloadTypeAliveCheckRes, uint32(len(body)))
	c.transport.Transmit(append(hdr.Encode(), body...))
}

// ConnectAndActivate performs the transport connect and, on success, the
// routing activation handshake (spec §4.6's "connect_and_activate").
func (c *TCPChannel) ConnectAndActivate(hostIP string, hostPort int, activationType byte) (transport.ConnectResult, ConnectionResult) {
	connectResult := c.transport.Connect(hostIP, hostPort)
	if connectResult != transport.ConnectOk {
		return connectResult, ConnectionFailed
	}
	c.Start()
	return connectResult, c.RoutingActivation.SendRequest(c.sourceAddress, activationType)
}
