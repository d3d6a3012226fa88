package conversation

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/anodyne74/doip-diag-client/internal/channel"
	"github.com/anodyne74/doip-diag-client/internal/connection"
	"github.com/anodyne74/doip-diag-client/internal/doip"
	"github.com/anodyne74/doip-diag-client/internal/transport"
)

// ExchangeRecorder receives timing/outcome telemetry for a completed
// diagnostic exchange. internal/metrics.Recorder implements this.
type ExchangeRecorder interface {
	RecordExchange(conversationName string, targetAddress uint16, latency time.Duration, outcome string) error
}

// ActivationRecorder receives timing/outcome telemetry for a completed
// Routing Activation attempt. internal/metrics.Recorder implements this.
type ActivationRecorder interface {
	RecordRoutingActivation(conversationName string, targetAddress uint16, latency time.Duration, outcome string) error
}

// FrameRecorder receives raw frame bytes as they cross the wire, for
// offline capture/replay. internal/capture.Recorder implements this.
type FrameRecorder interface {
	RecordFrame(direction string, payloadType uint16, source, target uint16, data []byte) error
}

const (
	frameDirectionOutbound = "outbound"
	frameDirectionInbound  = "inbound"
)

// Conversation implements spec §4.6: the per-tester session bound to one
// TCP channel. It owns the activity/connection status, the receive buffer
// committed by HandleMessage, and the synchronous public surface.
type Conversation struct {
	cfg    Config
	logger *log.Logger

	transport  transport.ConnectionOriented
	channel    *channel.TCPChannel
	connection *connection.Connection

	Metrics           ExchangeRecorder
	ActivationMetrics ActivationRecorder
	Capture           FrameRecorder

	mu         sync.Mutex
	activity   ActivityStatus
	connStatus ConnectionStatus
	rxBuffer   []byte
}

// New constructs a Conversation over a freshly created TCP transport. The
// transport is not yet initialized or connected; Startup initializes it and
// ConnectToDiagServer connects it.
func New(cfg Config, logger *log.Logger) (*Conversation, error) {
	if cfg.ProtocolVersion == 0 {
		cfg.ProtocolVersion = doip.ProtocolVersion2019
	}
	t, err := transport.NewTCPTransport(cfg.LocalTCPIPAddress, cfg.TLS, logger)
	if err != nil {
		return nil, fmt.Errorf("conversation[%s]: building transport: %w", cfg.Name, err)
	}
	return NewWithTransport(cfg, t, logger), nil
}

// NewWithTransport constructs a Conversation over a caller-supplied
// transport, bypassing the real-socket construction New performs. Used by
// tests and by callers that need a non-default transport (e.g. a
// pre-configured TLS dialer).
func NewWithTransport(cfg Config, t transport.ConnectionOriented, logger *log.Logger) *Conversation {
	if cfg.ProtocolVersion == 0 {
		cfg.ProtocolVersion = doip.ProtocolVersion2019
	}
	c := &Conversation{
		cfg:        cfg,
		logger:     logger,
		transport:  t,
		activity:   Inactive,
		connStatus: Disconnected,
	}
	conn := connection.New(c)
	c.connection = conn
	c.channel = channel.NewTCPChannel(t, conn, channel.TCPChannelConfig{
		ProtocolVersion:   cfg.ProtocolVersion,
		SourceAddress:     cfg.SourceAddress,
		TargetAddress:     cfg.TargetAddress,
		RxBufferSize:      cfg.RxBufferSize,
		P2ClientMaxMs:     cfg.P2ClientMaxMs,
		P2StarClientMaxMs: cfg.P2StarClientMaxMs,
	}, logger)
	return c
}

// Name returns the conversation's configured name, its lookup key in the
// Diagnostic Client's conversation set.
func (c *Conversation) Name() string { return c.cfg.Name }

// Startup initializes the underlying transport and starts the channel,
// transitioning activity to Active (spec §4.6).
func (c *Conversation) Startup() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activity == Active {
		return fmt.Errorf("conversation[%s]: startup called while already active", c.cfg.Name)
	}
	if err := c.transport.Initialize(); err != nil {
		return fmt.Errorf("conversation[%s]: initializing transport: %w", c.cfg.Name, err)
	}
	c.channel.Start()
	c.activity = Active
	return nil
}

// Shutdown reverses Startup: it disconnects if connected, stops the
// channel, and de-initializes the transport. Allowed only from Active.
func (c *Conversation) Shutdown() error {
	c.mu.Lock()
	if c.activity != Active {
		c.mu.Unlock()
		return fmt.Errorf("conversation[%s]: shutdown called while not active", c.cfg.Name)
	}
	connected := c.connStatus == Connected
	c.mu.Unlock()

	if connected {
		c.DisconnectFromDiagServer()
	}
	c.channel.Stop()
	err := c.transport.DeInitialize()

	c.mu.Lock()
	c.activity = Inactive
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("conversation[%s]: de-initializing transport: %w", c.cfg.Name, err)
	}
	return nil
}

// ConnectToDiagServer performs the transport connect and Routing Activation
// handshake against hostIP, overriding the conversation's default target
// address for this session (spec §4.6).
func (c *Conversation) ConnectToDiagServer(targetAddress uint16, hostIP string) ConnectResult {
	c.mu.Lock()
	if c.activity != Active {
		c.mu.Unlock()
		return ConnectFailed
	}
	c.mu.Unlock()

	c.channel.DiagnosticMessage.SetTargetAddress(targetAddress)

	port := c.cfg.Port
	if port == 0 {
		port = transport.DefaultTCPPort
	}
	activationType := c.cfg.ActivationType

	start := time.Now()
	connectResult, raResult := c.channel.ConnectAndActivate(hostIP, port, activationType)
	latency := time.Since(start)

	if connectResult != transport.ConnectOk {
		logf(c.logger, "conversation[%s]: transport connect to %s failed", c.cfg.Name, hostIP)
		c.recordActivation(targetAddress, latency, ConnectFailed)
		return ConnectFailed
	}

	// The transport-level TCP connection is up even if routing activation
	// is rejected below; connStatus reflects that so a subsequent
	// DisconnectFromDiagServer still closes the socket cleanly (spec §8
	// scenario 5) rather than reporting AlreadyDisconnected. Sending a
	// diagnostic request is separately gated on RoutingActivation.IsActive.
	c.mu.Lock()
	c.connStatus = Connected
	c.mu.Unlock()

	var result ConnectResult
	switch raResult {
	case channel.ConnectionOk:
		result = ConnectSuccess
	case channel.ConnectionTimeout:
		result = ConnectTimeout
	default:
		if code, ok := c.channel.RoutingActivation.LastResponseCode(); ok && code == doip.RoutingActivationResTLSRequired {
			result = TlsRequired
		} else {
			result = ConnectFailed
		}
	}
	c.recordActivation(targetAddress, latency, result)
	return result
}

func (c *Conversation) recordActivation(targetAddress uint16, latency time.Duration, result ConnectResult) {
	if c.ActivationMetrics == nil {
		return
	}
	if err := c.ActivationMetrics.RecordRoutingActivation(c.cfg.Name, targetAddress, latency, string(result)); err != nil {
		logf(c.logger, "conversation[%s]: recording routing activation metric: %v", c.cfg.Name, err)
	}
}

// DisconnectFromDiagServer tears down the transport connection and resets
// the channel's handlers. Idempotent: calling it while already
// disconnected returns AlreadyDisconnected rather than erroring (spec §8).
func (c *Conversation) DisconnectFromDiagServer() DisconnectResult {
	c.mu.Lock()
	if c.connStatus != Connected {
		c.mu.Unlock()
		return AlreadyDisconnected
	}
	c.connStatus = Disconnected
	c.mu.Unlock()

	c.channel.Reset()
	if err := c.transport.Disconnect(); err != nil {
		logf(c.logger, "conversation[%s]: disconnect: %v", c.cfg.Name, err)
		return DisconnectFailed
	}
	return DisconnectSuccess
}

// SendDiagnosticRequest forwards uds to the channel's diagnostic handler
// and returns the UDS response payload assembled in the conversation's rx
// buffer on success (spec §4.6).
func (c *Conversation) SendDiagnosticRequest(uds []byte) ([]byte, DiagResult) {
	if len(uds) == 0 {
		return nil, DiagInvalidParameter
	}

	c.mu.Lock()
	active := c.activity == Active
	connected := c.connStatus == Connected
	c.mu.Unlock()
	target := c.channel.DiagnosticMessage.TargetAddress()

	if !active || !connected {
		return nil, DiagInvalidParameter
	}
	if !c.channel.RoutingActivation.IsActive() {
		return nil, DiagInvalidParameter
	}

	if c.Capture != nil {
		c.Capture.RecordFrame(frameDirectionOutbound, doip.PayloadTypeDiagMessage, c.cfg.SourceAddress, target, uds)
	}

	start := time.Now()
	result := c.channel.DiagnosticMessage.SendRequest(uds)
	latency := time.Since(start)

	outcome, diagResult := mapTransmissionResult(result)
	if c.Metrics != nil {
		c.Metrics.RecordExchange(c.cfg.Name, target, latency, outcome)
	}

	if diagResult != DiagOk {
		return nil, diagResult
	}

	c.mu.Lock()
	response := append([]byte(nil), c.rxBuffer...)
	c.mu.Unlock()

	if c.Capture != nil {
		c.Capture.RecordFrame(frameDirectionInbound, doip.PayloadTypeDiagMessage, target, c.cfg.SourceAddress, response)
	}

	return response, DiagOk
}

func mapTransmissionResult(r channel.TransmissionResult) (outcome string, result DiagResult) {
	switch r {
	case channel.TransmissionOk:
		return "Ok", DiagOk
	case channel.TransmissionFailed:
		return "RequestSendFailed", DiagRequestSendFailed
	case channel.TransmissionAckTimeout:
		return "AckTimeout", DiagAckTimeout
	case channel.TransmissionNegAckReceived:
		return "NegAckReceived", DiagNegAckReceived
	case channel.TransmissionResponseTimeout:
		return "ResponseTimeout", DiagResponseTimeout
	case channel.TransmissionBusy:
		return "BusyProcessing", DiagBusyProcessing
	default:
		return "Generic", DiagGeneric
	}
}

// IndicateMessage implements connection.Indicatee, the contract spec §4.6
// assigns to the Conversation: reject oversize frames, flag a pending
// response (0x78) without touching the rx buffer, otherwise prepare the
// buffer to receive the payload.
func (c *Conversation) IndicateMessage(info channel.IndicationInfo, payloadPreview []byte) channel.IndicationResult {
	if info.Size > c.cfg.RxBufferSize {
		return channel.IndicationOverflow
	}
	if len(payloadPreview) >= 3 && payloadPreview[2] == doip.PendingResponseNRC {
		return channel.IndicationPending
	}
	return channel.IndicationOk
}

// HandleMessage implements connection.Indicatee: commit the fully-received
// payload to the rx buffer the blocked SendDiagnosticRequest caller reads.
func (c *Conversation) HandleMessage(info channel.IndicationInfo, payload []byte) {
	c.mu.Lock()
	c.rxBuffer = append([]byte(nil), payload...)
	c.mu.Unlock()
}

// Status reports the conversation's current activity/connection state,
// used by the monitor surface (internal/monitor) to render live state.
func (c *Conversation) Status() (ActivityStatus, ConnectionStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activity, c.connStatus
}

func logf(logger *log.Logger, format string, args ...interface{}) {
	if logger == nil {
		return
	}
	logger.Printf(format, args...)
}
