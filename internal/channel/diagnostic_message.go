package channel

import (
	"log"
	"sync"
	"time"

	"github.com/anodyne74/doip-diag-client/internal/doip"
	"github.com/anodyne74/doip-diag-client/internal/synctimer"
	"github.com/anodyne74/doip-diag-client/internal/transport"
)

// DiagnosticAckTimeout is T_DoIP_Diagnostic_Message_Ack (spec §4.4).
const DiagnosticAckTimeout = 2000 * time.Millisecond

// DiagnosticMessageState is the handler's runtime state (spec §3).
type DiagnosticMessageState string

const (
	DiagnosticIdle                   DiagnosticMessageState = "Idle"
	DiagnosticWaitForAck             DiagnosticMessageState = "WaitForAck"
	DiagnosticPositiveAckReceived    DiagnosticMessageState = "PositiveAckReceived"
	DiagnosticNegativeAckReceived    DiagnosticMessageState = "NegativeAckReceived"
	DiagnosticWaitForResponse        DiagnosticMessageState = "WaitForResponse"
	DiagnosticFinalResponseReceived  DiagnosticMessageState = "FinalResponseReceived"
	DiagnosticP2Timeout              DiagnosticMessageState = "P2Timeout"
	DiagnosticP2StarTimeout          DiagnosticMessageState = "P2StarTimeout"
)

// DiagnosticMessageHandler implements spec §4.4. One instance per TCP
// channel; at most one outstanding diagnostic exchange at a time.
type DiagnosticMessageHandler struct {
	transport       transport.ConnectionOriented
	indicator       Indicator
	protocolVersion byte
	sourceAddress   uint16
	targetAddress   uint16
	rxBufferSize    uint32
	p2ClientMax     time.Duration
	p2StarClientMax time.Duration
	logger          *log.Logger

	mu       sync.Mutex
	state    DiagnosticMessageState
	timer    *synctimer.Timer
	resultCh chan TransmissionResult
}

// DiagnosticHandlerConfig bundles the conversation-level parameters the
// handler needs (spec §3's p2/p2*/buffer fields).
type DiagnosticHandlerConfig struct {
	ProtocolVersion byte
	SourceAddress   uint16
	TargetAddress   uint16
	RxBufferSize    uint32
	P2ClientMaxMs   uint16
	P2StarClientMaxMs uint16
}

// NewDiagnosticMessageHandler constructs a handler bound to transport and
// indicator; it starts in Idle.
func NewDiagnosticMessageHandler(t transport.ConnectionOriented, ind Indicator, cfg DiagnosticHandlerConfig, logger *log.Logger) *DiagnosticMessageHandler {
	return &DiagnosticMessageHandler{
		transport:       t,
		indicator:       ind,
		protocolVersion: cfg.ProtocolVersion,
		sourceAddress:   cfg.SourceAddress,
		targetAddress:   cfg.TargetAddress,
		rxBufferSize:    cfg.RxBufferSize,
		p2ClientMax:     time.Duration(cfg.P2ClientMaxMs) * time.Millisecond,
		p2StarClientMax: time.Duration(cfg.P2StarClientMaxMs) * time.Millisecond,
		logger:          logger,
		state:           DiagnosticIdle,
	}
}

// SetTargetAddress updates the target address used for subsequent requests;
// a conversation may connect to different ECUs across its lifetime.
func (h *DiagnosticMessageHandler) SetTargetAddress(addr uint16) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.targetAddress = addr
}

// TargetAddress reports the address currently in effect, reflecting any
// override made by SetTargetAddress since the handler was constructed.
func (h *DiagnosticMessageHandler) TargetAddress() uint16 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.targetAddress
}

// Reset forces the handler back to Idle, cancelling any outstanding wait and
// failing a blocked caller with ResponseTimeout (spec §5: "remote disconnect
// ... fails any in-flight diagnostic wait with ResponseTimeout").
func (h *DiagnosticMessageHandler) Reset() {
	h.mu.Lock()
	h.state = DiagnosticIdle
	timer := h.timer
	h.timer = nil
	ch := h.resultCh
	h.resultCh = nil
	h.mu.Unlock()

	if timer != nil {
		timer.Cancel()
	}
	if ch != nil {
		ch <- TransmissionResponseTimeout
	}
}

// IsIdle reports whether a new request may be sent immediately.
func (h *DiagnosticMessageHandler) IsIdle() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state == DiagnosticIdle
}

// SendRequest implements the algorithm of spec §4.4. Blocking.
func (h *DiagnosticMessageHandler) SendRequest(uds []byte) TransmissionResult {
	h.mu.Lock()
	if h.state != DiagnosticIdle {
		h.mu.Unlock()
		return TransmissionBusy
	}
	h.state = DiagnosticWaitForAck
	resultCh := make(chan TransmissionResult, 1)
	h.resultCh = resultCh
	source, target := h.sourceAddress, h.targetAddress
	h.mu.Unlock()

	msg := doip.DiagnosticMessage{SourceAddress: source, TargetAddress: target, UDSData: uds}
	body := msg.Encode()
	hdr := doip.NewHeader(h.protocolVersion, doip.PayloadTypeDiagMessage, uint32(len(body)))
	frame := append(hdr.Encode(), body...)

	if h.transport.Transmit(frame) != transport.TransmitOk {
		h.mu.Lock()
		h.state = DiagnosticIdle
		h.resultCh = nil
		h.mu.Unlock()
		return TransmissionFailed
	}

	timer := synctimer.Start(DiagnosticAckTimeout, h.onAckTimeout)
	h.mu.Lock()
	h.timer = timer
	h.mu.Unlock()

	return <-resultCh
}

func (h *DiagnosticMessageHandler) onAckTimeout() {
	h.mu.Lock()
	if h.state != DiagnosticWaitForAck {
		h.mu.Unlock()
		return
	}
	h.state = DiagnosticIdle
	ch := h.resultCh
	h.resultCh = nil
	h.mu.Unlock()

	if ch != nil {
		ch <- TransmissionAckTimeout
	}
}

// OnAck is called by the TCP channel's dispatch for positive/negative ack
// frames.
func (h *DiagnosticMessageHandler) OnAck(ack doip.DiagnosticMessageAck, positive bool) {
	h.mu.Lock()
	if h.state != DiagnosticWaitForAck {
		h.mu.Unlock()
		return
	}
	timer := h.timer
	h.timer = nil

	if !positive {
		h.state = DiagnosticIdle
		ch := h.resultCh
		h.resultCh = nil
		h.mu.Unlock()

		if timer != nil {
			timer.Cancel()
		}
		logf(h.logger, "diagnostic-message: negative ack code 0x%02x", ack.Code)
		if ch != nil {
			ch <- TransmissionNegAckReceived
		}
		return
	}

	h.state = DiagnosticWaitForResponse
	p2 := h.p2ClientMax
	h.mu.Unlock()

	if timer != nil {
		timer.Cancel()
	}

	p2Timer := synctimer.Start(p2, h.onResponseTimeout)
	h.mu.Lock()
	h.timer = p2Timer
	h.mu.Unlock()
}

func (h *DiagnosticMessageHandler) onResponseTimeout() {
	h.mu.Lock()
	if h.state != DiagnosticWaitForResponse {
		h.mu.Unlock()
		return
	}
	h.state = DiagnosticIdle
	ch := h.resultCh
	h.resultCh = nil
	h.mu.Unlock()

	if ch != nil {
		ch <- TransmissionResponseTimeout
	}
}

// OnResponse is called by the TCP channel's dispatch for Diagnostic Message
// frames arriving while a request is outstanding.
func (h *DiagnosticMessageHandler) OnResponse(msg doip.DiagnosticMessage) {
	h.mu.Lock()
	if h.state != DiagnosticWaitForResponse {
		h.mu.Unlock()
		return
	}

	if uint32(len(msg.UDSData)) > h.rxBufferSize {
		h.state = DiagnosticIdle
		timer := h.timer
		h.timer = nil
		h.mu.Unlock()
		if timer != nil {
			timer.Cancel()
		}
		info := IndicationInfo{SourceAddress: msg.SourceAddress, TargetAddress: msg.TargetAddress, PayloadType: doip.PayloadTypeDiagMessage, Size: uint32(len(msg.UDSData))}
		h.indicator.IndicateMessage(info, msg.UDSData)
		return
	}

	timer := h.timer
	h.timer = nil
	pstar := h.p2StarClientMax
	h.mu.Unlock()

	if timer != nil {
		timer.Cancel()
	}

	info := IndicationInfo{SourceAddress: msg.SourceAddress, TargetAddress: msg.TargetAddress, PayloadType: doip.PayloadTypeDiagMessage, Size: uint32(len(msg.UDSData))}
	if h.indicator.IndicateMessage(info, msg.UDSData) == IndicationPending {
		newTimer := synctimer.Start(pstar, h.onResponseTimeout)
		h.mu.Lock()
		h.state = DiagnosticWaitForResponse
		h.timer = newTimer
		h.mu.Unlock()
		return
	}

	h.indicator.HandleMessage(info, msg.UDSData)

	h.mu.Lock()
	h.state = DiagnosticIdle
	ch := h.resultCh
	h.resultCh = nil
	h.mu.Unlock()

	if ch != nil {
		ch <- TransmissionOk
	}
}
