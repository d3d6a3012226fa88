package channel

import (
	"log"
	"sync"
	"time"

	"github.com/anodyne74/doip-diag-client/internal/doip"
	"github.com/anodyne74/doip-diag-client/internal/synctimer"
	"github.com/anodyne74/doip-diag-client/internal/transport"
)

// RoutingActivationTimeout is T_TCP_Routing_Activation (spec §4.3).
const RoutingActivationTimeout = 1000 * time.Millisecond

// RoutingActivationState is the handler's runtime state (spec §3).
type RoutingActivationState string

const (
	RoutingActivationIdle           RoutingActivationState = "Idle"
	RoutingActivationWaitForResponse RoutingActivationState = "WaitForResponse"
	RoutingActivationSuccessful     RoutingActivationState = "Successful"
	RoutingActivationFailed         RoutingActivationState = "Failed"
)

// RoutingActivationHandler implements spec §4.3. One instance per TCP
// channel; at most one outstanding exchange at a time.
type RoutingActivationHandler struct {
	transport       transport.ConnectionOriented
	protocolVersion byte
	logger          *log.Logger

	mu           sync.Mutex
	state        RoutingActivationState
	timer        *synctimer.Timer
	resultCh     chan ConnectionResult
	lastResponse doip.RoutingActivationResponse
	hasResponse  bool
}

// NewRoutingActivationHandler constructs a handler bound to transport; it
// starts in Idle.
func NewRoutingActivationHandler(t transport.ConnectionOriented, protocolVersion byte, logger *log.Logger) *RoutingActivationHandler {
	return &RoutingActivationHandler{transport: t, protocolVersion: protocolVersion, logger: logger, state: RoutingActivationIdle}
}

// Reset forces the handler back to Idle, cancelling any outstanding wait.
func (h *RoutingActivationHandler) Reset() {
	h.mu.Lock()
	h.state = RoutingActivationIdle
	timer := h.timer
	h.timer = nil
	ch := h.resultCh
	h.resultCh = nil
	h.mu.Unlock()

	if timer != nil {
		timer.Cancel()
	}
	if ch != nil {
		ch <- ConnectionFailed
	}
}

// IsActive reports whether routing activation succeeded and is still in
// effect for this channel.
func (h *RoutingActivationHandler) IsActive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state == RoutingActivationSuccessful
}

// LastResponseCode returns the response code of the most recently processed
// Routing Activation Response. The conversation layer uses it to tell
// TlsRequired (0x07) apart from other rejections; every other failing
// code, including 0x11 (confirmation required), is reported there as
// ConnectFailed.
func (h *RoutingActivationHandler) LastResponseCode() (code byte, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.hasResponse {
		return 0, false
	}
	return h.lastResponse.ResponseCode, true
}

// SendRequest implements the algorithm of spec §4.3. Blocking.
func (h *RoutingActivationHandler) SendRequest(sourceAddress uint16, activationType byte) ConnectionResult {
	h.mu.Lock()
	if h.state != RoutingActivationIdle {
		h.mu.Unlock()
		return ConnectionFailed
	}
	h.state = RoutingActivationWaitForResponse
	resultCh := make(chan ConnectionResult, 1)
	h.resultCh = resultCh
	h.mu.Unlock()

	req := doip.RoutingActivationRequest{SourceAddress: sourceAddress, ActivationType: activationType}
	body := req.Encode()
	hdr := doip.NewHeader(h.protocolVersion, doip.PayloadTypeRoutingActivationReq, uint32(len(body)))
	frame := append(hdr.Encode(), body...)

	if h.transport.Transmit(frame) != transport.TransmitOk {
		h.mu.Lock()
		h.state = RoutingActivationIdle
		h.resultCh = nil
		h.mu.Unlock()
		return ConnectionFailed
	}

	timer := synctimer.Start(RoutingActivationTimeout, h.onTimeout)
	h.mu.Lock()
	h.timer = timer
	h.mu.Unlock()

	return <-resultCh
}

func (h *RoutingActivationHandler) onTimeout() {
	h.mu.Lock()
	if h.state != RoutingActivationWaitForResponse {
		h.mu.Unlock()
		return
	}
	h.state = RoutingActivationIdle
	ch := h.resultCh
	h.resultCh = nil
	h.mu.Unlock()

	if ch != nil {
		ch <- ConnectionTimeout
	}
}

// OnResponse is called by the TCP channel's dispatch for every inbound
// Routing Activation Response.
func (h *RoutingActivationHandler) OnResponse(res doip.RoutingActivationResponse) {
	h.mu.Lock()
	if h.state != RoutingActivationWaitForResponse {
		h.mu.Unlock()
		return
	}
	timer := h.timer
	h.timer = nil
	ch := h.resultCh
	h.resultCh = nil
	h.lastResponse = res
	h.hasResponse = true

	var result ConnectionResult
	switch res.ResponseCode {
	case doip.RoutingActivationResSuccessful:
		h.state = RoutingActivationSuccessful
		result = ConnectionOk
	case doip.RoutingActivationResConfirmationRequired:
		// The confirmation handshake is not implemented, so a
		// synchronous caller sees Failed. The response code is still
		// recorded and readable through LastResponseCode, and the log
		// line below names the confirmation-required case.
		h.state = RoutingActivationFailed
		result = ConnectionFailed
		logf(h.logger, "routing-activation: response 0x11 (confirmation required) received; confirmation handshake not implemented, treating as failed")
	default:
		h.state = RoutingActivationFailed
		result = ConnectionFailed
		logf(h.logger, "routing-activation: rejected with response code 0x%02x", res.ResponseCode)
	}
	h.mu.Unlock()

	if timer != nil {
		timer.Cancel()
	}
	if ch != nil {
		ch <- result
	}
}

func logf(logger *log.Logger, format string, args ...interface{}) {
	if logger == nil {
		return
	}
	logger.Printf(format, args...)
}
