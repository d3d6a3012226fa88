package channel

import (
	"sync"

	"github.com/anodyne74/doip-diag-client/internal/transport"
)

// fakeConnOriented is an in-memory stand-in for transport.ConnectionOriented
// that records every transmitted frame and lets a test deliver inbound
// frames by calling its installed handler directly.
type fakeConnOriented struct {
	mu          sync.Mutex
	connected   bool
	handler     transport.ReadHandler
	transmitted [][]byte
	failConnect bool
	failTransmit bool
}

func (f *fakeConnOriented) Initialize() error { return nil }

func (f *fakeConnOriented) Connect(hostIP string, hostPort int) transport.ConnectResult {
	if f.failConnect {
		return transport.ConnectFailed
	}
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	return transport.ConnectOk
}

func (f *fakeConnOriented) Disconnect() error {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	return nil
}

func (f *fakeConnOriented) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeConnOriented) Transmit(message []byte) transport.TransmitResult {
	if f.failTransmit {
		return transport.TransmitFailed
	}
	f.mu.Lock()
	f.transmitted = append(f.transmitted, append([]byte(nil), message...))
	f.mu.Unlock()
	return transport.TransmitOk
}

func (f *fakeConnOriented) SetReadHandler(h transport.ReadHandler) {
	f.mu.Lock()
	f.handler = h
	f.mu.Unlock()
}

func (f *fakeConnOriented) DeInitialize() error { return nil }

func (f *fakeConnOriented) deliver(remote string, frame []byte) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h(remote, frame)
	}
}

func (f *fakeConnOriented) lastFrame() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.transmitted) == 0 {
		return nil
	}
	return f.transmitted[len(f.transmitted)-1]
}

// fakeConnectionless is an in-memory stand-in for transport.Connectionless.
type fakeConnectionless struct {
	mu          sync.Mutex
	handler     transport.ReadHandler
	transmitted []fakeDatagram
	failTransmit bool
}

type fakeDatagram struct {
	dest    string
	message []byte
}

func (f *fakeConnectionless) Initialize() error { return nil }

func (f *fakeConnectionless) SetReadHandler(h transport.ReadHandler) {
	f.mu.Lock()
	f.handler = h
	f.mu.Unlock()
}

func (f *fakeConnectionless) Transmit(destAddr string, message []byte) transport.TransmitResult {
	if f.failTransmit {
		return transport.TransmitFailed
	}
	f.mu.Lock()
	f.transmitted = append(f.transmitted, fakeDatagram{dest: destAddr, message: append([]byte(nil), message...)})
	f.mu.Unlock()
	return transport.TransmitOk
}

func (f *fakeConnectionless) DeInitialize() error { return nil }

func (f *fakeConnectionless) deliver(remote string, frame []byte) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h(remote, frame)
	}
}

// fakeIndicator is an in-memory stand-in for Indicator. Its IndicateMessage
// mirrors Conversation.IndicateMessage's real verdict (pending iff the UDS
// byte at offset 2 is 0x78) so tests built on it exercise the same
// pending/final decision the production Indicator makes; nextResult, when
// set, overrides that decision for tests that need to force a specific
// verdict (e.g. overflow) regardless of payload shape.
type fakeIndicator struct {
	mu            sync.Mutex
	indicateCalls []IndicationInfo
	handleCalls   []IndicationInfo
	nextResult    IndicationResult
}

func newFakeIndicator() *fakeIndicator {
	return &fakeIndicator{}
}

func (f *fakeIndicator) IndicateMessage(info IndicationInfo, payloadPreview []byte) IndicationResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indicateCalls = append(f.indicateCalls, info)
	if f.nextResult != "" {
		return f.nextResult
	}
	if len(payloadPreview) >= 3 && payloadPreview[2] == 0x78 {
		return IndicationPending
	}
	return IndicationOk
}

func (f *fakeIndicator) HandleMessage(info IndicationInfo, payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handleCalls = append(f.handleCalls, info)
}
