package conversation

import (
	"sync"

	"github.com/anodyne74/doip-diag-client/internal/transport"
)

// fakeTransport is an in-memory stand-in for transport.ConnectionOriented,
// mirroring internal/channel's fakeConnOriented test double.
type fakeTransport struct {
	mu           sync.Mutex
	connected    bool
	handler      transport.ReadHandler
	transmitted  [][]byte
	failConnect  bool
	failTransmit bool
}

func (f *fakeTransport) Initialize() error { return nil }

func (f *fakeTransport) Connect(hostIP string, hostPort int) transport.ConnectResult {
	if f.failConnect {
		return transport.ConnectFailed
	}
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	return transport.ConnectOk
}

func (f *fakeTransport) Disconnect() error {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) Transmit(message []byte) transport.TransmitResult {
	if f.failTransmit {
		return transport.TransmitFailed
	}
	f.mu.Lock()
	f.transmitted = append(f.transmitted, append([]byte(nil), message...))
	f.mu.Unlock()
	return transport.TransmitOk
}

func (f *fakeTransport) SetReadHandler(h transport.ReadHandler) {
	f.mu.Lock()
	f.handler = h
	f.mu.Unlock()
}

func (f *fakeTransport) DeInitialize() error { return nil }

func (f *fakeTransport) deliver(remote string, frame []byte) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h(remote, frame)
	}
}

func (f *fakeTransport) lastFrame() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.transmitted) == 0 {
		return nil
	}
	return f.transmitted[len(f.transmitted)-1]
}
