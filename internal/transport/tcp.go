package transport

import (
	"crypto/tls"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"net"
	"sync"

	"github.com/anodyne74/doip-diag-client/internal/doip"
)

// TCPTransport is the connection-oriented transport: plain TCP or, when a
// TLSConfig is supplied, TLS on top of TCP. It owns the single receive
// worker goroutine the channel's framer runs in.
type TCPTransport struct {
	localAddr string
	tlsConfig *tls.Config
	logger    *log.Logger

	mu      sync.Mutex
	conn    net.Conn
	handler ReadHandler
	done    chan struct{}
}

// NewTCPTransport constructs a transport bound to localAddr (may be empty
// for an ephemeral local port). When tls is non-nil the transport dials
// with TLS instead of plain TCP.
func NewTCPTransport(localAddr string, tls *TLSConfig, logger *log.Logger) (*TCPTransport, error) {
	t := &TCPTransport{localAddr: localAddr, logger: logger}
	if tls != nil && tls.Enabled {
		cfg, err := NewTLSDialer(*tls)
		if err != nil {
			return nil, fmt.Errorf("transport: building tls config: %w", err)
		}
		t.tlsConfig = cfg
	}
	return t, nil
}

// Initialize is a no-op for the dial-on-connect TCP transport: the local
// socket and receive worker are established by Connect, matching the
// spec's "spawn the receive worker (suspended)" wording literally — there
// is nothing to suspend before a peer address is known.
func (t *TCPTransport) Initialize() error {
	return nil
}

// Connect performs the blocking handshake (and TLS handshake, if
// configured) and starts the receive worker on success.
func (t *TCPTransport) Connect(hostIP string, hostPort int) ConnectResult {
	addr := net.JoinHostPort(hostIP, fmt.Sprintf("%d", hostPort))
	var conn net.Conn
	var err error
	if t.tlsConfig != nil {
		conn, err = dial("tcp", addr, t.tlsConfig)
	} else {
		conn, err = dial("tcp", addr, nil)
	}
	if err != nil {
		logf(t.logger, "tcp-transport: connect to %s failed: %v", addr, err)
		return ConnectFailed
	}

	t.mu.Lock()
	t.conn = conn
	t.done = make(chan struct{})
	handler := t.handler
	done := t.done
	t.mu.Unlock()

	go t.receiveLoop(conn, handler, done)
	return ConnectOk
}

// receiveLoop implements the TCP inbound framing of §4.2: read exactly 8
// header bytes, then exactly payload_length more, and deliver the
// concatenated frame. A short read is a clean remote disconnect.
func (t *TCPTransport) receiveLoop(conn net.Conn, handler ReadHandler, done chan struct{}) {
	remote := conn.RemoteAddr().String()
	header := make([]byte, doip.HeaderLength)
	for {
		if _, err := io.ReadFull(conn, header); err != nil {
			logf(t.logger, "tcp-transport: receive loop for %s ending: %v", remote, err)
			return
		}
		payloadLen := binary.BigEndian.Uint32(header[4:8])
		frame := make([]byte, doip.HeaderLength+int(payloadLen))
		copy(frame, header)
		if payloadLen > 0 {
			if _, err := io.ReadFull(conn, frame[doip.HeaderLength:]); err != nil {
				logf(t.logger, "tcp-transport: short frame from %s: %v", remote, err)
				return
			}
		}
		select {
		case <-done:
			return
		default:
		}
		if handler != nil {
			handler(remote, frame)
		}
	}
}

// Disconnect signals the receive worker to stop and closes the connection;
// it does not wait for the worker goroutine to exit.
func (t *TCPTransport) Disconnect() error {
	t.mu.Lock()
	conn := t.conn
	done := t.done
	t.conn = nil
	t.done = nil
	t.mu.Unlock()

	if done != nil {
		close(done)
	}
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// IsConnected reports whether a TCP connection is currently established.
func (t *TCPTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

// Transmit performs a blocking write of the complete message.
func (t *TCPTransport) Transmit(message []byte) TransmitResult {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return TransmitFailed
	}
	if _, err := conn.Write(message); err != nil {
		logf(t.logger, "tcp-transport: transmit failed: %v", err)
		return TransmitFailed
	}
	return TransmitOk
}

// SetReadHandler installs the callback invoked for each fully-received
// frame. Must be called before Connect to take effect on the first
// connection.
func (t *TCPTransport) SetReadHandler(h ReadHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = h
}

// DeInitialize closes any open socket and releases resources.
func (t *TCPTransport) DeInitialize() error {
	return t.Disconnect()
}
