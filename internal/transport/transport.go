// Package transport implements the connection-oriented (TCP/TLS) and
// connectionless (UDP) byte-message transports the DoIP channel layer runs
// on top of (spec §4.1). The TCP transport frames the stream itself (it
// reads the 8-byte header, takes payload_length from it, and reads that many
// more bytes) and delivers each complete frame; the UDP transport delivers
// whatever arrived in one datagram. Neither validates or dispatches frames:
// that is the channel's job, behind the installed read handler.
package transport

import (
	"crypto/tls"
	"log"
	"net"
	"time"
)

// Default DoIP ports (spec §6).
const (
	DefaultTCPPort = 13400
	DefaultTLSPort = 3496
	DefaultUDPPort = 13400
)

// ConnectResult is returned by ConnectionOriented.Connect.
type ConnectResult string

const (
	ConnectOk     ConnectResult = "ConnectOk"
	ConnectFailed ConnectResult = "ConnectFailed"
)

// TransmitResult is returned by Transmit on both transport kinds.
type TransmitResult string

const (
	TransmitOk     TransmitResult = "TransmitOk"
	TransmitFailed TransmitResult = "TransmitFailed"
)

// ReadHandler is invoked once per fully-received DoIP frame (TCP) or once
// per datagram (UDP). remoteAddr is the peer the frame arrived from; for a
// TCP transport it is always the single connected peer.
type ReadHandler func(remoteAddr string, frame []byte)

// TLSConfig is accepted opaquely: the core never inspects cipher suites or
// certificate contents. NewTLSDialer applies only MinVersion and
// InsecureSkipVerify; CACertificatePath and CipherList are not used.
type TLSConfig struct {
	Enabled            bool
	CACertificatePath  string
	CipherList         []string
	MinVersion         uint16
	InsecureSkipVerify bool
}

// ConnectionOriented is the capability set a DoIP TCP channel needs from its
// transport (spec §4.1).
type ConnectionOriented interface {
	Initialize() error
	Connect(hostIP string, hostPort int) ConnectResult
	Disconnect() error
	IsConnected() bool
	Transmit(message []byte) TransmitResult
	SetReadHandler(h ReadHandler)
	DeInitialize() error
}

// Connectionless is the capability set a DoIP UDP channel needs from its
// transport (spec §4.1).
type Connectionless interface {
	Initialize() error
	SetReadHandler(h ReadHandler)
	Transmit(destAddr string, message []byte) TransmitResult
	DeInitialize() error
}

// NewTLSDialer builds the tls.Config used when a conversation's
// configuration names a TLS section. It sets MinVersion (TLS 1.2 when zero)
// and InsecureSkipVerify; the CA certificate path and cipher list are not
// loaded or applied, so the standard library's defaults govern them.
func NewTLSDialer(cfg TLSConfig) (*tls.Config, error) {
	tlsCfg := &tls.Config{
		MinVersion:         cfg.MinVersion,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}
	if tlsCfg.MinVersion == 0 {
		tlsCfg.MinVersion = tls.VersionTLS12
	}
	return tlsCfg, nil
}

// dialTimeout bounds the otherwise-unbounded OS connect() call referenced in
// spec §5 ("Transport connect ... blocking but bounded").
const dialTimeout = 5 * time.Second

func dial(network, addr string, tlsCfg *tls.Config) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: dialTimeout}
	if tlsCfg != nil {
		return tls.DialWithDialer(dialer, network, addr, tlsCfg)
	}
	return dialer.Dial(network, addr)
}

func logf(logger *log.Logger, format string, args ...interface{}) {
	if logger == nil {
		return
	}
	logger.Printf(format, args...)
}
