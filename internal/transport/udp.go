package transport

import (
	"fmt"
	"log"
	"net"
	"sync"

	"golang.org/x/sys/unix"
)

// UDPTransport implements the connectionless transport. A DoIP UDP channel
// owns two of these: one bound for broadcast transmit, one for unicast
// receive of per-ECU Vehicle Identification Responses (spec §4.5).
type UDPTransport struct {
	localAddr string
	logger    *log.Logger

	mu      sync.Mutex
	conn    *net.UDPConn
	handler ReadHandler
	closed  bool
}

// NewUDPTransport constructs a transport bound to localAddr, e.g.
// "0.0.0.0:13400" for the broadcast socket or "0.0.0.0:0" for an ephemeral
// unicast receive socket.
func NewUDPTransport(localAddr string, logger *log.Logger) *UDPTransport {
	return &UDPTransport{localAddr: localAddr, logger: logger}
}

// Initialize opens the local UDP socket and starts the receive worker.
func (u *UDPTransport) Initialize() error {
	addr, err := net.ResolveUDPAddr("udp", u.localAddr)
	if err != nil {
		return fmt.Errorf("transport: resolving local udp address %q: %w", u.localAddr, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("transport: listening on %q: %w", u.localAddr, err)
	}

	u.mu.Lock()
	u.conn = conn
	u.mu.Unlock()

	go u.receiveLoop(conn)
	return nil
}

func (u *UDPTransport) receiveLoop(conn *net.UDPConn) {
	buf := make([]byte, 65535)
	for {
		n, remote, err := conn.ReadFromUDP(buf)
		if err != nil {
			u.mu.Lock()
			closed := u.closed
			u.mu.Unlock()
			if !closed {
				logf(u.logger, "udp-transport: receive loop on %s ending: %v", u.localAddr, err)
			}
			return
		}
		u.mu.Lock()
		handler := u.handler
		u.mu.Unlock()
		if handler != nil {
			frame := make([]byte, n)
			copy(frame, buf[:n])
			handler(remote.String(), frame)
		}
	}
}

// SetReadHandler installs the per-datagram callback.
func (u *UDPTransport) SetReadHandler(h ReadHandler) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.handler = h
}

// Transmit sends message to destAddr (host:port). Used for both the
// broadcast Vehicle Identification Request and unicast responses.
func (u *UDPTransport) Transmit(destAddr string, message []byte) TransmitResult {
	addr, err := net.ResolveUDPAddr("udp", destAddr)
	if err != nil {
		logf(u.logger, "udp-transport: resolving dest %q: %v", destAddr, err)
		return TransmitFailed
	}
	u.mu.Lock()
	conn := u.conn
	u.mu.Unlock()
	if conn == nil {
		return TransmitFailed
	}
	if _, err := conn.WriteToUDP(message, addr); err != nil {
		logf(u.logger, "udp-transport: transmit to %s failed: %v", destAddr, err)
		return TransmitFailed
	}
	return TransmitOk
}

// DeInitialize closes the socket, which ends the receive worker; it does not
// wait for the worker goroutine to exit.
func (u *UDPTransport) DeInitialize() error {
	u.mu.Lock()
	u.closed = true
	conn := u.conn
	u.conn = nil
	u.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// EnableBroadcast sets SO_BROADCAST on the underlying socket. The Vehicle
// Identification Request transmits to a configured broadcast address and
// the kernel refuses that sendto() without this flag.
func (u *UDPTransport) EnableBroadcast() error {
	u.mu.Lock()
	conn := u.conn
	u.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("transport: socket not initialized")
	}
	raw, err := conn.SyscallConn()
	if err != nil {
		return fmt.Errorf("transport: accessing raw socket: %w", err)
	}
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	})
	if err != nil {
		return fmt.Errorf("transport: raw socket control: %w", err)
	}
	if sockErr != nil {
		return fmt.Errorf("transport: setting SO_BROADCAST: %w", sockErr)
	}
	return nil
}
