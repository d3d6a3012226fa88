// Package simulator implements a minimal in-process DoIP ECU: a TCP
// listener that answers Routing Activation and Diagnostic Message
// requests, and a UDP responder that answers Vehicle Identification
// requests with a Vehicle Announcement. It exists for client integration
// tests, grounded on the teacher's testing/simulator TCP
// server (net.Listen + per-connection goroutine) adapted from OBD2 framing
// to DoIP framing.
package simulator

import (
	"log"
	"net"
	"sync"

	"github.com/anodyne74/doip-diag-client/internal/doip"
)

// ECUConfig controls how the simulated ECU answers requests.
type ECUConfig struct {
	SourceAddress uint16 // the ECU's own logical address

	RoutingActivationResponseCode byte // doip.RoutingActivationRes*; zero (also UnknownSA) selects Successful

	PendingResponseCount int    // number of 0x78 NRCs sent before the final response to the first diagnostic request on a connection
	FinalResponse        []byte // UDS bytes of the final diagnostic response

	VIN  string
	EID  string
	GID  string
}

func (c ECUConfig) withDefaults() ECUConfig {
	if c.RoutingActivationResponseCode == 0 {
		c.RoutingActivationResponseCode = doip.RoutingActivationResSuccessful
	}
	if c.FinalResponse == nil {
		c.FinalResponse = []byte{0x50, 0x01}
	}
	return c
}

// ECU is a single simulated diagnostic server, reachable over TCP.
type ECU struct {
	cfg      ECUConfig
	logger   *log.Logger
	listener net.Listener
	wg       sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewECU builds an ECU with the given configuration.
func NewECU(cfg ECUConfig, logger *log.Logger) *ECU {
	return &ECU{cfg: cfg.withDefaults(), logger: logger}
}

// Start binds a TCP listener at addr (":0" picks an ephemeral port) and
// begins accepting connections in the background. It returns the actual
// listen address.
func (e *ECU) Start(addr string) (string, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}
	e.listener = l

	e.wg.Add(1)
	go e.acceptLoop()

	return l.Addr().String(), nil
}

// Stop closes the listener and waits for all connection handlers to exit.
func (e *ECU) Stop() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	err := e.listener.Close()
	e.wg.Wait()
	return err
}

func (e *ECU) acceptLoop() {
	defer e.wg.Done()
	for {
		conn, err := e.listener.Accept()
		if err != nil {
			e.mu.Lock()
			closed := e.closed
			e.mu.Unlock()
			if closed {
				return
			}
			e.logf("simulator: accept error: %v", err)
			continue
		}
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.handleConnection(conn)
		}()
	}
}

func (e *ECU) handleConnection(conn net.Conn) {
	defer conn.Close()
	session := &ecuSession{ecu: e, conn: conn}
	session.run()
}

func (e *ECU) logf(format string, args ...interface{}) {
	if e.logger == nil {
		return
	}
	e.logger.Printf(format, args...)
}
