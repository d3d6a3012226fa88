// Package client implements the Diagnostic Client facade of spec §4.7: the
// top-level object an application constructs, which owns the vehicle
// discovery conversation and the set of per-ECU conversations loaded from
// configuration. Placed at the module root rather than under internal/,
// mirroring the teacher's placement of its vehicle package at the
// repository root alongside internal/.
package client

import (
	"crypto/tls"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/anodyne74/doip-diag-client/internal/capture"
	"github.com/anodyne74/doip-diag-client/internal/channel"
	"github.com/anodyne74/doip-diag-client/internal/config"
	"github.com/anodyne74/doip-diag-client/internal/conversation"
	"github.com/anodyne74/doip-diag-client/internal/doip"
	"github.com/anodyne74/doip-diag-client/internal/monitor"
	"github.com/anodyne74/doip-diag-client/internal/transport"
)

// exchangeFanout lets more than one ExchangeRecorder observe the same
// conversation's completed exchanges (spec §9's narrow-interface design
// means a Conversation only ever talks to one ExchangeRecorder, so the
// client fans the notification back out to whichever of metrics/monitor
// are currently attached).
type exchangeFanout struct {
	mu        sync.Mutex
	recorders []conversation.ExchangeRecorder
}

func (f *exchangeFanout) add(rec conversation.ExchangeRecorder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorders = append(f.recorders, rec)
}

func (f *exchangeFanout) RecordExchange(conversationName string, targetAddress uint16, latency time.Duration, outcome string) error {
	f.mu.Lock()
	recorders := append([]conversation.ExchangeRecorder(nil), f.recorders...)
	f.mu.Unlock()

	var firstErr error
	for _, rec := range recorders {
		if err := rec.RecordExchange(conversationName, targetAddress, latency, outcome); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// monitorExchangeRecorder adapts a monitor.Server into a
// conversation.ExchangeRecorder so completed exchanges reach its live
// WebSocket feed the same way they reach internal/metrics.
type monitorExchangeRecorder struct {
	srv *monitor.Server
}

func (m monitorExchangeRecorder) RecordExchange(conversationName string, targetAddress uint16, latency time.Duration, outcome string) error {
	m.srv.BroadcastExchange(monitor.ExchangeEvent{
		Conversation: conversationName,
		Outcome:      outcome,
		LatencyMs:    float64(latency.Microseconds()) / 1000.0,
	})
	return nil
}

// Client is the Diagnostic Client facade (spec §4.7): Initialize loads the
// conversation set from a configuration file and starts each one;
// DeInitialize tears all of them down.
type Client struct {
	logger *log.Logger

	mu             sync.Mutex
	initialized    bool
	discovery      *conversation.DiscoveryConversation
	conversations  map[string]*conversation.Conversation
	exchangeFanout map[string]*exchangeFanout
}

// New constructs an uninitialized Client.
func New(logger *log.Logger) *Client {
	return &Client{
		logger:        logger,
		conversations: make(map[string]*conversation.Conversation),
	}
}

// Initialize loads the conversation configuration file at path, builds one
// Conversation per entry plus the single discovery conversation, and
// starts all of them (spec §4.7).
func (c *Client) Initialize(path string, discovery conversation.DiscoveryConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		return fmt.Errorf("client: already initialized")
	}

	file, err := config.LoadConversationFile(path)
	if err != nil {
		return fmt.Errorf("client: loading conversation config: %w", err)
	}

	conversations := make(map[string]*conversation.Conversation, len(file.Conversation.ConversionProperty))
	fanouts := make(map[string]*exchangeFanout, len(file.Conversation.ConversionProperty))
	for _, entry := range file.Conversation.ConversionProperty {
		conv, err := conversation.New(toConversationConfig(entry), c.logger)
		if err != nil {
			return fmt.Errorf("client: building conversation %q: %w", entry.ConversionName, err)
		}
		if err := conv.Startup(); err != nil {
			return fmt.Errorf("client: starting conversation %q: %w", entry.ConversionName, err)
		}
		fanout := &exchangeFanout{}
		conv.Metrics = fanout
		conversations[entry.ConversionName] = conv
		fanouts[entry.ConversionName] = fanout
	}

	disc := conversation.NewDiscoveryConversation(discovery, c.logger)
	if err := disc.Startup(); err != nil {
		for _, conv := range conversations {
			conv.Shutdown()
		}
		return fmt.Errorf("client: starting discovery conversation: %w", err)
	}

	c.conversations = conversations
	c.exchangeFanout = fanouts
	c.discovery = disc
	c.initialized = true
	return nil
}

// DeInitialize shuts every conversation down, including discovery. It is
// safe to call on an already-deinitialized client.
func (c *Client) DeInitialize() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return nil
	}

	var firstErr error
	for name, conv := range c.conversations {
		if err := conv.Shutdown(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("client: shutting down conversation %q: %w", name, err)
		}
	}
	if err := c.discovery.Shutdown(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("client: shutting down discovery conversation: %w", err)
	}

	c.conversations = make(map[string]*conversation.Conversation)
	c.exchangeFanout = make(map[string]*exchangeFanout)
	c.discovery = nil
	c.initialized = false
	return firstErr
}

// GetDiagnosticClientConversation looks a conversation up by its
// configured name (spec §4.7).
func (c *Client) GetDiagnosticClientConversation(name string) (*conversation.Conversation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conv, ok := c.conversations[name]
	if !ok {
		return nil, fmt.Errorf("client: no conversation named %q", name)
	}
	return conv, nil
}

// AttachMetricsRecorder wires rec into every currently-loaded conversation,
// so each completed diagnostic exchange reports its latency and outcome. If
// rec also implements conversation.ActivationRecorder (as
// internal/metrics.Recorder does), completed Routing Activation attempts
// are reported too.
func (c *Client) AttachMetricsRecorder(rec conversation.ExchangeRecorder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, fanout := range c.exchangeFanout {
		fanout.add(rec)
		if ar, ok := rec.(conversation.ActivationRecorder); ok {
			if conv, exists := c.conversations[name]; exists {
				conv.ActivationMetrics = ar
			}
		}
	}
}

// AttachMonitorServer wires srv into every currently-loaded conversation,
// so its live WebSocket feed shows each completed diagnostic exchange
// alongside the on-demand conversation statuses ConversationStatuses already
// reports.
func (c *Client) AttachMonitorServer(srv *monitor.Server) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, fanout := range c.exchangeFanout {
		fanout.add(monitorExchangeRecorder{srv: srv})
	}
}

// AttachCaptureStore opens one capture.Recorder per conversation against
// store and starts it, so every frame crossing each conversation's wire is
// persisted.
func (c *Client) AttachCaptureStore(store *capture.Store) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, conv := range c.conversations {
		rec := capture.NewRecorder(store, name)
		if err := rec.Start(); err != nil {
			return fmt.Errorf("client: starting capture for %q: %w", name, err)
		}
		conv.Capture = rec
	}
	return nil
}

// SendVehicleIdentificationRequest forwards to the discovery conversation
// (spec §4.5/§9: discovery is never performed on a per-ECU conversation).
func (c *Client) SendVehicleIdentificationRequest(mode doip.PreselectionMode, value string) (channel.TransmissionResult, []channel.VehicleResponse) {
	c.mu.Lock()
	disc := c.discovery
	c.mu.Unlock()
	if disc == nil {
		return channel.TransmissionFailed, nil
	}
	return disc.SendVehicleIdentificationRequest(mode, value)
}

// ConversationStatuses implements monitor.StatusProvider.
func (c *Client) ConversationStatuses() []monitor.ConversationStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	statuses := make([]monitor.ConversationStatus, 0, len(c.conversations))
	for name, conv := range c.conversations {
		activity, connStatus := conv.Status()
		statuses = append(statuses, monitor.ConversationStatus{
			Name:       name,
			Activity:   string(activity),
			Connection: string(connStatus),
		})
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}

func toConversationConfig(entry config.ConversationProperty) conversation.Config {
	cfg := conversation.Config{
		Name:                entry.ConversionName,
		SourceAddress:       entry.SourceAddress,
		TargetAddress:       entry.TargetAddress,
		TxBufferSize:        entry.TxBufferSize,
		RxBufferSize:        entry.RxBufferSize,
		P2ClientMaxMs:       entry.P2ClientMax,
		P2StarClientMaxMs:   entry.P2StarClientMax,
		LocalTCPIPAddress:   entry.Network.TcpIpAddress,
		LocalUDPIPAddress:   entry.Network.UdpIpAddress,
		UDPBroadcastAddress: entry.Network.UdpBroadcastAddress,
		Port:                int(entry.Network.Port),
	}
	if entry.Tls != nil {
		cfg.TLS = toTransportTLSConfig(*entry.Tls)
	}
	return cfg
}

func toTransportTLSConfig(t config.TLSConfig) *transport.TLSConfig {
	return &transport.TLSConfig{
		Enabled:           true,
		CACertificatePath: t.CaCertificatePath,
		CipherList:        t.CipherList,
		MinVersion:        tlsVersionFromString(t.Version),
	}
}

func tlsVersionFromString(version string) uint16 {
	switch version {
	case "1.0":
		return tls.VersionTLS10
	case "1.1":
		return tls.VersionTLS11
	case "1.2":
		return tls.VersionTLS12
	case "1.3":
		return tls.VersionTLS13
	default:
		return tls.VersionTLS12
	}
}
