package conversation

import (
	"fmt"
	"log"
	"net"
	"sync"

	"github.com/anodyne74/doip-diag-client/internal/channel"
	"github.com/anodyne74/doip-diag-client/internal/doip"
	"github.com/anodyne74/doip-diag-client/internal/transport"
)

// DiscoveryConfig bundles the parameters the single vehicle-discovery
// conversation needs: a local UDP address to receive unicast announcements
// on and the broadcast destination to transmit requests to (spec §4.5).
type DiscoveryConfig struct {
	LocalUDPIPAddress   string
	UDPBroadcastAddress string
	Port                int
	ProtocolVersion     byte
}

// DiscoveryConversation is the single vehicle-discovery conversation the
// Diagnostic Client owns (spec §9: SendVehicleIdentificationRequest is
// defined only here, never on a regular per-ECU conversation).
type DiscoveryConversation struct {
	cfg    DiscoveryConfig
	logger *log.Logger

	broadcastTransport *transport.UDPTransport
	unicastTransport   *transport.UDPTransport
	channel            *channel.UDPChannel

	mu       sync.Mutex
	activity ActivityStatus
}

// NewDiscoveryConversation constructs the discovery conversation. It is not
// started until Startup is called.
func NewDiscoveryConversation(cfg DiscoveryConfig, logger *log.Logger) *DiscoveryConversation {
	if cfg.ProtocolVersion == 0 {
		cfg.ProtocolVersion = doip.ProtocolVersion2019
	}
	port := cfg.Port
	if port == 0 {
		port = transport.DefaultUDPPort
	}
	broadcastTransport := transport.NewUDPTransport(fmt.Sprintf("%s:%d", cfg.LocalUDPIPAddress, port), logger)
	unicastTransport := transport.NewUDPTransport(fmt.Sprintf("%s:0", cfg.LocalUDPIPAddress), logger)
	broadcastAddr := net.JoinHostPort(cfg.UDPBroadcastAddress, fmt.Sprintf("%d", port))

	d := &DiscoveryConversation{
		cfg:                cfg,
		logger:             logger,
		broadcastTransport: broadcastTransport,
		unicastTransport:   unicastTransport,
		activity:           Inactive,
	}
	d.channel = channel.NewUDPChannel(broadcastTransport, unicastTransport, broadcastAddr, cfg.ProtocolVersion, logger)
	return d
}

// Startup opens both UDP sockets, enables broadcast on the transmit socket,
// and starts the channel's unicast receive worker.
func (d *DiscoveryConversation) Startup() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.activity == Active {
		return fmt.Errorf("vehicle-discovery: startup called while already active")
	}
	if err := d.broadcastTransport.Initialize(); err != nil {
		return fmt.Errorf("vehicle-discovery: initializing broadcast socket: %w", err)
	}
	if err := d.broadcastTransport.EnableBroadcast(); err != nil {
		return fmt.Errorf("vehicle-discovery: enabling broadcast: %w", err)
	}
	if err := d.unicastTransport.Initialize(); err != nil {
		return fmt.Errorf("vehicle-discovery: initializing unicast socket: %w", err)
	}
	d.channel.Start()
	d.activity = Active
	return nil
}

// Shutdown closes both UDP sockets.
func (d *DiscoveryConversation) Shutdown() error {
	d.mu.Lock()
	if d.activity != Active {
		d.mu.Unlock()
		return fmt.Errorf("vehicle-discovery: shutdown called while not active")
	}
	d.mu.Unlock()

	d.channel.Stop()
	err1 := d.broadcastTransport.DeInitialize()
	err2 := d.unicastTransport.DeInitialize()

	d.mu.Lock()
	d.activity = Inactive
	d.mu.Unlock()

	if err1 != nil {
		return fmt.Errorf("vehicle-discovery: de-initializing broadcast socket: %w", err1)
	}
	if err2 != nil {
		return fmt.Errorf("vehicle-discovery: de-initializing unicast socket: %w", err2)
	}
	return nil
}

// SendVehicleIdentificationRequest implements spec §4.5: blocking for the
// ~2s collection window, returning every distinct Vehicle Announcement
// received, sorted by logical address.
func (d *DiscoveryConversation) SendVehicleIdentificationRequest(mode doip.PreselectionMode, value string) (channel.TransmissionResult, []channel.VehicleResponse) {
	d.mu.Lock()
	active := d.activity == Active
	d.mu.Unlock()
	if !active {
		return channel.TransmissionFailed, nil
	}
	return d.channel.VehicleIdentification.SendRequest(mode, value)
}
