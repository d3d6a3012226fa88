package channel

import (
	"log"

	"github.com/anodyne74/doip-diag-client/internal/doip"
	"github.com/anodyne74/doip-diag-client/internal/transport"
)

// udpExpectedPayloadTypes is the set of payload types a UDP channel accepts
// inbound (spec §4.2 step 2).
var udpExpectedPayloadTypes = map[uint16]bool{
	doip.PayloadTypeVehicleAnnouncement: true,
}

// UDPChannel jointly owns the broadcast and unicast UDP sockets that form
// one logical DoIP UDP channel (spec §2) and the Vehicle Identification
// handler that drives discovery over them.
type UDPChannel struct {
	broadcastTransport transport.Connectionless
	unicastTransport   transport.Connectionless
	protocolVersion    byte
	logger             *log.Logger

	VehicleIdentification *VehicleIdentificationHandler
}

// NewUDPChannel constructs a channel from its two sockets. broadcastAddr is
// the destination used for outbound Vehicle Identification Requests.
func NewUDPChannel(broadcastTransport, unicastTransport transport.Connectionless, broadcastAddr string, protocolVersion byte, logger *log.Logger) *UDPChannel {
	c := &UDPChannel{
		broadcastTransport: broadcastTransport,
		unicastTransport:   unicastTransport,
		protocolVersion:    protocolVersion,
		logger:             logger,
	}
	c.VehicleIdentification = NewVehicleIdentificationHandler(broadcastTransport, broadcastAddr, protocolVersion, logger)
	return c
}

// Start installs the frame handler on the unicast socket, where per-ECU
// Vehicle Identification Responses arrive (spec §4.5 step 4).
func (c *UDPChannel) Start() {
	c.unicastTransport.SetReadHandler(c.handleFrame)
}

// Stop removes the frame handler.
func (c *UDPChannel) Stop() {
	c.unicastTransport.SetReadHandler(nil)
}

// handleFrame validates and decodes one inbound UDP datagram (assumed to
// contain exactly one complete DoIP frame, per §4.2).
func (c *UDPChannel) handleFrame(remoteAddr string, frame []byte) {
	hdr, err := doip.DecodeHeader(frame)
	if err != nil {
		logf(c.logger, "udp-channel: %v", err)
		return
	}
	payload := frame[doip.HeaderLength:]

	outcome := doip.ValidateHeader(hdr, udpExpectedPayloadTypes, doip.VehicleAnnouncementMaxLen)
	if !outcome.Ok {
		logf(c.logger, "udp-channel: header validation failed, nack 0x%02x", outcome.NackCode)
		return
	}

	switch hdr.PayloadType {
	case doip.PayloadTypeVehicleAnnouncement:
		ann, err := doip.DecodeVehicleAnnouncement(payload)
		if err != nil {
			logf(c.logger, "udp-channel: %v", err)
			return
		}
		c.VehicleIdentification.OnResponse(remoteAddr, ann)
	}
}
