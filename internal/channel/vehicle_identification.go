package channel

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/anodyne74/doip-diag-client/internal/doip"
	"github.com/anodyne74/doip-diag-client/internal/synctimer"
	"github.com/anodyne74/doip-diag-client/internal/transport"
)

// VehicleIdentificationCollectionWindow is T_DoIP_Ctrl (spec §4.5).
const VehicleIdentificationCollectionWindow = 2000 * time.Millisecond

// VehicleIdentificationState is the handler's runtime state (spec §3).
type VehicleIdentificationState string

const (
	VehicleIdentificationIdle            VehicleIdentificationState = "Idle"
	VehicleIdentificationWaitForResponse VehicleIdentificationState = "WaitForResponse"
	VehicleIdentificationTimeout         VehicleIdentificationState = "Timeout"
)

// VehicleIdentificationHandler implements spec §4.5: it transmits a
// discovery request on the broadcast socket and collects the asynchronous
// unicast replies that arrive within the collection window.
type VehicleIdentificationHandler struct {
	broadcast       transport.Connectionless
	broadcastAddr   string
	protocolVersion byte
	logger          *log.Logger

	mu        sync.Mutex
	state     VehicleIdentificationState
	timer     *synctimer.Timer
	responses map[uint16]VehicleResponse
	doneCh    chan struct{}
}

// NewVehicleIdentificationHandler constructs a handler that transmits on
// broadcast (bound to broadcastAddr, typically "255.255.255.255:13400" or
// the configured subnet broadcast) and expects unicast replies to be
// delivered via OnResponse from the channel's unicast receive worker.
func NewVehicleIdentificationHandler(broadcast transport.Connectionless, broadcastAddr string, protocolVersion byte, logger *log.Logger) *VehicleIdentificationHandler {
	return &VehicleIdentificationHandler{
		broadcast:       broadcast,
		broadcastAddr:   broadcastAddr,
		protocolVersion: protocolVersion,
		logger:          logger,
		state:           VehicleIdentificationIdle,
	}
}

// SendRequest implements the algorithm of spec §4.5. Blocking for the
// duration of the collection window (or immediately on a transmit failure
// or invalid parameters).
func (h *VehicleIdentificationHandler) SendRequest(mode doip.PreselectionMode, value string) (TransmissionResult, []VehicleResponse) {
	req, err := doip.BuildVehicleIdentificationRequest(mode, value)
	if err != nil {
		logf(h.logger, "vehicle-identification: %v", err)
		return TransmissionInvalidParams, nil
	}

	h.mu.Lock()
	if h.state != VehicleIdentificationIdle {
		h.mu.Unlock()
		return TransmissionBusy, nil
	}
	h.state = VehicleIdentificationWaitForResponse
	h.responses = make(map[uint16]VehicleResponse)
	doneCh := make(chan struct{})
	h.doneCh = doneCh
	h.mu.Unlock()

	hdr := doip.NewHeader(h.protocolVersion, req.PayloadType, uint32(len(req.Value)))
	frame := append(hdr.Encode(), req.Value...)

	if h.broadcast.Transmit(h.broadcastAddr, frame) != transport.TransmitOk {
		h.mu.Lock()
		h.state = VehicleIdentificationIdle
		h.doneCh = nil
		h.mu.Unlock()
		return TransmissionFailed, nil
	}

	timer := synctimer.Start(VehicleIdentificationCollectionWindow, func() { h.onTimeout(doneCh) })
	h.mu.Lock()
	h.timer = timer
	h.mu.Unlock()

	<-doneCh

	h.mu.Lock()
	responses := collectSorted(h.responses)
	h.state = VehicleIdentificationIdle
	h.mu.Unlock()

	if len(responses) == 0 {
		return TransmissionNoResponse, nil
	}
	return TransmissionOk, responses
}

func collectSorted(m map[uint16]VehicleResponse) []VehicleResponse {
	out := make([]VehicleResponse, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Announcement.LogicalAddress < out[j].Announcement.LogicalAddress
	})
	return out
}

func (h *VehicleIdentificationHandler) onTimeout(doneCh chan struct{}) {
	h.mu.Lock()
	if h.state != VehicleIdentificationWaitForResponse {
		h.mu.Unlock()
		return
	}
	h.state = VehicleIdentificationTimeout
	h.mu.Unlock()
	close(doneCh)
}

// OnResponse is called by the UDP channel's unicast receive worker for
// every inbound Vehicle Announcement. Responses are keyed by logical
// address; duplicates replace the earlier entry (spec §4.5 step 4).
func (h *VehicleIdentificationHandler) OnResponse(sourceIP string, ann doip.VehicleAnnouncement) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != VehicleIdentificationWaitForResponse || h.responses == nil {
		return
	}
	h.responses[ann.LogicalAddress] = VehicleResponse{Announcement: ann, SourceIP: sourceIP}
}
