package simulator

import (
	"io"
	"net"
	"sync"

	"github.com/anodyne74/doip-diag-client/internal/doip"
)

// AnnouncementResponder answers Vehicle Identification requests over UDP
// with a single configured Vehicle Announcement, standing in for the
// broadcast discovery half of a real ECU.
type AnnouncementResponder struct {
	ann  doip.VehicleAnnouncement
	conn *net.UDPConn
	wg   sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewAnnouncementResponder builds a responder that announces ann.
func NewAnnouncementResponder(ann doip.VehicleAnnouncement) *AnnouncementResponder {
	return &AnnouncementResponder{ann: ann}
}

// Start binds a UDP socket at addr and begins answering requests in the
// background. It returns the actual bound address.
func (r *AnnouncementResponder) Start(addr string) (string, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return "", err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return "", err
	}
	r.conn = conn

	r.wg.Add(1)
	go r.serve()

	return conn.LocalAddr().String(), nil
}

// Stop closes the UDP socket and waits for the serve loop to exit.
func (r *AnnouncementResponder) Stop() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	err := r.conn.Close()
	r.wg.Wait()
	return err
}

func (r *AnnouncementResponder) serve() {
	defer r.wg.Done()
	buf := make([]byte, 4096)
	for {
		n, remote, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			r.mu.Lock()
			closed := r.closed
			r.mu.Unlock()
			if closed || err == io.EOF {
				return
			}
			continue
		}
		hdr, err := doip.DecodeHeader(buf[:n])
		if err != nil {
			continue
		}
		switch hdr.PayloadType {
		case doip.PayloadTypeVehicleIdentificationReq,
			doip.PayloadTypeVehicleIdentificationReqWithVIN,
			doip.PayloadTypeVehicleIdentificationReqWithEID:
			body := r.ann.Encode()
			respHdr := doip.NewHeader(doip.ProtocolVersion2019, doip.PayloadTypeVehicleAnnouncement, uint32(len(body)))
			r.conn.WriteToUDP(append(respHdr.Encode(), body...), remote)
		}
	}
}
