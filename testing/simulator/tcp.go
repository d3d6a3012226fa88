package simulator

import (
	"encoding/binary"
	"io"
	"net"

	"github.com/anodyne74/doip-diag-client/internal/doip"
)

// ecuSession drives one accepted TCP connection: it reads complete DoIP
// frames and answers Routing Activation and Diagnostic Message requests
// per the owning ECU's configuration.
type ecuSession struct {
	ecu  *ECU
	conn net.Conn

	activated    bool
	testerAddr   uint16
	pendingSent  int
}

func (s *ecuSession) run() {
	for {
		hdrBuf := make([]byte, doip.HeaderLength)
		if _, err := io.ReadFull(s.conn, hdrBuf); err != nil {
			return
		}
		hdr, err := doip.DecodeHeader(hdrBuf)
		if err != nil {
			return
		}
		payload := make([]byte, hdr.PayloadLength)
		if hdr.PayloadLength > 0 {
			if _, err := io.ReadFull(s.conn, payload); err != nil {
				return
			}
		}

		switch hdr.PayloadType {
		case doip.PayloadTypeRoutingActivationReq:
			s.handleRoutingActivation(hdr, payload)
		case doip.PayloadTypeDiagMessage:
			s.handleDiagnosticMessage(hdr, payload)
		default:
			s.ecu.logf("simulator: ignoring unsupported payload type 0x%04x", hdr.PayloadType)
		}
	}
}

func (s *ecuSession) handleRoutingActivation(hdr doip.Header, payload []byte) {
	if len(payload) < 3 {
		return
	}
	s.testerAddr = binary.BigEndian.Uint16(payload[0:2])

	code := s.ecu.cfg.RoutingActivationResponseCode
	if code == doip.RoutingActivationResSuccessful {
		s.activated = true
	}

	res := doip.RoutingActivationResponse{
		SourceAddress:  s.testerAddr,
		LogicalAddress: s.ecu.cfg.SourceAddress,
		ResponseCode:   code,
	}
	s.send(doip.PayloadTypeRoutingActivationRes, res.Encode())
}

func (s *ecuSession) handleDiagnosticMessage(hdr doip.Header, payload []byte) {
	msg, err := doip.DecodeDiagnosticMessage(payload)
	if err != nil {
		return
	}

	ackCode := doip.DiagMessageAckCodeConfirm
	if !s.activated {
		ackCode = doip.DiagMessageNackInvalidSA
	}
	ack := doip.DiagnosticMessageAck{
		SourceAddress: s.ecu.cfg.SourceAddress,
		TargetAddress: msg.SourceAddress,
		Code:          ackCode,
	}
	if !s.activated {
		s.send(doip.PayloadTypeDiagMessageNegAck, ack.Encode())
		return
	}
	s.send(doip.PayloadTypeDiagMessagePosAck, ack.Encode())

	for s.pendingSent < s.ecu.cfg.PendingResponseCount {
		s.pendingSent++
		pending := doip.DiagnosticMessage{
			SourceAddress: s.ecu.cfg.SourceAddress,
			TargetAddress: msg.SourceAddress,
			UDSData:       []byte{0x7F, msg.UDSData[0], doip.PendingResponseNRC},
		}
		s.send(doip.PayloadTypeDiagMessage, pending.Encode())
	}

	final := doip.DiagnosticMessage{
		SourceAddress: s.ecu.cfg.SourceAddress,
		TargetAddress: msg.SourceAddress,
		UDSData:       s.ecu.cfg.FinalResponse,
	}
	s.send(doip.PayloadTypeDiagMessage, final.Encode())
}

func (s *ecuSession) send(payloadType uint16, body []byte) {
	hdr := doip.NewHeader(doip.ProtocolVersion2019, payloadType, uint32(len(body)))
	frame := append(hdr.Encode(), body...)
	s.conn.Write(frame)
}
