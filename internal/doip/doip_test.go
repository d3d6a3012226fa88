package doip

import (
	"bytes"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := NewHeader(ProtocolVersion2012, PayloadTypeDiagMessage, 6)
	decoded, err := DecodeHeader(h.Encode())
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if decoded != h {
		t.Errorf("round trip mismatch: got %+v, want %+v", decoded, h)
	}
}

func TestSyncPatternRejectsMismatch(t *testing.T) {
	h := Header{ProtocolVersion: 0x02, InverseProtocolVersion: 0x02, PayloadType: PayloadTypeDiagMessage}
	if h.SyncPatternOk() {
		t.Error("expected SyncPatternOk to reject protocol_version + inverse_protocol_version != 0xFF")
	}
}

func TestSyncPatternAcceptsKnownVersions(t *testing.T) {
	for _, v := range []byte{ProtocolVersion2012, ProtocolVersion2019, ProtocolVersionDef} {
		h := NewHeader(v, PayloadTypeDiagMessage, 0)
		if !h.SyncPatternOk() {
			t.Errorf("expected version 0x%02x to be accepted", v)
		}
	}
}

func TestValidateHeaderIncorrectPattern(t *testing.T) {
	h := Header{ProtocolVersion: 0x02, InverseProtocolVersion: 0x02, PayloadType: PayloadTypeDiagMessage}
	out := ValidateHeader(h, map[uint16]bool{PayloadTypeDiagMessage: true}, 4096)
	if out.Ok || out.NackCode != NackIncorrectPattern || !out.CloseChannel {
		t.Errorf("got %+v, want incorrect-pattern NACK with channel close", out)
	}
}

func TestValidateHeaderUnknownPayload(t *testing.T) {
	h := NewHeader(ProtocolVersion2012, PayloadTypeAliveCheckReq, 0)
	out := ValidateHeader(h, map[uint16]bool{PayloadTypeDiagMessage: true}, 4096)
	if out.Ok || out.NackCode != NackUnknownPayload {
		t.Errorf("got %+v, want unknown-payload NACK", out)
	}
}

func TestValidateHeaderRxBufferBoundary(t *testing.T) {
	expect := map[uint16]bool{PayloadTypeDiagMessage: true}

	atLimit := NewHeader(ProtocolVersion2012, PayloadTypeDiagMessage, 64)
	if out := ValidateHeader(atLimit, expect, 64); !out.Ok {
		t.Errorf("payload_length == rx_buffer_size should be accepted, got %+v", out)
	}

	overLimit := NewHeader(ProtocolVersion2012, PayloadTypeDiagMessage, 65)
	if out := ValidateHeader(overLimit, expect, 64); out.Ok || out.NackCode != NackOutOfMemory {
		t.Errorf("payload_length == rx_buffer_size+1 should NACK 0x03, got %+v", out)
	}
}

func TestValidateHeaderDiagMessageLengthBoundary(t *testing.T) {
	expect := map[uint16]bool{PayloadTypeDiagMessage: true}

	ok := NewHeader(ProtocolVersion2012, PayloadTypeDiagMessage, 5)
	if out := ValidateHeader(ok, expect, 4096); !out.Ok {
		t.Errorf("5-byte diagnostic message (SA+TA+1 SID byte) should be accepted, got %+v", out)
	}

	short := NewHeader(ProtocolVersion2012, PayloadTypeDiagMessage, 4)
	if out := ValidateHeader(short, expect, 4096); out.Ok || out.NackCode != NackInvalidPayloadLen {
		t.Errorf("4-byte diagnostic message should be rejected, got %+v", out)
	}
}

func TestRoutingActivationRequestEncode(t *testing.T) {
	req := RoutingActivationRequest{SourceAddress: 0x0E00, ActivationType: ActivationTypeDefault}
	enc := req.Encode()
	if len(enc) != 7 {
		t.Fatalf("expected 7-byte request, got %d", len(enc))
	}
	if !bytes.Equal(enc[0:2], []byte{0x0E, 0x00}) {
		t.Errorf("source address not encoded correctly: %x", enc[0:2])
	}
	if enc[2] != ActivationTypeDefault {
		t.Errorf("activation type not encoded correctly: %x", enc[2])
	}
}

func TestRoutingActivationResponseRoundTrip(t *testing.T) {
	res := RoutingActivationResponse{SourceAddress: 0x0E00, LogicalAddress: 0x0001, ResponseCode: RoutingActivationResSuccessful}
	decoded, err := DecodeRoutingActivationResponse(res.Encode())
	if err != nil {
		t.Fatalf("DecodeRoutingActivationResponse: %v", err)
	}
	if decoded.SourceAddress != res.SourceAddress || decoded.LogicalAddress != res.LogicalAddress || decoded.ResponseCode != res.ResponseCode {
		t.Errorf("round trip mismatch: got %+v, want %+v", decoded, res)
	}
}

func TestDiagnosticMessageRoundTripUsesRealTargetAddress(t *testing.T) {
	msg := DiagnosticMessage{SourceAddress: 0x0E00, TargetAddress: 0x0001, UDSData: []byte{0x10, 0x01}}
	enc := msg.Encode()
	decoded, err := DecodeDiagnosticMessage(enc)
	if err != nil {
		t.Fatalf("DecodeDiagnosticMessage: %v", err)
	}
	if decoded.TargetAddress != msg.TargetAddress {
		t.Errorf("target address corrupted: got 0x%04x, want 0x%04x", decoded.TargetAddress, msg.TargetAddress)
	}
	if decoded.TargetAddress == decoded.SourceAddress {
		t.Error("target address must not collapse into source address")
	}
}

func TestIsPendingResponse(t *testing.T) {
	if !IsPendingResponse([]byte{0x7F, 0x10, 0x78}) {
		t.Error("expected 0x7F/SID/0x78 to be recognized as pending")
	}
	if IsPendingResponse([]byte{0x50, 0x01, 0x00}) {
		t.Error("positive response must not be recognized as pending")
	}
}

func TestDiagnosticMessageAckRoundTrip(t *testing.T) {
	ack := DiagnosticMessageAck{SourceAddress: 0x0E00, TargetAddress: 0x0001, Code: DiagMessageAckCodeConfirm}
	decoded, err := DecodeDiagnosticMessageAck(ack.Encode())
	if err != nil {
		t.Fatalf("DecodeDiagnosticMessageAck: %v", err)
	}
	if decoded.SourceAddress != ack.SourceAddress || decoded.TargetAddress != ack.TargetAddress || decoded.Code != ack.Code {
		t.Errorf("round trip mismatch: got %+v, want %+v", decoded, ack)
	}
}

func TestBuildVehicleIdentificationRequestModes(t *testing.T) {
	req, err := BuildVehicleIdentificationRequest(PreselectionNone, "")
	if err != nil || req.PayloadType != PayloadTypeVehicleIdentificationReq {
		t.Fatalf("mode 0: got %+v, err %v", req, err)
	}

	req, err = BuildVehicleIdentificationRequest(PreselectionVIN, "WAUZZZ8K79A123456")
	if err != nil || req.PayloadType != PayloadTypeVehicleIdentificationReqWithVIN || len(req.Value) != 17 {
		t.Fatalf("mode 1: got %+v, err %v", req, err)
	}

	req, err = BuildVehicleIdentificationRequest(PreselectionEID, "00:02:36:31:00:1c")
	if err != nil || req.PayloadType != PayloadTypeVehicleIdentificationReqWithEID || len(req.Value) != 6 {
		t.Fatalf("mode 2: got %+v, err %v", req, err)
	}
}

func TestVehicleAnnouncementRoundTrip(t *testing.T) {
	ann := VehicleAnnouncement{
		VIN:            "WAUZZZ8K79A123456",
		LogicalAddress: 0x0E01,
		EID:            "00:02:36:31:00:1c",
		GID:            "00:02:36:31:00:1d",
		FurtherAction:  0x00,
	}
	decoded, err := DecodeVehicleAnnouncement(ann.Encode())
	if err != nil {
		t.Fatalf("DecodeVehicleAnnouncement: %v", err)
	}
	if decoded.LogicalAddress != ann.LogicalAddress || decoded.EID != ann.EID || decoded.GID != ann.GID {
		t.Errorf("round trip mismatch: got %+v, want %+v", decoded, ann)
	}
}
