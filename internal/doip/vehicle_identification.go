package doip

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Length bounds for a Vehicle Announcement / Identification Response (§4.2).
const (
	VehicleAnnouncementMinLen = 32
	VehicleAnnouncementMaxLen = 33
)

// PreselectionMode selects how a Vehicle Identification Request narrows the
// set of ECUs expected to answer (§4.5).
type PreselectionMode int

const (
	PreselectionNone PreselectionMode = iota
	PreselectionVIN
	PreselectionEID
)

// VehicleIdentificationRequest is the (possibly empty) request payload body.
type VehicleIdentificationRequest struct {
	PayloadType uint16
	Value       []byte // 17-byte VIN, 6-byte EID, or empty
}

// BuildVehicleIdentificationRequest maps a preselection mode/value pair to
// the wire payload type and body per §4.5's algorithm.
func BuildVehicleIdentificationRequest(mode PreselectionMode, value string) (VehicleIdentificationRequest, error) {
	switch mode {
	case PreselectionNone:
		return VehicleIdentificationRequest{PayloadType: PayloadTypeVehicleIdentificationReq}, nil
	case PreselectionVIN:
		if len(value) != 17 {
			return VehicleIdentificationRequest{}, fmt.Errorf("doip: VIN preselection value must be 17 ASCII characters, got %d", len(value))
		}
		return VehicleIdentificationRequest{
			PayloadType: PayloadTypeVehicleIdentificationReqWithVIN,
			Value:       []byte(value),
		}, nil
	case PreselectionEID:
		eid, err := decodeColonHex(value)
		if err != nil {
			return VehicleIdentificationRequest{}, fmt.Errorf("doip: EID preselection value: %w", err)
		}
		if len(eid) != 6 {
			return VehicleIdentificationRequest{}, fmt.Errorf("doip: EID preselection value must decode to 6 bytes, got %d", len(eid))
		}
		return VehicleIdentificationRequest{
			PayloadType: PayloadTypeVehicleIdentificationReqWithEID,
			Value:       eid,
		}, nil
	default:
		return VehicleIdentificationRequest{}, fmt.Errorf("doip: unknown preselection mode %d", mode)
	}
}

func decodeColonHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.ReplaceAll(s, ":", ""))
}

func encodeColonHex(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = hex.EncodeToString([]byte{v})
	}
	return strings.Join(parts, ":")
}

// VehicleAnnouncement is a decoded Vehicle Announcement / Identification
// Response payload body.
type VehicleAnnouncement struct {
	VIN                string
	LogicalAddress     uint16
	EID                string
	GID                string
	FurtherAction      byte
	VINGIDSyncStatus   byte
	HasVINGIDSyncStatus bool
}

// DecodeVehicleAnnouncement parses a 32- or 33-byte response body per §4.5.
func DecodeVehicleAnnouncement(payload []byte) (VehicleAnnouncement, error) {
	if len(payload) < VehicleAnnouncementMinLen || len(payload) > VehicleAnnouncementMaxLen {
		return VehicleAnnouncement{}, fmt.Errorf("doip: vehicle announcement wrong length: %d bytes", len(payload))
	}
	ann := VehicleAnnouncement{
		VIN:            strings.TrimRight(string(payload[0:17]), "\x00"),
		LogicalAddress: uint16(payload[17])<<8 | uint16(payload[18]),
		EID:            encodeColonHex(payload[19:25]),
		GID:            encodeColonHex(payload[25:31]),
		FurtherAction:  payload[31],
	}
	if len(payload) == VehicleAnnouncementMaxLen {
		ann.VINGIDSyncStatus = payload[32]
		ann.HasVINGIDSyncStatus = true
	}
	return ann, nil
}

// Encode serializes a Vehicle Announcement body, used by the in-process ECU
// simulator to answer identification requests in tests.
func (a VehicleAnnouncement) Encode() []byte {
	buf := make([]byte, VehicleAnnouncementMinLen)
	vin := a.VIN
	if len(vin) > 17 {
		vin = vin[:17]
	}
	copy(buf[0:17], vin)
	buf[17] = byte(a.LogicalAddress >> 8)
	buf[18] = byte(a.LogicalAddress)
	eid, _ := decodeColonHex(a.EID)
	copy(buf[19:25], eid)
	gid, _ := decodeColonHex(a.GID)
	copy(buf[25:31], gid)
	buf[31] = a.FurtherAction
	if a.HasVINGIDSyncStatus {
		buf = append(buf, a.VINGIDSyncStatus)
	}
	return buf
}
