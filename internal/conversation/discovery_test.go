package conversation

import (
	"testing"

	"github.com/anodyne74/doip-diag-client/internal/channel"
	"github.com/anodyne74/doip-diag-client/internal/doip"
)

// TestDiscoveryConversationRejectsRequestBeforeStartup exercises the
// construction path without binding real sockets, since Startup opens UDP
// sockets on the local network stack. It only confirms the
// conversation-level gating (must be Active before sending); collecting
// announcements is not covered here.
func TestDiscoveryConversationRejectsRequestBeforeStartup(t *testing.T) {
	d := NewDiscoveryConversation(DiscoveryConfig{
		LocalUDPIPAddress:   "127.0.0.1",
		UDPBroadcastAddress: "127.0.0.1",
		Port:                0,
	}, nil)

	result, responses := d.SendVehicleIdentificationRequest(doip.PreselectionNone, "")
	if result != channel.TransmissionFailed {
		t.Errorf("SendVehicleIdentificationRequest before Startup = %v, want TransmissionFailed", result)
	}
	if responses != nil {
		t.Errorf("expected no responses, got %v", responses)
	}
}

func TestDiscoveryConversationStartupShutdown(t *testing.T) {
	d := NewDiscoveryConversation(DiscoveryConfig{
		LocalUDPIPAddress:   "127.0.0.1",
		UDPBroadcastAddress: "127.0.0.1",
		Port:                0,
	}, nil)

	if err := d.Startup(); err != nil {
		t.Fatalf("Startup: %v", err)
	}
	if err := d.Startup(); err == nil {
		t.Error("expected error starting up an already-active discovery conversation")
	}
	if err := d.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := d.Shutdown(); err == nil {
		t.Error("expected error shutting down an already-inactive discovery conversation")
	}
}
