package client

import (
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/anodyne74/doip-diag-client/internal/config"
	"github.com/anodyne74/doip-diag-client/internal/conversation"
	"github.com/anodyne74/doip-diag-client/internal/monitor"
	"github.com/anodyne74/doip-diag-client/testing/simulator"
)

func writeConversationFile(t *testing.T, port int) string {
	t.Helper()
	file := config.ConversationFile{
		Conversation: config.ConversationSet{
			NumberOfConversion: 1,
			ConversionProperty: []config.ConversationProperty{
				{
					ConversionName:  "EcuFront",
					P2ClientMax:     200,
					P2StarClientMax: 5000,
					TxBufferSize:    4096,
					RxBufferSize:    4096,
					SourceAddress:   0x0E00,
					TargetAddress:   0x0001,
					Network: config.NetworkConfig{
						TcpIpAddress:        "127.0.0.1",
						UdpIpAddress:        "127.0.0.1",
						UdpBroadcastAddress: "127.0.0.1",
						Port:                uint16(port),
					},
				},
			},
		},
	}
	data, err := json.Marshal(file)
	if err != nil {
		t.Fatalf("marshaling conversation file: %v", err)
	}
	path := filepath.Join(t.TempDir(), "conversations.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing conversation file: %v", err)
	}
	return path
}

func TestClientInitializeConnectAndDiagnose(t *testing.T) {
	ecu := simulator.NewECU(simulator.ECUConfig{
		SourceAddress: 0x0001,
		FinalResponse: []byte{0x50, 0x01, 0x00, 0x32, 0x01, 0xF4},
	}, nil)
	addr, err := ecu.Start("127.0.0.1:0")
	if err != nil {
		t.Fatalf("starting simulated ECU: %v", err)
	}
	defer ecu.Stop()
	_, port := splitHostPort(t, addr)

	path := writeConversationFile(t, port)

	c := New(nil)
	if err := c.Initialize(path, conversation.DiscoveryConfig{
		LocalUDPIPAddress:   "127.0.0.1",
		UDPBroadcastAddress: "127.0.0.1",
		Port:                0,
	}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer c.DeInitialize()

	conv, err := c.GetDiagnosticClientConversation("EcuFront")
	if err != nil {
		t.Fatalf("GetDiagnosticClientConversation: %v", err)
	}

	connectCh := make(chan conversation.ConnectResult, 1)
	go func() { connectCh <- conv.ConnectToDiagServer(0x0001, "127.0.0.1") }()

	select {
	case got := <-connectCh:
		if got != conversation.ConnectSuccess {
			t.Fatalf("ConnectToDiagServer = %v, want ConnectSuccess", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ConnectToDiagServer did not return")
	}

	resp, res := conv.SendDiagnosticRequest([]byte{0x10, 0x01})
	if res != conversation.DiagOk {
		t.Fatalf("SendDiagnosticRequest = %v, want DiagOk", res)
	}
	want := []byte{0x50, 0x01, 0x00, 0x32, 0x01, 0xF4}
	if string(resp) != string(want) {
		t.Errorf("response = %x, want %x", resp, want)
	}

	statuses := c.ConversationStatuses()
	if len(statuses) != 1 || statuses[0].Name != "EcuFront" {
		t.Errorf("ConversationStatuses = %+v", statuses)
	}
}

type fakeExchangeRecorder struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeExchangeRecorder) RecordExchange(conversationName string, targetAddress uint16, latency time.Duration, outcome string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

func (f *fakeExchangeRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestClientFansExchangesOutToMetricsAndMonitor(t *testing.T) {
	ecu := simulator.NewECU(simulator.ECUConfig{
		SourceAddress: 0x0001,
		FinalResponse: []byte{0x50, 0x01},
	}, nil)
	addr, err := ecu.Start("127.0.0.1:0")
	if err != nil {
		t.Fatalf("starting simulated ECU: %v", err)
	}
	defer ecu.Stop()
	_, port := splitHostPort(t, addr)

	path := writeConversationFile(t, port)

	c := New(nil)
	if err := c.Initialize(path, conversation.DiscoveryConfig{}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer c.DeInitialize()

	metricsRec := &fakeExchangeRecorder{}
	c.AttachMetricsRecorder(metricsRec)

	monitorSrv := monitor.NewServer(":0", c, nil)
	c.AttachMonitorServer(monitorSrv)

	conv, err := c.GetDiagnosticClientConversation("EcuFront")
	if err != nil {
		t.Fatalf("GetDiagnosticClientConversation: %v", err)
	}

	connectCh := make(chan conversation.ConnectResult, 1)
	go func() { connectCh <- conv.ConnectToDiagServer(0x0001, "127.0.0.1") }()
	select {
	case got := <-connectCh:
		if got != conversation.ConnectSuccess {
			t.Fatalf("ConnectToDiagServer = %v, want ConnectSuccess", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ConnectToDiagServer did not return")
	}

	if _, res := conv.SendDiagnosticRequest([]byte{0x10, 0x01}); res != conversation.DiagOk {
		t.Fatalf("SendDiagnosticRequest = %v, want DiagOk", res)
	}

	if got := metricsRec.count(); got != 1 {
		t.Errorf("metrics recorder observed %d exchanges, want 1", got)
	}
}

func TestClientInitializeRejectsMissingFile(t *testing.T) {
	c := New(nil)
	err := c.Initialize(filepath.Join(t.TempDir(), "missing.json"), conversation.DiscoveryConfig{})
	if err == nil {
		t.Fatal("expected error initializing with a missing config file")
	}
}

func splitHostPort(t *testing.T, addr string) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("splitting address %q: %v", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parsing port %q: %v", portStr, err)
	}
	return host, port
}
