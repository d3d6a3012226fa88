package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

func TestLoadConversationFile(t *testing.T) {
	path := writeTemp(t, "conversations.json", `{
		"Conversation": {
			"NumberOfConversion": 1,
			"ConversionProperty": [
				{
					"ConversionName": "EcuFront",
					"p2ClientMax": 200,
					"p2StarClientMax": 5000,
					"TxBufferSize": 4096,
					"RxBufferSize": 4096,
					"SourceAddress": 3584,
					"TargetAddress": 1,
					"Network": {
						"TcpIpAddress": "0.0.0.0",
						"UdpIpAddress": "0.0.0.0",
						"UdpBroadcastAddress": "255.255.255.255",
						"Port": 13400
					}
				}
			]
		}
	}`)

	file, err := LoadConversationFile(path)
	if err != nil {
		t.Fatalf("LoadConversationFile: %v", err)
	}
	if got := len(file.Conversation.ConversionProperty); got != 1 {
		t.Fatalf("got %d conversation entries, want 1", got)
	}
	entry := file.Conversation.ConversionProperty[0]
	if entry.ConversionName != "EcuFront" {
		t.Errorf("ConversionName = %q, want EcuFront", entry.ConversionName)
	}
	if entry.Network.Port != 13400 {
		t.Errorf("Network.Port = %d, want 13400", entry.Network.Port)
	}
}

func TestLoadConversationFileCountMismatch(t *testing.T) {
	path := writeTemp(t, "conversations.json", `{
		"Conversation": {
			"NumberOfConversion": 2,
			"ConversionProperty": [
				{"ConversionName": "EcuFront"}
			]
		}
	}`)

	if _, err := LoadConversationFile(path); err == nil {
		t.Fatal("expected error on NumberOfConversion mismatch")
	}
}

func TestLoadConversationFileMissingName(t *testing.T) {
	path := writeTemp(t, "conversations.json", `{
		"Conversation": {
			"NumberOfConversion": 1,
			"ConversionProperty": [
				{"SourceAddress": 3584}
			]
		}
	}`)

	if _, err := LoadConversationFile(path); err == nil {
		t.Fatal("expected error on missing ConversionName")
	}
}

func TestLoadConversationFileMissing(t *testing.T) {
	if _, err := LoadConversationFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error reading a missing file")
	}
}

func TestLoadToolConfig(t *testing.T) {
	path := writeTemp(t, "tool.yaml", `
log:
  level: debug
conversationConfigPath: ./conversations.json
discovery:
  localUdpIpAddress: 0.0.0.0
  udpBroadcastAddress: 255.255.255.255
  port: 13400
monitor:
  enabled: true
  bindAddress: ":8080"
capture:
  enabled: true
  databasePath: ./captures.db
metrics:
  enabled: false
  influxUrl: http://localhost:8086
  influxOrg: diag
  influxBucket: doip
  influxToken: secret
`)

	cfg, err := LoadToolConfig(path)
	if err != nil {
		t.Fatalf("LoadToolConfig: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Discovery.LocalUDPIPAddress != "0.0.0.0" || cfg.Discovery.UDPBroadcastAddress != "255.255.255.255" || cfg.Discovery.Port != 13400 {
		t.Errorf("Discovery = %+v, want local 0.0.0.0 / broadcast 255.255.255.255 / port 13400", cfg.Discovery)
	}
	if !cfg.Monitor.Enabled || cfg.Monitor.BindAddress != ":8080" {
		t.Errorf("Monitor = %+v, want enabled on :8080", cfg.Monitor)
	}
	if !cfg.Capture.Enabled || cfg.Capture.DatabasePath != "./captures.db" {
		t.Errorf("Capture = %+v", cfg.Capture)
	}
	if cfg.Metrics.Enabled {
		t.Errorf("Metrics.Enabled = true, want false")
	}
}

func TestLoadToolConfigMissing(t *testing.T) {
	if _, err := LoadToolConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error reading a missing file")
	}
}
