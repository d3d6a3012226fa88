// Package config loads the two configuration documents this repository
// consumes: the DoIP conversation set (JSON, spec §6) and the CLI/monitor
// tool's own settings (YAML, mirroring the teacher repo's
// internal/config.LoadConfig).
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TLSConfig is the optional TLS section of a conversation entry. Its
// contents are opaque to the core (spec §1): only the DoIP client surfaces
// them, unchanged, to internal/transport.
type TLSConfig struct {
	Version           string   `json:"Version"`
	CipherList        []string `json:"CipherList"`
	CaCertificatePath string   `json:"CaCertificatePath"`
}

// NetworkConfig is the Network sub-object of a conversation entry (spec §6).
type NetworkConfig struct {
	TcpIpAddress        string `json:"TcpIpAddress"`
	UdpIpAddress        string `json:"UdpIpAddress"`
	UdpBroadcastAddress string `json:"UdpBroadcastAddress"`
	Port                uint16 `json:"Port"`
	TlsIpAddress        string `json:"TlsIpAddress,omitempty"`
}

// ConversationProperty is one entry of the Conversation.ConversionProperty
// array (spec §6), field names matched exactly to the external schema.
type ConversationProperty struct {
	ConversionName string        `json:"ConversionName"`
	P2ClientMax    uint16        `json:"p2ClientMax"`
	P2StarClientMax uint16       `json:"p2StarClientMax"`
	TxBufferSize   uint32        `json:"TxBufferSize"`
	RxBufferSize   uint32        `json:"RxBufferSize"`
	SourceAddress  uint16        `json:"SourceAddress"`
	TargetAddress  uint16        `json:"TargetAddress"`
	Network        NetworkConfig `json:"Network"`
	Tls            *TLSConfig    `json:"Tls,omitempty"`
}

// ConversationSet is the top-level JSON document's Conversation member.
type ConversationSet struct {
	NumberOfConversion int                     `json:"NumberOfConversion"`
	ConversionProperty  []ConversationProperty `json:"ConversionProperty"`
}

// ConversationFile is the full JSON configuration document (spec §6).
type ConversationFile struct {
	Conversation ConversationSet `json:"Conversation"`
}

// LoadConversationFile reads and parses the JSON conversation configuration
// at path, validating that NumberOfConversion matches the actual entry
// count (the external schema carries both; a mismatch indicates a
// hand-edited or truncated file).
func LoadConversationFile(path string) (*ConversationFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var file ConversationFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if got, want := len(file.Conversation.ConversionProperty), file.Conversation.NumberOfConversion; got != want {
		return nil, fmt.Errorf("config: %s declares NumberOfConversion=%d but has %d entries", path, want, got)
	}
	for _, p := range file.Conversation.ConversionProperty {
		if p.ConversionName == "" {
			return nil, fmt.Errorf("config: %s: ConversionProperty entry missing ConversionName", path)
		}
	}
	return &file, nil
}

// ToolConfig is the CLI/monitor's own YAML settings file: log level,
// monitor bind address, capture/metrics opt-in, and the path to the
// conversation JSON file above. This mirrors the teacher's
// internal/config.Config / LoadConfig shape, adapted from OBD2 transport
// settings to this repository's own surfaces.
type ToolConfig struct {
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	ConversationConfigPath string `yaml:"conversationConfigPath"`

	Discovery struct {
		LocalUDPIPAddress   string `yaml:"localUdpIpAddress"`
		UDPBroadcastAddress string `yaml:"udpBroadcastAddress"`
		Port                int    `yaml:"port"`
	} `yaml:"discovery"`

	Monitor struct {
		Enabled     bool   `yaml:"enabled"`
		BindAddress string `yaml:"bindAddress"`
	} `yaml:"monitor"`

	Capture struct {
		Enabled      bool   `yaml:"enabled"`
		DatabasePath string `yaml:"databasePath"`
	} `yaml:"capture"`

	Metrics struct {
		Enabled      bool   `yaml:"enabled"`
		InfluxURL    string `yaml:"influxUrl"`
		InfluxOrg    string `yaml:"influxOrg"`
		InfluxBucket string `yaml:"influxBucket"`
		InfluxToken  string `yaml:"influxToken"`
	} `yaml:"metrics"`
}

// LoadToolConfig reads the YAML settings file at path.
func LoadToolConfig(path string) (*ToolConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var cfg ToolConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &cfg, nil
}
