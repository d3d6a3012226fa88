// Command diag-client wires configuration, the Diagnostic Client facade,
// and the optional monitor/metrics/capture surfaces together, mirroring
// the teacher's main.go: flag-selected config file, goroutine-started web
// server, signal-driven graceful shutdown.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anodyne74/doip-diag-client/client"
	"github.com/anodyne74/doip-diag-client/internal/capture"
	"github.com/anodyne74/doip-diag-client/internal/config"
	"github.com/anodyne74/doip-diag-client/internal/conversation"
	"github.com/anodyne74/doip-diag-client/internal/metrics"
	"github.com/anodyne74/doip-diag-client/internal/monitor"
)

var configFile string

func init() {
	flag.StringVar(&configFile, "config", "config.yaml", "Path to tool configuration file")
	flag.Parse()
}

func main() {
	logger := log.New(os.Stdout, "diag-client: ", log.LstdFlags)

	toolCfg, err := config.LoadToolConfig(configFile)
	if err != nil {
		logger.Fatalf("loading tool config: %v", err)
	}

	c := client.New(logger)
	discoveryCfg := conversation.DiscoveryConfig{
		LocalUDPIPAddress:   toolCfg.Discovery.LocalUDPIPAddress,
		UDPBroadcastAddress: toolCfg.Discovery.UDPBroadcastAddress,
		Port:                toolCfg.Discovery.Port,
	}
	if err := c.Initialize(toolCfg.ConversationConfigPath, discoveryCfg); err != nil {
		logger.Fatalf("initializing diagnostic client: %v", err)
	}

	if toolCfg.Capture.Enabled {
		captureStore, err := capture.NewStore(toolCfg.Capture.DatabasePath)
		if err != nil {
			logger.Fatalf("opening capture database: %v", err)
		}
		defer captureStore.Close()
		if err := c.AttachCaptureStore(captureStore); err != nil {
			logger.Fatalf("attaching capture store: %v", err)
		}
	}

	if toolCfg.Metrics.Enabled {
		metricsRecorder, err := metrics.NewRecorder(
			toolCfg.Metrics.InfluxURL, toolCfg.Metrics.InfluxToken,
			toolCfg.Metrics.InfluxOrg, toolCfg.Metrics.InfluxBucket,
		)
		if err != nil {
			logger.Fatalf("connecting to InfluxDB: %v", err)
		}
		defer metricsRecorder.Close()
		c.AttachMetricsRecorder(metricsRecorder)
	}

	var monitorServer *monitor.Server
	if toolCfg.Monitor.Enabled {
		monitorServer = monitor.NewServer(toolCfg.Monitor.BindAddress, c, logger)
		c.AttachMonitorServer(monitorServer)
		monitorServer.Start()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Println("shutting down")
	if monitorServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := monitorServer.Stop(ctx); err != nil {
			logger.Printf("stopping monitor server: %v", err)
		}
	}
	if err := c.DeInitialize(); err != nil {
		logger.Printf("deinitializing diagnostic client: %v", err)
	}
}
