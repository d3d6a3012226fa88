// Package metrics records diagnostic exchange telemetry to InfluxDB,
// grounded on the teacher's internal/datastore.InfluxDBStore.
package metrics

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// Recorder writes per-exchange latency/outcome points to InfluxDB. It
// implements conversation.ExchangeRecorder structurally, so the
// conversation package never imports this one.
type Recorder struct {
	client   influxdb2.Client
	org      string
	bucket   string
	writeAPI api.WriteAPIBlocking
}

// NewRecorder dials InfluxDB at url and verifies connectivity with a ping,
// mirroring NewInfluxDBStore's fail-fast construction.
func NewRecorder(url, token, org, bucket string) (*Recorder, error) {
	client := influxdb2.NewClient(url, token)

	if _, err := client.Ping(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("metrics: connecting to InfluxDB at %s: %w", url, err)
	}

	return &Recorder{
		client:   client,
		org:      org,
		bucket:   bucket,
		writeAPI: client.WriteAPIBlocking(org, bucket),
	}, nil
}

// RecordExchange writes one point to the doip_exchange measurement: the
// wall-clock latency of a completed SendDiagnosticRequest call, tagged by
// conversation name and outcome, with the target address stored as a field
// (spec §4.6/§7 result
// categories, stringified by conversation.mapTransmissionResult).
func (r *Recorder) RecordExchange(conversationName string, targetAddress uint16, latency time.Duration, outcome string) error {
	point := influxdb2.NewPoint(
		"doip_exchange",
		map[string]string{
			"conversation": conversationName,
			"outcome":      outcome,
		},
		map[string]interface{}{
			"target_address": int(targetAddress),
			"latency_ms":     float64(latency) / float64(time.Millisecond),
		},
		time.Now(),
	)
	if err := r.writeAPI.WritePoint(context.Background(), point); err != nil {
		return fmt.Errorf("metrics: writing exchange point: %w", err)
	}
	return nil
}

// RecordRoutingActivation writes a point for a completed Routing Activation
// attempt, keyed the same way as RecordExchange so dashboards can join the
// two measurements on conversation name.
func (r *Recorder) RecordRoutingActivation(conversationName string, targetAddress uint16, latency time.Duration, outcome string) error {
	point := influxdb2.NewPoint(
		"doip_routing_activation",
		map[string]string{
			"conversation": conversationName,
			"outcome":      outcome,
		},
		map[string]interface{}{
			"target_address": int(targetAddress),
			"latency_ms":     float64(latency) / float64(time.Millisecond),
		},
		time.Now(),
	)
	if err := r.writeAPI.WritePoint(context.Background(), point); err != nil {
		return fmt.Errorf("metrics: writing routing activation point: %w", err)
	}
	return nil
}

// Close releases the underlying InfluxDB client.
func (r *Recorder) Close() error {
	r.client.Close()
	return nil
}
