package influx

import (
	"context"
	"fmt"
	"strings"
	"time"

	client "github.com/influxdata/influxdb1-client/v2"
)

const measurement = "file_processed"

// Config contains the InfluxDB 1.x connection settings.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	Timeout  time.Duration
}

// Run summarizes one extractor run.
type Run struct {
	Extractor string
	Start     time.Time
	End       time.Time
	Created   int
	Bytes     int64
}

// Sink writes per-run duration, file count and byte totals.
type Sink struct {
	client   client.Client
	database string
}

// New constructs a Sink. Host may carry a scheme; plain hosts get http://.
func New(cfg Config) (*Sink, error) {
	host := strings.TrimRight(cfg.Host, "/")
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	addr := fmt.Sprintf("%s:%d", host, cfg.Port)

	cl, err := client.NewHTTPClient(client.HTTPConfig{
		Addr:     addr,
		Username: cfg.User,
		Password: cfg.Password,
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("init influx client: %w", err)
	}
	return &Sink{client: cl, database: cfg.Database}, nil
}

// LogRun writes one point per series, stamped at the run's end time.
func (s *Sink) LogRun(ctx context.Context, run Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	bp, err := client.NewBatchPoints(client.BatchPointsConfig{
		Database:  s.database,
		Precision: "s",
	})
	if err != nil {
		return fmt.Errorf("new batch: %w", err)
	}

	series := []struct {
		kind  string
		value int64
	}{
		{"duration", int64(run.End.Sub(run.Start) / time.Second)},
		{"filecount", int64(run.Created)},
		{"bytes", run.Bytes},
	}
	for _, sr := range series {
		pt, err := client.NewPoint(measurement,
			map[string]string{"extractor": run.Extractor, "type": sr.kind},
			map[string]any{"value": sr.value},
			run.End,
		)
		if err != nil {
			return fmt.Errorf("new point %s: %w", sr.kind, err)
		}
		bp.AddPoint(pt)
	}

	if err := s.client.Write(bp); err != nil {
		return fmt.Errorf("write influx points: %w", err)
	}
	return nil
}

// Close releases the HTTP client.
func (s *Sink) Close() error {
	return s.client.Close()
}
