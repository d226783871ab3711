package influxdb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/gray-logic-script/internal/infrastructure/config"
)

var (
	// ErrDisabled is returned by Connect when history export is turned off.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrConnectionFailed wraps ping failures during Connect.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected is returned by HealthCheck after Close.
	ErrNotConnected = errors.New("influxdb: not connected")
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second
)

// Logger receives asynchronous write failures.
type Logger interface {
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Error(string, ...any) {}

// Client exports state history to an InfluxDB v2 bucket.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	bucket   string

	mu        sync.RWMutex
	connected bool
	logger    Logger
	dropped   uint64
}

// Connect pings the server and opens a batched, non-blocking write API
// for the configured bucket. Write errors are logged through logger.
func Connect(cfg config.InfluxDBConfig, logger Logger) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if logger == nil {
		logger = noopLogger{}
	}

	opts := influxdb2.DefaultOptions().
		SetBatchSize(batchSize(cfg.BatchSize)).
		SetFlushInterval(uint(flushInterval(cfg.FlushInterval).Milliseconds())) // #nosec G115 -- always positive
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	c := &Client{
		client:    client,
		writeAPI:  client.WriteAPI(cfg.Org, cfg.Bucket),
		bucket:    cfg.Bucket,
		connected: true,
		logger:    logger,
	}
	go c.drainErrors(c.writeAPI.Errors())
	return c, nil
}

func batchSize(n int) uint {
	if n <= 0 {
		return defaultBatchSize
	}
	return uint(n) // #nosec G115 -- checked above
}

// flushInterval converts the configured seconds into a duration.
func flushInterval(secs int) time.Duration {
	if secs <= 0 {
		return defaultFlushInterval
	}
	return time.Duration(secs) * time.Second
}

func (c *Client) drainErrors(errs <-chan error) {
	for err := range errs {
		c.mu.Lock()
		c.dropped++
		logger := c.logger
		c.mu.Unlock()
		logger.Error("state history write failed", "bucket", c.bucket, "error", err)
	}
}

// Dropped reports how many batches failed to write since Connect.
func (c *Client) Dropped() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dropped
}

// IsConnected reports whether the client is still open.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	healthy, err := c.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("influxdb: ping: %w", err)
	}
	if !healthy {
		return errors.New("influxdb: server not healthy")
	}
	return nil
}

// Flush blocks until buffered samples are written. No-op once closed.
func (c *Client) Flush() {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.Flush()
}

// Close flushes pending samples and closes the connection. It is safe to
// call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	wasConnected := c.connected
	c.connected = false
	c.mu.Unlock()

	if !wasConnected || c.client == nil {
		return nil
	}
	c.writeAPI.Flush()
	c.client.Close()
	return nil
}
