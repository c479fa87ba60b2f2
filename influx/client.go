package influx

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	log "github.com/sirupsen/logrus"
)

var (
	ErrConnect = errors.New("influxdb unreachable")
	ErrWrite   = errors.New("influxdb write failed")
)

// ClientConfig object used for client creation
type ClientConfig struct {
	URL       string
	Token     string
	Org       string
	Bucket    string
	VerifySSL bool
	// Namespace, when set, is added as a tag to every written point.
	Namespace   string
	HTTPTimeout time.Duration
	DialTimeout time.Duration
	TLSTimeout  time.Duration
}

// NewClientConfig constructs a ClientConfig with the default timeouts
func NewClientConfig(url, token, org, bucket string) ClientConfig {
	return ClientConfig{
		URL:         url,
		Token:       token,
		Org:         org,
		Bucket:      bucket,
		VerifySSL:   true,
		HTTPTimeout: 10 * time.Second,
		DialTimeout: 5 * time.Second,
		TLSTimeout:  5 * time.Second,
	}
}

// Sink is the write side of the time-series store.
type Sink interface {
	Write(ctx context.Context, points ...*Point) error
	Health(ctx context.Context) (*Health, error)
}

type Health struct {
	Name    string
	Status  string
	Message string
	Version string
}

func (h *Health) Pass() bool {
	return h.Status == string(domain.HealthCheckStatusPass)
}

// Client object
type Client struct {
	config ClientConfig
	client influxdb2.Client
	writer api.WriteAPIBlocking
}

// NewClient constructor
func NewClient(config ClientConfig) *Client {
	netClient := &http.Client{
		Timeout: config.HTTPTimeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: config.DialTimeout,
			}).DialContext,
			TLSHandshakeTimeout: config.TLSTimeout,
			TLSClientConfig:     &tls.Config{InsecureSkipVerify: !config.VerifySSL},
		},
	}

	opts := influxdb2.DefaultOptions().
		SetHTTPClient(netClient).
		SetApplicationName("speedflux").
		SetLogLevel(0)
	if config.Namespace != "" {
		opts.AddDefaultTag("namespace", config.Namespace)
	}

	client := influxdb2.NewClientWithOptions(config.URL, config.Token, opts)
	return &Client{
		config: config,
		client: client,
		writer: client.WriteAPIBlocking(config.Org, config.Bucket),
	}
}

// Health queries the server health endpoint. A reachable server that
// reports "fail" is returned without error; callers decide what to do.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	h, err := c.client.Health(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConnect, c.config.URL, err)
	}

	health := &Health{
		Name:   h.Name,
		Status: string(h.Status),
	}
	if h.Message != nil {
		health.Message = *h.Message
	}
	if h.Version != nil {
		health.Version = *h.Version
	}
	return health, nil
}

// Write sends all points in a single request. Failed writes are not retried.
func (c *Client) Write(ctx context.Context, points ...*Point) error {
	if len(points) == 0 {
		return nil
	}

	wp := make([]*write.Point, 0, len(points))
	for _, p := range points {
		wp = append(wp, p.toWrite())
	}

	log.Debugf("Writing %d point(s) to bucket %s", len(wp), c.config.Bucket)
	if err := c.writer.WritePoint(ctx, wp...); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return nil
}

func (c *Client) Close() {
	c.client.Close()
}
