package redfish

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	// SystemPath is the iDRAC system inventory resource.
	SystemPath = "/redfish/v1/Systems/System.Embedded.1"
	// ManagerPath is the iDRAC controller inventory resource.
	ManagerPath = "/redfish/v1/Managers/iDRAC.Embedded.1"

	// MaxResponseSize bounds how much of a response body is read.
	MaxResponseSize int64 = 32 << 20

	userAgent = "node-inventory-aggregator/1.0"
)

// Config holds the session settings shared by every request of one Client.
type Config struct {
	Username           string
	Password           string
	ConnectTimeout     time.Duration
	RequestTimeout     time.Duration
	MaxRetries         int
	RetryInterval      time.Duration
	InsecureSkipVerify bool
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("redfish API returned status code %d for %s", e.Code, e.URL)
}

// Client is one session against any number of BMCs: one connection pool,
// one credential and one set of timeouts.
type Client struct {
	cfg        Config
	transport  *http.Transport
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient builds a session. BMCs ship self-signed certificates, so verification
// is controlled by cfg.InsecureSkipVerify.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: cfg.ConnectTimeout,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}, //nolint:gosec
	}
	return &Client{
		cfg:       cfg,
		transport: transport,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
		},
		logger: logger,
	}
}

// Close releases the idle connections of the session.
func (c *Client) Close() {
	c.transport.CloseIdleConnections()
}

// Get performs a single GET and decodes the body as a JSON object.
func (c *Client) Get(ctx context.Context, url string) (map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "build request for %s", url)
	}
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "request %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	}

	dec := json.NewDecoder(io.LimitReader(resp.Body, MaxResponseSize))
	dec.UseNumber()
	var body interface{}
	if err := dec.Decode(&body); err != nil {
		return nil, errors.Wrapf(err, "decode response from %s", url)
	}
	doc, ok := body.(map[string]interface{})
	if !ok {
		return nil, errors.Errorf("response from %s is not a JSON object", url)
	}
	return doc, nil
}

// IsTimeout reports whether err was caused by a dial, TLS handshake or request deadline.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
