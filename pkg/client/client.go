package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/loykin/timewarden/internal/gateway"
	"github.com/loykin/timewarden/internal/metrics"
	"github.com/loykin/timewarden/internal/schedule"
	"github.com/loykin/timewarden/internal/usage"
)

// Client reaches the timewarden backend over HTTP. It implements
// gateway.Gateway; it never retries and never caches.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

var _ gateway.Gateway = (*Client)(nil)

// Config holds client configuration
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	Logger   *slog.Logger // Optional logger for client operations
	TLS      *TLSClientConfig
	Insecure bool // Skip TLS verification
}

// TLSClientConfig holds TLS configuration for client
type TLSClientConfig struct {
	Enabled    bool
	CACert     string // CA certificate file path
	ClientCert string
	ClientKey  string
	ServerName string
	SkipVerify bool
}

const (
	DefaultBaseURL = "http://127.0.0.1:7878/api"
	DefaultTimeout = 5 * time.Second
)

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Timeout: DefaultTimeout,
	}
}

// New creates a backend client.
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	transport := &http.Transport{}
	if config.TLS != nil && config.TLS.Enabled || config.Insecure {
		tlsConfig, err := setupClientTLS(config)
		if err != nil {
			config.Logger.Error("TLS setup failed", "error", err)
		} else {
			transport.TLSClientConfig = tlsConfig
		}
	}

	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		logger:  config.Logger,
		client: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
	}
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// IsReachable checks if the backend answers its health probe.
func (c *Client) IsReachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		c.logger.Debug("Failed to create request for reachability check", "error", err)
		return false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("Backend unreachable", "error", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	ok := resp.StatusCode == http.StatusOK
	c.logger.Debug("Backend reachability check", "reachable", ok, "status", resp.StatusCode)
	return ok
}

func (c *Client) CurrentApp(ctx context.Context) (string, bool, error) {
	var app *string
	if err := c.invoke(ctx, gateway.CallGetCurrentApp, nil, &app); err != nil {
		return "", false, err
	}
	if app == nil {
		return "", false, nil
	}
	return *app, true, nil
}

func (c *Client) IdleSeconds(ctx context.Context) (uint64, error) {
	var secs uint64
	err := c.invoke(ctx, gateway.CallGetIdleSeconds, nil, &secs)
	return secs, err
}

func (c *Client) TodaySessions(ctx context.Context) ([]usage.Session, error) {
	var out []usage.Session
	err := c.invoke(ctx, gateway.CallGetTodaySessions, nil, &out)
	return out, err
}

func (c *Client) AppTotalsToday(ctx context.Context) ([]usage.AppTotal, error) {
	var out []usage.AppTotal
	err := c.invoke(ctx, gateway.CallGetAppTotalsToday, nil, &out)
	return out, err
}

func (c *Client) AllSchedules(ctx context.Context) ([]schedule.Schedule, error) {
	var out []schedule.Schedule
	err := c.invoke(ctx, gateway.CallGetAllSchedules, nil, &out)
	return out, err
}

func (c *Client) CreateSchedule(ctx context.Context, s schedule.Schedule) error {
	return c.invoke(ctx, gateway.CallCreateSchedule, ScheduleArgs{Schedule: s}, nil)
}

func (c *Client) UpdateSchedule(ctx context.Context, s schedule.Schedule) error {
	return c.invoke(ctx, gateway.CallUpdateSchedule, ScheduleArgs{Schedule: s}, nil)
}

func (c *Client) DeleteSchedule(ctx context.Context, id int64) error {
	return c.invoke(ctx, gateway.CallDeleteSchedule, IDArgs{ID: id}, nil)
}

func (c *Client) ToggleSchedule(ctx context.Context, id int64, enabled bool) error {
	return c.invoke(ctx, gateway.CallToggleSchedule, ToggleArgs{ID: id, Enabled: enabled}, nil)
}

// invoke issues one remote call and decodes its result into out (which may be
// nil). Every failure comes back as *gateway.RemoteCallError.
func (c *Client) invoke(ctx context.Context, call string, args any, out any) (err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveRemoteCall(call, time.Since(start).Seconds(), err)
		err = gateway.Wrap(call, err)
	}()

	body := []byte("{}")
	if args != nil {
		if body, err = json.Marshal(args); err != nil {
			return fmt.Errorf("marshal args: %w", err)
		}
	}

	url := c.baseURL + "/invoke/" + call
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	rid := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RequestIDHeader, rid)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("HTTP request failed", "error", err, "call", call, "request_id", rid)
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := c.handleErrorResponse(resp, call); err != nil {
		return err
	}

	var env InvokeResponse
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if out == nil || len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

// handleErrorResponse handles HTTP error responses
func (c *Client) handleErrorResponse(resp *http.Response, call string) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	var errorResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errorResp); err != nil || errorResp.Error == "" {
		c.logger.Debug("Failed to decode error response", "call", call, "status", resp.StatusCode)
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	c.logger.Debug("API request failed", "call", call, "error", errorResp.Error, "status", resp.StatusCode)
	return fmt.Errorf("API error: %s", errorResp.Error)
}

func setupClientTLS(config Config) (*tls.Config, error) {
	tlsConfig := &tls.Config{}

	if config.Insecure {
		tlsConfig.InsecureSkipVerify = true
		return tlsConfig, nil
	}

	if config.TLS != nil {
		if config.TLS.SkipVerify {
			tlsConfig.InsecureSkipVerify = true
		}
		if config.TLS.ServerName != "" {
			tlsConfig.ServerName = config.TLS.ServerName
		}
		if config.TLS.CACert != "" {
			if err := loadCACert(tlsConfig, config.TLS.CACert); err != nil {
				return nil, fmt.Errorf("failed to load CA certificate: %w", err)
			}
		}
		if config.TLS.ClientCert != "" && config.TLS.ClientKey != "" {
			cert, err := tls.LoadX509KeyPair(config.TLS.ClientCert, config.TLS.ClientKey)
			if err != nil {
				return nil, fmt.Errorf("failed to load client certificate: %w", err)
			}
			tlsConfig.Certificates = []tls.Certificate{cert}
		}
	}

	return tlsConfig, nil
}

func loadCACert(tlsConfig *tls.Config, caCertPath string) error {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return fmt.Errorf("failed to read CA certificate file: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return fmt.Errorf("failed to parse CA certificate")
	}

	tlsConfig.RootCAs = caCertPool
	return nil
}
