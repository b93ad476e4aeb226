package quote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/noah-isme/taxbridge/internal/resilience"
)

// AvaTax REST endpoints.
const (
	SandboxURL    = "https://sandbox-rest.avatax.com"
	ProductionURL = "https://rest.avatax.com"
)

// AvaTaxConfig configures the AvaTax REST client.
type AvaTaxConfig struct {
	AccountNumber string
	LicenseKey    string
	LiveMode      bool
	// BaseURL overrides the sandbox/production endpoint.
	BaseURL     string
	Timeout     time.Duration
	MaxAttempts int
	AppName     string
	AppVersion  string
}

func (c AvaTaxConfig) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	if c.LiveMode {
		return ProductionURL
	}
	return SandboxURL
}

// ProviderError is a non-success AvaTax response.
type ProviderError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("avatax: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// AvaTaxClient talks to the AvaTax REST API.
type AvaTaxClient struct {
	cfg     AvaTaxConfig
	http    resilience.HTTPClient
	latency metric.Float64Histogram
	logger  zerolog.Logger
}

// NewAvaTaxClient builds a client whose calls go through breaker.
func NewAvaTaxClient(cfg AvaTaxConfig, breaker *resilience.Breaker, logger zerolog.Logger) (*AvaTaxClient, error) {
	if cfg.AppName == "" {
		cfg.AppName = "taxbridge"
	}
	latency, err := otel.Meter("taxbridge/quote").Float64Histogram(
		"taxbridge.avatax.duration",
		metric.WithUnit("ms"),
		metric.WithDescription("AvaTax request latency"),
	)
	if err != nil {
		return nil, fmt.Errorf("avatax latency histogram: %w", err)
	}
	return &AvaTaxClient{
		cfg: cfg,
		http: resilience.HTTPClient{
			Client:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
			Breaker:     breaker,
			Target:      "avatax",
			MaxAttempts: cfg.MaxAttempts,
			BaseBackoff: 200 * time.Millisecond,
			Jitter:      0.2,
			Timeout:     cfg.Timeout,
		},
		latency: latency,
		logger:  logger,
	}, nil
}

// CreateTransaction implements Provider.
func (c *AvaTaxClient) CreateTransaction(ctx context.Context, req Request) (*Response, error) {
	var out Response
	if err := c.do(ctx, "create_transaction", http.MethodPost, "/api/v2/transactions/create", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type pingResult struct {
	Version       string `json:"version"`
	Authenticated bool   `json:"authenticated"`
}

// Ping checks connectivity and credentials.
func (c *AvaTaxClient) Ping(ctx context.Context) error {
	var out pingResult
	if err := c.do(ctx, "ping", http.MethodGet, "/api/v2/utilities/ping", nil, &out); err != nil {
		return err
	}
	if !out.Authenticated {
		return &ProviderError{StatusCode: http.StatusUnauthorized, Code: "NotAuthenticated", Message: "credentials rejected"}
	}
	return nil
}

func (c *AvaTaxClient) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("avatax encode %s: %w", op, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.baseURL()+path, body)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.cfg.AccountNumber, c.cfg.LicenseKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Avalara-Client", fmt.Sprintf("%s; %s; Go; ; ", c.cfg.AppName, c.cfg.AppVersion))

	start := time.Now()
	resp, err := c.http.Do(ctx, req)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	c.latency.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(
		attribute.String("operation", op),
		attribute.Int("status", status),
	))
	if err != nil {
		return fmt.Errorf("avatax %s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		perr := &ProviderError{StatusCode: resp.StatusCode}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&envelope) == nil {
			perr.Code = envelope.Error.Code
			perr.Message = envelope.Error.Message
		}
		c.logger.Warn().Int("status", resp.StatusCode).Str("code", perr.Code).Str("operation", op).Msg("avatax_error_response")
		return perr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("avatax decode %s: %w", op, err)
	}
	return nil
}
