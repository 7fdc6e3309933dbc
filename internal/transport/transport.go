// Package transport executes prepared SOAP exchanges over HTTP.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/radar/savon"

// Span attribute keys for SOAP exchanges.
var (
	AttrOperation = attribute.Key("soap.operation")
	AttrEndpoint  = attribute.Key("soap.endpoint")
	AttrStatus    = attribute.Key("http.response.status_code")
)

// maxResponseSize bounds response body reads.
const maxResponseSize = 10 << 20

// defaultTimeout applies when no open/read timeouts are configured.
const defaultTimeout = 30 * time.Second

// Config carries the HTTP-level settings consulted when building a client.
type Config struct {
	Adapter            http.RoundTripper
	OpenTimeout        time.Duration
	ReadTimeout        time.Duration
	Proxy              string
	InsecureSkipVerify bool
}

// NewHTTPClient builds an *http.Client from the config. A configured Adapter
// replaces the tuned default transport entirely.
func NewHTTPClient(cfg Config) (*http.Client, error) {
	timeout := cfg.OpenTimeout + cfg.ReadTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	if cfg.Adapter != nil {
		return &http.Client{Timeout: timeout, Transport: cfg.Adapter}, nil
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("transport: parsing proxy %s: %w", cfg.Proxy, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &http.Client{Timeout: timeout, Transport: transport}, nil
}

// Request is one transport-ready exchange.
type Request struct {
	Operation string // for telemetry only
	URL       string
	Header    http.Header
	Body      []byte
}

// Result is the raw outcome of an exchange.
type Result struct {
	StatusCode int
	Header     http.Header
	Cookies    []*http.Cookie
	Body       []byte
}

// Send posts the request and reads the full response. Transport failures
// propagate unchanged; any HTTP status is returned as a Result.
func Send(ctx context.Context, client *http.Client, req *Request) (*Result, error) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "soap.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			AttrOperation.String(req.Operation),
			AttrEndpoint.String(req.URL),
		),
	)
	defer span.End()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("transport: building request: %w", err)
	}
	if req.Header != nil {
		httpReq.Header = req.Header.Clone()
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("transport: reading response: %w", err)
	}

	span.SetAttributes(AttrStatus.Int(resp.StatusCode))
	if resp.StatusCode >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, resp.Status)
	}

	return &Result{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Cookies:    resp.Cookies(),
		Body:       body,
	}, nil
}
