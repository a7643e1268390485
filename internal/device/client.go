package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"
)

// Device HTTP contract
const (
	PathDiscovery = "/discovery"
	PathRoot      = "/"
	PathSend      = "/send"
)

// maxProbeBody bounds how much of a probe response is inspected
const maxProbeBody = 4 << 10

// ErrUnexpectedStatus is returned when the device answers with a non-200 status
var ErrUnexpectedStatus = errors.New("unexpected status")

// ProbeResult classifies a single probe attempt
type ProbeResult string

const (
	ProbeOK       ProbeResult = "ok"
	ProbeTimeout  ProbeResult = "timeout"
	ProbeRefused  ProbeResult = "refused"
	ProbeStatus   ProbeResult = "status"
	ProbeMismatch ProbeResult = "mismatch"
	ProbeError    ProbeResult = "error"
)

// ProbeObserver is notified of every probe attempt
type ProbeObserver func(result ProbeResult)

// Options configures a Client
type Options struct {
	Marker         string
	ProbeTimeout   time.Duration
	RequestTimeout time.Duration
	Logger         *slog.Logger
	OnProbe        ProbeObserver
}

// Client handles HTTP communication with the device
type Client struct {
	httpClient   *http.Client
	marker       string
	probeTimeout time.Duration
	log          *slog.Logger
	onProbe      ProbeObserver
}

// NewClient creates a new device client
func NewClient(opts Options) *Client {
	if opts.Marker == "" {
		opts.Marker = DefaultMarker
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 800 * time.Millisecond
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: opts.RequestTimeout,
			Transport: &http.Transport{
				DisableKeepAlives: true,
				DialContext: (&net.Dialer{
					Timeout: opts.ProbeTimeout,
				}).DialContext,
			},
		},
		marker:       opts.Marker,
		probeTimeout: opts.ProbeTimeout,
		log:          opts.Logger,
		onProbe:      opts.OnProbe,
	}
}

// Marker returns the identification string probes look for
func (c *Client) Marker() string {
	return c.marker
}

// Probe checks whether addr is the device.
// Unreachable hosts are the common case, so every failure is a plain false.
func (c *Client) Probe(ctx context.Context, addr Address) bool {
	for _, path := range []string{PathDiscovery, PathRoot} {
		result := c.probePath(ctx, addr, path)
		if c.onProbe != nil {
			c.onProbe(result)
		}
		switch result {
		case ProbeOK:
			c.log.Debug("probe matched", "addr", addr.String(), "path", path)
			return true
		case ProbeTimeout, ProbeRefused, ProbeError:
			// Nothing is listening; the root path will not answer either
			return false
		}
		if ctx.Err() != nil {
			return false
		}
	}
	return false
}

func (c *Client) probePath(ctx context.Context, addr Address, path string) ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr.URL(path), nil)
	if err != nil {
		return ProbeError
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ProbeStatus
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProbeBody))
	if err != nil {
		return classify(err)
	}
	if !strings.Contains(string(body), c.marker) {
		return ProbeMismatch
	}
	return ProbeOK
}

// classify maps a transport error to a probe result
func classify(err error) ProbeResult {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return ProbeTimeout
	case errors.Is(err, syscall.ECONNREFUSED):
		return ProbeRefused
	default:
		return ProbeError
	}
}

// Report posts a telemetry line to the device and returns the response body
func (c *Client) Report(ctx context.Context, addr Address, telemetry string) (string, error) {
	body, err := c.post(ctx, addr.URL(PathRoot), "text/plain", telemetry)
	if err != nil {
		return "", fmt.Errorf("report to %s: %w", addr, err)
	}
	return body, nil
}

// Send posts a raw one-shot message to the device
func (c *Client) Send(ctx context.Context, addr Address, message string) (string, error) {
	body, err := c.post(ctx, addr.URL(PathSend), "", message)
	if err != nil {
		return "", fmt.Errorf("send to %s: %w", addr, err)
	}
	return body, nil
}

func (c *Client) post(ctx context.Context, url, contentType, payload string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return string(bodyBytes), fmt.Errorf("%w %d: %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}

	return string(bodyBytes), nil
}
