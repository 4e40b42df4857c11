// Package stream talks to the game test-runner backend: one-shot HTTP calls
// for state, submissions, resets and reports, plus the server-sent event
// channel that pushes live status updates.
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thruflo/gamecheck/internal/logging"
	"github.com/thruflo/gamecheck/internal/metrics"
)

// API endpoints relative to the base URL.
const (
	EndpointGameStats    = "game-stats"
	EndpointCatalogue    = "game-catalogue"
	EndpointReset        = "reset-server"
	EndpointServerStatus = "server-status"
	EndpointEvents       = "events"
	EndpointDownloadPDF  = "download-pdf"
	EndpointDownloadCSV  = "download-csv"
)

// RetryPriority is the queue priority the backend expects for a retry.
const RetryPriority = 3

// DownloadKind selects a report format.
type DownloadKind string

const (
	DownloadPDF DownloadKind = "pdf"
	DownloadCSV DownloadKind = "csv"
)

// Client provides HTTP access to the backend API and its event channel.
type Client struct {
	// baseURL is the API root (e.g., "http://localhost:3000/api")
	baseURL string

	// httpClient is shared by one-shot calls and the event stream, so it
	// must not carry a client-wide timeout.
	httpClient *http.Client

	// requestTimeout bounds one-shot calls (0 = none)
	requestTimeout time.Duration

	// reconnectInterval is the fixed wait before reopening the event stream
	reconnectInterval time.Duration

	// maxReconnectAttempts caps consecutive failed connections (0 = unlimited)
	maxReconnectAttempts int

	logger  *logging.Logger
	metrics *metrics.Metrics

	// after is time.After, replaceable in tests
	after func(time.Duration) <-chan time.Time

	mu            sync.RWMutex
	state         ConnState
	onStateChange func(ConnState)
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithRequestTimeout bounds each one-shot API call.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.requestTimeout = d
	}
}

// WithReconnectInterval sets the interval between reconnection attempts.
func WithReconnectInterval(interval time.Duration) ClientOption {
	return func(c *Client) {
		c.reconnectInterval = interval
	}
}

// WithMaxReconnectAttempts sets the maximum number of consecutive failed
// connection attempts. Set to 0 for unlimited attempts.
func WithMaxReconnectAttempts(attempts int) ClientOption {
	return func(c *Client) {
		c.maxReconnectAttempts = attempts
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithStateHook registers a callback invoked on every channel state change.
// The callback runs on the subscription goroutine and must not block.
func WithStateHook(fn func(ConnState)) ClientOption {
	return func(c *Client) {
		c.onStateChange = fn
	}
}

// NewClient creates a new Client for the given API base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:           strings.TrimSuffix(baseURL, "/"),
		httpClient:        &http.Client{Timeout: 0},
		requestTimeout:    30 * time.Second,
		reconnectInterval: 5 * time.Second,
		logger:            logging.Component("stream"),
		after:             time.After,
		state:             StateDisconnected,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetGameStats fetches the full collection and aggregate counts.
func (c *Client) GetGameStats(ctx context.Context) (*TestUpdate, error) {
	var out TestUpdate
	if err := c.doJSON(ctx, http.MethodGet, EndpointGameStats, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitGame asks the backend to test a game. A response without a test ID
// is not an error; check Acknowledged.
func (c *Client) SubmitGame(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	var out SubmitResponse
	if err := c.doJSON(ctx, http.MethodPost, EndpointCatalogue, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Retry resubmits a catalogue game at retry priority.
func (c *Client) Retry(ctx context.Context, catalogueGameID string) (*SubmitResponse, error) {
	return c.SubmitGame(ctx, SubmitRequest{CatalogueGameID: catalogueGameID, Priority: RetryPriority})
}

// ResetServer clears the backend's queue and history. It returns the
// backend's confirmation message.
func (c *Client) ResetServer(ctx context.Context) (string, error) {
	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	resp, err := c.do(ctx, http.MethodPost, EndpointReset, struct{}{})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var out resetResponse
	_ = json.Unmarshal(body, &out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := out.Error
		if msg == "" {
			msg = "failed to reset server"
		}
		return "", &StatusError{Endpoint: EndpointReset, Code: resp.StatusCode, Body: msg}
	}
	if out.Message == "" {
		return "Server reset successfully", nil
	}
	return out.Message, nil
}

// ServerStatus reports the backend's self-declared status, "online" if it
// answers without one.
func (c *Client) ServerStatus(ctx context.Context) (string, error) {
	var out serverStatusResponse
	if err := c.doJSON(ctx, http.MethodGet, EndpointServerStatus, nil, &out); err != nil {
		return "offline", err
	}
	if out.Status == "" {
		return "online", nil
	}
	return out.Status, nil
}

// Download streams a test-history report to w and returns the byte count.
func (c *Client) Download(ctx context.Context, kind DownloadKind, w io.Writer) (int64, error) {
	var endpoint string
	switch kind {
	case DownloadPDF:
		endpoint = EndpointDownloadPDF
	case DownloadCSV:
		endpoint = EndpointDownloadCSV
	default:
		return 0, fmt.Errorf("unknown download kind: %q", kind)
	}

	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if err := checkStatus(endpoint, resp); err != nil {
		return 0, err
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed to read %s: %w", endpoint, err)
	}
	return n, nil
}

// doJSON sends body as JSON (if non-nil) and decodes a 2xx reply into out.
func (c *Client) doJSON(ctx context.Context, method, endpoint string, body, out any) error {
	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	resp, err := c.do(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(endpoint, resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		decodeErr := &DecodeError{Endpoint: endpoint, Err: err}
		c.metrics.IncError(KindDecode)
		return decodeErr
	}
	return nil
}

// do issues a request and records its latency. Transport errors are wrapped.
func (c *Client) do(ctx context.Context, method, endpoint string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(endpoint), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.ObserveRequest(endpoint, time.Since(start).Seconds())
	if err != nil {
		c.metrics.IncError(ErrorKind(err))
		return nil, fmt.Errorf("%s: request failed: %w", endpoint, err)
	}
	return resp, nil
}

func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.requestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.requestTimeout)
}

func (c *Client) url(endpoint string) string {
	return c.baseURL + "/" + endpoint
}

// checkStatus returns a StatusError for non-2xx responses.
func checkStatus(endpoint string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{Endpoint: endpoint, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
