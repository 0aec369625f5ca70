// Package transport delivers captured data to the ingestion backend. Event
// delivery is chunked and strictly ordered; everything else is a plain
// request/response call. The beacon path is the one exception to the auth
// header rule: it carries the API key in its body because it has to work
// where headers cannot be set.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	pathInit             = "/api/ingestion/init"
	pathEvents           = "/api/ingestion/events"
	pathUser             = "/api/ingestion/user"
	pathUserAuth         = "/api/ingestion/user/auth"
	pathCustomEvent      = "/api/ingestion/customEvent"
	pathCustomEventBatch = "/api/ingestion/customEvent/batch"
)

// MaxChunkBytes bounds the serialized size of one events chunk.
const MaxChunkBytes = 1 << 20

// DefaultBeaconTimeout caps how long the unload path may hold the process.
const DefaultBeaconTimeout = 2 * time.Second

// Config configures a Client.
type Config struct {
	// BaseURL is the backend origin, e.g. "https://ingest.swing.rs".
	BaseURL string
	// APIKey is sent as a bearer credential on every non-beacon request.
	APIKey string
	// UserAgent identifies the capturing host on outgoing requests. Empty
	// leaves the HTTP client's default.
	UserAgent string
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
	// Logger defaults to a nop logger.
	Logger *zap.Logger
	// MaxChunkBytes defaults to MaxChunkBytes.
	MaxChunkBytes int
	// BeaconTimeout defaults to DefaultBeaconTimeout.
	BeaconTimeout time.Duration
}

// Client speaks the ingestion HTTP contract.
type Client struct {
	baseURL       string
	apiKey        string
	userAgent     string
	http          *http.Client
	logger        *zap.Logger
	maxChunkBytes int
	beaconTimeout time.Duration
}

// NewClient validates cfg and builds a Client.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("transport: base URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("transport: API key is required")
	}

	c := &Client{
		baseURL:       base,
		apiKey:        cfg.APIKey,
		userAgent:     cfg.UserAgent,
		http:          cfg.HTTPClient,
		logger:        cfg.Logger,
		maxChunkBytes: cfg.MaxChunkBytes,
		beaconTimeout: cfg.BeaconTimeout,
	}
	if c.http == nil {
		c.http = http.DefaultClient
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.maxChunkBytes <= 0 {
		c.maxChunkBytes = MaxChunkBytes
	}
	if c.beaconTimeout <= 0 {
		c.beaconTimeout = DefaultBeaconTimeout
	}
	return c, nil
}

// InitResult carries server-assigned identifiers from session bootstrap. A
// server that keeps the client-minted ids returns them unchanged or leaves
// the fields empty.
type InitResult struct {
	SessionID string `json:"sessionId"`
	EndUserID string `json:"endUserId"`
}

type initRequest struct {
	SessionID string `json:"sessionId"`
	EndUserID string `json:"endUserId"`
	EntryURL  string `json:"entryURL"`
	Referrer  string `json:"referrer"`
}

// InitSession bootstraps the session server-side. Failure here is fatal to
// starting the tracker and is returned, never swallowed.
func (c *Client) InitSession(ctx context.Context, sessionID, endUserID, entryURL, referrer string) (InitResult, error) {
	var out InitResult
	err := c.post(ctx, pathInit, initRequest{
		SessionID: sessionID,
		EndUserID: endUserID,
		EntryURL:  entryURL,
		Referrer:  referrer,
	}, &out)
	if err != nil {
		return InitResult{}, fmt.Errorf("init session: %w", err)
	}
	return out, nil
}

type userRequest struct {
	UserID         string         `json:"userId"`
	UserAttributes map[string]any `json:"userAttributes"`
	SessionID      string         `json:"sessionId"`
	AuthFields     []string       `json:"authFields,omitempty"`
}

// SendUserData syncs end-user properties. Errors surface to the caller; the
// call is independently retryable.
func (c *Client) SendUserData(ctx context.Context, userID string, attrs map[string]any, sessionID string) error {
	if err := c.post(ctx, pathUser, userRequest{UserID: userID, UserAttributes: attrs, SessionID: sessionID}, nil); err != nil {
		return fmt.Errorf("send user data: %w", err)
	}
	return nil
}

// SendUserAuth reports an authenticated identification along with the field
// names that carried credentials.
func (c *Client) SendUserAuth(ctx context.Context, userID string, attrs map[string]any, sessionID string, authFields []string) error {
	if err := c.post(ctx, pathUserAuth, userRequest{
		UserID:         userID,
		UserAttributes: attrs,
		SessionID:      sessionID,
		AuthFields:     authFields,
	}, nil); err != nil {
		return fmt.Errorf("send user auth: %w", err)
	}
	return nil
}

// CustomEvent is a developer-defined business event for the direct (non
// buffered) custom event endpoints.
type CustomEvent struct {
	EventName       string         `json:"eventName"`
	EventProperties map[string]any `json:"eventProperties"`
}

type customEventRequest struct {
	SessionID       string         `json:"sessionId"`
	EventName       string         `json:"eventName"`
	EventProperties map[string]any `json:"eventProperties"`
}

// SendCustomEvent delivers one business event directly.
func (c *Client) SendCustomEvent(ctx context.Context, sessionID, name string, properties map[string]any) error {
	if err := c.post(ctx, pathCustomEvent, customEventRequest{
		SessionID:       sessionID,
		EventName:       name,
		EventProperties: properties,
	}, nil); err != nil {
		return fmt.Errorf("send custom event: %w", err)
	}
	return nil
}

type customEventBatchRequest struct {
	SessionID string        `json:"sessionId"`
	Events    []CustomEvent `json:"events"`
}

// SendCustomEventBatch delivers several business events in one request.
func (c *Client) SendCustomEventBatch(ctx context.Context, sessionID string, events []CustomEvent) error {
	if err := c.post(ctx, pathCustomEventBatch, customEventBatchRequest{SessionID: sessionID, Events: events}, nil); err != nil {
		return fmt.Errorf("send custom event batch: %w", err)
	}
	return nil
}

// post sends body as JSON with bearer auth and decodes a JSON response into
// out when out is non-nil. Empty response bodies are fine.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Request-Id", uuid.NewString())
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Path: path, Code: resp.StatusCode}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// StatusError reports a non-success HTTP status from the backend.
type StatusError struct {
	Path string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Path, e.Code)
}
