package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/adeelakhani/swing-sdk/event"
)

// beaconRequest is the unload-path body. The API key rides in the body
// because the beacon cannot set headers, and endUserId is an explicit null
// on the wire.
type beaconRequest struct {
	SessionID string        `json:"sessionId"`
	Events    []event.Event `json:"events"`
	EndUserID *string       `json:"endUserId"`
	APIKey    string        `json:"apiKey"`
}

// SendBeacon makes one best-effort delivery attempt for the final batch. It
// never chunks, never authenticates via header, and ignores the response
// status entirely. The return value reports only whether the request was
// handed off to the network.
func (c *Client) SendBeacon(events []event.Event, sessionID string) bool {
	if len(events) == 0 {
		return true
	}

	payload, err := json.Marshal(beaconRequest{
		SessionID: sessionID,
		Events:    events,
		APIKey:    c.apiKey,
	})
	if err != nil {
		c.logger.Warn("beacon encode failed", zap.Error(err))
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.beaconTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pathEvents, bytes.NewReader(payload))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("beacon hand-off failed", zap.Error(err))
		return false
	}
	resp.Body.Close()
	return true
}
