package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/adeelakhani/swing-sdk/event"
)

// emptyArrayBytes is the serialized size of an events array with no
// elements, the starting cost of every chunk.
const emptyArrayBytes = len("[]")

type eventsRequest struct {
	SessionID string            `json:"sessionId"`
	Events    []json.RawMessage `json:"events"`
	EndUserID string            `json:"endUserId,omitempty"`
}

// SendReport summarizes a completed chunked delivery.
type SendReport struct {
	Chunks int
	Events int
	Bytes  int
}

// SendChunked delivers events to the ingestion endpoint in order, split into
// chunks whose serialized events array stays within the configured size
// bound. An event too large to fit any chunk travels alone. Chunks are sent
// sequentially; the first failure aborts the remaining chunks and fails the
// whole call, so the caller can requeue the full batch.
func (c *Client) SendChunked(ctx context.Context, events []event.Event, sessionID, endUserID string) (SendReport, error) {
	if len(events) == 0 {
		return SendReport{}, nil
	}

	raws := make([]json.RawMessage, len(events))
	for i := range events {
		raw, err := json.Marshal(&events[i])
		if err != nil {
			return SendReport{}, fmt.Errorf("encode event %d: %w", i, err)
		}
		raws[i] = raw
	}

	chunks := chunkRawEvents(raws, c.maxChunkBytes)
	var report SendReport
	for i, chunk := range chunks {
		size := chunkSize(chunk)
		if err := c.post(ctx, pathEvents, eventsRequest{
			SessionID: sessionID,
			Events:    chunk,
			EndUserID: endUserID,
		}, nil); err != nil {
			return report, fmt.Errorf("events chunk %d of %d (%d events): %w", i+1, len(chunks), len(chunk), err)
		}
		report.Chunks++
		report.Events += len(chunk)
		report.Bytes += size
		c.logger.Debug("delivered events chunk",
			zap.Int("chunk", i+1),
			zap.Int("chunks", len(chunks)),
			zap.Int("events", len(chunk)),
			zap.Int("bytes", size))
	}
	return report, nil
}

// chunkRawEvents packs pre-serialized events into chunks whose events array
// encodes to at most limit bytes. Order is preserved. A single event whose
// array alone exceeds limit still forms its own chunk.
func chunkRawEvents(raws []json.RawMessage, limit int) [][]json.RawMessage {
	var chunks [][]json.RawMessage
	var cur []json.RawMessage
	size := emptyArrayBytes

	for _, raw := range raws {
		cost := len(raw)
		if len(cur) > 0 {
			cost++ // separating comma
		}
		if len(cur) > 0 && size+cost > limit {
			chunks = append(chunks, cur)
			cur = nil
			size = emptyArrayBytes
			cost = len(raw)
		}
		cur = append(cur, raw)
		size += cost
	}
	if len(cur) > 0 {
		chunks = append(chunks, cur)
	}
	return chunks
}

// chunkSize reports the serialized size of a chunk's events array.
func chunkSize(chunk []json.RawMessage) int {
	size := emptyArrayBytes
	for i, raw := range chunk {
		if i > 0 {
			size++
		}
		size += len(raw)
	}
	return size
}
