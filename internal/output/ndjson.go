// Package output renders swing's machine-readable stream: one JSON object
// per line, each self-describing via type and schemaVersion so agents and
// scripts can consume the stream without ordering assumptions.
package output

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/adeelakhani/swing-sdk/event"
)

// SchemaVersion is stamped on every emitted line.
const SchemaVersion = 1

// NDJSONWriter emits newline-delimited JSON. Safe for concurrent use.
type NDJSONWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewNDJSONWriter wraps w.
func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	return &NDJSONWriter{w: w}
}

func (n *NDJSONWriter) writeLine(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b = append(b, '\n')

	n.mu.Lock()
	defer n.mu.Unlock()
	_, err = n.w.Write(b)
	return err
}

type readyLine struct {
	Type          string `json:"type"`
	SchemaVersion int    `json:"schemaVersion"`
	Timestamp     string `json:"timestamp"`
	SessionID     string `json:"session_id"`
	EndUserID     string `json:"end_user_id,omitempty"`
	IngestURL     string `json:"ingest_url"`
}

// WriteReady announces that recording is live.
func (n *NDJSONWriter) WriteReady(timestamp, sessionID, endUserID, ingestURL string) error {
	return n.writeLine(readyLine{
		Type:          "ready",
		SchemaVersion: SchemaVersion,
		Timestamp:     timestamp,
		SessionID:     sessionID,
		EndUserID:     endUserID,
		IngestURL:     ingestURL,
	})
}

type eventLine struct {
	Type          string      `json:"type"`
	SchemaVersion int         `json:"schemaVersion"`
	SessionID     string      `json:"session_id"`
	Event         event.Event `json:"event"`
}

// WriteEvent echoes one pipeline event in its wire form.
func (n *NDJSONWriter) WriteEvent(sessionID string, ev event.Event) error {
	return n.writeLine(eventLine{
		Type:          "event",
		SchemaVersion: SchemaVersion,
		SessionID:     sessionID,
		Event:         ev,
	})
}

type flushLine struct {
	Type          string `json:"type"`
	SchemaVersion int    `json:"schemaVersion"`
	SessionID     string `json:"session_id"`
	Reason        string `json:"reason"`
	Events        int    `json:"events"`
	Chunks        int    `json:"chunks"`
	Bytes         int    `json:"bytes"`
}

// WriteFlush reports one completed upload.
func (n *NDJSONWriter) WriteFlush(sessionID, reason string, events, chunks, bytes int) error {
	return n.writeLine(flushLine{
		Type:          "flush",
		SchemaVersion: SchemaVersion,
		SessionID:     sessionID,
		Reason:        reason,
		Events:        events,
		Chunks:        chunks,
		Bytes:         bytes,
	})
}

// Stats is the periodic heartbeat line.
type Stats struct {
	Type          string `json:"type"`
	SchemaVersion int    `json:"schemaVersion"`
	Timestamp     string `json:"timestamp"`
	SessionID     string `json:"session_id"`
	State         string `json:"state"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Buffered      int    `json:"buffered"`
	Captured      int64  `json:"captured"`
	Flushed       int64  `json:"flushed"`
	Chunks        int64  `json:"chunks"`
	Bytes         int64  `json:"bytes"`
	FailedSends   int64  `json:"failed_sends"`
}

// WriteStats emits s, stamping type and schemaVersion.
func (n *NDJSONWriter) WriteStats(s *Stats) error {
	s.Type = "stats"
	s.SchemaVersion = SchemaVersion
	return n.writeLine(s)
}

type sessionEndLine struct {
	Type          string `json:"type"`
	SchemaVersion int    `json:"schemaVersion"`
	SessionID     string `json:"session_id"`
	Reason        string `json:"reason"`
	HandedOff     bool   `json:"handed_off"`
}

// WriteSessionEnd reports the end of recording and whether the final batch
// made it out.
func (n *NDJSONWriter) WriteSessionEnd(sessionID, reason string, handedOff bool) error {
	return n.writeLine(sessionEndLine{
		Type:          "session_end",
		SchemaVersion: SchemaVersion,
		SessionID:     sessionID,
		Reason:        reason,
		HandedOff:     handedOff,
	})
}

type errorLine struct {
	Type          string `json:"type"`
	SchemaVersion int    `json:"schemaVersion"`
	Code          string `json:"code"`
	Message       string `json:"message"`
	Hint          string `json:"hint,omitempty"`
}

// WriteError emits a machine-readable failure.
func (n *NDJSONWriter) WriteError(code, message string, hint ...string) error {
	line := errorLine{
		Type:          "error",
		SchemaVersion: SchemaVersion,
		Code:          code,
		Message:       message,
	}
	if len(hint) > 0 {
		line.Hint = hint[0]
	}
	return n.writeLine(line)
}
