// Package event defines the events flowing through the capture pipeline: the
// raw events the recording engine emits and the semantic events the SDK
// synthesizes on top of them. Kinds are encoded on the wire as small integers;
// the recording engine owns the low range, synthesized events sit at a single
// reserved value above it so backends can split the two families without
// reading payloads.
package event

import (
	"bytes"
	"encoding/json"
)

// Kind discriminates event families on the wire.
type Kind int

const (
	KindDocumentLoaded Kind = 0
	KindPageLoaded     Kind = 1
	KindFullSnapshot   Kind = 2
	KindIncremental    Kind = 3
	KindMeta           Kind = 4
	KindPlugin         Kind = 6

	// KindSemantic marks synthesized business events. Values 0-6 are reserved
	// for the recording engine.
	KindSemantic Kind = 100
)

// Source sub-discriminates incremental snapshot payloads.
type Source int

const (
	SourceMutation Source = iota
	SourceMouseMove
	SourceMouseInteraction
	SourceScroll
	SourceViewportResize
	SourceInput
	SourceTextChange
	SourceSelection
)

// Event is the atomic unit the pipeline buffers and ships. Timestamp is
// capture time in epoch milliseconds. Delay is only ever set by the recording
// engine.
type Event struct {
	Kind      Kind
	Data      Payload
	Timestamp int64
	Delay     *int64
}

// Payload is the kind-specific body of an event. The union is closed:
// payloads the pipeline inspects get concrete types, everything else rides
// in OpaqueData.
type Payload interface {
	isPayload()
}

// FullSnapshotData carries a complete serialized DOM tree.
type FullSnapshotData struct {
	Node *Node `json:"node"`
}

// MetaData describes the page a recording belongs to.
type MetaData struct {
	Href   string `json:"href"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// IncrementalData carries one incremental snapshot. Mutation and Input are
// decoded because redaction needs them; every other source is kept verbatim
// in Raw.
type IncrementalData struct {
	Source   Source
	Mutation *MutationData
	Input    *InputData
	Raw      json.RawMessage
}

// MutationData lists DOM changes observed in one mutation batch.
type MutationData struct {
	Adds       []AddedNode         `json:"adds,omitempty"`
	Texts      []TextMutation      `json:"texts,omitempty"`
	Attributes []AttributeMutation `json:"attributes,omitempty"`
	Removes    []RemovedNode       `json:"removes,omitempty"`
}

// AddedNode is a subtree attached to an existing parent.
type AddedNode struct {
	ParentID int   `json:"parentId"`
	Node     *Node `json:"node"`
}

// TextMutation rewrites the text content of a known node.
type TextMutation struct {
	ID    int    `json:"id"`
	Value string `json:"value"`
}

// AttributeMutation rewrites attributes of a known node. Attributes holds the
// new values only, not the node's full attribute state.
type AttributeMutation struct {
	ID         int               `json:"id"`
	Attributes map[string]string `json:"attributes"`
}

// RemovedNode detaches a node from its parent.
type RemovedNode struct {
	ParentID int `json:"parentId"`
	ID       int `json:"id"`
}

// InputData reports a field value change.
type InputData struct {
	ID        int    `json:"id"`
	Text      string `json:"text"`
	IsChecked bool   `json:"isChecked"`
}

// OpaqueData is a passthrough payload for kinds and sources the pipeline
// never inspects.
type OpaqueData struct {
	Raw json.RawMessage
}

func (FullSnapshotData) isPayload() {}
func (MetaData) isPayload()         {}
func (IncrementalData) isPayload()  {}
func (SemanticData) isPayload()     {}
func (OpaqueData) isPayload()       {}

type wireEvent struct {
	Type      Kind            `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
	Delay     *int64          `json:"delay,omitempty"`
}

// nullJSON stands in for an absent payload so round trips stay lossless.
var nullJSON = json.RawMessage("null")

// MarshalJSON encodes the event in its wire form
// {"type":n,"data":{...},"timestamp":ms,"delay":ms?}.
func (e Event) MarshalJSON() ([]byte, error) {
	w := wireEvent{
		Type:      e.Kind,
		Timestamp: e.Timestamp,
		Delay:     e.Delay,
	}
	switch d := e.Data.(type) {
	case nil:
		w.Data = nullJSON
	case OpaqueData:
		if len(d.Raw) == 0 {
			w.Data = nullJSON
		} else {
			w.Data = d.Raw
		}
	case IncrementalData:
		b, err := marshalIncremental(d)
		if err != nil {
			return nil, err
		}
		w.Data = b
	default:
		b, err := json.Marshal(e.Data)
		if err != nil {
			return nil, err
		}
		w.Data = b
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the wire form, degrading to an opaque payload for
// unknown kinds or bodies that do not decode. Foreign recording events must
// survive transit even when this SDK predates them.
func (e *Event) UnmarshalJSON(b []byte) error {
	var w wireEvent
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	e.Kind = w.Type
	e.Timestamp = w.Timestamp
	e.Delay = w.Delay
	e.Data = decodePayload(w.Type, w.Data)
	return nil
}

func decodePayload(kind Kind, raw json.RawMessage) Payload {
	if len(raw) == 0 || bytes.Equal(raw, nullJSON) {
		return OpaqueData{}
	}
	switch kind {
	case KindFullSnapshot:
		var d FullSnapshotData
		if err := json.Unmarshal(raw, &d); err == nil && d.Node != nil {
			return d
		}
	case KindMeta:
		var d MetaData
		if err := json.Unmarshal(raw, &d); err == nil {
			return d
		}
	case KindIncremental:
		if d, ok := decodeIncremental(raw); ok {
			return d
		}
	case KindSemantic:
		var d SemanticData
		if err := json.Unmarshal(raw, &d); err == nil && d.Kind != "" {
			return d
		}
	}
	return OpaqueData{Raw: raw}
}

// incrementalWire is the common envelope of every incremental source.
type incrementalWire struct {
	Source Source `json:"source"`
}

func decodeIncremental(raw json.RawMessage) (IncrementalData, bool) {
	var env incrementalWire
	if err := json.Unmarshal(raw, &env); err != nil {
		return IncrementalData{}, false
	}
	d := IncrementalData{Source: env.Source, Raw: raw}
	switch env.Source {
	case SourceMutation:
		var m MutationData
		if err := json.Unmarshal(raw, &m); err != nil {
			return IncrementalData{}, false
		}
		d.Mutation = &m
		d.Raw = nil
	case SourceInput:
		var in InputData
		if err := json.Unmarshal(raw, &in); err != nil {
			return IncrementalData{}, false
		}
		d.Input = &in
		d.Raw = nil
	}
	return d, true
}

func marshalIncremental(d IncrementalData) ([]byte, error) {
	switch {
	case d.Mutation != nil:
		return json.Marshal(struct {
			Source Source `json:"source"`
			*MutationData
		}{d.Source, d.Mutation})
	case d.Input != nil:
		return json.Marshal(struct {
			Source Source `json:"source"`
			*InputData
		}{d.Source, d.Input})
	case len(d.Raw) > 0:
		return d.Raw, nil
	default:
		return json.Marshal(incrementalWire{Source: d.Source})
	}
}

// IsSemantic reports whether the event was synthesized by the SDK rather
// than captured by the recording engine.
func (e Event) IsSemantic() bool {
	return e.Kind == KindSemantic
}
