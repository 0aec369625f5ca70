package redact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adeelakhani/swing-sdk/event"
)

func snapshotEvent() event.Event {
	return event.Event{
		Kind:      event.KindFullSnapshot,
		Timestamp: 100,
		Data: event.FullSnapshotData{Node: &event.Node{
			Type:    event.NodeElement,
			TagName: "body",
			ChildNodes: []*event.Node{
				{
					Type:        event.NodeElement,
					TagName:     "p",
					Attributes:  map[string]string{"class": "swing-mask", "placeholder": "hint"},
					TextContent: "secret",
					ChildNodes: []*event.Node{
						{Type: event.NodeElement, TagName: "b", TextContent: "nested secret"},
					},
				},
				{Type: event.NodeElement, TagName: "p", TextContent: "public"},
			},
		}},
	}
}

func TestApplyEmptyRulesIsIdentity(t *testing.T) {
	e := NewEngine(nil)

	events := []event.Event{
		snapshotEvent(),
		{Kind: event.KindIncremental, Data: event.IncrementalData{Source: event.SourceInput, Input: &event.InputData{ID: 1, Text: "secret"}}},
		event.NewConsole(5, "error", "boom"),
		{Kind: event.KindMeta, Data: event.MetaData{Href: "https://a.example", Width: 800, Height: 600}},
	}
	for _, ev := range events {
		out := e.Apply(ev)
		assert.Equal(t, ev, out)
	}
}

func TestApplyMasksMatchingSnapshotNodes(t *testing.T) {
	e := NewEngine(nil)
	e.SetRules([]string{".swing-mask"})

	in := snapshotEvent()
	out := e.Apply(in)

	snap := out.Data.(event.FullSnapshotData)
	masked := snap.Node.ChildNodes[0]
	assert.Equal(t, Mask, masked.TextContent)
	assert.Equal(t, Mask, masked.Attributes["placeholder"])
	assert.Equal(t, "swing-mask", masked.Attributes["class"], "class itself is not in the sensitive set")
	assert.Equal(t, Mask, masked.ChildNodes[0].TextContent, "text under a matched node is masked")
	assert.Equal(t, "public", snap.Node.ChildNodes[1].TextContent)

	// Input stays untouched.
	orig := in.Data.(event.FullSnapshotData)
	assert.Equal(t, "secret", orig.Node.ChildNodes[0].TextContent)
}

func TestApplyIsIdempotent(t *testing.T) {
	e := NewEngine(nil)
	e.SetRules([]string{".swing-mask", "input"})

	events := []event.Event{
		snapshotEvent(),
		{Kind: event.KindIncremental, Data: event.IncrementalData{Source: event.SourceInput, Input: &event.InputData{ID: 1, Text: "pw"}}},
		event.NewButtonClick(9, event.Target{Tag: "button", ID: "buy"}, "Buy now"),
		event.NewConsole(9, "warn", "user@example.com failed login"),
	}
	for _, ev := range events {
		once := e.Apply(ev)
		twice := e.Apply(once)
		assert.Equal(t, once, twice)
	}
}

func TestApplyMasksInputUnconditionally(t *testing.T) {
	e := NewEngine(nil)
	e.SetRules([]string{"#unrelated"})

	in := event.Event{Kind: event.KindIncremental, Data: event.IncrementalData{
		Source: event.SourceInput,
		Input:  &event.InputData{ID: 4, Text: "hunter2", IsChecked: true},
	}}
	out := e.Apply(in)

	got := out.Data.(event.IncrementalData)
	assert.Equal(t, Mask, got.Input.Text)
	assert.True(t, got.Input.IsChecked)
	assert.Equal(t, "hunter2", in.Data.(event.IncrementalData).Input.Text)
}

func TestApplyMasksSemanticFields(t *testing.T) {
	e := NewEngine(nil)
	e.SetRules([]string{"#unrelated"})

	click := e.Apply(event.NewButtonClick(1, event.Target{Tag: "button"}, "Pay $400"))
	assert.Equal(t, Mask, click.Data.(event.SemanticData).Text)

	console := e.Apply(event.NewConsole(2, "error", "card declined for 4111..."))
	got := console.Data.(event.SemanticData)
	assert.Equal(t, Mask, got.Message)
	assert.Equal(t, "error", got.Level)

	nav := e.Apply(event.NewNavigation(3, "https://a.example/checkout", ""))
	assert.Equal(t, "https://a.example/checkout", nav.Data.(event.SemanticData).URL)
}

func TestApplyMasksMutationAdds(t *testing.T) {
	e := NewEngine(nil)
	e.SetRules([]string{`input[type="password"]`})

	in := event.Event{Kind: event.KindIncremental, Data: event.IncrementalData{
		Source: event.SourceMutation,
		Mutation: &event.MutationData{
			Adds: []event.AddedNode{{
				ParentID: 2,
				Node: &event.Node{
					Type:        event.NodeElement,
					TagName:     "input",
					Attributes:  map[string]string{"type": "password", "value": "pw"},
					TextContent: "",
				},
			}},
			Texts: []event.TextMutation{{ID: 9, Value: "hello"}},
		},
	}}
	out := e.Apply(in)

	got := out.Data.(event.IncrementalData).Mutation
	assert.Equal(t, Mask, got.Adds[0].Node.Attributes["value"])
	assert.Equal(t, "hello", got.Texts[0].Value)
	assert.Equal(t, "pw", in.Data.(event.IncrementalData).Mutation.Adds[0].Node.Attributes["value"])
}

func TestApplyMasksAttributeRecords(t *testing.T) {
	e := NewEngine(nil)
	e.SetRules([]string{".swing-mask"})

	in := event.Event{Kind: event.KindIncremental, Data: event.IncrementalData{
		Source: event.SourceMutation,
		Mutation: &event.MutationData{
			Attributes: []event.AttributeMutation{
				{ID: 1, Attributes: map[string]string{"class": "swing-mask", "value": "4111"}},
				{ID: 2, Attributes: map[string]string{"value": "visible"}},
			},
		},
	}}
	out := e.Apply(in)

	got := out.Data.(event.IncrementalData).Mutation
	assert.Equal(t, Mask, got.Attributes[0].Attributes["value"])
	assert.Equal(t, "visible", got.Attributes[1].Attributes["value"])
}

func TestApplyPassesThroughOtherKinds(t *testing.T) {
	e := NewEngine(nil)
	e.SetRules([]string{"input"})

	meta := event.Event{Kind: event.KindMeta, Data: event.MetaData{Href: "https://a.example"}}
	assert.Equal(t, meta, e.Apply(meta))

	opaque := event.Event{Kind: event.KindPlugin, Data: event.OpaqueData{Raw: []byte(`{"x":1}`)}}
	assert.Equal(t, opaque, e.Apply(opaque))
}

func TestSetRulesKeepsMalformedAsInert(t *testing.T) {
	e := NewEngine(nil)
	e.SetRules([]string{"div > span", ".swing-mask"})

	require.Len(t, e.Rules(), 2)

	out := e.Apply(snapshotEvent())
	snap := out.Data.(event.FullSnapshotData)
	assert.Equal(t, Mask, snap.Node.ChildNodes[0].TextContent, "well-formed rules still apply")
}
