package redact

import (
	"sync"

	"go.uber.org/zap"

	"github.com/adeelakhani/swing-sdk/event"
)

// Mask replaces redacted text and attribute values.
const Mask = "***"

// sensitiveAttrs are overwritten on any node a rule matches.
var sensitiveAttrs = []string{"value", "data-value", "placeholder"}

// Engine applies the configured rule set to events. Apply never mutates its
// input; with no rules configured it returns the input unchanged.
type Engine struct {
	mu     sync.RWMutex
	rules  []Rule
	logger *zap.Logger
}

// NewEngine creates an Engine with an empty rule set.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// SetRules replaces the whole rule set, taking effect on the next processed
// event. Malformed selectors are kept as never-matching rules and logged once
// here rather than failing the call.
func (e *Engine) SetRules(selectors []string) {
	rules := make([]Rule, 0, len(selectors))
	for _, s := range selectors {
		r, err := ParseRule(s)
		if err != nil {
			e.logger.Warn("ignoring unparseable redaction rule", zap.String("rule", s), zap.Error(err))
		}
		rules = append(rules, r)
	}

	e.mu.Lock()
	e.rules = rules
	e.mu.Unlock()
}

// Rules returns the current rule set as written.
func (e *Engine) Rules() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, len(e.rules))
	for i, r := range e.rules {
		out[i] = r.String()
	}
	return out
}

// Apply returns the event with sensitive content masked. Applying twice is
// safe: masked content re-masks to itself.
func (e *Engine) Apply(ev event.Event) event.Event {
	e.mu.RLock()
	rules := e.rules
	e.mu.RUnlock()

	if len(rules) == 0 {
		return ev
	}

	switch d := ev.Data.(type) {
	case event.FullSnapshotData:
		ev.Data = event.FullSnapshotData{Node: maskTree(d.Node, rules, false)}

	case event.IncrementalData:
		switch {
		case d.Mutation != nil:
			ev.Data = event.IncrementalData{Source: d.Source, Mutation: maskMutation(d.Mutation, rules)}
		case d.Input != nil:
			// Input values are sensitive regardless of rule match.
			in := *d.Input
			in.Text = Mask
			ev.Data = event.IncrementalData{Source: d.Source, Input: &in}
		}

	case event.SemanticData:
		// Interaction text and console messages are masked by field name,
		// independent of which rules are set.
		if d.Text != "" {
			d.Text = Mask
		}
		if d.Message != "" {
			d.Message = Mask
		}
		ev.Data = d
	}

	return ev
}

// maskTree deep-copies the node tree, masking matched nodes and, below a
// match, every text node in the subtree.
func maskTree(n *event.Node, rules []Rule, underMatch bool) *event.Node {
	if n == nil {
		return nil
	}

	matched := underMatch
	if !matched && n.TagName != "" {
		for _, r := range rules {
			if r.MatchesElement(n.TagName, n.Attributes) {
				matched = true
				break
			}
		}
	}

	out := &event.Node{
		ID:          n.ID,
		Type:        n.Type,
		TagName:     n.TagName,
		TextContent: n.TextContent,
	}
	if n.Attributes != nil {
		out.Attributes = make(map[string]string, len(n.Attributes))
		for k, v := range n.Attributes {
			out.Attributes[k] = v
		}
	}
	if matched {
		if out.TextContent != "" {
			out.TextContent = Mask
		}
		for _, a := range sensitiveAttrs {
			if _, ok := out.Attributes[a]; ok {
				out.Attributes[a] = Mask
			}
		}
	}
	if n.ChildNodes != nil {
		out.ChildNodes = make([]*event.Node, len(n.ChildNodes))
		for i, c := range n.ChildNodes {
			out.ChildNodes[i] = maskTree(c, rules, matched)
		}
	}
	return out
}

func maskMutation(m *event.MutationData, rules []Rule) *event.MutationData {
	out := &event.MutationData{
		Texts:   m.Texts,
		Removes: m.Removes,
	}

	if m.Adds != nil {
		out.Adds = make([]event.AddedNode, len(m.Adds))
		for i, a := range m.Adds {
			out.Adds[i] = event.AddedNode{ParentID: a.ParentID, Node: maskTree(a.Node, rules, false)}
		}
	}

	if m.Attributes != nil {
		out.Attributes = make([]event.AttributeMutation, len(m.Attributes))
		for i, rec := range m.Attributes {
			out.Attributes[i] = maskAttributeRecord(rec, rules)
		}
	}

	return out
}

// maskAttributeRecord masks sensitive attribute values when the record's own
// attribute state matches a rule. The record carries no tag name, so only
// id, class and untagged attribute rules can match here.
func maskAttributeRecord(rec event.AttributeMutation, rules []Rule) event.AttributeMutation {
	matched := false
	for _, r := range rules {
		if r.MatchesAttrs(rec.Attributes) {
			matched = true
			break
		}
	}
	if !matched {
		return rec
	}

	attrs := make(map[string]string, len(rec.Attributes))
	for k, v := range rec.Attributes {
		attrs[k] = v
	}
	for _, a := range sensitiveAttrs {
		if _, ok := attrs[a]; ok {
			attrs[a] = Mask
		}
	}
	return event.AttributeMutation{ID: rec.ID, Attributes: attrs}
}
