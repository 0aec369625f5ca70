package event

// NodeType identifies the serialized DOM node flavor inside a snapshot tree.
type NodeType int

const (
	NodeDocument NodeType = iota
	NodeDocumentType
	NodeElement
	NodeText
	NodeCDATA
	NodeComment
)

// Node is one node of a serialized DOM tree as the recording engine captures
// it. The pipeline only ever reads tag/id/class/attributes/text for redaction;
// everything else rides through untouched.
type Node struct {
	ID          int               `json:"id,omitempty"`
	Type        NodeType          `json:"type"`
	TagName     string            `json:"tagName,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	TextContent string            `json:"textContent,omitempty"`
	ChildNodes  []*Node           `json:"childNodes,omitempty"`
}

// Clone returns a deep copy of the node tree.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{
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
	if n.ChildNodes != nil {
		out.ChildNodes = make([]*Node, len(n.ChildNodes))
		for i, c := range n.ChildNodes {
			out.ChildNodes[i] = c.Clone()
		}
	}
	return out
}

// Walk visits the node and every descendant in document order.
func (n *Node) Walk(fn func(*Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.ChildNodes {
		c.Walk(fn)
	}
}
