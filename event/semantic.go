package event

// SemanticKind sub-discriminates synthesized events.
type SemanticKind string

const (
	SemanticButtonClicked SemanticKind = "button_clicked"
	SemanticLinkClicked   SemanticKind = "link_clicked"
	SemanticFormSubmitted SemanticKind = "form_submitted"
	SemanticConsole       SemanticKind = "console"
	SemanticNavigation    SemanticKind = "navigation"
	SemanticCustom        SemanticKind = "custom"
)

// Target describes the element an interaction landed on.
type Target struct {
	Tag     string `json:"tag"`
	ID      string `json:"id,omitempty"`
	Classes string `json:"classes,omitempty"`
}

// SemanticData is the payload of a synthesized event. One flat struct covers
// every sub-kind; unused fields stay empty and drop off the wire.
type SemanticData struct {
	Kind SemanticKind `json:"kind"`

	// button_clicked, link_clicked, form_submitted
	Target *Target  `json:"target,omitempty"`
	Text   string   `json:"text,omitempty"`
	Href   string   `json:"href,omitempty"`
	Fields []string `json:"fields,omitempty"`

	// console
	Level   string `json:"level,omitempty"`
	Message string `json:"message,omitempty"`

	// navigation
	URL  string `json:"url,omitempty"`
	From string `json:"from,omitempty"`

	// custom
	Name       string         `json:"name,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

func semantic(ts int64, d SemanticData) Event {
	return Event{Kind: KindSemantic, Timestamp: ts, Data: d}
}

// NewButtonClick builds a button_clicked event.
func NewButtonClick(ts int64, target Target, text string) Event {
	return semantic(ts, SemanticData{Kind: SemanticButtonClicked, Target: &target, Text: text})
}

// NewLinkClick builds a link_clicked event.
func NewLinkClick(ts int64, target Target, text, href string) Event {
	return semantic(ts, SemanticData{Kind: SemanticLinkClicked, Target: &target, Text: text, Href: href})
}

// NewFormSubmit builds a form_submitted event carrying the submitted field
// names, never their values.
func NewFormSubmit(ts int64, target Target, fields []string) Event {
	return semantic(ts, SemanticData{Kind: SemanticFormSubmitted, Target: &target, Fields: fields})
}

// NewConsole builds a console event.
func NewConsole(ts int64, level, message string) Event {
	return semantic(ts, SemanticData{Kind: SemanticConsole, Level: level, Message: message})
}

// NewNavigation builds a navigation event for both full loads and in-page
// URL changes.
func NewNavigation(ts int64, url, from string) Event {
	return semantic(ts, SemanticData{Kind: SemanticNavigation, URL: url, From: from})
}

// NewCustom builds a developer-supplied business event.
func NewCustom(ts int64, name string, properties map[string]any) Event {
	return semantic(ts, SemanticData{Kind: SemanticCustom, Name: name, Properties: properties})
}
