// Package filter narrows the echoed event stream. Filters shape what the
// terminal and the tee file show; the upload path always carries the full
// session.
package filter

import (
	"regexp"

	"github.com/adeelakhani/swing-sdk/event"
)

// Pipeline chains the stream filters: excludes drop first, then the match
// pattern, then where clauses.
type Pipeline struct {
	pattern  *regexp.Regexp
	excludes []*regexp.Regexp
	where    *WhereFilter
}

// NewPipeline builds a pipeline from the optional filters. Returns nil when
// no filter is configured; a nil pipeline allows everything.
func NewPipeline(pattern *regexp.Regexp, excludes []*regexp.Regexp, where *WhereFilter) *Pipeline {
	if pattern == nil && len(excludes) == 0 && where == nil {
		return nil
	}
	return &Pipeline{
		pattern:  pattern,
		excludes: excludes,
		where:    where,
	}
}

// Match reports whether the event survives every configured filter.
func (p *Pipeline) Match(ev event.Event) bool {
	if p == nil {
		return true
	}

	text := searchText(ev)
	for _, ex := range p.excludes {
		if ex.MatchString(text) {
			return false
		}
	}
	if p.pattern != nil && !p.pattern.MatchString(text) {
		return false
	}
	return p.where.Match(ev)
}

// searchText is the haystack for pattern and exclude matching: the visible
// content of semantic events, the kind name for everything else.
func searchText(ev event.Event) string {
	sd, ok := ev.Data.(event.SemanticData)
	if !ok {
		return kindName(ev.Kind)
	}
	text := string(sd.Kind)
	for _, part := range []string{sd.Level, sd.Message, sd.Text, sd.Href, sd.URL, sd.Name} {
		if part != "" {
			text += " " + part
		}
	}
	return text
}
