package filter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/adeelakhani/swing-sdk/event"
)

// WhereClause represents a parsed --where condition
type WhereClause struct {
	Field    string
	Operator string
	Value    string
	regex    *regexp.Regexp // Compiled regex for ~ and !~ operators
}

// ParseWhereClause parses a where clause like "level=error" or "message~timeout"
// Supported operators: =, !=, ~, !~, >=, <=, ^, $
func ParseWhereClause(clause string) (*WhereClause, error) {
	// Try operators in order of length (longest first to avoid partial matches)
	operators := []string{"!~", ">=", "<=", "!=", "~", "=", "^", "$"}

	for _, op := range operators {
		idx := strings.Index(clause, op)
		if idx > 0 {
			field := strings.TrimSpace(clause[:idx])
			value := strings.TrimSpace(clause[idx+len(op):])

			if field == "" || value == "" {
				return nil, fmt.Errorf("invalid where clause: %s", clause)
			}

			wc := &WhereClause{
				Field:    field,
				Operator: op,
				Value:    value,
			}

			// Pre-compile regex for ~ and !~ operators
			if op == "~" || op == "!~" {
				re, err := regexp.Compile(value)
				if err != nil {
					return nil, fmt.Errorf("invalid regex in where clause '%s': %w", clause, err)
				}
				wc.regex = re
			}

			return wc, nil
		}
	}

	return nil, fmt.Errorf("no valid operator found in where clause: %s (use =, !=, ~, !~, >=, <=, ^, $)", clause)
}

// Match checks if an event matches this where clause
func (wc *WhereClause) Match(ev event.Event) bool {
	fieldValue := wc.getFieldValue(ev)

	switch wc.Operator {
	case "=":
		return fieldValue == wc.Value
	case "!=":
		return fieldValue != wc.Value
	case "~": // Contains (regex)
		if wc.regex != nil {
			return wc.regex.MatchString(fieldValue)
		}
		return strings.Contains(fieldValue, wc.Value)
	case "!~": // Not contains (regex)
		if wc.regex != nil {
			return !wc.regex.MatchString(fieldValue)
		}
		return !strings.Contains(fieldValue, wc.Value)
	case "^": // Starts with
		return strings.HasPrefix(fieldValue, wc.Value)
	case "$": // Ends with
		return strings.HasSuffix(fieldValue, wc.Value)
	case ">=": // Greater or equal (for console levels)
		return wc.compareLevel(ev, true)
	case "<=": // Less or equal (for console levels)
		return wc.compareLevel(ev, false)
	}

	return false
}

// getFieldValue extracts the queried field from an event. Non-semantic events
// only answer for "kind"; every other field reads as empty.
func (wc *WhereClause) getFieldValue(ev event.Event) string {
	sd, _ := ev.Data.(event.SemanticData)
	switch strings.ToLower(wc.Field) {
	case "kind":
		return kindName(ev.Kind)
	case "semantic":
		return string(sd.Kind)
	case "level":
		return sd.Level
	case "message":
		return sd.Message
	case "text":
		return sd.Text
	case "href":
		return sd.Href
	case "url":
		return sd.URL
	case "from":
		return sd.From
	case "name":
		return sd.Name
	default:
		return ""
	}
}

// compareLevel handles >= and <= comparisons for console levels. Events that
// carry no level never match.
func (wc *WhereClause) compareLevel(ev event.Event, greaterOrEqual bool) bool {
	if strings.ToLower(wc.Field) != "level" {
		return false
	}
	sd, ok := ev.Data.(event.SemanticData)
	if !ok || sd.Level == "" {
		return false
	}

	entryPriority := levelPriority(sd.Level)
	targetPriority := levelPriority(wc.Value)

	if greaterOrEqual {
		return entryPriority >= targetPriority
	}
	return entryPriority <= targetPriority
}

// levelPriority orders console levels for range comparisons. Unknown levels
// sit at info.
func levelPriority(level string) int {
	switch strings.ToLower(level) {
	case "debug":
		return 0
	case "log":
		return 1
	case "info":
		return 2
	case "warn":
		return 3
	case "error":
		return 4
	default:
		return 2
	}
}

// kindName is the query vocabulary for event kinds. Unknown kinds read as
// their numeric value so they stay addressable.
func kindName(k event.Kind) string {
	switch k {
	case event.KindDocumentLoaded:
		return "document"
	case event.KindPageLoaded:
		return "page"
	case event.KindFullSnapshot:
		return "snapshot"
	case event.KindIncremental:
		return "incremental"
	case event.KindMeta:
		return "meta"
	case event.KindPlugin:
		return "plugin"
	case event.KindSemantic:
		return "semantic"
	default:
		return strconv.Itoa(int(k))
	}
}

// WhereFilter is a filter that applies multiple where clauses (AND logic)
type WhereFilter struct {
	clauses []*WhereClause
}

// NewWhereFilter creates a filter from multiple where clause strings
func NewWhereFilter(whereClauses []string) (*WhereFilter, error) {
	if len(whereClauses) == 0 {
		return nil, nil
	}

	filter := &WhereFilter{}
	for _, clause := range whereClauses {
		wc, err := ParseWhereClause(clause)
		if err != nil {
			return nil, err
		}
		filter.clauses = append(filter.clauses, wc)
	}

	return filter, nil
}

// Match returns true if the event matches ALL where clauses (AND logic).
// A nil filter allows everything.
func (f *WhereFilter) Match(ev event.Event) bool {
	if f == nil {
		return true
	}
	for _, clause := range f.clauses {
		if !clause.Match(ev) {
			return false
		}
	}
	return true
}
