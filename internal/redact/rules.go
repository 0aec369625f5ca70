// Package redact rewrites sensitive content out of events before they may
// leave the process. Rules are a deliberately small selector subset: tag
// name, #id, .class, and attribute equality like input[type="password"].
// Anything else parses into a rule that never matches.
package redact

import (
	"fmt"
	"strings"
)

type ruleKind int

const (
	ruleNever ruleKind = iota
	ruleTag
	ruleID
	ruleClass
	ruleAttr
)

// Rule is one parsed element-matching rule.
type Rule struct {
	raw  string
	kind ruleKind

	tag   string // lowercased; on ruleAttr an optional extra constraint
	id    string
	class string
	attr  string
	value string
}

// String returns the rule as it was written.
func (r Rule) String() string { return r.raw }

// ParseRule parses a selector string into a Rule. Selectors outside the
// supported subset return a never-matching rule and an error describing why;
// callers keep the rule and continue.
func ParseRule(s string) (Rule, error) {
	raw := s
	s = strings.TrimSpace(s)
	never := Rule{raw: raw, kind: ruleNever}

	switch {
	case s == "":
		return never, fmt.Errorf("empty rule")

	case strings.HasPrefix(s, "#"):
		id := s[1:]
		if !isSimpleToken(id) {
			return never, fmt.Errorf("unsupported id rule %q", raw)
		}
		return Rule{raw: raw, kind: ruleID, id: id}, nil

	case strings.HasPrefix(s, "."):
		class := s[1:]
		if !isSimpleToken(class) {
			return never, fmt.Errorf("unsupported class rule %q", raw)
		}
		return Rule{raw: raw, kind: ruleClass, class: class}, nil

	case strings.Contains(s, "["):
		open := strings.Index(s, "[")
		tag := s[:open]
		if tag != "" && !isSimpleToken(tag) {
			return never, fmt.Errorf("unsupported attribute rule %q", raw)
		}
		if !strings.HasSuffix(s, "]") {
			return never, fmt.Errorf("unterminated attribute rule %q", raw)
		}
		body := s[open+1 : len(s)-1]
		eq := strings.Index(body, "=")
		if eq <= 0 {
			return never, fmt.Errorf("unsupported attribute rule %q", raw)
		}
		attr := strings.TrimSpace(body[:eq])
		value := unquote(strings.TrimSpace(body[eq+1:]))
		if !isSimpleToken(attr) || value == "" {
			return never, fmt.Errorf("unsupported attribute rule %q", raw)
		}
		return Rule{raw: raw, kind: ruleAttr, tag: strings.ToLower(tag), attr: attr, value: value}, nil

	default:
		if !isSimpleToken(s) {
			return never, fmt.Errorf("unsupported rule %q", raw)
		}
		return Rule{raw: raw, kind: ruleTag, tag: strings.ToLower(s)}, nil
	}
}

// MatchesElement reports whether the rule matches an element described by its
// tag name and attribute map.
func (r Rule) MatchesElement(tag string, attrs map[string]string) bool {
	switch r.kind {
	case ruleTag:
		return tag != "" && strings.EqualFold(tag, r.tag)
	case ruleID:
		return attrs["id"] == r.id
	case ruleClass:
		return hasClass(attrs["class"], r.class)
	case ruleAttr:
		if r.tag != "" && !strings.EqualFold(tag, r.tag) {
			return false
		}
		return attrs[r.attr] == r.value
	default:
		return false
	}
}

// MatchesAttrs matches the rule against a bare attribute map, used for
// attribute-change records where no tag name is available. Tag rules and
// tag-constrained attribute rules cannot be verified there and never match.
func (r Rule) MatchesAttrs(attrs map[string]string) bool {
	switch r.kind {
	case ruleID:
		return attrs["id"] == r.id
	case ruleClass:
		return hasClass(attrs["class"], r.class)
	case ruleAttr:
		if r.tag != "" {
			return false
		}
		return attrs[r.attr] == r.value
	default:
		return false
	}
}

func hasClass(classList, class string) bool {
	if classList == "" || class == "" {
		return false
	}
	for _, c := range strings.Fields(classList) {
		if c == class {
			return true
		}
	}
	return false
}

// isSimpleToken accepts bare identifier-ish tokens: letters, digits, '-' and
// '_'. Combinators, pseudo-selectors and wildcards all fail here.
func isSimpleToken(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
